package gmail

import (
	"encoding/base64"
	"testing"

	gmail "google.golang.org/api/gmail/v1"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     string
	}{
		{"normal filename", "document.pdf", "document.pdf"},
		{"forward slash", "path/to/document.pdf", "path_to_document.pdf"},
		{"backslash", "path\\to\\document.pdf", "path_to_document.pdf"},
		{"parent reference", "../../etc/passwd", "____etc_passwd"},
		{"empty", "", "_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.filename); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.filename, got, tt.want)
			}
		})
	}
}

func TestWalkParts(t *testing.T) {
	tests := []struct {
		name          string
		part          *gmail.MessagePart
		expectedParts int
	}{
		{
			name:          "single part",
			part:          &gmail.MessagePart{PartId: "0", MimeType: "text/plain"},
			expectedParts: 1,
		},
		{
			name: "deeply nested parts",
			part: &gmail.MessagePart{
				PartId:   "0",
				MimeType: "multipart/mixed",
				Parts: []*gmail.MessagePart{
					{
						PartId:   "0.0",
						MimeType: "multipart/alternative",
						Parts: []*gmail.MessagePart{
							{PartId: "0.0.0", MimeType: "text/plain"},
							{PartId: "0.0.1", MimeType: "text/html"},
						},
					},
					{PartId: "0.1", MimeType: "application/pdf"},
				},
			},
			expectedParts: 5,
		},
		{
			name:          "nil part",
			part:          nil,
			expectedParts: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count := 0
			walkParts(tt.part, func(*gmail.MessagePart) { count++ })
			if count != tt.expectedParts {
				t.Errorf("walkParts() visited %d parts, want %d", count, tt.expectedParts)
			}
		})
	}
}

func TestDecodeBase64(t *testing.T) {
	const want = "Special: !@#$%^&*()?>"
	inputs := map[string]string{
		"url":          base64.URLEncoding.EncodeToString([]byte(want)),
		"url unpadded": base64.RawURLEncoding.EncodeToString([]byte(want)),
		"standard":     base64.StdEncoding.EncodeToString([]byte(want)),
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			got, err := decodeBase64(in)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != want {
				t.Errorf("decodeBase64() = %q, want %q", got, want)
			}
		})
	}

	if _, err := decodeBase64("!!!"); err == nil {
		t.Error("decodeBase64() should reject invalid input")
	}
}

func encode(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func TestToMessage(t *testing.T) {
	tests := []struct {
		name           string
		message        *gmail.Message
		wantSubject    string
		wantBody       string
		wantAttachment bool
	}{
		{
			name: "plain text",
			message: &gmail.Message{
				Id: "m1",
				Payload: &gmail.MessagePart{
					MimeType: "text/plain",
					Headers:  []*gmail.MessagePartHeader{{Name: "subject", Value: "Hello"}},
					Body:     &gmail.MessagePartBody{Data: encode("plain body")},
				},
			},
			wantSubject: "Hello",
			wantBody:    "plain body",
		},
		{
			name: "prefers text over html",
			message: &gmail.Message{
				Id: "m2",
				Payload: &gmail.MessagePart{
					MimeType: "multipart/alternative",
					Parts: []*gmail.MessagePart{
						{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: encode("<p>html</p>")}},
						{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: encode("text")}},
					},
				},
			},
			wantBody: "text",
		},
		{
			name: "html only with attachment",
			message: &gmail.Message{
				Id: "m3",
				Payload: &gmail.MessagePart{
					MimeType: "multipart/mixed",
					Parts: []*gmail.MessagePart{
						{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: encode("<p>html</p>")}},
						{MimeType: "text/csv", Filename: "data.csv", Body: &gmail.MessagePartBody{AttachmentId: "a1"}},
					},
				},
			},
			wantBody:       "<p>html</p>",
			wantAttachment: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toMessage(tt.message)
			if got.ID != tt.message.Id {
				t.Errorf("ID = %q, want %q", got.ID, tt.message.Id)
			}
			if got.Subject != tt.wantSubject {
				t.Errorf("Subject = %q, want %q", got.Subject, tt.wantSubject)
			}
			if got.Body != tt.wantBody {
				t.Errorf("Body = %q, want %q", got.Body, tt.wantBody)
			}
			if got.HasAttachments != tt.wantAttachment {
				t.Errorf("HasAttachments = %v, want %v", got.HasAttachments, tt.wantAttachment)
			}
		})
	}
}
