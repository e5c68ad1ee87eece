package instrumentation

import "testing"

func TestFileTypeLabel(t *testing.T) {
	tests := []struct {
		filename string
		expected string
	}{
		{"report.xlsx", FileTypeSpreadsheet},
		{"legacy.XLS", FileTypeSpreadsheet},
		{"data.csv", FileTypeSpreadsheet},
		{"invoice.pdf", FileTypeDocument},
		{"letter.docx", FileTypeDocument},
		{"notes.txt", FileTypeDocument},
		{"photo.jpg", FileTypeOther},
		{"noextension", FileTypeOther},
		{"", FileTypeOther},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if result := FileTypeLabel(tt.filename); result != tt.expected {
				t.Errorf("FileTypeLabel(%q) = %q, want %q", tt.filename, result, tt.expected)
			}
		})
	}
}
