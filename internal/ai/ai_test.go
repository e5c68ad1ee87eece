package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	reply   string
	err     error
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func TestSummarizer_Success(t *testing.T) {
	gen := &fakeGenerator{reply: "📩 *EXECUTIVE SUMMARY*"}
	s := NewSummarizer(gen, SummarizerConfig{Language: "Spanish"})

	got := s.Summarize(context.Background(), "Rows: 3", "Please review")
	assert.Equal(t, "📩 *EXECUTIVE SUMMARY*", got)

	require.Equal(t, 1, gen.calls())
	assert.Contains(t, gen.prompts[0], "Rows: 3")
	assert.Contains(t, gen.prompts[0], "Please review")
	assert.Contains(t, gen.prompts[0], "Always answer in Spanish.")
}

func TestSummarizer_FallbackOnError(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("quota exceeded")}
	s := NewSummarizer(gen, SummarizerConfig{})

	assert.Equal(t, Fallback, s.Summarize(context.Background(), "", "body"))
}

func TestSummarizer_SanitizesInvalidUTF8(t *testing.T) {
	gen := &fakeGenerator{reply: "ok"}
	s := NewSummarizer(gen, SummarizerConfig{})

	s.Summarize(context.Background(), "caf\xe9", "bad \xff byte")
	require.Equal(t, 1, gen.calls())
	assert.Contains(t, gen.prompts[0], "caf\n")
	assert.Contains(t, gen.prompts[0], "bad  byte")
	assert.True(t, strings.ToValidUTF8(gen.prompts[0], "") == gen.prompts[0])
}

func TestSummarizer_BreakerOpensAfterFailures(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("unavailable")}
	s := NewSummarizer(gen, SummarizerConfig{FailureThreshold: 2, OpenTimeout: time.Hour})

	for i := 0; i < 5; i++ {
		assert.Equal(t, Fallback, s.Summarize(context.Background(), "", "body"))
	}
	assert.Equal(t, 2, gen.calls(), "an open breaker short-circuits further calls")
}

func TestBuildPrompt_DefaultLanguage(t *testing.T) {
	p := BuildPrompt("  data  ", "\nbody\n", "")
	assert.Contains(t, p, "📧 EMAIL BODY:\nbody\n")
	assert.Contains(t, p, "(summary/structure):\ndata\n")
	assert.True(t, strings.HasSuffix(p, "Always answer in English."))
}

func TestNewGemini_RequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), GeminiConfig{})
	assert.Error(t, err)
}

func TestModelName(t *testing.T) {
	assert.Equal(t, "models/gemini-pro", modelName("gemini-pro"))
	assert.Equal(t, "models/gemini-pro", modelName("models/gemini-pro"))
}

func newGeminiServer(t *testing.T, status int, body string) (*httptest.Server, *http.Request, *[]byte) {
	t.Helper()
	var (
		gotReq  http.Request
		gotBody []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq = *r
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &gotReq, &gotBody
}

func TestGemini_Generate(t *testing.T) {
	srv, req, body := newGeminiServer(t, http.StatusOK,
		`{"candidates":[{"content":{"role":"model","parts":[{"text":"Hello "},{"text":"world"}]}}]}`)

	g, err := NewGemini(context.Background(), GeminiConfig{APIKey: "k", Model: "gemini-test", Endpoint: srv.URL + "/"})
	require.NoError(t, err)

	got, err := g.Generate(context.Background(), "prompt text")
	require.NoError(t, err)
	assert.Equal(t, "Hello world", got)

	assert.True(t, strings.HasSuffix(req.URL.Path, "models/gemini-test:generateContent"), req.URL.Path)

	var sent struct {
		Contents []struct {
			Role  string `json:"role"`
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"contents"`
	}
	require.NoError(t, json.Unmarshal(*body, &sent))
	require.Len(t, sent.Contents, 1)
	assert.Equal(t, "user", sent.Contents[0].Role)
	assert.Equal(t, "prompt text", sent.Contents[0].Parts[0].Text)
}

func TestGemini_GenerateErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		isErr  error
	}{
		{"empty candidates", http.StatusOK, `{"candidates":[]}`, ErrEmptyResponse},
		{"blank text", http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":" "}]}}]}`, ErrEmptyResponse},
		{"blocked", http.StatusOK, `{"promptFeedback":{"blockReason":"SAFETY"}}`, nil},
		{"server error", http.StatusInternalServerError, `{"error":{"code":500,"message":"boom"}}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, _ := newGeminiServer(t, tt.status, tt.body)
			g, err := NewGemini(context.Background(), GeminiConfig{APIKey: "k", Endpoint: srv.URL + "/"})
			require.NoError(t, err)

			_, err = g.Generate(context.Background(), "p")
			require.Error(t, err)
			if tt.isErr != nil {
				assert.ErrorIs(t, err, tt.isErr)
			}
		})
	}
}
