package ai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/teemow/inboxrelay/internal/instrumentation"
	"github.com/teemow/inboxrelay/internal/logging"
)

// Fallback is returned by Summarize whenever the model cannot be used.
const Fallback = "Error generating AI analysis."

// DefaultTimeout bounds a single generation call.
const DefaultTimeout = 60 * time.Second

// SummarizerConfig configures a Summarizer.
type SummarizerConfig struct {
	Language string
	Timeout  time.Duration

	// FailureThreshold is the number of consecutive failures that opens the
	// breaker. Zero means five.
	FailureThreshold uint32

	// OpenTimeout is how long the breaker stays open. Zero means 30s.
	OpenTimeout time.Duration

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
}

// Summarizer wraps a Generator with a circuit breaker and a fixed fallback.
type Summarizer struct {
	gen      Generator
	cb       *gobreaker.CircuitBreaker
	language string
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *instrumentation.Metrics
}

// NewSummarizer creates a Summarizer around gen.
func NewSummarizer(gen Generator, cfg SummarizerConfig) *Summarizer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	logger := logging.WithComponent(cfg.Logger, "ai")

	threshold := cfg.FailureThreshold
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "gemini",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})

	return &Summarizer{
		gen:      gen,
		cb:       cb,
		language: cfg.Language,
		timeout:  cfg.Timeout,
		logger:   logger,
		metrics:  cfg.Metrics,
	}
}

// Summarize analyzes the attachment summary and email body. It returns
// Fallback on any failure.
func (s *Summarizer) Summarize(ctx context.Context, dataSummary, body string) string {
	prompt := BuildPrompt(Sanitize(dataSummary), Sanitize(body), s.language)

	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceGemini, "generate_content")
	defer span.End()

	start := time.Now()
	out, err := s.cb.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		return s.gen.Generate(callCtx, prompt)
	})
	elapsed := time.Since(start)

	if err != nil {
		s.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceGemini, instrumentation.OperationGenerate, instrumentation.StatusError, elapsed)
		instrumentation.SetSpanError(span, err)
		s.logger.Error("ai analysis failed", logging.Err(err), logging.Duration(elapsed))
		return Fallback
	}

	s.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceGemini, instrumentation.OperationGenerate, instrumentation.StatusSuccess, elapsed)
	instrumentation.SetSpanSuccess(span)

	text, ok := out.(string)
	if !ok {
		s.logger.Error("ai analysis returned unexpected type", slog.String("type", fmt.Sprintf("%T", out)))
		return Fallback
	}
	return text
}
