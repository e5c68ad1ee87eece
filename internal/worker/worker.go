package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/teemow/inboxrelay/internal/approval"
	"github.com/teemow/inboxrelay/internal/chat"
	"github.com/teemow/inboxrelay/internal/instrumentation"
	"github.com/teemow/inboxrelay/internal/logging"
	"github.com/teemow/inboxrelay/internal/mailbox"
	"github.com/teemow/inboxrelay/internal/sheet"
	"github.com/teemow/inboxrelay/internal/textextract"
)

const (
	// DefaultInterval is the pause between mailbox cycles.
	DefaultInterval = 30 * time.Second

	// DefaultDownloadDir receives attachments.
	DefaultDownloadDir = "downloads"
)

var htmlTag = regexp.MustCompile(`<[^<]+?>`)

// Checker summarizes spreadsheets and checks their data quality.
type Checker interface {
	Summarize(path string) (string, error)
	Analyze(path string) (sheet.Analysis, error)
}

// Editor applies edit operations and saves the result as a new file.
type Editor interface {
	Apply(path string, ops []sheet.Operation) (*sheet.Table, int, error)
	Persist(t *sheet.Table, originalPath, suffix string) (string, error)
}

// Summarizer produces the chat analysis. It never fails; errors yield a fallback text.
type Summarizer interface {
	Summarize(ctx context.Context, dataSummary, body string) string
}

// Approvals registers approval requests.
type Approvals interface {
	RequestApproval(prompt string, payload any, onApprove, onReject approval.Action) (string, error)
}

// Config configures a Worker. Source, Notifier, Approvals, Checker, Editor and
// Summarizer are required.
type Config struct {
	Source     mailbox.Source
	Notifier   chat.Notifier
	Approvals  Approvals
	Checker    Checker
	Editor     Editor
	Summarizer Summarizer

	// Extract returns the text of a document. Defaults to textextract.Extract.
	Extract func(path string) (string, error)

	DownloadDir string
	Interval    time.Duration

	// Suffix is appended to corrected file names. Defaults to sheet.DefaultSuffix.
	Suffix string

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
}

// Worker runs mailbox cycles.
type Worker struct {
	source     mailbox.Source
	notifier   chat.Notifier
	approvals  Approvals
	checker    Checker
	editor     Editor
	summarizer Summarizer
	extract    func(string) (string, error)

	downloadDir string
	interval    time.Duration
	suffix      string

	logger  *slog.Logger
	metrics *instrumentation.Metrics
}

// New creates a Worker.
func New(cfg Config) (*Worker, error) {
	var missing []string
	if cfg.Source == nil {
		missing = append(missing, "source")
	}
	if cfg.Notifier == nil {
		missing = append(missing, "notifier")
	}
	if cfg.Approvals == nil {
		missing = append(missing, "approvals")
	}
	if cfg.Checker == nil {
		missing = append(missing, "checker")
	}
	if cfg.Editor == nil {
		missing = append(missing, "editor")
	}
	if cfg.Summarizer == nil {
		missing = append(missing, "summarizer")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("worker: missing %s", strings.Join(missing, ", "))
	}

	if cfg.Extract == nil {
		cfg.Extract = textextract.Extract
	}
	if cfg.DownloadDir == "" {
		cfg.DownloadDir = DefaultDownloadDir
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Suffix == "" {
		cfg.Suffix = sheet.DefaultSuffix
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Worker{
		source:      cfg.Source,
		notifier:    cfg.Notifier,
		approvals:   cfg.Approvals,
		checker:     cfg.Checker,
		editor:      cfg.Editor,
		summarizer:  cfg.Summarizer,
		extract:     cfg.Extract,
		downloadDir: cfg.DownloadDir,
		interval:    cfg.Interval,
		suffix:      cfg.Suffix,
		logger:      logging.WithComponent(cfg.Logger, "worker"),
		metrics:     cfg.Metrics,
	}, nil
}

// Run processes the mailbox immediately and then every interval until ctx is
// done. A failed cycle is logged and never ends the loop.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started", slog.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("mailbox cycle failed", logging.Err(err))
		}

		select {
		case <-ctx.Done():
			w.logger.Info("worker stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce processes every unread message once. Errors inside one message are
// reported to the chat and do not stop the others; only a failure to list the
// mailbox is returned.
func (w *Worker) RunOnce(ctx context.Context) error {
	msgs, err := w.source.ListUnread(ctx)
	if err != nil {
		return fmt.Errorf("list unread: %w", err)
	}
	if len(msgs) == 0 {
		w.logger.Info("no new messages")
		return nil
	}

	for _, msg := range msgs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.handle(ctx, msg)
	}
	return nil
}

func (w *Worker) handle(ctx context.Context, msg mailbox.Message) {
	subject := msg.Subject
	if strings.TrimSpace(subject) == "" {
		subject = mailbox.DefaultSubject
	}
	logger := w.logger.With(logging.MessageID(msg.ID))
	logger.Info("processing email", slog.String("subject", subject))

	start := time.Now()
	err := w.process(ctx, msg, subject, logger)
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		logger.Error("failed to process email", logging.Err(err))
		w.send(ctx, fmt.Sprintf("⚠️ Error processing email '%s': %v", subject, err))
	} else {
		logger.Info("email processed", logging.Duration(time.Since(start)))
	}
	w.metrics.RecordEmailProcessed(ctx, status, time.Since(start))
}

func (w *Worker) process(ctx context.Context, msg mailbox.Message, subject string, logger *slog.Logger) error {
	files, err := w.source.DownloadAttachments(ctx, msg.ID, w.downloadDir)
	if err != nil {
		return fmt.Errorf("download attachments: %w", err)
	}

	ctx, span := instrumentation.StartSpan(ctx, "worker.process_message",
		instrumentation.NewSpanAttributeBuilder().WithMessage(msg.ID).WithAttachments(len(files)).Build()...)
	defer span.End()

	var summary strings.Builder
	if len(files) == 0 {
		logger.Info("no attachments, analyzing body only")
	}
	for _, path := range files {
		summary.WriteString(w.describe(ctx, path, logger))
		summary.WriteString("\n\n")
	}

	analysis := w.summarizer.Summarize(ctx, summary.String(), StripHTML(msg.Body))

	fileInfo := "*No attachments*"
	if len(files) > 0 {
		fileInfo = fmt.Sprintf("*Attachments:* %d", len(files))
	}
	w.send(ctx, fmt.Sprintf("📧 *New email*\n\n%s\n*Subject:* %s\n\n%s", fileInfo, subject, analysis))

	if err := w.source.MarkRead(ctx, msg.ID); err != nil {
		instrumentation.SetSpanError(span, err)
		return fmt.Errorf("mark read: %w", err)
	}
	instrumentation.SetSpanSuccess(span)
	return nil
}

// describe renders one attachment for the AI prompt and, for spreadsheets with
// issues, registers an approval request.
func (w *Worker) describe(ctx context.Context, path string, logger *slog.Logger) string {
	name := filepath.Base(path)
	logger = logger.With(logging.File(name))

	switch {
	case sheet.IsSpreadsheet(path):
		s, err := w.checker.Summarize(path)
		if err != nil {
			logger.Warn("failed to read spreadsheet", logging.Err(err))
			return fmt.Sprintf("Could not read %s: %v", name, err)
		}
		w.proposeEdits(ctx, path, logger)
		return fmt.Sprintf("Spreadsheet: %s\n%s", name, s)
	case textextract.Supported(path):
		text, err := w.extract(path)
		if err != nil {
			logger.Warn("failed to extract text", logging.Err(err))
			return fmt.Sprintf("Error reading file %s: %v", name, err)
		}
		return text
	default:
		return "Attachment: " + name
	}
}

// proposeEdits runs the data-quality check and, when it reports fixable
// issues, registers an approval and sends the prompt. It never blocks on the
// decision.
func (w *Worker) proposeEdits(ctx context.Context, path string, logger *slog.Logger) {
	analysis, err := w.checker.Analyze(path)
	if err != nil {
		logger.Warn("data-quality check failed", logging.Err(err))
		return
	}
	if !analysis.NeedsAction || len(analysis.Suggestions) == 0 {
		return
	}

	id, err := w.approvals.RequestApproval(
		describeEdits(filepath.Base(path), analysis),
		EditPayload{FilePath: path, Operations: analysis.Suggestions},
		ActionApplyEdits,
		ActionReportCancelled,
	)
	if err != nil {
		logger.Error("failed to register approval", logging.Err(err))
		return
	}

	if err := w.notifier.SendWithDecisionButtons(ctx, approval.FormatPrompt(id, analysis.Issues), id); err != nil {
		logger.Warn("failed to send approval prompt", logging.ApprovalID(id), logging.Err(err))
		return
	}
	logger.Info("approval requested", logging.ApprovalID(id), slog.Int("issues", len(analysis.Issues)))
}

// describeEdits summarizes the proposed change: the issues and the edits that fix them.
func describeEdits(name string, a sheet.Analysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Fix %d issue(s) in %s", len(a.Issues), name)
	for _, issue := range a.Issues {
		b.WriteString("\n- " + issue)
	}
	b.WriteString("\nEdits:")
	for _, op := range a.Suggestions {
		b.WriteString("\n- " + op.String())
	}
	return b.String()
}

// NotifyExpired tells the chat that an approval timed out. It is meant as the
// sweeper's callback.
func (w *Worker) NotifyExpired(ctx context.Context, req *approval.Request) {
	name := "the file"
	if p, ok := req.Payload.(EditPayload); ok {
		name = filepath.Base(p.FilePath)
	}
	w.send(ctx, fmt.Sprintf("⌛ Approval %s expired, %s was left unchanged", req.ID, name))
}

func (w *Worker) send(ctx context.Context, text string) {
	if err := w.notifier.Send(ctx, text); err != nil && !errors.Is(err, context.Canceled) {
		w.logger.Warn("failed to send chat message", logging.Err(err))
	}
}

// StripHTML removes tags from an HTML body.
func StripHTML(s string) string {
	return htmlTag.ReplaceAllString(s, "")
}
