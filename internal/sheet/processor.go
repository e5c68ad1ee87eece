package sheet

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/teemow/inboxrelay/internal/logging"
)

// DefaultSuffix is appended to the base name of corrected files.
const DefaultSuffix = "_corrected"

// timestampLayout is the suffix that keeps repeated corrections apart.
const timestampLayout = "20060102_150405"

// Config configures a Processor.
type Config struct {
	Logger *slog.Logger

	// Now stamps persisted file names. Defaults to time.Now.
	Now func() time.Time
}

// Processor analyzes spreadsheets and applies corrections to them.
type Processor struct {
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Processor.
func New(cfg Config) *Processor {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Processor{
		logger: logging.WithComponent(cfg.Logger, "sheet"),
		now:    cfg.Now,
	}
}

// Summarize loads path and renders its summary.
func (p *Processor) Summarize(path string) (string, error) {
	t, err := Load(path)
	if err != nil {
		return "", err
	}
	return Summarize(t), nil
}

// Analyze loads path and reports its data-quality issues. A file that cannot be
// read yields an Analysis carrying the error as its only issue, plus the error.
func (p *Processor) Analyze(path string) (Analysis, error) {
	t, err := Load(path)
	if err != nil {
		p.logger.Warn("spreadsheet analysis failed", logging.File(filepath.Base(path)), logging.Err(err))
		return Analysis{Issues: []string{"Error analyzing: " + err.Error()}}, err
	}

	a := Analyze(t)
	p.logger.Debug("spreadsheet analyzed",
		logging.File(filepath.Base(path)),
		slog.Int("issues", len(a.Issues)),
		slog.Int("rows", a.RowCount))
	return a, nil
}

// Apply loads path and applies ops in order. Operations that fail are logged
// and skipped; the returned count covers only the ones that took effect.
func (p *Processor) Apply(path string, ops []Operation) (*Table, int, error) {
	t, err := Load(path)
	if err != nil {
		return nil, 0, err
	}

	// Later operations may still name a column by its pre-rename name.
	renamed := make(map[string]string)
	applied := 0
	for _, op := range ops {
		from := op.Column
		if cur, ok := renamed[from]; ok && t.ColumnIndex(from) < 0 {
			op.Column = cur
		}
		if err := op.apply(t); err != nil {
			p.logger.Warn("skipping edit operation",
				logging.File(filepath.Base(path)),
				slog.String("type", string(op.Type)),
				slog.String("column", op.Column),
				logging.Err(err))
			continue
		}
		if op.Type == OpRenameColumn {
			renamed[from] = op.NewName
		}
		applied++
	}
	return t, applied, nil
}

// Persist writes t next to originalPath as <name><suffix>_<timestamp><ext>
// and returns the new path. The original file is left untouched.
func (p *Processor) Persist(t *Table, originalPath, suffix string) (string, error) {
	dir := filepath.Dir(originalPath)
	ext := filepath.Ext(originalPath)
	name := strings.TrimSuffix(filepath.Base(originalPath), ext)

	target := filepath.Join(dir, fmt.Sprintf("%s%s_%s%s", name, suffix, p.now().Format(timestampLayout), ext))
	if err := write(t, target); err != nil {
		_ = os.Remove(target)
		return "", fmt.Errorf("save %s: %w", filepath.Base(target), err)
	}

	p.logger.Info("corrected file saved", logging.File(filepath.Base(target)))
	return target, nil
}
