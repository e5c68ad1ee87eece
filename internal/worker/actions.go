package worker

import (
	"context"
	"fmt"

	"github.com/teemow/inboxrelay/internal/approval"
	"github.com/teemow/inboxrelay/internal/sheet"
)

// Resume actions registered with the coordinator.
const (
	ActionApplyEdits      approval.Action = "apply_edits"
	ActionReportCancelled approval.Action = "report_cancelled"
)

// EditPayload is the data an approval needs to apply suggested edits.
type EditPayload struct {
	FilePath   string
	Operations []sheet.Operation
}

// EditOutcome is returned by apply_edits.
type EditOutcome struct {
	FilePath string
	Applied  int
}

// SavedPath returns the path of the corrected file.
func (o EditOutcome) SavedPath() string { return o.FilePath }

// CancelOutcome is returned by report_cancelled.
type CancelOutcome struct {
	Cancelled bool
}

// RegisterActions binds the worker's resume actions on c.
func (w *Worker) RegisterActions(c *approval.Coordinator) {
	c.Register(ActionApplyEdits, w.applyEdits)
	c.Register(ActionReportCancelled, reportCancelled)
}

func (w *Worker) applyEdits(_ context.Context, payload any) (any, error) {
	var p EditPayload
	switch v := payload.(type) {
	case EditPayload:
		p = v
	case *EditPayload:
		if v == nil {
			return nil, fmt.Errorf("apply_edits: nil payload")
		}
		p = *v
	default:
		return nil, fmt.Errorf("apply_edits: unexpected payload %T", payload)
	}

	table, applied, err := w.editor.Apply(p.FilePath, p.Operations)
	if err != nil {
		return nil, err
	}
	path, err := w.editor.Persist(table, p.FilePath, w.suffix)
	if err != nil {
		return nil, err
	}
	return EditOutcome{FilePath: path, Applied: applied}, nil
}

func reportCancelled(context.Context, any) (any, error) {
	return CancelOutcome{Cancelled: true}, nil
}
