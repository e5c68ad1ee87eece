package poller

import (
	"context"
	"errors"

	"github.com/teemow/inboxrelay/internal/approval"
	"github.com/teemow/inboxrelay/internal/chat"
	"github.com/teemow/inboxrelay/internal/instrumentation"
	"github.com/teemow/inboxrelay/internal/logging"
)

// Acknowledgement texts shown on the pressed button.
const (
	AckApprove = "✅ Processing..."
	AckReject  = "❌ Cancelled"
)

// SavedFile is implemented by resume action results that produced a file.
type SavedFile interface {
	SavedPath() string
}

// Dispatch handles one inbound event. Events without a decision prefix are
// ignored. Decisions are acknowledged first, then resolved, then the result is
// sent to the chat. Transport failures are logged and never returned.
func (p *Poller) Dispatch(ctx context.Context, ev chat.Event) {
	id, approved, ok := chat.ParseDecision(ev.ActionIdentifier)
	if !ok {
		p.cfg.Metrics.RecordInboundEvent(ctx, "ignored")
		p.logger.Debug("ignoring inbound event", logging.Sequence(ev.Sequence))
		return
	}

	decision := instrumentation.NewDecision(id, approved).WithApprover(ev.From).WithSequence(ev.Sequence)
	ack := AckReject
	if approved {
		ack = AckApprove
	}
	p.cfg.Metrics.RecordInboundEvent(ctx, decision.DecisionLabel())

	if err := p.cfg.Transport.Acknowledge(ctx, ev, ack); err != nil {
		p.logger.Warn("failed to acknowledge decision", logging.ApprovalID(id), logging.Err(err))
	}

	ctx, span := instrumentation.StartSpan(ctx, "poller.resolve",
		instrumentation.NewSpanAttributeBuilder().WithApproval(id, approved).WithSequence(ev.Sequence).Build()...)
	defer span.End()

	res := p.cfg.Resolver.Resolve(ctx, id, approved)
	instrumentation.SetSpanResult(span, res.Status.String())
	if res.Status == approval.StatusError {
		instrumentation.SetSpanError(span, errors.New(res.Message))
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	p.cfg.Audit.LogDecision(decision.WithTrace(ctx).Complete(res.Status.String(), res.Message))

	if err := p.cfg.Notifier.Send(ctx, ResultMessage(res)); err != nil {
		p.logger.Warn("failed to send decision result", logging.ApprovalID(id), logging.Err(err))
	}
}

// ResultMessage renders the chat message reporting a Result.
func ResultMessage(res approval.Result) string {
	switch res.Status {
	case approval.StatusError:
		return "❌ Error: " + res.Message
	case approval.StatusNotFound:
		return "❌ Error: " + approval.ErrNotFound.Error()
	case approval.StatusCancelled:
		return "❌ Operation cancelled"
	}
	if f, ok := res.Value.(SavedFile); ok && f.SavedPath() != "" {
		return "✅ File edited and saved:\n\n📁 " + f.SavedPath()
	}
	return "✅ Operation completed"
}
