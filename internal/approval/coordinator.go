package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teemow/inboxrelay/internal/instrumentation"
	"github.com/teemow/inboxrelay/internal/logging"
)

// Handler performs a resume action on a request payload.
type Handler func(ctx context.Context, payload any) (any, error)

// CoordinatorConfig configures a Coordinator. Zero values select the defaults.
type CoordinatorConfig struct {
	Logger  *slog.Logger
	Metrics *instrumentation.Metrics

	// NewID generates correlation ids. Defaults to uuid.NewString.
	NewID func() string
}

// Coordinator creates approval requests and resolves them.
type Coordinator struct {
	store   *Store
	newID   func() string
	logger  *slog.Logger
	metrics *instrumentation.Metrics

	mu       sync.RWMutex
	handlers map[Action]Handler
}

// NewCoordinator creates a coordinator backed by store.
func NewCoordinator(store *Store, cfg CoordinatorConfig) *Coordinator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return &Coordinator{
		store:    store,
		newID:    cfg.NewID,
		logger:   logging.WithComponent(cfg.Logger, "approval"),
		metrics:  cfg.Metrics,
		handlers: make(map[Action]Handler),
	}
}

// Register binds a resume action to its handler, replacing any previous binding.
func (c *Coordinator) Register(action Action, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[action] = h
}

// RequestApproval stores a new pending request and returns its id.
// Delivering the prompt to the human is the caller's job.
func (c *Coordinator) RequestApproval(prompt string, payload any, onApprove, onReject Action) (string, error) {
	req := &Request{
		ID:        c.newID(),
		Prompt:    prompt,
		Payload:   payload,
		OnApprove: onApprove,
		OnReject:  onReject,
	}
	if err := c.store.Put(req); err != nil {
		return "", fmt.Errorf("register approval %s: %w", req.ID, err)
	}

	c.metrics.RecordApprovalRequested(context.Background())
	c.logger.Info("approval requested",
		logging.ApprovalID(req.ID),
		slog.String("on_approve", string(onApprove)),
		slog.String("on_reject", string(onReject)))
	return req.ID, nil
}

// Resolve consumes the request for id and runs the branch selected by approved.
// It never returns an error or panics: every outcome is a Result.
func (c *Coordinator) Resolve(ctx context.Context, id string, approved bool) Result {
	decision := "reject"
	if approved {
		decision = "approve"
	}

	req, err := c.store.Take(id)
	if err != nil {
		if errors.Is(err, ErrExpired) {
			c.metrics.RecordApprovalsExpired(ctx, 1)
			c.metrics.RecordApprovalsRemoved(ctx, 1)
		}
		c.metrics.RecordApprovalResolved(ctx, decision, StatusNotFound.String(), 0)
		c.logger.Info("approval not found or expired", logging.ApprovalID(id), logging.Err(err))
		return Result{Status: StatusNotFound}
	}
	c.metrics.RecordApprovalsRemoved(ctx, 1)

	action, status := req.OnReject, StatusCancelled
	if approved {
		action, status = req.OnApprove, StatusResolved
	}

	start := time.Now()
	value, err := c.run(ctx, action, req.Payload)
	elapsed := time.Since(start)

	result := Result{Status: status, Value: value}
	if err != nil {
		result = Result{Status: StatusError, Message: err.Error()}
		c.logger.Warn("resume action failed",
			logging.ApprovalID(id),
			slog.String("action", string(action)),
			logging.Err(err))
	} else {
		c.logger.Info("approval resolved",
			logging.ApprovalID(id),
			slog.String("action", string(action)),
			logging.Status(status.String()))
	}

	c.metrics.RecordApprovalResolved(ctx, decision, result.Status.String(), elapsed)
	return result
}

// run executes the handler registered for action, converting panics into errors.
func (c *Coordinator) run(ctx context.Context, action Action, payload any) (value any, err error) {
	c.mu.RLock()
	h, ok := c.handlers[action]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no handler registered for action %q", action)
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("resume action panicked",
				slog.String("action", string(action)),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			value, err = nil, fmt.Errorf("action %s panicked: %v", action, r)
		}
	}()
	return h(ctx, payload)
}

// Sweep removes expired requests as of now and returns them.
func (c *Coordinator) Sweep(now time.Time) []*Request {
	expired := c.store.Sweep(now)
	if n := len(expired); n > 0 {
		ctx := context.Background()
		c.metrics.RecordApprovalsExpired(ctx, n)
		c.metrics.RecordApprovalsRemoved(ctx, n)
	}
	return expired
}

// DefaultSweepInterval is used by RunSweeper when given a non-positive interval.
const DefaultSweepInterval = 60 * time.Second

// RunSweeper sweeps every interval until ctx is done. onExpired, if not nil,
// is called for each removed request; it must not block for long.
func (c *Coordinator) RunSweeper(ctx context.Context, interval time.Duration, onExpired func(*Request)) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, req := range c.Sweep(c.store.Now()) {
				if onExpired != nil {
					onExpired(req)
				}
			}
		}
	}
}

// Pending returns the number of requests awaiting a decision.
func (c *Coordinator) Pending() int {
	return c.store.Len()
}
