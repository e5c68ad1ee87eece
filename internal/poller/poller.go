package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teemow/inboxrelay/internal/approval"
	"github.com/teemow/inboxrelay/internal/chat"
	"github.com/teemow/inboxrelay/internal/cursor"
	"github.com/teemow/inboxrelay/internal/instrumentation"
	"github.com/teemow/inboxrelay/internal/logging"
)

// Default timings of the poll loop.
const (
	DefaultWait            = 30 * time.Second
	DefaultInterval        = 1 * time.Second
	DefaultConflictBackoff = 10 * time.Second
	DefaultErrorBackoff    = 5 * time.Second
)

// Resolver resolves approval decisions.
type Resolver interface {
	Resolve(ctx context.Context, id string, approved bool) approval.Result
}

// Config configures a Poller. Transport, Notifier and Resolver are required.
type Config struct {
	Transport chat.Transport
	Notifier  chat.Notifier
	Resolver  Resolver

	// Cursor persists the poll position. Defaults to an in-memory store.
	Cursor cursor.Store

	Wait            time.Duration
	Interval        time.Duration
	ConflictBackoff time.Duration
	ErrorBackoff    time.Duration

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
	Audit   *instrumentation.AuditLogger
}

// Poller is the inbound event loop. It is either stopped or polling.
type Poller struct {
	cfg    Config
	logger *slog.Logger

	running atomic.Bool
	gen     atomic.Uint64
	cursor  atomic.Int64

	mu   sync.Mutex
	done chan struct{}
}

// New creates a stopped Poller.
func New(cfg Config) *Poller {
	if cfg.Cursor == nil {
		cfg.Cursor = cursor.NewMemory()
	}
	if cfg.Wait <= 0 {
		cfg.Wait = DefaultWait
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.ConflictBackoff <= 0 {
		cfg.ConflictBackoff = DefaultConflictBackoff
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = DefaultErrorBackoff
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	done := make(chan struct{})
	close(done)
	return &Poller{
		cfg:    cfg,
		logger: logging.WithComponent(cfg.Logger, "poller"),
		done:   done,
	}
}

// Start launches the loop. It returns false without doing anything when the
// poller is already running. Cancelling ctx also ends the loop.
func (p *Poller) Start(ctx context.Context) bool {
	if !p.running.CompareAndSwap(false, true) {
		return false
	}
	gen := p.gen.Add(1)

	if seq, err := p.cfg.Cursor.Load(ctx); err != nil {
		p.logger.Warn("failed to load poll cursor, keeping current position", logging.Err(err))
	} else {
		p.advance(seq)
	}

	done := make(chan struct{})
	p.mu.Lock()
	p.done = done
	p.mu.Unlock()

	p.logger.Info("inbound polling started", logging.Sequence(p.cursor.Load()))
	go p.loop(ctx, gen, done)
	return true
}

// Stop clears the running flag. It is idempotent.
func (p *Poller) Stop() {
	if p.running.CompareAndSwap(true, false) {
		p.logger.Info("inbound polling stopping")
	}
}

// Running reports whether the loop is active.
func (p *Poller) Running() bool {
	return p.running.Load()
}

// Done is closed when the most recently started loop has exited.
func (p *Poller) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Cursor returns the last processed sequence number.
func (p *Poller) Cursor() int64 {
	return p.cursor.Load()
}

func (p *Poller) loop(ctx context.Context, gen uint64, done chan struct{}) {
	defer close(done)
	defer func() {
		if p.gen.Load() == gen {
			p.running.Store(false)
		}
		p.logger.Info("inbound polling stopped", logging.Sequence(p.cursor.Load()))
	}()

	for p.running.Load() && p.gen.Load() == gen {
		delay := p.cfg.Interval

		if err := p.PollOnce(ctx); err != nil {
			switch {
			case ctx.Err() != nil:
				return
			case errors.Is(err, chat.ErrConflict):
				p.cfg.Metrics.RecordPollError(ctx, instrumentation.PollErrorConflict)
				p.logger.Warn("another poller is active on this channel, backing off",
					slog.Duration("backoff", p.cfg.ConflictBackoff))
				delay = p.cfg.ConflictBackoff
			default:
				p.cfg.Metrics.RecordPollError(ctx, instrumentation.PollErrorTransient)
				p.logger.Error("poll failed, backing off",
					logging.Err(err),
					slog.Duration("backoff", p.cfg.ErrorBackoff))
				delay = p.cfg.ErrorBackoff
			}
		}

		if !sleep(ctx, delay) {
			return
		}
	}
}

// PollOnce performs one long poll and dispatches every returned event in order.
// The cursor advances past each event before it is dispatched.
func (p *Poller) PollOnce(ctx context.Context) error {
	events, err := p.cfg.Transport.Poll(ctx, p.cursor.Load(), p.cfg.Wait)
	if err != nil {
		return err
	}

	for _, ev := range events {
		if p.advance(ev.Sequence) {
			if err := p.cfg.Cursor.Save(ctx, ev.Sequence); err != nil {
				p.logger.Warn("failed to persist poll cursor", logging.Sequence(ev.Sequence), logging.Err(err))
			}
		}
		p.Dispatch(ctx, ev)
	}
	return nil
}

// advance moves the cursor forward to seq. It never moves backwards.
func (p *Poller) advance(seq int64) bool {
	for {
		cur := p.cursor.Load()
		if seq <= cur {
			return false
		}
		if p.cursor.CompareAndSwap(cur, seq) {
			return true
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
