package approval

import (
	"log/slog"
	"sync"
	"time"

	"github.com/teemow/inboxrelay/internal/logging"
)

// DefaultTimeout is how long a request stays resolvable.
const DefaultTimeout = 300 * time.Second

// StoreConfig configures a Store. Zero values select the defaults.
type StoreConfig struct {
	Timeout time.Duration
	Clock   Clock
	Logger  *slog.Logger
}

// Store holds pending requests keyed by id. All methods are safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	entries map[string]*Request
	timeout time.Duration
	clock   Clock
	logger  *slog.Logger
}

// NewStore creates an empty store.
func NewStore(cfg StoreConfig) *Store {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Store{
		entries: make(map[string]*Request),
		timeout: cfg.Timeout,
		clock:   cfg.Clock,
		logger:  logging.WithComponent(cfg.Logger, "approval_store"),
	}
}

// Timeout returns the configured expiry window.
func (s *Store) Timeout() time.Duration {
	return s.timeout
}

// Now returns the store clock's current time.
func (s *Store) Now() time.Time {
	return s.clock.Now()
}

// Put inserts req. A zero CreatedAt is stamped from the store clock.
func (s *Store) Put(req *Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[req.ID]; ok {
		return ErrDuplicateID
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = s.clock.Now()
	}
	s.entries[req.ID] = req
	return nil
}

// Take removes and returns the request for id. It fails with ErrNotFound when
// the id is absent and with ErrExpired when its timeout has elapsed; an
// expired entry is removed either way.
func (s *Store) Take(id string) (*Request, error) {
	now := s.clock.Now()

	s.mu.Lock()
	req, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
	}
	s.mu.Unlock()

	if !ok {
		return nil, ErrNotFound
	}
	if s.expired(req, now) {
		s.logger.Info("removed expired approval on take",
			logging.ApprovalID(id),
			slog.Duration("age", now.Sub(req.CreatedAt)))
		return nil, ErrExpired
	}
	return req, nil
}

// Sweep removes every entry whose age at now is at least the timeout and
// returns them. Resume actions are never run.
func (s *Store) Sweep(now time.Time) []*Request {
	s.mu.Lock()
	var removed []*Request
	for id, req := range s.entries {
		if s.expired(req, now) {
			delete(s.entries, id)
			removed = append(removed, req)
		}
	}
	s.mu.Unlock()

	for _, req := range removed {
		s.logger.Info("removed expired approval",
			logging.ApprovalID(req.ID),
			slog.Duration("age", now.Sub(req.CreatedAt)))
	}
	return removed
}

// Len returns the number of pending requests, including expired ones not yet swept.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) expired(req *Request, now time.Time) bool {
	return !now.Before(req.CreatedAt.Add(s.timeout))
}
