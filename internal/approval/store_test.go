package approval

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStore_Defaults(t *testing.T) {
	s := NewStore(StoreConfig{})
	assert.Equal(t, DefaultTimeout, s.Timeout())
	assert.Equal(t, 0, s.Len())
}

func TestStore_PutTake(t *testing.T) {
	clock := newFakeClock()
	s := NewStore(StoreConfig{Clock: clock})

	req := &Request{ID: "a", Prompt: "p", Payload: 42}
	require.NoError(t, s.Put(req))
	assert.Equal(t, clock.Now(), req.CreatedAt, "zero CreatedAt is stamped from the clock")
	assert.Equal(t, 1, s.Len())

	got, err := s.Take("a")
	require.NoError(t, err)
	assert.Same(t, req, got)
	assert.Equal(t, 0, s.Len())

	_, err = s.Take("a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_PutDuplicate(t *testing.T) {
	s := NewStore(StoreConfig{Clock: newFakeClock()})

	require.NoError(t, s.Put(&Request{ID: "dup"}))
	err := s.Put(&Request{ID: "dup"})
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.Equal(t, 1, s.Len())
}

func TestStore_PutKeepsCreatedAt(t *testing.T) {
	clock := newFakeClock()
	s := NewStore(StoreConfig{Clock: clock})

	created := clock.Now().Add(-time.Minute)
	req := &Request{ID: "a", CreatedAt: created}
	require.NoError(t, s.Put(req))
	assert.Equal(t, created, req.CreatedAt)
}

func TestStore_TakeExpiryBoundary(t *testing.T) {
	const timeout = 10 * time.Second

	tests := []struct {
		name    string
		elapsed time.Duration
		wantErr error
	}{
		{"fresh", 0, nil},
		{"just before timeout", timeout - time.Nanosecond, nil},
		{"exactly at timeout", timeout, ErrExpired},
		{"after timeout", timeout + time.Second, ErrExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			s := NewStore(StoreConfig{Timeout: timeout, Clock: clock})
			require.NoError(t, s.Put(&Request{ID: "x"}))

			clock.Advance(tt.elapsed)
			got, err := s.Take("x")
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, "x", got.ID)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, ErrNotFound, "expired is a kind of not found")
				assert.Nil(t, got)
			}
			assert.Equal(t, 0, s.Len(), "take removes the entry either way")
		})
	}
}

func TestStore_Sweep(t *testing.T) {
	clock := newFakeClock()
	s := NewStore(StoreConfig{Timeout: time.Minute, Clock: clock})

	start := clock.Now()
	require.NoError(t, s.Put(&Request{ID: "old"}))
	clock.Advance(30 * time.Second)
	require.NoError(t, s.Put(&Request{ID: "new"}))

	assert.Empty(t, s.Sweep(start.Add(59*time.Second)))

	removed := s.Sweep(start.Add(time.Minute))
	require.Len(t, removed, 1)
	assert.Equal(t, "old", removed[0].ID)
	assert.Equal(t, 1, s.Len())

	_, err := s.Take("old")
	assert.ErrorIs(t, err, ErrNotFound)

	removed = s.Sweep(start.Add(2 * time.Minute))
	require.Len(t, removed, 1)
	assert.Equal(t, "new", removed[0].ID)
	assert.Equal(t, 0, s.Len())
}

func TestStore_ConcurrentTakeExactlyOnce(t *testing.T) {
	s := NewStore(StoreConfig{Clock: newFakeClock()})
	require.NoError(t, s.Put(&Request{ID: "race"}))

	const goroutines = 64
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		notFound  atomic.Int32
	)
	start := make(chan struct{})
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := s.Take("race"); err == nil {
				successes.Add(1)
			} else if assert.ErrorIs(t, err, ErrNotFound) {
				notFound.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(goroutines-1), notFound.Load())
}

func TestStore_TakeAndSweepNeverRemoveSameEntry(t *testing.T) {
	clock := newFakeClock()
	s := NewStore(StoreConfig{Timeout: time.Minute, Clock: clock})

	const entries = 500
	for i := 0; i < entries; i++ {
		require.NoError(t, s.Put(&Request{ID: fmt.Sprintf("id-%d", i)}))
	}

	// Take sees live entries while Sweep is given a time past every expiry,
	// so both paths race to remove each id.
	sweepAt := clock.Now().Add(time.Hour)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		owner = make(map[string]string)
	)
	claim := func(id, by string) {
		mu.Lock()
		defer mu.Unlock()
		if prev, ok := owner[id]; ok {
			t.Errorf("id %s removed twice (%s and %s)", id, prev, by)
		}
		owner[id] = by
	}

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < entries; i++ {
				id := fmt.Sprintf("id-%d", i)
				if _, err := s.Take(id); err == nil {
					claim(id, "take")
				}
			}
		}()
	}
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				for _, req := range s.Sweep(sweepAt) {
					claim(req.ID, "sweep")
				}
			}
		}()
	}
	wg.Wait()

	for _, req := range s.Sweep(sweepAt) {
		claim(req.ID, "sweep")
	}
	assert.Len(t, owner, entries)
	assert.Equal(t, 0, s.Len())
}
