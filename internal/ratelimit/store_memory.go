package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps counters in process memory. Used when Redis is not
// configured. Counters vanish on restart, which is acceptable for a single
// node; multi-replica deployments should configure Redis.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*memoryCounter
	blocks   map[string]time.Time
	done     chan struct{}
	once     sync.Once
}

type memoryCounter struct {
	count     int64
	windowEnd time.Time
}

// NewMemoryStore creates an in-process store and starts its sweeper. Callers
// own the store and should Close it when done.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		counters: make(map[string]*memoryCounter),
		blocks:   make(map[string]time.Time),
		done:     make(chan struct{}),
	}
	go s.sweep()
	return s
}

// Close stops the sweeper. Safe to call more than once.
func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *MemoryStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	counter, ok := s.counters[key]
	if !ok || now.After(counter.windowEnd) {
		counter = &memoryCounter{windowEnd: now.Add(window)}
		s.counters[key] = counter
	}
	counter.count++
	return counter.count, counter.windowEnd.Sub(now), nil
}

func (s *MemoryStore) Decr(ctx context.Context, key string) error {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	counter, ok := s.counters[key]
	if !ok || now.After(counter.windowEnd) || counter.count == 0 {
		return nil
	}
	counter.count--
	return nil
}

func (s *MemoryStore) Block(ctx context.Context, key string, d time.Duration) error {
	s.mu.Lock()
	s.blocks[key] = time.Now().Add(d)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) BlockedFor(ctx context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	until, ok := s.blocks[key]
	if !ok {
		return 0, nil
	}
	remaining := time.Until(until)
	if remaining <= 0 {
		delete(s.blocks, key)
		return 0, nil
	}
	return remaining, nil
}

func (s *MemoryStore) IncrBreach(ctx context.Context, key string, period time.Duration) (int64, error) {
	count, _, err := s.Incr(ctx, key, period)
	return count, err
}

// sweep drops expired counters and blocks once a minute so idle keys do not
// accumulate.
func (s *MemoryStore) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for key, counter := range s.counters {
				if now.After(counter.windowEnd) {
					delete(s.counters, key)
				}
			}
			for key, until := range s.blocks {
				if now.After(until) {
					delete(s.blocks, key)
				}
			}
			s.mu.Unlock()
		}
	}
}
