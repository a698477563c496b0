package ratelimit

import (
	"context"
	"sync"
	"time"

	"botevents-api/internal/model"
)

// MemoryStore is a process-local Store guarded by a mutex.
// State does not survive a restart and is not shared between replicas.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]model.AuthAttemptRecord
	now     func() time.Time

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

// NewMemoryStore creates an in-memory store. When cleanupInterval is positive
// a background goroutine also drops expired lockouts nobody has observed.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		records:         make(map[string]model.AuthAttemptRecord),
		now:             time.Now,
		cleanupInterval: cleanupInterval,
		stopCleanup:     make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go s.cleanup()
	}
	return s
}

// Observe returns the record for origin, resetting an expired lockout.
func (s *MemoryStore) Observe(_ context.Context, origin string, now time.Time) (model.AuthAttemptRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[origin]
	if !ok {
		return model.AuthAttemptRecord{}, nil
	}
	if rec.Expired(now) {
		delete(s.records, origin)
		return model.AuthAttemptRecord{}, nil
	}
	return rec, nil
}

// Increment records one failure for origin.
func (s *MemoryStore) Increment(_ context.Context, origin string, now time.Time, threshold int, lockout time.Duration) (model.AuthAttemptRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.records[origin]
	if rec.Expired(now) {
		rec = model.AuthAttemptRecord{}
	}
	rec.Count++
	if rec.BlockedUntil.IsZero() && rec.Count >= threshold {
		rec.BlockedUntil = now.Add(lockout)
	}
	s.records[origin] = rec
	return rec, nil
}

// Delete removes the record for origin.
func (s *MemoryStore) Delete(_ context.Context, origin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, origin)
	return nil
}

// Len returns the number of tracked origins.
func (s *MemoryStore) Len(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.records), nil
}

// Close stops the background cleanup goroutine.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopCleanup) })
	return nil
}

// cleanup periodically removes expired lockouts.
func (s *MemoryStore) cleanup() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.removeExpired()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *MemoryStore) removeExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for origin, rec := range s.records {
		if rec.Expired(now) {
			delete(s.records, origin)
		}
	}
}

var _ Store = (*MemoryStore)(nil)
