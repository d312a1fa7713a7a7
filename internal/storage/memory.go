// Package storage provides conversation history implementations.
package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hammamikhairi/voxturn/internal/domain"
	"github.com/hammamikhairi/voxturn/internal/logger"
)

// Compile-time interface check.
var _ domain.HistoryStore = (*MemoryStore)(nil)

// MemoryStore is an in-memory, bounded exchange log. Safe for concurrent access.
type MemoryStore struct {
	mu        sync.RWMutex
	exchanges []domain.Exchange
	limit     int
	log       *logger.Logger
	now       func() time.Time
}

// NewMemoryStore creates an empty store that keeps at most limit exchanges.
// A limit <= 0 keeps everything.
func NewMemoryStore(limit int, log *logger.Logger) *MemoryStore {
	return &MemoryStore{
		limit: limit,
		log:   log,
		now:   time.Now,
	}
}

// Append stores an exchange, assigning an ID and timestamp when missing.
func (s *MemoryStore) Append(ctx context.Context, ex domain.Exchange) (domain.Exchange, error) {
	if ex.ID == "" {
		ex.ID = uuid.NewString()
	}
	if ex.At.IsZero() {
		ex.At = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.exchanges = append(s.exchanges, ex)
	if s.limit > 0 && len(s.exchanges) > s.limit {
		dropped := len(s.exchanges) - s.limit
		s.exchanges = append([]domain.Exchange(nil), s.exchanges[dropped:]...)
		s.log.Debug("history trimmed %d old exchange(s)", dropped)
	}
	s.log.Debug("stored exchange %s (history=%d)", ex.ID, len(s.exchanges))
	return ex, nil
}

// Recent returns up to n of the newest exchanges, oldest first.
// n <= 0 returns nothing.
func (s *MemoryStore) Recent(ctx context.Context, n int) ([]domain.Exchange, error) {
	if n <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	start := len(s.exchanges) - n
	if start < 0 {
		start = 0
	}
	out := make([]domain.Exchange, len(s.exchanges)-start)
	copy(out, s.exchanges[start:])
	return out, nil
}

// All returns every stored exchange, oldest first.
func (s *MemoryStore) All(ctx context.Context) ([]domain.Exchange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Exchange(nil), s.exchanges...), nil
}

// Clear forgets the whole conversation.
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	n := len(s.exchanges)
	s.exchanges = nil
	s.mu.Unlock()

	s.log.Debug("history cleared (%d exchanges)", n)
	return nil
}
