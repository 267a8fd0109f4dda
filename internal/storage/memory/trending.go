package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"moviescout/internal/domain"
)

// TrendingStore keeps trending counters in process memory. Counts are lost on
// restart; it backs local development and tests.
type TrendingStore struct {
	mu      sync.RWMutex
	records map[string]*domain.TrendingRecord
	nextID  int64
	now     func() time.Time
}

type TrendingOption func(*TrendingStore)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) TrendingOption {
	return func(s *TrendingStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewTrendingStore(opts ...TrendingOption) *TrendingStore {
	s := &TrendingStore{
		records: make(map[string]*domain.TrendingRecord),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TrendingStore) IncrementHit(_ context.Context, seed domain.TrendingSeed) (domain.TrendingRecord, error) {
	if seed.SearchTerm == "" {
		return domain.TrendingRecord{}, domain.ErrEmptyTerm
	}
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[seed.SearchTerm]
	if !ok {
		s.nextID++
		record = &domain.TrendingRecord{
			ID:         strconv.FormatInt(s.nextID, 10),
			SearchTerm: seed.SearchTerm,
			MovieID:    seed.MovieID,
			PosterURL:  seed.PosterURL,
			CreatedAt:  now,
		}
		s.records[seed.SearchTerm] = record
	}
	record.Count++
	record.UpdatedAt = now
	return *record, nil
}

func (s *TrendingStore) Top(_ context.Context, limit int) ([]domain.TrendingRecord, error) {
	s.mu.RLock()
	out := make([]domain.TrendingRecord, 0, len(s.records))
	for _, record := range s.records {
		out = append(out, *record)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].SearchTerm < out[j].SearchTerm
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Get returns the record for an exact term.
func (s *TrendingStore) Get(_ context.Context, term string) (domain.TrendingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[term]
	if !ok {
		return domain.TrendingRecord{}, domain.ErrNotFound
	}
	return *record, nil
}

func (s *TrendingStore) Ping(context.Context) error { return nil }
