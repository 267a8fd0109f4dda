package ports

import (
	"context"

	"moviescout/internal/domain"
)

// TrendingStore persists per-term search counters.
//
// IncrementHit must be atomic: it bumps the counter of the record matching
// seed.SearchTerm exactly, or creates one with count 1 and the seed's movie
// fields. An existing record's movie fields are never overwritten.
type TrendingStore interface {
	IncrementHit(ctx context.Context, seed domain.TrendingSeed) (domain.TrendingRecord, error)
	Top(ctx context.Context, limit int) ([]domain.TrendingRecord, error)
}

// Pinger reports backend reachability for readiness probes.
type Pinger interface {
	Ping(ctx context.Context) error
}
