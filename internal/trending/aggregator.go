package trending

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"moviescout/internal/domain"
	"moviescout/internal/domain/ports"
	"moviescout/internal/metrics"
)

const DefaultLimit = 5

type Config struct {
	// ImageBaseURL prefixes poster paths; empty uses the TMDB w500 base.
	ImageBaseURL string
	Limit        int
	Logger       *slog.Logger
}

// Aggregator keeps search-term popularity counters.
type Aggregator struct {
	store        ports.TrendingStore
	imageBaseURL string
	limit        int
	logger       *slog.Logger
}

func NewAggregator(store ports.TrendingStore, cfg Config) *Aggregator {
	limit := cfg.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		store:        store,
		imageBaseURL: cfg.ImageBaseURL,
		limit:        limit,
		logger:       logger,
	}
}

// NormalizeTerm trims the term and converts it to NFC so that canonically
// equivalent spellings share one counter.
func NormalizeTerm(term string) string {
	return norm.NFC.String(strings.TrimSpace(term))
}

// RecordHit bumps the counter for term, creating it from movie when the term
// is new.
func (a *Aggregator) RecordHit(ctx context.Context, term string, movie domain.MovieSummary) (domain.TrendingRecord, error) {
	term = NormalizeTerm(term)
	if term == "" {
		return domain.TrendingRecord{}, domain.ErrEmptyTerm
	}
	record, err := a.store.IncrementHit(ctx, domain.TrendingSeed{
		SearchTerm: term,
		MovieID:    movie.ID,
		PosterURL:  movie.PosterURL(a.imageBaseURL),
	})
	if err != nil {
		metrics.TrendingErrorsTotal.WithLabelValues("record").Inc()
		return domain.TrendingRecord{}, fmt.Errorf("record hit %q: %w", term, err)
	}
	metrics.TrendingHitsTotal.Inc()
	return record, nil
}

// ListTrending returns the most searched terms. Store failures are logged
// and yield an empty list.
func (a *Aggregator) ListTrending(ctx context.Context) []domain.TrendingRecord {
	records, err := a.store.Top(ctx, a.limit)
	if err != nil {
		metrics.TrendingErrorsTotal.WithLabelValues("list").Inc()
		a.logger.Error("trending list failed", slog.String("error", err.Error()))
		return []domain.TrendingRecord{}
	}
	if records == nil {
		return []domain.TrendingRecord{}
	}
	SortRecords(records)
	if len(records) > a.limit {
		records = records[:a.limit]
	}
	return records
}

func (a *Aggregator) Limit() int { return a.limit }

// SortRecords orders by count descending, most recently updated first on ties.
func SortRecords(records []domain.TrendingRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Count != records[j].Count {
			return records[i].Count > records[j].Count
		}
		return records[i].UpdatedAt.After(records[j].UpdatedAt)
	})
}
