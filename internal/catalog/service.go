package catalog

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"moviescout/internal/domain"
	"moviescout/internal/metrics"
	"moviescout/internal/providers/tmdb"
)

const (
	GenericErrorMessage = "Error fetching movies. Please try again later."
	FailedFetchMessage  = "Failed to fetch movies"
)

var tracer = otel.Tracer("moviescout/catalog")

// Catalog is the remote movie API.
type Catalog interface {
	SearchMovies(ctx context.Context, query string) (tmdb.MoviesResponse, error)
	DiscoverPopular(ctx context.Context) (tmdb.MoviesResponse, error)
}

// HitRecorder receives the top result of every successful non-empty search.
// Submit must not block.
type HitRecorder interface {
	Submit(term string, movie domain.MovieSummary) error
}

type Service struct {
	catalog  Catalog
	recorder HitRecorder
	logger   *slog.Logger
}

func NewService(catalog Catalog, recorder HitRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{catalog: catalog, recorder: recorder, logger: logger}
}

// FetchMovies runs exactly one catalog request for term. An empty or
// whitespace-only term lists popular movies instead of searching.
// Failures are reported through the returned QueryResult, never as errors.
func (s *Service) FetchMovies(ctx context.Context, term string) domain.QueryResult {
	term = strings.TrimSpace(term)

	ctx, span := tracer.Start(ctx, "catalog.FetchMovies", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	span.SetAttributes(attribute.String("movies.term", term))

	var (
		resp tmdb.MoviesResponse
		err  error
	)
	if term == "" {
		resp, err = s.catalog.DiscoverPopular(ctx)
	} else {
		resp, err = s.catalog.SearchMovies(ctx, term)
	}

	result := s.toResult(ctx, term, resp, err)
	metrics.QueryResultsTotal.WithLabelValues(string(result.Status())).Inc()
	if result.IsError() {
		span.SetStatus(codes.Error, result.Message())
		return result
	}

	movies := result.Movies()
	span.SetAttributes(attribute.Int("movies.count", len(movies)))
	if term != "" && len(movies) > 0 {
		s.recordHit(term, movies[0])
	}
	return result
}

func (s *Service) toResult(ctx context.Context, term string, resp tmdb.MoviesResponse, err error) domain.QueryResult {
	if err != nil {
		switch {
		case ctx.Err() != nil || errors.Is(err, context.Canceled):
			s.logger.Debug("movie fetch cancelled", slog.String("term", term))
		default:
			s.logger.Warn("movie fetch failed",
				slog.String("term", term),
				slog.String("error", err.Error()),
			)
		}
		return domain.FailureResult(GenericErrorMessage)
	}
	if resp.Failed() {
		message := strings.TrimSpace(resp.Error)
		if message == "" {
			message = FailedFetchMessage
		}
		s.logger.Warn("catalog rejected query",
			slog.String("term", term),
			slog.String("message", message),
		)
		return domain.FailureResult(message)
	}
	return domain.SuccessResult(resp.Results)
}

func (s *Service) recordHit(term string, movie domain.MovieSummary) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Submit(term, movie); err != nil {
		s.logger.Warn("trending hit not queued",
			slog.String("term", term),
			slog.String("error", err.Error()),
		)
	}
}
