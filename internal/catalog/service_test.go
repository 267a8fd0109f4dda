package catalog

import (
	"context"
	"sync"
	"testing"

	"moviescout/internal/domain"
	"moviescout/internal/providers/tmdb"
)

type fakeCatalog struct {
	mu            sync.Mutex
	searchCalls   []string
	discoverCalls int
	resp          tmdb.MoviesResponse
	err           error
}

func (c *fakeCatalog) SearchMovies(_ context.Context, query string) (tmdb.MoviesResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.searchCalls = append(c.searchCalls, query)
	return c.resp, c.err
}

func (c *fakeCatalog) DiscoverPopular(context.Context) (tmdb.MoviesResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.discoverCalls++
	return c.resp, c.err
}

type hit struct {
	term  string
	movie domain.MovieSummary
}

type fakeRecorder struct {
	hits []hit
	err  error
}

func (r *fakeRecorder) Submit(term string, movie domain.MovieSummary) error {
	r.hits = append(r.hits, hit{term: term, movie: movie})
	return r.err
}

func movies(ids ...int) []domain.MovieSummary {
	out := make([]domain.MovieSummary, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.MovieSummary{ID: id, Title: "movie"})
	}
	return out
}

func TestFetchMoviesEmptyTermDiscovers(t *testing.T) {
	cat := &fakeCatalog{resp: tmdb.MoviesResponse{Results: movies(1, 2, 3)}}
	rec := &fakeRecorder{}
	svc := NewService(cat, rec, nil)

	for _, term := range []string{"", "   "} {
		result := svc.FetchMovies(context.Background(), term)
		if !result.IsSuccess() || len(result.Movies()) != 3 {
			t.Fatalf("term %q: unexpected result %q (%d movies)", term, result.Status(), len(result.Movies()))
		}
	}
	if cat.discoverCalls != 2 || len(cat.searchCalls) != 0 {
		t.Fatalf("discover=%d search=%v", cat.discoverCalls, cat.searchCalls)
	}
	if len(rec.hits) != 0 {
		t.Fatalf("empty term must not record hits, got %d", len(rec.hits))
	}
}

func TestFetchMoviesRecordsFirstResult(t *testing.T) {
	cat := &fakeCatalog{resp: tmdb.MoviesResponse{Results: movies(268, 414)}}
	rec := &fakeRecorder{}
	svc := NewService(cat, rec, nil)

	result := svc.FetchMovies(context.Background(), "  batman ")
	if !result.IsSuccess() || len(result.Movies()) != 2 {
		t.Fatalf("unexpected result %q", result.Status())
	}
	if len(cat.searchCalls) != 1 || cat.searchCalls[0] != "batman" {
		t.Fatalf("search calls = %v", cat.searchCalls)
	}
	if len(rec.hits) != 1 || rec.hits[0].term != "batman" || rec.hits[0].movie.ID != 268 {
		t.Fatalf("hits = %#v", rec.hits)
	}
}

func TestFetchMoviesNoResultsNoHit(t *testing.T) {
	cat := &fakeCatalog{resp: tmdb.MoviesResponse{}}
	rec := &fakeRecorder{}
	svc := NewService(cat, rec, nil)

	result := svc.FetchMovies(context.Background(), "zzzzqqq")
	if !result.IsSuccess() {
		t.Fatalf("status = %q, want success", result.Status())
	}
	if result.Movies() == nil || len(result.Movies()) != 0 {
		t.Fatalf("missing results must become empty list, got %v", result.Movies())
	}
	if len(rec.hits) != 0 {
		t.Fatalf("no-result search recorded %d hits", len(rec.hits))
	}
}

func TestFetchMoviesTransportFailure(t *testing.T) {
	cat := &fakeCatalog{err: &tmdb.StatusError{StatusCode: 503}}
	rec := &fakeRecorder{}
	svc := NewService(cat, rec, nil)

	result := svc.FetchMovies(context.Background(), "batman")
	if !result.IsError() || result.Message() != GenericErrorMessage {
		t.Fatalf("result = %q %q", result.Status(), result.Message())
	}
	if len(cat.searchCalls) != 1 {
		t.Fatalf("failed request must not be retried, calls = %d", len(cat.searchCalls))
	}
	if len(rec.hits) != 0 {
		t.Fatal("failed search recorded a hit")
	}
}

func TestFetchMoviesRejectedPayload(t *testing.T) {
	tests := []struct {
		name string
		resp tmdb.MoviesResponse
		want string
	}{
		{"with message", tmdb.MoviesResponse{Response: "False", Error: "Invalid API key"}, "Invalid API key"},
		{"without message", tmdb.MoviesResponse{Response: "False"}, FailedFetchMessage},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewService(&fakeCatalog{resp: tc.resp}, &fakeRecorder{}, nil)
			result := svc.FetchMovies(context.Background(), "x")
			if !result.IsError() || result.Message() != tc.want {
				t.Fatalf("result = %q %q, want error %q", result.Status(), result.Message(), tc.want)
			}
		})
	}
}

func TestFetchMoviesRecorderFailureIgnored(t *testing.T) {
	cat := &fakeCatalog{resp: tmdb.MoviesResponse{Results: movies(7)}}
	rec := &fakeRecorder{err: domain.ErrQueueFull}
	svc := NewService(cat, rec, nil)

	result := svc.FetchMovies(context.Background(), "se7en")
	if !result.IsSuccess() || len(result.Movies()) != 1 {
		t.Fatalf("recorder failure changed result: %q", result.Status())
	}
}

func TestFetchMoviesCancelled(t *testing.T) {
	cat := &fakeCatalog{err: context.Canceled}
	svc := NewService(cat, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := svc.FetchMovies(ctx, "x")
	if !result.IsError() || result.Message() != GenericErrorMessage {
		t.Fatalf("result = %q %q", result.Status(), result.Message())
	}
}
