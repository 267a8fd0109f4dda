package tmdb

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewClient(Config{APIKey: "secret", BaseURL: srv.URL + "/", Client: srv.Client()}), &calls
}

func TestSearchMoviesRequest(t *testing.T) {
	var gotPath, gotQuery, gotAuth, gotAccept string
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"page":1,"results":[{"id":268,"title":"Batman","poster_path":"/b.jpg","vote_average":7.1,"release_date":"1989-06-23","original_language":"en"}]}`))
	})

	resp, err := client.SearchMovies(context.Background(), "batman & robin")
	if err != nil {
		t.Fatalf("SearchMovies: %v", err)
	}
	if *calls != 1 {
		t.Fatalf("calls = %d, want 1", *calls)
	}
	if gotPath != "/search/movie" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotQuery != "query=batman%20%26%20robin" {
		t.Fatalf("raw query = %q", gotQuery)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("authorization = %q", gotAuth)
	}
	if gotAccept != "application/json" {
		t.Fatalf("accept = %q", gotAccept)
	}
	if len(resp.Results) != 1 || resp.Results[0].ID != 268 || resp.Results[0].Title != "Batman" {
		t.Fatalf("unexpected results: %#v", resp.Results)
	}
	if resp.Results[0].PosterPath == nil || *resp.Results[0].PosterPath != "/b.jpg" {
		t.Fatalf("poster path not decoded: %#v", resp.Results[0])
	}
}

func TestDiscoverPopularRequest(t *testing.T) {
	var gotPath, gotSort string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotSort = r.URL.Query().Get("sort_by")
		_, _ = w.Write([]byte(`{"page":1,"results":[]}`))
	})

	resp, err := client.DiscoverPopular(context.Background())
	if err != nil {
		t.Fatalf("DiscoverPopular: %v", err)
	}
	if gotPath != "/discover/movie" || gotSort != "popularity.desc" {
		t.Fatalf("unexpected request %s sort_by=%s", gotPath, gotSort)
	}
	if len(resp.Results) != 0 {
		t.Fatalf("expected no results, got %d", len(resp.Results))
	}
}

func TestNonSuccessStatusReturnsStatusError(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status_message":"Invalid API key"}`, http.StatusUnauthorized)
	})

	_, err := client.SearchMovies(context.Background(), "x")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d", statusErr.StatusCode)
	}
	if *calls != 1 {
		t.Fatalf("non-2xx must not be retried, calls = %d", *calls)
	}
}

func TestFailurePayloadDecoded(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Response":"False","Error":"Invalid API key"}`))
	})

	resp, err := client.SearchMovies(context.Background(), "x")
	if err != nil {
		t.Fatalf("SearchMovies: %v", err)
	}
	if !resp.Failed() || resp.Error != "Invalid API key" {
		t.Fatalf("unexpected payload: %#v", resp)
	}
}

func TestMalformedBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	})

	if _, err := client.DiscoverPopular(context.Background()); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestCancelledContext(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.SearchMovies(ctx, "x"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestOutcomeLabels(t *testing.T) {
	if got := outcome(MoviesResponse{}, nil); got != "ok" {
		t.Fatalf("ok outcome = %q", got)
	}
	if got := outcome(MoviesResponse{Response: "False"}, nil); got != "rejected" {
		t.Fatalf("rejected outcome = %q", got)
	}
	if got := outcome(MoviesResponse{}, &StatusError{StatusCode: 500}); got != "http_error" {
		t.Fatalf("http_error outcome = %q", got)
	}
	if got := outcome(MoviesResponse{}, errors.New("dial")); got != "error" {
		t.Fatalf("error outcome = %q", got)
	}
}
