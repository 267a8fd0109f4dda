package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"moviescout/internal/domain"
	"moviescout/internal/domain/ports"
)

var _ ports.TrendingStore = (*TrendingStore)(nil)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func TestIncrementHitCreatesThenIncrements(t *testing.T) {
	store := NewTrendingStore()
	ctx := context.Background()

	first, err := store.IncrementHit(ctx, domain.TrendingSeed{SearchTerm: "batman", MovieID: 268, PosterURL: "https://img/b.jpg"})
	if err != nil {
		t.Fatalf("IncrementHit: %v", err)
	}
	if first.Count != 1 || first.MovieID != 268 || first.PosterURL != "https://img/b.jpg" || first.ID == "" {
		t.Fatalf("unexpected created record: %#v", first)
	}

	second, err := store.IncrementHit(ctx, domain.TrendingSeed{SearchTerm: "batman", MovieID: 999, PosterURL: "other"})
	if err != nil {
		t.Fatalf("IncrementHit: %v", err)
	}
	if second.Count != 2 {
		t.Fatalf("count = %d, want 2", second.Count)
	}
	if second.MovieID != 268 || second.PosterURL != "https://img/b.jpg" || second.ID != first.ID {
		t.Fatalf("existing record fields changed: %#v", second)
	}
}

func TestIncrementHitTermsAreExact(t *testing.T) {
	store := NewTrendingStore()
	ctx := context.Background()
	_, _ = store.IncrementHit(ctx, domain.TrendingSeed{SearchTerm: "Batman"})
	_, _ = store.IncrementHit(ctx, domain.TrendingSeed{SearchTerm: "batman"})

	top, _ := store.Top(ctx, 10)
	if len(top) != 2 {
		t.Fatalf("records = %d, want 2 distinct terms", len(top))
	}
}

func TestIncrementHitEmptyTerm(t *testing.T) {
	store := NewTrendingStore()
	if _, err := store.IncrementHit(context.Background(), domain.TrendingSeed{}); !errors.Is(err, domain.ErrEmptyTerm) {
		t.Fatalf("err = %v, want ErrEmptyTerm", err)
	}
}

func TestIncrementHitConcurrent(t *testing.T) {
	store := NewTrendingStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.IncrementHit(ctx, domain.TrendingSeed{SearchTerm: "dune", MovieID: 438631})
		}()
	}
	wg.Wait()

	record, err := store.Get(ctx, "dune")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record.Count != 50 {
		t.Fatalf("count = %d, want 50", record.Count)
	}
}

func TestTopOrderAndLimit(t *testing.T) {
	clock := &stepClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := NewTrendingStore(WithClock(clock.Now))
	ctx := context.Background()

	hits := map[string]int{"a": 3, "b": 1, "c": 5, "d": 2, "e": 4, "f": 1}
	for _, term := range []string{"a", "b", "c", "d", "e", "f"} {
		for i := 0; i < hits[term]; i++ {
			_, _ = store.IncrementHit(ctx, domain.TrendingSeed{SearchTerm: term})
		}
	}

	top, err := store.Top(ctx, 5)
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	want := []string{"c", "e", "a", "d", "f"}
	if len(top) != len(want) {
		t.Fatalf("len = %d, want %d", len(top), len(want))
	}
	for i, term := range want {
		if top[i].SearchTerm != term {
			t.Fatalf("position %d = %q, want %q (got %#v)", i, top[i].SearchTerm, term, top)
		}
	}
}

func TestGetMissing(t *testing.T) {
	store := NewTrendingStore()
	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
