package redisstore

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"moviescout/internal/domain"
	"moviescout/internal/domain/ports"
)

var _ ports.TrendingStore = (*TrendingStore)(nil)

func TestRecordFromHash(t *testing.T) {
	now := time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)
	record := recordFromHash("alien", 3, map[string]string{
		"id":        "17",
		"movieId":   "348",
		"posterUrl": "https://image.tmdb.org/t/p/w500/a.jpg",
		"createdAt": fmt.Sprint(now.UnixMilli()),
		"updatedAt": fmt.Sprint(now.Add(time.Minute).UnixMilli()),
	})

	if record.ID != "17" || record.SearchTerm != "alien" || record.Count != 3 || record.MovieID != 348 {
		t.Fatalf("unexpected record: %#v", record)
	}
	if !record.CreatedAt.Equal(now) || !record.UpdatedAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("times = %v / %v", record.CreatedAt, record.UpdatedAt)
	}
}

func TestRecordFromHashMissingFields(t *testing.T) {
	record := recordFromHash("x", 1, map[string]string{})
	if record.MovieID != 0 || !record.CreatedAt.IsZero() || record.Count != 1 {
		t.Fatalf("unexpected record: %#v", record)
	}
}

func TestKeys(t *testing.T) {
	s := NewTrendingStore(nil, "")
	if s.countsKey() != "moviescout:trending:counts" {
		t.Fatalf("counts key = %q", s.countsKey())
	}
	if s.termKey("dune") != "moviescout:trending:term:dune" {
		t.Fatalf("term key = %q", s.termKey("dune"))
	}
}

// setupTestStore connects to REDIS_TEST_URL (default localhost:6379) and
// skips when Redis is unreachable.
func setupTestStore(t *testing.T) *TrendingStore {
	t.Helper()
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		url = "redis://localhost:6379/15"
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse REDIS_TEST_URL: %v", err)
	}
	opts.DialTimeout = 2 * time.Second
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Redis not available at %s: %v", url, err)
	}

	prefix := fmt.Sprintf("moviescout_test_%d:", time.Now().UnixNano())
	store := NewTrendingStore(client, prefix)
	t.Cleanup(func() {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel2()
		keys, _ := client.Keys(ctx2, prefix+"*").Result()
		if len(keys) > 0 {
			_ = client.Del(ctx2, keys...).Err()
		}
		_ = client.Close()
	})
	return store
}

func TestIntegrationIncrementHit(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	first, err := store.IncrementHit(ctx, domain.TrendingSeed{SearchTerm: "batman", MovieID: 268, PosterURL: "/b.jpg"})
	if err != nil {
		t.Fatalf("IncrementHit: %v", err)
	}
	if first.Count != 1 || first.MovieID != 268 || first.ID == "" {
		t.Fatalf("unexpected created record: %#v", first)
	}

	second, err := store.IncrementHit(ctx, domain.TrendingSeed{SearchTerm: "batman", MovieID: 1, PosterURL: "/other.jpg"})
	if err != nil {
		t.Fatalf("IncrementHit: %v", err)
	}
	if second.Count != 2 || second.ID != first.ID || second.MovieID != 268 || second.PosterURL != "/b.jpg" {
		t.Fatalf("second hit = %#v", second)
	}
}

func TestIntegrationConcurrentHits(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.IncrementHit(ctx, domain.TrendingSeed{SearchTerm: "dune"})
		}()
	}
	wg.Wait()

	top, err := store.Top(ctx, 5)
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	if len(top) != 1 || top[0].Count != 25 {
		t.Fatalf("top = %#v", top)
	}
}

func TestIntegrationTopOrder(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	store.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	for _, h := range []struct {
		term  string
		count int
	}{{"a", 3}, {"b", 1}, {"c", 6}, {"d", 2}, {"e", 4}, {"f", 1}} {
		for i := 0; i < h.count; i++ {
			if _, err := store.IncrementHit(ctx, domain.TrendingSeed{SearchTerm: h.term}); err != nil {
				t.Fatalf("IncrementHit: %v", err)
			}
		}
	}

	top, err := store.Top(ctx, 5)
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	want := []string{"c", "e", "a", "d", "f"}
	for i, term := range want {
		if top[i].SearchTerm != term {
			t.Fatalf("position %d = %q, want %q", i, top[i].SearchTerm, term)
		}
	}
}
