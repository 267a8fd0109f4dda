package redisstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"moviescout/internal/domain"
)

const DefaultKeyPrefix = "moviescout:trending:"

// incrementScript bumps the sorted-set score and writes the creation fields
// of the per-term hash only when the hash is new.
// KEYS: counts zset, term hash, id sequence. ARGV: term, movie id, poster url, now ms.
var incrementScript = redis.NewScript(`
local count = redis.call('ZINCRBY', KEYS[1], 1, ARGV[1])
if redis.call('HEXISTS', KEYS[2], 'id') == 0 then
	local id = redis.call('INCR', KEYS[3])
	redis.call('HSET', KEYS[2], 'id', id, 'searchTerm', ARGV[1], 'movieId', ARGV[2], 'posterUrl', ARGV[3], 'createdAt', ARGV[4])
end
redis.call('HSET', KEYS[2], 'updatedAt', ARGV[4])
return count
`)

// TrendingStore keeps counters in a sorted set and per-term metadata in
// hashes.
type TrendingStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewTrendingStore(client *redis.Client, prefix string) *TrendingStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &TrendingStore{client: client, prefix: prefix, now: time.Now}
}

func (s *TrendingStore) countsKey() string { return s.prefix + "counts" }
func (s *TrendingStore) seqKey() string    { return s.prefix + "seq" }
func (s *TrendingStore) termKey(term string) string {
	return s.prefix + "term:" + term
}

func (s *TrendingStore) IncrementHit(ctx context.Context, seed domain.TrendingSeed) (domain.TrendingRecord, error) {
	if seed.SearchTerm == "" {
		return domain.TrendingRecord{}, domain.ErrEmptyTerm
	}
	now := s.now().UTC().UnixMilli()
	keys := []string{s.countsKey(), s.termKey(seed.SearchTerm), s.seqKey()}

	raw, err := incrementScript.Run(ctx, s.client, keys,
		seed.SearchTerm, seed.MovieID, seed.PosterURL, now).Text()
	if err != nil {
		return domain.TrendingRecord{}, fmt.Errorf("redis increment: %w", err)
	}
	count, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return domain.TrendingRecord{}, fmt.Errorf("redis increment: bad score %q", raw)
	}

	fields, err := s.client.HGetAll(ctx, s.termKey(seed.SearchTerm)).Result()
	if err != nil {
		return domain.TrendingRecord{}, err
	}
	return recordFromHash(seed.SearchTerm, count, fields), nil
}

// Top reads up to limit records. Sorted-set ties come back in reverse
// lexicographic order, so candidates are re-sorted by update time.
func (s *TrendingStore) Top(ctx context.Context, limit int) ([]domain.TrendingRecord, error) {
	if limit <= 0 {
		limit = 5
	}
	entries, err := s.client.ZRevRangeWithScores(ctx, s.countsKey(), 0, int64(limit*2-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return []domain.TrendingRecord{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(entries))
	for i, entry := range entries {
		cmds[i] = pipe.HGetAll(ctx, s.termKey(memberString(entry.Member)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	records := make([]domain.TrendingRecord, 0, len(entries))
	for i, entry := range entries {
		records = append(records, recordFromHash(memberString(entry.Member), entry.Score, cmds[i].Val()))
	}
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Count != records[j].Count {
			return records[i].Count > records[j].Count
		}
		return records[i].UpdatedAt.After(records[j].UpdatedAt)
	})
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (s *TrendingStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func memberString(member interface{}) string {
	if v, ok := member.(string); ok {
		return v
	}
	return fmt.Sprint(member)
}

func recordFromHash(term string, score float64, fields map[string]string) domain.TrendingRecord {
	record := domain.TrendingRecord{
		ID:         fields["id"],
		SearchTerm: term,
		Count:      int64(score),
		PosterURL:  fields["posterUrl"],
	}
	if v, err := strconv.Atoi(fields["movieId"]); err == nil {
		record.MovieID = v
	}
	record.CreatedAt = parseMillis(fields["createdAt"])
	record.UpdatedAt = parseMillis(fields["updatedAt"])
	return record
}

func parseMillis(raw string) time.Time {
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
