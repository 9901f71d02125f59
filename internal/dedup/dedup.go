package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Fetcher retrieves a resource's bytes. Implemented by internal/fetch; kept as
// an interface here so the tracker can be tested without network I/O.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HashSet records content hashes with a check-then-insert that must be atomic
// under concurrent workers.
type HashSet interface {
	// Add records the hash and reports whether it was already present.
	Add(ctx context.Context, hash string) (bool, error)
}

// MemorySet is the process-lifetime hash set for a single run. It accumulates
// for the whole run and is never pruned.
type MemorySet struct {
	mu     sync.Mutex
	hashes map[string]struct{}
}

func NewMemorySet() *MemorySet {
	return &MemorySet{hashes: make(map[string]struct{})}
}

func (s *MemorySet) Add(_ context.Context, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.hashes[hash]; ok {
		return true, nil
	}
	s.hashes[hash] = struct{}{}
	return false, nil
}

// Len reports how many distinct hashes have been recorded.
func (s *MemorySet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hashes)
}

// RedisSet shares the hash set across runs and processes through a Redis set.
type RedisSet struct {
	client *redis.Client
	key    string
}

func NewRedisSet(client *redis.Client, key string) *RedisSet {
	if key == "" {
		key = "scraper:image_hashes"
	}
	return &RedisSet{client: client, key: key}
}

func (s *RedisSet) Add(ctx context.Context, hash string) (bool, error) {
	added, err := s.client.SAdd(ctx, s.key, hash).Result()
	if err != nil {
		return false, err
	}
	return added == 0, nil
}

// Tracker detects duplicate images by content hash. Two byte-equal resources
// at different URLs count as one image; hash collisions are treated as
// negligible.
type Tracker struct {
	fetcher Fetcher
	set     HashSet
	logger  *slog.Logger
}

func NewTracker(fetcher Fetcher, set HashSet, logger *slog.Logger) *Tracker {
	return &Tracker{
		fetcher: fetcher,
		set:     set,
		logger:  logger.With("component", "dedup"),
	}
}

// Seen fetches the URL, hashes the content, and reports whether that content
// was already recorded this run. Every failure is fail-open: a broken dedup
// check must never block a potentially new image.
func (t *Tracker) Seen(ctx context.Context, url string) bool {
	body, err := t.fetcher.Fetch(ctx, url)
	if err != nil {
		t.logger.Warn("dedup fetch failed, treating as new", "url", url, "error", err)
		return false
	}

	sum := sha256.Sum256(body)
	hash := hex.EncodeToString(sum[:])

	seen, err := t.set.Add(ctx, hash)
	if err != nil {
		t.logger.Warn("hash set unavailable, treating as new", "url", url, "error", err)
		return false
	}
	return seen
}
