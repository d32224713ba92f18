// Package rotator serves short canned replies from persistent queues, refilling a queue with
// a freshly shuffled batch whenever it runs dry, and steering away from texts the bot has
// posted recently (the platform rejects exact duplicate posts).
package rotator

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/bluesky-social/kyupikon/bot/cachestore"
	"github.com/bluesky-social/kyupikon/bot/queuestore"

	"github.com/puzpuzpuz/xsync/v3"
)

var DefaultStems = []string{
	"きゅぴこん",
	"きゅぴこ〜ん",
	"きゅっぴこ〜ん",
	"キュピコン",
	"キュピコ〜ン",
	"キュッピコ〜ン",
}

var DefaultMarks = []string{"♡", "♥", "！", "？", "♪", "☆", "✨", "🌟", "💕", "💞", "🐦", "🌸"}

const (
	DefaultRecentWindow = 50
	recentCacheTTL      = time.Minute
	recentCacheName     = "recent-posts"
)

// Fetches the text of the bot's own most recent posts, newest first.
type RecentFunc func(ctx context.Context, n int) ([]string, error)

type Rotator struct {
	Queues queuestore.QueueStore
	// caches the recent-post set; may be nil, in which case every refill and pop fetches
	Cache  cachestore.CacheStore
	Recent RecentFunc
	Logger *slog.Logger

	Stems []string
	Marks []string
	// number of times a stem+mark unit may be repeated in one candidate (at least 1)
	Expansion    int
	RecentWindow int

	// pop-or-refill is serialized per queue
	locks *xsync.MapOf[string, *sync.Mutex]
}

type Config struct {
	Expansion    int
	RecentWindow int
}

func NewRotator(queues queuestore.QueueStore, cache cachestore.CacheStore, recent RecentFunc, logger *slog.Logger, config Config) *Rotator {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Expansion < 1 {
		config.Expansion = 1
	}
	if config.RecentWindow <= 0 {
		config.RecentWindow = DefaultRecentWindow
	}
	return &Rotator{
		Queues:       queues,
		Cache:        cache,
		Recent:       recent,
		Logger:       logger.With("component", "rotator"),
		Stems:        DefaultStems,
		Marks:        DefaultMarks,
		Expansion:    config.Expansion,
		RecentWindow: config.RecentWindow,
		locks:        xsync.NewMapOf[string, *sync.Mutex](),
	}
}

// Builds the full deduplicated candidate set: every stem followed by every mark repeated once
// or twice, with that unit repeated up to expansion times.
func Candidates(stems, marks []string, expansion int) []string {
	if expansion < 1 {
		expansion = 1
	}
	seen := make(map[string]bool)
	out := []string{}
	for _, stem := range stems {
		for _, mark := range marks {
			for markReps := 1; markReps <= 2; markReps++ {
				unit := stem + strings.Repeat(mark, markReps)
				for e := 1; e <= expansion; e++ {
					c := strings.Repeat(unit, e)
					if !seen[c] {
						seen[c] = true
						out = append(out, c)
					}
				}
			}
		}
	}
	return out
}

// Splits candidates into those absent from recent (safe) and those present, each shuffled
// independently. Input order is not modified.
func Partition(candidates []string, recent map[string]bool) (safe, used []string) {
	for _, c := range candidates {
		if recent[c] {
			used = append(used, c)
		} else {
			safe = append(safe, c)
		}
	}
	rand.Shuffle(len(safe), func(i, j int) { safe[i], safe[j] = safe[j], safe[i] })
	rand.Shuffle(len(used), func(i, j int) { used[i], used[j] = used[j], used[i] })
	return safe, used
}

var leadingMentions = regexp.MustCompile(`^(?:@\w+\s+)+`)

// Reduces a posted text to the rotated body, dropping the leading "@handle " addressees.
func postBody(text string) string {
	return strings.TrimSpace(leadingMentions.ReplaceAllString(text, ""))
}

func (r *Rotator) lock(queue string) *sync.Mutex {
	lk, _ := r.locks.LoadOrCompute(queue, func() *sync.Mutex {
		return &sync.Mutex{}
	})
	return lk
}

// Returns the set of texts the bot posted recently. Failures are logged and yield an empty
// set; avoiding duplicates is best-effort.
func (r *Rotator) recentSet(ctx context.Context) map[string]bool {
	var texts []string
	cached := false
	if r.Cache != nil {
		got, err := cachestore.GetJSON[[]string](ctx, r.Cache, recentCacheName, "self")
		if err != nil {
			r.Logger.Warn("recent-post cache read failed", "err", err)
		} else if got != nil {
			texts = *got
			cached = true
		}
	}
	if !cached && r.Recent != nil {
		fetched, err := r.Recent(ctx, r.RecentWindow)
		if err != nil {
			r.Logger.Warn("failed to fetch recent posts", "err", err)
			return map[string]bool{}
		}
		texts = fetched
		if r.Cache != nil {
			if err := cachestore.SetJSON(ctx, r.Cache, recentCacheName, "self", texts); err != nil {
				r.Logger.Warn("recent-post cache write failed", "err", err)
			}
		}
	}
	out := make(map[string]bool, len(texts))
	for _, t := range texts {
		out[postBody(t)] = true
	}
	return out
}

// Forgets the cached recent-post set, eg after the bot posts.
func (r *Rotator) InvalidateRecent(ctx context.Context) {
	if r.Cache == nil {
		return
	}
	if err := r.Cache.Purge(ctx, recentCacheName, "self"); err != nil {
		r.Logger.Warn("recent-post cache purge failed", "err", err)
	}
}

// caller must hold the queue lock
func (r *Rotator) refill(ctx context.Context, queue string, recent map[string]bool) error {
	start := time.Now()
	safe, used := Partition(Candidates(r.Stems, r.Marks, r.Expansion), recent)
	if err := r.Queues.Push(ctx, queue, append(safe, used...)...); err != nil {
		return err
	}
	refillCount.WithLabelValues(queue).Inc()
	r.Logger.Info("refilled content queue", "queue", queue, "safe", len(safe), "recent", len(used), "duration", time.Since(start))
	return nil
}

// Refill appends a fresh batch to the queue regardless of its current length.
func (r *Rotator) Refill(ctx context.Context, queue string) error {
	lk := r.lock(queue)
	lk.Lock()
	defer lk.Unlock()
	return r.refill(ctx, queue, r.recentSet(ctx))
}

// Next returns the next content string for the named queue. It never fails: if the queue
// store is unavailable, a random candidate is returned instead.
func (r *Rotator) Next(ctx context.Context, queue string) string {
	lk := r.lock(queue)
	lk.Lock()
	defer lk.Unlock()

	v, err := r.next(ctx, queue)
	if err != nil {
		r.Logger.Error("content queue unavailable, using random candidate", "queue", queue, "err", err)
		fallbackCount.WithLabelValues(queue).Inc()
		return r.random()
	}
	return v
}

// caller must hold the queue lock
func (r *Rotator) next(ctx context.Context, queue string) (string, error) {
	recent := r.recentSet(ctx)

	n, err := r.Queues.Len(ctx, queue)
	if err != nil {
		return "", err
	}
	if n == 0 {
		if err := r.refill(ctx, queue, recent); err != nil {
			return "", err
		}
		if n, err = r.Queues.Len(ctx, queue); err != nil {
			return "", err
		}
	}

	// rotate recently-posted entries to the tail, at most one full pass
	for i := 0; i < n; i++ {
		v, ok, err := r.Queues.Pop(ctx, queue)
		if err != nil {
			return "", err
		}
		if !ok {
			// drained by an out-of-process consumer; start over with a fresh batch
			if err := r.refill(ctx, queue, recent); err != nil {
				return "", err
			}
			continue
		}
		if !recent[v] {
			return v, nil
		}
		if i == n-1 {
			// everything is recent; serve the oldest rather than loop
			return v, nil
		}
		if err := r.Queues.Push(ctx, queue, v); err != nil {
			return "", err
		}
	}

	v, ok, err := r.Queues.Pop(ctx, queue)
	if err != nil {
		return "", err
	}
	if !ok {
		return r.random(), nil
	}
	return v, nil
}

func (r *Rotator) random() string {
	cands := Candidates(r.Stems, r.Marks, r.Expansion)
	if len(cands) == 0 {
		return ""
	}
	return cands[rand.IntN(len(cands))]
}
