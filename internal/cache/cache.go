// Package cache provides a short-lived (query, k) cache in front of the
// similarity client. It is purely a latency optimization: entries are
// immutable once stored, misses fall through to the wrapped fetcher, and
// results are identical with the cache disabled.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/data4good/owl/internal/similarity"
)

// Fetcher is the retrieval contract the cache wraps and satisfies.
type Fetcher interface {
	Fetch(ctx context.Context, query string, k int) ([]similarity.Document, error)
}

type key struct {
	query string
	k     int
}

// Fetching wraps next with an expirable LRU keyed by (query, k) and a
// singleflight group so identical concurrent misses share one upstream
// call. Errors are never cached.
type Fetching struct {
	next  Fetcher
	lru   *expirable.LRU[key, []similarity.Document]
	group singleflight.Group
}

// New creates a caching Fetcher with the given capacity and entry TTL.
func New(next Fetcher, size int, ttl time.Duration) *Fetching {
	if size <= 0 {
		size = 128
	}
	return &Fetching{
		next: next,
		lru:  expirable.NewLRU[key, []similarity.Document](size, nil, ttl),
	}
}

// Fetch returns the cached documents for (query, k) when present,
// otherwise fetches through and stores the result.
func (f *Fetching) Fetch(ctx context.Context, query string, k int) ([]similarity.Document, error) {
	ck := key{query: query, k: k}
	if docs, ok := f.lru.Get(ck); ok {
		return docs, nil
	}

	v, err, _ := f.group.Do(fmt.Sprintf("%s\x00%d", query, k), func() (any, error) {
		// The flight may be shared by followers, so the fetch must not
		// die with the leader's context.
		docs, err := f.next.Fetch(context.WithoutCancel(ctx), query, k)
		if err != nil {
			return nil, err
		}
		f.lru.Add(ck, docs)
		return docs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]similarity.Document), nil
}
