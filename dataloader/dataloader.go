// Package dataloader batches relation lookups issued while
// populating a page of records (spec section 4.2.4, "with") so that N
// records needing the same related collection cost one query instead of N.
package dataloader

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// KeyFunc extracts the grouping key a batched value belongs under.
type KeyFunc[V any] func(V) string

// BatchFunc loads every value for a batch of keys in one round trip.
type BatchFunc[V any] func(ctx context.Context, keys []string) ([]V, error)

// OrderByKeys reorders values to match the order of requested keys, one
// slot per key, nil where no value was returned for that key.
func OrderByKeys[V any](keys []string, values []V, keyFn KeyFunc[V]) []V {
	lookup := make(map[string]V, len(values))
	for _, v := range values {
		lookup[keyFn(v)] = v
	}
	result := make([]V, len(keys))
	for i, k := range keys {
		result[i] = lookup[k]
	}
	return result
}

// GroupByKey groups values by key, for one-to-many relations where several
// values share the same foreign key.
func GroupByKey[V any](values []V, keyFn KeyFunc[V]) map[string][]V {
	result := make(map[string][]V)
	for _, v := range values {
		k := keyFn(v)
		result[k] = append(result[k], v)
	}
	return result
}

// OrderGroupsByKeys reorders grouped values to match the order of requested
// keys, one slice per key (empty, not nil, when a key has no matches).
func OrderGroupsByKeys[V any](keys []string, groups map[string][]V) [][]V {
	result := make([][]V, len(keys))
	for i, k := range keys {
		result[i] = groups[k]
		if result[i] == nil {
			result[i] = []V{}
		}
	}
	return result
}

// Loader batches and deduplicates Load calls for a single request's
// lifetime. It is not safe to share across requests: callers construct one
// per AppContext (or per populate() call) and let it be garbage collected
// once the response is written.
//
// Unlike a classic tick-based DataLoader (which defers dispatch to the next
// event-loop turn), Go has no event loop to hook: Loader instead collapses
// concurrent Load calls for the same batch via singleflight, so concurrent
// callers asking for the same uncached key set share one BatchFunc
// invocation rather than a caller-visible tick.
type Loader[V any] struct {
	batch BatchFunc[V]
	key   KeyFunc[V]

	mu    sync.Mutex
	group singleflight.Group
	cache map[string]V
	// missing remembers keys a prior batch didn't return, so repeated
	// lookups for a key known absent don't re-issue a query.
	missing map[string]struct{}
}

// NewLoader builds a Loader backed by batch, using keyFn to index its
// results.
func NewLoader[V any](batch BatchFunc[V], keyFn KeyFunc[V]) *Loader[V] {
	return &Loader[V]{
		batch:   batch,
		key:     keyFn,
		cache:   make(map[string]V),
		missing: make(map[string]struct{}),
	}
}

// LoadMany resolves every key, issuing at most one BatchFunc call for the
// keys not already cached, ordered to match the input.
func (l *Loader[V]) LoadMany(ctx context.Context, keys []string) ([]V, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	l.mu.Lock()
	var toFetch []string
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if _, ok := l.cache[k]; ok {
			continue
		}
		if _, known := l.missing[k]; known {
			continue
		}
		toFetch = append(toFetch, k)
	}
	l.mu.Unlock()

	if len(toFetch) > 0 {
		if _, err, _ := l.group.Do(batchGroupKey(toFetch), func() (any, error) {
			values, err := l.batch(ctx, toFetch)
			if err != nil {
				return nil, err
			}
			l.mu.Lock()
			fetched := make(map[string]struct{}, len(values))
			for _, v := range values {
				k := l.key(v)
				l.cache[k] = v
				fetched[k] = struct{}{}
			}
			for _, k := range toFetch {
				if _, ok := fetched[k]; !ok {
					l.missing[k] = struct{}{}
				}
			}
			l.mu.Unlock()
			return nil, nil
		}); err != nil {
			return nil, err
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	result := make([]V, len(keys))
	for i, k := range keys {
		result[i] = l.cache[k]
	}
	return result, nil
}

// Load resolves a single key by delegating to LoadMany. Concurrent Load
// calls for the same uncached key share one BatchFunc call; calls for
// distinct keys each issue their own.
func (l *Loader[V]) Load(ctx context.Context, key string) (V, error) {
	values, err := l.LoadMany(ctx, []string{key})
	var zero V
	if err != nil {
		return zero, err
	}
	if len(values) == 0 {
		return zero, nil
	}
	return values[0], nil
}

// Prime seeds the cache with an already-known value, e.g. after a mutation
// returns the record a subsequent relation load would otherwise re-fetch.
func (l *Loader[V]) Prime(v V) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := l.key(v)
	l.cache[k] = v
	delete(l.missing, k)
}

// Clear drops a key from the cache, forcing the next Load to re-fetch it.
func (l *Loader[V]) Clear(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.cache, key)
	delete(l.missing, key)
}

func batchGroupKey(keys []string) string {
	var b []byte
	for i, k := range keys {
		if i > 0 {
			b = append(b, '\x1f')
		}
		b = append(b, k...)
	}
	return string(b)
}
