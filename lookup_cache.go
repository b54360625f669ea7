package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"districtfinder/internal/nces"
)

// lookupStore persists serialized lookup results
type lookupStore interface {
	LoadLookupCache(ctx context.Context, key string, maxAge time.Duration) ([]byte, error)
	SaveLookupCache(ctx context.Context, key string, payload []byte, fetchedAt time.Time) error
}

// cachedService wraps a lookup service with a DuckDB-backed result cache.
// Concurrent misses for the same key share one upstream call. Cache failures
// are logged and fall through to the wrapped service.
type cachedService struct {
	next      nces.Service
	store     lookupStore
	ttl       time.Duration
	namespace string
	group     singleflight.Group
}

func newCachedService(next nces.Service, store lookupStore, ttl time.Duration, namespace string) *cachedService {
	return &cachedService{
		next:      next,
		store:     store,
		ttl:       ttl,
		namespace: namespace,
	}
}

func (c *cachedService) SearchSchoolDistricts(ctx context.Context, queryText string) ([]nces.District, error) {
	if strings.TrimSpace(queryText) == "" {
		return c.next.SearchSchoolDistricts(ctx, queryText)
	}
	key := fmt.Sprintf("%s:districts:%s", c.namespace, strings.ToLower(queryText))
	return cachedLookup(ctx, c, key, func(ctx context.Context) ([]nces.District, error) {
		return c.next.SearchSchoolDistricts(ctx, queryText)
	})
}

func (c *cachedService) SearchSchools(ctx context.Context, queryText, districtID string) ([]nces.School, error) {
	if districtID == "" {
		return c.next.SearchSchools(ctx, queryText, districtID)
	}
	key := fmt.Sprintf("%s:schools:%s:%s", c.namespace, districtID, strings.ToLower(queryText))
	return cachedLookup(ctx, c, key, func(ctx context.Context) ([]nces.School, error) {
		return c.next.SearchSchools(ctx, queryText, districtID)
	})
}

func cachedLookup[T any](ctx context.Context, c *cachedService, key string, fetch func(context.Context) ([]T, error)) ([]T, error) {
	payload, err := c.store.LoadLookupCache(ctx, key, c.ttl)
	switch {
	case err == nil:
		var cached []T
		if err := json.Unmarshal(payload, &cached); err == nil {
			if logger != nil {
				logger.Debug("Lookup cache hit", "cache_key", key, "results", len(cached))
			}
			return cached, nil
		} else if logger != nil {
			logger.Warn("Discarding corrupt lookup cache entry", "error", err, "cache_key", key)
		}
	case !errors.Is(err, errCacheMiss):
		if logger != nil {
			logger.Warn("Lookup cache read failed", "error", err, "cache_key", key)
		}
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		// joined callers must not inherit the first caller's cancellation
		ctx := context.WithoutCancel(ctx)
		results, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		if payload, err := json.Marshal(results); err != nil {
			if logger != nil {
				logger.Warn("Failed to encode lookup result", "error", err, "cache_key", key)
			}
		} else if err := c.store.SaveLookupCache(ctx, key, payload, time.Now()); err != nil && logger != nil {
			logger.Warn("Lookup cache write failed", "error", err, "cache_key", key)
		}
		return results, nil
	})
	if err != nil {
		return nil, err
	}
	if shared && logger != nil {
		logger.Debug("Lookup shared with concurrent caller", "cache_key", key)
	}
	return v.([]T), nil
}
