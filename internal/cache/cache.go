/*
Copyright 2024 Authflow Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package cache backs the session-scoped account projections. Keys are
// namespaced per session, so nothing is shared between user sessions.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/netbankhq/authflow/config"
	redis_db "github.com/netbankhq/authflow/internal/redis-db"
)

// Cache is the minimal surface the flow engine needs.
type Cache interface {
	// Set stores a value under key for ttl.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Get loads the value under key into data. A cache miss is not an
	// error; data is left untouched.
	Get(ctx context.Context, key string, data interface{}) error

	// Delete removes the value under key.
	Delete(ctx context.Context, key string) error
}

// RedisCache implements Cache on redis with a small local TinyLFU tier in
// front of it.
type RedisCache struct {
	cache *cache.Cache
}

// NewCache connects using the redis DNS from the loaded configuration.
func NewCache() (Cache, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	return NewCacheWithAddresses([]string{fmt.Sprintf("redis://%s", cfg.Redis.Dns)})
}

// localCacheSize bounds the in-process tier; account projections are tiny.
const localCacheSize = 16000

// NewCacheWithAddresses connects to the given redis addresses directly.
// Tests point this at a miniredis instance.
func NewCacheWithAddresses(addresses []string) (*RedisCache, error) {
	client, err := redis_db.NewRedisClient(addresses)
	if err != nil {
		return nil, err
	}

	c := cache.New(&cache.Options{
		Redis:      client.Client(),
		LocalCache: cache.NewTinyLFU(localCacheSize, time.Minute),
	})
	return &RedisCache{cache: c}, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, data interface{}, ttl time.Duration) error {
	return r.cache.Set(&cache.Item{
		Ctx:   ctx,
		Key:   key,
		Value: data,
		TTL:   ttl,
	})
}

func (r *RedisCache) Get(ctx context.Context, key string, data interface{}) error {
	err := r.cache.Get(ctx, key, &data)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil
	}
	return err
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.cache.Delete(ctx, key)
}
