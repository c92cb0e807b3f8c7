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

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/netbankhq/authflow/internal/cache"
	"github.com/netbankhq/authflow/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *cache.RedisCache {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := cache.NewCacheWithAddresses([]string{mr.Addr()})
	require.NoError(t, err)
	return c
}

func TestSetAndGet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	accounts := []model.Account{
		{ID: "acc_1", AccountNumber: "ABCD123456789012", Balance: decimal.NewFromInt(1500), Status: "active"},
	}
	require.NoError(t, c.Set(ctx, "accounts:sess_1", accounts, time.Minute))

	var got []model.Account
	require.NoError(t, c.Get(ctx, "accounts:sess_1", &got))
	require.Len(t, got, 1)
	assert.Equal(t, "acc_1", got[0].ID)
	assert.True(t, got[0].Balance.Equal(decimal.NewFromInt(1500)))
}

func TestGetMissLeavesDataUntouched(t *testing.T) {
	c := newTestCache(t)

	var got []model.Account
	require.NoError(t, c.Get(context.Background(), "accounts:unknown", &got))
	assert.Nil(t, got)
}

func TestDelete(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "accounts:sess_1", []model.Account{{ID: "acc_1"}}, time.Minute))
	require.NoError(t, c.Delete(ctx, "accounts:sess_1"))

	var got []model.Account
	require.NoError(t, c.Get(ctx, "accounts:sess_1", &got))
	assert.Empty(t, got)
}

func TestSessionKeysAreIsolated(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "accounts:sess_a", []model.Account{{ID: "a"}}, time.Minute))
	require.NoError(t, c.Set(ctx, "accounts:sess_b", []model.Account{{ID: "b"}}, time.Minute))

	var a, b []model.Account
	require.NoError(t, c.Get(ctx, "accounts:sess_a", &a))
	require.NoError(t, c.Get(ctx, "accounts:sess_b", &b))
	assert.Equal(t, "a", a[0].ID)
	assert.Equal(t, "b", b[0].ID)
}
