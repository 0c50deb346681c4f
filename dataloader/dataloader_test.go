package dataloader

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockEntity struct {
	ID   string
	Name string
}

func TestOrderByKeys(t *testing.T) {
	t.Parallel()
	keyFn := func(e mockEntity) string { return e.ID }

	t.Run("all keys found", func(t *testing.T) {
		t.Parallel()
		keys := []string{"1", "2", "3"}
		values := []mockEntity{{ID: "3", Name: "third"}, {ID: "1", Name: "first"}, {ID: "2", Name: "second"}}

		result := OrderByKeys(keys, values, keyFn)

		require.Len(t, result, 3)
		assert.Equal(t, "first", result[0].Name)
		assert.Equal(t, "second", result[1].Name)
		assert.Equal(t, "third", result[2].Name)
	})

	t.Run("some keys missing", func(t *testing.T) {
		t.Parallel()
		keys := []string{"1", "2", "3"}
		values := []mockEntity{{ID: "1", Name: "first"}}

		result := OrderByKeys(keys, values, keyFn)

		require.Len(t, result, 3)
		assert.Equal(t, "first", result[0].Name)
		assert.Equal(t, mockEntity{}, result[1])
	})
}

func TestGroupByKey(t *testing.T) {
	t.Parallel()
	values := []mockEntity{{ID: "a", Name: "x"}, {ID: "a", Name: "y"}, {ID: "b", Name: "z"}}
	grouped := GroupByKey(values, func(e mockEntity) string { return e.ID })

	require.Len(t, grouped["a"], 2)
	require.Len(t, grouped["b"], 1)

	ordered := OrderGroupsByKeys([]string{"a", "b", "c"}, grouped)
	require.Len(t, ordered, 3)
	assert.Len(t, ordered[0], 2)
	assert.Len(t, ordered[1], 1)
	assert.Empty(t, ordered[2])
}

func TestLoaderBatchesAndCaches(t *testing.T) {
	t.Parallel()

	var calls int32
	batch := func(ctx context.Context, keys []string) ([]mockEntity, error) {
		atomic.AddInt32(&calls, 1)
		values := make([]mockEntity, 0, len(keys))
		for _, k := range keys {
			if k == "missing" {
				continue
			}
			values = append(values, mockEntity{ID: k, Name: "name-" + k})
		}
		return values, nil
	}
	loader := NewLoader(batch, func(e mockEntity) string { return e.ID })

	ctx := context.Background()
	v, err := loader.Load(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "name-1", v.Name)

	// Second load of the same key must not re-invoke batch.
	v2, err := loader.Load(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, v, v2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// A fresh key triggers exactly one more batch call.
	_, err = loader.Load(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	// A key the batch doesn't return is cached as absent, not re-fetched.
	zero, err := loader.Load(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, mockEntity{}, zero)
	_, err = loader.Load(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestLoaderPrimeAndClear(t *testing.T) {
	t.Parallel()
	var calls int32
	batch := func(ctx context.Context, keys []string) ([]mockEntity, error) {
		atomic.AddInt32(&calls, 1)
		return []mockEntity{{ID: keys[0], Name: "fetched"}}, nil
	}
	loader := NewLoader(batch, func(e mockEntity) string { return e.ID })

	loader.Prime(mockEntity{ID: "1", Name: "primed"})
	v, err := loader.Load(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "primed", v.Name)
	assert.Zero(t, atomic.LoadInt32(&calls))

	loader.Clear("1")
	v, err = loader.Load(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "fetched", v.Name)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
