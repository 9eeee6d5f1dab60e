package assetcache

import (
	"testing"

	"github.com/aukilabs/garth/models"
	"github.com/stretchr/testify/require"
)

func assetKey(name string) models.AssetKey {
	return models.AssetKey{Category: "trees", Name: name}
}

func assetTemplate(name string) *models.AssetTemplate {
	return &models.AssetTemplate{
		Key:     assetKey(name),
		Format:  "glb",
		Payload: []byte(name),
	}
}

func TestCacheCapacityClamping(t *testing.T) {
	require.Equal(t, 1, New(0).Capacity())
	require.Equal(t, 1, New(-5).Capacity())
	require.Equal(t, 8, New(8).Capacity())
}

func TestCacheGetMiss(t *testing.T) {
	cache := New(4)

	template, ok := cache.Get(assetKey("oak.glb"))
	require.False(t, ok)
	require.Nil(t, template)
}

func TestCachePutGet(t *testing.T) {
	cache := New(4)

	template := assetTemplate("oak.glb")
	cache.Put(template.Key, template)
	require.Equal(t, 1, cache.Len())

	got, ok := cache.Get(template.Key)
	require.True(t, ok)
	require.Equal(t, template, got)

	// the cached template is never aliased out:
	require.NotSame(t, template, got)
	got.Payload[0] = 'X'

	again, ok := cache.Get(template.Key)
	require.True(t, ok)
	require.Equal(t, byte('o'), again.Payload[0])
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	cache := New(2)

	a := assetTemplate("a.glb")
	b := assetTemplate("b.glb")
	c := assetTemplate("c.glb")

	cache.Put(a.Key, a)
	cache.Put(b.Key, b)

	// touching a makes b the eviction candidate:
	_, ok := cache.Get(a.Key)
	require.True(t, ok)

	cache.Put(c.Key, c)
	require.Equal(t, 2, cache.Len())
	require.True(t, cache.Has(a.Key))
	require.False(t, cache.Has(b.Key))
	require.True(t, cache.Has(c.Key))
}

func TestCacheReplacePromotes(t *testing.T) {
	cache := New(2)

	a := assetTemplate("a.glb")
	b := assetTemplate("b.glb")
	c := assetTemplate("c.glb")

	cache.Put(a.Key, a)
	cache.Put(b.Key, b)
	cache.Put(a.Key, assetTemplate("a.glb"))

	cache.Put(c.Key, c)
	require.True(t, cache.Has(a.Key))
	require.False(t, cache.Has(b.Key))
}

func TestCacheHasDoesNotPromote(t *testing.T) {
	cache := New(2)

	a := assetTemplate("a.glb")
	b := assetTemplate("b.glb")
	c := assetTemplate("c.glb")

	cache.Put(a.Key, a)
	cache.Put(b.Key, b)
	require.True(t, cache.Has(a.Key))

	cache.Put(c.Key, c)
	require.False(t, cache.Has(a.Key))
	require.True(t, cache.Has(b.Key))
}

func TestCacheUntouchedEntriesEvictInInsertionOrder(t *testing.T) {
	cache := New(3)

	for _, name := range []string{"a.glb", "b.glb", "c.glb", "d.glb", "e.glb"} {
		template := assetTemplate(name)
		cache.Put(template.Key, template)
	}

	require.False(t, cache.Has(assetKey("a.glb")))
	require.False(t, cache.Has(assetKey("b.glb")))
	require.True(t, cache.Has(assetKey("c.glb")))
	require.True(t, cache.Has(assetKey("d.glb")))
	require.True(t, cache.Has(assetKey("e.glb")))
}

func TestCacheOnEvict(t *testing.T) {
	var evictedKeys []models.AssetKey

	cache := New(1, Options{
		OnEvict: func(key models.AssetKey, _ *models.AssetTemplate) {
			evictedKeys = append(evictedKeys, key)
		},
	})

	a := assetTemplate("a.glb")
	b := assetTemplate("b.glb")

	cache.Put(a.Key, a)
	require.Empty(t, evictedKeys)

	cache.Put(b.Key, b)
	require.Equal(t, []models.AssetKey{a.Key}, evictedKeys)
}

func TestCacheClear(t *testing.T) {
	cache := New(4)

	template := assetTemplate("oak.glb")
	cache.Put(template.Key, template)
	require.Equal(t, 1, cache.Len())

	cache.Clear()
	require.Zero(t, cache.Len())
	require.False(t, cache.Has(template.Key))

	// the cache keeps working after a clear:
	cache.Put(template.Key, template)
	require.True(t, cache.Has(template.Key))
}
