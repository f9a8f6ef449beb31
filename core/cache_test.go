package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheCopiesParams(t *testing.T) {
	gj := &graphjinEngine{conf: &Config{CacheSize: 10}}
	require.NoError(t, gj.initCache())

	params := map[string]any{
		"ids":   []int64{1, 2},
		"roles": []string{},
		"where": map[string]any{"node": []map[string]any{{"name": "A"}}},
	}
	gj.cache.Set(1, cacheEntry{name: "q", stmts: []Statement{{Name: "movies", Query: "q", Params: params}}})

	// changes made after Set do not reach the cache
	params["ids"].([]int64)[0] = 9
	params["where"].(map[string]any)["node"].([]map[string]any)[0]["name"] = "B"

	val, ok := gj.cache.Get(1)
	require.True(t, ok)
	assert.Equal(t, "q", val.name)

	p := val.stmts[0].Params
	assert.Equal(t, []int64{1, 2}, p["ids"])
	assert.NotNil(t, p["roles"].([]string))
	assert.Equal(t, "A", p["where"].(map[string]any)["node"].([]map[string]any)[0]["name"])

	// nor do changes made to a returned entry
	p["ids"].([]int64)[1] = 9

	val, ok = gj.cache.Get(1)
	require.True(t, ok)
	assert.Equal(t, []int64{1, 2}, val.stmts[0].Params["ids"])

	_, ok = gj.cache.Get(2)
	assert.False(t, ok)
	assert.Equal(t, 1, gj.cache.Len())
}
