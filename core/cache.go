package core

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mitchellh/copystructure"
	"github.com/mitchellh/hashstructure/v2"

	"github.com/dosco/graphjin/neo4j/v3/core/internal/qcode"
)

const defaultCacheSize = 5000

// Cache holds compiled statements keyed by a hash of the request that
// produced them
type Cache struct {
	cache *lru.TwoQueueCache[uint64, cacheEntry]
}

type cacheEntry struct {
	operation qcode.QType
	name      string
	stmts     []Statement
}

// cacheKey is everything that can change the compiled output of a request
type cacheKey struct {
	Query         string
	OperationName string
	Vars          map[string]any
	Authenticated bool
	JWT           map[string]any
	Roles         []string
}

func (gj *graphjinEngine) initCache() (err error) {
	size := gj.conf.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	gj.cache.cache, err = lru.New2Q[uint64, cacheEntry](size)
	return
}

func (k cacheKey) hash() (uint64, error) {
	return hashstructure.Hash(k, hashstructure.FormatV2, nil)
}

// Get returns a copy of the cached statements, callers are free to modify
// the parameter maps. An entry that cannot be copied is a miss.
func (c Cache) Get(key uint64) (val cacheEntry, fromCache bool) {
	if c.cache == nil {
		return
	}
	if val, fromCache = c.cache.Get(key); !fromCache {
		return
	}
	var err error
	if val.stmts, err = cloneStatements(val.stmts); err != nil {
		return cacheEntry{}, false
	}
	return
}

// Set stores a copy of val. Statements whose parameters cannot be copied
// are not cached.
func (c Cache) Set(key uint64, val cacheEntry) {
	if c.cache == nil {
		return
	}
	stmts, err := cloneStatements(val.stmts)
	if err != nil {
		return
	}
	val.stmts = stmts
	c.cache.Add(key, val)
}

func (c Cache) Purge() {
	if c.cache != nil {
		c.cache.Purge()
	}
}

func (c Cache) Len() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.Len()
}

func cloneStatements(stmts []Statement) ([]Statement, error) {
	out := make([]Statement, len(stmts))
	for i, s := range stmts {
		out[i] = s
		if s.Params == nil {
			continue
		}
		p, err := copystructure.Copy(s.Params)
		if err != nil {
			return nil, err
		}
		out[i].Params = p.(map[string]any)
	}
	return out, nil
}
