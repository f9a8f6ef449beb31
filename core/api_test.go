package core

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newTestGraphJin(t *testing.T, conf *Config, opts ...Option) *GraphJin {
	t.Helper()

	schema, err := os.ReadFile("testdata/schema.yml")
	require.NoError(t, err)

	if conf == nil {
		conf = &Config{}
	}
	opts = append([]Option{OptionSetSchema(schema)}, opts...)

	gj, err := NewGraphJinWithFS(conf, afero.NewMemMapFs(), opts...)
	require.NoError(t, err)
	t.Cleanup(gj.Close)
	return gj
}

func TestCompileQuery(t *testing.T) {
	gj := newTestGraphJin(t, nil)

	gql := `query getMovies($title: String) {
		movies(where: { title: $title }) { title }
	}`

	res, err := gj.Compile(context.Background(), gql, json.RawMessage(`{"title": "Matrix"}`), nil)
	require.NoError(t, err)

	assert.Equal(t, OpQuery, res.Operation())
	assert.Equal(t, "query", res.OperationName())
	assert.Equal(t, "getMovies", res.QueryName())
	assert.False(t, res.CacheHit())
	assert.Empty(t, res.Errors)

	require.Len(t, res.Statements, 1)
	s := res.Statements[0]
	assert.Equal(t, "movies", s.Name)
	assert.Equal(t, "MATCH (this:Movie)\nWHERE this.title = $this_title\nRETURN this { .title } AS this", s.Query)
	assert.Equal(t, map[string]any{"this_title": "Matrix"}, s.Params)
}

func TestCompileCache(t *testing.T) {
	gj := newTestGraphJin(t, nil)
	gql := `{ movies(where: { released_GT: $year }) { title } }`

	res1, err := gj.Compile(context.Background(), gql, json.RawMessage(`{"year": 1999}`), nil)
	require.NoError(t, err)
	assert.False(t, res1.CacheHit())
	assert.Equal(t, int64(1999), res1.Statements[0].Params["this_released_GT"])

	// callers own the returned params
	res1.Statements[0].Params["this_released_GT"] = "changed"

	res2, err := gj.Compile(context.Background(), gql, json.RawMessage(`{"year": 1999}`), nil)
	require.NoError(t, err)
	assert.True(t, res2.CacheHit())
	assert.Equal(t, int64(1999), res2.Statements[0].Params["this_released_GT"])
	assert.Equal(t, res1.Statements[0].Query, res2.Statements[0].Query)

	res3, err := gj.Compile(context.Background(), gql, json.RawMessage(`{"year": 2001}`), nil)
	require.NoError(t, err)
	assert.False(t, res3.CacheHit())
	assert.Equal(t, int64(2001), res3.Statements[0].Params["this_released_GT"])
}

func TestCompileCacheDisabled(t *testing.T) {
	gj := newTestGraphJin(t, &Config{DisableCache: true})
	gql := `{ movies { title } }`

	for i := 0; i < 2; i++ {
		res, err := gj.Compile(context.Background(), gql, nil, nil)
		require.NoError(t, err)
		assert.False(t, res.CacheHit())
	}
}

func TestCompileDeleteWithContextUser(t *testing.T) {
	gj := newTestGraphJin(t, nil)
	gql := `mutation { deleteActors(where: { name: "Keanu" }) { nodesDeleted } }`

	c := context.WithValue(context.Background(), UserIDKey, "u1")
	res, err := gj.Compile(c, gql, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, OpMutation, res.Operation())
	require.Len(t, res.Statements, 1)

	exp := `MATCH (this:Actor)
WHERE this.name = $this_name AND this.id = $this_auth_where0_id
WITH this
CALL apoc.util.validate(NOT (this.id = $this_auth_allow1_id), "@graphjin/FORBIDDEN", [0])
DETACH DELETE this`
	assert.Equal(t, exp, res.Statements[0].Query)
	assert.Equal(t, "u1", res.Statements[0].Params["this_auth_where0_id"])
	assert.Equal(t, "u1", res.Statements[0].Params["this_auth_allow1_id"])

	// the cache is keyed by the user as well
	res, err = gj.Compile(context.WithValue(context.Background(), UserIDKey, "u2"), gql, nil, nil)
	require.NoError(t, err)
	assert.False(t, res.CacheHit())
	assert.Equal(t, "u2", res.Statements[0].Params["this_auth_where0_id"])
}

func TestCompileRequestConfig(t *testing.T) {
	gj := newTestGraphJin(t, nil)
	gql := `mutation { deleteMovies(delete: { genres: [{ where: { name: $genre } }] }) { nodesDeleted } }`

	rc := &RequestConfig{
		Vars:          map[string]any{"genre": "Drama"},
		Authenticated: true,
		Roles:         []string{"admin"},
	}
	res, err := gj.Compile(context.Background(), gql, nil, rc)
	require.NoError(t, err)

	p := res.Statements[0].Params
	assert.Equal(t, "Drama", p["this_delete_genres0_name"])
	assert.Equal(t, []string{"admin"}, p["this_delete_genres0_auth_allow0_roles"])
}

func TestCompileMultipleRoots(t *testing.T) {
	gj := newTestGraphJin(t, nil)

	res, err := gj.Compile(context.Background(), `{ movies { title } stars: actors { name } }`, nil, nil)
	require.NoError(t, err)
	require.Len(t, res.Statements, 2)

	s, ok := res.Statement("stars")
	require.True(t, ok)
	assert.Equal(t, "MATCH (this:Actor)\nRETURN this { .name } AS this", s.Query)

	_, ok = res.Statement("genres")
	assert.False(t, ok)
}

func TestCompileByName(t *testing.T) {
	gj := newTestGraphJin(t, nil)
	gql := `query a { movies { title } } query b { actors { name } }`

	res, err := gj.CompileByName(context.Background(), gql, "b", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "b", res.QueryName())
	assert.Equal(t, "actors", res.Statements[0].Name)
}

func TestCompileErrors(t *testing.T) {
	gj := newTestGraphJin(t, nil)

	tests := []struct {
		name  string
		query string
		vars  string
	}{
		{name: "unknown root", query: `{ books { title } }`},
		{name: "unknown field", query: `{ movies { budget } }`},
		{name: "bad variables", query: `{ movies { title } }`, vars: `[1, 2]`},
		{name: "invalid document", query: `{ movies { title }`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := gj.Compile(context.Background(), tt.query, json.RawMessage(tt.vars), nil)
			assert.Error(t, err)
			require.NotNil(t, res)
			require.Len(t, res.Errors, 1)
			assert.Equal(t, err.Error(), res.Errors[0].Message)
		})
	}
}

func TestCompileBatch(t *testing.T) {
	gj := newTestGraphJin(t, nil)

	reqs := []BatchRequest{
		{Query: `{ movies { title } }`},
		{Query: `{ actors(where: { name: $name }) { name } }`, Vars: json.RawMessage(`{"name": "Keanu"}`)},
		{Query: `query a { movies { id } } query b { genres { name } }`, Name: "b"},
	}

	res, err := gj.CompileBatch(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, res, 3)

	assert.Equal(t, "movies", res[0].Statements[0].Name)
	assert.Equal(t, "Keanu", res[1].Statements[0].Params["this_name"])
	assert.Equal(t, "genres", res[2].Statements[0].Name)

	_, err = gj.CompileBatch(context.Background(), []BatchRequest{
		{Query: `{ movies { title } }`},
		{Query: `{ movies { budget } }`},
	})
	assert.ErrorContains(t, err, "request 1")
}

func TestCompileConcurrent(t *testing.T) {
	gj := newTestGraphJin(t, nil)
	gql := `{ movies { title actorsConnection { edges { role node { name } } } } }`

	var wg sync.WaitGroup
	out := make([]string, 20)

	for i := range out {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := gj.Compile(context.Background(), gql, nil, nil)
			if assert.NoError(t, err) {
				out[i] = res.Statements[0].Query
			}
		}()
	}
	wg.Wait()

	for _, q := range out[1:] {
		assert.Equal(t, out[0], q)
	}
}

func TestDebugLogging(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	gj := newTestGraphJin(t, &Config{Debug: true}, OptionSetLogger(zap.New(core)))

	_, err := gj.Compile(context.Background(), `{ movies { title } }`, nil, nil)
	require.NoError(t, err)

	entries := logs.FilterMessage("compiled statement").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "movies", entries[0].ContextMap()["name"])
	assert.Equal(t, false, entries[0].ContextMap()["cache_hit"])
}

func TestNewGraphJinErrors(t *testing.T) {
	_, err := NewGraphJinWithFS(&Config{}, afero.NewMemMapFs())
	assert.ErrorContains(t, err, "no schema")

	_, err = NewGraphJinWithFS(&Config{SchemaFile: "schema.yml"}, afero.NewMemMapFs())
	assert.Error(t, err)

	_, err = NewGraphJinWithFS(&Config{}, afero.NewMemMapFs(), OptionSetSchema([]byte("nodes: []")))
	assert.Error(t, err)

	_, err = NewGraphJinWithFS(&Config{}, afero.NewMemMapFs(), OptionSetLogger(nil))
	assert.ErrorContains(t, err, "logger")
}
