package cypher_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dosco/graphjin/neo4j/v3/core/internal/cypher"
)

func TestDeleteCascade(t *testing.T) {
	root := compileRoot(t, `mutation {
		deleteMovies(
			where: { id: "m1" }
			delete: {
				actors: [{
					where: { name: "Keanu" }
					delete: { movies: [{ where: { title: "Other" } }] }
				}]
			}
		) { nodesDeleted }
	}`, nil)

	rc := &cypher.Request{Authenticated: true, JWT: map[string]any{"sub": "u1"}}
	s, err := co.CompileRoot(rc, root)
	require.NoError(t, err)

	assertGolden(t, "delete_cascade", s)
	assertClosed(t, s)
	assertUniqueVars(t, s)

	assert.Equal(t, map[string]any{
		"this_id":                            "m1",
		"this_delete_actors0_name":           "Keanu",
		"this_delete_actors0_auth_where0_id": "u1",
		"this_delete_actors0_auth_allow1_id": "u1",
		"this_delete_actors0_movies0_title":  "Other",
	}, s.Params)
}

func TestDeleteFilterAndAllow(t *testing.T) {
	movie, err := schema.Node("Movie")
	require.NoError(t, err)

	rc := &cypher.Request{JWT: map[string]any{"sub": "u1"}}
	s, err := co.CompileDelete(rc, cypher.DeleteArgs{
		Input:     map[string]any{"actors": []any{map[string]any{"where": map[string]any{"name": "Keanu"}}}},
		Node:      movie,
		VarName:   "this",
		ParentVar: "this",
		WithVars:  []string{"this"},
	})
	require.NoError(t, err)

	exp := `WITH this
OPTIONAL MATCH (this)<-[:ACTED_IN]-(this_actors0:Actor)
WHERE this_actors0.name = $this_actors0_name AND this_actors0.id = $this_actors0_auth_where0_id
WITH this, this_actors0
CALL apoc.util.validate(NOT (this_actors0.id = $this_actors0_auth_allow1_id), "@graphjin/FORBIDDEN", [0])
FOREACH(_ IN CASE this_actors0 WHEN NULL THEN [] ELSE [1] END |
DETACH DELETE this_actors0
)`
	assert.Equal(t, exp, s.Text)
	assertClosed(t, s)
}

func TestDeleteNestedBeforeParent(t *testing.T) {
	movie, _ := schema.Node("Movie")

	s, err := co.CompileDelete(&cypher.Request{}, cypher.DeleteArgs{
		Input: map[string]any{
			"director": map[string]any{
				"delete": map[string]any{"movies": []any{map[string]any{}}},
			},
		},
		Node:      movie,
		VarName:   "this",
		ParentVar: "this",
		WithVars:  []string{"this"},
	})
	require.NoError(t, err)

	nested := strings.Index(s.Text, "DETACH DELETE this_director0_movies0")
	parent := strings.Index(s.Text, "DETACH DELETE this_director0\n")
	require.NotEqual(t, -1, nested)
	require.NotEqual(t, -1, parent)
	assert.Less(t, nested, parent)

	assert.Contains(t, s.Text, "OPTIONAL MATCH (this)<-[:DIRECTED]-(this_director0:Person:Director)")
	assert.Contains(t, s.Text, "WITH this, this_director0\nOPTIONAL MATCH (this_director0)-[:DIRECTED]->(this_director0_movies0:Movie)")
	assertUniqueVars(t, s)
}

func TestDeleteUnionMember(t *testing.T) {
	actor, _ := schema.Node("Actor")

	s, err := co.CompileDelete(&cypher.Request{}, cypher.DeleteArgs{
		Input: map[string]any{
			"productions_Series": []any{map[string]any{"where": map[string]any{"title": "S"}}},
			"productions_Movie":  map[string]any{"where": map[string]any{"title": "M"}},
		},
		Node:      actor,
		VarName:   "a",
		ParentVar: "a",
	})
	require.NoError(t, err)

	movie := strings.Index(s.Text, "(a_productions_Movie0:Movie)")
	series := strings.Index(s.Text, "(a_productions_Series0:Series)")
	require.NotEqual(t, -1, movie)
	require.NotEqual(t, -1, series)
	assert.Less(t, movie, series, "union members follow schema order")

	assert.NotContains(t, s.Text, "WITH ")
	assert.Equal(t, "M", s.Params["a_productions_Movie0_title"])
	assert.Equal(t, "S", s.Params["a_productions_Series0_title"])
	assertClosed(t, s)
}

func TestDeleteChainStr(t *testing.T) {
	movie, _ := schema.Node("Movie")

	s, err := co.CompileDelete(&cypher.Request{}, cypher.DeleteArgs{
		Input:     map[string]any{"genres": []any{map[string]any{}, map[string]any{}}},
		Node:      movie,
		VarName:   "this",
		ParentVar: "this",
		ChainStr:  "this_update",
		WithVars:  []string{"this"},
	})
	require.NoError(t, err)

	assert.Contains(t, s.Text, "(this_update_genres0:Genre)")
	assert.Contains(t, s.Text, "(this_update_genres1:Genre)")
	assertUniqueVars(t, s)
}

func TestDeleteRolesInsideDoWhen(t *testing.T) {
	movie, _ := schema.Node("Movie")

	rc := &cypher.Request{Authenticated: true, Roles: []string{"editor"}}
	s, err := co.CompileDelete(rc, cypher.DeleteArgs{
		Input:        map[string]any{"genres": []any{map[string]any{}}},
		Node:         movie,
		VarName:      "this",
		ParentVar:    "this",
		WithVars:     []string{"this"},
		InsideDoWhen: true,
	})
	require.NoError(t, err)

	assert.Contains(t, s.Text,
		`CALL apoc.util.validate(NOT (any(r IN [\"admin\"] WHERE r IN $this_genres0_auth_allow0_roles)), \"@graphjin/FORBIDDEN\", [0])`)
	assert.Equal(t, []string{"editor"}, s.Params["this_genres0_auth_allow0_roles"])
	assertClosed(t, s)
}

func TestDeleteWithoutRules(t *testing.T) {
	actor, _ := schema.Node("Actor")

	s, err := co.CompileDelete(&cypher.Request{}, cypher.DeleteArgs{
		Input:     map[string]any{"productions_Series": []any{map[string]any{}}},
		Node:      actor,
		VarName:   "this",
		ParentVar: "this",
		WithVars:  []string{"this"},
	})
	require.NoError(t, err)

	exp := `WITH this
OPTIONAL MATCH (this)-[:ACTED_IN]->(this_productions_Series0:Series)
FOREACH(_ IN CASE this_productions_Series0 WHEN NULL THEN [] ELSE [1] END |
DETACH DELETE this_productions_Series0
)`
	assert.Equal(t, exp, s.Text)
	assert.Empty(t, s.Params)
}

func TestDeleteErrors(t *testing.T) {
	movie, _ := schema.Node("Movie")

	tests := []struct {
		name string
		args cypher.DeleteArgs
		err  error
	}{
		{
			name: "unknown relationship",
			args: cypher.DeleteArgs{Input: map[string]any{"writers": []any{}}, Node: movie, ParentVar: "this"},
			err:  cypher.ErrUnknownField,
		},
		{
			name: "entry not an object",
			args: cypher.DeleteArgs{Input: map[string]any{"actors": []any{"x"}}, Node: movie, ParentVar: "this"},
			err:  cypher.ErrInvalidInput,
		},
		{
			name: "unknown entry key",
			args: cypher.DeleteArgs{Input: map[string]any{"actors": []any{map[string]any{"filter": 1}}}, Node: movie, ParentVar: "this"},
			err:  cypher.ErrInvalidInput,
		},
		{
			name: "unknown filter field",
			args: cypher.DeleteArgs{Input: map[string]any{"actors": []any{map[string]any{"where": map[string]any{"age": 1}}}}, Node: movie, ParentVar: "this"},
			err:  cypher.ErrUnknownField,
		},
		{
			name: "no parent variable",
			args: cypher.DeleteArgs{Input: map[string]any{}, Node: movie},
			err:  cypher.ErrConfiguration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := co.CompileDelete(&cypher.Request{}, tt.args)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestDeleteListWithNestedDeletes(t *testing.T) {
	root := compileRoot(t, `mutation {
		deleteMovies(
			delete: {
				actors: [
					{ where: { name: "A" }, delete: { movies: { where: { title: "X" } } } }
					{ where: { name: "B" }, delete: { movies: [{ where: { title: "Y" } }, { where: { title: "Z" } }] } }
				]
			}
		) { nodesDeleted }
	}`, nil)

	rc := &cypher.Request{Authenticated: true, JWT: map[string]any{"sub": "u1"}}
	s, err := co.CompileRoot(rc, root)
	require.NoError(t, err)

	assertClosed(t, s)
	assertUniqueVars(t, s)

	assert.Contains(t, s.Text, "WITH this, this_delete_actors0\nOPTIONAL MATCH (this_delete_actors0)-[:ACTED_IN]->(this_delete_actors0_movies0:Movie)")
	assert.Contains(t, s.Text, "WITH this\nOPTIONAL MATCH (this)<-[:ACTED_IN]-(this_delete_actors1:Actor)")
	assert.Contains(t, s.Text, "WITH this, this_delete_actors1\nOPTIONAL MATCH (this_delete_actors1)-[:ACTED_IN]->(this_delete_actors1_movies0:Movie)")
	assert.Contains(t, s.Text, "WITH this, this_delete_actors1\nOPTIONAL MATCH (this_delete_actors1)-[:ACTED_IN]->(this_delete_actors1_movies1:Movie)")

	assert.Equal(t, "A", s.Params["this_delete_actors0_name"])
	assert.Equal(t, "B", s.Params["this_delete_actors1_name"])
	assert.Equal(t, "X", s.Params["this_delete_actors0_movies0_title"])
	assert.Equal(t, "Y", s.Params["this_delete_actors1_movies0_title"])
	assert.Equal(t, "Z", s.Params["this_delete_actors1_movies1_title"])

	// every related node is removed after the nodes below it
	order := []string{
		"DETACH DELETE this_delete_actors0_movies0\n",
		"DETACH DELETE this_delete_actors0\n",
		"DETACH DELETE this_delete_actors1_movies0\n",
		"DETACH DELETE this_delete_actors1_movies1\n",
		"DETACH DELETE this_delete_actors1\n",
	}
	last := -1
	for _, o := range order {
		i := strings.Index(s.Text, o)
		require.NotEqual(t, -1, i, o)
		assert.Greater(t, i, last, o)
		last = i
	}
	assert.True(t, strings.HasSuffix(s.Text, ")\nDETACH DELETE this"))
}
