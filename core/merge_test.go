package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileMergeNode(t *testing.T) {
	gj := newTestGraphJin(t, nil)

	res, err := gj.CompileMerge(context.Background(), MergeRequest{
		Source: MergeNode{Type: "Actor", Match: map[string]any{"name": "Keanu"}},
	})
	require.NoError(t, err)

	assert.Equal(t, OpMutation, res.Operation())
	assert.Equal(t, "merge", res.QueryName())
	require.Len(t, res.Statements, 1)
	assert.Equal(t, "MERGE (this:Actor {name: $this_node_name})\nON CREATE SET\nthis.id = randomUUID()", res.Statements[0].Query)
	assert.Equal(t, map[string]any{"this_node_name": "Keanu"}, res.Statements[0].Params)
}

func TestCompileMergeRelationship(t *testing.T) {
	gj := newTestGraphJin(t, nil)

	res, err := gj.CompileMerge(context.Background(), MergeRequest{
		Source:       MergeNode{Type: "Movie", Match: map[string]any{"title": "Matrix"}},
		Target:       &MergeNode{Match: map[string]any{"name": "Keanu"}},
		Relationship: &MergeRelationship{Field: "actors", OnCreate: map[string]any{"role": "Neo"}},
	})
	require.NoError(t, err)

	exp := `MERGE (this:Movie {title: $this_node_title})<-[this_relationship_that:ACTED_IN]-(that:Actor {name: $that_node_name})
ON CREATE SET
this.id = randomUUID(),
this.createdAt = datetime(),
that.id = randomUUID(),
this_relationship_that.role = $this_relationship_that_on_create_role`
	assert.Equal(t, exp, res.Statements[0].Query)
	assert.Equal(t, "Neo", res.Statements[0].Params["this_relationship_that_on_create_role"])
}

func TestCompileMergeUnionTarget(t *testing.T) {
	gj := newTestGraphJin(t, nil)

	res, err := gj.CompileMerge(context.Background(), MergeRequest{
		Source:       MergeNode{Type: "Actor", Var: "a", Match: map[string]any{"id": "a1"}},
		Target:       &MergeNode{Type: "Series", Var: "s", Match: map[string]any{"title": "Dark"}},
		Relationship: &MergeRelationship{Field: "productions", Var: "r"},
	})
	require.NoError(t, err)
	assert.Equal(t, "MERGE (a:Actor {id: $a_node_id})-[r:ACTED_IN]->(s:Series {title: $s_node_title})", res.Statements[0].Query)
}

func TestCompileMergeErrors(t *testing.T) {
	gj := newTestGraphJin(t, nil)

	tests := []struct {
		name string
		req  MergeRequest
	}{
		{
			name: "unknown type",
			req:  MergeRequest{Source: MergeNode{Type: "Book"}},
		},
		{
			name: "missing type",
			req:  MergeRequest{Source: MergeNode{}},
		},
		{
			name: "variable injection",
			req:  MergeRequest{Source: MergeNode{Type: "Movie", Var: "m) DETACH DELETE (x"}},
		},
		{
			name: "target without relationship",
			req:  MergeRequest{Source: MergeNode{Type: "Movie"}, Target: &MergeNode{Type: "Actor"}},
		},
		{
			name: "unknown relationship",
			req: MergeRequest{
				Source:       MergeNode{Type: "Movie"},
				Target:       &MergeNode{Type: "Actor"},
				Relationship: &MergeRelationship{Field: "writers"},
			},
		},
		{
			name: "target outside the relationship",
			req: MergeRequest{
				Source:       MergeNode{Type: "Movie"},
				Target:       &MergeNode{Type: "Genre"},
				Relationship: &MergeRelationship{Field: "actors"},
			},
		},
		{
			name: "union target without type",
			req: MergeRequest{
				Source:       MergeNode{Type: "Actor"},
				Target:       &MergeNode{},
				Relationship: &MergeRelationship{Field: "productions"},
			},
		},
		{
			name: "shared variable",
			req: MergeRequest{
				Source:       MergeNode{Type: "Movie", Var: "n"},
				Target:       &MergeNode{Var: "n"},
				Relationship: &MergeRelationship{Field: "actors"},
			},
		},
		{
			name: "unknown property",
			req:  MergeRequest{Source: MergeNode{Type: "Movie", Match: map[string]any{"budget": 1}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := gj.CompileMerge(context.Background(), tt.req)
			assert.Error(t, err)
			assert.Len(t, res.Errors, 1)
			assert.Empty(t, res.Statements)
		})
	}
}
