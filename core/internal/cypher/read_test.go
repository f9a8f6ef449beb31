package cypher_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dosco/graphjin/neo4j/v3/core/internal/cypher"
	"github.com/dosco/graphjin/neo4j/v3/core/internal/qcode"
	"github.com/dosco/graphjin/neo4j/v3/core/internal/sdata"
)

func TestReadProjection(t *testing.T) {
	root := compileRoot(t, `{
		movies(where: { title: "Matrix" }) {
			id
			name: title
			createdAt
			director { name }
			genres(where: { name: "Sci-Fi" }) { name }
		}
	}`, nil)

	s, err := co.CompileRoot(&cypher.Request{}, root)
	require.NoError(t, err)

	assertGolden(t, "read_projection", s)
	assertClosed(t, s)
	assert.Equal(t, map[string]any{
		"this_title":       "Matrix",
		"this_genres_name": "Sci-Fi",
	}, s.Params)
}

func TestReadWithConnection(t *testing.T) {
	root := compileRoot(t, `{
		movies(options: { sort: [{ node: { released: DESC } }] }) {
			title
			actorsConnection(where: { node: { name: "Keanu" } }) {
				edges { screenTime node { name } }
			}
		}
	}`, nil)

	s, err := co.CompileRoot(&cypher.Request{}, root)
	require.NoError(t, err)

	assertGolden(t, "read_connection", s)
	assertClosed(t, s)
	assertUniqueVars(t, s)
}

func TestReadAllowCheck(t *testing.T) {
	series, _ := schema.Node("Series")
	f := qcode.Field{
		Alias: "series",
		Name:  "series",
		Selections: map[sdata.TypeName][]qcode.Field{
			"Series": {{Alias: "title", Name: "title"}, {Alias: "__typename", Name: "__typename"}},
		},
	}

	s, err := co.CompileRead(&cypher.Request{}, f, series)
	require.NoError(t, err)

	exp := `MATCH (this:Series)
WITH this
CALL apoc.util.validate(NOT (false), "@graphjin/FORBIDDEN", [0])
RETURN this { .title, __typename: "Series" } AS this`
	assert.Equal(t, exp, s.Text)

	s, err = co.CompileRead(&cypher.Request{Authenticated: true}, f, series)
	require.NoError(t, err)
	assert.Equal(t, "MATCH (this:Series)\nRETURN this { .title, __typename: \"Series\" } AS this", s.Text)
}

func TestReadUnionRelation(t *testing.T) {
	root := compileRoot(t, `{
		actors {
			productions { __typename ... on Movie { title } }
		}
	}`, nil)

	s, err := co.CompileRoot(&cypher.Request{Authenticated: true}, root)
	require.NoError(t, err)

	assert.Equal(t, `MATCH (this:Actor)
RETURN this { productions: [(this)-[:ACTED_IN]->(this_productions0:Movie) | { __resolveType: "Movie", title: this_productions0.title, __typename: "Movie" }] + [(this)-[:ACTED_IN]->(this_productions1:Series) | { __resolveType: "Series", __typename: "Series" }] } AS this`, s.Text)
}

func TestReadRelatedNodeRules(t *testing.T) {
	tests := []struct {
		name  string
		query string
		exp   string
	}{
		{
			name:  "relationship",
			query: `{ actors { productions { ... on Series { title } } } }`,
			exp: `[(this)-[:ACTED_IN]->(this_productions1:Series) WHERE apoc.util.validatePredicate(NOT (false), "@graphjin/FORBIDDEN", [0]) | ` +
				`{ __resolveType: "Series", title: this_productions1.title }]`,
		},
		{
			name:  "connection",
			query: `{ actors { productionsConnection { edges { node { ... on Series { title } } } } } }`,
			exp: "MATCH (this)-[this_acted_in:ACTED_IN]->(this_Series:Series)\n" +
				"WITH this_acted_in, this_Series\n" +
				`CALL apoc.util.validate(NOT (false), "@graphjin/FORBIDDEN", [0])`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := compileRoot(t, tt.query, nil)

			s, err := co.CompileRoot(&cypher.Request{}, root)
			require.NoError(t, err)
			assert.Contains(t, s.Text, tt.exp)
			assertClosed(t, s)

			s, err = co.CompileRoot(&cypher.Request{Authenticated: true}, root)
			require.NoError(t, err)
			assert.NotContains(t, s.Text, "validate")
		})
	}
}

const teamSchema = `
nodes:
  - name: Team
    fields:
      - name: name
        type: String
    relationships:
      - name: members
        type: MEMBER_OF
        direction: IN
        target: User
        array: true
  - name: User
    fields:
      - name: id
        type: ID
      - name: name
        type: String
    auth:
      rules:
        - operations: [read]
          where:
            id: $jwt.sub
        - operations: [read]
          allow:
            id: $jwt.sub
`

func TestReadRelatedNodeFilterRules(t *testing.T) {
	ts, err := sdata.Load([]byte(teamSchema))
	require.NoError(t, err)

	qc, err := qcode.NewCompiler(ts).Compile(`{
		teams {
			members { name }
			membersConnection { edges { node { name } } }
		}
	}`, nil, "")
	require.NoError(t, err)

	rc := &cypher.Request{Authenticated: true, JWT: map[string]any{"sub": "u1"}}
	s, err := cypher.NewCompiler(ts).CompileRoot(rc, qc.Roots[0])
	require.NoError(t, err)

	assert.Contains(t, s.Text, "[(this)<-[:MEMBER_OF]-(this_members:User) WHERE this_members.id = $this_members_auth_where0_id AND "+
		`apoc.util.validatePredicate(NOT (this_members.id = $this_members_auth_allow1_id), "@graphjin/FORBIDDEN", [0]) | `)
	assert.Contains(t, s.Text, "MATCH (this)<-[this_member_of:MEMBER_OF]-(this_user:User)\n"+
		"WHERE this_user.id = $this_user_auth_where0_id\n"+
		"WITH this_member_of, this_user\n"+
		`CALL apoc.util.validate(NOT (this_user.id = $this_user_auth_allow1_id), "@graphjin/FORBIDDEN", [0])`+"\n")

	for _, k := range []string{
		"this_members_auth_where0_id",
		"this_members_auth_allow1_id",
		"this_user_auth_where0_id",
		"this_user_auth_allow1_id",
	} {
		assert.Equal(t, "u1", s.Params[k], k)
	}
	assertClosed(t, s)
	assertUniqueVars(t, s)
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name  string
		query string
		err   error
	}{
		{
			name:  "unknown scalar",
			query: `{ movies { budget } }`,
			err:   cypher.ErrUnknownField,
		},
		{
			name:  "connection inside relationship",
			query: `{ movies { director { moviesConnection { edges { node { title } } } } } }`,
			err:   cypher.ErrConfiguration,
		},
		{
			name:  "relationship sort on root",
			query: `{ movies(options: { sort: [{ relationship: { role: ASC } }] }) { title } }`,
			err:   cypher.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := compileRoot(t, tt.query, nil)
			_, err := co.CompileRoot(&cypher.Request{}, root)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestCompileAllRoots(t *testing.T) {
	qc, err := qcomp.Compile(`{ movies { title } actors { name } }`, nil, "")
	require.NoError(t, err)

	stmts, err := co.Compile(&cypher.Request{}, qc)
	require.NoError(t, err)
	require.Len(t, stmts, 2)
	assert.Equal(t, "MATCH (this:Movie)\nRETURN this { .title } AS this", stmts[0].Text)
	assert.Equal(t, "MATCH (this:Actor)\nRETURN this { .name } AS this", stmts[1].Text)
}
