package cypher

import (
	"github.com/dosco/graphjin/neo4j/v3/core/internal/qcode"
	"github.com/dosco/graphjin/neo4j/v3/core/internal/sdata"
	"github.com/dosco/graphjin/neo4j/v3/core/internal/stmt"
)

// WhereArgs describes a filter over a single node variable. Parameters are
// bound under flat keys prefixed with VarName. When Nested is false the
// returned text starts with "WHERE ".
type WhereArgs struct {
	Where   map[string]any
	Node    *sdata.Node
	VarName string
	Nested  bool
}

// ConnectionWhereArgs describes a connection filter. The filter value lives
// in the caller's parameter map at Path, so the returned text references
// values by path and binds no parameters of its own.
type ConnectionWhereArgs struct {
	Where        map[string]any
	Node         *sdata.Node
	NodeVar      string
	Relationship *sdata.RelProps
	RelVar       string
	Path         stmt.Path
}

type WhereCompiler interface {
	CompileWhere(a WhereArgs) (stmt.Stmt, error)
	CompileConnectionWhere(a ConnectionWhereArgs) (stmt.Stmt, error)
}

type AuthMode int8

const (
	AuthWhere AuthMode = iota
	AuthAllow
)

func (m AuthMode) String() string {
	if m == AuthAllow {
		return "allow"
	}
	return "where"
}

type AuthArgs struct {
	Operation    string
	Node         *sdata.Node
	VarName      string
	Mode         AuthMode
	EscapeQuotes bool
}

// AuthCompiler returns the predicate text for the node's authorization
// rules. An empty text means no rule applies.
type AuthCompiler interface {
	CompileAuth(rc *Request, a AuthArgs) (stmt.Stmt, error)
}

type ProjectionArgs struct {
	Selections  map[sdata.TypeName][]qcode.Field
	Node        *sdata.Node
	VarName     string
	Literal     bool
	ResolveType bool
}

// Projection is a rendered selection set. ConnectionFields lists the
// selected connection fields the caller must compile as subqueries.
type Projection struct {
	Text             string
	Params           map[string]any
	ConnectionFields []qcode.Field
}

type ProjectionCompiler interface {
	CompileProjection(rc *Request, a ProjectionArgs) (Projection, error)
}

// RelPropCompiler renders one "alias: expr" element for a relationship
// property selected on an edge.
type RelPropCompiler interface {
	CompileRelProp(f qcode.Field, props *sdata.RelProps, relVar string) string
}
