// Package cypher translates resolved GraphQL selections and mutation inputs
// into parameterised Cypher statements.
package cypher

import (
	"errors"
	"fmt"

	"github.com/dosco/graphjin/neo4j/v3/core/internal/qcode"
	"github.com/dosco/graphjin/neo4j/v3/core/internal/sdata"
	"github.com/dosco/graphjin/neo4j/v3/core/internal/stmt"
)

// ForbiddenMessage is raised by apoc.util.validate when an allow check fails.
const ForbiddenMessage = "@graphjin/FORBIDDEN"

var (
	ErrConfiguration = errors.New("invalid translator arguments")
	ErrUnknownField  = errors.New("unknown field")
	ErrInvalidInput  = errors.New("invalid input")
)

// Request carries the per-request values the translators consult. It is
// never mutated by a translator.
type Request struct {
	Authenticated bool
	JWT           map[string]any
	Roles         []string
}

type Compiler struct {
	schema  *sdata.Schema
	where   WhereCompiler
	auth    AuthCompiler
	proj    ProjectionCompiler
	relProp RelPropCompiler
}

type Option func(*Compiler)

func WithWhereCompiler(w WhereCompiler) Option {
	return func(co *Compiler) { co.where = w }
}

func WithAuthCompiler(a AuthCompiler) Option {
	return func(co *Compiler) { co.auth = a }
}

func WithProjectionCompiler(p ProjectionCompiler) Option {
	return func(co *Compiler) { co.proj = p }
}

func WithRelPropCompiler(r RelPropCompiler) Option {
	return func(co *Compiler) { co.relProp = r }
}

// NewCompiler returns a compiler over schema. Collaborators not supplied
// through options use the package defaults.
func NewCompiler(schema *sdata.Schema, opts ...Option) *Compiler {
	co := &Compiler{schema: schema}
	for _, o := range opts {
		o(co)
	}
	if co.where == nil {
		co.where = NewWhereCompiler()
	}
	if co.auth == nil {
		co.auth = NewAuthCompiler()
	}
	if co.proj == nil {
		co.proj = NewProjectionCompiler(schema, co.where, co.auth)
	}
	if co.relProp == nil {
		co.relProp = NewRelPropCompiler()
	}
	return co
}

// Schema returns the schema the compiler was built with.
func (co *Compiler) Schema() *sdata.Schema {
	return co.schema
}

// CompileRoot compiles one root field of an operation into a complete
// statement.
func (co *Compiler) CompileRoot(rc *Request, root qcode.Root) (stmt.Stmt, error) {
	switch root.Op {
	case qcode.OpRead:
		return co.CompileRead(rc, root.Field, root.Node)
	case qcode.OpDelete:
		return co.CompileDeleteMutation(rc, root.Field, root.Node)
	}
	return stmt.Stmt{}, fmt.Errorf("%w: unknown op %d", ErrConfiguration, root.Op)
}

// Compile compiles every root of qc, in order.
func (co *Compiler) Compile(rc *Request, qc *qcode.QCode) ([]stmt.Stmt, error) {
	out := make([]stmt.Stmt, 0, len(qc.Roots))
	for _, r := range qc.Roots {
		s, err := co.CompileRoot(rc, r)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", r.Field.Alias, err)
		}
		out = append(out, s)
	}
	return out, nil
}
