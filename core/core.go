package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/dosco/graphjin/neo4j/v3/core/internal/qcode"
	"github.com/dosco/graphjin/neo4j/v3/core/internal/stmt"
)

var ErrUnboundParam = errors.New("statement references unbound parameters")

type OpType int

const (
	OpUnknown OpType = iota
	OpQuery
	OpMutation
)

// Returns the operation type for the compile result
func (r *Result) Operation() OpType {
	switch r.operation {
	case qcode.QTQuery:
		return OpQuery

	case qcode.QTMutation:
		return OpMutation

	default:
		return OpUnknown
	}
}

// Returns the operation name for the compile result
func (r *Result) OperationName() string {
	return r.operation.String()
}

// Returns the query name for the compile result
func (r *Result) QueryName() string {
	return r.name
}

// CacheHit returns true if the statements were served from cache
func (r *Result) CacheHit() bool {
	return r.cacheHit
}

// Statement returns the statement compiled for the root field name
func (r *Result) Statement(name string) (Statement, bool) {
	for _, s := range r.Statements {
		if s.Name == name {
			return s, true
		}
	}
	return Statement{}, false
}

// checkStmt makes sure every placeholder in the statement has a value
func checkStmt(s Statement) error {
	if u := stmt.Unbound(stmt.New(s.Query, s.Params)); len(u) != 0 {
		return &unboundError{name: s.Name, params: u}
	}
	return nil
}

type unboundError struct {
	name   string
	params []string
}

func (e *unboundError) Error() string {
	return fmt.Sprintf("%s: %s: $%s", ErrUnboundParam, e.name, strings.Join(e.params, ", $"))
}

func (e *unboundError) Unwrap() error {
	return ErrUnboundParam
}

// debugLogStmt logs the compiled statements for debugging
func (s *gstate) debugLogStmt() {
	if !s.gj.conf.Debug {
		return
	}

	for _, st := range s.stmts {
		s.gj.log.Debug("compiled statement",
			zap.String("operation", s.op.String()),
			zap.String("name", st.Name),
			zap.Bool("cache_hit", s.cacheHit),
			zap.Int("params", len(st.Params)),
			zap.String("query", st.Pretty()))
	}
}

// Starts tracing with the given name
func (gj *graphjinEngine) spanStart(c context.Context, name string) (context.Context, Spaner) {
	return gj.trace.Start(c, name)
}
