package core

import (
	"context"

	"go.uber.org/zap"

	"github.com/dosco/graphjin/neo4j/v3/core/internal/cypher"
	"github.com/dosco/graphjin/neo4j/v3/core/internal/qcode"
)

// gstate is the state of a single compile request
type gstate struct {
	gj       *graphjinEngine
	r        graphqlReq
	rc       cypher.Request
	vmap     map[string]any
	op       qcode.QType
	name     string
	stmts    []Statement
	cacheHit bool
}

func newGState(c context.Context, gj *graphjinEngine, r graphqlReq) (s gstate, err error) {
	s.gj = gj
	s.r = r

	if v, ok := c.Value(UserIDKey).(string); ok && v != "" {
		s.rc.Authenticated = true
		s.rc.JWT = map[string]any{"sub": v}
	}
	if v, ok := c.Value(UserClaimsKey).(map[string]any); ok {
		s.rc.JWT = v
	}
	if v, ok := c.Value(UserRolesKey).([]string); ok {
		s.rc.Roles = v
	}

	var rvars map[string]any
	if rc := r.rc; rc != nil {
		if rc.Authenticated {
			s.rc.Authenticated = true
		}
		if rc.JWT != nil {
			s.rc.JWT = rc.JWT
		}
		if rc.Roles != nil {
			s.rc.Roles = rc.Roles
		}
		rvars = rc.Vars
	}

	vmap, err := parseVars(r.vars)
	if err != nil {
		return
	}
	s.vmap = mergeVars(vmap, gj.conf.Vars, rvars)
	return
}

func (s *gstate) key() (uint64, error) {
	return cacheKey{
		Query:         s.r.query,
		OperationName: s.r.name,
		Vars:          s.vmap,
		Authenticated: s.rc.Authenticated,
		JWT:           s.rc.JWT,
		Roles:         s.rc.Roles,
	}.hash()
}

func (s *gstate) compile() (err error) {
	if s.gj.conf.DisableCache {
		return s.compileQuery()
	}

	k, err := s.key()
	if err != nil {
		// unhashable variables, compile without the cache
		s.gj.log.Warn("cache key", zap.Error(err))
		return s.compileQuery()
	}

	if e, ok := s.gj.cache.Get(k); ok {
		s.op, s.name, s.stmts = e.operation, e.name, e.stmts
		s.cacheHit = true
		return
	}

	if err = s.compileQuery(); err != nil {
		return
	}

	s.gj.cache.Set(k, cacheEntry{operation: s.op, name: s.name, stmts: s.stmts})
	return
}

func (s *gstate) compileQuery() (err error) {
	qc, err := s.gj.qcodeCompiler.Compile(s.r.query, s.vmap, s.r.name)
	if err != nil {
		return
	}
	s.op = qc.Type
	s.name = qc.Name

	cs, err := s.gj.cypherCompiler.Compile(&s.rc, qc)
	if err != nil {
		return
	}

	stmts := make([]Statement, len(cs))
	for i, st := range cs {
		stmts[i] = Statement{
			Name:   qc.Roots[i].Field.Alias,
			Query:  st.Text,
			Params: st.Params,
		}
		if err = checkStmt(stmts[i]); err != nil {
			s.gj.log.Error("compile", zap.Error(err))
			return
		}
	}
	s.stmts = stmts
	return
}
