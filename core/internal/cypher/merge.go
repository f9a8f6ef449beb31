package cypher

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dosco/graphjin/neo4j/v3/core/internal/sdata"
	"github.com/dosco/graphjin/neo4j/v3/core/internal/stmt"
)

// MergeNode is one node of a MERGE pattern. Params are the properties the
// pattern matches on; OnCreate holds properties only set when the node is
// created. In a relationship merge Node may be nil, the variable is then
// taken as already bound and rendered bare.
type MergeNode struct {
	VarName  string
	Node     *sdata.Node
	Params   map[string]any
	OnCreate map[string]any
}

type MergeRelationship struct {
	// VarName defaults to "{source}_relationship_{target}".
	VarName  string
	Field    sdata.RelationField
	OnCreate map[string]any
}

// MergeArgs with only Source set merges a bare node. Target and
// Relationship must be given together.
type MergeArgs struct {
	Source       MergeNode
	Target       *MergeNode
	Relationship *MergeRelationship
}

// CompileMerge returns a single MERGE statement followed, when anything is
// initialised on creation, by an ON CREATE SET clause.
func (co *Compiler) CompileMerge(a MergeArgs) (stmt.Stmt, error) {
	if (a.Target == nil) != (a.Relationship == nil) {
		return stmt.Stmt{}, fmt.Errorf("%w: relationship merge needs both a target and a relationship", ErrConfiguration)
	}

	b := stmt.NewBuilder()
	var sets []string

	bound := a.Target != nil

	src, err := mergeNodePattern(b, a.Source, bound)
	if err != nil {
		return stmt.Stmt{}, err
	}
	s, err := onCreate(b, a.Source.VarName, nodeFields{a.Source.Node}, a.Source.Params, a.Source.OnCreate)
	if err != nil {
		return stmt.Stmt{}, err
	}
	sets = append(sets, s...)

	if a.Target == nil {
		b.Line("MERGE " + src)
	} else {
		tgt, err := mergeNodePattern(b, *a.Target, bound)
		if err != nil {
			return stmt.Stmt{}, err
		}
		s, err := onCreate(b, a.Target.VarName, nodeFields{a.Target.Node}, a.Target.Params, a.Target.OnCreate)
		if err != nil {
			return stmt.Stmt{}, err
		}
		sets = append(sets, s...)

		r := a.Relationship
		relVar := r.VarName
		if relVar == "" {
			relVar = a.Source.VarName + "_relationship_" + a.Target.VarName
		}
		in, out := r.Field.Direction.Arrows()
		b.Linef("MERGE %s%s[%s:%s]%s%s", src, in, relVar, r.Field.Type, out, tgt)

		// a relationship without a known property type has nothing to
		// initialise beyond explicit values
		var props *sdata.RelProps
		if p, ok := co.schema.RelProps(r.Field.Properties); ok {
			props = p
		}
		s, err = onCreate(b, relVar, relFields{props}, nil, r.OnCreate)
		if err != nil {
			return stmt.Stmt{}, err
		}
		sets = append(sets, s...)
	}

	if len(sets) != 0 {
		b.Line("ON CREATE SET")
		b.Line(strings.Join(sets, ",\n"))
	}
	return b.Stmt()
}

// mergeNodePattern renders "(v:Label {k: $v_node_k})". When bound is set a
// node without a type renders as "(v)".
func mergeNodePattern(b *stmt.Builder, n MergeNode, bound bool) (string, error) {
	if n.VarName == "" {
		return "", fmt.Errorf("%w: merge node needs a variable", ErrConfiguration)
	}
	if n.Node == nil {
		switch {
		case !bound:
			return "", fmt.Errorf("%w: merge node %s needs a node type", ErrConfiguration, n.VarName)
		case len(n.Params) != 0:
			return "", fmt.Errorf("%w: merge node %s matches on properties without a node type", ErrConfiguration, n.VarName)
		}
		return "(" + n.VarName + ")", nil
	}
	var props []string
	for _, k := range sdata.SortedKeys(n.Params) {
		db, ok := n.Node.Lookup(k)
		if !ok {
			return "", fmt.Errorf("%w: %s.%s", ErrUnknownField, n.Node.Name, k)
		}
		pk := stmt.Key(n.VarName+"_node", k)
		b.Param(pk, n.Params[k])
		props = append(props, db+": $"+pk)
	}
	p := "(" + n.VarName + n.Node.LabelString()
	if len(props) != 0 {
		p += " {" + strings.Join(props, ", ") + "}"
	}
	return p + ")", nil
}

// fieldSource is the descriptor of a node or of relationship properties.
type fieldSource interface {
	fieldLookup
	primitives() []sdata.PrimitiveField
	temporals() []sdata.TemporalField
}

var propNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// nodeFields of a nil node generate nothing and accept any plain property
// name as is.
type nodeFields struct{ *sdata.Node }

func (n nodeFields) Lookup(name string) (string, bool) {
	if n.Node == nil {
		return name, propNameRe.MatchString(name)
	}
	return n.Node.Lookup(name)
}

func (n nodeFields) primitives() []sdata.PrimitiveField {
	if n.Node == nil {
		return nil
	}
	return n.PrimitiveFields
}

func (n nodeFields) temporals() []sdata.TemporalField {
	if n.Node == nil {
		return nil
	}
	return n.TemporalFields
}

type relFields struct{ *sdata.RelProps }

func (r relFields) primitives() []sdata.PrimitiveField {
	if r.RelProps == nil {
		return nil
	}
	return r.PrimitiveFields
}

func (r relFields) temporals() []sdata.TemporalField {
	if r.RelProps == nil {
		return nil
	}
	return r.TemporalFields
}

// onCreate returns the "v.f = expr" assignments for autogenerated fields
// missing from matched, creation timestamps and explicit values. An
// explicit value wins over a generated one.
func onCreate(
	b *stmt.Builder,
	v string,
	fs fieldSource,
	matched map[string]any,
	explicit map[string]any,
) ([]string, error) {
	var out []string
	for _, f := range fs.primitives() {
		if !f.Autogenerate {
			continue
		}
		if has(matched, f.Name) || has(explicit, f.Name) {
			continue
		}
		out = append(out, fmt.Sprintf("%s.%s = randomUUID()", v, dbOr(f.DBName, f.Name)))
	}
	for _, f := range fs.temporals() {
		if fn := nowFunc(f.Type); fn != "" && f.StampsOn(sdata.OnCreate) && !has(explicit, f.Name) {
			out = append(out, fmt.Sprintf("%s.%s = %s", v, dbOr(f.DBName, f.Name), fn))
		}
	}
	for _, k := range sdata.SortedKeys(explicit) {
		db, ok := fs.Lookup(k)
		if !ok {
			return nil, fmt.Errorf("%w: on create %s", ErrUnknownField, k)
		}
		pk := stmt.Key(v+"_on_create", k)
		b.Param(pk, explicit[k])
		out = append(out, fmt.Sprintf("%s.%s = $%s", v, db, pk))
	}
	return out, nil
}

func nowFunc(t sdata.TemporalType) string {
	switch t {
	case sdata.TypeDateTime:
		return "datetime()"
	case sdata.TypeTime:
		return "time()"
	case sdata.TypeDate:
		return "date()"
	case sdata.TypeLocalTime:
		return "localtime()"
	case sdata.TypeLocalDateTime:
		return "localdatetime()"
	}
	return ""
}

func dbOr(db, name string) string {
	if db != "" {
		return db
	}
	return name
}

func has(m map[string]any, k string) bool {
	_, ok := m[k]
	return ok
}
