package qcode

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dosco/graphjin/neo4j/v3/core/internal/sdata"
	"github.com/gobuffalo/flect"
	"github.com/mitchellh/mapstructure"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

var (
	ErrUnknownField  = errors.New("unknown field")
	ErrInvalidArg    = errors.New("invalid argument")
	ErrNoOperation   = errors.New("no operation found")
	ErrUnsupportedOp = errors.New("unsupported operation")
)

type rootInfo struct {
	node *sdata.Node
	op   Op
}

// Compiler turns GraphQL documents into resolved selection trees typed
// against a schema. Root query fields are the camel-cased plural of a node
// type (movies), root mutation fields prefix it with delete (deleteMovies).
type Compiler struct {
	schema    *sdata.Schema
	queries   map[string]rootInfo
	mutations map[string]rootInfo
}

func NewCompiler(schema *sdata.Schema) *Compiler {
	co := &Compiler{
		schema:    schema,
		queries:   make(map[string]rootInfo),
		mutations: make(map[string]rootInfo),
	}

	for _, n := range schema.Nodes() {
		plural := flect.Pluralize(flect.Camelize(string(n.Name)))
		co.queries[plural] = rootInfo{node: n, op: OpRead}
		co.mutations["delete"+flect.Pascalize(plural)] = rootInfo{node: n, op: OpDelete}
	}
	return co
}

type resolver struct {
	co   *Compiler
	doc  *ast.QueryDocument
	vars map[string]any
}

// Compile parses query and resolves the operation named opName (or the
// first operation when opName is empty).
func (co *Compiler) Compile(query string, vars map[string]any, opName string) (*QCode, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: query})
	if err != nil {
		return nil, fmt.Errorf("qcode: %w", err)
	}

	var op *ast.OperationDefinition
	if opName != "" {
		op = doc.Operations.ForName(opName)
	} else if len(doc.Operations) != 0 {
		op = doc.Operations[0]
	}
	if op == nil {
		return nil, ErrNoOperation
	}

	qc := &QCode{Name: op.Name}
	roots := co.queries

	switch op.Operation {
	case ast.Query:
		qc.Type = QTQuery
	case ast.Mutation:
		qc.Type = QTMutation
		roots = co.mutations
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedOp, op.Operation)
	}

	r := resolver{co: co, doc: doc, vars: vars}

	for _, s := range op.SelectionSet {
		af, ok := s.(*ast.Field)
		if !ok {
			return nil, fmt.Errorf("%w: root selections must be fields", ErrUnsupportedOp)
		}
		if strings.HasPrefix(af.Name, "__") {
			continue
		}

		ri, ok := roots[af.Name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, af.Name)
		}

		f, err := r.field(af, ri.node.Name, ri.op == OpRead)
		if err != nil {
			return nil, err
		}
		qc.Roots = append(qc.Roots, Root{Field: f, Node: ri.node, Op: ri.op})
	}
	return qc, nil
}

func (r *resolver) field(af *ast.Field, tn sdata.TypeName, withSelections bool) (Field, error) {
	f := Field{Alias: af.Alias, Name: af.Name}
	if f.Alias == "" {
		f.Alias = f.Name
	}

	var err error
	if f.Args, err = r.args(af); err != nil {
		return f, fmt.Errorf("%s: %w", f.Name, err)
	}

	if len(af.SelectionSet) == 0 || !withSelections {
		return f, nil
	}

	f.Selections = make(map[sdata.TypeName][]Field)
	err = r.collect(af.SelectionSet, tn, f.Selections)
	return f, err
}

func (r *resolver) collect(set ast.SelectionSet, tn sdata.TypeName, out map[sdata.TypeName][]Field) error {
	for _, s := range set {
		switch v := s.(type) {
		case *ast.Field:
			child := tn
			if len(v.SelectionSet) != 0 {
				var err error
				if child, err = r.childType(tn, v.Name); err != nil {
					return err
				}
			}
			f, err := r.field(v, child, true)
			if err != nil {
				return err
			}
			out[tn] = append(out[tn], f)

		case *ast.InlineFragment:
			cond := tn
			if v.TypeCondition != "" {
				var err error
				if cond, err = r.co.schema.TypeName(v.TypeCondition); err != nil {
					return err
				}
			}
			if err := r.collect(v.SelectionSet, cond, out); err != nil {
				return err
			}

		case *ast.FragmentSpread:
			fd := r.doc.Fragments.ForName(v.Name)
			if fd == nil {
				return fmt.Errorf("%w: fragment %s", ErrUnknownField, v.Name)
			}
			cond, err := r.co.schema.TypeName(fd.TypeCondition)
			if err != nil {
				return err
			}
			if err := r.collect(fd.SelectionSet, cond, out); err != nil {
				return err
			}
		}
	}
	return nil
}

// childType returns the type of the field name selected on parent.
func (r *resolver) childType(parent sdata.TypeName, name string) (sdata.TypeName, error) {
	s := r.co.schema

	if n, err := s.Node(parent); err == nil {
		if rf, ok := n.RelationField(name); ok {
			return rf.TargetName(), nil
		}
		if cf, ok := n.ConnectionField(name); ok {
			return cf.TypeName, nil
		}
	}

	if cf, ok := s.Connection(parent); ok && name == "edges" {
		return cf.RelationshipTypeName, nil
	}

	if cf, ok := s.Edge(parent); ok && name == "node" {
		return cf.Relationship.TargetName(), nil
	}

	return "", fmt.Errorf("%w: %s.%s", ErrUnknownField, parent, name)
}

func (r *resolver) args(af *ast.Field) (Args, error) {
	var a Args

	for _, arg := range af.Arguments {
		switch arg.Name {
		case "where":
			m, err := r.objectArg(arg)
			if err != nil {
				return a, err
			}
			a.Where = m

		case "delete":
			m, err := r.objectArg(arg)
			if err != nil {
				return a, err
			}
			a.Delete = m

		case "options":
			o, err := r.options(arg.Value)
			if err != nil {
				return a, err
			}
			a.Options = o
		}
	}
	return a, nil
}

func (r *resolver) objectArg(arg *ast.Argument) (map[string]any, error) {
	val, err := arg.Value.Value(r.vars)
	if err != nil {
		return nil, err
	}
	if val == nil {
		return nil, nil
	}
	m, ok := val.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be an object", ErrInvalidArg, arg.Name)
	}
	return m, nil
}

// options keeps the written order of sort keys when the argument is a
// literal; values coming from variables fall back to OptionsFromMap.
func (r *resolver) options(v *ast.Value) (*Options, error) {
	if v.Kind != ast.ObjectValue {
		val, err := v.Value(r.vars)
		if err != nil {
			return nil, err
		}
		if val == nil {
			return nil, nil
		}
		m, ok := val.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: options must be an object", ErrInvalidArg)
		}
		return OptionsFromMap(m)
	}

	o := &Options{}
	for _, c := range v.Children {
		if c.Name != "sort" {
			continue
		}
		if c.Value.Kind != ast.ListValue {
			val, err := c.Value.Value(r.vars)
			if err != nil {
				return nil, err
			}
			if o, err = OptionsFromMap(map[string]any{"sort": val}); err != nil {
				return nil, err
			}
			continue
		}

		for _, item := range c.Value.Children {
			if item.Value.Kind != ast.ObjectValue {
				return nil, fmt.Errorf("%w: sort entries must be objects", ErrInvalidArg)
			}
			var se SortEntry
			for _, kv := range item.Value.Children {
				sf, err := r.sortFields(kv.Value)
				if err != nil {
					return nil, err
				}
				switch kv.Name {
				case "node":
					se.Node = sf
				case "relationship":
					se.Relationship = sf
				default:
					return nil, fmt.Errorf("%w: sort key %s", ErrInvalidArg, kv.Name)
				}
			}
			o.Sort = append(o.Sort, se)
		}
	}
	return o, nil
}

func (r *resolver) sortFields(v *ast.Value) ([]SortField, error) {
	if v.Kind != ast.ObjectValue {
		val, err := v.Value(r.vars)
		if err != nil {
			return nil, err
		}
		m, ok := val.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: sort fields must be an object", ErrInvalidArg)
		}
		return sortFieldsFromMap(m)
	}

	var out []SortField
	for _, c := range v.Children {
		d, err := c.Value.Value(r.vars)
		if err != nil {
			return nil, err
		}
		sf, err := newSortField(c.Name, d)
		if err != nil {
			return nil, err
		}
		out = append(out, sf)
	}
	return out, nil
}

type optionsInput struct {
	Sort []struct {
		Node         map[string]any `mapstructure:"node"`
		Relationship map[string]any `mapstructure:"relationship"`
	} `mapstructure:"sort"`
}

// OptionsFromMap decodes connection options given as plain values, eg. from
// JSON variables. Map keys carry no order so fields within one sort entry
// are taken in sorted order.
func OptionsFromMap(m map[string]any) (*Options, error) {
	var in optionsInput
	if err := mapstructure.Decode(m, &in); err != nil {
		return nil, fmt.Errorf("%w: options: %s", ErrInvalidArg, err)
	}

	o := &Options{}
	for _, s := range in.Sort {
		var se SortEntry
		var err error
		if se.Node, err = sortFieldsFromMap(s.Node); err != nil {
			return nil, err
		}
		if se.Relationship, err = sortFieldsFromMap(s.Relationship); err != nil {
			return nil, err
		}
		o.Sort = append(o.Sort, se)
	}
	return o, nil
}

func sortFieldsFromMap(m map[string]any) ([]SortField, error) {
	var out []SortField
	for _, k := range sdata.SortedKeys(m) {
		sf, err := newSortField(k, m[k])
		if err != nil {
			return nil, err
		}
		out = append(out, sf)
	}
	return out, nil
}

func newSortField(name string, d any) (SortField, error) {
	s, _ := d.(string)
	switch dir := SortDirection(strings.ToUpper(s)); dir {
	case SortAsc, SortDesc:
		return SortField{Field: name, Direction: dir}, nil
	}
	return SortField{}, fmt.Errorf("%w: sort direction %v for %s", ErrInvalidArg, d, name)
}
