package cypher

import (
	"fmt"
	"strings"

	"github.com/dosco/graphjin/neo4j/v3/core/internal/qcode"
	"github.com/dosco/graphjin/neo4j/v3/core/internal/sdata"
	"github.com/dosco/graphjin/neo4j/v3/core/internal/stmt"
)

const rootVar = "this"

// CompileRead compiles a root query field into a complete statement
// returning one row per matched node.
func (co *Compiler) CompileRead(rc *Request, f qcode.Field, n *sdata.Node) (stmt.Stmt, error) {
	b := stmt.NewBuilder()
	b.Linef("MATCH (%s%s)", rootVar, n.LabelString())

	if err := co.rootFilter(b, rc, "read", f, n); err != nil {
		return stmt.Stmt{}, err
	}

	sort, err := rootSort(f, n)
	if err != nil {
		return stmt.Stmt{}, err
	}
	if sort != "" {
		b.Linef("WITH %s", rootVar)
		b.Linef("ORDER BY %s", sort)
	}

	p, err := co.proj.CompileProjection(rc, ProjectionArgs{
		Selections: f.Selections,
		Node:       n,
		VarName:    rootVar,
	})
	if err != nil {
		return stmt.Stmt{}, err
	}
	b.Params(p.Params)

	for _, cfld := range p.ConnectionFields {
		cf, ok := n.ConnectionField(cfld.Name)
		if !ok {
			return stmt.Stmt{}, fmt.Errorf("%w: %s.%s", ErrUnknownField, n.Name, cfld.Name)
		}
		cs, err := co.CompileConnection(rc, cfld, cf, rootVar, stmt.Path{})
		if err != nil {
			return stmt.Stmt{}, err
		}
		b.Add(cs)
	}

	b.Linef("RETURN %s AS %s", p.Text, rootVar)
	return b.Stmt()
}

// CompileDeleteMutation compiles a root delete mutation. Related nodes
// addressed by the delete argument are removed before the root nodes.
func (co *Compiler) CompileDeleteMutation(rc *Request, f qcode.Field, n *sdata.Node) (stmt.Stmt, error) {
	b := stmt.NewBuilder()
	b.Linef("MATCH (%s%s)", rootVar, n.LabelString())

	if err := co.rootFilter(b, rc, "delete", f, n); err != nil {
		return stmt.Stmt{}, err
	}

	if len(f.Args.Delete) != 0 {
		ds, err := co.CompileDelete(rc, DeleteArgs{
			Input:     f.Args.Delete,
			Node:      n,
			VarName:   rootVar,
			ParentVar: rootVar,
			ChainStr:  rootVar + "_delete",
			WithVars:  []string{rootVar},
		})
		if err != nil {
			return stmt.Stmt{}, err
		}
		b.Add(ds)
	}

	b.Linef("DETACH DELETE %s", rootVar)
	return b.Stmt()
}

// rootFilter writes the WHERE clause combining the where argument with the
// operation's filtering rules, then the allow check.
func (co *Compiler) rootFilter(b *stmt.Builder, rc *Request, op string, f qcode.Field, n *sdata.Node) error {
	var preds []string

	ws, err := co.where.CompileWhere(WhereArgs{Where: f.Args.Where, Node: n, VarName: rootVar, Nested: true})
	if err != nil {
		return err
	}
	if ws.Text != "" {
		preds = append(preds, ws.Text)
		b.Params(ws.Params)
	}

	as, allow, err := nodeRules(co.auth, rc, op, n, rootVar)
	if err != nil {
		return err
	}
	if as.Text != "" {
		preds = append(preds, as.Text)
		b.Params(as.Params)
	}
	if len(preds) != 0 {
		b.Linef("WHERE %s", strings.Join(preds, " AND "))
	}

	if allow.Text != "" {
		b.Linef("WITH %s", rootVar)
		b.Line(validate(allow.Text, false))
		b.Params(allow.Params)
	}
	return nil
}

// nodeRules compiles the filtering predicate and the allow predicate of
// the rules of n that apply to op, over the variable v.
func nodeRules(auth AuthCompiler, rc *Request, op string, n *sdata.Node, v string) (where, allow stmt.Stmt, err error) {
	if where, err = auth.CompileAuth(rc, AuthArgs{Operation: op, Node: n, VarName: v, Mode: AuthWhere}); err != nil {
		return
	}
	allow, err = auth.CompileAuth(rc, AuthArgs{Operation: op, Node: n, VarName: v, Mode: AuthAllow})
	return
}

// readRules is nodeRules for nodes reached by a read traversal.
func readRules(auth AuthCompiler, rc *Request, n *sdata.Node, v string) (where, allow stmt.Stmt, err error) {
	return nodeRules(auth, rc, "read", n, v)
}

func rootSort(f qcode.Field, n *sdata.Node) (string, error) {
	if f.Args.Options == nil {
		return "", nil
	}
	var parts []string
	for _, e := range f.Args.Options.Sort {
		if len(e.Relationship) != 0 {
			return "", fmt.Errorf("%w: relationship sort on a root field", ErrInvalidInput)
		}
		for _, sf := range e.Node {
			db, ok := n.Lookup(sf.Field)
			if !ok {
				return "", fmt.Errorf("%w: sort on %s.%s", ErrUnknownField, n.Name, sf.Field)
			}
			parts = append(parts, rootVar+"."+db+" "+string(sf.Direction))
		}
	}
	return strings.Join(parts, ", "), nil
}
