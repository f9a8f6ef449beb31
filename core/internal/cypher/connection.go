package cypher

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/dosco/graphjin/neo4j/v3/core/internal/qcode"
	"github.com/dosco/graphjin/neo4j/v3/core/internal/sdata"
	"github.com/dosco/graphjin/neo4j/v3/core/internal/stmt"
)

// CompileConnection translates the connection field f selected on nodeVar
// into a CALL subquery returning { edges: [...] } under f.Alias.
//
// The connection's filter and the filters of any nested connections are
// bound under the single parameter key "{nodeVar}_{f.Alias}" as
// { args: { where }, edges: { node: { <nested alias>: ... } } }. Inside a
// union the nested values sit one level deeper, under the member type.
// Filters reference values inside it by path. prefix is the path of this
// connection inside an enclosing connection's parameter and is zero for a
// top level connection.
//
// Related nodes are filtered by their read rules and checked against
// their allow rules in every traversal.
func (co *Compiler) CompileConnection(
	rc *Request,
	f qcode.Field,
	cf sdata.ConnectionField,
	nodeVar string,
	prefix stmt.Path,
) (stmt.Stmt, error) {
	c := connContext{
		Compiler: co,
		rc:       rc,
		f:        f,
		cf:       cf,
		nodeVar:  nodeVar,
		varBase:  connVarBase(nodeVar, f),
		rel:      cf.Relationship,
		nested:   make(map[string]any),
	}
	c.relVar = c.varBase + "_" + strings.ToLower(cf.Relationship.Type)

	c.base = stmt.Root(nodeVar + "_" + f.Alias)
	if !prefix.IsZero() {
		c.base = prefix.Append(f.Alias)
	}

	if c.rel.Properties != "" {
		props, ok := co.schema.RelProps(c.rel.Properties)
		if !ok {
			return stmt.Stmt{}, fmt.Errorf("%w: relationship properties %s", ErrConfiguration, c.rel.Properties)
		}
		c.props = props
	}

	if err := c.splitEdges(); err != nil {
		return stmt.Stmt{}, err
	}

	b := stmt.NewBuilder()
	b.Line("CALL {")
	b.Linef("WITH %s", nodeVar)

	switch t := c.rel.Target.(type) {
	case sdata.NodeTarget:
		if err := c.renderNode(b, t); err != nil {
			return stmt.Stmt{}, err
		}
	case sdata.UnionTarget:
		if err := c.renderUnion(b, t); err != nil {
			return stmt.Stmt{}, err
		}
	default:
		return stmt.Stmt{}, fmt.Errorf("%w: connection %s has no target", ErrConfiguration, cf.FieldName)
	}

	b.Linef("RETURN { edges: edges } AS %s", f.Alias)
	b.Line("}")

	var val map[string]any
	if f.Args.Where != nil {
		val = map[string]any{"args": map[string]any{"where": f.Args.Where}}
	}
	if len(c.nested) != 0 {
		if val == nil {
			val = make(map[string]any)
		}
		val["edges"] = map[string]any{"node": c.nested}
	}
	if val != nil {
		b.Param(nodeVar+"_"+f.Alias, val)
	}
	return b.Stmt()
}

type connContext struct {
	*Compiler
	rc      *Request
	f       qcode.Field
	cf      sdata.ConnectionField
	nodeVar string
	varBase string
	rel     sdata.RelationField
	relVar  string
	props   *sdata.RelProps
	base    stmt.Path

	node     *qcode.Field
	relElems []string

	// parameter values of nested connections, keyed by alias, and for
	// unions by member type first
	nested map[string]any
}

// connVarBase is the prefix of the variables a connection binds. Aliased
// selections are qualified by their alias so one connection can be
// selected more than once on the same node.
func connVarBase(nodeVar string, f qcode.Field) string {
	if f.Alias != "" && f.Alias != f.Name {
		return nodeVar + "_" + f.Alias
	}
	return nodeVar
}

// splitEdges separates the "node" selection on edges from the selected
// relationship properties.
func (c *connContext) splitEdges() error {
	edges, ok := c.f.Child(c.cf.TypeName, "edges")
	if !ok {
		return nil
	}
	for _, ef := range edges.Fields(c.cf.RelationshipTypeName) {
		switch {
		case ef.Name == "node":
			if c.node == nil {
				n := ef
				c.node = &n
			}
		case strings.HasPrefix(ef.Name, "__"):
		default:
			if _, ok := c.props.Lookup(ef.Name); !ok {
				return fmt.Errorf("%w: %s.%s", ErrUnknownField, c.cf.RelationshipTypeName, ef.Name)
			}
			c.relElems = append(c.relElems, c.relProp.CompileRelProp(ef, c.props, c.relVar))
		}
	}
	return nil
}

func (c *connContext) renderNode(b *stmt.Builder, t sdata.NodeTarget) error {
	n, err := c.schema.Node(t.Type)
	if err != nil {
		return err
	}
	relatedVar := c.varBase + "_" + strings.ToLower(string(n.Name))

	b.Linef("MATCH %s", c.pattern(relatedVar, n))

	if err := c.filter(b, n, relatedVar); err != nil {
		return err
	}

	sort, err := c.sortClause(n, relatedVar)
	if err != nil {
		return err
	}
	if sort != "" {
		b.Linef("WITH %s, %s", c.relVar, relatedVar)
		b.Linef("ORDER BY %s", sort)
	}

	elems := append([]string(nil), c.relElems...)
	if c.node != nil {
		node, err := c.nodeElement(b, n, relatedVar, c.node.Selections, false,
			c.base.Append("edges", "node"), c.nested)
		if err != nil {
			return err
		}
		elems = append(elems, node)
	}
	b.Linef("WITH collect(%s) AS edges", mapLiteral(elems))
	return nil
}

func (c *connContext) renderUnion(b *stmt.Builder, t sdata.UnionTarget) error {
	branches := make([]string, 0, len(t.Members))

	for _, m := range t.Members {
		n, err := c.schema.Node(m)
		if err != nil {
			return err
		}
		relatedVar := c.varBase + "_" + string(n.Name)

		bb := stmt.NewBuilder()
		bb.Linef("WITH %s", c.nodeVar)
		bb.Linef("MATCH %s", c.pattern(relatedVar, n))

		if err := c.filter(bb, n, relatedVar); err != nil {
			return err
		}

		elems := append([]string(nil), c.relElems...)
		if c.node != nil {
			sel := map[sdata.TypeName][]qcode.Field{n.Name: c.node.MergedFields(n.Name, t.Name)}
			nested := make(map[string]any)
			node, err := c.nodeElement(bb, n, relatedVar, sel, true,
				c.base.Append("edges", "node", string(n.Name)), nested)
			if err != nil {
				return err
			}
			if len(nested) != 0 {
				c.nested[string(n.Name)] = nested
			}
			elems = append(elems, node)
		}
		bb.Linef("WITH %s AS edge", mapLiteral(elems))
		bb.Line("RETURN edge")

		s, err := bb.Stmt()
		if err != nil {
			return err
		}
		b.Params(s.Params)
		branches = append(branches, s.Text)
	}

	b.Line("CALL {")
	b.Line(strings.Join(branches, "\nUNION\n"))
	b.Line("}")
	b.Line("WITH collect(edge) AS edges")
	return nil
}

func (c *connContext) pattern(relatedVar string, n *sdata.Node) string {
	in, out := c.rel.Direction.Arrows()
	return fmt.Sprintf("(%s)%s[%s:%s]%s(%s%s)",
		c.nodeVar, in, c.relVar, c.rel.Type, out, relatedVar, n.LabelString())
}

// filter writes the WHERE clause combining the connection filter with the
// related node's read rules, then its allow check.
func (c *connContext) filter(b *stmt.Builder, n *sdata.Node, relatedVar string) error {
	var preds []string

	if c.f.Args.Where != nil {
		ws, err := c.where.CompileConnectionWhere(ConnectionWhereArgs{
			Where:        c.f.Args.Where,
			Node:         n,
			NodeVar:      relatedVar,
			Relationship: c.props,
			RelVar:       c.relVar,
			Path:         c.base.Append("args", "where"),
		})
		if err != nil {
			return err
		}
		if ws.Text != "" {
			preds = append(preds, ws.Text)
		}
		b.Params(ws.Params)
	}

	where, allow, err := readRules(c.auth, c.rc, n, relatedVar)
	if err != nil {
		return err
	}
	if where.Text != "" {
		preds = append(preds, where.Text)
		b.Params(where.Params)
	}
	if len(preds) != 0 {
		b.Linef("WHERE %s", strings.Join(preds, " AND "))
	}

	if allow.Text != "" {
		b.Linef("WITH %s, %s", c.relVar, relatedVar)
		b.Line(validate(allow.Text, false))
		b.Params(allow.Params)
	}
	return nil
}

// nodeElement renders "node: {...}" for the related node and writes the
// subqueries of any connections selected on it to b. The parameter values
// of those connections are collected into nested, keyed by alias; base is
// the path of nested inside this connection's parameter.
func (c *connContext) nodeElement(
	b *stmt.Builder,
	n *sdata.Node,
	relatedVar string,
	sel map[sdata.TypeName][]qcode.Field,
	resolveType bool,
	base stmt.Path,
	nested map[string]any,
) (string, error) {
	p, err := c.proj.CompileProjection(c.rc, ProjectionArgs{
		Selections:  sel,
		Node:        n,
		VarName:     relatedVar,
		Literal:     true,
		ResolveType: resolveType,
	})
	if err != nil {
		return "", err
	}
	b.Params(p.Params)

	for _, nf := range p.ConnectionFields {
		ncf, ok := n.ConnectionField(nf.Name)
		if !ok {
			return "", fmt.Errorf("%w: %s.%s", ErrUnknownField, n.Name, nf.Name)
		}
		ns, err := c.CompileConnection(c.rc, nf, ncf, relatedVar, base)
		if err != nil {
			return "", err
		}
		b.Line(ns.Text)

		key := relatedVar + "_" + nf.Alias
		for k, v := range ns.Params {
			if k != key {
				b.Param(k, v)
			}
		}
		if v, ok := ns.Params[key]; ok {
			if prev, ok := nested[nf.Alias]; ok && !reflect.DeepEqual(prev, v) {
				return "", fmt.Errorf("%w: %s", stmt.ErrParamCollision, base.Append(nf.Alias))
			}
			nested[nf.Alias] = v
		}
	}
	return "node: " + p.Text, nil
}

func (c *connContext) sortClause(n *sdata.Node, relatedVar string) (string, error) {
	if c.f.Args.Options == nil {
		return "", nil
	}
	var parts []string
	for _, e := range c.f.Args.Options.Sort {
		for _, sf := range e.Relationship {
			db, ok := c.props.Lookup(sf.Field)
			if !ok {
				return "", fmt.Errorf("%w: sort on %s.%s", ErrUnknownField, c.cf.RelationshipTypeName, sf.Field)
			}
			parts = append(parts, c.relVar+"."+db+" "+string(sf.Direction))
		}
		for _, sf := range e.Node {
			db, ok := n.Lookup(sf.Field)
			if !ok {
				return "", fmt.Errorf("%w: sort on %s.%s", ErrUnknownField, n.Name, sf.Field)
			}
			parts = append(parts, relatedVar+"."+db+" "+string(sf.Direction))
		}
	}
	return strings.Join(parts, ", "), nil
}
