package cypher

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dosco/graphjin/neo4j/v3/core/internal/qcode"
	"github.com/dosco/graphjin/neo4j/v3/core/internal/sdata"
	"github.com/dosco/graphjin/neo4j/v3/core/internal/stmt"
)

type projectionCompiler struct {
	schema *sdata.Schema
	where  WhereCompiler
	auth   AuthCompiler
}

// NewProjectionCompiler returns the default projection renderer. Relation
// fields become pattern comprehensions filtered through where and the read
// rules of the related node.
func NewProjectionCompiler(schema *sdata.Schema, where WhereCompiler, auth AuthCompiler) ProjectionCompiler {
	return &projectionCompiler{schema: schema, where: where, auth: auth}
}

func (pc *projectionCompiler) CompileProjection(rc *Request, a ProjectionArgs) (Projection, error) {
	var p Projection
	params := make(map[string]any)
	var elems []string

	if a.ResolveType {
		elems = append(elems, `__resolveType: "`+string(a.Node.Name)+`"`)
	}

	for _, f := range a.Selections[a.Node.Name] {
		switch {
		case f.Name == "__typename":
			elems = append(elems, f.Alias+`: "`+string(a.Node.Name)+`"`)

		case strings.HasPrefix(f.Name, "__"):
			continue

		default:
			if _, ok := a.Node.ConnectionField(f.Name); ok {
				p.ConnectionFields = append(p.ConnectionFields, f)
				elems = append(elems, f.Alias+": "+f.Alias)
				continue
			}

			if rf, ok := a.Node.RelationField(f.Name); ok {
				s, err := pc.relation(rc, f, rf, a.VarName)
				if err != nil {
					return p, err
				}
				if err := stmt.MergeParams(params, s.Params); err != nil {
					return p, err
				}
				elems = append(elems, f.Alias+": "+s.Text)
				continue
			}

			db, ok := a.Node.Lookup(f.Name)
			if !ok {
				return p, fmt.Errorf("%w: %s.%s", ErrUnknownField, a.Node.Name, f.Name)
			}
			if tf, ok := a.Node.TemporalField(f.Name); ok && tf.Type == sdata.TypeDateTime {
				elems = append(elems, f.Alias+": "+formatDateTime(a.VarName+"."+db))
				continue
			}
			if !a.Literal && f.Alias == db {
				elems = append(elems, "."+db)
				continue
			}
			elems = append(elems, f.Alias+": "+a.VarName+"."+db)
		}
	}

	p.Text = mapLiteral(elems)
	if !a.Literal {
		p.Text = a.VarName + " " + p.Text
	}
	p.Params = params
	return p, nil
}

func (pc *projectionCompiler) relation(rc *Request, f qcode.Field, rf sdata.RelationField, v string) (stmt.Stmt, error) {
	var comps []string
	params := make(map[string]any)

	switch t := rf.Target.(type) {
	case sdata.NodeTarget:
		n, err := pc.schema.Node(t.Type)
		if err != nil {
			return stmt.Stmt{}, err
		}
		s, err := pc.comprehension(rc, f, rf, v, v+"_"+f.Alias, n, f.Selections, false)
		if err != nil {
			return stmt.Stmt{}, err
		}
		comps = append(comps, s.Text)
		params = s.Params

	case sdata.UnionTarget:
		for i, m := range t.Members {
			n, err := pc.schema.Node(m)
			if err != nil {
				return stmt.Stmt{}, err
			}
			sel := map[sdata.TypeName][]qcode.Field{n.Name: f.MergedFields(n.Name, t.Name)}
			cv := v + "_" + f.Alias + strconv.Itoa(i)
			s, err := pc.comprehension(rc, f, rf, v, cv, n, sel, true)
			if err != nil {
				return stmt.Stmt{}, err
			}
			if err := stmt.MergeParams(params, s.Params); err != nil {
				return stmt.Stmt{}, err
			}
			comps = append(comps, s.Text)
		}

	default:
		return stmt.Stmt{}, fmt.Errorf("%w: relationship %s has no target", ErrConfiguration, rf.FieldName)
	}

	text := strings.Join(comps, " + ")
	if !rf.Array {
		text = "head(" + text + ")"
	}
	return stmt.New(text, params), nil
}

func (pc *projectionCompiler) comprehension(
	rc *Request,
	f qcode.Field,
	rf sdata.RelationField,
	v, cv string,
	n *sdata.Node,
	sel map[sdata.TypeName][]qcode.Field,
	resolveType bool,
) (stmt.Stmt, error) {
	in, out := rf.Direction.Arrows()
	pattern := fmt.Sprintf("(%s)%s[:%s]%s(%s%s)", v, in, rf.Type, out, cv, n.LabelString())

	params := make(map[string]any)
	var preds []string

	ws, err := pc.where.CompileWhere(WhereArgs{Where: f.Args.Where, Node: n, VarName: cv, Nested: true})
	if err != nil {
		return stmt.Stmt{}, err
	}
	if ws.Text != "" {
		preds = append(preds, ws.Text)
	}

	where, allow, err := readRules(pc.auth, rc, n, cv)
	if err != nil {
		return stmt.Stmt{}, err
	}
	if where.Text != "" {
		preds = append(preds, where.Text)
	}
	if allow.Text != "" {
		preds = append(preds, validatePredicate(allow.Text))
	}
	for _, s := range []stmt.Stmt{ws, where, allow} {
		if err := stmt.MergeParams(params, s.Params); err != nil {
			return stmt.Stmt{}, err
		}
	}
	if len(preds) != 0 {
		pattern += " WHERE " + strings.Join(preds, " AND ")
	}

	child, err := pc.CompileProjection(rc, ProjectionArgs{
		Selections:  sel,
		Node:        n,
		VarName:     cv,
		Literal:     true,
		ResolveType: resolveType,
	})
	if err != nil {
		return stmt.Stmt{}, err
	}
	if len(child.ConnectionFields) != 0 {
		return stmt.Stmt{}, fmt.Errorf("%w: connection %s inside relationship %s",
			ErrConfiguration, child.ConnectionFields[0].Name, f.Name)
	}

	if err := stmt.MergeParams(params, child.Params); err != nil {
		return stmt.Stmt{}, err
	}
	return stmt.New("["+pattern+" | "+child.Text+"]", params), nil
}

func mapLiteral(elems []string) string {
	if len(elems) == 0 {
		return "{}"
	}
	return "{ " + strings.Join(elems, ", ") + " }"
}
