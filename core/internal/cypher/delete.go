package cypher

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/dosco/graphjin/neo4j/v3/core/internal/sdata"
	"github.com/dosco/graphjin/neo4j/v3/core/internal/stmt"
)

// DeleteArgs describes one level of a cascading delete. Input maps
// relationship field names (or "{field}_{Type}" for union relationships) to
// one or a list of DeleteSpec shaped values.
type DeleteArgs struct {
	Input     map[string]any
	Node      *sdata.Node
	VarName   string
	ParentVar string
	// ChainStr, when set, replaces VarName as the base of the variables
	// bound for deleted nodes.
	ChainStr     string
	WithVars     []string
	InsideDoWhen bool
}

type DeleteSpec struct {
	Where  map[string]any `mapstructure:"where"`
	Delete map[string]any `mapstructure:"delete"`
}

type deleteTarget struct {
	key  string
	node sdata.TypeName
}

// CompileDelete emits an OPTIONAL MATCH and a guarded DETACH DELETE for
// every addressed related node, deepest nodes first.
func (co *Compiler) CompileDelete(rc *Request, a DeleteArgs) (stmt.Stmt, error) {
	if a.Node == nil || a.ParentVar == "" {
		return stmt.Stmt{}, fmt.Errorf("%w: delete needs a node and a parent variable", ErrConfiguration)
	}
	base := a.VarName
	if a.ChainStr != "" {
		base = a.ChainStr
	}

	b := stmt.NewBuilder()
	seen := make(map[string]struct{}, len(a.Input))

	for _, rf := range a.Node.RelationFields {
		for _, t := range deleteTargets(rf, a.Input) {
			seen[t.key] = struct{}{}
			refNode, err := co.schema.Node(t.node)
			if err != nil {
				return stmt.Stmt{}, err
			}
			specs, err := deleteSpecs(t.key, a.Input[t.key])
			if err != nil {
				return stmt.Stmt{}, err
			}
			for i, d := range specs {
				v := stmt.Key(base, t.key) + strconv.Itoa(i)
				if err := co.deleteOne(b, rc, a, rf, refNode, v, d); err != nil {
					return stmt.Stmt{}, err
				}
			}
		}
	}

	for _, k := range sdata.SortedKeys(a.Input) {
		if _, ok := seen[k]; !ok {
			return stmt.Stmt{}, fmt.Errorf("%w: %s.%s", ErrUnknownField, a.Node.Name, k)
		}
	}
	return b.Stmt()
}

func (co *Compiler) deleteOne(
	b *stmt.Builder,
	rc *Request,
	a DeleteArgs,
	rf sdata.RelationField,
	refNode *sdata.Node,
	v string,
	d DeleteSpec,
) error {
	if len(a.WithVars) != 0 {
		b.Linef("WITH %s", strings.Join(a.WithVars, ", "))
	}
	in, out := rf.Direction.Arrows()
	b.Linef("OPTIONAL MATCH (%s)%s[:%s]%s(%s%s)", a.ParentVar, in, rf.Type, out, v, refNode.LabelString())

	var preds []string
	ws, err := co.where.CompileWhere(WhereArgs{Where: d.Where, Node: refNode, VarName: v, Nested: true})
	if err != nil {
		return err
	}
	if ws.Text != "" {
		preds = append(preds, ws.Text)
		b.Params(ws.Params)
	}

	as, err := co.auth.CompileAuth(rc, AuthArgs{Operation: "delete", Node: refNode, VarName: v, Mode: AuthWhere})
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

	scope := append(append([]string(nil), a.WithVars...), v)

	allow, err := co.auth.CompileAuth(rc, AuthArgs{
		Operation:    "delete",
		Node:         refNode,
		VarName:      v,
		Mode:         AuthAllow,
		EscapeQuotes: a.InsideDoWhen,
	})
	if err != nil {
		return err
	}
	if allow.Text != "" {
		b.Linef("WITH %s", strings.Join(scope, ", "))
		b.Line(validate(allow.Text, a.InsideDoWhen))
		b.Params(allow.Params)
	}

	if len(d.Delete) != 0 {
		ns, err := co.CompileDelete(rc, DeleteArgs{
			Input:        d.Delete,
			Node:         refNode,
			VarName:      v,
			ParentVar:    v,
			WithVars:     scope,
			InsideDoWhen: a.InsideDoWhen,
		})
		if err != nil {
			return err
		}
		b.Add(ns)
	}

	b.Linef("FOREACH(_ IN CASE %s WHEN NULL THEN [] ELSE [1] END |", v)
	b.Linef("DETACH DELETE %s", v)
	b.Line(")")
	return nil
}

// validate renders the runtime allow check. Inside an apoc.do.when string
// the quotes around the error message are escaped.
func validate(pred string, escape bool) string {
	q := `"`
	if escape {
		q = `\"`
	}
	return fmt.Sprintf("CALL apoc.util.validate(NOT (%s), %s%s%s, [0])", pred, q, ForbiddenMessage, q)
}

// validatePredicate is the allow check usable inside an expression, such
// as the WHERE of a pattern comprehension. It is true when pred holds.
func validatePredicate(pred string) string {
	return fmt.Sprintf("apoc.util.validatePredicate(NOT (%s), %q, [0])", pred, ForbiddenMessage)
}

// deleteTargets returns the input keys addressing rf along with the node
// type each one deletes, in union member order.
func deleteTargets(rf sdata.RelationField, input map[string]any) []deleteTarget {
	var out []deleteTarget
	switch t := rf.Target.(type) {
	case sdata.NodeTarget:
		if _, ok := input[rf.FieldName]; ok {
			out = append(out, deleteTarget{key: rf.FieldName, node: t.Type})
		}
	case sdata.UnionTarget:
		for _, m := range t.Members {
			k := rf.FieldName + "_" + string(m)
			if _, ok := input[k]; ok {
				out = append(out, deleteTarget{key: k, node: m})
			}
		}
	}
	return out
}

func deleteSpecs(key string, val any) ([]DeleteSpec, error) {
	var items []any
	switch v := val.(type) {
	case nil:
		return nil, nil
	case []any:
		items = v
	case []map[string]any:
		for _, m := range v {
			items = append(items, m)
		}
	default:
		items = []any{v}
	}

	out := make([]DeleteSpec, 0, len(items))
	for _, item := range items {
		var d DeleteSpec
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:      &d,
			ErrorUnused: true,
		})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(item); err != nil {
			return nil, fmt.Errorf("%w: delete.%s: %s", ErrInvalidInput, key, err)
		}
		out = append(out, d)
	}
	return out, nil
}
