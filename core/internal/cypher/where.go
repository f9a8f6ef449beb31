package cypher

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dosco/graphjin/neo4j/v3/core/internal/sdata"
	"github.com/dosco/graphjin/neo4j/v3/core/internal/stmt"
)

type whereCompiler struct{}

func NewWhereCompiler() WhereCompiler {
	return whereCompiler{}
}

type operator struct {
	suffix string
	expr   string
	negate bool
}

// longest suffixes first so _NOT_IN is not read as _IN
var operators = []operator{
	{"_NOT_STARTS_WITH", "STARTS WITH", true},
	{"_NOT_ENDS_WITH", "ENDS WITH", true},
	{"_NOT_CONTAINS", "CONTAINS", true},
	{"_STARTS_WITH", "STARTS WITH", false},
	{"_ENDS_WITH", "ENDS WITH", false},
	{"_CONTAINS", "CONTAINS", false},
	{"_MATCHES", "=~", false},
	{"_NOT_IN", "IN", true},
	{"_NOT", "=", true},
	{"_LTE", "<=", false},
	{"_GTE", ">=", false},
	{"_IN", "IN", false},
	{"_LT", "<", false},
	{"_GT", ">", false},
}

var eqOp = operator{expr: "="}

func splitOp(key string) (string, operator) {
	for _, op := range operators {
		if f, ok := strings.CutSuffix(key, op.suffix); ok && f != "" {
			return f, op
		}
	}
	return key, eqOp
}

type fieldLookup interface {
	Lookup(name string) (string, bool)
}

// binder turns a filter key and value into placeholder text.
type binder interface {
	ref(key string, val any) string
	index(key string, i int) binder
}

type flatBinder struct {
	prefix string
	params map[string]any
}

func (b flatBinder) ref(key string, val any) string {
	k := stmt.Key(b.prefix, key)
	b.params[k] = val
	return "$" + k
}

func (b flatBinder) index(key string, i int) binder {
	return flatBinder{prefix: stmt.Key(b.prefix, key+strconv.Itoa(i)), params: b.params}
}

type pathBinder struct {
	path stmt.Path
}

func (b pathBinder) ref(key string, _ any) string {
	return b.path.Append(key).Ref()
}

func (b pathBinder) index(key string, i int) binder {
	return pathBinder{path: b.path.Append(key).Index(i)}
}

func (whereCompiler) CompileWhere(a WhereArgs) (stmt.Stmt, error) {
	if len(a.Where) == 0 {
		return stmt.Stmt{}, nil
	}
	params := make(map[string]any)
	preds, err := predicates(a.Where, a.VarName, a.Node, flatBinder{prefix: a.VarName, params: params})
	if err != nil {
		return stmt.Stmt{}, err
	}
	text := strings.Join(preds, " AND ")
	if text != "" && !a.Nested {
		text = "WHERE " + text
	}
	return stmt.New(text, params), nil
}

func (whereCompiler) CompileConnectionWhere(a ConnectionWhereArgs) (stmt.Stmt, error) {
	if len(a.Where) == 0 {
		return stmt.Stmt{}, nil
	}
	if a.Path.IsZero() {
		return stmt.Stmt{}, fmt.Errorf("%w: connection filter without a path", ErrConfiguration)
	}
	preds, err := connectionPredicates(a, a.Where, a.Path)
	if err != nil {
		return stmt.Stmt{}, err
	}
	return stmt.New(strings.Join(preds, " AND "), nil), nil
}

func connectionPredicates(a ConnectionWhereArgs, m map[string]any, p stmt.Path) ([]string, error) {
	var out []string

	for _, k := range sdata.SortedKeys(m) {
		switch k {
		case "AND", "OR":
			list, err := filterList(k, m[k])
			if err != nil {
				return nil, err
			}
			var parts []string
			for i, item := range list {
				ps, err := connectionPredicates(a, item, p.Append(k).Index(i))
				if err != nil {
					return nil, err
				}
				if s := group(ps); s != "" {
					parts = append(parts, s)
				}
			}
			if len(parts) != 0 {
				out = append(out, "("+strings.Join(parts, " "+k+" ")+")")
			}

		case "node", "node_NOT", "relationship", "relationship_NOT":
			sub, ok := m[k].(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: %s must be an object", ErrInvalidInput, k)
			}
			v, fields := a.NodeVar, fieldLookup(a.Node)
			if strings.HasPrefix(k, "relationship") {
				if a.Relationship == nil {
					return nil, fmt.Errorf("%w: %s: relationship has no properties", ErrUnknownField, k)
				}
				v, fields = a.RelVar, a.Relationship
			}
			ps, err := predicates(sub, v, fields, pathBinder{path: p.Append(k)})
			if err != nil {
				return nil, err
			}
			if len(ps) == 0 {
				continue
			}
			s := strings.Join(ps, " AND ")
			if strings.HasSuffix(k, "_NOT") {
				s = "(NOT (" + s + "))"
			}
			out = append(out, s)

		default:
			return nil, fmt.Errorf("%w: connection filter key %s", ErrUnknownField, k)
		}
	}
	return out, nil
}

func predicates(m map[string]any, v string, fields fieldLookup, b binder) ([]string, error) {
	var out []string

	for _, k := range sdata.SortedKeys(m) {
		val := m[k]

		if k == "AND" || k == "OR" {
			list, err := filterList(k, val)
			if err != nil {
				return nil, err
			}
			var parts []string
			for i, item := range list {
				ps, err := predicates(item, v, fields, b.index(k, i))
				if err != nil {
					return nil, err
				}
				if s := group(ps); s != "" {
					parts = append(parts, s)
				}
			}
			if len(parts) != 0 {
				out = append(out, "("+strings.Join(parts, " "+k+" ")+")")
			}
			continue
		}

		name, op := splitOp(k)
		db, ok := fields.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, name)
		}
		out = append(out, expression(v+"."+db, op, b, k, val))
	}
	return out, nil
}

func expression(lhs string, op operator, b binder, key string, val any) string {
	if val == nil && op.expr == "=" {
		if op.negate {
			return lhs + " IS NOT NULL"
		}
		return lhs + " IS NULL"
	}
	s := lhs + " " + op.expr + " " + b.ref(key, val)
	if op.negate {
		return "(NOT " + s + ")"
	}
	return s
}

func group(ps []string) string {
	switch len(ps) {
	case 0:
		return ""
	case 1:
		return ps[0]
	}
	return "(" + strings.Join(ps, " AND ") + ")"
}

func filterList(key string, val any) ([]map[string]any, error) {
	list, ok := val.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be a list", ErrInvalidInput, key)
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s entries must be objects", ErrInvalidInput, key)
		}
		out = append(out, m)
	}
	return out, nil
}
