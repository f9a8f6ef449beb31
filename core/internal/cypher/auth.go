package cypher

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dosco/graphjin/neo4j/v3/core/internal/sdata"
	"github.com/dosco/graphjin/neo4j/v3/core/internal/stmt"
)

const jwtPrefix = "$jwt."

type authCompiler struct{}

// NewAuthCompiler returns the rule based authorization compiler. Rules that
// apply to the operation are OR-ed; the parts of a single rule are AND-ed.
// Claim references such as "$jwt.sub" are resolved against Request.JWT and
// bound as parameters.
func NewAuthCompiler() AuthCompiler {
	return authCompiler{}
}

func (authCompiler) CompileAuth(rc *Request, a AuthArgs) (stmt.Stmt, error) {
	if rc == nil {
		rc = &Request{}
	}
	params := make(map[string]any)
	var rules []string

	for i, r := range a.Node.AuthRules {
		if !r.Applies(a.Operation) {
			continue
		}
		prefix := a.VarName + "_auth_" + a.Mode.String() + strconv.Itoa(i)

		var parts []string
		switch a.Mode {
		case AuthWhere:
			parts = claimPredicates(rc, r.Where, a, prefix, params)

		case AuthAllow:
			if r.IsAuthenticated && !rc.Authenticated {
				parts = append(parts, "false")
			}
			if len(r.Roles) != 0 {
				k := stmt.Key(prefix, "roles")
				roles := rc.Roles
				if roles == nil {
					roles = []string{}
				}
				params[k] = roles
				parts = append(parts, fmt.Sprintf("any(r IN [%s] WHERE r IN $%s)",
					quoteList(r.Roles, a.EscapeQuotes), k))
			}
			parts = append(parts, claimPredicates(rc, r.Allow, a, prefix, params)...)
		}

		if len(parts) != 0 {
			rules = append(rules, group(parts))
		}
	}

	switch len(rules) {
	case 0:
		return stmt.Stmt{}, nil
	case 1:
		return stmt.New(rules[0], params), nil
	}
	return stmt.New("("+strings.Join(rules, " OR ")+")", params), nil
}

func claimPredicates(rc *Request, m map[string]string, a AuthArgs, prefix string, params map[string]any) []string {
	var out []string
	for _, field := range sdata.SortedKeys(m) {
		k := stmt.Key(prefix, field)
		params[k] = claimValue(rc, m[field])
		out = append(out, fmt.Sprintf("%s.%s = $%s", a.VarName, a.Node.DBName(field), k))
	}
	return out
}

// claimValue resolves "$jwt.a.b" against the request claims. Any other
// value is used as is.
func claimValue(rc *Request, ref string) any {
	path, ok := strings.CutPrefix(ref, jwtPrefix)
	if !ok {
		return ref
	}
	var cur any = rc.JWT
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[seg]
	}
	return cur
}

var literalEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// quoteList renders vals as Cypher string literals. With escape set the
// literals are escaped once more for use inside a quoted statement.
func quoteList(vals []string, escape bool) string {
	out := make([]string, len(vals))
	for i, v := range vals {
		lit := `"` + literalEscaper.Replace(v) + `"`
		if escape {
			lit = literalEscaper.Replace(lit)
		}
		out[i] = lit
	}
	return strings.Join(out, ", ")
}
