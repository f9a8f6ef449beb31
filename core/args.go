package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// parseVars decodes the request variables. Numbers become int64 when they
// are integral and float64 otherwise so they bind to Cypher Integer and
// Float parameters respectively.
func parseVars(vars json.RawMessage) (map[string]any, error) {
	vmap := make(map[string]any)
	if len(bytes.TrimSpace(vars)) == 0 {
		return vmap, nil
	}

	dec := json.NewDecoder(bytes.NewReader(vars))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("variables: %w", err)
	}
	if v == nil {
		return vmap, nil
	}

	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("variables: expecting an object not %T", v)
	}

	for k, val := range m {
		vmap[k] = parseVarVal(val)
	}
	return vmap, nil
}

func parseVarVal(v any) any {
	switch v := v.(type) {
	case json.Number:
		if n, err := strconv.ParseInt(string(v), 10, 64); err == nil {
			return n
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return string(v)

	case map[string]any:
		for k, val := range v {
			v[k] = parseVarVal(val)
		}
		return v

	case []any:
		for i, val := range v {
			v[i] = parseVarVal(val)
		}
		return v

	default:
		return v
	}
}

// mergeVars layers the config variables, then the request config variables,
// under the variables sent with the request
func mergeVars(vmap map[string]any, conf map[string]string, rc map[string]any) map[string]any {
	if len(conf) == 0 && len(rc) == 0 {
		return vmap
	}

	out := make(map[string]any, len(vmap)+len(conf)+len(rc))
	for k, v := range conf {
		out[k] = v
	}
	for k, v := range rc {
		out[k] = v
	}
	for k, v := range vmap {
		out[k] = v
	}
	return out
}
