package stmt

import (
	"strconv"
	"strings"
)

// Path is a dotted logical path into the parameter map, for example
// this_actorsConnection.args.where. The first segment is always a top-level
// parameter key. Paths are values: Append never modifies the receiver.
type Path struct {
	segs []string
}

// Root starts a new path at the top-level parameter key name.
func Root(name string) Path {
	return Path{segs: []string{name}}
}

// IsZero reports whether the path has no segments.
func (p Path) IsZero() bool {
	return len(p.segs) == 0
}

// Append returns a new path with segs added to the end.
func (p Path) Append(segs ...string) Path {
	n := make([]string, 0, len(p.segs)+len(segs))
	n = append(n, p.segs...)
	n = append(n, segs...)
	return Path{segs: n}
}

// Root returns the top-level parameter key of the path.
func (p Path) Root() string {
	if len(p.segs) == 0 {
		return ""
	}
	return p.segs[0]
}

// Segments returns a copy of the path segments.
func (p Path) Segments() []string {
	return append([]string(nil), p.segs...)
}

func (p Path) String() string {
	return strings.Join(p.segs, ".")
}

// Ref returns the placeholder referencing the path, eg. $this_x.args.where
func (p Path) Ref() string {
	return "$" + p.String()
}

// Index returns the path of the i-th element of the list at p, eg. p.AND[0]
func (p Path) Index(i int) Path {
	if len(p.segs) == 0 {
		return p
	}
	n := p.Segments()
	n[len(n)-1] += "[" + strconv.Itoa(i) + "]"
	return Path{segs: n}
}

// Key builds a flat parameter key from a prefix and a key.
func Key(prefix, key string) string {
	return prefix + "_" + key
}

// Nest wraps val in nested maps, one per segment:
// Nest(v, "args", "where") is {"args": {"where": v}}.
func Nest(val any, segs ...string) map[string]any {
	if len(segs) == 0 {
		return nil
	}
	m := map[string]any{segs[len(segs)-1]: val}
	for i := len(segs) - 2; i >= 0; i-- {
		m = map[string]any{segs[i]: m}
	}
	return m
}
