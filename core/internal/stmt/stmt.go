// Package stmt holds the two small building blocks every Cypher translator
// shares: compiled fragments (text plus parameters) and the parameter
// namespace used to keep parameter keys apart across recursive compilations.
package stmt

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
)

// ErrParamCollision is returned when two fragments bind the same parameter
// key to different values.
var ErrParamCollision = errors.New("parameter collision")

// Stmt is a compiled Cypher fragment along with the values its placeholders
// refer to.
type Stmt struct {
	Text   string
	Params map[string]any
}

// New returns a statement, params may be nil.
func New(text string, params map[string]any) Stmt {
	return Stmt{Text: text, Params: params}
}

// IsEmpty reports whether the statement renders nothing.
func (s Stmt) IsEmpty() bool {
	return s.Text == ""
}

// Join concatenates the non-empty statement texts with sep and merges their
// parameters.
func Join(sep string, stmts ...Stmt) (Stmt, error) {
	var texts []string
	params := make(map[string]any)

	for _, s := range stmts {
		if s.Text != "" {
			texts = append(texts, s.Text)
		}
		if err := MergeParams(params, s.Params); err != nil {
			return Stmt{}, err
		}
	}
	return Stmt{Text: strings.Join(texts, sep), Params: params}, nil
}

// MergeParams copies src into dst. A key already present in dst with a
// different value is a collision.
func MergeParams(dst, src map[string]any) error {
	for k, v := range src {
		if ev, ok := dst[k]; ok && !reflect.DeepEqual(ev, v) {
			return fmt.Errorf("%w: %s", ErrParamCollision, k)
		}
		dst[k] = v
	}
	return nil
}

var placeholderRe = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)

// Placeholders returns the sorted, de-duplicated parameter names referenced
// in text. For path references such as $this_x.args.where only the root key
// (this_x) is returned since that is what the parameter map must hold.
func Placeholders(text string) []string {
	seen := make(map[string]struct{})
	for _, m := range placeholderRe.FindAllStringSubmatch(text, -1) {
		seen[m[1]] = struct{}{}
	}

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Unbound returns the placeholders in s that have no value in s.Params.
func Unbound(s Stmt) []string {
	var missing []string
	for _, n := range Placeholders(s.Text) {
		if _, ok := s.Params[n]; !ok {
			missing = append(missing, n)
		}
	}
	return missing
}

// Builder accumulates lines of Cypher and their parameters. The first error
// seen is kept and returned by Stmt.
type Builder struct {
	lines  []string
	params map[string]any
	err    error
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{params: make(map[string]any)}
}

// Line appends one line of text.
func (b *Builder) Line(s string) {
	b.lines = append(b.lines, s)
}

// Linef appends one formatted line of text.
func (b *Builder) Linef(format string, args ...any) {
	b.lines = append(b.lines, fmt.Sprintf(format, args...))
}

// Add appends the text of s (if any) and merges its parameters.
func (b *Builder) Add(s Stmt) {
	if s.Text != "" {
		b.lines = append(b.lines, s.Text)
	}
	b.Params(s.Params)
}

// Params merges params into the builder.
func (b *Builder) Params(params map[string]any) {
	if b.err != nil {
		return
	}
	b.err = MergeParams(b.params, params)
}

// Param binds a single parameter.
func (b *Builder) Param(key string, val any) {
	b.Params(map[string]any{key: val})
}

// Fail records err unless an earlier error is already recorded.
func (b *Builder) Fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Err returns the first recorded error.
func (b *Builder) Err() error {
	return b.err
}

// Len returns the number of lines written so far.
func (b *Builder) Len() int {
	return len(b.lines)
}

// Stmt returns the newline joined text and the merged parameters.
func (b *Builder) Stmt() (Stmt, error) {
	if b.err != nil {
		return Stmt{}, b.err
	}
	return Stmt{Text: strings.Join(b.lines, "\n"), Params: b.params}, nil
}
