// Package qcode holds the resolved selection tree handed to the Cypher
// translators and a resolver that builds it from a GraphQL document.
package qcode

import (
	"github.com/dosco/graphjin/neo4j/v3/core/internal/sdata"
)

type QType int8

const (
	QTUnknown QType = iota
	QTQuery
	QTMutation
)

func (t QType) String() string {
	switch t {
	case QTQuery:
		return "query"
	case QTMutation:
		return "mutation"
	}
	return "unknown"
}

// Op is what a root field asks of its node type.
type Op int8

const (
	OpRead Op = iota
	OpDelete
)

// Field is one node of the resolved selection tree. Selections holds the
// nested fields per concrete type name, which is how polymorphic (union)
// selections are represented. A Field is not modified once built.
type Field struct {
	Alias      string
	Name       string
	Args       Args
	Selections map[sdata.TypeName][]Field
}

// Fields returns the sub-selections made on type tn.
func (f Field) Fields(tn sdata.TypeName) []Field {
	return f.Selections[tn]
}

// Child returns the first sub-selection on tn with the given schema name.
func (f Field) Child(tn sdata.TypeName, name string) (Field, bool) {
	for _, c := range f.Selections[tn] {
		if c.Name == name {
			return c, true
		}
	}
	return Field{}, false
}

// MergedFields returns the selections made on the concrete type followed by
// those made on the abstract type. A field selected under both keeps the
// abstract selection at the concrete field's position.
func (f Field) MergedFields(concrete, abstract sdata.TypeName) []Field {
	cf := f.Selections[concrete]
	af := f.Selections[abstract]

	out := make([]Field, 0, len(cf)+len(af))
	out = append(out, cf...)

	for _, a := range af {
		replaced := false
		for i := range out {
			if out[i].Alias == a.Alias {
				out[i] = a
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, a)
		}
	}
	return out
}

type Args struct {
	Where   map[string]any
	Options *Options
	Delete  map[string]any
}

type Options struct {
	Sort []SortEntry
}

// SortEntry orders connection edges. Relationship keys are applied before
// node keys, each in the order given.
type SortEntry struct {
	Node         []SortField
	Relationship []SortField
}

type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

type SortField struct {
	Field     string
	Direction SortDirection
}

// Root is a top-level field of an operation along with the node type it
// addresses.
type Root struct {
	Field Field
	Node  *sdata.Node
	Op    Op
}

type QCode struct {
	Type  QType
	Name  string
	Roots []Root
}
