// Package sdata holds the static schema metadata the Cypher translators
// consult: node types, their fields, relationships and the property types
// attached to relationships.
package sdata

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownType = errors.New("unknown type")

// TypeName identifies a GraphQL type known to the schema. Values handed out
// by Schema.TypeName are guaranteed to exist in the schema.
type TypeName string

type Direction string

const (
	DirIn   Direction = "IN"
	DirOut  Direction = "OUT"
	DirNone Direction = "NONE"
)

// Arrows returns the left and right halves of a relationship pattern for
// the direction, eg. "<-" and "-" for IN.
func (d Direction) Arrows() (in, out string) {
	in, out = "-", "-"
	switch d {
	case DirIn:
		in = "<-"
	case DirOut:
		out = "->"
	}
	return
}

// Target is what a relationship field points at: either a single node type
// (NodeTarget) or a set of possible node types (UnionTarget).
type Target interface {
	targetName() TypeName
}

type NodeTarget struct {
	Type TypeName
}

type UnionTarget struct {
	Name    TypeName
	Members []TypeName
}

func (t NodeTarget) targetName() TypeName  { return t.Type }
func (t UnionTarget) targetName() TypeName { return t.Name }

type RelationField struct {
	FieldName  string
	Type       string
	Direction  Direction
	Target     Target
	Array      bool
	Properties string
}

// TargetName returns the name of the node or union type the field points at.
func (f RelationField) TargetName() TypeName {
	if f.Target == nil {
		return ""
	}
	return f.Target.targetName()
}

// ConnectionField is the edges/node view of a relation field, eg. actors has
// the connection field actorsConnection of type MovieActorsConnection whose
// edges are of type MovieActorsRelationship.
type ConnectionField struct {
	FieldName            string
	Relationship         RelationField
	TypeName             TypeName
	RelationshipTypeName TypeName
}

type PrimitiveField struct {
	Name         string
	DBName       string
	Type         string
	Autogenerate bool
}

type TemporalType string

const (
	TypeDateTime      TemporalType = "DateTime"
	TypeDate          TemporalType = "Date"
	TypeTime          TemporalType = "Time"
	TypeLocalTime     TemporalType = "LocalTime"
	TypeLocalDateTime TemporalType = "LocalDateTime"
)

func isTemporal(t string) bool {
	switch TemporalType(t) {
	case TypeDateTime, TypeDate, TypeTime, TypeLocalTime, TypeLocalDateTime:
		return true
	}
	return false
}

type Timestamp string

const (
	OnCreate Timestamp = "CREATE"
	OnUpdate Timestamp = "UPDATE"
)

type TemporalField struct {
	Name       string
	DBName     string
	Type       TemporalType
	Timestamps []Timestamp
}

// StampsOn reports whether the field is set to the current instant on op.
func (f TemporalField) StampsOn(op Timestamp) bool {
	for _, t := range f.Timestamps {
		if t == op {
			return true
		}
	}
	return false
}

type AuthRule struct {
	Operations      []string
	IsAuthenticated bool
	Roles           []string
	Allow           map[string]string
	Where           map[string]string
}

// Applies reports whether the rule covers op. A rule with no operations
// covers all of them.
func (r AuthRule) Applies(op string) bool {
	if len(r.Operations) == 0 {
		return true
	}
	for _, o := range r.Operations {
		if strings.EqualFold(o, op) {
			return true
		}
	}
	return false
}

type Node struct {
	Name             TypeName
	Labels           []string
	PrimitiveFields  []PrimitiveField
	TemporalFields   []TemporalField
	RelationFields   []RelationField
	ConnectionFields []ConnectionField
	AuthRules        []AuthRule
}

// LabelString returns the label part of a node pattern, eg. ":Movie".
func (n *Node) LabelString() string {
	if len(n.Labels) == 0 {
		return ":" + string(n.Name)
	}
	return ":" + strings.Join(n.Labels, ":")
}

func (n *Node) RelationField(name string) (RelationField, bool) {
	for _, f := range n.RelationFields {
		if f.FieldName == name {
			return f, true
		}
	}
	return RelationField{}, false
}

func (n *Node) ConnectionField(name string) (ConnectionField, bool) {
	for _, f := range n.ConnectionFields {
		if f.FieldName == name {
			return f, true
		}
	}
	return ConnectionField{}, false
}

func (n *Node) PrimitiveField(name string) (PrimitiveField, bool) {
	for _, f := range n.PrimitiveFields {
		if f.Name == name {
			return f, true
		}
	}
	return PrimitiveField{}, false
}

func (n *Node) TemporalField(name string) (TemporalField, bool) {
	return findTemporal(n.TemporalFields, name)
}

// DBName returns the property name a field is stored under.
func (n *Node) DBName(name string) string {
	return dbName(n.PrimitiveFields, n.TemporalFields, name)
}

// Lookup returns the property name of the scalar or temporal field name.
func (n *Node) Lookup(name string) (string, bool) {
	return lookup(n.PrimitiveFields, n.TemporalFields, name)
}

// RelProps describes the properties carried by a relationship type.
type RelProps struct {
	Name            string
	PrimitiveFields []PrimitiveField
	TemporalFields  []TemporalField
}

func (r *RelProps) TemporalField(name string) (TemporalField, bool) {
	if r == nil {
		return TemporalField{}, false
	}
	return findTemporal(r.TemporalFields, name)
}

func (r *RelProps) DBName(name string) string {
	if r == nil {
		return name
	}
	return dbName(r.PrimitiveFields, r.TemporalFields, name)
}

func (r *RelProps) Lookup(name string) (string, bool) {
	if r == nil {
		return "", false
	}
	return lookup(r.PrimitiveFields, r.TemporalFields, name)
}

func lookup(pf []PrimitiveField, tf []TemporalField, name string) (string, bool) {
	for _, f := range pf {
		if f.Name == name {
			return dbName(pf, tf, name), true
		}
	}
	for _, f := range tf {
		if f.Name == name {
			return dbName(pf, tf, name), true
		}
	}
	return "", false
}

func findTemporal(fields []TemporalField, name string) (TemporalField, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return TemporalField{}, false
}

func dbName(pf []PrimitiveField, tf []TemporalField, name string) string {
	for _, f := range pf {
		if f.Name == name && f.DBName != "" {
			return f.DBName
		}
	}
	for _, f := range tf {
		if f.Name == name && f.DBName != "" {
			return f.DBName
		}
	}
	return name
}

// Schema is the complete, immutable set of descriptors.
type Schema struct {
	nodes     []*Node
	nodeMap   map[TypeName]*Node
	unions    map[TypeName]UnionTarget
	relProps  map[string]*RelProps
	conns     map[TypeName]ConnectionField
	edges     map[TypeName]ConnectionField
	typeNames map[TypeName]struct{}
}

// Nodes returns the node types in declaration order.
func (s *Schema) Nodes() []*Node {
	return s.nodes
}

func (s *Schema) Node(name TypeName) (*Node, error) {
	if n, ok := s.nodeMap[name]; ok {
		return n, nil
	}
	return nil, fmt.Errorf("%w: node %s", ErrUnknownType, name)
}

func (s *Schema) Union(name TypeName) (UnionTarget, bool) {
	u, ok := s.unions[name]
	return u, ok
}

// RelProps returns the relationship property type named name. A relation
// field without properties has no entry.
func (s *Schema) RelProps(name string) (*RelProps, bool) {
	if name == "" {
		return nil, false
	}
	rp, ok := s.relProps[name]
	return rp, ok
}

// Connection returns the connection field whose connection type is name.
func (s *Schema) Connection(name TypeName) (ConnectionField, bool) {
	cf, ok := s.conns[name]
	return cf, ok
}

// Edge returns the connection field whose edge (relationship) type is name.
func (s *Schema) Edge(name TypeName) (ConnectionField, bool) {
	cf, ok := s.edges[name]
	return cf, ok
}

// TypeName validates name against every type the schema defines.
func (s *Schema) TypeName(name string) (TypeName, error) {
	tn := TypeName(name)
	if _, ok := s.typeNames[tn]; ok {
		return tn, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownType, name)
}
