package sdata

import (
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/gobuffalo/flect"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// SchemaConfig is the on-disk (YAML) form of a schema.
type SchemaConfig struct {
	Nodes                  []NodeConfig     `yaml:"nodes" validate:"required,min=1,dive"`
	Unions                 []UnionConfig    `yaml:"unions" validate:"dive"`
	RelationshipProperties []RelPropsConfig `yaml:"relationship_properties" validate:"dive"`
}

type NodeConfig struct {
	Name          string           `yaml:"name" validate:"required"`
	Labels        []string         `yaml:"labels"`
	Fields        []FieldConfig    `yaml:"fields" validate:"dive"`
	Relationships []RelationConfig `yaml:"relationships" validate:"dive"`
	Auth          *AuthConfig      `yaml:"auth"`
}

type FieldConfig struct {
	Name         string   `yaml:"name" validate:"required"`
	DBName       string   `yaml:"db_name"`
	Type         string   `yaml:"type" validate:"required"`
	Autogenerate bool     `yaml:"autogenerate"`
	Timestamps   []string `yaml:"timestamps" validate:"dive,oneof=CREATE UPDATE"`
}

type RelationConfig struct {
	Name       string `yaml:"name" validate:"required"`
	Type       string `yaml:"type" validate:"required"`
	Direction  string `yaml:"direction" validate:"required,oneof=IN OUT NONE"`
	Target     string `yaml:"target" validate:"required"`
	Array      bool   `yaml:"array"`
	Properties string `yaml:"properties"`
}

type UnionConfig struct {
	Name    string   `yaml:"name" validate:"required"`
	Members []string `yaml:"members" validate:"required,min=1"`
}

type RelPropsConfig struct {
	Name   string        `yaml:"name" validate:"required"`
	Fields []FieldConfig `yaml:"fields" validate:"dive"`
}

type AuthConfig struct {
	Rules []AuthRuleConfig `yaml:"rules" validate:"dive"`
}

type AuthRuleConfig struct {
	Operations      []string          `yaml:"operations" validate:"dive,oneof=read create update delete connect disconnect"`
	IsAuthenticated bool              `yaml:"is_authenticated"`
	Roles           []string          `yaml:"roles"`
	Allow           map[string]string `yaml:"allow"`
	Where           map[string]string `yaml:"where"`
}

// Load parses and validates a YAML schema.
func Load(data []byte) (*Schema, error) {
	var conf SchemaConfig
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	return New(conf)
}

// LoadFile reads a YAML schema from fs.
func LoadFile(fs afero.Fs, path string) (*Schema, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	return Load(data)
}

// New builds a schema from its config form.
func New(conf SchemaConfig) (*Schema, error) {
	if err := validator.New().Struct(conf); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}

	s := &Schema{
		nodeMap:   make(map[TypeName]*Node),
		unions:    make(map[TypeName]UnionTarget),
		relProps:  make(map[string]*RelProps),
		conns:     make(map[TypeName]ConnectionField),
		edges:     make(map[TypeName]ConnectionField),
		typeNames: make(map[TypeName]struct{}),
	}

	names := nodeNames(conf)

	for _, nc := range conf.Nodes {
		tn := TypeName(nc.Name)
		if _, ok := s.typeNames[tn]; ok {
			return nil, fmt.Errorf("schema: duplicate type %s", nc.Name)
		}
		s.typeNames[tn] = struct{}{}
	}

	for _, uc := range conf.Unions {
		tn := TypeName(uc.Name)
		if _, ok := s.typeNames[tn]; ok {
			return nil, fmt.Errorf("schema: duplicate type %s", uc.Name)
		}
		u := UnionTarget{Name: tn}
		for _, m := range uc.Members {
			if _, ok := names[m]; !ok {
				return nil, fmt.Errorf("schema: union %s: %w: %s", uc.Name, ErrUnknownType, m)
			}
			u.Members = append(u.Members, TypeName(m))
		}
		s.unions[tn] = u
		s.typeNames[tn] = struct{}{}
	}

	for _, rc := range conf.RelationshipProperties {
		pf, tf := buildFields(rc.Fields)
		s.relProps[rc.Name] = &RelProps{Name: rc.Name, PrimitiveFields: pf, TemporalFields: tf}
		s.typeNames[TypeName(rc.Name)] = struct{}{}
	}

	for _, nc := range conf.Nodes {
		n, err := s.buildNode(nc, names)
		if err != nil {
			return nil, err
		}
		s.nodes = append(s.nodes, n)
		s.nodeMap[n.Name] = n
	}
	return s, nil
}

func nodeNames(conf SchemaConfig) map[string]struct{} {
	m := make(map[string]struct{}, len(conf.Nodes))
	for _, nc := range conf.Nodes {
		m[nc.Name] = struct{}{}
	}
	return m
}

func (s *Schema) buildNode(nc NodeConfig, names map[string]struct{}) (*Node, error) {
	n := &Node{Name: TypeName(nc.Name), Labels: nc.Labels}
	n.PrimitiveFields, n.TemporalFields = buildFields(nc.Fields)

	for _, rc := range nc.Relationships {
		rf := RelationField{
			FieldName:  rc.Name,
			Type:       rc.Type,
			Direction:  Direction(rc.Direction),
			Array:      rc.Array,
			Properties: rc.Properties,
		}

		tn := TypeName(rc.Target)
		if u, ok := s.unions[tn]; ok {
			rf.Target = u
		} else if _, ok := names[rc.Target]; ok {
			rf.Target = NodeTarget{Type: tn}
		} else {
			return nil, fmt.Errorf("schema: %s.%s: %w: %s", nc.Name, rc.Name, ErrUnknownType, rc.Target)
		}

		if rc.Properties != "" {
			if _, ok := s.relProps[rc.Properties]; !ok {
				return nil, fmt.Errorf("schema: %s.%s: %w: %s", nc.Name, rc.Name, ErrUnknownType, rc.Properties)
			}
		}
		n.RelationFields = append(n.RelationFields, rf)

		// every relation field gets an edges/node view
		prefix := nc.Name + flect.Pascalize(rc.Name)
		cf := ConnectionField{
			FieldName:            rc.Name + "Connection",
			Relationship:         rf,
			TypeName:             TypeName(prefix + "Connection"),
			RelationshipTypeName: TypeName(prefix + "Relationship"),
		}
		s.conns[cf.TypeName] = cf
		s.edges[cf.RelationshipTypeName] = cf
		s.typeNames[cf.TypeName] = struct{}{}
		s.typeNames[cf.RelationshipTypeName] = struct{}{}
		n.ConnectionFields = append(n.ConnectionFields, cf)
	}

	if nc.Auth != nil {
		for _, rc := range nc.Auth.Rules {
			n.AuthRules = append(n.AuthRules, AuthRule{
				Operations:      rc.Operations,
				IsAuthenticated: rc.IsAuthenticated,
				Roles:           rc.Roles,
				Allow:           rc.Allow,
				Where:           rc.Where,
			})
		}
	}
	return n, nil
}

func buildFields(fields []FieldConfig) (pf []PrimitiveField, tf []TemporalField) {
	for _, fc := range fields {
		if isTemporal(fc.Type) {
			f := TemporalField{Name: fc.Name, DBName: fc.DBName, Type: TemporalType(fc.Type)}
			for _, ts := range fc.Timestamps {
				f.Timestamps = append(f.Timestamps, Timestamp(ts))
			}
			tf = append(tf, f)
			continue
		}
		pf = append(pf, PrimitiveField{
			Name:         fc.Name,
			DBName:       fc.DBName,
			Type:         fc.Type,
			Autogenerate: fc.Autogenerate,
		})
	}
	return
}

// SortedKeys returns the keys of m in sorted order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
