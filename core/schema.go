package core

import (
	"fmt"

	"github.com/dosco/graphjin/neo4j/v3/core/internal/sdata"
)

// NodeInfo represents a node type for API consumers
type NodeInfo struct {
	Name          string         `json:"name"`
	Labels        []string       `json:"labels"`
	Fields        []FieldInfo    `json:"fields"`
	Relationships []RelationInfo `json:"relationships,omitempty"`
	RuleCount     int            `json:"rule_count,omitempty"`
}

// FieldInfo represents a scalar or temporal field of a node type
type FieldInfo struct {
	Name         string   `json:"name"`
	DBName       string   `json:"db_name,omitempty"`
	Type         string   `json:"type"`
	Autogenerate bool     `json:"autogenerate,omitempty"`
	Timestamps   []string `json:"timestamps,omitempty"`
}

// RelationInfo represents a relationship field of a node type
type RelationInfo struct {
	Name       string   `json:"name"`       // Field name to use in queries
	Connection string   `json:"connection"` // Field name of the edges/node view
	Type       string   `json:"type"`       // Relationship type
	Direction  string   `json:"direction"`
	Target     string   `json:"target"`
	Members    []string `json:"members,omitempty"` // Set when the target is a union
	Array      bool     `json:"array"`
	Properties string   `json:"properties,omitempty"`
}

// GetNodes returns every node type of the schema in declaration order
func (g *GraphJin) GetNodes() []NodeInfo {
	gj := g.Load().(*graphjinEngine)
	nodes := gj.schema.Nodes()

	result := make([]NodeInfo, 0, len(nodes))
	for _, n := range nodes {
		result = append(result, nodeInfo(n))
	}
	return result
}

// GetNode returns the node type named name
func (g *GraphJin) GetNode(name string) (NodeInfo, error) {
	gj := g.Load().(*graphjinEngine)

	n, err := gj.schema.Node(sdata.TypeName(name))
	if err != nil {
		return NodeInfo{}, fmt.Errorf("node not found: %s", name)
	}
	return nodeInfo(n), nil
}

func nodeInfo(n *sdata.Node) NodeInfo {
	ni := NodeInfo{
		Name:      string(n.Name),
		Labels:    n.Labels,
		RuleCount: len(n.AuthRules),
	}
	if len(ni.Labels) == 0 {
		ni.Labels = []string{string(n.Name)}
	}

	for _, f := range n.PrimitiveFields {
		ni.Fields = append(ni.Fields, FieldInfo{
			Name:         f.Name,
			DBName:       f.DBName,
			Type:         f.Type,
			Autogenerate: f.Autogenerate,
		})
	}

	for _, f := range n.TemporalFields {
		fi := FieldInfo{Name: f.Name, DBName: f.DBName, Type: string(f.Type)}
		for _, ts := range f.Timestamps {
			fi.Timestamps = append(fi.Timestamps, string(ts))
		}
		ni.Fields = append(ni.Fields, fi)
	}

	for _, rf := range n.RelationFields {
		ri := RelationInfo{
			Name:       rf.FieldName,
			Connection: rf.FieldName + "Connection",
			Type:       rf.Type,
			Direction:  string(rf.Direction),
			Target:     string(rf.TargetName()),
			Array:      rf.Array,
			Properties: rf.Properties,
		}
		if u, ok := rf.Target.(sdata.UnionTarget); ok {
			for _, m := range u.Members {
				ri.Members = append(ri.Members, string(m))
			}
		}
		ni.Relationships = append(ni.Relationships, ri)
	}
	return ni
}
