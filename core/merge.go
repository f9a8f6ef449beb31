package core

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/dosco/graphjin/neo4j/v3/core/internal/cypher"
	"github.com/dosco/graphjin/neo4j/v3/core/internal/qcode"
	"github.com/dosco/graphjin/neo4j/v3/core/internal/sdata"
)

var (
	ErrInvalidMerge = errors.New("invalid merge request")
	varNameRe       = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// MergeNode names a node type along with the properties to merge on and
// the ones to set when the node is created
type MergeNode struct {
	Type     string         `json:"type" yaml:"type" mapstructure:"type"`
	Var      string         `json:"var,omitempty" yaml:"var,omitempty" mapstructure:"var"`
	Match    map[string]any `json:"match,omitempty" yaml:"match,omitempty" mapstructure:"match"`
	OnCreate map[string]any `json:"on_create,omitempty" yaml:"on_create,omitempty" mapstructure:"on_create"`
}

// MergeRelationship names the relationship field of the source type to
// merge along
type MergeRelationship struct {
	Field    string         `json:"field" yaml:"field" mapstructure:"field"`
	Var      string         `json:"var,omitempty" yaml:"var,omitempty" mapstructure:"var"`
	OnCreate map[string]any `json:"on_create,omitempty" yaml:"on_create,omitempty" mapstructure:"on_create"`
}

// MergeRequest upserts a node or, with a target and relationship, a
// relationship between two nodes. The target type defaults to the type the
// relationship field points at.
type MergeRequest struct {
	Source       MergeNode          `json:"source" yaml:"source" mapstructure:"source"`
	Target       *MergeNode         `json:"target,omitempty" yaml:"target,omitempty" mapstructure:"target"`
	Relationship *MergeRelationship `json:"relationship,omitempty" yaml:"relationship,omitempty" mapstructure:"relationship"`
}

// CompileMerge compiles a merge request into a single MERGE statement.
// Merge statements are not cached.
func (g *GraphJin) CompileMerge(c context.Context, req MergeRequest) (res *Result, err error) {
	gj := g.Load().(*graphjinEngine)

	_, span := gj.spanStart(c, "GraphJin Compile Merge")
	defer span.End()

	res = &Result{operation: qcode.QTMutation, name: "merge"}

	args, err := gj.mergeArgs(req)
	if err != nil {
		span.Error(err)
		res.Errors = newError(err)
		return
	}

	st, err := gj.cypherCompiler.CompileMerge(args)
	if err != nil {
		span.Error(err)
		res.Errors = newError(err)
		return
	}

	s := Statement{Name: "merge", Query: st.Text, Params: st.Params}
	if err = checkStmt(s); err != nil {
		gj.log.Error("compile merge", zap.Error(err))
		res.Errors = newError(err)
		return
	}
	res.Statements = []Statement{s}
	return
}

func (gj *graphjinEngine) mergeArgs(req MergeRequest) (args cypher.MergeArgs, err error) {
	if (req.Target == nil) != (req.Relationship == nil) {
		err = fmt.Errorf("%w: target and relationship must be set together", ErrInvalidMerge)
		return
	}

	src, err := gj.mergeNode(req.Source, "this", "")
	if err != nil {
		return
	}
	args.Source = src

	if req.Relationship == nil {
		return
	}

	r := req.Relationship
	rf, ok := src.Node.RelationField(r.Field)
	if !ok {
		err = fmt.Errorf("%w: %s has no relationship %s", ErrInvalidMerge, src.Node.Name, r.Field)
		return
	}

	var def sdata.TypeName
	if t, ok := rf.Target.(sdata.NodeTarget); ok {
		def = t.Type
	}

	tgt, err := gj.mergeNode(*req.Target, "that", def)
	if err != nil {
		return
	}
	if !memberOf(rf.Target, tgt.Node.Name) {
		err = fmt.Errorf("%w: %s.%s cannot point at %s", ErrInvalidMerge, src.Node.Name, r.Field, tgt.Node.Name)
		return
	}
	if tgt.VarName == src.VarName {
		err = fmt.Errorf("%w: source and target share the variable %s", ErrInvalidMerge, src.VarName)
		return
	}
	if r.Var != "" && !varNameRe.MatchString(r.Var) {
		err = fmt.Errorf("%w: invalid variable name %q", ErrInvalidMerge, r.Var)
		return
	}

	args.Target = &tgt
	args.Relationship = &cypher.MergeRelationship{
		VarName:  r.Var,
		Field:    rf,
		OnCreate: r.OnCreate,
	}
	return
}

func (gj *graphjinEngine) mergeNode(mn MergeNode, defVar string, defType sdata.TypeName) (n cypher.MergeNode, err error) {
	n.VarName = mn.Var
	if n.VarName == "" {
		n.VarName = defVar
	}
	if !varNameRe.MatchString(n.VarName) {
		err = fmt.Errorf("%w: invalid variable name %q", ErrInvalidMerge, n.VarName)
		return
	}

	tn := defType
	if mn.Type != "" {
		tn = sdata.TypeName(mn.Type)
	}
	if tn == "" {
		err = fmt.Errorf("%w: %s: node type required", ErrInvalidMerge, n.VarName)
		return
	}

	if n.Node, err = gj.schema.Node(tn); err != nil {
		return
	}
	n.Params = mn.Match
	n.OnCreate = mn.OnCreate
	return
}

func memberOf(t sdata.Target, tn sdata.TypeName) bool {
	switch t := t.(type) {
	case sdata.NodeTarget:
		return t.Type == tn
	case sdata.UnionTarget:
		for _, m := range t.Members {
			if m == tn {
				return true
			}
		}
	}
	return false
}
