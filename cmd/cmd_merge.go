package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dosco/graphjin/neo4j/v3/core"
)

func mergeCmd() *cobra.Command {
	var pretty, asJSON bool

	c := &cobra.Command{
		Use:   "merge [request-file]",
		Short: "Compile a merge (upsert) request to Cypher",
		Long: `Compile a merge request to a single MERGE statement. The request
is YAML (or JSON) read from the file given or from stdin, for example:

  source:
    type: Movie
    match: { title: The Matrix }
  target:
    match: { name: Keanu Reeves }
  relationship:
    field: actors
    on_create: { role: Neo }`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readInput(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			req, err := parseMergeRequest([]byte(in))
			if err != nil {
				return err
			}

			gj, err := newGraphJin()
			if err != nil {
				return err
			}

			res, err := gj.CompileMerge(context.Background(), req)
			if err != nil {
				return errors.Wrap(err, "merge")
			}
			return printResult(cmd.OutOrStdout(), res, pretty, asJSON)
		},
	}

	c.Flags().BoolVar(&pretty, "pretty", false, "indent the statement")
	c.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")

	return c
}

func parseMergeRequest(b []byte) (req core.MergeRequest, err error) {
	if err = yaml.Unmarshal(b, &req); err != nil {
		err = errors.Wrap(err, "merge request")
		return
	}
	if req.Source.Type == "" {
		err = errors.New("merge request: source.type is required")
	}
	return
}
