package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/dosco/graphjin/neo4j/v3/core"
)

func schemaCmd() *cobra.Command {
	var asJSON bool

	c := &cobra.Command{
		Use:   "schema [node]",
		Short: "Show the node types of the schema",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gj, err := newGraphJin()
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()

			if len(args) == 0 {
				nodes := gj.GetNodes()
				if asJSON {
					return writeJSON(w, nodes)
				}
				return printNodes(w, nodes)
			}

			n, err := gj.GetNode(args[0])
			if err != nil {
				return errors.Wrap(err, "schema")
			}
			if asJSON {
				return writeJSON(w, n)
			}
			return printNode(w, n)
		},
	}

	c.Flags().BoolVar(&asJSON, "json", false, "print the schema as JSON")
	return c
}

func printNodes(w io.Writer, nodes []core.NodeInfo) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NODE\tLABELS\tFIELDS\tRELATIONSHIPS")

	for _, n := range nodes {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n",
			n.Name, strings.Join(n.Labels, ":"), len(n.Fields), len(n.Relationships))
	}
	return tw.Flush()
}

func printNode(w io.Writer, n core.NodeInfo) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s (:%s)\n\n", n.Name, strings.Join(n.Labels, ":"))

	fmt.Fprintln(tw, "FIELD\tTYPE\tDB NAME\tNOTES")
	for _, f := range n.Fields {
		var notes []string
		if f.Autogenerate {
			notes = append(notes, "autogenerate")
		}
		for _, ts := range f.Timestamps {
			notes = append(notes, "on "+strings.ToLower(ts))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.Name, f.Type, f.DBName, strings.Join(notes, ", "))
	}

	if len(n.Relationships) != 0 {
		fmt.Fprintln(tw, "\nRELATIONSHIP\tTYPE\tDIRECTION\tTARGET")
		for _, r := range n.Relationships {
			target := r.Target
			if len(r.Members) != 0 {
				target += " (" + strings.Join(r.Members, " | ") + ")"
			}
			if r.Array {
				target = "[" + target + "]"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Name, r.Type, r.Direction, target)
		}
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
