package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/dosco/graphjin/neo4j/v3/core"
)

type compileOpts struct {
	vars   string
	op     string
	jwt    string
	roles  []string
	auth   bool
	pretty bool
	json   bool
}

func compileCmd() *cobra.Command {
	var o compileOpts

	c := &cobra.Command{
		Use:   "compile [query-file]",
		Short: "Compile a GraphQL operation to Cypher",
		Long: `Compile a GraphQL operation to Cypher. The operation is read from
the file given or from stdin. Every root field is printed as a separate
statement followed by its parameters.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCompile(cmd, args, o)
		},
	}

	c.Flags().StringVar(&o.vars, "vars", "", "variables as a JSON object")
	c.Flags().StringVar(&o.op, "op", "", "name of the operation to compile")
	c.Flags().StringVar(&o.jwt, "jwt", "", "jwt claims as a JSON object, implies --auth")
	c.Flags().StringSliceVar(&o.roles, "roles", nil, "roles of the current user")
	c.Flags().BoolVar(&o.auth, "auth", false, "compile for an authenticated user")
	c.Flags().BoolVar(&o.pretty, "pretty", false, "indent the statements")
	c.Flags().BoolVar(&o.json, "json", false, "print the result as JSON")

	return c
}

func cmdCompile(cmd *cobra.Command, args []string, o compileOpts) error {
	query, err := readInput(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	rc, err := o.requestConfig()
	if err != nil {
		return err
	}

	gj, err := newGraphJin()
	if err != nil {
		return err
	}

	res, err := gj.CompileByName(context.Background(),
		query, o.op, json.RawMessage(o.vars), rc)
	if err != nil {
		return errors.Wrap(err, "compile")
	}

	return printResult(cmd.OutOrStdout(), res, o.pretty, o.json)
}

func (o compileOpts) requestConfig() (*core.RequestConfig, error) {
	rc := &core.RequestConfig{
		Authenticated: o.auth,
		Roles:         o.roles,
	}

	if o.jwt != "" {
		if err := json.Unmarshal([]byte(o.jwt), &rc.JWT); err != nil {
			return nil, errors.Wrap(err, "jwt claims")
		}
		rc.Authenticated = true
	}
	return rc, nil
}

// readInput reads the file named by the first argument, or stdin when
// there is none or it is "-"
func readInput(stdin io.Reader, args []string) (string, error) {
	var (
		b   []byte
		err error
	)

	if len(args) == 0 || args[0] == "-" {
		b, err = io.ReadAll(stdin)
	} else {
		b, err = os.ReadFile(args[0])
	}
	if err != nil {
		return "", errors.Wrap(err, "reading input")
	}

	if strings.TrimSpace(string(b)) == "" {
		return "", errors.New("empty input")
	}
	return string(b), nil
}

func printResult(w io.Writer, res *core.Result, pretty, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	for i, s := range res.Statements {
		if i != 0 {
			fmt.Fprintln(w)
		}

		q := s.Query
		if pretty {
			q = s.Pretty()
		}

		params, err := json.Marshal(s.Params)
		if err != nil {
			return errors.Wrapf(err, "%s: params", s.Name)
		}

		fmt.Fprintf(w, "// %s\n%s\n// params: %s\n", s.Name, q, params)
	}
	return nil
}
