package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), BuildDetails())
		},
	}
}

// BuildDetails returns the version, commit and build date of the binary
func BuildDetails() string {
	if version == "" {
		return "GraphJin Neo4j (unknown version)"
	}

	return fmt.Sprintf(`GraphJin Neo4j %s
For documentation, visit https://graphjin.com

Commit SHA-1          : %s
Commit timestamp      : %s
Go version            : %s`, version, commit, date, runtime.Version())
}
