package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	configPath string

	rootCmd = &cobra.Command{
		Use:   "tagvet",
		Short: "Read-only cloud tag compliance auditor",
		Long: `Tagvet audits cloud resources against a declarative tag policy.

It exposes a catalog of read-only tools an agent can call: compliance
checks, cost attribution, tag suggestions, and trend reports. Every
invocation passes through input validation, budget and loop guards,
and lands in an append-only audit log. Tagvet never tags, modifies,
or deletes anything.`,
		Version: version,
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "tagvet.yaml", "config file path")
	rootCmd.SetVersionTemplate(`Tagvet {{.Version}} - tag compliance auditor
`)
}
