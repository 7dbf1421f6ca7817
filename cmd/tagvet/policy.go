package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yairfalse/tagvet/policy"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Tag policy utilities",
}

var policyValidateCmd = &cobra.Command{
	Use:   "validate <policy-file>",
	Short: "Validate a tag policy document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := policy.Load(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("policy version %s: %d required tags, %d optional tags, %d custom rules\n",
			p.Version, len(p.RequiredTags), len(p.OptionalTags), len(p.CustomRules))
		return nil
	},
}

func init() {
	policyCmd.AddCommand(policyValidateCmd)
	rootCmd.AddCommand(policyCmd)
}
