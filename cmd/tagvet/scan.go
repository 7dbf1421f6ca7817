package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/yairfalse/tagvet/config"
	"github.com/yairfalse/tagvet/policy"
	awsprovider "github.com/yairfalse/tagvet/provider/aws"
	"github.com/yairfalse/tagvet/ratelimit"
	"github.com/yairfalse/tagvet/scanner"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one compliance scan and print the report",
	Long: `Scan the configured regions once, evaluate every resource
against the tag policy, and print the compliance report as JSON.
Bypasses the session guards; intended for operators, not agents.`,
	RunE: runScan,
}

var (
	scanRegions []string
	scanTypes   []string
)

func init() {
	scanCmd.Flags().StringSliceVar(&scanRegions, "regions", nil, "regions to scan (default: config)")
	scanCmd.Flags().StringSliceVar(&scanTypes, "types", nil, "resource types to scan (default: all supported)")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	tagPolicy, err := policy.Load(cfg.PolicyPath)
	if err != nil {
		return err
	}
	engine, err := policy.NewEngine(tagPolicy)
	if err != nil {
		return err
	}
	provider, err := awsprovider.NewProvider(ctx)
	if err != nil {
		return err
	}

	regions := scanRegions
	if len(regions) == 0 {
		regions = cfg.Regions
	}
	types := scanTypes
	if len(types) == 0 {
		types = cfg.ScanTypes
	}

	limiter := ratelimit.New(ratelimit.Options{
		MinInterval: cfg.RateLimit.MinInterval,
		MaxInFlight: cfg.RateLimit.MaxInFlight,
		MaxAttempts: cfg.RateLimit.MaxAttempts,
		BackoffBase: cfg.RateLimit.BackoffBase,
		Jitter:      cfg.RateLimit.Jitter,
	})

	scan, err := scanner.New(provider, limiter, cfg.ScanTimeout).Scan(ctx, types, regions)
	if err != nil {
		return err
	}
	result, err := engine.Evaluate(ctx, scan.Resources, tagPolicy, scan.Quality)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
