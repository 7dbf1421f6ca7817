package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tagvet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
version: "1.0"
policy_path: /etc/tagvet/policy.yaml
regions: [us-east-1]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, int64(100), cfg.Budget.Ceiling)
	assert.Equal(t, time.Hour, cfg.Budget.TTL)
	assert.Equal(t, 5*time.Minute, cfg.Loop.Window)
	assert.Equal(t, 3, cfg.Loop.Threshold)
	assert.Equal(t, 100*time.Millisecond, cfg.RateLimit.MinInterval)
	assert.Equal(t, 5, cfg.RateLimit.MaxInFlight)
	assert.Equal(t, 2*time.Minute, cfg.ScanTimeout)
	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, "/var/lib/tagvet", cfg.StorageDir)
}

func TestLoadKeepsExplicitValues(t *testing.T) {
	path := writeConfig(t, `
version: "1.0"
policy_path: policy.yaml
regions: [us-east-1, eu-west-1]
scan_types: [ec2, rds]
budget:
  ceiling: 20
  ttl: 30m
loop:
  window: 1m
  threshold: 5
rate_limit:
  min_interval: 250ms
  max_in_flight: 2
scan_timeout: 45s
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, int64(20), cfg.Budget.Ceiling)
	assert.Equal(t, 30*time.Minute, cfg.Budget.TTL)
	assert.Equal(t, 5, cfg.Loop.Threshold)
	assert.Equal(t, 250*time.Millisecond, cfg.RateLimit.MinInterval)
	assert.Equal(t, 2, cfg.RateLimit.MaxInFlight)
	assert.Equal(t, 45*time.Second, cfg.ScanTimeout)
	assert.Equal(t, []string{"ec2", "rds"}, cfg.ScanTypes)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing version", "policy_path: p.yaml\nregions: [us-east-1]\n"},
		{"missing policy path", "version: \"1.0\"\nregions: [us-east-1]\n"},
		{"no regions", "version: \"1.0\"\npolicy_path: p.yaml\n"},
		{"loop threshold too low", "version: \"1.0\"\npolicy_path: p.yaml\nregions: [us-east-1]\nloop:\n  threshold: 1\n"},
		{"bad yaml", "version: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
