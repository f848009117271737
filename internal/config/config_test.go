package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaultsForOmittedFields(t *testing.T) {
	path := writeConfig(t, `
node_id: n1
host: 127.0.0.1
port: 9000
admin_port: 9001
data_dir: /tmp/kvstore
strategy: leader
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 128, cfg.EmbeddingDim)
	require.Equal(t, 30*time.Second, cfg.IndexSnapshotInterval)
	require.Equal(t, 150*time.Millisecond, cfg.RPCDeadline)
}

func TestLoadParsesDurationStrings(t *testing.T) {
	path := writeConfig(t, `
node_id: n1
host: 127.0.0.1
port: 9000
admin_port: 9001
data_dir: /tmp/kvstore
strategy: masterless
fan_out_cadence: 25ms
election_timeout_min: 1s
election_timeout_max: 2s
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 25*time.Millisecond, cfg.FanOutCadence)
	require.Equal(t, time.Second, cfg.ElectionTimeoutMin)
	require.Equal(t, 2*time.Second, cfg.ElectionTimeoutMax)
}

func TestLoadRejectsMissingRequiredField(t *testing.T) {
	path := writeConfig(t, `
host: 127.0.0.1
port: 9000
admin_port: 9001
data_dir: /tmp/kvstore
strategy: leader
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsInvalidStrategy(t *testing.T) {
	path := writeConfig(t, `
node_id: n1
host: 127.0.0.1
port: 9000
admin_port: 9001
data_dir: /tmp/kvstore
strategy: bogus
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsAdminPortEqualToPort(t *testing.T) {
	path := writeConfig(t, `
node_id: n1
host: 127.0.0.1
port: 9000
admin_port: 9000
data_dir: /tmp/kvstore
strategy: leader
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
