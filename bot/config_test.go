package bot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "123:abc"
payments:
  wallet_address: "3CY3K5tq9vLBiQCGa5gaAtrejRkKcxcv2QmhkEF9sKxc"
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Payments.VerifyAttempts)
	assert.Equal(t, 10, cfg.Payments.TxFetchLimit)
	assert.Equal(t, 600, cfg.Payments.WindowSeconds)
	assert.Equal(t, 2000, cfg.Payments.StepDelayMS)
	assert.Equal(t, int64(0), cfg.Payments.ToleranceLamports)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, "longpoll", cfg.Core.Telegram.RunMode)
}

func TestLoadConfigExplicitValues(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "123:abc"
payments:
  wallet_address: "3CY3K5tq9vLBiQCGa5gaAtrejRkKcxcv2QmhkEF9sKxc"
  rpc_url: "https://rpc.example.com"
  verify_attempts: 5
  tx_fetch_limit: 25
  window_seconds: 120
  verify_backoff_ms: 250
  tolerance_lamports: 5000
  step_delay_ms: 100
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://rpc.example.com", cfg.Payments.RPCURL)
	assert.Equal(t, 5, cfg.Payments.VerifyAttempts)
	assert.Equal(t, 25, cfg.Payments.TxFetchLimit)
	assert.Equal(t, 120, cfg.Payments.WindowSeconds)
	assert.Equal(t, 250, cfg.Payments.VerifyBackoffMS)
	assert.Equal(t, int64(5000), cfg.Payments.ToleranceLamports)
	assert.Equal(t, 100, cfg.Payments.StepDelayMS)
}

func TestLoadConfigRequiresWallet(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "123:abc"
`)
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wallet_address")
}

func TestLoadConfigRejectsNegativePaymentValues(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "123:abc"
payments:
  wallet_address: "3CY3K5tq9vLBiQCGa5gaAtrejRkKcxcv2QmhkEF9sKxc"
  window_seconds: -1
`)
	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
