// Package bot assembles the replybot application on top of the reusable core.
package bot

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	coreconfig "github.com/m3rciful/replybot/core/config"
	coredatabase "github.com/m3rciful/replybot/core/database"
)

// PaymentsConfig holds the payment flow settings.
type PaymentsConfig struct {
	// WalletAddress is the destination account payments must reach.
	WalletAddress string `yaml:"wallet_address" envconfig:"PAYMENT_WALLET_ADDRESS"`
	// RPCURL points at the Solana JSON-RPC node; empty selects mainnet.
	RPCURL string `yaml:"rpc_url" envconfig:"SOLANA_RPC_URL"`
	// VerifyAttempts is the ledger polling budget per verification run.
	VerifyAttempts int `yaml:"verify_attempts" envconfig:"PAYMENT_VERIFY_ATTEMPTS"`
	// TxFetchLimit caps transactions inspected per attempt.
	TxFetchLimit int `yaml:"tx_fetch_limit" envconfig:"PAYMENT_TX_FETCH_LIMIT"`
	// WindowSeconds bounds how long a session waits for payment.
	WindowSeconds int `yaml:"window_seconds" envconfig:"PAYMENT_WINDOW_SECONDS"`
	// VerifyBackoffMS pauses between verification attempts; 0 disables.
	VerifyBackoffMS int `yaml:"verify_backoff_ms" envconfig:"PAYMENT_VERIFY_BACKOFF_MS"`
	// ToleranceLamports is the accepted deviation from the exact amount.
	ToleranceLamports int64 `yaml:"tolerance_lamports" envconfig:"PAYMENT_TOLERANCE_LAMPORTS"`
	// StepDelayMS separates consecutive delivery messages.
	StepDelayMS int `yaml:"step_delay_ms" envconfig:"DELIVERY_STEP_DELAY_MS"`
}

// Config is the application configuration: the reusable core sections plus
// the payment and database settings.
type Config struct {
	Core     coreconfig.Config   `yaml:",inline"`
	Database coredatabase.Config `yaml:"database"`
	Payments PaymentsConfig      `yaml:"payments"`
}

// CoreConfig exposes the embedded core configuration to the runner.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Core
}

// LoadConfig reads the YAML file, applies environment overrides and
// validates the result.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := coreconfig.Normalize(&cfg.Core); err != nil {
		return nil, err
	}
	if err := normalizePayments(&cfg.Payments); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func normalizePayments(p *PaymentsConfig) error {
	if strings.TrimSpace(p.WalletAddress) == "" {
		return fmt.Errorf("payments.wallet_address is required")
	}
	if p.VerifyAttempts < 0 || p.TxFetchLimit < 0 || p.WindowSeconds < 0 ||
		p.VerifyBackoffMS < 0 || p.ToleranceLamports < 0 || p.StepDelayMS < 0 {
		return fmt.Errorf("payments settings must be >= 0")
	}
	if p.VerifyAttempts == 0 {
		p.VerifyAttempts = 3
	}
	if p.TxFetchLimit == 0 {
		p.TxFetchLimit = 10
	}
	if p.WindowSeconds == 0 {
		p.WindowSeconds = 600
	}
	if p.StepDelayMS == 0 {
		p.StepDelayMS = 2000
	}
	return nil
}
