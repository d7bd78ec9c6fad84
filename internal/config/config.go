package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Deployment describes one simulated deployment: the actors, both pool
// assets, the pool, the spiker, an optional swap vault, and opening balances.
// Accounts are either 0x addresses or labels hashed into addresses.
type Deployment struct {
	Deployer   string          `toml:"deployer"`
	Owner      string          `toml:"owner"`
	Controller string          `toml:"controller"`
	TokenA     AssetConfig     `toml:"token_a"`
	TokenB     AssetConfig     `toml:"token_b"`
	Pool       PoolConfig      `toml:"pool"`
	Spiker     SpikerConfig    `toml:"spiker"`
	Vault      VaultConfig     `toml:"vault"`
	Balances   []BalanceConfig `toml:"balances"`
}

type AssetConfig struct {
	Symbol   string `toml:"symbol"`
	Decimals uint8  `toml:"decimals"`
}

// PoolConfig amounts are base-10 integer strings.
type PoolConfig struct {
	Basis    string `toml:"basis"`
	Reserve0 string `toml:"reserve0"`
	Reserve1 string `toml:"reserve1"`
}

type SpikerConfig struct {
	LockDuration string `toml:"lock_duration"`
	Policy       string `toml:"policy"`
	// Preauthorize has the controller propose the spiker at deploy time.
	Preauthorize bool `toml:"preauthorize_controller"`
}

type VaultConfig struct {
	Enabled         bool        `toml:"enabled"`
	OldAsset        AssetConfig `toml:"old_asset"`
	NewAsset        AssetConfig `toml:"new_asset"`
	RateNumerator   string      `toml:"rate_numerator"`
	RateDenominator string      `toml:"rate_denominator"`
	OpensIn         string      `toml:"opens_in"`
	Duration        string      `toml:"duration"`
	Funding         string      `toml:"funding"`
}

type BalanceConfig struct {
	Account string `toml:"account"`
	TokenA  string `toml:"token_a"`
	TokenB  string `toml:"token_b"`
}

func LoadDeployment(path string) (Deployment, error) {
	var cfg Deployment
	if err := loadToml(path, &cfg); err != nil {
		return Deployment{}, err
	}
	applyDefaults(&cfg)
	if err := ValidateDeployment(cfg); err != nil {
		return Deployment{}, err
	}
	return cfg, nil
}

// ParseDeployment decodes and validates an in-memory deployment document.
func ParseDeployment(data []byte) (Deployment, error) {
	var cfg Deployment
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Deployment{}, fmt.Errorf("config parse failed: %w", err)
	}
	applyDefaults(&cfg)
	if err := ValidateDeployment(cfg); err != nil {
		return Deployment{}, err
	}
	return cfg, nil
}

// Encode renders cfg back to TOML.
func (d Deployment) Encode() ([]byte, error) {
	return toml.Marshal(d)
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func applyDefaults(cfg *Deployment) {
	if strings.TrimSpace(cfg.Deployer) == "" {
		cfg.Deployer = "deployer"
	}
	if strings.TrimSpace(cfg.Spiker.LockDuration) == "" {
		cfg.Spiker.LockDuration = "24h"
	}
	if strings.TrimSpace(cfg.Spiker.Policy) == "" {
		cfg.Spiker.Policy = "stop"
	}
	if cfg.TokenA.Decimals == 0 {
		cfg.TokenA.Decimals = 18
	}
	if cfg.TokenB.Decimals == 0 {
		cfg.TokenB.Decimals = 18
	}
}

func ValidateDeployment(cfg Deployment) error {
	if strings.TrimSpace(cfg.Owner) == "" {
		return fmt.Errorf("deployment missing owner")
	}
	if strings.TrimSpace(cfg.Controller) == "" {
		return fmt.Errorf("deployment missing controller")
	}
	if err := validateAsset(cfg.TokenA); err != nil {
		return fmt.Errorf("token_a invalid: %w", err)
	}
	if err := validateAsset(cfg.TokenB); err != nil {
		return fmt.Errorf("token_b invalid: %w", err)
	}
	if strings.EqualFold(cfg.TokenA.Symbol, cfg.TokenB.Symbol) {
		return fmt.Errorf("token_a and token_b share symbol %q", cfg.TokenA.Symbol)
	}
	for field, raw := range map[string]string{
		"pool.basis":    cfg.Pool.Basis,
		"pool.reserve0": cfg.Pool.Reserve0,
		"pool.reserve1": cfg.Pool.Reserve1,
	} {
		if _, err := ParseAmount(raw); err != nil {
			return fmt.Errorf("%s invalid: %w", field, err)
		}
	}
	if _, err := cfg.Spiker.Lock(); err != nil {
		return err
	}
	if _, err := cfg.Spiker.SettlementPolicy(); err != nil {
		return err
	}
	if cfg.Vault.Enabled {
		if err := validateVault(cfg.Vault); err != nil {
			return fmt.Errorf("vault invalid: %w", err)
		}
	}
	for i, bal := range cfg.Balances {
		if strings.TrimSpace(bal.Account) == "" {
			return fmt.Errorf("balances[%d] missing account", i)
		}
		if _, err := ParseAmount(bal.TokenA); err != nil {
			return fmt.Errorf("balances[%d].token_a invalid: %w", i, err)
		}
		if _, err := ParseAmount(bal.TokenB); err != nil {
			return fmt.Errorf("balances[%d].token_b invalid: %w", i, err)
		}
	}
	return nil
}

func validateAsset(cfg AssetConfig) error {
	if strings.TrimSpace(cfg.Symbol) == "" {
		return fmt.Errorf("symbol is required")
	}
	if cfg.Decimals > 77 {
		return fmt.Errorf("decimals %d out of range", cfg.Decimals)
	}
	return nil
}

func validateVault(cfg VaultConfig) error {
	if err := validateAsset(cfg.OldAsset); err != nil {
		return fmt.Errorf("old_asset: %w", err)
	}
	if err := validateAsset(cfg.NewAsset); err != nil {
		return fmt.Errorf("new_asset: %w", err)
	}
	den, err := ParseAmount(cfg.RateDenominator)
	if err != nil {
		return fmt.Errorf("rate_denominator: %w", err)
	}
	if den.IsZero() {
		return fmt.Errorf("rate_denominator must be nonzero")
	}
	if _, err := ParseAmount(cfg.RateNumerator); err != nil {
		return fmt.Errorf("rate_numerator: %w", err)
	}
	if _, err := ParseAmount(cfg.Funding); err != nil {
		return fmt.Errorf("funding: %w", err)
	}
	if _, _, err := cfg.Window(); err != nil {
		return err
	}
	return nil
}
