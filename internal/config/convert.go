package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/spikectl/internal/chain"
	"github.com/danmuck/spikectl/internal/spiker"
	"github.com/holiman/uint256"
)

// ResolveAccount maps a config account onto an address: 0x hex is taken
// as is, anything else is treated as a label.
func ResolveAccount(raw string) chain.Address {
	raw = strings.TrimSpace(raw)
	if addr, ok := chain.ParseAddress(raw); ok {
		return addr
	}
	return chain.AccountAddress(raw)
}

// ParseAmount parses a base-10 integer. Empty means zero.
func ParseAmount(raw string) (*uint256.Int, error) {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), "_", "")
	if raw == "" {
		return new(uint256.Int), nil
	}
	v, err := uint256.FromDecimal(raw)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", raw, err)
	}
	return v, nil
}

// MustAmount is ParseAmount for values that already passed validation.
func MustAmount(raw string) *uint256.Int {
	v, err := ParseAmount(raw)
	if err != nil {
		panic(err)
	}
	return v
}

func (s SpikerConfig) Lock() (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(s.LockDuration))
	if err != nil {
		return 0, fmt.Errorf("parse spiker.lock_duration: %w", err)
	}
	if d < time.Second {
		return 0, fmt.Errorf("spiker.lock_duration %s below one second", d)
	}
	return d, nil
}

func (s SpikerConfig) SettlementPolicy() (spiker.Policy, error) {
	return spiker.ParsePolicy(s.Policy)
}

// Window returns the offset from deploy time at which the vault opens and
// how long it stays open.
func (v VaultConfig) Window() (time.Duration, time.Duration, error) {
	opensIn := time.Duration(0)
	if raw := strings.TrimSpace(v.OpensIn); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return 0, 0, fmt.Errorf("parse vault.opens_in: %w", err)
		}
		opensIn = d
	}
	length, err := time.ParseDuration(strings.TrimSpace(v.Duration))
	if err != nil {
		return 0, 0, fmt.Errorf("parse vault.duration: %w", err)
	}
	if opensIn < 0 || length < 0 {
		return 0, 0, fmt.Errorf("vault window must not be negative")
	}
	return opensIn, length, nil
}
