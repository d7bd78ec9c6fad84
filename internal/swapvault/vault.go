// Package swapvault implements the companion fixed-rate swap vault: holders
// trade an old asset for a new one at a constant rate inside a time window,
// and the owner sweeps both sides once the window closes.
package swapvault

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/danmuck/spikectl/internal/chain"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
)

var (
	ErrUnauthorized       = errors.New("swapvault: unauthorized")
	ErrSwapClosed         = errors.New("swapvault: swap window closed")
	ErrNotEnded           = errors.New("swapvault: swap window not ended")
	ErrZeroAmount         = errors.New("swapvault: zero amount")
	ErrReentrant          = errors.New("swapvault: reentrant call")
	ErrInsufficientFunds  = errors.New("swapvault: insufficient new asset")
	ErrArithmeticOverflow = errors.New("swapvault: arithmetic overflow")
	ErrInvalidConfig      = errors.New("swapvault: invalid config")
)

// Asset is the token surface the vault trades through.
type Asset interface {
	Address() chain.Address
	Transfer(caller, to chain.Address, amount *uint256.Int) error
	TransferFrom(caller, from, to chain.Address, amount *uint256.Int) error
	BalanceOf(owner chain.Address) *uint256.Int
}

type Config struct {
	Address         chain.Address
	Owner           chain.Address
	OldAsset        Asset
	NewAsset        Asset
	RateNumerator   *uint256.Int
	RateDenominator *uint256.Int
	Start           time.Time
	End             time.Time
	Logger          zerolog.Logger
}

// Vault parameters are fixed at construction.
type Vault struct {
	env      *chain.Env
	address  chain.Address
	owner    chain.Address
	oldAsset Asset
	newAsset Asset
	num      *uint256.Int
	den      *uint256.Int
	start    time.Time
	end      time.Time
	logger   zerolog.Logger

	entered atomic.Bool
}

func New(env *chain.Env, cfg Config) (*Vault, error) {
	if env == nil || cfg.OldAsset == nil || cfg.NewAsset == nil {
		return nil, fmt.Errorf("%w: env and both assets are required", ErrInvalidConfig)
	}
	if chain.IsZero(cfg.Address) || chain.IsZero(cfg.Owner) {
		return nil, fmt.Errorf("%w: zero address", ErrInvalidConfig)
	}
	if cfg.RateNumerator == nil || cfg.RateDenominator == nil || cfg.RateDenominator.IsZero() {
		return nil, fmt.Errorf("%w: rate denominator must be nonzero", ErrInvalidConfig)
	}
	if cfg.End.Before(cfg.Start) {
		return nil, fmt.Errorf("%w: end %s before start %s", ErrInvalidConfig,
			cfg.End.Format(time.RFC3339), cfg.Start.Format(time.RFC3339))
	}
	return &Vault{
		env:      env,
		address:  cfg.Address,
		owner:    cfg.Owner,
		oldAsset: cfg.OldAsset,
		newAsset: cfg.NewAsset,
		num:      cfg.RateNumerator.Clone(),
		den:      cfg.RateDenominator.Clone(),
		start:    cfg.Start,
		end:      cfg.End,
		logger:   cfg.Logger.With().Str("component", "swapvault").Str("vault", cfg.Address.Hex()).Logger(),
	}, nil
}

func (v *Vault) Address() chain.Address { return v.address }
func (v *Vault) Owner() chain.Address   { return v.owner }
func (v *Vault) Start() time.Time       { return v.start }
func (v *Vault) End() time.Time         { return v.end }

// Quote returns floor(oldAmount * num / den).
func (v *Vault) Quote(oldAmount *uint256.Int) (*uint256.Int, error) {
	out, overflow := new(uint256.Int).MulDivOverflow(oldAmount, v.num, v.den)
	if overflow {
		return nil, fmt.Errorf("%w: quote %s", ErrArithmeticOverflow, oldAmount.Dec())
	}
	return out, nil
}

// Open reports whether now lies inside [start, end].
func (v *Vault) Open(now time.Time) bool {
	return !now.Before(v.start) && !now.After(v.end)
}

// Swap pulls oldAmount from caller and pays the quoted new amount back.
func (v *Vault) Swap(caller chain.Address, oldAmount *uint256.Int) (*uint256.Int, error) {
	var out *uint256.Int
	err := v.guarded(func() error {
		var err error
		out, err = v.swap(caller, oldAmount)
		return err
	})
	if err != nil {
		return nil, err
	}
	v.logger.Info().Str("caller", caller.Hex()).Str("old", oldAmount.Dec()).Str("new", out.Dec()).Msg("swap")
	return out, nil
}

func (v *Vault) swap(caller chain.Address, oldAmount *uint256.Int) (*uint256.Int, error) {
	if oldAmount == nil || oldAmount.IsZero() {
		return nil, ErrZeroAmount
	}
	if now := v.env.Now(); !v.Open(now) {
		return nil, fmt.Errorf("%w: now=%s window=[%s,%s]", ErrSwapClosed,
			now.Format(time.RFC3339), v.start.Format(time.RFC3339), v.end.Format(time.RFC3339))
	}
	out, err := v.Quote(oldAmount)
	if err != nil {
		return nil, err
	}
	if out.IsZero() {
		return nil, fmt.Errorf("%w: %s quotes to nothing", ErrZeroAmount, oldAmount.Dec())
	}
	if held := v.newAsset.BalanceOf(v.address); held.Lt(out) {
		return nil, fmt.Errorf("%w: held=%s want=%s", ErrInsufficientFunds, held.Dec(), out.Dec())
	}
	if err := v.oldAsset.TransferFrom(v.address, caller, v.address, oldAmount); err != nil {
		return nil, err
	}
	if err := v.newAsset.Transfer(v.address, caller, out); err != nil {
		return nil, err
	}
	v.env.Emit("Swapped", v.address, map[string]string{
		"caller": caller.Hex(),
		"old":    oldAmount.Dec(),
		"new":    out.Dec(),
	})
	return out, nil
}

// WithdrawOld sweeps the collected old asset to to.
func (v *Vault) WithdrawOld(caller, to chain.Address) (*uint256.Int, error) {
	return v.sweep(caller, to, v.oldAsset)
}

// WithdrawNew sweeps the unswapped new asset to to.
func (v *Vault) WithdrawNew(caller, to chain.Address) (*uint256.Int, error) {
	return v.sweep(caller, to, v.newAsset)
}

func (v *Vault) sweep(caller, to chain.Address, asset Asset) (*uint256.Int, error) {
	var amount *uint256.Int
	err := v.guarded(func() error {
		if caller != v.owner {
			return fmt.Errorf("%w: caller=%s", ErrUnauthorized, caller.Hex())
		}
		if now := v.env.Now(); !now.After(v.end) {
			return fmt.Errorf("%w: end=%s", ErrNotEnded, v.end.Format(time.RFC3339))
		}
		amount = asset.BalanceOf(v.address)
		if amount.IsZero() {
			return nil
		}
		if err := asset.Transfer(v.address, to, amount); err != nil {
			return err
		}
		v.env.Emit("Withdrawn", v.address, map[string]string{
			"asset":  asset.Address().Hex(),
			"to":     to.Hex(),
			"amount": amount.Dec(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return amount, nil
}

// guarded rejects reentry before taking the env call lock, so an asset
// calling back into the vault fails instead of blocking.
func (v *Vault) guarded(fn func() error) error {
	if !v.entered.CompareAndSwap(false, true) {
		return ErrReentrant
	}
	defer v.entered.Store(false)
	return v.env.Atomic(fn)
}
