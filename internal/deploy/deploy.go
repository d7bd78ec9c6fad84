// Package deploy assembles a complete in-process deployment from a
// config.Deployment: tokens, the authority registry, the pool, the spiker,
// and optionally the swap vault.
package deploy

import (
	"fmt"
	"time"

	"github.com/danmuck/spikectl/internal/authority"
	"github.com/danmuck/spikectl/internal/chain"
	"github.com/danmuck/spikectl/internal/config"
	"github.com/danmuck/spikectl/internal/pool"
	"github.com/danmuck/spikectl/internal/spiker"
	"github.com/danmuck/spikectl/internal/swapvault"
	"github.com/danmuck/spikectl/internal/token"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger   *zerolog.Logger
	Recorder spiker.Recorder
}

// Stack bundles every deployed component with the env they live in.
type Stack struct {
	Env        *chain.Env
	Deployer   chain.Address
	Owner      chain.Address
	Controller chain.Address

	TokenA   *token.Token
	TokenB   *token.Token
	Registry *authority.Registry
	Pool     *pool.Pool
	Spiker   *spiker.Spiker

	// Vault and its assets are nil unless enabled.
	Vault    *swapvault.Vault
	OldAsset *token.Token
	NewAsset *token.Token
}

func Build(cfg config.Deployment, clock chain.Clock) (*Stack, error) {
	return BuildWith(cfg, clock, Options{})
}

func BuildWith(cfg config.Deployment, clock chain.Clock, opts Options) (*Stack, error) {
	if err := config.ValidateDeployment(cfg); err != nil {
		return nil, err
	}
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	logger = logger.With().Str("component", "deploy").Logger()

	env := chain.NewEnv(clock, logger)
	s := &Stack{
		Env:        env,
		Deployer:   config.ResolveAccount(cfg.Deployer),
		Owner:      config.ResolveAccount(cfg.Owner),
		Controller: config.ResolveAccount(cfg.Controller),
	}

	var err error
	if s.TokenA, err = token.New(env, env.Deploy(s.Deployer), cfg.TokenA.Symbol, cfg.TokenA.Decimals); err != nil {
		return nil, fmt.Errorf("deploy token_a: %w", err)
	}
	if s.TokenB, err = token.New(env, env.Deploy(s.Deployer), cfg.TokenB.Symbol, cfg.TokenB.Decimals); err != nil {
		return nil, fmt.Errorf("deploy token_b: %w", err)
	}
	if s.Registry, err = authority.New(env, env.Deploy(s.Deployer), s.Controller); err != nil {
		return nil, fmt.Errorf("deploy registry: %w", err)
	}
	s.Pool, err = pool.New(env, pool.Config{
		Address:   env.Deploy(s.Deployer),
		Token0:    s.TokenA,
		Token1:    s.TokenB,
		Authority: s.Registry,
		Basis:     config.MustAmount(cfg.Pool.Basis),
	})
	if err != nil {
		return nil, fmt.Errorf("deploy pool: %w", err)
	}

	lock, _ := cfg.Spiker.Lock()
	policy, _ := cfg.Spiker.SettlementPolicy()
	s.Spiker, err = spiker.New(spiker.Config{
		Env:          env,
		Self:         env.Deploy(s.Deployer),
		Owner:        s.Owner,
		Registry:     s.Registry,
		Pool:         s.Pool,
		TokenA:       s.TokenA,
		TokenB:       s.TokenB,
		LockDuration: lock,
		Policy:       policy,
		Recorder:     opts.Recorder,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("deploy spiker: %w", err)
	}

	if cfg.Vault.Enabled {
		if err := s.deployVault(cfg.Vault, logger); err != nil {
			return nil, err
		}
	}

	err = env.Atomic(func() error {
		if err := s.seedLiquidity(cfg.Pool); err != nil {
			return err
		}
		if err := s.mintBalances(cfg.Balances); err != nil {
			return err
		}
		if s.Vault != nil {
			if err := s.NewAsset.Mint(s.Vault.Address(), config.MustAmount(cfg.Vault.Funding)); err != nil {
				return fmt.Errorf("fund vault: %w", err)
			}
		}
		if cfg.Spiker.Preauthorize {
			if err := s.Registry.SetController(s.Controller, s.Spiker.Address()); err != nil {
				return fmt.Errorf("preauthorize spiker: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("pool", s.Pool.Address().Hex()).
		Str("registry", s.Registry.Address().Hex()).
		Str("spiker", s.Spiker.Address().Hex()).
		Bool("vault", s.Vault != nil).
		Msg("deployment ready")
	return s, nil
}

func (s *Stack) deployVault(cfg config.VaultConfig, logger zerolog.Logger) error {
	var err error
	if s.OldAsset, err = token.New(s.Env, s.Env.Deploy(s.Deployer), cfg.OldAsset.Symbol, cfg.OldAsset.Decimals); err != nil {
		return fmt.Errorf("deploy vault old asset: %w", err)
	}
	if s.NewAsset, err = token.New(s.Env, s.Env.Deploy(s.Deployer), cfg.NewAsset.Symbol, cfg.NewAsset.Decimals); err != nil {
		return fmt.Errorf("deploy vault new asset: %w", err)
	}
	opensIn, length, _ := cfg.Window()
	start := s.Env.Now().Add(opensIn)
	s.Vault, err = swapvault.New(s.Env, swapvault.Config{
		Address:         s.Env.Deploy(s.Deployer),
		Owner:           s.Owner,
		OldAsset:        s.OldAsset,
		NewAsset:        s.NewAsset,
		RateNumerator:   config.MustAmount(cfg.RateNumerator),
		RateDenominator: config.MustAmount(cfg.RateDenominator),
		Start:           start,
		End:             start.Add(length),
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("deploy vault: %w", err)
	}
	return nil
}

// seedLiquidity mints the configured reserves to the controller, who adds
// them to the pool.
func (s *Stack) seedLiquidity(cfg config.PoolConfig) error {
	r0, r1 := config.MustAmount(cfg.Reserve0), config.MustAmount(cfg.Reserve1)
	if r0.IsZero() && r1.IsZero() {
		return nil
	}
	legs := []struct {
		tok    *token.Token
		amount *uint256.Int
	}{{s.TokenA, r0}, {s.TokenB, r1}}
	for _, leg := range legs {
		if leg.amount.IsZero() {
			continue
		}
		if err := leg.tok.Mint(s.Controller, leg.amount); err != nil {
			return fmt.Errorf("mint liquidity %s: %w", leg.tok.Symbol(), err)
		}
		if err := leg.tok.Approve(s.Controller, s.Pool.Address(), leg.amount); err != nil {
			return err
		}
	}
	if err := s.Pool.AddLiquidity(s.Controller, r0, r1); err != nil {
		return fmt.Errorf("seed liquidity: %w", err)
	}
	return nil
}

func (s *Stack) mintBalances(balances []config.BalanceConfig) error {
	for _, bal := range balances {
		who := config.ResolveAccount(bal.Account)
		if a := config.MustAmount(bal.TokenA); !a.IsZero() {
			if err := s.TokenA.Mint(who, a); err != nil {
				return fmt.Errorf("mint %s to %s: %w", s.TokenA.Symbol(), bal.Account, err)
			}
		}
		if b := config.MustAmount(bal.TokenB); !b.IsZero() {
			if err := s.TokenB.Mint(who, b); err != nil {
				return fmt.Errorf("mint %s to %s: %w", s.TokenB.Symbol(), bal.Account, err)
			}
		}
	}
	return nil
}

// Now reads the env clock.
func (s *Stack) Now() time.Time {
	return s.Env.Now()
}
