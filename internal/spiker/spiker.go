package spiker

import (
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/spikectl/internal/chain"
	"github.com/rs/zerolog"
)

// DefaultLockDuration is the lock applied to every note a batch creates.
const DefaultLockDuration = 24 * time.Hour

// Config wires the spiker to its environment and collaborators.
type Config struct {
	Env          *chain.Env
	Self         chain.Address
	Owner        chain.Address
	Registry     Registry
	Pool         Pool
	TokenA       Asset
	TokenB       Asset
	LockDuration time.Duration
	Policy       Policy
	Recorder     Recorder
	Logger       zerolog.Logger
}

// Spiker is owned by a single identity fixed at construction.
type Spiker struct {
	env      *chain.Env
	self     chain.Address
	owner    chain.Address
	registry Registry
	pool     Pool
	tokenA   Asset
	tokenB   Asset
	lock     uint64
	policy   Policy
	metrics  Recorder
	logger   zerolog.Logger
}

// New validates cfg and returns a spiker living at cfg.Self.
func New(cfg Config) (*Spiker, error) {
	if cfg.Env == nil {
		return nil, errors.New("spiker: env is required")
	}
	if cfg.Registry == nil || cfg.Pool == nil || cfg.TokenA == nil || cfg.TokenB == nil {
		return nil, errors.New("spiker: registry, pool, and both assets are required")
	}
	if chain.IsZero(cfg.Self) || chain.IsZero(cfg.Owner) {
		return nil, errors.New("spiker: self and owner addresses are required")
	}
	if cfg.Pool.Token0() != cfg.TokenA.Address() || cfg.Pool.Token1() != cfg.TokenB.Address() {
		return nil, fmt.Errorf("%w: pool=(%s,%s) assets=(%s,%s)", ErrAssetMismatch,
			cfg.Pool.Token0().Hex(), cfg.Pool.Token1().Hex(),
			cfg.TokenA.Address().Hex(), cfg.TokenB.Address().Hex())
	}

	lock := cfg.LockDuration
	if lock == 0 {
		lock = DefaultLockDuration
	}
	if lock < time.Second {
		return nil, fmt.Errorf("spiker: lock duration %s below one second", lock)
	}

	policy := cfg.Policy
	if policy == "" {
		policy = StopOnFailure
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	recorder := cfg.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}

	return &Spiker{
		env:      cfg.Env,
		self:     cfg.Self,
		owner:    cfg.Owner,
		registry: cfg.Registry,
		pool:     cfg.Pool,
		tokenA:   cfg.TokenA,
		tokenB:   cfg.TokenB,
		lock:     uint64(lock / time.Second),
		policy:   policy,
		metrics:  recorder,
		logger: cfg.Logger.With().
			Str("component", "spiker").
			Str("spiker", cfg.Self.Hex()).
			Logger(),
	}, nil
}

func (s *Spiker) Address() chain.Address {
	return s.self
}

func (s *Spiker) Owner() chain.Address {
	return s.owner
}

func (s *Spiker) Policy() Policy {
	return s.policy
}

func (s *Spiker) LockDuration() time.Duration {
	return time.Duration(s.lock) * time.Second
}

func (s *Spiker) onlyOwner(caller chain.Address) error {
	if caller != s.owner {
		return fmt.Errorf("%w: caller=%s", ErrUnauthorized, caller.Hex())
	}
	return nil
}
