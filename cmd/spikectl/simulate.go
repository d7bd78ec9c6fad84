package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/spikectl/internal/chain"
	"github.com/danmuck/spikectl/internal/config"
	"github.com/danmuck/spikectl/internal/deploy"
	"github.com/danmuck/spikectl/internal/journal"
	"github.com/danmuck/spikectl/internal/observability"
	"github.com/danmuck/spikectl/internal/spiker"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
	"github.com/sugawarayuuta/sonnet"
)

type simulateOptions struct {
	deployment  string
	basis       string
	depositsA   string
	depositsB   string
	policy      string
	drainTo     string
	beneficiary string
	journal     string
}

type simulation struct {
	Receipt     spiker.SpikeReceipt     `json:"receipt"`
	Settlement  spiker.SettlementReport `json:"settlement"`
	Pool        deploy.PoolState        `json:"pool"`
	Beneficiary chain.Address           `json:"beneficiary"`
	Paid        map[string]*uint256.Int `json:"paid"`
}

func newSimulateCmd() *cobra.Command {
	opts := simulateOptions{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run one spike batch and its settlement on a manual clock.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			if err := loadDotEnv(envFile); err != nil {
				return err
			}
			out, err := runSimulation(cmd.Context(), opts)
			if err != nil {
				return err
			}
			raw, err := sonnet.Marshal(out)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(raw))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.deployment, "deployment", "", "deployment config (toml); the built-in template when empty")
	f.StringVar(&opts.basis, "basis", "0", "basis held by the pool during the batch")
	f.StringVar(&opts.depositsA, "deposits-a", "100,300,50", "comma separated token A deposits")
	f.StringVar(&opts.depositsB, "deposits-b", "", "comma separated token B deposits")
	f.StringVar(&opts.policy, "policy", "", "settlement policy override: stop or skip")
	f.StringVar(&opts.drainTo, "drain-to", "", "shrink the token A reserve to this amount before settling")
	f.StringVar(&opts.beneficiary, "beneficiary", "beneficiary", "settlement recipient label or hex address")
	f.StringVar(&opts.journal, "journal", "", "sqlite journal to record the run into")
	return cmd
}

func runSimulation(ctx context.Context, opts simulateOptions) (simulation, error) {
	cfg, err := simulationDeployment(opts)
	if err != nil {
		return simulation{}, err
	}
	if strings.TrimSpace(opts.beneficiary) == "" {
		return simulation{}, errors.New("beneficiary is required")
	}
	beneficiary := config.ResolveAccount(opts.beneficiary)
	basis, err := config.ParseAmount(opts.basis)
	if err != nil {
		return simulation{}, err
	}
	depositsA, err := parseAmountList(opts.depositsA)
	if err != nil {
		return simulation{}, err
	}
	depositsB, err := parseAmountList(opts.depositsB)
	if err != nil {
		return simulation{}, err
	}

	logger := observability.InitLogger("spikectl.simulate")
	clock := chain.NewManualClock(time.Now().UTC().Truncate(time.Second))
	stack, err := deploy.BuildWith(cfg, clock, deploy.Options{Logger: &logger})
	if err != nil {
		return simulation{}, err
	}

	unlimited := new(uint256.Int).SetAllOne()
	if err := stack.Approve(stack.Owner, stack.Spiker.Address(), unlimited, unlimited); err != nil {
		return simulation{}, err
	}
	receipt, err := stack.Spiker.SpikeAndDeposit(ctx, stack.Owner, spiker.SpikeRequest{
		NewBasis:  basis,
		DepositsA: depositsA,
		DepositsB: depositsB,
		TotalA:    sum(depositsA),
		TotalB:    sum(depositsB),
	})
	if err != nil {
		return simulation{}, fmt.Errorf("spike: %w", err)
	}
	if err := stack.AcceptController(stack.Controller); err != nil {
		return simulation{}, fmt.Errorf("accept controller: %w", err)
	}
	if opts.drainTo != "" {
		if err := drainReserve(stack, opts.drainTo); err != nil {
			return simulation{}, err
		}
	}

	clock.Advance(stack.Spiker.LockDuration())
	report, err := stack.Spiker.WithdrawAll(ctx, stack.Owner, beneficiary)
	if err != nil {
		return simulation{}, fmt.Errorf("settle: %w", err)
	}

	if opts.journal != "" {
		if err := recordSimulation(ctx, opts.journal, stack, receipt, report); err != nil {
			return simulation{}, err
		}
	}

	paidA, paidB := stack.Balances(beneficiary)
	return simulation{
		Receipt:     receipt,
		Settlement:  report,
		Pool:        stack.PoolState(),
		Beneficiary: beneficiary,
		Paid: map[string]*uint256.Int{
			cfg.TokenA.Symbol: paidA,
			cfg.TokenB.Symbol: paidB,
		},
	}, nil
}

func simulationDeployment(opts simulateOptions) (config.Deployment, error) {
	var (
		cfg config.Deployment
		err error
	)
	if opts.deployment != "" {
		cfg, err = config.LoadDeployment(opts.deployment)
	} else {
		var tmpl string
		tmpl, err = config.Template("deployment")
		if err == nil {
			cfg, err = config.ParseDeployment([]byte(tmpl))
		}
	}
	if err != nil {
		return config.Deployment{}, err
	}
	cfg.Spiker.Preauthorize = true
	if opts.policy != "" {
		cfg.Spiker.Policy = opts.policy
	}
	if err := config.ValidateDeployment(cfg); err != nil {
		return config.Deployment{}, err
	}
	return cfg, nil
}

// drainReserve pulls token A liquidity out to the controller until only
// keep remains.
func drainReserve(stack *deploy.Stack, raw string) error {
	keep, err := config.ParseAmount(raw)
	if err != nil {
		return err
	}
	return stack.Env.Atomic(func() error {
		r0, _ := stack.Pool.GetReserves()
		if keep.Gt(r0) {
			return fmt.Errorf("drain-to %s exceeds reserve %s", keep.Dec(), r0.Dec())
		}
		excess := new(uint256.Int).Sub(r0, keep)
		return stack.Pool.RemoveLiquidity(stack.Controller, stack.Controller, excess, new(uint256.Int))
	})
}

func recordSimulation(ctx context.Context, path string, stack *deploy.Stack, receipt spiker.SpikeReceipt, report spiker.SettlementReport) error {
	logger := observability.InitLogger("spikectl.journal")
	j, err := journal.Open(path, logger)
	if err != nil {
		return err
	}
	defer j.Close()

	if _, err := j.RecordSpike(ctx, receipt); err != nil {
		return err
	}
	if _, err := j.RecordSettlement(ctx, report, stack.Now()); err != nil {
		return err
	}
	added, err := j.RecordEvents(ctx, stack.Env.Events())
	if err != nil {
		return err
	}
	logger.Info().Int("events", added).Str("path", path).Msg("simulation journaled")
	return nil
}

func parseAmountList(raw string) ([]*uint256.Int, error) {
	var out []*uint256.Int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		amount, err := config.ParseAmount(part)
		if err != nil {
			return nil, err
		}
		out = append(out, amount)
	}
	return out, nil
}

func sum(amounts []*uint256.Int) *uint256.Int {
	total := new(uint256.Int)
	for _, a := range amounts {
		total.Add(total, a)
	}
	return total
}
