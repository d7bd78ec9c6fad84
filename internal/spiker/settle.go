package spiker

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/danmuck/spikectl/internal/chain"
	"github.com/holiman/uint256"
)

// Policy decides what a settlement pass does after a note fails.
type Policy string

const (
	// StopOnFailure ends the pass at the first failing note. Later notes stay
	// live, so earlier notes always clear before later ones.
	StopOnFailure Policy = "stop"
	// SkipOnFailure records the failure and moves on, clearing every note
	// that is independently redeemable.
	SkipOnFailure Policy = "skip"
)

func (p Policy) Validate() error {
	switch p {
	case StopOnFailure, SkipOnFailure:
		return nil
	default:
		return fmt.Errorf("spiker: unknown settlement policy %q", string(p))
	}
}

// ParsePolicy accepts "stop"/"skip" and the long forms used in configs.
func ParsePolicy(raw string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "stop", "stop-on-failure", "stop_on_failure":
		return StopOnFailure, nil
	case "skip", "skip-on-failure", "skip_on_failure":
		return SkipOnFailure, nil
	default:
		return "", fmt.Errorf("spiker: unknown settlement policy %q", raw)
	}
}

// Outcome tags one note's settlement result.
type Outcome string

const (
	OutcomeCleared     Outcome = "cleared"
	OutcomeFailed      Outcome = "failed"
	OutcomeSkipped     Outcome = "skipped"
	OutcomeUnattempted Outcome = "unattempted"
)

// Result is the tagged outcome of one note. Amounts are set only when the
// note cleared; Err only when it failed.
type Result struct {
	Index   uint64       `json:"index"`
	Outcome Outcome      `json:"outcome"`
	Amount0 *uint256.Int `json:"amount0,omitempty"`
	Amount1 *uint256.Int `json:"amount1,omitempty"`
	Err     error        `json:"-"`
	Reason  string       `json:"reason,omitempty"`
}

func (r Result) OK() bool {
	return r.Outcome == OutcomeCleared
}

// SettlementReport aggregates one WithdrawAll pass.
type SettlementReport struct {
	Policy      Policy        `json:"policy"`
	Beneficiary chain.Address `json:"beneficiary"`
	Results     []Result      `json:"results"`
	Cleared     []uint64      `json:"cleared"`
	Failed      []uint64      `json:"failed"`
	Skipped     []uint64      `json:"skipped"`
	Unattempted []uint64      `json:"unattempted"`
	TotalA      *uint256.Int  `json:"total_a"`
	TotalB      *uint256.Int  `json:"total_b"`
}

// Complete reports whether every note the spiker owns is now cleared.
func (r SettlementReport) Complete() bool {
	return len(r.Failed) == 0 && len(r.Unattempted) == 0
}

func (r *SettlementReport) add(res Result) {
	r.Results = append(r.Results, res)
	switch res.Outcome {
	case OutcomeCleared:
		r.Cleared = append(r.Cleared, res.Index)
	case OutcomeFailed:
		r.Failed = append(r.Failed, res.Index)
	case OutcomeSkipped:
		r.Skipped = append(r.Skipped, res.Index)
	case OutcomeUnattempted:
		r.Unattempted = append(r.Unattempted, res.Index)
	}
}

// SettleAll is WithdrawAll under its ledger-facing name.
func (s *Spiker) SettleAll(ctx context.Context, caller, beneficiary chain.Address) (SettlementReport, error) {
	return s.WithdrawAll(ctx, caller, beneficiary)
}

// WithdrawAll redeems every live note the spiker owns and forwards the
// proceeds to beneficiary in one transfer per asset. A failing note is left
// exactly as it was; the call itself only fails on authorization, a bad
// recipient, cancellation, or a failed forward.
func (s *Spiker) WithdrawAll(ctx context.Context, caller, beneficiary chain.Address) (SettlementReport, error) {
	if err := ctx.Err(); err != nil {
		return SettlementReport{}, err
	}

	var report SettlementReport
	err := s.env.Atomic(func() error {
		var err error
		report, err = s.settle(ctx, caller, beneficiary)
		return err
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("caller", caller.Hex()).Msg("settlement reverted")
		return SettlementReport{}, err
	}

	s.metrics.ObserveSettlement(len(report.Cleared), len(report.Failed), len(report.Skipped), len(report.Unattempted))
	s.logger.Info().
		Str("beneficiary", beneficiary.Hex()).
		Str("policy", string(report.Policy)).
		Int("cleared", len(report.Cleared)).
		Int("failed", len(report.Failed)).
		Int("skipped", len(report.Skipped)).
		Int("unattempted", len(report.Unattempted)).
		Str("total_a", report.TotalA.Dec()).
		Str("total_b", report.TotalB.Dec()).
		Msg("settlement complete")
	return report, nil
}

func (s *Spiker) settle(ctx context.Context, caller, beneficiary chain.Address) (SettlementReport, error) {
	if err := s.onlyOwner(caller); err != nil {
		return SettlementReport{}, err
	}
	if chain.IsZero(beneficiary) {
		return SettlementReport{}, ErrInvalidRecipient
	}

	report := SettlementReport{
		Policy:      s.policy,
		Beneficiary: beneficiary,
		TotalA:      new(uint256.Int),
		TotalB:      new(uint256.Int),
	}
	count := s.pool.NoteCount(s.self)
	stopped := false
	for i := uint64(0); i < count; i++ {
		if err := ctx.Err(); err != nil {
			return SettlementReport{}, err
		}
		if stopped {
			report.add(Result{Index: i, Outcome: OutcomeUnattempted})
			continue
		}

		res := s.settleOne(i)
		if res.OK() {
			if err := accumulate(&report, res); err != nil {
				return SettlementReport{}, err
			}
		}
		report.add(res)

		if res.Outcome == OutcomeFailed {
			s.logger.Warn().Err(res.Err).Uint64("index", i).Str("policy", string(s.policy)).Msg("note settlement failed")
			stopped = s.policy == StopOnFailure
		}
	}

	if err := s.forward(beneficiary, report.TotalA, report.TotalB); err != nil {
		return SettlementReport{}, err
	}

	s.env.Emit("SettlementCompleted", s.self, map[string]string{
		"beneficiary": beneficiary.Hex(),
		"policy":      string(s.policy),
		"cleared":     strconv.Itoa(len(report.Cleared)),
		"failed":      strconv.Itoa(len(report.Failed)),
		"total_a":     report.TotalA.Dec(),
		"total_b":     report.TotalB.Dec(),
	})
	return report, nil
}

// settleOne attempts one note as a nested call so a failure reverts only
// that note's attempt.
func (s *Spiker) settleOne(index uint64) Result {
	note, err := s.pool.Notes(s.self, index)
	if err != nil {
		return failed(index, err)
	}
	if note.Cleared() {
		return Result{Index: index, Outcome: OutcomeSkipped}
	}

	var amt0, amt1 *uint256.Int
	err = s.env.Try(func() error {
		var err error
		amt0, amt1, err = s.pool.Withdraw(s.self, index, s.self)
		return err
	})
	if err != nil {
		return failed(index, err)
	}
	return Result{Index: index, Outcome: OutcomeCleared, Amount0: amt0, Amount1: amt1}
}

func (s *Spiker) forward(beneficiary chain.Address, totalA, totalB *uint256.Int) error {
	if !totalA.IsZero() {
		if err := s.tokenA.Transfer(s.self, beneficiary, totalA); err != nil {
			return fmt.Errorf("spiker: forward a: %w", err)
		}
	}
	if !totalB.IsZero() {
		if err := s.tokenB.Transfer(s.self, beneficiary, totalB); err != nil {
			return fmt.Errorf("spiker: forward b: %w", err)
		}
	}
	return nil
}

func accumulate(report *SettlementReport, res Result) error {
	a, overflowA := new(uint256.Int).AddOverflow(report.TotalA, orZero(res.Amount0))
	b, overflowB := new(uint256.Int).AddOverflow(report.TotalB, orZero(res.Amount1))
	if overflowA || overflowB {
		return fmt.Errorf("%w: settlement totals", ErrArithmeticOverflow)
	}
	report.TotalA, report.TotalB = a, b
	return nil
}

func failed(index uint64, err error) Result {
	return Result{Index: index, Outcome: OutcomeFailed, Err: err, Reason: err.Error()}
}
