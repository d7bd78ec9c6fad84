package spiker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/danmuck/spikectl/internal/chain"
	"github.com/holiman/uint256"
)

// Asset sides as reported on note references.
const (
	SideA = "a"
	SideB = "b"
)

// SpikeRequest is one batch: the basis to hold during the batch and the
// ordered deposits for each asset with their declared totals.
type SpikeRequest struct {
	NewBasis  *uint256.Int
	DepositsA []*uint256.Int
	DepositsB []*uint256.Int
	TotalA    *uint256.Int
	TotalB    *uint256.Int
}

// NoteRef points at one note created by a batch.
type NoteRef struct {
	Index  uint64       `json:"index"`
	Side   string       `json:"side"`
	Amount *uint256.Int `json:"amount"`
}

// SpikeReceipt describes a committed batch.
type SpikeReceipt struct {
	Caller          chain.Address `json:"caller"`
	Spiker          chain.Address `json:"spiker"`
	Pool            chain.Address `json:"pool"`
	Registry        chain.Address `json:"registry"`
	NewBasis        *uint256.Int  `json:"new_basis"`
	RestoredBasis   *uint256.Int  `json:"restored_basis"`
	RestoredPending chain.Address `json:"restored_pending"`
	TotalA          *uint256.Int  `json:"total_a"`
	TotalB          *uint256.Int  `json:"total_b"`
	Notes           []NoteRef     `json:"notes"`
	At              time.Time     `json:"at"`
}

// SpikeAndDeposit takes the controller role, overrides the pool basis,
// deposits the batch, then restores basis and proposes the original
// controller back. The call either commits completely or leaves no trace.
func (s *Spiker) SpikeAndDeposit(ctx context.Context, caller chain.Address, req SpikeRequest) (SpikeReceipt, error) {
	if err := ctx.Err(); err != nil {
		return SpikeReceipt{}, err
	}

	var receipt SpikeReceipt
	err := s.env.Atomic(func() error {
		var err error
		receipt, err = s.spike(ctx, caller, req)
		return err
	})
	if err != nil {
		s.metrics.ObserveSpike(string(classOrFailed(err)), 0)
		s.logger.Warn().Err(err).
			Str("caller", caller.Hex()).
			Str("class", string(Classify(err))).
			Msg("spike reverted")
		return SpikeReceipt{}, err
	}

	s.metrics.ObserveSpike("ok", len(receipt.Notes))
	s.logger.Info().
		Str("caller", caller.Hex()).
		Str("basis", receipt.NewBasis.Dec()).
		Str("total_a", receipt.TotalA.Dec()).
		Str("total_b", receipt.TotalB.Dec()).
		Int("notes", len(receipt.Notes)).
		Msg("spike complete")
	return receipt, nil
}

func (s *Spiker) spike(ctx context.Context, caller chain.Address, req SpikeRequest) (SpikeReceipt, error) {
	if err := s.onlyOwner(caller); err != nil {
		return SpikeReceipt{}, err
	}
	req = req.normalized()
	if err := req.Validate(); err != nil {
		return SpikeReceipt{}, err
	}
	if pending := s.registry.PendingController(); pending != s.self {
		return SpikeReceipt{}, fmt.Errorf("%w: pending=%s", ErrNotController, pending.Hex())
	}

	original := s.registry.Controller()
	basisBefore := s.pool.Basis()

	notes, err := s.spikeScoped(ctx, caller, req)
	if err != nil {
		return SpikeReceipt{}, err
	}

	restored := s.pool.Basis()
	if !restored.Eq(basisBefore) {
		return SpikeReceipt{}, fmt.Errorf("%w: basis=%s want=%s", ErrRestoreFailed, restored.Dec(), basisBefore.Dec())
	}
	pending := s.registry.PendingController()
	if pending != original {
		return SpikeReceipt{}, fmt.Errorf("%w: pending=%s want=%s", ErrRestoreFailed, pending.Hex(), original.Hex())
	}
	if err := s.checkAllowanceConsumed(); err != nil {
		return SpikeReceipt{}, err
	}

	receipt := SpikeReceipt{
		Caller:          caller,
		Spiker:          s.self,
		Pool:            s.pool.Address(),
		Registry:        s.registry.Address(),
		NewBasis:        req.NewBasis.Clone(),
		RestoredBasis:   restored,
		RestoredPending: pending,
		TotalA:          req.TotalA.Clone(),
		TotalB:          req.TotalB.Clone(),
		Notes:           notes,
		At:              s.env.Now(),
	}
	s.env.Emit("SpikeCompleted", s.self, map[string]string{
		"caller":   caller.Hex(),
		"owner":    s.owner.Hex(),
		"pool":     receipt.Pool.Hex(),
		"registry": receipt.Registry.Hex(),
		"total_a":  receipt.TotalA.Dec(),
		"total_b":  receipt.TotalB.Dec(),
		"notes":    strconv.Itoa(len(notes)),
	})
	return receipt, nil
}

// spikeScoped holds the controller role and the basis override for exactly
// the span of the batch. Both guards release on every return path.
func (s *Spiker) spikeScoped(ctx context.Context, caller chain.Address, req SpikeRequest) (notes []NoteRef, err error) {
	lease, err := acquireControl(s.registry, s.self)
	if err != nil {
		return nil, err
	}
	defer func() { err = errors.Join(err, lease.release()) }()
	s.logger.Debug().Str("previous_controller", lease.original.Hex()).Msg("controller accepted")

	if err := s.fund(caller, req); err != nil {
		return nil, err
	}

	override, err := overrideBasis(s.pool, s.self, req.NewBasis)
	if err != nil {
		return nil, err
	}
	defer func() { err = errors.Join(err, override.restore()) }()
	s.logger.Debug().
		Str("previous", override.previous.Dec()).
		Str("basis", req.NewBasis.Dec()).
		Msg("basis overridden")

	return s.depositAll(ctx, req)
}

// fund pulls each nonzero total from caller and grants the pool exactly
// that allowance.
func (s *Spiker) fund(caller chain.Address, req SpikeRequest) error {
	legs := []struct {
		asset Asset
		total *uint256.Int
	}{
		{s.tokenA, req.TotalA},
		{s.tokenB, req.TotalB},
	}
	for _, leg := range legs {
		if leg.total.IsZero() {
			continue
		}
		if err := leg.asset.TransferFrom(s.self, caller, s.self, leg.total); err != nil {
			return fmt.Errorf("spiker: pull %s: %w", leg.asset.Address().Hex(), err)
		}
		if err := leg.asset.Approve(s.self, s.pool.Address(), leg.total); err != nil {
			return fmt.Errorf("spiker: approve %s: %w", leg.asset.Address().Hex(), err)
		}
	}
	return nil
}

func (s *Spiker) depositAll(ctx context.Context, req SpikeRequest) ([]NoteRef, error) {
	notes := make([]NoteRef, 0, len(req.DepositsA)+len(req.DepositsB))
	for i, amount := range req.DepositsA {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		index, err := s.pool.Deposit0(s.self, s.self, amount, amount, s.lock)
		if err != nil {
			return nil, fmt.Errorf("deposit a[%d]: %w", i, err)
		}
		notes = append(notes, NoteRef{Index: index, Side: SideA, Amount: amount.Clone()})
	}
	for i, amount := range req.DepositsB {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		index, err := s.pool.Deposit1(s.self, s.self, amount, amount, s.lock)
		if err != nil {
			return nil, fmt.Errorf("deposit b[%d]: %w", i, err)
		}
		notes = append(notes, NoteRef{Index: index, Side: SideB, Amount: amount.Clone()})
	}
	return notes, nil
}

func (s *Spiker) checkAllowanceConsumed() error {
	for _, asset := range []Asset{s.tokenA, s.tokenB} {
		if residual := asset.Allowance(s.self, s.pool.Address()); !residual.IsZero() {
			return fmt.Errorf("%w: asset=%s residual=%s", ErrResidualAllowance, asset.Address().Hex(), residual.Dec())
		}
	}
	return nil
}

// Validate checks the batch shape. Declared totals must equal the sum of
// their sequence; the sums are recomputed with checked addition.
func (r SpikeRequest) Validate() error {
	r = r.normalized()
	if len(r.DepositsA)+len(r.DepositsB) == 0 {
		return fmt.Errorf("%w: empty deposit sequences", ErrNoDeposits)
	}
	if r.TotalA.IsZero() && r.TotalB.IsZero() {
		return fmt.Errorf("%w: zero totals", ErrNoDeposits)
	}
	sumA, err := sum(r.DepositsA)
	if err != nil {
		return err
	}
	if !sumA.Eq(r.TotalA) {
		return fmt.Errorf("%w: a declared=%s sum=%s", ErrTotalMismatch, r.TotalA.Dec(), sumA.Dec())
	}
	sumB, err := sum(r.DepositsB)
	if err != nil {
		return err
	}
	if !sumB.Eq(r.TotalB) {
		return fmt.Errorf("%w: b declared=%s sum=%s", ErrTotalMismatch, r.TotalB.Dec(), sumB.Dec())
	}
	return nil
}

func (r SpikeRequest) normalized() SpikeRequest {
	out := SpikeRequest{
		NewBasis: orZero(r.NewBasis),
		TotalA:   orZero(r.TotalA),
		TotalB:   orZero(r.TotalB),
	}
	out.DepositsA = make([]*uint256.Int, len(r.DepositsA))
	for i, v := range r.DepositsA {
		out.DepositsA[i] = orZero(v)
	}
	out.DepositsB = make([]*uint256.Int, len(r.DepositsB))
	for i, v := range r.DepositsB {
		out.DepositsB[i] = orZero(v)
	}
	return out
}

func sum(amounts []*uint256.Int) (*uint256.Int, error) {
	total := new(uint256.Int)
	for i, v := range amounts {
		next, overflow := new(uint256.Int).AddOverflow(total, v)
		if overflow {
			return nil, fmt.Errorf("%w: sum overflows at index %d", ErrArithmeticOverflow, i)
		}
		total = next
	}
	return total, nil
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v.Clone()
}

func classOrFailed(err error) ErrorClass {
	if class := Classify(err); class != ClassNone {
		return class
	}
	return ClassInternal
}
