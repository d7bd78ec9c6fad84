package spiker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/danmuck/spikectl/internal/authority"
	"github.com/danmuck/spikectl/internal/chain"
	"github.com/danmuck/spikectl/internal/pool"
	"github.com/danmuck/spikectl/internal/testutil/testlog"
	"github.com/danmuck/spikectl/internal/token"
	"github.com/holiman/uint256"
)

var (
	admin       = chain.AccountAddress("admin")
	owner       = chain.AccountAddress("owner")
	stranger    = chain.AccountAddress("stranger")
	beneficiary = chain.AccountAddress("beneficiary")
	sink        = chain.AccountAddress("sink")
)

type fixture struct {
	env    *chain.Env
	clock  *chain.ManualClock
	tokA   *token.Token
	tokB   *token.Token
	reg    *authority.Registry
	pool   *pool.Pool
	spiker *Spiker
	rec    *recordingRecorder
}

type recordingRecorder struct {
	spikes      []string
	settlements int
}

func (r *recordingRecorder) ObserveSpike(outcome string, _ int) {
	r.spikes = append(r.spikes, outcome)
}

func (r *recordingRecorder) ObserveSettlement(int, int, int, int) {
	r.settlements++
}

func newFixture(t *testing.T, basis uint64, policy Policy) *fixture {
	t.Helper()
	clock := chain.NewManualClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	env := chain.NewEnv(clock, testlog.Logger(t))

	tokA, err := token.New(env, env.Deploy(admin), "AAA", 18)
	if err != nil {
		t.Fatalf("token a: %v", err)
	}
	tokB, err := token.New(env, env.Deploy(admin), "BBB", 6)
	if err != nil {
		t.Fatalf("token b: %v", err)
	}
	reg, err := authority.New(env, env.Deploy(admin), admin)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	p, err := pool.New(env, pool.Config{
		Address:   env.Deploy(admin),
		Token0:    tokA,
		Token1:    tokB,
		Authority: reg,
		Basis:     uint256.NewInt(basis),
	})
	if err != nil {
		t.Fatalf("pool: %v", err)
	}

	rec := &recordingRecorder{}
	s, err := New(Config{
		Env:      env,
		Self:     env.Deploy(owner),
		Owner:    owner,
		Registry: reg,
		Pool:     p,
		TokenA:   tokA,
		TokenB:   tokB,
		Policy:   policy,
		Recorder: rec,
		Logger:   testlog.Logger(t),
	})
	if err != nil {
		t.Fatalf("spiker: %v", err)
	}

	f := &fixture{env: env, clock: clock, tokA: tokA, tokB: tokB, reg: reg, pool: p, spiker: s, rec: rec}
	unlimited := new(uint256.Int).SetAllOne()
	for _, who := range []chain.Address{owner, admin} {
		mustMint(t, tokA, who, 1_000_000)
		mustMint(t, tokB, who, 1_000_000)
	}
	_ = tokA.Approve(owner, s.Address(), unlimited)
	_ = tokB.Approve(owner, s.Address(), unlimited)
	_ = tokA.Approve(admin, p.Address(), unlimited)
	_ = tokB.Approve(admin, p.Address(), unlimited)
	if err := p.AddLiquidity(admin, uint256.NewInt(10_000), uint256.NewInt(10_000)); err != nil {
		t.Fatalf("seed liquidity: %v", err)
	}
	if err := reg.SetController(admin, s.Address()); err != nil {
		t.Fatalf("propose spiker: %v", err)
	}
	return f
}

func mustMint(t *testing.T, tok *token.Token, who chain.Address, amount uint64) {
	t.Helper()
	if err := tok.Mint(who, uint256.NewInt(amount)); err != nil {
		t.Fatalf("mint %s: %v", tok.Symbol(), err)
	}
}

func amounts(vs ...uint64) []*uint256.Int {
	out := make([]*uint256.Int, len(vs))
	for i, v := range vs {
		out[i] = uint256.NewInt(v)
	}
	return out
}

func request(basis uint64, a, b []uint64) SpikeRequest {
	var totalA, totalB uint64
	for _, v := range a {
		totalA += v
	}
	for _, v := range b {
		totalB += v
	}
	return SpikeRequest{
		NewBasis:  uint256.NewInt(basis),
		DepositsA: amounts(a...),
		DepositsB: amounts(b...),
		TotalA:    uint256.NewInt(totalA),
		TotalB:    uint256.NewInt(totalB),
	}
}

type state struct {
	controller chain.Address
	pending    chain.Address
	basis      *uint256.Int
	reserve0   *uint256.Int
	reserve1   *uint256.Int
	ownerA     *uint256.Int
	ownerB     *uint256.Int
	notes      uint64
	events     int
}

func (f *fixture) capture() state {
	r0, r1 := f.pool.GetReserves()
	return state{
		controller: f.reg.Controller(),
		pending:    f.reg.PendingController(),
		basis:      f.pool.Basis(),
		reserve0:   r0,
		reserve1:   r1,
		ownerA:     f.tokA.BalanceOf(owner),
		ownerB:     f.tokB.BalanceOf(owner),
		notes:      f.pool.NoteCount(f.spiker.Address()),
		events:     len(f.env.Events()),
	}
}

func (f *fixture) requireUnchanged(t *testing.T, before state) {
	t.Helper()
	after := f.capture()
	if after.controller != before.controller || after.pending != before.pending {
		t.Fatalf("registry changed: before=(%s,%s) after=(%s,%s)",
			before.controller.Hex(), before.pending.Hex(), after.controller.Hex(), after.pending.Hex())
	}
	if !after.basis.Eq(before.basis) {
		t.Fatalf("basis changed: %s -> %s", before.basis.Dec(), after.basis.Dec())
	}
	if !after.reserve0.Eq(before.reserve0) || !after.reserve1.Eq(before.reserve1) {
		t.Fatalf("reserves changed")
	}
	if !after.ownerA.Eq(before.ownerA) || !after.ownerB.Eq(before.ownerB) {
		t.Fatalf("owner balances changed")
	}
	if after.notes != before.notes {
		t.Fatalf("note count changed: %d -> %d", before.notes, after.notes)
	}
	if after.events != before.events {
		t.Fatalf("events leaked from reverted call: %d -> %d", before.events, after.events)
	}
}

// readmit hands the controller role back to the admin after a batch.
func (f *fixture) readmit(t *testing.T) {
	t.Helper()
	if err := f.reg.BecomeController(admin); err != nil {
		t.Fatalf("admin accept: %v", err)
	}
}

func TestNewRejectsMismatchedAssets(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, 0, StopOnFailure)

	_, err := New(Config{
		Env:      f.env,
		Self:     chain.AccountAddress("other"),
		Owner:    owner,
		Registry: f.reg,
		Pool:     f.pool,
		TokenA:   f.tokB,
		TokenB:   f.tokA,
	})
	if !errors.Is(err, ErrAssetMismatch) {
		t.Fatalf("expected ErrAssetMismatch, got %v", err)
	}
	if f.spiker.Policy() != StopOnFailure || f.spiker.LockDuration() != DefaultLockDuration {
		t.Fatalf("unexpected defaults: %s %s", f.spiker.Policy(), f.spiker.LockDuration())
	}
}

func TestSpikeRestoresBasisAndProposesOriginalController(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, 500, StopOnFailure)
	before := f.capture()

	receipt, err := f.spiker.SpikeAndDeposit(context.Background(), owner, request(0, []uint64{100, 200}, []uint64{50}))
	if err != nil {
		t.Fatalf("spike: %v", err)
	}

	if !f.pool.Basis().Eq(before.basis) {
		t.Fatalf("basis not restored: %s", f.pool.Basis().Dec())
	}
	if f.reg.PendingController() != admin {
		t.Fatalf("pending should be the original controller, got %s", f.reg.PendingController().Hex())
	}
	if f.reg.Controller() != f.spiker.Address() {
		t.Fatalf("spiker holds control until the admin accepts")
	}
	if len(receipt.Notes) != 3 {
		t.Fatalf("unexpected notes: %+v", receipt.Notes)
	}
	if receipt.Notes[2].Side != SideB || receipt.Notes[2].Index != 2 {
		t.Fatalf("unexpected last note ref: %+v", receipt.Notes[2])
	}
	if !receipt.RestoredBasis.Eq(before.basis) || receipt.RestoredPending != admin {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}

	// Deposits used the overridden zero basis, so no premium was credited.
	note, err := f.pool.Notes(f.spiker.Address(), 1)
	if err != nil {
		t.Fatalf("notes: %v", err)
	}
	if note.Amount0.Uint64() != 200 {
		t.Fatalf("unexpected credited amount: %s", note.Amount0.Dec())
	}

	for _, tok := range []*token.Token{f.tokA, f.tokB} {
		if !tok.Allowance(f.spiker.Address(), f.pool.Address()).IsZero() {
			t.Fatalf("residual allowance on %s", tok.Symbol())
		}
		if !tok.BalanceOf(f.spiker.Address()).IsZero() {
			t.Fatalf("spiker kept funds in %s", tok.Symbol())
		}
	}
	r0, r1 := f.pool.GetReserves()
	if r0.Uint64() != before.reserve0.Uint64()+300 || r1.Uint64() != before.reserve1.Uint64()+50 {
		t.Fatalf("unexpected reserves: %s %s", r0.Dec(), r1.Dec())
	}
	if got := f.tokA.BalanceOf(owner).Uint64(); got != before.ownerA.Uint64()-300 {
		t.Fatalf("unexpected owner balance: %d", got)
	}

	f.readmit(t)
	if f.reg.Controller() != admin || !chain.IsZero(f.reg.PendingController()) {
		t.Fatalf("admin should be back in control")
	}
	if len(f.rec.spikes) != 1 || f.rec.spikes[0] != "ok" {
		t.Fatalf("unexpected recorded spikes: %v", f.rec.spikes)
	}
}

func TestSpikeRejectsEmptyBatchWithoutSideEffects(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, 0, StopOnFailure)
	before := f.capture()

	_, err := f.spiker.SpikeAndDeposit(context.Background(), owner, request(0, nil, nil))
	if !errors.Is(err, ErrNoDeposits) {
		t.Fatalf("expected ErrNoDeposits, got %v", err)
	}
	if Classify(err) != ClassPrecondition {
		t.Fatalf("unexpected class: %s", Classify(err))
	}
	f.requireUnchanged(t, before)
}

func TestSpikeRejectsTotalMismatch(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, 0, StopOnFailure)
	before := f.capture()

	req := request(0, []uint64{10, 20}, nil)
	req.TotalA = uint256.NewInt(31)
	if _, err := f.spiker.SpikeAndDeposit(context.Background(), owner, req); !errors.Is(err, ErrTotalMismatch) {
		t.Fatalf("expected ErrTotalMismatch, got %v", err)
	}
	f.requireUnchanged(t, before)
}

func TestEntryPointsAreOwnerOnly(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, 0, StopOnFailure)
	before := f.capture()

	_, err := f.spiker.SpikeAndDeposit(context.Background(), stranger, request(0, []uint64{1}, nil))
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := f.spiker.WithdrawAll(context.Background(), stranger, stranger); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if Classify(err) != ClassAuthorization {
		t.Fatalf("unexpected class: %s", Classify(err))
	}
	f.requireUnchanged(t, before)
}

func TestSpikeRequiresPendingProposal(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, 0, StopOnFailure)
	// Withdraw the proposal by proposing someone else.
	if err := f.reg.SetController(admin, stranger); err != nil {
		t.Fatalf("repropose: %v", err)
	}
	before := f.capture()

	_, err := f.spiker.SpikeAndDeposit(context.Background(), owner, request(0, []uint64{5}, nil))
	if !errors.Is(err, ErrNotController) {
		t.Fatalf("expected ErrNotController, got %v", err)
	}
	f.requireUnchanged(t, before)
}

func TestSpikeOverflowRevertsEverything(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, 25, StopOnFailure)
	before := f.capture()

	req := request(0, []uint64{100}, nil)
	req.NewBasis = new(uint256.Int).SetAllOne()
	_, err := f.spiker.SpikeAndDeposit(context.Background(), owner, req)
	if !IsArithmetic(err) {
		t.Fatalf("expected arithmetic failure, got %v", err)
	}
	if Classify(err) != ClassArithmetic {
		t.Fatalf("unexpected class: %s", Classify(err))
	}
	f.requireUnchanged(t, before)
	if f.reg.PendingController() != f.spiker.Address() {
		t.Fatalf("proposal must survive a reverted batch")
	}
	if len(f.rec.spikes) != 1 || f.rec.spikes[0] != string(ClassArithmetic) {
		t.Fatalf("unexpected recorded spikes: %v", f.rec.spikes)
	}
}

func TestSpikeHonorsCancelledContext(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, 0, StopOnFailure)
	before := f.capture()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.spiker.SpikeAndDeposit(ctx, owner, request(0, []uint64{1}, nil)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := f.spiker.WithdrawAll(ctx, owner, beneficiary); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	f.requireUnchanged(t, before)
}

// drainTo leaves the pool holding exactly keep units of token0.
func (f *fixture) drainTo(t *testing.T, keep uint64) {
	t.Helper()
	r0, _ := f.pool.GetReserves()
	excess := new(uint256.Int).Sub(r0, uint256.NewInt(keep))
	if err := f.pool.RemoveLiquidity(admin, sink, excess, new(uint256.Int)); err != nil {
		t.Fatalf("drain: %v", err)
	}
}

func (f *fixture) liquidityLimited(t *testing.T) {
	t.Helper()
	if _, err := f.spiker.SpikeAndDeposit(context.Background(), owner, request(0, []uint64{100, 300, 50}, nil)); err != nil {
		t.Fatalf("spike: %v", err)
	}
	f.readmit(t)
	f.drainTo(t, 150)
	f.clock.Advance(DefaultLockDuration)
}

func indexes(vs ...uint64) []uint64 { return vs }

func equalIndexes(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestWithdrawAllStopPolicyHaltsAtFirstFailure(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, 0, StopOnFailure)
	f.liquidityLimited(t)

	report, err := f.spiker.WithdrawAll(context.Background(), owner, beneficiary)
	if err != nil {
		t.Fatalf("withdraw all: %v", err)
	}
	if !equalIndexes(report.Cleared, indexes(0)) ||
		!equalIndexes(report.Failed, indexes(1)) ||
		!equalIndexes(report.Unattempted, indexes(2)) {
		t.Fatalf("unexpected report: %+v", report)
	}
	if !errors.Is(report.Results[1].Err, pool.ErrInsufficientLiquidity) {
		t.Fatalf("unexpected failure reason: %v", report.Results[1].Err)
	}
	if report.Complete() {
		t.Fatalf("report should be incomplete")
	}
	if got := f.tokA.BalanceOf(beneficiary).Uint64(); got != 100 {
		t.Fatalf("unexpected beneficiary balance: %d", got)
	}
	for _, idx := range []uint64{1, 2} {
		note, _ := f.pool.Notes(f.spiker.Address(), idx)
		if !note.Live() {
			t.Fatalf("note %d should still be live", idx)
		}
	}
	if !f.tokA.BalanceOf(f.spiker.Address()).IsZero() {
		t.Fatalf("spiker kept proceeds")
	}
}

func TestWithdrawAllSkipPolicyClearsRedeemableNotes(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, 0, SkipOnFailure)
	f.liquidityLimited(t)

	report, err := f.spiker.SettleAll(context.Background(), owner, beneficiary)
	if err != nil {
		t.Fatalf("settle all: %v", err)
	}
	if !equalIndexes(report.Cleared, indexes(0, 2)) || !equalIndexes(report.Failed, indexes(1)) {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.TotalA.Uint64() != 150 || !report.TotalB.IsZero() {
		t.Fatalf("unexpected totals: %s %s", report.TotalA.Dec(), report.TotalB.Dec())
	}
	if got := f.tokA.BalanceOf(beneficiary).Uint64(); got != 150 {
		t.Fatalf("unexpected beneficiary balance: %d", got)
	}

	// Top up and retry: cleared notes are skipped, the failed one clears.
	if err := f.pool.AddLiquidity(admin, uint256.NewInt(300), new(uint256.Int)); err != nil {
		t.Fatalf("top up: %v", err)
	}
	retry, err := f.spiker.WithdrawAll(context.Background(), owner, beneficiary)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !equalIndexes(retry.Skipped, indexes(0, 2)) || !equalIndexes(retry.Cleared, indexes(1)) {
		t.Fatalf("unexpected retry report: %+v", retry)
	}
	if !retry.Complete() {
		t.Fatalf("retry should settle everything")
	}
	if got := f.tokA.BalanceOf(beneficiary).Uint64(); got != 450 {
		t.Fatalf("unexpected beneficiary balance: %d", got)
	}
	if f.rec.settlements != 2 {
		t.Fatalf("unexpected settlement observations: %d", f.rec.settlements)
	}
}

func TestWithdrawAllBeforeMaturityClearsNothing(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, 0, SkipOnFailure)
	if _, err := f.spiker.SpikeAndDeposit(context.Background(), owner, request(0, []uint64{10}, []uint64{20})); err != nil {
		t.Fatalf("spike: %v", err)
	}

	report, err := f.spiker.WithdrawAll(context.Background(), owner, beneficiary)
	if err != nil {
		t.Fatalf("withdraw all: %v", err)
	}
	if len(report.Cleared) != 0 || len(report.Failed) != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
	for _, res := range report.Results {
		if !errors.Is(res.Err, pool.ErrNotMatured) {
			t.Fatalf("unexpected failure: %v", res.Err)
		}
	}
	if !f.tokA.BalanceOf(beneficiary).IsZero() {
		t.Fatalf("nothing should be forwarded")
	}
}

func TestWithdrawAllRejectsZeroBeneficiary(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, 0, StopOnFailure)
	_, err := f.spiker.WithdrawAll(context.Background(), owner, chain.ZeroAddress)
	if !errors.Is(err, ErrInvalidRecipient) {
		t.Fatalf("expected ErrInvalidRecipient, got %v", err)
	}
}

func TestWithdrawAllWithNoNotesIsEmpty(t *testing.T) {
	testlog.Start(t)
	f := newFixture(t, 0, StopOnFailure)
	report, err := f.spiker.WithdrawAll(context.Background(), owner, beneficiary)
	if err != nil {
		t.Fatalf("withdraw all: %v", err)
	}
	if len(report.Results) != 0 || !report.Complete() {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestParsePolicy(t *testing.T) {
	testlog.Start(t)
	cases := map[string]Policy{
		"":                StopOnFailure,
		"stop":            StopOnFailure,
		"Skip":            SkipOnFailure,
		"skip-on-failure": SkipOnFailure,
	}
	for raw, want := range cases {
		got, err := ParsePolicy(raw)
		if err != nil || got != want {
			t.Fatalf("ParsePolicy(%q) = %q, %v", raw, got, err)
		}
	}
	if _, err := ParsePolicy("retry"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}
