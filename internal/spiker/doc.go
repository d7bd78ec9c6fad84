// Package spiker owns the temporary-authority batch orchestrator.
//
// Ownership boundary:
// - transient controller role (accept, then propose the original back)
//
// - scoped basis override around one deposit batch
//
// - funding the batch from the owner and granting the pool an exact allowance
//
// - settling every note it owns to a beneficiary, isolating per-note failures
//
// Call order for SpikeAndDeposit:
// - accept -> pull totals -> approve -> override basis -> deposit batch
//
// - restore basis -> propose original controller
//
// Both entry points run as one chain.Env call: any failure reverts the whole
// call. The guards restore basis and controller on every exit path on top of
// that, so the override never outlives the call.
//
// The spiker never keeps funds: deposits are owned by the spiker itself only
// so WithdrawAll can redeem them and forward the proceeds.
package spiker
