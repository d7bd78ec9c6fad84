// Package chain is the execution environment shared by every on-ledger
// component: tokens, the authority registry, the pool, the orchestrator and
// the swap vault.
//
// Ownership boundary:
// - call serialization and all-or-nothing rollback
//
// - nested fallible calls (Try)
//
// - deterministic component addresses
//
// - the event log
//
// Components register themselves as Journaled members. A failing Atomic call
// restores every member and truncates the event log to its pre-call length.
package chain
