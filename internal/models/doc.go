// Package models defines the core domain records for Juntas Seguras.
//
// # Aggregates
//
//   - Pool: a rotating savings group. Owns its member list and its append-only
//     transaction ledger; nothing outside the pool references into either.
//   - Payment: one money movement (contribution, escrow, or payout). References
//     a Pool and a User by id only.
//   - User: account identity plus the Stripe payer/payee identifiers.
//   - AuditEntry: immutable record of every sensitive action.
//
// # Money
//
// All amounts are integer minor units (cents). The HTTP layer converts to and
// from dollars exactly once; nothing below the handlers touches floats.
//
// # Invariants carried here
//
//  1. A pool's current round never exceeds its member count; the final payout
//     moves the pool to StatusCompleted instead of advancing.
//  2. Exactly one member holds position == currentRound (the recipient).
//  3. Payment statuses only move forward: pending is the only non-terminal
//     state. The storage layer enforces this with conditional updates; the
//     constructors here refuse to build records that start out invalid.
//  4. PayoutReceived is terminal once set.
package models
