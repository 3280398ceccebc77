// Package auction implements the sealed-order batch auction engine:
// order admission and ordering, the resumable clearing-price search,
// partial fills, fees, and the claim and cancellation state machine.
//
// An Auction is single-writer and deterministic. It never reads the
// clock and never logs; callers pass the current time and a Ledger,
// and must serialise every mutating call on the same Auction.
package auction
