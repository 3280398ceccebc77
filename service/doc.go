// Package service hosts the clearing house: many batch auctions behind
// one write entry point.
//
// Every mutating command runs under its auction's lock. The domain checks
// everything first and then makes a single ledger call; the house journals
// the command inside that call, so a command is durable before the auction
// changes, and a journal failure reverses the transfers and fails the
// command. Events are announced after the change; an outbox failure keeps
// them in memory until the next write. The house is rebuilt on start from
// the latest snapshot plus the journal records after it.
package service
