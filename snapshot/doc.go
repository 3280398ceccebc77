// Package snapshot persists a point-in-time image of the clearing house:
// registered users, the fee schedule and every auction with its queue.
//
// A snapshot covers the journal up to Seq. On start the house loads it
// and replays only the records after Seq.
package snapshot
