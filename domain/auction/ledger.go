package auction

import (
	"context"
	"fmt"

	sdkmath "cosmossdk.io/math"
)

type TransferKind uint8

const (
	// Deposit moves assets from Owner into custody.
	Deposit TransferKind = iota
	// Withdraw pays assets out of custody to Owner.
	Withdraw
)

func (k TransferKind) String() string {
	switch k {
	case Deposit:
		return "deposit"
	case Withdraw:
		return "withdraw"
	default:
		return "unknown"
	}
}

type Transfer struct {
	Kind   TransferKind
	Owner  string
	Asset  string
	Amount sdkmath.Uint
}

// Ledger is the custody collaborator. Execute applies every transfer or
// none of them.
//
// Every successful state change makes exactly one Execute call, after all
// checks passed and before the auction is mutated, even when no asset
// moves. A failed call leaves the auction as it was.
type Ledger interface {
	Execute(ctx context.Context, transfers ...Transfer) error
}

// Directory resolves user handles back to identities.
type Directory interface {
	Identity(id uint64) (string, bool)
}

// Participant is a resolved caller: its handle and the identity the
// ledger knows it by.
type Participant struct {
	ID       uint64
	Identity string
}

// execute drops zero transfers and wraps ledger failures. The ledger is
// called even when nothing is left to move.
func execute(ctx context.Context, l Ledger, transfers ...Transfer) error {
	out := make([]Transfer, 0, len(transfers))
	for _, t := range transfers {
		if t.Amount.IsNil() || t.Amount.IsZero() {
			continue
		}
		out = append(out, t)
	}
	if err := l.Execute(ctx, out...); err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	return nil
}
