// Package ledger holds in-process implementations of the custody
// collaborator used by auctions.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	sdkmath "cosmossdk.io/math"

	"batchauction/domain/auction"
)

var (
	ErrInsufficientFunds   = errors.New("ledger: insufficient funds")
	ErrInsufficientCustody = errors.New("ledger: custody balance too low")
	ErrUnknownKind         = errors.New("ledger: unknown transfer kind")
)

// Memory keeps wallet balances per identity and the assets held in
// custody. A batch is validated against a scratch copy of the touched
// balances and applied only when every transfer fits.
//
// In strict mode deposits need a funded wallet (see Credit). Otherwise
// wallets may go negative, which models an outside funding source while
// still checking that custody is never overdrawn.
type Memory struct {
	mu      sync.Mutex
	strict  bool
	wallets map[string]map[string]*big.Int
	custody map[string]*big.Int
}

var _ auction.Ledger = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		wallets: make(map[string]map[string]*big.Int),
		custody: make(map[string]*big.Int),
	}
}

func NewStrictMemory() *Memory {
	m := NewMemory()
	m.strict = true
	return m
}

// Credit funds a wallet from outside the system.
func (m *Memory) Credit(owner, asset string, amount sdkmath.Uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.wallet(owner, asset)
	w.Add(w, amount.BigInt())
}

func (m *Memory) Execute(ctx context.Context, transfers ...auction.Transfer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	wallets := map[[2]string]*big.Int{}
	custody := map[string]*big.Int{}
	walletOf := func(owner, asset string) *big.Int {
		k := [2]string{owner, asset}
		if v, ok := wallets[k]; ok {
			return v
		}
		v := new(big.Int).Set(m.wallet(owner, asset))
		wallets[k] = v
		return v
	}
	custodyOf := func(asset string) *big.Int {
		if v, ok := custody[asset]; ok {
			return v
		}
		v := new(big.Int).Set(m.custodyOf(asset))
		custody[asset] = v
		return v
	}

	for i, t := range transfers {
		amt := t.Amount.BigInt()
		w, c := walletOf(t.Owner, t.Asset), custodyOf(t.Asset)
		switch t.Kind {
		case auction.Deposit:
			if m.strict && w.Cmp(amt) < 0 {
				return fmt.Errorf("transfer %d: %w: %s has %s %s, needs %s", i, ErrInsufficientFunds, t.Owner, w, t.Asset, amt)
			}
			w.Sub(w, amt)
			c.Add(c, amt)
		case auction.Withdraw:
			if c.Cmp(amt) < 0 {
				return fmt.Errorf("transfer %d: %w: %s holds %s, needs %s", i, ErrInsufficientCustody, t.Asset, c, amt)
			}
			c.Sub(c, amt)
			w.Add(w, amt)
		default:
			return fmt.Errorf("transfer %d: %w", i, ErrUnknownKind)
		}
	}

	for k, v := range wallets {
		m.wallet(k[0], k[1]).Set(v)
	}
	for asset, v := range custody {
		m.custodyOf(asset).Set(v)
	}
	return nil
}

// Balance is the wallet balance; it is negative only in non-strict mode.
func (m *Memory) Balance(owner, asset string) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(big.Int).Set(m.wallet(owner, asset))
}

// Custody is what the house holds in asset across all auctions.
func (m *Memory) Custody(asset string) sdkmath.Uint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sdkmath.NewUintFromBigInt(m.custodyOf(asset))
}

// caller holds mu
func (m *Memory) wallet(owner, asset string) *big.Int {
	byAsset, ok := m.wallets[owner]
	if !ok {
		byAsset = make(map[string]*big.Int)
		m.wallets[owner] = byAsset
	}
	v, ok := byAsset[asset]
	if !ok {
		v = new(big.Int)
		byAsset[asset] = v
	}
	return v
}

// caller holds mu
func (m *Memory) custodyOf(asset string) *big.Int {
	v, ok := m.custody[asset]
	if !ok {
		v = new(big.Int)
		m.custody[asset] = v
	}
	return v
}

// Discard accepts every batch and moves nothing. Journal replay runs
// against it because the transfers already happened the first time.
type Discard struct{}

var _ auction.Ledger = Discard{}

func (Discard) Execute(context.Context, ...auction.Transfer) error { return nil }
