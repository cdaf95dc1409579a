// Package sim wires the in-memory venues into a single world whose entire
// state can be checkpointed and restored, giving strategy operations
// all-or-nothing semantics in paper trading and tests.
package sim

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/openyield/farmrouter/internal/bank"
	"github.com/openyield/farmrouter/internal/exchange"
	"github.com/openyield/farmrouter/internal/staking"
)

// World aggregates the custody ledger, the exchange venues, and the farming
// venue backing a paper-trading run.
type World struct {
	Bank      *bank.Bank
	Factories []*exchange.Factory
	Chef      *staking.Chef
}

// NewWorld constructs a world around a fresh ledger.
func NewWorld() *World {
	return &World{Bank: bank.NewBank()}
}

// AddFactory registers an exchange venue and returns it for wiring.
func (w *World) AddFactory(addr common.Address, codeHash common.Hash) *exchange.Factory {
	f := exchange.NewFactory(addr, codeHash, w.Bank)
	w.Factories = append(w.Factories, f)
	return f
}

// SetChef installs the farming venue.
func (w *World) SetChef(addr, rewardToken common.Address) *staking.Chef {
	w.Chef = staking.NewChef(addr, rewardToken, w.Bank)
	return w.Chef
}

// Checkpoint captures the full world state and returns a function restoring
// it. Restore mutates the existing components in place so references held by
// strategies stay valid.
func (w *World) Checkpoint() (restore func()) {
	bankCopy := w.Bank.Clone()

	pairSnaps := make([]map[common.Address]exchange.PairSnapshot, len(w.Factories))
	for i, f := range w.Factories {
		pairSnaps[i] = f.Snapshot()
	}

	var poolSnap map[uint64]staking.PoolSnapshot
	if w.Chef != nil {
		poolSnap = w.Chef.Snapshot()
	}

	return func() {
		w.Bank.Restore(bankCopy)
		for i, f := range w.Factories {
			f.RestoreSnapshot(pairSnaps[i])
		}
		if w.Chef != nil {
			w.Chef.RestoreSnapshot(poolSnap)
		}
	}
}
