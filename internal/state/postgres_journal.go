package state

import (
	"github.com/openyield/farmrouter/internal/types"
)

// PostgresJournal adapts the package-level persistence functions to the
// engine's journal interface.
type PostgresJournal struct{}

func (PostgresJournal) NextCycleNumber() (int, error) {
	return IncrementCycleNumber()
}

func (PostgresJournal) SaveCycle(r types.CycleReceipt) error {
	return SaveCycleReceipt(r)
}

func (PostgresJournal) SaveMint(m types.MintRecord) error {
	return SaveMintEvent(m)
}
