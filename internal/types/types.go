// Package types holds the record shapes shared between the compounding
// engine and the persistence layer.
package types

import (
	"time"
)

// Cycle outcome statuses persisted with each receipt.
const (
	CycleStatusCompleted = "completed"
	CycleStatusFailed    = "failed"
	CycleStatusSkipped   = "skipped"
)

// CycleReceipt summarizes one compounding cycle: what was harvested, what
// liquidity the conversion minted, and how the cycle ended. Amounts are
// stored as decimal strings since they exceed int64 range.
type CycleReceipt struct {
	CycleID     string
	CycleNumber int
	Status      string
	ErrorDetail string

	RewardHarvested string
	LiquidityMinted string
	FeePaid         string
	NetRetained     string
	Forwarded       string

	StartedAt  time.Time
	FinishedAt time.Time
}

// MintRecord is the persisted form of a liquidity-mint accounting event.
type MintRecord struct {
	Strategy    string
	Pair        string
	TotalMinted string
	NetAfterFee string
	FeeAmount   string
	OccurredAt  time.Time
}
