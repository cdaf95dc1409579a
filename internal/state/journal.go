/*

This file persists the compounding journal: one receipt per cycle and one row
per liquidity-mint event. The journal is append-only; nothing in the engine
reads it back on the hot path.

*/

package state

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/openyield/farmrouter/internal/types"
)

// SaveCycleReceipt inserts a completed cycle receipt.
func SaveCycleReceipt(r types.CycleReceipt) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	insertSQL := `
		INSERT INTO compound_cycles (
			cycle_id, cycle_number, status, error_detail,
			reward_harvested, liquidity_minted, fee_paid, net_retained, forwarded,
			started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);`

	_, err := DB.Exec(insertSQL,
		r.CycleID, r.CycleNumber, r.Status, r.ErrorDetail,
		r.RewardHarvested, r.LiquidityMinted, r.FeePaid, r.NetRetained, r.Forwarded,
		r.StartedAt, r.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save cycle receipt %s: %w", r.CycleID, err)
	}

	log.Debug().
		Str("cycleID", r.CycleID).
		Int("cycleNumber", r.CycleNumber).
		Str("status", r.Status).
		Msg("Saved cycle receipt")
	return nil
}

// SaveMintEvent inserts a liquidity-mint accounting event.
func SaveMintEvent(m types.MintRecord) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	insertSQL := `
		INSERT INTO lp_mint_events (
			strategy, pair, total_minted, net_after_fee, fee_amount, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6);`

	_, err := DB.Exec(insertSQL,
		m.Strategy, m.Pair, m.TotalMinted, m.NetAfterFee, m.FeeAmount, m.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save mint event for pair %s: %w", m.Pair, err)
	}

	log.Debug().
		Str("pair", m.Pair).
		Str("totalMinted", m.TotalMinted).
		Msg("Saved mint event")
	return nil
}

// LatestCycleReceipts returns the most recent cycle receipts, newest first.
func LatestCycleReceipts(limit int) ([]types.CycleReceipt, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT cycle_id, cycle_number, status, error_detail,
		       reward_harvested, liquidity_minted, fee_paid, net_retained, forwarded,
		       started_at, finished_at
		FROM compound_cycles
		ORDER BY started_at DESC
		LIMIT $1;`

	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query cycle receipts: %w", err)
	}
	defer rows.Close()

	var receipts []types.CycleReceipt
	for rows.Next() {
		var r types.CycleReceipt
		if err := rows.Scan(
			&r.CycleID, &r.CycleNumber, &r.Status, &r.ErrorDetail,
			&r.RewardHarvested, &r.LiquidityMinted, &r.FeePaid, &r.NetRetained, &r.Forwarded,
			&r.StartedAt, &r.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan cycle receipt: %w", err)
		}
		receipts = append(receipts, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cycle receipts: %w", err)
	}

	return receipts, nil
}
