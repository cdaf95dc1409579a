package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openyield/farmrouter/internal/bank"
	"github.com/openyield/farmrouter/internal/logger"
	"github.com/openyield/farmrouter/internal/strategy"
	"github.com/openyield/farmrouter/internal/types"
)

// Journal persists cycle receipts and mint events. A no-op implementation is
// used when the router runs without a database.
type Journal interface {
	NextCycleNumber() (int, error)
	SaveCycle(types.CycleReceipt) error
	SaveMint(types.MintRecord) error
}

// NopJournal discards everything.
type NopJournal struct {
	cycle int
}

func (n *NopJournal) NextCycleNumber() (int, error) {
	n.cycle++
	return n.cycle, nil
}

func (n *NopJournal) SaveCycle(types.CycleReceipt) error { return nil }
func (n *NopJournal) SaveMint(types.MintRecord) error    { return nil }

// Engine drives the periodic compounding cycle: settle rewards, convert them
// into liquidity, forward the net liquidity to the custodian, and stake any
// fresh capital the custodian has sent down.
type Engine struct {
	logger   zerolog.Logger
	strategy *strategy.SubStrategy
	bank     *bank.Bank
	journal  Journal

	parent          common.Address
	feePercent      uint64
	feeTo           common.Address
	minLiquidityOut sdkmath.Int

	// lastMint holds the most recent mint event so the cycle receipt can carry
	// the total and fee the conversion actually produced.
	mintMu   sync.Mutex
	lastMint *types.MintRecord
}

// Config holds the configuration for creating a new Engine instance
type Config struct {
	Strategy *strategy.SubStrategy
	Bank     *bank.Bank
	Journal  Journal

	// Parent is the address the engine acts as when invoking gated strategy
	// operations.
	Parent common.Address

	FeePercent      uint64
	FeeTo           common.Address
	MinLiquidityOut sdkmath.Int
}

// NewEngine creates a new Engine instance with dependency injection
func NewEngine(cfg Config) (*Engine, error) {
	if err := validateEngineConfig(cfg); err != nil {
		return nil, fmt.Errorf("engine configuration validation failed: %w", err)
	}

	e := &Engine{
		logger:          logger.GetForComponent("engine"),
		strategy:        cfg.Strategy,
		bank:            cfg.Bank,
		journal:         cfg.Journal,
		parent:          cfg.Parent,
		feePercent:      cfg.FeePercent,
		feeTo:           cfg.FeeTo,
		minLiquidityOut: cfg.MinLiquidityOut,
	}

	e.logger.Info().
		Uint64("feePercent", e.feePercent).
		Str("minLiquidityOut", e.minLiquidityOut.String()).
		Msg("Engine instance created successfully with dependency injection")

	return e, nil
}

func validateEngineConfig(cfg Config) error {
	if cfg.Strategy == nil {
		return fmt.Errorf("strategy cannot be nil")
	}
	if cfg.Bank == nil {
		return fmt.Errorf("bank cannot be nil")
	}
	if cfg.Journal == nil {
		return fmt.Errorf("journal cannot be nil")
	}
	if cfg.Parent == (common.Address{}) {
		return fmt.Errorf("parent address cannot be empty")
	}
	if cfg.FeePercent > 100 {
		return fmt.Errorf("fee percent must be between 0 and 100")
	}
	if cfg.MinLiquidityOut.IsNil() || cfg.MinLiquidityOut.IsNegative() {
		return fmt.Errorf("minimum liquidity out must be non-negative")
	}
	return nil
}

// RunLoop starts the main compounding loop with the specified interval
func (e *Engine) RunLoop(ctx context.Context, interval time.Duration) {
	e.logger.Info().
		Dur("interval", interval).
		Msg("Starting compounding loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run first cycle immediately
	e.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info().Msg("Compounding loop stopped due to context cancellation")
			return
		case <-ticker.C:
			e.RunCycle(ctx)
		}
	}
}

// RunCycle executes one complete compounding cycle. Failures abort the cycle
// and are recorded in the journal; the strategy's rollback guarantees mean an
// aborted cycle leaves no partial effects.
func (e *Engine) RunCycle(ctx context.Context) {
	cycleStartTime := time.Now()

	// Unique cycle ID for tracing logs across the entire cycle
	cycleID := uuid.New().String()
	cycleLogger := e.logger.With().Str("cycle_id", cycleID).Logger()

	cycleLogger.Info().Msg("--- Starting Compounding Cycle ---")

	cycleNumber, err := e.journal.NextCycleNumber()
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Cycle aborted: Failed to advance cycle counter.")
		return
	}

	receipt := types.CycleReceipt{
		CycleID:         cycleID,
		CycleNumber:     cycleNumber,
		Status:          types.CycleStatusCompleted,
		RewardHarvested: "0",
		LiquidityMinted: "0",
		FeePaid:         "0",
		NetRetained:     "0",
		Forwarded:       "0",
		StartedAt:       cycleStartTime,
	}

	// Mint events recorded outside a cycle, such as the bootstrap wrap, must
	// not leak into this receipt.
	e.takeLastMint()

	// Step 1: settle pending rewards and forward previously retained liquidity.
	cycleLogger.Info().Msg("Step 1: Settling rewards...")
	carried, err := e.strategy.Harvest(e.parent)
	if err != nil {
		e.finishCycle(cycleLogger, &receipt, fmt.Errorf("reward settlement failed: %w", err))
		return
	}

	receipt.RewardHarvested = e.rewardBalance().String()
	cycleLogger.Info().
		Str("carriedForward", carried.String()).
		Str("rewardBalance", receipt.RewardHarvested).
		Msg("Step 1: Rewards settled.")

	// Step 2: convert the reward balance into output pair liquidity.
	cycleLogger.Info().Msg("Step 2: Converting rewards into liquidity...")
	net, err := e.strategy.SwapToLP(e.parent, e.minLiquidityOut, e.feePercent, e.feeTo)
	if err != nil {
		if errors.Is(err, strategy.ErrSlippage) {
			// The conversion rolled back cleanly; rewards stay banked for the
			// next cycle.
			receipt.Status = types.CycleStatusSkipped
			receipt.ErrorDetail = err.Error()
			receipt.FinishedAt = time.Now()
			cycleLogger.Warn().Err(err).Msg("Conversion skipped: minted liquidity below minimum.")
			e.saveReceipt(cycleLogger, receipt)
			return
		}
		e.finishCycle(cycleLogger, &receipt, fmt.Errorf("conversion failed: %w", err))
		return
	}
	receipt.NetRetained = net.String()
	if mint := e.takeLastMint(); mint != nil {
		receipt.LiquidityMinted = mint.TotalMinted
		receipt.FeePaid = mint.FeeAmount
	}
	cycleLogger.Info().Str("net", net.String()).Msg("Step 2: Conversion complete.")

	// Step 3: forward the freshly minted liquidity to the custodian.
	cycleLogger.Info().Msg("Step 3: Forwarding minted liquidity...")
	forwarded, err := e.strategy.Harvest(e.parent)
	if err != nil {
		e.finishCycle(cycleLogger, &receipt, fmt.Errorf("forwarding failed: %w", err))
		return
	}
	receipt.Forwarded = forwarded.String()
	cycleLogger.Info().Str("forwarded", forwarded.String()).Msg("Step 3: Forwarding complete.")

	// Step 4: stake any fresh input pair capital sent down since last cycle.
	fresh := e.bank.BalanceOf(e.strategy.StrategyTokenIn(), e.strategy.Self())
	if fresh.IsPositive() {
		cycleLogger.Info().Str("fresh", fresh.String()).Msg("Step 4: Staking fresh capital...")
		if err := e.strategy.Skim(e.parent, fresh); err != nil {
			e.finishCycle(cycleLogger, &receipt, fmt.Errorf("staking fresh capital failed: %w", err))
			return
		}
	}

	receipt.FinishedAt = time.Now()
	e.saveReceipt(cycleLogger, receipt)

	cycleLogger.Info().
		Int("cycleNumber", cycleNumber).
		Dur("elapsed", time.Since(cycleStartTime)).
		Msg("--- Compounding Cycle Complete ---")
}

// RecordMint adapts the journal into a strategy mint recorder.
func (e *Engine) RecordMint(ev strategy.LiquidityMintEvent) {
	record := types.MintRecord{
		Strategy:    ev.Strategy.Hex(),
		Pair:        ev.Pair.Hex(),
		TotalMinted: ev.TotalMinted.String(),
		NetAfterFee: ev.NetAfterFee.String(),
		FeeAmount:   ev.FeeAmount.String(),
		OccurredAt:  ev.Timestamp,
	}
	e.mintMu.Lock()
	e.lastMint = &record
	e.mintMu.Unlock()

	if err := e.journal.SaveMint(record); err != nil {
		e.logger.Error().Err(err).Msg("Failed to persist mint event")
	}
}

// takeLastMint returns and clears the most recently recorded mint event.
func (e *Engine) takeLastMint() *types.MintRecord {
	e.mintMu.Lock()
	defer e.mintMu.Unlock()

	mint := e.lastMint
	e.lastMint = nil
	return mint
}

// rewardBalance reads the strategy's current reward token balance.
func (e *Engine) rewardBalance() sdkmath.Int {
	return e.bank.BalanceOf(e.strategy.RewardToken(), e.strategy.Self())
}

func (e *Engine) finishCycle(cycleLogger zerolog.Logger, receipt *types.CycleReceipt, err error) {
	receipt.Status = types.CycleStatusFailed
	receipt.ErrorDetail = err.Error()
	receipt.FinishedAt = time.Now()
	cycleLogger.Error().Err(err).Msg("Cycle aborted.")
	e.saveReceipt(cycleLogger, *receipt)
}

func (e *Engine) saveReceipt(cycleLogger zerolog.Logger, receipt types.CycleReceipt) {
	if err := e.journal.SaveCycle(receipt); err != nil {
		cycleLogger.Error().Err(err).Msg("Failed to persist cycle receipt")
	}
}
