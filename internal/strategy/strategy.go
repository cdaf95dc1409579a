/*
Package strategy implements the sub-strategy controller: the orchestration
state machine that stakes liquidity into a reward farm, converts harvested
reward tokens into more liquidity, and hands positions between predecessor and
successor strategies while preserving an oracle-priced valuation.

The controller keeps no bookkeeping table of its own. Every operation reads
and writes the custody ledger directly; the actual balance is the source of
truth for the economic position.
*/
package strategy

import (
	"errors"
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/openyield/farmrouter/internal/bank"
	"github.com/openyield/farmrouter/internal/exchange"
	"github.com/openyield/farmrouter/internal/logger"
	"github.com/openyield/farmrouter/internal/oracle"
	"github.com/openyield/farmrouter/internal/staking"
)

var (
	// ErrUnauthorized is returned when a gated operation is invoked by a
	// caller other than the designated parent strategy or owner.
	ErrUnauthorized = errors.New("caller is not authorized")

	// ErrSlippage is returned when a conversion mints less liquidity than the
	// caller-specified minimum. The operation is rolled back in full.
	ErrSlippage = errors.New("minted amount below minimum")
)

// Valuations are expressed in a 1e36 fixed-point unit so positions priced by
// different oracles remain comparable across strategy transitions.
var valuationScale = sdkmath.NewIntWithDecimal(1, 36)

// Checkpointer captures the full venue state so a failed operation can be
// rolled back without partial effects. Execution environments that already
// provide per-call atomicity may supply a no-op implementation.
type Checkpointer interface {
	Checkpoint() (restore func())
}

// LiquidityMintEvent is the accounting record emitted whenever a conversion
// mints new liquidity.
type LiquidityMintEvent struct {
	Strategy    common.Address
	Pair        common.Address
	TotalMinted sdkmath.Int
	NetAfterFee sdkmath.Int
	FeeAmount   sdkmath.Int
	Timestamp   time.Time
}

// MintRecorder receives liquidity-mint accounting events. May be nil.
type MintRecorder func(LiquidityMintEvent)

// Config holds everything needed to construct a SubStrategy. All identity and
// routing fields are immutable after construction.
type Config struct {
	// Self is the custody address this sub-strategy holds tokens under.
	Self common.Address

	// StrategyTokenIn is the staked liquidity pair.
	StrategyTokenIn common.Address
	// StrategyTokenOut is the liquidity pair accumulated from reward conversion.
	StrategyTokenOut common.Address
	// RewardToken is the token the farming venue pays rewards in.
	RewardToken common.Address
	// UsePairToken0 selects which of the output pair's tokens receives the
	// reward-derived swap.
	UsePairToken0 bool

	// PoolID is the staking-venue pool identifier.
	PoolID uint64

	Custodian      common.Address
	ParentStrategy common.Address
	Owner          common.Address

	// TokenInInfo and TokenOutInfo are the exchange configurations for the
	// input and output pairs respectively.
	TokenInInfo  exchange.RouterInfo
	TokenOutInfo exchange.RouterInfo

	Farm staking.Farm
	// FarmSpender is the venue custody address granted an approval ceiling for
	// staking deposits.
	FarmSpender common.Address

	Oracle oracle.Oracle
	Bank   *bank.Bank
	Router *exchange.Router

	// ApprovalCeiling bounds the allowances granted to the exchange factories
	// and the farming venue at construction.
	ApprovalCeiling sdkmath.Int

	// Checkpointer provides rollback for failed operations. Optional.
	Checkpointer Checkpointer
	// MintRecorder receives mint accounting events. Optional.
	MintRecorder MintRecorder
}

func (c *Config) validate() error {
	if c.StrategyTokenIn == (common.Address{}) {
		return fmt.Errorf("strategy token in cannot be empty")
	}
	if c.StrategyTokenOut == (common.Address{}) {
		return fmt.Errorf("strategy token out cannot be empty")
	}
	if c.RewardToken == (common.Address{}) {
		return fmt.Errorf("reward token cannot be empty")
	}
	if c.Custodian == (common.Address{}) {
		return fmt.Errorf("custodian cannot be empty")
	}
	if c.ParentStrategy == (common.Address{}) {
		return fmt.Errorf("parent strategy cannot be empty")
	}
	if c.TokenInInfo.Venue == nil || c.TokenOutInfo.Venue == nil {
		return fmt.Errorf("both exchange venues are required")
	}
	if c.Farm == nil {
		return fmt.Errorf("farm cannot be nil")
	}
	if c.Oracle == nil {
		return fmt.Errorf("oracle cannot be nil")
	}
	if c.Bank == nil {
		return fmt.Errorf("bank cannot be nil")
	}
	if c.Router == nil {
		return fmt.Errorf("router cannot be nil")
	}
	if c.ApprovalCeiling.IsNil() || !c.ApprovalCeiling.IsPositive() {
		return fmt.Errorf("approval ceiling must be positive")
	}
	return nil
}

// SubStrategy is the aggregate root. All configuration is fixed at
// construction; the only mutable state is the custody ledger it operates on.
type SubStrategy struct {
	// Operations on one instance are mutually exclusive: several of them
	// perform venue calls before finalizing a balance-derived return value.
	mu sync.Mutex

	self             common.Address
	strategyTokenIn  common.Address
	strategyTokenOut common.Address
	rewardToken      common.Address
	pairInputToken   common.Address
	usePairToken0    bool
	poolID           uint64
	custodian        common.Address
	parentStrategy   common.Address
	owner            common.Address
	tokenInInfo      exchange.RouterInfo
	tokenOutInfo     exchange.RouterInfo

	farm    staking.Farm
	oracle  oracle.Oracle
	bank    *bank.Bank
	router  *exchange.Router
	chkpt   Checkpointer
	recMint MintRecorder
	log     zerolog.Logger
}

// NewSubStrategy constructs a sub-strategy, derives the pair-input token from
// the output pair, and grants bounded approvals to the exchange factories and
// the farming venue.
func NewSubStrategy(cfg Config) (*SubStrategy, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("sub-strategy configuration validation failed: %w", err)
	}

	outToken0, err := cfg.TokenOutInfo.Venue.Token0(cfg.StrategyTokenOut)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output pair token0: %w", err)
	}
	outToken1, err := cfg.TokenOutInfo.Venue.Token1(cfg.StrategyTokenOut)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output pair token1: %w", err)
	}

	pairInputToken := outToken1
	if cfg.UsePairToken0 {
		pairInputToken = outToken0
	}

	s := &SubStrategy{
		self:             cfg.Self,
		strategyTokenIn:  cfg.StrategyTokenIn,
		strategyTokenOut: cfg.StrategyTokenOut,
		rewardToken:      cfg.RewardToken,
		pairInputToken:   pairInputToken,
		usePairToken0:    cfg.UsePairToken0,
		poolID:           cfg.PoolID,
		custodian:        cfg.Custodian,
		parentStrategy:   cfg.ParentStrategy,
		owner:            cfg.Owner,
		tokenInInfo:      cfg.TokenInInfo,
		tokenOutInfo:     cfg.TokenOutInfo,
		farm:             cfg.Farm,
		oracle:           cfg.Oracle,
		bank:             cfg.Bank,
		router:           cfg.Router,
		chkpt:            cfg.Checkpointer,
		recMint:          cfg.MintRecorder,
		log:              logger.GetForComponent("sub_strategy"),
	}

	if err := s.grantApprovals(cfg); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("strategyTokenIn", s.strategyTokenIn.Hex()).
		Str("strategyTokenOut", s.strategyTokenOut.Hex()).
		Str("rewardToken", s.rewardToken.Hex()).
		Str("pairInputToken", s.pairInputToken.Hex()).
		Uint64("poolID", s.poolID).
		Msg("Sub-strategy constructed")

	return s, nil
}

// grantApprovals issues the one-time bounded allowances the venues need:
// both input-pair constituents to the input factory, both output-pair
// constituents to the output factory, and the staked pair token to the
// farming venue. Liquidity removal burns directly from the holder, so the
// pair token needs no exchange allowance.
func (s *SubStrategy) grantApprovals(cfg Config) error {
	inToken0, err := cfg.TokenInInfo.Venue.Token0(cfg.StrategyTokenIn)
	if err != nil {
		return fmt.Errorf("failed to resolve input pair token0: %w", err)
	}
	inToken1, err := cfg.TokenInInfo.Venue.Token1(cfg.StrategyTokenIn)
	if err != nil {
		return fmt.Errorf("failed to resolve input pair token1: %w", err)
	}
	outToken0, err := cfg.TokenOutInfo.Venue.Token0(cfg.StrategyTokenOut)
	if err != nil {
		return fmt.Errorf("failed to resolve output pair token0: %w", err)
	}
	outToken1, err := cfg.TokenOutInfo.Venue.Token1(cfg.StrategyTokenOut)
	if err != nil {
		return fmt.Errorf("failed to resolve output pair token1: %w", err)
	}

	ceiling := cfg.ApprovalCeiling
	s.bank.Approve(inToken0, s.self, cfg.TokenInInfo.Factory, ceiling)
	s.bank.Approve(inToken1, s.self, cfg.TokenInInfo.Factory, ceiling)
	s.bank.Approve(outToken0, s.self, cfg.TokenOutInfo.Factory, ceiling)
	s.bank.Approve(outToken1, s.self, cfg.TokenOutInfo.Factory, ceiling)
	s.bank.Approve(s.strategyTokenIn, s.self, cfg.FarmSpender, ceiling)
	return nil
}

// StrategyTokenIn returns the staked liquidity pair address.
func (s *SubStrategy) StrategyTokenIn() common.Address {
	return s.strategyTokenIn
}

// StrategyTokenOut returns the reward-accumulation pair address.
func (s *SubStrategy) StrategyTokenOut() common.Address {
	return s.strategyTokenOut
}

// RewardToken returns the farming venue's reward token address.
func (s *SubStrategy) RewardToken() common.Address {
	return s.rewardToken
}

// PairInputToken returns the output-pair token selected for one-sided entry.
func (s *SubStrategy) PairInputToken() common.Address {
	return s.pairInputToken
}

// Self returns the strategy's custody address.
func (s *SubStrategy) Self() common.Address {
	return s.self
}

// requireParent validates the capability check every privileged operation
// runs before dispatch.
func (s *SubStrategy) requireParent(caller common.Address) error {
	if caller != s.parentStrategy {
		return fmt.Errorf("%w: %s is not the parent strategy", ErrUnauthorized, caller.Hex())
	}
	return nil
}

func (s *SubStrategy) requireOwner(caller common.Address) error {
	if caller != s.owner {
		return fmt.Errorf("%w: %s is not the owner", ErrUnauthorized, caller.Hex())
	}
	return nil
}

// checkpoint returns a restore function for rollback-on-error, or a no-op if
// no checkpointer was supplied.
func (s *SubStrategy) checkpoint() func() {
	if s.chkpt == nil {
		return func() {}
	}
	return s.chkpt.Checkpoint()
}

// emitMint publishes a mint accounting event.
func (s *SubStrategy) emitMint(pair common.Address, total, net, fee sdkmath.Int) {
	if s.recMint == nil {
		return
	}
	s.recMint(LiquidityMintEvent{
		Strategy:    s.self,
		Pair:        pair,
		TotalMinted: total,
		NetAfterFee: net,
		FeeAmount:   fee,
		Timestamp:   time.Now(),
	})
}

// valuation converts a liquidity amount into the 1e36 fixed-point valuation
// unit using the oracle's inverse spot price.
func valuation(amount, price sdkmath.Int) sdkmath.Int {
	if !price.IsPositive() {
		return sdkmath.ZeroInt()
	}
	return amount.Mul(valuationScale).Quo(price)
}
