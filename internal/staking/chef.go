package staking

import (
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/openyield/farmrouter/internal/bank"
	"github.com/openyield/farmrouter/internal/logger"
)

var (
	ErrPoolNotFound      = errors.New("staking pool not found")
	ErrPoolExists        = errors.New("staking pool already exists")
	ErrInsufficientStake = errors.New("insufficient staked amount")
)

// poolState tracks stakes and pending rewards for one pool.
type poolState struct {
	stakeToken common.Address
	stakes     map[common.Address]sdkmath.Int
	pending    map[common.Address]sdkmath.Int
}

// Chef is an in-memory reward farm. Staked tokens move into the chef's own
// custody address; pending rewards are settled in the reward token on every
// deposit or withdraw, so a zero-amount withdraw acts as a pure harvest.
type Chef struct {
	mu sync.Mutex

	addr        common.Address
	rewardToken common.Address
	bank        *bank.Bank
	pools       map[uint64]*poolState
	log         zerolog.Logger
}

// NewChef creates an empty farm bound to the given custody ledger.
func NewChef(addr, rewardToken common.Address, ledger *bank.Bank) *Chef {
	return &Chef{
		addr:        addr,
		rewardToken: rewardToken,
		bank:        ledger,
		pools:       make(map[uint64]*poolState),
		log:         logger.GetForComponent("staking_chef"),
	}
}

// Address returns the chef's custody address.
func (c *Chef) Address() common.Address {
	return c.addr
}

// RewardToken returns the token rewards are paid in.
func (c *Chef) RewardToken() common.Address {
	return c.rewardToken
}

// AddPool registers a new pool staking the given token.
func (c *Chef) AddPool(poolID uint64, stakeToken common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.pools[poolID]; exists {
		return fmt.Errorf("%w: %d", ErrPoolExists, poolID)
	}
	c.pools[poolID] = &poolState{
		stakeToken: stakeToken,
		stakes:     make(map[common.Address]sdkmath.Int),
		pending:    make(map[common.Address]sdkmath.Int),
	}
	return nil
}

// Accrue credits pending reward to a staker. In a live venue this is driven by
// block emission; here the simulation or test harness drives it directly.
func (c *Chef) Accrue(poolID uint64, staker common.Address, amount sdkmath.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pools[poolID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrPoolNotFound, poolID)
	}
	current, ok := p.pending[staker]
	if !ok {
		current = sdkmath.ZeroInt()
	}
	p.pending[staker] = current.Add(amount)
	return nil
}

// Deposit implements Farm.
func (c *Chef) Deposit(poolID uint64, staker common.Address, amount sdkmath.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pools[poolID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrPoolNotFound, poolID)
	}

	if err := c.settlePending(p, staker); err != nil {
		return err
	}

	if amount.IsPositive() {
		if err := c.bank.TransferFrom(p.stakeToken, c.addr, staker, c.addr, amount); err != nil {
			return fmt.Errorf("stake deposit failed: %w", err)
		}
		p.stakes[staker] = c.stakeOf(p, staker).Add(amount)
	}

	c.log.Debug().
		Uint64("poolID", poolID).
		Str("staker", staker.Hex()).
		Str("amount", amount.String()).
		Msg("Deposit settled")

	return nil
}

// Withdraw implements Farm.
func (c *Chef) Withdraw(poolID uint64, staker common.Address, amount sdkmath.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pools[poolID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrPoolNotFound, poolID)
	}

	staked := c.stakeOf(p, staker)
	if amount.GT(staked) {
		return fmt.Errorf("%w: have %s, want %s", ErrInsufficientStake, staked.String(), amount.String())
	}

	if err := c.settlePending(p, staker); err != nil {
		return err
	}

	if amount.IsPositive() {
		if err := c.bank.Transfer(p.stakeToken, c.addr, staker, amount); err != nil {
			return fmt.Errorf("stake withdrawal failed: %w", err)
		}
		p.stakes[staker] = staked.Sub(amount)
	}

	c.log.Debug().
		Uint64("poolID", poolID).
		Str("staker", staker.Hex()).
		Str("amount", amount.String()).
		Msg("Withdraw settled")

	return nil
}

// EmergencyWithdraw implements Farm. The entire stake is returned and any
// pending reward is forfeited.
func (c *Chef) EmergencyWithdraw(poolID uint64, staker common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pools[poolID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrPoolNotFound, poolID)
	}

	staked := c.stakeOf(p, staker)
	if staked.IsPositive() {
		if err := c.bank.Transfer(p.stakeToken, c.addr, staker, staked); err != nil {
			return fmt.Errorf("emergency withdrawal failed: %w", err)
		}
	}

	p.stakes[staker] = sdkmath.ZeroInt()
	p.pending[staker] = sdkmath.ZeroInt()

	c.log.Warn().
		Uint64("poolID", poolID).
		Str("staker", staker.Hex()).
		Str("returned", staked.String()).
		Msg("Emergency withdrawal executed, pending rewards forfeited")

	return nil
}

// StakedAmount implements Farm.
func (c *Chef) StakedAmount(poolID uint64, staker common.Address) (sdkmath.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pools[poolID]
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %d", ErrPoolNotFound, poolID)
	}
	return c.stakeOf(p, staker), nil
}

// PendingReward returns the staker's unsettled reward balance.
func (c *Chef) PendingReward(poolID uint64, staker common.Address) (sdkmath.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pools[poolID]
	if !ok {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %d", ErrPoolNotFound, poolID)
	}
	pending, ok := p.pending[staker]
	if !ok {
		return sdkmath.ZeroInt(), nil
	}
	return pending, nil
}

// settlePending pays out accrued rewards in the reward token. Must be called
// with the lock held.
func (c *Chef) settlePending(p *poolState, staker common.Address) error {
	pending, ok := p.pending[staker]
	if !ok || !pending.IsPositive() {
		return nil
	}
	if err := c.bank.Mint(c.rewardToken, staker, pending); err != nil {
		return fmt.Errorf("reward payout failed: %w", err)
	}
	p.pending[staker] = sdkmath.ZeroInt()
	return nil
}

func (c *Chef) stakeOf(p *poolState, staker common.Address) sdkmath.Int {
	staked, ok := p.stakes[staker]
	if !ok {
		return sdkmath.ZeroInt()
	}
	return staked
}

// PoolSnapshot is an immutable copy of one pool's state.
type PoolSnapshot struct {
	StakeToken common.Address
	Stakes     map[common.Address]sdkmath.Int
	Pending    map[common.Address]sdkmath.Int
}

// Snapshot returns a deep copy of all pool states keyed by pool ID.
func (c *Chef) Snapshot() map[uint64]PoolSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := make(map[uint64]PoolSnapshot, len(c.pools))
	for id, p := range c.pools {
		stakes := make(map[common.Address]sdkmath.Int, len(p.stakes))
		for staker, amt := range p.stakes {
			stakes[staker] = amt
		}
		pending := make(map[common.Address]sdkmath.Int, len(p.pending))
		for staker, amt := range p.pending {
			pending[staker] = amt
		}
		snap[id] = PoolSnapshot{StakeToken: p.stakeToken, Stakes: stakes, Pending: pending}
	}
	return snap
}

// RestoreSnapshot replaces all pool states with a previously taken snapshot.
func (c *Chef) RestoreSnapshot(snap map[uint64]PoolSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pools = make(map[uint64]*poolState, len(snap))
	for id, s := range snap {
		stakes := make(map[common.Address]sdkmath.Int, len(s.Stakes))
		for staker, amt := range s.Stakes {
			stakes[staker] = amt
		}
		pending := make(map[common.Address]sdkmath.Int, len(s.Pending))
		for staker, amt := range s.Pending {
			pending[staker] = amt
		}
		c.pools[id] = &poolState{stakeToken: s.StakeToken, stakes: stakes, pending: pending}
	}
}
