package staking

import (
	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

// Farm defines the interface for interacting with an external reward-farming
// venue. It isolates the sub-strategy controller from the venue's exact call
// signature; implementations may be in-memory or remote.
type Farm interface {
	// Deposit stakes the staker's tokens into the given pool. A zero-amount
	// deposit still settles any pending reward, per the venue convention.
	Deposit(poolID uint64, staker common.Address, amount sdkmath.Int) error

	// Withdraw unstakes tokens from the pool back to the staker. A zero-amount
	// withdraw settles pending rewards without touching the stake.
	Withdraw(poolID uint64, staker common.Address, amount sdkmath.Int) error

	// EmergencyWithdraw returns the staker's entire stake, forfeiting any
	// pending reward accounting at the venue.
	EmergencyWithdraw(poolID uint64, staker common.Address) error

	// StakedAmount returns the staker's current stake in the pool.
	StakedAmount(poolID uint64, staker common.Address) (sdkmath.Int, error)
}
