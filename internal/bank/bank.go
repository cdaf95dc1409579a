/*
Package bank is the token custody ledger shared by every venue in the system.
There is no separate bookkeeping table anywhere else: the balances held here
are the source of truth for the economic position of each participant, and all
invariants are stated against them.
*/
package bank

import (
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrNegativeAmount        = errors.New("amount is negative")
)

// Bank tracks per-token balances and bounded spending allowances.
type Bank struct {
	mu sync.RWMutex

	// balances[token][holder]
	balances map[common.Address]map[common.Address]sdkmath.Int
	// allowances[owner][spender][token]
	allowances map[common.Address]map[common.Address]map[common.Address]sdkmath.Int
}

// NewBank returns an empty ledger.
func NewBank() *Bank {
	return &Bank{
		balances:   make(map[common.Address]map[common.Address]sdkmath.Int),
		allowances: make(map[common.Address]map[common.Address]map[common.Address]sdkmath.Int),
	}
}

// BalanceOf returns the holder's balance of token. Unknown entries are zero.
func (b *Bank) BalanceOf(token, holder common.Address) sdkmath.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	holders, ok := b.balances[token]
	if !ok {
		return sdkmath.ZeroInt()
	}
	bal, ok := holders[holder]
	if !ok {
		return sdkmath.ZeroInt()
	}
	return bal
}

// Mint credits newly issued tokens to the recipient.
func (b *Bank) Mint(token, to common.Address, amount sdkmath.Int) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	if amount.IsZero() {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.credit(token, to, amount)
	return nil
}

// Burn destroys tokens held by from.
func (b *Bank) Burn(token, from common.Address, amount sdkmath.Int) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	if amount.IsZero() {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.debit(token, from, amount)
}

// Transfer moves tokens between holders. A zero-amount transfer is a no-op
// rather than an error so callers flushing an empty balance do not fail.
func (b *Bank) Transfer(token, from, to common.Address, amount sdkmath.Int) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	if amount.IsZero() {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.debit(token, from, amount); err != nil {
		return err
	}
	b.credit(token, to, amount)
	return nil
}

// Approve grants spender a bounded ceiling for moving owner's tokens.
// Re-approving replaces the previous ceiling.
func (b *Bank) Approve(token, owner, spender common.Address, ceiling sdkmath.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	spenders, ok := b.allowances[owner]
	if !ok {
		spenders = make(map[common.Address]map[common.Address]sdkmath.Int)
		b.allowances[owner] = spenders
	}
	tokens, ok := spenders[spender]
	if !ok {
		tokens = make(map[common.Address]sdkmath.Int)
		spenders[spender] = tokens
	}
	tokens[token] = ceiling
}

// Allowance returns the remaining ceiling spender may move on owner's behalf.
func (b *Bank) Allowance(token, owner, spender common.Address) sdkmath.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if tokens, ok := b.allowances[owner][spender]; ok {
		if remaining, ok := tokens[token]; ok {
			return remaining
		}
	}
	return sdkmath.ZeroInt()
}

// TransferFrom moves tokens from owner to recipient on behalf of spender,
// consuming allowance.
func (b *Bank) TransferFrom(token, spender, from, to common.Address, amount sdkmath.Int) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	if amount.IsZero() {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	tokens, ok := b.allowances[from][spender]
	if !ok {
		return fmt.Errorf("%w: spender %s has no approval from %s", ErrInsufficientAllowance, spender.Hex(), from.Hex())
	}
	remaining, ok := tokens[token]
	if !ok || remaining.LT(amount) {
		return fmt.Errorf("%w: spender %s needs %s of token %s", ErrInsufficientAllowance, spender.Hex(), amount.String(), token.Hex())
	}

	if err := b.debit(token, from, amount); err != nil {
		return err
	}
	b.credit(token, to, amount)
	tokens[token] = remaining.Sub(amount)
	return nil
}

// Clone returns a deep copy of the ledger. Used by the world checkpoint to
// restore custody state when an operation fails partway through.
func (b *Bank) Clone() *Bank {
	b.mu.RLock()
	defer b.mu.RUnlock()

	clone := NewBank()
	for token, holders := range b.balances {
		dst := make(map[common.Address]sdkmath.Int, len(holders))
		for holder, bal := range holders {
			dst[holder] = bal
		}
		clone.balances[token] = dst
	}
	for owner, spenders := range b.allowances {
		dstSpenders := make(map[common.Address]map[common.Address]sdkmath.Int, len(spenders))
		for spender, tokens := range spenders {
			dstTokens := make(map[common.Address]sdkmath.Int, len(tokens))
			for token, remaining := range tokens {
				dstTokens[token] = remaining
			}
			dstSpenders[spender] = dstTokens
		}
		clone.allowances[owner] = dstSpenders
	}
	return clone
}

// Restore replaces this ledger's contents with those of other.
func (b *Bank) Restore(other *Bank) {
	snapshot := other.Clone()

	b.mu.Lock()
	defer b.mu.Unlock()

	b.balances = snapshot.balances
	b.allowances = snapshot.allowances
}

// credit must be called with the write lock held.
func (b *Bank) credit(token, to common.Address, amount sdkmath.Int) {
	holders, ok := b.balances[token]
	if !ok {
		holders = make(map[common.Address]sdkmath.Int)
		b.balances[token] = holders
	}
	current, ok := holders[to]
	if !ok {
		current = sdkmath.ZeroInt()
	}
	holders[to] = current.Add(amount)
}

// debit must be called with the write lock held.
func (b *Bank) debit(token, from common.Address, amount sdkmath.Int) error {
	holders, ok := b.balances[token]
	if !ok {
		return fmt.Errorf("%w: %s holds no token %s", ErrInsufficientBalance, from.Hex(), token.Hex())
	}
	current, ok := holders[from]
	if !ok || current.LT(amount) {
		return fmt.Errorf("%w: %s needs %s of token %s", ErrInsufficientBalance, from.Hex(), amount.String(), token.Hex())
	}
	holders[from] = current.Sub(amount)
	return nil
}
