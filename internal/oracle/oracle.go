package oracle

import (
	"errors"
	"sync"

	sdkmath "cosmossdk.io/math"
)

var ErrNoPrice = errors.New("oracle has no price")

// Oracle reports an inverse spot price: dividing an asset amount (scaled by
// 1e36) by the returned price yields a valuation in a unit comparable across
// strategies.
type Oracle interface {
	// PeekSpot returns the current inverse spot price for the oracle's feed.
	// The data payload is feed-specific and may be nil.
	PeekSpot(data []byte) (sdkmath.Int, error)
}

// Fixed is an Oracle backed by a manually set price. Used by the paper venue
// and by tests that need to move the price between calls.
type Fixed struct {
	mu    sync.RWMutex
	price sdkmath.Int
}

// NewFixed creates an oracle reporting the given price.
func NewFixed(price sdkmath.Int) *Fixed {
	return &Fixed{price: price}
}

// PeekSpot implements Oracle.
func (f *Fixed) PeekSpot(_ []byte) (sdkmath.Int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.price.IsNil() || !f.price.IsPositive() {
		return sdkmath.ZeroInt(), ErrNoPrice
	}
	return f.price, nil
}

// SetPrice updates the reported price.
func (f *Fixed) SetPrice(price sdkmath.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.price = price
}
