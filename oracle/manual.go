package oracle

import (
	"fmt"
	"sync"

	"swaylend/core/types"
)

// ManualOracle serves prices pushed by an operator or a test.
type ManualOracle struct {
	mu     sync.RWMutex
	prices map[types.Bits256]Price
}

func NewManualOracle() *ManualOracle {
	return &ManualOracle{prices: make(map[types.Bits256]Price)}
}

// SetPrice stores the observation for feedID, replacing any previous value.
func (m *ManualOracle) SetPrice(feedID types.Bits256, price Price) {
	m.mu.Lock()
	m.prices[feedID] = price
	m.mu.Unlock()
}

// Remove deletes the observation for feedID.
func (m *ManualOracle) Remove(feedID types.Bits256) {
	m.mu.Lock()
	delete(m.prices, feedID)
	m.mu.Unlock()
}

func (m *ManualOracle) GetPrice(feedID types.Bits256) (Price, error) {
	m.mu.RLock()
	price, ok := m.prices[feedID]
	m.mu.RUnlock()
	if !ok {
		return Price{}, fmt.Errorf("%w: %s", ErrFeedNotFound, feedID)
	}
	return price, nil
}
