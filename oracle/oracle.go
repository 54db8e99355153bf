package oracle

import (
	"errors"
	"fmt"
	"sync"

	"swaylend/core/types"
	"swaylend/crypto"
)

var (
	// ErrFeedNotFound indicates the oracle holds no price for the feed id.
	ErrFeedNotFound = errors.New("oracle: price feed not found")
	// ErrOracleNotRegistered indicates no oracle is reachable at the contract id.
	ErrOracleNotRegistered = errors.New("oracle: no oracle registered for contract")
)

// Price is a Pyth-style price observation: the value is Price * 10^Exponent,
// Confidence is expressed in the same units as Price and PublishTime is a unix
// timestamp in seconds.
type Price struct {
	Price       int64
	Exponent    int32
	Confidence  uint64
	PublishTime uint64
}

// PriceOracle resolves the latest price for a feed identifier.
type PriceOracle interface {
	GetPrice(feedID types.Bits256) (Price, error)
}

// Resolver models the cross-contract call from the market to the oracle
// contract stored in its state.
type Resolver interface {
	Resolve(contract crypto.Address) (PriceOracle, error)
}

// Registry maps oracle contract ids to their client implementations.
type Registry struct {
	mu      sync.RWMutex
	oracles map[[crypto.AddressLength]byte]PriceOracle
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{oracles: make(map[[crypto.AddressLength]byte]PriceOracle)}
}

// Register adds or replaces the oracle reachable at contract.
func (r *Registry) Register(contract crypto.Address, oracle PriceOracle) {
	if r == nil || oracle == nil || contract.IsZero() {
		return
	}
	r.mu.Lock()
	r.oracles[contract.Array()] = oracle
	r.mu.Unlock()
}

// Resolve implements Resolver.
func (r *Registry) Resolve(contract crypto.Address) (PriceOracle, error) {
	if r == nil {
		return nil, ErrOracleNotRegistered
	}
	r.mu.RLock()
	oracle, ok := r.oracles[contract.Array()]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOracleNotRegistered, contract.String())
	}
	return oracle, nil
}

// Static resolves every contract id to the same oracle.
type Static struct {
	Oracle PriceOracle
}

// Resolve implements Resolver.
func (s Static) Resolve(crypto.Address) (PriceOracle, error) {
	if s.Oracle == nil {
		return nil, ErrOracleNotRegistered
	}
	return s.Oracle, nil
}
