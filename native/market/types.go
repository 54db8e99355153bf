package market

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"swaylend/core/types"
	"swaylend/crypto"
)

const (
	// MaxDecimals bounds the precision of the base asset and every collateral.
	MaxDecimals = 18
	// DefaultMaxPriceAgeSeconds applies when the config leaves the age unset.
	DefaultMaxPriceAgeSeconds = 60

	basisPoints = 10_000
)

// MarketConfig holds the parameters fixed at deploy time. It is never mutated
// after Deploy.
type MarketConfig struct {
	Owner                crypto.Address
	Pauser               crypto.Address
	BaseAssetID          types.Bits256
	BaseAssetDecimals    uint32
	BaseAssetPriceFeedID types.Bits256
	OracleContractID     crypto.Address
	// BaseAssetAddress identifies the reserve asset (e.g. wrapped native
	// token). The zero value is accepted.
	BaseAssetAddress types.Bits256
	// MaxPriceAgeSeconds bounds how old an oracle observation may be.
	MaxPriceAgeSeconds uint64
	// MaxConfidenceBps rejects prices whose confidence band exceeds this share
	// of the price. Zero disables the check.
	MaxConfidenceBps uint64
}

// Validate reports whether the config can back a market.
func (c MarketConfig) Validate() error {
	if c.Owner.IsZero() {
		return fmt.Errorf("%w: owner must not be the zero address", ErrInvalidConfig)
	}
	if c.Pauser.IsZero() {
		return fmt.Errorf("%w: pauser must not be the zero address", ErrInvalidConfig)
	}
	if c.BaseAssetDecimals > MaxDecimals {
		return fmt.Errorf("%w: base asset decimals %d exceed %d", ErrInvalidConfig, c.BaseAssetDecimals, MaxDecimals)
	}
	if c.BaseAssetPriceFeedID.IsZero() {
		return fmt.Errorf("%w: base asset price feed id must be set", ErrInvalidConfig)
	}
	if c.MaxConfidenceBps > basisPoints {
		return fmt.Errorf("%w: confidence band %d bps exceeds 100%%", ErrInvalidConfig, c.MaxConfidenceBps)
	}
	return nil
}

func (c MarketConfig) withDefaults() MarketConfig {
	if c.MaxPriceAgeSeconds == 0 {
		c.MaxPriceAgeSeconds = DefaultMaxPriceAgeSeconds
	}
	return c
}

// CollateralConfig describes a registered collateral asset. Factors and the
// penalty are expressed in basis points; SupplyCap is in the asset's base
// units and zero means uncapped.
type CollateralConfig struct {
	AssetID                      types.Bits256
	PriceFeedID                  types.Bits256
	Decimals                     uint32
	BorrowCollateralFactorBps    uint64
	LiquidateCollateralFactorBps uint64
	LiquidationPenaltyBps        uint64
	SupplyCap                    *big.Int
	Paused                       bool
}

// Validate checks the invariants that do not depend on the registry.
func (c CollateralConfig) Validate() error {
	if c.AssetID.IsZero() {
		return fmt.Errorf("%w: collateral asset id must be set", ErrInvalidConfig)
	}
	if c.PriceFeedID.IsZero() {
		return fmt.Errorf("%w: collateral %s price feed id must be set", ErrInvalidConfig, c.AssetID)
	}
	if c.Decimals > MaxDecimals {
		return fmt.Errorf("%w: collateral %s decimals %d exceed %d", ErrInvalidConfig, c.AssetID, c.Decimals, MaxDecimals)
	}
	if c.LiquidateCollateralFactorBps > basisPoints {
		return fmt.Errorf("%w: liquidate collateral factor %d bps exceeds 100%%", ErrInvalidConfig, c.LiquidateCollateralFactorBps)
	}
	if c.BorrowCollateralFactorBps > c.LiquidateCollateralFactorBps {
		return fmt.Errorf("%w: borrow collateral factor %d bps above liquidate factor %d bps", ErrInvalidConfig, c.BorrowCollateralFactorBps, c.LiquidateCollateralFactorBps)
	}
	if c.LiquidationPenaltyBps > basisPoints {
		return fmt.Errorf("%w: liquidation penalty %d bps exceeds 100%%", ErrInvalidConfig, c.LiquidationPenaltyBps)
	}
	if c.SupplyCap != nil {
		if c.SupplyCap.Sign() < 0 {
			return fmt.Errorf("%w: supply cap must not be negative", ErrInvalidConfig)
		}
		if _, overflow := uint256.FromBig(c.SupplyCap); overflow {
			return fmt.Errorf("%w: supply cap exceeds 256 bits", ErrInvalidConfig)
		}
	}
	return nil
}

// Clone returns a deep copy of the collateral config.
func (c CollateralConfig) Clone() CollateralConfig {
	clone := c
	if c.SupplyCap != nil {
		clone.SupplyCap = new(big.Int).Set(c.SupplyCap)
	}
	return clone
}

// PauseConfiguration exposes the switches the pauser may flip on value flows.
type PauseConfiguration struct {
	SupplyPaused   bool
	WithdrawPaused bool
}

const (
	actionSupply   = "supply"
	actionWithdraw = "withdraw"
)

// IsPaused implements common.PauseView.
func (p PauseConfiguration) IsPaused(action string) bool {
	switch action {
	case actionSupply:
		return p.SupplyPaused
	case actionWithdraw:
		return p.WithdrawPaused
	default:
		return false
	}
}

// MarketState is the mutable lifecycle state of a market.
type MarketState struct {
	IsActivated bool
	// PythContractID is nil until the owner configures the oracle.
	PythContractID *crypto.Address
	// Collaterals is ordered by registration.
	Collaterals  []CollateralConfig
	ActivatedAt  uint64
	ConfigDigest types.Bits256
	Pause        PauseConfiguration
}

// Collateral looks up a registered collateral by asset id.
func (s MarketState) Collateral(assetID types.Bits256) (CollateralConfig, bool) {
	for _, c := range s.Collaterals {
		if c.AssetID == assetID {
			return c, true
		}
	}
	return CollateralConfig{}, false
}

// Phase names the bootstrap stage of a market.
type Phase string

const (
	// PhaseUninitialized is a freshly deployed market with nothing configured.
	PhaseUninitialized Phase = "uninitialized"
	// PhaseConfiguring is a market with an oracle or collaterals but not yet active.
	PhaseConfiguring Phase = "configuring"
	// PhaseActive accepts value operations.
	PhaseActive Phase = "active"
)

// AccountLiquidity summarises the WAD-denominated value of an account's
// collateral and the limits derived from the collateral factors.
type AccountLiquidity struct {
	CollateralValue  *uint256.Int
	BorrowCapacity   *uint256.Int
	LiquidationLimit *uint256.Int
}
