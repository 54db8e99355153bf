package events

import (
	"math/big"
	"strconv"

	"swaylend/core/types"
	"swaylend/crypto"
)

const (
	// TypeMarketDeployed is emitted once when a market instance is created.
	TypeMarketDeployed = "market.deployed"
	// TypeMarketOracleSet is emitted whenever the owner points the market at an oracle contract.
	TypeMarketOracleSet = "market.oracle_set"
	// TypeMarketActivated is emitted on the one-way activation transition.
	TypeMarketActivated = "market.activated"
	// TypeMarketPaused is emitted when the pause configuration changes.
	TypeMarketPaused = "market.paused"
	// TypeCollateralAdded is emitted when a collateral asset is registered.
	TypeCollateralAdded = "market.collateral_added"
	// TypeCollateralUpdated is emitted when risk parameters of a collateral change.
	TypeCollateralUpdated = "market.collateral_updated"
	// TypeCollateralPaused is emitted when a collateral is paused or resumed.
	TypeCollateralPaused = "market.collateral_paused"
	// TypeCollateralSupplied is emitted when an account supplies collateral.
	TypeCollateralSupplied = "market.collateral_supplied"
	// TypeCollateralWithdrawn is emitted when an account withdraws collateral.
	TypeCollateralWithdrawn = "market.collateral_withdrawn"
)

type MarketDeployed struct {
	Contract    crypto.Address
	Owner       crypto.Address
	BaseAssetID types.Bits256
}

func (MarketDeployed) EventType() string { return TypeMarketDeployed }

func (e MarketDeployed) Event() *types.Event {
	return &types.Event{
		Type: TypeMarketDeployed,
		Attributes: map[string]string{
			"contract":    e.Contract.String(),
			"owner":       e.Owner.String(),
			"baseAssetId": e.BaseAssetID.String(),
		},
	}
}

type MarketOracleSet struct {
	Contract crypto.Address
	Oracle   crypto.Address
}

func (MarketOracleSet) EventType() string { return TypeMarketOracleSet }

func (e MarketOracleSet) Event() *types.Event {
	return &types.Event{
		Type: TypeMarketOracleSet,
		Attributes: map[string]string{
			"contract": e.Contract.String(),
			"oracle":   e.Oracle.String(),
		},
	}
}

type MarketActivated struct {
	Contract     crypto.Address
	ActivatedAt  uint64
	ConfigDigest types.Bits256
	Collaterals  int
}

func (MarketActivated) EventType() string { return TypeMarketActivated }

func (e MarketActivated) Event() *types.Event {
	return &types.Event{
		Type: TypeMarketActivated,
		Attributes: map[string]string{
			"contract":     e.Contract.String(),
			"activatedAt":  strconv.FormatUint(e.ActivatedAt, 10),
			"configDigest": e.ConfigDigest.String(),
			"collaterals":  strconv.Itoa(e.Collaterals),
		},
	}
}

type MarketPaused struct {
	Contract       crypto.Address
	Caller         crypto.Address
	SupplyPaused   bool
	WithdrawPaused bool
}

func (MarketPaused) EventType() string { return TypeMarketPaused }

func (e MarketPaused) Event() *types.Event {
	return &types.Event{
		Type: TypeMarketPaused,
		Attributes: map[string]string{
			"contract":       e.Contract.String(),
			"caller":         e.Caller.String(),
			"supplyPaused":   strconv.FormatBool(e.SupplyPaused),
			"withdrawPaused": strconv.FormatBool(e.WithdrawPaused),
		},
	}
}

type CollateralAdded struct {
	Contract    crypto.Address
	AssetID     types.Bits256
	PriceFeedID types.Bits256
	Decimals    uint32
}

func (CollateralAdded) EventType() string { return TypeCollateralAdded }

func (e CollateralAdded) Event() *types.Event {
	return &types.Event{
		Type: TypeCollateralAdded,
		Attributes: map[string]string{
			"contract":    e.Contract.String(),
			"assetId":     e.AssetID.String(),
			"priceFeedId": e.PriceFeedID.String(),
			"decimals":    strconv.FormatUint(uint64(e.Decimals), 10),
		},
	}
}

type CollateralUpdated struct {
	Contract crypto.Address
	AssetID  types.Bits256
}

func (CollateralUpdated) EventType() string { return TypeCollateralUpdated }

func (e CollateralUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeCollateralUpdated,
		Attributes: map[string]string{
			"contract": e.Contract.String(),
			"assetId":  e.AssetID.String(),
		},
	}
}

type CollateralPaused struct {
	Contract crypto.Address
	AssetID  types.Bits256
	Paused   bool
}

func (CollateralPaused) EventType() string { return TypeCollateralPaused }

func (e CollateralPaused) Event() *types.Event {
	return &types.Event{
		Type: TypeCollateralPaused,
		Attributes: map[string]string{
			"contract": e.Contract.String(),
			"assetId":  e.AssetID.String(),
			"paused":   strconv.FormatBool(e.Paused),
		},
	}
}

// CollateralMoved covers both supply and withdrawal; Kind selects the type.
type CollateralMoved struct {
	Kind     string
	Contract crypto.Address
	Account  crypto.Address
	AssetID  types.Bits256
	Amount   *big.Int
	Balance  *big.Int
}

func (e CollateralMoved) EventType() string { return e.Kind }

func (e CollateralMoved) Event() *types.Event {
	return &types.Event{
		Type: e.Kind,
		Attributes: map[string]string{
			"contract": e.Contract.String(),
			"account":  e.Account.String(),
			"assetId":  e.AssetID.String(),
			"amount":   bigString(e.Amount),
			"balance":  bigString(e.Balance),
		},
	}
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
