package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"swaylend/config"
	"swaylend/core/types"
	"swaylend/crypto"
	"swaylend/native/market"
	"swaylend/storage"
	"swaylend/tokens"
)

type deployResult struct {
	Contract    string   `json:"contract"`
	Owner       string   `json:"owner"`
	Salt        string   `json:"salt"`
	Oracle      string   `json:"oracle"`
	Collaterals []string `json:"collaterals"`
}

// randomSalt fills a 32-byte salt from two random UUIDs.
func randomSalt() types.Bits256 {
	var salt types.Bits256
	first, second := uuid.New(), uuid.New()
	copy(salt[:16], first[:])
	copy(salt[16:], second[:])
	return salt
}

func resolveSalt(cfg config.Market) (types.Bits256, error) {
	salt, ok, err := cfg.FixedSalt()
	if err != nil {
		return types.Bits256{}, err
	}
	if ok {
		return salt, nil
	}
	if cfg.RandomSalt {
		return randomSalt(), nil
	}
	return types.Bits256{}, nil
}

func marketConfig(cfg config.Market, owner crypto.Address, registry *tokens.Registry) (market.MarketConfig, error) {
	base, err := registry.Resolve(cfg.BaseSymbol)
	if err != nil {
		return market.MarketConfig{}, fmt.Errorf("resolve base asset: %w", err)
	}
	pauser, err := cfg.Pauser()
	if err != nil {
		return market.MarketConfig{}, err
	}
	if pauser.IsZero() {
		pauser = owner
	}
	oracleID, err := cfg.OracleContract()
	if err != nil {
		return market.MarketConfig{}, err
	}
	baseAddress, err := cfg.BaseAsset()
	if err != nil {
		return market.MarketConfig{}, err
	}
	return market.MarketConfig{
		Owner:                owner,
		Pauser:               pauser,
		BaseAssetID:          base.AssetID,
		BaseAssetDecimals:    base.Decimals,
		BaseAssetPriceFeedID: base.PriceFeedID,
		OracleContractID:     oracleID,
		BaseAssetAddress:     baseAddress,
		MaxPriceAgeSeconds:   cfg.MaxPriceAgeSeconds,
		MaxConfidenceBps:     cfg.MaxConfidenceBps,
	}, nil
}

// deployMarket runs the bootstrap sequence: deploy, point the market at the
// oracle, activate, then register every non-base token as collateral.
func deployMarket(db storage.Database, cfg config.Market, owner crypto.Address, registry *tokens.Registry, logger *slog.Logger) (*deployResult, error) {
	marketCfg, err := marketConfig(cfg, owner, registry)
	if err != nil {
		return nil, err
	}
	if marketCfg.OracleContractID.IsZero() {
		return nil, errors.New("market.OracleAddress must be set to activate the market")
	}
	collaterals, err := registry.CollateralConfigs(cfg.BaseSymbol)
	if err != nil {
		return nil, err
	}
	salt, err := resolveSalt(cfg)
	if err != nil {
		return nil, err
	}

	contract, err := market.Deploy(db, marketCfg, salt, market.WithLogger(logger))
	if err != nil {
		if errors.Is(err, market.ErrAlreadyDeployed) {
			return nil, fmt.Errorf("%w: set market.RandomSalt or a new market.Salt", err)
		}
		return nil, fmt.Errorf("deploy market: %w", err)
	}

	if err := contract.SetPythContractID(owner, marketCfg.OracleContractID); err != nil {
		return nil, fmt.Errorf("set oracle contract: %w", err)
	}
	if err := contract.ActivateContract(owner); err != nil {
		return nil, fmt.Errorf("activate market: %w", err)
	}

	result := &deployResult{
		Contract: contract.ID().String(),
		Owner:    owner.String(),
		Salt:     salt.String(),
		Oracle:   marketCfg.OracleContractID.String(),
	}
	for _, collateral := range collaterals {
		if err := contract.AddCollateralAsset(owner, collateral); err != nil {
			return nil, fmt.Errorf("add collateral %s: %w", collateral.AssetID, err)
		}
		result.Collaterals = append(result.Collaterals, collateral.AssetID.String())
	}
	return result, nil
}
