package main

import (
	"bytes"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"swaylend/config"
	"swaylend/core/types"
	"swaylend/crypto"
	"swaylend/native/market"
	"swaylend/storage"
	"swaylend/tokens"
)

func fill(b byte) types.Bits256 {
	var out types.Bits256
	for i := range out {
		out[i] = b
	}
	return out
}

func testRegistry(t *testing.T, tokenContract crypto.Address) *tokens.Registry {
	t.Helper()
	registry, err := tokens.NewRegistry([]tokens.Token{
		{Symbol: "USDC", Decimals: 6, PriceFeedID: fill(0x11)},
		{Symbol: "ETH", Decimals: 9, PriceFeedID: fill(0x12), BorrowCollateralFactorBps: 7000, LiquidateCollateralFactorBps: 8000, LiquidationPenaltyBps: 500},
		{Symbol: "BTC", Decimals: 8, PriceFeedID: fill(0x13), BorrowCollateralFactorBps: 6000, LiquidateCollateralFactorBps: 7500, LiquidationPenaltyBps: 800, SupplyCap: "100000000"},
	}, tokenContract)
	require.NoError(t, err)
	return registry
}

func TestDeployMarketBootstrapsAndRegistersCollateral(t *testing.T) {
	db := storage.NewMemDB()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	owner := crypto.NewAddress(crypto.AccountPrefix, bytes.Repeat([]byte{0xA1}, crypto.AddressLength))
	oracleID := crypto.NewAddress(crypto.ContractPrefix, bytes.Repeat([]byte{0xB1}, crypto.AddressLength))
	tokenContract := crypto.NewAddress(crypto.ContractPrefix, bytes.Repeat([]byte{0xC1}, crypto.AddressLength))
	registry := testRegistry(t, tokenContract)

	cfg := config.Market{BaseSymbol: "usdc", OracleAddress: oracleID.String(), RandomSalt: true}
	result, err := deployMarket(db, cfg, owner, registry, logger)
	require.NoError(t, err)
	require.Len(t, result.Collaterals, 2)

	id, err := crypto.ParseAddress(result.Contract, crypto.ContractPrefix)
	require.NoError(t, err)
	contract, err := market.Load(db, id)
	require.NoError(t, err)

	phase, err := contract.Phase()
	require.NoError(t, err)
	require.Equal(t, market.PhaseActive, phase)

	marketCfg, err := contract.Config()
	require.NoError(t, err)
	require.Equal(t, tokens.DeriveAssetID(tokenContract, "USDC"), marketCfg.BaseAssetID)
	require.Equal(t, uint32(6), marketCfg.BaseAssetDecimals)
	require.True(t, marketCfg.Pauser.Equal(owner))

	collaterals, err := contract.CollateralConfigurations()
	require.NoError(t, err)
	require.Len(t, collaterals, 2)
	require.Equal(t, tokens.DeriveAssetID(tokenContract, "ETH"), collaterals[0].AssetID)
	require.Equal(t, "100000000", collaterals[1].SupplyCap.String())

	// A second random-salt run yields a distinct market.
	again, err := deployMarket(db, cfg, owner, registry, logger)
	require.NoError(t, err)
	require.NotEqual(t, result.Contract, again.Contract)
}

func TestDeployMarketFixedSaltIsNotRepeatable(t *testing.T) {
	db := storage.NewMemDB()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	owner := crypto.NewAddress(crypto.AccountPrefix, bytes.Repeat([]byte{0xA1}, crypto.AddressLength))
	oracleID := crypto.NewAddress(crypto.ContractPrefix, bytes.Repeat([]byte{0xB1}, crypto.AddressLength))
	registry := testRegistry(t, crypto.NewAddress(crypto.ContractPrefix, bytes.Repeat([]byte{0xC1}, crypto.AddressLength)))

	cfg := config.Market{BaseSymbol: "USDC", OracleAddress: oracleID.String(), Salt: fill(0x07).String()}
	first, err := deployMarket(db, cfg, owner, registry, logger)
	require.NoError(t, err)
	require.Equal(t, fill(0x07).String(), first.Salt)

	_, err = deployMarket(db, cfg, owner, registry, logger)
	require.ErrorIs(t, err, market.ErrAlreadyDeployed)
}

func TestDeployMarketRequiresOracleAndBase(t *testing.T) {
	db := storage.NewMemDB()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	owner := crypto.NewAddress(crypto.AccountPrefix, bytes.Repeat([]byte{0xA1}, crypto.AddressLength))
	registry := testRegistry(t, crypto.NewAddress(crypto.ContractPrefix, bytes.Repeat([]byte{0xC1}, crypto.AddressLength)))

	_, err := deployMarket(db, config.Market{BaseSymbol: "USDC"}, owner, registry, logger)
	require.Error(t, err)

	oracleID := crypto.NewAddress(crypto.ContractPrefix, bytes.Repeat([]byte{0xB1}, crypto.AddressLength))
	_, err = deployMarket(db, config.Market{BaseSymbol: "DAI", OracleAddress: oracleID.String()}, owner, registry, logger)
	require.ErrorIs(t, err, tokens.ErrUnknownToken)
	require.Zero(t, db.Len())
}
