package market

import (
	"math/big"
	"testing"

	"swaylend/core/events"
	"swaylend/core/types"
	"swaylend/crypto"
	"swaylend/oracle"
	"swaylend/storage"
)

const testNow = uint64(1_700_000_000)

var (
	usdcID   = bits(0x01)
	usdcFeed = bits(0x11)
	ethID    = bits(0x02)
	ethFeed  = bits(0x12)
	btcID    = bits(0x03)
	btcFeed  = bits(0x13)
)

func bits(b byte) types.Bits256 {
	var out types.Bits256
	for i := range out {
		out[i] = b
	}
	return out
}

func makeAddress(prefix crypto.AddressPrefix, fill byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	for i := range raw {
		raw[i] = fill
	}
	return crypto.NewAddress(prefix, raw)
}

type fixture struct {
	t        *testing.T
	db       *storage.MemDB
	contract *Contract
	owner    crypto.Address
	pauser   crypto.Address
	oracleID crypto.Address
	prices   *oracle.ManualOracle
	recorder *events.Recorder
	now      uint64
}

func testConfig(owner, pauser crypto.Address) MarketConfig {
	return MarketConfig{
		Owner:                owner,
		Pauser:               pauser,
		BaseAssetID:          usdcID,
		BaseAssetDecimals:    6,
		BaseAssetPriceFeedID: usdcFeed,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:        t,
		db:       storage.NewMemDB(),
		owner:    makeAddress(crypto.AccountPrefix, 0xA1),
		pauser:   makeAddress(crypto.AccountPrefix, 0xA2),
		oracleID: makeAddress(crypto.ContractPrefix, 0xB1),
		prices:   oracle.NewManualOracle(),
		recorder: &events.Recorder{},
		now:      testNow,
	}
	registry := oracle.NewRegistry()
	registry.Register(f.oracleID, f.prices)
	contract, err := Deploy(f.db, testConfig(f.owner, f.pauser), bits(0x99),
		WithOracleResolver(registry),
		WithEmitter(f.recorder),
		WithClock(func() uint64 { return f.now }),
	)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	f.contract = contract
	f.prices.SetPrice(usdcFeed, oracle.Price{Price: 100_000_000, Exponent: -8, PublishTime: testNow})
	f.prices.SetPrice(ethFeed, oracle.Price{Price: 2_000_00000000, Exponent: -8, PublishTime: testNow})
	f.prices.SetPrice(btcFeed, oracle.Price{Price: 60_000_00000000, Exponent: -8, PublishTime: testNow})
	return f
}

func ethCollateral() CollateralConfig {
	return CollateralConfig{
		AssetID:                      ethID,
		PriceFeedID:                  ethFeed,
		Decimals:                     9,
		BorrowCollateralFactorBps:    7_000,
		LiquidateCollateralFactorBps: 8_000,
		LiquidationPenaltyBps:        500,
	}
}

func btcCollateral() CollateralConfig {
	return CollateralConfig{
		AssetID:                      btcID,
		PriceFeedID:                  btcFeed,
		Decimals:                     8,
		BorrowCollateralFactorBps:    6_000,
		LiquidateCollateralFactorBps: 7_500,
		LiquidationPenaltyBps:        800,
		SupplyCap:                    big.NewInt(1_000_000_000),
	}
}

// activate runs the bootstrap sequence with the ETH and BTC collaterals.
func (f *fixture) activate() {
	f.t.Helper()
	if err := f.contract.SetPythContractID(f.owner, f.oracleID); err != nil {
		f.t.Fatalf("set oracle: %v", err)
	}
	if err := f.contract.AddCollateralAsset(f.owner, ethCollateral()); err != nil {
		f.t.Fatalf("add eth: %v", err)
	}
	if err := f.contract.AddCollateralAsset(f.owner, btcCollateral()); err != nil {
		f.t.Fatalf("add btc: %v", err)
	}
	if err := f.contract.ActivateContract(f.owner); err != nil {
		f.t.Fatalf("activate: %v", err)
	}
}

func (f *fixture) state() MarketState {
	f.t.Helper()
	st, err := f.contract.State()
	if err != nil {
		f.t.Fatalf("state: %v", err)
	}
	return st
}
