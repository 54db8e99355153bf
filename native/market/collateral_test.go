package market

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/holiman/uint256"

	"swaylend/core/events"
	"swaylend/core/types"
	"swaylend/crypto"
	"swaylend/oracle"
)

func TestSupplyRequiresActivation(t *testing.T) {
	f := newFixture(t)
	user := makeAddress(crypto.AccountPrefix, 0xC1)
	if err := f.contract.AddCollateralAsset(f.owner, ethCollateral()); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := f.contract.SupplyCollateral(user, ethID, big.NewInt(1)); !errors.Is(err, ErrNotActivated) {
		t.Fatalf("expected ErrNotActivated, got %v", err)
	}
	if err := f.contract.WithdrawCollateral(user, ethID, big.NewInt(1)); !errors.Is(err, ErrNotActivated) {
		t.Fatalf("expected ErrNotActivated, got %v", err)
	}
}

func TestSupplyAndWithdraw(t *testing.T) {
	f := newFixture(t)
	f.activate()
	user := makeAddress(crypto.AccountPrefix, 0xC1)

	if err := f.contract.SupplyCollateral(user, ethID, big.NewInt(2_000_000_000)); err != nil {
		t.Fatalf("supply: %v", err)
	}
	if err := f.contract.WithdrawCollateral(user, ethID, big.NewInt(500_000_000)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	balance, err := f.contract.UserCollateral(user, ethID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(big.NewInt(1_500_000_000)) != 0 {
		t.Fatalf("expected balance 1.5e9, got %s", balance)
	}
	total, err := f.contract.TotalsCollateral(ethID)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if total.Cmp(balance) != 0 {
		t.Fatalf("expected totals %s, got %s", balance, total)
	}

	if err := f.contract.WithdrawCollateral(user, ethID, big.NewInt(1_500_000_001)); !errors.Is(err, ErrInsufficientCollateral) {
		t.Fatalf("expected ErrInsufficientCollateral, got %v", err)
	}
	if err := f.contract.SupplyCollateral(user, ethID, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if err := f.contract.SupplyCollateral(user, ethID, nil); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for nil, got %v", err)
	}
	if err := f.contract.SupplyCollateral(user, bits(0x55), big.NewInt(1)); !errors.Is(err, ErrUnknownAsset) {
		t.Fatalf("expected ErrUnknownAsset, got %v", err)
	}

	var moved []events.CollateralMoved
	for _, evt := range f.recorder.Events() {
		if m, ok := evt.(events.CollateralMoved); ok {
			moved = append(moved, m)
		}
	}
	if len(moved) != 2 {
		t.Fatalf("expected two movement events, got %d", len(moved))
	}
	if moved[0].EventType() != events.TypeCollateralSupplied || moved[1].EventType() != events.TypeCollateralWithdrawn {
		t.Fatalf("unexpected movement kinds %s, %s", moved[0].EventType(), moved[1].EventType())
	}
	if moved[1].Balance.Cmp(big.NewInt(1_500_000_000)) != 0 {
		t.Fatalf("unexpected balance in event %s", moved[1].Balance)
	}
}

func TestSupplyCapAndPauses(t *testing.T) {
	f := newFixture(t)
	f.activate()
	user := makeAddress(crypto.AccountPrefix, 0xC1)

	if err := f.contract.SupplyCollateral(user, btcID, big.NewInt(1_000_000_000)); err != nil {
		t.Fatalf("supply up to cap: %v", err)
	}
	if err := f.contract.SupplyCollateral(user, btcID, big.NewInt(1)); !errors.Is(err, ErrSupplyCapExceeded) {
		t.Fatalf("expected ErrSupplyCapExceeded, got %v", err)
	}

	if err := f.contract.PauseCollateralAsset(f.owner, ethID); err != nil {
		t.Fatalf("pause asset: %v", err)
	}
	if err := f.contract.SupplyCollateral(user, ethID, big.NewInt(1)); !errors.Is(err, ErrAssetPaused) {
		t.Fatalf("expected ErrAssetPaused, got %v", err)
	}

	if err := f.contract.PauseMarket(f.pauser, PauseConfiguration{WithdrawPaused: true}); err != nil {
		t.Fatalf("pause market: %v", err)
	}
	if err := f.contract.WithdrawCollateral(user, btcID, big.NewInt(1)); !errors.Is(err, ErrActionPaused) {
		t.Fatalf("expected ErrActionPaused, got %v", err)
	}
	if err := f.contract.PauseMarket(f.pauser, PauseConfiguration{SupplyPaused: true}); err != nil {
		t.Fatalf("pause supply: %v", err)
	}
	if err := f.contract.WithdrawCollateral(user, btcID, big.NewInt(1)); err != nil {
		t.Fatalf("withdraw after resume: %v", err)
	}
	if err := f.contract.SupplyCollateral(user, btcID, big.NewInt(1)); !errors.Is(err, ErrActionPaused) {
		t.Fatalf("expected ErrActionPaused for supply, got %v", err)
	}
	balance, _ := f.contract.UserCollateral(user, btcID)
	if balance.Cmp(big.NewInt(999_999_999)) != 0 {
		t.Fatalf("expected balance 999999999, got %s", balance)
	}
}

func TestAccountLiquidity(t *testing.T) {
	f := newFixture(t)
	f.activate()
	user := makeAddress(crypto.AccountPrefix, 0xC1)

	// 1 ETH at $2,000 and 0.01 BTC at $60,000.
	if err := f.contract.SupplyCollateral(user, ethID, big.NewInt(1_000_000_000)); err != nil {
		t.Fatalf("supply eth: %v", err)
	}
	if err := f.contract.SupplyCollateral(user, btcID, big.NewInt(1_000_000)); err != nil {
		t.Fatalf("supply btc: %v", err)
	}

	liquidity, err := f.contract.AccountLiquidity(user)
	if err != nil {
		t.Fatalf("liquidity: %v", err)
	}
	wad := func(whole uint64) *uint256.Int {
		return new(uint256.Int).Mul(uint256.NewInt(whole), WAD)
	}
	if !liquidity.CollateralValue.Eq(wad(2_600)) {
		t.Fatalf("expected value 2600 WAD, got %s", liquidity.CollateralValue.Dec())
	}
	// 2000*0.70 + 600*0.60
	if !liquidity.BorrowCapacity.Eq(wad(1_760)) {
		t.Fatalf("expected borrow capacity 1760 WAD, got %s", liquidity.BorrowCapacity.Dec())
	}
	// 2000*0.80 + 600*0.75
	if !liquidity.LiquidationLimit.Eq(wad(2_050)) {
		t.Fatalf("expected liquidation limit 2050 WAD, got %s", liquidity.LiquidationLimit.Dec())
	}

	value, err := f.contract.CollateralValue(user)
	if err != nil {
		t.Fatalf("collateral value: %v", err)
	}
	base, err := f.contract.ConvertToBase(value)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if base.Uint64() != 2_600_000_000 {
		t.Fatalf("expected 2600 USDC in base units, got %s", base.Dec())
	}

	empty, err := f.contract.CollateralValue(makeAddress(crypto.AccountPrefix, 0xC2))
	if err != nil || !empty.IsZero() {
		t.Fatalf("expected zero value for empty account, got %v (%v)", empty, err)
	}
}

func TestValuationFailsOnBadOracleData(t *testing.T) {
	f := newFixture(t)
	f.activate()
	user := makeAddress(crypto.AccountPrefix, 0xC1)
	if err := f.contract.SupplyCollateral(user, ethID, big.NewInt(1_000_000_000)); err != nil {
		t.Fatalf("supply: %v", err)
	}

	f.now = testNow + DefaultMaxPriceAgeSeconds + 1
	if _, err := f.contract.CollateralValue(user); !errors.Is(err, ErrStalePrice) {
		t.Fatalf("expected ErrStalePrice, got %v", err)
	}

	f.now = testNow
	f.prices.SetPrice(ethFeed, oracle.Price{Price: -1, Exponent: -8, PublishTime: testNow})
	if _, err := f.contract.CollateralValue(user); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice, got %v", err)
	}

	f.prices.Remove(ethFeed)
	if _, err := f.contract.Price(ethFeed); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected missing feed to be invalid, got %v", err)
	}

	f.contract.SetOracleResolver(oracle.NewRegistry())
	if _, err := f.contract.Price(usdcFeed); !errors.Is(err, ErrOracleNotConfigured) {
		t.Fatalf("expected ErrOracleNotConfigured, got %v", err)
	}
}

// gatedOracle parks every read until release is closed.
type gatedOracle struct {
	entered chan struct{}
	release chan struct{}
	inner   oracle.PriceOracle
}

func (g *gatedOracle) GetPrice(feedID types.Bits256) (oracle.Price, error) {
	g.entered <- struct{}{}
	<-g.release
	return g.inner.GetPrice(feedID)
}

func TestSlowOracleDoesNotBlockMarket(t *testing.T) {
	f := newFixture(t)
	f.activate()
	user := makeAddress(crypto.AccountPrefix, 0xC1)
	if err := f.contract.SupplyCollateral(user, ethID, big.NewInt(1_000_000_000)); err != nil {
		t.Fatalf("supply: %v", err)
	}
	gated := &gatedOracle{entered: make(chan struct{}, 4), release: make(chan struct{}), inner: f.prices}
	registry := oracle.NewRegistry()
	registry.Register(f.oracleID, gated)
	f.contract.SetOracleResolver(registry)

	result := make(chan error, 1)
	go func() {
		_, err := f.contract.AccountLiquidity(user)
		result <- err
	}()
	select {
	case <-gated.entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("valuation never reached the oracle")
	}

	done := make(chan error, 1)
	go func() {
		done <- f.contract.SupplyCollateral(user, ethID, big.NewInt(1))
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("supply during oracle read: %v", err)
		}
	case <-time.After(2 * time.Second):
		close(gated.release)
		t.Fatalf("supply blocked behind an in-flight oracle read")
	}

	close(gated.release)
	if err := <-result; err != nil {
		t.Fatalf("account liquidity: %v", err)
	}
}

func TestFutureDatedPriceIsStale(t *testing.T) {
	f := newFixture(t)
	f.activate()
	f.prices.SetPrice(ethFeed, oracle.Price{Price: 2_000_00000000, Exponent: -8, PublishTime: testNow + 365*24*3600})
	if _, err := f.contract.Price(ethFeed); !errors.Is(err, ErrStalePrice) {
		t.Fatalf("expected year-ahead price to be stale, got %v", err)
	}
	f.now = testNow + 300*24*3600
	if _, err := f.contract.Price(ethFeed); !errors.Is(err, ErrStalePrice) {
		t.Fatalf("expected price still far ahead to be stale, got %v", err)
	}
	f.now = testNow + 365*24*3600 - DefaultMaxPriceAgeSeconds
	if _, err := f.contract.Price(ethFeed); err != nil {
		t.Fatalf("expected price within the age window to be fresh, got %v", err)
	}
}

func TestPriceRequiresOracle(t *testing.T) {
	f := newFixture(t)
	if _, err := f.contract.Price(usdcFeed); !errors.Is(err, ErrOracleNotConfigured) {
		t.Fatalf("expected ErrOracleNotConfigured, got %v", err)
	}
	if err := f.contract.SetPythContractID(f.owner, f.oracleID); err != nil {
		t.Fatalf("set oracle: %v", err)
	}
	price, err := f.contract.Price(usdcFeed)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	if price.Price != 100_000_000 || price.Exponent != -8 {
		t.Fatalf("unexpected price %+v", price)
	}
}
