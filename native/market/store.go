package market

import (
	"fmt"
	"math/big"

	"swaylend/core/state"
	"swaylend/core/types"
	"swaylend/crypto"
)

var (
	deploymentIndexKey = []byte("market/deployments")

	configSuffix     = []byte("/config")
	stateSuffix      = []byte("/state")
	collateralIndex  = []byte("/collaterals")
	collateralPrefix = []byte("/collateral/")
	balancePrefix    = []byte("/balance/")
	totalsPrefix     = []byte("/totals/")
	noncePrefix      = []byte("/nonce/")
	marketKeyPrefix  = []byte("market/")
)

func marketKey(id [20]byte, parts ...[]byte) []byte {
	size := len(marketKeyPrefix) + len(id)
	for _, part := range parts {
		size += len(part)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, marketKeyPrefix...)
	buf = append(buf, id[:]...)
	for _, part := range parts {
		buf = append(buf, part...)
	}
	return buf
}

func configKey(id [20]byte) []byte { return marketKey(id, configSuffix) }

func stateKey(id [20]byte) []byte { return marketKey(id, stateSuffix) }

func collateralIndexKey(id [20]byte) []byte { return marketKey(id, collateralIndex) }

func collateralKey(id [20]byte, asset types.Bits256) []byte {
	return marketKey(id, collateralPrefix, asset[:])
}

func balanceKey(id [20]byte, account [20]byte, asset types.Bits256) []byte {
	return marketKey(id, balancePrefix, account[:], asset[:])
}

func totalsKey(id [20]byte, asset types.Bits256) []byte {
	return marketKey(id, totalsPrefix, asset[:])
}

func nonceKey(id [20]byte, account [20]byte) []byte {
	return marketKey(id, noncePrefix, account[:])
}

type storedConfig struct {
	Owner              [20]byte
	Pauser             [20]byte
	BaseAssetID        [32]byte
	BaseAssetDecimals  uint32
	BaseAssetFeedID    [32]byte
	OracleContractID   [20]byte
	BaseAssetAddress   [32]byte
	MaxPriceAgeSeconds uint64
	MaxConfidenceBps   uint64
}

func newStoredConfig(cfg MarketConfig) storedConfig {
	return storedConfig{
		Owner:              cfg.Owner.Array(),
		Pauser:             cfg.Pauser.Array(),
		BaseAssetID:        cfg.BaseAssetID,
		BaseAssetDecimals:  cfg.BaseAssetDecimals,
		BaseAssetFeedID:    cfg.BaseAssetPriceFeedID,
		OracleContractID:   cfg.OracleContractID.Array(),
		BaseAssetAddress:   cfg.BaseAssetAddress,
		MaxPriceAgeSeconds: cfg.MaxPriceAgeSeconds,
		MaxConfidenceBps:   cfg.MaxConfidenceBps,
	}
}

func (s storedConfig) config() MarketConfig {
	return MarketConfig{
		Owner:                crypto.AddressFromArray(crypto.AccountPrefix, s.Owner),
		Pauser:               crypto.AddressFromArray(crypto.AccountPrefix, s.Pauser),
		BaseAssetID:          s.BaseAssetID,
		BaseAssetDecimals:    s.BaseAssetDecimals,
		BaseAssetPriceFeedID: s.BaseAssetFeedID,
		OracleContractID:     crypto.AddressFromArray(crypto.ContractPrefix, s.OracleContractID),
		BaseAssetAddress:     s.BaseAssetAddress,
		MaxPriceAgeSeconds:   s.MaxPriceAgeSeconds,
		MaxConfidenceBps:     s.MaxConfidenceBps,
	}
}

type storedState struct {
	Activated      bool
	OracleSet      bool
	OracleContract [20]byte
	ActivatedAt    uint64
	ConfigDigest   [32]byte
	SupplyPaused   bool
	WithdrawPaused bool
}

type storedCollateral struct {
	AssetID        [32]byte
	PriceFeedID    [32]byte
	Decimals       uint32
	BorrowCFBps    uint64
	LiquidateCFBps uint64
	PenaltyBps     uint64
	SupplyCap      *big.Int
	Paused         bool
}

func newStoredCollateral(cfg CollateralConfig) storedCollateral {
	return storedCollateral{
		AssetID:        cfg.AssetID,
		PriceFeedID:    cfg.PriceFeedID,
		Decimals:       cfg.Decimals,
		BorrowCFBps:    cfg.BorrowCollateralFactorBps,
		LiquidateCFBps: cfg.LiquidateCollateralFactorBps,
		PenaltyBps:     cfg.LiquidationPenaltyBps,
		SupplyCap:      copyBig(cfg.SupplyCap),
		Paused:         cfg.Paused,
	}
}

func (s storedCollateral) config() CollateralConfig {
	return CollateralConfig{
		AssetID:                      s.AssetID,
		PriceFeedID:                  s.PriceFeedID,
		Decimals:                     s.Decimals,
		BorrowCollateralFactorBps:    s.BorrowCFBps,
		LiquidateCollateralFactorBps: s.LiquidateCFBps,
		LiquidationPenaltyBps:        s.PenaltyBps,
		SupplyCap:                    copyBig(s.SupplyCap),
		Paused:                       s.Paused,
	}
}

// store is the typed view of a market's state for one call.
type store struct {
	kv *state.Manager
	id [20]byte
}

func (s *store) config() (MarketConfig, error) {
	var rec storedConfig
	ok, err := s.kv.KVGet(configKey(s.id), &rec)
	if err != nil {
		return MarketConfig{}, err
	}
	if !ok {
		return MarketConfig{}, ErrNotDeployed
	}
	return rec.config(), nil
}

func (s *store) putConfig(cfg MarketConfig) error {
	return s.kv.KVPut(configKey(s.id), newStoredConfig(cfg))
}

func (s *store) state() (storedState, error) {
	var rec storedState
	ok, err := s.kv.KVGet(stateKey(s.id), &rec)
	if err != nil {
		return storedState{}, err
	}
	if !ok {
		return storedState{}, ErrNotDeployed
	}
	return rec, nil
}

func (s *store) putState(rec storedState) error {
	return s.kv.KVPut(stateKey(s.id), rec)
}

func (s *store) collateral(asset types.Bits256) (CollateralConfig, bool, error) {
	var rec storedCollateral
	ok, err := s.kv.KVGet(collateralKey(s.id, asset), &rec)
	if err != nil || !ok {
		return CollateralConfig{}, false, err
	}
	return rec.config(), true, nil
}

func (s *store) putCollateral(cfg CollateralConfig) error {
	return s.kv.KVPut(collateralKey(s.id, cfg.AssetID), newStoredCollateral(cfg))
}

// registerCollateral appends the asset to the ordered index. It reports false
// when the asset is already listed.
func (s *store) registerCollateral(asset types.Bits256) (bool, error) {
	return s.kv.KVAppend(collateralIndexKey(s.id), asset[:])
}

func (s *store) collaterals() ([]CollateralConfig, error) {
	var ids [][]byte
	if err := s.kv.KVGetList(collateralIndexKey(s.id), &ids); err != nil {
		return nil, err
	}
	out := make([]CollateralConfig, 0, len(ids))
	for _, raw := range ids {
		var asset types.Bits256
		if len(raw) != len(asset) {
			return nil, fmt.Errorf("market: corrupt collateral index entry of %d bytes", len(raw))
		}
		copy(asset[:], raw)
		cfg, ok, err := s.collateral(asset)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("market: collateral %s indexed but missing", asset)
		}
		out = append(out, cfg)
	}
	return out, nil
}

func (s *store) balance(account [20]byte, asset types.Bits256) (*big.Int, error) {
	amount := new(big.Int)
	ok, err := s.kv.KVGet(balanceKey(s.id, account, asset), amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

func (s *store) putBalance(account [20]byte, asset types.Bits256, amount *big.Int) error {
	if amount.Sign() == 0 {
		return s.kv.KVDelete(balanceKey(s.id, account, asset))
	}
	return s.kv.KVPut(balanceKey(s.id, account, asset), amount)
}

func (s *store) total(asset types.Bits256) (*big.Int, error) {
	amount := new(big.Int)
	ok, err := s.kv.KVGet(totalsKey(s.id, asset), amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

func (s *store) putTotal(asset types.Bits256, amount *big.Int) error {
	return s.kv.KVPut(totalsKey(s.id, asset), amount)
}

func (s *store) nonce(account [20]byte) (uint64, error) {
	var nonce uint64
	if _, err := s.kv.KVGet(nonceKey(s.id, account), &nonce); err != nil {
		return 0, err
	}
	return nonce, nil
}

func (s *store) putNonce(account [20]byte, nonce uint64) error {
	return s.kv.KVPut(nonceKey(s.id, account), nonce)
}
