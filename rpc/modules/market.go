package modules

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/holiman/uint256"

	"swaylend/core/types"
	"swaylend/crypto"
	"swaylend/native/market"
)

// Call methods accepted by MarketModule.Execute.
const (
	CallSetPythContractID     = "setPythContractId"
	CallAddCollateralAsset    = "addCollateralAsset"
	CallUpdateCollateralAsset = "updateCollateralAsset"
	CallPauseCollateralAsset  = "pauseCollateralAsset"
	CallResumeCollateralAsset = "resumeCollateralAsset"
	CallActivateContract      = "activateContract"
	CallPauseMarket           = "pauseMarket"
	CallSupplyCollateral      = "supplyCollateral"
	CallWithdrawCollateral    = "withdrawCollateral"
)

type MarketModule struct {
	markets *market.Directory
	chainID uint64
}

// NewMarketModule serves markets and accepts signed calls for chainID only.
func NewMarketModule(markets *market.Directory, chainID uint64) *MarketModule {
	return &MarketModule{markets: markets, chainID: chainID}
}

// ChainID returns the network id signed calls must carry.
func (m *MarketModule) ChainID() uint64 {
	if m == nil {
		return 0
	}
	return m.chainID
}

type MarketConfigResult struct {
	Contract             string `json:"contract"`
	Owner                string `json:"owner"`
	Pauser               string `json:"pauser"`
	BaseAssetID          string `json:"baseAssetId"`
	BaseAssetDecimals    uint32 `json:"baseAssetDecimals"`
	BaseAssetPriceFeedID string `json:"baseAssetPriceFeedId"`
	OracleContractID     string `json:"oracleContractId,omitempty"`
	BaseAssetAddress     string `json:"baseAssetAddress"`
	MaxPriceAgeSeconds   uint64 `json:"maxPriceAgeSeconds"`
	MaxConfidenceBps     uint64 `json:"maxConfidenceBps"`
}

type CollateralResult struct {
	AssetID                      string `json:"assetId"`
	PriceFeedID                  string `json:"priceFeedId"`
	Decimals                     uint32 `json:"decimals"`
	BorrowCollateralFactorBps    uint64 `json:"borrowCollateralFactorBps"`
	LiquidateCollateralFactorBps uint64 `json:"liquidateCollateralFactorBps"`
	LiquidationPenaltyBps        uint64 `json:"liquidationPenaltyBps"`
	SupplyCap                    string `json:"supplyCap"`
	Paused                       bool   `json:"paused"`
}

type MarketStateResult struct {
	Contract       string             `json:"contract"`
	Phase          string             `json:"phase"`
	IsActivated    bool               `json:"isActivated"`
	PythContractID string             `json:"pythContractId,omitempty"`
	ActivatedAt    uint64             `json:"activatedAt,omitempty"`
	ConfigDigest   string             `json:"configDigest,omitempty"`
	SupplyPaused   bool               `json:"supplyPaused"`
	WithdrawPaused bool               `json:"withdrawPaused"`
	Collaterals    []CollateralResult `json:"collaterals"`
}

type LiquidityResult struct {
	Account          string `json:"account"`
	CollateralValue  string `json:"collateralValue"`
	BorrowCapacity   string `json:"borrowCapacity"`
	LiquidationLimit string `json:"liquidationLimit"`
}

type PriceResult struct {
	FeedID      string `json:"feedId"`
	Price       int64  `json:"price"`
	Exponent    int32  `json:"exponent"`
	Confidence  uint64 `json:"confidence"`
	PublishTime uint64 `json:"publishTime"`
}

type CallResult struct {
	Contract string `json:"contract"`
	Method   string `json:"method"`
	Caller   string `json:"caller"`
	Nonce    uint64 `json:"nonce"`
}

// CollateralParams is the JSON form of a collateral registration or update.
type CollateralParams struct {
	AssetID                      string `json:"assetId"`
	PriceFeedID                  string `json:"priceFeedId"`
	Decimals                     uint32 `json:"decimals"`
	BorrowCollateralFactorBps    uint64 `json:"borrowCollateralFactorBps"`
	LiquidateCollateralFactorBps uint64 `json:"liquidateCollateralFactorBps"`
	LiquidationPenaltyBps        uint64 `json:"liquidationPenaltyBps"`
	SupplyCap                    string `json:"supplyCap,omitempty"`
}

type assetParams struct {
	AssetID string `json:"assetId"`
}

type amountParams struct {
	AssetID string `json:"assetId"`
	Amount  string `json:"amount"`
}

type oracleParams struct {
	Oracle string `json:"oracle"`
}

type pauseParams struct {
	SupplyPaused   bool `json:"supplyPaused"`
	WithdrawPaused bool `json:"withdrawPaused"`
}

func (m *MarketModule) moduleUnavailable() *ModuleError {
	return &ModuleError{HTTPStatus: http.StatusInternalServerError, Code: codeServerError, Message: "market module not available"}
}

func (m *MarketModule) contract(raw string) (*market.Contract, *ModuleError) {
	if m == nil || m.markets == nil {
		return nil, m.moduleUnavailable()
	}
	id, err := crypto.ParseAddress(raw, crypto.ContractPrefix)
	if err != nil {
		return nil, invalidParams("invalid contract address", err)
	}
	c, err := m.markets.Get(id)
	if err != nil {
		return nil, m.wrapError(err)
	}
	return c, nil
}

// List returns every deployed market id.
func (m *MarketModule) List() ([]string, *ModuleError) {
	if m == nil || m.markets == nil {
		return nil, m.moduleUnavailable()
	}
	ids, err := m.markets.List()
	if err != nil {
		return nil, m.wrapError(err)
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out, nil
}

func (m *MarketModule) Config(contract string) (*MarketConfigResult, *ModuleError) {
	c, modErr := m.contract(contract)
	if modErr != nil {
		return nil, modErr
	}
	cfg, err := c.Config()
	if err != nil {
		return nil, m.wrapError(err)
	}
	result := &MarketConfigResult{
		Contract:             c.ID().String(),
		Owner:                cfg.Owner.String(),
		Pauser:               cfg.Pauser.String(),
		BaseAssetID:          cfg.BaseAssetID.String(),
		BaseAssetDecimals:    cfg.BaseAssetDecimals,
		BaseAssetPriceFeedID: cfg.BaseAssetPriceFeedID.String(),
		BaseAssetAddress:     cfg.BaseAssetAddress.String(),
		MaxPriceAgeSeconds:   cfg.MaxPriceAgeSeconds,
		MaxConfidenceBps:     cfg.MaxConfidenceBps,
	}
	if !cfg.OracleContractID.IsZero() {
		result.OracleContractID = cfg.OracleContractID.String()
	}
	return result, nil
}

func (m *MarketModule) State(contract string) (*MarketStateResult, *ModuleError) {
	c, modErr := m.contract(contract)
	if modErr != nil {
		return nil, modErr
	}
	st, err := c.State()
	if err != nil {
		return nil, m.wrapError(err)
	}
	phase, err := c.Phase()
	if err != nil {
		return nil, m.wrapError(err)
	}
	result := &MarketStateResult{
		Contract:       c.ID().String(),
		Phase:          string(phase),
		IsActivated:    st.IsActivated,
		ActivatedAt:    st.ActivatedAt,
		SupplyPaused:   st.Pause.SupplyPaused,
		WithdrawPaused: st.Pause.WithdrawPaused,
		Collaterals:    collateralResults(st.Collaterals),
	}
	if st.PythContractID != nil {
		result.PythContractID = st.PythContractID.String()
	}
	if !st.ConfigDigest.IsZero() {
		result.ConfigDigest = st.ConfigDigest.String()
	}
	return result, nil
}

func (m *MarketModule) Collaterals(contract string) ([]CollateralResult, *ModuleError) {
	c, modErr := m.contract(contract)
	if modErr != nil {
		return nil, modErr
	}
	list, err := c.CollateralConfigurations()
	if err != nil {
		return nil, m.wrapError(err)
	}
	return collateralResults(list), nil
}

func (m *MarketModule) UserCollateral(contract, account, assetID string) (string, *ModuleError) {
	c, modErr := m.contract(contract)
	if modErr != nil {
		return "", modErr
	}
	user, modErr := parseAccount(account)
	if modErr != nil {
		return "", modErr
	}
	asset, modErr := parseBits(assetID, "assetId")
	if modErr != nil {
		return "", modErr
	}
	balance, err := c.UserCollateral(user, asset)
	if err != nil {
		return "", m.wrapError(err)
	}
	return balance.String(), nil
}

func (m *MarketModule) TotalsCollateral(contract, assetID string) (string, *ModuleError) {
	c, modErr := m.contract(contract)
	if modErr != nil {
		return "", modErr
	}
	asset, modErr := parseBits(assetID, "assetId")
	if modErr != nil {
		return "", modErr
	}
	total, err := c.TotalsCollateral(asset)
	if err != nil {
		return "", m.wrapError(err)
	}
	return total.String(), nil
}

func (m *MarketModule) CollateralValue(contract, account string) (string, *ModuleError) {
	c, modErr := m.contract(contract)
	if modErr != nil {
		return "", modErr
	}
	user, modErr := parseAccount(account)
	if modErr != nil {
		return "", modErr
	}
	value, err := c.CollateralValue(user)
	if err != nil {
		return "", m.wrapError(err)
	}
	return value.Dec(), nil
}

func (m *MarketModule) AccountLiquidity(contract, account string) (*LiquidityResult, *ModuleError) {
	c, modErr := m.contract(contract)
	if modErr != nil {
		return nil, modErr
	}
	user, modErr := parseAccount(account)
	if modErr != nil {
		return nil, modErr
	}
	liquidity, err := c.AccountLiquidity(user)
	if err != nil {
		return nil, m.wrapError(err)
	}
	return &LiquidityResult{
		Account:          user.String(),
		CollateralValue:  liquidity.CollateralValue.Dec(),
		BorrowCapacity:   liquidity.BorrowCapacity.Dec(),
		LiquidationLimit: liquidity.LiquidationLimit.Dec(),
	}, nil
}

// ConvertToBase converts a WAD value into base asset units.
func (m *MarketModule) ConvertToBase(contract, value string) (string, *ModuleError) {
	c, modErr := m.contract(contract)
	if modErr != nil {
		return "", modErr
	}
	wad, err := uint256.FromDecimal(strings.TrimSpace(value))
	if err != nil {
		return "", invalidParams("invalid value", err)
	}
	amount, err := c.ConvertToBase(wad)
	if err != nil {
		return "", m.wrapError(err)
	}
	return amount.Dec(), nil
}

func (m *MarketModule) Price(contract, feedID string) (*PriceResult, *ModuleError) {
	c, modErr := m.contract(contract)
	if modErr != nil {
		return nil, modErr
	}
	feed, modErr := parseBits(feedID, "feedId")
	if modErr != nil {
		return nil, modErr
	}
	price, err := c.Price(feed)
	if err != nil {
		return nil, m.wrapError(err)
	}
	return &PriceResult{
		FeedID:      feed.String(),
		Price:       price.Price,
		Exponent:    price.Exponent,
		Confidence:  price.Confidence,
		PublishTime: price.PublishTime,
	}, nil
}

// Nonce returns the next call nonce expected from account.
func (m *MarketModule) Nonce(contract, account string) (uint64, *ModuleError) {
	c, modErr := m.contract(contract)
	if modErr != nil {
		return 0, modErr
	}
	user, modErr := parseAccount(account)
	if modErr != nil {
		return 0, modErr
	}
	nonce, err := c.Nonce(user)
	if err != nil {
		return 0, m.wrapError(err)
	}
	return nonce, nil
}

// Execute checks the chain id and signature on call, consumes its nonce and
// dispatches it to the contract with the recovered signer as caller. Calls for
// another network and malformed params are rejected before the nonce is
// consumed.
func (m *MarketModule) Execute(call *types.MarketCall) (*CallResult, *ModuleError) {
	if call == nil {
		return nil, invalidParams("missing call", nil)
	}
	if call.ChainID != m.ChainID() {
		return nil, &ModuleError{
			HTTPStatus: http.StatusBadRequest,
			Code:       codeInvalidParams,
			Message:    "call chainId does not match this network",
			Data:       map[string]uint64{"expected": m.ChainID(), "got": call.ChainID},
		}
	}
	c, modErr := m.contract(call.Contract)
	if modErr != nil {
		return nil, modErr
	}
	from, err := call.From()
	if err != nil {
		return nil, &ModuleError{HTTPStatus: http.StatusUnauthorized, Code: codeUnauthorized, Message: "invalid call signature", Data: err.Error()}
	}
	var raw [crypto.AddressLength]byte
	copy(raw[:], from)
	caller := crypto.AddressFromArray(crypto.AccountPrefix, raw)

	method := strings.TrimSpace(call.Method)
	op, modErr := buildCall(method, call.Params)
	if modErr != nil {
		return nil, modErr
	}
	if err := c.UseNonce(caller, call.Nonce); err != nil {
		return nil, m.wrapError(err)
	}
	if err := op(c, caller); err != nil {
		return nil, m.wrapError(err)
	}
	return &CallResult{Contract: c.ID().String(), Method: method, Caller: caller.String(), Nonce: call.Nonce}, nil
}

type callFunc func(c *market.Contract, caller crypto.Address) error

func buildCall(method string, params json.RawMessage) (callFunc, *ModuleError) {
	switch method {
	case CallSetPythContractID:
		var p oracleParams
		if modErr := decodeParams(params, &p); modErr != nil {
			return nil, modErr
		}
		oracleID, err := crypto.ParseAddress(p.Oracle, crypto.ContractPrefix)
		if err != nil {
			return nil, invalidParams("invalid oracle address", err)
		}
		return func(c *market.Contract, caller crypto.Address) error {
			return c.SetPythContractID(caller, oracleID)
		}, nil
	case CallAddCollateralAsset, CallUpdateCollateralAsset:
		var p CollateralParams
		if modErr := decodeParams(params, &p); modErr != nil {
			return nil, modErr
		}
		cfg, modErr := p.collateralConfig()
		if modErr != nil {
			return nil, modErr
		}
		if method == CallAddCollateralAsset {
			return func(c *market.Contract, caller crypto.Address) error {
				return c.AddCollateralAsset(caller, cfg)
			}, nil
		}
		return func(c *market.Contract, caller crypto.Address) error {
			return c.UpdateCollateralAsset(caller, cfg)
		}, nil
	case CallPauseCollateralAsset, CallResumeCollateralAsset:
		var p assetParams
		if modErr := decodeParams(params, &p); modErr != nil {
			return nil, modErr
		}
		asset, modErr := parseBits(p.AssetID, "assetId")
		if modErr != nil {
			return nil, modErr
		}
		if method == CallPauseCollateralAsset {
			return func(c *market.Contract, caller crypto.Address) error {
				return c.PauseCollateralAsset(caller, asset)
			}, nil
		}
		return func(c *market.Contract, caller crypto.Address) error {
			return c.ResumeCollateralAsset(caller, asset)
		}, nil
	case CallActivateContract:
		return func(c *market.Contract, caller crypto.Address) error {
			return c.ActivateContract(caller)
		}, nil
	case CallPauseMarket:
		var p pauseParams
		if modErr := decodeParams(params, &p); modErr != nil {
			return nil, modErr
		}
		pause := market.PauseConfiguration{SupplyPaused: p.SupplyPaused, WithdrawPaused: p.WithdrawPaused}
		return func(c *market.Contract, caller crypto.Address) error {
			return c.PauseMarket(caller, pause)
		}, nil
	case CallSupplyCollateral, CallWithdrawCollateral:
		var p amountParams
		if modErr := decodeParams(params, &p); modErr != nil {
			return nil, modErr
		}
		asset, modErr := parseBits(p.AssetID, "assetId")
		if modErr != nil {
			return nil, modErr
		}
		amount, modErr := parseAmount(p.Amount, "amount")
		if modErr != nil {
			return nil, modErr
		}
		if method == CallSupplyCollateral {
			return func(c *market.Contract, caller crypto.Address) error {
				return c.SupplyCollateral(caller, asset, amount)
			}, nil
		}
		return func(c *market.Contract, caller crypto.Address) error {
			return c.WithdrawCollateral(caller, asset, amount)
		}, nil
	default:
		return nil, &ModuleError{HTTPStatus: http.StatusBadRequest, Code: codeInvalidParams, Message: fmt.Sprintf("unknown call method %q", method)}
	}
}

func (p CollateralParams) collateralConfig() (market.CollateralConfig, *ModuleError) {
	asset, modErr := parseBits(p.AssetID, "assetId")
	if modErr != nil {
		return market.CollateralConfig{}, modErr
	}
	feed, modErr := parseBits(p.PriceFeedID, "priceFeedId")
	if modErr != nil {
		return market.CollateralConfig{}, modErr
	}
	cfg := market.CollateralConfig{
		AssetID:                      asset,
		PriceFeedID:                  feed,
		Decimals:                     p.Decimals,
		BorrowCollateralFactorBps:    p.BorrowCollateralFactorBps,
		LiquidateCollateralFactorBps: p.LiquidateCollateralFactorBps,
		LiquidationPenaltyBps:        p.LiquidationPenaltyBps,
	}
	if strings.TrimSpace(p.SupplyCap) != "" {
		supplyCap, ok := new(big.Int).SetString(strings.TrimSpace(p.SupplyCap), 10)
		if !ok {
			return market.CollateralConfig{}, invalidParams("invalid supplyCap", nil)
		}
		cfg.SupplyCap = supplyCap
	}
	return cfg, nil
}

func (m *MarketModule) wrapError(err error) *ModuleError {
	if err == nil {
		return nil
	}
	status := http.StatusInternalServerError
	code := codeServerError
	switch {
	case errors.Is(err, market.ErrUnauthorized):
		status, code = http.StatusForbidden, codeUnauthorized
	case errors.Is(err, market.ErrNotDeployed):
		status, code = http.StatusNotFound, codeNotFound
	case errors.Is(err, market.ErrInvalidConfig),
		errors.Is(err, market.ErrInvalidAmount),
		errors.Is(err, market.ErrUnknownAsset),
		errors.Is(err, market.ErrInvalidNonce),
		errors.Is(err, market.ErrArithmeticOverflow):
		status, code = http.StatusBadRequest, codeInvalidParams
	case errors.Is(err, market.ErrDuplicateAsset),
		errors.Is(err, market.ErrAlreadyDeployed),
		errors.Is(err, market.ErrAlreadyActivated),
		errors.Is(err, market.ErrNotActivated),
		errors.Is(err, market.ErrActionPaused),
		errors.Is(err, market.ErrAssetPaused),
		errors.Is(err, market.ErrSupplyCapExceeded),
		errors.Is(err, market.ErrInsufficientCollateral):
		status, code = http.StatusConflict, codeStateConflict
	case errors.Is(err, market.ErrOracleNotConfigured),
		errors.Is(err, market.ErrStalePrice),
		errors.Is(err, market.ErrInvalidPrice):
		status, code = http.StatusServiceUnavailable, codeOracleUnavailable
	}
	return &ModuleError{
		HTTPStatus: status,
		Code:       code,
		Message:    err.Error(),
		Data:       map[string]string{"reason": market.ErrorCode(err)},
	}
}

func collateralResults(list []market.CollateralConfig) []CollateralResult {
	out := make([]CollateralResult, 0, len(list))
	for _, c := range list {
		supplyCap := "0"
		if c.SupplyCap != nil {
			supplyCap = c.SupplyCap.String()
		}
		out = append(out, CollateralResult{
			AssetID:                      c.AssetID.String(),
			PriceFeedID:                  c.PriceFeedID.String(),
			Decimals:                     c.Decimals,
			BorrowCollateralFactorBps:    c.BorrowCollateralFactorBps,
			LiquidateCollateralFactorBps: c.LiquidateCollateralFactorBps,
			LiquidationPenaltyBps:        c.LiquidationPenaltyBps,
			SupplyCap:                    supplyCap,
			Paused:                       c.Paused,
		})
	}
	return out
}

func decodeParams(raw json.RawMessage, dst interface{}) *ModuleError {
	if len(raw) == 0 || string(raw) == "null" {
		return invalidParams("missing call params", nil)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return invalidParams("invalid call params", err)
	}
	return nil
}

func parseAccount(raw string) (crypto.Address, *ModuleError) {
	addr, err := crypto.ParseAddress(raw, crypto.AccountPrefix)
	if err != nil {
		return crypto.Address{}, invalidParams("invalid account address", err)
	}
	return addr, nil
}

func parseBits(raw, field string) (types.Bits256, *ModuleError) {
	value, err := types.ParseBits256(raw)
	if err != nil {
		return types.Bits256{}, invalidParams("invalid "+field, err)
	}
	return value, nil
}

func parseAmount(raw, field string) (*big.Int, *ModuleError) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return nil, invalidParams("invalid "+field, nil)
	}
	return amount, nil
}

func invalidParams(message string, err error) *ModuleError {
	modErr := &ModuleError{HTTPStatus: http.StatusBadRequest, Code: codeInvalidParams, Message: message}
	if err != nil {
		modErr.Data = err.Error()
	}
	return modErr
}
