package modules

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"swaylend/core/types"
	"swaylend/native/market"
)

func TestCollateralParamsConversion(t *testing.T) {
	p := CollateralParams{
		AssetID:                      "0x" + strings.Repeat("02", 32),
		PriceFeedID:                  strings.Repeat("12", 32),
		Decimals:                     9,
		BorrowCollateralFactorBps:    7000,
		LiquidateCollateralFactorBps: 8000,
		LiquidationPenaltyBps:        500,
		SupplyCap:                    "1000000000000",
	}
	cfg, modErr := p.collateralConfig()
	require.Nil(t, modErr)
	require.Equal(t, byte(0x02), cfg.AssetID[31])
	require.Equal(t, byte(0x12), cfg.PriceFeedID[0])
	require.Equal(t, "1000000000000", cfg.SupplyCap.String())

	p.SupplyCap = ""
	cfg, modErr = p.collateralConfig()
	require.Nil(t, modErr)
	require.Nil(t, cfg.SupplyCap)

	p.SupplyCap = "lots"
	_, modErr = p.collateralConfig()
	require.NotNil(t, modErr)
	require.Equal(t, http.StatusBadRequest, modErr.HTTPStatus)
}

func TestBuildCallRejectsMissingParams(t *testing.T) {
	_, modErr := buildCall(CallSupplyCollateral, nil)
	require.NotNil(t, modErr)
	require.Equal(t, "missing call params", modErr.Message)

	_, modErr = buildCall(CallPauseMarket, json.RawMessage(`{"supplyPaused":"yes"}`))
	require.NotNil(t, modErr)
	require.Equal(t, codeInvalidParams, modErr.Code)

	op, modErr := buildCall(CallActivateContract, nil)
	require.Nil(t, modErr)
	require.NotNil(t, op)
}

func TestWrapErrorClassifiesMarketErrors(t *testing.T) {
	m := &MarketModule{}
	cases := []struct {
		err    error
		status int
		code   int
	}{
		{market.ErrUnauthorized, http.StatusForbidden, codeUnauthorized},
		{market.ErrNotDeployed, http.StatusNotFound, codeNotFound},
		{market.ErrDuplicateAsset, http.StatusConflict, codeStateConflict},
		{market.ErrActionPaused, http.StatusConflict, codeStateConflict},
		{market.ErrStalePrice, http.StatusServiceUnavailable, codeOracleUnavailable},
		{fmt.Errorf("wrapped: %w", market.ErrInvalidAmount), http.StatusBadRequest, codeInvalidParams},
		{fmt.Errorf("disk full"), http.StatusInternalServerError, codeServerError},
	}
	for _, tc := range cases {
		modErr := m.wrapError(tc.err)
		require.Equal(t, tc.status, modErr.HTTPStatus, tc.err.Error())
		require.Equal(t, tc.code, modErr.Code, tc.err.Error())
		require.Equal(t, map[string]string{"reason": market.ErrorCode(tc.err)}, modErr.Data)
	}
	require.Nil(t, m.wrapError(nil))
}

func TestExecuteRejectsForeignChainID(t *testing.T) {
	m := NewMarketModule(nil, 5)
	require.Equal(t, uint64(5), m.ChainID())

	_, modErr := m.Execute(&types.MarketCall{ChainID: 6, Contract: "fuelc1unused", Method: CallActivateContract})
	require.NotNil(t, modErr)
	require.Equal(t, http.StatusBadRequest, modErr.HTTPStatus)
	require.Equal(t, codeInvalidParams, modErr.Code)
	require.Equal(t, map[string]uint64{"expected": 5, "got": 6}, modErr.Data)

	var nilModule *MarketModule
	require.Zero(t, nilModule.ChainID())
}
