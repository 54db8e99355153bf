package oracle

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"swaylend/core/types"
	"swaylend/crypto"
)

var usdcFeed = types.MustParseBits256("0xeaa020c61cc479712813461ce153894a96a6c00b21ed0cfc2798d1f9a9e9c94a")

func TestManualOracle(t *testing.T) {
	manual := NewManualOracle()
	_, err := manual.GetPrice(usdcFeed)
	require.ErrorIs(t, err, ErrFeedNotFound)

	manual.SetPrice(usdcFeed, Price{Price: 100_000_000, Exponent: -8, PublishTime: 10})
	price, err := manual.GetPrice(usdcFeed)
	require.NoError(t, err)
	require.Equal(t, int64(100_000_000), price.Price)
	require.Equal(t, int32(-8), price.Exponent)

	manual.Remove(usdcFeed)
	_, err = manual.GetPrice(usdcFeed)
	require.True(t, errors.Is(err, ErrFeedNotFound))
}

func TestRegistryResolve(t *testing.T) {
	raw := make([]byte, crypto.AddressLength)
	raw[0] = 0x01
	contract := crypto.NewAddress(crypto.ContractPrefix, raw)
	other := crypto.NewAddress(crypto.ContractPrefix, make([]byte, crypto.AddressLength))

	registry := NewRegistry()
	manual := NewManualOracle()
	registry.Register(contract, manual)

	resolved, err := registry.Resolve(contract)
	require.NoError(t, err)
	require.Same(t, manual, resolved)

	_, err = registry.Resolve(other)
	require.ErrorIs(t, err, ErrOracleNotRegistered)

	_, err = Static{}.Resolve(contract)
	require.ErrorIs(t, err, ErrOracleNotRegistered)
}

func TestHermesOracleParsesLatestPrice(t *testing.T) {
	feedHex := strings.TrimPrefix(usdcFeed.String(), "0x")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/updates/price/latest", r.URL.Path)
		require.Equal(t, feedHex, r.URL.Query().Get("ids[]"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"parsed": []map[string]interface{}{{
				"id": feedHex,
				"price": map[string]interface{}{
					"price":        "99985000",
					"conf":         "70000",
					"expo":         -8,
					"publish_time": 1_700_000_000,
				},
			}},
		})
	}))
	defer server.Close()

	hermes := NewHermesOracle(server.Client(), server.URL+"/", 0, 0)
	price, err := hermes.GetPrice(usdcFeed)
	require.NoError(t, err)
	require.Equal(t, Price{Price: 99_985_000, Exponent: -8, Confidence: 70_000, PublishTime: 1_700_000_000}, price)
}

func TestHermesOracleMissingFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"parsed": []interface{}{}})
	}))
	defer server.Close()

	hermes := NewHermesOracle(server.Client(), server.URL, 5, 1)
	_, err := hermes.GetPrice(usdcFeed)
	require.ErrorIs(t, err, ErrFeedNotFound)
}

func TestHermesOracleUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	hermes := NewHermesOracle(server.Client(), server.URL, 0, 0)
	_, err := hermes.GetPrice(usdcFeed)
	require.Error(t, err)
	require.Contains(t, err.Error(), "502")
}
