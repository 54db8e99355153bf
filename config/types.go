package config

import (
	"fmt"
	"strings"

	"swaylend/core/types"
	"swaylend/crypto"
)

// Market groups the deploy-time settings of the market contract.
type Market struct {
	OwnerKeystorePath    string `toml:"OwnerKeystorePath"`
	PauserAddress        string `toml:"PauserAddress,omitempty"`
	TokensFile           string `toml:"TokensFile"`
	TokenContractAddress string `toml:"TokenContractAddress,omitempty"`
	BaseSymbol           string `toml:"BaseSymbol"`
	OracleAddress        string `toml:"OracleAddress"`
	BaseAssetAddress     string `toml:"BaseAssetAddress,omitempty"`
	RandomSalt           bool   `toml:"RandomSalt"`
	Salt                 string `toml:"Salt,omitempty"`
	MaxPriceAgeSeconds   uint64 `toml:"MaxPriceAgeSeconds"`
	MaxConfidenceBps     uint64 `toml:"MaxConfidenceBps"`
}

// Oracle configures the Hermes price service used by marketd.
type Oracle struct {
	HermesURL         string  `toml:"HermesURL"`
	RequestsPerSecond float64 `toml:"RequestsPerSecond"`
	Burst             int     `toml:"Burst"`
	TimeoutSeconds    int     `toml:"TimeoutSeconds"`
}

// RPC controls the JSON-RPC listener.
type RPC struct {
	RateLimitPerMinute int `toml:"RateLimitPerMinute"`
	Burst              int `toml:"Burst"`
	ReadHeaderTimeout  int `toml:"ReadHeaderTimeout"`
	MaxBodyBytes       int `toml:"MaxBodyBytes"`
}

// OracleContract parses the configured oracle contract id. An empty value
// yields the zero address.
func (m Market) OracleContract() (crypto.Address, error) {
	return parseOptionalAddress(m.OracleAddress, crypto.ContractPrefix)
}

// TokenContract parses the configured token contract id.
func (m Market) TokenContract() (crypto.Address, error) {
	return parseOptionalAddress(m.TokenContractAddress, crypto.ContractPrefix)
}

// Pauser parses the configured pauser. The zero address means "use the owner".
func (m Market) Pauser() (crypto.Address, error) {
	return parseOptionalAddress(m.PauserAddress, crypto.AccountPrefix)
}

// BaseAsset parses the configured reserve asset id.
func (m Market) BaseAsset() (types.Bits256, error) {
	if strings.TrimSpace(m.BaseAssetAddress) == "" {
		return types.Bits256{}, nil
	}
	return types.ParseBits256(m.BaseAssetAddress)
}

// FixedSalt returns the configured salt, or ok=false when none is set.
func (m Market) FixedSalt() (types.Bits256, bool, error) {
	if strings.TrimSpace(m.Salt) == "" {
		return types.Bits256{}, false, nil
	}
	salt, err := types.ParseBits256(m.Salt)
	if err != nil {
		return types.Bits256{}, false, fmt.Errorf("invalid market.Salt: %w", err)
	}
	return salt, true, nil
}

func parseOptionalAddress(value string, prefix crypto.AddressPrefix) (crypto.Address, error) {
	if strings.TrimSpace(value) == "" {
		return crypto.Address{}, nil
	}
	return crypto.ParseAddress(value, prefix)
}
