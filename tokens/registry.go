package tokens

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"swaylend/core/types"
	"swaylend/crypto"
	"swaylend/native/market"
)

var (
	// ErrUnknownToken is returned when a symbol is not listed.
	ErrUnknownToken = errors.New("tokens: unknown token")
	// ErrInvalidToken flags malformed token list entries.
	ErrInvalidToken = errors.New("tokens: invalid token")
)

// Token describes one asset of the token list together with the collateral
// parameters used when it is onboarded to a market.
type Token struct {
	Symbol      string        `json:"symbol" yaml:"symbol"`
	Name        string        `json:"name,omitempty" yaml:"name,omitempty"`
	Decimals    uint32        `json:"decimals" yaml:"decimals"`
	AssetID     types.Bits256 `json:"asset_id,omitempty" yaml:"asset_id,omitempty"`
	PriceFeedID types.Bits256 `json:"price_feed_id,omitempty" yaml:"price_feed_id,omitempty"`

	BorrowCollateralFactorBps    uint64 `json:"borrow_collateral_factor_bps,omitempty" yaml:"borrow_collateral_factor_bps,omitempty"`
	LiquidateCollateralFactorBps uint64 `json:"liquidate_collateral_factor_bps,omitempty" yaml:"liquidate_collateral_factor_bps,omitempty"`
	LiquidationPenaltyBps        uint64 `json:"liquidation_penalty_bps,omitempty" yaml:"liquidation_penalty_bps,omitempty"`
	// SupplyCap is a decimal string in base units; empty means uncapped.
	SupplyCap string `json:"supply_cap,omitempty" yaml:"supply_cap,omitempty"`
}

// CollateralConfig converts the token into a market collateral registration.
func (t Token) CollateralConfig() (market.CollateralConfig, error) {
	cfg := market.CollateralConfig{
		AssetID:                      t.AssetID,
		PriceFeedID:                  t.PriceFeedID,
		Decimals:                     t.Decimals,
		BorrowCollateralFactorBps:    t.BorrowCollateralFactorBps,
		LiquidateCollateralFactorBps: t.LiquidateCollateralFactorBps,
		LiquidationPenaltyBps:        t.LiquidationPenaltyBps,
	}
	if raw := strings.TrimSpace(t.SupplyCap); raw != "" {
		value, ok := new(big.Int).SetString(raw, 10)
		if !ok || value.Sign() < 0 {
			return market.CollateralConfig{}, fmt.Errorf("%w: %s supply cap %q", ErrInvalidToken, t.Symbol, t.SupplyCap)
		}
		cfg.SupplyCap = value
	}
	return cfg, nil
}

// DeriveAssetID computes the asset id minted by tokenContract for symbol:
// sha256(contract || sha256(symbol)).
func DeriveAssetID(tokenContract crypto.Address, symbol string) types.Bits256 {
	subID := sha256.Sum256([]byte(symbol))
	hasher := sha256.New()
	hasher.Write(tokenContract.Bytes())
	hasher.Write(subID[:])
	var out types.Bits256
	copy(out[:], hasher.Sum(nil))
	return out
}

// Registry resolves token symbols to assets.
type Registry struct {
	bySymbol map[string]Token
	order    []string
}

// NewRegistry validates list and fills in asset ids derived from
// tokenContract where an entry omits one.
func NewRegistry(list []Token, tokenContract crypto.Address) (*Registry, error) {
	r := &Registry{bySymbol: make(map[string]Token, len(list))}
	for _, token := range list {
		token.Symbol = strings.TrimSpace(token.Symbol)
		if token.Symbol == "" {
			return nil, fmt.Errorf("%w: symbol required", ErrInvalidToken)
		}
		if token.Decimals > market.MaxDecimals {
			return nil, fmt.Errorf("%w: %s decimals %d exceed %d", ErrInvalidToken, token.Symbol, token.Decimals, market.MaxDecimals)
		}
		key := strings.ToUpper(token.Symbol)
		if _, exists := r.bySymbol[key]; exists {
			return nil, fmt.Errorf("%w: duplicate symbol %s", ErrInvalidToken, token.Symbol)
		}
		if token.AssetID.IsZero() {
			if tokenContract.IsZero() {
				return nil, fmt.Errorf("%w: %s has no asset id and no token contract is configured", ErrInvalidToken, token.Symbol)
			}
			token.AssetID = DeriveAssetID(tokenContract, token.Symbol)
		}
		r.bySymbol[key] = token
		r.order = append(r.order, key)
	}
	return r, nil
}

// Resolve returns the token listed under symbol, ignoring case.
func (r *Registry) Resolve(symbol string) (Token, error) {
	if r == nil {
		return Token{}, ErrUnknownToken
	}
	token, ok := r.bySymbol[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return Token{}, fmt.Errorf("%w: %s", ErrUnknownToken, symbol)
	}
	return token, nil
}

// Tokens returns every token in file order.
func (r *Registry) Tokens() []Token {
	if r == nil {
		return nil
	}
	out := make([]Token, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.bySymbol[key])
	}
	return out
}

// CollateralConfigs returns the collateral registrations for every token
// other than baseSymbol, in file order.
func (r *Registry) CollateralConfigs(baseSymbol string) ([]market.CollateralConfig, error) {
	base, err := r.Resolve(baseSymbol)
	if err != nil {
		return nil, err
	}
	var out []market.CollateralConfig
	for _, token := range r.Tokens() {
		if token.AssetID == base.AssetID {
			continue
		}
		cfg, err := token.CollateralConfig()
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, nil
}

type tokenFile struct {
	Tokens []Token `json:"tokens" yaml:"tokens"`
}

// Load reads a token list from a .json, .yaml or .yml file. The file may hold
// either a bare list or an object with a "tokens" key.
func Load(path string, tokenContract crypto.Address) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token list: %w", err)
	}
	var list []Token
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		list, err = decodeJSON(data)
	case ".yaml", ".yml":
		list, err = decodeYAML(data)
	default:
		return nil, fmt.Errorf("tokens: unsupported token list format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("decode token list %s: %w", path, err)
	}
	return NewRegistry(list, tokenContract)
}

func decodeJSON(data []byte) ([]Token, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []Token
		err := json.Unmarshal(trimmed, &list)
		return list, err
	}
	var file tokenFile
	if err := json.Unmarshal(trimmed, &file); err != nil {
		return nil, err
	}
	return file.Tokens, nil
}

func decodeYAML(data []byte) ([]Token, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if len(root.Content) == 0 {
		return nil, nil
	}
	if root.Content[0].Kind == yaml.SequenceNode {
		var list []Token
		err := root.Content[0].Decode(&list)
		return list, err
	}
	var file tokenFile
	if err := root.Content[0].Decode(&file); err != nil {
		return nil, err
	}
	return file.Tokens, nil
}
