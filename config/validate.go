package config

import (
	"fmt"
	"strings"
)

// MaxBasisPoints bounds every basis-point setting.
const MaxBasisPoints = 10_000

// Validate reports the first inconsistency in cfg.
func (cfg *Config) Validate() error {
	if cfg == nil {
		return fmt.Errorf("configuration is missing")
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return fmt.Errorf("DataDir must be set")
	}
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		return fmt.Errorf("RPCAddress must be set")
	}
	if strings.TrimSpace(cfg.Market.BaseSymbol) == "" {
		return fmt.Errorf("market: BaseSymbol must be set")
	}
	if _, err := cfg.Market.OracleContract(); err != nil {
		return fmt.Errorf("market: invalid OracleAddress: %w", err)
	}
	if _, err := cfg.Market.TokenContract(); err != nil {
		return fmt.Errorf("market: invalid TokenContractAddress: %w", err)
	}
	if _, err := cfg.Market.Pauser(); err != nil {
		return fmt.Errorf("market: invalid PauserAddress: %w", err)
	}
	if _, err := cfg.Market.BaseAsset(); err != nil {
		return fmt.Errorf("market: invalid BaseAssetAddress: %w", err)
	}
	if _, _, err := cfg.Market.FixedSalt(); err != nil {
		return err
	}
	if cfg.Market.RandomSalt && strings.TrimSpace(cfg.Market.Salt) != "" {
		return fmt.Errorf("market: RandomSalt and Salt are mutually exclusive")
	}
	if cfg.Market.MaxConfidenceBps > MaxBasisPoints {
		return fmt.Errorf("market: MaxConfidenceBps must not exceed %d", MaxBasisPoints)
	}
	if cfg.Oracle.RequestsPerSecond < 0 {
		return fmt.Errorf("oracle: RequestsPerSecond must not be negative")
	}
	if cfg.Oracle.Burst < 0 || cfg.Oracle.TimeoutSeconds < 0 {
		return fmt.Errorf("oracle: Burst and TimeoutSeconds must not be negative")
	}
	if cfg.RPC.RateLimitPerMinute < 0 || cfg.RPC.Burst < 0 {
		return fmt.Errorf("rpc: RateLimitPerMinute and Burst must not be negative")
	}
	if cfg.RPC.ReadHeaderTimeout < 0 || cfg.RPC.MaxBodyBytes < 0 {
		return fmt.Errorf("rpc: ReadHeaderTimeout and MaxBodyBytes must not be negative")
	}
	return nil
}
