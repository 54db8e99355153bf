package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"swaylend/crypto"
)

const testKeystorePassphrase = "test-passphrase"

func init() {
	keystoreParams = crypto.LightKeystore
}

func TestLoadCreatesDefault(t *testing.T) {
	t.Setenv(PassphraseEnv, testKeystorePassphrase)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != ":8080" || cfg.DataDir != "./market-data" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.ChainID != DefaultChainID {
		t.Fatalf("expected default chain id, got %d", cfg.ChainID)
	}
	if cfg.Market.BaseSymbol != "USDC" {
		t.Fatalf("expected USDC base symbol, got %q", cfg.Market.BaseSymbol)
	}
	if cfg.Market.OwnerKeystorePath != filepath.Join(dir, "owner.keystore") {
		t.Fatalf("unexpected keystore path %q", cfg.Market.OwnerKeystorePath)
	}
	if _, err := crypto.LoadFromKeystore(cfg.Market.OwnerKeystorePath, testKeystorePassphrase); err != nil {
		t.Fatalf("keystore not readable: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not persisted: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Market.OwnerKeystorePath != cfg.Market.OwnerKeystorePath {
		t.Fatalf("reloaded keystore path mismatch")
	}
}

func TestLoadParsesSections(t *testing.T) {
	t.Setenv(PassphraseEnv, testKeystorePassphrase)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	oracle := crypto.NewAddress(crypto.ContractPrefix, make20(0x11))
	contents := `DataDir = "./data"
RPCAddress = "127.0.0.1:9000"
Environment = "testnet"
ChainID = 4242
LogFile = "./logs/marketd.log"

[market]
TokensFile = "tokens.yaml"
BaseSymbol = "usdc"
OracleAddress = "` + oracle.String() + `"
Salt = "0x0000000000000000000000000000000000000000000000000000000000000007"
MaxPriceAgeSeconds = 120
MaxConfidenceBps = 250

[oracle]
HermesURL = "https://hermes.pyth.network"
RequestsPerSecond = 2.5
Burst = 5

[rpc]
RateLimitPerMinute = 120
Burst = 10
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Environment != "testnet" || cfg.LogFile != "./logs/marketd.log" || cfg.ChainID != 4242 {
		t.Fatalf("unexpected top-level fields %+v", cfg)
	}
	got, err := cfg.Market.OracleContract()
	if err != nil || !got.Equal(oracle) {
		t.Fatalf("unexpected oracle %s (%v)", got, err)
	}
	salt, ok, err := cfg.Market.FixedSalt()
	if err != nil || !ok || salt[31] != 7 {
		t.Fatalf("unexpected salt %s ok=%v err=%v", salt, ok, err)
	}
	if cfg.Market.MaxPriceAgeSeconds != 120 || cfg.Market.MaxConfidenceBps != 250 {
		t.Fatalf("unexpected oracle guards %+v", cfg.Market)
	}
	if cfg.Oracle.RequestsPerSecond != 2.5 || cfg.Oracle.Burst != 5 || cfg.Oracle.TimeoutSeconds != 10 {
		t.Fatalf("unexpected oracle section %+v", cfg.Oracle)
	}
	if cfg.RPC.RateLimitPerMinute != 120 || cfg.RPC.Burst != 10 || cfg.RPC.MaxBodyBytes != 1<<20 {
		t.Fatalf("unexpected rpc section %+v", cfg.RPC)
	}

	persisted, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read persisted: %v", err)
	}
	if !strings.Contains(string(persisted), "OwnerKeystorePath") {
		t.Fatalf("expected generated keystore path to be persisted")
	}
}

func TestValidateRejectsInconsistentSettings(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		cfg.applyDefaults()
		return cfg
	}
	cases := map[string]func(*Config){
		"bad oracle":        func(c *Config) { c.Market.OracleAddress = "not-an-address" },
		"bad salt":          func(c *Config) { c.Market.Salt = "0x01" },
		"salt and random":   func(c *Config) { c.Market.RandomSalt = true; c.Market.Salt = "0x" + strings.Repeat("00", 32) },
		"confidence band":   func(c *Config) { c.Market.MaxConfidenceBps = MaxBasisPoints + 1 },
		"negative rps":      func(c *Config) { c.Oracle.RequestsPerSecond = -1 },
		"negative rpc rate": func(c *Config) { c.RPC.RateLimitPerMinute = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base()
			mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
	if err := base().Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func make20(fill byte) []byte {
	out := make([]byte, crypto.AddressLength)
	for i := range out {
		out[i] = fill
	}
	return out
}
