package config

import (
	"os"
	"path/filepath"
	"strings"

	"swaylend/crypto"

	"github.com/BurntSushi/toml"
)

// PassphraseEnv names the variable holding the owner keystore passphrase.
const PassphraseEnv = "MARKET_KEYSTORE_PASSPHRASE"

// DefaultChainID is written into fresh configs. Every network must override it
// with its own id.
const DefaultChainID uint64 = 1

var keystoreParams = crypto.StandardKeystore

type Config struct {
	DataDir     string `toml:"DataDir"`
	RPCAddress  string `toml:"RPCAddress"`
	Environment string `toml:"Environment"`
	ChainID     uint64 `toml:"ChainID"`
	LogFile     string `toml:"LogFile,omitempty"`

	Market Market `toml:"market"`
	Oracle Oracle `toml:"oracle"`
	RPC    RPC    `toml:"rpc"`
}

// Load loads the configuration from the given path, writing a default file
// and owner keystore when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := ensureKeystore(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) applyDefaults() {
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./market-data"
	}
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8080"
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "local"
	}
	if cfg.ChainID == 0 {
		cfg.ChainID = DefaultChainID
	}
	if strings.TrimSpace(cfg.Market.BaseSymbol) == "" {
		cfg.Market.BaseSymbol = "USDC"
	}
	if strings.TrimSpace(cfg.Market.TokensFile) == "" {
		cfg.Market.TokensFile = "tokens.json"
	}
	if cfg.Oracle.TimeoutSeconds == 0 {
		cfg.Oracle.TimeoutSeconds = 10
	}
	if cfg.RPC.RateLimitPerMinute == 0 {
		cfg.RPC.RateLimitPerMinute = 600
	}
	if cfg.RPC.Burst == 0 {
		cfg.RPC.Burst = 60
	}
	if cfg.RPC.ReadHeaderTimeout == 0 {
		cfg.RPC.ReadHeaderTimeout = 5
	}
	if cfg.RPC.MaxBodyBytes == 0 {
		cfg.RPC.MaxBodyBytes = 1 << 20
	}
}

func ensureKeystore(configPath string, cfg *Config) error {
	keystorePath := cfg.Market.OwnerKeystorePath
	if keystorePath == "" {
		keystorePath = defaultKeystorePath(configPath)
	}

	if _, err := os.Stat(keystorePath); os.IsNotExist(err) {
		key, genErr := crypto.GeneratePrivateKey()
		if genErr != nil {
			return genErr
		}
		if err := crypto.SaveToKeystore(keystorePath, key, os.Getenv(PassphraseEnv), keystoreParams); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if cfg.Market.OwnerKeystorePath != keystorePath {
		cfg.Market.OwnerKeystorePath = keystorePath
		return persist(configPath, cfg)
	}

	return nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, key, os.Getenv(PassphraseEnv), keystoreParams); err != nil {
		return nil, err
	}

	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Market.OwnerKeystorePath = keystorePath

	if err := persist(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "owner.keystore")
}
