package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"swaylend/cmd/internal/passphrase"
	"swaylend/config"
	"swaylend/crypto"
	"swaylend/observability/logging"
	"swaylend/storage"
	"swaylend/tokens"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	tokensFile := flag.String("tokens", "", "Token list to onboard (overrides market.TokensFile)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.SetupWithOptions(logging.Options{
		Service: "market-deploy",
		Env:     cfg.Environment,
		File:    cfg.LogFile,
	})

	if *tokensFile != "" {
		cfg.Market.TokensFile = *tokensFile
	}
	tokenContract, err := cfg.Market.TokenContract()
	if err != nil {
		fail(logger, "invalid token contract", err)
	}
	registry, err := tokens.Load(cfg.Market.TokensFile, tokenContract)
	if err != nil {
		fail(logger, "failed to load token list", err)
	}

	pass, err := passphrase.NewSource(config.PassphraseEnv).Get()
	if err != nil {
		fail(logger, "failed to read keystore passphrase", err)
	}
	key, err := crypto.LoadFromKeystore(cfg.Market.OwnerKeystorePath, pass)
	if err != nil {
		fail(logger, "failed to unlock owner keystore", err)
	}
	owner := key.PubKey().Address()

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		fail(logger, "failed to open database", err)
	}
	defer db.Close()

	result, err := deployMarket(db, cfg.Market, owner, registry, logger)
	if err != nil {
		db.Close()
		fail(logger, "market bootstrap failed", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		db.Close()
		fail(logger, "failed to print result", err)
	}
}

func fail(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, slog.Any("error", err))
	os.Exit(1)
}
