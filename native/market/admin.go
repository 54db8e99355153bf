package market

import (
	"fmt"
	"log/slog"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"swaylend/core/events"
	"swaylend/core/types"
	"swaylend/crypto"
)

func requireOwner(cfg MarketConfig, caller crypto.Address) error {
	if caller.IsZero() || !caller.Equal(cfg.Owner) {
		return fmt.Errorf("%w: caller %s is not the owner", ErrUnauthorized, caller)
	}
	return nil
}

// SetPythContractID points the market at the oracle contract used for every
// price read. It may be repeated until the market is activated.
func (c *Contract) SetPythContractID(caller crypto.Address, oracleID crypto.Address) error {
	if c == nil {
		return ErrNotDeployed
	}
	err := c.execute("set_pyth_contract_id", func(tx *txn) error {
		cfg, err := tx.config()
		if err != nil {
			return err
		}
		if err := requireOwner(cfg, caller); err != nil {
			return err
		}
		if oracleID.IsZero() {
			return fmt.Errorf("%w: oracle contract id must not be zero", ErrInvalidConfig)
		}
		st, err := tx.state()
		if err != nil {
			return err
		}
		if st.Activated {
			return fmt.Errorf("%w: oracle is frozen after activation", ErrAlreadyActivated)
		}
		st.OracleSet = true
		st.OracleContract = oracleID.Array()
		if err := tx.putState(st); err != nil {
			return err
		}
		tx.emit(events.MarketOracleSet{
			Contract: tx.contract,
			Oracle:   crypto.AddressFromArray(crypto.ContractPrefix, st.OracleContract),
		})
		return nil
	})
	if err != nil {
		return err
	}
	c.logger.Info("market oracle set",
		slog.String("contract", c.id.String()),
		slog.String("oracle", crypto.AddressFromArray(crypto.ContractPrefix, oracleID.Array()).String()))
	return nil
}

// AddCollateralAsset registers a new collateral asset. Registration is not
// gated on activation.
func (c *Contract) AddCollateralAsset(caller crypto.Address, collateral CollateralConfig) error {
	if c == nil {
		return ErrNotDeployed
	}
	var count int
	err := c.execute("add_collateral_asset", func(tx *txn) error {
		cfg, err := tx.config()
		if err != nil {
			return err
		}
		if err := requireOwner(cfg, caller); err != nil {
			return err
		}
		if err := collateral.Validate(); err != nil {
			return err
		}
		if collateral.AssetID == cfg.BaseAssetID {
			return fmt.Errorf("%w: base asset %s cannot be collateral", ErrInvalidConfig, collateral.AssetID)
		}
		added, err := tx.registerCollateral(collateral.AssetID)
		if err != nil {
			return err
		}
		if !added {
			return fmt.Errorf("%w: %s", ErrDuplicateAsset, collateral.AssetID)
		}
		if err := tx.putCollateral(collateral.Clone()); err != nil {
			return err
		}
		registered, err := tx.collaterals()
		if err != nil {
			return err
		}
		count = len(registered)
		tx.emit(events.CollateralAdded{
			Contract:    tx.contract,
			AssetID:     collateral.AssetID,
			PriceFeedID: collateral.PriceFeedID,
			Decimals:    collateral.Decimals,
		})
		return nil
	})
	if err != nil {
		return err
	}
	c.metrics.SetCollaterals(c.id.String(), count)
	c.logger.Info("market collateral added",
		slog.String("contract", c.id.String()),
		slog.String("asset", collateral.AssetID.String()),
		slog.String("feed", collateral.PriceFeedID.String()),
		slog.Uint64("decimals", uint64(collateral.Decimals)))
	return nil
}

// UpdateCollateralAsset replaces the feed and risk parameters of a registered
// collateral. Decimals and the pause flag are preserved.
func (c *Contract) UpdateCollateralAsset(caller crypto.Address, collateral CollateralConfig) error {
	if c == nil {
		return ErrNotDeployed
	}
	return c.execute("update_collateral_asset", func(tx *txn) error {
		cfg, err := tx.config()
		if err != nil {
			return err
		}
		if err := requireOwner(cfg, caller); err != nil {
			return err
		}
		existing, ok, err := tx.collateral(collateral.AssetID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownAsset, collateral.AssetID)
		}
		if collateral.Decimals != existing.Decimals {
			return fmt.Errorf("%w: decimals of %s are fixed at %d", ErrInvalidConfig, collateral.AssetID, existing.Decimals)
		}
		if err := collateral.Validate(); err != nil {
			return err
		}
		updated := collateral.Clone()
		updated.Paused = existing.Paused
		if err := tx.putCollateral(updated); err != nil {
			return err
		}
		tx.emit(events.CollateralUpdated{Contract: tx.contract, AssetID: collateral.AssetID})
		return nil
	})
}

// PauseCollateralAsset blocks new supply of assetID.
func (c *Contract) PauseCollateralAsset(caller crypto.Address, assetID types.Bits256) error {
	return c.setCollateralPaused(caller, assetID, true)
}

// ResumeCollateralAsset lifts a collateral pause.
func (c *Contract) ResumeCollateralAsset(caller crypto.Address, assetID types.Bits256) error {
	return c.setCollateralPaused(caller, assetID, false)
}

func (c *Contract) setCollateralPaused(caller crypto.Address, assetID types.Bits256, paused bool) error {
	if c == nil {
		return ErrNotDeployed
	}
	method := "resume_collateral_asset"
	if paused {
		method = "pause_collateral_asset"
	}
	return c.execute(method, func(tx *txn) error {
		cfg, err := tx.config()
		if err != nil {
			return err
		}
		if err := requireOwner(cfg, caller); err != nil {
			return err
		}
		existing, ok, err := tx.collateral(assetID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownAsset, assetID)
		}
		existing.Paused = paused
		if err := tx.putCollateral(existing); err != nil {
			return err
		}
		tx.emit(events.CollateralPaused{Contract: tx.contract, AssetID: assetID, Paused: paused})
		return nil
	})
}

// ActivateContract opens the market to value operations. It is one-way.
func (c *Contract) ActivateContract(caller crypto.Address) error {
	if c == nil {
		return ErrNotDeployed
	}
	var activatedAt uint64
	var digest types.Bits256
	err := c.execute("activate_contract", func(tx *txn) error {
		cfg, err := tx.config()
		if err != nil {
			return err
		}
		if err := requireOwner(cfg, caller); err != nil {
			return err
		}
		st, err := tx.state()
		if err != nil {
			return err
		}
		if st.Activated {
			return ErrAlreadyActivated
		}
		if !st.OracleSet {
			return ErrOracleNotConfigured
		}
		collaterals, err := tx.collaterals()
		if err != nil {
			return err
		}
		digest, err = configDigest(cfg, st.OracleContract, collaterals)
		if err != nil {
			return err
		}
		activatedAt = c.now()
		st.Activated = true
		st.ActivatedAt = activatedAt
		st.ConfigDigest = digest
		if err := tx.putState(st); err != nil {
			return err
		}
		tx.emit(events.MarketActivated{
			Contract:     tx.contract,
			ActivatedAt:  activatedAt,
			ConfigDigest: digest,
			Collaterals:  len(collaterals),
		})
		return nil
	})
	if err != nil {
		return err
	}
	c.metrics.SetActivated(c.id.String(), true)
	c.logger.Info("market activated",
		slog.String("contract", c.id.String()),
		slog.Uint64("activated_at", activatedAt),
		slog.String("config_digest", digest.String()))
	return nil
}

// PauseMarket replaces the pause configuration. The owner and the pauser may
// both call it.
func (c *Contract) PauseMarket(caller crypto.Address, pause PauseConfiguration) error {
	if c == nil {
		return ErrNotDeployed
	}
	return c.execute("pause_market", func(tx *txn) error {
		cfg, err := tx.config()
		if err != nil {
			return err
		}
		if caller.IsZero() || (!caller.Equal(cfg.Owner) && !caller.Equal(cfg.Pauser)) {
			return fmt.Errorf("%w: caller %s is neither owner nor pauser", ErrUnauthorized, caller)
		}
		st, err := tx.state()
		if err != nil {
			return err
		}
		st.SupplyPaused = pause.SupplyPaused
		st.WithdrawPaused = pause.WithdrawPaused
		if err := tx.putState(st); err != nil {
			return err
		}
		tx.emit(events.MarketPaused{
			Contract:       tx.contract,
			Caller:         caller,
			SupplyPaused:   pause.SupplyPaused,
			WithdrawPaused: pause.WithdrawPaused,
		})
		return nil
	})
}

// UseNonce consumes the next call nonce of caller. Signed calls consume their
// nonce even when the call itself later fails.
func (c *Contract) UseNonce(caller crypto.Address, nonce uint64) error {
	if c == nil {
		return ErrNotDeployed
	}
	return c.execute("use_nonce", func(tx *txn) error {
		expected, err := tx.nonce(caller.Array())
		if err != nil {
			return err
		}
		if nonce != expected {
			return fmt.Errorf("%w: expected %d got %d", ErrInvalidNonce, expected, nonce)
		}
		return tx.putNonce(caller.Array(), expected+1)
	})
}

// Nonce returns the next nonce expected from caller.
func (c *Contract) Nonce(caller crypto.Address) (uint64, error) {
	var nonce uint64
	err := c.view(func(s *store) error {
		var err error
		nonce, err = s.nonce(caller.Array())
		return err
	})
	return nonce, err
}

type digestInput struct {
	Config      storedConfig
	Oracle      [20]byte
	Collaterals []storedCollateral
}

func configDigest(cfg MarketConfig, oracleID [20]byte, collaterals []CollateralConfig) (types.Bits256, error) {
	input := digestInput{Config: newStoredConfig(cfg), Oracle: oracleID}
	for _, collateral := range collaterals {
		input.Collaterals = append(input.Collaterals, newStoredCollateral(collateral))
	}
	encoded, err := rlp.EncodeToBytes(input)
	if err != nil {
		return types.Bits256{}, err
	}
	var digest types.Bits256
	copy(digest[:], ethcrypto.Keccak256(encoded))
	return digest, nil
}
