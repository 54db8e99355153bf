package market

import (
	"fmt"
	"math/big"

	"swaylend/core/types"
	"swaylend/crypto"
	"swaylend/oracle"
)

// Config returns the immutable deploy-time configuration.
func (c *Contract) Config() (MarketConfig, error) {
	var cfg MarketConfig
	err := c.view(func(s *store) error {
		var err error
		cfg, err = s.config()
		return err
	})
	return cfg, err
}

// State returns a snapshot of the mutable market state.
func (c *Contract) State() (MarketState, error) {
	var out MarketState
	err := c.view(func(s *store) error {
		var err error
		out, err = loadState(s)
		return err
	})
	return out, err
}

func loadState(s *store) (MarketState, error) {
	st, err := s.state()
	if err != nil {
		return MarketState{}, err
	}
	collaterals, err := s.collaterals()
	if err != nil {
		return MarketState{}, err
	}
	out := MarketState{
		IsActivated:  st.Activated,
		Collaterals:  collaterals,
		ActivatedAt:  st.ActivatedAt,
		ConfigDigest: st.ConfigDigest,
		Pause: PauseConfiguration{
			SupplyPaused:   st.SupplyPaused,
			WithdrawPaused: st.WithdrawPaused,
		},
	}
	if st.OracleSet {
		oracleID := crypto.AddressFromArray(crypto.ContractPrefix, st.OracleContract)
		out.PythContractID = &oracleID
	}
	return out, nil
}

// Phase reports where the market is in its bootstrap sequence.
func (c *Contract) Phase() (Phase, error) {
	st, err := c.State()
	if err != nil {
		return "", err
	}
	switch {
	case st.IsActivated:
		return PhaseActive, nil
	case st.PythContractID != nil || len(st.Collaterals) > 0:
		return PhaseConfiguring, nil
	default:
		return PhaseUninitialized, nil
	}
}

// CollateralConfigurations lists registered collaterals in registration order.
func (c *Contract) CollateralConfigurations() ([]CollateralConfig, error) {
	var out []CollateralConfig
	err := c.view(func(s *store) error {
		var err error
		out, err = s.collaterals()
		return err
	})
	return out, err
}

// CollateralConfiguration returns the config registered for assetID.
func (c *Contract) CollateralConfiguration(assetID types.Bits256) (CollateralConfig, error) {
	var out CollateralConfig
	err := c.view(func(s *store) error {
		cfg, ok, err := s.collateral(assetID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownAsset, assetID)
		}
		out = cfg
		return nil
	})
	return out, err
}

// UserCollateral returns the balance of assetID supplied by user.
func (c *Contract) UserCollateral(user crypto.Address, assetID types.Bits256) (*big.Int, error) {
	var out *big.Int
	err := c.view(func(s *store) error {
		var err error
		out, err = s.balance(user.Array(), assetID)
		return err
	})
	return out, err
}

// TotalsCollateral returns the market-wide supplied amount of assetID.
func (c *Contract) TotalsCollateral(assetID types.Bits256) (*big.Int, error) {
	var out *big.Int
	err := c.view(func(s *store) error {
		var err error
		out, err = s.total(assetID)
		return err
	})
	return out, err
}

// Price returns the validated oracle price for feedID.
func (c *Contract) Price(feedID types.Bits256) (oracle.Price, error) {
	var quotes *quoteSource
	err := c.view(func(s *store) error {
		var err error
		quotes, err = c.quotes(s)
		return err
	})
	if err != nil {
		return oracle.Price{}, err
	}
	return quotes.price(feedID)
}
