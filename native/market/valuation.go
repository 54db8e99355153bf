package market

import (
	"fmt"

	"github.com/holiman/uint256"

	"swaylend/crypto"
)

// CollateralValue sums the WAD-denominated value of every collateral position
// held by user, iterating collaterals in registration order. Assets the user
// does not hold are skipped without an oracle read.
func (c *Contract) CollateralValue(user crypto.Address) (*uint256.Int, error) {
	liquidity, err := c.AccountLiquidity(user)
	if err != nil {
		return nil, err
	}
	return liquidity.CollateralValue, nil
}

type position struct {
	collateral CollateralConfig
	amount     *uint256.Int
}

// AccountLiquidity values user's collateral and applies the borrow and
// liquidation collateral factors of each asset. Balances are read under the
// market lock; prices are fetched after it is released.
func (c *Contract) AccountLiquidity(user crypto.Address) (AccountLiquidity, error) {
	var (
		quotes    *quoteSource
		positions []position
	)
	err := c.view(func(s *store) error {
		collaterals, err := s.collaterals()
		if err != nil {
			return err
		}
		for _, collateral := range collaterals {
			balance, err := s.balance(user.Array(), collateral.AssetID)
			if err != nil {
				return err
			}
			if balance.Sign() == 0 {
				continue
			}
			amount, err := toUint256(balance)
			if err != nil {
				return err
			}
			positions = append(positions, position{collateral: collateral, amount: amount})
		}
		quotes, err = c.quotes(s)
		return err
	})
	if err != nil {
		return AccountLiquidity{}, err
	}

	out := AccountLiquidity{
		CollateralValue:  new(uint256.Int),
		BorrowCapacity:   new(uint256.Int),
		LiquidationLimit: new(uint256.Int),
	}
	for _, pos := range positions {
		price, err := quotes.price(pos.collateral.PriceFeedID)
		if err != nil {
			return AccountLiquidity{}, fmt.Errorf("collateral %s: %w", pos.collateral.AssetID, err)
		}
		value, err := NormalizeValue(pos.amount, price, pos.collateral.Decimals)
		if err != nil {
			return AccountLiquidity{}, err
		}
		borrow, err := applyBps(value, pos.collateral.BorrowCollateralFactorBps)
		if err != nil {
			return AccountLiquidity{}, err
		}
		liquidate, err := applyBps(value, pos.collateral.LiquidateCollateralFactorBps)
		if err != nil {
			return AccountLiquidity{}, err
		}
		if err := addChecked(out.CollateralValue, value); err != nil {
			return AccountLiquidity{}, err
		}
		if err := addChecked(out.BorrowCapacity, borrow); err != nil {
			return AccountLiquidity{}, err
		}
		if err := addChecked(out.LiquidationLimit, liquidate); err != nil {
			return AccountLiquidity{}, err
		}
	}
	return out, nil
}

// ConvertToBase converts a WAD value into base asset units at the current
// base asset price.
func (c *Contract) ConvertToBase(value *uint256.Int) (*uint256.Int, error) {
	var (
		cfg    MarketConfig
		quotes *quoteSource
	)
	err := c.view(func(s *store) error {
		var err error
		if cfg, err = s.config(); err != nil {
			return err
		}
		quotes, err = c.quotes(s)
		return err
	})
	if err != nil {
		return nil, err
	}
	price, err := quotes.price(cfg.BaseAssetPriceFeedID)
	if err != nil {
		return nil, err
	}
	return DenormalizeValue(value, price, cfg.BaseAssetDecimals)
}

func addChecked(acc, v *uint256.Int) error {
	if _, overflow := acc.AddOverflow(acc, v); overflow {
		return fmt.Errorf("%w: summing collateral value", ErrArithmeticOverflow)
	}
	return nil
}
