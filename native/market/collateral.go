package market

import (
	"fmt"
	"math/big"

	"swaylend/core/events"
	"swaylend/core/types"
	"swaylend/crypto"
	nativecommon "swaylend/native/common"
)

// SupplyCollateral credits amount of assetID to caller. Token custody is
// handled by the asset's own contract; this only records the position.
func (c *Contract) SupplyCollateral(caller crypto.Address, assetID types.Bits256, amount *big.Int) error {
	if c == nil {
		return ErrNotDeployed
	}
	return c.execute("supply_collateral", func(tx *txn) error {
		collateral, err := tx.openForValue(caller, assetID, amount, actionSupply)
		if err != nil {
			return err
		}
		if collateral.Paused {
			return fmt.Errorf("%w: %s", ErrAssetPaused, assetID)
		}
		total, err := tx.total(assetID)
		if err != nil {
			return err
		}
		newTotal := new(big.Int).Add(total, amount)
		if _, err := toUint256(newTotal); err != nil {
			return err
		}
		if collateral.SupplyCap != nil && collateral.SupplyCap.Sign() > 0 && newTotal.Cmp(collateral.SupplyCap) > 0 {
			return fmt.Errorf("%w: %s total %s above cap %s", ErrSupplyCapExceeded, assetID, newTotal, collateral.SupplyCap)
		}
		balance, err := tx.balance(caller.Array(), assetID)
		if err != nil {
			return err
		}
		balance.Add(balance, amount)
		if err := tx.putBalance(caller.Array(), assetID, balance); err != nil {
			return err
		}
		if err := tx.putTotal(assetID, newTotal); err != nil {
			return err
		}
		tx.emit(events.CollateralMoved{
			Kind:     events.TypeCollateralSupplied,
			Contract: tx.contract,
			Account:  caller,
			AssetID:  assetID,
			Amount:   new(big.Int).Set(amount),
			Balance:  new(big.Int).Set(balance),
		})
		return nil
	})
}

// WithdrawCollateral debits amount of assetID from caller.
func (c *Contract) WithdrawCollateral(caller crypto.Address, assetID types.Bits256, amount *big.Int) error {
	if c == nil {
		return ErrNotDeployed
	}
	return c.execute("withdraw_collateral", func(tx *txn) error {
		if _, err := tx.openForValue(caller, assetID, amount, actionWithdraw); err != nil {
			return err
		}
		balance, err := tx.balance(caller.Array(), assetID)
		if err != nil {
			return err
		}
		if balance.Cmp(amount) < 0 {
			return fmt.Errorf("%w: %s has %s of %s", ErrInsufficientCollateral, caller, balance, assetID)
		}
		total, err := tx.total(assetID)
		if err != nil {
			return err
		}
		balance.Sub(balance, amount)
		total.Sub(total, amount)
		if total.Sign() < 0 {
			return fmt.Errorf("market: totals of %s underflow", assetID)
		}
		if err := tx.putBalance(caller.Array(), assetID, balance); err != nil {
			return err
		}
		if err := tx.putTotal(assetID, total); err != nil {
			return err
		}
		tx.emit(events.CollateralMoved{
			Kind:     events.TypeCollateralWithdrawn,
			Contract: tx.contract,
			Account:  caller,
			AssetID:  assetID,
			Amount:   new(big.Int).Set(amount),
			Balance:  new(big.Int).Set(balance),
		})
		return nil
	})
}

// openForValue applies the checks shared by every value-moving call: the
// activation gate, the pause switch for action, a registered asset and a
// positive amount.
func (tx *txn) openForValue(caller crypto.Address, assetID types.Bits256, amount *big.Int, action string) (CollateralConfig, error) {
	if caller.IsZero() {
		return CollateralConfig{}, fmt.Errorf("%w: zero caller", ErrUnauthorized)
	}
	st, err := tx.state()
	if err != nil {
		return CollateralConfig{}, err
	}
	if !st.Activated {
		return CollateralConfig{}, ErrNotActivated
	}
	pause := PauseConfiguration{SupplyPaused: st.SupplyPaused, WithdrawPaused: st.WithdrawPaused}
	if err := nativecommon.Guard(pause, action); err != nil {
		return CollateralConfig{}, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return CollateralConfig{}, ErrInvalidAmount
	}
	if _, err := toUint256(amount); err != nil {
		return CollateralConfig{}, err
	}
	collateral, ok, err := tx.collateral(assetID)
	if err != nil {
		return CollateralConfig{}, err
	}
	if !ok {
		return CollateralConfig{}, fmt.Errorf("%w: %s", ErrUnknownAsset, assetID)
	}
	return collateral, nil
}
