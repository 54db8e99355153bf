package market

import (
	"errors"

	nativecommon "swaylend/native/common"
)

var (
	ErrInvalidConfig          = errors.New("market: invalid config")
	ErrUnauthorized           = errors.New("market: unauthorized")
	ErrDuplicateAsset         = errors.New("market: collateral asset already registered")
	ErrOracleNotConfigured    = errors.New("market: oracle contract not configured")
	ErrAlreadyActivated       = errors.New("market: already activated")
	ErrNotActivated           = errors.New("market: not activated")
	ErrStalePrice             = errors.New("market: stale oracle price")
	ErrInvalidPrice           = errors.New("market: invalid oracle price")
	ErrUnknownAsset           = errors.New("market: unknown collateral asset")
	ErrAssetPaused            = errors.New("market: collateral asset paused")
	ErrSupplyCapExceeded      = errors.New("market: collateral supply cap exceeded")
	ErrInsufficientCollateral = errors.New("market: insufficient collateral balance")
	ErrInvalidAmount          = errors.New("market: amount must be positive")
	ErrArithmeticOverflow     = errors.New("market: arithmetic overflow")
	ErrAlreadyDeployed        = errors.New("market: contract already deployed")
	ErrNotDeployed            = errors.New("market: contract not deployed")
	ErrInvalidNonce           = errors.New("market: invalid call nonce")

	// ErrActionPaused is shared with the other native modules so callers can
	// match pauses uniformly.
	ErrActionPaused = nativecommon.ErrActionPaused
)

// ErrorCode classifies err into a stable label used for metrics and RPC
// error payloads.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidConfig):
		return "invalid_config"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrDuplicateAsset):
		return "duplicate_asset"
	case errors.Is(err, ErrOracleNotConfigured):
		return "oracle_not_configured"
	case errors.Is(err, ErrAlreadyActivated):
		return "already_activated"
	case errors.Is(err, ErrNotActivated):
		return "not_activated"
	case errors.Is(err, ErrStalePrice):
		return "stale_price"
	case errors.Is(err, ErrInvalidPrice):
		return "invalid_price"
	case errors.Is(err, ErrUnknownAsset):
		return "unknown_asset"
	case errors.Is(err, ErrAssetPaused):
		return "asset_paused"
	case errors.Is(err, ErrActionPaused):
		return "action_paused"
	case errors.Is(err, ErrSupplyCapExceeded):
		return "supply_cap_exceeded"
	case errors.Is(err, ErrInsufficientCollateral):
		return "insufficient_collateral"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrArithmeticOverflow):
		return "arithmetic_overflow"
	case errors.Is(err, ErrAlreadyDeployed):
		return "already_deployed"
	case errors.Is(err, ErrNotDeployed):
		return "not_deployed"
	case errors.Is(err, ErrInvalidNonce):
		return "invalid_nonce"
	default:
		return "internal"
	}
}
