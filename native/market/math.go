package market

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"swaylend/oracle"
)

const (
	wadDecimals = 18
	// maxPow10 is the largest exponent for which 10^n fits in 256 bits.
	maxPow10 = 77
	// maxPriceExponent bounds the exponents accepted from oracle feeds.
	maxPriceExponent = 64
)

var (
	pow10Table = buildPow10Table()

	// WAD is the fixed-point unit of every normalized value.
	WAD = new(uint256.Int).Set(pow10Table[wadDecimals])
)

func buildPow10Table() [maxPow10 + 1]*uint256.Int {
	var table [maxPow10 + 1]*uint256.Int
	table[0] = uint256.NewInt(1)
	ten := uint256.NewInt(10)
	for i := 1; i <= maxPow10; i++ {
		table[i] = new(uint256.Int).Mul(table[i-1], ten)
	}
	return table
}

func pow10(n int) (*uint256.Int, bool) {
	if n < 0 || n > maxPow10 {
		return nil, false
	}
	return new(uint256.Int).Set(pow10Table[n]), true
}

// ValidatePrice rejects non-positive prices, observations published more than
// maxAgeSeconds away from now in either direction and, when maxConfidenceBps
// is non-zero, prices whose confidence band is too wide.
func ValidatePrice(price oracle.Price, now, maxAgeSeconds, maxConfidenceBps uint64) error {
	if price.Price <= 0 {
		return fmt.Errorf("%w: price %d", ErrInvalidPrice, price.Price)
	}
	if price.Exponent > maxPriceExponent || price.Exponent < -maxPriceExponent {
		return fmt.Errorf("%w: exponent %d out of range", ErrInvalidPrice, price.Exponent)
	}
	if price.PublishTime == 0 {
		return fmt.Errorf("%w: missing publish time", ErrStalePrice)
	}
	if now > price.PublishTime && now-price.PublishTime > maxAgeSeconds {
		return fmt.Errorf("%w: age %ds exceeds %ds", ErrStalePrice, now-price.PublishTime, maxAgeSeconds)
	}
	if price.PublishTime > now && price.PublishTime-now > maxAgeSeconds {
		return fmt.Errorf("%w: published %ds ahead of block time", ErrStalePrice, price.PublishTime-now)
	}
	if maxConfidenceBps > 0 {
		conf := new(uint256.Int).Mul(uint256.NewInt(price.Confidence), uint256.NewInt(basisPoints))
		limit := new(uint256.Int).Mul(uint256.NewInt(uint64(price.Price)), uint256.NewInt(maxConfidenceBps))
		if conf.Gt(limit) {
			return fmt.Errorf("%w: confidence %d too wide for price %d", ErrInvalidPrice, price.Confidence, price.Price)
		}
	}
	return nil
}

// NormalizeValue converts amount base units of an asset with the given
// decimals into a WAD (1e18) fixed-point value using the oracle price
// mantissa and exponent:
//
//	value = amount * mantissa * 10^(18 + exponent - decimals)
//
// Division truncates toward zero. Overflow is reported rather than wrapped.
func NormalizeValue(amount *uint256.Int, price oracle.Price, decimals uint32) (*uint256.Int, error) {
	if amount == nil {
		return nil, fmt.Errorf("%w: nil amount", ErrInvalidAmount)
	}
	if price.Price <= 0 {
		return nil, fmt.Errorf("%w: price %d", ErrInvalidPrice, price.Price)
	}
	if price.Exponent > maxPriceExponent || price.Exponent < -maxPriceExponent {
		return nil, fmt.Errorf("%w: exponent %d out of range", ErrInvalidPrice, price.Exponent)
	}
	if decimals > MaxDecimals {
		return nil, fmt.Errorf("%w: decimals %d exceed %d", ErrInvalidConfig, decimals, MaxDecimals)
	}
	value, overflow := new(uint256.Int).MulOverflow(amount, uint256.NewInt(uint64(price.Price)))
	if overflow {
		return nil, fmt.Errorf("%w: amount times price", ErrArithmeticOverflow)
	}
	shift := wadDecimals + int(price.Exponent) - int(decimals)
	switch {
	case shift == 0 || value.IsZero():
		return value, nil
	case shift > 0:
		scale, ok := pow10(shift)
		if !ok {
			return nil, fmt.Errorf("%w: scale 10^%d", ErrArithmeticOverflow, shift)
		}
		if _, overflow := value.MulOverflow(value, scale); overflow {
			return nil, fmt.Errorf("%w: scaling by 10^%d", ErrArithmeticOverflow, shift)
		}
		return value, nil
	default:
		scale, ok := pow10(-shift)
		if !ok {
			return new(uint256.Int), nil
		}
		return value.Div(value, scale), nil
	}
}

// DenormalizeValue is the inverse of NormalizeValue: it converts a WAD value
// into base units of an asset priced at price with the given decimals.
func DenormalizeValue(value *uint256.Int, price oracle.Price, decimals uint32) (*uint256.Int, error) {
	if value == nil {
		return nil, fmt.Errorf("%w: nil value", ErrInvalidAmount)
	}
	one, ok := pow10(int(decimals))
	if !ok || decimals > MaxDecimals {
		return nil, fmt.Errorf("%w: decimals %d exceed %d", ErrInvalidConfig, decimals, MaxDecimals)
	}
	unitValue, err := NormalizeValue(one, price, decimals)
	if err != nil {
		return nil, err
	}
	if unitValue.IsZero() {
		return nil, fmt.Errorf("%w: price rounds to zero", ErrInvalidPrice)
	}
	out, overflow := new(uint256.Int).MulDivOverflow(value, one, unitValue)
	if overflow {
		return nil, fmt.Errorf("%w: denormalize", ErrArithmeticOverflow)
	}
	return out, nil
}

func applyBps(value *uint256.Int, bps uint64) (*uint256.Int, error) {
	out, overflow := new(uint256.Int).MulDivOverflow(value, uint256.NewInt(bps), uint256.NewInt(basisPoints))
	if overflow {
		return nil, fmt.Errorf("%w: applying %d bps", ErrArithmeticOverflow, bps)
	}
	return out, nil
}

func toUint256(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative amount %s", ErrInvalidAmount, v)
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("%w: %s exceeds 256 bits", ErrArithmeticOverflow, v)
	}
	return out, nil
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
