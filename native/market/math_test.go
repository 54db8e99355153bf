package market

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"swaylend/oracle"
)

func TestNormalizeValue(t *testing.T) {
	cases := []struct {
		name     string
		amount   uint64
		price    oracle.Price
		decimals uint32
		want     string
	}{
		{
			name:     "one usdc at one dollar",
			amount:   1_000_000,
			price:    oracle.Price{Price: 100_000_000, Exponent: -8},
			decimals: 6,
			want:     "1000000000000000000",
		},
		{
			name:     "half eth at two thousand",
			amount:   500_000_000,
			price:    oracle.Price{Price: 2_000_00000000, Exponent: -8},
			decimals: 9,
			want:     "1000000000000000000000",
		},
		{
			name:     "positive exponent",
			amount:   3,
			price:    oracle.Price{Price: 5, Exponent: 2},
			decimals: 0,
			want:     "1500000000000000000000",
		},
		{
			name:     "eighteen decimals truncates",
			amount:   1,
			price:    oracle.Price{Price: 1, Exponent: -8},
			decimals: 18,
			want:     "0",
		},
		{
			name:     "zero amount",
			amount:   0,
			price:    oracle.Price{Price: 42, Exponent: -2},
			decimals: 8,
			want:     "0",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeValue(uint256.NewInt(tc.amount), tc.price, tc.decimals)
			if err != nil {
				t.Fatalf("normalize: %v", err)
			}
			if got.Dec() != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got.Dec())
			}
		})
	}
}

func TestNormalizeValueRejectsBadInput(t *testing.T) {
	if _, err := NormalizeValue(uint256.NewInt(1), oracle.Price{Price: 0, Exponent: -8}, 6); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice for zero price, got %v", err)
	}
	if _, err := NormalizeValue(uint256.NewInt(1), oracle.Price{Price: -5, Exponent: -8}, 6); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice for negative price, got %v", err)
	}
	if _, err := NormalizeValue(uint256.NewInt(1), oracle.Price{Price: 1, Exponent: -8}, MaxDecimals+1); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for decimals, got %v", err)
	}
	huge := new(uint256.Int).Lsh(uint256.NewInt(1), 250)
	if _, err := NormalizeValue(huge, oracle.Price{Price: 1 << 20, Exponent: 0}, 0); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected ErrArithmeticOverflow, got %v", err)
	}
}

func TestDenormalizeValueInvertsNormalize(t *testing.T) {
	price := oracle.Price{Price: 2_000_00000000, Exponent: -8}
	value, err := NormalizeValue(uint256.NewInt(750_000_000), price, 9)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	amount, err := DenormalizeValue(value, price, 9)
	if err != nil {
		t.Fatalf("denormalize: %v", err)
	}
	if amount.Uint64() != 750_000_000 {
		t.Fatalf("expected 750000000, got %s", amount.Dec())
	}
}

func TestValidatePrice(t *testing.T) {
	fresh := oracle.Price{Price: 100, Exponent: -2, Confidence: 1, PublishTime: testNow}
	if err := ValidatePrice(fresh, testNow+60, 60, 0); err != nil {
		t.Fatalf("expected fresh price at the age bound, got %v", err)
	}
	if err := ValidatePrice(fresh, testNow+61, 60, 0); !errors.Is(err, ErrStalePrice) {
		t.Fatalf("expected ErrStalePrice, got %v", err)
	}
	if err := ValidatePrice(fresh, testNow-30, 60, 0); err != nil {
		t.Fatalf("publish time slightly ahead should be fresh, got %v", err)
	}
	if err := ValidatePrice(fresh, testNow-61, 60, 0); !errors.Is(err, ErrStalePrice) {
		t.Fatalf("expected publish time beyond now+maxAge to be stale, got %v", err)
	}
	yearAhead := oracle.Price{Price: 100, Exponent: -2, PublishTime: testNow + 365*24*3600}
	if err := ValidatePrice(yearAhead, testNow+300*24*3600, 60, 0); !errors.Is(err, ErrStalePrice) {
		t.Fatalf("expected far-future publish time to be stale, got %v", err)
	}
	if err := ValidatePrice(oracle.Price{Price: 100}, testNow, 60, 0); !errors.Is(err, ErrStalePrice) {
		t.Fatalf("expected missing publish time to be stale, got %v", err)
	}
	if err := ValidatePrice(oracle.Price{Price: 0, PublishTime: testNow}, testNow, 60, 0); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice, got %v", err)
	}
	wide := oracle.Price{Price: 100, Confidence: 2, PublishTime: testNow}
	if err := ValidatePrice(wide, testNow, 60, 100); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected wide confidence to be rejected, got %v", err)
	}
	if err := ValidatePrice(wide, testNow, 60, 200); err != nil {
		t.Fatalf("expected confidence at the bound to pass, got %v", err)
	}
}
