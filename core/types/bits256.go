package types

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Bits256 is an opaque 256-bit identifier used for asset ids and oracle price
// feed ids.
type Bits256 [32]byte

// ParseBits256 decodes a 0x-prefixed (or bare) 64 character hex string.
func ParseBits256(value string) (Bits256, error) {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "0x") && !strings.HasPrefix(trimmed, "0X") {
		trimmed = "0x" + trimmed
	}
	raw, err := hexutil.Decode(trimmed)
	if err != nil {
		return Bits256{}, fmt.Errorf("bits256: %w", err)
	}
	if len(raw) != len(Bits256{}) {
		return Bits256{}, fmt.Errorf("bits256: expected 32 bytes, got %d", len(raw))
	}
	var out Bits256
	copy(out[:], raw)
	return out, nil
}

// MustParseBits256 is ParseBits256 for constants; it panics on bad input.
func MustParseBits256(value string) Bits256 {
	out, err := ParseBits256(value)
	if err != nil {
		panic(err)
	}
	return out
}

// IsZero reports whether every byte is zero.
func (b Bits256) IsZero() bool {
	return b == Bits256{}
}

// String renders the identifier as 0x-prefixed lowercase hex.
func (b Bits256) String() string {
	return hexutil.Encode(b[:])
}

// MarshalText implements encoding.TextMarshaler.
func (b Bits256) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *Bits256) UnmarshalText(text []byte) error {
	parsed, err := ParseBits256(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}
