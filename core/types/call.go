package types

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

var errUnsignedCall = errors.New("market call: missing signature")

// MarketCall is a signed invocation of a market contract entry point. The
// signer is the caller passed to the contract, so authorization never relies on
// an ambient identity.
type MarketCall struct {
	// ChainID binds the signature to one network.
	ChainID  uint64          `json:"chainId"`
	Contract string          `json:"contract"`
	Method   string          `json:"method"`
	Params   json.RawMessage `json:"params,omitempty"`
	Nonce    uint64          `json:"nonce"`
	R        *big.Int        `json:"r"`
	S        *big.Int        `json:"s"`
	V        *big.Int        `json:"v"`

	from []byte
}

// Hash returns the keccak256 digest covered by the signature.
func (c *MarketCall) Hash() ([]byte, error) {
	callData := struct {
		ChainID  uint64
		Contract string
		Method   string
		Params   json.RawMessage
		Nonce    uint64
	}{c.ChainID, strings.TrimSpace(c.Contract), strings.TrimSpace(c.Method), c.Params, c.Nonce}
	if len(callData.Params) == 0 {
		callData.Params = json.RawMessage("null")
	}

	b, err := json.Marshal(callData)
	if err != nil {
		return nil, err
	}
	return crypto.Keccak256(b), nil
}

func (c *MarketCall) Sign(privKey *ecdsa.PrivateKey) error {
	hash, err := c.Hash()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(hash, privKey)
	if err != nil {
		return err
	}
	c.R = new(big.Int).SetBytes(sig[:32])
	c.S = new(big.Int).SetBytes(sig[32:64])
	c.V = new(big.Int).SetBytes([]byte{sig[64] + 27})
	c.from = nil
	return nil
}

// From recovers the 20-byte signer address.
func (c *MarketCall) From() ([]byte, error) {
	if c.from != nil {
		return c.from, nil
	}
	if c.R == nil || c.S == nil || c.V == nil {
		return nil, errUnsignedCall
	}
	hash, err := c.Hash()
	if err != nil {
		return nil, err
	}
	rBytes, sBytes := c.R.Bytes(), c.S.Bytes()
	if len(rBytes) > 32 || len(sBytes) > 32 || c.V.Uint64() < 27 {
		return nil, errors.New("market call: malformed signature")
	}
	sig := make([]byte, 65)
	copy(sig[32-len(rBytes):32], rBytes)
	copy(sig[64-len(sBytes):64], sBytes)
	sig[64] = byte(c.V.Uint64() - 27)
	pubKey, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return nil, err
	}
	c.from = crypto.PubkeyToAddress(*pubKey).Bytes()
	return c.from, nil
}
