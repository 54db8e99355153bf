package types

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

func TestParseBits256(t *testing.T) {
	id, err := ParseBits256("0xeaa020c61cc479712813461ce153894a96a6c00b21ed0cfc2798d1f9a9e9c94a")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if id.IsZero() {
		t.Fatalf("expected non-zero id")
	}
	if id.String() != "0xeaa020c61cc479712813461ce153894a96a6c00b21ed0cfc2798d1f9a9e9c94a" {
		t.Fatalf("unexpected string %s", id)
	}
	if _, err := ParseBits256("0x1234"); err == nil {
		t.Fatalf("expected length error")
	}

	encoded, err := json.Marshal(id)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Bits256
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded != id {
		t.Fatalf("json round trip mismatch")
	}
}

func TestMarketCallRecoversSigner(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	call := &MarketCall{
		ChainID:  7,
		Contract: "fuelc1xyz",
		Method:   "market_activateContract",
		Nonce:    3,
	}
	if _, err := call.From(); err == nil {
		t.Fatalf("expected error for unsigned call")
	}
	if err := call.Sign(key); err != nil {
		t.Fatalf("sign: %v", err)
	}
	from, err := call.From()
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if !bytes.Equal(from, crypto.PubkeyToAddress(key.PublicKey).Bytes()) {
		t.Fatalf("recovered wrong signer")
	}

	tampered := *call
	tampered.from = nil
	tampered.Nonce = 4
	other, err := tampered.From()
	if err == nil && bytes.Equal(other, from) {
		t.Fatalf("tampered call must not recover the original signer")
	}

	foreign := *call
	foreign.from = nil
	foreign.ChainID = call.ChainID + 1
	other, err = foreign.From()
	if err == nil && bytes.Equal(other, from) {
		t.Fatalf("call moved to another chain must not recover the original signer")
	}
}
