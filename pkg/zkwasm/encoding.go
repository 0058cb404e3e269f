package zkwasm

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/zkwasm/zkwasm-go/internal/engine"
)

// Prefixes of the host-facing string encodings.
const (
	PrivateKeyPrefix = "zkpriv1"
	ViewKeyPrefix    = "zkview1"
	AddressPrefix    = "zk1"
	SignaturePrefix  = "zksig1"
	RecordPrefix     = "zkrec1"
)

func encode(prefix string, b []byte) string {
	return prefix + hex.EncodeToString(b)
}

// decodePrefixed strips prefix and hex-decodes the rest. sentinel classifies
// the failure.
func decodePrefixed(s, prefix, what string, sentinel error) ([]byte, error) {
	body, ok := strings.CutPrefix(strings.TrimSpace(s), prefix)
	if !ok {
		return nil, fmt.Errorf("%w: %s must start with %q", sentinel, what, prefix)
	}
	raw, err := hex.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not valid hex", sentinel, what)
	}
	return raw, nil
}

func decodePrivateKey(s string) (engine.PrivateKey, error) {
	raw, err := decodePrefixed(s, PrivateKeyPrefix, "private key", engine.ErrInvalidKey)
	if err != nil {
		return engine.PrivateKey{}, err
	}
	defer ZeroizeBytes(raw)
	return engine.ParsePrivateKey(raw)
}

func decodeViewKey(s string) (engine.ViewKey, error) {
	raw, err := decodePrefixed(s, ViewKeyPrefix, "view key", engine.ErrInvalidKey)
	if err != nil {
		return engine.ViewKey{}, err
	}
	defer ZeroizeBytes(raw)
	return engine.ParseViewKey(raw)
}

func decodeAddress(s string) (engine.Address, error) {
	raw, err := decodePrefixed(s, AddressPrefix, "address", engine.ErrInvalidAddress)
	if err != nil {
		return engine.Address{}, err
	}
	return engine.ParseAddress(raw)
}

func decodeSignature(s string) ([]byte, error) {
	raw, err := decodePrefixed(s, SignaturePrefix, "signature", engine.ErrInvalidSignature)
	if err != nil {
		return nil, err
	}
	if len(raw) != engine.SignatureSize {
		return nil, fmt.Errorf("%w: signature must be %d bytes, got %d", engine.ErrInvalidSignature, engine.SignatureSize, len(raw))
	}
	return raw, nil
}

func decodeCiphertext(s string) ([]byte, error) {
	raw, err := decodePrefixed(s, RecordPrefix, "record ciphertext", engine.ErrInvalidCiphertext)
	if err != nil {
		return nil, err
	}
	if err := engine.CheckCiphertext(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func encodePrivateKey(sk engine.PrivateKey) string { return encode(PrivateKeyPrefix, sk[:]) }

func encodeViewKey(vk engine.ViewKey) string { return encode(ViewKeyPrefix, vk[:]) }

func encodeAddress(a engine.Address) string { return encode(AddressPrefix, a.Bytes()) }
