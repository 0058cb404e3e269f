package engine

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

const viewKeyInfo = "zkwasm/view-key/v1"

// ParsePrivateKey validates a raw private key.
func ParsePrivateKey(b []byte) (PrivateKey, error) {
	var sk PrivateKey
	if len(b) != PrivateKeySize {
		return sk, fmt.Errorf("%w: private key must be %d bytes, got %d", ErrInvalidKey, PrivateKeySize, len(b))
	}
	var s btcec.ModNScalar
	if overflow := s.SetByteSlice(b); overflow || s.IsZero() {
		return sk, fmt.Errorf("%w: private key out of range", ErrInvalidKey)
	}
	copy(sk[:], b)
	return sk, nil
}

// ParseViewKey validates a raw view key. View keys are clamped scalars.
func ParseViewKey(b []byte) (ViewKey, error) {
	var vk ViewKey
	if len(b) != ViewKeySize {
		return vk, fmt.Errorf("%w: view key must be %d bytes, got %d", ErrInvalidKey, ViewKeySize, len(b))
	}
	if b[0]&7 != 0 || b[31]&0xc0 != 0x40 {
		return vk, fmt.Errorf("%w: view key is not clamped", ErrInvalidKey)
	}
	copy(vk[:], b)
	return vk, nil
}

// ParseAddress validates the 65-byte address form.
func ParseAddress(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressSize {
		return a, fmt.Errorf("%w: address must be %d bytes, got %d", ErrInvalidAddress, AddressSize, len(b))
	}
	if _, err := btcec.ParsePubKey(b[:33]); err != nil {
		return a, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	var zero [32]byte
	if subtle.ConstantTimeCompare(b[33:], zero[:]) == 1 {
		return a, fmt.Errorf("%w: empty record key", ErrInvalidAddress)
	}
	copy(a.Signing[:], b[:33])
	copy(a.Record[:], b[33:])
	return a, nil
}

// SeededReader returns a deterministic byte stream for seed. It backs
// reproducible account generation.
func SeededReader(seed uint64) io.Reader {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], seed)
	key := sha256.Sum256(append([]byte("zkwasm/seed/v1"), buf[:]...))
	var nonce [chacha20.NonceSize]byte
	c, err := chacha20.NewUnauthenticatedCipher(key[:], nonce[:])
	if err != nil {
		// Key and nonce sizes are fixed above.
		panic(err)
	}
	return &keystream{c: c}
}

type keystream struct {
	c *chacha20.Cipher
}

func (k *keystream) Read(p []byte) (int, error) {
	clear(p)
	k.c.XORKeyStream(p, p)
	return len(p), nil
}

func (r *Reference) NewPrivateKey(rng io.Reader) (PrivateKey, error) {
	var buf [PrivateKeySize]byte
	for {
		if _, err := io.ReadFull(rng, buf[:]); err != nil {
			return PrivateKey{}, fmt.Errorf("engine: read randomness: %w", err)
		}
		if sk, err := ParsePrivateKey(buf[:]); err == nil {
			clear(buf[:])
			return sk, nil
		}
	}
}

func (r *Reference) ViewKey(sk PrivateKey) (ViewKey, error) {
	var vk ViewKey
	kdf := hkdf.New(sha256.New, sk[:], nil, []byte(viewKeyInfo))
	if _, err := io.ReadFull(kdf, vk[:]); err != nil {
		return vk, fmt.Errorf("engine: derive view key: %w", err)
	}
	vk[0] &= 248
	vk[31] &= 127
	vk[31] |= 64
	return vk, nil
}

func (r *Reference) Address(sk PrivateKey) (Address, error) {
	var a Address
	_, pub := btcec.PrivKeyFromBytes(sk[:])
	copy(a.Signing[:], pub.SerializeCompressed())

	vk, err := r.ViewKey(sk)
	if err != nil {
		return a, err
	}
	a.Record, err = r.RecordKey(vk)
	return a, err
}

func (r *Reference) RecordKey(vk ViewKey) ([32]byte, error) {
	var out [32]byte
	pub, err := curve25519.X25519(vk[:], curve25519.Basepoint)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	copy(out[:], pub)
	return out, nil
}

// messageHash is the 32-byte digest BIP-340 signs.
func messageHash(msg []byte) []byte {
	h := sha256.Sum256(msg)
	return h[:]
}

func (r *Reference) Sign(sk PrivateKey, msg []byte) ([]byte, error) {
	priv, _ := btcec.PrivKeyFromBytes(sk[:])
	defer priv.Zero()
	sig, err := schnorr.Sign(priv, messageHash(msg))
	if err != nil {
		return nil, fmt.Errorf("engine: sign: %w", err)
	}
	return sig.Serialize(), nil
}

func (r *Reference) Verify(addr Address, msg, sig []byte) (bool, error) {
	pub, err := btcec.ParsePubKey(addr.Signing[:])
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	parsed, err := schnorr.ParseSignature(sig)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return parsed.Verify(messageHash(msg), pub), nil
}
