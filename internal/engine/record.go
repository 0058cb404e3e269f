package engine

import (
	"crypto/cipher"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

const recordInfo = "zkwasm/record/v1"

// MinCiphertextSize is the size of a sealed empty record: ephemeral public
// key, nonce and authentication tag.
const MinCiphertextSize = 32 + chacha20poly1305.NonceSize + chacha20poly1305.Overhead

// CheckCiphertext validates the framing of a sealed record without opening it.
func CheckCiphertext(b []byte) error {
	if len(b) < MinCiphertextSize {
		return fmt.Errorf("%w: %d bytes, need at least %d", ErrInvalidCiphertext, len(b), MinCiphertextSize)
	}
	return nil
}

func recordCipher(shared, ephemeral, recipient []byte) (cipher.AEAD, error) {
	salt := make([]byte, 0, 64)
	salt = append(salt, ephemeral...)
	salt = append(salt, recipient...)
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, salt, []byte(recordInfo)), key); err != nil {
		return nil, err
	}
	defer clear(key)
	return chacha20poly1305.New(key)
}

// Seal encrypts plaintext to the X25519 point recipient. The output is
// ephemeral public key || nonce || ciphertext; the ephemeral key is bound as
// associated data.
func (r *Reference) Seal(plaintext []byte, recipient [32]byte, rng io.Reader) ([]byte, error) {
	var eph [32]byte
	if _, err := io.ReadFull(rng, eph[:]); err != nil {
		return nil, fmt.Errorf("engine: read randomness: %w", err)
	}
	defer clear(eph[:])

	ephPub, err := curve25519.X25519(eph[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("engine: ephemeral key: %w", err)
	}
	shared, err := curve25519.X25519(eph[:], recipient[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	defer clear(shared)

	aead, err := recordCipher(shared, ephPub, recipient[:])
	if err != nil {
		return nil, fmt.Errorf("engine: record cipher: %w", err)
	}

	out := make([]byte, 0, MinCiphertextSize+len(plaintext))
	out = append(out, ephPub...)
	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := io.ReadFull(rng, nonce); err != nil {
		return nil, fmt.Errorf("engine: read randomness: %w", err)
	}
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, ephPub), nil
}

// Open decrypts a record sealed to vk's record key.
func (r *Reference) Open(ciphertext []byte, vk ViewKey) ([]byte, error) {
	if err := CheckCiphertext(ciphertext); err != nil {
		return nil, err
	}
	ephPub := ciphertext[:32]
	nonce := ciphertext[32 : 32+chacha20poly1305.NonceSize]
	sealed := ciphertext[32+chacha20poly1305.NonceSize:]

	recipient, err := r.RecordKey(vk)
	if err != nil {
		return nil, err
	}
	shared, err := curve25519.X25519(vk[:], ephPub)
	if err != nil {
		// Low-order ephemeral point: nobody can own this record.
		return nil, ErrNotOwner
	}
	defer clear(shared)

	aead, err := recordCipher(shared, ephPub, recipient[:])
	if err != nil {
		return nil, fmt.Errorf("engine: record cipher: %w", err)
	}
	plaintext, err := aead.Open(nil, nonce, sealed, ephPub)
	if err != nil {
		return nil, ErrNotOwner
	}
	return plaintext, nil
}
