package zkwasm

import (
	"context"

	"github.com/zkwasm/zkwasm-go/internal/engine"
)

// GeneratePrivateKey returns a new private key. A non-nil seed makes the
// key reproducible: the same seed yields the same key in every session.
func (b *Bindings) GeneratePrivateKey(ctx context.Context, seed *uint64) (string, error) {
	return guarded(ctx, b, "generate_private_key", func() (string, error) {
		rng := b.rng
		if seed != nil {
			rng = engine.SeededReader(*seed)
		}
		sk, err := run(ctx, b, func(context.Context) (engine.PrivateKey, error) {
			return b.engine.NewPrivateKey(rng)
		})
		if err != nil {
			return "", err
		}
		defer ZeroizeBytes(sk[:])
		return encodePrivateKey(sk), nil
	})
}

// DeriveViewKey returns the view key of a private key.
func (b *Bindings) DeriveViewKey(ctx context.Context, privateKey string) (string, error) {
	return guarded(ctx, b, "derive_view_key", func() (string, error) {
		sk, err := decodePrivateKey(privateKey)
		if err != nil {
			return "", err
		}
		defer ZeroizeBytes(sk[:])
		vk, err := run(ctx, b, func(context.Context) (engine.ViewKey, error) {
			return b.engine.ViewKey(sk)
		})
		if err != nil {
			return "", err
		}
		return encodeViewKey(vk), nil
	})
}

// DeriveAddress returns the address of a private key.
func (b *Bindings) DeriveAddress(ctx context.Context, privateKey string) (string, error) {
	return guarded(ctx, b, "derive_address", func() (string, error) {
		sk, err := decodePrivateKey(privateKey)
		if err != nil {
			return "", err
		}
		defer ZeroizeBytes(sk[:])
		addr, err := run(ctx, b, func(context.Context) (engine.Address, error) {
			return b.engine.Address(sk)
		})
		if err != nil {
			return "", err
		}
		return encodeAddress(addr), nil
	})
}

// Sign signs message with a private key.
func (b *Bindings) Sign(ctx context.Context, privateKey, message string) (string, error) {
	return guarded(ctx, b, "sign", func() (string, error) {
		sk, err := decodePrivateKey(privateKey)
		if err != nil {
			return "", err
		}
		defer ZeroizeBytes(sk[:])
		sig, err := run(ctx, b, func(context.Context) ([]byte, error) {
			return b.engine.Sign(sk, []byte(message))
		})
		if err != nil {
			return "", err
		}
		return encode(SignaturePrefix, sig), nil
	})
}

// VerifySignature reports whether signature is valid for message under
// address. A well-formed signature that does not verify yields false, not an
// error.
func (b *Bindings) VerifySignature(ctx context.Context, address, message, signature string) (bool, error) {
	return guarded(ctx, b, "verify_signature", func() (bool, error) {
		addr, err := decodeAddress(address)
		if err != nil {
			return false, err
		}
		sig, err := decodeSignature(signature)
		if err != nil {
			return false, err
		}
		return run(ctx, b, func(context.Context) (bool, error) {
			return b.engine.Verify(addr, []byte(message), sig)
		})
	})
}

// Account is a private key with everything derived from it.
type Account struct {
	PrivateKey string `json:"private_key"`
	ViewKey    string `json:"view_key"`
	Address    string `json:"address"`
}

// NewAccount generates a private key and derives its view key and address.
func (b *Bindings) NewAccount(ctx context.Context, seed *uint64) (*Account, error) {
	sk, err := b.GeneratePrivateKey(ctx, seed)
	if err != nil {
		return nil, err
	}
	vk, err := b.DeriveViewKey(ctx, sk)
	if err != nil {
		return nil, err
	}
	addr, err := b.DeriveAddress(ctx, sk)
	if err != nil {
		return nil, err
	}
	return &Account{PrivateKey: sk, ViewKey: vk, Address: addr}, nil
}
