package zkwasm

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/zkwasm/zkwasm-go/internal/engine"
	"github.com/zkwasm/zkwasm-go/pkg/zkwasm/dispatch"
)

// maxRecordData bounds the number of entries in Record.Data.
const maxRecordData = 64

func (r Record) validate(op string) (engine.Address, error) {
	owner, err := decodeAddress(r.Owner)
	if err != nil {
		return owner, fmt.Errorf("record owner: %w", err)
	}
	if len(r.Data) > maxRecordData {
		return owner, invalid(op, "record data has %d entries, limit %d", len(r.Data), maxRecordData)
	}
	return owner, nil
}

func decodeRecord(plaintext []byte) (*Record, error) {
	dec := json.NewDecoder(bytes.NewReader(plaintext))
	dec.DisallowUnknownFields()
	var r Record
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("%w: record plaintext: %v", engine.ErrNotOwner, err)
	}
	return &r, nil
}

// EncryptRecord seals rec to recipient, which is either the owner's address
// or the owner's view key. The record owner must be the recipient.
func (b *Bindings) EncryptRecord(ctx context.Context, rec Record, recipient string) (string, error) {
	const op = "encrypt_record"
	return guarded(ctx, b, op, func() (string, error) {
		owner, err := rec.validate(op)
		if err != nil {
			return "", err
		}
		plaintext, err := json.Marshal(rec)
		if err != nil {
			return "", invalid(op, "encode record: %w", err)
		}

		var vk *engine.ViewKey
		switch {
		case strings.HasPrefix(recipient, ViewKeyPrefix):
			k, err := decodeViewKey(recipient)
			if err != nil {
				return "", err
			}
			vk = &k
		case strings.HasPrefix(recipient, AddressPrefix):
			addr, err := decodeAddress(recipient)
			if err != nil {
				return "", err
			}
			if encodeAddress(addr) != encodeAddress(owner) {
				return "", invalid(op, "record owner is not the recipient")
			}
		default:
			return "", invalid(op, "recipient must be an address or a view key")
		}

		ct, err := run(ctx, b, func(context.Context) ([]byte, error) {
			if vk != nil {
				key, err := b.engine.RecordKey(*vk)
				if err != nil {
					return nil, err
				}
				if subtle.ConstantTimeCompare(key[:], owner.Record[:]) != 1 {
					return nil, invalid(op, "record owner is not the recipient")
				}
			}
			return b.engine.Seal(plaintext, owner.Record, b.rng)
		})
		if err != nil {
			return "", err
		}
		return encode(RecordPrefix, ct), nil
	})
}

// DecryptRecord opens a record ciphertext with the owner's view key.
func (b *Bindings) DecryptRecord(ctx context.Context, ciphertext, viewKey string) (*Record, error) {
	return guarded(ctx, b, "decrypt_record", func() (*Record, error) {
		ct, err := decodeCiphertext(ciphertext)
		if err != nil {
			return nil, err
		}
		vk, err := decodeViewKey(viewKey)
		if err != nil {
			return nil, err
		}
		defer ZeroizeBytes(vk[:])
		return run(ctx, b, func(context.Context) (*Record, error) {
			return b.open(ct, vk)
		})
	})
}

func (b *Bindings) open(ct []byte, vk engine.ViewKey) (*Record, error) {
	plaintext, err := b.engine.Open(ct, vk)
	if err != nil {
		return nil, err
	}
	return decodeRecord(plaintext)
}

// ScanRecords trial-decrypts every ciphertext with viewKey and returns the
// records it owns, in input order. Ciphertexts are split across the pool.
func (b *Bindings) ScanRecords(ctx context.Context, viewKey string, ciphertexts []string) ([]OwnedRecord, error) {
	return guarded(ctx, b, "scan_records", func() ([]OwnedRecord, error) {
		vk, err := decodeViewKey(viewKey)
		if err != nil {
			return nil, err
		}
		defer ZeroizeBytes(vk[:])
		cts := make([][]byte, len(ciphertexts))
		for i, s := range ciphertexts {
			if cts[i], err = decodeCiphertext(s); err != nil {
				return nil, fmt.Errorf("ciphertext %d: %w", i, err)
			}
		}

		found, err := dispatch.Map(ctx, b.ctx.Dispatcher(), cts, func(ctx context.Context, _ int, ct []byte) (*Record, error) {
			r, err := b.open(ct, vk)
			if errors.Is(err, engine.ErrNotOwner) {
				return nil, nil
			}
			return r, err
		})
		if err != nil {
			return nil, err
		}
		owned := []OwnedRecord{}
		for i, r := range found {
			if r != nil {
				owned = append(owned, OwnedRecord{Index: i, Record: *r})
			}
		}
		return owned, nil
	})
}
