// Package engine defines the proving engine consumed by the binding layer and
// ships a reference implementation.
//
// The binding layer treats the engine as opaque: it hands it parsed programs,
// decoded keys and byte strings, and receives transitions, ciphertexts and
// signatures back. The reference engine combines BIP-340 Schnorr signatures
// over secp256k1 (btcec), X25519 + ChaCha20-Poly1305 record encryption
// (golang.org/x/crypto) and Groth16 proofs over BN254 (gnark).
//
// Engine methods must be safe for concurrent use. Key pairs and parsed
// programs are read-only once built and may be shared between shards.
package engine
