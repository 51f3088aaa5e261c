// Package crypto implements the cryptographic primitives (C1): SECP256k1
// ECDSA sign/verify, SHA-256, and address derivation. These are the only
// functions allowed to touch raw key material; every other package works
// with the hex-encoded public keys, signatures, and addresses this package
// produces.
package crypto

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/pkg/errors"
)

// PrivateKey wraps a SECP256k1 private key.
type PrivateKey struct {
	key *btcec.PrivateKey
}

// PublicKey wraps a SECP256k1 public key.
type PublicKey struct {
	key *btcec.PublicKey
}

// GeneratePrivateKey generates a new random private key.
func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate private key")
	}
	return &PrivateKey{key: key}, nil
}

// ParsePrivateKeyHex parses a hex-encoded 32-byte private key.
func ParsePrivateKeyHex(hexKey string) (*PrivateKey, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, newError("malformed private key hex: %s", err)
	}
	if len(raw) != 32 {
		return nil, newError("private key must be 32 bytes, got %d", len(raw))
	}
	key, _ := btcec.PrivKeyFromBytes(raw)
	return &PrivateKey{key: key}, nil
}

// Serialize returns the raw 32-byte private key.
func (p *PrivateKey) Serialize() []byte {
	return p.key.Serialize()
}

// SerializeHex returns the hex-encoded private key.
func (p *PrivateKey) SerializeHex() string {
	return hex.EncodeToString(p.Serialize())
}

// PublicKey returns the uncompressed public key corresponding to this
// private key.
func (p *PrivateKey) PublicKey() *PublicKey {
	return &PublicKey{key: p.key.PubKey()}
}

// ParsePublicKeyHex parses a hex-encoded public key, in either compressed
// (33-byte) or uncompressed (65-byte) form.
func ParsePublicKeyHex(hexKey string) (*PublicKey, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, newError("malformed public key hex: %s", err)
	}
	key, err := btcec.ParsePubKey(raw)
	if err != nil {
		return nil, newError("malformed public key: %s", err)
	}
	return &PublicKey{key: key}, nil
}

// SerializeUncompressed returns the 65-byte uncompressed (0x04 || X || Y)
// public key encoding. Address derivation (spec §4.1) hashes exactly this
// form.
func (pk *PublicKey) SerializeUncompressed() []byte {
	return pk.key.SerializeUncompressed()
}

// SerializeUncompressedHex returns the hex-encoded uncompressed public key.
func (pk *PublicKey) SerializeUncompressedHex() string {
	return hex.EncodeToString(pk.SerializeUncompressed())
}

// Sha256 is the single hash primitive consensus code is allowed to use
// (spec C1: SHA-256 over canonical serialization).
func Sha256(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// Sha256Hex returns the hex-encoded SHA-256 digest of data.
func Sha256Hex(data []byte) string {
	return hex.EncodeToString(Sha256(data))
}
