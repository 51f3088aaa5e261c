package crypto

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// Sign produces a deterministic (RFC6979) ECDSA signature over a SHA-256
// digest, matching spec C1's "Sign: deterministic ... ECDSA over SHA-256 of
// the canonical serialization". Callers pass the already-hashed message
// (i.e. the transaction's calculate_hash() digest, not the raw bytes).
func Sign(priv *PrivateKey, digest []byte) (string, error) {
	if len(digest) != sha256DigestSize {
		return "", newError("digest must be %d bytes, got %d", sha256DigestSize, len(digest))
	}
	sig := ecdsa.Sign(priv.key, digest)
	return hex.EncodeToString(sig.Serialize()), nil
}

// VerifySignature verifies a hex-encoded ECDSA signature over digest using
// the given hex-encoded uncompressed public key.
func VerifySignature(publicKeyHex, signatureHex string, digest []byte) (bool, error) {
	pubKey, err := ParsePublicKeyHex(publicKeyHex)
	if err != nil {
		return false, err
	}

	sigBytes, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false, newError("malformed signature hex: %s", err)
	}

	sig, err := ecdsa.ParseDERSignature(sigBytes)
	if err != nil {
		return false, newError("malformed signature: %s", err)
	}

	return sig.Verify(digest, pubKey.key), nil
}

const sha256DigestSize = 32
