package crypto

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/xai-network/xaid/util/base58"
)

// wifVersion distinguishes a WIF-encoded xaid private key from other
// base58check payloads; it has no consensus meaning.
const wifVersion = 0x2F

// EncodeWIF renders a private key as a Base58Check string (version byte +
// key + 4-byte checksum) purely so an operator can write it down or paste
// it without a transcription error. It is never used on a consensus path;
// signing always happens from the raw 32-byte key.
func EncodeWIF(priv *PrivateKey) string {
	payload := append([]byte{wifVersion}, priv.Serialize()...)
	checksum := doubleSha256(payload)[:4]
	return base58.Encode(append(payload, checksum...))
}

// DecodeWIF parses a string produced by EncodeWIF back into a private key,
// rejecting anything with a bad checksum or wrong version byte.
func DecodeWIF(wif string) (*PrivateKey, error) {
	decoded := base58.Decode(wif)
	if decoded == nil || len(decoded) != 1+32+4 {
		return nil, newError("malformed WIF string")
	}

	payload := decoded[:len(decoded)-4]
	checksum := decoded[len(decoded)-4:]
	expected := doubleSha256(payload)[:4]
	for i := range checksum {
		if checksum[i] != expected[i] {
			return nil, newError("WIF checksum mismatch")
		}
	}

	if payload[0] != wifVersion {
		return nil, newError("unexpected WIF version byte 0x%02x", payload[0])
	}

	return ParsePrivateKeyHex(hex.EncodeToString(payload[1:]))
}

func doubleSha256(b []byte) []byte {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return second[:]
}
