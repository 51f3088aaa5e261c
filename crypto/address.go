package crypto

import (
	"encoding/hex"
	"regexp"
)

// Network identifies which XAI network an address belongs to. Address
// derivation embeds the network tag directly in the address prefix so a
// mainnet address can never be mistaken for a testnet one.
type Network int

const (
	// Mainnet is the production network.
	Mainnet Network = iota
	// Testnet is the test network.
	Testnet
)

// Prefix returns the address prefix associated with the network.
func (n Network) Prefix() string {
	switch n {
	case Testnet:
		return "TXAI"
	default:
		return "XAI"
	}
}

const (
	// CoinbaseAddress is the sentinel sender of every coinbase transaction;
	// it is not derived from any key. A genesis block without allocations
	// pays its zero-amount placeholder output to this address.
	CoinbaseAddress = "COINBASE"

	// addressHashHexLen is the number of hex characters of the SHA-256
	// digest retained in an address (spec §3: "take first 40 hex chars").
	addressHashHexLen = 40
)

// ReservedModuleAddresses are well-known sentinel addresses reserved for
// protocol-level bookkeeping (e.g. fee burns, treasury); they behave like
// ordinary addresses for balance/UTXO purposes but are never derived from a
// signing key.
var ReservedModuleAddresses = map[string]bool{
	"XAI_TREASURY": true,
	"XAI_BURN":     true,
}

var addressPattern = regexp.MustCompile(`^(XAI|TXAI)[A-Fa-f0-9]{40}$`)

// DeriveAddress computes the address for an uncompressed public key under
// the given network: SHA-256(uncompressed pubkey bytes), first 40 hex
// chars, prefixed with the network tag (spec §3, §4.1).
func DeriveAddress(pub *PublicKey, network Network) string {
	digest := Sha256Hex(pub.SerializeUncompressed())
	return network.Prefix() + digest[:addressHashHexLen]
}

// IsValidAddressFormat reports whether addr matches the network address
// pattern, or is one of the reserved sentinel addresses (COINBASE or a
// module address). It does not verify that the address was actually
// derived from any particular key.
func IsValidAddressFormat(addr string) bool {
	if addr == CoinbaseAddress || ReservedModuleAddresses[addr] {
		return true
	}
	return addressPattern.MatchString(addr)
}

// AddressNetwork returns the network a well-formed address belongs to.
func AddressNetwork(addr string) (Network, bool) {
	switch {
	case len(addr) > 4 && addr[:4] == "TXAI":
		return Testnet, true
	case len(addr) > 3 && addr[:3] == "XAI":
		return Mainnet, true
	default:
		return Mainnet, false
	}
}

// verifyAddressMatchesKey recomputes the address from the given public key
// and checks it against the claimed sender address (used by signature
// verification to bind a signature to the address it claims to be from).
func verifyAddressMatchesKey(claimedAddress string, pub *PublicKey) bool {
	network, ok := AddressNetwork(claimedAddress)
	if !ok {
		return false
	}
	return DeriveAddress(pub, network) == claimedAddress
}

// VerifyAddressMatchesKey is the exported form of verifyAddressMatchesKey,
// used by the transaction validator (C9) to ensure the signer's derived
// address equals the transaction's declared sender.
func VerifyAddressMatchesKey(claimedAddress, publicKeyHex string) (bool, error) {
	pub, err := ParsePublicKeyHex(publicKeyHex)
	if err != nil {
		return false, err
	}
	return verifyAddressMatchesKey(claimedAddress, pub), nil
}

// MustDecodeHex is a small helper for tests and CLI tools that panics on
// malformed hex; never used on a path that handles untrusted input.
func MustDecodeHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}
