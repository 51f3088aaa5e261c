/*
Package base58 provides Encode and Decode for the modified base58 encoding.
It has no Base58Check functions; the version byte and checksum framing
described below is done by crypto/wif.go on top of Encode and Decode.

Modified Base58 Encoding

Standard base58 encoding is similar to standard base64 encoding except, as the
name implies, it uses a 58 character alphabet which results in an alphanumeric
string and allows some characters which are problematic for humans to be
excluded. Due to this, there can be various base58 alphabets.

The modified base58 alphabet used by this package omits the 0, O, I, and l
characters that look the same in many fonts and are therefore hard for humans
to distinguish.

Base58Check Encoding Scheme

The Base58Check encoding scheme adds a version byte and a 4-byte checksum to
a payload before base58-encoding it. xaid uses it for exactly one thing: the
optional WIF-style export of a private key by the xaid-keygen CLI helper, so
an operator can copy a key by hand without mistyping a character. It plays no
part in consensus: addresses themselves use the plain SHA-256 scheme spec'd
for the network (see package crypto), not Base58Check.
*/
package base58
