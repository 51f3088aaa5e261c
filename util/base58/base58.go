package base58

import (
	"math/big"
)

const alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

var decodeTable [256]int64

func init() {
	for i := range decodeTable {
		decodeTable[i] = -1
	}
	for i, c := range alphabet {
		decodeTable[c] = int64(i)
	}
}

// Encode encodes a byte slice into a modified base58 string.
func Encode(b []byte) string {
	x := new(big.Int)
	x.SetBytes(b)

	answer := make([]byte, 0, len(b)*138/100+1)
	mod := new(big.Int)
	radix := big.NewInt(58)
	zero := big.NewInt(0)
	for x.Cmp(zero) > 0 {
		x.DivMod(x, radix, mod)
		answer = append(answer, alphabet[mod.Int64()])
	}

	for _, i := range b {
		if i != 0 {
			break
		}
		answer = append(answer, alphabet[0])
	}

	reverse(answer)
	return string(answer)
}

func reverse(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

// Decode decodes a modified base58 string into a byte slice. It returns nil
// if the string contains a character outside the alphabet.
func Decode(s string) []byte {
	answer := big.NewInt(0)
	radix := big.NewInt(58)
	for _, r := range s {
		if r < 0 || r >= int32(len(decodeTable)) {
			return nil
		}
		d := decodeTable[r]
		if d == -1 {
			return nil
		}
		answer.Mul(answer, radix)
		answer.Add(answer, big.NewInt(d))
	}

	decoded := answer.Bytes()
	numZeros := 0
	for numZeros < len(s) && s[numZeros] == alphabet[0] {
		numZeros++
	}

	decodedLen := numZeros + len(decoded)
	result := make([]byte, decodedLen)
	copy(result[numZeros:], decoded)
	return result
}
