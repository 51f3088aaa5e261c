package crypto

import "fmt"

// Error is raised for malformed keys or signatures (spec C1: "Fails with
// CryptoError on malformed keys or signatures").
type Error struct {
	reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("crypto: %s", e.reason)
}

func newError(format string, args ...interface{}) *Error {
	return &Error{reason: fmt.Sprintf(format, args...)}
}
