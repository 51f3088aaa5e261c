package txn

import "fmt"

// ValidationError indicates a structurally or semantically malformed
// transaction field (spec C2).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid transaction field %q: %s", e.Field, e.Reason)
}

func newValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// MissingSignatureError is returned when a non-coinbase transaction is
// missing its signature or public key.
type MissingSignatureError struct{}

func (e *MissingSignatureError) Error() string { return "transaction is missing a signature" }

// InvalidSignatureError is returned when a signature fails cryptographic
// verification or does not match the claimed sender address.
type InvalidSignatureError struct {
	Reason string
}

func (e *InvalidSignatureError) Error() string {
	return fmt.Sprintf("invalid transaction signature: %s", e.Reason)
}

// SignatureCryptoError wraps a lower-level crypto failure encountered while
// verifying a signature (malformed key, malformed signature bytes).
type SignatureCryptoError struct {
	Cause error
}

func (e *SignatureCryptoError) Error() string {
	return fmt.Sprintf("signature crypto error: %s", e.Cause)
}

func (e *SignatureCryptoError) Unwrap() error { return e.Cause }
