package validator

import "fmt"

// Code enumerates the transaction validator's rejection reasons (spec
// §4.9), surfaced to the mempool (C5) for ban accounting.
type Code string

const (
	CodeBadField          Code = "bad_field"
	CodeBadSignature      Code = "bad_signature"
	CodeBadNonce          Code = "bad_nonce"
	CodeDoubleSpend       Code = "double_spend"
	CodeInsufficientFunds Code = "insufficient_funds"
	CodeTypeRuleViolation Code = "type_rule_violation"
)

// Error is the validator's uniform error type, carrying an enumerated Code
// alongside a human-readable reason.
type Error struct {
	Code   Code
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

func newError(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Reason: fmt.Sprintf(format, args...)}
}
