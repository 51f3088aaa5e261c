package txn

import "fmt"

// Kind is the tagged sum of transaction types (spec §9 Design Notes:
// "represent as a tagged sum/enum TxKind"). Type-specific validation lives
// as a method on Kind rather than through dynamic dispatch.
type Kind string

const (
	// KindNormal is an ordinary value transfer.
	KindNormal Kind = "normal"
	// KindCoinbase is the block-reward-minting transaction at the start
	// of every block.
	KindCoinbase Kind = "coinbase"
	// KindContract is reserved for collaborator-layer contract calls; the
	// core only validates its baseline fields (no VM semantics, spec §1
	// Non-goals).
	KindContract Kind = "contract"
	// KindGovernance casts a governance vote recorded in Metadata.
	KindGovernance Kind = "governance_vote"
	// KindStake locks funds into the collaborator staking module.
	KindStake Kind = "stake"
	// KindUnstake releases previously staked funds.
	KindUnstake Kind = "unstake"
	// KindTimeCapsuleLock locks funds until a future unlock time recorded
	// in Metadata.
	KindTimeCapsuleLock Kind = "time_capsule_lock"
	// KindTradeSettlement settles an off-chain trade; like coinbase, it is
	// exempt from the signature requirement (spec §4.9).
	KindTradeSettlement Kind = "trade_settlement"
)

// knownKinds is used to reject an unrecognized tx_type at construction.
var knownKinds = map[Kind]bool{
	KindNormal:          true,
	KindCoinbase:        true,
	KindContract:        true,
	KindGovernance:      true,
	KindStake:           true,
	KindUnstake:         true,
	KindTimeCapsuleLock: true,
	KindTradeSettlement: true,
}

// RequiresSignature reports whether transactions of this kind must carry a
// valid signature (spec §4.9: "Signature: skipped for COINBASE and
// 'trade_settlement'; otherwise required").
func (k Kind) RequiresSignature() bool {
	return k != KindCoinbase && k != KindTradeSettlement
}

// ValidateTypeSpecific runs the kind's additional rules. These hooks are
// open-ended but must never override the baseline structural/crypto/UTXO/
// nonce checks performed before they run (spec §4.9).
func (k Kind) ValidateTypeSpecific(tx *Transaction) error {
	switch k {
	case KindTimeCapsuleLock:
		return validateTimeCapsuleLock(tx)
	case KindGovernance:
		return validateGovernanceVote(tx)
	default:
		return nil
	}
}

func validateTimeCapsuleLock(tx *Transaction) error {
	raw, ok := tx.Metadata["unlock_time"]
	if !ok {
		return newValidationError("metadata.unlock_time", "time_capsule_lock requires an unlock_time")
	}
	unlockTime, ok := asFloat64(raw)
	if !ok {
		return newValidationError("metadata.unlock_time", "unlock_time must be numeric")
	}
	if int64(unlockTime) <= tx.Timestamp {
		return newValidationError("metadata.unlock_time", "unlock_time must be in the future relative to the transaction timestamp")
	}
	return nil
}

var validGovernanceVotes = map[string]bool{
	"yes":     true,
	"no":      true,
	"abstain": true,
}

func validateGovernanceVote(tx *Transaction) error {
	raw, ok := tx.Metadata["vote"]
	if !ok {
		return newValidationError("metadata.vote", "governance_vote requires a vote field")
	}
	vote, ok := raw.(string)
	if !ok || !validGovernanceVotes[vote] {
		return newValidationError("metadata.vote", fmt.Sprintf("vote must be one of yes/no/abstain, got %v", raw))
	}
	return nil
}

func asFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
