// Package validator implements the transaction validator (C9): the
// layered, early-exit checks a transaction must pass to be admitted to
// the mempool or included in a block.
package validator

import (
	"time"

	"github.com/xai-network/xaid/noncetracker"
	"github.com/xai-network/xaid/txn"
	"github.com/xai-network/xaid/utxo"
)

// amountEpsilon tolerates float64 accumulation error in the sum_in ≥
// sum_out + fee conservation check (spec §4.9).
const amountEpsilon = 1e-9

// Config holds the validator's timestamp policy (spec §4.9).
type Config struct {
	MaxAge        time.Duration
	MaxFutureSkew time.Duration
}

// DefaultConfig returns reasonable timestamp bounds.
func DefaultConfig() Config {
	return Config{
		MaxAge:        2 * time.Hour,
		MaxFutureSkew: 2 * time.Minute,
	}
}

// Validator checks transactions against the confirmed UTXO set and nonce
// tracker. It satisfies mempool.Validator.
type Validator struct {
	cfg          Config
	utxoSet      *utxo.Set
	nonces       *noncetracker.Tracker
	chainContext string
	now          func() time.Time
}

// New constructs a validator bound to the given chain's UTXO set, nonce
// tracker, and network chain-context tag.
func New(cfg Config, utxoSet *utxo.Set, nonces *noncetracker.Tracker, chainContext string) *Validator {
	return &Validator{cfg: cfg, utxoSet: utxoSet, nonces: nonces, chainContext: chainContext, now: time.Now}
}

// resolvedInput is an input resolved either against the confirmed UTXO set
// or against outputs created earlier in the same block (spec §4.9: "intra-
// block parent outputs accepted").
type resolvedInput struct {
	amount float64
	owner  string
}

// Validate runs every layered check against the confirmed chain state
// (used by the mempool, where no intra-block context exists).
func (v *Validator) Validate(tx *txn.Transaction) error {
	return v.validate(tx, nil)
}

// ValidateInBlock runs every check, additionally resolving inputs against
// pendingOutputs — outputs created earlier in the same candidate or
// incoming block (spec §4.7, §4.9: "intra-block chaining allowed").
func (v *Validator) ValidateInBlock(tx *txn.Transaction, pendingOutputs map[utxo.Outpoint]*utxo.Entry) error {
	return v.validate(tx, pendingOutputs)
}

func (v *Validator) validate(tx *txn.Transaction, pendingOutputs map[utxo.Outpoint]*utxo.Entry) error {
	if err := v.checkStructural(tx); err != nil {
		return err
	}
	if err := v.checkTimestamp(tx); err != nil {
		return err
	}
	if err := v.checkFields(tx); err != nil {
		return err
	}
	if err := v.checkHash(tx); err != nil {
		return err
	}
	if err := v.checkSignature(tx); err != nil {
		return err
	}
	if !tx.IsCoinbase() {
		if err := v.checkUTXO(tx, pendingOutputs); err != nil {
			return err
		}
		if err := v.checkNonce(tx); err != nil {
			return err
		}
	}
	if err := tx.TxType.ValidateTypeSpecific(tx); err != nil {
		return newError(CodeTypeRuleViolation, "%s", err)
	}
	return nil
}

func (v *Validator) checkStructural(tx *txn.Transaction) error {
	if tx.Sender == "" {
		return newError(CodeBadField, "sender is required")
	}
	if tx.TxType == "" {
		return newError(CodeBadField, "tx_type is required")
	}
	if _, err := tx.CalculateHash(v.chainContext); err != nil {
		return newError(CodeBadField, "transaction is not JSON-serializable: %s", err)
	}
	if tx.Size() > txn.MaxSerializedBytes {
		return newError(CodeBadField, "serialized size exceeds the maximum")
	}
	return nil
}

func (v *Validator) checkTimestamp(tx *txn.Transaction) error {
	now := v.now()
	txTime := time.Unix(tx.Timestamp, 0)
	if now.Sub(txTime) > v.cfg.MaxAge {
		return newError(CodeBadField, "timestamp is older than the maximum age")
	}
	if txTime.Sub(now) > v.cfg.MaxFutureSkew {
		return newError(CodeBadField, "timestamp is too far in the future")
	}
	return nil
}

func (v *Validator) checkFields(tx *txn.Transaction) error {
	if tx.Amount < 0 || tx.Amount > txn.MaxSupply {
		return newError(CodeBadField, "amount out of range")
	}
	if tx.Fee < 0 || tx.Fee > txn.MaxFee {
		return newError(CodeBadField, "fee out of range")
	}
	for _, out := range tx.Outputs {
		if out.Amount < 0 || out.Amount > txn.MaxSupply {
			return newError(CodeBadField, "output amount out of range")
		}
	}
	return nil
}

func (v *Validator) checkHash(tx *txn.Transaction) error {
	expected, err := tx.CalculateHash(v.chainContext)
	if err != nil {
		return newError(CodeBadField, "unable to recompute hash: %s", err)
	}
	if tx.IsCoinbase() {
		// Legacy coinbase txids are normalized silently rather than
		// rejected (spec §4.9).
		tx.TxID = expected
		return nil
	}
	if tx.TxID != expected {
		return newError(CodeBadField, "txid does not match recomputed hash")
	}
	return nil
}

func (v *Validator) checkSignature(tx *txn.Transaction) error {
	if err := tx.VerifySignature(v.chainContext); err != nil {
		return newError(CodeBadSignature, "%s", err)
	}
	return nil
}

func (v *Validator) checkUTXO(tx *txn.Transaction, pendingOutputs map[utxo.Outpoint]*utxo.Entry) error {
	var sumIn float64
	for _, in := range tx.Inputs {
		op := utxo.Outpoint{TxID: in.TxID, Vout: in.Vout}

		var resolved *resolvedInput
		if entry, err := v.utxoSet.GetUnspentOutput(op); err == nil {
			resolved = &resolvedInput{amount: entry.Amount, owner: entry.Owner}
		} else if pendingOutputs != nil {
			if entry, ok := pendingOutputs[op]; ok {
				resolved = &resolvedInput{amount: entry.Amount, owner: entry.Owner}
			}
		}

		if resolved == nil {
			return newError(CodeDoubleSpend, "input (%s, %d) does not resolve to an unspent output", in.TxID, in.Vout)
		}
		if resolved.owner != tx.Sender {
			return newError(CodeDoubleSpend, "input (%s, %d) is not owned by sender", in.TxID, in.Vout)
		}
		sumIn += resolved.amount
	}

	var sumOut float64
	for _, out := range tx.Outputs {
		sumOut += out.Amount
	}

	if sumIn+amountEpsilon < sumOut+tx.Fee {
		return newError(CodeInsufficientFunds, "sum(inputs)=%v is less than sum(outputs)+fee=%v", sumIn, sumOut+tx.Fee)
	}
	return nil
}

func (v *Validator) checkNonce(tx *txn.Transaction) error {
	nextExpected := v.nonces.GetNextNonce(tx.Sender)
	if tx.Nonce > nextExpected {
		return newError(CodeBadNonce, "nonce %d exceeds next expected nonce %d", tx.Nonce, nextExpected)
	}
	if holder, ok := v.nonces.ReservedBy(tx.Sender, tx.Nonce); ok && holder != tx.TxID {
		if tx.ReplacesTxID != holder {
			return newError(CodeBadNonce, "nonce %d is already reserved by pending transaction %s", tx.Nonce, holder)
		}
	}
	return nil
}
