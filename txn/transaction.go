// Package txn implements the transaction model (C2): typed transaction
// records, canonical hashing, and ECDSA signing/verification. Field-level
// validation happens at construction; UTXO/nonce/type-specific validation
// is the job of package validator (C9), which composes on top of this
// package's pure functions.
package txn

import (
	"time"

	"github.com/xai-network/xaid/crypto"
)

// Consensus-wide limits (spec §3).
const (
	MaxSupply          = 121_000_000.0
	MaxFee             = 1_000_000.0
	MaxMetadataBytes   = 4 * 1024
	MaxInputsOrOutputs = 1000
	MaxSerializedBytes = 100 * 1024
)

// Input references a prior transaction's output.
type Input struct {
	TxID string `json:"txid"`
	Vout uint32 `json:"vout"`
}

// Output is a destination amount within a transaction.
type Output struct {
	Address string  `json:"address"`
	Amount  float64 `json:"amount"`
}

// Transaction is the canonical, content-addressed transaction record
// (spec §3).
type Transaction struct {
	TxID         string                 `json:"txid"`
	Sender       string                 `json:"sender"`
	Recipient    string                 `json:"recipient"`
	Amount       float64                `json:"amount"`
	Fee          float64                `json:"fee"`
	Timestamp    int64                  `json:"timestamp"`
	Nonce        uint64                 `json:"nonce"`
	TxType       Kind                   `json:"tx_type"`
	Inputs       []Input                `json:"inputs"`
	Outputs      []Output               `json:"outputs"`
	PublicKey    string                 `json:"public_key,omitempty"`
	Signature    string                 `json:"signature,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	RBFEnabled   bool                   `json:"rbf_enabled"`
	ReplacesTxID string                 `json:"replaces_txid,omitempty"`
	GasSponsor   string                 `json:"gas_sponsor,omitempty"`
}

// New constructs and field-validates a transaction, but does not sign or
// compute its TxID (callers use Sign for that, or, for coinbase
// transactions, CalculateHash directly).
func New(sender, recipient string, amount, fee float64, nonce uint64, txType Kind) (*Transaction, error) {
	tx := &Transaction{
		Sender:    sender,
		Recipient: recipient,
		Amount:    amount,
		Fee:       fee,
		Timestamp: time.Now().Unix(),
		Nonce:     nonce,
		TxType:    txType,
		Inputs:    []Input{},
		Outputs:   []Output{},
		Metadata:  map[string]interface{}{},
	}
	if err := tx.validateFields(chainContextFor(tx)); err != nil {
		return nil, err
	}
	return tx, nil
}

// NewCoinbase constructs the reward-minting transaction for a block. It
// bypasses signature requirements per spec §3/§4.9 but still hashes
// deterministically.
func NewCoinbase(height uint64, outputs []Output, timestamp int64) *Transaction {
	return &Transaction{
		Sender:    crypto.CoinbaseAddress,
		Recipient: "",
		Amount:    0,
		Fee:       0,
		Timestamp: timestamp,
		Nonce:     height,
		TxType:    KindCoinbase,
		Inputs:    []Input{},
		Outputs:   outputs,
		Metadata:  map[string]interface{}{},
	}
}

func (tx *Transaction) validateFields(chainContext string) error {
	if !tx.TxType.known() {
		return newValidationError("tx_type", "unknown transaction type %q", tx.TxType)
	}
	if tx.TxType != KindCoinbase {
		if !crypto.IsValidAddressFormat(tx.Sender) {
			return newValidationError("sender", "malformed address %q", tx.Sender)
		}
	}
	if tx.Recipient != "" && !crypto.IsValidAddressFormat(tx.Recipient) {
		return newValidationError("recipient", "malformed address %q", tx.Recipient)
	}
	if tx.Amount < 0 || tx.Amount > MaxSupply {
		return newValidationError("amount", "amount %v out of range [0, %v]", tx.Amount, MaxSupply)
	}
	if tx.Fee < 0 || tx.Fee > MaxFee {
		return newValidationError("fee", "fee %v out of range [0, %v]", tx.Fee, MaxFee)
	}
	if len(tx.Inputs) > MaxInputsOrOutputs {
		return newValidationError("inputs", "too many inputs: %d > %d", len(tx.Inputs), MaxInputsOrOutputs)
	}
	if len(tx.Outputs) > MaxInputsOrOutputs {
		return newValidationError("outputs", "too many outputs: %d > %d", len(tx.Outputs), MaxInputsOrOutputs)
	}
	for i, out := range tx.Outputs {
		if out.Amount < 0 || out.Amount > MaxSupply {
			return newValidationError("outputs", "output %d amount %v out of range", i, out.Amount)
		}
		if out.Address != "" && !crypto.IsValidAddressFormat(out.Address) {
			return newValidationError("outputs", "output %d has malformed address %q", i, out.Address)
		}
	}

	metadataJSON, err := canonicalJSON(tx.Metadata)
	if err != nil {
		return newValidationError("metadata", "not JSON-serializable: %s", err)
	}
	if len(metadataJSON) > MaxMetadataBytes {
		return newValidationError("metadata", "metadata too large: %d > %d bytes", len(metadataJSON), MaxMetadataBytes)
	}

	// Conservation of inputs vs. outputs+fee is re-checked by validator
	// (C9) against real resolved UTXO amounts; it cannot be verified here
	// since inputs only carry references, not amounts.

	size := tx.sizeBytes()
	if size > MaxSerializedBytes {
		return newValidationError("size", "serialized size %d exceeds %d bytes", size, MaxSerializedBytes)
	}

	return nil
}

func (k Kind) known() bool { return knownKinds[k] }

// hashFields returns the canonical, content-bearing map that both
// CalculateHash and Sign hash over. txid, signature, and public_key are
// excluded: txid is derived from this hash, and the signature/public_key
// are appended only after signing (spec §4.2: calculate_hash "includes a
// chain_context string").
func (tx *Transaction) hashFields(chainContext string) map[string]interface{} {
	inputs := make([]interface{}, len(tx.Inputs))
	for i, in := range tx.Inputs {
		inputs[i] = map[string]interface{}{
			"txid": in.TxID,
			"vout": in.Vout,
		}
	}
	outputs := make([]interface{}, len(tx.Outputs))
	for i, out := range tx.Outputs {
		outputs[i] = map[string]interface{}{
			"address": out.Address,
			"amount":  out.Amount,
		}
	}
	metadata := tx.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	fields := map[string]interface{}{
		"sender":        tx.Sender,
		"recipient":     tx.Recipient,
		"amount":        tx.Amount,
		"fee":           tx.Fee,
		"timestamp":     tx.Timestamp,
		"nonce":         tx.Nonce,
		"tx_type":       string(tx.TxType),
		"inputs":        inputs,
		"outputs":       outputs,
		"metadata":      metadata,
		"rbf_enabled":   tx.RBFEnabled,
		"chain_context": chainContext,
	}
	if tx.ReplacesTxID != "" {
		fields["replaces_txid"] = tx.ReplacesTxID
	}
	if tx.GasSponsor != "" {
		fields["gas_sponsor"] = tx.GasSponsor
	}
	return fields
}

// CalculateHash computes the transaction's content hash (its eventual
// TxID once signed), over the canonical JSON of every content-bearing
// field plus the chain context tag (spec §3, §4.2).
func (tx *Transaction) CalculateHash(chainContext string) (string, error) {
	canon, err := canonicalJSON(tx.hashFields(chainContext))
	if err != nil {
		return "", err
	}
	return crypto.Sha256Hex([]byte(canon)), nil
}

// Sign fills in PublicKey (if absent), computes the signature over
// CalculateHash, and sets TxID (spec §4.2). Coinbase transactions must not
// be signed; use FinalizeCoinbase for those instead.
func (tx *Transaction) Sign(priv *crypto.PrivateKey, chainContext string) error {
	if tx.TxType == KindCoinbase {
		return newValidationError("tx_type", "coinbase transactions are not signed")
	}

	if tx.PublicKey == "" {
		tx.PublicKey = priv.PublicKey().SerializeUncompressedHex()
	}

	hash, err := tx.CalculateHash(chainContext)
	if err != nil {
		return err
	}

	sig, err := crypto.Sign(priv, crypto.MustDecodeHex(hash))
	if err != nil {
		return &SignatureCryptoError{Cause: err}
	}
	tx.Signature = sig
	tx.TxID = hash
	return nil
}

// FinalizeCoinbase computes and sets TxID for a coinbase transaction
// without requiring a signature.
func (tx *Transaction) FinalizeCoinbase(chainContext string) error {
	if tx.TxType != KindCoinbase {
		return newValidationError("tx_type", "FinalizeCoinbase called on a non-coinbase transaction")
	}
	hash, err := tx.CalculateHash(chainContext)
	if err != nil {
		return err
	}
	tx.TxID = hash
	return nil
}

// VerifySignature re-derives the expected address from the stored public
// key and checks the ECDSA signature over CalculateHash (spec §4.2).
// Coinbase and trade_settlement transactions skip this check (spec §4.9).
func (tx *Transaction) VerifySignature(chainContext string) error {
	if !tx.TxType.RequiresSignature() {
		return nil
	}
	if tx.PublicKey == "" || tx.Signature == "" {
		return &MissingSignatureError{}
	}

	matches, err := crypto.VerifyAddressMatchesKey(tx.Sender, tx.PublicKey)
	if err != nil {
		return &SignatureCryptoError{Cause: err}
	}
	if !matches {
		return &InvalidSignatureError{Reason: "public key does not derive the claimed sender address"}
	}

	hash, err := tx.CalculateHash(chainContext)
	if err != nil {
		return &SignatureCryptoError{Cause: err}
	}

	ok, err := crypto.VerifySignature(tx.PublicKey, tx.Signature, crypto.MustDecodeHex(hash))
	if err != nil {
		return &SignatureCryptoError{Cause: err}
	}
	if !ok {
		return &InvalidSignatureError{Reason: "ECDSA verification failed"}
	}
	return nil
}

// sizeBytes returns the canonical-JSON byte length used for size capping
// and fee-rate computation (spec §4.2: "Size accounting (get_size) is done
// by canonical-JSON byte length").
func (tx *Transaction) sizeBytes() int {
	canon, err := canonicalJSON(tx.wireFields())
	if err != nil {
		return 0
	}
	return len(canon)
}

// Size is the exported form of sizeBytes.
func (tx *Transaction) Size() int {
	return tx.sizeBytes()
}

// FeeRate returns fee/size; size-zero transactions (which should not occur
// in practice) report a zero rate rather than dividing by zero.
func (tx *Transaction) FeeRate() float64 {
	size := tx.Size()
	if size == 0 {
		return 0
	}
	return tx.Fee / float64(size)
}

// wireFields returns the full wire-format representation (spec §6),
// including txid/signature/public_key, for size accounting and transport.
func (tx *Transaction) wireFields() map[string]interface{} {
	fields := tx.hashFields(chainContextFor(tx))
	fields["txid"] = tx.TxID
	fields["public_key"] = tx.PublicKey
	fields["signature"] = tx.Signature
	return fields
}

// IsCoinbase reports whether tx is the block-reward-minting transaction.
func (tx *Transaction) IsCoinbase() bool {
	return tx.TxType == KindCoinbase
}

// chainContextFor is a placeholder used only where a call site does not
// carry its own network context (e.g. size accounting, which is
// context-independent since the field is part of the hashed content either
// way). Real hash computation always takes chainContext explicitly from
// the active chaincfg.Params.
func chainContextFor(tx *Transaction) string {
	return "mainnet"
}
