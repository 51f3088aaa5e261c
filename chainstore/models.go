package chainstore

// BalanceRecord is the gorm-backed derived balance cache row, refreshed from
// the UTXO set when a block is appended rather than being a source of truth
// (spec §4.7: "Update derived indices (balance cache, transaction-by-address)").
// Reverting a block does not update these rows.
type BalanceRecord struct {
	Address string `gorm:"primary_key"`
	Balance float64
}

// TableName overrides gorm's pluralized default.
func (BalanceRecord) TableName() string { return "balances" }

// AddressTxRecord indexes a transaction by every address it touches
// (sender and output addresses; the Recipient field itself is not read),
// letting the API (C12) answer
// "transactions for address X" without scanning every block.
type AddressTxRecord struct {
	ID      uint   `gorm:"primary_key"`
	Address string `gorm:"index"`
	TxID    string `gorm:"index"`
	Height  uint64
}

// TableName overrides gorm's pluralized default.
func (AddressTxRecord) TableName() string { return "address_transactions" }
