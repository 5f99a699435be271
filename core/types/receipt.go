package types

import "math/big"

// Receipt represents the results of a transaction. There is no explicit
// status flag: a transaction's outcome is implicit in PostState, the
// intermediate state root after it was applied (explicit status is a
// Byzantium addition, out of scope here).
type Receipt struct {
	// Consensus fields
	Type              uint8
	PostState         []byte
	CumulativeGasUsed uint64
	Bloom             Bloom
	Logs              []*Log

	// Derived fields (filled in by node)
	TxHash            Hash
	ContractAddress   Address
	GasUsed           uint64
	EffectiveGasPrice *big.Int

	// Inclusion information
	BlockHash        Hash
	BlockNumber      *big.Int
	TransactionIndex uint
}

// NewReceipt creates a new receipt with the given post-state root and
// cumulative gas.
func NewReceipt(postState []byte, cumulativeGasUsed uint64) *Receipt {
	return &Receipt{
		PostState:         postState,
		CumulativeGasUsed: cumulativeGasUsed,
	}
}

// DeriveReceiptFields populates the derived fields on a list of receipts
// after block processing. It sets the block context fields, transaction
// hash and index, and per-log indices for each receipt in the block;
// CumulativeGasUsed is left as it is.
func DeriveReceiptFields(receipts []*Receipt, blockHash Hash, blockNumber uint64, baseFee *big.Int, txs []*Transaction) {
	var logIndex uint

	for i, receipt := range receipts {
		receipt.BlockHash = blockHash
		receipt.BlockNumber = new(big.Int).SetUint64(blockNumber)
		receipt.TransactionIndex = uint(i)

		if i < len(txs) {
			receipt.TxHash = txs[i].Hash()
		}

		// Populate log context fields and assign global log indices.
		for _, log := range receipt.Logs {
			log.BlockHash = blockHash
			log.BlockNumber = blockNumber
			log.TxIndex = uint(i)
			log.Index = logIndex
			if i < len(txs) {
				log.TxHash = txs[i].Hash()
			}
			logIndex++
		}
	}
}
