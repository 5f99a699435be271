package types

import (
	"math/big"
	"sync/atomic"
)

// LegacyTxType is the only transaction type that existed prior to EIP-2718.
// Frontier, Homestead and Tangerine Whistle never saw typed transactions.
const LegacyTxType = 0x00

// AccessListTxType, DynamicFeeTxType and BlobTxType are EIP-2718 type tags
// for transaction/receipt envelopes introduced well after this core's scope
// (Berlin, London, Cancun respectively). No Transaction of these types is
// constructible here — Transaction only ever wraps a LegacyTx — but the
// tags themselves are kept so Receipt.Type, which is encoded generically,
// can round-trip a value produced by a later fork without the receipt
// codec needing to special-case this module's own fork window.
const (
	AccessListTxType = 0x01
	DynamicFeeTxType = 0x02
	BlobTxType       = 0x03
)

// Transaction represents an Ethereum transaction.
type Transaction struct {
	inner *LegacyTx
	hash  atomic.Pointer[Hash]
	from  atomic.Pointer[Address] // cached sender address
}

// LegacyTx is the pre-EIP-2718 transaction envelope: the only shape that
// exists in the Frontier through Tangerine Whistle rule sets.
type LegacyTx struct {
	Nonce    uint64
	GasPrice *big.Int
	Gas      uint64
	To       *Address // nil signals contract creation
	Value    *big.Int
	Data     []byte
	V, R, S  *big.Int
}

func (tx *LegacyTx) copy() *LegacyTx {
	cpy := &LegacyTx{
		Nonce: tx.Nonce,
		Gas:   tx.Gas,
		To:    copyAddressPtr(tx.To),
		Data:  copyBytes(tx.Data),
	}
	if tx.GasPrice != nil {
		cpy.GasPrice = new(big.Int).Set(tx.GasPrice)
	}
	if tx.Value != nil {
		cpy.Value = new(big.Int).Set(tx.Value)
	}
	if tx.V != nil {
		cpy.V = new(big.Int).Set(tx.V)
	}
	if tx.R != nil {
		cpy.R = new(big.Int).Set(tx.R)
	}
	if tx.S != nil {
		cpy.S = new(big.Int).Set(tx.S)
	}
	return cpy
}

// NewTransaction wraps a LegacyTx, copying its fields.
func NewTransaction(inner *LegacyTx) *Transaction {
	return &Transaction{inner: inner.copy()}
}

// SetSender caches the sender address on the transaction.
func (tx *Transaction) SetSender(addr Address) {
	a := addr
	tx.from.Store(&a)
}

// Sender returns the cached sender address, or nil if not yet set.
func (tx *Transaction) Sender() *Address {
	return tx.from.Load()
}

// Type returns the transaction type. Always LegacyTxType in this scope.
func (tx *Transaction) Type() uint8 { return LegacyTxType }

// Data returns the input data of the transaction.
func (tx *Transaction) Data() []byte { return tx.inner.Data }

// Gas returns the gas limit of the transaction.
func (tx *Transaction) Gas() uint64 { return tx.inner.Gas }

// GasPrice returns the gas price of the transaction.
func (tx *Transaction) GasPrice() *big.Int { return tx.inner.GasPrice }

// Value returns the value transfer amount of the transaction.
func (tx *Transaction) Value() *big.Int { return tx.inner.Value }

// Nonce returns the nonce of the transaction.
func (tx *Transaction) Nonce() uint64 { return tx.inner.Nonce }

// To returns the recipient address, or nil for contract creation.
func (tx *Transaction) To() *Address { return tx.inner.To }

// ChainId derives the chain ID embedded in an EIP-155 V value, or zero
// for a pre-EIP-155 signature.
func (tx *Transaction) ChainId() *big.Int { return deriveChainID(tx.inner.V) }

// RawSignatureValues returns the V, R, S signature values of the transaction.
func (tx *Transaction) RawSignatureValues() (v, r, s *big.Int) {
	return tx.inner.V, tx.inner.R, tx.inner.S
}

// Hash returns the transaction hash (Keccak-256 of RLP encoding), caching on first call.
func (tx *Transaction) Hash() Hash {
	if h := tx.hash.Load(); h != nil {
		return *h
	}
	h := tx.hashRLP()
	tx.hash.Store(&h)
	return h
}

// Size returns the approximate encoded size of the transaction in bytes.
func (tx *Transaction) Size() uint64 {
	enc, err := tx.EncodeRLP()
	if err != nil {
		return 0
	}
	return uint64(len(enc))
}

func copyAddressPtr(a *Address) *Address {
	if a == nil {
		return nil
	}
	cpy := *a
	return &cpy
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	cpy := make([]byte, len(b))
	copy(cpy, b)
	return cpy
}

// deriveChainID derives the chain ID from a legacy V value.
// Pre-EIP-155 signatures use V = 27/28 and carry no chain ID.
func deriveChainID(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	if v.BitLen() <= 8 {
		val := v.Uint64()
		if val == 27 || val == 28 {
			return new(big.Int)
		}
	}
	// EIP-155: v = chainID*2 + 35 or chainID*2 + 36.
	chainID := new(big.Int).Sub(v, big.NewInt(35))
	chainID.Div(chainID, big.NewInt(2))
	return chainID
}
