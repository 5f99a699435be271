package types

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/eth2030/eth2030/rlp"
	"golang.org/x/crypto/sha3"
)

// legacyTxRLP is the RLP encoding layout for LegacyTx.
// Fields: [nonce, gasPrice, gasLimit, to, value, data, v, r, s]
type legacyTxRLP struct {
	Nonce    uint64
	GasPrice *big.Int
	Gas      uint64
	To       []byte // empty for contract creation, 20 bytes otherwise
	Value    *big.Int
	Data     []byte
	V        *big.Int
	R        *big.Int
	S        *big.Int
}

// EncodeRLP returns the RLP encoding of the transaction: RLP([nonce, gasPrice, ...]).
func (tx *Transaction) EncodeRLP() ([]byte, error) {
	enc := legacyTxRLP{
		Nonce:    tx.inner.Nonce,
		GasPrice: bigOrZero(tx.inner.GasPrice),
		Gas:      tx.inner.Gas,
		To:       addressPtrToBytes(tx.inner.To),
		Value:    bigOrZero(tx.inner.Value),
		Data:     tx.inner.Data,
		V:        bigOrZero(tx.inner.V),
		R:        bigOrZero(tx.inner.R),
		S:        bigOrZero(tx.inner.S),
	}
	return rlp.EncodeToBytes(enc)
}

// DecodeTxRLP decodes an RLP-encoded legacy transaction.
func DecodeTxRLP(data []byte) (*Transaction, error) {
	if len(data) == 0 {
		return nil, errors.New("empty transaction data")
	}
	if data[0] < 0xc0 {
		return nil, fmt.Errorf("invalid legacy transaction encoding, first byte: 0x%02x", data[0])
	}
	var dec legacyTxRLP
	if err := rlp.DecodeBytes(data, &dec); err != nil {
		return nil, fmt.Errorf("decode legacy tx: %w", err)
	}
	inner := &LegacyTx{
		Nonce:    dec.Nonce,
		GasPrice: dec.GasPrice,
		Gas:      dec.Gas,
		To:       bytesToAddressPtr(dec.To),
		Value:    dec.Value,
		Data:     dec.Data,
		V:        dec.V,
		R:        dec.R,
		S:        dec.S,
	}
	return NewTransaction(inner), nil
}

func addressPtrToBytes(a *Address) []byte {
	if a == nil {
		return nil
	}
	return a[:]
}

func bytesToAddressPtr(b []byte) *Address {
	if len(b) == 0 {
		return nil
	}
	a := BytesToAddress(b)
	return &a
}

// bigOrZero returns i if non-nil, otherwise a zero big.Int.
func bigOrZero(i *big.Int) *big.Int {
	if i != nil {
		return i
	}
	return new(big.Int)
}

// hashRLP computes Keccak-256 of the transaction's RLP encoding.
func (tx *Transaction) hashRLP() Hash {
	enc, err := tx.EncodeRLP()
	if err != nil {
		return Hash{}
	}
	d := sha3.NewLegacyKeccak256()
	d.Write(enc)
	var h Hash
	copy(h[:], d.Sum(nil))
	return h
}

// SigningHash returns the hash that was signed to produce the transaction's
// signature.
//
// Pre-EIP-155: Keccak256(RLP([nonce, gasPrice, gas, to, value, data]))
// EIP-155 (Spurious Dragon+, kept here since EIP-155 replay protection is
// commonly exercised against these fork rules in conformance fixtures):
// Keccak256(RLP([nonce, gasPrice, gas, to, value, data, chainID, 0, 0]))
func (tx *Transaction) SigningHash() Hash {
	chainID := deriveChainID(tx.inner.V)
	toBytes := make([]byte, 0)
	if tx.inner.To != nil {
		toBytes = tx.inner.To[:]
	}

	var items [][]byte
	enc := func(v interface{}) {
		b, _ := rlp.EncodeToBytes(v)
		items = append(items, b)
	}

	enc(tx.inner.Nonce)
	enc(tx.inner.GasPrice)
	enc(tx.inner.Gas)
	enc(toBytes)
	enc(tx.inner.Value)
	enc(tx.inner.Data)

	if chainID != nil && chainID.Sign() > 0 {
		enc(chainID)
		enc(uint(0))
		enc(uint(0))
	}

	var payload []byte
	for _, item := range items {
		payload = append(payload, item...)
	}
	encoded := rlp.WrapList(payload)

	d := sha3.NewLegacyKeccak256()
	d.Write(encoded)
	var h Hash
	copy(h[:], d.Sum(nil))
	return h
}
