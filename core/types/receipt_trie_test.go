package types

import (
	"bytes"
	"errors"
	"testing"
)

func trieReceipt(cumGas uint64, logs ...*Log) *Receipt {
	return &Receipt{
		PostState:         []byte{0x01, 0x02},
		CumulativeGasUsed: cumGas,
		GasUsed:           cumGas,
		Logs:              logs,
	}
}

func TestReceiptTrieInsertGet(t *testing.T) {
	rt := NewReceiptTrie(DefaultReceiptTrieConfig())

	if err := rt.Insert(0, trieReceipt(21000)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := rt.Insert(1, trieReceipt(42000)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if rt.Size() != 2 {
		t.Fatalf("Size = %d, want 2", rt.Size())
	}

	got, err := rt.Get(1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.CumulativeGasUsed != 42000 {
		t.Errorf("cumulative = %d, want 42000", got.CumulativeGasUsed)
	}
	if _, err := rt.Get(9); !errors.Is(err, ErrReceiptTrieNotFound) {
		t.Errorf("Get(9) err = %v, want ErrReceiptTrieNotFound", err)
	}
}

func TestReceiptTrieNilReceipt(t *testing.T) {
	rt := NewReceiptTrie(DefaultReceiptTrieConfig())
	if err := rt.Insert(0, nil); !errors.Is(err, ErrReceiptTrieNilReceipt) {
		t.Fatalf("err = %v, want ErrReceiptTrieNilReceipt", err)
	}
}

func TestReceiptTrieCapacity(t *testing.T) {
	cfg := DefaultReceiptTrieConfig()
	cfg.MaxReceiptsPerBlock = 2
	rt := NewReceiptTrie(cfg)

	rt.Insert(0, trieReceipt(1))
	rt.Insert(1, trieReceipt(2))
	if err := rt.Insert(2, trieReceipt(3)); !errors.Is(err, ErrReceiptTrieFull) {
		t.Fatalf("err = %v, want ErrReceiptTrieFull", err)
	}
	// Replacing an existing index does not count against the limit.
	if err := rt.Insert(1, trieReceipt(4)); err != nil {
		t.Fatalf("replace: %v", err)
	}
}

func TestReceiptTrieComputeRoot(t *testing.T) {
	rt := NewReceiptTrie(DefaultReceiptTrieConfig())
	if rt.ComputeRoot() != EmptyRootHash {
		t.Fatal("empty trie must report EmptyRootHash")
	}

	rt.Insert(0, trieReceipt(21000))
	single := rt.ComputeRoot()
	if single == EmptyRootHash {
		t.Fatal("non-empty trie must not report the empty root")
	}

	rt.Insert(1, trieReceipt(42000))
	double := rt.ComputeRoot()
	if double == single {
		t.Fatal("adding a receipt must change the root")
	}

	// Insertion order does not matter, only the index keys do.
	other := NewReceiptTrie(DefaultReceiptTrieConfig())
	other.Insert(1, trieReceipt(42000))
	other.Insert(0, trieReceipt(21000))
	if other.ComputeRoot() != double {
		t.Fatal("root must be deterministic across insertion orders")
	}
}

func TestReceiptTrieCompactRoundTrip(t *testing.T) {
	log := &Log{
		Address: HexToAddress("0xc0ffee0000000000000000000000000000c0fe"),
		Topics:  []Hash{HexToHash("0x01"), HexToHash("0x02")},
		Data:    []byte{0xde, 0xad, 0xbe, 0xef},
	}
	r := trieReceipt(63000, log)

	encoded := ReceiptTrieCompactEncode(r)
	decoded, err := ReceiptTrieCompactDecode(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if decoded.CumulativeGasUsed != r.CumulativeGasUsed || decoded.GasUsed != r.GasUsed {
		t.Errorf("gas fields = %d/%d, want %d/%d",
			decoded.CumulativeGasUsed, decoded.GasUsed, r.CumulativeGasUsed, r.GasUsed)
	}
	if !bytes.Equal(decoded.PostState, r.PostState) {
		t.Errorf("post state = %x, want %x", decoded.PostState, r.PostState)
	}
	if len(decoded.Logs) != 1 {
		t.Fatalf("got %d logs, want 1", len(decoded.Logs))
	}
	got := decoded.Logs[0]
	if got.Address != log.Address {
		t.Errorf("log address = %s, want %s", got.Address.Hex(), log.Address.Hex())
	}
	if len(got.Topics) != 2 || got.Topics[0] != log.Topics[0] || got.Topics[1] != log.Topics[1] {
		t.Errorf("log topics = %v", got.Topics)
	}
	if !bytes.Equal(got.Data, log.Data) {
		t.Errorf("log data = %x, want %x", got.Data, log.Data)
	}
}

func TestReceiptTrieCompactDecodeTruncated(t *testing.T) {
	if _, err := ReceiptTrieCompactDecode([]byte{1, 2, 3}); !errors.Is(err, ErrReceiptTrieCompact) {
		t.Fatalf("err = %v, want ErrReceiptTrieCompact", err)
	}

	// Chop a valid encoding mid-log.
	r := trieReceipt(1, &Log{Data: []byte{0xaa}})
	encoded := ReceiptTrieCompactEncode(r)
	if _, err := ReceiptTrieCompactDecode(encoded[:len(encoded)-1]); !errors.Is(err, ErrReceiptTrieCompact) {
		t.Fatalf("truncated err = %v, want ErrReceiptTrieCompact", err)
	}
}

func TestReceiptTriePruneReset(t *testing.T) {
	rt := NewReceiptTrie(DefaultReceiptTrieConfig())
	for i := uint64(0); i < 5; i++ {
		rt.Insert(i, trieReceipt(i))
	}

	rt.Prune(2)
	if rt.Size() != 2 {
		t.Fatalf("Size after Prune(2) = %d, want 2", rt.Size())
	}
	indices := rt.Indices()
	if len(indices) != 2 || indices[0] != 3 || indices[1] != 4 {
		t.Fatalf("Indices after prune = %v, want [3 4]", indices)
	}

	rt.Reset()
	if rt.Size() != 0 {
		t.Fatalf("Size after Reset = %d, want 0", rt.Size())
	}
	if rt.ComputeRoot() != EmptyRootHash {
		t.Fatal("reset trie must report EmptyRootHash")
	}
}
