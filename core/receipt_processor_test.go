package core

import (
	"errors"
	"math/big"
	"testing"

	"github.com/eth2030/eth2030/core/state"
	"github.com/eth2030/eth2030/core/types"
)

func makeReceipt(gas uint64) *types.Receipt {
	return types.NewReceipt([]byte{0x01}, gas)
}

func TestReceiptProcessorAddGet(t *testing.T) {
	rp := NewReceiptProcessor(DefaultReceiptProcessorConfig())

	if err := rp.AddReceipt(1, 0, makeReceipt(21000)); err != nil {
		t.Fatalf("AddReceipt: %v", err)
	}
	if err := rp.AddReceipt(1, 1, makeReceipt(42000)); err != nil {
		t.Fatalf("AddReceipt: %v", err)
	}

	if got := rp.GetReceipt(1, 1); got == nil || got.CumulativeGasUsed != 42000 {
		t.Errorf("GetReceipt(1,1) = %+v", got)
	}
	if got := rp.GetReceipt(1, 2); got != nil {
		t.Errorf("GetReceipt(1,2) = %+v, want nil", got)
	}
	if got := rp.TotalReceipts(); got != 2 {
		t.Errorf("TotalReceipts = %d, want 2", got)
	}
	if got := rp.BlockReceiptCount(1); got != 2 {
		t.Errorf("BlockReceiptCount(1) = %d, want 2", got)
	}
}

func TestReceiptProcessorNilReceipt(t *testing.T) {
	rp := NewReceiptProcessor(DefaultReceiptProcessorConfig())
	if err := rp.AddReceipt(1, 0, nil); !errors.Is(err, ErrNilReceipt) {
		t.Fatalf("err = %v, want ErrNilReceipt", err)
	}
}

func TestReceiptProcessorCapacity(t *testing.T) {
	rp := NewReceiptProcessor(ReceiptProcessorConfig{MaxReceipts: 2})

	rp.AddReceipt(1, 0, makeReceipt(1))
	rp.AddReceipt(1, 1, makeReceipt(2))
	if err := rp.AddReceipt(1, 2, makeReceipt(3)); !errors.Is(err, ErrMaxReceiptsExceeded) {
		t.Fatalf("err = %v, want ErrMaxReceiptsExceeded", err)
	}
	// Replacing an existing slot is not a new entry and stays allowed.
	if err := rp.AddReceipt(1, 1, makeReceipt(4)); err != nil {
		t.Fatalf("replace: %v", err)
	}
}

func TestReceiptProcessorBlockReceiptsOrdered(t *testing.T) {
	rp := NewReceiptProcessor(DefaultReceiptProcessorConfig())

	// Insert out of order; retrieval is by tx index.
	rp.AddReceipt(7, 2, makeReceipt(3))
	rp.AddReceipt(7, 0, makeReceipt(1))
	rp.AddReceipt(7, 1, makeReceipt(2))

	got := rp.GetBlockReceipts(7)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, r := range got {
		if r.CumulativeGasUsed != uint64(i+1) {
			t.Errorf("receipt %d: cumulative = %d, want %d", i, r.CumulativeGasUsed, i+1)
		}
	}
	if rp.GetBlockReceipts(8) != nil {
		t.Error("GetBlockReceipts for an empty block should be nil")
	}
}

func TestReceiptProcessorPrune(t *testing.T) {
	rp := NewReceiptProcessor(DefaultReceiptProcessorConfig())

	rp.AddReceipt(1, 0, makeReceipt(1))
	rp.AddReceipt(2, 0, makeReceipt(2))
	rp.AddReceipt(2, 1, makeReceipt(3))

	if got := rp.LatestBlock(); got != 2 {
		t.Errorf("LatestBlock = %d, want 2", got)
	}
	if got := rp.PruneBlock(2); got != 2 {
		t.Errorf("PruneBlock removed %d, want 2", got)
	}
	if got := rp.LatestBlock(); got != 1 {
		t.Errorf("LatestBlock after prune = %d, want 1", got)
	}
	if got := rp.TotalReceipts(); got != 1 {
		t.Errorf("TotalReceipts after prune = %d, want 1", got)
	}
}

func TestReceiptProcessorComputeRoot(t *testing.T) {
	rp := NewReceiptProcessor(DefaultReceiptProcessorConfig())

	if got := rp.ComputeReceiptsRoot(5); got != types.EmptyRootHash {
		t.Errorf("empty block root = %s, want EmptyRootHash", got.Hex())
	}

	rp.AddReceipt(5, 0, makeReceipt(21000))
	first := rp.ComputeReceiptsRoot(5)
	if first == types.EmptyRootHash {
		t.Error("non-empty block must not report the empty root")
	}
	// Deterministic across calls.
	if second := rp.ComputeReceiptsRoot(5); second != first {
		t.Errorf("root changed between calls: %s vs %s", first.Hex(), second.Hex())
	}
}

// TestStateProcessorProcessBlock runs a two-transaction block through the
// full pipeline and checks cumulative gas accounting plus the processor's
// receipt index.
func TestStateProcessorProcessBlock(t *testing.T) {
	statedb := state.NewMemoryStateDB()

	a := types.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	b := types.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	statedb.CreateAccount(a)
	statedb.AddBalance(a, new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	statedb.CreateAccount(b)

	tx0 := newTx(0, 1, 21000, &b, 1000, nil)
	tx0.SetSender(a)
	tx1 := newTx(1, 1, 21000, &b, 2000, nil)
	tx1.SetSender(a)

	h := header(t, 1, 10_000_000)
	block := types.NewBlock(h, &types.Body{Transactions: []*types.Transaction{tx0, tx1}})

	p := NewStateProcessor(FrontierOnlyConfig)
	receipts, err := p.Process(block, statedb)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(receipts) != 2 {
		t.Fatalf("got %d receipts, want 2", len(receipts))
	}
	if receipts[0].CumulativeGasUsed != TxGas {
		t.Errorf("receipt 0 cumulative = %d, want %d", receipts[0].CumulativeGasUsed, TxGas)
	}
	if receipts[1].CumulativeGasUsed != 2*TxGas {
		t.Errorf("receipt 1 cumulative = %d, want %d", receipts[1].CumulativeGasUsed, 2*TxGas)
	}
	if receipts[1].TransactionIndex != 1 {
		t.Errorf("receipt 1 index = %d, want 1", receipts[1].TransactionIndex)
	}

	if got := statedb.GetBalance(b); got.Cmp(big.NewInt(3000)) != 0 {
		t.Errorf("receiver balance = %s, want 3000", got)
	}
	if got := statedb.GetNonce(a); got != 2 {
		t.Errorf("sender nonce = %d, want 2", got)
	}

	// The block's receipts are also indexed on the processor.
	if got := p.Receipts().BlockReceiptCount(1); got != 2 {
		t.Errorf("indexed receipts = %d, want 2", got)
	}
	if r := p.Receipts().GetReceipt(1, 1); r == nil || r.CumulativeGasUsed != 2*TxGas {
		t.Errorf("indexed receipt = %+v", r)
	}
}
