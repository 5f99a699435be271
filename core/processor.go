package core

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/eth2030/eth2030/core/state"
	"github.com/eth2030/eth2030/core/types"
	"github.com/eth2030/eth2030/core/vm"
	"github.com/eth2030/eth2030/log"
)

const (
	// TxGas is the base gas cost of every transaction.
	TxGas uint64 = 21000
	// TxDataZeroGas is the gas cost per zero byte of transaction data.
	TxDataZeroGas uint64 = 4
	// TxDataNonZeroGas is the gas cost per non-zero byte of transaction data.
	TxDataNonZeroGas uint64 = 68
	// TxCreateGas is the extra intrinsic gas charged for a contract-creation
	// transaction (to == nil).
	TxCreateGas uint64 = 32000

	// RefundSelfDestruct is the gas refund credited for each account that
	// self-destructs during a transaction, before the gas_used/2 cap is
	// applied.
	RefundSelfDestruct uint64 = 24000
)

var (
	ErrNonceTooLow         = errors.New("nonce too low")
	ErrNonceTooHigh        = errors.New("nonce too high")
	ErrInsufficientBalance = errors.New("insufficient balance for transfer")
	ErrGasLimitExceeded    = errors.New("gas limit exceeds block gas pool")
	ErrIntrinsicGasTooLow  = errors.New("intrinsic gas too low")
	ErrInvalidSignature    = errors.New("invalid transaction signature")
)

// IntrinsicGas computes the gas a transaction must pay before any code runs:
// the flat per-transaction base cost, plus a per-byte cost for the payload,
// plus an extra charge for contract creation.
func IntrinsicGas(data []byte, isContractCreation bool) uint64 {
	gas := TxGas
	for _, b := range data {
		if b == 0 {
			gas += TxDataZeroGas
		} else {
			gas += TxDataNonZeroGas
		}
	}
	if isContractCreation {
		gas += TxCreateGas
	}
	return gas
}

// StateProcessor applies every transaction in a block against a StateDB,
// sequentially and in order, producing one receipt per transaction.
type StateProcessor struct {
	config   *ChainConfig
	getHash  vm.GetHashFunc
	receipts *ReceiptProcessor
}

// NewStateProcessor creates a state processor for the given chain config.
func NewStateProcessor(config *ChainConfig) *StateProcessor {
	return &StateProcessor{
		config:   config,
		receipts: NewReceiptProcessor(DefaultReceiptProcessorConfig()),
	}
}

// Receipts exposes the processor's receipt index, which accumulates every
// receipt produced by Process keyed by block number and transaction index.
func (p *StateProcessor) Receipts() *ReceiptProcessor {
	return p.receipts
}

// SetGetHash sets the block hash lookup function used to serve the
// BLOCKHASH opcode (the last 256 block hashes).
func (p *StateProcessor) SetGetHash(fn vm.GetHashFunc) {
	p.getHash = fn
}

// Process executes every transaction in block in order and returns the
// resulting receipts. Each transaction's CumulativeGasUsed accumulates the
// gas spent by it and every transaction before it in the block.
func (p *StateProcessor) Process(block *types.Block, statedb state.StateDB) ([]*types.Receipt, error) {
	var (
		header     = block.Header()
		gasPool    = new(GasPool).AddGas(block.GasLimit())
		receipts   = make([]*types.Receipt, 0, len(block.Transactions()))
		cumulative uint64
	)

	logger := log.Default().Module("core").With("block", block.Number())

	for i, tx := range block.Transactions() {
		statedb.SetTxContext(tx.Hash(), i)

		receipt, gasUsed, err := p.applyTransaction(statedb, header, tx, gasPool)
		if err != nil {
			logger.Warn("transaction rejected", "index", i, "hash", tx.Hash(), "err", err)
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		logger.Debug("applied transaction", "index", i, "hash", tx.Hash(), "gasUsed", gasUsed)

		cumulative += gasUsed
		receipt.CumulativeGasUsed = cumulative
		receipt.TransactionIndex = uint(i)
		receipts = append(receipts, receipt)

		if p.receipts != nil {
			if err := p.receipts.AddReceipt(block.Number().Uint64(), uint64(i), receipt); err != nil {
				return nil, fmt.Errorf("index receipt %d: %w", i, err)
			}
		}
	}

	logger.Info("processed block", "txs", len(receipts), "gasUsed", cumulative)
	return receipts, nil
}

func (p *StateProcessor) applyTransaction(statedb state.StateDB, header *types.Header, tx *types.Transaction, gasPool *GasPool) (*types.Receipt, uint64, error) {
	return applyTransaction(p.config, statedb, header, tx, gasPool, p.getHash)
}

// ApplyTransaction validates, executes, and settles a single transaction
// against statedb, returning the resulting receipt and gas used. header
// supplies the block context (number, coinbase, gas limit, difficulty,
// timestamp); gasPool tracks remaining block gas capacity and is debited by
// the transaction's gas limit on acceptance. No BLOCKHASH history is
// available through this entry point; use StateProcessor for block-level
// processing when BLOCKHASH must resolve.
func ApplyTransaction(config *ChainConfig, statedb state.StateDB, header *types.Header, tx *types.Transaction, gasPool *GasPool) (*types.Receipt, uint64, error) {
	return applyTransaction(config, statedb, header, tx, gasPool, nil)
}

func applyTransaction(config *ChainConfig, statedb state.StateDB, header *types.Header, tx *types.Transaction, gasPool *GasPool, getHash vm.GetHashFunc) (*types.Receipt, uint64, error) {
	sender, err := recoverSender(config, header, tx)
	if err != nil {
		return nil, 0, err
	}

	msg := TransactionToMessage(tx)
	msg.From = sender

	rules := config.Rules(header.Number)
	intrinsic := IntrinsicGas(msg.Data, msg.To == nil)

	if err := validateMessage(statedb, msg, gasPool, intrinsic); err != nil {
		return nil, 0, err
	}

	// Step 2: pre-charge gas_limit*gas_price and increment the nonce. Both
	// happen before dispatch regardless of whether execution later fails;
	// only a ValidationError prevents the transaction from running at all.
	// For a contract-creation message the increment is deferred to
	// vm.EVM.Create, which needs the pre-increment nonce to derive the new
	// contract's address from the pre-increment nonce
	// and performs the increment itself, exactly as it does for a nested
	// CREATE issued from inside running code.
	prepayment := new(big.Int).Mul(new(big.Int).SetUint64(msg.GasLimit), msg.GasPrice)
	statedb.SubBalance(msg.From, prepayment)
	if msg.To != nil {
		statedb.SetNonce(msg.From, msg.Nonce+1)
	}
	if err := gasPool.SubGas(msg.GasLimit); err != nil {
		return nil, 0, err
	}

	evm := vm.NewEVMWithState(
		vm.BlockContext{
			GetHash:     getHash,
			BlockNumber: header.Number,
			Time:        header.Time,
			Coinbase:    header.Coinbase,
			GasLimit:    header.GasLimit,
			Difficulty:  header.Difficulty,
		},
		vm.TxContext{
			Origin:   msg.From,
			GasPrice: msg.GasPrice,
		},
		vm.Config{},
		rules,
		statedb,
	)

	// The gas made available to execution excludes the intrinsic cost already
	// accounted for above; a bare value transfer with no code to run leaves
	// this entire allowance unspent, so gas_used collapses to just intrinsic.
	result := applyMessage(evm, msg, msg.GasLimit-intrinsic)

	// Step 4: refund, capped at half the gas actually used, then settle
	// sender and coinbase with the fork's flat (no basefee/tip split) model.
	gasUsed := result.UsedGas
	remaining := msg.GasLimit - gasUsed

	// The EVM registers a beneficiary for every SELFDESTRUCT it executes,
	// including ones in frames that later reverted. The journal already
	// cleared the statedb's self-destruct flag for those when the snapshot
	// unwound, so only registrations whose flag is still set count toward
	// the refund or settle.
	selfDestructs := evm.SelfDestructBeneficiaries()
	for addr := range selfDestructs {
		if !statedb.HasSelfDestructed(addr) {
			delete(selfDestructs, addr)
		}
	}
	refund := statedb.GetRefund() + RefundSelfDestruct*uint64(len(selfDestructs))
	if max := gasUsed / 2; refund > max {
		refund = max
	}

	netGasUsed := gasUsed - refund
	statedb.AddBalance(msg.From, new(big.Int).Mul(new(big.Int).SetUint64(remaining+refund), msg.GasPrice))
	minerFee := new(big.Int).Mul(new(big.Int).SetUint64(netGasUsed), msg.GasPrice)
	statedb.AddBalance(header.Coinbase, minerFee)

	// Step 5: settle self-destructs registered during this transaction. The
	// account's balance at this point reflects any value it received after
	// SELFDESTRUCT executed but before the top-level call returned.
	for addr, beneficiary := range selfDestructs {
		balance := statedb.GetBalance(addr)
		statedb.AddBalance(beneficiary, balance)
		statedb.SubBalance(addr, balance)
	}

	// Step 6: build the receipt. PostState is the intermediate state root
	// immediately after this transaction (pre-Byzantium receipts carry no
	// explicit status field; that is a Byzantium addition). The gas this transaction
	// contributes to the block's cumulative total is net of its own refund.
	root, err := statedb.Commit()
	if err != nil {
		return nil, 0, fmt.Errorf("commit post-state: %w", err)
	}

	receiptBuilder := types.NewReceiptBuilder().
		SetPostState(root.Bytes()).
		SetGasUsed(netGasUsed).
		SetCumulativeGasUsed(netGasUsed).
		SetTxHash(tx.Hash()).
		SetEffectiveGasPrice(msg.GasPrice)
	if !result.ContractAddress.IsZero() {
		receiptBuilder.SetContractAddress(result.ContractAddress)
	}
	for _, log := range statedb.GetLogs(tx.Hash()) {
		receiptBuilder.AddLog(log)
	}
	receipt := receiptBuilder.Build()

	return receipt, netGasUsed, nil
}

// recoverSender returns the transaction's sender, using the cached address
// set by a previous call to Transaction.SetSender if present, otherwise
// recovering it from the signature under the fork's signer (Homestead+
// rejects a malleable, high-S signature).
func recoverSender(config *ChainConfig, header *types.Header, tx *types.Transaction) (types.Address, error) {
	if cached := tx.Sender(); cached != nil {
		return *cached, nil
	}

	rules := config.Rules(header.Number)
	chainID := uint64(0)
	if config.ChainID != nil {
		chainID = config.ChainID.Uint64()
	}
	signer := types.MakeSigner(chainID, rules.IsHomestead, false)

	addr, err := signer.Sender(tx)
	if err != nil {
		return types.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	tx.SetSender(addr)
	return addr, nil
}

// validateMessage performs every remaining pre-execution check beyond
// signature canonicality (already enforced during sender recovery).
func validateMessage(statedb state.StateDB, msg Message, gasPool *GasPool, intrinsic uint64) error {
	if msg.GasLimit < intrinsic {
		return fmt.Errorf("%w: have %d, want %d", ErrIntrinsicGasTooLow, msg.GasLimit, intrinsic)
	}

	stateNonce := statedb.GetNonce(msg.From)
	if msg.Nonce < stateNonce {
		return fmt.Errorf("%w: tx nonce %d, state nonce %d", ErrNonceTooLow, msg.Nonce, stateNonce)
	}
	if msg.Nonce > stateNonce {
		return fmt.Errorf("%w: tx nonce %d, state nonce %d", ErrNonceTooHigh, msg.Nonce, stateNonce)
	}

	cost := new(big.Int).Mul(new(big.Int).SetUint64(msg.GasLimit), msg.GasPrice)
	cost.Add(cost, msg.Value)
	if statedb.GetBalance(msg.From).Cmp(cost) < 0 {
		return fmt.Errorf("%w: have %s, want %s", ErrInsufficientBalance, statedb.GetBalance(msg.From), cost)
	}

	if msg.GasLimit > gasPool.Gas() {
		return fmt.Errorf("%w: have %d, want %d", ErrGasLimitExceeded, gasPool.Gas(), msg.GasLimit)
	}

	return nil
}

// applyMessage dispatches msg through the EVM: a CREATE path when msg.To is
// nil, a CALL path otherwise. A frame-level error
// (OutOfGas, reverted execution, and the like) does not stop the pipeline:
// the sender still pays for the gas consumed and the transaction still
// produces a receipt; only pre-execution validation rejects outright. UsedGas is
// gross of any refund; the caller nets refunds out during settlement.
func applyMessage(evm *vm.EVM, msg Message, gas uint64) *ExecutionResult {
	if msg.To == nil {
		ret, contractAddr, remaining, err := evm.Create(msg.From, msg.Data, gas, msg.Value)
		res := &ExecutionResult{UsedGas: msg.GasLimit - remaining, ReturnData: ret, Err: err}
		if err == nil {
			res.ContractAddress = contractAddr
		}
		return res
	}

	ret, remaining, err := evm.Call(msg.From, *msg.To, msg.Data, gas, msg.Value)
	return &ExecutionResult{UsedGas: msg.GasLimit - remaining, ReturnData: ret, Err: err}
}
