package vm

import (
	"errors"

	"github.com/eth2030/eth2030/core/types"
)

// errGasUintOverflow signals that a gas computation would overflow a uint64;
// the interpreter treats this as an out-of-gas failure.
var errGasUintOverflow = errors.New("gas uint64 overflow")

// toWordSize returns the number of 32-byte words needed to hold size bytes,
// rounding up. It saturates rather than overflowing on pathological input.
func toWordSize(size uint64) uint64 {
	if size > (1<<64-1)-31 {
		return (1<<64 - 1) / 32
	}
	return (size + 31) / 32
}

func safeAdd(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, errGasUintOverflow
	}
	return sum, nil
}

func safeMul(a, b uint64) (uint64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	product := a * b
	if product/a != b {
		return 0, errGasUintOverflow
	}
	return product, nil
}

// ForwardGas computes the gas forwarded to a CALL/CALLCODE/DELEGATECALL or to
// CREATE's init code. Pre-EIP-150 (Frontier/Homestead), the full requested
// amount is forwarded; a request beyond what the caller holds fails at the
// caller's UseGas and burns the frame. EIP-150's 63/64 rule instead caps the
// forwardable amount to availableGas - availableGas/64, so a caller always
// retains at least a 64th of its gas no matter how much it requests
// no matter how much it requests. When stipend is true (a CALL/CALLCODE
// carrying a non-zero value), CallStipend is credited on top of the forwarded
// amount so a receive-only callee can still run; consumed, the second return
// value, is the amount actually deducted from the caller's gas, which
// excludes the stipend since the stipend is not paid by the caller.
func ForwardGas(availableGas, requestedGas uint64, stipend bool, isEIP150 bool) (callGas uint64, consumed uint64) {
	consumed = requestedGas
	if isEIP150 {
		available := availableGas - availableGas/64
		if consumed > available {
			consumed = available
		}
	}
	callGas = consumed
	if stipend {
		callGas += CallStipend
	}
	return callGas, consumed
}

// gasSha3 computes the dynamic (per-word) portion of KECCAK256's gas cost.
// Stack: offset, size.
func gasSha3(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	size := stack.Back(1)
	words, overflow := size.Uint64WithOverflow()
	if overflow {
		return 0, errGasUintOverflow
	}
	return safeMul(GasKeccak256Word, toWordSize(words))
}

// gasCopy is shared by CALLDATACOPY and CODECOPY: GasCopyWord per 32-byte
// word of the copied region. Stack: destOffset, offset, size.
func gasCopy(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	size := stack.Back(2)
	words, overflow := size.Uint64WithOverflow()
	if overflow {
		return 0, errGasUintOverflow
	}
	return safeMul(GasCopyWord, toWordSize(words))
}

// gasExtCodeCopy charges GasCopyWord per word copied from EXTCODECOPY, on
// top of the flat per-call account-access cost already paid as constant gas.
// Stack: addr, destOffset, offset, size.
func gasExtCodeCopy(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	size := stack.Back(3)
	words, overflow := size.Uint64WithOverflow()
	if overflow {
		return 0, errGasUintOverflow
	}
	return safeMul(GasCopyWord, toWordSize(words))
}

// gasExp charges ExpByteGas per byte of the exponent. Stack: base, exponent.
func gasExp(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	exponent := stack.Back(1)
	byteLen := uint64(0)
	for i := exponent.BitLen(); i > 0; i -= 8 {
		byteLen++
	}
	return safeMul(ExpByteGas, byteLen)
}

// makeGasLog returns the dynamic gas function for LOGn: GasLogTopic per
// topic plus GasLogData per byte of log data. Stack: offset, size, topics...
func makeGasLog(n int) dynamicGasFunc {
	return func(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
		size := stack.Back(1)
		dataSize, overflow := size.Uint64WithOverflow()
		if overflow {
			return 0, errGasUintOverflow
		}
		gas := uint64(n) * GasLogTopic
		dataGas, err := safeMul(dataSize, GasLogData)
		if err != nil {
			return 0, err
		}
		return safeAdd(gas, dataGas)
	}
}

// gasSstore computes SSTORE's gas cost under the flat Frontier/Homestead/
// EIP-150 rule: 20000 to set a zero slot to non-zero, 5000 otherwise
// (resetting a non-zero slot, including clearing it to zero). Clearing a
// non-zero slot to zero also grants a 15000 refund. This
// pricing is unchanged by EIP-150 — EIP-150 only repriced account-touching
// opcodes — and predates the dirty/committed-value refund logic introduced
// by EIP-2200 in Constantinople, which is out of scope here.
func gasSstore(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	loc, val := stack.Back(0), stack.Back(1)
	if evm.StateDB == nil {
		return GasSstoreSet, nil
	}
	key := bigToHash(loc)
	current := evm.StateDB.GetState(contract.Address, key)
	newIsZero := val.IsZero()
	currentIsZero := current == (types.Hash{})

	switch {
	case currentIsZero && !newIsZero:
		return GasSstoreSet, nil
	case !currentIsZero && newIsZero:
		evm.StateDB.AddRefund(GasSstoreRefund)
		return GasSstoreReset, nil
	default:
		return GasSstoreReset, nil
	}
}

// gasCallFrontier computes CALL's dynamic gas: NewAccountGas whenever the
// callee address does not yet exist (unconditionally on value, the rule in
// force until EIP-158 narrowed it) plus CallValueTransferGas when the call
// carries a non-zero value. Memory expansion is charged separately by the
// interpreter loop via operation.memorySize.
// Stack: gas, addr, value, argsOffset, argsLength, retOffset, retLength.
func gasCallFrontier(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	addrVal, value := stack.Back(1), stack.Back(2)
	var gas uint64
	if evm.StateDB != nil {
		addr := types.BytesToAddress(addrVal.Bytes())
		if !evm.StateDB.Exist(addr) {
			gas += NewAccountGas
		}
	}
	if !value.IsZero() {
		gas += CallValueTransferGas
	}
	return gas, nil
}

// gasCallCodeFrontier computes CALLCODE's dynamic gas. Unlike CALL,
// CALLCODE never charges NewAccountGas: it runs in the caller's own
// storage/balance context, so there is no new account to create.
// Stack: gas, addr, value, argsOffset, argsLength, retOffset, retLength.
func gasCallCodeFrontier(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	value := stack.Back(2)
	if !value.IsZero() {
		return CallValueTransferGas, nil
	}
	return 0, nil
}

// gasSelfdestructEIP150 charges NewAccountGas when SELFDESTRUCT sends a
// non-zero balance to a beneficiary that does not yet exist. Pre-EIP-150,
// SELFDESTRUCT has no dynamic component (constantGas alone covers it), so
// this function is only wired into the EIP-150 jump table.
func gasSelfdestructEIP150(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	beneficiaryVal := stack.Back(0)
	if evm.StateDB == nil {
		return 0, nil
	}
	beneficiary := types.BytesToAddress(beneficiaryVal.Bytes())
	if evm.StateDB.Exist(beneficiary) {
		return 0, nil
	}
	if evm.StateDB.GetBalance(contract.Address).Sign() == 0 {
		return 0, nil
	}
	return NewAccountGas, nil
}
