package vm

import (
	"sync"

	"github.com/holiman/uint256"
)

// stackLimit is the maximum number of elements the EVM operand stack may
// hold at once.
const stackLimit = 1024

// ErrStackOverflow and ErrStackUnderflow are declared in interpreter.go
// alongside the rest of the EVM's sentinel errors.

// Stack is the EVM operand stack: a bounded, 256-bit-word LIFO.
type Stack struct {
	data []uint256.Int
}

var stackPool = sync.Pool{
	New: func() interface{} {
		return &Stack{data: make([]uint256.Int, 0, 16)}
	},
}

// NewStack returns a stack drawn from a shared pool; call returnStack when done.
func NewStack() *Stack {
	return stackPool.Get().(*Stack)
}

func (st *Stack) reset() {
	st.data = st.data[:0]
}

func returnStack(st *Stack) {
	st.reset()
	stackPool.Put(st)
}

// Push appends a value to the top of the stack.
func (st *Stack) Push(d *uint256.Int) error {
	if len(st.data) >= stackLimit {
		return ErrStackOverflow
	}
	st.data = append(st.data, *d)
	return nil
}

// Pop removes and returns the top element. Caller must check Len() first.
func (st *Stack) Pop() uint256.Int {
	n := len(st.data) - 1
	v := st.data[n]
	st.data = st.data[:n]
	return v
}

// Peek returns a pointer to the top element without removing it.
func (st *Stack) Peek() *uint256.Int {
	return &st.data[len(st.data)-1]
}

// Back returns the nth element from the top without removing it (0 = top).
func (st *Stack) Back(n int) *uint256.Int {
	return &st.data[len(st.data)-1-n]
}

// Require returns ErrStackUnderflow unless at least n elements are present.
func (st *Stack) Require(n int) error {
	if len(st.data) < n {
		return ErrStackUnderflow
	}
	return nil
}

// Swap exchanges the top element with the nth element below it (n counted
// from the element under the top, so Swap(1) is SWAP1).
func (st *Stack) Swap(n int) {
	top := len(st.data) - 1
	st.data[top], st.data[top-n] = st.data[top-n], st.data[top]
}

// Dup duplicates the nth element from the top (1-indexed: Dup(1) duplicates
// the top element, matching DUP1) and pushes the copy.
func (st *Stack) Dup(n int) {
	st.data = append(st.data, st.data[len(st.data)-n])
}

// Len returns the number of elements currently on the stack.
func (st *Stack) Len() int {
	return len(st.data)
}

// Data exposes the underlying slice, bottom to top, for tracers.
func (st *Stack) Data() []uint256.Int {
	return st.data
}
