package vm

import "github.com/holiman/uint256"

// Memory is the EVM's byte-addressable, implicitly zero-initialised,
// auto-extending scratch buffer. Growth is driven by the interpreter
// loop in EVM.Run, which charges the quadratic expansion cost (via
// gasMemExpansion in jump_table.go) before the backing slice is grown
// with Resize.
type Memory struct {
	store []byte
}

// NewMemory returns an empty Memory.
func NewMemory() *Memory {
	return &Memory{}
}

// Set copies value into memory at the given offset. The destination range
// must already be within the allocated store (callers extend first).
func (m *Memory) Set(offset, size uint64, value []byte) {
	if size == 0 {
		return
	}
	if offset+size > uint64(len(m.store)) {
		panic("memory: out of bounds write")
	}
	copy(m.store[offset:offset+size], value)
}

// Set32 writes a 32-byte word at offset, big-endian, zero-padded on the left.
func (m *Memory) Set32(offset uint64, val *uint256.Int) {
	if offset+32 > uint64(len(m.store)) {
		panic("memory: out of bounds write")
	}
	for i := uint64(0); i < 32; i++ {
		m.store[offset+i] = 0
	}
	val.WriteToSlice(m.store[offset : offset+32])
}

// Resize grows memory to size bytes, zero-filling the new region. It is a
// no-op if memory is already at least that large; callers never shrink.
func (m *Memory) Resize(size uint64) {
	if uint64(len(m.store)) < size {
		m.store = append(m.store, make([]byte, size-uint64(len(m.store)))...)
	}
}

// Get returns a copy of memory[offset:offset+size], zero-filling any part
// that falls past the end of the allocated store.
func (m *Memory) Get(offset, size int64) []byte {
	if size == 0 {
		return nil
	}
	out := make([]byte, size)
	if offset < int64(len(m.store)) {
		end := offset + size
		if end > int64(len(m.store)) {
			end = int64(len(m.store))
		}
		copy(out, m.store[offset:end])
	}
	return out
}

// GetPtr returns a direct slice reference into memory[offset:offset+size].
func (m *Memory) GetPtr(offset, size int64) []byte {
	if size == 0 {
		return nil
	}
	return m.store[offset : offset+size]
}

// Len returns the current length of memory in bytes.
func (m *Memory) Len() int {
	return len(m.store)
}

// Data returns the full backing slice, for tracers.
func (m *Memory) Data() []byte {
	return m.store
}
