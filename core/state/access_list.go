package state

import "github.com/eth2030/eth2030/core/types"

// accessList tracks the set of addresses and storage slots touched during a
// transaction. An address with no slots yet recorded maps to -1; once a
// slot is added for that address, the map value becomes an index into slots.
type accessList struct {
	addresses map[types.Address]int
	slots     []map[types.Hash]struct{}
}

func newAccessList() *accessList {
	return &accessList{addresses: make(map[types.Address]int)}
}

// ContainsAddress reports whether address is present in the list, regardless
// of whether it has any associated slots.
func (al *accessList) ContainsAddress(address types.Address) bool {
	_, ok := al.addresses[address]
	return ok
}

// ContainsSlot reports whether address and slot are present in the list.
func (al *accessList) ContainsSlot(address types.Address, slot types.Hash) (addressPresent bool, slotPresent bool) {
	idx, ok := al.addresses[address]
	if !ok {
		return false, false
	}
	if idx == -1 {
		return true, false
	}
	_, slotPresent = al.slots[idx][slot]
	return true, slotPresent
}

// AddAddress adds address to the list. It returns true if the address was
// already present (a no-op), false if this call inserted it.
func (al *accessList) AddAddress(address types.Address) bool {
	if _, present := al.addresses[address]; present {
		return true
	}
	al.addresses[address] = -1
	return false
}

// AddSlot adds slot (and, implicitly, address) to the list. addrPresent and
// slotPresent report whether each was already present before this call, so
// the caller can journal only genuinely new entries.
func (al *accessList) AddSlot(address types.Address, slot types.Hash) (addrPresent bool, slotPresent bool) {
	idx, ok := al.addresses[address]
	if !ok {
		al.addresses[address] = len(al.slots)
		al.slots = append(al.slots, map[types.Hash]struct{}{slot: {}})
		return false, false
	}
	if idx == -1 {
		al.addresses[address] = len(al.slots)
		al.slots = append(al.slots, map[types.Hash]struct{}{slot: {}})
		return true, false
	}
	if _, ok := al.slots[idx][slot]; ok {
		return true, true
	}
	al.slots[idx][slot] = struct{}{}
	return true, false
}

// DeleteAddress removes address (and any of its slots) from the list. Used
// only to unwind a journal entry on revert.
func (al *accessList) DeleteAddress(address types.Address) {
	delete(al.addresses, address)
}

// DeleteSlot removes slot from address's slot set. Reverts are required to
// happen in reverse insertion order, so the freed slot map is always the
// last entry in slots when it becomes empty.
func (al *accessList) DeleteSlot(address types.Address, slot types.Hash) {
	idx, ok := al.addresses[address]
	if !ok {
		return
	}
	slotmap := al.slots[idx]
	delete(slotmap, slot)
	if len(slotmap) == 0 && idx == len(al.slots)-1 {
		al.slots = al.slots[:idx]
		al.addresses[address] = -1
	}
}

// Copy returns a deep copy of the list.
func (al *accessList) Copy() *accessList {
	cp := newAccessList()
	for addr, idx := range al.addresses {
		cp.addresses[addr] = idx
	}
	cp.slots = make([]map[types.Hash]struct{}, len(al.slots))
	for i, slotMap := range al.slots {
		newMap := make(map[types.Hash]struct{}, len(slotMap))
		for k, v := range slotMap {
			newMap[k] = v
		}
		cp.slots[i] = newMap
	}
	return cp
}
