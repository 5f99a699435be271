package state

import (
	"github.com/eth2030/eth2030/core/types"
	"github.com/eth2030/eth2030/crypto"
	"github.com/eth2030/eth2030/rlp"
	"github.com/eth2030/eth2030/trie"
)

// TrieBackedStateDB wraps a MemoryStateDB and adds proper trie-backed state
// root computation via IntermediateRoot. It delegates all state operations to
// the underlying MemoryStateDB and only overrides root computation to build
// real Merkle Patricia Tries from account and storage data.
type TrieBackedStateDB struct {
	*MemoryStateDB
}

// NewTrieBackedStateDB creates a new TrieBackedStateDB wrapping a fresh
// MemoryStateDB.
func NewTrieBackedStateDB() *TrieBackedStateDB {
	return &TrieBackedStateDB{MemoryStateDB: NewMemoryStateDB()}
}

// IntermediateRoot computes the state root from a fresh Merkle Patricia Trie
// built over every live account, mirroring go-ethereum's per-transaction root
// computation. When deleteEmptyObjects is set, accounts that are "empty" per
// EIP-161 (zero nonce, zero balance, no code) are excluded even if they carry
// storage, since the account record itself is what the trie stores.
func (s *TrieBackedStateDB) IntermediateRoot(deleteEmptyObjects bool) types.Hash {
	stateTrie := trie.New()
	for addr, obj := range s.stateObjects {
		if obj.selfDestructed {
			continue
		}
		if deleteEmptyObjects && s.Empty(addr) {
			continue
		}

		storageRoot := computeStorageRoot(obj)
		codeHash := obj.account.CodeHash
		if len(codeHash) == 0 {
			codeHash = types.EmptyCodeHash.Bytes()
		}

		acc := rlpAccount{
			Nonce:    obj.account.Nonce,
			Balance:  obj.account.Balance,
			Root:     storageRoot[:],
			CodeHash: codeHash,
		}
		encoded, err := rlp.EncodeToBytes(acc)
		if err != nil {
			continue
		}

		hashedAddr := crypto.Keccak256(addr[:])
		stateTrie.Put(hashedAddr, encoded)
	}

	if stateTrie.Empty() {
		return types.EmptyRootHash
	}
	return stateTrie.Hash()
}

// Copy returns a deep copy of the TrieBackedStateDB. The underlying
// MemoryStateDB is copied independently so mutations to one do not affect
// the other.
func (s *TrieBackedStateDB) Copy() *TrieBackedStateDB {
	return &TrieBackedStateDB{MemoryStateDB: s.MemoryStateDB.Copy()}
}
