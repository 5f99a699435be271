package state

import (
	"github.com/VictoriaMetrics/fastcache"

	"github.com/eth2030/eth2030/core/rawdb"
	"github.com/eth2030/eth2030/core/types"
)

// codeCacheBytes bounds the in-memory contract-code cache fastcache keeps in
// front of the code KVStore, mirroring go-ethereum's state.Database code
// cache (there an LRU of decoded trie nodes/code; here a flat fastcache
// since code is immutable and content-addressed).
const codeCacheBytes = 16 * 1024 * 1024 // 16MB

// CodeStore persists contract bytecode to a KVStore keyed by its Keccak-256
// hash. A bounded fastcache sits in front so a hot contract's code is
// not re-read from the KVStore on every CALL.
type CodeStore struct {
	db    rawdb.KeyValueStore
	cache *fastcache.Cache
}

// NewCodeStore wraps a KVStore with a fastcache-backed code cache.
func NewCodeStore(db rawdb.KeyValueStore) *CodeStore {
	return &CodeStore{db: db, cache: fastcache.New(codeCacheBytes)}
}

// Get returns the code stored under codeHash, consulting the cache before
// falling back to the underlying KVStore. The empty-code hash always
// resolves to a nil, ok=true result without touching the store.
func (c *CodeStore) Get(codeHash types.Hash) ([]byte, bool) {
	if c == nil || codeHash == types.EmptyCodeHash {
		return nil, true
	}
	if cached, ok := c.cache.HasGet(nil, codeHash[:]); ok {
		return cached, true
	}
	code, err := rawdb.ReadCode(c.db, [32]byte(codeHash))
	if err != nil || len(code) == 0 {
		return nil, false
	}
	c.cache.Set(codeHash[:], code)
	return code, true
}

// Set persists code under its Keccak-256 hash and warms the cache. A nop
// for the empty-code hash, which is never written to the store.
func (c *CodeStore) Set(codeHash types.Hash, code []byte) {
	if c == nil || codeHash == types.EmptyCodeHash || len(code) == 0 {
		return
	}
	if _, ok := c.cache.HasGet(nil, codeHash[:]); !ok {
		rawdb.WriteCode(c.db, [32]byte(codeHash), code)
	}
	c.cache.Set(codeHash[:], code)
}
