package core

import (
	"math/big"

	"github.com/eth2030/eth2030/core/vm"
)

// ChainConfig holds the chain-level fork schedule. Forks in this module are
// activated by block number, matching the pre-Paris forks they model: a nil
// block means the fork is not scheduled on this chain.
type ChainConfig struct {
	ChainID *big.Int

	HomesteadBlock *big.Int // Homestead: DELEGATECALL, CREATE keeps empty code on deposit OOG
	EIP150Block    *big.Int // Tangerine Whistle: 63/64 gas forwarding, account-op repricing
}

// IsHomestead returns whether num is at or past the Homestead fork.
func (c *ChainConfig) IsHomestead(num *big.Int) bool {
	return isBlockForked(c.HomesteadBlock, num)
}

// IsEIP150 returns whether num is at or past the Tangerine Whistle fork.
func (c *ChainConfig) IsEIP150(num *big.Int) bool {
	return isBlockForked(c.EIP150Block, num)
}

func isBlockForked(forkBlock, num *big.Int) bool {
	if forkBlock == nil || num == nil {
		return false
	}
	return forkBlock.Cmp(num) <= 0
}

// Rules returns the vm.ForkRules active at the given block number, for
// selecting the jump table and precompile set.
func (c *ChainConfig) Rules(num *big.Int) vm.ForkRules {
	return vm.ForkRules{
		IsHomestead: c.IsHomestead(num),
		IsEIP150:    c.IsEIP150(num),
	}
}

// MainnetConfig mirrors Ethereum mainnet's historical Frontier/Homestead/
// Tangerine Whistle activation blocks.
var MainnetConfig = &ChainConfig{
	ChainID:        big.NewInt(1),
	HomesteadBlock: big.NewInt(1_150_000),
	EIP150Block:    big.NewInt(2_463_000),
}

// TestConfig activates every in-scope fork at genesis.
var TestConfig = &ChainConfig{
	ChainID:        big.NewInt(1337),
	HomesteadBlock: big.NewInt(0),
	EIP150Block:    big.NewInt(0),
}

// FrontierOnlyConfig never activates Homestead or EIP-150, for testing
// Frontier-era semantics in isolation.
var FrontierOnlyConfig = &ChainConfig{
	ChainID: big.NewInt(1337),
}

// HomesteadOnlyConfig returns a config with Homestead active from genesis
// and EIP-150 never scheduled, for testing the middle fork in isolation.
func HomesteadOnlyConfig() *ChainConfig {
	return &ChainConfig{
		ChainID:        big.NewInt(1337),
		HomesteadBlock: big.NewInt(0),
	}
}
