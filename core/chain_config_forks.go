// chain_config_forks.go provides a structured fork schedule representation
// and fork transition detection. It extends ChainConfig with methods for
// querying fork activation blocks and enumerating active/pending forks.
package core

import (
	"fmt"
	"math/big"
)

// ForkID identifies a fork by name and activation block.
type ForkID struct {
	Name  string
	Block *big.Int // nil means not scheduled
}

// String returns a human-readable representation of the fork.
func (f ForkID) String() string {
	if f.Block != nil {
		return fmt.Sprintf("%s@block:%s", f.Name, f.Block.String())
	}
	return fmt.Sprintf("%s@pending", f.Name)
}

// IsActive returns true if the fork is active at the given block number.
func (f ForkID) IsActive(num *big.Int) bool {
	return isBlockForked(f.Block, num)
}

// ForkSchedule returns the complete ordered list of forks defined in the
// chain configuration. Forks with nil activation are included but marked
// as pending.
func (c *ChainConfig) ForkSchedule() []ForkID {
	return []ForkID{
		{Name: "Homestead", Block: c.HomesteadBlock},
		{Name: "EIP150", Block: c.EIP150Block},
	}
}

// ActiveForks returns only the forks that are active at the given block number.
func (c *ChainConfig) ActiveForks(num *big.Int) []ForkID {
	var active []ForkID
	for _, f := range c.ForkSchedule() {
		if f.IsActive(num) {
			active = append(active, f)
		}
	}
	return active
}

// PendingForks returns forks that have activation points set but are not yet
// active at the given block number.
func (c *ChainConfig) PendingForks(num *big.Int) []ForkID {
	var pending []ForkID
	for _, f := range c.ForkSchedule() {
		if f.Block != nil && !f.IsActive(num) {
			pending = append(pending, f)
		}
	}
	return pending
}

// UnscheduledForks returns forks with no activation block set.
func (c *ChainConfig) UnscheduledForks() []ForkID {
	var unscheduled []ForkID
	for _, f := range c.ForkSchedule() {
		if f.Block == nil {
			unscheduled = append(unscheduled, f)
		}
	}
	return unscheduled
}

// NextForkAfter returns the next fork that will activate after the given
// block number. Returns an empty ForkID if no future forks are scheduled.
func (c *ChainConfig) NextForkAfter(num *big.Int) ForkID {
	pending := c.PendingForks(num)
	if len(pending) == 0 {
		return ForkID{}
	}
	return pending[0]
}
