package archive

import (
	"fmt"
	"sync"
)

// CountingWallet is a simple in-memory Wallet: a single balance debited by
// shard creation and offload calls (spec.md §5 "Cycles/budget"). It stands
// in for a platform-managed cycles ledger in deployments, like the
// standalone daemon, that have none of their own.
type CountingWallet struct {
	mu      sync.Mutex
	balance uint64
}

func NewCountingWallet(initialBalance uint64) *CountingWallet {
	return &CountingWallet{balance: initialBalance}
}

func (w *CountingWallet) Debit(amount uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if amount > w.balance {
		return fmt.Errorf("archive: wallet balance %d insufficient for debit %d", w.balance, amount)
	}
	w.balance -= amount
	return nil
}

func (w *CountingWallet) Balance() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balance
}
