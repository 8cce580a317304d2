package archive

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeShard struct {
	inserted []BlockWithId
}

func (f *fakeShard) InsertBlocks(ctx context.Context, blocks []BlockWithId) error {
	f.inserted = append(f.inserted, blocks...)
	return nil
}
func (f *fakeShard) GetBlocks(ctx context.Context, requests []Range) (GetBlocksResult, error) {
	return GetBlocksResult{}, nil
}
func (f *fakeShard) RemainingCapacity(ctx context.Context) (uint64, error) { return 0, nil }
func (f *fakeShard) TotalTransactions(ctx context.Context) (uint64, error) { return uint64(len(f.inserted)), nil }

type fakeWallet struct {
	balance uint64
	debits  []uint64
}

func (w *fakeWallet) Debit(amount uint64) error {
	w.debits = append(w.debits, amount)
	if amount > w.balance {
		return errors.New("insufficient balance")
	}
	w.balance -= amount
	return nil
}

type fakeFactory struct {
	fail  int
	calls int
}

func (f *fakeFactory) CreateShard(ctx context.Context, initialCycles uint64) (ShardAddress, Shard, error) {
	f.calls++
	if f.calls <= f.fail {
		return "", nil, errors.New("boom")
	}
	return ShardAddress("shard-0"), &fakeShard{}, nil
}

func TestManagerCreatesShardWhenNoneActive(t *testing.T) {
	factory := &fakeFactory{}
	m := NewManager(factory, nil, 1000, 3, 100, 10, nil)
	addr, shard, err := m.RequestCapacity(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Equal(t, ShardAddress("shard-0"), addr)
	require.NotNil(t, shard)
	require.Len(t, m.Shards(), 1)
}

func TestManagerReusesActiveShardWhileItFits(t *testing.T) {
	factory := &fakeFactory{}
	m := NewManager(factory, nil, 1000, 3, 100, 10, nil)
	addr1, _, err := m.RequestCapacity(context.Background(), 10, 0)
	require.NoError(t, err)
	addr2, _, err := m.RequestCapacity(context.Background(), 10, 1)
	require.NoError(t, err)
	require.Equal(t, addr1, addr2)
}

func TestManagerHaltsAfterMaxRetries(t *testing.T) {
	factory := &fakeFactory{fail: 10}
	m := NewManager(factory, nil, 1000, 3, 100, 10, nil)
	var lastErr error
	for i := 0; i < 3; i++ {
		_, _, lastErr = m.RequestCapacity(context.Background(), 10, 0)
	}
	require.ErrorIs(t, lastErr, ErrArchiveCreationFailed)
	halted, _ := m.Halted()
	require.True(t, halted)
}

func TestShardForFindsOwningShard(t *testing.T) {
	factory := &fakeFactory{}
	m := NewManager(factory, nil, 1000, 3, 100, 10, nil)
	addr, _, err := m.RequestCapacity(context.Background(), 10, 0)
	require.NoError(t, err)
	m.RecordPlacement(addr, 4, 10)

	found, _, ok := m.ShardFor(2)
	require.True(t, ok)
	require.Equal(t, addr, found)

	_, _, ok = m.ShardFor(5)
	require.False(t, ok)
}

func TestRequestCapacityDebitsInitialCyclesOnShardCreation(t *testing.T) {
	factory := &fakeFactory{}
	wallet := &fakeWallet{balance: 1000}
	m := NewManager(factory, wallet, 1000, 3, 100, 10, nil)

	_, _, err := m.RequestCapacity(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Equal(t, []uint64{100}, wallet.debits)
	require.Equal(t, uint64(900), wallet.balance)
}

func TestRequestCapacityHaltsOnInsufficientCycles(t *testing.T) {
	factory := &fakeFactory{}
	wallet := &fakeWallet{balance: 50}
	m := NewManager(factory, wallet, 1000, 3, 100, 10, nil)

	_, _, err := m.RequestCapacity(context.Background(), 10, 0)
	require.ErrorIs(t, err, ErrInsufficientCycles)
	require.Equal(t, 0, factory.calls)
	halted, haltErr := m.Halted()
	require.True(t, halted)
	require.ErrorIs(t, haltErr, ErrInsufficientCycles)
}

func TestDebitOffloadCyclesHaltsWhenWalletExhausted(t *testing.T) {
	wallet := &fakeWallet{balance: 5}
	m := NewManager(&fakeFactory{}, wallet, 1000, 3, 100, 10, nil)

	err := m.DebitOffloadCycles()
	require.ErrorIs(t, err, ErrInsufficientCycles)
	halted, _ := m.Halted()
	require.True(t, halted)
}

func TestDebitOffloadCyclesNoopWithoutWallet(t *testing.T) {
	m := NewManager(&fakeFactory{}, nil, 1000, 3, 100, 10, nil)
	require.NoError(t, m.DebitOffloadCycles())
}
