package ledger

import (
	"testing"

	"github.com/BitySA/dfinity-rust-libraries/config"
	"github.com/BitySA/dfinity-rust-libraries/txkinds"
	"github.com/BitySA/dfinity-rust-libraries/value"
	"github.com/stretchr/testify/require"
)

func testConfig() config.Config {
	cfg := config.DefaultConfig()
	cfg.SupportedBlocks = txkinds.Descriptors()
	return cfg
}

func TestEmptyLogScenario(t *testing.T) {
	e := NewEngine(testConfig(), NewManualClock(1000), NewDevPlatform(), nil)
	res := e.GetBlocks([]Range{{Start: 0, Length: 10}})
	require.Equal(t, uint64(0), res.LogLength)
	require.Empty(t, res.Blocks)
	require.Empty(t, res.ArchivedBlocks)

	cert := e.GetTipCertificate()
	require.Equal(t, leafTree(0, value.ZeroHash), cert.HashTree)
}

func TestThreeAppendsChain(t *testing.T) {
	e := NewEngine(testConfig(), NewManualClock(1000), NewDevPlatform(), nil)

	idA, err := e.AddTransaction(txkinds.Mint{To: "X", Amount: 100})
	require.NoError(t, err)
	idB, err := e.AddTransaction(txkinds.Transfer{From: "X", To: "Y", Amount: 40})
	require.NoError(t, err)
	idC, err := e.AddTransaction(txkinds.Burn{From: "Y", Amount: 10})
	require.NoError(t, err)

	require.Equal(t, uint64(0), idA)
	require.Equal(t, uint64(1), idB)
	require.Equal(t, uint64(2), idC)
	require.Equal(t, uint64(3), e.log.LogLength())

	blockA, ok := e.log.blockAt(0)
	require.True(t, ok)
	blockB, ok := e.log.blockAt(1)
	require.True(t, ok)
	blockC, ok := e.log.blockAt(2)
	require.True(t, ok)

	phashB, ok := blockB.Block.MapGet("phash")
	require.True(t, ok)
	rawPhashB, ok := phashB.AsBlob()
	require.True(t, ok)

	phashC, ok := blockC.Block.MapGet("phash")
	require.True(t, ok)
	rawPhashC, ok := phashC.AsBlob()
	require.True(t, ok)

	require.NotEqual(t, rawPhashB, rawPhashC)

	hashA := value.Hash(blockA.Block)
	hashB := value.Hash(blockB.Block)
	require.Equal(t, hashA[:], rawPhashB)
	require.Equal(t, hashB[:], rawPhashC)
}

func TestDuplicateRejectionAndWindowExpiry(t *testing.T) {
	clock := NewManualClock(1000)
	cfg := testConfig()
	cfg.TxWindow = 100
	e := NewEngine(cfg, clock, NewDevPlatform(), nil)

	tx := txkinds.Mint{To: "X", Amount: 100}
	idA, err := e.AddTransaction(tx)
	require.NoError(t, err)
	require.Equal(t, uint64(0), idA)

	_, err = e.AddTransaction(tx)
	var dup *DuplicateError
	require.ErrorAs(t, err, &dup)
	require.Equal(t, uint64(0), dup.Of)

	clock.Advance(200)
	idA2, err := e.AddTransaction(tx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), idA2)
}

func TestPrepareCommitHappyPath(t *testing.T) {
	e := NewEngine(testConfig(), NewManualClock(1000), NewDevPlatform(), nil)
	tx := txkinds.Mint{To: "X", Amount: 100}

	prepared, err := e.PrepareTransaction(tx)
	require.NoError(t, err)

	id, err := e.CommitPreparedTransaction(tx, prepared.PreparedAt)
	require.NoError(t, err)
	require.Equal(t, uint64(0), id)

	_, err = e.CommitPreparedTransaction(tx, prepared.PreparedAt)
	require.ErrorIs(t, err, ErrNotPrepared)
}

func TestCommitPreparedTransactionRejectsTimestampAgedOutSincePrepare(t *testing.T) {
	clock := NewManualClock(1000)
	cfg := testConfig()
	cfg.TxWindow = 100
	e := NewEngine(cfg, clock, NewDevPlatform(), nil)

	tx := txkinds.Mint{To: "X", Amount: 100, UserTs: 1000, HasUserTs: true}
	prepared, err := e.PrepareTransaction(tx)
	require.NoError(t, err)

	clock.Advance(200)
	_, err = e.CommitPreparedTransaction(tx, prepared.PreparedAt)
	require.ErrorIs(t, err, ErrTooOld)
}

func TestCleanupExpiredPreparedTransactionsIdempotent(t *testing.T) {
	clock := NewManualClock(0)
	e := NewEngine(testConfig(), clock, NewDevPlatform(), nil)
	_, err := e.PrepareTransaction(txkinds.Mint{To: "X", Amount: 1})
	require.NoError(t, err)
	require.Equal(t, uint64(1), e.PreparedTransactionsCount())

	clock.Advance(preparedExpiry + 1)
	removed := e.CleanupExpiredPreparedTransactions()
	require.Equal(t, uint64(1), removed)

	removedAgain := e.CleanupExpiredPreparedTransactions()
	require.Equal(t, uint64(0), removedAgain)
}
