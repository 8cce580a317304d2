package ledger

import (
	"context"
	"testing"

	"github.com/BitySA/dfinity-rust-libraries/archive"
	"github.com/BitySA/dfinity-rust-libraries/txkinds"
	"github.com/BitySA/dfinity-rust-libraries/value"
	"github.com/stretchr/testify/require"
)

func TestOffloadBoundaryAndFederatedRead(t *testing.T) {
	cfg := testConfig()
	cfg.MaxUnarchivedTransactions = 3
	cfg.MaxSegmentSizeBytes = 1 << 20

	factory := archive.NewLocalFactory(t.TempDir(), 1<<20)
	mgr := archive.NewManager(factory, nil, 1<<20, 5, cfg.InitialCycles, cfg.ReservedCycles, nil)
	e := NewEngine(cfg, NewManualClock(1000), NewDevPlatform(), mgr)
	offloader := archive.NewOffloader(mgr, e, cfg.OffloadTickInterval, cfg.MaxSegmentSizeBytes, nil)

	var expected []value.V
	for i := 0; i < 5; i++ {
		id, err := e.AddTransaction(txkinds.Mint{To: "X", Amount: uint64(i + 1)})
		require.NoError(t, err)
		bw, ok := e.log.blockAt(id)
		require.True(t, ok)
		expected = append(expected, bw.Block)
	}

	offloader.Tick(context.Background())

	archives := e.GetArchives()
	require.Len(t, archives, 1)
	require.Equal(t, uint64(0), archives[0].IdRangeStart)
	require.LessOrEqual(t, e.log.residentLen(), 2)

	res := e.GetBlocks([]Range{{Start: 0, Length: 5}})
	require.Len(t, res.ArchivedBlocks, 1)

	all := make(map[uint64]value.V)
	for _, bw := range res.Blocks {
		all[bw.Id] = bw.Block
	}
	for _, aq := range res.ArchivedBlocks {
		got, err := aq.Fetch(context.Background())
		require.NoError(t, err)
		for _, bw := range got.Blocks {
			v, err := value.Decode(bw.Block)
			require.NoError(t, err)
			all[bw.Id] = v
		}
	}

	require.Len(t, all, 5)
	for i := uint64(0); i < 5; i++ {
		v, ok := all[i]
		require.True(t, ok, "missing id %d", i)
		require.True(t, value.Equal(v, expected[i]), "block %d mismatch", i)
	}
}
