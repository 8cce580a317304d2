package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWindowIndexEvictsOldEntries(t *testing.T) {
	w := newWindowIndex(100)
	var h1, h2 [32]byte
	h1[0] = 1
	h2[0] = 2
	w.record(h1, 0, 0)
	w.record(h2, 1, 50)

	w.evictBefore(150)
	_, ok := w.lookup(h1)
	require.False(t, ok)
	_, ok = w.lookup(h2)
	require.True(t, ok)
}

func TestWindowIndexLookup(t *testing.T) {
	w := newWindowIndex(100)
	var h [32]byte
	h[0] = 9
	_, ok := w.lookup(h)
	require.False(t, ok)
	w.record(h, 5, 10)
	id, ok := w.lookup(h)
	require.True(t, ok)
	require.Equal(t, uint64(5), id)
}
