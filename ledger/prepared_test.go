package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPreparedSetExpiry(t *testing.T) {
	p := newPreparedSet()
	var h [32]byte
	h[0] = 1
	p.insert(h, 1000)

	require.Equal(t, uint64(0), p.cleanupExpired(1000+preparedExpiry))
	require.Equal(t, uint64(1), p.cleanupExpired(1000+preparedExpiry+1))
	_, ok := p.get(h)
	require.False(t, ok)
}

func TestPreparedSetGetRemove(t *testing.T) {
	p := newPreparedSet()
	var h [32]byte
	h[0] = 7
	p.insert(h, 42)
	at, ok := p.get(h)
	require.True(t, ok)
	require.Equal(t, uint64(42), at)

	p.remove(h)
	_, ok = p.get(h)
	require.False(t, ok)
}
