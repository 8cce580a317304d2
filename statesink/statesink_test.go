package statesink

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	sink, err := Open(t.TempDir())
	require.NoError(t, err)

	_, ok, err := sink.Load()
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, sink.Save([]byte("hello state")))

	blob, ok, err := sink.Load()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("hello state"), blob)
}

func TestSaveOverwritesPreviousBlob(t *testing.T) {
	sink, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, sink.Save([]byte("first")))
	require.NoError(t, sink.Save([]byte("second, longer value")))

	blob, ok, err := sink.Load()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("second, longer value"), blob)
}
