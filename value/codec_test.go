package value

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	v := MustMap([]Entry{
		{Key: "phash", Value: NewBlob(make([]byte, 32))},
		{Key: "btype", Value: NewText("1xfer")},
		{Key: "ts", Value: NewNatU64(12345)},
		{Key: "tx", Value: NewArray([]V{NewIntI64(-7), NewIntI64(7)})},
	})
	b := Encode(v)
	got, err := Decode(b)
	require.NoError(t, err)
	require.True(t, Equal(v, got))
}

func TestEncodeDecodeEmptyMapAndArray(t *testing.T) {
	v := NewArray(nil)
	b := Encode(v)
	got, err := Decode(b)
	require.NoError(t, err)
	require.True(t, Equal(v, got))

	m := MustMap(nil)
	got, err = Decode(Encode(m))
	require.NoError(t, err)
	require.True(t, Equal(m, got))
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	b := Encode(NewIntI64(1))
	_, err := Decode(append(b, 0xff))
	require.Error(t, err)
}
