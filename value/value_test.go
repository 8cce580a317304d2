package value

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEqualStructural(t *testing.T) {
	a := MustMap([]Entry{
		{Key: "a", Value: NewIntI64(1)},
		{Key: "b", Value: NewText("x")},
	})
	b := MustMap([]Entry{
		{Key: "b", Value: NewText("x")},
		{Key: "a", Value: NewIntI64(1)},
	})
	require.True(t, Equal(a, b), "map equality must be order-independent")

	c := NewArray([]V{NewIntI64(1), NewIntI64(2)})
	d := NewArray([]V{NewIntI64(2), NewIntI64(1)})
	require.False(t, Equal(c, d), "array equality must be order-dependent")
}

func TestNatRejectsNegative(t *testing.T) {
	_, err := NewNat(big.NewInt(-1))
	require.Error(t, err)
}

func TestMapRejectsDuplicateKeys(t *testing.T) {
	_, err := NewMap([]Entry{
		{Key: "a", Value: NewIntI64(1)},
		{Key: "a", Value: NewIntI64(2)},
	})
	require.Error(t, err)
}

func TestMapGet(t *testing.T) {
	m := MustMap([]Entry{
		{Key: "phash", Value: NewBlob(make([]byte, 32))},
		{Key: "btype", Value: NewText("1mint")},
	})
	got, ok := m.MapGet("btype")
	require.True(t, ok)
	text, ok := got.AsText()
	require.True(t, ok)
	require.Equal(t, "1mint", text)

	_, ok = m.MapGet("missing")
	require.False(t, ok)
}
