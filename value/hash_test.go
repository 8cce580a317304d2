package value

import (
	"crypto/sha256"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashDeterministic(t *testing.T) {
	a := MustMap([]Entry{
		{Key: "btype", Value: NewText("1xfer")},
		{Key: "ts", Value: NewNatU64(100)},
	})
	b := MustMap([]Entry{
		{Key: "ts", Value: NewNatU64(100)},
		{Key: "btype", Value: NewText("1xfer")},
	})
	require.Equal(t, Hash(a), Hash(b), "hash must not depend on map insertion order")
}

func TestHashDistinguishesIntSign(t *testing.T) {
	pos := NewIntI64(5)
	neg := NewIntI64(-5)
	require.NotEqual(t, Hash(pos), Hash(neg))
}

func TestHashZeroNatIsEmptyMagnitude(t *testing.T) {
	zero := NewNatU64(0)
	require.Equal(t, sha256.Sum256(nil), Hash(zero))
}

func TestHashArrayOrderSensitive(t *testing.T) {
	a := NewArray([]V{NewIntI64(1), NewIntI64(2)})
	b := NewArray([]V{NewIntI64(2), NewIntI64(1)})
	require.NotEqual(t, Hash(a), Hash(b))
}

func TestHashBlobIsRawBytes(t *testing.T) {
	b := NewBlob([]byte("hello"))
	require.Equal(t, sha256.Sum256([]byte("hello")), Hash(b))
}

func TestHashNatMagnitudeEncoding(t *testing.T) {
	n := NewNatU64(256)
	require.Equal(t, sha256.Sum256(encodeMagnitude(big.NewInt(256))), Hash(n))
}
