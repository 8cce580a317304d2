// Package txkinds provides example Transaction implementations (mint,
// transfer, burn) exercising the engine's capability contract end to end
// (spec.md §4.2, §8 scenario 2).
package txkinds

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"

	"github.com/BitySA/dfinity-rust-libraries/config"
	"github.com/BitySA/dfinity-rust-libraries/value"
)

// Mint credits amount to To. It has no From (spec.md §4.2 example:
// "mint forbids from").
type Mint struct {
	To        string
	Amount    uint64
	Memo      string
	UserTs    uint64
	HasUserTs bool
}

func (m Mint) ValidateFields() error {
	if m.To == "" {
		return errors.New("mint: to is required")
	}
	if m.Amount == 0 {
		return errors.New("mint: amount must be > 0")
	}
	return nil
}

func (m Mint) Timestamp() (uint64, bool) { return m.UserTs, m.HasUserTs }
func (m Mint) BlockType() string         { return "1mint" }

func (m Mint) ContentHash() [32]byte {
	return contentHash("1mint", "", m.To, m.Amount, m.Memo)
}

func (m Mint) ToValue() value.V {
	return value.MustMap([]value.Entry{
		{Key: "to", Value: value.NewText(m.To)},
		{Key: "amount", Value: value.NewNatU64(m.Amount)},
		{Key: "memo", Value: value.NewText(m.Memo)},
	})
}

// Transfer moves amount from From to To.
type Transfer struct {
	From      string
	To        string
	Amount    uint64
	Memo      string
	UserTs    uint64
	HasUserTs bool
}

func (t Transfer) ValidateFields() error {
	if t.From == "" {
		return errors.New("transfer: from is required")
	}
	if t.To == "" {
		return errors.New("transfer: to is required")
	}
	if t.Amount == 0 {
		return errors.New("transfer: amount must be > 0")
	}
	return nil
}

func (t Transfer) Timestamp() (uint64, bool) { return t.UserTs, t.HasUserTs }
func (t Transfer) BlockType() string         { return "1xfer" }

func (t Transfer) ContentHash() [32]byte {
	return contentHash("1xfer", t.From, t.To, t.Amount, t.Memo)
}

func (t Transfer) ToValue() value.V {
	return value.MustMap([]value.Entry{
		{Key: "from", Value: value.NewText(t.From)},
		{Key: "to", Value: value.NewText(t.To)},
		{Key: "amount", Value: value.NewNatU64(t.Amount)},
		{Key: "memo", Value: value.NewText(t.Memo)},
	})
}

// Burn destroys amount held by From. It has no To.
type Burn struct {
	From      string
	Amount    uint64
	Memo      string
	UserTs    uint64
	HasUserTs bool
}

func (b Burn) ValidateFields() error {
	if b.From == "" {
		return errors.New("burn: from is required")
	}
	if b.Amount == 0 {
		return errors.New("burn: amount must be > 0")
	}
	return nil
}

func (b Burn) Timestamp() (uint64, bool) { return b.UserTs, b.HasUserTs }
func (b Burn) BlockType() string         { return "1burn" }

func (b Burn) ContentHash() [32]byte {
	return contentHash("1burn", b.From, "", b.Amount, b.Memo)
}

func (b Burn) ToValue() value.V {
	return value.MustMap([]value.Entry{
		{Key: "from", Value: value.NewText(b.From)},
		{Key: "amount", Value: value.NewNatU64(b.Amount)},
		{Key: "memo", Value: value.NewText(b.Memo)},
	})
}

func contentHash(btype, from, to string, amount uint64, memo string) [32]byte {
	h := sha256.New()
	h.Write([]byte(btype))
	h.Write([]byte{0})
	h.Write([]byte(from))
	h.Write([]byte{0})
	h.Write([]byte(to))
	h.Write([]byte{0})
	var amt [8]byte
	binary.BigEndian.PutUint64(amt[:], amount)
	h.Write(amt[:])
	h.Write([]byte(memo))
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Descriptors is the supported_blocks entry list for this package's three
// block types (spec.md §6).
func Descriptors() []config.BlockTypeDescriptor {
	return []config.BlockTypeDescriptor{
		{BlockType: "1mint", URL: "https://github.com/BitySA/dfinity-rust-libraries/blob/main/docs/block-types.md#1mint"},
		{BlockType: "1xfer", URL: "https://github.com/BitySA/dfinity-rust-libraries/blob/main/docs/block-types.md#1xfer"},
		{BlockType: "1burn", URL: "https://github.com/BitySA/dfinity-rust-libraries/blob/main/docs/block-types.md#1burn"},
	}
}
