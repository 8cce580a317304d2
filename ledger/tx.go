package ledger

import "github.com/BitySA/dfinity-rust-libraries/value"

// Transaction is the capability the host application implements per payload
// type (spec.md §4.2). The core never inspects a payload's fields directly;
// it only calls through this interface.
type Transaction interface {
	// ValidateFields performs structural and domain-invariant validation
	// (e.g. "mint forbids from", "transfer requires to"). A non-nil error's
	// message becomes the InvalidTransactionError reason.
	ValidateFields() error

	// Timestamp returns the host-supplied event time in nanoseconds, if
	// any. ok is false when the host leaves timestamping to the core.
	Timestamp() (ns uint64, ok bool)

	// ContentHash is a stable digest over the semantically meaningful
	// fields of the transaction, independent of the block it ends up in.
	// It is the dedup key.
	ContentHash() [32]byte

	// BlockType is the host-supplied block type tag (e.g. "1xfer"); it
	// must belong to the engine's configured supported_blocks.
	BlockType() string

	// ToValue renders the payload as a value.V, becoming the block's "tx"
	// field.
	ToValue() value.V
}
