package idgen

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// NewFunc generates a globally unique task identifier (gtid). It is a
// package variable so tests can stub it for deterministic fixtures.
var NewFunc = func() string { return uuid.New().String() }

// NewGtid returns a new globally unique task identifier.
func NewGtid() string { return NewFunc() }

// barrierCounter backs NewBarrier/NewSeqnum. Real barrier and sequence
// tokens are minted by the kernel; this monotonic counter only stands in
// for that role in the simulated topology used by tests and examples.
var barrierCounter uint64

// NewBarrier returns the next opaque barrier token.
func NewBarrier() uint64 {
	return atomic.AddUint64(&barrierCounter, 1)
}

// NewSeqnum returns the next opaque per-message sequence token. Sequence
// numbers and barriers are drawn from the same counter space; nothing in
// the core depends on them being distinguishable, only monotonic.
func NewSeqnum() uint64 {
	return atomic.AddUint64(&barrierCounter, 1)
}

// NewTxnID returns an identifier for a run-request transaction, used only
// for tracing/log correlation.
func NewTxnID(gtid string, cpu int) string {
	return fmt.Sprintf("%s@cpu%d/%s", gtid, cpu, uuid.New().String()[:8])
}
