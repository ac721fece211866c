// Package channel declares the per-CPU kernel message channel contract
// (spec.md §6). A channel is the kernel-assisted queue delivering decoded
// Message values to a single agent and holding the task-association
// barrier used to reject stale associations. The interface shape mirrors
// the teacher's service/messaging.Queue[T]/Message[T] (Consume returning a
// handle with Ack/Nack) because a kernel message channel is, at bottom, a
// typed queue with the same peek/consume/ack rhythm.
package channel

import (
	"context"

	"github.com/oscore/dsched/model/message"
)

// Handle is a single pending message retrieved from a Channel. Consume
// commits the read (advances past the message); a handle that is peeked but
// never consumed must be re-observed by the next Peek call.
type Handle interface {
	Message() message.Message
}

// Channel is the per-CPU kernel→agent notification queue.
type Channel interface {
	// Peek returns the next pending message without removing it, or ok=false
	// if the channel is currently empty. Non-blocking, per spec.md §6.
	Peek(ctx context.Context) (Handle, bool)

	// Consume removes a previously peeked handle from the channel.
	Consume(ctx context.Context, h Handle) error

	// AssociateTask binds gtid to this channel under the given barrier. It
	// returns ok=false with an *ErrStale error when the barrier is
	// stale; every call site other than enclave-ready association treats a
	// stale result as a fatal programming error (spec.md §4.5, §4.9).
	AssociateTask(ctx context.Context, gtid string, barrier uint64) (ok bool, err error)
}

// ErrStale is returned by AssociateTask when the supplied barrier has
// already been superseded.
type ErrStale struct{ Gtid string }

func (e *ErrStale) Error() string { return "channel: stale barrier associating task " + e.Gtid }
