// Package memory implements an in-process channel.Channel for tests and
// examples, grounded on the teacher's service/messaging/memory.Queue[T]:
// the same buffered-queue-plus-mutex shape, adapted so Peek does not
// remove the head (the kernel channel contract requires peek-then-consume,
// while the teacher's Consume is destructive on read).
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/oscore/dsched/model/message"
	"github.com/oscore/dsched/service/channel"
)

// Config mirrors the teacher's messaging/memory.Config shape (buffer size
// only; there is no retry/DLQ concept for a kernel notification channel).
type Config struct {
	QueueBuffer int
}

// DefaultConfig returns sane defaults, matching spec.md §6's
// "queue depth" parameter to channel construction.
func DefaultConfig() Config {
	return Config{QueueBuffer: 4096}
}

type handle struct {
	msg message.Message
}

func (h *handle) Message() message.Message { return h.msg }

// Queue is an in-process channel.Channel backed by a slice buffer under a
// mutex (not a Go channel: Peek must not remove the element, which a `chan`
// receive cannot express without an extra buffer).
type Queue struct {
	mu      sync.Mutex
	pending []message.Message
	config  Config

	assocMu  sync.Mutex
	assocGtd map[string]uint64 // gtid -> barrier currently associated
}

// New creates an empty channel with the given buffering config.
func New(config Config) *Queue {
	if config.QueueBuffer <= 0 {
		config = DefaultConfig()
	}
	return &Queue{
		config:   config,
		assocGtd: make(map[string]uint64),
	}
}

// Publish is the simulated-kernel-side injection point: it appends a
// message as if the kernel had just delivered it, or returns an error when
// Config.QueueBuffer messages are already pending. Real deployments never
// call this from agent code; it exists so tests/examples can drive the
// scheduler without a real kernel.
func (q *Queue) Publish(_ context.Context, msg message.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) >= q.config.QueueBuffer {
		return fmt.Errorf("channel: queue full (%d pending)", len(q.pending))
	}
	q.pending = append(q.pending, msg)
	return nil
}

// Peek returns the oldest pending message without removing it.
func (q *Queue) Peek(_ context.Context) (channel.Handle, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil, false
	}
	return &handle{msg: q.pending[0]}, true
}

// Consume removes the head message. h must be the handle most recently
// returned by Peek; consuming anything else is a caller error.
func (q *Queue) Consume(_ context.Context, h channel.Handle) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	q.pending = q.pending[1:]
	return nil
}

// AssociateTask records gtid as bound to this channel under barrier. The
// in-memory simulation never actually rejects associations as stale (there
// is no real kernel-side barrier authority here); it exists so call sites
// exercising the retry-until-accepted loop (spec.md §4.9) still compile and
// run against a deterministic fixture.
func (q *Queue) AssociateTask(_ context.Context, gtid string, barrier uint64) (bool, error) {
	q.assocMu.Lock()
	defer q.assocMu.Unlock()
	q.assocGtd[gtid] = barrier
	return true, nil
}

// Size reports the number of undelivered messages, used by tests.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

var _ channel.Channel = (*Queue)(nil)
