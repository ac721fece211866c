// Package runqueue implements the per-CPU dual-array ("active"/"expired")
// runqueue described in spec.md §4.1, grounded on O1Rq in
// _examples/original_source/schedulers/o1/o1_scheduler.cc. The mutex-guarded
// generic container shape follows the teacher's
// service/dao/store/memory_store.go MemoryStore[K,T].
package runqueue

import (
	"fmt"
	"sync"
	"time"

	"github.com/oscore/dsched/runtime/task"
)

// RunQueue holds a CPU's runnable tasks split into active and expired
// bands. Dequeue and the enqueue of an unboosted task are O(1). Enqueuing a
// PrioBoost task prepends it by copying its band, which is O(n) in the band
// length. Erase is a linear scan as specified (erase is rare:
// departure/migration, not the hot dequeue path).
type RunQueue struct {
	mu      sync.Mutex
	active  []*task.Task
	expired []*task.Task
}

// New returns an empty runqueue.
func New() *RunQueue {
	return &RunQueue{}
}

// Lock/Unlock expose the runqueue mutex to callers that must hold it across
// more than one runqueue operation plus a CpuState field update: the tick
// handler in runtime/dispatch (spec.md §4.3's CheckPreemptTick) and the
// PreemptCurr read-and-clear in runtime/agent.Schedule.
func (q *RunQueue) Lock()   { q.mu.Lock() }
func (q *RunQueue) Unlock() { q.mu.Unlock() }

// Enqueue is the unified entry point of spec.md §4.1. Precondition:
// t.RunState == Runnable and t.Cpu >= 0. slice is the scheduler's
// time-slice constant, used to refill a task entering the expired band.
func (q *RunQueue) Enqueue(t *task.Task, slice time.Duration) {
	if t.RunState != task.Runnable {
		panic(fmt.Sprintf("runqueue: enqueue of task %s in state %s, want Runnable", t.Gtid, t.RunState))
	}
	if t.Cpu < 0 {
		panic(fmt.Sprintf("runqueue: enqueue of unplaced task %s", t.Gtid))
	}

	t.RunState = task.Queued

	q.mu.Lock()
	defer q.mu.Unlock()

	if t.RemainingTime > 0 {
		q.pushActiveLocked(t)
		return
	}
	t.SetRemainingTime(slice)
	q.pushExpiredLocked(t)
}

// EnqueueActive pushes a task the caller has already classified as active
// without re-checking RemainingTime.
func (q *RunQueue) EnqueueActive(t *task.Task) {
	if t.RunState != task.Runnable {
		panic(fmt.Sprintf("runqueue: enqueue-active of task %s in state %s, want Runnable", t.Gtid, t.RunState))
	}
	t.RunState = task.Queued
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pushActiveLocked(t)
}

// EnqueueExpired pushes a task the caller has already classified as
// expired, refilling its slice.
func (q *RunQueue) EnqueueExpired(t *task.Task, slice time.Duration) {
	if t.RunState != task.Runnable {
		panic(fmt.Sprintf("runqueue: enqueue-expired of task %s in state %s, want Runnable", t.Gtid, t.RunState))
	}
	t.RunState = task.Queued
	q.mu.Lock()
	defer q.mu.Unlock()
	t.SetRemainingTime(slice)
	q.pushExpiredLocked(t)
}

func (q *RunQueue) pushActiveLocked(t *task.Task) {
	if t.PrioBoost {
		q.active = append([]*task.Task{t}, q.active...)
	} else {
		q.active = append(q.active, t)
	}
}

func (q *RunQueue) pushExpiredLocked(t *task.Task) {
	if t.PrioBoost {
		q.expired = append([]*task.Task{t}, q.expired...)
	} else {
		q.expired = append(q.expired, t)
	}
}

// Dequeue pops the front of active, swapping the bands (O(1) slice-header
// swap) and retrying once if active is empty. Returns nil when both bands
// are empty.
func (q *RunQueue) Dequeue() *task.Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.active) == 0 {
		if len(q.expired) == 0 {
			return nil
		}
		q.swapLocked()
	}

	t := q.active[0]
	q.active = q.active[1:]
	if t.RunState != task.Queued {
		panic(fmt.Sprintf("runqueue: dequeued task %s in state %s, want Queued", t.Gtid, t.RunState))
	}
	t.RunState = task.Runnable
	return t
}

// swapLocked exchanges the active and expired bands. Caller holds mu.
func (q *RunQueue) swapLocked() {
	q.active, q.expired = q.expired, q.active
}

// Erase removes t from whichever band currently holds it. It is a fatal
// invariant violation for t not to be found, per spec.md §4.1/§7.
func (q *RunQueue) Erase(t *task.Task) {
	if t.RunState != task.Queued {
		panic(fmt.Sprintf("runqueue: erase of task %s in state %s, want Queued", t.Gtid, t.RunState))
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if idx := indexOf(q.active, t); idx >= 0 {
		q.active = append(q.active[:idx], q.active[idx+1:]...)
		t.RunState = task.Runnable
		return
	}
	if idx := indexOf(q.expired, t); idx >= 0 {
		q.expired = append(q.expired[:idx], q.expired[idx+1:]...)
		t.RunState = task.Runnable
		return
	}
	panic(fmt.Sprintf("runqueue: erase of task %s found in neither band", t.Gtid))
}

func indexOf(band []*task.Task, t *task.Task) int {
	for i, candidate := range band {
		if candidate == t {
			return i
		}
	}
	return -1
}

// Size returns the total number of queued tasks across both bands.
func (q *RunQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.active) + len(q.expired)
}

// Empty reports whether both bands are empty.
func (q *RunQueue) Empty() bool {
	return q.Size() == 0
}

// ForEach calls fn for every task currently queued, active band first, used
// only by the verbose state dump (runtime/agent/dump.go).
func (q *RunQueue) ForEach(fn func(t *task.Task, band string)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, t := range q.active {
		fn(t, "active")
	}
	for _, t := range q.expired {
		fn(t, "expired")
	}
}
