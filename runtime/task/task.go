// Package task holds the per-task scheduling record and the pure
// time-slice accounting logic the dispatcher and commit loop drive.
package task

import (
	"time"

	"github.com/oscore/dsched/internal/clock"
)

// RunState is the task-lifecycle state spec.md §3 requires.
type RunState int

const (
	Blocked RunState = iota
	Runnable
	Queued
	OnCpu
)

func (s RunState) String() string {
	switch s {
	case Blocked:
		return "Blocked"
	case Runnable:
		return "Runnable"
	case Queued:
		return "Queued"
	case OnCpu:
		return "OnCpu"
	default:
		return "Unknown"
	}
}

// StatusWord exposes the kernel-maintained liveness bit for a task. A real
// implementation reads shared memory; the in-memory topology in
// service/topo/memory backs it with a plain flag for tests.
type StatusWord interface {
	OnCPU() bool
}

// Unplaced is the sentinel Cpu value meaning "never placed".
const Unplaced = -1

// Task is the per-task scheduling record (spec.md §3).
type Task struct {
	Gtid       string
	RunState   RunState
	Cpu        int
	Preempted  bool
	PrioBoost  bool
	Seqnum     uint64
	Barrier    uint64
	StatusWord StatusWord

	RemainingTime      time.Duration
	RuntimeAtLastPick  time.Time

	// Affinity is not read by placement: runtime/placement.AssignCPU looks
	// rules up in core.Core.Policy by Gtid instead.
	Affinity interface{}
}

// New allocates a task record. Slice is the fixed per-task time-slice
// constant (ghOSt's "a few milliseconds"); callers own the constant.
func New(gtid string, slice time.Duration) *Task {
	t := &Task{
		Gtid: gtid,
		Cpu:  Unplaced,
	}
	t.RemainingTime = slice
	return t
}

// SetRemainingTime refills the slice to the supplied constant. Named after
// O1Task::SetRemainingTime in the original source; the constant is passed
// in rather than baked in so tests can use tiny slices.
func (t *Task) SetRemainingTime(slice time.Duration) {
	t.RemainingTime = slice
}

// SetRuntimeAtLastPick records "now" as the pick timestamp.
func (t *Task) SetRuntimeAtLastPick() {
	t.RuntimeAtLastPick = clock.Now()
}

// UpdateRemainingTime subtracts the elapsed time since RuntimeAtLastPick
// from RemainingTime. When isOff is false (the tick path) it also resets
// RuntimeAtLastPick and reports whether the slice has just expired. When
// isOff is true (the off-cpu path) it never resets the pick time — the
// caller is about to overwrite run state entirely — and always returns
// false; the caller decides the enqueue band from the updated value.
//
// Grounded on O1Task::UpdateRemainingTime in
// _examples/original_source/schedulers/o1/o1_scheduler.cc.
func (t *Task) UpdateRemainingTime(isOff bool) bool {
	now := clock.Now()
	t.RemainingTime -= now.Sub(t.RuntimeAtLastPick)
	if !isOff {
		t.SetRuntimeAtLastPick()
		if t.RemainingTime <= 0 {
			return true
		}
	}
	return false
}

// OnCpu reports whether the task is currently the unique current of some
// CPU state (run_state == OnCpu).
func (t *Task) OnCpu() bool { return t.RunState == OnCpu }

// Queued reports whether the task is currently sitting in a runqueue band.
func (t *Task) Queued() bool { return t.RunState == Queued }

// IsBlocked reports whether the task is currently blocked.
func (t *Task) IsBlocked() bool { return t.RunState == Blocked }
