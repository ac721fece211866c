// Package cpustate holds the per-CPU scheduling state (spec.md §4.3):
// the currently on-CPU task, that CPU's runqueue, its channel handle and
// the preempt-on-next-commit flag.
package cpustate

import (
	"github.com/oscore/dsched/runtime/runqueue"
	"github.com/oscore/dsched/runtime/task"
	"github.com/oscore/dsched/service/channel"
)

// CpuState is exclusively owned by the agent bound to Cpu; other agents
// only ever reach it through the dispatcher's cpu_state_of(task) lookup
// when handling a message for a task placed on this CPU (spec.md §5).
type CpuState struct {
	Cpu     int
	Current *task.Task
	RunQueue *runqueue.RunQueue
	Channel channel.Channel

	// PreemptCurr is read and cleared only under RunQueue's mutex, per
	// spec.md §4.3/§4.6 and the CheckPreemptTick annotation in §4.3.
	PreemptCurr bool
}

// New creates the per-CPU state for cpu, owning ch exclusively.
func New(cpu int, ch channel.Channel) *CpuState {
	return &CpuState{
		Cpu:      cpu,
		RunQueue: runqueue.New(),
		Channel:  ch,
	}
}
