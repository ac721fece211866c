// Package placement implements spec.md §4.4 (round-robin CPU assignment)
// and §4.5 (migration), grounded on O1Scheduler::AssignCpu and
// O1Scheduler::Migrate in
// _examples/original_source/schedulers/o1/o1_scheduler.cc.
package placement

import (
	"context"
	"fmt"

	"github.com/oscore/dsched/runtime/core"
	"github.com/oscore/dsched/runtime/task"
)

// AssignCPU returns the CPU a newly-runnable, unplaced task should be
// migrated to. When t has a configured affinity rule (runtime/policy), the
// round-robin candidate set is narrowed/pinned accordingly; tasks without a
// rule get plain round robin, preserving spec.md P8 for the unconfigured
// population.
//
// Single-call-site invariant: AssignCPU must only be invoked from the agent
// owning the default channel (spec.md §4.4), so c.NextCpu()'s cursor needs
// no lock of its own.
func AssignCPU(c *core.Core, t *task.Task) int {
	affinity, hasRule := c.Policy.Lookup(t.Gtid)
	if !hasRule {
		return c.NextCpu()
	}

	allowed := affinity.Allowed(c.Cpus())
	if len(allowed) == 0 {
		// Misconfigured rule excluded every CPU; fall back to round robin
		// rather than deadlock placement.
		return c.NextCpu()
	}
	if len(allowed) == 1 {
		return allowed[0]
	}
	// Excluded-mode with more than one surviving candidate: still round
	// robin, but only within the allowed set.
	cpu := c.NextCpu()
	for !contains(allowed, cpu) {
		cpu = c.NextCpu()
	}
	return cpu
}

func contains(cpus []int, cpu int) bool {
	for _, c := range cpus {
		if c == cpu {
			return true
		}
	}
	return false
}

// Migrate is the only legal way to bind a task to its first runqueue or
// move it between CPUs (spec.md §4.5). Preconditions: t.RunState ==
// Runnable, t.Cpu == task.Unplaced.
func Migrate(ctx context.Context, c *core.Core, t *task.Task, cpu int, seqnum uint64) {
	if t.RunState != task.Runnable {
		panic(fmt.Sprintf("placement: migrate of task %s in state %s, want Runnable", t.Gtid, t.RunState))
	}
	if t.Cpu != task.Unplaced {
		panic(fmt.Sprintf("placement: migrate of already-placed task %s (cpu=%d)", t.Gtid, t.Cpu))
	}

	dest := c.CpuState(cpu)

	// Association must precede runqueue visibility: otherwise the task
	// could be picked on the new CPU while still producing messages into
	// the old channel (spec.md §4.5 step 3 ordering note).
	ok, err := dest.Channel.AssociateTask(ctx, t.Gtid, seqnum)
	if err != nil || !ok {
		// The only legitimate stale-association case is agent association
		// at enclave-ready, handled in runtime/agent.EnclaveReady with its
		// own retry loop. Reaching a stale/failed association here is a
		// fatal programming error (spec.md §4.5 step 1, §7 kind 1).
		panic(fmt.Sprintf("placement: migrate association for task %s rejected: ok=%v err=%v", t.Gtid, ok, err))
	}

	t.Cpu = dest.Cpu
	dest.RunQueue.Enqueue(t, c.Slice)

	c.Enclave.Agent(cpu).Ping()
}
