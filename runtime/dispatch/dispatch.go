// Package dispatch turns decoded kernel messages into task-state and
// runqueue transitions (spec.md §4.2-§4.3). The message set is closed, so
// Dispatch is a plain switch rather than a handler registry — deliberately
// not the teacher's reflect-based extension/x.Registry pattern.
package dispatch

import (
	"context"
	"fmt"
	"log"

	"github.com/oscore/dsched/model/message"
	"github.com/oscore/dsched/runtime/core"
	"github.com/oscore/dsched/runtime/placement"
	"github.com/oscore/dsched/runtime/task"
	"github.com/oscore/dsched/tracing"
)

// Dispatch routes a single decoded message to its handler. Unknown gtids
// referenced by a message (other than TaskNew, which allocates one) are a
// fatal protocol violation: the kernel never mentions a task the core
// hasn't heard of first.
func Dispatch(ctx context.Context, c *core.Core, msg message.Message) {
	ctx, span := tracing.StartSpan(ctx, "dispatch."+msg.Kind.String(), "INTERNAL")
	defer span.OnDone()

	if msg.Kind == message.CpuTick {
		handleCpuTick(c, msg)
		return
	}

	switch msg.Kind {
	case message.TaskNew:
		handleTaskNew(ctx, c, msg)
	case message.TaskWakeup:
		handleTaskWakeup(ctx, c, msg)
	case message.TaskYield:
		handleTaskYield(c, msg)
	case message.TaskBlocked:
		handleTaskBlocked(c, msg)
	case message.TaskPreempt:
		handleTaskPreempt(c, msg)
	case message.TaskSwitchto:
		handleTaskSwitchto(c, msg)
	case message.TaskDeparted:
		handleTaskDeparted(c, msg)
	case message.TaskDead:
		handleTaskDead(c, msg)
	default:
		panic(fmt.Sprintf("dispatch: unknown message kind %v", msg.Kind))
	}
}

func lookup(c *core.Core, gtid string) *task.Task {
	t := c.Allocator.Lookup(gtid)
	if t == nil {
		panic(fmt.Sprintf("dispatch: message for unknown task %s", gtid))
	}
	return t
}

// handleTaskNew allocates the task record and, if the kernel reports it
// already runnable, places it immediately (spec.md §4.2, O1Scheduler::TaskNew).
func handleTaskNew(ctx context.Context, c *core.Core, msg message.Message) {
	t := c.Allocator.NewTask(msg.Gtid, c.Slice)
	t.Seqnum = msg.Seqnum
	t.StatusWord = c.Enclave.StatusWordFor(msg.Gtid)

	if !msg.Runnable {
		t.RunState = task.Blocked
		return
	}
	t.RunState = task.Runnable
	cpu := placement.AssignCPU(c, t)
	placement.Migrate(ctx, c, t, cpu, msg.Seqnum)
	log.Printf("[dispatch][cpu%d][%s] new task placed", cpu, t.Gtid)
}

// handleTaskWakeup handles both a never-placed task's first wakeup and a
// previously associated task waking back up on its existing CPU (spec.md
// §4.2, O1Scheduler::TaskRunnable). A non-deferrable wakeup boosts the task
// to the head of its band, matching the table's
// "prio_boost ← !payload.deferrable" entry.
func handleTaskWakeup(ctx context.Context, c *core.Core, msg message.Message) {
	t := lookup(c, msg.Gtid)
	t.RunState = task.Runnable
	t.Seqnum = msg.Seqnum
	t.PrioBoost = !msg.Deferrable

	if t.Cpu == task.Unplaced {
		cpu := placement.AssignCPU(c, t)
		placement.Migrate(ctx, c, t, cpu, msg.Seqnum)
		t.PrioBoost = false
		return
	}
	cs := c.CpuStateOf(t)
	cs.RunQueue.Enqueue(t, c.Slice)
	t.PrioBoost = false
}

// TaskOffCpu is the shared bookkeeping for every message that reports a
// task is no longer running (spec.md §4.3, O1Scheduler::TaskOffCpu): it
// accounts the elapsed slice and clears the CPU's current-task pointer when
// this task was in fact it. When it wasn't, fromSwitchto must be the reason
// (a switchto chain can report a task as off-cpu on behalf of a blocked
// task this CPU never held as current) — anything else is logged as an
// anomaly rather than panicked on (spec.md §9 Open Question), because the
// remaining-time accounting and state transition below are still correct
// and safe to apply regardless of how the mismatch arose upstream.
func TaskOffCpu(c *core.Core, t *task.Task, blocked, fromSwitchto bool) {
	cs := c.CpuStateOf(t)
	if cs.Current == t {
		cs.Current = nil
	} else if !fromSwitchto {
		log.Printf("[dispatch][cpu%d][%s] off-cpu report for a task this cpu did not hold current", cs.Cpu, t.Gtid)
	}
	t.UpdateRemainingTime(true)
	if blocked {
		t.RunState = task.Blocked
		return
	}
	t.RunState = task.Runnable
}

// pingRemote wakes the agent owning the CPU a from-switchto message
// reports, per every row in §4.3's table carrying "ping if from_switchto".
func pingRemote(c *core.Core, msg message.Message) {
	if msg.FromSwitchto {
		c.Enclave.Agent(msg.Cpu).Ping()
	}
}

func handleTaskYield(c *core.Core, msg message.Message) {
	t := lookup(c, msg.Gtid)
	TaskOffCpu(c, t, false, msg.FromSwitchto)
	c.CpuStateOf(t).RunQueue.Enqueue(t, c.Slice)
	pingRemote(c, msg)
}

func handleTaskBlocked(c *core.Core, msg message.Message) {
	t := lookup(c, msg.Gtid)
	TaskOffCpu(c, t, true, msg.FromSwitchto)
	pingRemote(c, msg)
}

// handleTaskPreempt re-enqueues the preempted task with a priority boost so
// it doesn't starve behind tasks that never lost the CPU involuntarily
// (spec.md §4.3, O1Scheduler::TaskPreempted).
func handleTaskPreempt(c *core.Core, msg message.Message) {
	t := lookup(c, msg.Gtid)
	TaskOffCpu(c, t, false, msg.FromSwitchto)
	t.Preempted = true
	t.PrioBoost = true
	c.CpuStateOf(t).RunQueue.Enqueue(t, c.Slice)
	t.PrioBoost = false
	pingRemote(c, msg)
}

// handleTaskSwitchto records that a task handed the CPU directly to another
// task via sched_switchto, without going through the normal pick path. Per
// spec.md §4.3's table the outgoing task goes straight to Blocked — it is
// not re-enqueued here; switchto's distinguishing behavior for whatever
// task it donated to lives in the FromSwitchto flag carried by whichever
// terminal message follows for that task.
func handleTaskSwitchto(c *core.Core, msg message.Message) {
	t := lookup(c, msg.Gtid)
	TaskOffCpu(c, t, true, false)
}

// handleTaskDeparted retires a task whose kernel-side presence just ended.
// Per spec.md §4.3's table: a task that was on-cpu (or whose departure is
// itself reported via a switchto chain) is accounted off-cpu first; a
// merely-queued task is erased from its runqueue; a blocked task needs
// neither. The allocator slot is freed last, after the task is removed from
// wherever it lived.
func handleTaskDeparted(c *core.Core, msg message.Message) {
	t := lookup(c, msg.Gtid)
	switch {
	case t.OnCpu() || msg.FromSwitchto:
		TaskOffCpu(c, t, false, msg.FromSwitchto)
	case t.Queued():
		c.CpuStateOf(t).RunQueue.Erase(t)
		t.RunState = task.Blocked
	}
	c.Allocator.FreeTask(t)
	pingRemote(c, msg)
}

// handleTaskDead frees a task the kernel reports fully reaped. Precondition
// per spec.md §4.3's table is that the task is already Blocked, so no
// runqueue/current bookkeeping is needed — just release the slot.
func handleTaskDead(c *core.Core, msg message.Message) {
	t := lookup(c, msg.Gtid)
	c.Allocator.FreeTask(t)
}

// handleCpuTick is spec.md §4.3's CheckPreemptTick: it accounts the
// elapsed time against the CPU's current task and raises PreemptCurr if the
// slice has just expired, under the runqueue's mutex so the commit loop
// never observes a torn read of Current+PreemptCurr together.
func handleCpuTick(c *core.Core, msg message.Message) {
	cs := c.CpuState(msg.Cpu)
	cs.RunQueue.Lock()
	defer cs.RunQueue.Unlock()
	if cs.Current == nil {
		return
	}
	if cs.Current.UpdateRemainingTime(false) {
		cs.PreemptCurr = true
	}
}
