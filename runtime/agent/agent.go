// Package agent drives a single CPU's scheduling loop: draining its
// channel through runtime/dispatch, then picking and transactionally
// committing the next task to run. Grounded on O1Agent::AgentThread and
// O1Scheduler::Schedule/O1Schedule in
// _examples/original_source/schedulers/o1/o1_scheduler.cc.
package agent

import (
	"context"
	"fmt"
	"log"
	goruntime "runtime"
	"sync/atomic"
	"time"

	"github.com/oscore/dsched/runtime/core"
	"github.com/oscore/dsched/runtime/cpustate"
	"github.com/oscore/dsched/runtime/dispatch"
	"github.com/oscore/dsched/runtime/task"
	"github.com/oscore/dsched/service/topo"
	"github.com/oscore/dsched/tracing"
)

// idleBackoff bounds how long Run blocks between drain/schedule cycles
// when a CPU's agent handle exposes no wakeup channel.
const idleBackoff = 10 * time.Millisecond

// Agent owns the scheduling loop for exactly one CPU.
type Agent struct {
	Core *core.Core
	Cpu  int

	// DumpEvery gates how often RunOnce emits a verbose state dump; zero
	// disables dumping. Grounded on O1Agent::AgentThread's
	// PeriodicEdge(absl::Seconds(1)).
	DumpEvery time.Duration

	dumper   *dumper
	finished atomic.Bool
}

// New returns an agent bound to cpu. DumpEvery of zero disables periodic
// verbose dumps. dumpURL, when non-empty, is the afs destination the
// dumper uploads each snapshot to (config.Config.DumpURL).
func New(c *core.Core, cpu int, dumpEvery time.Duration, dumpURL string) *Agent {
	d := newDumper()
	d.dumpURL = dumpURL
	return &Agent{
		Core:      c,
		Cpu:       cpu,
		DumpEvery: dumpEvery,
		dumper:    d,
	}
}

// drainMessages pulls every currently pending message off the CPU's channel
// and dispatches it, per spec.md §4.6 step 1. It is bounded by channel
// emptiness, not a fixed count: a burst of kernel notifications must all
// land before picking the next task, or the pick would run on stale state.
func (a *Agent) drainMessages(ctx context.Context) {
	cs := a.Core.CpuState(a.Cpu)
	for {
		h, ok := cs.Channel.Peek(ctx)
		if !ok {
			return
		}
		dispatch.Dispatch(ctx, a.Core, h.Message())
		if err := cs.Channel.Consume(ctx, h); err != nil {
			panic(fmt.Sprintf("agent[cpu%d]: consume failed: %v", a.Cpu, err))
		}
	}
}

// Schedule is the commit loop: O1Schedule from the original source. It
// requeues the current task if it was preempted, picks the next task when
// the CPU is idle, and transactionally commits that pick.
func (a *Agent) Schedule(ctx context.Context) {
	ctx, span := tracing.StartSpan(ctx, "agent.schedule", "INTERNAL")
	defer span.OnDone()
	span.WithAttributes(map[string]string{"cpu": fmt.Sprintf("%d", a.Cpu)})

	cs := a.Core.CpuState(a.Cpu)
	rq := cs.RunQueue

	rq.Lock()
	preempted := cs.PreemptCurr
	cs.PreemptCurr = false
	rq.Unlock()

	if preempted && cs.Current != nil {
		cur := cs.Current
		dispatch.TaskOffCpu(a.Core, cur, false, false)
		rq.Enqueue(cur, a.Core.Slice)
	}

	// The already-current task is always recommitted, never shortcut: a
	// transaction is re-opened and re-committed for it exactly like any
	// other pick (O1Schedule in the original source has no early return
	// for cs->current != nullptr).
	next := cs.Current
	if next == nil {
		next = rq.Dequeue()
	}
	if next == nil {
		// prio_boost is hardwired false at this call site (spec.md §9 Open
		// Question), so the returning-from-idle flag never applies here.
		a.Core.Enclave.RunRequest(a.Cpu).LocalYield(a.Core.Enclave.Agent(a.Cpu).Barrier(), 0)
		return
	}

	a.commit(cs, next)
}

// commit stages and attempts to commit next onto this CPU exactly once. On
// failure it re-enqueues next with a priority boost and returns, leaving
// the retry to the next Schedule call rather than looping here — the
// original's O1Schedule makes exactly one req->Commit() attempt per call
// (spec.md §4.6 step 3c, P7); retrying in a tight loop inside commit would
// never return to drainMessages, starving this CPU's channel if the
// failure persists.
func (a *Agent) commit(cs *cpustate.CpuState, next *task.Task) {
	a.spinUntilOffCpu(next)

	req := a.Core.Enclave.RunRequest(a.Cpu)
	req.Open(topo.OpenParams{
		TargetGtid: next.Gtid,
		// Target barrier is the task's seqnum, not its (unused-by-the-
		// commit-path) Barrier field — spec.md §4.6 step 3b is explicit
		// that the run request targets "next.seqnum".
		TargetBarrier: next.Seqnum,
		AgentBarrier:  a.Core.Enclave.Agent(a.Cpu).Barrier(),
		CommitFlags:   topo.CommitAtTxnCommit,
	})

	if req.Commit() {
		a.taskOnCpu(cs, next)
		return
	}

	log.Printf("[agent][cpu%d][%s] commit failed: %s, retrying with priority boost", a.Cpu, next.Gtid, req.State())
	if next == cs.Current {
		dispatch.TaskOffCpu(a.Core, next, false, false)
	}
	next.PrioBoost = true
	cs.RunQueue.Enqueue(next, a.Core.Slice)
}

// spinUntilOffCpu busy-waits while t's status word still reports on-cpu
// (spec.md §4.6 step 3a): the rare race where a switchto target hasn't yet
// been observed off its previous CPU by the time this agent wants to
// commit it here. runtime.Gosched yields the scheduling quantum to other
// goroutines between polls instead of spinning with no yield point.
func (a *Agent) spinUntilOffCpu(t *task.Task) {
	for t.StatusWord != nil && t.StatusWord.OnCPU() {
		goruntime.Gosched()
	}
}

// taskOnCpu finalizes a successful commit: spec.md §4.7, O1Scheduler::TaskOnCpu.
func (a *Agent) taskOnCpu(cs *cpustate.CpuState, t *task.Task) {
	cs.Current = t
	t.RunState = task.OnCpu
	t.SetRuntimeAtLastPick()
	t.Cpu = cs.Cpu
	t.Preempted = false
	t.PrioBoost = false
}

// RunOnce drains pending messages, runs one commit cycle, and emits a
// verbose dump if DumpEvery has elapsed since the last one.
func (a *Agent) RunOnce(ctx context.Context) {
	a.drainMessages(ctx)
	a.Schedule(ctx)
	if a.DumpEvery > 0 {
		a.dumper.maybeDump(a.Core, a.Cpu, a.DumpEvery)
	}
}

// waker is implemented by agent handles that can signal a pending ping
// without the driver loop busy-polling (service/topo/memory.AgentHandle).
type waker interface {
	Wake() <-chan struct{}
}

// RequestShutdown sets the finished flag Run's loop condition checks
// (spec.md §4.8 step 3, scenario 6): the agent does not exit immediately,
// only once its runqueue and current task have drained to empty.
func (a *Agent) RequestShutdown() {
	a.finished.Store(true)
}

// drained reports whether this CPU currently holds no current task and no
// queued tasks — the condition Run's finished exit check requires in
// addition to the finished flag itself.
func (a *Agent) drained() bool {
	cs := a.Core.CpuState(a.Cpu)
	return cs.Current == nil && cs.RunQueue.Empty()
}

// Run loops RunOnce, blocking on the CPU's agent wakeup signal between
// cycles when the handle exposes one and otherwise falling back to a fixed
// backoff (spec.md §4.6, O1Agent::AgentThread). It exits when ctx is
// cancelled (a hard stop), or — per spec.md §4.8 step 3 — once
// RequestShutdown has been called and this CPU has fully drained to no
// current task and an empty runqueue; a finished agent with queued or
// on-CPU work keeps looping instead of abandoning it mid-flight.
func (a *Agent) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		a.RunOnce(ctx)

		if a.finished.Load() && a.drained() {
			return
		}

		h := a.Core.Enclave.Agent(a.Cpu)
		if w, ok := h.(waker); ok {
			select {
			case <-ctx.Done():
				return
			case <-w.Wake():
			case <-time.After(idleBackoff):
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(idleBackoff):
		}
	}
}

// EnclaveReady associates every managed CPU's agent with its channel and
// then enables tick delivery fleet-wide, retrying stale associations until
// they succeed (spec.md §4.9). It must run once, before any agent's Run
// loop starts processing CpuTick messages.
func EnclaveReady(ctx context.Context, c *core.Core) {
	for _, cpu := range c.Cpus() {
		cs := c.CpuState(cpu)
		agentBarrier := c.Enclave.Agent(cpu).Barrier()
		for {
			ok, err := cs.Channel.AssociateTask(ctx, fmt.Sprintf("agent@cpu%d", cpu), agentBarrier)
			if err == nil && ok {
				break
			}
			log.Printf("[agent][cpu%d] enclave-ready association retry: ok=%v err=%v", cpu, ok, err)
		}
	}
	c.Enclave.SetDeliverTicks(ctx, true)
}
