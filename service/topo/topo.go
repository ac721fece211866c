// Package topo declares the external collaborators spec.md §6 lists as out
// of core scope: topology discovery, the enclave, per-CPU agent handles and
// the transactional run-request primitive. The core only ever programs
// against these interfaces; service/topo/memory supplies a simulated
// implementation so the core can be exercised without a real kernel.
package topo

import (
	"context"

	"github.com/oscore/dsched/runtime/task"
)

// Topology exposes the set of CPUs under delegated scheduling.
type Topology interface {
	Cpus() []int
}

// CommitFlags mirrors the kernel's run-request commit semantics (spec.md
// §6). CommitAtTxnCommit is the only mode the core uses.
type CommitFlags int

const (
	CommitAtTxnCommit CommitFlags = 1 << iota
)

// LocalYieldFlags controls spec.md §4.6 step 4's idle-return behaviour.
type LocalYieldFlags int

const (
	ReturnOnIdle LocalYieldFlags = 1 << iota
)

// OpenParams configures a run-request transaction (spec.md §6).
type OpenParams struct {
	TargetGtid    string
	TargetBarrier uint64
	AgentBarrier  uint64
	CommitFlags   CommitFlags
}

// RunRequest is the per-CPU transactional "run this task next" handle.
type RunRequest interface {
	// Open stages a transaction; it does not yet affect scheduling.
	Open(params OpenParams)

	// Commit attempts to atomically run the staged target on this CPU. It
	// returns false if the target or agent barrier went stale between Open
	// and Commit.
	Commit() bool

	// State returns a kernel-defined diagnostic describing the most recent
	// commit failure. It is logged, never branched on (spec.md §6).
	State() string

	// LocalYield asks the kernel to run something else, optionally
	// returning control to the agent once the CPU goes idle.
	LocalYield(barrier uint64, flags LocalYieldFlags)
}

// AgentHandle is a per-CPU agent's identity as seen by the rest of the
// system: something other CPUs' dispatch handlers can Ping to wake, and
// something that exposes its own current barrier.
type AgentHandle interface {
	Ping()
	Barrier() uint64
}

// Enclave is the logical group of CPUs under delegated scheduling: it hands
// out agent handles, run-requests and status words, and exposes the
// EnclaveReady-time SetDeliverTicks switch (spec.md §4.9). It does not
// construct channels: each CPU's channel comes from the factory passed to
// runtime/core.New, and no NUMA hint is carried.
type Enclave interface {
	Topology

	Agent(cpu int) AgentHandle
	RunRequest(cpu int) RunRequest

	// SetDeliverTicks enables or disables CpuTick message delivery
	// fleet-wide. Must only be called once every CPU's agent has
	// associated with its channel (spec.md §4.9).
	SetDeliverTicks(ctx context.Context, enabled bool)

	// StatusWordFor returns the kernel-maintained liveness word for gtid,
	// allocating one on first reference. A task's StatusWord is wired at
	// TaskNew time (spec.md §3, §4.6) so the commit loop can spin-wait on
	// it without going back through the enclave on every poll.
	StatusWordFor(gtid string) task.StatusWord
}
