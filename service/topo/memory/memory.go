// Package memory provides an in-process simulation of service/topo's
// contracts, sufficient to drive and test the scheduler core without a
// real kernel. It is deliberately minimal: no real transactional memory,
// just enough state to exercise commit success/failure and ping wakeups.
package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/oscore/dsched/runtime/task"
	"github.com/oscore/dsched/service/topo"
)

// StatusWord is a settable liveness flag standing in for the kernel's
// shared-memory status word (task.StatusWord).
type StatusWord struct {
	onCPU atomic.Bool
}

func (s *StatusWord) OnCPU() bool     { return s.onCPU.Load() }
func (s *StatusWord) SetOnCPU(v bool) { s.onCPU.Store(v) }

// AgentHandle is a simulated per-CPU agent identity: Ping increments a
// counter and signals a channel so tests can observe wakeups without
// racing on a plain bool.
type AgentHandle struct {
	cpu     int
	barrier atomic.Uint64
	pings   atomic.Int64
	wake    chan struct{}
}

func newAgentHandle(cpu int) *AgentHandle {
	return &AgentHandle{cpu: cpu, wake: make(chan struct{}, 1)}
}

func (a *AgentHandle) Ping() {
	a.pings.Add(1)
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

func (a *AgentHandle) Barrier() uint64 { return a.barrier.Load() }

// Pings returns how many times Ping has been called, for assertions.
func (a *AgentHandle) Pings() int64 { return a.pings.Load() }

// Wake exposes the wakeup channel so an agent driver loop can block on it
// between drain cycles instead of busy-polling.
func (a *AgentHandle) Wake() <-chan struct{} { return a.wake }

// RunRequest is a simulated transactional run-request. ForceNextCommitToFail
// makes the next Commit() call fail once and then clears itself — this is
// how tests exercise spec.md's commit-failure recovery path (P7). Commit
// does not touch any status word; a StatusWord only reports on-cpu while a
// test has set it with SetOnCPU.
type RunRequest struct {
	mu        sync.Mutex
	cpu       int
	opened    topo.OpenParams
	forceFail bool
	lastState string

	statusWords map[string]*StatusWord
}

func newRunRequest(cpu int, statusWords map[string]*StatusWord) *RunRequest {
	return &RunRequest{cpu: cpu, statusWords: statusWords}
}

func (r *RunRequest) Open(params topo.OpenParams) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opened = params
}

// ForceNextCommitToFail arranges for the next Commit() to fail, simulating
// a stale barrier observed by the kernel (spec.md §4.6 step 3c).
func (r *RunRequest) ForceNextCommitToFail() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forceFail = true
}

func (r *RunRequest) Commit() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.forceFail {
		r.forceFail = false
		r.lastState = "stale-barrier"
		return false
	}
	r.lastState = "committed"
	return true
}

func (r *RunRequest) State() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastState
}

func (r *RunRequest) LocalYield(barrier uint64, flags topo.LocalYieldFlags) {
	// No kernel to hand control back to in the simulation; recorded only.
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastState = fmt.Sprintf("local-yield(barrier=%d,flags=%d)", barrier, flags)
}

// Enclave is the simulated fleet: a fixed CPU list plus one AgentHandle and
// RunRequest per CPU, with a fleet-wide tick-delivery switch.
type Enclave struct {
	cpus []int

	mu           sync.Mutex
	agents       map[int]*AgentHandle
	runRequests  map[int]*RunRequest
	statusWords  map[string]*StatusWord
	ticksEnabled bool
}

// New returns a simulated enclave spanning the given CPU ids.
func New(cpus []int) *Enclave {
	e := &Enclave{
		cpus:        append([]int(nil), cpus...),
		agents:      make(map[int]*AgentHandle),
		runRequests: make(map[int]*RunRequest),
		statusWords: make(map[string]*StatusWord),
	}
	for _, cpu := range cpus {
		e.agents[cpu] = newAgentHandle(cpu)
		e.runRequests[cpu] = newRunRequest(cpu, e.statusWords)
	}
	return e
}

func (e *Enclave) Cpus() []int { return append([]int(nil), e.cpus...) }

func (e *Enclave) Agent(cpu int) topo.AgentHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.agents[cpu]
}

// AgentImpl returns the concrete *AgentHandle for test assertions
// (Pings()) that the topo.AgentHandle interface doesn't expose.
func (e *Enclave) AgentImpl(cpu int) *AgentHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.agents[cpu]
}

func (e *Enclave) RunRequest(cpu int) topo.RunRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runRequests[cpu]
}

// RunRequestImpl returns the concrete *RunRequest so tests can call
// ForceNextCommitToFail.
func (e *Enclave) RunRequestImpl(cpu int) *RunRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runRequests[cpu]
}

func (e *Enclave) SetDeliverTicks(_ context.Context, enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ticksEnabled = enabled
}

// TicksEnabled reports the current tick-delivery switch state, for tests.
func (e *Enclave) TicksEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ticksEnabled
}

// StatusWordFor returns (creating if needed) the shared status word for
// gtid, satisfying topo.Enclave.
func (e *Enclave) StatusWordFor(gtid string) task.StatusWord {
	return e.statusWordForImpl(gtid)
}

// StatusWordForImpl is the concrete-typed equivalent of StatusWordFor, for
// tests that need SetOnCPU.
func (e *Enclave) StatusWordForImpl(gtid string) *StatusWord {
	return e.statusWordForImpl(gtid)
}

func (e *Enclave) statusWordForImpl(gtid string) *StatusWord {
	e.mu.Lock()
	defer e.mu.Unlock()
	sw, ok := e.statusWords[gtid]
	if !ok {
		sw = &StatusWord{}
		e.statusWords[gtid] = sw
	}
	return sw
}

var _ topo.Enclave = (*Enclave)(nil)
