// Package core holds the scheduler's shared, fleet-wide state: one
// CpuState per CPU, the task allocator, the enclave handle and the
// round-robin placement cursor. It is the thing placement, dispatch and
// agent all take a pointer to — the split mirrors the teacher's pattern of
// several services (processor, allocator, executor) sharing a handful of
// DAOs and a queue rather than one another.
package core

import (
	"fmt"
	"time"

	"github.com/oscore/dsched/runtime/cpustate"
	"github.com/oscore/dsched/runtime/policy"
	"github.com/oscore/dsched/runtime/task"
	"github.com/oscore/dsched/service/alloc"
	"github.com/oscore/dsched/service/channel"
	"github.com/oscore/dsched/service/topo"
)

// Core is the scheduler's shared state across all per-CPU agents.
type Core struct {
	Allocator *alloc.Allocator
	Enclave   topo.Enclave
	Policy    *policy.Policy

	// Slice is the time-slice constant (spec.md §3), fixed when the Core is
	// built (from config.Config.SliceMillis in the root package).
	Slice time.Duration

	cpus   []int
	states map[int]*cpustate.CpuState

	// cursor is the round-robin placement cursor (spec.md §4.4, §9). It is
	// touched only by the agent owning the default channel — callers must
	// honor that single-writer contract; the field itself carries no lock.
	cursor int
}

// New builds a Core spanning the given CPUs, constructing one channel and
// CpuState per CPU via newChannel.
func New(cpus []int, enclave topo.Enclave, allocator *alloc.Allocator, slice time.Duration, newChannel func(cpu int) channel.Channel) *Core {
	c := &Core{
		Allocator: allocator,
		Enclave:   enclave,
		Policy:    policy.New(),
		Slice:     slice,
		cpus:      append([]int(nil), cpus...),
		states:    make(map[int]*cpustate.CpuState, len(cpus)),
	}
	for _, cpu := range cpus {
		c.states[cpu] = cpustate.New(cpu, newChannel(cpu))
	}
	return c
}

// Cpus returns the CPU ids under this scheduler's management, in the fixed
// order used for round-robin placement.
func (c *Core) Cpus() []int { return append([]int(nil), c.cpus...) }

// DefaultCpu returns the first CPU in iteration order, whose agent owns the
// default channel and therefore the placement cursor (spec.md §4.4, §4.9).
func (c *Core) DefaultCpu() int { return c.cpus[0] }

// CpuState returns the per-CPU state for cpu. Panics if cpu is not managed
// by this Core — an out-of-range CPU id reaching here is a programming
// error, not a runtime condition to recover from.
func (c *Core) CpuState(cpu int) *cpustate.CpuState {
	cs, ok := c.states[cpu]
	if !ok {
		panic(fmt.Sprintf("core: cpu %d is not managed by this scheduler", cpu))
	}
	return cs
}

// CpuStateOf returns the per-CPU state owning t, i.e. CpuState(t.Cpu).
func (c *Core) CpuStateOf(t *task.Task) *cpustate.CpuState {
	return c.CpuState(t.Cpu)
}

// NextCpu advances the round-robin cursor and returns the chosen CPU.
// Single-writer contract: only ever called from the default-channel
// agent's dispatch goroutine (spec.md §4.4).
func (c *Core) NextCpu() int {
	cpu := c.cpus[c.cursor]
	c.cursor = (c.cursor + 1) % len(c.cpus)
	return cpu
}
