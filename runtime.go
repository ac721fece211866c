package dsched

import (
	"context"
	"fmt"
	"sync"

	"github.com/oscore/dsched/model/message"
	"github.com/oscore/dsched/runtime/agent"
	"github.com/oscore/dsched/runtime/core"
	"github.com/oscore/dsched/runtime/task"
)

// Runtime owns the live scheduler: the shared Core plus one driver goroutine
// per managed CPU. It is built by Service.init and returned by
// Service.Runtime; callers Start it once and Shutdown it on teardown.
type Runtime struct {
	core   *core.Core
	agents map[int]*agent.Agent

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	done    chan struct{}
}

// Core exposes the underlying shared scheduler state, for callers that need
// to inspect CpuState directly (dumps, metrics, tests).
func (r *Runtime) Core() *core.Core { return r.core }

// Start brings every managed CPU's channel association up (agent.EnclaveReady)
// and then launches one Agent.Run goroutine per CPU. It is an error to Start
// an already-running Runtime.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return fmt.Errorf("dsched: runtime already started")
	}

	agent.EnclaveReady(ctx, r.core)

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.done = make(chan struct{})

	var wg sync.WaitGroup
	for _, cpu := range r.core.Cpus() {
		a := r.agents[cpu]
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Run(runCtx)
		}()
	}
	done := r.done
	go func() {
		wg.Wait()
		close(done)
	}()
	return nil
}

// Shutdown requests a graceful drain: every agent's finished flag is set
// (spec.md §4.8 step 3, scenario 6) so each keeps draining its channel and
// commit loop until its runqueue is empty and no current task remains,
// rather than abandoning queued or on-CPU work mid-flight. If ctx is done
// before every agent drains on its own, Shutdown falls back to cancelling
// every Run loop outright so callers are never blocked past their own
// deadline.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	for _, a := range r.agents {
		a.RequestShutdown()
	}
	done := r.done
	cancel := r.cancel
	r.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		cancel()
		<-done
	}

	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
	return nil
}

// Publish injects msg onto cpu's channel, for callers driving the scheduler
// from a real kernel notification source or from tests. The channel must
// expose a Publish method equivalent to service/channel/memory.Queue's;
// other Channel implementations reject this with an error.
func (r *Runtime) Publish(ctx context.Context, cpu int, msg message.Message) error {
	cs := r.core.CpuState(cpu)
	publisher, ok := cs.Channel.(interface {
		Publish(context.Context, message.Message) error
	})
	if !ok {
		return fmt.Errorf("dsched: channel for cpu %d does not support direct publish", cpu)
	}
	return publisher.Publish(ctx, msg)
}

// Lookup returns the task record for gtid, or nil if the core has no
// allocated task by that name.
func (r *Runtime) Lookup(gtid string) *task.Task {
	return r.core.Allocator.Lookup(gtid)
}
