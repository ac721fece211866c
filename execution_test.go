package dsched_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oscore/dsched"
	"github.com/oscore/dsched/model/message"
	"github.com/oscore/dsched/runtime/task"
)

// TestRuntimeSchedulesNewRunnableTaskOntoCpu drives the runtime end to end
// through its public Publish/Lookup surface: a runnable TaskNew should land
// on some managed CPU and eventually get picked.
func TestRuntimeSchedulesNewRunnableTaskOntoCpu(t *testing.T) {
	cfg := dsched.DefaultConfig()
	cfg.Topology.Cpus = "0-1"

	srv, err := dsched.New(dsched.WithConfig(cfg))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt := srv.Runtime()
	require.NoError(t, rt.Start(ctx))
	defer func() {
		// g1 never leaves the CPU here, so the graceful drain cannot finish;
		// the deadline makes Shutdown fall back to cancelling the agents.
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer shutdownCancel()
		_ = rt.Shutdown(shutdownCtx)
	}()

	require.NoError(t, rt.Publish(ctx, 0, message.Message{
		Kind:     message.TaskNew,
		Gtid:     "g1",
		Runnable: true,
	}))

	require.Eventually(t, func() bool {
		tk := rt.Lookup("g1")
		return tk != nil && tk.RunState == task.OnCpu
	}, time.Second, time.Millisecond)
}

// TestRuntimeStartTwiceFails verifies Start refuses a second call while the
// runtime is already running.
func TestRuntimeStartTwiceFails(t *testing.T) {
	srv, err := dsched.New()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt := srv.Runtime()
	require.NoError(t, rt.Start(ctx))
	defer rt.Shutdown(ctx)

	assert.Error(t, rt.Start(ctx))
}

// TestRuntimeShutdownBeforeStartIsNoop verifies Shutdown tolerates a runtime
// that was never started.
func TestRuntimeShutdownBeforeStartIsNoop(t *testing.T) {
	srv, err := dsched.New()
	require.NoError(t, err)

	assert.NoError(t, srv.Runtime().Shutdown(context.Background()))
}

// TestRuntimeShutdownDrainsQueuedTaskBeforeExiting publishes a task, lets it
// reach the CPU, takes it through block and death, then shuts down: Shutdown
// must block until the agent has drained to zero tasks on its own rather
// than being cut off by ctx.Done's hard-stop fallback, per spec.md's
// finished-and-drained exit condition (scenario 6).
func TestRuntimeShutdownDrainsQueuedTaskBeforeExiting(t *testing.T) {
	cfg := dsched.DefaultConfig()
	cfg.Topology.Cpus = "0"

	srv, err := dsched.New(dsched.WithConfig(cfg))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt := srv.Runtime()
	require.NoError(t, rt.Start(ctx))

	require.NoError(t, rt.Publish(ctx, 0, message.Message{
		Kind:     message.TaskNew,
		Gtid:     "g1",
		Runnable: true,
	}))

	require.Eventually(t, func() bool {
		tk := rt.Lookup("g1")
		return tk != nil && tk.RunState == task.OnCpu
	}, time.Second, time.Millisecond)

	require.NoError(t, rt.Publish(ctx, 0, message.Message{Kind: message.TaskBlocked, Gtid: "g1"}))
	require.NoError(t, rt.Publish(ctx, 0, message.Message{Kind: message.TaskDead, Gtid: "g1"}))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
	defer shutdownCancel()
	require.NoError(t, rt.Shutdown(shutdownCtx))

	// ctx (Start's context) is still live throughout Shutdown: if the agent
	// only exited because of shutdownCtx's hard-cancel fallback rather than
	// draining on its own, this assertion would still pass spuriously, so
	// what actually matters is that the task fully drained rather than being
	// abandoned mid-queue or mid-cpu.
	assert.Nil(t, rt.Lookup("g1"))
	cs := rt.Core().CpuState(0)
	assert.Nil(t, cs.Current)
	assert.Equal(t, 0, cs.RunQueue.Size())
}
