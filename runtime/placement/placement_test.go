package placement_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oscore/dsched/runtime/core"
	"github.com/oscore/dsched/runtime/placement"
	"github.com/oscore/dsched/runtime/policy"
	"github.com/oscore/dsched/runtime/task"
	"github.com/oscore/dsched/service/alloc"
	"github.com/oscore/dsched/service/channel"
	memchan "github.com/oscore/dsched/service/channel/memory"
	memtopo "github.com/oscore/dsched/service/topo/memory"
)

const slice = 5 * time.Millisecond

func newCore(cpus []int) (*core.Core, *memtopo.Enclave) {
	enclave := memtopo.New(cpus)
	allocator := alloc.New()
	c := core.New(cpus, enclave, allocator, slice, func(cpu int) channel.Channel {
		return memchan.New(memchan.DefaultConfig())
	})
	return c, enclave
}

func runnableUnplaced(gtid string) *task.Task {
	tsk := task.New(gtid, slice)
	tsk.RunState = task.Runnable
	return tsk
}

func TestAssignCPURoundRobinsWithoutAffinity(t *testing.T) {
	cpus := []int{0, 1, 2}
	c, _ := newCore(cpus)

	got := make([]int, 0, 6)
	for i := 0; i < 6; i++ {
		got = append(got, placement.AssignCPU(c, runnableUnplaced("t")))
	}
	assert.Equal(t, []int{0, 1, 2, 0, 1, 2}, got)
}

func TestAssignCPUPinnedAffinity(t *testing.T) {
	cpus := []int{0, 1, 2}
	c, _ := newCore(cpus)
	c.Policy.SetRule("pinned-task", policy.Affinity{Mode: policy.ModePinned, AllowList: []int{2}})

	tsk := runnableUnplaced("pinned-task")
	for i := 0; i < 3; i++ {
		assert.Equal(t, 2, placement.AssignCPU(c, tsk))
	}
}

func TestAssignCPUExcludedAffinity(t *testing.T) {
	cpus := []int{0, 1, 2}
	c, _ := newCore(cpus)
	c.Policy.SetRule("no-cpu0", policy.Affinity{Mode: policy.ModeExcluded, BlockList: []int{0}})

	tsk := runnableUnplaced("no-cpu0")
	for i := 0; i < 6; i++ {
		cpu := placement.AssignCPU(c, tsk)
		assert.NotEqual(t, 0, cpu)
	}
}

func TestMigrateAssociatesPlacesAndPings(t *testing.T) {
	cpus := []int{0, 1}
	c, enclave := newCore(cpus)

	tsk := runnableUnplaced("migrating")
	placement.Migrate(context.Background(), c, tsk, 1, 7)

	require.Equal(t, 1, tsk.Cpu)
	assert.Equal(t, task.Queued, tsk.RunState)
	assert.Equal(t, int64(1), enclave.AgentImpl(1).Pings())
	assert.Equal(t, 1, c.CpuState(1).RunQueue.Size())
}

func TestMigratePanicsIfNotRunnable(t *testing.T) {
	cpus := []int{0}
	c, _ := newCore(cpus)
	tsk := task.New("blocked", slice)

	assert.Panics(t, func() {
		placement.Migrate(context.Background(), c, tsk, 0, 1)
	})
}

func TestMigratePanicsIfAlreadyPlaced(t *testing.T) {
	cpus := []int{0}
	c, _ := newCore(cpus)
	tsk := runnableUnplaced("already-placed")
	tsk.Cpu = 0

	assert.Panics(t, func() {
		placement.Migrate(context.Background(), c, tsk, 0, 1)
	})
}
