package agent

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"

	"github.com/oscore/dsched/internal/clock"
	"github.com/oscore/dsched/runtime/core"
	"github.com/oscore/dsched/runtime/task"
	"github.com/oscore/dsched/service/alloc"
	"github.com/oscore/dsched/service/channel"
	memchan "github.com/oscore/dsched/service/channel/memory"
	memtopo "github.com/oscore/dsched/service/topo/memory"
)

func newDumpTestCore(cpus []int) *core.Core {
	enclave := memtopo.New(cpus)
	allocator := alloc.New()
	return core.New(cpus, enclave, allocator, 5*time.Millisecond, func(cpu int) channel.Channel {
		return memchan.New(memchan.DefaultConfig())
	})
}

func TestDumperPersistsSnapshotViaAfs(t *testing.T) {
	tempDir, err := os.MkdirTemp("/tmp", "dsched-dump-test")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	start := time.Unix(0, 0)
	clock.NowFunc = func() time.Time { return start }
	defer func() { clock.NowFunc = time.Now }()

	c := newDumpTestCore([]int{0})
	tsk := c.Allocator.NewTask("g1", 5*time.Millisecond)
	tsk.Cpu = 0
	tsk.RunState = task.Runnable
	c.CpuState(0).RunQueue.Enqueue(tsk, 5*time.Millisecond)

	d := newDumper()
	d.dumpURL = tempDir
	d.maybeDump(c, 0, time.Millisecond)

	fs := afs.New()
	data, err := fs.DownloadWithURL(context.Background(), filepath.Join(tempDir, "cpu0.dump"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "g1")
}
