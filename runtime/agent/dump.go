package agent

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"

	diffparse "github.com/sourcegraph/go-diff/diff"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/oscore/dsched/internal/clock"
	"github.com/oscore/dsched/runtime/core"
	"github.com/oscore/dsched/runtime/task"
)

// dumper renders a verbose, human-readable snapshot of a CPU's state on a
// fixed cadence, logs the diff against the previous snapshot, and — when
// dumpURL is set — uploads the snapshot through afs so it survives past the
// process's own log output. Grounded on
// O1Scheduler::DumpAllTasks/DumpState gated by O1Agent::AgentThread's
// PeriodicEdge(absl::Seconds(1)); the afs upload is grounded on the
// teacher's storage.Upload action (service/action/system/storage/upload.go).
type dumper struct {
	last     string
	lastDump time.Time

	dumpURL string
	fs      afs.Service
}

func newDumper() *dumper {
	return &dumper{}
}

func (d *dumper) maybeDump(c *core.Core, cpu int, every time.Duration) {
	now := clock.Now()
	if !d.lastDump.IsZero() && now.Sub(d.lastDump) < every {
		return
	}
	d.lastDump = now

	snapshot := renderState(c, cpu)
	if d.last == "" {
		d.last = snapshot
		d.persist(cpu, snapshot)
		return
	}
	if d.last == snapshot {
		return
	}

	changed := diffSummary(d.last, snapshot)
	fmt.Printf("[dump][cpu%d] state changed (%d lines): %s\n", cpu, changed, now.Format(time.RFC3339Nano))
	d.last = snapshot
	d.persist(cpu, snapshot)
}

// persist uploads the rendered snapshot as one object per CPU under
// dumpURL, overwriting the previous snapshot each time. A no-op when
// dumpURL is unset (dumping to afs is opt-in, per config.Config.DumpURL).
func (d *dumper) persist(cpu int, snapshot string) {
	if d.dumpURL == "" {
		return
	}
	if d.fs == nil {
		d.fs = afs.New()
	}
	dest := url.Join(d.dumpURL, fmt.Sprintf("cpu%d.dump", cpu))
	if err := d.fs.Upload(context.Background(), dest, file.DefaultFileOsMode, bytes.NewReader([]byte(snapshot))); err != nil {
		log.Printf("[dump][cpu%d] snapshot upload to %s failed: %v", cpu, dest, err)
	}
}

// renderState mirrors O1Scheduler::DumpState/DumpAllTasks: the current task
// followed by every queued task, one line per task tagged with its band,
// ordered by gtid.
func renderState(c *core.Core, cpu int) string {
	cs := c.CpuState(cpu)
	var b strings.Builder

	fmt.Fprintf(&b, "cpu %d current: %s\n", cpu, describeCurrent(cs.Current))

	type row struct {
		band string
		t    *task.Task
	}
	var rows []row
	cs.RunQueue.ForEach(func(t *task.Task, band string) {
		rows = append(rows, row{band, t})
	})
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].t.Gtid < rows[j].t.Gtid })
	for _, r := range rows {
		fmt.Fprintf(&b, "  [%s] %s remaining=%s boost=%v\n", r.band, r.t.Gtid, r.t.RemainingTime, r.t.PrioBoost)
	}
	return b.String()
}

func describeCurrent(t *task.Task) string {
	if t == nil {
		return "<idle>"
	}
	return fmt.Sprintf("%s remaining=%s", t.Gtid, t.RemainingTime)
}

// diffSummary returns the number of changed lines between two renderState
// outputs, computed via a unified diff and parsed back into hunk line
// counts rather than hand-counting. Only this count is printed; the diff
// text itself is not.
func diffSummary(before, after string) int {
	unified := difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "before",
		ToFile:   "after",
		Context:  0,
	}
	text, err := difflib.GetUnifiedDiffString(unified)
	if err != nil || text == "" {
		return 0
	}

	fileDiff, err := diffparse.ParseFileDiff([]byte(text))
	if err != nil {
		return strings.Count(text, "\n")
	}

	changed := 0
	for _, hunk := range fileDiff.Hunks {
		for _, line := range strings.Split(string(hunk.Body), "\n") {
			if strings.HasPrefix(line, "+") || strings.HasPrefix(line, "-") {
				changed++
			}
		}
	}
	return changed
}
