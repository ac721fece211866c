package task_test

import (
	"testing"
	"time"

	"github.com/oscore/dsched/internal/clock"
	"github.com/oscore/dsched/runtime/task"
	"github.com/stretchr/testify/assert"
)

func resetClock(t *testing.T, start time.Time) func() {
	clock.NowFunc = func() time.Time { return start }
	return func() { clock.NowFunc = time.Now }
}

func TestUpdateRemainingTime_TickExpires(t *testing.T) {
	start := time.Unix(0, 0)
	defer resetClock(t, start)()

	tsk := task.New("gtid-1", 10*time.Millisecond)
	tsk.SetRuntimeAtLastPick()

	clock.NowFunc = func() time.Time { return start.Add(11 * time.Millisecond) }
	expired := tsk.UpdateRemainingTime(false)

	assert.True(t, expired)
	assert.LessOrEqual(t, tsk.RemainingTime, time.Duration(0))
}

func TestUpdateRemainingTime_TickNotExpired(t *testing.T) {
	start := time.Unix(0, 0)
	defer resetClock(t, start)()

	tsk := task.New("gtid-1", 10*time.Millisecond)
	tsk.SetRuntimeAtLastPick()

	clock.NowFunc = func() time.Time { return start.Add(4 * time.Millisecond) }
	expired := tsk.UpdateRemainingTime(false)

	assert.False(t, expired)
	assert.Equal(t, 6*time.Millisecond, tsk.RemainingTime)
}

func TestUpdateRemainingTime_OffCpuNeverReportsExpiry(t *testing.T) {
	start := time.Unix(0, 0)
	defer resetClock(t, start)()

	tsk := task.New("gtid-1", 1*time.Millisecond)
	tsk.SetRuntimeAtLastPick()

	clock.NowFunc = func() time.Time { return start.Add(time.Second) }
	expired := tsk.UpdateRemainingTime(true)

	assert.False(t, expired)
	assert.Less(t, tsk.RemainingTime, time.Duration(0))
}

func TestSetRemainingTimeRefills(t *testing.T) {
	tsk := task.New("gtid-1", 5*time.Millisecond)
	tsk.RemainingTime = -3 * time.Millisecond
	tsk.SetRemainingTime(5 * time.Millisecond)
	assert.Equal(t, 5*time.Millisecond, tsk.RemainingTime)
}

func TestStateHelpers(t *testing.T) {
	tsk := task.New("gtid-1", time.Millisecond)
	assert.False(t, tsk.IsBlocked())
	tsk.RunState = task.Blocked
	assert.True(t, tsk.IsBlocked())
	tsk.RunState = task.Queued
	assert.True(t, tsk.Queued())
	tsk.RunState = task.OnCpu
	assert.True(t, tsk.OnCpu())
}
