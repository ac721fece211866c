// Package alloc implements the thread-safe task allocator pool (spec.md
// §6): task construction, iteration and freeing. It is grounded on the
// teacher's generic mutex-guarded container,
// service/dao/store/memory_store.go's MemoryStore[K,T], specialised here to
// own *task.Task records keyed by gtid rather than going through the
// dao.Service interface (the allocator's contract — ForEachTask/FreeTask —
// is narrower than a full CRUD DAO).
package alloc

import (
	"fmt"
	"sync"
	"time"

	"github.com/oscore/dsched/runtime/task"
)

// Allocator is the thread-safe arena owning every live task record. Tasks
// are freed only by the dispatcher handler that observes TaskDeparted or
// TaskDead (spec.md §3 Ownership).
type Allocator struct {
	mu    sync.RWMutex
	tasks map[string]*task.Task
}

// New returns an empty allocator.
func New() *Allocator {
	return &Allocator{tasks: make(map[string]*task.Task)}
}

// NewTask allocates and registers a task record for gtid. It is an error to
// allocate the same gtid twice without an intervening FreeTask (spec.md §7
// kind 4: allocation failures are fatal, since the pool is expected to be
// bounded and reserved).
func (a *Allocator) NewTask(gtid string, slice time.Duration) *task.Task {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.tasks[gtid]; exists {
		panic(fmt.Sprintf("alloc: task %s already allocated", gtid))
	}
	t := task.New(gtid, slice)
	a.tasks[gtid] = t
	return t
}

// Lookup returns the task for gtid, or nil if none is allocated.
func (a *Allocator) Lookup(gtid string) *task.Task {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.tasks[gtid]
}

// FreeTask returns a task record to the pool. Called exactly once per task,
// from the dispatcher handler that observes its departure or death.
func (a *Allocator) FreeTask(t *task.Task) {
	if t == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.tasks, t.Gtid)
}

// ForEachTask calls fn for every currently allocated task. fn returning
// false stops iteration early. Iteration order is not defined.
func (a *Allocator) ForEachTask(fn func(t *task.Task) bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, t := range a.tasks {
		if !fn(t) {
			return
		}
	}
}

// Size returns the number of live task records.
func (a *Allocator) Size() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.tasks)
}
