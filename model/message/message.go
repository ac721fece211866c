// Package message describes the closed set of kernel notifications the
// scheduler core reacts to. The set is fixed by the kernel ABI, so dispatch
// is a plain switch over Kind rather than a registry of handlers.
package message

// Kind identifies the variant of a Message.
type Kind int

const (
	TaskNew Kind = iota
	TaskWakeup
	TaskYield
	TaskBlocked
	TaskPreempt
	TaskSwitchto
	TaskDeparted
	TaskDead
	CpuTick
)

func (k Kind) String() string {
	switch k {
	case TaskNew:
		return "TaskNew"
	case TaskWakeup:
		return "TaskWakeup"
	case TaskYield:
		return "TaskYield"
	case TaskBlocked:
		return "TaskBlocked"
	case TaskPreempt:
		return "TaskPreempt"
	case TaskSwitchto:
		return "TaskSwitchto"
	case TaskDeparted:
		return "TaskDeparted"
	case TaskDead:
		return "TaskDead"
	case CpuTick:
		return "CpuTick"
	default:
		return "Unknown"
	}
}

// Message is a decoded kernel notification. Gtid is empty for CpuTick,
// which targets a CPU rather than a task. Seqnum is the barrier token the
// kernel attaches to this message for ordering/staleness checks.
type Message struct {
	Kind   Kind
	Gtid   string
	Seqnum uint64
	Cpu    int

	// Runnable is valid for TaskNew.
	Runnable bool

	// Deferrable is valid for TaskWakeup.
	Deferrable bool

	// FromSwitchto is valid for TaskYield, TaskBlocked, TaskPreempt and
	// TaskDeparted. Cpu carries the remote CPU id when FromSwitchto is set.
	FromSwitchto bool
}
