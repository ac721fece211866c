// Package policy provides an optional, opt-in CPU affinity layer that
// placement (runtime/placement) consults before falling back to plain
// round-robin. It is deliberately decoupled from the rest of the core: a
// task with no configured rule behaves exactly as spec.md §4.4 describes.
//
// Grounded on the teacher's policy/policy.go (Mode + AllowList/BlockList
// with context-embedding helpers), reinterpreted here for CPU affinity
// instead of per-action approval.
package policy

import "context"

// Execution modes recognised by placement.
const (
	ModeAuto     = "auto"     // unchanged round-robin (default)
	ModePinned   = "pinned"   // always place on AllowList[0]
	ModeExcluded = "excluded" // round-robin over cpus not in BlockList
)

// Affinity is a single task's placement constraint.
type Affinity struct {
	Mode      string
	AllowList []int // consulted when Mode == ModePinned (first entry wins)
	BlockList []int // consulted when Mode == ModeExcluded
}

// Policy maps a gtid to an Affinity rule. Lookup matches the gtid exactly;
// there is no prefix or class matching. A nil Policy means "no rules, always auto" — the
// zero-cost default.
type Policy struct {
	rules map[string]Affinity
}

// New returns an empty policy.
func New() *Policy {
	return &Policy{rules: make(map[string]Affinity)}
}

// SetRule registers an affinity rule for gtid.
func (p *Policy) SetRule(gtid string, a Affinity) {
	if p.rules == nil {
		p.rules = make(map[string]Affinity)
	}
	p.rules[gtid] = a
}

// Lookup returns the rule for gtid, and whether one is configured.
func (p *Policy) Lookup(gtid string) (Affinity, bool) {
	if p == nil {
		return Affinity{}, false
	}
	a, ok := p.rules[gtid]
	return a, ok
}

// Allowed filters cpus down to the ones Affinity permits. An auto-mode (or
// zero-value) Affinity permits everything.
func (a Affinity) Allowed(cpus []int) []int {
	switch a.Mode {
	case ModePinned:
		if len(a.AllowList) == 0 {
			return cpus
		}
		return []int{a.AllowList[0]}
	case ModeExcluded:
		blocked := make(map[int]bool, len(a.BlockList))
		for _, c := range a.BlockList {
			blocked[c] = true
		}
		out := make([]int, 0, len(cpus))
		for _, c := range cpus {
			if !blocked[c] {
				out = append(out, c)
			}
		}
		return out
	default:
		return cpus
	}
}

type ctxKeyT struct{}

var ctxKey ctxKeyT

// WithPolicy embeds p in ctx, for code that threads affinity configuration
// through a context rather than a scheduler field.
func WithPolicy(ctx context.Context, p *Policy) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey, p)
}

// FromContext extracts a *Policy previously embedded with WithPolicy.
func FromContext(ctx context.Context) *Policy {
	if ctx == nil {
		return nil
	}
	p, _ := ctx.Value(ctxKey).(*Policy)
	return p
}
