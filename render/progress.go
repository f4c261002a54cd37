package render

import "sync"

// Build phases reported through Progress.
const (
	PhaseInterval = "interval"
	PhaseLeaf     = "leaf"
	PhaseCollapse = "collapse"
)

// Progress reports how far a build has advanced within one phase at one
// depth of the tree, the root being depth 0.
type Progress struct {
	Phase string
	Depth int
	// Done counts the cells of the phase processed so far out of Total.
	Done, Total int
}

// tracker forwards progress ticks to a caller's handler. Ticks from
// different workers are serialized so the handler sees Done increase by
// one on each call.
type tracker struct {
	mu sync.Mutex
	fn func(Progress)
	p  Progress
}

func (t *tracker) start(phase string, depth, total int) {
	if t.fn == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.p = Progress{Phase: phase, Depth: depth, Total: total}
	t.fn(t.p)
}

func (t *tracker) tick() {
	if t.fn == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.p.Done++
	t.fn(t.p)
}
