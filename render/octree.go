package render

import (
	"context"
	"math"
	"sync/atomic"

	"github.com/soypat/brep"
	"github.com/soypat/brep/dc"
	"github.com/soypat/brep/eval"
	"github.com/soypat/brep/expr"
	"github.com/soypat/brep/internal/d3"
	"golang.org/x/sync/errgroup"
)

// octree builds a cell tree one depth at a time. Cells of a depth are
// evaluated in parallel, then the next depth's tasks are created from the
// branches. Once the smallest cells are evaluated, branches are merged
// bottom up.
type octree struct {
	pool     *dc.Pool
	region   brep.Region
	settings Settings
	metrics  *Metrics
	workers  []*worker
	// todo holds the tasks of each depth, root first.
	todo      [][]task
	collapsed atomic.Int64
	progress  tracker
}

type worker struct {
	ev   *eval.Evaluator
	pool *dc.Pool
}

type task struct {
	cell      *dc.Cell
	region    brep.Region
	tape      *eval.Tape
	neighbors dc.Neighbors
}

func newOctree(deck *eval.Deck, vars map[expr.VarID]float32, region brep.Region, s Settings, m *Metrics, progress func(Progress)) *octree {
	o := &octree{
		pool:     dc.NewPool(),
		region:   region,
		settings: s,
		metrics:  m,
		progress: tracker{fn: progress},
	}
	for i := 0; i < s.Workers; i++ {
		o.workers = append(o.workers, &worker{ev: eval.NewEvaluator(deck, vars)})
	}
	return o
}

func (o *octree) run(ctx context.Context) (*Root, error) {
	h, cell, err := o.pool.NewCell()
	if err != nil {
		return nil, err
	}
	root := &Root{pool: o.pool, handle: h, region: o.region}
	root.stats.Levels = o.region.Level
	o.todo = [][]task{{{cell: cell, region: o.region, tape: o.workers[0].ev.Deck().Tape()}}}

	for depth := 0; ; depth++ {
		tasks := o.todo[depth]
		o.progress.start(PhaseInterval, depth, len(tasks))
		if err := o.parallel(ctx, tasks, o.evalInterval); err != nil {
			root.Release()
			return nil, err
		}
		if depth == o.region.Level {
			break
		}
		o.todo = append(o.todo, o.children(tasks))
	}

	// Cells of the same parity share no edge and are evaluated together.
	leaves := o.todo[o.region.Level]
	ambiguous := 0
	for _, t := range leaves {
		if t.cell.State() == dc.Ambiguous {
			ambiguous++
		}
	}
	o.progress.start(PhaseLeaf, o.region.Level, ambiguous)
	for parity := 0; parity < o.region.Corners(); parity++ {
		var phase []task
		for _, t := range leaves {
			if t.cell.State() == dc.Ambiguous && o.parity(t.region) == parity {
				phase = append(phase, t)
			}
		}
		if err := o.parallel(ctx, phase, o.evalLeaf); err != nil {
			root.Release()
			return nil, err
		}
	}

	for depth := o.region.Level - 1; depth >= 0; depth-- {
		o.progress.start(PhaseCollapse, depth, len(o.todo[depth]))
		if err := o.parallel(ctx, o.todo[depth], o.collect); err != nil {
			root.Release()
			return nil, err
		}
	}
	root.stats.Collapsed = int(o.collapsed.Load())
	o.todo = nil
	return root, nil
}

// children returns the tasks for the children of every branch in tasks.
func (o *octree) children(tasks []task) []task {
	var next []task
	for i := range tasks {
		t := &tasks[i]
		if t.cell.State() != dc.Branch {
			continue
		}
		for j, r := range t.region.Subdivide() {
			next = append(next, task{
				cell:      o.pool.Cell(t.cell.Child(j)),
				region:    r,
				tape:      t.tape,
				neighbors: t.neighbors.Push(j, t.cell, o.pool),
			})
		}
	}
	return next
}

// parity returns the parity of the grid position of a smallest cell.
func (o *octree) parity(r brep.Region) int {
	p := 0
	size := r.Size()
	for k := 0; k < r.Dim(); k++ {
		g := math.Round((d3.Axis(r.Lower, k) - d3.Axis(o.region.Lower, k)) / d3.Axis(size, k))
		p |= (int(g) & 1) << k
	}
	return p
}

// parallel calls fn on every task from the octree's workers. Each worker
// allocates from its own fork of the pool, claimed once all are done.
func (o *octree) parallel(ctx context.Context, tasks []task, fn func(w *worker, t *task) error) error {
	if len(tasks) == 0 {
		return nil
	}
	g, ctx := errgroup.WithContext(ctx)
	var next atomic.Int64
	n := min(len(o.workers), len(tasks))
	for _, w := range o.workers[:n] {
		w := w
		w.pool = o.pool.Fork()
		g.Go(func() error {
			for {
				if err := ctx.Err(); err != nil {
					return err
				}
				i := int(next.Add(1)) - 1
				if i >= len(tasks) {
					return nil
				}
				if err := fn(w, &tasks[i]); err != nil {
					return err
				}
				o.progress.tick()
			}
		})
	}
	err := g.Wait()
	for _, w := range o.workers[:n] {
		o.pool.Claim(w.pool)
		w.pool = nil
	}
	return err
}

func (o *octree) evalInterval(w *worker, t *task) error {
	tape, err := t.cell.EvalInterval(w.ev, t.tape, t.region)
	if err != nil {
		return err
	}
	t.tape = tape
	o.metrics.observeInterval(t.cell.State())
	if t.cell.State() != dc.Ambiguous || t.region.Level == 0 {
		return nil
	}
	return t.cell.Subdivide(w.pool, t.region)
}

func (o *octree) evalLeaf(w *worker, t *task) error {
	if err := t.cell.EvalLeaf(w.ev, t.tape, t.region, w.pool, t.neighbors); err != nil {
		return err
	}
	o.metrics.observeLeaf(t.cell.State())
	return nil
}

func (o *octree) collect(w *worker, t *task) error {
	if t.cell.State() != dc.Branch {
		return nil
	}
	ok, err := t.cell.CollectChildren(w.ev, t.tape, t.region, w.pool, o.settings.MaxErr)
	if err != nil {
		return err
	}
	o.metrics.observeCollapse(ok)
	if ok {
		o.collapsed.Add(1)
	}
	return nil
}
