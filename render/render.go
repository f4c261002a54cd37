// Package render builds dual contouring cell trees from implicit fields
// using a pool of worker goroutines.
package render

import (
	"context"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/google/uuid"
	"github.com/soypat/brep"
	"github.com/soypat/brep/dc"
	"github.com/soypat/brep/eval"
	"github.com/soypat/brep/expr"
)

// Root is a built cell tree together with the pool that stores it.
type Root struct {
	pool   *dc.Pool
	handle dc.Handle
	region brep.Region
	stats  Stats
}

// Stats summarizes a build.
type Stats struct {
	// Levels is the number of subdivisions from the root to the smallest cells.
	Levels int
	// Collapsed is the number of branches merged into a single cell.
	Collapsed int
	Duration  time.Duration
	Pool      dc.PoolStats
}

// Cell returns the root cell.
func (r *Root) Cell() *dc.Cell { return r.pool.Cell(r.handle) }

// Pool returns the pool holding the tree's cells and leaves.
func (r *Root) Pool() *dc.Pool { return r.pool }

// Region returns the region covered by the root cell.
func (r *Root) Region() brep.Region { return r.region }

// Stats returns the build summary.
func (r *Root) Stats() Stats { return r.stats }

// Walk calls fn for every cell of the tree in depth first order, parents
// before children. Children of a cell are skipped if fn returns false.
func (r *Root) Walk(fn func(c *dc.Cell) bool) {
	stack := []dc.Handle{r.handle}
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		c := r.pool.Cell(h)
		if !fn(c) || c.State() != dc.Branch {
			continue
		}
		for i := c.Region().Corners() - 1; i >= 0; i-- {
			stack = append(stack, c.Child(i))
		}
	}
}

// Release returns every cell and leaf of the tree to its pool.
func (r *Root) Release() {
	c := r.pool.Cell(r.handle)
	if c == nil {
		return
	}
	c.ReleaseTo(r.pool)
	r.pool.ReleaseCell(r.handle)
	r.handle = 0
}

// Builder builds cell trees.
type Builder struct {
	Settings Settings
	// Vars holds the values of the field's free variables.
	Vars map[expr.VarID]float32
	// Metrics may be nil.
	Metrics *Metrics
	// Progress, if set, is called as cells are processed. Calls are
	// serialized but may come from any worker goroutine.
	Progress func(Progress)
}

// Build builds the cell tree of tree over region with settings s.
func Build(ctx context.Context, tree expr.Tree, region brep.Region, s Settings) (*Root, error) {
	b := Builder{Settings: s}
	return b.Build(ctx, eval.NewDeck(tree), region)
}

// Build builds the cell tree of deck over region. The region is
// subdivided until its cells are no larger than Settings.MinFeature.
func (b *Builder) Build(ctx context.Context, deck *eval.Deck, region brep.Region) (*Root, error) {
	if err := b.Settings.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	region = region.WithResolution(b.Settings.MinFeature)
	buildID := uuid.NewString()
	logs.WithTag("build_id", buildID).
		WithTag("workers", b.Settings.Workers).
		WithTag("levels", region.Level).
		WithTag("dim", region.Dim()).
		WithTag("clauses", deck.Tape().Len()).
		Info("starting build")

	o := newOctree(deck, b.Vars, region, b.Settings, b.Metrics, b.Progress)
	root, err := o.run(ctx)
	if err != nil {
		err = errors.New("build failed").
			WithType(errors.Type(err)).
			WithTag("build_id", buildID).
			Wrap(err)
		logs.Warn(err)
		return nil, err
	}
	root.stats.Duration = time.Since(start)
	root.stats.Pool = root.pool.Stats()
	b.Metrics.observeBuild(root.stats.Duration)

	logs.WithTag("build_id", buildID).
		WithTag("cells", root.stats.Pool.Cells).
		WithTag("leaves", root.stats.Pool.Leaves).
		WithTag("collapsed", root.stats.Collapsed).
		WithTag("duration", root.stats.Duration).
		Info("build finished")
	return root, nil
}
