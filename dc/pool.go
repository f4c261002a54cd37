package dc

import (
	"sync"
	"sync/atomic"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

// Handle addresses a Cell or Leaf stored in a Pool. The zero Handle is nil.
// A handle packs the owning shard, the page within the shard and the slot
// within the page.
type Handle uint32

const (
	slotBits  = 10
	pageBits  = 14
	shardBits = 8

	pageSize  = 1 << slotBits
	maxPages  = 1 << pageBits
	maxShards = 1<<shardBits - 1
)

func makeHandle(shard, page, slot int) Handle {
	return Handle(shard<<(pageBits+slotBits) | page<<slotBits | slot)
}

func (h Handle) shard() int { return int(h >> (pageBits + slotBits)) }
func (h Handle) page() int  { return int(h>>slotBits) & (maxPages - 1) }
func (h Handle) slot() int  { return int(h) & (pageSize - 1) }

// IsNil reports whether h addresses nothing.
func (h Handle) IsNil() bool { return h == 0 }

// arena is a growable array of fixed size pages. Pages never move once
// allocated, so pointers into them stay valid for the arena's lifetime.
// Only the owner of the arena's shard appends to it.
type arena[T any] struct {
	pages [maxPages]atomic.Pointer[[pageSize]T]
	// used is the number of slots handed out.
	used atomic.Int32
}

func (a *arena[T]) get(h Handle) *T {
	p := a.pages[h.page()].Load()
	if p == nil {
		return nil
	}
	return &p[h.slot()]
}

// grow returns the next unused slot, allocating a page when needed.
func (a *arena[T]) grow() (page, slot int, ok bool) {
	n := int(a.used.Load())
	page, slot = n/pageSize, n%pageSize
	if page >= maxPages {
		return 0, 0, false
	}
	if slot == 0 && a.pages[page].Load() == nil {
		a.pages[page].Store(new([pageSize]T))
	}
	a.used.Add(1)
	return page, slot, true
}

type shard struct {
	id     int
	cells  arena[Cell]
	leaves arena[Leaf]
}

// registry holds every shard of a pool and the pools forked from it.
type registry struct {
	shards []atomic.Pointer[shard]

	mu    sync.Mutex
	next  int
	spare []*shard
}

// acquire returns an unowned shard, or nil if every shard is taken.
func (r *registry) acquire() *shard {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n := len(r.spare); n > 0 {
		s := r.spare[n-1]
		r.spare = r.spare[:n-1]
		return s
	}
	if r.next >= len(r.shards) {
		return nil
	}
	s := &shard{id: r.next}
	r.shards[r.next].Store(s)
	r.next++
	return s
}

func (r *registry) release(s *shard) {
	if s == nil {
		return
	}
	r.mu.Lock()
	r.spare = append(r.spare, s)
	r.mu.Unlock()
}

// PoolStats counts the objects handed out by a pool.
type PoolStats struct {
	// Cells and Leaves are the number of objects currently in use.
	Cells, Leaves int64
	// Reused counts allocations served from a free list.
	Reused int64
	// CellSlots and LeafSlots are the number of arena slots ever
	// allocated across every shard of the pool.
	CellSlots, LeafSlots int64
}

// Pool is an arena of cells and leaves addressed by Handle. A Pool must
// not be used concurrently for allocation; each goroutine allocates from
// its own Fork. Cell and Leaf may be called from any goroutine.
type Pool struct {
	reg   *registry
	shard *shard

	freeCells  []Handle
	freeLeaves []Handle
	stats      PoolStats
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	return newPool(maxShards)
}

func newPool(shards int) *Pool {
	// Shard 0 is reserved so that no valid handle is zero.
	reg := &registry{shards: make([]atomic.Pointer[shard], shards+1), next: 1}
	return &Pool{reg: reg, shard: reg.acquire()}
}

// Fork returns a pool that allocates from its own shard and shares the
// handle space of p. Return it with Claim once its goroutine is done.
func (p *Pool) Fork() *Pool {
	return &Pool{reg: p.reg, shard: p.reg.acquire()}
}

// Claim takes over the free lists and counters of sub, which must have
// been returned by Fork on p or one of its forks. sub must not be used
// afterwards. Objects allocated by sub remain valid.
func (p *Pool) Claim(sub *Pool) {
	p.freeCells = append(p.freeCells, sub.freeCells...)
	p.freeLeaves = append(p.freeLeaves, sub.freeLeaves...)
	p.stats.Cells += sub.stats.Cells
	p.stats.Leaves += sub.stats.Leaves
	p.stats.Reused += sub.stats.Reused
	p.reg.release(sub.shard)
	*sub = Pool{}
}

func (p *Pool) exhausted(kind string) error {
	id := -1
	if p.shard != nil {
		id = p.shard.id
	}
	return errors.New("object pool exhausted").
		WithType(ErrTypePoolExhausted).
		WithTag("kind", kind).
		WithTag("shard", id)
}

// NewCell returns a zeroed cell in the Unknown state.
func (p *Pool) NewCell() (Handle, *Cell, error) {
	if n := len(p.freeCells); n > 0 {
		h := p.freeCells[n-1]
		p.freeCells = p.freeCells[:n-1]
		p.stats.Cells++
		p.stats.Reused++
		return h, p.Cell(h), nil
	}
	if p.shard == nil {
		return 0, nil, p.exhausted("cell")
	}
	page, slot, ok := p.shard.cells.grow()
	if !ok {
		return 0, nil, p.exhausted("cell")
	}
	h := makeHandle(p.shard.id, page, slot)
	p.stats.Cells++
	return h, p.Cell(h), nil
}

// NewLeaf returns a zeroed leaf.
func (p *Pool) NewLeaf() (Handle, *Leaf, error) {
	if n := len(p.freeLeaves); n > 0 {
		h := p.freeLeaves[n-1]
		p.freeLeaves = p.freeLeaves[:n-1]
		p.stats.Leaves++
		p.stats.Reused++
		return h, p.Leaf(h), nil
	}
	if p.shard == nil {
		return 0, nil, p.exhausted("leaf")
	}
	page, slot, ok := p.shard.leaves.grow()
	if !ok {
		return 0, nil, p.exhausted("leaf")
	}
	h := makeHandle(p.shard.id, page, slot)
	p.stats.Leaves++
	return h, p.Leaf(h), nil
}

// Cell returns the cell addressed by h, or nil for the nil handle.
func (p *Pool) Cell(h Handle) *Cell {
	s := p.lookup(h)
	if s == nil {
		return nil
	}
	return s.cells.get(h)
}

// Leaf returns the leaf addressed by h, or nil for the nil handle.
func (p *Pool) Leaf(h Handle) *Leaf {
	s := p.lookup(h)
	if s == nil {
		return nil
	}
	return s.leaves.get(h)
}

func (p *Pool) lookup(h Handle) *shard {
	if h == 0 || h.shard() >= len(p.reg.shards) {
		return nil
	}
	return p.reg.shards[h.shard()].Load()
}

// ReleaseCell resets the cell addressed by h and makes its slot available
// for reuse. It does not release the cell's children or leaf.
func (p *Pool) ReleaseCell(h Handle) {
	c := p.Cell(h)
	if c == nil {
		return
	}
	*c = Cell{}
	p.freeCells = append(p.freeCells, h)
	p.stats.Cells--
}

// ReleaseLeaf resets the leaf addressed by h, dropping its references to
// intersection lists, and makes its slot available for reuse.
func (p *Pool) ReleaseLeaf(h Handle) {
	l := p.Leaf(h)
	if l == nil {
		return
	}
	l.reset()
	p.freeLeaves = append(p.freeLeaves, h)
	p.stats.Leaves--
}

// Stats returns the pool's counters. Counters of forks are included once
// they have been claimed.
func (p *Pool) Stats() PoolStats {
	st := p.stats
	for i := range p.reg.shards {
		s := p.reg.shards[i].Load()
		if s == nil {
			continue
		}
		st.CellSlots += int64(s.cells.used.Load())
		st.LeafSlots += int64(s.leaves.used.Load())
	}
	return st
}
