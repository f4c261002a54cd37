package dc

import (
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

func TestHandle(t *testing.T) {
	h := makeHandle(3, 5, 7)
	if h.shard() != 3 || h.page() != 5 || h.slot() != 7 {
		t.Fatalf("bad handle decode %d %d %d", h.shard(), h.page(), h.slot())
	}
	if h.IsNil() || !Handle(0).IsNil() {
		t.Fatal("bad nil handle")
	}
}

func TestPoolRoundTrip(t *testing.T) {
	p := NewPool()
	h, c, err := p.NewCell()
	if err != nil {
		t.Fatal(err)
	}
	if h.IsNil() || c == nil || p.Cell(h) != c {
		t.Fatal("bad cell allocation")
	}
	lh, l, err := p.NewLeaf()
	if err != nil {
		t.Fatal(err)
	}
	if p.Leaf(lh) != l {
		t.Fatal("bad leaf allocation")
	}
	l.cornerMask = 3
	c.state = Filled

	before := p.Stats()
	p.ReleaseCell(h)
	p.ReleaseLeaf(lh)
	if c.state != Unknown || l.cornerMask != 0 {
		t.Fatal("released objects were not reset")
	}
	h2, c2, err := p.NewCell()
	if err != nil {
		t.Fatal(err)
	}
	lh2, _, err := p.NewLeaf()
	if err != nil {
		t.Fatal(err)
	}
	if h2 != h || c2 != c || lh2 != lh {
		t.Fatal("released slots were not reused")
	}
	after := p.Stats()
	if after.CellSlots != before.CellSlots || after.LeafSlots != before.LeafSlots {
		t.Fatalf("arena grew on reuse: %+v -> %+v", before, after)
	}
	if after.Reused != 2 || after.Cells != 1 || after.Leaves != 1 {
		t.Fatalf("unexpected stats %+v", after)
	}
}

func TestPoolGrowsPages(t *testing.T) {
	p := NewPool()
	seen := make(map[Handle]bool)
	for i := 0; i < 3*pageSize; i++ {
		h, c, err := p.NewCell()
		if err != nil {
			t.Fatal(err)
		}
		if seen[h] || p.Cell(h) != c {
			t.Fatalf("bad handle %d", h)
		}
		seen[h] = true
	}
	if got := p.Stats().CellSlots; got != 3*pageSize {
		t.Fatalf("want %d slots, got %d", 3*pageSize, got)
	}
}

func TestPoolForkClaim(t *testing.T) {
	p := NewPool()
	sub := p.Fork()
	h, c, err := sub.NewCell()
	if err != nil {
		t.Fatal(err)
	}
	if h.shard() == 1 {
		t.Fatal("fork allocated from the parent's shard")
	}
	if p.Cell(h) != c {
		t.Fatal("parent can not resolve fork handle")
	}
	sub.ReleaseCell(h)
	p.Claim(sub)
	st := p.Stats()
	if st.Cells != 0 || st.CellSlots != 1 {
		t.Fatalf("unexpected stats after claim %+v", st)
	}
	// The claimed free list serves the parent.
	h2, _, err := p.NewCell()
	if err != nil {
		t.Fatal(err)
	}
	if h2 != h {
		t.Fatal("claimed slot not reused")
	}
	// The claimed shard is handed to the next fork.
	sub = p.Fork()
	h3, _, err := sub.NewCell()
	if err != nil {
		t.Fatal(err)
	}
	if h3.shard() != h.shard() {
		t.Fatalf("fork got shard %d, want %d", h3.shard(), h.shard())
	}
}

func TestPoolExhausted(t *testing.T) {
	p := newPool(1)
	sub := p.Fork()
	_, _, err := sub.NewCell()
	if !errors.IsType(err, ErrTypePoolExhausted) {
		t.Fatalf("want pool exhausted error, got %v", err)
	}
	_, _, err = sub.NewLeaf()
	if !errors.IsType(err, ErrTypePoolExhausted) {
		t.Fatalf("want pool exhausted error, got %v", err)
	}
	// The parent's own shard still allocates.
	if _, _, err := p.NewCell(); err != nil {
		t.Fatal(err)
	}
}

func TestIntersectionVecRefs(t *testing.T) {
	v := NewIntersectionVec()
	v.Append(Intersection{Value: 1})
	if v.Refs() != 1 || v.Len() != 1 {
		t.Fatalf("refs %d len %d", v.Refs(), v.Len())
	}
	v.Retain()
	v.Release()
	if v.Refs() != 1 || v.Items()[0].Value != 1 {
		t.Fatal("list recycled while referenced")
	}
	v.Release()
}
