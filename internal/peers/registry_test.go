package peers

import (
	"testing"

	"poisync/internal/wire"
)

func ep(b byte) wire.Endpoint {
	return wire.Endpoint{b, b, b, b, b, b}
}

func TestRegistry_InsertAndFind(t *testing.T) {
	r := NewRegistry()

	idx := r.Insert(ep(1))
	if idx != 0 {
		t.Fatalf("first insert: got index %d, want 0", idx)
	}
	if r.Find(ep(1)) != 0 {
		t.Errorf("find: got %d, want 0", r.Find(ep(1)))
	}
	if r.Find(ep(9)) != -1 {
		t.Errorf("find unknown: got %d, want -1", r.Find(ep(9)))
	}
}

func TestRegistry_InsertIdempotent(t *testing.T) {
	r := NewRegistry()

	first := r.Insert(ep(1))
	second := r.Insert(ep(1))
	if first != second {
		t.Errorf("duplicate insert: got %d, want %d", second, first)
	}
	if r.Len() != 1 {
		t.Errorf("len after duplicate insert: got %d, want 1", r.Len())
	}
}

func TestRegistry_CapacityLimit(t *testing.T) {
	r := NewRegistry()

	for i := 0; i < MaxPeers; i++ {
		if idx := r.Insert(ep(byte(i))); idx != i {
			t.Fatalf("insert %d: got index %d", i, idx)
		}
	}
	if idx := r.Insert(ep(0xEE)); idx != -1 {
		t.Errorf("insert beyond capacity: got %d, want -1", idx)
	}
	if r.Len() != MaxPeers {
		t.Errorf("len: got %d, want %d", r.Len(), MaxPeers)
	}

	// Existing endpoints still resolve at capacity.
	if idx := r.Insert(ep(3)); idx != 3 {
		t.Errorf("insert existing at capacity: got %d, want 3", idx)
	}
}

func TestRegistry_RemovePreservesOrder(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 4; i++ {
		r.Insert(ep(byte(i)))
	}

	r.Remove(1)

	if r.Len() != 3 {
		t.Fatalf("len after remove: got %d, want 3", r.Len())
	}
	want := []wire.Endpoint{ep(0), ep(2), ep(3)}
	for i, w := range want {
		p, ok := r.Snapshot(i)
		if !ok || p.Endpoint != w {
			t.Errorf("index %d: got %v, want %v", i, p.Endpoint, w)
		}
	}
}

func TestRegistry_RemoveOutOfRange(t *testing.T) {
	r := NewRegistry()
	r.Insert(ep(1))

	r.Remove(-1)
	r.Remove(5)

	if r.Len() != 1 {
		t.Errorf("len: got %d, want 1", r.Len())
	}
}

func TestRegistry_GetMutatesInPlace(t *testing.T) {
	r := NewRegistry()
	idx := r.Insert(ep(1))

	r.Get(idx).State = StatePaired
	r.Get(idx).Name = "PoiA"

	p, _ := r.Snapshot(idx)
	if p.State != StatePaired || p.Name != "PoiA" {
		t.Errorf("snapshot: got %+v", p)
	}

	if r.Get(99) != nil {
		t.Error("out-of-range Get: got non-nil")
	}
}

func TestRegistry_AllReturnsCopy(t *testing.T) {
	r := NewRegistry()
	r.Insert(ep(1))

	all := r.All()
	all[0].Name = "mutated"

	p, _ := r.Snapshot(0)
	if p.Name == "mutated" {
		t.Error("All returned a view into the registry")
	}
}
