// Package handle defines a generational handle and a pool that
// allocates, recycles and validates such handles.
//
// A Handle is a lightweight, copyable reference to an object
// stored in a Pool. It never points into the pool's backing
// storage directly, so the pool is free to move, grow or reuse
// slots without invalidating outstanding handles: staleness is
// instead detected by comparing generation counters.
package handle

// Handle is a generational reference to an object of kind K
// stored in a Pool[K, P]. The zero Handle is never valid: it
// is reserved as the "no object" value (spec §3: generation 0
// marks the handle empty, mirroring the original C++
// InternalObjectHandle's default-constructed state).
type Handle[K any] struct {
	index int
	gen   uint32
}

// Index returns the handle's slot index.
func (h Handle[K]) Index() int { return h.index }

// Gen returns the handle's generation counter.
func (h Handle[K]) Gen() uint32 { return h.gen }

// Valid reports whether h could possibly refer to a live
// object. It does not consult any Pool, so a Valid handle may
// still be stale; only Pool.Get can confirm liveness.
func (h Handle[K]) Valid() bool { return h.gen != 0 }

// Key returns a value suitable for use as a map key, combining
// index and generation the same way the original C++
// std::hash<InternalObjectHandle<Type>> specialization does
// (index in the high bits, generation in the low bits), so
// that two handles referring to different generations of the
// same slot never collide.
func (h Handle[K]) Key() uint64 {
	return uint64(uint32(h.index))<<32 | uint64(h.gen)
}

// listEnd marks the end of the pool's internal free list.
const listEnd = ^uint32(0)

// entry is one slot of a Pool.
type entry[P any] struct {
	obj      P
	gen      uint32
	nextFree uint32
	occupied bool
}

// Pool is a generational handle pool: a slab of objects of
// type P indexed by Handle[K], with O(1) Create/Destroy/Get
// backed by an intrusive free list. Grounded directly on
// original_source/lib/ObjectHandles.h's HandlePool<HandleType,
// ActualObject>.
type Pool[K any, P any] struct {
	entries  []entry[P]
	freeHead uint32
	numLive  int
}

// New returns an empty pool.
func New[K any, P any]() *Pool[K, P] {
	return &Pool[K, P]{freeHead: listEnd}
}

// Create inserts obj into the pool and returns a handle that
// refers to it. It reuses the most recently freed slot when
// one is available, otherwise it appends a new slot; either
// way this is O(1).
func (p *Pool[K, P]) Create(obj P) Handle[K] {
	if p.freeHead != listEnd {
		i := p.freeHead
		e := &p.entries[i]
		p.freeHead = e.nextFree
		e.obj = obj
		e.occupied = true
		p.numLive++
		return Handle[K]{index: int(i), gen: e.gen}
	}
	i := len(p.entries)
	p.entries = append(p.entries, entry[P]{obj: obj, gen: 1, occupied: true})
	p.numLive++
	return Handle[K]{index: i, gen: 1}
}

// Get returns a pointer to the object referred to by h, or nil
// if h is stale (the slot was destroyed, possibly recreated
// since, or h was never produced by this pool). The returned
// pointer is invalidated by any subsequent Destroy of the same
// handle, and must not be retained across that call.
func (p *Pool[K, P]) Get(h Handle[K]) *P {
	if !p.valid(h) {
		return nil
	}
	return &p.entries[h.index].obj
}

// Destroy invalidates h's slot, bumping its generation so that
// every outstanding copy of h (and any future handle that
// happens to reuse the same index) is distinguishable, and
// returns the slot to the free list. Destroying a stale or
// already-destroyed handle is a no-op: it returns false.
func (p *Pool[K, P]) Destroy(h Handle[K]) bool {
	if !p.valid(h) {
		return false
	}
	e := &p.entries[h.index]
	var zero P
	e.obj = zero
	e.occupied = false
	e.gen++
	if e.gen == 0 {
		// Wrap past the reserved "empty" generation so the
		// slot never again compares valid against a stale 0.
		e.gen = 1
	}
	e.nextFree = p.freeHead
	p.freeHead = uint32(h.index)
	p.numLive--
	return true
}

// valid reports whether h currently refers to a live slot.
func (p *Pool[K, P]) valid(h Handle[K]) bool {
	if !h.Valid() || h.index < 0 || h.index >= len(p.entries) {
		return false
	}
	e := &p.entries[h.index]
	return e.occupied && e.gen == h.gen
}

// NumLive returns the number of handles currently live in the
// pool.
func (p *Pool[K, P]) NumLive() int { return p.numLive }

// HandleAt returns the handle currently occupying slot index,
// and whether that slot is live. It exists for iteration and
// diagnostics, mirroring HandlePool::getHandle in the original.
func (p *Pool[K, P]) HandleAt(index int) (h Handle[K], ok bool) {
	if index < 0 || index >= len(p.entries) {
		return Handle[K]{}, false
	}
	e := &p.entries[index]
	if !e.occupied {
		return Handle[K]{}, false
	}
	return Handle[K]{index: index, gen: e.gen}, true
}

// Each calls fn for every live handle in the pool, in slot
// order. fn must not call Create or Destroy on the pool.
func (p *Pool[K, P]) Each(fn func(Handle[K], *P)) {
	for i := range p.entries {
		e := &p.entries[i]
		if e.occupied {
			fn(Handle[K]{index: i, gen: e.gen}, &e.obj)
		}
	}
}

// Clear destroys every live slot and resets the pool to empty,
// mirroring HandlePool::clear.
func (p *Pool[K, P]) Clear() {
	p.entries = p.entries[:0]
	p.freeHead = listEnd
	p.numLive = 0
}
