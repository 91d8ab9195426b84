// Package tracker implements the texture state tracker: for
// every tracked texture, it remembers the image layout and the
// synchronization/access scope of whatever last touched it, so
// that render-graph compilation can synthesize the minimal
// barrier needed before the next access.
//
// Grounded on driver.Layout/Sync/Access (driver/core.go) for
// vocabulary; the Whole/PerSub discriminated union and its
// non-coalescing behavior are spec-mandated (§4.G, §9) — the
// teacher has no texture-state tracker of its own, only a flat
// per-texture atomic layout in engine/texture.go, which is the
// fast-path-only precedent this tracker generalizes from.
package tracker

import "github.com/vgpu/framegraph/driver"

// State is the layout and synchronization scope a subresource
// was left in by its most recent access.
type State struct {
	Layout driver.Layout
	Sync   driver.Sync
	Access driver.Access
}

// Range identifies a set of subresources of a tracked texture.
// A Range with Layers == tex's full layer count and Levels ==
// tex's full level count (and zero offsets) is the whole range.
type Range struct {
	BaseLayer, Layers int
	BaseLevel, Levels int
}

// contains reports whether r fully contains o.
func (r Range) contains(o Range) bool {
	return o.BaseLayer >= r.BaseLayer && o.BaseLayer+o.Layers <= r.BaseLayer+r.Layers &&
		o.BaseLevel >= r.BaseLevel && o.BaseLevel+o.Levels <= r.BaseLevel+r.Levels
}

// containsPoint reports whether r covers the given (layer, level)
// subresource.
func (r Range) containsPoint(layer, level int) bool {
	return layer >= r.BaseLayer && layer < r.BaseLayer+r.Layers &&
		level >= r.BaseLevel && level < r.BaseLevel+r.Levels
}

// rangeState is one PerSub entry: the subresource range it was
// written with and the state recorded for it. Entries accumulate
// in write order and are never merged, even when their ranges
// overlap (spec §9: "non-coalescing").
type rangeState struct {
	r Range
	s State
}

// RangeState pairs a subresource range with the state last
// recorded for it, returned by ReadSplit.
type RangeState struct {
	Range Range
	State State
}

// entry is the per-texture tracking record. It starts in the
// Whole state (the fast path: one State covers every
// subresource) and only splits into PerSub once a write targets
// less than the whole resource. It never recombines automatically
// except via a write that targets the whole resource again (spec
// §9: "collapses back to Whole on a whole-range write", otherwise
// non-coalescing).
type entry struct {
	whole  bool
	state  State
	subs   []rangeState
	layers int
	levels int
}

// Tracker tracks texture state across a handle-pool keyspace.
// It is keyed by an opaque uint64 (the caller's handle.Key()),
// so it has no dependency on a specific handle tag type.
type Tracker struct {
	m map[uint64]*entry
}

// New returns an empty Tracker.
func New() *Tracker { return &Tracker{m: make(map[uint64]*entry)} }

// Track registers a texture with key, with the given total
// layer/level extent, initially in state initial across its
// whole range.
func (t *Tracker) Track(key uint64, layers, levels int, initial State) {
	t.m[key] = &entry{whole: true, state: initial, layers: layers, levels: levels}
}

// Untrack removes a texture's tracking record, e.g. when the
// texture is destroyed (resource.Manager.DestroyTexture untracks
// immediately, before its deferred destruction runs).
func (t *Tracker) Untrack(key uint64) { delete(t.m, key) }

// isWholeRange reports whether r covers the texture's entire
// extent.
func isWholeRange(r Range, e *entry) bool {
	return r.BaseLayer == 0 && r.Layers == e.layers &&
		r.BaseLevel == 0 && r.Levels == e.levels
}

// Read returns the state of the first entry (searched from the
// most recently written backwards) whose range equals or fully
// contains r; if none covers r, it returns the zero State
// (Undefined), a safe default that forces a conservative barrier
// (spec §4.G). Searching newest-first means a later, more
// specific write always shadows the whole-range state recorded
// at the moment of the first split, without needing to touch
// that background entry.
func (t *Tracker) Read(key uint64, r Range) State {
	e, ok := t.m[key]
	if !ok {
		return State{}
	}
	if e.whole {
		return e.state
	}
	for i := len(e.subs) - 1; i >= 0; i-- {
		if e.subs[i].r.contains(r) {
			return e.subs[i].s
		}
	}
	return State{}
}

// ReadSplit partitions r into the minimal set of contiguous
// per-layer mip-level runs that share a single state, using the
// same newest-write-wins rule as Read at every individual
// subresource. Unlike Read, which reports a single state for the
// whole query range (that of the newest entry containing all of
// it, which for a fragmented range is the full-range state kept
// from before the first split), ReadSplit lets a caller reconstruct
// exactly which parts of a fragmented range are in which state,
// so it can emit one barrier per state instead of one
// overly-conservative barrier for the entire range (spec §8,
// "Subresource layout split").
func (t *Tracker) ReadSplit(key uint64, r Range) []RangeState {
	e, ok := t.m[key]
	if !ok {
		return []RangeState{{Range: r, State: State{}}}
	}
	if e.whole {
		return []RangeState{{Range: r, State: e.state}}
	}
	var out []RangeState
	for layer := r.BaseLayer; layer < r.BaseLayer+r.Layers; layer++ {
		runStart := r.BaseLevel
		var runState State
		haveRun := false
		flush := func(end int) {
			if haveRun {
				out = append(out, RangeState{
					Range: Range{BaseLayer: layer, Layers: 1, BaseLevel: runStart, Levels: end - runStart},
					State: runState,
				})
			}
		}
		for level := r.BaseLevel; level < r.BaseLevel+r.Levels; level++ {
			st := stateAt(e, layer, level)
			switch {
			case !haveRun:
				haveRun = true
				runStart = level
				runState = st
			case st != runState:
				flush(level)
				runStart = level
				runState = st
			}
		}
		flush(r.BaseLevel + r.Levels)
	}
	return out
}

// stateAt returns the state recorded for a single subresource,
// searching e.subs newest-first.
func stateAt(e *entry, layer, level int) State {
	for i := len(e.subs) - 1; i >= 0; i-- {
		if e.subs[i].r.containsPoint(layer, level) {
			return e.subs[i].s
		}
	}
	return State{}
}

// Write records that every subresource in r was transitioned
// to/accessed as st. A write over the whole range collapses the
// entry back to Whole, discarding any PerSub split; a write over
// a partial range splits (or keeps split) the entry, appending one
// new range-keyed entry without attempting to merge it with
// whatever was there before (spec §9: "non-coalescing"). The
// first time an entry splits, the prior Whole state is kept as a
// full-range background entry so that subresources the split
// write doesn't touch still read back their pre-split state.
func (t *Tracker) Write(key uint64, r Range, st State) {
	e, ok := t.m[key]
	if !ok {
		return
	}
	if isWholeRange(r, e) {
		e.whole = true
		e.state = st
		e.subs = nil
		return
	}
	if e.whole {
		e.whole = false
		e.subs = []rangeState{{
			r: Range{BaseLayer: 0, Layers: e.layers, BaseLevel: 0, Levels: e.levels},
			s: e.state,
		}}
	}
	e.subs = append(e.subs, rangeState{r: r, s: st})
}

// IsWhole reports whether key's entry is currently in the fast
// Whole state (no PerSub split), mainly for tests.
func (t *Tracker) IsWhole(key uint64) bool {
	e, ok := t.m[key]
	return ok && e.whole
}
