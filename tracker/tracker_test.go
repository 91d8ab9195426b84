// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package tracker

import (
	"testing"

	"github.com/vgpu/framegraph/driver"
)

func TestWholeFastPath(t *testing.T) {
	tr := New()
	tr.Track(1, 1, 1, State{Layout: driver.LUndefined})
	if !tr.IsWhole(1) {
		t.Fatal("newly tracked texture must start in the Whole state")
	}
	tr.Write(1, Range{0, 1, 0, 1}, State{Layout: driver.LShaderRead})
	if !tr.IsWhole(1) {
		t.Fatal("a whole-range write must keep (or restore) the Whole state")
	}
	if got := tr.Read(1, Range{0, 1, 0, 1}).Layout; got != driver.LShaderRead {
		t.Fatalf("Read().Layout = %v, want LShaderRead", got)
	}
}

func TestPartialWriteSplitsAndIsNonCoalescing(t *testing.T) {
	tr := New()
	tr.Track(1, 2, 4, State{Layout: driver.LUndefined})

	tr.Write(1, Range{BaseLayer: 0, Layers: 1, BaseLevel: 0, Levels: 1}, State{Layout: driver.LColorTarget})
	if tr.IsWhole(1) {
		t.Fatal("a partial-range write must split the entry out of Whole")
	}

	got := tr.Read(1, Range{BaseLayer: 0, Layers: 1, BaseLevel: 0, Levels: 1})
	if got.Layout != driver.LColorTarget {
		t.Fatalf("written subresource Layout = %v, want LColorTarget", got.Layout)
	}
	// An untouched subresource still reports the pre-split state.
	other := tr.Read(1, Range{BaseLayer: 1, Layers: 1, BaseLevel: 0, Levels: 1})
	if other.Layout != driver.LUndefined {
		t.Fatalf("untouched subresource Layout = %v, want LUndefined", other.Layout)
	}
}

func TestWholeRangeWriteCollapsesSplitEntry(t *testing.T) {
	tr := New()
	tr.Track(1, 2, 1, State{Layout: driver.LUndefined})
	tr.Write(1, Range{BaseLayer: 0, Layers: 1, BaseLevel: 0, Levels: 1}, State{Layout: driver.LColorTarget})
	if tr.IsWhole(1) {
		t.Fatal("precondition: entry should be split")
	}
	tr.Write(1, Range{BaseLayer: 0, Layers: 2, BaseLevel: 0, Levels: 1}, State{Layout: driver.LShaderRead})
	if !tr.IsWhole(1) {
		t.Fatal("a subsequent whole-range write must collapse back to Whole")
	}
}

func TestReadSplitFragmentsAcrossMultipleWrites(t *testing.T) {
	tr := New()
	tr.Track(1, 1, 4, State{Layout: driver.LUndefined})
	tr.Write(1, Range{BaseLayer: 0, Layers: 1, BaseLevel: 0, Levels: 2}, State{Layout: driver.LCopySrc})

	got := tr.ReadSplit(1, Range{BaseLayer: 0, Layers: 1, BaseLevel: 0, Levels: 4})
	if len(got) != 2 {
		t.Fatalf("ReadSplit returned %d ranges, want 2: %+v", len(got), got)
	}
	if got[0].Range.BaseLevel != 0 || got[0].Range.Levels != 2 || got[0].State.Layout != driver.LCopySrc {
		t.Fatalf("first split = %+v, want mips[0..2) at LCopySrc", got[0])
	}
	if got[1].Range.BaseLevel != 2 || got[1].Range.Levels != 2 || got[1].State.Layout != driver.LUndefined {
		t.Fatalf("second split = %+v, want mips[2..4) at LUndefined", got[1])
	}

	// Read, which reports a single state, returns the full-range
	// state kept from before the split (Undefined here), since the
	// newer mips[0..2) entry does not contain the whole query.
	if got := tr.Read(1, Range{BaseLayer: 0, Layers: 1, BaseLevel: 0, Levels: 4}); got.Layout != driver.LUndefined {
		t.Fatalf("Read over a fragmented range = %v, want LUndefined", got.Layout)
	}
}

func TestUntrackedKeyReadsZeroValue(t *testing.T) {
	tr := New()
	st := tr.Read(999, Range{0, 1, 0, 1})
	if st.Layout != driver.LUndefined {
		t.Fatalf("Read of an untracked key = %v, want zero State", st)
	}
}
