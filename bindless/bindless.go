// Package bindless implements the bindless descriptor table: a
// single descriptor set carrying three arrays — sampled
// images, samplers, and storage images — each indexed directly
// by a handle's slot index, with update-after-bind,
// partially-bound and update-while-pending semantics so that
// holes are legal and in-flight command buffers may keep
// referencing the set while it is being rewritten.
//
// Grounded on driver/vk/desc.go's descHeap/descTable split
// (generalized here to grow-by-doubling and rebuild atomically)
// and original_source/lib/DescriptorAllocatorGrowable.h for the
// pool-sizing-ratio naming.
package bindless

import (
	"errors"

	"github.com/vgpu/framegraph/deferred"
	"github.com/vgpu/framegraph/driver"
	"github.com/vgpu/framegraph/internal/bitm"
)

// Binding numbers within the single bindless descriptor set.
const (
	TextureBinding     = 0
	SamplerBinding     = 1
	StorageImageBinding = 2
)

// initialCapacity is the number of slots the table starts with
// for each array, before any growth.
const initialCapacity = 256

// poolSizeRatio names how much of a descriptor pool's capacity
// a given descriptor type should claim when the pool is sized,
// mirroring DescriptorAllocatorGrowable::PoolSizeRatio. This
// module always rebuilds a fresh pool+set on growth rather than
// recycling pools, but the ratio stays a named seam for that
// future optimization rather than a bare float.
type poolSizeRatio struct {
	typ   driver.DescType
	ratio float32
}

var defaultRatios = []poolSizeRatio{
	{driver.DTexture, 1},
	{driver.DSampler, 0.25},
	{driver.DImage, 0.25},
}

// ErrCapacityExceeded means the table would need to grow past
// the device's bindless indexing limit (spec §4.E: "exceeding
// is fatal" — a device-capacity overflow, spec §7 class 2).
var ErrCapacityExceeded = errors.New("bindless: capacity exceeds device limit")

func newBindlessErr(reason string) error {
	return errors.New("bindless: " + reason)
}

// Table is the bindless descriptor table (spec §4.E).
type Table struct {
	gpu    driver.GPU
	dq     *deferred.Queue
	maxTex int
	maxSpl int

	texCap int
	splCap int

	texOcc bitm.Bitm[uint64]
	splOcc bitm.Bitm[uint64]

	heap  driver.DescHeap
	table driver.DescTable

	dummyTex driver.ImageView
	dummySpl driver.Sampler

	dirty bool
}

// New creates a bindless table backed by gpu, deferring
// replaced descriptor sets to dq on growth. dummyTex/dummySpl
// back every unused slot so that a partially-bound array never
// exposes undefined data to a shader that over-indexes it.
func New(gpu driver.GPU, dq *deferred.Queue, limits driver.Limits, dummyTex driver.ImageView, dummySpl driver.Sampler) (*Table, error) {
	t := &Table{
		gpu:      gpu,
		dq:       dq,
		maxTex:   limits.MaxBindlessTextures,
		maxSpl:   limits.MaxBindlessSamplers,
		dummyTex: dummyTex,
		dummySpl: dummySpl,
	}
	if err := t.rebuild(initialCapacity, initialCapacity); err != nil {
		return nil, err
	}
	return t, nil
}

// descs returns the three-binding descriptor layout for the
// given per-array capacity.
func descs(texCap, splCap int) []driver.Descriptor {
	return []driver.Descriptor{
		{Type: driver.DTexture, Stages: driver.SVertex | driver.SFragment | driver.SCompute, Nr: TextureBinding, Len: texCap},
		{Type: driver.DSampler, Stages: driver.SVertex | driver.SFragment | driver.SCompute, Nr: SamplerBinding, Len: splCap},
		{Type: driver.DImage, Stages: driver.SVertex | driver.SFragment | driver.SCompute, Nr: StorageImageBinding, Len: texCap},
	}
}

// rebuild allocates a new heap/table at the given capacities,
// fills every slot with the dummy resources, and deferred-
// destroys whatever heap/table previously existed.
func (t *Table) rebuild(texCap, splCap int) error {
	heap, err := t.gpu.NewDescHeap(descs(texCap, splCap), true)
	if err != nil {
		return newBindlessErr("NewDescHeap: " + err.Error())
	}
	if err := heap.New(1); err != nil {
		return newBindlessErr("DescHeap.New: " + err.Error())
	}
	table, err := t.gpu.NewDescTable([]driver.DescHeap{heap})
	if err != nil {
		return newBindlessErr("NewDescTable: " + err.Error())
	}

	if t.dummyTex != nil {
		views := make([]driver.ImageView, texCap)
		for i := range views {
			views[i] = t.dummyTex
		}
		heap.SetImage(0, TextureBinding, 0, views)
		heap.SetImage(0, StorageImageBinding, 0, views)
	}
	if t.dummySpl != nil {
		splrs := make([]driver.Sampler, splCap)
		for i := range splrs {
			splrs[i] = t.dummySpl
		}
		heap.SetSampler(0, SamplerBinding, 0, splrs)
	}

	oldHeap, oldTable := t.heap, t.table
	if oldHeap != nil && t.dq != nil {
		t.dq.Defer(0, func() {
			oldTable.Destroy()
			oldHeap.Destroy()
		})
	}

	t.heap, t.table = heap, table
	t.texCap, t.splCap = texCap, splCap
	t.texOcc.Grow((texCap - t.texOcc.Len()) / 64)
	t.splOcc.Grow((splCap - t.splOcc.Len()) / 64)
	t.dirty = true
	return nil
}

// ensureTexCapacity grows the texture array (by doubling) if
// index would not fit, deferred-destroying the old set.
func (t *Table) ensureTexCapacity(index int) error {
	if index < t.texCap {
		return nil
	}
	newCap := t.texCap
	if newCap == 0 {
		newCap = initialCapacity
	}
	for index >= newCap {
		newCap *= 2
	}
	if newCap > t.maxTex {
		return ErrCapacityExceeded
	}
	return t.rebuild(newCap, t.splCap)
}

// ensureSamplerCapacity grows the sampler array (by doubling)
// if index would not fit, deferred-destroying the old set. The
// storage-image array follows the texture capacity instead.
func (t *Table) ensureSamplerCapacity(index int) error {
	if index < t.splCap {
		return nil
	}
	newCap := t.splCap
	if newCap == 0 {
		newCap = initialCapacity
	}
	for index >= newCap {
		newCap *= 2
	}
	if newCap > t.maxSpl {
		return ErrCapacityExceeded
	}
	return t.rebuild(t.texCap, newCap)
}

// BindTexture writes view into the sampled-image array at
// index, growing the table first if needed.
func (t *Table) BindTexture(index int, view driver.ImageView) error {
	if err := t.ensureTexCapacity(index); err != nil {
		return err
	}
	t.heap.SetImage(0, TextureBinding, index, []driver.ImageView{view})
	t.texOcc.Set(index)
	t.dirty = true
	return nil
}

// UnbindTexture clears index back to the dummy texture.
func (t *Table) UnbindTexture(index int) {
	if index >= t.texCap {
		return
	}
	t.heap.SetImage(0, TextureBinding, index, []driver.ImageView{t.dummyTex})
	t.texOcc.Unset(index)
	t.dirty = true
}

// BindSampler writes s into the sampler array at index,
// growing the table first if needed.
func (t *Table) BindSampler(index int, s driver.Sampler) error {
	if err := t.ensureSamplerCapacity(index); err != nil {
		return err
	}
	t.heap.SetSampler(0, SamplerBinding, index, []driver.Sampler{s})
	t.splOcc.Set(index)
	t.dirty = true
	return nil
}

// BindStorageImage writes view into the storage-image array at
// index, growing the table first if needed. Storage images are
// secondary views of textures, so the storage-image array shares
// capacity and index space with the sampled-image array (spec
// §4.E: "kStorageImageBinding = 2 (storage images, capacity
// maxTextures)"), not the sampler array.
func (t *Table) BindStorageImage(index int, view driver.ImageView) error {
	if err := t.ensureTexCapacity(index); err != nil {
		return err
	}
	t.heap.SetImage(0, StorageImageBinding, index, []driver.ImageView{view})
	t.dirty = true
	return nil
}

// UnbindStorageImage clears index back to the dummy texture.
func (t *Table) UnbindStorageImage(index int) {
	if index >= t.texCap {
		return
	}
	t.heap.SetImage(0, StorageImageBinding, index, []driver.ImageView{t.dummyTex})
	t.dirty = true
}

// UnbindSampler clears index back to the dummy sampler.
func (t *Table) UnbindSampler(index int) {
	if index >= t.splCap {
		return
	}
	t.heap.SetSampler(0, SamplerBinding, index, []driver.Sampler{t.dummySpl})
	t.splOcc.Unset(index)
	t.dirty = true
}

// DescTable returns the current descriptor table to bind for
// draws/dispatches. Callers must re-fetch this after any Bind*/
// Unbind* call that may have grown the table, since growth
// replaces the underlying driver.DescTable.
func (t *Table) DescTable() driver.DescTable { return t.table }

// Dirty reports whether the table has been written to (including
// the initial fill and any growth) since the last call to
// ClearDirty. pipeline.Resolver does not consult it; the
// resolver's cache goes stale only through Resolver.Invalidate.
func (t *Table) Dirty() bool { return t.dirty }

// ClearDirty resets the dirty flag.
func (t *Table) ClearDirty() { t.dirty = false }

// TextureCapacity and SamplerCapacity report the table's
// current per-array capacity, mainly for tests and diagnostics.
func (t *Table) TextureCapacity() int { return t.texCap }
func (t *Table) SamplerCapacity() int { return t.splCap }
