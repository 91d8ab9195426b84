// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package resource

import (
	"testing"

	"github.com/vgpu/framegraph/commands"
	"github.com/vgpu/framegraph/deferred"
	"github.com/vgpu/framegraph/driver"
	"github.com/vgpu/framegraph/drivertest"
	"github.com/vgpu/framegraph/pipeline"
	"github.com/vgpu/framegraph/reflectsig"
	"github.com/vgpu/framegraph/tracker"
)

func newManager() (*Manager, *drivertest.GPU) {
	gpu := drivertest.New()
	ring := commands.NewRing(gpu)
	dq := deferred.NewQueue()
	trk := tracker.New()
	pr := pipeline.New(gpu, nil)
	return New(gpu, ring, dq, trk, pr, 2), gpu
}

func TestCreateTextureValidatesExtent(t *testing.T) {
	m, _ := newManager()
	_, err := m.CreateTexture(driver.RGBA8Unorm, driver.Dim3D{}, 1, 1, 1, driver.UShaderSample, false)
	if err != ErrZeroExtent {
		t.Fatalf("err = %v, want ErrZeroExtent", err)
	}
}

func TestCreateTextureValidatesCubeLayerCount(t *testing.T) {
	m, _ := newManager()
	size := driver.Dim3D{Width: 64, Height: 64, Depth: 1}
	_, err := m.CreateTexture(driver.RGBA8Unorm, size, 5, 1, 1, driver.UShaderSample, true)
	if err != ErrCubeLayerCount {
		t.Fatalf("err = %v, want ErrCubeLayerCount", err)
	}
}

func TestCreateTextureValidatesStorageMSAA(t *testing.T) {
	m, _ := newManager()
	size := driver.Dim3D{Width: 64, Height: 64, Depth: 1}
	_, err := m.CreateTexture(driver.RGBA8Unorm, size, 1, 1, 4, driver.UShaderWrite, false)
	if err != ErrStorageMSAA {
		t.Fatalf("err = %v, want ErrStorageMSAA", err)
	}
}

func TestCreateTextureValidatesEmptyUsage(t *testing.T) {
	m, _ := newManager()
	size := driver.Dim3D{Width: 64, Height: 64, Depth: 1}
	_, err := m.CreateTexture(driver.RGBA8Unorm, size, 1, 1, 1, 0, false)
	if err != ErrEmptyUsage {
		t.Fatalf("err = %v, want ErrEmptyUsage", err)
	}
}

func TestCreateTextureTracksUndefined(t *testing.T) {
	m, _ := newManager()
	size := driver.Dim3D{Width: 64, Height: 64, Depth: 1}
	h, err := m.CreateTexture(driver.RGBA8Unorm, size, 1, 4, 1, driver.UShaderSample, false)
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	st := m.trk.Read(h.Key(), tracker.Range{BaseLayer: 0, Layers: 1, BaseLevel: 0, Levels: 4})
	if st.Layout != driver.LUndefined {
		t.Fatalf("Layout = %v, want LUndefined", st.Layout)
	}
}

func TestViewCachesAndRejectsOutOfBounds(t *testing.T) {
	m, _ := newManager()
	size := driver.Dim3D{Width: 64, Height: 64, Depth: 1}
	h, err := m.CreateTexture(driver.RGBA8Unorm, size, 2, 4, 1, driver.UShaderSample, false)
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	v1, err := m.View(h, driver.IView2D, 0, 1, 0, 1)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	v2, err := m.View(h, driver.IView2D, 0, 1, 0, 1)
	if err != nil {
		t.Fatalf("View (again): %v", err)
	}
	if v1 != v2 {
		t.Fatal("View must return the cached view for an identical range")
	}
	if _, err := m.View(h, driver.IView2D, 0, 3, 0, 1); err != ErrSubresourceBounds {
		t.Fatalf("err = %v, want ErrSubresourceBounds", err)
	}
}

func TestDestroyTextureUntracksImmediatelyAndDefersDestroy(t *testing.T) {
	m, _ := newManager()
	size := driver.Dim3D{Width: 64, Height: 64, Depth: 1}
	h, err := m.CreateTexture(driver.RGBA8Unorm, size, 1, 1, 1, driver.UShaderSample, false)
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	m.DestroyTexture(h, 1)
	if m.textures.Get(h) != nil {
		t.Fatal("handle must be invalid immediately after DestroyTexture")
	}
	if m.dq.Len() != 1 {
		t.Fatalf("dq.Len() = %d, want 1", m.dq.Len())
	}
}

func TestBufferUploadDownloadRoundTrip(t *testing.T) {
	m, _ := newManager()
	h, err := m.CreateBuffer(16, true, driver.UShaderRead)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	data := []byte{1, 2, 3, 4}
	if err := m.Upload(h, 4, data); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	got, err := m.Download(h, 4, 4)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	for i, b := range data {
		if got[i] != b {
			t.Fatalf("Download[%d] = %d, want %d", i, got[i], b)
		}
	}
}

func TestUploadRejectsOutOfBounds(t *testing.T) {
	m, _ := newManager()
	h, _ := m.CreateBuffer(4, true, driver.UShaderRead)
	if err := m.Upload(h, 0, make([]byte, 8)); err == nil {
		t.Fatal("Upload must reject a range exceeding the buffer's capacity")
	}
}

func TestUploadRejectsNonVisibleBuffer(t *testing.T) {
	m, _ := newManager()
	h, _ := m.CreateBuffer(4, false, driver.UShaderRead)
	if err := m.Upload(h, 0, []byte{1}); err == nil {
		t.Fatal("Upload must reject a non-host-visible buffer")
	}
}

func TestGPUAddressOfDeviceAddressBuffer(t *testing.T) {
	m, _ := newManager()
	h, err := m.CreateBuffer(64, false, driver.UShaderRead|driver.UDeviceAddress)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	if m.GPUAddress(h) == 0 {
		t.Fatal("GPUAddress of a UDeviceAddress buffer must be non-zero")
	}
}

func TestDestroyBufferInvalidatesHandle(t *testing.T) {
	m, _ := newManager()
	h, _ := m.CreateBuffer(4, true, driver.UShaderRead)
	m.DestroyBuffer(h, 1)
	if m.buffers.Get(h) != nil {
		t.Fatal("handle must be invalid immediately after DestroyBuffer")
	}
}

func TestCreateDestroySampler(t *testing.T) {
	m, _ := newManager()
	h, err := m.CreateSampler(&driver.Sampling{})
	if err != nil {
		t.Fatalf("CreateSampler: %v", err)
	}
	m.DestroySampler(h, 1)
	if m.samplers.Get(h) != nil {
		t.Fatal("handle must be invalid immediately after DestroySampler")
	}
}

func TestCreateShaderRejectsUnparsableData(t *testing.T) {
	m, _ := newManager()
	if _, err := m.CreateShader([]byte("not spir-v"), 0); err == nil {
		t.Fatal("CreateShader must reject data that fails SPIR-V reflection")
	}
}

func TestGenerateMipsRunsEveryLevelTransition(t *testing.T) {
	m, _ := newManager()
	size := driver.Dim3D{Width: 64, Height: 64, Depth: 1}
	h, err := m.CreateTexture(driver.RGBA8Unorm, size, 1, 4, 1, driver.UShaderSample, false)
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	var seen [3]bool
	err = m.GenerateMips(h, func(src, dst int) error {
		seen[src] = true
		if dst != src+1 {
			t.Fatalf("dst = %d, want %d", dst, src+1)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("GenerateMips: %v", err)
	}
	for lvl, ok := range seen {
		if !ok {
			t.Fatalf("level transition from %d was never invoked", lvl)
		}
	}
}

func TestGenerateMipsSingleLevelIsNoop(t *testing.T) {
	m, _ := newManager()
	size := driver.Dim3D{Width: 64, Height: 64, Depth: 1}
	h, err := m.CreateTexture(driver.RGBA8Unorm, size, 1, 1, 1, driver.UShaderSample, false)
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	called := false
	if err := m.GenerateMips(h, func(int, int) error { called = true; return nil }); err != nil {
		t.Fatalf("GenerateMips: %v", err)
	}
	if called {
		t.Fatal("a single-level texture must not invoke blit")
	}
}

func TestResizeTextureSameDimensionsIsNoop(t *testing.T) {
	m, _ := newManager()
	size := driver.Dim3D{Width: 64, Height: 64, Depth: 1}
	h, err := m.CreateTexture(driver.RGBA8Unorm, size, 1, 1, 1, driver.UShaderSample, false)
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	img, _ := m.Image(h)
	if err := m.ResizeTexture(h, size, 1); err != nil {
		t.Fatalf("ResizeTexture: %v", err)
	}
	if m.dq.Len() != 0 {
		t.Fatalf("dq.Len() = %d, want 0: resizing to the current dimensions must be a no-op", m.dq.Len())
	}
	again, _ := m.Image(h)
	if again != img {
		t.Fatal("a same-dimensions resize must not replace the underlying image")
	}
}

func TestResizeTextureRecreatesAndDefersOldImage(t *testing.T) {
	m, _ := newManager()
	size := driver.Dim3D{Width: 64, Height: 64, Depth: 1}
	h, err := m.CreateTexture(driver.RGBA8Unorm, size, 1, 4, 1, driver.UShaderSample, false)
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	oldImg, _ := m.Image(h)
	gen := h.Gen()

	newSize := driver.Dim3D{Width: 128, Height: 128, Depth: 1}
	if err := m.ResizeTexture(h, newSize, 1); err != nil {
		t.Fatalf("ResizeTexture: %v", err)
	}
	if m.dq.Len() != 1 {
		t.Fatalf("dq.Len() = %d, want 1: the old image must be queued for deferred destruction", m.dq.Len())
	}
	newImg, _ := m.Image(h)
	if newImg == oldImg {
		t.Fatal("a resize to different dimensions must allocate a new image")
	}
	if h.Gen() != gen {
		t.Fatal("ResizeTexture must not change the handle's generation")
	}
	info, ok := m.Info(h)
	if !ok || info.Size != newSize {
		t.Fatalf("Info().Size = %+v, want %+v", info.Size, newSize)
	}
	st := m.trk.Read(h.Key(), tracker.Range{BaseLayer: 0, Layers: 1, BaseLevel: 0, Levels: 4})
	if st.Layout != driver.LUndefined {
		t.Fatalf("tracked Layout after resize = %v, want LUndefined", st.Layout)
	}
}

func TestResizeTextureRejectsZeroExtent(t *testing.T) {
	m, _ := newManager()
	size := driver.Dim3D{Width: 64, Height: 64, Depth: 1}
	h, err := m.CreateTexture(driver.RGBA8Unorm, size, 1, 1, 1, driver.UShaderSample, false)
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	if err := m.ResizeTexture(h, driver.Dim3D{}, 1); err != ErrZeroExtent {
		t.Fatalf("err = %v, want ErrZeroExtent", err)
	}
}

func TestResizeTextureRejectsStaleHandle(t *testing.T) {
	m, _ := newManager()
	size := driver.Dim3D{Width: 64, Height: 64, Depth: 1}
	h, _ := m.CreateTexture(driver.RGBA8Unorm, size, 1, 1, 1, driver.UShaderSample, false)
	m.DestroyTexture(h, 1)
	if err := m.ResizeTexture(h, driver.Dim3D{Width: 32, Height: 32, Depth: 1}, 1); err == nil {
		t.Fatal("ResizeTexture must reject a stale texture handle")
	}
}

func newGraphicsShaders(t *testing.T, m *Manager, gpu *drivertest.GPU) (ShaderHandle, ShaderHandle) {
	t.Helper()
	vcode, err := gpu.NewShaderCode(nil)
	if err != nil {
		t.Fatalf("NewShaderCode(vert): %v", err)
	}
	fcode, err := gpu.NewShaderCode(nil)
	if err != nil {
		t.Fatalf("NewShaderCode(frag): %v", err)
	}
	return m.ImportShader(vcode, nil), m.ImportShader(fcode, nil)
}

func TestCreateDestroyGraphicsPipeline(t *testing.T) {
	m, gpu := newManager()
	vert, frag := newGraphicsShaders(t, m, gpu)
	pl, err := m.CreateGraphicsPipeline(GraphicsPipelineSpec{
		Vert: vert, Frag: frag, VertEntry: "main", FragEntry: "main",
	})
	if err != nil {
		t.Fatalf("CreateGraphicsPipeline: %v", err)
	}
	state, ok := m.GraphicsPipelineState(pl)
	if !ok {
		t.Fatal("GraphicsPipelineState must find the freshly created pipeline")
	}
	if state.VertFunc.Name != "main" || state.FragFunc.Name != "main" {
		t.Fatalf("state = %+v, want entry points \"main\"/\"main\"", state)
	}
	if _, ok := m.ComputePipelineState(pl); ok {
		t.Fatal("a graphics pipeline handle must not resolve as a compute pipeline")
	}
	m.DestroyPipeline(pl, 1)
	if _, ok := m.GraphicsPipelineState(pl); ok {
		t.Fatal("handle must be invalid immediately after DestroyPipeline")
	}
	if m.dq.Len() != 1 {
		t.Fatalf("dq.Len() = %d, want 1: destroying a pipeline must defer resolver eviction", m.dq.Len())
	}
}

func TestCreateGraphicsPipelineRejectsStaleShader(t *testing.T) {
	m, gpu := newManager()
	_, frag := newGraphicsShaders(t, m, gpu)
	var staleVert ShaderHandle
	if _, err := m.CreateGraphicsPipeline(GraphicsPipelineSpec{Vert: staleVert, Frag: frag}); err == nil {
		t.Fatal("CreateGraphicsPipeline must reject a stale vertex shader handle")
	}
}

func TestCreateDestroyComputePipeline(t *testing.T) {
	m, gpu := newManager()
	code, err := gpu.NewShaderCode(nil)
	if err != nil {
		t.Fatalf("NewShaderCode: %v", err)
	}
	sh := m.ImportShader(code, nil)
	pl, err := m.CreateComputePipeline(ComputePipelineSpec{Shader: sh, Entry: "main"})
	if err != nil {
		t.Fatalf("CreateComputePipeline: %v", err)
	}
	state, ok := m.ComputePipelineState(pl)
	if !ok || state.Func.Name != "main" {
		t.Fatalf("ComputePipelineState = %+v, %v, want Func.Name \"main\", true", state, ok)
	}
	if _, ok := m.GraphicsPipelineState(pl); ok {
		t.Fatal("a compute pipeline handle must not resolve as a graphics pipeline")
	}
}

func smallBindlessLimits() driver.Limits {
	var l driver.Limits
	l.MaxBindlessTextures = 8
	l.MaxBindlessSamplers = 8
	return l
}

func TestEnableBindlessBindsTexturesAndSamplers(t *testing.T) {
	m, _ := newManager()
	if err := m.EnableBindless(smallBindlessLimits()); err != nil {
		t.Fatalf("EnableBindless: %v", err)
	}
	if m.BindlessDirty() {
		t.Fatal("a freshly enabled table with only dummy slots must not be dirty")
	}

	size := driver.Dim3D{Width: 64, Height: 64, Depth: 1}
	if _, err := m.CreateTexture(driver.RGBA8Unorm, size, 1, 1, 1, driver.UShaderSample, false); err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	if !m.BindlessDirty() {
		t.Fatal("creating a texture while bindless is enabled must set the dirty flag")
	}
	m.RewriteBindless()
	if m.BindlessDirty() {
		t.Fatal("RewriteBindless must clear the dirty flag")
	}

	if _, err := m.CreateSampler(&driver.Sampling{}); err != nil {
		t.Fatalf("CreateSampler: %v", err)
	}
	if !m.BindlessDirty() {
		t.Fatal("creating a sampler while bindless is enabled must set the dirty flag")
	}

	if _, ok := m.BindlessDescTable(); !ok {
		t.Fatal("BindlessDescTable must succeed once EnableBindless has run")
	}
}

func TestBindlessDescTableAbsentUntilEnabled(t *testing.T) {
	m, _ := newManager()
	if _, ok := m.BindlessDescTable(); ok {
		t.Fatal("BindlessDescTable must report false before EnableBindless is called")
	}
	if m.BindlessDirty() {
		t.Fatal("BindlessDirty must report false before EnableBindless is called")
	}
}

func newComputePipelineWithHeap(t *testing.T, m *Manager, gpu *drivertest.GPU) (PipelineHandle, *drivertest.DescHeap) {
	t.Helper()
	code, err := gpu.NewShaderCode(nil)
	if err != nil {
		t.Fatalf("NewShaderCode: %v", err)
	}
	sig := &reflectsig.Signature{}
	sh := m.ImportShader(code, sig)

	dh, err := gpu.NewDescHeap([]driver.Descriptor{{Type: driver.DBuffer, Stages: driver.SCompute, Nr: 0, Len: 1}}, false)
	if err != nil {
		t.Fatalf("NewDescHeap: %v", err)
	}
	heap := dh.(*drivertest.DescHeap)

	pl, err := m.CreateComputePipeline(ComputePipelineSpec{
		Shader: sh, Entry: "main", DescHeaps: []driver.DescHeap{dh},
	})
	if err != nil {
		t.Fatalf("CreateComputePipeline: %v", err)
	}
	return pl, heap
}

func TestOpenDescriptorUpdateRejectsPipelineWithoutHeaps(t *testing.T) {
	m, gpu := newManager()
	code, err := gpu.NewShaderCode(nil)
	if err != nil {
		t.Fatalf("NewShaderCode: %v", err)
	}
	sh := m.ImportShader(code, nil)
	pl, err := m.CreateComputePipeline(ComputePipelineSpec{Shader: sh, Entry: "main"})
	if err != nil {
		t.Fatalf("CreateComputePipeline: %v", err)
	}
	if _, err := m.OpenDescriptorUpdate(pl); err == nil {
		t.Fatal("OpenDescriptorUpdate must reject a pipeline created without DescHeaps")
	}
}

func TestOpenDescriptorUpdateRejectsStalePipeline(t *testing.T) {
	m, _ := newManager()
	var stale PipelineHandle
	if _, err := m.OpenDescriptorUpdate(stale); err == nil {
		t.Fatal("OpenDescriptorUpdate must reject a stale pipeline handle")
	}
}

func TestUpdateBindingWritesDescHeap(t *testing.T) {
	m, gpu := newManager()
	pl, heap := newComputePipelineWithHeap(t, m, gpu)

	buf, err := m.CreateBuffer(256, true, driver.UShaderConst)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}

	w, err := m.OpenDescriptorUpdate(pl)
	if err != nil {
		t.Fatalf("OpenDescriptorUpdate: %v", err)
	}
	w.UpdateBinding(buf, 0, 0)
	if err := m.SubmitDescriptorUpdate(w); err != nil {
		t.Fatalf("SubmitDescriptorUpdate: %v", err)
	}

	if len(heap.BufferWrites) != 1 {
		t.Fatalf("BufferWrites = %v, want exactly one recorded write", heap.BufferWrites)
	}
	if got := heap.BufferWrites[0]; got.Cpy != 0 || got.Nr != 0 || got.Size[0] != 256 {
		t.Fatalf("BufferWrites[0] = %+v, want cpy=0 nr=0 size=256", got)
	}
}

func TestUpdateBindingRejectsOutOfRangeSet(t *testing.T) {
	m, gpu := newManager()
	pl, _ := newComputePipelineWithHeap(t, m, gpu)
	buf, err := m.CreateBuffer(64, true, driver.UShaderConst)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	w, err := m.OpenDescriptorUpdate(pl)
	if err != nil {
		t.Fatalf("OpenDescriptorUpdate: %v", err)
	}
	w.UpdateBinding(buf, 7, 0)
	if err := m.SubmitDescriptorUpdate(w); err == nil {
		t.Fatal("SubmitDescriptorUpdate must reject a set index out of range")
	}
}

func TestUpdateBindingByNameResolvesReflectedSignature(t *testing.T) {
	m, gpu := newManager()
	code, err := gpu.NewShaderCode(nil)
	if err != nil {
		t.Fatalf("NewShaderCode: %v", err)
	}
	sh := m.ImportShader(code, reflectsig.Merge())

	dh, err := gpu.NewDescHeap([]driver.Descriptor{{Type: driver.DBuffer, Stages: driver.SCompute, Nr: 0, Len: 1}}, false)
	if err != nil {
		t.Fatalf("NewDescHeap: %v", err)
	}
	pl, err := m.CreateComputePipeline(ComputePipelineSpec{
		Shader: sh, Entry: "main", DescHeaps: []driver.DescHeap{dh},
	})
	if err != nil {
		t.Fatalf("CreateComputePipeline: %v", err)
	}

	buf, err := m.CreateBuffer(64, true, driver.UShaderConst)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	w, err := m.OpenDescriptorUpdate(pl)
	if err != nil {
		t.Fatalf("OpenDescriptorUpdate: %v", err)
	}
	w.UpdateBindingByName(buf, "no_such_binding")
	if err := m.SubmitDescriptorUpdate(w); err == nil {
		t.Fatal("SubmitDescriptorUpdate must surface an unknown binding name error from UpdateBindingByName")
	}
}

func TestSubmitDescriptorUpdateRejectsStaleBuffer(t *testing.T) {
	m, gpu := newManager()
	pl, _ := newComputePipelineWithHeap(t, m, gpu)
	buf, err := m.CreateBuffer(64, true, driver.UShaderConst)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	m.DestroyBuffer(buf, 1)

	w, err := m.OpenDescriptorUpdate(pl)
	if err != nil {
		t.Fatalf("OpenDescriptorUpdate: %v", err)
	}
	w.UpdateBinding(buf, 0, 0)
	if err := m.SubmitDescriptorUpdate(w); err == nil {
		t.Fatal("SubmitDescriptorUpdate must reject a stale buffer handle")
	}
}

func TestOwnedTextureReleaseDestroys(t *testing.T) {
	m, _ := newManager()
	size := driver.Dim3D{Width: 32, Height: 32, Depth: 1}
	h, err := m.CreateTexture(driver.RGBA8Unorm, size, 1, 1, 1, driver.UShaderSample, false)
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	owned := m.OwnTexture(h)
	if owned.Handle() != h {
		t.Fatalf("Handle() = %v, want %v", owned.Handle(), h)
	}
	owned.Release(1)
	if _, ok := m.Info(h); ok {
		t.Fatal("Release must destroy the wrapped texture handle")
	}
}

func TestOwnedReleaseIsIdempotent(t *testing.T) {
	m, _ := newManager()
	buf, err := m.CreateBuffer(64, true, driver.UShaderConst)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	owned := m.OwnBuffer(buf)
	owned.Release(1)
	owned.Release(1) // must not panic or double-defer
	if m.dq.Len() != 1 {
		t.Fatalf("dq.Len() = %d, want 1: a second Release must be a no-op", m.dq.Len())
	}
}

func TestGenerateMipsPropagatesFirstError(t *testing.T) {
	m, _ := newManager()
	size := driver.Dim3D{Width: 64, Height: 64, Depth: 1}
	h, err := m.CreateTexture(driver.RGBA8Unorm, size, 1, 3, 1, driver.UShaderSample, false)
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	wantErr := newResourceErr("boom")
	err = m.GenerateMips(h, func(src, dst int) error {
		if src == 0 {
			return wantErr
		}
		return nil
	})
	if err == nil {
		t.Fatal("GenerateMips must propagate a blit error")
	}
}
