// Package resource implements the resource manager façade
// (spec §4.F): creation, destruction, resizing, upload and
// download of textures, buffers, samplers, shaders and
// pipelines, on top of handle, deferred, tracker and pipeline.
//
// Grounded on the teacher's engine/texture.go (view-construction
// per texture type: 2D/array/cube/MSAA) and engine/staging.go
// (the upload/commit pattern). Mipmap generation is CPU-bound
// image downsampling that happens before any of it reaches the
// render graph's single-threaded state, so it is the one
// domain-logic path in this module that is safe to dispatch
// across a worker pool (spec §5's single-threaded rule only
// binds command recording/graph execution).
package resource

import (
	"errors"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"

	"github.com/vgpu/framegraph/bindless"
	"github.com/vgpu/framegraph/commands"
	"github.com/vgpu/framegraph/deferred"
	"github.com/vgpu/framegraph/driver"
	"github.com/vgpu/framegraph/handle"
	"github.com/vgpu/framegraph/pipeline"
	"github.com/vgpu/framegraph/reflectsig"
	"github.com/vgpu/framegraph/tracker"
)

// Tags identifying each handle kind, used only to parametrize
// handle.Handle/handle.Pool — they carry no data of their own.
type (
	TextureTag  struct{}
	BufferTag   struct{}
	SamplerTag  struct{}
	ShaderTag   struct{}
	PipelineTag struct{}
)

type (
	TextureHandle  = handle.Handle[TextureTag]
	BufferHandle   = handle.Handle[BufferTag]
	SamplerHandle  = handle.Handle[SamplerTag]
	ShaderHandle   = handle.Handle[ShaderTag]
	PipelineHandle = handle.Handle[PipelineTag]
)

func newResourceErr(reason string) error {
	return errors.New("resource: " + reason)
}

// Errors for the user-data validation class (spec §7 class 4):
// returned to the caller, not logged, never fatal.
var (
	ErrZeroExtent        = errors.New("resource: texture extent must be non-zero")
	ErrCubeLayerCount    = errors.New("resource: cube textures require a layer count that is a multiple of 6")
	ErrStorageMSAA       = errors.New("resource: MSAA images cannot be used for storage")
	ErrSubresourceBounds = errors.New("resource: subresource range out of bounds")
	ErrEmptyUsage        = errors.New("resource: usage mask must not be empty")
)

// texture is the payload behind a TextureHandle.
type texture struct {
	img      driver.Image
	views    map[viewKey]driver.ImageView
	pf       driver.PixelFmt
	size     driver.Dim3D
	layers   int
	levels   int
	samples  int
	usg      driver.Usage
	owning   bool
	viewType driver.ViewType
}

// defaultViewType picks the whole-range view type CreateTexture
// and ResizeTexture use when binding a texture's base view into
// the bindless table (spec §4.E), mirroring the teacher's
// engine/texture.go view-selection switch (2D/array/cube/MSAA),
// simplified to the single whole-range view bindless needs rather
// than the teacher's per-layer view set.
func defaultViewType(layers, samples int, cube bool) driver.ViewType {
	switch {
	case cube && layers > 6:
		return driver.IViewCubeArray
	case cube:
		return driver.IViewCube
	case samples > 1 && layers > 1:
		return driver.IView2DMSArray
	case samples > 1:
		return driver.IView2DMS
	case layers > 1:
		return driver.IView2DArray
	default:
		return driver.IView2D
	}
}

type viewKey struct {
	typ           driver.ViewType
	layer, layers int
	level, levels int
}

// buffer is the payload behind a BufferHandle.
type buffer struct {
	buf  driver.Buffer
	size int64
	usg  driver.Usage
}

// Manager is the resource manager façade.
type Manager struct {
	gpu      driver.GPU
	ring     *commands.Ring
	dq       *deferred.Queue
	trk      *tracker.Tracker
	mips     *worker.DynamicWorkerPool
	resolver *pipeline.Resolver

	textures  *handle.Pool[TextureTag, texture]
	buffers   *handle.Pool[BufferTag, buffer]
	samplers  *handle.Pool[SamplerTag, driver.Sampler]
	shaders   *handle.Pool[ShaderTag, shaderEntry]
	pipelines *handle.Pool[PipelineTag, pipelineEntry]

	bindlessTbl *bindless.Table
}

type shaderEntry struct {
	code driver.ShaderCode
	sig  *reflectsig.Signature
}

// pipelineKind discriminates the two payload shapes a
// pipelineEntry can hold.
type pipelineKind int

const (
	pipelineGraphics pipelineKind = iota
	pipelineCompute
)

// pipelineEntry is the payload behind a PipelineHandle: the
// template state a pipeline was created with, minus the
// attachment-format/sample-count fields a render-graph pass fills
// in at bind time (spec §4.H).
type pipelineEntry struct {
	kind  pipelineKind
	graph driver.GraphState
	comp  driver.CompState

	// sig is the merged reflected signature of every shader
	// stage the pipeline was created from, consulted by
	// Writer.UpdateBindingByName to resolve a binding name to
	// a (set, binding number) pair (spec §6
	// open_descriptor_update/update_binding).
	sig *reflectsig.Signature
	// heaps are the descriptor heaps backing spec.Desc,
	// ordered by descriptor-set index, that
	// OpenDescriptorUpdate writes into.
	heaps []driver.DescHeap
}

// GraphicsPipelineSpec describes a graphics pipeline to create
// (spec §4.F's GraphicsPipelineSpec, §6 create_graphics_pipeline).
// ColorFmts/DepthFmt/HasDepth/Samples are deliberately absent:
// those are supplied by the active render-graph pass at bind time
// (spec §4.H: "inputs captured at build time include color-
// attachment formats... from active pass").
type GraphicsPipelineSpec struct {
	Vert, Frag           ShaderHandle
	VertEntry, FragEntry string
	Desc                 driver.DescTable
	// DescHeaps are the descriptor heaps backing Desc, ordered
	// by descriptor-set index. They are not consulted to build
	// the pipeline itself (Desc already is the built table);
	// they are retained so a later OpenDescriptorUpdate can
	// write individual bindings without the caller having to
	// keep its own mapping from pipeline to heaps.
	DescHeaps   []driver.DescHeap
	Input       []driver.VertexIn
	Topology    driver.Topology
	Raster      driver.RasterState
	DS          driver.DSState
	Blend       driver.BlendState
	SpecConsts  []driver.SpecConstant
	PushConstSz int
}

// ComputePipelineSpec describes a compute pipeline to create.
type ComputePipelineSpec struct {
	Shader      ShaderHandle
	Entry       string
	Desc        driver.DescTable
	DescHeaps   []driver.DescHeap
	SpecConsts  []driver.SpecConstant
	PushConstSz int
}

// New creates a resource manager on top of gpu, sharing ring for
// submission/token bookkeeping, dq for deferred destruction, trk
// for barrier state tracking, and resolver for lazily building
// the pipelines created through this manager. mipWorkers sizes the
// mipmap generation pool (spec: mirrors max(runtime.NumCPU()-1, 1)
// in the grounding source, left to the caller here to avoid this
// package importing runtime for policy it does not own).
func New(gpu driver.GPU, ring *commands.Ring, dq *deferred.Queue, trk *tracker.Tracker, resolver *pipeline.Resolver, mipWorkers int) *Manager {
	if mipWorkers < 1 {
		mipWorkers = 1
	}
	return &Manager{
		gpu:       gpu,
		ring:      ring,
		dq:        dq,
		trk:       trk,
		resolver:  resolver,
		mips:      worker.NewDynamicWorkerPool(mipWorkers, 256, time.Second),
		textures:  handle.New[TextureTag, texture](),
		buffers:   handle.New[BufferTag, buffer](),
		samplers:  handle.New[SamplerTag, driver.Sampler](),
		shaders:   handle.New[ShaderTag, shaderEntry](),
		pipelines: handle.New[PipelineTag, pipelineEntry](),
	}
}

// EnableBindless constructs the bindless descriptor table (spec
// §4.E) sized against limits, using a 1x1 dummy texture and a
// default sampler for the slots no live resource occupies yet.
// The dummy resources are allocated directly through gpu rather
// than through CreateTexture/CreateSampler, since those will soon
// try to bind into m.bindlessTbl themselves and it does not exist
// until this call returns.
func (m *Manager) EnableBindless(limits driver.Limits) error {
	dummyImg, err := m.gpu.NewImage(driver.RGBA8Unorm, driver.Dim3D{Width: 1, Height: 1, Depth: 1}, 1, 1, 1, driver.UShaderSample)
	if err != nil {
		return newResourceErr("EnableBindless: NewImage: " + err.Error())
	}
	dummyView, err := dummyImg.NewView(driver.IView2D, 0, 1, 0, 1)
	if err != nil {
		dummyImg.Destroy()
		return newResourceErr("EnableBindless: NewView: " + err.Error())
	}
	var sampling driver.Sampling
	dummySpl, err := m.gpu.NewSampler(&sampling)
	if err != nil {
		dummyView.Destroy()
		dummyImg.Destroy()
		return newResourceErr("EnableBindless: NewSampler: " + err.Error())
	}
	tbl, err := bindless.New(m.gpu, m.dq, limits, dummyView, dummySpl)
	if err != nil {
		dummySpl.Destroy()
		dummyView.Destroy()
		dummyImg.Destroy()
		return newResourceErr("EnableBindless: " + err.Error())
	}
	if m.textures.NumLive() == 0 && m.samplers.NumLive() == 0 {
		tbl.ClearDirty()
	}
	m.bindlessTbl = tbl
	return nil
}

// bindlessBind writes tex's current whole-range view into every
// bindless array its usage mask qualifies it for (spec §4.E:
// sampled images and storage images are distinct arrays sharing
// texture-capacity index space). Multisampled textures are left
// pointing at the dummy view in both arrays, since the source
// treats MSAA images as not shader-addressable through the
// bindless set.
func (m *Manager) bindlessBind(h TextureHandle, tex *texture) {
	if m.bindlessTbl == nil || tex.samples > 1 {
		return
	}
	if tex.usg&driver.UShaderSample != 0 {
		if v, err := m.View(h, tex.viewType, 0, tex.layers, 0, tex.levels); err == nil {
			m.bindlessTbl.BindTexture(h.Index(), v)
		}
	}
	if tex.usg&driver.UShaderWrite != 0 {
		if v, err := m.View(h, tex.viewType, 0, tex.layers, 0, tex.levels); err == nil {
			m.bindlessTbl.BindStorageImage(h.Index(), v)
		}
	}
}

// bindlessUnbind resets h's slots back to the dummy resources. It
// is safe to call even for a handle that was never actually bound
// (e.g. a texture created before EnableBindless), since Unbind*
// is idempotent.
func (m *Manager) bindlessUnbind(h TextureHandle) {
	if m.bindlessTbl == nil {
		return
	}
	m.bindlessTbl.UnbindTexture(h.Index())
	m.bindlessTbl.UnbindStorageImage(h.Index())
}

// BindlessDirty reports whether the bindless table has changed
// since the last RewriteBindless/ClearBindlessDirty, so a caller
// knows whether it must rebind the descriptor table before the
// next draw of any frame (spec §4.E). It returns false when
// bindless indexing was never enabled.
func (m *Manager) BindlessDirty() bool {
	return m.bindlessTbl != nil && m.bindlessTbl.Dirty()
}

// BindlessDescTable returns the current bindless descriptor
// table, or false if bindless indexing was never enabled.
func (m *Manager) BindlessDescTable() (driver.DescTable, bool) {
	if m.bindlessTbl == nil {
		return nil, false
	}
	return m.bindlessTbl.DescTable(), true
}

// RewriteBindless re-binds every live texture and sampler's
// current view into the bindless table and clears the dirty flag.
// A caller drives this once per frame, before the first draw,
// whenever BindlessDirty reports true (spec §4.E: "before the
// next draw of any frame, the table is fully rewritten for every
// live texture and sampler").
func (m *Manager) RewriteBindless() {
	if m.bindlessTbl == nil {
		return
	}
	m.textures.Each(func(h TextureHandle, t *texture) {
		m.bindlessBind(h, t)
	})
	m.samplers.Each(func(h SamplerHandle, s *driver.Sampler) {
		m.bindlessTbl.BindSampler(h.Index(), *s)
	})
	m.bindlessTbl.ClearDirty()
}

// validateTextureCreate applies spec §4.F's creation rules.
func validateTextureCreate(size driver.Dim3D, layers, samples int, usg driver.Usage, cube bool) error {
	if size.Width <= 0 || size.Height <= 0 || size.Depth <= 0 {
		return ErrZeroExtent
	}
	if cube && layers%6 != 0 {
		return ErrCubeLayerCount
	}
	if samples > 1 && usg&driver.UShaderWrite != 0 {
		return ErrStorageMSAA
	}
	if usg == 0 {
		return ErrEmptyUsage
	}
	return nil
}

// CreateTexture allocates a new texture, registers it with the
// tracker in the Undefined layout, and (once EnableBindless has
// been called) binds its whole-range view into the bindless
// table (spec §4.F: "Create... sets the bindless-dirty flag").
func (m *Manager) CreateTexture(pf driver.PixelFmt, size driver.Dim3D, layers, levels, samples int, usg driver.Usage, cube bool) (TextureHandle, error) {
	if err := validateTextureCreate(size, layers, samples, usg, cube); err != nil {
		return TextureHandle{}, err
	}
	img, err := m.gpu.NewImage(pf, size, layers, levels, samples, usg)
	if err != nil {
		return TextureHandle{}, newResourceErr("NewImage: " + err.Error())
	}
	h := m.textures.Create(texture{
		img: img, views: make(map[viewKey]driver.ImageView),
		pf: pf, size: size, layers: layers, levels: levels, samples: samples, usg: usg,
		owning: true, viewType: defaultViewType(layers, samples, cube),
	})
	m.trk.Track(h.Key(), layers, levels, tracker.State{Layout: driver.LUndefined})
	if t := m.textures.Get(h); t != nil {
		m.bindlessBind(h, t)
	}
	return h, nil
}

// ImportSwapchainImage wraps an externally-owned image (a
// swapchain backbuffer) as a TextureHandle without allocating or
// taking ownership of it: DestroyTexture on a handle created this
// way defers destruction of its views only, never the image
// itself, since the swapchain retains ownership and destroys the
// image on its own teardown.
func (m *Manager) ImportSwapchainImage(img driver.Image, pf driver.PixelFmt, size driver.Dim3D) TextureHandle {
	h := m.textures.Create(texture{
		img: img, views: make(map[viewKey]driver.ImageView),
		pf: pf, size: size, layers: 1, levels: 1, samples: 1,
		usg: driver.URenderTarget, owning: false,
	})
	m.trk.Track(h.Key(), 1, 1, tracker.State{Layout: driver.LUndefined})
	return h
}

// View returns a cached image view for the given texture
// handle, creating it on first request. Per spec §9's Open
// Question resolution, sparse/additional views are pure
// aliases of the base subresource for tracking purposes: only
// the base (whole-range) view participates in barrier state.
func (m *Manager) View(h TextureHandle, typ driver.ViewType, layer, layers, level, levels int) (driver.ImageView, error) {
	tex := m.textures.Get(h)
	if tex == nil {
		return nil, newResourceErr("View: stale texture handle")
	}
	if layer < 0 || layer+layers > tex.layers || level < 0 || level+levels > tex.levels {
		return nil, ErrSubresourceBounds
	}
	key := viewKey{typ, layer, layers, level, levels}
	if v, ok := tex.views[key]; ok {
		return v, nil
	}
	v, err := tex.img.NewView(typ, layer, layers, level, levels)
	if err != nil {
		return nil, newResourceErr("NewView: " + err.Error())
	}
	tex.views[key] = v
	return v, nil
}

// TextureInfo describes the static properties of a created
// texture, for callers (notably the render graph) that need to
// resolve default subresource ranges or pipeline attachment
// formats without reaching into the manager's internals.
type TextureInfo struct {
	Format  driver.PixelFmt
	Size    driver.Dim3D
	Layers  int
	Levels  int
	Samples int
	Usage   driver.Usage
}

// Info returns h's TextureInfo, or false if h is stale.
func (m *Manager) Info(h TextureHandle) (TextureInfo, bool) {
	tex := m.textures.Get(h)
	if tex == nil {
		return TextureInfo{}, false
	}
	return TextureInfo{
		Format: tex.pf, Size: tex.size, Layers: tex.layers,
		Levels: tex.levels, Samples: tex.samples, Usage: tex.usg,
	}, true
}

// Image returns h's underlying driver.Image, or false if h is
// stale. Exposed for callers (the render graph's copy/blit
// intermediates) that must issue driver.CmdBuffer.CopyImage/Blit
// calls, which address images and subresource indices directly
// rather than through a cached view.
func (m *Manager) Image(h TextureHandle) (driver.Image, bool) {
	tex := m.textures.Get(h)
	if tex == nil {
		return nil, false
	}
	return tex.img, true
}

// DestroyTexture defers destruction of h's image and every view
// created from it until token retires, then removes h from the
// pool and tracker immediately (the handle itself becomes
// invalid right away; only the underlying driver objects linger
// until the GPU is done with them).
func (m *Manager) DestroyTexture(h TextureHandle, token deferred.SubmitToken) {
	tex := m.textures.Get(h)
	if tex == nil {
		return
	}
	img := tex.img
	views := tex.views
	owning := tex.owning
	m.dq.Defer(token, func() {
		for _, v := range views {
			v.Destroy()
		}
		if owning {
			img.Destroy()
		}
	})
	m.bindlessUnbind(h)
	m.textures.Destroy(h)
	m.trk.Untrack(h.Key())
}

// ResizeTexture recreates h's image at newSize, keeping the same
// format/usage/sample/mip/layer counts, deferring destruction of
// the old image and its views until token retires (spec §4.F).
// The handle stays valid and its generation is unchanged; the
// tracked layout resets to Undefined, and (if bindless indexing is
// enabled) the texture's bindless slot is rewritten to the new
// image's view. Resizing to the texture's current dimensions is a
// no-op (spec §8, boundary behavior).
func (m *Manager) ResizeTexture(h TextureHandle, newSize driver.Dim3D, token deferred.SubmitToken) error {
	tex := m.textures.Get(h)
	if tex == nil {
		return newResourceErr("ResizeTexture: stale texture handle")
	}
	if tex.size == newSize {
		return nil
	}
	if newSize.Width <= 0 || newSize.Height <= 0 || newSize.Depth <= 0 {
		return ErrZeroExtent
	}
	img, err := m.gpu.NewImage(tex.pf, newSize, tex.layers, tex.levels, tex.samples, tex.usg)
	if err != nil {
		return newResourceErr("ResizeTexture: NewImage: " + err.Error())
	}
	oldImg, oldViews, owning := tex.img, tex.views, tex.owning
	m.dq.Defer(token, func() {
		for _, v := range oldViews {
			v.Destroy()
		}
		if owning {
			oldImg.Destroy()
		}
	})
	tex.img = img
	tex.size = newSize
	tex.views = make(map[viewKey]driver.ImageView)
	m.trk.Track(h.Key(), tex.layers, tex.levels, tracker.State{Layout: driver.LUndefined})
	m.bindlessBind(h, tex)
	return nil
}

// CreateBuffer allocates a new buffer.
func (m *Manager) CreateBuffer(size int64, visible bool, usg driver.Usage) (BufferHandle, error) {
	if size <= 0 {
		return BufferHandle{}, newResourceErr("CreateBuffer: size must be positive")
	}
	if usg == 0 {
		return BufferHandle{}, ErrEmptyUsage
	}
	buf, err := m.gpu.NewBuffer(size, visible, usg)
	if err != nil {
		return BufferHandle{}, newResourceErr("NewBuffer: " + err.Error())
	}
	h := m.buffers.Create(buffer{buf: buf, size: size, usg: usg})
	return h, nil
}

// GPUAddress returns the device address of h's buffer, or 0 if
// it was not created with driver.UDeviceAddress usage.
func (m *Manager) GPUAddress(h BufferHandle) int64 {
	b := m.buffers.Get(h)
	if b == nil {
		return 0
	}
	return b.buf.GPUAddress()
}

// Upload writes data into h's buffer at the given offset. The
// buffer must be host-visible.
func (m *Manager) Upload(h BufferHandle, offset int64, data []byte) error {
	b := m.buffers.Get(h)
	if b == nil {
		return newResourceErr("Upload: stale buffer handle")
	}
	dst := b.buf.Bytes()
	if dst == nil {
		return newResourceErr("Upload: buffer is not host-visible")
	}
	if offset < 0 || offset+int64(len(data)) > int64(len(dst)) {
		return newResourceErr("Upload: range out of bounds")
	}
	copy(dst[offset:], data)
	return nil
}

// Download reads size bytes from h's buffer at the given offset.
func (m *Manager) Download(h BufferHandle, offset, size int64) ([]byte, error) {
	b := m.buffers.Get(h)
	if b == nil {
		return nil, newResourceErr("Download: stale buffer handle")
	}
	src := b.buf.Bytes()
	if src == nil {
		return nil, newResourceErr("Download: buffer is not host-visible")
	}
	if offset < 0 || offset+size > int64(len(src)) {
		return nil, newResourceErr("Download: range out of bounds")
	}
	out := make([]byte, size)
	copy(out, src[offset:offset+size])
	return out, nil
}

// DestroyBuffer defers destruction of h's buffer until token
// retires.
func (m *Manager) DestroyBuffer(h BufferHandle, token deferred.SubmitToken) {
	b := m.buffers.Get(h)
	if b == nil {
		return
	}
	buf := b.buf
	m.dq.Defer(token, buf.Destroy)
	m.buffers.Destroy(h)
}

// CreateSampler allocates a new sampler and (once EnableBindless
// has been called) binds it into the bindless sampler array.
func (m *Manager) CreateSampler(spln *driver.Sampling) (SamplerHandle, error) {
	s, err := m.gpu.NewSampler(spln)
	if err != nil {
		return SamplerHandle{}, newResourceErr("NewSampler: " + err.Error())
	}
	h := m.samplers.Create(s)
	if m.bindlessTbl != nil {
		if err := m.bindlessTbl.BindSampler(h.Index(), s); err != nil {
			m.samplers.Destroy(h)
			s.Destroy()
			return SamplerHandle{}, newResourceErr("CreateSampler: BindSampler: " + err.Error())
		}
	}
	return h, nil
}

// DestroySampler defers destruction of h's sampler until token
// retires and, if bound, resets its bindless slot to the dummy
// sampler.
func (m *Manager) DestroySampler(h SamplerHandle, token deferred.SubmitToken) {
	s := m.samplers.Get(h)
	if s == nil {
		return
	}
	splr := *s
	m.dq.Defer(token, splr.Destroy)
	if m.bindlessTbl != nil {
		m.bindlessTbl.UnbindSampler(h.Index())
	}
	m.samplers.Destroy(h)
}

// CreateShader creates shader code from data and reflects its
// layout signature via bindlessSet (the descriptor-set index
// that, by convention, identifies bindless bindings).
func (m *Manager) CreateShader(data []byte, bindlessSet int) (ShaderHandle, error) {
	code, err := m.gpu.NewShaderCode(data)
	if err != nil {
		return ShaderHandle{}, newResourceErr("NewShaderCode: " + err.Error())
	}
	sig, err := reflectsig.FromSPIRV(data, bindlessSet)
	if err != nil {
		code.Destroy()
		return ShaderHandle{}, newResourceErr("reflect: " + err.Error())
	}
	return m.shaders.Create(shaderEntry{code: code, sig: sig}), nil
}

// Shader returns the driver.ShaderCode and reflected Signature
// for h.
func (m *Manager) Shader(h ShaderHandle) (driver.ShaderCode, *reflectsig.Signature, bool) {
	e := m.shaders.Get(h)
	if e == nil {
		return nil, nil, false
	}
	return e.code, e.sig, true
}

// DestroyShader defers destruction of h's shader code until
// token retires.
func (m *Manager) DestroyShader(h ShaderHandle, token deferred.SubmitToken) {
	e := m.shaders.Get(h)
	if e == nil {
		return
	}
	code := e.code
	m.dq.Defer(token, code.Destroy)
	m.shaders.Destroy(h)
}

// ImportShader wraps an already-built driver.ShaderCode/Signature
// pair as a ShaderHandle without going through CreateShader's
// reflection step, mirroring ImportSwapchainImage's role for
// externally-constructed driver objects. It exists for callers
// that obtain ShaderCode some other way than compiling SPIR-V
// through this package (e.g. a build step that reflects shaders
// once, offline, and ships the signature alongside the bytecode).
func (m *Manager) ImportShader(code driver.ShaderCode, sig *reflectsig.Signature) ShaderHandle {
	return m.shaders.Create(shaderEntry{code: code, sig: sig})
}

// CreateGraphicsPipeline validates spec's shader handles, stores
// its template GraphState (everything but the attachment formats/
// sample count a render-graph pass supplies at bind time), and
// returns a handle a graph callback can later pass to
// CmdRecorder.BindGraphicsPipeline (spec §4.F, §6
// create_graphics_pipeline). The underlying driver.Pipeline is not
// built here: PipelineResolver builds it lazily on first bind
// (spec §4.H).
func (m *Manager) CreateGraphicsPipeline(spec GraphicsPipelineSpec) (PipelineHandle, error) {
	vcode, vsig, ok := m.Shader(spec.Vert)
	if !ok {
		return PipelineHandle{}, newResourceErr("CreateGraphicsPipeline: stale vertex shader handle")
	}
	fcode, fsig, ok := m.Shader(spec.Frag)
	if !ok {
		return PipelineHandle{}, newResourceErr("CreateGraphicsPipeline: stale fragment shader handle")
	}
	state := driver.GraphState{
		VertFunc:    driver.ShaderFunc{Code: vcode, Name: spec.VertEntry},
		FragFunc:    driver.ShaderFunc{Code: fcode, Name: spec.FragEntry},
		Desc:        spec.Desc,
		Input:       spec.Input,
		Topology:    spec.Topology,
		Raster:      spec.Raster,
		DS:          spec.DS,
		Blend:       spec.Blend,
		SpecConsts:  spec.SpecConsts,
		PushConstSz: spec.PushConstSz,
	}
	return m.pipelines.Create(pipelineEntry{
		kind: pipelineGraphics, graph: state,
		sig: reflectsig.Merge(vsig, fsig), heaps: spec.DescHeaps,
	}), nil
}

// CreateComputePipeline is CreateGraphicsPipeline's compute
// counterpart.
func (m *Manager) CreateComputePipeline(spec ComputePipelineSpec) (PipelineHandle, error) {
	code, sig, ok := m.Shader(spec.Shader)
	if !ok {
		return PipelineHandle{}, newResourceErr("CreateComputePipeline: stale shader handle")
	}
	state := driver.CompState{
		Func:        driver.ShaderFunc{Code: code, Name: spec.Entry},
		Desc:        spec.Desc,
		SpecConsts:  spec.SpecConsts,
		PushConstSz: spec.PushConstSz,
	}
	return m.pipelines.Create(pipelineEntry{
		kind: pipelineCompute, comp: state,
		sig: reflectsig.Merge(sig), heaps: spec.DescHeaps,
	}), nil
}

// GraphicsPipelineState returns h's template GraphState, or false
// if h is stale or names a compute pipeline.
func (m *Manager) GraphicsPipelineState(h PipelineHandle) (driver.GraphState, bool) {
	e := m.pipelines.Get(h)
	if e == nil || e.kind != pipelineGraphics {
		return driver.GraphState{}, false
	}
	return e.graph, true
}

// ComputePipelineState returns h's template CompState, or false
// if h is stale or names a graphics pipeline.
func (m *Manager) ComputePipelineState(h PipelineHandle) (driver.CompState, bool) {
	e := m.pipelines.Get(h)
	if e == nil || e.kind != pipelineCompute {
		return driver.CompState{}, false
	}
	return e.comp, true
}

// DestroyPipeline defers eviction of every driver.Pipeline the
// resolver ever built for h until token retires, then removes h
// from the pool immediately.
func (m *Manager) DestroyPipeline(h PipelineHandle, token deferred.SubmitToken) {
	if m.pipelines.Get(h) == nil {
		return
	}
	key := h.Key()
	if m.resolver != nil {
		m.dq.Defer(token, func() { m.resolver.Evict(key) })
	}
	m.pipelines.Destroy(h)
}

// GenerateMips downsamples every level of tex above level 0
// from the level below it, in parallel across m.mips. blit is
// called once per level transition with the source/destination
// level indices; it is responsible for recording the actual
// CmdBuffer.Blit call (this package does not record commands
// itself, to keep worker-pool fan-out decoupled from the
// single-threaded command-recording rule in spec §5 — only the
// CPU-side preparation here runs off-thread).
func (m *Manager) GenerateMips(tex TextureHandle, blit func(srcLevel, dstLevel int) error) error {
	t := m.textures.Get(tex)
	if t == nil {
		return newResourceErr("GenerateMips: stale texture handle")
	}
	if t.levels <= 1 {
		return nil
	}
	var wg sync.WaitGroup
	errs := make([]error, t.levels-1)
	for lvl := 1; lvl < t.levels; lvl++ {
		wg.Add(1)
		lvl := lvl
		m.mips.SubmitTask(worker.Task{
			ID: lvl,
			Do: func() (any, error) {
				defer wg.Done()
				errs[lvl-1] = blit(lvl-1, lvl)
				return nil, nil
			},
		})
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
