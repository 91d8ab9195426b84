// Package drivertest provides an in-memory, software
// implementation of every driver package interface, for use by
// the rest of this module's tests. The teacher's own driver
// tests are integration tests against a real Vulkan device
// (driver/vk/*_test.go upstream) and are not reproducible
// without real hardware and a cgo loader; this fake lets every
// higher-level package (handle pool excepted, which needs no
// GPU at all) be tested the way net/http/httptest lets HTTP
// handlers be tested without a real socket.
package drivertest

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/vgpu/framegraph/driver"
)

// GPU is a software driver.GPU. It performs no real rendering:
// every resource is a plain Go value, and command buffers
// merely record the calls made on them (retrievable via
// CmdBuffer.Log, useful for asserting what a higher-level
// package recorded).
//
// GPU also implements driver.Driver itself, mirroring driver/vk's
// Driver (which implements both driver.Driver and driver.GPU on
// the same receiver): Open returns the already-constructed GPU
// rather than lazily creating one, since New already did that
// work, and repeated Open calls must return the same instance
// per the driver.Driver contract.
type GPU struct {
	name     string
	nextAddr int64
	limits   driver.Limits
}

// New returns a fresh software GPU with reasonable limits, named
// "drivertest" for driver.Drivers()/loadDriver selection.
func New() *GPU {
	return NewNamed("drivertest")
}

// NewNamed is New with an explicit driver name, for tests that
// register more than one software GPU and need loadDriver to
// distinguish between them.
func NewNamed(name string) *GPU {
	return &GPU{
		name: name,
		limits: driver.Limits{
			MaxImage2D:          16384,
			MaxImageCube:        16384,
			MaxLayers:           2048,
			MaxDescHeaps:        8,
			MaxBindlessTextures: 1 << 20,
			MaxBindlessSamplers: 4096,
			MaxColorTargets:     8,
			MaxViewports:        16,
			MaxPushConstSize:    256,
		},
	}
}

// Driver returns g itself, the driver.Driver that "opened" it.
func (g *GPU) Driver() driver.Driver { return g }

// Name implements driver.Driver.
func (g *GPU) Name() string { return g.name }

// Open implements driver.Driver. g is already initialized, so
// Open just returns it; repeated calls are idempotent.
func (g *GPU) Open() (driver.GPU, error) { return g, nil }

// Close implements driver.Driver. The software GPU holds no
// external resources, so there is nothing to release.
func (g *GPU) Close() {}

func (g *GPU) NewCmdBuffer() (driver.CmdBuffer, error) {
	return &CmdBuffer{}, nil
}

func (g *GPU) Submit(cb driver.CmdBuffer, s driver.SubmitInfo) error {
	c := cb.(*CmdBuffer)
	if c.encoding {
		return errors.New("drivertest: submit of a command buffer still encoding")
	}
	if s.SignalFence != nil {
		s.SignalFence.(*Fence).signal()
	}
	if s.SignalSem != nil {
		s.SignalSem.(*Semaphore).signal()
	}
	for _, ts := range s.SignalTimeline {
		ts.Sem.(*TimelineSemaphore).Signal(ts.Value)
	}
	return nil
}

func (g *GPU) NewFence(signaled bool) (driver.Fence, error) {
	f := &Fence{}
	if signaled {
		f.signal()
	}
	return f, nil
}

func (g *GPU) NewSemaphore() (driver.Semaphore, error) { return &Semaphore{}, nil }

func (g *GPU) NewTimelineSemaphore(initial uint64) (driver.TimelineSemaphore, error) {
	t := &TimelineSemaphore{}
	t.value.Store(initial)
	return t, nil
}

func (g *GPU) NewShaderCode(data []byte) (driver.ShaderCode, error) {
	cp := make([]byte, len(data))
	copy(cp, data)
	return &ShaderCode{data: cp}, nil
}

func (g *GPU) NewDescHeap(ds []driver.Descriptor, bindless bool) (driver.DescHeap, error) {
	descs := make([]driver.Descriptor, len(ds))
	copy(descs, ds)
	return &DescHeap{descs: descs, bindless: bindless}, nil
}

func (g *GPU) NewDescTable(dh []driver.DescHeap) (driver.DescTable, error) {
	heaps := make([]driver.DescHeap, len(dh))
	copy(heaps, dh)
	return &DescTable{heaps: heaps}, nil
}

func (g *GPU) NewPipeline(state any) (driver.Pipeline, error) {
	switch s := state.(type) {
	case *driver.GraphState:
		cp := *s
		return &Pipeline{graph: &cp}, nil
	case *driver.CompState:
		cp := *s
		return &Pipeline{comp: &cp}, nil
	default:
		return nil, errors.New("drivertest: NewPipeline: unknown state type")
	}
}

func (g *GPU) NewBuffer(size int64, visible bool, usg driver.Usage) (driver.Buffer, error) {
	b := &Buffer{size: size, visible: visible, usg: usg}
	if visible {
		b.data = make([]byte, size)
	}
	if usg&driver.UDeviceAddress != 0 {
		g.nextAddr += 256
		b.addr = g.nextAddr
	}
	return b, nil
}

func (g *GPU) NewImage(pf driver.PixelFmt, size driver.Dim3D, layers, levels, samples int, usg driver.Usage) (driver.Image, error) {
	if levels < 1 {
		levels = 1
	}
	if layers < 1 {
		layers = 1
	}
	if samples < 1 {
		samples = 1
	}
	return &Image{pf: pf, size: size, layers: layers, levels: levels, samples: samples, usg: usg}, nil
}

func (g *GPU) NewSampler(spln *driver.Sampling) (driver.Sampler, error) {
	cp := *spln
	return &Sampler{spln: &cp}, nil
}

func (g *GPU) Limits() driver.Limits { return g.limits }

// NewSwapchain implements driver.Presenter. surf is ignored; the
// software swapchain always succeeds and never reports
// out-of-date/suboptimal on its own (tests that exercise the
// dirty path call Swapchain.MarkOutOfDate directly).
func (g *GPU) NewSwapchain(surf driver.Surface, imageCount int) (driver.Swapchain, error) {
	if imageCount < 1 {
		imageCount = 1
	}
	sc := &Swapchain{gpu: g, imageCount: imageCount, format: driver.BGRA8Unorm}
	sc.build()
	return sc, nil
}

// Fence is a software driver.Fence.
type Fence struct {
	signaled atomic.Bool
}

func (f *Fence) Destroy() {}

func (f *Fence) signal() { f.signaled.Store(true) }

func (f *Fence) Wait(timeout time.Duration) (bool, error) {
	return f.signaled.Load(), nil
}

func (f *Fence) Signaled() (bool, error) { return f.signaled.Load(), nil }

func (f *Fence) Reset() error {
	f.signaled.Store(false)
	return nil
}

// Semaphore is a software driver.Semaphore.
type Semaphore struct{ signaled atomic.Bool }

func (s *Semaphore) Destroy()  {}
func (s *Semaphore) signal()   { s.signaled.Store(true) }

// TimelineSemaphore is a software driver.TimelineSemaphore.
type TimelineSemaphore struct{ value atomic.Uint64 }

func (t *TimelineSemaphore) Destroy() {}

func (t *TimelineSemaphore) Value() (uint64, error) { return t.value.Load(), nil }

func (t *TimelineSemaphore) Wait(value uint64, timeout time.Duration) (bool, error) {
	return t.value.Load() >= value, nil
}

func (t *TimelineSemaphore) Signal(value uint64) error {
	t.value.Store(value)
	return nil
}

// ShaderCode is a software driver.ShaderCode; it just retains
// the bytes it was created from.
type ShaderCode struct{ data []byte }

func (s *ShaderCode) Destroy() {}

// DescHeap is a software driver.DescHeap. It records every
// SetBuffer/SetImage/SetSampler call it receives so tests can
// assert on what a descriptor update actually wrote, the same way
// CmdBuffer records its Log.
type DescHeap struct {
	descs    []driver.Descriptor
	bindless bool
	copies   int

	BufferWrites []BufferWrite
}

// BufferWrite is one recorded DescHeap.SetBuffer call.
type BufferWrite struct {
	Cpy, Nr, Start int
	Buf            []driver.Buffer
	Off, Size      []int64
}

func (d *DescHeap) Destroy() {}

func (d *DescHeap) New(n int) error {
	d.copies = n
	return nil
}

func (d *DescHeap) SetBuffer(cpy, nr, start int, buf []driver.Buffer, off, size []int64) {
	d.BufferWrites = append(d.BufferWrites, BufferWrite{cpy, nr, start, buf, off, size})
}
func (d *DescHeap) SetImage(cpy, nr, start int, iv []driver.ImageView)   {}
func (d *DescHeap) SetSampler(cpy, nr, start int, splr []driver.Sampler) {}
func (d *DescHeap) Count() int                                          { return d.copies }

// DescTable is a software driver.DescTable.
type DescTable struct{ heaps []driver.DescHeap }

func (d *DescTable) Destroy() {}

// Pipeline is a software driver.Pipeline.
type Pipeline struct {
	graph *driver.GraphState
	comp  *driver.CompState
}

func (p *Pipeline) Destroy() {}

// Buffer is a software driver.Buffer.
type Buffer struct {
	size    int64
	visible bool
	usg     driver.Usage
	data    []byte
	addr    int64
}

func (b *Buffer) Destroy()       {}
func (b *Buffer) Visible() bool  { return b.visible }
func (b *Buffer) Bytes() []byte  { return b.data }
func (b *Buffer) Cap() int64     { return b.size }
func (b *Buffer) GPUAddress() int64 {
	return b.addr
}

// Image is a software driver.Image.
type Image struct {
	pf      driver.PixelFmt
	size    driver.Dim3D
	layers  int
	levels  int
	samples int
	usg     driver.Usage
}

func (i *Image) Destroy() {}

func (i *Image) NewView(typ driver.ViewType, layer, layers, level, levels int) (driver.ImageView, error) {
	if layer < 0 || layer+layers > i.layers {
		return nil, errors.New("drivertest: NewView: layer range out of bounds")
	}
	if level < 0 || level+levels > i.levels {
		return nil, errors.New("drivertest: NewView: level range out of bounds")
	}
	return &ImageView{img: i, typ: typ, layer: layer, layers: layers, level: level, levels: levels}, nil
}

func (i *Image) Format() driver.PixelFmt { return i.pf }
func (i *Image) Samples() int            { return i.samples }
func (i *Image) Size() driver.Dim3D      { return i.size }
func (i *Image) Layers() int             { return i.layers }
func (i *Image) Levels() int             { return i.levels }

// ImageView is a software driver.ImageView.
type ImageView struct {
	img                    *Image
	typ                    driver.ViewType
	layer, layers          int
	level, levels          int
}

func (v *ImageView) Destroy() {}

// Sampler is a software driver.Sampler.
type Sampler struct{ spln *driver.Sampling }

func (s *Sampler) Destroy() {}

// CmdBuffer is a software driver.CmdBuffer. It records calls
// into Log rather than issuing any real GPU work, so tests can
// assert on what a higher-level package recorded.
type CmdBuffer struct {
	Log      []string
	encoding bool
}

func (c *CmdBuffer) Destroy() {}

func (c *CmdBuffer) Begin() error {
	c.encoding = true
	c.Log = append(c.Log, "Begin")
	return nil
}

func (c *CmdBuffer) BeginRendering(color []driver.RenderingAttachment, depth *driver.RenderingAttachment, area driver.Rect2D) {
	c.Log = append(c.Log, "BeginRendering")
}
func (c *CmdBuffer) EndRendering()  { c.Log = append(c.Log, "EndRendering") }
func (c *CmdBuffer) BeginWork(wait bool) { c.Log = append(c.Log, "BeginWork") }
func (c *CmdBuffer) EndWork()            { c.Log = append(c.Log, "EndWork") }
func (c *CmdBuffer) BeginBlit(wait bool) { c.Log = append(c.Log, "BeginBlit") }
func (c *CmdBuffer) EndBlit()            { c.Log = append(c.Log, "EndBlit") }

func (c *CmdBuffer) SetPipeline(pl driver.Pipeline)                     { c.Log = append(c.Log, "SetPipeline") }
func (c *CmdBuffer) SetViewport(vp []driver.Viewport)                   { c.Log = append(c.Log, "SetViewport") }
func (c *CmdBuffer) SetScissor(sciss []driver.Scissor)                 { c.Log = append(c.Log, "SetScissor") }
func (c *CmdBuffer) SetVertexBuf(start int, buf []driver.Buffer, off []int64) {
	c.Log = append(c.Log, "SetVertexBuf")
}
func (c *CmdBuffer) SetIndexBuf(format driver.IndexFmt, buf driver.Buffer, off int64) {
	c.Log = append(c.Log, "SetIndexBuf")
}
func (c *CmdBuffer) SetDescTableGraph(table driver.DescTable, start int, heapCopy []int) {
	c.Log = append(c.Log, "SetDescTableGraph")
}
func (c *CmdBuffer) SetDescTableComp(table driver.DescTable, start int, heapCopy []int) {
	c.Log = append(c.Log, "SetDescTableComp")
}
func (c *CmdBuffer) SetPushConstant(stages driver.Stage, offset int, data []byte) {
	c.Log = append(c.Log, "SetPushConstant")
}

func (c *CmdBuffer) Draw(vertCount, instCount, baseVert, baseInst int) {
	c.Log = append(c.Log, "Draw")
}
func (c *CmdBuffer) DrawIndexed(idxCount, instCount, baseIdx, vertOff, baseInst int) {
	c.Log = append(c.Log, "DrawIndexed")
}
func (c *CmdBuffer) Dispatch(x, y, z int) { c.Log = append(c.Log, "Dispatch") }

func (c *CmdBuffer) CopyBuffer(param *driver.BufferCopy)     { c.Log = append(c.Log, "CopyBuffer") }
func (c *CmdBuffer) CopyImage(param *driver.ImageCopy)       { c.Log = append(c.Log, "CopyImage") }
func (c *CmdBuffer) CopyBufToImg(param *driver.BufImgCopy)   { c.Log = append(c.Log, "CopyBufToImg") }
func (c *CmdBuffer) CopyImgToBuf(param *driver.BufImgCopy)   { c.Log = append(c.Log, "CopyImgToBuf") }
func (c *CmdBuffer) Fill(buf driver.Buffer, off int64, value byte, size int64) {
	c.Log = append(c.Log, "Fill")
}
func (c *CmdBuffer) Blit(param *driver.ImageBlit) { c.Log = append(c.Log, "Blit") }

func (c *CmdBuffer) Barrier(b []driver.Barrier)         { c.Log = append(c.Log, "Barrier") }
func (c *CmdBuffer) Transition(t []driver.Transition)   { c.Log = append(c.Log, "Transition") }

func (c *CmdBuffer) End() error {
	c.encoding = false
	c.Log = append(c.Log, "End")
	return nil
}

func (c *CmdBuffer) Reset() error {
	c.Log = nil
	c.encoding = false
	return nil
}

// Swapchain is a software driver.Swapchain. It never blocks and
// never spontaneously reports out-of-date/suboptimal; call
// MarkOutOfDate to simulate that condition for a test.
type Swapchain struct {
	gpu        *GPU
	imageCount int
	format     driver.PixelFmt
	images     []Image
	views      []ImageView
	next       int
	outOfDate  bool
}

func (s *Swapchain) build() {
	s.images = make([]Image, s.imageCount)
	s.views = make([]ImageView, s.imageCount)
	size := driver.Dim3D{Width: 640, Height: 480, Depth: 1}
	for i := range s.images {
		s.images[i] = Image{pf: s.format, size: size, layers: 1, levels: 1, samples: 1, usg: driver.URenderTarget}
		s.views[i] = ImageView{img: &s.images[i], typ: driver.IView2D, layers: 1, levels: 1}
	}
}

func (s *Swapchain) Destroy() {}

func (s *Swapchain) Views() []driver.ImageView {
	vs := make([]driver.ImageView, len(s.views))
	for i := range s.views {
		vs[i] = &s.views[i]
	}
	return vs
}

func (s *Swapchain) Images() []driver.Image {
	is := make([]driver.Image, len(s.images))
	for i := range s.images {
		is[i] = &s.images[i]
	}
	return is
}

func (s *Swapchain) Next(cb driver.CmdBuffer) (int, error) {
	idx := s.next
	s.next = (s.next + 1) % len(s.images)
	return idx, nil
}

func (s *Swapchain) Present(index int, cb driver.CmdBuffer) error {
	if s.outOfDate {
		return driver.ErrSwapchain
	}
	return nil
}

func (s *Swapchain) Recreate() error {
	s.outOfDate = false
	s.build()
	return nil
}

func (s *Swapchain) Format() driver.PixelFmt { return s.format }

// MarkOutOfDate makes the next Present call return
// driver.ErrSwapchain, simulating a resize.
func (s *Swapchain) MarkOutOfDate() { s.outOfDate = true }
