// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package driver

import "time"

// GPU is the main interface to an underlying driver
// implementation.
// It is used to create other types and to execute commands.
// A GPU is obtained from a call to Driver.Open.
//
// The underlying API is assumed to provide image/buffer
// allocation with a memory allocator, timeline semaphores,
// pipeline barriers v2, dynamic rendering, descriptor
// indexing with update-after-bind, and device-address
// buffers. A concrete implementation of this interface
// (e.g., a Vulkan or WebGPU backend) is an external
// collaborator and out of scope for this module.
type GPU interface {
	// Driver returns the Driver that owns the GPU.
	Driver() Driver

	// NewCmdBuffer creates a new command buffer.
	NewCmdBuffer() (CmdBuffer, error)

	// Submit submits a command buffer for execution on the
	// single graphics queue. Submission order equals
	// completion order: the GPU processes a single queue,
	// so this method does not reorder work.
	Submit(cb CmdBuffer, s SubmitInfo) error

	// NewFence creates a new fence, initially unsignaled
	// unless signaled is set.
	NewFence(signaled bool) (Fence, error)

	// NewSemaphore creates a new binary semaphore.
	NewSemaphore() (Semaphore, error)

	// NewTimelineSemaphore creates a new timeline semaphore
	// with the given initial counter value.
	NewTimelineSemaphore(initial uint64) (TimelineSemaphore, error)

	// NewShaderCode creates a new shader code.
	NewShaderCode(data []byte) (ShaderCode, error)

	// NewDescHeap creates a new descriptor heap.
	// If bindless is set, the heap is created with
	// update-after-bind, partially-bound and
	// update-while-pending semantics, so that holes are
	// legal and in-flight command buffers may keep
	// referencing a set while it is being rewritten.
	NewDescHeap(ds []Descriptor, bindless bool) (DescHeap, error)

	// NewDescTable creates a new descriptor table.
	NewDescTable(dh []DescHeap) (DescTable, error)

	// NewPipeline creates a new pipeline.
	// The state parameter must be a pointer to a GraphState or
	// a pointer to a CompState.
	NewPipeline(state any) (Pipeline, error)

	// NewBuffer creates a new buffer.
	NewBuffer(size int64, visible bool, usg Usage) (Buffer, error)

	// NewImage creates a new image.
	NewImage(pf PixelFmt, size Dim3D, layers, levels, samples int, usg Usage) (Image, error)

	// NewSampler creates a new Sampler.
	NewSampler(spln *Sampling) (Sampler, error)

	// Limits returns the implementation limits.
	// They are immutable for the lifetime of the GPU.
	Limits() Limits
}

// Destroyer is the interface that wraps the Destroy method.
// Types that implement this interface may allocate external
// memory that is not managed by GC, so Destroy must be
// called explicitly to ensure such memory is deallocated.
type Destroyer interface {
	Destroy()
}

// Fence is a CPU-visible synchronization primitive signaled
// by the GPU on completion of the work it was attached to.
type Fence interface {
	Destroyer

	// Wait blocks until the fence is signaled or timeout
	// elapses. A timeout of 0 polls without blocking.
	Wait(timeout time.Duration) (signaled bool, err error)

	// Signaled polls the fence without blocking.
	Signaled() (bool, error)

	// Reset clears the fence back to the unsignaled state.
	Reset() error
}

// Semaphore is a binary GPU-side synchronization primitive.
type Semaphore interface {
	Destroyer
}

// TimelineSemaphore is a monotonically increasing counter
// used to order GPU work across submissions.
type TimelineSemaphore interface {
	Destroyer

	// Value returns the counter's current value.
	Value() (uint64, error)

	// Wait blocks until the counter reaches at least value,
	// or until timeout elapses.
	Wait(value uint64, timeout time.Duration) (reached bool, err error)

	// Signal sets the counter from the host. Only valid for
	// values greater than the counter's current value.
	Signal(value uint64) error
}

// SemaphoreWait pairs a semaphore with the pipeline stage(s)
// that must wait on it.
type SemaphoreWait struct {
	Sem   Semaphore
	Stage Sync
}

// TimelineSignal pairs a timeline semaphore with the value it
// should be signaled to and the stage that triggers it.
type TimelineSignal struct {
	Sem   TimelineSemaphore
	Value uint64
	Stage Sync
}

// SubmitInfo describes the synchronization attached to a
// single Submit call.
type SubmitInfo struct {
	// Wait, if non-nil, is an extra semaphore the queue must
	// wait on before executing cb (e.g., a swapchain
	// acquire semaphore).
	Wait *SemaphoreWait
	// SignalFence, if non-nil, is signaled when cb retires.
	SignalFence Fence
	// SignalSem, if non-nil, is signaled when cb retires.
	SignalSem Semaphore
	// SignalTimeline contains zero or more timeline
	// semaphores to signal when cb retires.
	SignalTimeline []TimelineSignal
}

// CmdBuffer is the interface that defines a command buffer.
// Commands are recorded into command buffers and later
// submitted to the GPU for execution. Recording is separated
// into logical blocks containing either rendering, compute
// or copy commands. Multiple logical blocks can be recorded
// into a single command buffer. The usage is as follows:
// First, call Begin to prepare the command buffer for
// recording. Then, if it succeeds:
//
// To record commands for dynamic rendering:
//  1. call BeginRendering
//  2. call Set* methods to configure rendering state
//  3. call Draw* commands
//  4. call EndRendering
//
// To record compute commands:
//  1. call BeginWork
//  2. call Set* methods to configure compute state
//  3. call Dispatch commands
//  4. call EndWork
//
// To record copy commands:
//  1. call BeginBlit
//  2. call Copy*/Fill commands
//  3. call EndBlit
//
// Finally, call End and, if it succeeds, GPU.Submit.
// Begin* commands must not be nested, and must always be
// ended before another call to Begin* and prior to the
// final End call.
type CmdBuffer interface {
	Destroyer

	// Begin prepares the command buffer for recording.
	Begin() error

	// BeginRendering begins dynamic rendering over the given
	// color attachments and optional depth/stencil
	// attachment, restricted to area.
	BeginRendering(color []RenderingAttachment, depth *RenderingAttachment, area Rect2D)

	// EndRendering ends dynamic rendering.
	EndRendering()

	// BeginWork begins compute work.
	BeginWork(wait bool)

	// EndWork ends the current compute work.
	EndWork()

	// BeginBlit begins data transfer.
	BeginBlit(wait bool)

	// EndBlit ends the current data transfer.
	EndBlit()

	// SetPipeline sets the pipeline.
	SetPipeline(pl Pipeline)

	// SetViewport sets the bounds of one or more viewports.
	SetViewport(vp []Viewport)

	// SetScissor sets the rectangles of one or more
	// viewport scissors.
	SetScissor(sciss []Scissor)

	// SetVertexBuf sets one or more vertex buffers.
	SetVertexBuf(start int, buf []Buffer, off []int64)

	// SetIndexBuf sets the index buffer.
	SetIndexBuf(format IndexFmt, buf Buffer, off int64)

	// SetDescTableGraph sets a descriptor table range for
	// graphics pipelines.
	SetDescTableGraph(table DescTable, start int, heapCopy []int)

	// SetDescTableComp sets a descriptor table range for
	// compute pipelines.
	SetDescTableComp(table DescTable, start int, heapCopy []int)

	// SetPushConstant uploads push-constant data.
	SetPushConstant(stages Stage, offset int, data []byte)

	// Draw draws primitives.
	Draw(vertCount, instCount, baseVert, baseInst int)

	// DrawIndexed draws indexed primitives.
	DrawIndexed(idxCount, instCount, baseIdx, vertOff, baseInst int)

	// Dispatch dispatches compute thread groups.
	Dispatch(grpCountX, grpCountY, grpCountZ int)

	// CopyBuffer copies data between buffers.
	CopyBuffer(param *BufferCopy)

	// CopyImage copies data between images.
	CopyImage(param *ImageCopy)

	// CopyBufToImg copies data from a buffer to an image.
	CopyBufToImg(param *BufImgCopy)

	// CopyImgToBuf copies data from an image to a buffer.
	CopyImgToBuf(param *BufImgCopy)

	// Fill fills a buffer range with copies of a byte value.
	Fill(buf Buffer, off int64, value byte, size int64)

	// Blit copies and optionally scales/filters image data
	// between two image subresources, used for mipmap generation
	// and blits to the swapchain.
	Blit(param *ImageBlit)

	// Barrier inserts a number of global barriers in the
	// command buffer (pipeline barriers v2 semantics: each
	// entry carries its own stage/access masks).
	Barrier(b []Barrier)

	// Transition inserts a number of image layout
	// transitions in the command buffer.
	Transition(t []Transition)

	// End ends command recording and prepares the command
	// buffer for submission.
	End() error

	// Reset discards all recorded commands from the command
	// buffer.
	Reset() error
}

// BufferCopy describes the parameters of a copy command
// that copies data from one buffer to another.
type BufferCopy struct {
	From    Buffer
	FromOff int64
	To      Buffer
	ToOff   int64
	Size    int64
}

// ImageCopy describes the parameters of a copy command
// that copies data between two images.
type ImageCopy struct {
	From      Image
	FromOff   Off3D
	FromLayer int
	FromLevel int
	To        Image
	ToOff     Off3D
	ToLayer   int
	ToLevel   int
	Size      Dim3D
	Layers    int
}

// BufImgCopy describes the parameters of a copy command
// that copies data between a buffer and an image.
type BufImgCopy struct {
	Buf    Buffer
	BufOff int64
	Stride [2]int64
	Img    Image
	ImgOff Off3D
	Layer  int
	Level  int
	Size   Dim3D
	// DepthCopy selects either the depth or stencil aspect
	// to copy. Only used if Img has a combined
	// depth/stencil format.
	DepthCopy bool
}

// ImageBlit describes the parameters of a scaling blit
// between two image subresources.
type ImageBlit struct {
	From       Image
	FromLayer  int
	FromLevel  int
	FromOffMin Off3D
	FromOffMax Off3D
	To         Image
	ToLayer    int
	ToLevel    int
	ToOffMin   Off3D
	ToOffMax   Off3D
	Filter     Filter
}

// Sync is the type of a synchronization scope.
type Sync int

// Synchronization scopes.
const (
	SVertexInput Sync = 1 << iota
	SVertexShading
	SFragmentShading
	SComputeShading
	SColorOutput
	SDSOutput
	SDraw
	SResolve
	SCopy
	SAll
	SNone Sync = 0
)

// Access is the type of a memory access scope.
type Access int

// Memory access scopes.
const (
	AVertexBufRead Access = 1 << iota
	AIndexBufRead
	AColorRead
	AColorWrite
	ADSRead
	ADSWrite
	AResolveRead
	AResolveWrite
	ACopyRead
	ACopyWrite
	AShaderRead
	AShaderWrite
	AAnyRead
	AAnyWrite
	ANone Access = 0
)

// Layout is the type of an image layout.
type Layout int

// Image layouts.
const (
	LUndefined Layout = iota
	LCommon
	LColorTarget
	LDSTarget
	LDSRead
	LResolveSrc
	LResolveDst
	LCopySrc
	LCopyDst
	LShaderRead
	LPresent
)

// Barrier represents a synchronization barrier.
type Barrier struct {
	SyncBefore   Sync
	SyncAfter    Sync
	AccessBefore Access
	AccessAfter  Access
}

// Transition represents a layout transition on a specific
// image subresource.
type Transition struct {
	Barrier

	LayoutBefore Layout
	LayoutAfter  Layout
	IView        ImageView
	BaseLevel    int
	NumLevels    int
	BaseLayer    int
	NumLayers    int
}

// LoadOp is the type of an attachment's load operation.
type LoadOp int

// Load operations.
const (
	LDontCare LoadOp = iota
	LClear
	LLoad
)

// StoreOp is the type of an attachment's store operation.
type StoreOp int

// Store operations.
const (
	SDontCare StoreOp = iota
	SStore
)

// ClearValue defines clear values for color or depth/stencil
// aspects of a render target.
type ClearValue struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

// RenderingAttachment describes one color or depth/stencil
// attachment for dynamic rendering (spec §1: the underlying
// API assumes dynamic rendering, so there is no render-pass
// or framebuffer object to pre-declare).
type RenderingAttachment struct {
	View    ImageView
	Layout  Layout
	Load    LoadOp
	Store   StoreOp
	Clear   ClearValue
	Resolve ImageView
	// ResolveLayout is the layout the Resolve view must be
	// in; only meaningful when Resolve is non-nil.
	ResolveLayout Layout
}

// Rect2D is a two-dimensional rectangle, used as the render
// area of a dynamic rendering pass.
type Rect2D struct {
	X, Y, Width, Height int
}

// ShaderCode is the interface that defines a shader binary
// for execution in a programmable pipeline stage.
type ShaderCode interface {
	Destroyer
}

// ShaderFunc specifies a function within a shader binary.
type ShaderFunc struct {
	Code ShaderCode
	Name string
}

// Stage is a mask of programmable stages.
type Stage int

// Stages.
const (
	SVertex Stage = 1 << iota
	SFragment
	SCompute
)

// DescType is the type of a descriptor.
type DescType int

// Descriptor types.
const (
	// Read/write buffer.
	DBuffer DescType = iota
	// Read/write image.
	DImage
	// Constant buffer.
	DConstant
	// Sampled texture.
	DTexture
	// Texture sampler.
	DSampler
)

// Descriptor describes data for use in shaders.
type Descriptor struct {
	Type   DescType
	Stages Stage
	Nr     int
	Len    int
}

// DescHeap is the interface that defines a set of descriptors
// for use in programmable pipeline stages.
type DescHeap interface {
	Destroyer

	// New creates enough storage for n copies of each
	// descriptor. All copies from a previous call to New
	// are invalidated, unless n equals the current Count,
	// in which case it is a no-op. New(0) frees all storage.
	New(n int) error

	// SetBuffer updates the buffer ranges referred by the
	// given descriptor of the given heap copy.
	SetBuffer(cpy, nr, start int, buf []Buffer, off, size []int64)

	// SetImage updates the image views referred by the
	// given descriptor of the given heap copy. view may
	// contain nil entries, which clear the corresponding
	// slot (used to fall back to a dummy resource).
	SetImage(cpy, nr, start int, iv []ImageView)

	// SetSampler updates the samplers referred by the given
	// descriptor of the given heap copy. splr may contain
	// nil entries.
	SetSampler(cpy, nr, start int, splr []Sampler)

	// Count returns the number of heap copies created by New.
	Count() int
}

// DescTable is the interface that defines the bindings
// between a number of descriptor heaps and the shaders in a
// pipeline.
type DescTable interface {
	Destroyer
}

// VertexFmt describes the format of a vertex input.
type VertexFmt int

// Vertex formats.
const (
	Int8 VertexFmt = iota
	Int8x2
	Int8x3
	Int8x4
	Int16
	Int16x2
	Int16x3
	Int16x4
	Int32
	Int32x2
	Int32x3
	Int32x4
	UInt8
	UInt8x2
	UInt8x3
	UInt8x4
	UInt16
	UInt16x2
	UInt16x3
	UInt16x4
	UInt32
	UInt32x2
	UInt32x3
	UInt32x4
	Float32
	Float32x2
	Float32x3
	Float32x4
)

// VertexIn describes a vertex input.
type VertexIn struct {
	Format VertexFmt
	Stride int
	Nr     int
	Name   string
}

// Topology is the type of primitive topologies.
type Topology int

// Primitive topologies.
const (
	TPoint Topology = iota
	TLine
	TLnStrip
	TTriangle
	TTriStrip
)

// IndexFmt describes the format of index buffer data.
type IndexFmt int

// Index formats.
const (
	Index16 IndexFmt = 2
	Index32 IndexFmt = 4
)

// Viewport defines the bounds of a viewport.
type Viewport struct {
	X, Y, Width, Height, Znear, Zfar float32
}

// Scissor defines a scissor rectangle.
type Scissor struct {
	X, Y, Width, Height int
}

// CullMode is the type of cull modes.
type CullMode int

// Cull modes.
const (
	CNone CullMode = iota
	CFront
	CBack
)

// FillMode is the type of triangle fill modes.
type FillMode int

// Triangle fill modes.
const (
	FFill FillMode = iota
	FLines
)

// RasterState defines the rasterization state of a graphics
// pipeline.
type RasterState struct {
	Clockwise bool
	Cull      CullMode
	Fill      FillMode
	DepthBias bool
	BiasValue float32
	BiasSlope float32
	BiasClamp float32
}

// CmpFunc is the type of comparison functions.
type CmpFunc int

// Comparison functions.
const (
	CNever CmpFunc = iota
	CLess
	CEqual
	CLessEqual
	CGreater
	CNotEqual
	CGreaterEqual
	CAlways
)

// StencilOp is the type of stencil operations.
type StencilOp int

// Stencil operations.
const (
	SKeep StencilOp = iota
	SZero
	SReplace
	SIncClamp
	SDecClamp
	SInvert
	SIncWrap
	SDecWrap
)

// StencilT defines stencil test parameters.
type StencilT struct {
	DSFail    [2]StencilOp
	Pass      StencilOp
	ReadMask  uint32
	WriteMask uint32
	Cmp       CmpFunc
}

// DSState defines the depth/stencil state of a graphics
// pipeline.
type DSState struct {
	DepthTest   bool
	DepthWrite  bool
	DepthCmp    CmpFunc
	StencilTest bool
	Front       StencilT
	Back        StencilT
}

// BlendOp is the type of blend operations.
type BlendOp int

// Blend operations.
const (
	BAdd BlendOp = iota
	BSubtract
	BRevSubtract
	BMin
	BMax
)

// BlendFac is the type of blend factors.
type BlendFac int

// Blend factors.
const (
	BZero BlendFac = iota
	BOne
	BSrcColor
	BInvSrcColor
	BSrcAlpha
	BInvSrcAlpha
	BDstColor
	BInvDstColor
	BDstAlpha
	BInvDstAlpha
	BSrcAlphaSaturated
	BBlendColor
	BInvBlendColor
)

// ColorMask is the type of a color write mask.
type ColorMask int

// Color write masks.
const (
	CRed ColorMask = 1 << iota
	CGreen
	CBlue
	CAlpha
	CAll ColorMask = 1<<iota - 1
)

// ColorBlend defines a render target's blend parameters.
type ColorBlend struct {
	Blend     bool
	WriteMask ColorMask
	Op        [2]BlendOp
	SrcFac    [2]BlendFac
	DstFac    [2]BlendFac
}

// BlendState defines the color blend state of a graphics
// pipeline.
type BlendState struct {
	IndependentBlend bool
	Color            []ColorBlend
}

// SpecConstant binds one specialization constant, either by
// explicit numeric ID or by a name resolved through a
// ReflectedLayoutSignature (spec §4.H).
type SpecConstant struct {
	ID   int
	Name string
	Data []byte
}

// GraphState defines the combination of programmable and
// fixed stages of a graphics pipeline, to be used with
// dynamic rendering: instead of naming a RenderPass/Subpass,
// it names the attachment formats and sample count directly.
type GraphState struct {
	VertFunc    ShaderFunc
	FragFunc    ShaderFunc
	Desc        DescTable
	Input       []VertexIn
	Topology    Topology
	Raster      RasterState
	DS          DSState
	Blend       BlendState
	ColorFmts   []PixelFmt
	DepthFmt    PixelFmt
	HasDepth    bool
	Samples     int
	SpecConsts  []SpecConstant
	PushConstSz int
}

// CompState defines the state of a compute pipeline.
type CompState struct {
	Func        ShaderFunc
	Desc        DescTable
	SpecConsts  []SpecConstant
	PushConstSz int
}

// Pipeline is the interface that defines a GPU pipeline.
type Pipeline interface {
	Destroyer
}

// Usage is a mask indicating valid uses for a resource.
type Usage int

// Usage flags for Buffer and Image.
const (
	UShaderRead Usage = 1 << iota
	UShaderWrite
	UShaderConst
	UShaderSample
	UVertexData
	UIndexData
	URenderTarget
	// UDeviceAddress marks a Buffer as eligible for
	// Buffer.GPUAddress.
	UDeviceAddress
	UGeneric Usage = 1<<iota - 1
)

// Buffer is the interface that defines a GPU buffer.
type Buffer interface {
	Destroyer

	// Visible returns whether the buffer is host visible.
	Visible() bool

	// Bytes returns a slice of length Cap referring to the
	// underlying data, or nil if the buffer is not host
	// visible.
	Bytes() []byte

	// Cap returns the capacity of the buffer in bytes.
	Cap() int64

	// GPUAddress returns the buffer's device address.
	// It is only valid if the buffer was created with
	// UDeviceAddress usage; otherwise it returns 0.
	GPUAddress() int64
}

// PixelFmt describes the format of a pixel.
type PixelFmt int

// FInternal is the internal format bit. Client code must
// not create images using internal formats.
const FInternal PixelFmt = 1 << 31

// IsInternal returns whether f is an internal format.
func (f PixelFmt) IsInternal() bool { return f&FInternal == FInternal }

// Pixel formats.
const (
	RGBA8Unorm PixelFmt = iota
	RGBA8Norm
	RGBA8sRGB
	BGRA8Unorm
	BGRA8sRGB
	RG8Unorm
	RG8Norm
	R8Unorm
	R8Norm
	RGBA16Float
	RG16Float
	R16Float
	RGBA32Float
	RG32Float
	R32Float
	D16Unorm
	D32Float
	S8UInt
	D24UnormS8UInt
	D32FloatS8UInt
)

// Dim3D is a three-dimensional size.
type Dim3D struct {
	Width, Height, Depth int
}

// Off3D is a three-dimensional offset.
type Off3D struct {
	X, Y, Z int
}

// Image is the interface that defines a GPU image.
type Image interface {
	Destroyer

	// NewView creates a new image view.
	NewView(typ ViewType, layer, layers, level, levels int) (ImageView, error)

	// Format returns the image's pixel format.
	Format() PixelFmt

	// Samples returns the image's sample count.
	Samples() int

	// Size returns the image's extent.
	Size() Dim3D

	// Layers returns the image's layer count.
	Layers() int

	// Levels returns the image's mip level count.
	Levels() int
}

// ViewType is the type of a resource view.
type ViewType int

// View types.
const (
	IView1D ViewType = iota
	IView2D
	IView3D
	IViewCube
	IView1DArray
	IView2DArray
	IViewCubeArray
	IView2DMS
	IView2DMSArray
)

// ImageView is the interface that defines a typed view of an
// Image resource.
type ImageView interface {
	Destroyer
}

// Filter is the type of sampler/blit filters.
type Filter int

// Filters.
const (
	FNearest Filter = iota
	FLinear
	// FNoMipmap forces mip level 0 to be used. Only valid
	// as the mip filter of a sampler.
	FNoMipmap
)

// AddrMode is the type of sampler address modes.
type AddrMode int

// Address modes.
const (
	AWrap AddrMode = iota
	AMirror
	AClamp
)

// Sampler is the interface that defines an image sampler.
type Sampler interface {
	Destroyer
}

// Sampling describes image sampler state.
type Sampling struct {
	Min      Filter
	Mag      Filter
	Mipmap   Filter
	AddrU    AddrMode
	AddrV    AddrMode
	AddrW    AddrMode
	MaxAniso int
	Cmp      CmpFunc
	MinLOD   float32
	MaxLOD   float32
}

// Limits describes implementation limits. These may vary
// across drivers and devices.
type Limits struct {
	MaxImage1D   int
	MaxImage2D   int
	MaxImageCube int
	MaxImage3D   int
	MaxLayers    int

	MaxDescHeaps      int
	MaxDBuffer        int
	MaxDImage         int
	MaxDConstant      int
	MaxDTexture       int
	MaxDSampler       int
	MaxDBufferRange   int64
	MaxDConstantRange int64

	// MaxBindlessTextures/MaxBindlessSamplers are the
	// device-indexing limits that bound bindless table
	// growth (spec §4.E "exceeding is fatal").
	MaxBindlessTextures int
	MaxBindlessSamplers int

	MaxColorTargets int
	MaxFBSize       [2]int
	MaxFBLayers     int
	MaxPointSize    float32
	MaxViewports    int

	MaxVertexIn   int
	MaxFragmentIn int

	MaxDispatch [3]int

	MaxPushConstSize int
}
