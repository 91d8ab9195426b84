// Package graph implements the render graph: a declarative set
// of passes over textures, compiled into a linear schedule with
// explicit synchronization and executed once per frame.
//
// Grounded on original_source/include/mythril/RenderGraphBuilder.h
// and lib/RenderGraphBuilder.cpp: three pass builders (graphics,
// compute, intermediate) feeding a single ordered pass list,
// Compile synthesizing barriers and dry-running execute callbacks
// to pre-resolve pipelines, Execute reconciling barriers against
// runtime texture state before invoking each callback for real.
package graph

import (
	"errors"

	"github.com/vgpu/framegraph/driver"
	"github.com/vgpu/framegraph/pipeline"
	"github.com/vgpu/framegraph/resource"
)

func newGraphErr(reason string) error {
	return errors.New("graph: " + reason)
}

// Layout is the declaration-level image layout a pass requests a
// texture be in, resolved to a concrete driver.Layout at compile
// time.
type Layout int

const (
	General Layout = iota
	Read
	TransferSrc
	TransferDst
	Present
)

func (l Layout) driverLayout() driver.Layout {
	switch l {
	case Read:
		return driver.LShaderRead
	case TransferSrc:
		return driver.LCopySrc
	case TransferDst:
		return driver.LCopyDst
	case Present:
		return driver.LPresent
	default:
		return driver.LCommon
	}
}

// TextureDesc names a texture and an optional subresource range
// within it. A zero NumLevels/NumLayers means "every level/layer
// from Base onward", resolved against the texture's actual extent
// at compile time.
type TextureDesc struct {
	Texture   resource.TextureHandle
	BaseLevel int
	NumLevels int
	BaseLayer int
	NumLayers int
	ViewType  driver.ViewType
}

func (d TextureDesc) resolve(info resource.TextureInfo) TextureDesc {
	r := d
	if r.NumLevels == 0 {
		r.NumLevels = info.Levels - r.BaseLevel
	}
	if r.NumLayers == 0 {
		r.NumLayers = info.Layers - r.BaseLayer
	}
	return r
}

// AttachmentDesc describes one color or depth/stencil attachment
// of a graphics pass.
type AttachmentDesc struct {
	Texture TextureDesc
	Clear   driver.ClearValue
	Load    driver.LoadOp
	Store   driver.StoreOp
	Resolve *TextureDesc
}

// Dependency describes a texture a pass reads (or otherwise
// requires in a given layout) without writing it as an
// attachment.
type Dependency struct {
	Texture TextureDesc
	Layout  Layout
}

type passType int

const (
	passGraphics passType = iota
	passCompute
	passIntermediate
)

type intermediateKind int

const (
	intermCopy intermediateKind = iota
	intermBlit
	intermMipmaps
)

type intermediateOp struct {
	kind     intermediateKind
	src, dst TextureDesc
}

// passDesc is the user-declared description of one pass, before
// compilation.
type passDesc struct {
	name         string
	typ          passType
	attachments  []AttachmentDesc
	deps         []Dependency
	execute      func(*CmdRecorder)
	intermediate []intermediateOp
}

// Builder is the render graph's declaration API (spec §4.I).
type Builder struct {
	res      *resource.Manager
	resolver *pipeline.Resolver
	passes   []*passDesc
}

// NewBuilder creates a render graph builder over res, resolving
// pipelines lazily through resolver during both dry-run compile
// and real execute.
func NewBuilder(res *resource.Manager, resolver *pipeline.Resolver) *Builder {
	return &Builder{res: res, resolver: resolver}
}

// GraphicsPassBuilder declares a graphics pass: one or more
// attachments, any number of read dependencies, and an execute
// callback.
type GraphicsPassBuilder struct {
	b *Builder
	d *passDesc
}

func (b *Builder) AddGraphicsPass(name string) *GraphicsPassBuilder {
	return &GraphicsPassBuilder{b: b, d: &passDesc{name: name, typ: passGraphics}}
}

func (g *GraphicsPassBuilder) Attachment(desc AttachmentDesc) *GraphicsPassBuilder {
	g.d.attachments = append(g.d.attachments, desc)
	return g
}

func (g *GraphicsPassBuilder) Dependency(tex TextureDesc, layout Layout) *GraphicsPassBuilder {
	g.d.deps = append(g.d.deps, Dependency{Texture: tex, Layout: layout})
	return g
}

// SetExecuteCallback finalizes the pass and appends it to the
// graph.
func (g *GraphicsPassBuilder) SetExecuteCallback(fn func(*CmdRecorder)) {
	g.d.execute = fn
	g.b.passes = append(g.b.passes, g.d)
}

// ComputePassBuilder declares a compute pass: dependencies only
// (no attachments), defaulting to the General layout.
type ComputePassBuilder struct {
	b *Builder
	d *passDesc
}

func (b *Builder) AddComputePass(name string) *ComputePassBuilder {
	return &ComputePassBuilder{b: b, d: &passDesc{name: name, typ: passCompute}}
}

func (c *ComputePassBuilder) Dependency(tex TextureDesc, layout Layout) *ComputePassBuilder {
	c.d.deps = append(c.d.deps, Dependency{Texture: tex, Layout: layout})
	return c
}

func (c *ComputePassBuilder) SetExecuteCallback(fn func(*CmdRecorder)) {
	c.d.execute = fn
	c.b.passes = append(c.b.passes, c.d)
}

// IntermediateBuilder declares a canned sequence of copy/blit/
// mipmap-generation operations that compile directly to a
// barrier + command sequence, with no user-supplied callback.
type IntermediateBuilder struct {
	b *Builder
	d *passDesc
}

func (b *Builder) AddIntermediatePass(name string) *IntermediateBuilder {
	return &IntermediateBuilder{b: b, d: &passDesc{name: name, typ: passIntermediate}}
}

func (i *IntermediateBuilder) Copy(src, dst TextureDesc) *IntermediateBuilder {
	i.d.intermediate = append(i.d.intermediate, intermediateOp{kind: intermCopy, src: src, dst: dst})
	return i
}

func (i *IntermediateBuilder) Blit(src, dst TextureDesc) *IntermediateBuilder {
	i.d.intermediate = append(i.d.intermediate, intermediateOp{kind: intermBlit, src: src, dst: dst})
	return i
}

// GenerateMipmaps expands into one blit per level transition,
// level N-1 from level N, resolved against tex's actual level
// count at compile time (this call only records the intent; the
// expansion happens in Compile, where the texture's Levels is
// known).
func (i *IntermediateBuilder) GenerateMipmaps(tex TextureDesc) *IntermediateBuilder {
	i.d.intermediate = append(i.d.intermediate, intermediateOp{kind: intermMipmaps, src: tex})
	return i
}

// Finish appends the intermediate pass to the graph.
func (i *IntermediateBuilder) Finish() {
	i.b.passes = append(i.b.passes, i.d)
}
