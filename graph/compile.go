package graph

import (
	"github.com/vgpu/framegraph/driver"
	"github.com/vgpu/framegraph/resource"
)

// textureBarrier is a compiled pre-barrier: a request that a
// texture's subresource range be in newLayout by the time the
// owning pass's callback runs. oldLayout is left undetermined at
// compile time and reconciled against the tracker at Execute.
type textureBarrier struct {
	tex       resource.TextureHandle
	baseLayer int
	layers    int
	baseLevel int
	levels    int
	newLayout driver.Layout
}

// compiledPass is one pass after Compile: everything Execute
// needs, with no further lookups required except the tracker.
type compiledPass struct {
	name        string
	typ         passType
	preBarriers []textureBarrier

	colorAttachments []driver.RenderingAttachment
	depthAttachment  *driver.RenderingAttachment
	renderArea       driver.Rect2D

	colorFmts []driver.PixelFmt
	depthFmt  driver.PixelFmt
	hasDepth  bool
	samples   int

	execute func(*CmdRecorder)
}

// CompiledGraph is the linear, synchronized schedule Compile
// produces. Execute walks it in order every frame.
type CompiledGraph struct {
	passes []compiledPass
}

// syncAccessForLayout derives the stage/access scope a layout
// implies, per the canonical table of spec §9. Implementations
// may extend this table; they must preserve the listed mappings.
func syncAccessForLayout(l driver.Layout) (driver.Sync, driver.Access) {
	switch l {
	case driver.LShaderRead:
		return driver.SFragmentShading | driver.SComputeShading, driver.AShaderRead
	case driver.LColorTarget:
		return driver.SColorOutput, driver.AColorRead | driver.AColorWrite
	case driver.LDSTarget:
		return driver.SDSOutput, driver.ADSRead | driver.ADSWrite
	case driver.LCopySrc:
		return driver.SCopy, driver.ACopyRead
	case driver.LCopyDst:
		return driver.SCopy, driver.ACopyWrite
	case driver.LResolveSrc:
		return driver.SResolve, driver.AResolveRead
	case driver.LResolveDst:
		return driver.SResolve, driver.AResolveWrite
	case driver.LPresent:
		return driver.SAll, driver.ANone
	case driver.LCommon:
		return driver.SAll, driver.AAnyRead | driver.AAnyWrite
	default:
		return driver.SNone, driver.ANone
	}
}

func isDepthFormat(pf driver.PixelFmt) bool {
	switch pf {
	case driver.D16Unorm, driver.D32Float, driver.S8UInt, driver.D24UnormS8UInt, driver.D32FloatS8UInt:
		return true
	default:
		return false
	}
}

func barrierFor(d TextureDesc, info resource.TextureInfo, newLayout driver.Layout) textureBarrier {
	r := d.resolve(info)
	return textureBarrier{
		tex: r.Texture, baseLayer: r.BaseLayer, layers: r.NumLayers,
		baseLevel: r.BaseLevel, levels: r.NumLevels, newLayout: newLayout,
	}
}

// Compile translates every pass the Builder has accumulated into
// a CompiledGraph: attachments resolved to driver.RenderingAttachment
// values, pre-barriers synthesized for every attachment and
// dependency, and every pass's callback dry-run once against a
// non-recording CmdRecorder so pipelines are materialized ahead of
// the first real frame (spec §4.J step 5).
func (b *Builder) Compile() (*CompiledGraph, error) {
	g := &CompiledGraph{passes: make([]compiledPass, 0, len(b.passes))}

	for _, d := range b.passes {
		cp := compiledPass{name: d.name, typ: d.typ}

		for _, dep := range d.deps {
			info, ok := b.res.Info(dep.Texture.Texture)
			if !ok {
				return nil, newGraphErr("pass " + d.name + ": dependency references a stale texture handle")
			}
			cp.preBarriers = append(cp.preBarriers, barrierFor(dep.Texture, info, dep.Layout.driverLayout()))
		}

		switch d.typ {
		case passGraphics:
			if err := compileGraphicsAttachments(b.res, d, &cp); err != nil {
				return nil, err
			}
		case passIntermediate:
			exec, err := compileIntermediate(b.res, d, &cp)
			if err != nil {
				return nil, err
			}
			cp.execute = exec
		}
		if cp.execute == nil {
			cp.execute = d.execute
		}
		if cp.execute == nil {
			return nil, newGraphErr("pass " + d.name + " has no execute callback")
		}

		g.passes = append(g.passes, cp)
	}

	// Dry-run every pass once so pipeline binds inside each
	// callback materialize their pipeline now rather than on the
	// first real frame.
	for i := range g.passes {
		p := &g.passes[i]
		dry := &CmdRecorder{
			dryRun: true, resolver: b.resolver, res: b.res,
			colorFmts: p.colorFmts, depthFmt: p.depthFmt, hasDepth: p.hasDepth, samples: p.samples,
			colorAttachments: p.colorAttachments, depthAttachment: p.depthAttachment, renderArea: p.renderArea,
		}
		p.execute(dry)
	}

	return g, nil
}

func compileGraphicsAttachments(res *resource.Manager, d *passDesc, cp *compiledPass) error {
	if len(d.attachments) == 0 {
		return newGraphErr("pass " + d.name + " is a graphics pass with no attachments")
	}

	refInfo, ok := res.Info(d.attachments[0].Texture.Texture)
	if !ok {
		return newGraphErr("pass " + d.name + ": attachment references a stale texture handle")
	}
	cp.renderArea = driver.Rect2D{Width: refInfo.Size.Width, Height: refInfo.Size.Height}

	hasDepth := false
	for _, att := range d.attachments {
		info, ok := res.Info(att.Texture.Texture)
		if !ok {
			return newGraphErr("pass " + d.name + ": attachment references a stale texture handle")
		}
		view, err := res.View(att.Texture.Texture, att.Texture.ViewType,
			att.Texture.BaseLayer, nz(att.Texture.NumLayers, info.Layers-att.Texture.BaseLayer),
			att.Texture.BaseLevel, nz(att.Texture.NumLevels, info.Levels-att.Texture.BaseLevel))
		if err != nil {
			return err
		}

		if isDepthFormat(info.Format) {
			if hasDepth {
				return newGraphErr("pass " + d.name + ": multiple depth attachments not allowed")
			}
			hasDepth = true
			cp.depthAttachment = &driver.RenderingAttachment{
				View: view, Layout: driver.LDSTarget, Load: att.Load, Store: att.Store, Clear: att.Clear,
			}
			cp.depthFmt = info.Format
			cp.hasDepth = true
			cp.preBarriers = append(cp.preBarriers, barrierFor(att.Texture, info, driver.LDSTarget))
			continue
		}

		ra := driver.RenderingAttachment{View: view, Layout: driver.LColorTarget, Load: att.Load, Store: att.Store, Clear: att.Clear}
		cp.preBarriers = append(cp.preBarriers, barrierFor(att.Texture, info, driver.LColorTarget))

		if att.Resolve != nil {
			rinfo, ok := res.Info(att.Resolve.Texture)
			if !ok {
				return newGraphErr("pass " + d.name + ": resolve target references a stale texture handle")
			}
			if info.Samples <= 1 {
				return newGraphErr("pass " + d.name + ": resolve operation on a non-multisampled texture")
			}
			if rinfo.Samples > 1 {
				return newGraphErr("pass " + d.name + ": resolve target is itself multisampled")
			}
			rview, err := res.View(att.Resolve.Texture, att.Resolve.ViewType,
				att.Resolve.BaseLayer, nz(att.Resolve.NumLayers, rinfo.Layers-att.Resolve.BaseLayer),
				att.Resolve.BaseLevel, nz(att.Resolve.NumLevels, rinfo.Levels-att.Resolve.BaseLevel))
			if err != nil {
				return err
			}
			ra.Resolve = rview
			ra.ResolveLayout = driver.LColorTarget
			cp.preBarriers = append(cp.preBarriers, barrierFor(*att.Resolve, rinfo, driver.LColorTarget))
		}
		cp.colorAttachments = append(cp.colorAttachments, ra)
		cp.colorFmts = append(cp.colorFmts, info.Format)
		cp.samples = info.Samples
	}

	if len(cp.colorAttachments) == 0 && !hasDepth {
		return newGraphErr("pass " + d.name + " was given no color or depth attachments")
	}
	return nil
}

func compileIntermediate(res *resource.Manager, d *passDesc, cp *compiledPass) (func(*CmdRecorder), error) {
	type copyOp struct {
		kind               intermediateKind
		srcImg, dstImg     driver.Image
		srcLayer, srcLevel int
		dstLayer, dstLevel int
		extent             driver.Dim3D
	}
	var ops []copyOp

	expand := func(op intermediateOp) error {
		srcInfo, ok := res.Info(op.src.Texture)
		if !ok {
			return newGraphErr("pass " + d.name + ": source references a stale texture handle")
		}
		srcImg, _ := res.Image(op.src.Texture)

		switch op.kind {
		case intermMipmaps:
			for lvl := 1; lvl < srcInfo.Levels; lvl++ {
				cp.preBarriers = append(cp.preBarriers,
					textureBarrier{tex: op.src.Texture, layers: srcInfo.Layers, baseLevel: lvl - 1, levels: 1, newLayout: driver.LCopySrc},
					textureBarrier{tex: op.src.Texture, layers: srcInfo.Layers, baseLevel: lvl, levels: 1, newLayout: driver.LCopyDst})
				ops = append(ops, copyOp{kind: intermBlit, srcImg: srcImg, dstImg: srcImg, srcLevel: lvl - 1, dstLevel: lvl, extent: srcInfo.Size})
			}
		default:
			dstInfo, ok := res.Info(op.dst.Texture)
			if !ok {
				return newGraphErr("pass " + d.name + ": destination references a stale texture handle")
			}
			dstImg, _ := res.Image(op.dst.Texture)

			cp.preBarriers = append(cp.preBarriers,
				barrierFor(op.src, srcInfo, driver.LCopySrc),
				barrierFor(op.dst, dstInfo, driver.LCopyDst))
			ops = append(ops, copyOp{
				kind: op.kind, srcImg: srcImg, dstImg: dstImg,
				srcLayer: op.src.BaseLayer, srcLevel: op.src.BaseLevel,
				dstLayer: op.dst.BaseLayer, dstLevel: op.dst.BaseLevel,
				extent: srcInfo.Size,
			})
		}
		return nil
	}

	for _, op := range d.intermediate {
		if err := expand(op); err != nil {
			return nil, err
		}
	}

	return func(cr *CmdRecorder) {
		if cr.dryRun {
			return
		}
		for _, op := range ops {
			switch op.kind {
			case intermCopy:
				cr.cb.CopyImage(&driver.ImageCopy{
					From: op.srcImg, FromLayer: op.srcLayer, FromLevel: op.srcLevel,
					To: op.dstImg, ToLayer: op.dstLayer, ToLevel: op.dstLevel,
					Size: op.extent, Layers: 1,
				})
			default:
				srcMax := driver.Off3D{X: op.extent.Width, Y: op.extent.Height, Z: op.extent.Depth}
				dstW, dstH, dstD := op.extent.Width, op.extent.Height, op.extent.Depth
				if op.srcLevel != op.dstLevel {
					for i := 0; i < op.dstLevel-op.srcLevel; i++ {
						dstW, dstH = max(dstW/2, 1), max(dstH/2, 1)
					}
				}
				cr.cb.Blit(&driver.ImageBlit{
					From: op.srcImg, FromLayer: op.srcLayer, FromLevel: op.srcLevel, FromOffMax: srcMax,
					To: op.dstImg, ToLayer: op.dstLayer, ToLevel: op.dstLevel,
					ToOffMax: driver.Off3D{X: dstW, Y: dstH, Z: dstD},
				})
			}
		}
	}, nil
}

func nz(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}
