package graph

import (
	"github.com/vgpu/framegraph/driver"
	"github.com/vgpu/framegraph/pipeline"
	"github.com/vgpu/framegraph/resource"
	"github.com/vgpu/framegraph/tracker"
)

// CmdRecorder wraps a driver.CmdBuffer with the render graph's
// pipeline pre-resolution hook. Under a dry run (compile-time
// pass, spec §4.J step 5) every method besides the pipeline binds
// returns without touching the underlying command buffer, which
// does not exist yet; the bind methods still run the
// pipeline.Resolver so the pipeline is materialized against the
// pass's attachment formats ahead of the first real frame.
type CmdRecorder struct {
	cb       driver.CmdBuffer
	dryRun   bool
	resolver *pipeline.Resolver
	res      *resource.Manager

	colorFmts []driver.PixelFmt
	depthFmt  driver.PixelFmt
	hasDepth  bool
	samples   int

	colorAttachments []driver.RenderingAttachment
	depthAttachment  *driver.RenderingAttachment
	renderArea       driver.Rect2D
}

// Dry reports whether this recorder is the compile-time dry run.
func (c *CmdRecorder) Dry() bool { return c.dryRun }

// CmdBuffer returns the underlying driver.CmdBuffer for direct
// recording of anything this wrapper does not cover. It is nil
// during a dry run; callers that need both pipeline binds and raw
// recording should check Dry first.
func (c *CmdRecorder) CmdBuffer() driver.CmdBuffer { return c.cb }

// Attachments returns the compiled color attachments, depth
// attachment (nil if none) and render area for the active
// graphics pass, for the callback to pass to BeginRendering.
func (c *CmdRecorder) Attachments() ([]driver.RenderingAttachment, *driver.RenderingAttachment, driver.Rect2D) {
	return c.colorAttachments, c.depthAttachment, c.renderArea
}

// BeginRendering and EndRendering bracket a graphics pass's draw
// calls (spec §4.K step 3: "cmdBeginRendering → record →
// cmdEndRendering for graphics").
func (c *CmdRecorder) BeginRendering() {
	if c.dryRun {
		return
	}
	c.cb.BeginRendering(c.colorAttachments, c.depthAttachment, c.renderArea)
}

func (c *CmdRecorder) EndRendering() {
	if c.dryRun {
		return
	}
	c.cb.EndRendering()
}

// BindGraphicsPipeline looks up h's template GraphState, resolves
// it against the active pass's attachment formats and sample
// count and, outside a dry run, binds the resulting pipeline.
func (c *CmdRecorder) BindGraphicsPipeline(h resource.PipelineHandle) error {
	state, ok := c.res.GraphicsPipelineState(h)
	if !ok {
		return newGraphErr("BindGraphicsPipeline: stale or non-graphics pipeline handle")
	}
	state.ColorFmts = c.colorFmts
	state.DepthFmt = c.depthFmt
	state.HasDepth = c.hasDepth
	state.Samples = c.samples
	pl, err := c.resolver.ResolveGraph(h.Key(), state)
	if err != nil {
		return err
	}
	if !c.dryRun {
		c.cb.SetPipeline(pl)
	}
	return nil
}

// BindComputePipeline is BindGraphicsPipeline's compute
// counterpart.
func (c *CmdRecorder) BindComputePipeline(h resource.PipelineHandle) error {
	state, ok := c.res.ComputePipelineState(h)
	if !ok {
		return newGraphErr("BindComputePipeline: stale or non-compute pipeline handle")
	}
	pl, err := c.resolver.ResolveComp(h.Key(), state)
	if err != nil {
		return err
	}
	if !c.dryRun {
		c.cb.SetPipeline(pl)
	}
	return nil
}

func (c *CmdRecorder) SetViewport(vp []driver.Viewport) {
	if c.dryRun {
		return
	}
	c.cb.SetViewport(vp)
}

func (c *CmdRecorder) SetScissor(sciss []driver.Scissor) {
	if c.dryRun {
		return
	}
	c.cb.SetScissor(sciss)
}

func (c *CmdRecorder) SetVertexBuf(start int, buf []driver.Buffer, off []int64) {
	if c.dryRun {
		return
	}
	c.cb.SetVertexBuf(start, buf, off)
}

func (c *CmdRecorder) SetIndexBuf(format driver.IndexFmt, buf driver.Buffer, off int64) {
	if c.dryRun {
		return
	}
	c.cb.SetIndexBuf(format, buf, off)
}

func (c *CmdRecorder) SetDescTableGraph(table driver.DescTable, start int, heapCopy []int) {
	if c.dryRun {
		return
	}
	c.cb.SetDescTableGraph(table, start, heapCopy)
}

func (c *CmdRecorder) SetDescTableComp(table driver.DescTable, start int, heapCopy []int) {
	if c.dryRun {
		return
	}
	c.cb.SetDescTableComp(table, start, heapCopy)
}

func (c *CmdRecorder) SetPushConstant(stages driver.Stage, offset int, data []byte) {
	if c.dryRun {
		return
	}
	c.cb.SetPushConstant(stages, offset, data)
}

func (c *CmdRecorder) Draw(vertCount, instCount, baseVert, baseInst int) {
	if c.dryRun {
		return
	}
	c.cb.Draw(vertCount, instCount, baseVert, baseInst)
}

func (c *CmdRecorder) DrawIndexed(idxCount, instCount, baseIdx, vertOff, baseInst int) {
	if c.dryRun {
		return
	}
	c.cb.DrawIndexed(idxCount, instCount, baseIdx, vertOff, baseInst)
}

func (c *CmdRecorder) Dispatch(x, y, z int) {
	if c.dryRun {
		return
	}
	c.cb.Dispatch(x, y, z)
}

// Execute runs g's passes in declaration order against cb and
// trk: for each pass, every pre-barrier is reconciled against the
// tracker's current state (dropped if already satisfied),
// surviving barriers are issued in a single Transition call, the
// tracker is updated to match, and finally the pass's callback
// runs for real.
func (g *CompiledGraph) Execute(cb driver.CmdBuffer, res *resource.Manager, resolver *pipeline.Resolver, trk *tracker.Tracker) error {
	for i := range g.passes {
		p := &g.passes[i]

		var transitions []driver.Transition
		for _, b := range p.preBarriers {
			rng := tracker.Range{BaseLayer: b.baseLayer, Layers: b.layers, BaseLevel: b.baseLevel, Levels: b.levels}
			// The tracked range may be fragmented across more
			// than one prior write (spec §8, "Subresource layout
			// split"): splitting here, rather than taking a
			// single Read of the whole range, lets each
			// differently-stated sub-range get its own barrier
			// instead of collapsing the lot to a conservative
			// Undefined→newLayout transition.
			for _, split := range trk.ReadSplit(b.tex.Key(), rng) {
				cur := split.State
				if cur.Layout == b.newLayout {
					continue
				}
				newSync, newAccess := syncAccessForLayout(b.newLayout)
				view, err := viewForBarrier(res, b, split.Range)
				if err != nil {
					return err
				}
				transitions = append(transitions, driver.Transition{
					Barrier: driver.Barrier{
						SyncBefore: cur.Sync, SyncAfter: newSync,
						AccessBefore: cur.Access, AccessAfter: newAccess,
					},
					LayoutBefore: cur.Layout, LayoutAfter: b.newLayout,
					IView:     view,
					BaseLevel: split.Range.BaseLevel, NumLevels: split.Range.Levels,
					BaseLayer: split.Range.BaseLayer, NumLayers: split.Range.Layers,
				})
				trk.Write(b.tex.Key(), split.Range, tracker.State{Layout: b.newLayout, Sync: newSync, Access: newAccess})
			}
		}
		if len(transitions) > 0 {
			cb.Transition(transitions)
		}

		p.execute(&CmdRecorder{
			cb: cb, resolver: resolver, res: res,
			colorFmts: p.colorFmts, depthFmt: p.depthFmt, hasDepth: p.hasDepth, samples: p.samples,
			colorAttachments: p.colorAttachments, depthAttachment: p.depthAttachment, renderArea: p.renderArea,
		})
	}
	return nil
}

func viewForBarrier(res *resource.Manager, b textureBarrier, rng tracker.Range) (driver.ImageView, error) {
	return res.View(b.tex, 0, rng.BaseLayer, rng.Layers, rng.BaseLevel, rng.Levels)
}
