// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package graph

import (
	"testing"

	"github.com/vgpu/framegraph/commands"
	"github.com/vgpu/framegraph/deferred"
	"github.com/vgpu/framegraph/driver"
	"github.com/vgpu/framegraph/drivertest"
	"github.com/vgpu/framegraph/pipeline"
	"github.com/vgpu/framegraph/resource"
	"github.com/vgpu/framegraph/tracker"
)

func newHarness(t *testing.T) (*drivertest.GPU, *resource.Manager, *pipeline.Resolver, *tracker.Tracker) {
	t.Helper()
	gpu := drivertest.New()
	ring := commands.NewRing(gpu)
	dq := deferred.NewQueue()
	trk := tracker.New()
	pr := pipeline.New(gpu, nil)
	res := resource.New(gpu, ring, dq, trk, pr, 1)
	return gpu, res, pr, trk
}

func TestCompileAndExecuteGraphicsPass(t *testing.T) {
	gpu, res, pr, trk := newHarness(t)

	size := driver.Dim3D{Width: 64, Height: 64, Depth: 1}
	color, err := res.CreateTexture(driver.RGBA8Unorm, size, 1, 1, 1, driver.URenderTarget, false)
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}

	vcode, err := gpu.NewShaderCode(nil)
	if err != nil {
		t.Fatalf("NewShaderCode(vert): %v", err)
	}
	fcode, err := gpu.NewShaderCode(nil)
	if err != nil {
		t.Fatalf("NewShaderCode(frag): %v", err)
	}
	vert := res.ImportShader(vcode, nil)
	frag := res.ImportShader(fcode, nil)
	pl, err := res.CreateGraphicsPipeline(resource.GraphicsPipelineSpec{
		Vert: vert, Frag: frag, VertEntry: "main", FragEntry: "main",
	})
	if err != nil {
		t.Fatalf("CreateGraphicsPipeline: %v", err)
	}

	b := NewBuilder(res, pr)
	var bound bool
	b.AddGraphicsPass("main").
		Attachment(AttachmentDesc{Texture: TextureDesc{Texture: color}, Load: driver.LClear, Store: driver.SStore}).
		SetExecuteCallback(func(cr *CmdRecorder) {
			cr.BeginRendering()
			if err := cr.BindGraphicsPipeline(pl); err != nil {
				t.Fatalf("BindGraphicsPipeline: %v", err)
			}
			if cr.Dry() {
				bound = true
				return
			}
			cr.Draw(3, 1, 0, 0)
			cr.EndRendering()
		})

	g, err := b.Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !bound {
		t.Fatal("dry run must have invoked the execute callback")
	}

	cb := &drivertest.CmdBuffer{}
	cb.Begin()
	if err := g.Execute(cb, res, pr, trk); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	wantSeq := []string{"Begin", "Transition", "BeginRendering", "SetPipeline", "Draw", "EndRendering"}
	if len(cb.Log) != len(wantSeq) {
		t.Fatalf("Log = %v, want %v", cb.Log, wantSeq)
	}
	for i, s := range wantSeq {
		if cb.Log[i] != s {
			t.Fatalf("Log[%d] = %q, want %q (full: %v)", i, cb.Log[i], s, cb.Log)
		}
	}

	st := trk.Read(color.Key(), tracker.Range{BaseLayer: 0, Layers: 1, BaseLevel: 0, Levels: 1})
	if st.Layout != driver.LColorTarget {
		t.Fatalf("tracked Layout = %v, want LColorTarget", st.Layout)
	}
}

func TestExecuteSkipsBarrierAlreadySatisfied(t *testing.T) {
	_, res, pr, trk := newHarness(t)

	size := driver.Dim3D{Width: 32, Height: 32, Depth: 1}
	tex, err := res.CreateTexture(driver.RGBA8Unorm, size, 1, 1, 1, driver.UShaderSample, false)
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	trk.Write(tex.Key(), tracker.Range{BaseLayer: 0, Layers: 1, BaseLevel: 0, Levels: 1}, tracker.State{Layout: driver.LShaderRead})

	b := NewBuilder(res, pr)
	b.AddComputePass("noop").
		Dependency(TextureDesc{Texture: tex}, Read).
		SetExecuteCallback(func(cr *CmdRecorder) {
			if cr.Dry() {
				return
			}
			cr.Dispatch(1, 1, 1)
		})

	g, err := b.Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	cb := &drivertest.CmdBuffer{}
	cb.Begin()
	if err := g.Execute(cb, res, pr, trk); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	for _, s := range cb.Log {
		if s == "Transition" {
			t.Fatalf("a barrier already satisfied must not be issued; got Log = %v", cb.Log)
		}
	}
}

func TestIntermediateCopyIssuesBarrierAndCopy(t *testing.T) {
	_, res, pr, trk := newHarness(t)

	size := driver.Dim3D{Width: 16, Height: 16, Depth: 1}
	src, err := res.CreateTexture(driver.RGBA8Unorm, size, 1, 1, 1, driver.UShaderRead, false)
	if err != nil {
		t.Fatalf("CreateTexture(src): %v", err)
	}
	dst, err := res.CreateTexture(driver.RGBA8Unorm, size, 1, 1, 1, driver.UShaderWrite, false)
	if err != nil {
		t.Fatalf("CreateTexture(dst): %v", err)
	}

	b := NewBuilder(res, pr)
	b.AddIntermediatePass("copy").Copy(TextureDesc{Texture: src}, TextureDesc{Texture: dst}).Finish()

	g, err := b.Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	cb := &drivertest.CmdBuffer{}
	cb.Begin()
	if err := g.Execute(cb, res, pr, trk); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	foundCopy := false
	for _, s := range cb.Log {
		if s == "CopyImage" {
			foundCopy = true
		}
	}
	if !foundCopy {
		t.Fatalf("expected a CopyImage call; got Log = %v", cb.Log)
	}
}

func TestSubresourceLayoutSplitEmitsTwoBarriers(t *testing.T) {
	_, res, pr, trk := newHarness(t)

	size := driver.Dim3D{Width: 64, Height: 64, Depth: 1}
	tex, err := res.CreateTexture(driver.RGBA8Unorm, size, 1, 4, 1, driver.UShaderSample|driver.UShaderWrite, false)
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}

	b := NewBuilder(res, pr)
	b.AddComputePass("transition-head-mips").
		Dependency(TextureDesc{Texture: tex, NumLevels: 2}, TransferSrc).
		SetExecuteCallback(func(cr *CmdRecorder) {
			if cr.Dry() {
				return
			}
			cr.Dispatch(1, 1, 1)
		})
	b.AddComputePass("read-whole-image").
		Dependency(TextureDesc{Texture: tex}, Read).
		SetExecuteCallback(func(cr *CmdRecorder) {
			if cr.Dry() {
				return
			}
			cr.Dispatch(1, 1, 1)
		})

	g, err := b.Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	cb := &drivertest.CmdBuffer{}
	cb.Begin()
	if err := g.Execute(cb, res, pr, trk); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	wantSeq := []string{"Begin", "Transition", "Dispatch", "Transition", "Dispatch"}
	if len(cb.Log) != len(wantSeq) {
		t.Fatalf("Log = %v, want %v", cb.Log, wantSeq)
	}
	for i, s := range wantSeq {
		if cb.Log[i] != s {
			t.Fatalf("Log[%d] = %q, want %q (full: %v)", i, cb.Log[i], s, cb.Log)
		}
	}

	whole := tracker.Range{BaseLayer: 0, Layers: 1, BaseLevel: 0, Levels: 4}
	split := trk.ReadSplit(tex.Key(), whole)
	if len(split) != 1 || split[0].State.Layout != driver.LShaderRead {
		t.Fatalf("every mip must have converged on LShaderRead after the second pass, got %+v", split)
	}
}

func TestGraphicsPassRequiresAttachment(t *testing.T) {
	_, res, pr, _ := newHarness(t)
	b := NewBuilder(res, pr)
	b.AddGraphicsPass("empty").SetExecuteCallback(func(*CmdRecorder) {})
	if _, err := b.Compile(); err == nil {
		t.Fatal("Compile must reject a graphics pass with no attachments")
	}
}
