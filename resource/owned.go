// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package resource

import (
	"github.com/vgpu/framegraph/deferred"
	"github.com/vgpu/framegraph/handle"
)

// Owned is a small generic RAII wrapper pairing a handle with the
// manager that created it, so a caller can release it without
// having to remember which Destroy method its handle kind wants
// (spec §9's "ObjectHolder wrappers... hold (context_ref,
// handle)"). Grounded directly on that note and on
// original_source/lib/Holder.h, whose Holder<HandleType> wraps a
// handle plus a back-reference to the owning context and calls
// ctx->destroy(handle) on scope exit.
//
// Unlike the original's Holder, Release here takes the
// deferred.SubmitToken every Destroy* method already requires
// (spec §4.C): this module has no implicit "current frame" to
// read the token from, so the caller supplies it explicitly.
type Owned[K any] struct {
	h       handle.Handle[K]
	destroy func(handle.Handle[K], deferred.SubmitToken)
	done    bool
}

// Release destroys the wrapped handle, deferred until token
// retires, and is safe to call more than once (subsequent calls
// are no-ops) so it can be used from both an explicit call site
// and a defer.
func (o *Owned[K]) Release(token deferred.SubmitToken) {
	if o.done {
		return
	}
	o.done = true
	o.destroy(o.h, token)
}

// Handle returns the wrapped handle without releasing ownership.
func (o *Owned[K]) Handle() handle.Handle[K] { return o.h }

// OwnTexture wraps h so its later Release calls m.DestroyTexture.
func (m *Manager) OwnTexture(h TextureHandle) *Owned[TextureTag] {
	return &Owned[TextureTag]{h: h, destroy: m.DestroyTexture}
}

// OwnBuffer wraps h so its later Release calls m.DestroyBuffer.
func (m *Manager) OwnBuffer(h BufferHandle) *Owned[BufferTag] {
	return &Owned[BufferTag]{h: h, destroy: m.DestroyBuffer}
}

// OwnSampler wraps h so its later Release calls m.DestroySampler.
func (m *Manager) OwnSampler(h SamplerHandle) *Owned[SamplerTag] {
	return &Owned[SamplerTag]{h: h, destroy: m.DestroySampler}
}

// OwnShader wraps h so its later Release calls m.DestroyShader.
func (m *Manager) OwnShader(h ShaderHandle) *Owned[ShaderTag] {
	return &Owned[ShaderTag]{h: h, destroy: m.DestroyShader}
}

// OwnPipeline wraps h so its later Release calls m.DestroyPipeline.
func (m *Manager) OwnPipeline(h PipelineHandle) *Owned[PipelineTag] {
	return &Owned[PipelineTag]{h: h, destroy: m.DestroyPipeline}
}
