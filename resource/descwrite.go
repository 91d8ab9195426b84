// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package resource

import (
	"github.com/vgpu/framegraph/driver"
	"github.com/vgpu/framegraph/reflectsig"
)

// Writer accumulates descriptor bindings to apply to a single
// pipeline's descriptor heaps (spec §6's
// open_descriptor_update/update_binding/submit_descriptor_update).
// A Writer is single-use: build it with OpenDescriptorUpdate, call
// UpdateBinding/UpdateBindingByName any number of times, then hand
// it to SubmitDescriptorUpdate once.
type Writer struct {
	m     *Manager
	sig   *reflectsig.Signature
	heaps []driver.DescHeap

	writes []bindingWrite
	err    error
}

type bindingWrite struct {
	set, nr int
	buf     BufferHandle
}

// OpenDescriptorUpdate starts a Writer over the descriptor heaps h
// was created with (GraphicsPipelineSpec.DescHeaps or
// ComputePipelineSpec.DescHeaps). It fails if h is stale or the
// pipeline was created without any heaps to write into.
func (m *Manager) OpenDescriptorUpdate(h PipelineHandle) (*Writer, error) {
	e := m.pipelines.Get(h)
	if e == nil {
		return nil, newResourceErr("OpenDescriptorUpdate: stale pipeline handle")
	}
	if len(e.heaps) == 0 {
		return nil, newResourceErr("OpenDescriptorUpdate: pipeline has no descriptor heaps to update")
	}
	return &Writer{m: m, sig: e.sig, heaps: e.heaps}, nil
}

// UpdateBinding queues a write of buf into descriptor set, binding
// nr. It returns the Writer unchanged so calls may be chained; a
// failure is recorded and reported by SubmitDescriptorUpdate,
// matching the rest of this package's builder style
// (graph.PassBuilder.Dependency, ContextBuilder).
func (w *Writer) UpdateBinding(buf BufferHandle, set, nr int) *Writer {
	if w.err != nil {
		return w
	}
	if set < 0 || set >= len(w.heaps) {
		w.err = newResourceErr("UpdateBinding: descriptor set out of range")
		return w
	}
	w.writes = append(w.writes, bindingWrite{set: set, nr: nr, buf: buf})
	return w
}

// UpdateBindingByName resolves name against the pipeline's merged
// reflected signature (the union of its shader stages' bindings,
// see reflectsig.Merge) and queues a write of buf into the
// resolved (set, binding) pair.
func (w *Writer) UpdateBindingByName(buf BufferHandle, name string) *Writer {
	if w.err != nil {
		return w
	}
	if w.sig == nil {
		w.err = newResourceErr("UpdateBindingByName: pipeline has no reflected signature")
		return w
	}
	b, ok := w.sig.ByName(name)
	if !ok {
		w.err = newResourceErr("UpdateBindingByName: unknown binding name " + name)
		return w
	}
	return w.UpdateBinding(buf, b.Set, b.Nr)
}

// SubmitDescriptorUpdate applies every write queued on w to its
// pipeline's descriptor heaps. Writes always target heap copy 0;
// multi-copy (double/triple-buffered) descriptor heaps are not
// described by this module's update model and are left to the
// caller to rotate by calling OpenDescriptorUpdate again per copy.
func (m *Manager) SubmitDescriptorUpdate(w *Writer) error {
	if w.err != nil {
		return w.err
	}
	for _, wr := range w.writes {
		b := m.buffers.Get(wr.buf)
		if b == nil {
			return newResourceErr("SubmitDescriptorUpdate: stale buffer handle")
		}
		heap := w.heaps[wr.set]
		heap.SetBuffer(0, wr.nr, 0, []driver.Buffer{b.buf}, []int64{0}, []int64{b.size})
	}
	return nil
}
