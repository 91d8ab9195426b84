// Package reflectsig defines the reflected shader layout
// signature consumed by the render graph and resource manager,
// and a FromSPIRV constructor that derives one from a compiled
// shader module's reflection data.
//
// Shader source compilation is out of scope for this module
// (spec §1); only the reflected signature of an already-compiled
// module is consumed. FromSPIRV is the concrete implementation
// of that consumption boundary (spec §6), built on
// github.com/gogpu/naga, the shader-translation/reflection
// library used throughout the gogpu stack
// (gogpu-wgpu, gogpu-gg).
package reflectsig

import (
	"fmt"

	"github.com/gogpu/naga"

	"github.com/vgpu/framegraph/driver"
)

// Binding describes one descriptor binding a shader module
// references, as reported by reflection.
type Binding struct {
	Set     int
	Nr      int
	Type    driver.DescType
	Count   int
	Stages  driver.Stage
	Name    string
	// Bindless marks a binding that, by convention, targets the
	// bindless table (spec §6: "the bindless heap, identified
	// by convention") rather than a per-draw descriptor heap.
	Bindless bool
}

// PushConstantRange describes one push-constant range a shader
// module references.
type PushConstantRange struct {
	Stages driver.Stage
	Offset int
	Size   int
}

// Signature is the reflected layout signature of a shader
// module: everything resource.Manager and pipeline.Resolver
// need to know about a shader's interface without parsing the
// shader itself (spec §3 "Reflected layout signature").
type Signature struct {
	Bindings       []Binding
	PushConstants  []PushConstantRange
	byName         map[string]int
}

// ByName returns the Binding with the given name, and whether
// one was found. Spec-constant names and descriptor names are
// resolved this way when the caller does not know a binding's
// numeric location up front.
func (s *Signature) ByName(name string) (Binding, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Binding{}, false
	}
	return s.Bindings[i], true
}

// Merge combines the bindings of zero or more signatures (e.g. a
// graphics pipeline's vertex and fragment shaders) into one
// signature keyed by name. Earlier signatures take precedence
// when a name collides across stages. Nil signatures are
// skipped, so Merge(sig) copies sig's bindings and Merge()
// returns an empty, usable Signature. Push-constant ranges are
// not carried into the result.
func Merge(sigs ...*Signature) *Signature {
	out := &Signature{byName: make(map[string]int)}
	for _, s := range sigs {
		if s == nil {
			continue
		}
		for _, b := range s.Bindings {
			if _, ok := out.byName[b.Name]; ok {
				continue
			}
			out.byName[b.Name] = len(out.Bindings)
			out.Bindings = append(out.Bindings, b)
		}
	}
	return out
}

func newReflectErr(reason string) error {
	return fmt.Errorf("reflectsig: %s", reason)
}

// descTypeFromNaga maps naga's resource classification onto
// driver.DescType; it exists purely to keep the naga-specific
// switch in one place.
func descTypeFromNaga(class naga.ResourceBindingClass) (driver.DescType, bool) {
	switch class {
	case naga.ResourceBindingSampledTexture:
		return driver.DTexture, true
	case naga.ResourceBindingSampler:
		return driver.DSampler, true
	case naga.ResourceBindingStorageTexture:
		return driver.DImage, true
	case naga.ResourceBindingUniformBuffer:
		return driver.DConstant, true
	case naga.ResourceBindingStorageBuffer:
		return driver.DBuffer, true
	default:
		return 0, false
	}
}

func stagesFromNaga(stages naga.ShaderStageFlags) driver.Stage {
	var s driver.Stage
	if stages&naga.ShaderStageVertex != 0 {
		s |= driver.SVertex
	}
	if stages&naga.ShaderStageFragment != 0 {
		s |= driver.SFragment
	}
	if stages&naga.ShaderStageCompute != 0 {
		s |= driver.SCompute
	}
	return s
}

// FromSPIRV parses a SPIR-V module's reflection data and
// produces a Signature. bindlessSetIndex identifies, by
// convention, which descriptor set index is understood to back
// the bindless table (spec §6); any binding reflected from that
// set is marked Bindless rather than assigned a per-draw heap
// slot.
func FromSPIRV(data []byte, bindlessSetIndex int) (*Signature, error) {
	module, err := naga.ParseSPIRV(data)
	if err != nil {
		return nil, newReflectErr("ParseSPIRV: " + err.Error())
	}

	sig := &Signature{byName: make(map[string]int)}
	for _, gv := range module.GlobalVariables() {
		bind, ok := gv.Binding()
		if !ok {
			continue
		}
		dt, ok := descTypeFromNaga(bind.Class)
		if !ok {
			continue
		}
		b := Binding{
			Set:      bind.Group,
			Nr:       bind.Binding,
			Type:     dt,
			Count:    max(1, bind.ArraySize),
			Stages:   stagesFromNaga(gv.Stages()),
			Name:     gv.Name(),
			Bindless: bind.Group == bindlessSetIndex,
		}
		sig.byName[b.Name] = len(sig.Bindings)
		sig.Bindings = append(sig.Bindings, b)
	}

	for _, pc := range module.PushConstantRanges() {
		sig.PushConstants = append(sig.PushConstants, PushConstantRange{
			Stages: stagesFromNaga(pc.Stages),
			Offset: int(pc.Offset),
			Size:   int(pc.Size),
		})
	}

	return sig, nil
}
