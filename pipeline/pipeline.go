// Package pipeline implements the pipeline resolver: lazy
// pipeline construction triggered by either a render graph
// dry-run or a real bind. Cached pipelines become stale only
// through an explicit Invalidate call; nothing in this module
// makes that call, so growth of the bindless descriptor table
// (which replaces the driver-level descriptor set layout) does
// not by itself invalidate them.
//
// Grounded on driver/vk/pipeln.go's shape (a pipeline is
// specified up front from a value resembling GraphState/
// CompState) generalized to the lazy build-on-first-use model
// spec §4.H requires; the teacher itself builds pipelines
// eagerly at creation time.
package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vgpu/framegraph/driver"
	"github.com/vgpu/framegraph/reflectsig"
)

func newPipelineErr(reason string) error {
	return errors.New("pipeline: " + reason)
}

// entry caches one resolved driver.Pipeline.
type entry struct {
	pl  driver.Pipeline
	gen uint64
}

// Resolver lazily builds and caches driver.Pipeline objects,
// keyed by a digest of their defining state (GraphState/CompState
// contain slice fields and are therefore not map-key-comparable
// on their own). Bumping the generation (via Invalidate) makes
// every previously resolved pipeline stale without immediately
// destroying it — destruction is the caller's job, typically via
// deferred.Queue, since in-flight command buffers may still
// reference the old pipeline object.
type Resolver struct {
	gpu   driver.GPU
	gen   uint64
	graph map[string]*entry
	comp  map[string]*entry
	sig   *reflectsig.Signature
}

// New creates a pipeline resolver bound to gpu. sig, if non-nil,
// is consulted to resolve named specialization constants (spec
// §4.H).
func New(gpu driver.GPU, sig *reflectsig.Signature) *Resolver {
	return &Resolver{
		gpu:   gpu,
		gen:   1,
		graph: make(map[string]*entry),
		comp:  make(map[string]*entry),
		sig:   sig,
	}
}

// Invalidate bumps the resolver's generation, so that every
// pipeline resolved against the previous generation is
// considered stale (spec §4.H: "invalidated on bindless-table
// growth"). Stale entries remain cached until a fresh Resolve*
// call for the same state is made.
func (r *Resolver) Invalidate() { r.gen++ }

// Generation returns the resolver's current generation counter.
func (r *Resolver) Generation() uint64 { return r.gen }

// resolveSpecConstants rewrites any SpecConstant in consts that
// names a constant by Name (rather than ID) into its numeric ID,
// using the resolver's reflected signature.
func (r *Resolver) resolveSpecConstants(consts []driver.SpecConstant) ([]driver.SpecConstant, error) {
	if r.sig == nil {
		return consts, nil
	}
	out := make([]driver.SpecConstant, len(consts))
	for i, c := range consts {
		if c.Name == "" {
			out[i] = c
			continue
		}
		b, ok := r.sig.ByName(c.Name)
		if !ok {
			return nil, newPipelineErr("unknown specialization constant: " + c.Name)
		}
		c.ID = b.Nr
		c.Name = ""
		out[i] = c
	}
	return out, nil
}

// digestPrefix identifies the pipeline-handle owning a cache
// entry, so that Evict can find every entry belonging to one
// resource.Manager pipeline without needing to recompute the
// full digest (which requires the original state).
func digestPrefix(id uint64) string {
	return fmt.Sprintf("%d|", id)
}

// graphDigest builds a cache key from id (the owning
// resource.PipelineHandle's Key, per-pipeline identity) and the
// fields of a GraphState that determine pipeline identity given
// that handle. Code/Desc are interface values compared by
// identity (%p), which is correct here: two distinct ShaderCode/
// DescTable objects must never collide even if their contents
// happen to match.
func graphDigest(id uint64, s *driver.GraphState) string {
	return fmt.Sprintf("%sg|%p|%s|%p|%s|%p|%v|%v|%v|%v|%v|%v|%v|%v|%d|%v|%d",
		digestPrefix(id),
		s.VertFunc.Code, s.VertFunc.Name,
		s.FragFunc.Code, s.FragFunc.Name,
		s.Desc, s.Input, s.Topology, s.Raster, s.DS, s.Blend,
		s.ColorFmts, s.DepthFmt, s.HasDepth, s.Samples, s.SpecConsts, s.PushConstSz)
}

func compDigest(id uint64, s *driver.CompState) string {
	return fmt.Sprintf("%sc|%p|%s|%p|%v|%d",
		digestPrefix(id),
		s.Func.Code, s.Func.Name, s.Desc, s.SpecConsts, s.PushConstSz)
}

// ResolveGraph returns the driver.Pipeline for state, building
// and caching it on first use (or after invalidation) and
// returning the cached one otherwise. id identifies the owning
// resource.PipelineHandle, so that Evict can later drop every
// cache entry this pipeline ever resolved to, across every
// distinct attachment-format/sample-count combination it was
// bound against. Whether this is a dry-run (spec §4.J step 5,
// pre-resolution during compile) or a real bind makes no
// difference here: both paths call this method.
func (r *Resolver) ResolveGraph(id uint64, state driver.GraphState) (driver.Pipeline, error) {
	key := graphDigest(id, &state)
	if e, ok := r.graph[key]; ok && e.gen == r.gen {
		return e.pl, nil
	}
	consts, err := r.resolveSpecConstants(state.SpecConsts)
	if err != nil {
		return nil, err
	}
	resolved := state
	resolved.SpecConsts = consts
	pl, err := r.gpu.NewPipeline(&resolved)
	if err != nil {
		return nil, newPipelineErr("NewPipeline(graphics): " + err.Error())
	}
	r.graph[key] = &entry{pl: pl, gen: r.gen}
	return pl, nil
}

// ResolveComp is ResolveGraph's compute-pipeline counterpart.
func (r *Resolver) ResolveComp(id uint64, state driver.CompState) (driver.Pipeline, error) {
	key := compDigest(id, &state)
	if e, ok := r.comp[key]; ok && e.gen == r.gen {
		return e.pl, nil
	}
	consts, err := r.resolveSpecConstants(state.SpecConsts)
	if err != nil {
		return nil, err
	}
	resolved := state
	resolved.SpecConsts = consts
	pl, err := r.gpu.NewPipeline(&resolved)
	if err != nil {
		return nil, newPipelineErr("NewPipeline(compute): " + err.Error())
	}
	r.comp[key] = &entry{pl: pl, gen: r.gen}
	return pl, nil
}

// Stale reports whether a previously resolved graphics pipeline
// for id/state was built against an older generation than the
// resolver's current one.
func (r *Resolver) Stale(id uint64, state driver.GraphState) bool {
	e, ok := r.graph[graphDigest(id, &state)]
	return ok && e.gen != r.gen
}

// Evict drops every cached driver.Pipeline resolved for the
// pipeline handle identified by id, across both the graphics and
// compute maps, destroying each one. Called when a
// resource.PipelineHandle is destroyed (spec §4.F), typically
// from inside a deferred.Queue callback once no in-flight command
// buffer can still reference the cached object.
func (r *Resolver) Evict(id uint64) {
	prefix := digestPrefix(id)
	for k, e := range r.graph {
		if strings.HasPrefix(k, prefix) {
			e.pl.Destroy()
			delete(r.graph, k)
		}
	}
	for k, e := range r.comp {
		if strings.HasPrefix(k, prefix) {
			e.pl.Destroy()
			delete(r.comp, k)
		}
	}
}
