// Copyright 2022 Gustavo C. Viegas. All rights reserved.

// Package ctxt provides the one-shot application-surface builder
// (spec §6's "context_builder → context"): it selects a
// driver.Driver from the global registry, opens its GPU, and
// wires every other package in this module (the immediate
// command scheduler, deferred-destruction queue, texture
// tracker, pipeline resolver, resource manager, and optionally
// the bindless table and a swapchain) into a single Context.
//
// Grounded on engine/internal/ctxt's loadDriver (name substring
// match over driver.Drivers, returning the first driver whose
// Open succeeds) and engine/internal/ctx's older sibling,
// generalized from a package-level singleton to a builder that
// returns an instance, since this module is a library rather
// than an application and more than one Context legitimately
// exists in, e.g., a multi-adapter test harness.
package ctxt

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/vgpu/framegraph/commands"
	"github.com/vgpu/framegraph/deferred"
	"github.com/vgpu/framegraph/driver"
	"github.com/vgpu/framegraph/graph"
	"github.com/vgpu/framegraph/pipeline"
	"github.com/vgpu/framegraph/resource"
	"github.com/vgpu/framegraph/swapchain"
	"github.com/vgpu/framegraph/tracker"
)

func newCtxtErr(reason string) error {
	return errors.New("ctxt: " + reason)
}

// forever is used for the shutdown waits in Close (spec §5: "All
// waits are unbounded; a dead GPU is fatal"), mirroring
// swapchain.Chain's own unexported forever constant.
const forever = time.Duration(1<<63 - 1)

// ErrNoDriver means loadDriver could not find a registered
// driver.Driver matching the requested name (for the empty name:
// no driver is registered at all). When matching drivers exist
// but every Open fails, loadDriver returns the last Open error
// instead.
var ErrNoDriver = errors.New("ctxt: driver not found")

// loadDriver attempts to open any driver whose name contains the
// given name string (case-sensitive). An empty name considers
// every registered driver. It returns the first one that opens
// successfully.
func loadDriver(name string) (driver.Driver, driver.GPU, error) {
	drivers := driver.Drivers()
	err := error(ErrNoDriver)
	for i := range drivers {
		if !strings.Contains(drivers[i].Name(), name) {
			continue
		}
		gpu, openErr := drivers[i].Open()
		if openErr != nil {
			err = openErr
			continue
		}
		return drivers[i], gpu, nil
	}
	return nil, nil, err
}

// SwapchainSpec requests that Build also construct a
// swapchain.Chain on the given surface.
type SwapchainSpec struct {
	Surface    driver.Surface
	ImageCount int
}

// ContextBuilder accumulates the configuration spec §6 names
// (app name, engine name, requested device extensions, shader
// search paths, optional swapchain spec, optional plugins) ahead
// of a one-shot Build. Configuration is one-shot: once Build
// returns a Context, runtime swapchain settings are changed
// through the Context/Chain's own APIs, not the builder.
type ContextBuilder struct {
	appName    string
	engineName string
	driverName string
	extensions []string
	shaderDirs []string
	sc         *SwapchainSpec
	bindless   bool
	mipWorkers int
	plugins    []func(*Context) error
}

// NewContextBuilder starts a builder for an application named
// appName, built against engineName (this module's own name, by
// convention, but left to the caller since it is purely
// descriptive metadata). Both names are only stored and read
// back via Context.AppName/EngineName; they are not passed to
// the driver.Driver.
func NewContextBuilder(appName, engineName string) *ContextBuilder {
	return &ContextBuilder{appName: appName, engineName: engineName, mipWorkers: 1}
}

// Driver restricts driver selection to the first registered
// driver.Driver whose name contains name. The empty string (the
// default) considers every registered driver.
func (b *ContextBuilder) Driver(name string) *ContextBuilder {
	b.driverName = name
	return b
}

// Extensions records the device extensions the application
// wants enabled. driver.Driver.Open takes no extension
// parameter, so a concrete backend that wants to honor this must
// read it back via Context.Extensions before/while opening its
// own driver; this builder only carries the request through.
func (b *ContextBuilder) Extensions(names ...string) *ContextBuilder {
	b.extensions = append(b.extensions, names...)
	return b
}

// ShaderSearchPaths records directories a caller's own shader
// loader may consult. This module never performs file I/O itself
// (shader source compilation is out of scope, spec §1); the
// paths are carried through for that external loader to read
// back via Context.ShaderSearchPaths.
func (b *ContextBuilder) ShaderSearchPaths(dirs ...string) *ContextBuilder {
	b.shaderDirs = append(b.shaderDirs, dirs...)
	return b
}

// Swapchain requests that Build also construct a swapchain.Chain
// presenting to spec.Surface.
func (b *ContextBuilder) Swapchain(spec SwapchainSpec) *ContextBuilder {
	b.sc = &spec
	return b
}

// Bindless requests that Build enable bindless descriptor
// indexing on the resource manager, sized against the opened
// GPU's own device limits.
func (b *ContextBuilder) Bindless(enable bool) *ContextBuilder {
	b.bindless = enable
	return b
}

// MipWorkers sets the mipmap-generation worker pool size the
// resource manager is constructed with. Default is 1.
func (b *ContextBuilder) MipWorkers(n int) *ContextBuilder {
	if n > 0 {
		b.mipWorkers = n
	}
	return b
}

// Plugin registers a callback run once, after every other
// component is wired, against the finished Context. This is the
// module's hook for GUI/profiler plugins (spec §1: explicitly out
// of scope for this module to implement, but a caller's plugin
// may still want a handle to the resource manager/ring/etc. to
// attach itself).
func (b *ContextBuilder) Plugin(fn func(*Context) error) *ContextBuilder {
	b.plugins = append(b.plugins, fn)
	return b
}

// Context is the application surface spec §6 describes: every
// other package's entry point, wired together and ready for a
// frame loop to drive.
type Context struct {
	appName    string
	engineName string
	extensions []string
	shaderDirs []string

	drv driver.Driver
	gpu driver.GPU

	ring     *commands.Ring
	dq       *deferred.Queue
	trk      *tracker.Tracker
	resolver *pipeline.Resolver
	res      *resource.Manager
	sc       *swapchain.Chain
}

// Build selects a driver.Driver (per the Driver name filter, if
// any), opens its GPU, and wires the command scheduler,
// deferred-destruction queue, texture tracker, pipeline resolver
// and resource manager around it. If Swapchain was called, the
// swapchain.Chain is constructed too. Every registered Plugin
// runs last, against the finished Context.
func (b *ContextBuilder) Build() (*Context, error) {
	drv, gpu, err := loadDriver(b.driverName)
	if err != nil {
		return nil, err
	}
	if len(b.extensions) > 0 {
		log.Printf("ctxt: driver %q does not accept requested extensions %v through this module's Driver interface; caller must plumb them through its own backend", drv.Name(), b.extensions)
	}

	ring := commands.NewRing(gpu)
	dq := deferred.NewQueue()
	trk := tracker.New()
	resolver := pipeline.New(gpu, nil)
	res := resource.New(gpu, ring, dq, trk, resolver, b.mipWorkers)

	c := &Context{
		appName: b.appName, engineName: b.engineName,
		extensions: b.extensions, shaderDirs: b.shaderDirs,
		drv: drv, gpu: gpu,
		ring: ring, dq: dq, trk: trk, resolver: resolver, res: res,
	}

	if b.bindless {
		if err := res.EnableBindless(gpu.Limits()); err != nil {
			ring.Destroy()
			drv.Close()
			return nil, newCtxtErr("Build: EnableBindless: " + err.Error())
		}
	}

	if b.sc != nil {
		presenter, ok := gpu.(driver.Presenter)
		if !ok {
			ring.Destroy()
			drv.Close()
			return nil, newCtxtErr("Build: driver's GPU does not implement driver.Presenter")
		}
		sc, err := swapchain.New(presenter, ring, res, b.sc.Surface, b.sc.ImageCount)
		if err != nil {
			ring.Destroy()
			drv.Close()
			return nil, newCtxtErr("Build: swapchain.New: " + err.Error())
		}
		c.sc = sc
	}

	for _, plugin := range b.plugins {
		if err := plugin(c); err != nil {
			c.Close()
			return nil, newCtxtErr("Build: plugin: " + err.Error())
		}
	}

	return c, nil
}

func (c *Context) AppName() string             { return c.appName }
func (c *Context) EngineName() string          { return c.engineName }
func (c *Context) Extensions() []string        { return c.extensions }
func (c *Context) ShaderSearchPaths() []string  { return c.shaderDirs }
func (c *Context) Driver() driver.Driver        { return c.drv }
func (c *Context) GPU() driver.GPU              { return c.gpu }
func (c *Context) Ring() *commands.Ring         { return c.ring }
func (c *Context) Queue() *deferred.Queue       { return c.dq }
func (c *Context) Tracker() *tracker.Tracker    { return c.trk }
func (c *Context) Resolver() *pipeline.Resolver { return c.resolver }
func (c *Context) Resources() *resource.Manager { return c.res }

// Swapchain returns the Context's swapchain.Chain, or false if
// Build was never given a SwapchainSpec.
func (c *Context) Swapchain() (*swapchain.Chain, bool) {
	return c.sc, c.sc != nil
}

// NewGraphBuilder starts a render graph builder over this
// Context's resource manager and pipeline resolver.
func (c *Context) NewGraphBuilder() *graph.Builder {
	return graph.NewBuilder(c.res, c.resolver)
}

// Close drains every deferred-destruction task, waiting on each
// one's retirement, tears down the command ring, and closes the
// underlying driver. The Context must not be used afterward.
func (c *Context) Close() {
	c.ring.WaitAll(forever)
	c.dq.DrainAll(func(token deferred.SubmitToken) {
		c.ring.Wait(token, forever)
	})
	c.ring.Destroy()
	c.drv.Close()
}
