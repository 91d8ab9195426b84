// Package swapchain implements frame-paced presentation: the
// per-frame acquire/present cycle that bounds how far the CPU is
// allowed to run ahead of the GPU.
//
// Grounded on original_source/lib/Swapchain.cpp's acquire/present
// pair, using the frame-index timeline-wait variant rather than
// the commented-out image-index one (spec §9's resolved Open
// Question). SubmitToken already plays the role of the original's
// timeline semaphore here, since both are monotonically
// increasing counters with a retirement-order guarantee (spec
// §5); Chain reuses commands.Ring.Wait instead of introducing a
// second timeline primitive.
package swapchain

import (
	"errors"
	"time"

	"github.com/vgpu/framegraph/commands"
	"github.com/vgpu/framegraph/deferred"
	"github.com/vgpu/framegraph/driver"
	"github.com/vgpu/framegraph/resource"
)

// MaxImages is the largest swapchain image count Chain supports,
// mirroring the original's kMAX_SWAPCHAIN_IMAGES.
const MaxImages = 16

// forever is used for waits the source models as unbounded (spec
// §5: "All waits are unbounded; a dead GPU is fatal").
const forever = time.Duration(1<<63 - 1)

func newSwapchainErr(reason string) error {
	return errors.New("swapchain: " + reason)
}

// Chain paces presentation across N swapchain images. Acquire for
// a given frame waits on the SubmitToken recorded N frames ago
// before handing out that slot's image again, bounding the
// backlog of outstanding GPU work to N frames.
type Chain struct {
	presenter driver.Presenter
	surf      driver.Surface
	ring      *commands.Ring
	res       *resource.Manager

	sc       driver.Swapchain
	textures []resource.TextureHandle

	waitTokens   []deferred.SubmitToken
	frameCounter uint64
	curImage     int
	dirty        bool
}

// New creates a swapchain on surf with imageCount images (a count
// below 1 is raised to 1; a count above MaxImages is rejected with
// an error) and imports each backbuffer into res as a non-owning
// texture handle.
func New(presenter driver.Presenter, ring *commands.Ring, res *resource.Manager, surf driver.Surface, imageCount int) (*Chain, error) {
	if imageCount < 1 {
		imageCount = 1
	}
	if imageCount > MaxImages {
		return nil, newSwapchainErr("image count exceeds MaxImages")
	}
	sc, err := presenter.NewSwapchain(surf, imageCount)
	if err != nil {
		return nil, newSwapchainErr("NewSwapchain: " + err.Error())
	}
	c := &Chain{presenter: presenter, surf: surf, ring: ring, res: res, sc: sc}
	c.adopt()
	return c, nil
}

// adopt (re)wraps the current swapchain's images as resource
// handles and resets the per-image wait tokens to match the
// (possibly new) image count.
func (c *Chain) adopt() {
	images := c.sc.Images()
	pf := c.sc.Format()
	c.textures = make([]resource.TextureHandle, len(images))
	for i, img := range images {
		c.textures[i] = c.res.ImportSwapchainImage(img, pf, img.Size())
	}
	c.waitTokens = make([]deferred.SubmitToken, len(images))
}

// Acquire computes this frame's wait slot, blocks until the
// submission recorded there N frames ago has retired, and
// requests the next writable image from the platform swapchain.
// cb must be the first command buffer that will write to the
// returned image, per driver.Swapchain.Next's contract.
func (c *Chain) Acquire(cb driver.CmdBuffer) (resource.TextureHandle, error) {
	n := len(c.waitTokens)
	frameIndex := int(c.frameCounter % uint64(n))
	if tok := c.waitTokens[frameIndex]; tok != 0 {
		if _, err := c.ring.Wait(tok, forever); err != nil {
			return resource.TextureHandle{}, newSwapchainErr("Wait: " + err.Error())
		}
	}
	idx, err := c.sc.Next(cb)
	if err != nil {
		return resource.TextureHandle{}, newSwapchainErr("Next: " + err.Error())
	}
	c.curImage = idx
	return c.textures[idx], nil
}

// NotifySubmit records token as the submission that wrote the
// image Acquire most recently returned, so a later Acquire of
// this same slot waits for it to retire first (spec §4.L step 2).
func (c *Chain) NotifySubmit(token deferred.SubmitToken) {
	c.waitTokens[c.frameCounter%uint64(len(c.waitTokens))] = token
}

// Present presents the image Acquire most recently returned, with
// cb as the last command buffer that wrote to it. An out-of-date
// or suboptimal result raises the dirty flag instead of
// propagating an error (spec §7 class 3: transient GPU
// conditions are communicated via a query, not a failure).
func (c *Chain) Present(cb driver.CmdBuffer) error {
	err := c.sc.Present(c.curImage, cb)
	if err != nil {
		if errors.Is(err, driver.ErrSwapchain) {
			c.dirty = true
			return nil
		}
		return newSwapchainErr("Present: " + err.Error())
	}
	c.frameCounter++
	return nil
}

// IsDirty reports whether the application must call Recreate
// before the next frame.
func (c *Chain) IsDirty() bool { return c.dirty }

// Recreate tears down and rebuilds the underlying swapchain,
// discards the previous backbuffer handles (the caller is
// expected to have destroyed any render targets sized off the old
// extent), re-imports the new images, and clears every per-image
// wait token along with the dirty flag.
func (c *Chain) Recreate() error {
	if err := c.sc.Recreate(); err != nil {
		return newSwapchainErr("Recreate: " + err.Error())
	}
	c.adopt()
	c.frameCounter = 0
	c.curImage = 0
	c.dirty = false
	return nil
}

// CurrentBackbuffer returns the texture handle Acquire most
// recently returned.
func (c *Chain) CurrentBackbuffer() resource.TextureHandle {
	return c.textures[c.curImage]
}

// Format returns the swapchain's pixel format.
func (c *Chain) Format() driver.PixelFmt { return c.sc.Format() }

// Destroy releases the underlying swapchain. The caller must
// ensure every in-flight frame has retired first (WaitAll on the
// ring), since swapchain teardown assumes no outstanding GPU
// access to any backbuffer.
func (c *Chain) Destroy() { c.sc.Destroy() }
