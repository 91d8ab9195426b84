// Package commands implements the immediate command
// scheduler: a fixed-size ring of command-buffer recorders,
// each paired with a fence and a binary semaphore, that issues
// a monotonically increasing SubmitToken on every submission.
//
// Grounded on original_source/lib/ImmediateCommands.h
// (kMaxCommandBuffers, CommandBufferWrapper, acquire/submit/
// wait/_purge, acquireLastSubmitSemaphore).
package commands

import (
	"errors"
	"time"

	"github.com/vgpu/framegraph/deferred"
	"github.com/vgpu/framegraph/driver"
)

// RingSize is the number of command-buffer recorders kept in
// flight, mirroring the original's kMaxCommandBuffers.
const RingSize = 64

// ErrRingExhausted means every recorder in the ring is still
// encoding or awaiting retirement; the caller must wait for one
// to free up (spec §7 class 2: device-capacity overflow).
var ErrRingExhausted = errors.New("commands: no free recorder in ring")

func newCommandsErr(reason string) error {
	return errors.New("commands: " + reason)
}

// recorder wraps one command buffer together with the
// synchronization primitives that track its lifetime.
type recorder struct {
	cb        driver.CmdBuffer
	fence     driver.Fence
	sem       driver.Semaphore
	token     deferred.SubmitToken
	allocated bool
	encoding  bool
}

// Ring is the immediate command scheduler (spec §4.D). It owns
// RingSize recorders and submits them to a single driver.GPU
// queue, so submission order always equals completion order.
type Ring struct {
	gpu   driver.GPU
	recs  [RingSize]recorder
	next  int
	last  deferred.SubmitToken
	ctr   deferred.SubmitToken
	lastSem driver.Semaphore
}

// NewRing creates a ring bound to gpu. Recorders are allocated
// lazily, on first Acquire, matching the original's on-demand
// command-buffer allocation.
func NewRing(gpu driver.GPU) *Ring {
	return &Ring{gpu: gpu, ctr: 1}
}

// Acquire returns the index of a recorder ready for a fresh
// Begin/.../End/Submit cycle, reclaiming the first retired
// recorder it finds (mirroring ImmediateCommands::_purge in
// the original, folded into acquire rather than run as a
// separate pass).
func (r *Ring) Acquire() (int, error) {
	for i := range r.recs {
		rec := &r.recs[i]
		if rec.encoding {
			continue
		}
		if !rec.allocated {
			cb, err := r.gpu.NewCmdBuffer()
			if err != nil {
				return 0, newCommandsErr("NewCmdBuffer: " + err.Error())
			}
			fence, err := r.gpu.NewFence(false)
			if err != nil {
				return 0, newCommandsErr("NewFence: " + err.Error())
			}
			sem, err := r.gpu.NewSemaphore()
			if err != nil {
				return 0, newCommandsErr("NewSemaphore: " + err.Error())
			}
			rec.cb, rec.fence, rec.sem, rec.allocated = cb, fence, sem, true
		} else {
			signaled, err := rec.fence.Signaled()
			if err != nil {
				return 0, newCommandsErr("Signaled: " + err.Error())
			}
			if !signaled {
				continue
			}
			if err := rec.fence.Reset(); err != nil {
				return 0, newCommandsErr("Reset: " + err.Error())
			}
		}
		if err := rec.cb.Begin(); err != nil {
			return 0, newCommandsErr("Begin: " + err.Error())
		}
		rec.encoding = true
		r.next = i
		return i, nil
	}
	return 0, ErrRingExhausted
}

// CmdBuffer returns the driver.CmdBuffer for the recorder at
// index i, for the caller to record into.
func (r *Ring) CmdBuffer(i int) driver.CmdBuffer { return r.recs[i].cb }

// Submit ends recording on recorder i and submits it to the
// GPU, waiting on extraWait (if non-nil; used to chain a
// swapchain acquire semaphore) and signaling the recorder's own
// fence and semaphore. It returns the SubmitToken identifying
// this submission.
func (r *Ring) Submit(i int, extraWait *driver.SemaphoreWait) (deferred.SubmitToken, error) {
	rec := &r.recs[i]
	if !rec.encoding {
		return 0, newCommandsErr("Submit: recorder not encoding")
	}
	if err := rec.cb.End(); err != nil {
		return 0, newCommandsErr("End: " + err.Error())
	}
	tok := r.ctr
	r.ctr++
	rec.token = tok
	rec.encoding = false

	info := driver.SubmitInfo{
		Wait:        extraWait,
		SignalFence: rec.fence,
		SignalSem:   rec.sem,
	}
	if err := r.gpu.Submit(rec.cb, info); err != nil {
		return 0, newCommandsErr("Submit: " + err.Error())
	}
	r.last = tok
	r.lastSem = rec.sem
	return tok, nil
}

// Wait blocks until token has retired, or timeout elapses.
func (r *Ring) Wait(token deferred.SubmitToken, timeout time.Duration) (bool, error) {
	for i := range r.recs {
		rec := &r.recs[i]
		if !rec.allocated || rec.token != token {
			continue
		}
		return rec.fence.Wait(timeout)
	}
	// A token with no matching recorder has either already
	// been reused (and is therefore retired) or never existed.
	return token <= r.last, nil
}

// IsRetired reports whether token has completed. If fastCheckOnly
// is set, the fence is not polled: a token still held by a
// recorder is reported as not retired. A token held by no
// recorder is reported retired iff it is no greater than the
// last submitted token. The ring keeps no cached retirement
// threshold.
func (r *Ring) IsRetired(token deferred.SubmitToken, fastCheckOnly bool) bool {
	for i := range r.recs {
		rec := &r.recs[i]
		if !rec.allocated || rec.token != token {
			continue
		}
		if fastCheckOnly {
			return false
		}
		signaled, err := rec.fence.Signaled()
		return err == nil && signaled
	}
	return token <= r.last
}

// LastSubmitToken returns the token of the most recent
// submission, or 0 if none has occurred yet.
func (r *Ring) LastSubmitToken() deferred.SubmitToken { return r.last }

// NextSubmitToken returns the token that the next call to
// Submit will issue.
func (r *Ring) NextSubmitToken() deferred.SubmitToken { return r.ctr }

// TakeLastSubmitSemaphore returns the semaphore signaled by the
// most recent submission and clears it, so it can only be taken
// once. Grounded on ImmediateCommands::acquireLastSubmitSemaphore,
// used to chain a command buffer's completion into the next
// swapchain present without an extra fence round-trip.
func (r *Ring) TakeLastSubmitSemaphore() driver.Semaphore {
	s := r.lastSem
	r.lastSem = nil
	return s
}

// WaitAll blocks until every in-flight recorder has retired. It
// is meant for shutdown.
func (r *Ring) WaitAll(timeout time.Duration) error {
	for i := range r.recs {
		rec := &r.recs[i]
		if !rec.allocated || rec.encoding {
			continue
		}
		if _, err := rec.fence.Wait(timeout); err != nil {
			return err
		}
	}
	return nil
}

// Destroy releases every allocated recorder's driver resources.
// WaitAll should be called first to avoid destroying resources
// the GPU is still using.
func (r *Ring) Destroy() {
	for i := range r.recs {
		rec := &r.recs[i]
		if !rec.allocated {
			continue
		}
		rec.cb.Destroy()
		rec.fence.Destroy()
		rec.sem.Destroy()
		rec.allocated = false
	}
}
