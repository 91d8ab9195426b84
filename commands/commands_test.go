// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package commands

import (
	"testing"
	"time"

	"github.com/vgpu/framegraph/drivertest"
)

func TestAcquireSubmitRetires(t *testing.T) {
	gpu := drivertest.New()
	r := NewRing(gpu)

	i, err := r.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	tok, err := r.Submit(i, nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	retired, err := r.Wait(tok, time.Second)
	if err != nil || !retired {
		t.Fatalf("Wait(%v) = %v, %v, want true, nil", tok, retired, err)
	}
	if !r.IsRetired(tok, false) {
		t.Fatal("IsRetired must report true once the fence has signaled")
	}
}

func TestSubmitTokensMonotonic(t *testing.T) {
	gpu := drivertest.New()
	r := NewRing(gpu)

	var last uint64
	for n := 0; n < 5; n++ {
		i, err := r.Acquire()
		if err != nil {
			t.Fatalf("Acquire: %v", err)
		}
		tok, err := r.Submit(i, nil)
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		if uint64(tok) <= last {
			t.Fatalf("token %d did not increase past %d", tok, last)
		}
		last = uint64(tok)
	}
}

func TestTakeLastSubmitSemaphoreIsOneShot(t *testing.T) {
	gpu := drivertest.New()
	r := NewRing(gpu)

	i, _ := r.Acquire()
	r.Submit(i, nil)

	sem := r.TakeLastSubmitSemaphore()
	if sem == nil {
		t.Fatal("expected a non-nil semaphore after a submission")
	}
	if sem2 := r.TakeLastSubmitSemaphore(); sem2 != nil {
		t.Fatal("TakeLastSubmitSemaphore must return nil the second time")
	}
}

func TestRingExhaustion(t *testing.T) {
	gpu := drivertest.New()
	r := NewRing(gpu)

	for n := 0; n < RingSize; n++ {
		if _, err := r.Acquire(); err != nil {
			t.Fatalf("Acquire #%d: %v", n, err)
		}
	}
	if _, err := r.Acquire(); err != ErrRingExhausted {
		t.Fatalf("Acquire past capacity = %v, want ErrRingExhausted", err)
	}
}
