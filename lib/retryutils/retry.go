/*
Copyright 2024 The WeaveCore Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

 http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package retryutils provides the jittered backoff helpers shared by
// the tunnel's reconnect policy and the subscription client's
// resubscribe policy.
package retryutils

import (
	"math/rand"
	"sync"
	"time"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
)

// Jitter perturbs a duration, e.g. to avoid a thundering herd of
// simultaneously expiring timers.
type Jitter func(time.Duration) time.Duration

// NewHalfJitter returns a Jitter that picks uniformly in [d/2, d].
func NewHalfJitter() Jitter { return halfJitter }

// NewSeventhJitter returns a Jitter that picks uniformly in
// [6d/7, d], a narrower spread used for frequent periodic sends where
// a full half-jitter would be too bursty.
func NewSeventhJitter() Jitter { return seventhJitter }

// HalfJitter is the unbound form of NewHalfJitter, for call sites
// that want a one-off jittered duration without keeping a Jitter value
// around.
func HalfJitter(d time.Duration) time.Duration { return halfJitter(d) }

// SeventhJitter is the unbound form of NewSeventhJitter.
func SeventhJitter(d time.Duration) time.Duration { return seventhJitter(d) }

func halfJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	half := d / 2
	return half + randDuration(half+1)
}

func seventhJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	sixSevenths := d - d/7
	return sixSevenths + randDuration(d-sixSevenths+1)
}

func randDuration(n time.Duration) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(n)))
}

// LinearConfig configures a Retry that waits First, then First+Step,
// First+2*Step, .. capped at Max, with Jitter applied each time Duration is read.
type LinearConfig struct {
	First time.Duration
	Step time.Duration
	Max time.Duration
	Jitter Jitter
	Clock clockwork.Clock
}

// CheckAndSetDefaults validates the config and fills in defaults.
func (c *LinearConfig) CheckAndSetDefaults() error {
	if c.Step <= 0 {
		return trace.BadParameter("retryutils: Step must be positive")
	}
	if c.Max <= 0 {
		c.Max = c.Step * 10
	}
	if c.Jitter == nil {
		c.Jitter = NewHalfJitter()
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Retry is a linear (additive-step) backoff with jitter, reset on
// success and incremented on failure.
type Retry struct {
	cfg LinearConfig

	mu sync.Mutex
	attempt int
}

// NewLinear returns a ready-to-use linear Retry.
func NewLinear(cfg LinearConfig) (*Retry, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &Retry{cfg: cfg}, nil
}

// Duration returns the jittered delay for the current attempt without
// advancing it.
func (r *Retry) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.durationLocked()
}

func (r *Retry) durationLocked() time.Duration {
	if r.attempt == 0 {
		return r.cfg.Jitter(r.cfg.First)
	}
	d := r.cfg.First + time.Duration(r.attempt)*r.cfg.Step
	if d > r.cfg.Max {
		d = r.cfg.Max
	}
	return r.cfg.Jitter(d)
}

// Inc advances to the next attempt, called after a failure.
func (r *Retry) Inc() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempt++
}

// Reset returns to attempt 0, called after a success.
func (r *Retry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempt = 0
}

// After returns a channel that fires after Duration, using the
// configured clock (so tests can advance a FakeClock instead of
// sleeping).
func (r *Retry) After() <-chan time.Time {
	return r.cfg.Clock.After(r.Duration())
}

// FibonacciConfig configures a Fibonacci backoff, matching the tunnel
// reconnect policy: delay = fib(min(attempt, MaxAttempt)) * BaseStep,
// then a uniform random value in [max(MinPercent*delay, MinDelay), delay].
type FibonacciConfig struct {
	BaseStep time.Duration
	MaxAttempt int
	MinPercent float64
	MinDelay time.Duration
	Clock clockwork.Clock
}

// CheckAndSetDefaults fills in the defaults: a 10-step cap and a 30%
// floor.
func (c *FibonacciConfig) CheckAndSetDefaults() error {
	if c.BaseStep <= 0 {
		return trace.BadParameter("retryutils: BaseStep must be positive")
	}
	if c.MaxAttempt <= 0 {
		c.MaxAttempt = 10
	}
	if c.MinPercent <= 0 {
		c.MinPercent = 0.30
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Fibonacci is the tunnel's reconnect backoff: fib(min(k,10)) * base,
// then a uniform floor-bounded jitter
type Fibonacci struct {
	cfg FibonacciConfig

	mu sync.Mutex
	attempt int
}

// NewFibonacci returns a ready-to-use Fibonacci backoff.
func NewFibonacci(cfg FibonacciConfig) (*Fibonacci, error) {
	if err := cfg.CheckAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &Fibonacci{cfg: cfg}, nil
}

func fib(n int) int64 {
	if n <= 1 {
		return int64(n)
	}
	var a, b int64 = 0, 1
	for i := 2; i <= n; i++ {
		a, b = b, a+b
	}
	return b
}

// Duration returns the jittered delay for the current consecutive
// failure count without advancing it.
func (f *Fibonacci) Duration() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := f.attempt
	if k > f.cfg.MaxAttempt {
		k = f.cfg.MaxAttempt
	}
	delay := time.Duration(fib(k)) * f.cfg.BaseStep
	floor := time.Duration(float64(delay) * f.cfg.MinPercent)
	if floor < f.cfg.MinDelay {
		floor = f.cfg.MinDelay
	}
	if floor >= delay {
		return delay
	}
	return floor + randDuration(delay-floor+1)
}

// Attempt reports the current consecutive-failure count.
func (f *Fibonacci) Attempt() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempt
}

// Inc advances the consecutive-failure count, called after a
// reconnect failure.
func (f *Fibonacci) Inc() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempt++
}

// Reset zeroes the consecutive-failure count, called after a
// successful reconnect.
func (f *Fibonacci) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempt = 0
}

// After returns a channel that fires after Duration, using the
// configured clock.
func (f *Fibonacci) After() <-chan time.Time {
	return f.cfg.Clock.After(f.Duration())
}
