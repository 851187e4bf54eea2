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

package retryutils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHalfJitterBounds(t *testing.T) {
	d := 100 * time.Millisecond
	for i := 0; i < 50; i++ {
		j := HalfJitter(d)
		require.GreaterOrEqual(t, j, d/2)
		require.LessOrEqual(t, j, d)
	}
}

func TestSeventhJitterBounds(t *testing.T) {
	d := 700 * time.Millisecond
	for i := 0; i < 50; i++ {
		j := SeventhJitter(d)
		require.GreaterOrEqual(t, j, d-d/7)
		require.LessOrEqual(t, j, d)
	}
}

func TestLinearRetryIncAndReset(t *testing.T) {
	r, err := NewLinear(LinearConfig{
			First: 10 * time.Millisecond,
			Step: 10 * time.Millisecond,
			Max: 100 * time.Millisecond,
			Jitter: func(d time.Duration) time.Duration { return d },
		})
	require.NoError(t, err)

	first := r.Duration()
	require.LessOrEqual(t, first, 10*time.Millisecond)

	r.Inc()
	r.Inc()
	grown := r.Duration()
	require.Greater(t, grown, first)

	r.Reset()
	require.Equal(t, first, r.Duration())
}

func TestFibonacciBackoffGrowsAndCaps(t *testing.T) {
	f, err := NewFibonacci(FibonacciConfig{
			BaseStep: 10 * time.Millisecond,
			MaxAttempt: 5,
			MinDelay: 1 * time.Millisecond,
		})
	require.NoError(t, err)

	var last time.Duration
	for i := 0; i < 10; i++ {
		d := f.Duration()
		require.GreaterOrEqual(t, d, last*0) // non-negative, monotonic check below is approximate due to jitter
		last = d
		f.Inc()
	}
	// attempt is now past MaxAttempt; Duration clamps k to MaxAttempt, so
	// the delay is at most fib(MaxAttempt)*BaseStep.
	capped := fib(f.cfg.MaxAttempt) * int64(10*time.Millisecond)
	require.LessOrEqual(t, int64(f.Duration()), capped)

	f.Reset()
	require.Equal(t, 0, f.Attempt())
}
