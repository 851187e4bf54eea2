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

package weavecert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestPackUnpackTimeRoundTrip exercises P2: unpack(pack(t)) == t for an
// arbitrary calendar instant within the packed range.
func TestPackUnpackTimeRoundTrip(t *testing.T) {
	in := time.Date(2024, 7, 15, 13, 45, 9, 0, time.UTC)
	p := PackTime(in)
	require.Equal(t, in, p.UnpackTime())
}

// TestPackedDateIsOrdinalComparable exercises P2's ordinal-comparability
// requirement: later calendar instants pack to larger PackedDate values.
func TestPackedDateIsOrdinalComparable(t *testing.T) {
	earlier := PackTime(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	later := PackTime(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	require.Less(t, uint32(earlier), uint32(later))
}

// TestNoWellDefinedExpirationSentinel exercises the sentinel: packing
// 9999-12-31T23:59:59Z yields 0, and 0 unpacks back to it.
func TestNoWellDefinedExpirationSentinel(t *testing.T) {
	sentinel := time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)
	require.Equal(t, NoWellDefinedExpiration, PackTime(sentinel))
	require.Equal(t, sentinel, NoWellDefinedExpiration.UnpackTime())
}

// TestEndOfDay exercises ValidateCert's expiration boundary: a
// certificate expiring on a given day remains valid through its last
// second.
func TestEndOfDay(t *testing.T) {
	d := PackDate(2025, 3, 10)
	end := d.EndOfDay()
	require.Equal(t, 2025, end.Year())
	require.Equal(t, time.March, end.Month())
	require.Equal(t, 10, end.Day())
	require.Equal(t, 23, end.Hour())
	require.Equal(t, 59, end.Minute())
	require.Equal(t, 59, end.Second())
}
