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

import "time"

// PackedDate is the compact ordinal-comparable 32-bit encoding of a
// calendar date/time at seconds resolution, counted from
// 2000-01-01T00:00:00Z with every month taken as 31 days (see
// packedSeconds). The sentinel value 0 means "no well-defined
// expiration".
type PackedDate uint32

// NoWellDefinedExpiration is the sentinel packed date meaning the
// certificate never expires (round-trips to 9999-12-31T23:59:59Z).
const NoWellDefinedExpiration PackedDate = 0

const (
	epochYear = 2000
	secondsPerMinute = 60
	secondsPerHour = 60 * secondsPerMinute
	kSecondsPerDay = 24 * secondsPerHour
	sentinelYear = 9999
	sentinelMonth = 12
	sentinelDay = 31
	sentinelHour = 23
	sentinelMinute = 59
	sentinelSecond = 59
)

// packedSeconds computes the formula:
//
//	seconds = (((((year-2000)*12 + month-1)*31 + day-1)*24 + hour)*60 + minute)*60 + second
func packedSeconds(year int, month, day, hour, minute, second uint32) uint32 {
	return ((((uint32(year-epochYear)*12+(month-1))*31+(day-1))*24+hour)*60+minute)*60 + second
}

// PackTime packs a calendar date/time into a PackedDate (seconds
// resolution). The sentinel 9999-12-31T23:59:59Z packs to 0.
func PackTime(t time.Time) PackedDate {
	t = t.UTC()
	if t.Year() == sentinelYear && int(t.Month()) == sentinelMonth && t.Day() == sentinelDay &&
	t.Hour() == sentinelHour && t.Minute() == sentinelMinute && t.Second() == sentinelSecond {
		return NoWellDefinedExpiration
	}
	return PackedDate(packedSeconds(t.Year(), uint32(t.Month()), uint32(t.Day()), uint32(t.Hour()), uint32(t.Minute()), uint32(t.Second())))
}

// PackDate packs a calendar date (day resolution, time truncated to
// midnight) into a PackedDate.
func PackDate(year int, month, day uint32) PackedDate {
	return PackTime(time.Date(year, time.Month(month), int(day), 0, 0, 0, 0, time.UTC))
}

// UnpackTime expands a PackedDate back into a calendar time. The
// sentinel 0 unpacks to 9999-12-31T23:59:59Z, "no well-defined
// expiration" marker.
func (p PackedDate) UnpackTime() time.Time {
	if p == NoWellDefinedExpiration {
		return time.Date(sentinelYear, sentinelMonth, sentinelDay, sentinelHour, sentinelMinute, sentinelSecond, 0, time.UTC)
	}
	seconds := uint32(p)
	second := seconds % 60
	seconds /= 60
	minute := seconds % 60
	seconds /= 60
	hour := seconds % 24
	seconds /= 24
	day := seconds%31 + 1
	seconds /= 31
	month := seconds%12 + 1
	seconds /= 12
	year := int(seconds) + epochYear
	return time.Date(year, time.Month(month), int(day), int(hour), int(minute), int(second), 0, time.UTC)
}

// ToTime is an alias of UnpackTime kept for readability at call sites
// that only care about the instant.
func (p PackedDate) ToTime() time.Time { return p.UnpackTime() }

// EndOfDay returns ToTime + (kSecondsPerDay - 1) seconds, the upper
// bound ValidateCert uses for NotAfter comparisons.
func (p PackedDate) EndOfDay() time.Time {
	return p.ToTime().Add(time.Duration(kSecondsPerDay-1) * time.Second)
}
