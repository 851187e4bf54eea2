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

package store

import (
	"encoding/binary"

	"github.com/gravitational/trace"
)

// CountersNamespace is a typed view over NamespaceCounters: persistent
// monotonic u32 counters keyed by application name.
type CountersNamespace struct{ s Store }

// Counters returns a typed view over s's counters namespace.
func Counters(s Store) CountersNamespace { return CountersNamespace{s: s} }

// Get returns the counter for name, or 0 if it has never been set.
func (c CountersNamespace) Get(name string) (uint32, error) {
	v, err := c.s.Get(NamespaceCounters, name)
	if trace.IsNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(v) != 4 {
		return 0, trace.BadParameter("store: counter %v must be 4 bytes, got %d", name, len(v))
	}
	return binary.BigEndian.Uint32(v), nil
}

// Set overwrites the counter for name.
func (c CountersNamespace) Set(name string, v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return c.s.Put(NamespaceCounters, name, b[:])
}

// Increment adds delta to the counter for name and returns the new
// value. Counters are monotonic: callers should only ever increment.
func (c CountersNamespace) Increment(name string, delta uint32) (uint32, error) {
	cur, err := c.Get(name)
	if err != nil {
		return 0, err
	}
	next := cur + delta
	if err := c.Set(name, next); err != nil {
		return 0, err
	}
	return next, nil
}
