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

// Package store implements the device's persistent key-value layout:
// three namespaces (factory, config, counters) accessed synchronously
// from the caller's perspective.
package store

import "github.com/gravitational/trace"

// Namespace partitions the key space the way the device's NVS does.
type Namespace string

const (
	NamespaceFactory Namespace = "factory"
	NamespaceConfig Namespace = "config"
	NamespaceCounters Namespace = "counters"
)

// Store is the synchronous key-value contract every backend
// implementation (bbolt-backed or in-memory) satisfies, mirroring
// lib/backend's Get/Put/Delete shape generalized over namespaces
// instead of a single flat keyspace.
type Store interface {
	// Get returns the value at key in ns, or a trace.NotFound error if
	// it has never been set.
	Get(ns Namespace, key string) ([]byte, error)
	// Put writes value at key in ns, creating or overwriting it.
	Put(ns Namespace, key string, value []byte) error
	// Delete removes key from ns. Deleting an absent key is not an
	// error.
	Delete(ns Namespace, key string) error
	// Close releases any resources (file handles) held by the store.
	Close() error
}

// notFound builds the trace.NotFound error Get returns for a key that
// has never been set.
func notFound(ns Namespace, key string) error {
	return trace.NotFound("store: key %q not found in namespace %q", key, ns)
}
