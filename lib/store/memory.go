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

import "sync"

// MemoryStore is an in-memory Store, for tests and for platforms with
// no durable NVS.
type MemoryStore struct {
	mu sync.Mutex
	data map[Namespace]map[string][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[Namespace]map[string][]byte)}
}

func (m *MemoryStore) Get(ns Namespace, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket, ok := m.data[ns]
	if !ok {
		return nil, notFound(ns, key)
	}
	v, ok := bucket[key]
	if !ok {
		return nil, notFound(ns, key)
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *MemoryStore) Put(ns Namespace, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bucket, ok := m.data[ns]
	if !ok {
		bucket = make(map[string][]byte)
		m.data[ns] = bucket
	}
	v := make([]byte, len(value))
	copy(v, value)
	bucket[key] = v
	return nil
}

func (m *MemoryStore) Delete(ns Namespace, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if bucket, ok := m.data[ns]; ok {
		delete(bucket, key)
	}
	return nil
}

func (m *MemoryStore) Close() error { return nil }
