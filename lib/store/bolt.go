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
	"time"

	"github.com/gravitational/trace"
	"go.etcd.io/bbolt"
)

// BoltStore persists the factory/config/counters namespaces to a single
// bbolt file, one bucket per namespace, created on open.
type BoltStore struct {
	db *bbolt.DB
}

var namespaces = []Namespace{NamespaceFactory, NamespaceConfig, NamespaceCounters}

// OpenBoltStore opens (creating if absent) a bbolt-backed Store at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, trace.Wrap(err, "opening persistent store at %v", path)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
			for _, ns := range namespaces {
				if _, err := tx.CreateBucketIfNotExists([]byte(ns)); err != nil {
					return err
				}
			}
			return nil
		})
	if err != nil {
		_ = db.Close()
		return nil, trace.Wrap(err, "initializing persistent store buckets")
	}
	return &BoltStore{db: db}, nil
}

func (b *BoltStore) Get(ns Namespace, key string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
			bucket := tx.Bucket([]byte(ns))
			if bucket == nil {
				return notFound(ns, key)
			}
			v := bucket.Get([]byte(key))
			if v == nil {
				return notFound(ns, key)
			}
			out = make([]byte, len(v))
			copy(out, v)
			return nil
		})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *BoltStore) Put(ns Namespace, key string, value []byte) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
			bucket, err := tx.CreateBucketIfNotExists([]byte(ns))
			if err != nil {
				return trace.Wrap(err)
			}
			return bucket.Put([]byte(key), value)
		})
}

func (b *BoltStore) Delete(ns Namespace, key string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
			bucket := tx.Bucket([]byte(ns))
			if bucket == nil {
				return nil
			}
			return bucket.Delete([]byte(key))
		})
}

func (b *BoltStore) Close() error {
	return trace.Wrap(b.db.Close())
}
