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
	"errors"
	"path/filepath"
	"testing"

	"github.com/gravitational/trace"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	bolt, err := OpenBoltStore(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = bolt.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"bolt": bolt,
	}
}

func TestStoreGetMissingKeyIsNotFound(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
				_, err := s.Get(NamespaceConfig, "nope")
				require.True(t, trace.IsNotFound(err))
			})
	}
}

func TestStorePutGetDeleteRoundTrip(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
				require.NoError(t, s.Put(NamespaceFactory, "k", []byte("v")))
				v, err := s.Get(NamespaceFactory, "k")
				require.NoError(t, err)
				require.Equal(t, []byte("v"), v)

				require.NoError(t, s.Delete(NamespaceFactory, "k"))
				_, err = s.Get(NamespaceFactory, "k")
				require.True(t, trace.IsNotFound(err))
			})
	}
}

func TestFactoryNamespaceTypedAccessors(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
				f := Factory(s)
				require.NoError(t, f.SetSerialNumber("SN-001"))
				require.NoError(t, f.SetDeviceID(0x0102030405060708))

				sn, err := f.SerialNumber()
				require.NoError(t, err)
				require.Equal(t, "SN-001", sn)

				id, err := f.DeviceID()
				require.NoError(t, err)
				require.Equal(t, uint64(0x0102030405060708), id)
			})
	}
}

func TestFailSafeArmedTriggersResetOnBoot(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
				c := Config(s)
				armed, err := c.IsArmed()
				require.NoError(t, err)
				require.False(t, armed)

				var resetCalled bool
				require.NoError(t, CheckFailSafeOnBoot(s, func() error { resetCalled = true; return nil }))
				require.False(t, resetCalled)

				require.NoError(t, c.Arm())
				armed, err = c.IsArmed()
				require.NoError(t, err)
				require.True(t, armed)

				require.NoError(t, CheckFailSafeOnBoot(s, func() error { resetCalled = true; return nil }))
				require.True(t, resetCalled)

				require.NoError(t, c.Disarm())
				armed, err = c.IsArmed()
				require.NoError(t, err)
				require.False(t, armed)
			})
	}
}

func TestFailSafeOnBootPropagatesResetError(t *testing.T) {
	s := NewMemoryStore()
	c := Config(s)
	require.NoError(t, c.Arm())

	wantErr := errors.New("factory reset failed")
	err := CheckFailSafeOnBoot(s, func() error { return wantErr })
	require.ErrorIs(t, err, wantErr)
}

func TestCountersIncrementIsMonotonic(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
				c := Counters(s)
				v, err := c.Get("boot-count")
				require.NoError(t, err)
				require.Equal(t, uint32(0), v)

				v, err = c.Increment("boot-count", 1)
				require.NoError(t, err)
				require.Equal(t, uint32(1), v)

				v, err = c.Increment("boot-count", 1)
				require.NoError(t, err)
				require.Equal(t, uint32(2), v)
			})
	}
}
