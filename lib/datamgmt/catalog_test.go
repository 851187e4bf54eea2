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

package datamgmt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weaveio/weavecore/lib/tlv"
)

type fakeTrait struct {
	key InstanceKey
	events []EventID
}

func (t *fakeTrait) Key() InstanceKey { return t.key }
func (t *fakeTrait) OnEvent(id EventID, _ any) { t.events = append(t.events, id) }

func TestCatalogAddReusesSlotWithoutBumpingGeneration(t *testing.T) {
	cat := NewTraitCatalog[*fakeTrait](4)
	key := InstanceKey{ResourceID: 1, ProfileID: 2, InstanceID: 0}
	inst := &fakeTrait{key: key}

	h1, err := cat.Add(inst, Address{ResourceID: 1, ProfileID: 2})
	require.NoError(t, err)

	updated := &fakeTrait{key: key}
	h2, err := cat.Add(updated, Address{ResourceID: 1, ProfileID: 2})
	require.NoError(t, err)
	require.Equal(t, h1, h2)

	got, err := cat.Locate(h1)
	require.NoError(t, err)
	require.Same(t, updated, got)
}

func TestCatalogHandleGoesStaleAfterRemoveAndReuse(t *testing.T) {
	cat := NewTraitCatalog[*fakeTrait](1)
	first := &fakeTrait{key: InstanceKey{ResourceID: 1, ProfileID: 1}}
	h, err := cat.Add(first, Address{ResourceID: 1, ProfileID: 1})
	require.NoError(t, err)

	cat.Remove(first)
	_, err = cat.Locate(h)
	require.ErrorIs(t, err, ErrNoSuchInstance)

	second := &fakeTrait{key: InstanceKey{ResourceID: 1, ProfileID: 2}}
	_, err = cat.Add(second, Address{ResourceID: 1, ProfileID: 2})
	require.NoError(t, err)

	_, err = cat.Locate(h)
	require.ErrorIs(t, err, ErrHandleStale)
}

func TestCatalogFullReturnsNoMemory(t *testing.T) {
	cat := NewTraitCatalog[*fakeTrait](1)
	_, err := cat.Add(&fakeTrait{key: InstanceKey{ResourceID: 1}}, Address{})
	require.NoError(t, err)
	_, err = cat.Add(&fakeTrait{key: InstanceKey{ResourceID: 2}}, Address{})
	require.ErrorIs(t, err, ErrCatalogFull)
}

func TestCatalogPrepareSubscriptionPathListOverflow(t *testing.T) {
	cat := NewTraitCatalog[*fakeTrait](2)
	_, err := cat.Add(&fakeTrait{key: InstanceKey{ResourceID: 1}}, Address{ResourceID: 1})
	require.NoError(t, err)
	_, err = cat.Add(&fakeTrait{key: InstanceKey{ResourceID: 2}}, Address{ResourceID: 2})
	require.NoError(t, err)

	buf := make([]PathListEntry, 1)
	n, err := cat.PrepareSubscriptionPathList(buf)
	require.ErrorIs(t, err, ErrBufferTooSmall)
	require.Equal(t, 1, n)

	buf = make([]PathListEntry, 2)
	n, err = cat.PrepareSubscriptionPathList(buf)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestCatalogAddressToHandleRoundTrip(t *testing.T) {
	cat := NewTraitCatalog[*fakeTrait](4)
	addr := Address{ResourceID: 7, ProfileID: 42, InstanceID: 3, HasInstance: true}
	h, err := cat.Add(&fakeTrait{key: InstanceKey{ResourceID: 7, ProfileID: 42, InstanceID: 3}}, addr)
	require.NoError(t, err)

	w := tlv.NewGrowableWriter()
	require.NoError(t, EncodeAddress(w, addr))
	require.NoError(t, w.Finalize())

	r := tlv.NewReader(w.Bytes())
	ok, err := r.Next()
	require.NoError(t, err)
	require.True(t, ok)

	got, err := cat.AddressToHandle(r)
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestCatalogDispatchEventReachesAllOccupiedSlots(t *testing.T) {
	cat := NewTraitCatalog[*fakeTrait](3)
	a := &fakeTrait{key: InstanceKey{ResourceID: 1}}
	b := &fakeTrait{key: InstanceKey{ResourceID: 2}}
	_, err := cat.Add(a, Address{})
	require.NoError(t, err)
	_, err = cat.Add(b, Address{})
	require.NoError(t, err)

	cat.DispatchEvent(EventID(9), "connectivity")

	require.Equal(t, []EventID{9}, a.events)
	require.Equal(t, []EventID{9}, b.events)
}
