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
	"sync"

	"github.com/weaveio/weavecore/lib/tlv"
)

type slot[T Instance] struct {
	occupied bool
	generation uint8
	basePath Address
	instance T
}

// TraitCatalog is a fixed-capacity, generation-tagged container of
// trait instances (sinks on a subscribing device, sources on a
// publishing one). Handles survive Remove/Add churn of
// unrelated slots; a handle stops resolving once its own slot is
// removed and stays invalid after that slot is reused, so a stale handle
// fails loudly instead of silently resolving to the wrong instance.
type TraitCatalog[T Instance] struct {
	mu sync.Mutex
	slots []slot[T]
	cap int
}

// NewTraitCatalog returns an empty catalog that can hold at most
// capacity instances.
func NewTraitCatalog[T Instance](capacity int) *TraitCatalog[T] {
	return &TraitCatalog[T]{cap: capacity}
}

// Add inserts instance at basePath, or updates it in place if an
// occupied slot already matches instance.Key. Reusing a slot does not
// bump its generation, so handles obtained before the update remain
// valid
func (c *TraitCatalog[T]) Add(instance T, basePath Address) (Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := instance.Key()
	for i := range c.slots {
		if c.slots[i].occupied && c.slots[i].instance.Key() == key {
			c.slots[i].instance = instance
			c.slots[i].basePath = basePath
			return newHandle(uint8(i), c.slots[i].generation), nil
		}
	}

	for i := range c.slots {
		if !c.slots[i].occupied {
			c.slots[i].occupied = true
			c.slots[i].generation++
			c.slots[i].instance = instance
			c.slots[i].basePath = basePath
			return newHandle(uint8(i), c.slots[i].generation), nil
		}
	}

	if len(c.slots) >= c.cap {
		return InvalidHandle, ErrCatalogFull
	}
	c.slots = append(c.slots, slot[T]{occupied: true, generation: 1, instance: instance, basePath: basePath})
	return newHandle(uint8(len(c.slots)-1), 1), nil
}

// Remove empties the slot holding instance, if any. The slot's
// generation is left untouched so it bumps on the next Add into it.
func (c *TraitCatalog[T]) Remove(instance T) {
	key := instance.Key()
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.slots {
		if c.slots[i].occupied && c.slots[i].instance.Key() == key {
			var zero T
			c.slots[i].occupied = false
			c.slots[i].instance = zero
			return
		}
	}
}

// Locate returns the instance a still-valid handle refers to.
func (c *TraitCatalog[T]) Locate(h Handle) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	slot, err := c.slotFor(h)
	if err != nil {
		return zero, err
	}
	return slot.instance, nil
}

// LocateHandle returns the handle currently assigned to key, if its
// slot is occupied.
func (c *TraitCatalog[T]) LocateHandle(key InstanceKey) (Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.slots {
		if c.slots[i].occupied && c.slots[i].instance.Key() == key {
			return newHandle(uint8(i), c.slots[i].generation), true
		}
	}
	return InvalidHandle, false
}

func (c *TraitCatalog[T]) slotFor(h Handle) (*slot[T], error) {
	idx := int(h.index())
	if idx >= len(c.slots) || !c.slots[idx].occupied {
		return nil, ErrNoSuchInstance
	}
	if c.slots[idx].generation != h.generation() {
		return nil, ErrHandleStale
	}
	return &c.slots[idx], nil
}

// PrepareSubscriptionPathList fills buf with (handle, basePath) for
// every occupied slot, in slot order, returning the count written. If
// buf is too small to hold every occupied slot it returns
// ErrBufferTooSmall and leaves buf filled up to its own length.
func (c *TraitCatalog[T]) PrepareSubscriptionPathList(buf []PathListEntry) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	overflow := false
	for i := range c.slots {
		if !c.slots[i].occupied {
			continue
		}
		if n >= len(buf) {
			overflow = true
			continue
		}
		buf[n] = PathListEntry{Handle: newHandle(uint8(i), c.slots[i].generation), Address: c.slots[i].basePath}
		n++
	}
	if overflow {
		return n, ErrBufferTooSmall
	}
	return n, nil
}

// Context tags for the wire-level trait address structure.
const (
	ctAddrResourceID uint8 = 1
	ctAddrProfileID uint8 = 2
	ctAddrInstanceID uint8 = 3
	ctAddrVersionMin uint8 = 4
	ctAddrVersionMax uint8 = 5
)

// EncodeAddress writes a trait address as a TLV structure.
func EncodeAddress(w *tlv.Writer, a Address) error {
	if err := w.StartContainer(tlv.AnonymousTag(), tlv.KindStructure); err != nil {
		return err
	}
	if err := w.PutUInt(tlv.ContextTag(ctAddrResourceID), uint64(a.ResourceID)); err != nil {
		return err
	}
	if err := w.PutUInt(tlv.ContextTag(ctAddrProfileID), uint64(a.ProfileID)); err != nil {
		return err
	}
	if a.HasInstance {
		if err := w.PutUInt(tlv.ContextTag(ctAddrInstanceID), uint64(a.InstanceID)); err != nil {
			return err
		}
	}
	if a.Versions.Present {
		if err := w.PutUInt(tlv.ContextTag(ctAddrVersionMin), a.Versions.MinVersion); err != nil {
			return err
		}
		if err := w.PutUInt(tlv.ContextTag(ctAddrVersionMax), a.Versions.MaxVersion); err != nil {
			return err
		}
	}
	return w.EndContainer()
}

// DecodeAddress parses a trait address the reader currently sits on.
func DecodeAddress(r *tlv.Reader) (Address, error) {
	var a Address
	if _, ok := r.ContainerKind(); !ok {
		return a, tlv.ErrWrongType
	}
	if err := r.EnterContainer(); err != nil {
		return a, err
	}
	for {
		ok, err := r.Next()
		if err != nil {
			return a, err
		}
		if !ok {
			break
		}
		switch r.CurrentTag() {
			case tlv.ContextTag(ctAddrResourceID):
			v, err := r.GetUInt()
			if err != nil {
				return a, err
			}
			a.ResourceID = ResourceID(v)
			case tlv.ContextTag(ctAddrProfileID):
			v, err := r.GetUInt()
			if err != nil {
				return a, err
			}
			a.ProfileID = ProfileID(v)
			case tlv.ContextTag(ctAddrInstanceID):
			v, err := r.GetUInt()
			if err != nil {
				return a, err
			}
			a.InstanceID = InstanceID(v)
			a.HasInstance = true
			case tlv.ContextTag(ctAddrVersionMin):
			v, err := r.GetUInt()
			if err != nil {
				return a, err
			}
			a.Versions.MinVersion = v
			a.Versions.Present = true
			case tlv.ContextTag(ctAddrVersionMax):
			v, err := r.GetUInt()
			if err != nil {
				return a, err
			}
			a.Versions.MaxVersion = v
			a.Versions.Present = true
		}
	}
	return a, r.ExitContainer()
}

// AddressToHandle resolves the trait address the reader currently sits
// on to a handle, by linear match against occupied slots.
func (c *TraitCatalog[T]) AddressToHandle(r *tlv.Reader) (Handle, error) {
	addr, err := DecodeAddress(r)
	if err != nil {
		return InvalidHandle, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.slots {
		if !c.slots[i].occupied {
			continue
		}
		key := c.slots[i].instance.Key()
		if key.ResourceID != addr.ResourceID || key.ProfileID != addr.ProfileID {
			continue
		}
		if addr.HasInstance && key.InstanceID != addr.InstanceID {
			continue
		}
		return newHandle(uint8(i), c.slots[i].generation), nil
	}
	return InvalidHandle, ErrNoSuchInstance
}

// HandleToAddress writes handle's slot address to w, validating that
// the slot is still occupied by the generation the handle was minted
// against.
func (c *TraitCatalog[T]) HandleToAddress(h Handle, w *tlv.Writer) error {
	c.mu.Lock()
	s, err := c.slotFor(h)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	addr := s.basePath
	c.mu.Unlock()
	return EncodeAddress(w, addr)
}

// DispatchEvent invokes OnEvent on every occupied slot's instance.
func (c *TraitCatalog[T]) DispatchEvent(eventID EventID, ctx any) {
	c.mu.Lock()
	instances := make([]T, 0, len(c.slots))
	for i := range c.slots {
		if c.slots[i].occupied {
			instances = append(instances, c.slots[i].instance)
		}
	}
	c.mu.Unlock()
	for _, inst := range instances {
		inst.OnEvent(eventID, ctx)
	}
}
