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

// Package datamgmt implements the publish/subscribe data-management
// layer: a generic TraitCatalog of sink/source instances addressable by
// a stable, ABA-safe handle, and the subscription client/handler pair
// that keeps a device's view of those traits synchronized with a peer
// over an exchange.Engine.
package datamgmt

// ResourceID names the fabric resource (typically a device) a trait
// instance belongs to.
type ResourceID uint64

// ProfileID names a trait's schema, e.g. "LocaleSettingsTrait".
type ProfileID uint32

// InstanceID distinguishes multiple instances of the same trait profile
// hosted on the same resource (e.g. multiple thermostat zones).
type InstanceID uint64

// EventID names an event DispatchEvent delivers to every occupied
// catalog slot (e.g. "connectivity changed", "fabric composition
// changed").
type EventID uint16

// Handle is an ABA-safe catalog slot reference: the low byte is the
// slot index, the high byte is that slot's generation at the time the
// handle was minted. A handle from a previous occupant of the slot
// fails HandleToAddress/Locate once the slot has been reused: the
// generation persists and bumps on the next Add into that slot.
type Handle uint16

// InvalidHandle is never returned by Add and never resolves to a slot.
const InvalidHandle Handle = 0xFFFF

func newHandle(index, generation uint8) Handle {
	return Handle(uint16(generation)<<8 | uint16(index))
}

func (h Handle) index() uint8 { return uint8(h) }
func (h Handle) generation() uint8 { return uint8(h >> 8) }

// InstanceKey identifies a trait instance independent of its catalog
// slot: the triple (resource, trait profile, instance) Add reuses an
// existing slot for.
type InstanceKey struct {
	ResourceID ResourceID
	ProfileID ProfileID
	InstanceID InstanceID
}

// VersionRange is the optional version-range qualifier carried on a
// wire-level trait address.
type VersionRange struct {
	Present bool
	MinVersion uint64
	MaxVersion uint64
}

// Address is the wire-level path to a trait instance: resource, trait
// profile, an optional instance id (omitted when the profile has only
// one instance per resource) and an optional version range, as used by
// AddressToHandle/HandleToAddress.
type Address struct {
	ResourceID ResourceID
	ProfileID ProfileID
	InstanceID InstanceID
	HasInstance bool
	Versions VersionRange
}

// Instance is the catalog element contract: a trait sink or source that
// can report its own key and receive dispatched events.
type Instance interface {
	Key() InstanceKey
	OnEvent(eventID EventID, ctx any)
}

// PathListEntry is one element of a prepared subscription path list: a
// handle paired with the address it resolves to
// PrepareSubscriptionPathList.
type PathListEntry struct {
	Handle Handle
	Address Address
}
