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

package tlv

// ContainerKind distinguishes the four container flavors.
type ContainerKind uint8

const (
	KindStructure ContainerKind = iota
	KindArray
	KindPath
	KindList
)

// ValueKind discriminates the variant carried by a Value.
type ValueKind uint8

const (
	KindSignedInt ValueKind = iota
	KindUnsignedInt
	KindBool
	KindUTF8String
	KindByteString
	KindNull
	KindFloat
	KindContainer
)

// Value is a discriminated TLV variant. Exactly one of the typed fields
// is meaningful, selected by Kind. Container is populated only when
// Kind == KindContainer.
type Value struct {
	Tag Tag
	Kind ValueKind

	Int int64
	UInt uint64
	Bool bool
	Str string
	Bytes []byte
	Float float64
	IsWide bool // the source float/int was 64-bit on the wire

	Container *Container
}

// Container is an ordered sequence of child values under a container-kind
// marker. Structures require unique tags among children; array and path
// preserve order as semantically significant; list preserves duplicates
// but is not itself ordering-sensitive beyond insertion order on the wire.
type Container struct {
	Kind ContainerKind
	Tag Tag
	Elements []Value
}

// NewContainer returns an empty container of the given kind under tag.
func NewContainer(kind ContainerKind, tag Tag) *Container {
	return &Container{Kind: kind, Tag: tag}
}

// Append adds a child value, enforcing the structure-uniqueness invariant.
// It does not enforce path/array ordering semantics (the caller controls
// order by the sequence of Append calls) and does not dedupe list
// elements.
func (c *Container) Append(v Value) error {
	if c.Kind == KindStructure && !v.Tag.IsAnonymous() {
		for _, existing := range c.Elements {
			if existing.Tag.Equal(v.Tag) {
				return ErrDuplicateStructureTag
			}
		}
	}
	c.Elements = append(c.Elements, v)
	return nil
}

// Find returns the first child element with the given tag, or false.
func (c *Container) Find(tag Tag) (Value, bool) {
	for _, v := range c.Elements {
		if v.Tag.Equal(tag) {
			return v, true
		}
	}
	return Value{}, false
}
