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

package bdx

// BlockQuery asks the sender for the next block, identified by an
// 8-bit counter (BDX pre-v1). Use BlockQueryV1 for the 32-bit-counter
// form.
type BlockQuery struct {
	BlockCounter uint8
}

// NewBlockQuery builds a BlockQuery for the given counter.
func NewBlockQuery(counter uint8) *BlockQuery {
	return &BlockQuery{BlockCounter: counter}
}

// PackedLength returns the length of q when packed: just the counter.
func (q *BlockQuery) PackedLength() int { return 1 }

// Pack serializes q to its wire form.
func (q *BlockQuery) Pack() []byte {
	var w byteWriter
	w.writeByte(q.BlockCounter)
	return w.bytes()
}

// ParseBlockQuery parses a BlockQuery wire image.
func ParseBlockQuery(buf []byte) (*BlockQuery, error) {
	r := newByteReader(buf)
	c, err := r.readByte()
	if err != nil {
		return nil, err
	}
	return &BlockQuery{BlockCounter: c}, nil
}

// Equal reports whether q and other carry the same counter.
func (q *BlockQuery) Equal(other *BlockQuery) bool {
	return other != nil && q.BlockCounter == other.BlockCounter
}

// BlockQueryV1 is BlockQuery's BDX-v1 form, using a 32-bit counter.
type BlockQueryV1 struct {
	BlockCounter uint32
}

// NewBlockQueryV1 builds a BlockQueryV1 for the given counter.
func NewBlockQueryV1(counter uint32) *BlockQueryV1 {
	return &BlockQueryV1{BlockCounter: counter}
}

// PackedLength returns the length of q when packed: just the counter.
func (q *BlockQueryV1) PackedLength() int { return 4 }

// Pack serializes q to its wire form.
func (q *BlockQueryV1) Pack() []byte {
	var w byteWriter
	w.write32(q.BlockCounter)
	return w.bytes()
}

// ParseBlockQueryV1 parses a BlockQueryV1 wire image.
func ParseBlockQueryV1(buf []byte) (*BlockQueryV1, error) {
	r := newByteReader(buf)
	c, err := r.read32()
	if err != nil {
		return nil, err
	}
	return &BlockQueryV1{BlockCounter: c}, nil
}

// Equal reports whether q and other carry the same counter.
func (q *BlockQueryV1) Equal(other *BlockQueryV1) bool {
	return other != nil && q.BlockCounter == other.BlockCounter
}
