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

import (
	"bytes"
	"encoding/binary"
)

// byteWriter accumulates a BDX message wire image a field at a time, the
// Go analogue of the original's MessageIterator writing into a packet
// buffer.
type byteWriter struct {
	buf bytes.Buffer
}

func (w *byteWriter) writeByte(b uint8) { w.buf.WriteByte(b) }

func (w *byteWriter) write16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

func (w *byteWriter) write32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *byteWriter) write64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

// writeString packs a length-prefixed UTF-8 string (2-byte length,
// matching ReferencedString's wire form).
func (w *byteWriter) writeString(s string) {
	w.write16(uint16(len(s)))
	w.buf.WriteString(s)
}

func (w *byteWriter) writeBytes(b []byte) { w.buf.Write(b) }

func (w *byteWriter) bytes() []byte { return w.buf.Bytes() }

// byteReader consumes a BDX message wire image a field at a time.
type byteReader struct {
	buf []byte
	pos int
}

func newByteReader(buf []byte) *byteReader { return &byteReader{buf: buf} }

func (r *byteReader) remaining() int { return len(r.buf) - r.pos }

func (r *byteReader) readByte() (uint8, error) {
	if r.remaining() < 1 {
		return 0, ErrShortBuffer
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *byteReader) read16() (uint16, error) {
	if r.remaining() < 2 {
		return 0, ErrShortBuffer
	}
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *byteReader) read32() (uint32, error) {
	if r.remaining() < 4 {
		return 0, ErrShortBuffer
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *byteReader) read64() (uint64, error) {
	if r.remaining() < 8 {
		return 0, ErrShortBuffer
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *byteReader) readString() (string, error) {
	n, err := r.read16()
	if err != nil {
		return "", err
	}
	if r.remaining() < int(n) {
		return "", ErrShortBuffer
	}
	s := string(r.buf[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}

// readRest returns everything left in the buffer without copying,
// mirroring the original's habit of borrowing the tail of the packet
// buffer for metadata/block data rather than copying it out.
func (r *byteReader) readRest() []byte {
	b := r.buf[r.pos:]
	r.pos = len(r.buf)
	return b
}

func countModeBits(m TransferMode) int {
	n := 0
	for _, bit := range []TransferMode{ModeSenderDrive, ModeReceiverDrive, ModeAsynchronous} {
		if m&bit != 0 {
			n++
		}
	}
	return n
}
