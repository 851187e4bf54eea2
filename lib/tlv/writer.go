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

import (
	"encoding/binary"
	"math"

	"github.com/gravitational/trace"
)

const (
	tagCtlAnonymous = 0
	tagCtlContext = 1
	tagCtlCommon = 2
	tagCtlImplicit = 3
	tagCtlProfile = 4
)

type openContainer struct {
	kind ContainerKind
	seenTags []Tag
}

// Writer serializes TLV elements into a caller-owned buffer. If the
// buffer was constructed with a fixed capacity (NewWriter), writes past
// that capacity fail with ErrBufferTooSmall and leave the buffer
// unmodified so the caller can retry with a larger one. Finalize is
// idempotent but irreversible: once closed, every further write fails
// with ErrWriterClosed.
type Writer struct {
	buf []byte
	fixed bool
	stack []openContainer
	closed bool
}

// NewWriter returns a Writer that appends into buf, failing with
// ErrBufferTooSmall once cap(buf) is exhausted.
func NewWriter(buf []byte) *Writer {
	return &Writer{buf: buf[:0], fixed: true}
}

// NewGrowableWriter returns a Writer backed by a slice that grows as
// needed; it never returns ErrBufferTooSmall.
func NewGrowableWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 64)}
}

// Bytes returns the encoded bytes written so far.
func (w *Writer) Bytes() []byte { return w.buf }

// Len reports the offset where the next element would start. Combined
// with a later call this gives the caller the start of a TBS region.
func (w *Writer) Len() int { return len(w.buf) }

func (w *Writer) appendRaw(b []byte) error {
	if w.closed {
		return trace.Wrap(ErrWriterClosed)
	}
	if w.fixed && len(w.buf)+len(b) > cap(w.buf) {
		return trace.Wrap(ErrBufferTooSmall)
	}
	w.buf = append(w.buf, b...)
	return nil
}

func tagLenForControl(ctl uint8) int {
	switch ctl {
		case tagCtlAnonymous:
		return 0
		case tagCtlContext:
		return 1
		case tagCtlCommon, tagCtlImplicit:
		return 4
		case tagCtlProfile:
		return 8
		default:
		return 0
	}
}

func (w *Writer) writeControlAndTag(elemType ElementType, tag Tag) error {
	var ctl uint8
	var tagBytes [8]byte
	var tagLen int
	switch tag.Kind {
		case TagAnonymous:
		ctl = tagCtlAnonymous
		case TagContext:
		ctl = tagCtlContext
		tagBytes[0] = tag.Context
		tagLen = 1
		case TagCommon:
		ctl = tagCtlCommon
		binary.LittleEndian.PutUint32(tagBytes[:4], tag.Number)
		tagLen = 4
		case TagImplicit:
		ctl = tagCtlImplicit
		binary.LittleEndian.PutUint32(tagBytes[:4], tag.Number)
		tagLen = 4
		case TagProfile:
		ctl = tagCtlProfile
		binary.LittleEndian.PutUint32(tagBytes[:4], tag.Profile)
		binary.LittleEndian.PutUint32(tagBytes[4:8], tag.Number)
		tagLen = 8
		default:
		return trace.Wrap(ErrInvalidEncoding, "unknown tag kind %v", tag.Kind)
	}
	var top *openContainer
	if n := len(w.stack); n > 0 && w.stack[n-1].kind == KindStructure && !tag.IsAnonymous() {
		top = &w.stack[n-1]
		for _, seen := range top.seenTags {
			if seen.Equal(tag) {
				return trace.Wrap(ErrDuplicateStructureTag)
			}
		}
	}
	control := byte(ctl<<5) | byte(elemType&0x1F)
	if err := w.appendRaw([]byte{control}); err != nil {
		return err
	}
	if err := w.appendRaw(tagBytes[:tagLen]); err != nil {
		return err
	}
	if top != nil {
		top.seenTags = append(top.seenTags, tag)
	}
	return nil
}

// PutBool writes a boolean value under tag.
func (w *Writer) PutBool(tag Tag, v bool) error {
	et := TypeBooleanFalse
	if v {
		et = TypeBooleanTrue
	}
	return w.writeControlAndTag(et, tag)
}

// PutNull writes a null value under tag.
func (w *Writer) PutNull(tag Tag) error {
	return w.writeControlAndTag(TypeNull, tag)
}

// PutInt writes a signed integer, choosing the narrowest of 8/16/32/64
// bits that losslessly represents v.
func (w *Writer) PutInt(tag Tag, v int64) error {
	var et ElementType
	var n int
	switch {
		case v >= math.MinInt8 && v <= math.MaxInt8:
		et, n = TypeInt8, 1
		case v >= math.MinInt16 && v <= math.MaxInt16:
		et, n = TypeInt16, 2
		case v >= math.MinInt32 && v <= math.MaxInt32:
		et, n = TypeInt32, 4
		default:
		et, n = TypeInt64, 8
	}
	if err := w.writeControlAndTag(et, tag); err != nil {
		return err
	}
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	return w.appendRaw(b[:n])
}

// PutUInt writes an unsigned integer, choosing the narrowest width.
func (w *Writer) PutUInt(tag Tag, v uint64) error {
	var et ElementType
	var n int
	switch {
		case v <= math.MaxUint8:
		et, n = TypeUInt8, 1
		case v <= math.MaxUint16:
		et, n = TypeUInt16, 2
		case v <= math.MaxUint32:
		et, n = TypeUInt32, 4
		default:
		et, n = TypeUInt64, 8
	}
	if err := w.writeControlAndTag(et, tag); err != nil {
		return err
	}
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return w.appendRaw(b[:n])
}

// PutFloat64 writes a double-precision float under tag.
func (w *Writer) PutFloat64(tag Tag, v float64) error {
	if err := w.writeControlAndTag(TypeFloat64, tag); err != nil {
		return err
	}
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	return w.appendRaw(b[:])
}

func lenFieldWidth(n int) (width int, stringType, byteType ElementType) {
	switch {
		case n <= math.MaxUint8:
		return 1, TypeUTF8String1, TypeByteString1
		case n <= math.MaxUint16:
		return 2, TypeUTF8String2, TypeByteString2
		default:
		return 4, TypeUTF8String4, TypeByteString4
	}
}

// PutString writes a UTF-8 string under tag.
func (w *Writer) PutString(tag Tag, s string) error {
	width, et, _ := lenFieldWidth(len(s))
	if err := w.writeControlAndTag(et, tag); err != nil {
		return err
	}
	if err := w.putLen(width, len(s)); err != nil {
		return err
	}
	return w.appendRaw([]byte(s))
}

// PutBytes writes a byte string under tag.
func (w *Writer) PutBytes(tag Tag, b []byte) error {
	width, _, et := lenFieldWidth(len(b))
	if err := w.writeControlAndTag(et, tag); err != nil {
		return err
	}
	if err := w.putLen(width, len(b)); err != nil {
		return err
	}
	return w.appendRaw(b)
}

func (w *Writer) putLen(width, n int) error {
	var b [4]byte
	switch width {
		case 1:
		b[0] = byte(n)
		case 2:
		binary.LittleEndian.PutUint16(b[:2], uint16(n))
		case 4:
		binary.LittleEndian.PutUint32(b[:4], uint32(n))
	}
	return w.appendRaw(b[:width])
}

// StartContainer opens a new container of the given kind under tag. Every
// StartContainer must be matched by EndContainer before Finalize.
func (w *Writer) StartContainer(tag Tag, kind ContainerKind) error {
	et, ok := elementTypeForKind(kind)
	if !ok {
		return trace.Wrap(ErrInvalidEncoding, "unknown container kind %v", kind)
	}
	if err := w.writeControlAndTag(et, tag); err != nil {
		return err
	}
	w.stack = append(w.stack, openContainer{kind: kind})
	return nil
}

// EndContainer closes the most recently opened container.
func (w *Writer) EndContainer() error {
	if len(w.stack) == 0 {
		return trace.Wrap(ErrContainerMismatch, "no open container")
	}
	w.stack = w.stack[:len(w.stack)-1]
	control := byte(tagCtlAnonymous<<5) | byte(TypeEndOfContainer&0x1F)
	return w.appendRaw([]byte{control})
}

func elementTypeForKind(kind ContainerKind) (ElementType, bool) {
	switch kind {
		case KindStructure:
		return TypeStructure, true
		case KindArray:
		return TypeArray, true
		case KindPath:
		return TypePath, true
		case KindList:
		return TypeList, true
		default:
		return 0, false
	}
}

// PutPreEncodedContainer bulk-copies a fully encoded container (as
// produced by another Writer and sliced out, including its own end
// marker) under a new outer tag, without re-parsing the interior. This
// is the mechanism CertificateSet.SaveCerts uses to re-emit a loaded
// certificate's TLV bytes under a fresh tag without a decode/re-encode
// round trip.
func (w *Writer) PutPreEncodedContainer(tag Tag, encoded []byte) error {
	if len(encoded) < 1 {
		return trace.Wrap(ErrInvalidEncoding, "empty pre-encoded container")
	}
	origCtl := encoded[0] >> 5
	elemType := ElementType(encoded[0] & 0x1F)
	if _, ok := containerKindForElementType(elemType); !ok {
		return trace.Wrap(ErrInvalidEncoding, "pre-encoded element is not a container")
	}
	origTagLen := tagLenForControl(origCtl)
	if len(encoded) < 1+origTagLen {
		return trace.Wrap(ErrInvalidEncoding, "truncated pre-encoded container")
	}
	if err := w.writeControlAndTag(elemType, tag); err != nil {
		return err
	}
	return w.appendRaw(encoded[1+origTagLen:])
}

// CopyContainer reads the container the reader currently sits on and
// writes an equivalent container to w, overriding only the outer tag;
// nested elements keep their original tags. The reader is left
// positioned after the copied container.
func (w *Writer) CopyContainer(tag Tag, r *Reader) error {
	kind, ok := r.ContainerKind()
	if !ok {
		return trace.Wrap(ErrWrongType, "reader is not positioned on a container")
	}
	if err := w.StartContainer(tag, kind); err != nil {
		return err
	}
	if err := r.EnterContainer(); err != nil {
		return err
	}
	for {
		ok, err := r.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if err := w.copyElement(r.CurrentTag(), r); err != nil {
			return err
		}
	}
	if err := r.ExitContainer(); err != nil {
		return err
	}
	return w.EndContainer()
}

func (w *Writer) copyElement(tag Tag, r *Reader) error {
	switch r.CurrentKind() {
		case KindSignedInt:
		v, err := r.GetInt()
		if err != nil {
			return err
		}
		return w.PutInt(tag, v)
		case KindUnsignedInt:
		v, err := r.GetUInt()
		if err != nil {
			return err
		}
		return w.PutUInt(tag, v)
		case KindBool:
		v, err := r.GetBool()
		if err != nil {
			return err
		}
		return w.PutBool(tag, v)
		case KindFloat:
		v, err := r.GetFloat64()
		if err != nil {
			return err
		}
		return w.PutFloat64(tag, v)
		case KindNull:
		return w.PutNull(tag)
		case KindUTF8String:
		s, err := r.GetString()
		if err != nil {
			return err
		}
		return w.PutString(tag, s)
		case KindByteString:
		b, err := r.GetBytes()
		if err != nil {
			return err
		}
		return w.PutBytes(tag, b)
		case KindContainer:
		kind, _ := r.ContainerKind()
		if err := w.StartContainer(tag, kind); err != nil {
			return err
		}
		if err := r.EnterContainer(); err != nil {
			return err
		}
		for {
			ok, err := r.Next()
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			if err := w.copyElement(r.CurrentTag(), r); err != nil {
				return err
			}
		}
		if err := r.ExitContainer(); err != nil {
			return err
		}
		return w.EndContainer()
		default:
		return trace.Wrap(ErrUnknownElementType)
	}
}

// Finalize closes every still-open container and commits the buffer.
// It is idempotent: calling it a second time is a no-op. Any write
// attempted after Finalize fails with ErrWriterClosed.
func (w *Writer) Finalize() error {
	if w.closed {
		return nil
	}
	for len(w.stack) > 0 {
		if err := w.EndContainer(); err != nil {
			return err
		}
	}
	w.closed = true
	return nil
}
