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

type containerFrame struct {
	kind ContainerKind
}

// Reader walks a TLV-encoded buffer one element at a time. GetBytes and
// GetString return a borrow into the underlying buffer: the returned
// slice is valid only until the next call to Next, EnterContainer, or
// ExitContainer on this Reader.
type Reader struct {
	buf []byte
	pos int
	stack []containerFrame
	curTag Tag
	curET ElementType
	curLen int
	curOff int // offset of the value payload for the current element
	have bool

	pendingSkip bool // current element is an unentered container
}

// NewReader returns a Reader over buf.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Next advances to the next element in the current container (or at top
// level). It returns false, nil when the end of the current container
// (or buffer) is reached without error.
func (r *Reader) Next() (bool, error) {
	r.have = false
	if r.pendingSkip {
		if err := r.skipToContainerEnd(); err != nil {
			return false, err
		}
		r.pendingSkip = false
	}
	if r.pos >= len(r.buf) {
		return false, nil
	}
	control := r.buf[r.pos]
	et := ElementType(control & 0x1F)
	if et == TypeEndOfContainer {
		return false, nil
	}
	ctl := control >> 5
	tagLen := tagLenForControl(ctl)
	if r.pos+1+tagLen > len(r.buf) {
		return false, trace.Wrap(ErrInvalidEncoding, "truncated tag")
	}
	tag, err := decodeTag(ctl, r.buf[r.pos+1:r.pos+1+tagLen])
	if err != nil {
		return false, err
	}
	valueOff := r.pos + 1 + tagLen
	length, headerLen, err := valueHeaderLen(et, r.buf[valueOff:])
	if err != nil {
		return false, err
	}
	r.curTag = tag
	r.curET = et
	r.curLen = length
	r.curOff = valueOff + headerLen
	r.have = true
	if _, isContainer := containerKindForElementType(et); isContainer {
		r.pos = r.curOff // entering requires EnterContainer; Next without Enter skips over children
		r.pendingSkip = true
	} else {
		r.pos = r.curOff + length
	}
	return true, nil
}

// skipToContainerEnd advances past a container's children (r.pos must be
// positioned at the first child or the container's own end marker) to
// just after its matching end-of-container marker. Used when Next is
// called again without an intervening EnterContainer.
func (r *Reader) skipToContainerEnd() error {
	depth := 1
	for depth > 0 {
		if r.pos >= len(r.buf) {
			return trace.Wrap(ErrContainerMismatch, "unterminated container")
		}
		control := r.buf[r.pos]
		et := ElementType(control & 0x1F)
		if et == TypeEndOfContainer {
			r.pos++
			depth--
			continue
		}
		ctl := control >> 5
		tagLen := tagLenForControl(ctl)
		valueOff := r.pos + 1 + tagLen
		length, headerLen, err := valueHeaderLen(et, r.buf[valueOff:])
		if err != nil {
			return err
		}
		if _, isContainer := containerKindForElementType(et); isContainer {
			depth++
			r.pos = valueOff + headerLen
		} else {
			r.pos = valueOff + headerLen + length
		}
	}
	return nil
}

func decodeTag(ctl uint8, b []byte) (Tag, error) {
	switch ctl {
		case tagCtlAnonymous:
		return AnonymousTag(), nil
		case tagCtlContext:
		return ContextTag(b[0]), nil
		case tagCtlCommon:
		return CommonTag(binary.LittleEndian.Uint32(b)), nil
		case tagCtlImplicit:
		return ImplicitTag(binary.LittleEndian.Uint32(b)), nil
		case tagCtlProfile:
		return ProfileTag(binary.LittleEndian.Uint32(b[:4]), binary.LittleEndian.Uint32(b[4:8])), nil
		default:
		return Tag{}, trace.Wrap(ErrInvalidEncoding, "unknown tag control %d", ctl)
	}
}

// valueHeaderLen returns the payload length and the number of header
// bytes (length-field width) consumed before the payload for fixed and
// variable-width element types. Containers and null have length 0 and
// header 0; fixed-width scalars report their width as length with a 0
// byte header.
func valueHeaderLen(et ElementType, b []byte) (length, header int, err error) {
	switch et {
		case TypeInt8, TypeUInt8:
		return 1, 0, nil
		case TypeInt16, TypeUInt16:
		return 2, 0, nil
		case TypeInt32, TypeUInt32, TypeFloat32:
		return 4, 0, nil
		case TypeInt64, TypeUInt64, TypeFloat64:
		return 8, 0, nil
		case TypeBooleanFalse, TypeBooleanTrue, TypeNull:
		return 0, 0, nil
		case TypeStructure, TypeArray, TypePath, TypeList:
		return 0, 0, nil
		case TypeUTF8String1, TypeByteString1:
		if len(b) < 1 {
			return 0, 0, trace.Wrap(ErrInvalidEncoding, "truncated length")
		}
		return int(b[0]), 1, nil
		case TypeUTF8String2, TypeByteString2:
		if len(b) < 2 {
			return 0, 0, trace.Wrap(ErrInvalidEncoding, "truncated length")
		}
		return int(binary.LittleEndian.Uint16(b)), 2, nil
		case TypeUTF8String4, TypeByteString4:
		if len(b) < 4 {
			return 0, 0, trace.Wrap(ErrInvalidEncoding, "truncated length")
		}
		return int(binary.LittleEndian.Uint32(b)), 4, nil
		case TypeUTF8String8, TypeByteString8:
		if len(b) < 8 {
			return 0, 0, trace.Wrap(ErrInvalidEncoding, "truncated length")
		}
		n := binary.LittleEndian.Uint64(b)
		return int(n), 8, nil
		default:
		return 0, 0, trace.Wrap(ErrUnknownElementType, "type 0x%x", et)
	}
}

// CurrentTag returns the tag of the element Next most recently yielded.
func (r *Reader) CurrentTag() Tag { return r.curTag }

// CurrentKind returns the ValueKind of the current element.
func (r *Reader) CurrentKind() ValueKind {
	switch r.curET {
		case TypeInt8, TypeInt16, TypeInt32, TypeInt64:
		return KindSignedInt
		case TypeUInt8, TypeUInt16, TypeUInt32, TypeUInt64:
		return KindUnsignedInt
		case TypeBooleanFalse, TypeBooleanTrue:
		return KindBool
		case TypeFloat32, TypeFloat64:
		return KindFloat
		case TypeNull:
		return KindNull
		case TypeUTF8String1, TypeUTF8String2, TypeUTF8String4, TypeUTF8String8:
		return KindUTF8String
		case TypeByteString1, TypeByteString2, TypeByteString4, TypeByteString8:
		return KindByteString
		default:
		return KindContainer
	}
}

// ContainerKind reports the kind of the current element if it is a
// container.
func (r *Reader) ContainerKind() (ContainerKind, bool) {
	return containerKindForElementType(r.curET)
}

func (r *Reader) requireHave() error {
	if !r.have {
		return trace.Wrap(ErrInvalidEncoding, "no current element; call Next first")
	}
	return nil
}

// GetBool returns the current element's boolean value.
func (r *Reader) GetBool() (bool, error) {
	if err := r.requireHave(); err != nil {
		return false, err
	}
	switch r.curET {
		case TypeBooleanTrue:
		return true, nil
		case TypeBooleanFalse:
		return false, nil
		default:
		return false, trace.Wrap(ErrWrongType)
	}
}

// GetInt returns the current element as a signed integer, rejecting
// unsigned values that overflow int64.
func (r *Reader) GetInt() (int64, error) {
	if err := r.requireHave(); err != nil {
		return 0, err
	}
	payload := r.buf[r.curOff : r.curOff+fixedWidthOf(r.curET)]
	switch r.curET {
		case TypeInt8:
		return int64(int8(payload[0])), nil
		case TypeInt16:
		return int64(int16(binary.LittleEndian.Uint16(payload))), nil
		case TypeInt32:
		return int64(int32(binary.LittleEndian.Uint32(payload))), nil
		case TypeInt64:
		return int64(binary.LittleEndian.Uint64(payload)), nil
		default:
		return 0, trace.Wrap(ErrWrongType)
	}
}

// GetUInt returns the current element as an unsigned integer.
func (r *Reader) GetUInt() (uint64, error) {
	if err := r.requireHave(); err != nil {
		return 0, err
	}
	payload := r.buf[r.curOff : r.curOff+fixedWidthOf(r.curET)]
	switch r.curET {
		case TypeUInt8:
		return uint64(payload[0]), nil
		case TypeUInt16:
		return uint64(binary.LittleEndian.Uint16(payload)), nil
		case TypeUInt32:
		return uint64(binary.LittleEndian.Uint32(payload)), nil
		case TypeUInt64:
		return binary.LittleEndian.Uint64(payload), nil
		default:
		return 0, trace.Wrap(ErrWrongType)
	}
}

// GetFloat64 returns the current element as a double.
func (r *Reader) GetFloat64() (float64, error) {
	if err := r.requireHave(); err != nil {
		return 0, err
	}
	payload := r.buf[r.curOff : r.curOff+fixedWidthOf(r.curET)]
	switch r.curET {
		case TypeFloat32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(payload))), nil
		case TypeFloat64:
		return math.Float64frombits(binary.LittleEndian.Uint64(payload)), nil
		default:
		return 0, trace.Wrap(ErrWrongType)
	}
}

func fixedWidthOf(et ElementType) int {
	switch et {
		case TypeInt8, TypeUInt8:
		return 1
		case TypeInt16, TypeUInt16:
		return 2
		case TypeInt32, TypeUInt32, TypeFloat32:
		return 4
		case TypeInt64, TypeUInt64, TypeFloat64:
		return 8
		default:
		return 0
	}
}

// GetString returns the current element's UTF-8 string, borrowed from
// the underlying buffer.
func (r *Reader) GetString() (string, error) {
	if err := r.requireHave(); err != nil {
		return "", err
	}
	switch r.curET {
		case TypeUTF8String1, TypeUTF8String2, TypeUTF8String4, TypeUTF8String8:
		return string(r.buf[r.curOff : r.curOff+r.curLen]), nil
		default:
		return "", trace.Wrap(ErrWrongType)
	}
}

// GetBytes returns the current element's byte string, borrowed from the
// underlying buffer. The returned slice MUST NOT be retained past the
// next Next/EnterContainer/ExitContainer call.
func (r *Reader) GetBytes() ([]byte, error) {
	if err := r.requireHave(); err != nil {
		return nil, err
	}
	switch r.curET {
		case TypeByteString1, TypeByteString2, TypeByteString4, TypeByteString8:
		return r.buf[r.curOff : r.curOff+r.curLen], nil
		default:
		return nil, trace.Wrap(ErrWrongType)
	}
}

// EnterContainer descends into the current container element; subsequent
// Next calls iterate its children. Must be paired with ExitContainer.
func (r *Reader) EnterContainer() error {
	if err := r.requireHave(); err != nil {
		return err
	}
	kind, ok := containerKindForElementType(r.curET)
	if !ok {
		return trace.Wrap(ErrWrongType, "not a container")
	}
	r.stack = append(r.stack, containerFrame{kind: kind})
	r.have = false
	r.pendingSkip = false
	return nil
}

// ExitContainer returns to the enclosing container, skipping any
// remaining unread children of the one being exited.
func (r *Reader) ExitContainer() error {
	if len(r.stack) == 0 {
		return trace.Wrap(ErrReaderClosedContainer, "no open container to exit")
	}
	if err := r.skipToContainerEnd(); err != nil {
		return err
	}
	r.stack = r.stack[:len(r.stack)-1]
	r.have = false
	r.pendingSkip = false
	return nil
}
