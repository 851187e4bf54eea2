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

// ReceiveAccept confirms a ReceiveInit request, adding the file's
// length (ReceiveInit carries no length of its own, unlike SendInit).
type ReceiveAccept struct {
	Version uint8
	TransferMode TransferMode
	DefiniteLength bool
	WideRange bool
	MaxBlockSize uint16
	Length uint64
	MetaData []byte
}

// NewReceiveAccept builds a ReceiveAccept. transferMode must set
// exactly one of ModeSenderDrive, ModeReceiverDrive, ModeAsynchronous.
// wide selects 64-bit length encoding; length == 0 means indefinite.
func NewReceiveAccept(version uint8, transferMode TransferMode, maxBlockSize uint16, wide bool, length uint64, metaData []byte) (*ReceiveAccept, error) {
	if countModeBits(transferMode) != 1 {
		return nil, ErrInvalidTransferMode
	}
	return &ReceiveAccept{
		Version: version,
		TransferMode: transferMode,
		DefiniteLength: length != 0,
		WideRange: wide,
		MaxBlockSize: maxBlockSize,
		Length: length,
		MetaData: metaData,
	}, nil
}

// PackedLength returns the length of a when packed.
func (a *ReceiveAccept) PackedLength() int {
	lengthLen := 0
	if a.DefiniteLength {
		lengthLen = widthFor(a.WideRange)
	}
	return 1 + 1 + 2 + lengthLen + len(a.MetaData)
}

// Pack serializes a to its wire form.
func (a *ReceiveAccept) Pack() []byte {
	var w byteWriter
	w.writeByte(uint8(a.TransferMode) | (a.Version & versionMask))

	var rangeCtl uint8
	if a.DefiniteLength {
		rangeCtl |= rangeCtlDefiniteLength
	}
	if a.WideRange {
		rangeCtl |= rangeCtlWideRange
	}
	w.writeByte(rangeCtl)
	w.write16(a.MaxBlockSize)

	if a.DefiniteLength {
		if a.WideRange {
			w.write64(a.Length)
		} else {
			w.write32(uint32(a.Length))
		}
	}
	w.writeBytes(a.MetaData)
	return w.bytes()
}

// ParseReceiveAccept parses a ReceiveAccept wire image.
func ParseReceiveAccept(buf []byte) (*ReceiveAccept, error) {
	r := newByteReader(buf)
	var a ReceiveAccept

	tcByte, err := r.readByte()
	if err != nil {
		return nil, err
	}
	a.Version = tcByte & versionMask
	a.TransferMode = TransferMode(tcByte &^ versionMask)

	rangeCtl, err := r.readByte()
	if err != nil {
		return nil, err
	}
	a.DefiniteLength = rangeCtl&rangeCtlDefiniteLength != 0
	a.WideRange = rangeCtl&rangeCtlWideRange != 0

	if a.MaxBlockSize, err = r.read16(); err != nil {
		return nil, err
	}

	if a.DefiniteLength {
		if a.WideRange {
			a.Length, err = r.read64()
		} else {
			var v uint32
			v, err = r.read32()
			a.Length = uint64(v)
		}
		if err != nil {
			return nil, err
		}
	}

	if rest := r.readRest(); len(rest) > 0 {
		a.MetaData = rest
	}
	return &a, nil
}

// Equal reports whether a and other encode the same ReceiveAccept.
func (a *ReceiveAccept) Equal(other *ReceiveAccept) bool {
	if other == nil {
		return false
	}
	return a.Version == other.Version &&
	a.TransferMode == other.TransferMode &&
	a.DefiniteLength == other.DefiniteLength &&
	a.WideRange == other.WideRange &&
	a.MaxBlockSize == other.MaxBlockSize &&
	a.Length == other.Length &&
	bytesEqual(a.MetaData, other.MetaData)
}
