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

import "github.com/gravitational/trace"

// SendInit is a sender's proposal to transfer a file, identified by a
// file designator, to a receiver.
type SendInit struct {
	Version uint8
	SenderDriveSupported bool
	ReceiverDriveSupported bool
	AsynchronousModeSupported bool
	DefiniteLength bool
	StartOffsetPresent bool
	WideRange bool
	MaxBlockSize uint16
	StartOffset uint64
	Length uint64
	FileDesignator string
	MetaData []byte
	MetaDataWriteCallback MetaDataWriteCallback
}

// NewSendInit builds a SendInit. wide selects 64-bit start-offset/length
// encoding; when false, both are truncated to 32 bits on the wire.
// StartOffsetPresent and DefiniteLength are derived the way the original
// does: a nonzero start offset implies "present", and a zero length
// means "indefinite". At most one of senderDrive, receiverDrive,
// asyncMode may be true.
func NewSendInit(version uint8, senderDrive, receiverDrive, asyncMode bool, maxBlockSize uint16, wide bool, startOffset, length uint64, fileDesignator string, metaData []byte) (*SendInit, error) {
	if countModeBits(modeBits(senderDrive, receiverDrive, asyncMode)) > 1 {
		return nil, ErrInvalidTransferMode
	}
	return &SendInit{
		Version: version,
		SenderDriveSupported: senderDrive,
		ReceiverDriveSupported: receiverDrive,
		AsynchronousModeSupported: asyncMode,
		DefiniteLength: length != 0,
		StartOffsetPresent: startOffset > 0,
		WideRange: wide,
		MaxBlockSize: maxBlockSize,
		StartOffset: startOffset,
		Length: length,
		FileDesignator: fileDesignator,
		MetaData: metaData,
	}, nil
}

// modeBits combines the three transfer-control mode-support flags into
// the TransferMode bitset countModeBits expects.
func modeBits(senderDrive, receiverDrive, asyncMode bool) TransferMode {
	var m TransferMode
	if senderDrive {
		m |= ModeSenderDrive
	}
	if receiverDrive {
		m |= ModeReceiverDrive
	}
	if asyncMode {
		m |= ModeAsynchronous
	}
	return m
}

func (s *SendInit) metadataLength() (int, error) {
	if s.MetaDataWriteCallback == nil {
		return len(s.MetaData), nil
	}
	buf := make([]byte, MaxSendInitMetadataBytes)
	n, err := s.MetaDataWriteCallback(buf)
	if err != nil {
		return 0, trace.Wrap(err)
	}
	if n > MaxSendInitMetadataBytes {
		return 0, ErrMetadataTooLarge
	}
	return n, nil
}

// PackedLength returns the length of s when packed. If a
// MetaDataWriteCallback is set it is invoked to measure the metadata,
// on the assumption (documented on MetaDataWriteCallback) that it is
// idempotent.
func (s *SendInit) PackedLength() (int, error) {
	startOffsetLen := 0
	if s.StartOffsetPresent {
		startOffsetLen = widthFor(s.WideRange)
	}
	lengthLen := 0
	if s.DefiniteLength {
		lengthLen = widthFor(s.WideRange)
	}
	metaLen, err := s.metadataLength()
	if err != nil {
		return 0, err
	}
	// <xfer ctl>+<range ctl>+<max block>+<start offset?>+<length?>+<designator>+<metadata?>
	return 1 + 1 + 2 + startOffsetLen + lengthLen + (2 + len(s.FileDesignator)) + metaLen, nil
}

func widthFor(wide bool) int {
	if wide {
		return 8
	}
	return 4
}

// Pack serializes s to its wire form.
func (s *SendInit) Pack() ([]byte, error) {
	var w byteWriter

	var tcByte uint8 = s.Version & versionMask
	if s.SenderDriveSupported {
		tcByte |= uint8(ModeSenderDrive)
	}
	if s.ReceiverDriveSupported {
		tcByte |= uint8(ModeReceiverDrive)
	}
	if s.AsynchronousModeSupported {
		tcByte |= uint8(ModeAsynchronous)
	}
	w.writeByte(tcByte)

	var rangeCtl uint8
	if s.DefiniteLength {
		rangeCtl |= rangeCtlDefiniteLength
	}
	if s.StartOffsetPresent {
		rangeCtl |= rangeCtlStartOffsetPresent
	}
	if s.WideRange {
		rangeCtl |= rangeCtlWideRange
	}
	w.writeByte(rangeCtl)
	w.write16(s.MaxBlockSize)

	if s.StartOffsetPresent {
		if s.WideRange {
			w.write64(s.StartOffset)
		} else {
			w.write32(uint32(s.StartOffset))
		}
	}
	if s.DefiniteLength {
		if s.WideRange {
			w.write64(s.Length)
		} else {
			w.write32(uint32(s.Length))
		}
	}

	w.writeString(s.FileDesignator)

	if s.MetaDataWriteCallback != nil {
		buf := make([]byte, MaxSendInitMetadataBytes)
		n, err := s.MetaDataWriteCallback(buf)
		if err != nil {
			return nil, trace.Wrap(err)
		}
		if n > MaxSendInitMetadataBytes {
			return nil, ErrMetadataTooLarge
		}
		w.writeBytes(buf[:n])
	} else {
		w.writeBytes(s.MetaData)
	}

	return w.bytes(), nil
}

// ParseSendInit parses a SendInit wire image. Any bytes left after the
// fixed fields and file designator are taken verbatim as inline TLV
// metadata.
func ParseSendInit(buf []byte) (*SendInit, error) {
	r := newByteReader(buf)
	var s SendInit

	tcByte, err := r.readByte()
	if err != nil {
		return nil, err
	}
	s.Version = tcByte & versionMask
	s.SenderDriveSupported = tcByte&uint8(ModeSenderDrive) != 0
	s.ReceiverDriveSupported = tcByte&uint8(ModeReceiverDrive) != 0
	s.AsynchronousModeSupported = tcByte&uint8(ModeAsynchronous) != 0
	if countModeBits(modeBits(s.SenderDriveSupported, s.ReceiverDriveSupported, s.AsynchronousModeSupported)) > 1 {
		return nil, ErrInvalidTransferMode
	}

	rangeCtl, err := r.readByte()
	if err != nil {
		return nil, err
	}
	s.DefiniteLength = rangeCtl&rangeCtlDefiniteLength != 0
	s.StartOffsetPresent = rangeCtl&rangeCtlStartOffsetPresent != 0
	s.WideRange = rangeCtl&rangeCtlWideRange != 0

	if s.MaxBlockSize, err = r.read16(); err != nil {
		return nil, err
	}

	if s.StartOffsetPresent {
		if s.WideRange {
			s.StartOffset, err = r.read64()
		} else {
			var v uint32
			v, err = r.read32()
			s.StartOffset = uint64(v)
		}
		if err != nil {
			return nil, err
		}
	}
	if s.DefiniteLength {
		if s.WideRange {
			s.Length, err = r.read64()
		} else {
			var v uint32
			v, err = r.read32()
			s.Length = uint64(v)
		}
		if err != nil {
			return nil, err
		}
	}

	if s.FileDesignator, err = r.readString(); err != nil {
		return nil, err
	}
	if rest := r.readRest(); len(rest) > 0 {
		s.MetaData = rest
	}

	return &s, nil
}

// Equal reports whether s and other encode the same SendInit, comparing
// MetaData but not MetaDataWriteCallback (which is only evaluated at
// Pack/PackedLength time).
func (s *SendInit) Equal(other *SendInit) bool {
	if other == nil {
		return false
	}
	return s.Version == other.Version &&
	s.SenderDriveSupported == other.SenderDriveSupported &&
	s.ReceiverDriveSupported == other.ReceiverDriveSupported &&
	s.AsynchronousModeSupported == other.AsynchronousModeSupported &&
	s.DefiniteLength == other.DefiniteLength &&
	s.StartOffsetPresent == other.StartOffsetPresent &&
	s.WideRange == other.WideRange &&
	s.MaxBlockSize == other.MaxBlockSize &&
	s.StartOffset == other.StartOffset &&
	s.Length == other.Length &&
	s.FileDesignator == other.FileDesignator &&
	bytesEqual(s.MetaData, other.MetaData)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
