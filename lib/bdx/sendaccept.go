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

// SendAccept confirms a SendInit proposal with the transfer mode and
// max block size the receiver selected.
type SendAccept struct {
	Version uint8
	TransferMode TransferMode
	MaxBlockSize uint16
	MetaData []byte
}

// NewSendAccept builds a SendAccept. transferMode must set exactly one
// of ModeSenderDrive, ModeReceiverDrive, ModeAsynchronous.
func NewSendAccept(version uint8, transferMode TransferMode, maxBlockSize uint16, metaData []byte) (*SendAccept, error) {
	if countModeBits(transferMode) != 1 {
		return nil, ErrInvalidTransferMode
	}
	return &SendAccept{Version: version, TransferMode: transferMode, MaxBlockSize: maxBlockSize, MetaData: metaData}, nil
}

// PackedLength returns the length of a when packed.
func (a *SendAccept) PackedLength() int {
	return 1 + 2 + len(a.MetaData)
}

// Pack serializes a to its wire form.
func (a *SendAccept) Pack() []byte {
	var w byteWriter
	w.writeByte(uint8(a.TransferMode) | (a.Version & versionMask))
	w.write16(a.MaxBlockSize)
	w.writeBytes(a.MetaData)
	return w.bytes()
}

// ParseSendAccept parses a SendAccept wire image.
func ParseSendAccept(buf []byte) (*SendAccept, error) {
	r := newByteReader(buf)
	var a SendAccept

	tcByte, err := r.readByte()
	if err != nil {
		return nil, err
	}
	a.Version = tcByte & versionMask
	a.TransferMode = TransferMode(tcByte &^ versionMask)

	if a.MaxBlockSize, err = r.read16(); err != nil {
		return nil, err
	}
	if rest := r.readRest(); len(rest) > 0 {
		a.MetaData = rest
	}
	return &a, nil
}

// Equal reports whether a and other encode the same SendAccept.
func (a *SendAccept) Equal(other *SendAccept) bool {
	if other == nil {
		return false
	}
	return a.Version == other.Version &&
	a.TransferMode == other.TransferMode &&
	a.MaxBlockSize == other.MaxBlockSize &&
	bytesEqual(a.MetaData, other.MetaData)
}
