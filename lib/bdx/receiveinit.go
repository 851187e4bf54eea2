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

// ReceiveInit is a receiver's request to pull a file identified by a
// file designator. Its wire shape mirrors SendInit exactly; the only
// practical difference is which side initiates the transfer.
type ReceiveInit = SendInit

// NewReceiveInit builds a ReceiveInit the same way NewSendInit does.
func NewReceiveInit(version uint8, senderDrive, receiverDrive, asyncMode bool, maxBlockSize uint16, wide bool, startOffset, length uint64, fileDesignator string, metaData []byte) (*ReceiveInit, error) {
	return NewSendInit(version, senderDrive, receiverDrive, asyncMode, maxBlockSize, wide, startOffset, length, fileDesignator, metaData)
}

// ParseReceiveInit parses a ReceiveInit wire image.
func ParseReceiveInit(buf []byte) (*ReceiveInit, error) {
	return ParseSendInit(buf)
}
