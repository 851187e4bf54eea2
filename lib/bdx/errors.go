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

var (
	// ErrInvalidTransferMode is returned by SendAccept/ReceiveAccept
	// construction when the caller's transfer mode does not set exactly
	// one of sender-drive, receiver-drive, async.
	ErrInvalidTransferMode = trace.BadParameter("bdx: transfer mode must set exactly one of sender-drive, receiver-drive, async")

	// ErrMetadataTooLarge is returned when a MetaDataWriteCallback
	// reports writing more than MaxSendInitMetadataBytes.
	ErrMetadataTooLarge = trace.BadParameter("bdx: metadata write callback exceeded the maximum metadata size")

	// ErrShortBuffer is returned by Parse when the wire buffer is too
	// short to hold the fields the message requires.
	ErrShortBuffer = trace.LimitExceeded("bdx: buffer too short to parse message")
)
