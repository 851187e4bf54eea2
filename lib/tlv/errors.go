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

import "github.com/gravitational/trace"

// Sentinel errors for the encoding error kind. Callers should use
// trace.Is / errors.Is rather than direct equality since these are
// frequently wrapped with trace.Wrap for call-site context.
var (
	ErrInvalidEncoding = trace.BadParameter("invalid-tlv-encoding")
	ErrWrongType = trace.BadParameter("wrong-type")
	ErrOverflow = trace.BadParameter("overflow")
	ErrBufferTooSmall = trace.LimitExceeded("buffer-too-small")
	ErrWriterClosed = trace.BadParameter("writer-closed")
	ErrDuplicateStructureTag = trace.BadParameter("duplicate tag in structure")
	ErrContainerMismatch = trace.BadParameter("container end marker does not match opener")
	ErrReaderClosedContainer = trace.BadParameter("next called inside a closed container")
	ErrUnknownElementType = trace.BadParameter("unknown tlv element type")
)
