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

package weavecert

import (
	"bytes"

	"github.com/gravitational/trace"
)

// KeyID identifies a public key by a 1.20 byte string
// Two ids are equal iff byte-identical.
type KeyID []byte

// NewKeyID validates and wraps b as a KeyID.
func NewKeyID(b []byte) (KeyID, error) {
	if len(b) < 1 || len(b) > 20 {
		return nil, trace.BadParameter("certificate key id must be 1.20 bytes, got %d", len(b))
	}
	out := make(KeyID, len(b))
	copy(out, b)
	return out, nil
}

// Equal reports whether two key ids are byte-identical.
func (k KeyID) Equal(o KeyID) bool { return bytes.Equal(k, o) }
