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

import "github.com/weaveio/weavecore/lib/tlv"

// PutECDSASignature writes an ECDSASignature structure under tag: the
// (r, s) pair of a raw ECDSA signature, as embedded in a
// WeaveCertificate's own signature field and reused wherever else the
// wire format carries a standalone Weave ECDSA signature (e.g. the
// operational and manufacturer-attestation signatures in a certificate
// provisioning request).
func PutECDSASignature(w *tlv.Writer, outer tlv.Tag, r, s []byte) error {
	if err := w.StartContainer(outer, tlv.KindStructure); err != nil {
		return err
	}
	if err := w.PutBytes(tlv.ContextTag(ctSigR), r); err != nil {
		return err
	}
	if err := w.PutBytes(tlv.ContextTag(ctSigS), s); err != nil {
		return err
	}
	return w.EndContainer()
}

// GetECDSASignature reads the ECDSASignature structure the reader
// currently sits on, returning its raw (r, s) byte strings.
func GetECDSASignature(reader *tlv.Reader) (r, s []byte, err error) {
	if err := reader.EnterContainer(); err != nil {
		return nil, nil, err
	}
	for {
		ok, err := reader.Next()
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			break
		}
		switch reader.CurrentTag() {
			case tlv.ContextTag(ctSigR):
			b, err := reader.GetBytes()
			if err != nil {
				return nil, nil, err
			}
			r = append([]byte{}, b...)
			case tlv.ContextTag(ctSigS):
			b, err := reader.GetBytes()
			if err != nil {
				return nil, nil, err
			}
			s = append([]byte{}, b...)
		}
	}
	if err := reader.ExitContainer(); err != nil {
		return nil, nil, err
	}
	return r, s, nil
}
