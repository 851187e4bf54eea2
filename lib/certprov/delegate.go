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

package certprov

import "github.com/weaveio/weavecore/lib/tlv"

// OperationalAuthDelegate supplies the device's operational identity:
// its current certificate, any related certificates the service needs
// to validate the chain, and a signature over the request's TBS
// region using the operational private key. Platform-specific; this
// package only defines the interface, per WeaveCertProvDelegate in
// WeaveCertProvisioning.h.
type OperationalAuthDelegate interface {
	// EncodeOperationalCert writes the device's current operational
	// certificate as a WeaveCertificate structure under tag.
	EncodeOperationalCert(w *tlv.Writer, tag tlv.Tag) error

	// EncodeRelatedCerts writes any supporting certificates (e.g. the
	// issuing CA's intermediate) as a WeaveCertificateList array under
	// tag. It returns false if there are none to encode, in which case
	// the caller writes nothing.
	EncodeRelatedCerts(w *tlv.Writer, tag tlv.Tag) (bool, error)

	// SignOperationalHash computes a signature over hash (the SHA-256 of
	// the request's TBS region) using the operational private key and
	// writes it as an ECDSASignature structure under tag.
	SignOperationalHash(hash []byte, w *tlv.Writer, tag tlv.Tag) error

	// StoreAssignedCert persists the operational certificate (and any
	// related certificates) the service assigned in a
	// GetCertificateResponse, replacing whatever the device held before.
	StoreAssignedCert(cert []byte, relatedCerts []byte) error
}

// ManufacturerAttestDelegate supplies manufacturer-attestation evidence
// when a request asks for it: a structure describing the device's
// manufacturing provenance, and a signature over the whole TBS region
// using a manufacturer-held (not operational) private key.
type ManufacturerAttestDelegate interface {
	// EncodeAttestationInfo writes the manufacturer attestation
	// structure under tag.
	EncodeAttestationInfo(w *tlv.Writer, tag tlv.Tag) error

	// SignAttestation computes a signature over tbs (the full to-be-
	// signed region, not just its hash) using the manufacturer
	// attestation private key and writes it under tag.
	SignAttestation(tbs []byte, w *tlv.Writer, tag tlv.Tag) error
}

// PrepareAuthorizeInfoFunc supplies the application-specific
// authorization payload (pairing token, pairing init data, or
// equivalent) written into the request immediately after the request
// type. A nil func writes nothing.
type PrepareAuthorizeInfoFunc func(w *tlv.Writer) error
