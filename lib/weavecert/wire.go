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

// ProfileSecurity is the 32-bit profile namespace for certificate and
// signature messages
const ProfileSecurity uint32 = 0x00000004

// Well-known top-level tags under ProfileSecurity.
const (
	TagWeaveCertificate uint32 = 1
	TagWeaveCertificateList uint32 = 2
)

// Context tags within a WeaveCertificate structure.
const (
	ctSerialNumber uint8 = 1
	ctSignatureAlgorithm uint8 = 2
	ctIssuer uint8 = 3
	ctNotBefore uint8 = 4
	ctNotAfter uint8 = 5
	ctSubject uint8 = 6
	ctPublicKeyAlgorithm uint8 = 7
	ctECCurveID uint8 = 8
	ctECPublicKey uint8 = 9
	ctRSAModulus uint8 = 10
	ctRSAExponent uint8 = 11
	ctSubjectKeyID uint8 = 12
	ctAuthorityKeyID uint8 = 13
	ctKeyUsage uint8 = 14
	ctExtKeyUsage uint8 = 15
	ctIsCA uint8 = 16
	ctPathLenConstraint uint8 = 17
	ctCertType uint8 = 18
	ctECDSASignature uint8 = 19
)

// Context tags within the nested ECDSASignature structure.
const (
	ctSigR uint8 = 1
	ctSigS uint8 = 2
)

// Context tags within a DistinguishedName structure (the sole element
// of an Issuer/Subject path container).
const (
	ctDNOid uint8 = 1
	ctDNIDValue uint8 = 2
	ctDNStrValue uint8 = 3
)

func tag(n uint8) tlv.Tag { return tlv.ContextTag(n) }

// SignatureAlgorithm identifies the algorithm that produced a
// certificate's signature. LoadCert requires this be one of the ECDSA
// variants
type SignatureAlgorithm uint8

const (
	SigAlgUnspecified SignatureAlgorithm = iota
	SigAlgECDSAWithSHA1
	SigAlgECDSAWithSHA256
)

// IsSupported reports whether LoadCert accepts this algorithm.
func (a SignatureAlgorithm) IsSupported() bool {
	return a == SigAlgECDSAWithSHA1 || a == SigAlgECDSAWithSHA256
}

// PublicKeyAlgorithm identifies the family of a certificate's subject
// public key.
type PublicKeyAlgorithm uint8

const (
	PubKeyAlgUnspecified PublicKeyAlgorithm = iota
	PubKeyAlgEC
	PubKeyAlgRSA
)

// CurveID identifies the elliptic curve of an EC public key.
type CurveID uint8

const (
	CurveUnspecified CurveID = iota
	CurveSECP224R1
	CurveSECP256R1
)

// CertType classifies the role a certificate plays
type CertType uint8

const (
	CertTypeUnspecified CertType = iota
	CertTypeGeneral
	CertTypeCA
	CertTypeDevice
	CertTypeServiceEndpoint
	CertTypeFirmwareSigning
	CertTypeAccessToken
)

// KeyUsage is a bitmask of X.509-style key usage flags.
type KeyUsage uint16

const (
	KeyUsageDigitalSignature KeyUsage = 1 << iota
	KeyUsageKeyCertSign
	KeyUsageCRLSign
	KeyUsageKeyEncipherment
	KeyUsageKeyAgreement
)

// Has reports whether all bits in want are set in u.
func (u KeyUsage) Has(want KeyUsage) bool { return u&want == want }

// KeyPurpose is a bitmask of extended-key-usage flags.
type KeyPurpose uint16

const (
	KeyPurposeServerAuth KeyPurpose = 1 << iota
	KeyPurposeClientAuth
	KeyPurposeCodeSigning
)

// Has reports whether all bits in want are set in p.
func (p KeyPurpose) Has(want KeyPurpose) bool { return p&want == want }
