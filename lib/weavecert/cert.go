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

// Package weavecert implements the Weave-TLV certificate format: decode
// and encode, bidirectional conversion with X.509, and certificate-set
// chain validation
package weavecert

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha1" //nolint:gosec // SHA-1 is an explicit legacy option the wire format allows.
	"crypto/sha256"
	"math/big"

	"github.com/gravitational/trace"

	"github.com/weaveio/weavecore/lib/tlv"
)

// LoadFlags tune LoadCert's behavior.
type LoadFlags uint8

const (
	// LoadFlagGenerateTBSHash computes the TBS hash at load time so
	// the certificate can later participate in signature validation.
	// It is the default; the flag exists for symmetry with the
	// original profile's generate-trust-anchor-only fast path.
	LoadFlagGenerateTBSHash LoadFlags = 1 << iota
)

// Certificate is immutable after Load. See for the full field
// list and invariants.
type Certificate struct {
	SerialNumber []byte

	SignatureAlgorithm SignatureAlgorithm
	Issuer DistinguishedName
	Subject DistinguishedName
	NotBefore PackedDate
	NotAfter PackedDate

	PublicKeyAlgorithm PublicKeyAlgorithm
	Curve CurveID
	ECPublicKey []byte // uncompressed point, EC only
	RSAModulus []byte
	RSAExponent []byte

	SubjectKeyID KeyID
	AuthorityKeyID KeyID

	KeyUsage KeyUsage
	ExtKeyUsage KeyPurpose
	HasExtKeyUsage bool
	IsCA bool
	HasPathLenConstraint bool
	PathLenConstraint int

	CertType CertType
	Trusted bool

	SigR []byte
	SigS []byte

	// tbsHash is computed at load time over the to-be-signed region
	// using the hash implied by SignatureAlgorithm (SHA-1 or
	// SHA-256); nil if it was never computed (e.g. a synthetic
	// AddTrustedKey entry).
	tbsHash []byte

	// rawTLV is the exact encoded bytes of this certificate's
	// WeaveCertificate structure (control byte through its end
	// marker), retained so SaveCerts can re-emit it via
	// PutPreEncodedContainer without a decode/re-encode round trip.
	rawTLV []byte
}

// PublicKey returns the certificate's public key as a crypto.PublicKey,
// or nil if the algorithm is unrecognized.
func (c *Certificate) PublicKey() interface{} {
	switch c.PublicKeyAlgorithm {
		case PubKeyAlgEC:
		curve := ellipticCurve(c.Curve)
		if curve == nil || len(c.ECPublicKey) == 0 {
			return nil
		}
		x, y := elliptic.Unmarshal(curve, c.ECPublicKey)
		if x == nil {
			return nil
		}
		return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}
		case PubKeyAlgRSA:
		if len(c.RSAModulus) == 0 || len(c.RSAExponent) == 0 {
			return nil
		}
		return &rsaPublicKeyView{N: new(big.Int).SetBytes(c.RSAModulus), E: int(new(big.Int).SetBytes(c.RSAExponent).Int64())}
		default:
		return nil
	}
}

// rsaPublicKeyView avoids importing crypto/rsa just for this shape;
// validated RSA certs are not signature-checked in this spec (only
// ECDSA cert signatures are accepted, per §4.2), this exists only so
// PublicKey has a concrete type to hand back for informational use.
type rsaPublicKeyView struct {
	N *big.Int
	E int
}

func ellipticCurve(id CurveID) elliptic.Curve {
	switch id {
		case CurveSECP224R1:
		return elliptic.P224
		case CurveSECP256R1:
		return elliptic.P256()
		default:
		return nil
	}
}

func hashForSigAlg(alg SignatureAlgorithm, data []byte) ([]byte, error) {
	switch alg {
		case SigAlgECDSAWithSHA1:
		h := sha1.Sum(data) //nolint:gosec
		return h[:], nil
		case SigAlgECDSAWithSHA256:
		h := sha256.Sum256(data)
		return h[:], nil
		default:
		return nil, trace.Wrap(ErrUnsupportedCertFormat, "unsupported signature algorithm %v", alg)
	}
}

// encodeDN writes a DistinguishedName as a Path container holding one
// structure element: {oid, idValue|strValue}.
func encodeDN(w *tlv.Writer, outer tlv.Tag, dn DistinguishedName) error {
	if err := w.StartContainer(outer, tlv.KindPath); err != nil {
		return err
	}
	if err := w.StartContainer(tlv.AnonymousTag(), tlv.KindStructure); err != nil {
		return err
	}
	if err := w.PutUInt(tag(ctDNOid), uint64(dn.OID)); err != nil {
		return err
	}
	if dn.OID.IsIDValued() {
		if err := w.PutUInt(tag(ctDNIDValue), dn.IDValue); err != nil {
			return err
		}
	} else {
		if err := w.PutString(tag(ctDNStrValue), dn.StrValue); err != nil {
			return err
		}
	}
	if err := w.EndContainer(); err != nil {
		return err
	}
	return w.EndContainer()
}

func decodeDN(r *tlv.Reader) (DistinguishedName, error) {
	var dn DistinguishedName
	if _, ok := r.ContainerKind(); !ok {
		return dn, trace.Wrap(tlv.ErrWrongType, "distinguished name is not a container")
	}
	if err := r.EnterContainer(); err != nil {
		return dn, err
	}
	ok, err := r.Next()
	if err != nil {
		return dn, err
	}
	if !ok {
		return dn, trace.Wrap(ErrUnsupportedCertFormat, "empty distinguished name")
	}
	if err := r.EnterContainer(); err != nil {
		return dn, err
	}
	for {
		ok, err := r.Next()
		if err != nil {
			return dn, err
		}
		if !ok {
			break
		}
		switch r.CurrentTag() {
			case tag(ctDNOid):
			v, err := r.GetUInt()
			if err != nil {
				return dn, err
			}
			dn.OID = AttributeOID(v)
			case tag(ctDNIDValue):
			v, err := r.GetUInt()
			if err != nil {
				return dn, err
			}
			dn.IDValue = v
			case tag(ctDNStrValue):
			s, err := r.GetString()
			if err != nil {
				return dn, err
			}
			dn.StrValue = s
		}
	}
	if err := r.ExitContainer(); err != nil {
		return dn, err
	}
	if err := r.ExitContainer(); err != nil {
		return dn, err
	}
	return dn, nil
}

// EncodeCertificate writes c as a WeaveCertificate structure under
// outer, appending it to w.
func EncodeCertificate(w *tlv.Writer, outer tlv.Tag, c *Certificate) error {
	if err := w.StartContainer(outer, tlv.KindStructure); err != nil {
		return err
	}
	if err := w.PutBytes(tag(ctSerialNumber), c.SerialNumber); err != nil {
		return err
	}
	if err := w.PutUInt(tag(ctSignatureAlgorithm), uint64(c.SignatureAlgorithm)); err != nil {
		return err
	}
	if err := encodeDN(w, tag(ctIssuer), c.Issuer); err != nil {
		return err
	}
	if err := w.PutUInt(tag(ctNotBefore), uint64(c.NotBefore)); err != nil {
		return err
	}
	if err := w.PutUInt(tag(ctNotAfter), uint64(c.NotAfter)); err != nil {
		return err
	}
	if err := encodeDN(w, tag(ctSubject), c.Subject); err != nil {
		return err
	}
	if err := w.PutUInt(tag(ctPublicKeyAlgorithm), uint64(c.PublicKeyAlgorithm)); err != nil {
		return err
	}
	switch c.PublicKeyAlgorithm {
		case PubKeyAlgEC:
		if err := w.PutUInt(tag(ctECCurveID), uint64(c.Curve)); err != nil {
			return err
		}
		if err := w.PutBytes(tag(ctECPublicKey), c.ECPublicKey); err != nil {
			return err
		}
		case PubKeyAlgRSA:
		if err := w.PutBytes(tag(ctRSAModulus), c.RSAModulus); err != nil {
			return err
		}
		if err := w.PutBytes(tag(ctRSAExponent), c.RSAExponent); err != nil {
			return err
		}
	}
	if err := w.PutBytes(tag(ctSubjectKeyID), c.SubjectKeyID); err != nil {
		return err
	}
	if err := w.PutBytes(tag(ctAuthorityKeyID), c.AuthorityKeyID); err != nil {
		return err
	}
	if err := w.PutUInt(tag(ctKeyUsage), uint64(c.KeyUsage)); err != nil {
		return err
	}
	if c.HasExtKeyUsage {
		if err := w.PutUInt(tag(ctExtKeyUsage), uint64(c.ExtKeyUsage)); err != nil {
			return err
		}
	}
	if c.IsCA {
		if err := w.PutBool(tag(ctIsCA), true); err != nil {
			return err
		}
	}
	if c.HasPathLenConstraint {
		if err := w.PutInt(tag(ctPathLenConstraint), int64(c.PathLenConstraint)); err != nil {
			return err
		}
	}
	if err := w.PutUInt(tag(ctCertType), uint64(c.CertType)); err != nil {
		return err
	}
	if err := PutECDSASignature(w, tag(ctECDSASignature), c.SigR, c.SigS); err != nil {
		return err
	}
	return w.EndContainer()
}

// DecodeCertificate parses a single WeaveCertificate structure the
// reader currently sits on. It does not compute the TBS hash; callers
// needing validation should use LoadCert, which wraps this and records
// the hash plus the raw bytes.
func DecodeCertificate(r *tlv.Reader) (*Certificate, error) {
	c := &Certificate{}
	if _, ok := r.ContainerKind(); !ok {
		return nil, trace.Wrap(ErrUnsupportedCertFormat, "certificate is not a structure")
	}
	if err := r.EnterContainer(); err != nil {
		return nil, err
	}
	var haveSubjectKeyID, haveAuthorityKeyID bool
	for {
		ok, err := r.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		switch r.CurrentTag() {
			case tag(ctSerialNumber):
			var b []byte
			b, err = r.GetBytes()
			if err == nil {
				c.SerialNumber = append([]byte{}, b...)
			}
			case tag(ctSignatureAlgorithm):
			var v uint64
			v, err = r.GetUInt()
			c.SignatureAlgorithm = SignatureAlgorithm(v)
			case tag(ctIssuer):
			c.Issuer, err = decodeDN(r)
			case tag(ctNotBefore):
			var v uint64
			v, err = r.GetUInt()
			c.NotBefore = PackedDate(v)
			case tag(ctNotAfter):
			var v uint64
			v, err = r.GetUInt()
			c.NotAfter = PackedDate(v)
			case tag(ctSubject):
			c.Subject, err = decodeDN(r)
			case tag(ctPublicKeyAlgorithm):
			var v uint64
			v, err = r.GetUInt()
			c.PublicKeyAlgorithm = PublicKeyAlgorithm(v)
			case tag(ctECCurveID):
			var v uint64
			v, err = r.GetUInt()
			c.Curve = CurveID(v)
			case tag(ctECPublicKey):
			var b []byte
			b, err = r.GetBytes()
			if err == nil {
				c.ECPublicKey = append([]byte{}, b...)
			}
			case tag(ctRSAModulus):
			var b []byte
			b, err = r.GetBytes()
			if err == nil {
				c.RSAModulus = append([]byte{}, b...)
			}
			case tag(ctRSAExponent):
			var b []byte
			b, err = r.GetBytes()
			if err == nil {
				c.RSAExponent = append([]byte{}, b...)
			}
			case tag(ctSubjectKeyID):
			var b []byte
			b, err = r.GetBytes()
			if err == nil {
				c.SubjectKeyID = append(KeyID{}, b...)
				haveSubjectKeyID = true
			}
			case tag(ctAuthorityKeyID):
			var b []byte
			b, err = r.GetBytes()
			if err == nil {
				c.AuthorityKeyID = append(KeyID{}, b...)
				haveAuthorityKeyID = true
			}
			case tag(ctKeyUsage):
			var v uint64
			v, err = r.GetUInt()
			c.KeyUsage = KeyUsage(v)
			case tag(ctExtKeyUsage):
			var v uint64
			v, err = r.GetUInt()
			c.ExtKeyUsage = KeyPurpose(v)
			c.HasExtKeyUsage = true
			case tag(ctIsCA):
			c.IsCA, err = r.GetBool()
			case tag(ctPathLenConstraint):
			var v int64
			v, err = r.GetInt()
			c.PathLenConstraint = int(v)
			c.HasPathLenConstraint = true
			case tag(ctCertType):
			var v uint64
			v, err = r.GetUInt()
			c.CertType = CertType(v)
			case tag(ctECDSASignature):
			err = decodeSignature(r, c)
		}
		if err != nil {
			return nil, err
		}
	}
	if err := r.ExitContainer(); err != nil {
		return nil, err
	}
	if !haveSubjectKeyID || !haveAuthorityKeyID {
		return nil, trace.Wrap(ErrUnsupportedCertFormat, "certificate missing subject-key-id or authority-key-id extension")
	}
	return c, nil
}

func decodeSignature(r *tlv.Reader, c *Certificate) error {
	sigR, sigS, err := GetECDSASignature(r)
	if err != nil {
		return err
	}
	c.SigR, c.SigS = sigR, sigS
	return nil
}
