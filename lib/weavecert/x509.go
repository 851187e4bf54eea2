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
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"

	"github.com/gravitational/trace"
)

// ConvertWeaveCertToX509Cert renders c as a standard library x509.Certificate,
// meeting the bidirectional X.509 conversion requirement. Weave-id DN
// attributes are encoded as 16-char uppercase hex strings under their
// vendor-arc OID (see weaveIDHexString), since x509.Name has no native
// concept of an id-valued attribute.
func ConvertWeaveCertToX509Cert(c *Certificate) (*x509.Certificate, error) {
	issuer, err := dnToPKIXName(c.Issuer)
	if err != nil {
		return nil, err
	}
	subject, err := dnToPKIXName(c.Subject)
	if err != nil {
		return nil, err
	}
	out := &x509.Certificate{
		SerialNumber: new(big.Int).SetBytes(c.SerialNumber),
		Issuer: issuer,
		Subject: subject,
		NotBefore: c.NotBefore.ToTime(),
		NotAfter: c.NotAfter.EndOfDay(),
		SubjectKeyId: append([]byte{}, c.SubjectKeyID...),
		AuthorityKeyId: append([]byte{}, c.AuthorityKeyID...),
		KeyUsage: x509KeyUsage(c.KeyUsage),
		IsCA: c.IsCA,
		BasicConstraintsValid: true,
	}
	if c.NotAfter == NoWellDefinedExpiration {
		out.NotAfter = c.NotAfter.ToTime()
	}
	if c.HasExtKeyUsage {
		out.ExtKeyUsage = x509ExtKeyUsage(c.ExtKeyUsage)
	}
	if c.HasPathLenConstraint {
		out.MaxPathLen = c.PathLenConstraint
		out.MaxPathLenZero = c.PathLenConstraint == 0
	}
	switch c.PublicKeyAlgorithm {
		case PubKeyAlgEC:
		curve := ellipticCurve(c.Curve)
		if curve == nil {
			return nil, trace.Wrap(ErrUnsupportedEncoding, "unrecognized curve id %v", c.Curve)
		}
		x, y := elliptic.Unmarshal(curve, c.ECPublicKey)
		if x == nil {
			return nil, trace.Wrap(ErrUnsupportedEncoding, "malformed EC public key point")
		}
		out.PublicKeyAlgorithm = x509.ECDSA
		out.PublicKey = &ecdsa.PublicKey{Curve: curve, X: x, Y: y}
		case PubKeyAlgRSA:
		out.PublicKeyAlgorithm = x509.RSA
		out.PublicKey = &rsaPublicKeyView{
			N: new(big.Int).SetBytes(c.RSAModulus),
			E: int(new(big.Int).SetBytes(c.RSAExponent).Int64()),
		}
		default:
		return nil, trace.Wrap(ErrUnsupportedEncoding, "unrecognized public key algorithm %v", c.PublicKeyAlgorithm)
	}
	switch c.SignatureAlgorithm {
		case SigAlgECDSAWithSHA1:
		out.SignatureAlgorithm = x509.ECDSAWithSHA1
		case SigAlgECDSAWithSHA256:
		out.SignatureAlgorithm = x509.ECDSAWithSHA256
	}
	sig, err := asn1.Marshal(struct{ R, S *big.Int }{new(big.Int).SetBytes(c.SigR), new(big.Int).SetBytes(c.SigS)})
	if err != nil {
		return nil, trace.Wrap(err)
	}
	out.Signature = sig
	return out, nil
}

// ConvertX509CertToWeaveCert rebuilds a Certificate from a standard
// library x509.Certificate, the inverse of ConvertWeaveCertToX509Cert.
// It requires an ECDSA public key and a SubjectKeyId/AuthorityKeyId,
// matching LoadCert's requirements.
func ConvertX509CertToWeaveCert(xc *x509.Certificate) (*Certificate, error) {
	if len(xc.SubjectKeyId) == 0 || len(xc.AuthorityKeyId) == 0 {
		return nil, trace.Wrap(ErrUnsupportedCertFormat, "x509 certificate missing subject-key-id or authority-key-id")
	}
	issuer, err := pkixNameToDN(xc.Issuer)
	if err != nil {
		return nil, err
	}
	subject, err := pkixNameToDN(xc.Subject)
	if err != nil {
		return nil, err
	}
	c := &Certificate{
		SerialNumber: xc.SerialNumber.Bytes(),
		Issuer: issuer,
		Subject: subject,
		NotBefore: PackTime(xc.NotBefore),
		NotAfter: PackTime(xc.NotAfter),
		SubjectKeyID: append(KeyID{}, xc.SubjectKeyId...),
		AuthorityKeyID: append(KeyID{}, xc.AuthorityKeyId...),
		KeyUsage: weaveKeyUsage(xc.KeyUsage),
		IsCA: xc.IsCA,
		HasPathLenConstraint: xc.MaxPathLen > 0 || xc.MaxPathLenZero,
		PathLenConstraint: xc.MaxPathLen,
	}
	if len(xc.ExtKeyUsage) > 0 {
		c.HasExtKeyUsage = true
		c.ExtKeyUsage = weaveExtKeyUsage(xc.ExtKeyUsage)
	}
	switch pub := xc.PublicKey.(type) {
		case *ecdsa.PublicKey:
		c.PublicKeyAlgorithm = PubKeyAlgEC
		c.Curve = curveIDFor(pub.Curve)
		c.ECPublicKey = elliptic.Marshal(pub.Curve, pub.X, pub.Y)
		default:
		return nil, trace.Wrap(ErrUnsupportedEncoding, "only ECDSA x509 certificates convert to weave certificates")
	}
	switch xc.SignatureAlgorithm {
		case x509.ECDSAWithSHA1:
		c.SignatureAlgorithm = SigAlgECDSAWithSHA1
		case x509.ECDSAWithSHA256:
		c.SignatureAlgorithm = SigAlgECDSAWithSHA256
		default:
		return nil, trace.Wrap(ErrUnsupportedCertFormat, "unsupported x509 signature algorithm %v", xc.SignatureAlgorithm)
	}
	var sig struct{ R, S *big.Int }
	if _, err := asn1.Unmarshal(xc.Signature, &sig); err != nil {
		return nil, trace.Wrap(ErrUnsupportedEncoding, "malformed ECDSA signature: %v", err)
	}
	c.SigR = sig.R.Bytes()
	c.SigS = sig.S.Bytes()
	return c, nil
}

func curveIDFor(curve elliptic.Curve) CurveID {
	switch curve {
		case elliptic.P224:
		return CurveSECP224R1
		case elliptic.P256():
		return CurveSECP256R1
		default:
		return CurveUnspecified
	}
}

func dnToPKIXName(dn DistinguishedName) (pkix.Name, error) {
	oid, ok := asn1AttributeTypeOID[dn.OID]
	if !ok {
		return pkix.Name{}, trace.Wrap(ErrUnsupportedEncoding, "no ASN.1 OID mapping for attribute %v", dn.OID)
	}
	value := dn.StrValue
	if dn.OID.IsIDValued() {
		value = weaveIDHexString(dn.IDValue)
	}
	name := pkix.Name{}
	name.ExtraNames = append(name.ExtraNames, pkix.AttributeTypeAndValue{Type: oid, Value: value})
	return name, nil
}

func pkixNameToDN(name pkix.Name) (DistinguishedName, error) {
	for _, atv := range append(append([]pkix.AttributeTypeAndValue{}, name.Names...), name.ExtraNames...) {
		oid, ok := asn1OIDToAttribute[atv.Type.String()]
		if !ok {
			continue
		}
		s, ok := atv.Value.(string)
		if !ok {
			return DistinguishedName{}, trace.Wrap(ErrUnsupportedEncoding, "non-string attribute value for %v", oid)
		}
		if oid.IsIDValued() {
			id, err := parseWeaveIDHexString(s)
			if err != nil {
				return DistinguishedName{}, err
			}
			return IDAttr(oid, id), nil
		}
		return StringAttr(oid, s), nil
	}
	return DistinguishedName{}, trace.Wrap(ErrUnsupportedEncoding, "no recognized distinguished name attribute present")
}

func x509KeyUsage(u KeyUsage) x509.KeyUsage {
	var out x509.KeyUsage
	if u.Has(KeyUsageDigitalSignature) {
		out |= x509.KeyUsageDigitalSignature
	}
	if u.Has(KeyUsageKeyCertSign) {
		out |= x509.KeyUsageCertSign
	}
	if u.Has(KeyUsageCRLSign) {
		out |= x509.KeyUsageCRLSign
	}
	if u.Has(KeyUsageKeyEncipherment) {
		out |= x509.KeyUsageKeyEncipherment
	}
	if u.Has(KeyUsageKeyAgreement) {
		out |= x509.KeyUsageKeyAgreement
	}
	return out
}

func weaveKeyUsage(u x509.KeyUsage) KeyUsage {
	var out KeyUsage
	if u&x509.KeyUsageDigitalSignature != 0 {
		out |= KeyUsageDigitalSignature
	}
	if u&x509.KeyUsageCertSign != 0 {
		out |= KeyUsageKeyCertSign
	}
	if u&x509.KeyUsageCRLSign != 0 {
		out |= KeyUsageCRLSign
	}
	if u&x509.KeyUsageKeyEncipherment != 0 {
		out |= KeyUsageKeyEncipherment
	}
	if u&x509.KeyUsageKeyAgreement != 0 {
		out |= KeyUsageKeyAgreement
	}
	return out
}

func x509ExtKeyUsage(p KeyPurpose) []x509.ExtKeyUsage {
	var out []x509.ExtKeyUsage
	if p.Has(KeyPurposeServerAuth) {
		out = append(out, x509.ExtKeyUsageServerAuth)
	}
	if p.Has(KeyPurposeClientAuth) {
		out = append(out, x509.ExtKeyUsageClientAuth)
	}
	if p.Has(KeyPurposeCodeSigning) {
		out = append(out, x509.ExtKeyUsageCodeSigning)
	}
	return out
}

func weaveExtKeyUsage(us []x509.ExtKeyUsage) KeyPurpose {
	var out KeyPurpose
	for _, u := range us {
		switch u {
			case x509.ExtKeyUsageServerAuth:
			out |= KeyPurposeServerAuth
			case x509.ExtKeyUsageClientAuth:
			out |= KeyPurposeClientAuth
			case x509.ExtKeyUsageCodeSigning:
			out |= KeyPurposeCodeSigning
		}
	}
	return out
}
