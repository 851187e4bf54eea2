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

import "encoding/asn1"

// dnASN1 is the scratch ASN.1 shape a DistinguishedName is rendered to
// before it is folded into a certificate's to-be-signed region, decoded
// into a temporary ASN.1-DER scratch buffer to compute the TBS hash;
// this is that buffer's element shape for the issuer/subject fields.
type dnASN1 struct {
	OID int
	IsID bool
	IDValue int64 `asn1:"optional"`
	StrValue string `asn1:"optional,utf8"`
}

func dnToASN1Bytes(dn DistinguishedName) ([]byte, error) {
	return asn1.Marshal(dnASN1{
			OID: int(dn.OID),
			IsID: dn.OID.IsIDValued(),
			IDValue: int64(dn.IDValue),
			StrValue: dn.StrValue,
		})
}

// tbsTemplate is the to-be-signed scratch structure: every field that
// participates in a certificate's signature, laid out so that signing
// and verifying always hash the identical bytes.
type tbsTemplate struct {
	SerialNumber []byte
	SignatureAlgorithm int
	Issuer []byte
	NotBefore int64
	NotAfter int64
	Subject []byte
	PublicKeyAlgorithm int
	Curve int
	ECPublicKey []byte `asn1:"optional"`
	RSAModulus []byte `asn1:"optional"`
	RSAExponent []byte `asn1:"optional"`
	SubjectKeyID []byte
	AuthorityKeyID []byte
	KeyUsage int
	ExtKeyUsage int
	HasExtKeyUsage bool
	IsCA bool
	HasPathLenConstraint bool
	PathLenConstraint int
	CertType int
}

// tbsBytes renders the portion of c that is covered by its signature
// into a deterministic DER scratch buffer.
func tbsBytes(c *Certificate) ([]byte, error) {
	issuer, err := dnToASN1Bytes(c.Issuer)
	if err != nil {
		return nil, err
	}
	subject, err := dnToASN1Bytes(c.Subject)
	if err != nil {
		return nil, err
	}
	t := tbsTemplate{
		SerialNumber: c.SerialNumber,
		SignatureAlgorithm: int(c.SignatureAlgorithm),
		Issuer: issuer,
		NotBefore: int64(c.NotBefore),
		NotAfter: int64(c.NotAfter),
		Subject: subject,
		PublicKeyAlgorithm: int(c.PublicKeyAlgorithm),
		Curve: int(c.Curve),
		ECPublicKey: c.ECPublicKey,
		RSAModulus: c.RSAModulus,
		RSAExponent: c.RSAExponent,
		SubjectKeyID: c.SubjectKeyID,
		AuthorityKeyID: c.AuthorityKeyID,
		KeyUsage: int(c.KeyUsage),
		ExtKeyUsage: int(c.ExtKeyUsage),
		HasExtKeyUsage: c.HasExtKeyUsage,
		IsCA: c.IsCA,
		HasPathLenConstraint: c.HasPathLenConstraint,
		PathLenConstraint: c.PathLenConstraint,
		CertType: int(c.CertType),
	}
	if len(t.ECPublicKey) == 0 {
		t.ECPublicKey = []byte{0}
	}
	if len(t.RSAModulus) == 0 {
		t.RSAModulus = []byte{0}
	}
	if len(t.RSAExponent) == 0 {
		t.RSAExponent = []byte{0}
	}
	return asn1.Marshal(t)
}
