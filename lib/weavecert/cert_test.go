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
	"crypto/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/weaveio/weavecore/lib/tlv"
)

func newCAKeyAndCert(t *testing.T, caID uint64) (*ecdsa.PrivateKey, *Certificate) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	keyID, err := NewKeyID([]byte{0xAA, byte(caID)})
	require.NoError(t, err)
	ca := &Certificate{
		SerialNumber: []byte{1},
		SignatureAlgorithm: SigAlgECDSAWithSHA256,
		Issuer: IDAttr(OIDWeaveCAID, caID),
		Subject: IDAttr(OIDWeaveCAID, caID),
		NotBefore: PackDate(2020, 1, 1),
		NotAfter: NoWellDefinedExpiration,
		PublicKeyAlgorithm: PubKeyAlgEC,
		Curve: CurveSECP256R1,
		ECPublicKey: elliptic.Marshal(priv.Curve, priv.X, priv.Y),
		SubjectKeyID: keyID,
		AuthorityKeyID: keyID,
		KeyUsage: KeyUsageKeyCertSign | KeyUsageCRLSign,
		IsCA: true,
		CertType: CertTypeCA,
	}
	require.NoError(t, SignCertWithKey(ca, priv))
	return priv, ca
}

func newLeafCert(t *testing.T, deviceID uint64, caPriv *ecdsa.PrivateKey, caKeyID KeyID) (*ecdsa.PrivateKey, *Certificate) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	keyID, err := NewKeyID([]byte{0xBB, byte(deviceID)})
	require.NoError(t, err)
	leaf := &Certificate{
		SerialNumber: []byte{2},
		SignatureAlgorithm: SigAlgECDSAWithSHA256,
		Issuer: IDAttr(OIDWeaveCAID, 1),
		Subject: IDAttr(OIDWeaveDeviceID, deviceID),
		NotBefore: PackDate(2020, 1, 1),
		NotAfter: PackDate(2030, 1, 1),
		PublicKeyAlgorithm: PubKeyAlgEC,
		Curve: CurveSECP256R1,
		ECPublicKey: elliptic.Marshal(priv.Curve, priv.X, priv.Y),
		SubjectKeyID: keyID,
		AuthorityKeyID: caKeyID,
		KeyUsage: KeyUsageDigitalSignature,
		ExtKeyUsage: KeyPurposeClientAuth,
		HasExtKeyUsage: true,
		CertType: CertTypeDevice,
	}
	require.NoError(t, SignCertWithKey(leaf, caPriv))
	return priv, leaf
}

// TestEncodeDecodeCertRoundTrip exercises P5: DecodeCertificate(Encode(c))
// reproduces every field of c.
func TestEncodeDecodeCertRoundTrip(t *testing.T) {
	_, ca := newCAKeyAndCert(t, 1)

	w := tlv.NewGrowableWriter()
	outer := tlv.ProfileTag(ProfileSecurity, TagWeaveCertificate)
	require.NoError(t, EncodeCertificate(w, outer, ca))
	require.NoError(t, w.Finalize())

	r := tlv.NewReader(w.Bytes())
	ok, err := r.Next()
	require.NoError(t, err)
	require.True(t, ok)

	got, err := DecodeCertificate(r)
	require.NoError(t, err)
	require.True(t, got.IsCA)
	// Compare every exported field at once rather than field-by-field;
	// the unexported fields differ (signing set ca's tbsHash, while
	// DecodeCertificate leaves got's unset), hence IgnoreUnexported.
	require.Empty(t, cmp.Diff(ca, got, cmpopts.IgnoreUnexported(Certificate{})))
}

// TestDecodeCertificateRequiresKeyIDs exercises the requirement that
// subject-key-id and authority-key-id both be present.
func TestDecodeCertificateRequiresKeyIDs(t *testing.T) {
	_, ca := newCAKeyAndCert(t, 1)
	ca.AuthorityKeyID = nil

	w := tlv.NewGrowableWriter()
	outer := tlv.ProfileTag(ProfileSecurity, TagWeaveCertificate)

	// Encode by hand, skipping the authority key id field, since
	// EncodeCertificate would otherwise write an empty byte string.
	require.NoError(t, w.StartContainer(outer, tlv.KindStructure))
	require.NoError(t, w.PutBytes(tag(ctSerialNumber), ca.SerialNumber))
	require.NoError(t, w.PutUInt(tag(ctSignatureAlgorithm), uint64(ca.SignatureAlgorithm)))
	require.NoError(t, encodeDN(w, tag(ctIssuer), ca.Issuer))
	require.NoError(t, w.PutUInt(tag(ctNotBefore), uint64(ca.NotBefore)))
	require.NoError(t, w.PutUInt(tag(ctNotAfter), uint64(ca.NotAfter)))
	require.NoError(t, encodeDN(w, tag(ctSubject), ca.Subject))
	require.NoError(t, w.PutUInt(tag(ctPublicKeyAlgorithm), uint64(ca.PublicKeyAlgorithm)))
	require.NoError(t, w.PutUInt(tag(ctECCurveID), uint64(ca.Curve)))
	require.NoError(t, w.PutBytes(tag(ctECPublicKey), ca.ECPublicKey))
	require.NoError(t, w.PutBytes(tag(ctSubjectKeyID), ca.SubjectKeyID))
	require.NoError(t, w.PutUInt(tag(ctKeyUsage), uint64(ca.KeyUsage)))
	require.NoError(t, w.PutBool(tag(ctIsCA), true))
	require.NoError(t, w.PutUInt(tag(ctCertType), uint64(ca.CertType)))
	require.NoError(t, w.StartContainer(tag(ctECDSASignature), tlv.KindStructure))
	require.NoError(t, w.PutBytes(tag(ctSigR), ca.SigR))
	require.NoError(t, w.PutBytes(tag(ctSigS), ca.SigS))
	require.NoError(t, w.EndContainer())
	require.NoError(t, w.EndContainer())
	require.NoError(t, w.Finalize())

	r := tlv.NewReader(w.Bytes())
	ok, err := r.Next()
	require.NoError(t, err)
	require.True(t, ok)

	_, err = DecodeCertificate(r)
	require.ErrorIs(t, err, ErrUnsupportedCertFormat)
}

// TestFindValidCertChain exercises P6/S1: a device cert issued by a CA
// that is itself a trust anchor validates end to end, including
// signature verification against the issuer's public key.
func TestFindValidCertChain(t *testing.T) {
	caPriv, ca := newCAKeyAndCert(t, 1)
	ca.Trusted = true
	_, leaf := newLeafCert(t, 42, caPriv, ca.SubjectKeyID)

	set := NewCertificateSet(4)
	err := set.Add(ca)
	require.NoError(t, err)
	err = set.Add(leaf)
	require.NoError(t, err)

	validated, err := FindValidCert(set, leaf, ValidationContext{
			EffectiveTime: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		})
	require.NoError(t, err)
	require.Same(t, leaf, validated)
}

// TestFindValidCertExpired exercises S2: an expired certificate is
// rejected even if the chain above it is otherwise trusted.
func TestFindValidCertExpired(t *testing.T) {
	caPriv, ca := newCAKeyAndCert(t, 1)
	ca.Trusted = true
	_, leaf := newLeafCert(t, 42, caPriv, ca.SubjectKeyID)

	set := NewCertificateSet(4)
	err := set.Add(ca)
	require.NoError(t, err)
	err = set.Add(leaf)
	require.NoError(t, err)

	_, err = FindValidCert(set, leaf, ValidationContext{
			EffectiveTime: time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC),
		})
	require.ErrorIs(t, err, ErrCertExpired)
}

// TestFindValidCertBadSignature exercises S1's negative case: tampering
// with a leaf's signature breaks chain validation.
func TestFindValidCertBadSignature(t *testing.T) {
	caPriv, ca := newCAKeyAndCert(t, 1)
	ca.Trusted = true
	_, leaf := newLeafCert(t, 42, caPriv, ca.SubjectKeyID)
	leaf.SigR[0] ^= 0xFF

	set := NewCertificateSet(4)
	err := set.Add(ca)
	require.NoError(t, err)
	err = set.Add(leaf)
	require.NoError(t, err)

	_, err = FindValidCert(set, leaf, ValidationContext{
			EffectiveTime: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		})
	require.ErrorIs(t, err, ErrWrongCertSignature)
}

// TestFindValidCertRejectsUntrustedSelfSigned exercises the
// self-signed/untrusted step of chain validation: a well-formed,
// self-signed CA certificate that is not marked Trusted has no path to
// a trust anchor and must be rejected rather than validated against
// itself.
func TestFindValidCertRejectsUntrustedSelfSigned(t *testing.T) {
	_, ca := newCAKeyAndCert(t, 1)

	set := NewCertificateSet(4)
	require.NoError(t, set.Add(ca))

	_, err := FindValidCert(set, ca, ValidationContext{
			EffectiveTime: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		})
	require.ErrorIs(t, err, ErrCertNotTrusted)
}

// TestFindValidCertBoundsCycleDepth exercises the unconditional
// cycle/depth bound: two non-trusted certificates that name each other
// as issuer must fail closed instead of recursing without bound, even
// when MaxPathLen is left unset.
func TestFindValidCertBoundsCycleDepth(t *testing.T) {
	_, c1 := newCAKeyAndCert(t, 1)
	_, c2 := newCAKeyAndCert(t, 2)

	// Point each certificate's issuer fields at the other, forming a
	// two-certificate cycle with no trust anchor. Neither certificate's
	// signature is re-verified against this mutated TBS content: the
	// cycle bound is expected to fail the chain closed before signature
	// verification is ever reached.
	c1.Issuer = c2.Subject
	c1.AuthorityKeyID = c2.SubjectKeyID
	c2.Issuer = c1.Subject
	c2.AuthorityKeyID = c1.SubjectKeyID

	set := NewCertificateSet(4)
	require.NoError(t, set.Add(c1))
	require.NoError(t, set.Add(c2))

	_, err := FindValidCert(set, c1, ValidationContext{
			EffectiveTime: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		})
	require.ErrorIs(t, err, ErrPathLenConstraint)
}

// TestConvertWeaveCertToX509CertRoundTrip exercises the bidirectional
// X.509 conversion requirement.
func TestConvertWeaveCertToX509CertRoundTrip(t *testing.T) {
	caPriv, ca := newCAKeyAndCert(t, 7)
	_, leaf := newLeafCert(t, 99, caPriv, ca.SubjectKeyID)

	xc, err := ConvertWeaveCertToX509Cert(leaf)
	require.NoError(t, err)
	require.True(t, xc.NotBefore.Equal(leaf.NotBefore.ToTime()))

	back, err := ConvertX509CertToWeaveCert(xc)
	require.NoError(t, err)
	require.True(t, leaf.Subject.Equal(back.Subject))
	require.True(t, leaf.Issuer.Equal(back.Issuer))
	require.Equal(t, leaf.SubjectKeyID, back.SubjectKeyID)
	require.Equal(t, leaf.AuthorityKeyID, back.AuthorityKeyID)
	require.Equal(t, leaf.KeyUsage, back.KeyUsage)
	require.Equal(t, leaf.ECPublicKey, back.ECPublicKey)
	require.Equal(t, leaf.SigR, back.SigR)
	require.Equal(t, leaf.SigS, back.SigS)
}
