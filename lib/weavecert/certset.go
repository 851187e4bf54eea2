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
	"github.com/gravitational/trace"

	"github.com/weaveio/weavecore/lib/tlv"
)

// DefaultSetCapacity is the default CertificateSet capacity, mirroring
// the fixed-capacity embedded-systems posture of similar certificate stores.
const DefaultSetCapacity = 8

// CertificateSet is a bounded, single-owner collection of certificates,
// built by LoadCert calls and destroyed as a unit; individual certs
// never outlive the set.
type CertificateSet struct {
	capacity int
	certs []*Certificate
}

// NewCertificateSet returns an empty set with the given capacity (or
// DefaultSetCapacity if capacity <= 0).
func NewCertificateSet(capacity int) *CertificateSet {
	if capacity <= 0 {
		capacity = DefaultSetCapacity
	}
	return &CertificateSet{capacity: capacity}
}

// Len reports how many certificates are currently loaded.
func (s *CertificateSet) Len() int { return len(s.certs) }

// Certs returns the loaded certificates. Callers must not mutate the
// returned slice's contents' rawTLV or signature fields; the set owns
// them.
func (s *CertificateSet) Certs() []*Certificate { return s.certs }

// Add inserts an already-constructed certificate into the set without
// going through LoadCert's wire-decode path. Used when a certificate is
// built in memory (e.g. AddTrustedKey's general form, or an issuance
// helper that signs a freshly constructed Certificate).
func (s *CertificateSet) Add(c *Certificate) error { return s.add(c) }

func (s *CertificateSet) add(c *Certificate) error {
	if len(s.certs) >= s.capacity {
		return trace.Wrap(ErrNoMemory, "certificate set at capacity %d", s.capacity)
	}
	s.certs = append(s.certs, c)
	return nil
}

// LoadCert parses a single Weave-TLV certificate from a reader
// positioned on a WeaveCertificate structure.2: it decodes
// the TBS portion into a temporary scratch buffer, computes the TBS
// hash using the hash implied by the signature algorithm, and requires
// both subject-key-id and authority-key-id to be present.
func (s *CertificateSet) LoadCert(r *tlv.Reader, raw []byte, flags LoadFlags) (*Certificate, error) {
	c, err := DecodeCertificate(r)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if !c.SignatureAlgorithm.IsSupported() {
		return nil, trace.Wrap(ErrUnsupportedCertFormat, "unsupported signature algorithm %v", c.SignatureAlgorithm)
	}
	tbs, err := tbsBytes(c)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	hash, err := hashForSigAlg(c.SignatureAlgorithm, tbs)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	c.tbsHash = hash
	if raw != nil {
		c.rawTLV = append([]byte{}, raw...)
	}
	if err := s.add(c); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadCertBytes decodes a single WeaveCertificate-tagged structure from
// an encoded buffer and loads it into the set.
func (s *CertificateSet) LoadCertBytes(encoded []byte, flags LoadFlags) (*Certificate, error) {
	r := tlv.NewReader(encoded)
	ok, err := r.Next()
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if !ok {
		return nil, trace.Wrap(ErrUnsupportedCertFormat, "empty certificate buffer")
	}
	return s.LoadCert(r, encoded, flags)
}

// LoadCerts decodes either a single certificate or a
// WeaveCertificateList array from encoded
func (s *CertificateSet) LoadCerts(encoded []byte, flags LoadFlags) ([]*Certificate, error) {
	r := tlv.NewReader(encoded)
	ok, err := r.Next()
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if !ok {
		return nil, trace.Wrap(ErrUnsupportedCertFormat, "empty certificate buffer")
	}
	if r.CurrentTag() == tlv.ProfileTag(ProfileSecurity, TagWeaveCertificateList) {
		kind, ok := r.ContainerKind()
		if !ok || kind != tlv.KindArray {
			return nil, trace.Wrap(ErrUnsupportedCertFormat, "WeaveCertificateList is not an array")
		}
		if err := r.EnterContainer(); err != nil {
			return nil, trace.Wrap(err)
		}
		var out []*Certificate
		for {
			more, err := r.Next()
			if err != nil {
				return nil, trace.Wrap(err)
			}
			if !more {
				break
			}
			c, err := s.LoadCert(r, nil, flags)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
		return out, r.ExitContainer()
	}
	c, err := s.LoadCert(r, encoded, flags)
	if err != nil {
		return nil, err
	}
	return []*Certificate{c}, nil
}

// AddTrustedKey synthesizes a trust anchor from a known public key
// without parsing wire bytes. Used when the trust root
// is embedded in firmware rather than transmitted on the wire.
func (s *CertificateSet) AddTrustedKey(caID uint64, curve CurveID, pubKey []byte, keyID KeyID) (*Certificate, error) {
	c := &Certificate{
		SignatureAlgorithm: SigAlgECDSAWithSHA256,
		Issuer: IDAttr(OIDWeaveCAID, caID),
		Subject: IDAttr(OIDWeaveCAID, caID),
		NotBefore: NoWellDefinedExpiration,
		NotAfter: NoWellDefinedExpiration,
		PublicKeyAlgorithm: PubKeyAlgEC,
		Curve: curve,
		ECPublicKey: append([]byte{}, pubKey...),
		SubjectKeyID: keyID,
		AuthorityKeyID: keyID,
		KeyUsage: KeyUsageKeyCertSign | KeyUsageCRLSign,
		IsCA: true,
		CertType: CertTypeCA,
		Trusted: true,
	}
	if err := s.add(c); err != nil {
		return nil, err
	}
	return c, nil
}

// FindCert performs a linear scan for a certificate with the given
// subject key id.
func (s *CertificateSet) FindCert(subjectKeyID KeyID) (*Certificate, bool) {
	for _, c := range s.certs {
		if c.SubjectKeyID.Equal(subjectKeyID) {
			return c, true
		}
	}
	return nil, false
}

// findIssuerCandidates returns every certificate in the set, other than
// cert itself, whose subject DN and subject key id match cert's issuer
// DN and authority key id. A set can legitimately hold more than one
// certificate sharing a subject key id (e.g. a CA's old and renewed
// certificates); matching on subject DN as well as subject key id, and
// returning every match instead of the first, lets the caller try each
// candidate rather than committing to a single lookup result.
func (s *CertificateSet) findIssuerCandidates(cert *Certificate) []*Certificate {
	var out []*Certificate
	for _, c := range s.certs {
		if c == cert {
			continue
		}
		if !c.SubjectKeyID.Equal(cert.AuthorityKeyID) {
			continue
		}
		if !c.Subject.Equal(cert.Issuer) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// SaveCerts emits firstCert as a pre-encoded container (bulk copy of
// its original TLV bytes, re-tagged), followed by each other
// non-trusted certificate in the set (and trusted ones too if
// includeTrusted is set)
func (s *CertificateSet) SaveCerts(w *tlv.Writer, firstCert *Certificate, includeTrusted bool) error {
	if firstCert != nil {
		if err := s.emitOne(w, firstCert); err != nil {
			return err
		}
	}
	for _, c := range s.certs {
		if c == firstCert {
			continue
		}
		if c.Trusted && !includeTrusted {
			continue
		}
		if err := s.emitOne(w, c); err != nil {
			return err
		}
	}
	return nil
}

func (s *CertificateSet) emitOne(w *tlv.Writer, c *Certificate) error {
	outer := tlv.ProfileTag(ProfileSecurity, TagWeaveCertificate)
	if len(c.rawTLV) > 0 {
		return w.PutPreEncodedContainer(outer, c.rawTLV)
	}
	return EncodeCertificate(w, outer, c)
}
