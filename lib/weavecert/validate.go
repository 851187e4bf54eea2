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
	"crypto/rand"
	"math/big"
	"time"

	"github.com/gravitational/trace"
)

// ValidationContext carries the parameters ValidateCert checks a chain
// against: the time of validation, the required key
// usage/purpose, and how deep the chain may run.
type ValidationContext struct {
	// EffectiveTime is the instant NotBefore/NotAfter are compared
	// against. Zero means time.Now().
	EffectiveTime time.Time

	RequiredKeyUsage KeyUsage
	RequiredKeyPurpose KeyPurpose

	// MaxPathLen bounds how many intermediate certificates
	// FindValidCert will walk before giving up; 0 means no limit beyond
	// the certificate set's size.
	MaxPathLen int

	// isCAIntermediate is set by FindValidCert's internal recursion so
	// step-ordering CA-only checks (IsCA, KeyUsageKeyCertSign) apply to
	// every certificate above the leaf but not the leaf itself.
	isCAIntermediate bool
	depth int

	// requireSHA256 is set by FindValidCert's internal recursion once it
	// has validated a certificate signed with ECDSA-SHA256: every
	// certificate above that point in the chain must also be signed
	// with SHA-256, so a signature downgrade higher in the chain can't
	// weaken an already-SHA256 link.
	requireSHA256 bool
}

func (v ValidationContext) effectiveTime() time.Time {
	if v.EffectiveTime.IsZero() {
		return time.Now().UTC()
	}
	return v.EffectiveTime
}

// ValidateCert checks a single certificate against ctx without chain
// walking: validity window, trust usage/purpose requirements, and (for
// intermediates) the CA bits. It does not check the signature; that is
// FindValidCert's job, since verifying a signature requires the
// issuer's public key.
//
// Implements step 3 (validity period) and step 4 (usage).
func ValidateCert(c *Certificate, ctx ValidationContext) error {
	now := ctx.effectiveTime()
	if c.NotBefore != NoWellDefinedExpiration && now.Before(c.NotBefore.ToTime()) {
		return trace.Wrap(ErrCertNotYetValid, "certificate not valid until %s", c.NotBefore.ToTime())
	}
	if c.NotAfter != NoWellDefinedExpiration && now.After(c.NotAfter.EndOfDay()) {
		return trace.Wrap(ErrCertExpired, "certificate expired at %s", c.NotAfter.EndOfDay())
	}
	if ctx.isCAIntermediate {
		if !c.IsCA {
			return trace.Wrap(ErrUsageNotAllowed, "intermediate certificate is not marked as a CA")
		}
		if !c.KeyUsage.Has(KeyUsageKeyCertSign) {
			return trace.Wrap(ErrUsageNotAllowed, "intermediate certificate lacks key-cert-sign usage")
		}
		if c.HasPathLenConstraint && ctx.depth > c.PathLenConstraint {
			return trace.Wrap(ErrPathLenConstraint, "chain depth %d exceeds path length constraint %d", ctx.depth, c.PathLenConstraint)
		}
	} else {
		if ctx.RequiredKeyUsage != 0 && !c.KeyUsage.Has(ctx.RequiredKeyUsage) {
			return trace.Wrap(ErrUsageNotAllowed, "certificate lacks required key usage %v", ctx.RequiredKeyUsage)
		}
		if ctx.RequiredKeyPurpose != 0 {
			if !c.HasExtKeyUsage || !c.ExtKeyUsage.Has(ctx.RequiredKeyPurpose) {
				return trace.Wrap(ErrUsageNotAllowed, "certificate lacks required key purpose %v", ctx.RequiredKeyPurpose)
			}
		}
	}
	return nil
}

// FindValidCert implements the six-step chain validation
// algorithm, recursively walking issuer links within set until it
// reaches a certificate marked Trusted:
//
// 1. ValidateCert(cert) must pass (validity window, usage); this
// applies to trusted certificates too.
// 2. A trusted cert then validates immediately (the chain bottoms out
// at a trust anchor); otherwise cert must not be its own issuer (a
// self-signed, non-trusted certificate is cert-not-trusted, not a
// trust anchor).
// 3. The issuer is looked up in set by subject DN and subject key id;
// every matching candidate is tried in turn, keeping the most recent
// error to return if none validates.
// 4. The issuer is recursively validated as an intermediate (or is
// itself a trust anchor).
// 5. cert's signature is verified against the issuer's public key.
// 6. MaxPathLen, if set, bounds the recursion depth; the recursion is
// additionally bounded by the certificate set's size regardless of
// MaxPathLen, so a contrived certificate cycle fails closed instead of
// recursing without bound.
func FindValidCert(set *CertificateSet, cert *Certificate, ctx ValidationContext) (*Certificate, error) {
	return findValidCert(set, cert, ctx)
}

func findValidCert(set *CertificateSet, cert *Certificate, ctx ValidationContext) (*Certificate, error) {
	if ctx.MaxPathLen > 0 && ctx.depth > ctx.MaxPathLen {
		return nil, trace.Wrap(ErrPathLenConstraint, "chain exceeds max path length %d", ctx.MaxPathLen)
	}
	if err := ValidateCert(cert, ctx); err != nil {
		return nil, err
	}
	if cert.Trusted {
		return cert, nil
	}

	// A non-trusted certificate that is its own issuer has no path to a
	// trust anchor and can never be considered valid, no matter how
	// well-formed it is.
	if cert.Issuer.Equal(cert.Subject) && cert.AuthorityKeyID.Equal(cert.SubjectKeyID) {
		return nil, trace.Wrap(ErrCertNotTrusted, "self-signed certificate is not a trust anchor")
	}

	// A valid chain can never run longer than the number of
	// certificates loaded into the set. Bound recursion on that
	// unconditionally, not only when MaxPathLen is set, so a cycle
	// built from certificates that each pass findIssuerCandidates fails
	// closed instead of recursing without bound.
	if ctx.depth >= set.Len() {
		return nil, trace.Wrap(ErrPathLenConstraint, "chain depth %d exceeds certificate set size %d", ctx.depth, set.Len())
	}

	if ctx.requireSHA256 && cert.SignatureAlgorithm != SigAlgECDSAWithSHA256 {
		return nil, trace.Wrap(ErrWrongCertSignatureAlgorithm, "certificate signed with %v but a SHA-256 signing certificate requires its issuer to use SHA-256", cert.SignatureAlgorithm)
	}

	issuerCtx := ctx
	issuerCtx.isCAIntermediate = true
	issuerCtx.depth = ctx.depth + 1
	issuerCtx.requireSHA256 = ctx.requireSHA256 || cert.SignatureAlgorithm == SigAlgECDSAWithSHA256

	candidates := set.findIssuerCandidates(cert)
	if len(candidates) == 0 {
		return nil, trace.Wrap(ErrCACertNotFound, "no certificate in set matches issuer DN and authority key id")
	}

	lastErr := trace.Wrap(ErrCACertNotFound, "no certificate in set matches issuer DN and authority key id")
	for _, issuer := range candidates {
		validatedIssuer, err := findValidCert(set, issuer, issuerCtx)
		if err != nil {
			lastErr = err
			continue
		}
		if err := verifySignature(cert, validatedIssuer); err != nil {
			lastErr = err
			continue
		}
		return cert, nil
	}
	return nil, lastErr
}

// verifySignature checks cert's ECDSA signature against issuer's
// public key over cert's to-be-signed hash.
func verifySignature(cert, issuer *Certificate) error {
	if !cert.SignatureAlgorithm.IsSupported() {
		return trace.Wrap(ErrUnsupportedCertFormat, "unsupported signature algorithm %v", cert.SignatureAlgorithm)
	}
	if len(cert.tbsHash) == 0 {
		tbs, err := tbsBytes(cert)
		if err != nil {
			return trace.Wrap(err)
		}
		hash, err := hashForSigAlg(cert.SignatureAlgorithm, tbs)
		if err != nil {
			return trace.Wrap(err)
		}
		cert.tbsHash = hash
	}
	pub, ok := issuer.PublicKey().(*ecdsa.PublicKey)
	if !ok || pub == nil {
		return trace.Wrap(ErrWrongCertSignature, "issuer has no usable ECDSA public key")
	}
	r := new(big.Int).SetBytes(cert.SigR)
	s := new(big.Int).SetBytes(cert.SigS)
	if !ecdsa.Verify(pub, cert.tbsHash, r, s) {
		return trace.Wrap(ErrWrongCertSignature, "signature verification failed")
	}
	return nil
}

// SignCertWithKey signs c's to-be-signed hash with priv and records the
// result in c.SigR/c.SigS, for use by tests and issuance helpers that
// need an end-to-end self-signed or CA-issued certificate. Not part of
// the device-side validation path.
func SignCertWithKey(c *Certificate, priv *ecdsa.PrivateKey) error {
	tbs, err := tbsBytes(c)
	if err != nil {
		return trace.Wrap(err)
	}
	hash, err := hashForSigAlg(c.SignatureAlgorithm, tbs)
	if err != nil {
		return trace.Wrap(err)
	}
	c.tbsHash = hash
	r, s, err := ecdsa.Sign(rand.Reader, priv, hash)
	if err != nil {
		return trace.Wrap(err)
	}
	c.SigR = r.Bytes()
	c.SigS = s.Bytes()
	return nil
}
