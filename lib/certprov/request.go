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

import (
	"crypto/sha256"

	"github.com/gravitational/trace"

	"github.com/weaveio/weavecore/lib/tlv"
	"github.com/weaveio/weavecore/lib/weavecert"
)

// Context tags within the GetCertificateRequest structure.
const (
	ctReqType uint8 = 1
	ctAuthorizeInfo uint8 = 2
	ctOperationalCert uint8 = 3
	ctOperationalRelCerts uint8 = 4
	ctMfrAttestInfo uint8 = 5
	ctOpSigAlgorithm uint8 = 6
	ctOpSignature uint8 = 7
	ctMfrAttestSigAlgorithm uint8 = 8
	ctMfrAttestSignature uint8 = 9
)

// SigAlgorithmECDSAWithSHA256 is the sole operational signature
// algorithm this implementation produces.
const SigAlgorithmECDSAWithSHA256 uint8 = 1

// RequestParams configures GenerateGetCertificateRequest.
type RequestParams struct {
	ReqType uint8

	PrepareAuthorizeInfo PrepareAuthorizeInfoFunc

	OpAuth OperationalAuthDelegate

	// MfrAttest is optional: when non-nil, the request additionally
	// carries manufacturer attestation info and a second signature over
	// the TBS region produced with the manufacturer's private key.
	MfrAttest ManufacturerAttestDelegate
}

func (p *RequestParams) checkAndSetDefaults() error {
	if p.OpAuth == nil {
		return trace.BadParameter("certprov: OpAuth delegate is required")
	}
	if p.ReqType == ReqTypeNotSpecified {
		return trace.BadParameter("certprov: ReqType must be GetInitialOpDeviceCert or RotateCert")
	}
	return nil
}

// GenerateGetCertificateRequest builds a GetCertificateRequest payload:
// open an anonymous structure, mark the TBS start, write the
// authorization payload and operational (plus optional
// manufacturer-attestation) identity material, hash and sign the TBS
// region, then close the structure.
func GenerateGetCertificateRequest(params RequestParams) ([]byte, error) {
	if err := params.checkAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}

	w := tlv.NewGrowableWriter()
	if err := w.StartContainer(tlv.AnonymousTag(), tlv.KindStructure); err != nil {
		return nil, trace.Wrap(err)
	}
	tbsStart := w.Len()

	if err := w.PutUInt(tlv.ContextTag(ctReqType), uint64(params.ReqType)); err != nil {
		return nil, trace.Wrap(err)
	}
	if params.PrepareAuthorizeInfo != nil {
		if err := w.StartContainer(tlv.ContextTag(ctAuthorizeInfo), tlv.KindStructure); err != nil {
			return nil, trace.Wrap(err)
		}
		if err := params.PrepareAuthorizeInfo(w); err != nil {
			return nil, trace.Wrap(err)
		}
		if err := w.EndContainer(); err != nil {
			return nil, trace.Wrap(err)
		}
	}
	if err := params.OpAuth.EncodeOperationalCert(w, tlv.ContextTag(ctOperationalCert)); err != nil {
		return nil, trace.Wrap(err)
	}
	if _, err := params.OpAuth.EncodeRelatedCerts(w, tlv.ContextTag(ctOperationalRelCerts)); err != nil {
		return nil, trace.Wrap(err)
	}
	mfrAttestIncluded := false
	if params.MfrAttest != nil {
		if err := params.MfrAttest.EncodeAttestationInfo(w, tlv.ContextTag(ctMfrAttestInfo)); err != nil {
			return nil, trace.Wrap(err)
		}
		mfrAttestIncluded = true
	}

	tbs := append([]byte{}, w.Bytes()[tbsStart:]...)

	hash := sha256.Sum256(tbs)
	if err := w.PutUInt(tlv.ContextTag(ctOpSigAlgorithm), uint64(SigAlgorithmECDSAWithSHA256)); err != nil {
		return nil, trace.Wrap(err)
	}
	if err := params.OpAuth.SignOperationalHash(hash[:], w, tlv.ContextTag(ctOpSignature)); err != nil {
		return nil, trace.Wrap(err)
	}

	if mfrAttestIncluded {
		if err := w.PutUInt(tlv.ContextTag(ctMfrAttestSigAlgorithm), uint64(SigAlgorithmECDSAWithSHA256)); err != nil {
			return nil, trace.Wrap(err)
		}
		if err := params.MfrAttest.SignAttestation(tbs, w, tlv.ContextTag(ctMfrAttestSignature)); err != nil {
			return nil, trace.Wrap(err)
		}
	}

	if err := w.EndContainer(); err != nil {
		return nil, trace.Wrap(err)
	}
	if err := w.Finalize(); err != nil {
		return nil, trace.Wrap(err)
	}
	return w.Bytes(), nil
}

// ParsedRequest is a GetCertificateRequest decoded for a CA service's
// consumption: the operational certificate is already retagged to the
// WeaveCertificate profile tag (so it can go straight to
// weavecert.CertificateSet.LoadCertBytes), and TBSHash is the SHA-256 a
// verifier checks OpSignature against.
type ParsedRequest struct {
	ReqType uint8

	AuthorizeInfo []byte

	OperationalCert []byte
	RelatedCerts []byte
	MfrAttestInfo []byte

	TBSHash [sha256.Size]byte

	// OpSignature and MfrAttestSignature are the raw ECDSASignature TLV
	// structures as the delegate wrote them, retagged to an anonymous
	// tag; a verifying delegate paired with the signing delegate that
	// produced them knows how to interpret their contents.
	OpSignature []byte
	MfrAttestSignature []byte
}

// ParseGetCertificateRequest decodes a GetCertificateRequest payload
// and reconstructs the TBS hash exactly as GenerateGetCertificateRequest
// computed it, by re-encoding each TBS-contributing field in wire
// order through the same deterministic writer.
func ParseGetCertificateRequest(payload []byte) (ParsedRequest, error) {
	var out ParsedRequest

	r := tlv.NewReader(payload)
	if _, err := r.Next(); err != nil {
		return out, trace.Wrap(err)
	}
	if _, ok := r.ContainerKind(); !ok {
		return out, trace.Wrap(tlv.ErrWrongType, "get-certificate request is not a structure")
	}
	if err := r.EnterContainer(); err != nil {
		return out, trace.Wrap(err)
	}

	tbs := tlv.NewGrowableWriter()
	haveReqType := false
	for {
		ok, err := r.Next()
		if err != nil {
			return out, trace.Wrap(err)
		}
		if !ok {
			break
		}
		switch r.CurrentTag() {
			case tlv.ContextTag(ctReqType):
			v, err := r.GetUInt()
			if err != nil {
				return out, trace.Wrap(err)
			}
			out.ReqType = uint8(v)
			haveReqType = true
			if err := tbs.PutUInt(tlv.ContextTag(ctReqType), v); err != nil {
				return out, trace.Wrap(err)
			}
			case tlv.ContextTag(ctAuthorizeInfo):
			w := tlv.NewGrowableWriter()
			if err := w.CopyContainer(tlv.AnonymousTag(), r); err != nil {
				return out, trace.Wrap(err)
			}
			if err := w.Finalize(); err != nil {
				return out, trace.Wrap(err)
			}
			out.AuthorizeInfo = w.Bytes()
			if err := retagInto(tbs, tlv.ContextTag(ctAuthorizeInfo), out.AuthorizeInfo); err != nil {
				return out, trace.Wrap(err)
			}
			case tlv.ContextTag(ctOperationalCert):
			w := tlv.NewGrowableWriter()
			if err := w.CopyContainer(tlv.ProfileTag(weavecert.ProfileSecurity, weavecert.TagWeaveCertificate), r); err != nil {
				return out, trace.Wrap(err)
			}
			if err := w.Finalize(); err != nil {
				return out, trace.Wrap(err)
			}
			out.OperationalCert = w.Bytes()
			if err := retagInto(tbs, tlv.ContextTag(ctOperationalCert), out.OperationalCert); err != nil {
				return out, trace.Wrap(err)
			}
			case tlv.ContextTag(ctOperationalRelCerts):
			w := tlv.NewGrowableWriter()
			if err := w.CopyContainer(tlv.ProfileTag(weavecert.ProfileSecurity, weavecert.TagWeaveCertificateList), r); err != nil {
				return out, trace.Wrap(err)
			}
			if err := w.Finalize(); err != nil {
				return out, trace.Wrap(err)
			}
			out.RelatedCerts = w.Bytes()
			if err := retagInto(tbs, tlv.ContextTag(ctOperationalRelCerts), out.RelatedCerts); err != nil {
				return out, trace.Wrap(err)
			}
			case tlv.ContextTag(ctMfrAttestInfo):
			w := tlv.NewGrowableWriter()
			if err := w.CopyContainer(tlv.AnonymousTag(), r); err != nil {
				return out, trace.Wrap(err)
			}
			if err := w.Finalize(); err != nil {
				return out, trace.Wrap(err)
			}
			out.MfrAttestInfo = w.Bytes()
			if err := retagInto(tbs, tlv.ContextTag(ctMfrAttestInfo), out.MfrAttestInfo); err != nil {
				return out, trace.Wrap(err)
			}
			case tlv.ContextTag(ctOpSigAlgorithm):
			if _, err := r.GetUInt(); err != nil {
				return out, trace.Wrap(err)
			}
			case tlv.ContextTag(ctOpSignature):
			w := tlv.NewGrowableWriter()
			if err := w.CopyContainer(tlv.AnonymousTag(), r); err != nil {
				return out, trace.Wrap(err)
			}
			if err := w.Finalize(); err != nil {
				return out, trace.Wrap(err)
			}
			out.OpSignature = w.Bytes()
			case tlv.ContextTag(ctMfrAttestSigAlgorithm):
			if _, err := r.GetUInt(); err != nil {
				return out, trace.Wrap(err)
			}
			case tlv.ContextTag(ctMfrAttestSignature):
			w := tlv.NewGrowableWriter()
			if err := w.CopyContainer(tlv.AnonymousTag(), r); err != nil {
				return out, trace.Wrap(err)
			}
			if err := w.Finalize(); err != nil {
				return out, trace.Wrap(err)
			}
			out.MfrAttestSignature = w.Bytes()
		}
	}
	if err := r.ExitContainer(); err != nil {
		return out, trace.Wrap(err)
	}
	if !haveReqType || out.OperationalCert == nil || out.OpSignature == nil {
		return out, trace.BadParameter("certprov: get-certificate request missing required fields")
	}
	if err := tbs.Finalize(); err != nil {
		return out, trace.Wrap(err)
	}
	out.TBSHash = sha256.Sum256(tbs.Bytes())
	return out, nil
}

// retagInto copies a single already-encoded container (encoded,
// currently under an arbitrary outer tag) into dst under tag.
func retagInto(dst *tlv.Writer, tag tlv.Tag, encoded []byte) error {
	r := tlv.NewReader(encoded)
	if _, err := r.Next(); err != nil {
		return err
	}
	return dst.CopyContainer(tag, r)
}
