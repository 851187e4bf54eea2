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
	"github.com/gravitational/trace"

	"github.com/weaveio/weavecore/lib/tlv"
	"github.com/weaveio/weavecore/lib/weavecert"
)

// Context tags within the GetCertificateResponse structure. The
// embedded certificate elements travel under these request-local tags
// on the wire and must be rewritten to the WeaveCertificate /
// WeaveCertificateList profile tags before certificate-store code can
// consume them
const (
	ctRespCert uint8 = 1
	ctRespRelatedCerts uint8 = 2
)

// GetCertificateResponse is the parsed, already-retagged body of a
// GetCertificateResponse message.
type GetCertificateResponse struct {
	// Cert is a single WeaveCertificate-tagged structure.
	Cert []byte
	// RelatedCerts is a WeaveCertificateList-tagged array, or nil if the
	// response carried none.
	RelatedCerts []byte
}

// ParseGetCertificateResponse decodes payload and rewrites its embedded
// certificate element(s) in place to the WeaveCertificate /
// WeaveCertificateList profile tags (response-processing
// requirement), so the result can be handed directly to
// weavecert.CertificateSet.LoadCerts.
func ParseGetCertificateResponse(payload []byte) (GetCertificateResponse, error) {
	var resp GetCertificateResponse

	r := tlv.NewReader(payload)
	if _, err := r.Next(); err != nil {
		return resp, trace.Wrap(err)
	}
	if _, ok := r.ContainerKind(); !ok {
		return resp, trace.Wrap(tlv.ErrWrongType, "get-certificate response is not a structure")
	}
	if err := r.EnterContainer(); err != nil {
		return resp, trace.Wrap(err)
	}
	for {
		ok, err := r.Next()
		if err != nil {
			return resp, trace.Wrap(err)
		}
		if !ok {
			break
		}
		switch r.CurrentTag() {
			case tlv.ContextTag(ctRespCert):
			w := tlv.NewGrowableWriter()
			if err := w.CopyContainer(tlv.ProfileTag(weavecert.ProfileSecurity, weavecert.TagWeaveCertificate), r); err != nil {
				return resp, trace.Wrap(err)
			}
			if err := w.Finalize(); err != nil {
				return resp, trace.Wrap(err)
			}
			resp.Cert = w.Bytes()
			case tlv.ContextTag(ctRespRelatedCerts):
			w := tlv.NewGrowableWriter()
			if err := w.CopyContainer(tlv.ProfileTag(weavecert.ProfileSecurity, weavecert.TagWeaveCertificateList), r); err != nil {
				return resp, trace.Wrap(err)
			}
			if err := w.Finalize(); err != nil {
				return resp, trace.Wrap(err)
			}
			resp.RelatedCerts = w.Bytes()
		}
	}
	if err := r.ExitContainer(); err != nil {
		return resp, trace.Wrap(err)
	}
	if resp.Cert == nil {
		return resp, trace.BadParameter("certprov: get-certificate response missing certificate")
	}
	return resp, nil
}

// EncodeGetCertificateResponse serializes resp, tagging the embedded
// certificate(s) under ctRespCert/ctRespRelatedCerts as a responder
// would emit them on the wire (pre-retagging). Used by test responders
// and any service-side implementation.
func EncodeGetCertificateResponse(w *tlv.Writer, certTLV []byte, relatedCertsTLV []byte) error {
	if err := w.StartContainer(tlv.AnonymousTag(), tlv.KindStructure); err != nil {
		return err
	}
	certReader := tlv.NewReader(certTLV)
	if _, err := certReader.Next(); err != nil {
		return err
	}
	if err := w.CopyContainer(tlv.ContextTag(ctRespCert), certReader); err != nil {
		return err
	}
	if relatedCertsTLV != nil {
		relReader := tlv.NewReader(relatedCertsTLV)
		if _, err := relReader.Next(); err != nil {
			return err
		}
		if err := w.CopyContainer(tlv.ContextTag(ctRespRelatedCerts), relReader); err != nil {
			return err
		}
	}
	return w.EndContainer()
}
