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

package swupdate

import (
	"github.com/gravitational/trace"

	"github.com/weaveio/weavecore/lib/tlv"
)

const (
	ctQueryProductSpec uint8 = 1
	ctQueryVersion uint8 = 2
	ctQueryIntegrityTypes uint8 = 3
	ctQueryUpdateSchemes uint8 = 4
	ctQueryPackage uint8 = 5
	ctQueryLocale uint8 = 6
	ctQueryTargetNodeID uint8 = 7
	ctQueryMetaData uint8 = 8
	ctProductSpecVendor uint8 = 1
	ctProductSpecProduct uint8 = 2
	ctProductSpecRevision uint8 = 3
	ctRespVersion uint8 = 1
	ctRespIntegrityType uint8 = 2
	ctRespUpdateScheme uint8 = 3
	ctRespURI uint8 = 4
	ctRespIntegritySpec uint8 = 5
	ctRespUpdatePriority uint8 = 6
	ctRespUpdateCondition uint8 = 7
	ctAnnounceNothing uint8 = 1
)

// ImageQuery is the body of an ImageQuery message: a device asking
// whether a software update is available for it, grounded on
// nlweaveswuclient.cpp's SendImageQueryRequest construction of
// ImageQuery(productSpec, version, integrityTypes, updateSchemes,
// package, locale, targetNodeId, metaData).
type ImageQuery struct {
	Product ProductSpec
	Version string
	IntegrityTypes []uint8
	UpdateSchemes []uint8
	Package string
	Locale string
	TargetNodeID uint64
	MetaData []byte
}

func encodeProductSpec(w *tlv.Writer, tag tlv.Tag, p ProductSpec) error {
	if err := w.StartContainer(tag, tlv.KindStructure); err != nil {
		return err
	}
	if err := w.PutUInt(tlv.ContextTag(ctProductSpecVendor), uint64(p.VendorID)); err != nil {
		return err
	}
	if err := w.PutUInt(tlv.ContextTag(ctProductSpecProduct), uint64(p.ProductID)); err != nil {
		return err
	}
	if err := w.PutUInt(tlv.ContextTag(ctProductSpecRevision), uint64(p.ProductRevision)); err != nil {
		return err
	}
	return w.EndContainer()
}

func decodeProductSpec(r *tlv.Reader) (ProductSpec, error) {
	var p ProductSpec
	if err := r.EnterContainer(); err != nil {
		return p, err
	}
	for {
		ok, err := r.Next()
		if err != nil {
			return p, err
		}
		if !ok {
			break
		}
		switch r.CurrentTag() {
			case tlv.ContextTag(ctProductSpecVendor):
			v, err := r.GetUInt()
			if err != nil {
				return p, err
			}
			p.VendorID = uint16(v)
			case tlv.ContextTag(ctProductSpecProduct):
			v, err := r.GetUInt()
			if err != nil {
				return p, err
			}
			p.ProductID = uint16(v)
			case tlv.ContextTag(ctProductSpecRevision):
			v, err := r.GetUInt()
			if err != nil {
				return p, err
			}
			p.ProductRevision = uint16(v)
		}
	}
	return p, r.ExitContainer()
}

func putByteArray(w *tlv.Writer, tag tlv.Tag, vals []uint8) error {
	if err := w.StartContainer(tag, tlv.KindArray); err != nil {
		return err
	}
	for _, v := range vals {
		if err := w.PutUInt(tlv.AnonymousTag(), uint64(v)); err != nil {
			return err
		}
	}
	return w.EndContainer()
}

func getByteArray(r *tlv.Reader) ([]uint8, error) {
	var out []uint8
	if err := r.EnterContainer(); err != nil {
		return nil, err
	}
	for {
		ok, err := r.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		v, err := r.GetUInt()
		if err != nil {
			return nil, err
		}
		out = append(out, uint8(v))
	}
	return out, r.ExitContainer()
}

// EncodeImageQuery serializes q as a TLV structure.
func EncodeImageQuery(w *tlv.Writer, q ImageQuery) error {
	if err := w.StartContainer(tlv.AnonymousTag(), tlv.KindStructure); err != nil {
		return err
	}
	if err := encodeProductSpec(w, tlv.ContextTag(ctQueryProductSpec), q.Product); err != nil {
		return err
	}
	if err := w.PutString(tlv.ContextTag(ctQueryVersion), q.Version); err != nil {
		return err
	}
	if err := putByteArray(w, tlv.ContextTag(ctQueryIntegrityTypes), q.IntegrityTypes); err != nil {
		return err
	}
	if err := putByteArray(w, tlv.ContextTag(ctQueryUpdateSchemes), q.UpdateSchemes); err != nil {
		return err
	}
	if q.Package != "" {
		if err := w.PutString(tlv.ContextTag(ctQueryPackage), q.Package); err != nil {
			return err
		}
	}
	if q.Locale != "" {
		if err := w.PutString(tlv.ContextTag(ctQueryLocale), q.Locale); err != nil {
			return err
		}
	}
	if q.TargetNodeID != 0 {
		if err := w.PutUInt(tlv.ContextTag(ctQueryTargetNodeID), q.TargetNodeID); err != nil {
			return err
		}
	}
	if q.MetaData != nil {
		if err := w.PutBytes(tlv.ContextTag(ctQueryMetaData), q.MetaData); err != nil {
			return err
		}
	}
	return w.EndContainer()
}

// DecodeImageQuery parses an ImageQuery payload.
func DecodeImageQuery(r *tlv.Reader) (ImageQuery, error) {
	var q ImageQuery
	if _, ok := r.ContainerKind(); !ok {
		return q, trace.Wrap(tlv.ErrWrongType, "image query is not a structure")
	}
	if err := r.EnterContainer(); err != nil {
		return q, err
	}
	for {
		ok, err := r.Next()
		if err != nil {
			return q, err
		}
		if !ok {
			break
		}
		switch r.CurrentTag() {
			case tlv.ContextTag(ctQueryProductSpec):
			p, err := decodeProductSpec(r)
			if err != nil {
				return q, err
			}
			q.Product = p
			case tlv.ContextTag(ctQueryVersion):
			v, err := r.GetString()
			if err != nil {
				return q, err
			}
			q.Version = v
			case tlv.ContextTag(ctQueryIntegrityTypes):
			v, err := getByteArray(r)
			if err != nil {
				return q, err
			}
			q.IntegrityTypes = v
			case tlv.ContextTag(ctQueryUpdateSchemes):
			v, err := getByteArray(r)
			if err != nil {
				return q, err
			}
			q.UpdateSchemes = v
			case tlv.ContextTag(ctQueryPackage):
			v, err := r.GetString()
			if err != nil {
				return q, err
			}
			q.Package = v
			case tlv.ContextTag(ctQueryLocale):
			v, err := r.GetString()
			if err != nil {
				return q, err
			}
			q.Locale = v
			case tlv.ContextTag(ctQueryTargetNodeID):
			v, err := r.GetUInt()
			if err != nil {
				return q, err
			}
			q.TargetNodeID = v
			case tlv.ContextTag(ctQueryMetaData):
			v, err := r.GetBytes()
			if err != nil {
				return q, err
			}
			q.MetaData = v
		}
	}
	return q, r.ExitContainer()
}

// ImageQueryResponse is the body of an ImageQueryResponse message: the
// responder has an update available and describes where to fetch it.
// The exact response shape is not recoverable from MockIAServer.cpp (it
// never serializes one over the wire in the retrieval pack), so the
// fields below are the minimum a lib/bdx-driven download needs: a
// version string, the integrity/update-scheme the client should use,
// and the URI (a BDX file designator when UpdateScheme is
// UpdateSchemeBDX/UpdateSchemeBDXS) to request.
type ImageQueryResponse struct {
	Version string
	IntegrityType uint8
	UpdateScheme uint8
	URI string
	IntegritySpec []byte
	UpdatePriority uint8
	// UpdateCondition carries an implementation-defined condition code
	// (e.g. "update when idle"); zero means no condition.
	UpdateCondition uint8
}

// EncodeImageQueryResponse serializes resp as a TLV structure.
func EncodeImageQueryResponse(w *tlv.Writer, resp ImageQueryResponse) error {
	if err := w.StartContainer(tlv.AnonymousTag(), tlv.KindStructure); err != nil {
		return err
	}
	if err := w.PutString(tlv.ContextTag(ctRespVersion), resp.Version); err != nil {
		return err
	}
	if err := w.PutUInt(tlv.ContextTag(ctRespIntegrityType), uint64(resp.IntegrityType)); err != nil {
		return err
	}
	if err := w.PutUInt(tlv.ContextTag(ctRespUpdateScheme), uint64(resp.UpdateScheme)); err != nil {
		return err
	}
	if err := w.PutString(tlv.ContextTag(ctRespURI), resp.URI); err != nil {
		return err
	}
	if resp.IntegritySpec != nil {
		if err := w.PutBytes(tlv.ContextTag(ctRespIntegritySpec), resp.IntegritySpec); err != nil {
			return err
		}
	}
	if resp.UpdatePriority != 0 {
		if err := w.PutUInt(tlv.ContextTag(ctRespUpdatePriority), uint64(resp.UpdatePriority)); err != nil {
			return err
		}
	}
	if resp.UpdateCondition != 0 {
		if err := w.PutUInt(tlv.ContextTag(ctRespUpdateCondition), uint64(resp.UpdateCondition)); err != nil {
			return err
		}
	}
	return w.EndContainer()
}

// DecodeImageQueryResponse parses an ImageQueryResponse payload.
func DecodeImageQueryResponse(r *tlv.Reader) (ImageQueryResponse, error) {
	var resp ImageQueryResponse
	if _, ok := r.ContainerKind(); !ok {
		return resp, trace.Wrap(tlv.ErrWrongType, "image query response is not a structure")
	}
	if err := r.EnterContainer(); err != nil {
		return resp, err
	}
	for {
		ok, err := r.Next()
		if err != nil {
			return resp, err
		}
		if !ok {
			break
		}
		switch r.CurrentTag() {
			case tlv.ContextTag(ctRespVersion):
			v, err := r.GetString()
			if err != nil {
				return resp, err
			}
			resp.Version = v
			case tlv.ContextTag(ctRespIntegrityType):
			v, err := r.GetUInt()
			if err != nil {
				return resp, err
			}
			resp.IntegrityType = uint8(v)
			case tlv.ContextTag(ctRespUpdateScheme):
			v, err := r.GetUInt()
			if err != nil {
				return resp, err
			}
			resp.UpdateScheme = uint8(v)
			case tlv.ContextTag(ctRespURI):
			v, err := r.GetString()
			if err != nil {
				return resp, err
			}
			resp.URI = v
			case tlv.ContextTag(ctRespIntegritySpec):
			v, err := r.GetBytes()
			if err != nil {
				return resp, err
			}
			resp.IntegritySpec = v
			case tlv.ContextTag(ctRespUpdatePriority):
			v, err := r.GetUInt()
			if err != nil {
				return resp, err
			}
			resp.UpdatePriority = uint8(v)
			case tlv.ContextTag(ctRespUpdateCondition):
			v, err := r.GetUInt()
			if err != nil {
				return resp, err
			}
			resp.UpdateCondition = uint8(v)
		}
	}
	return resp, r.ExitContainer()
}

// ImageAnnounce carries no fields: it is an unsolicited hint from a
// service that a device should go check for an update, per
// WeaveHeartbeat-style "nudge" messages elsewhere in the fabric. The
// empty structure still round-trips through TLV for wire-format
// consistency with every other SWU message.
type ImageAnnounce struct{}

// EncodeImageAnnounce serializes an empty structure.
func EncodeImageAnnounce(w *tlv.Writer, _ ImageAnnounce) error {
	if err := w.StartContainer(tlv.AnonymousTag(), tlv.KindStructure); err != nil {
		return err
	}
	return w.EndContainer()
}

// DecodeImageAnnounce parses an ImageAnnounce payload.
func DecodeImageAnnounce(r *tlv.Reader) (ImageAnnounce, error) {
	var a ImageAnnounce
	if _, ok := r.ContainerKind(); !ok {
		return a, trace.Wrap(tlv.ErrWrongType, "image announce is not a structure")
	}
	if err := r.EnterContainer(); err != nil {
		return a, err
	}
	for {
		ok, err := r.Next()
		if err != nil {
			return a, err
		}
		if !ok {
			break
		}
	}
	return a, r.ExitContainer()
}

// StatusReport is the minimal status-report shape needed for the SWU
// exchange's "NoUpdateAvailable instead of a response structure"
// terminal-success path. It is intentionally local to
// this package rather than a shared type: no other component in this
// module needs a generic status-report representation.
type StatusReport struct {
	ProfileID uint32
	StatusCode uint16
}

// IsNoUpdateAvailable reports whether sr represents the SWU profile's
// terminal "nothing to do" status.
func (sr StatusReport) IsNoUpdateAvailable() bool {
	return sr.ProfileID == ProfileSWU && sr.StatusCode == StatusNoUpdateAvailable
}
