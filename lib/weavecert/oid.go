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
	"encoding/asn1"
	"fmt"

	"github.com/gravitational/trace"
)

// AttributeOID identifies a distinguished-name attribute. The
// Weave-defined OIDs carry a 64-bit Weave id as their value; all others
// carry a string.
type AttributeOID uint32

// Weave-defined DN attribute OIDs. Numeric values are internal to this
// implementation (no external wire authority defines them) but MUST
// stay stable once issued certificates exist.
const (
	OIDWeaveDeviceID AttributeOID = iota + 1
	OIDWeaveCAID
	OIDWeaveServiceEndpointID
	OIDWeaveSoftwareSigningID
	OIDCommonName
	OIDOrganizationName
	OIDDomainComponent
)

// idValuedOIDs is the set of OIDs whose DN value is a 64-bit Weave id
// rather than a string.
var idValuedOIDs = map[AttributeOID]bool{
	OIDWeaveDeviceID: true,
	OIDWeaveCAID: true,
	OIDWeaveServiceEndpointID: true,
	OIDWeaveSoftwareSigningID: true,
}

// IsIDValued reports whether oid's DN attribute carries a 64-bit Weave
// id (true) or a UTF-8/printable/IA5 string (false).
func (oid AttributeOID) IsIDValued() bool { return idValuedOIDs[oid] }

func (oid AttributeOID) String() string {
	switch oid {
		case OIDWeaveDeviceID:
		return "WeaveDeviceId"
		case OIDWeaveCAID:
		return "WeaveCAId"
		case OIDWeaveServiceEndpointID:
		return "WeaveServiceEndpointId"
		case OIDWeaveSoftwareSigningID:
		return "WeaveSoftwareSigningId"
		case OIDCommonName:
		return "CommonName"
		case OIDOrganizationName:
		return "OrganizationName"
		case OIDDomainComponent:
		return "DomainComponent"
		default:
		return fmt.Sprintf("oid(%d)", uint32(oid))
	}
}

// DistinguishedName is a single attribute OID plus its value.
// Equality requires the OID to match and either the ids (for
// id-valued attributes) or the strings (otherwise) to be equal.
type DistinguishedName struct {
	OID AttributeOID
	IDValue uint64
	StrValue string
}

// IDAttr returns a DistinguishedName carrying a 64-bit Weave id.
func IDAttr(oid AttributeOID, id uint64) DistinguishedName {
	return DistinguishedName{OID: oid, IDValue: id}
}

// StringAttr returns a DistinguishedName carrying a string value.
func StringAttr(oid AttributeOID, s string) DistinguishedName {
	return DistinguishedName{OID: oid, StrValue: s}
}

// Equal implements DN equality: OIDs match AND (for
// id-valued attributes) the ids are equal, or (for string-valued
// attributes) the strings are byte-equal.
func (dn DistinguishedName) Equal(o DistinguishedName) bool {
	if dn.OID != o.OID {
		return false
	}
	if dn.OID.IsIDValued() {
		return dn.IDValue == o.IDValue
	}
	return dn.StrValue == o.StrValue
}

func (dn DistinguishedName) String() string {
	if dn.OID.IsIDValued() {
		return fmt.Sprintf("%s=%016X", dn.OID, dn.IDValue)
	}
	return fmt.Sprintf("%s=%s", dn.OID, dn.StrValue)
}

// weaveIDHexString encodes a 64-bit Weave id as exactly 16 uppercase hex
// characters, the X.509 attribute-value encoding requires for
// round-tripping Weave-id DN attributes through standard X.509 strings.
func weaveIDHexString(id uint64) string {
	return fmt.Sprintf("%016X", id)
}

func parseWeaveIDHexString(s string) (uint64, error) {
	if len(s) != 16 {
		return 0, trace.Wrap(ErrUnsupportedEncoding, "weave id attribute value must be 16 hex chars, got %d", len(s))
	}
	var id uint64
	if _, err := fmt.Sscanf(s, "%016X", &id); err != nil {
		return 0, trace.Wrap(ErrUnsupportedEncoding, "invalid weave id hex: %v", err)
	}
	return id, nil
}

// asn1AttributeTypeOID maps each AttributeOID to a standard or
// vendor-arc ASN.1 object identifier used when converting to/from X.509.
var asn1AttributeTypeOID = map[AttributeOID]asn1.ObjectIdentifier{
	OIDCommonName: {2, 5, 4, 3},
	OIDOrganizationName: {2, 5, 4, 10},
	OIDDomainComponent: {0, 9, 2342, 19200300, 100, 1, 25},
	OIDWeaveDeviceID: {1, 3, 6, 1, 4, 1, 41387, 1, 1},
	OIDWeaveCAID: {1, 3, 6, 1, 4, 1, 41387, 1, 2},
	OIDWeaveServiceEndpointID: {1, 3, 6, 1, 4, 1, 41387, 1, 3},
	OIDWeaveSoftwareSigningID: {1, 3, 6, 1, 4, 1, 41387, 1, 4},
}

var asn1OIDToAttribute = func() map[string]AttributeOID {
	m := make(map[string]AttributeOID, len(asn1AttributeTypeOID))
	for k, v := range asn1AttributeTypeOID {
		m[v.String()] = k
	}
	return m
}()
