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

// Package certprov implements the four-message certificate
// provisioning exchange (GetCertificateRequest / GetCertificateResponse
// / StatusReport) a device uses to obtain or rotate its operational
// device certificate from a CA service
package certprov

import "github.com/weaveio/weavecore/lib/weavecert"

// ProfileCertProv is the certificate-provisioning profile namespace.
const ProfileCertProv uint32 = 0x0000000E

// CertProv message types.
const (
	MsgGetCertificateRequest uint8 = 1
	MsgGetCertificateResponse uint8 = 2
	MsgStatusReport uint8 = 3
)

// Request types, per WeaveCertProvisioning.h's kReqType_* enum.
const (
	ReqTypeNotSpecified uint8 = 0
	ReqTypeGetInitialOpDeviceCert uint8 = 1
	ReqTypeRotateCert uint8 = 2
)

// ClientState mirrors WeaveCertProvClient::EngineState.
type ClientState uint8

const (
	StateIdle ClientState = iota
	StateRequestGenerated
	StateComplete
	StateFailed
)

// NoNewOperationalCertRequiredStatus is the status-report code a
// service sends under the security profile instead of a
// GetCertificateResponse when the device's existing certificate is
// still valid; clients MUST treat it as a non-error "no replacement
// needed" outcome
const NoNewOperationalCertRequiredStatus uint16 = 17

// StatusReport is the minimal status-report shape this exchange needs.
// Local to this package, like swupdate.StatusReport: no shared
// status-report representation exists elsewhere in this module.
type StatusReport struct {
	ProfileID uint32
	StatusCode uint16
}

// IsNoNewOperationalCertRequired reports whether sr is the security
// profile's "existing certificate still valid" status.
func (sr StatusReport) IsNoNewOperationalCertRequired() bool {
	return sr.ProfileID == weavecert.ProfileSecurity && sr.StatusCode == NoNewOperationalCertRequiredStatus
}

func encodeStatusReport(sr StatusReport) []byte {
	buf := make([]byte, 6)
	buf[0] = byte(sr.ProfileID)
	buf[1] = byte(sr.ProfileID >> 8)
	buf[2] = byte(sr.ProfileID >> 16)
	buf[3] = byte(sr.ProfileID >> 24)
	buf[4] = byte(sr.StatusCode)
	buf[5] = byte(sr.StatusCode >> 8)
	return buf
}

func decodeStatusReport(buf []byte) (StatusReport, bool) {
	if len(buf) != 6 {
		return StatusReport{}, false
	}
	return StatusReport{
		ProfileID: uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24,
		StatusCode: uint16(buf[4]) | uint16(buf[5])<<8,
	}, true
}
