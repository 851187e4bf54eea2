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

// Package swupdate implements the software-update query/announce
// exchange (ImageAnnounce → ImageQuery → ImageQueryResponse). It does
// not use lib/bdx and performs no image transfer itself.
package swupdate

// ProfileSWU is the software-update profile namespace.
const ProfileSWU uint32 = 0x0000000D

// SWU message types.
const (
	MsgImageAnnounce uint8 = 1
	MsgImageQuery uint8 = 2
	MsgImageQueryResponse uint8 = 3
	MsgImageQueryStatus uint8 = 4
)

// StatusNoUpdateAvailable is the status-report code a responder sends
// instead of an ImageQueryResponse when no update applies; clients
// MUST treat it as terminal success
const StatusNoUpdateAvailable uint16 = 0

// Integrity types a client is willing to verify downloaded images with.
const (
	IntegrityTypeSHA160 uint8 = 0
	IntegrityTypeSHA256 uint8 = 1
	IntegrityTypeSHA512 uint8 = 2
)

// Update schemes a client is willing to fetch an image over.
const (
	UpdateSchemeHTTP uint8 = 0
	UpdateSchemeHTTPS uint8 = 1
	UpdateSchemeBDX uint8 = 2
	UpdateSchemeBDXS uint8 = 3
)

// ProductSpec identifies the requesting device's product line, per
// nlweaveswuclient.cpp's ProductSpec(vendorId, productId, productRev).
type ProductSpec struct {
	VendorID uint16
	ProductID uint16
	ProductRevision uint16
}
