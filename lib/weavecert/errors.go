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

import "github.com/gravitational/trace"

// Sentinel errors for the certificate error kind.
var (
	ErrUnsupportedCertFormat = trace.BadParameter("unsupported-cert-format")
	ErrUnsupportedEncoding = trace.BadParameter("unsupported-encoding")
	ErrCertNotYetValid = trace.AccessDenied("cert-not-yet-valid")
	ErrCertExpired = trace.AccessDenied("cert-expired")
	ErrCertNotTrusted = trace.AccessDenied("cert-not-trusted")
	ErrWrongCertSignature = trace.AccessDenied("wrong-cert-signature")
	ErrWrongCertSignatureAlgorithm = trace.AccessDenied("wrong-cert-signature-algorithm")
	ErrCACertNotFound = trace.NotFound("ca-cert-not-found")
	ErrCertNotFound = trace.NotFound("cert-not-found")
	ErrPathLenConstraint = trace.AccessDenied("path-len-constraint-exceeded")
	ErrUsageNotAllowed = trace.AccessDenied("cert-usage-not-allowed")
	ErrWrongCertType = trace.AccessDenied("wrong-cert-type")
	ErrNoMemory = trace.LimitExceeded("no-memory")
	ErrCertNotFoundInSet = trace.NotFound("cert-not-found-in-set")
)
