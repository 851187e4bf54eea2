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

package main

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/x509"

	"github.com/gravitational/trace"

	"github.com/weaveio/weavecore/lib/store"
	"github.com/weaveio/weavecore/lib/tlv"
	"github.com/weaveio/weavecore/lib/weavecert"
)

// deviceOpAuth is the platform OperationalAuthDelegate: it authenticates
// with the device's factory-provisioned key (RotateCert keeps the same
// keypair and only renews the certificate's validity period, per
// WeaveCertProvisioning's rotation flow) and persists whatever
// certificate certprov.Client is assigned back into the config
// namespace, where the next EncodeOperationalCert call reads it.
type deviceOpAuth struct {
	kv store.Store
	priv *ecdsa.PrivateKey
}

func newDeviceOpAuth(kv store.Store) (*deviceOpAuth, error) {
	der, err := store.Factory(kv).DevicePrivateKey()
	if err != nil {
		return nil, trace.Wrap(err, "loading device private key")
	}
	priv, err := x509.ParseECPrivateKey(der)
	if err != nil {
		return nil, trace.Wrap(err, "parsing device private key")
	}
	return &deviceOpAuth{kv: kv, priv: priv}, nil
}

// EncodeOperationalCert writes the operational certificate a prior
// provisioning exchange assigned, re-emitting its stored Weave-TLV
// bytes directly. Until the first successful exchange, it falls back
// to the factory certificate, which the manufacturing line wrote as an
// X.509 DER blob and so needs converting to Weave-TLV first, the same
// conversion lib/weavecert's X.509 bridge performs for any foreign CA
// chain.
func (d *deviceOpAuth) EncodeOperationalCert(w *tlv.Writer, tag tlv.Tag) error {
	if cert, err := store.Config(d.kv).OperationalCert(); err == nil {
		return w.PutPreEncodedContainer(tag, cert)
	} else if !trace.IsNotFound(err) {
		return trace.Wrap(err, "certprov: loading operational certificate")
	}

	der, err := store.Factory(d.kv).DeviceCert()
	if err != nil {
		return trace.Wrap(err, "certprov: loading factory certificate")
	}
	xc, err := x509.ParseCertificate(der)
	if err != nil {
		return trace.Wrap(err, "certprov: parsing factory certificate")
	}
	cert, err := weavecert.ConvertX509CertToWeaveCert(xc)
	if err != nil {
		return trace.Wrap(err, "certprov: converting factory certificate")
	}
	return weavecert.EncodeCertificate(w, tag, cert)
}

func (d *deviceOpAuth) EncodeRelatedCerts(w *tlv.Writer, tag tlv.Tag) (bool, error) {
	related, err := store.Config(d.kv).OperationalRelatedCerts()
	if trace.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, trace.Wrap(err)
	}
	if len(related) == 0 {
		return false, nil
	}
	if err := w.PutPreEncodedContainer(tag, related); err != nil {
		return false, err
	}
	return true, nil
}

func (d *deviceOpAuth) SignOperationalHash(hash []byte, w *tlv.Writer, tag tlv.Tag) error {
	r, s, err := ecdsa.Sign(rand.Reader, d.priv, hash)
	if err != nil {
		return trace.Wrap(err, "certprov: signing request hash")
	}
	return weavecert.PutECDSASignature(w, tag, r.Bytes(), s.Bytes())
}

func (d *deviceOpAuth) StoreAssignedCert(cert []byte, relatedCerts []byte) error {
	return store.Config(d.kv).SetOperationalCert(cert, relatedCerts)
}
