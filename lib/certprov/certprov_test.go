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
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/weaveio/weavecore/lib/exchange"
	"github.com/weaveio/weavecore/lib/tlv"
	"github.com/weaveio/weavecore/lib/weavecert"
)

const (
	ctTestSigR uint8 = 1
	ctTestSigS uint8 = 2
)

func writeECDSASignature(w *tlv.Writer, tag tlv.Tag, priv *ecdsa.PrivateKey, hash []byte) error {
	r, s, err := ecdsa.Sign(rand.Reader, priv, hash)
	if err != nil {
		return err
	}
	if err := w.StartContainer(tag, tlv.KindStructure); err != nil {
		return err
	}
	if err := w.PutBytes(tlv.ContextTag(ctTestSigR), r.Bytes()); err != nil {
		return err
	}
	if err := w.PutBytes(tlv.ContextTag(ctTestSigS), s.Bytes()); err != nil {
		return err
	}
	return w.EndContainer()
}

// fakeOpAuth is a stand-in for a platform's operational-identity
// delegate: it holds the device's current certificate and private key
// in memory rather than secure storage.
type fakeOpAuth struct {
	priv *ecdsa.PrivateKey
	cert *weavecert.Certificate

	storedCert []byte
	storedRelatedCerts []byte
}

func (f *fakeOpAuth) EncodeOperationalCert(w *tlv.Writer, tag tlv.Tag) error {
	return weavecert.EncodeCertificate(w, tag, f.cert)
}

func (f *fakeOpAuth) EncodeRelatedCerts(w *tlv.Writer, tag tlv.Tag) (bool, error) {
	return false, nil
}

func (f *fakeOpAuth) SignOperationalHash(hash []byte, w *tlv.Writer, tag tlv.Tag) error {
	return writeECDSASignature(w, tag, f.priv, hash)
}

func (f *fakeOpAuth) StoreAssignedCert(cert []byte, relatedCerts []byte) error {
	f.storedCert = cert
	f.storedRelatedCerts = relatedCerts
	return nil
}

func newFakeOpAuth(t *testing.T, deviceID uint64) *fakeOpAuth {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	keyID, err := weavecert.NewKeyID([]byte{0xCC, byte(deviceID)})
	require.NoError(t, err)
	cert := &weavecert.Certificate{
		SerialNumber: []byte{1},
		SignatureAlgorithm: weavecert.SigAlgECDSAWithSHA256,
		Issuer: weavecert.IDAttr(weavecert.OIDWeaveCAID, 1),
		Subject: weavecert.IDAttr(weavecert.OIDWeaveDeviceID, deviceID),
		NotBefore: weavecert.PackDate(2020, 1, 1),
		NotAfter: weavecert.PackDate(2030, 1, 1),
		PublicKeyAlgorithm: weavecert.PubKeyAlgEC,
		Curve: weavecert.CurveSECP256R1,
		ECPublicKey: elliptic.Marshal(priv.Curve, priv.X, priv.Y),
		SubjectKeyID: keyID,
		AuthorityKeyID: keyID,
		KeyUsage: weavecert.KeyUsageDigitalSignature,
		CertType: weavecert.CertTypeDevice,
	}
	require.NoError(t, weavecert.SignCertWithKey(cert, priv))
	return &fakeOpAuth{priv: priv, cert: cert}
}

func encodeCertTLV(t *testing.T, c *weavecert.Certificate) []byte {
	t.Helper()
	w := tlv.NewGrowableWriter()
	require.NoError(t, weavecert.EncodeCertificate(w, tlv.ProfileTag(weavecert.ProfileSecurity, weavecert.TagWeaveCertificate), c))
	require.NoError(t, w.Finalize())
	return w.Bytes()
}

func TestGenerateAndParseGetCertificateRequestRoundTrip(t *testing.T) {
	opAuth := newFakeOpAuth(t, 42)

	payload, err := GenerateGetCertificateRequest(RequestParams{
			ReqType: ReqTypeGetInitialOpDeviceCert,
			PrepareAuthorizeInfo: func(w *tlv.Writer) error {
				return w.PutString(tlv.ContextTag(1), "pairing-token")
			},
			OpAuth: opAuth,
		})
	require.NoError(t, err)

	parsed, err := ParseGetCertificateRequest(payload)
	require.NoError(t, err)
	require.Equal(t, ReqTypeGetInitialOpDeviceCert, parsed.ReqType)
	require.NotNil(t, parsed.OperationalCert)
	require.NotNil(t, parsed.OpSignature)
	require.Nil(t, parsed.RelatedCerts)
	require.Nil(t, parsed.MfrAttestInfo)

	set := weavecert.NewCertificateSet(4)
	cert, err := set.LoadCertBytes(parsed.OperationalCert, 0)
	require.NoError(t, err)
	require.Equal(t, opAuth.cert.Subject, cert.Subject)

	pub := cert.PublicKey().(*ecdsa.PublicKey)
	sigR, sigS := decodeTestSignature(t, parsed.OpSignature)
	require.True(t, ecdsa.Verify(pub, parsed.TBSHash[:], sigR, sigS))
}

func decodeTestSignature(t *testing.T, encoded []byte) (*big.Int, *big.Int) {
	t.Helper()
	r := tlv.NewReader(encoded)
	_, err := r.Next()
	require.NoError(t, err)
	require.NoError(t, r.EnterContainer())
	var rBytes, sBytes []byte
	for {
		ok, err := r.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		switch r.CurrentTag() {
			case tlv.ContextTag(ctTestSigR):
			rBytes, err = r.GetBytes()
			require.NoError(t, err)
			case tlv.ContextTag(ctTestSigS):
			sBytes, err = r.GetBytes()
			require.NoError(t, err)
		}
	}
	require.NoError(t, r.ExitContainer())
	return new(big.Int).SetBytes(rBytes), new(big.Int).SetBytes(sBytes)
}

func connectedEngines() (*exchange.InProcessEngine, *exchange.InProcessEngine) {
	client := exchange.NewInProcessEngine(exchange.InProcessEngineConfig{LocalNodeID: 1})
	server := exchange.NewInProcessEngine(exchange.InProcessEngineConfig{LocalNodeID: 2})
	client.Connect(server)
	return client, server
}

func TestClientObtainsReplacementCertificate(t *testing.T) {
	deviceOpAuth := newFakeOpAuth(t, 7)
	issuedCert := newFakeOpAuth(t, 7).cert // a distinct "freshly issued" certificate
	issuedTLV := encodeCertTLV(t, issuedCert)

	clientEng, serverEng := connectedEngines()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go clientEng.Run(ctx)
	go serverEng.Run(ctx)

	responder, err := NewResponder(ResponderConfig{
			Engine: serverEng,
			Issue: func(peer exchange.NodeID, requestPayload []byte) ([]byte, []byte, error) {
				if _, err := ParseGetCertificateRequest(requestPayload); err != nil {
					return nil, nil, err
				}
				return issuedTLV, nil, nil
			},
		})
	require.NoError(t, err)
	responder.RegisterWith(serverEng)

	done := make(chan bool, 1)
	client, err := NewClient(ClientConfig{
			Engine: clientEng,
			PeerNodeID: 2,
			ResolveBinding: func(b *exchange.Binding) { b.Resolve(exchange.BindingReady, nil) },
			OnCertReplaced: func(replaced bool) { done <- replaced },
		})
	require.NoError(t, err)

	require.NoError(t, client.RequestCertificate(RequestParams{
				ReqType: ReqTypeGetInitialOpDeviceCert,
				OpAuth: deviceOpAuth,
			}))

	select {
		case replaced := <-done:
		require.True(t, replaced)
		case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for get-certificate response")
	}
	require.NotNil(t, deviceOpAuth.storedCert)
	require.Equal(t, StateComplete, client.State())
}

func TestClientHandlesNoNewOperationalCertRequired(t *testing.T) {
	deviceOpAuth := newFakeOpAuth(t, 9)

	clientEng, serverEng := connectedEngines()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go clientEng.Run(ctx)
	go serverEng.Run(ctx)

	responder, err := NewResponder(ResponderConfig{
			Engine: serverEng,
			Issue: func(peer exchange.NodeID, requestPayload []byte) ([]byte, []byte, error) {
				return nil, nil, nil
			},
		})
	require.NoError(t, err)
	responder.RegisterWith(serverEng)

	done := make(chan bool, 1)
	client, err := NewClient(ClientConfig{
			Engine: clientEng,
			PeerNodeID: 2,
			ResolveBinding: func(b *exchange.Binding) { b.Resolve(exchange.BindingReady, nil) },
			OnCertReplaced: func(replaced bool) { done <- replaced },
		})
	require.NoError(t, err)

	require.NoError(t, client.RequestCertificate(RequestParams{
				ReqType: ReqTypeRotateCert,
				OpAuth: deviceOpAuth,
			}))

	select {
		case replaced := <-done:
		require.False(t, replaced)
		case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for status report")
	}
	require.Nil(t, deviceOpAuth.storedCert)
}

func TestStatusReportHelpers(t *testing.T) {
	sr := StatusReport{ProfileID: weavecert.ProfileSecurity, StatusCode: NoNewOperationalCertRequiredStatus}
	require.True(t, sr.IsNoNewOperationalCertRequired())
	buf := encodeStatusReport(sr)
	got, ok := decodeStatusReport(buf)
	require.True(t, ok)
	require.Equal(t, sr, got)
}
