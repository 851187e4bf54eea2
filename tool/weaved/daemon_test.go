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
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/weaveio/weavecore/lib/exchange"
	"github.com/weaveio/weavecore/lib/store"
)

// seedFactoryIdentity writes a self-signed EC device cert and private
// key into kv's factory namespace, standing in for what a manufacturing
// line burns in before first boot.
func seedFactoryIdentity(t *testing.T, kv store.Store) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	keyID := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{CommonName: "weave-device-test"},
		NotBefore: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		NotAfter: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		KeyUsage: x509.KeyUsageDigitalSignature,
		SubjectKeyId: keyID,
		AuthorityKeyId: keyID,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	require.NoError(t, err)

	keyDER, err := x509.MarshalECPrivateKey(priv)
	require.NoError(t, err)

	require.NoError(t, store.Factory(kv).SetDeviceCert(der))
	require.NoError(t, store.Factory(kv).SetDevicePrivateKey(keyDER))
}

func TestNewDaemonWiresCertProvAndSWUpdate(t *testing.T) {
	kv := store.NewMemoryStore()
	t.Cleanup(func() { _ = kv.Close() })
	seedFactoryIdentity(t, kv)

	cfg := Config{
		NodeID: 42,
		LogLevel: "info",
		Tunnel: TunnelConfig{
			PeerNodeID: 7,
			PrimaryAddr: "service.example:11095",
			ReconnectThreshold: 3,
		},
		CertProv: CertProvConfig{Enabled: true, ReqType: 1},
		SWUpdate: SWUpdateConfig{Enabled: true, VendorID: 9050, ProductID: 1},
	}

	eng := exchange.NewInProcessEngine(exchange.InProcessEngineConfig{LocalNodeID: exchange.NodeID(cfg.NodeID)})

	d, err := NewDaemon(cfg, eng, kv, logrus.New(), clockwork.NewFakeClock())
	require.NoError(t, err)
	require.NotNil(t, d.primary)
	require.Nil(t, d.backup)
	require.NotNil(t, d.certprov)
	require.NotNil(t, d.swupdate)
	require.NotNil(t, d.opAuth)

	d.Close()
}

func TestNewDaemonBuildsBackupTunnelWhenConfigured(t *testing.T) {
	kv := store.NewMemoryStore()
	t.Cleanup(func() { _ = kv.Close() })
	seedFactoryIdentity(t, kv)

	cfg := Config{
		NodeID: 42,
		Tunnel: TunnelConfig{
			PeerNodeID: 7,
			PrimaryAddr: "service.example:11095",
			BackupAddr: "backup.example:11095",
			ReconnectThreshold: 3,
		},
	}

	eng := exchange.NewInProcessEngine(exchange.InProcessEngineConfig{LocalNodeID: exchange.NodeID(cfg.NodeID)})
	d, err := NewDaemon(cfg, eng, kv, logrus.New(), clockwork.NewFakeClock())
	require.NoError(t, err)
	require.NotNil(t, d.backup)

	d.Close()
}
