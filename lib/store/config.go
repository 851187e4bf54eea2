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

package store

import (
	"encoding/binary"

	"github.com/gravitational/trace"
)

// Config keys, within NamespaceConfig.
const (
	keyFabricID = "fabric-id"
	keyServiceID = "service-id"
	keyServiceConfig = "service-config"
	keyPairedAccountID = "paired-account-id"
	keyWiFiSecurityType = "wifi-security-type"
	keyFabricSecret = "fabric-secret"
	keyFailSafeArmed = "fail-safe-armed"

	keyOperationalCert = "operational-cert"
	keyOperationalRelatedCert = "operational-related-certs"
)

// ConfigNamespace is a typed view over NamespaceConfig: state written
// during pairing and reconfiguration.
type ConfigNamespace struct{ s Store }

// Config returns a typed view over s's config namespace.
func Config(s Store) ConfigNamespace { return ConfigNamespace{s: s} }

func (c ConfigNamespace) FabricID() (uint64, error) { return c.getU64(keyFabricID) }
func (c ConfigNamespace) SetFabricID(v uint64) error { return c.putU64(keyFabricID, v) }

func (c ConfigNamespace) ServiceID() (uint64, error) { return c.getU64(keyServiceID) }
func (c ConfigNamespace) SetServiceID(v uint64) error { return c.putU64(keyServiceID, v) }

func (c ConfigNamespace) ServiceConfig() ([]byte, error) {
	return c.s.Get(NamespaceConfig, keyServiceConfig)
}

func (c ConfigNamespace) SetServiceConfig(v []byte) error {
	return c.s.Put(NamespaceConfig, keyServiceConfig, v)
}

func (c ConfigNamespace) PairedAccountID() (string, error) {
	v, err := c.s.Get(NamespaceConfig, keyPairedAccountID)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

func (c ConfigNamespace) SetPairedAccountID(v string) error {
	return c.s.Put(NamespaceConfig, keyPairedAccountID, []byte(v))
}

func (c ConfigNamespace) WiFiSecurityType() (uint32, error) { return c.getU32(keyWiFiSecurityType) }
func (c ConfigNamespace) SetWiFiSecurityType(v uint32) error {
	return c.putU32(keyWiFiSecurityType, v)
}

func (c ConfigNamespace) FabricSecret() ([]byte, error) {
	return c.s.Get(NamespaceConfig, keyFabricSecret)
}

func (c ConfigNamespace) SetFabricSecret(v []byte) error {
	return c.s.Put(NamespaceConfig, keyFabricSecret, v)
}

// OperationalCert returns the Weave-TLV encoded operational certificate
// the service most recently assigned via certificate provisioning; it
// returns a trace.NotFound error if none has been assigned yet.
func (c ConfigNamespace) OperationalCert() ([]byte, error) {
	return c.s.Get(NamespaceConfig, keyOperationalCert)
}

// OperationalRelatedCerts returns the Weave-TLV encoded certificate
// list accompanying the operational certificate, if any.
func (c ConfigNamespace) OperationalRelatedCerts() ([]byte, error) {
	return c.s.Get(NamespaceConfig, keyOperationalRelatedCert)
}

// SetOperationalCert persists a newly assigned operational certificate
// and its related certificate list, replacing whatever was stored
// before.
func (c ConfigNamespace) SetOperationalCert(cert, relatedCerts []byte) error {
	if err := c.s.Put(NamespaceConfig, keyOperationalCert, cert); err != nil {
		return err
	}
	return c.s.Put(NamespaceConfig, keyOperationalRelatedCert, relatedCerts)
}

func (c ConfigNamespace) getU64(key string) (uint64, error) {
	v, err := c.s.Get(NamespaceConfig, key)
	if err != nil {
		return 0, err
	}
	if len(v) != 8 {
		return 0, trace.BadParameter("store: %v must be 8 bytes, got %d", key, len(v))
	}
	return binary.BigEndian.Uint64(v), nil
}

func (c ConfigNamespace) putU64(key string, v uint64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return c.s.Put(NamespaceConfig, key, b[:])
}

func (c ConfigNamespace) getU32(key string) (uint32, error) {
	v, err := c.s.Get(NamespaceConfig, key)
	if err != nil {
		return 0, err
	}
	if len(v) != 4 {
		return 0, trace.BadParameter("store: %v must be 4 bytes, got %d", key, len(v))
	}
	return binary.BigEndian.Uint32(v), nil
}

func (c ConfigNamespace) putU32(key string, v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return c.s.Put(NamespaceConfig, key, b[:])
}
