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

// Factory keys, within NamespaceFactory.
const (
	keySerialNumber = "serial-number"
	keyManufacturingDate = "manufacturing-date"
	keyPairingCode = "pairing-code"
	keyDeviceID = "device-id"
	keyDeviceCert = "device-cert"
	keyDevicePrivateKey = "device-private-key"
)

// FactoryNamespace is a typed view over NamespaceFactory: immutable
// data written once on the manufacturing line.
type FactoryNamespace struct{ s Store }

// Factory returns a typed view over s's factory namespace.
func Factory(s Store) FactoryNamespace { return FactoryNamespace{s: s} }

func (f FactoryNamespace) SerialNumber() (string, error) {
	v, err := f.s.Get(NamespaceFactory, keySerialNumber)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

func (f FactoryNamespace) SetSerialNumber(v string) error {
	return f.s.Put(NamespaceFactory, keySerialNumber, []byte(v))
}

// ManufacturingDate returns the YYYY-MM-DD manufacturing date string.
func (f FactoryNamespace) ManufacturingDate() (string, error) {
	v, err := f.s.Get(NamespaceFactory, keyManufacturingDate)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

func (f FactoryNamespace) SetManufacturingDate(v string) error {
	return f.s.Put(NamespaceFactory, keyManufacturingDate, []byte(v))
}

func (f FactoryNamespace) PairingCode() (string, error) {
	v, err := f.s.Get(NamespaceFactory, keyPairingCode)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

func (f FactoryNamespace) SetPairingCode(v string) error {
	return f.s.Put(NamespaceFactory, keyPairingCode, []byte(v))
}

// DeviceID returns the 8-byte big-endian device id.
func (f FactoryNamespace) DeviceID() (uint64, error) {
	v, err := f.s.Get(NamespaceFactory, keyDeviceID)
	if err != nil {
		return 0, err
	}
	if len(v) != 8 {
		return 0, trace.BadParameter("store: device id must be 8 bytes, got %d", len(v))
	}
	return binary.BigEndian.Uint64(v), nil
}

func (f FactoryNamespace) SetDeviceID(id uint64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], id)
	return f.s.Put(NamespaceFactory, keyDeviceID, b[:])
}

func (f FactoryNamespace) DeviceCert() ([]byte, error) {
	return f.s.Get(NamespaceFactory, keyDeviceCert)
}

func (f FactoryNamespace) SetDeviceCert(der []byte) error {
	return f.s.Put(NamespaceFactory, keyDeviceCert, der)
}

func (f FactoryNamespace) DevicePrivateKey() ([]byte, error) {
	return f.s.Get(NamespaceFactory, keyDevicePrivateKey)
}

func (f FactoryNamespace) SetDevicePrivateKey(key []byte) error {
	return f.s.Put(NamespaceFactory, keyDevicePrivateKey, key)
}
