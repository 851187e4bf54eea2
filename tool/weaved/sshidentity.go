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
	"crypto/x509"
	"time"

	"github.com/gravitational/trace"
	"golang.org/x/crypto/ssh"

	"github.com/weaveio/weavecore/lib/store"
)

// buildSSHClientConfig derives the tunnel's SSH client identity from
// the device's factory-provisioned operational key, the same key
// deviceOpAuth signs certificate-provisioning requests with at the
// Weave protocol layer. Host verification is intentionally left to whatever
// CASE/attestation handshake runs at the exchange layer (see
// resolveBindingImmediately); the SSH layer here only needs to carry
// the multiplexed byte stream, mirroring the transport/security
// separation lib/reversetunnel/transport.go keeps between the SSH
// dial and the auth-layer identity check performed afterward.
func buildSSHClientConfig(kv store.Store) (*ssh.ClientConfig, error) {
	der, err := store.Factory(kv).DevicePrivateKey()
	if err != nil {
		return nil, trace.Wrap(err, "loading device private key")
	}
	key, err := x509.ParseECPrivateKey(der)
	if err != nil {
		return nil, trace.Wrap(err, "parsing device private key")
	}
	signer, err := ssh.NewSignerFromKey(key)
	if err != nil {
		return nil, trace.Wrap(err, "deriving SSH signer from device key")
	}
	return &ssh.ClientConfig{
		User: "weave-device",
		Auth: []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout: 15 * time.Second,
	}, nil
}
