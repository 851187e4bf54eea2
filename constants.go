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

// Package weavecore holds identifiers shared across the lib/ engines and
// the weaved daemon: the module version and the logging component names
// passed to logrus.WithField(trace.Component, ..).
package weavecore

import "strings"

// Version is the weavecore module version.
const Version = "0.1.0"

const (
	// ComponentTunnel is the tunnel connection manager.
	ComponentTunnel = "tunnel"
	// ComponentDataMgmt is the trait catalog / subscription engine.
	ComponentDataMgmt = "datamgmt"
	// ComponentBDX is the bulk data transfer protocol.
	ComponentBDX = "bdx"
	// ComponentCertProv is the certificate provisioning exchange.
	ComponentCertProv = "certprov"
	// ComponentCertStore is the Weave-TLV certificate store.
	ComponentCertStore = "weavecert"
	// ComponentExchange is the message exchange engine.
	ComponentExchange = "exchange"
	// ComponentHeartbeat is the fabric liveness announcement.
	ComponentHeartbeat = "heartbeat"
	// ComponentSWUpdate is the software-update query/announce exchange.
	ComponentSWUpdate = "swupdate"
	// ComponentStore is the persistent key/value store.
	ComponentStore = "store"
	// ComponentDaemon is the weaved process itself.
	ComponentDaemon = "weaved"
)

// Component generates "component:subcomponent1:subcomponent2" strings for
// use as the trace.Component field passed to logrus.
func Component(components ...string) string {
	return strings.Join(components, ":")
}

const (
	// DefaultDataDir is the default on-disk location for weaved's
	// persistent store namespaces (factory, config, counters).
	DefaultDataDir = "/var/lib/weaved"

	// DefaultConfigPath is the default location of weaved's YAML config
	// file.
	DefaultConfigPath = "/etc/weaved/weaved.yaml"
)
