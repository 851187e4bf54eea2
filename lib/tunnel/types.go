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

// Package tunnel implements TunnelConnMgr, the reverse-tunnel-shaped
// connection manager responsible for a logical tunnel to a service
// peer: connection, reconnection with fibonacci backoff, liveness
// probing, keepalive/user-timeout programming, and primary/backup
// failover. Grounded on lib/reversetunnel/{transport,rc_manager,
// discovery}.go's agent-pool shape, generalized from SSH-reverse-
// tunnel-specific code to a transport-agnostic state machine.
package tunnel

import "time"

// State is the TunnelConnMgr's connection-state
type State uint8

const (
	StateNotConnected State = iota
	StateConnecting
	StateConnectionEstablished
	StateTunnelOpen
	StateTunnelClosing
)

func (s State) String() string {
	switch s {
		case StateNotConnected:
		return "not-connected"
		case StateConnecting:
		return "connecting"
		case StateConnectionEstablished:
		return "connection-established"
		case StateTunnelOpen:
		return "tunnel-open"
		case StateTunnelClosing:
		return "tunnel-closing"
		default:
		return "unknown"
	}
}

// Classification distinguishes the primary tunnel instance from its
// backup; each runs its own TunnelConnMgr with independent state.
type Classification uint8

const (
	ClassificationPrimary Classification = iota
	ClassificationBackup
)

// SourceInterfaceType is the network interface a TunnelConnection runs
// over
type SourceInterfaceType uint8

const (
	SourceInterfaceUnspecified SourceInterfaceType = iota
	SourceInterfaceWiFi
	SourceInterfaceCellular
	SourceInterfaceTunnel
	SourceInterfaceThread
)

// KeepaliveParams bundles the TCP keepalive/user-timeout values
// programmed on the underlying socket once a connection completes.
// Defaults differ for primary vs backup.
type KeepaliveParams struct {
	Interval time.Duration
	MaxProbes int
	UserTimeout time.Duration
}

// DefaultPrimaryKeepalive returns the primary-tunnel defaults
// (interval=15s, maxProbes=6, userTimeout=30s).
func DefaultPrimaryKeepalive() KeepaliveParams {
	return KeepaliveParams{Interval: 15 * time.Second, MaxProbes: 6, UserTimeout: 30 * time.Second}
}

// DefaultBackupKeepalive uses looser values than the primary default,
// since the backup tunnel tolerates more latency before failing over.
func DefaultBackupKeepalive() KeepaliveParams {
	return KeepaliveParams{Interval: 45 * time.Second, MaxProbes: 4, UserTimeout: 90 * time.Second}
}

// ReconnectParam carries the inputs the reconnect policy callback
// uses to compute the next delay.
type ReconnectParam struct {
	LastConnectError error
	StatusProfileID uint32
	StatusCode uint16
	MinDelayToConnect time.Duration
}
