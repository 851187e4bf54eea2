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

// Package exchange defines the message-binding and exchange-context
// abstraction every other protocol layer (certificate provisioning,
// BDX, data-management, the tunnel control profile) is built on. Only
// the interface and a minimal in-process implementation live here; a
// real UDP/WRM or TCP transport is left to an integrator.
package exchange

import "github.com/google/uuid"

// NodeID is a 64-bit Weave fabric node identifier.
type NodeID uint64

// ExchangeID is the 16-bit wire-level exchange identifier scoped to a
// (local node, peer node) pair. CorrelationID supplements it with an
// opaque, globally-unique id for in-process routing and logging.
type ExchangeID uint16

// SessionKeyID identifies the WRM (or TCP/TLS) session key an exchange
// runs under.
type SessionKeyID uint16

// TransportType is the underlying transport a Binding uses.
type TransportType uint8

const (
	TransportUnspecified TransportType = iota
	TransportUDPWRM
	TransportTCP
)

// SecurityMode is the session security a Binding negotiates.
type SecurityMode uint8

const (
	SecurityNone SecurityMode = iota
	SecurityCASE
	SecurityPASE
	SecurityGroupKey
)

// BindingState is a Binding's readiness lifecycle
type BindingState uint8

const (
	BindingUnprepared BindingState = iota
	BindingPreparing
	BindingReady
	BindingFailed
	BindingReleased
)

func (s BindingState) String() string {
	switch s {
		case BindingUnprepared:
		return "unprepared"
		case BindingPreparing:
		return "preparing"
		case BindingReady:
		return "ready"
		case BindingFailed:
		return "failed"
		case BindingReleased:
		return "released"
		default:
		return "unknown"
	}
}

// Message is a single profile-tagged payload sent or received over an
// exchange.
type Message struct {
	ProfileID uint32
	MessageType uint8
	Payload []byte

	// RequestAck asks the peer's reliable-messaging layer to ACK this
	// message (WRM). Responses to a reliably-sent request are, by
	// convention, reliably sent back.
	RequestAck bool
}

// newCorrelationID returns an opaque id for logging/routing purposes
// alongside the wire-level ExchangeID.
func newCorrelationID() string { return uuid.NewString() }
