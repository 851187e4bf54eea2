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

package exchange

// ExchangeContext is an in-flight request/response pair identified by
// (local node id, peer node id, exchange id, session key id). Created
// by the engine at send time or inbound-message time, owned by a
// single consumer (cert-prov, BDX, data-mgmt, tunnel), destroyed on
// completion, abort, or timeout.
type ExchangeContext struct {
	LocalNodeID NodeID
	PeerNodeID NodeID
	ExchangeID ExchangeID
	SessionKeyID SessionKeyID

	// CorrelationID is an opaque id for logging/routing, independent of
	// the wire-level 16-bit ExchangeID.
	CorrelationID string

	binding *Binding

	// OnMessageReceived is invoked with the response/subsequent message
	// for this exchange.
	OnMessageReceived func(*ExchangeContext, Message)

	// OnResponseTimeout is invoked if ResponseTimeout elapses with no
	// reply.
	OnResponseTimeout func(*ExchangeContext)

	// OnSendError is invoked if the underlying transport reports a send
	// failure for a message sent on this exchange.
	OnSendError func(*ExchangeContext, error)

	closed bool
}

// Binding returns the peer binding this exchange was created against.
func (c *ExchangeContext) Binding() *Binding { return c.binding }

// Closed reports whether the exchange has already completed, aborted,
// or timed out.
func (c *ExchangeContext) Closed() bool { return c.closed }
