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

package datamgmt

import (
	"sync"

	"github.com/gravitational/trace"
	"github.com/sirupsen/logrus"

	"github.com/weaveio/weavecore/lib/exchange"
	"github.com/weaveio/weavecore/lib/tlv"
)

// HandlerConfig configures a SubscriptionHandler.
type HandlerConfig struct {
	Engine exchange.Engine

	// NextSubscriptionID supplies the id sent back in the
	// SubscribeResponse.
	NextSubscriptionID func() uint64
	// OnSubscriptionEstablished is raised once an inbound Subscribe has
	// been accepted.
	OnSubscriptionEstablished func(peer exchange.NodeID, subscriptionID uint64, req SubscribeRequest)
	OnSubscriptionTerminated func(peer exchange.NodeID, subscriptionID uint64)

	Log logrus.FieldLogger
}

func (c *HandlerConfig) checkAndSetDefaults() {
	if c.Log == nil {
		c.Log = logrus.WithField(trace.Component, "datamgmt")
	}
	if c.NextSubscriptionID == nil {
		var n uint64
		c.NextSubscriptionID = func() uint64 { n++; return n }
	}
}

// SubscriptionHandler is the server-side peer of a SubscriptionClient:
// it accepts inbound Subscribe requests, rejects duplicates from a peer
// it already serves, and raises established/terminated events for the
// application
type SubscriptionHandler struct {
	cfg HandlerConfig

	mu sync.Mutex
	active map[exchange.NodeID]uint64
}

// NewSubscriptionHandler returns a handler with no active
// subscriptions. Call RegisterWith to start accepting Subscribe
// requests on eng.
func NewSubscriptionHandler(cfg HandlerConfig) *SubscriptionHandler {
	cfg.checkAndSetDefaults()
	return &SubscriptionHandler{cfg: cfg, active: make(map[exchange.NodeID]uint64)}
}

// RegisterWith installs the handler's unsolicited-message routes on
// eng.
func (h *SubscriptionHandler) RegisterWith(eng exchange.Engine) {
	eng.RegisterUnsolicitedHandler(ProfileWDM, MsgSubscribeRequest, h.onSubscribeRequest)
	eng.RegisterUnsolicitedHandler(ProfileWDM, MsgSubscribeCancelRequest, h.onSubscribeCancel)
}

func (h *SubscriptionHandler) onSubscribeRequest(ec *exchange.ExchangeContext, msg exchange.Message) {
	r := tlv.NewReader(msg.Payload)
	if _, err := r.Next(); err != nil {
		h.cfg.Log.WithError(err).Warn("malformed subscribe request")
		return
	}
	req, err := DecodeSubscribeRequest(r)
	if err != nil {
		h.cfg.Log.WithError(err).Warn("malformed subscribe request")
		return
	}

	h.mu.Lock()
	if _, dup := h.active[ec.PeerNodeID]; dup {
		h.mu.Unlock()
		h.cfg.Log.WithField("peer", ec.PeerNodeID).Warn("rejecting duplicate subscribe from peer")
		return
	}
	subID := h.cfg.NextSubscriptionID()
	h.active[ec.PeerNodeID] = subID
	h.mu.Unlock()

	w := tlv.NewGrowableWriter()
	if err := EncodeSubscribeResponse(w, SubscribeResponse{SubscriptionID: subID}); err != nil {
		h.cfg.Log.WithError(err).Warn("failed to encode subscribe response")
		return
	}
	if err := w.Finalize(); err != nil {
		h.cfg.Log.WithError(err).Warn("failed to finalize subscribe response")
		return
	}
	if err := h.cfg.Engine.SendMessage(ec, exchange.Message{ProfileID: ProfileWDM, MessageType: MsgSubscribeResponse, Payload: w.Bytes(), RequestAck: true}); err != nil {
		h.cfg.Log.WithError(err).Warn("failed to send subscribe response")
		return
	}
	if h.cfg.OnSubscriptionEstablished != nil {
		h.cfg.OnSubscriptionEstablished(ec.PeerNodeID, subID, req)
	}
}

func (h *SubscriptionHandler) onSubscribeCancel(ec *exchange.ExchangeContext, _ exchange.Message) {
	h.mu.Lock()
	subID, ok := h.active[ec.PeerNodeID]
	delete(h.active, ec.PeerNodeID)
	h.mu.Unlock()

	_ = sendEmptyStructure(h.cfg.Engine, ec, MsgSubscribeCancelAck)
	if ok && h.cfg.OnSubscriptionTerminated != nil {
		h.cfg.OnSubscriptionTerminated(ec.PeerNodeID, subID)
	}
}

// ActiveSubscriptionID reports the subscription id the handler
// currently serves for peer, if any.
func (h *SubscriptionHandler) ActiveSubscriptionID(peer exchange.NodeID) (uint64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id, ok := h.active[peer]
	return id, ok
}
