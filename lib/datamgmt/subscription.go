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
	"time"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/weaveio/weavecore/lib/exchange"
	"github.com/weaveio/weavecore/lib/tlv"
)

// ClientState is the SubscriptionClient's lifecycle state.
type ClientState uint8

const (
	ClientIdle ClientState = iota
	ClientPreparingBinding
	ClientSubscribing
	ClientEstablished
	ClientAborted
)

func (s ClientState) String() string {
	switch s {
		case ClientIdle:
		return "idle"
		case ClientPreparingBinding:
		return "preparing-binding"
		case ClientSubscribing:
		return "subscribing"
		case ClientEstablished:
		return "established"
		case ClientAborted:
		return "aborted"
		default:
		return "unknown"
	}
}

// PrepareSubscribeRequestFunc supplies the path list (and interval
// bounds) for an outbound Subscribe, normally by calling
// TraitCatalog.PrepareSubscriptionPathList.
type PrepareSubscribeRequestFunc func() (SubscribeRequest, error)

// Backoff is the resubscribe policy surface EnableResubscribe accepts.
// *retryutils.Fibonacci and *retryutils.Retry both satisfy it already.
type Backoff interface {
	Duration() time.Duration
	Inc()
	Reset()
}

// SubscriptionClientConfig configures a SubscriptionClient.
type SubscriptionClientConfig struct {
	Engine exchange.Engine
	PeerNodeID exchange.NodeID

	// ResolveBinding performs the security handshake a binding needs and
	// calls b.Resolve once it completes, mirroring tunnel.Config's field
	// of the same name.
	ResolveBinding func(b *exchange.Binding)

	PrepareRequest PrepareSubscribeRequestFunc

	ResponseTimeout time.Duration

	OnEstablished func(subscriptionID uint64)
	OnTerminated func(err error)

	Clock clockwork.Clock
	Log logrus.FieldLogger
}

func (c *SubscriptionClientConfig) checkAndSetDefaults() error {
	if c.Engine == nil {
		return trace.BadParameter("datamgmt: Engine is required")
	}
	if c.PrepareRequest == nil {
		return trace.BadParameter("datamgmt: PrepareRequest is required")
	}
	if c.ResponseTimeout <= 0 {
		c.ResponseTimeout = 30 * time.Second
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Log == nil {
		c.Log = logrus.WithField(trace.Component, "datamgmt")
	}
	return nil
}

// SubscriptionClient manages a single outgoing subscription to a peer's
// published traits
type SubscriptionClient struct {
	cfg SubscriptionClientConfig

	mu sync.Mutex
	state ClientState
	ec *exchange.ExchangeContext
	subscriptionID uint64
	resubscribe Backoff

	closed chan struct{}
}

// NewSubscriptionClient returns an idle SubscriptionClient.
func NewSubscriptionClient(cfg SubscriptionClientConfig) (*SubscriptionClient, error) {
	if err := cfg.checkAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &SubscriptionClient{cfg: cfg, closed: make(chan struct{})}, nil
}

// State returns the client's current lifecycle state.
func (c *SubscriptionClient) State() ClientState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *SubscriptionClient) setState(s ClientState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	c.cfg.Log.WithField("state", s.String()).Debug("subscription client state transition")
}

// EnableResubscribe installs a policy used to schedule automatic
// re-initiation after the subscription terminates unexpectedly.
func (c *SubscriptionClient) EnableResubscribe(policy Backoff) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resubscribe = policy
}

// InitiateSubscription starts (or restarts) the outbound subscription:
// prepares a binding, calls ResolveBinding synchronously, asks the
// application for a path list, and sends Subscribe. It does not wait for
// the binding: if it is not ready when ResolveBinding returns,
// NewContext fails, the client terminates and the error is returned.
func (c *SubscriptionClient) InitiateSubscription() error {
	c.mu.Lock()
	if c.state != ClientIdle && c.state != ClientAborted {
		c.mu.Unlock()
		return trace.BadParameter("datamgmt: cannot subscribe from state %s", c.state)
	}
	c.mu.Unlock()

	c.setState(ClientPreparingBinding)

	b := exchange.NewBinding(c.cfg.PeerNodeID, exchange.SecurityCASE, exchange.TransportTCP, c.cfg.ResponseTimeout)
	if err := b.Prepare(); err != nil {
		c.terminate(err)
		return trace.Wrap(err)
	}
	if c.cfg.ResolveBinding != nil {
		c.cfg.ResolveBinding(b)
	}
	ec, err := c.cfg.Engine.NewContext(b, c.cfg.ResponseTimeout)
	if err != nil {
		c.terminate(err)
		return trace.Wrap(err)
	}
	ec.OnMessageReceived = c.onMessage

	req, err := c.cfg.PrepareRequest()
	if err != nil {
		c.terminate(err)
		return trace.Wrap(err)
	}

	c.mu.Lock()
	c.ec = ec
	c.mu.Unlock()
	c.setState(ClientSubscribing)

	if err := sendSubscribeRequest(c.cfg.Engine, ec, req); err != nil {
		c.terminate(err)
		return trace.Wrap(err)
	}
	return nil
}

func (c *SubscriptionClient) onMessage(ec *exchange.ExchangeContext, msg exchange.Message) {
	if msg.ProfileID != ProfileWDM {
		return
	}
	switch msg.MessageType {
		case MsgSubscribeResponse:
		r := tlv.NewReader(msg.Payload)
		if _, err := r.Next(); err != nil {
			c.terminate(err)
			return
		}
		resp, err := DecodeSubscribeResponse(r)
		if err != nil {
			c.terminate(err)
			return
		}
		c.mu.Lock()
		c.subscriptionID = resp.SubscriptionID
		if c.resubscribe != nil {
			c.resubscribe.Reset()
		}
		c.mu.Unlock()
		c.setState(ClientEstablished)
		if c.cfg.OnEstablished != nil {
			c.cfg.OnEstablished(resp.SubscriptionID)
		}
		case MsgSubscribeCancelAck:
		c.terminate(nil)
	}
}

// SubscriptionID returns the peer-assigned id once established.
func (c *SubscriptionClient) SubscriptionID() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscriptionID
}

// terminate tears the subscription down and, if a resubscribe policy
// is installed, schedules another InitiateSubscription after its
// delay.
func (c *SubscriptionClient) terminate(err error) {
	c.mu.Lock()
	if c.ec != nil {
		c.cfg.Engine.CloseContext(c.ec)
		c.ec = nil
	}
	backoff := c.resubscribe
	c.mu.Unlock()
	c.setState(ClientAborted)
	if c.cfg.OnTerminated != nil {
		c.cfg.OnTerminated(err)
	}
	if backoff == nil {
		return
	}
	backoff.Inc()
	delay := backoff.Duration()
	c.cfg.Log.WithField("delay", delay).Info("scheduling resubscribe")
	timer := c.cfg.Clock.NewTimer(delay)
	go func() {
		select {
			case <-timer.Chan():
			_ = c.InitiateSubscription()
			case <-c.closed:
		}
	}()
}

// Close abandons the subscription and any scheduled resubscribe.
func (c *SubscriptionClient) Close() {
	select {
		case <-c.closed:
		default:
		close(c.closed)
	}
	c.mu.Lock()
	ec := c.ec
	c.ec = nil
	c.mu.Unlock()
	if ec != nil {
		c.cfg.Engine.CloseContext(ec)
	}
	c.setState(ClientAborted)
}

func sendSubscribeRequest(eng exchange.Engine, ec *exchange.ExchangeContext, req SubscribeRequest) error {
	w := tlv.NewGrowableWriter()
	if err := EncodeSubscribeRequest(w, req); err != nil {
		return trace.Wrap(err)
	}
	if err := w.Finalize(); err != nil {
		return trace.Wrap(err)
	}
	return eng.SendMessage(ec, exchange.Message{ProfileID: ProfileWDM, MessageType: MsgSubscribeRequest, Payload: w.Bytes(), RequestAck: true})
}
