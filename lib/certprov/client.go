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

package certprov

import (
	"sync"
	"time"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/weaveio/weavecore/lib/exchange"
)

// ClientConfig configures a Client.
type ClientConfig struct {
	Engine exchange.Engine
	PeerNodeID exchange.NodeID

	// ResolveBinding performs the security handshake a binding needs,
	// mirroring swupdate.ClientConfig's field of the same name.
	ResolveBinding func(b *exchange.Binding)

	ResponseTimeout time.Duration

	// OnCertReplaced is raised once the exchange concludes: replaced is
	// true when a new certificate was stored, false when the service
	// reported NoNewOperationalCertRequired (terminal success, not an
	// error).
	OnCertReplaced func(replaced bool)
	OnFailed func(err error)

	Clock clockwork.Clock
	Log logrus.FieldLogger
}

func (c *ClientConfig) checkAndSetDefaults() error {
	if c.Engine == nil {
		return trace.BadParameter("certprov: Engine is required")
	}
	if c.ResponseTimeout <= 0 {
		c.ResponseTimeout = 30 * time.Second
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Log == nil {
		c.Log = logrus.WithField(trace.Component, "certprov")
	}
	return nil
}

// Client drives a single certificate-provisioning exchange against a
// CA service.
type Client struct {
	cfg ClientConfig

	mu sync.Mutex
	state ClientState
	ec *exchange.ExchangeContext
}

// NewClient returns an idle Client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.checkAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &Client{cfg: cfg}, nil
}

// State returns the client's current lifecycle state.
func (c *Client) State() ClientState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RequestCertificate builds a GetCertificateRequest via params and
// sends it to the configured peer. The outcome arrives asynchronously
// via OnCertReplaced or OnFailed.
func (c *Client) RequestCertificate(params RequestParams) error {
	c.mu.Lock()
	if c.state == StateRequestGenerated {
		c.mu.Unlock()
		return trace.BadParameter("certprov: a request is already outstanding")
	}
	c.mu.Unlock()

	payload, err := GenerateGetCertificateRequest(params)
	if err != nil {
		c.setState(StateFailed)
		return trace.Wrap(err)
	}

	b := exchange.NewBinding(c.cfg.PeerNodeID, exchange.SecurityCASE, exchange.TransportTCP, c.cfg.ResponseTimeout)
	if err := b.Prepare(); err != nil {
		c.setState(StateFailed)
		return trace.Wrap(err)
	}
	if c.cfg.ResolveBinding != nil {
		c.cfg.ResolveBinding(b)
	}
	ec, err := c.cfg.Engine.NewContext(b, c.cfg.ResponseTimeout)
	if err != nil {
		c.setState(StateFailed)
		return trace.Wrap(err)
	}
	ec.OnMessageReceived = func(ec *exchange.ExchangeContext, msg exchange.Message) { c.onMessage(params.OpAuth, ec, msg) }
	ec.OnResponseTimeout = func(ec *exchange.ExchangeContext) {
		c.finish(StateFailed, func() {
				if c.cfg.OnFailed != nil {
					c.cfg.OnFailed(trace.LimitExceeded("certprov: get-certificate request timed out"))
				}
			})
	}

	c.mu.Lock()
	c.ec = ec
	c.mu.Unlock()
	c.setState(StateRequestGenerated)

	msg := exchange.Message{ProfileID: ProfileCertProv, MessageType: MsgGetCertificateRequest, Payload: payload, RequestAck: true}
	if err := c.cfg.Engine.SendMessage(ec, msg); err != nil {
		c.setState(StateFailed)
		return trace.Wrap(err)
	}
	return nil
}

func (c *Client) onMessage(opAuth OperationalAuthDelegate, ec *exchange.ExchangeContext, msg exchange.Message) {
	switch {
		case msg.ProfileID == ProfileCertProv && msg.MessageType == MsgGetCertificateResponse:
		resp, err := ParseGetCertificateResponse(msg.Payload)
		if err != nil {
			c.finish(StateFailed, func() {
					if c.cfg.OnFailed != nil {
						c.cfg.OnFailed(err)
					}
				})
			return
		}
		if err := opAuth.StoreAssignedCert(resp.Cert, resp.RelatedCerts); err != nil {
			c.finish(StateFailed, func() {
					if c.cfg.OnFailed != nil {
						c.cfg.OnFailed(trace.Wrap(err))
					}
				})
			return
		}
		c.finish(StateComplete, func() {
				if c.cfg.OnCertReplaced != nil {
					c.cfg.OnCertReplaced(true)
				}
			})
		case msg.ProfileID == ProfileCertProv && msg.MessageType == MsgStatusReport:
		sr, ok := decodeStatusReport(msg.Payload)
		if !ok || !sr.IsNoNewOperationalCertRequired() {
			c.finish(StateFailed, func() {
					if c.cfg.OnFailed != nil {
						c.cfg.OnFailed(trace.BadParameter("certprov: unexpected status report"))
					}
				})
			return
		}
		c.finish(StateComplete, func() {
				if c.cfg.OnCertReplaced != nil {
					c.cfg.OnCertReplaced(false)
				}
			})
		default:
		c.cfg.Log.WithField("type", msg.MessageType).Warn("unexpected certprov message")
	}
}

func (c *Client) finish(state ClientState, fire func()) {
	c.mu.Lock()
	if c.ec != nil {
		c.cfg.Engine.CloseContext(c.ec)
		c.ec = nil
	}
	c.mu.Unlock()
	c.setState(state)
	fire()
}

func (c *Client) setState(s ClientState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// sendStatusReport is used by service responders to emit the
// NoNewOperationalCertRequired status report, mirroring the shape a
// real CA service would send.
func sendStatusReport(eng exchange.Engine, ec *exchange.ExchangeContext, sr StatusReport) error {
	return eng.SendMessage(ec, exchange.Message{ProfileID: ProfileCertProv, MessageType: MsgStatusReport, Payload: encodeStatusReport(sr)})
}
