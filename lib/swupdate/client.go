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

package swupdate

import (
	"sync"
	"time"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/weaveio/weavecore/lib/exchange"
	"github.com/weaveio/weavecore/lib/tlv"
)

// ClientConfig configures a Client.
type ClientConfig struct {
	Engine exchange.Engine
	PeerNodeID exchange.NodeID

	// ResolveBinding performs the security handshake a binding needs,
	// mirroring datamgmt.SubscriptionClientConfig's field of the same
	// name.
	ResolveBinding func(b *exchange.Binding)

	ResponseTimeout time.Duration

	// OnUpdateAvailable is raised when the responder describes an
	// available update.
	OnUpdateAvailable func(resp ImageQueryResponse)
	// OnNoUpdateAvailable is raised when the responder answers with the
	// NoUpdateAvailable status report instead of a response structure;
	// this is terminal success, not an error.
	OnNoUpdateAvailable func()
	OnQueryError func(err error)

	Clock clockwork.Clock
	Log logrus.FieldLogger
}

func (c *ClientConfig) checkAndSetDefaults() error {
	if c.Engine == nil {
		return trace.BadParameter("swupdate: Engine is required")
	}
	if c.ResponseTimeout <= 0 {
		c.ResponseTimeout = 30 * time.Second
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Log == nil {
		c.Log = logrus.WithField(trace.Component, "swupdate")
	}
	return nil
}

// Client issues ImageQuery requests to a single software-update service
// peer
type Client struct {
	cfg ClientConfig

	mu sync.Mutex
	ec *exchange.ExchangeContext
}

// NewClient returns a Client ready to issue queries.
func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.checkAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &Client{cfg: cfg}, nil
}

// Query sends an ImageQuery to the configured peer. The result arrives
// asynchronously via OnUpdateAvailable, OnNoUpdateAvailable, or
// OnQueryError as the response is received.
func (c *Client) Query(q ImageQuery) error {
	b := exchange.NewBinding(c.cfg.PeerNodeID, exchange.SecurityCASE, exchange.TransportTCP, c.cfg.ResponseTimeout)
	if err := b.Prepare(); err != nil {
		return trace.Wrap(err)
	}
	if c.cfg.ResolveBinding != nil {
		c.cfg.ResolveBinding(b)
	}
	ec, err := c.cfg.Engine.NewContext(b, c.cfg.ResponseTimeout)
	if err != nil {
		return trace.Wrap(err)
	}
	ec.OnMessageReceived = c.onMessage
	ec.OnResponseTimeout = func(ec *exchange.ExchangeContext) {
		if c.cfg.OnQueryError != nil {
			c.cfg.OnQueryError(trace.LimitExceeded("swupdate: image query timed out"))
		}
	}

	c.mu.Lock()
	c.ec = ec
	c.mu.Unlock()

	w := tlv.NewGrowableWriter()
	if err := EncodeImageQuery(w, q); err != nil {
		return trace.Wrap(err)
	}
	if err := w.Finalize(); err != nil {
		return trace.Wrap(err)
	}
	msg := exchange.Message{ProfileID: ProfileSWU, MessageType: MsgImageQuery, Payload: w.Bytes(), RequestAck: true}
	if err := c.cfg.Engine.SendMessage(ec, msg); err != nil {
		return trace.Wrap(err)
	}
	return nil
}

func (c *Client) onMessage(ec *exchange.ExchangeContext, msg exchange.Message) {
	defer func() {
		c.mu.Lock()
		if c.ec == ec {
			c.ec = nil
		}
		c.mu.Unlock()
		c.cfg.Engine.CloseContext(ec)
	}()

	if msg.ProfileID != ProfileSWU {
		return
	}
	switch msg.MessageType {
		case MsgImageQueryResponse:
		r := tlv.NewReader(msg.Payload)
		if _, err := r.Next(); err != nil {
			c.fail(err)
			return
		}
		resp, err := DecodeImageQueryResponse(r)
		if err != nil {
			c.fail(err)
			return
		}
		if c.cfg.OnUpdateAvailable != nil {
			c.cfg.OnUpdateAvailable(resp)
		}
		case MsgImageQueryStatus:
		sr, ok := decodeStatusReport(msg.Payload)
		if !ok {
			c.fail(trace.BadParameter("swupdate: malformed status report"))
			return
		}
		if sr.IsNoUpdateAvailable() {
			if c.cfg.OnNoUpdateAvailable != nil {
				c.cfg.OnNoUpdateAvailable()
			}
			return
		}
		c.fail(trace.BadParameter("swupdate: status report %d/%d", sr.ProfileID, sr.StatusCode))
		default:
		c.cfg.Log.WithField("type", msg.MessageType).Warn("unexpected swupdate message")
	}
}

func (c *Client) fail(err error) {
	if c.cfg.OnQueryError != nil {
		c.cfg.OnQueryError(err)
	}
}

func encodeStatusReport(sr StatusReport) []byte {
	buf := make([]byte, 6)
	buf[0] = byte(sr.ProfileID)
	buf[1] = byte(sr.ProfileID >> 8)
	buf[2] = byte(sr.ProfileID >> 16)
	buf[3] = byte(sr.ProfileID >> 24)
	buf[4] = byte(sr.StatusCode)
	buf[5] = byte(sr.StatusCode >> 8)
	return buf
}

func decodeStatusReport(buf []byte) (StatusReport, bool) {
	if len(buf) != 6 {
		return StatusReport{}, false
	}
	return StatusReport{
		ProfileID: uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24,
		StatusCode: uint16(buf[4]) | uint16(buf[5])<<8,
	}, true
}
