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
	"github.com/gravitational/trace"
	"github.com/sirupsen/logrus"

	"github.com/weaveio/weavecore/lib/exchange"
	"github.com/weaveio/weavecore/lib/tlv"
)

// ResolveQueryFunc decides how to answer an ImageQuery: it returns a
// non-nil *ImageQueryResponse when an update applies to q, or nil when
// none does (in which case the responder sends the NoUpdateAvailable
// status report), mirroring MockIAServer's canned
// "respond with image info or NotAvailable" branch.
type ResolveQueryFunc func(peer exchange.NodeID, q ImageQuery) (*ImageQueryResponse, error)

// ResponderConfig configures a Responder.
type ResponderConfig struct {
	Engine exchange.Engine
	Resolve ResolveQueryFunc
	Log logrus.FieldLogger
}

func (c *ResponderConfig) checkAndSetDefaults() error {
	if c.Engine == nil {
		return trace.BadParameter("swupdate: Engine is required")
	}
	if c.Resolve == nil {
		return trace.BadParameter("swupdate: Resolve is required")
	}
	if c.Log == nil {
		c.Log = logrus.WithField(trace.Component, "swupdate")
	}
	return nil
}

// Responder answers ImageQuery requests from devices on behalf of a
// software-update service.
type Responder struct {
	cfg ResponderConfig
}

// NewResponder returns a Responder ready to register with an engine.
func NewResponder(cfg ResponderConfig) (*Responder, error) {
	if err := cfg.checkAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &Responder{cfg: cfg}, nil
}

// RegisterWith installs the responder's unsolicited-message route on
// eng.
func (r *Responder) RegisterWith(eng exchange.Engine) {
	eng.RegisterUnsolicitedHandler(ProfileSWU, MsgImageQuery, r.onImageQuery)
}

func (r *Responder) onImageQuery(ec *exchange.ExchangeContext, msg exchange.Message) {
	defer r.cfg.Engine.CloseContext(ec)

	reader := tlv.NewReader(msg.Payload)
	if _, err := reader.Next(); err != nil {
		r.cfg.Log.WithError(err).Warn("malformed image query")
		return
	}
	q, err := DecodeImageQuery(reader)
	if err != nil {
		r.cfg.Log.WithError(err).Warn("malformed image query")
		return
	}

	resp, err := r.cfg.Resolve(ec.PeerNodeID, q)
	if err != nil {
		r.cfg.Log.WithError(err).Warn("image query resolution failed")
		return
	}
	if resp == nil {
		status := encodeStatusReport(StatusReport{ProfileID: ProfileSWU, StatusCode: StatusNoUpdateAvailable})
		if err := r.cfg.Engine.SendMessage(ec, exchange.Message{ProfileID: ProfileSWU, MessageType: MsgImageQueryStatus, Payload: status}); err != nil {
			r.cfg.Log.WithError(err).Warn("failed to send no-update status report")
		}
		return
	}

	w := tlv.NewGrowableWriter()
	if err := EncodeImageQueryResponse(w, *resp); err != nil {
		r.cfg.Log.WithError(err).Warn("failed to encode image query response")
		return
	}
	if err := w.Finalize(); err != nil {
		r.cfg.Log.WithError(err).Warn("failed to encode image query response")
		return
	}
	if err := r.cfg.Engine.SendMessage(ec, exchange.Message{ProfileID: ProfileSWU, MessageType: MsgImageQueryResponse, Payload: w.Bytes()}); err != nil {
		r.cfg.Log.WithError(err).Warn("failed to send image query response")
	}
}
