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
	"github.com/gravitational/trace"
	"github.com/sirupsen/logrus"

	"github.com/weaveio/weavecore/lib/exchange"
	"github.com/weaveio/weavecore/lib/tlv"
	"github.com/weaveio/weavecore/lib/weavecert"
)

// IssueFunc decides how a CA service answers a GetCertificateRequest:
// it returns the newly issued operational certificate (and any related
// certificates) as WeaveCertificate/WeaveCertificateList-tagged TLV, or
// a nil cert when the device's existing certificate is still valid (in
// which case the responder sends NoNewOperationalCertRequired).
type IssueFunc func(peer exchange.NodeID, requestPayload []byte) (cert []byte, relatedCerts []byte, err error)

// ResponderConfig configures a Responder.
type ResponderConfig struct {
	Engine exchange.Engine
	Issue IssueFunc
	Log logrus.FieldLogger
}

func (c *ResponderConfig) checkAndSetDefaults() error {
	if c.Engine == nil {
		return trace.BadParameter("certprov: Engine is required")
	}
	if c.Issue == nil {
		return trace.BadParameter("certprov: Issue is required")
	}
	if c.Log == nil {
		c.Log = logrus.WithField(trace.Component, "certprov")
	}
	return nil
}

// Responder plays the CA-service role of the certificate-provisioning
// exchange
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
	eng.RegisterUnsolicitedHandler(ProfileCertProv, MsgGetCertificateRequest, r.onRequest)
}

func (r *Responder) onRequest(ec *exchange.ExchangeContext, msg exchange.Message) {
	defer r.cfg.Engine.CloseContext(ec)

	cert, relatedCerts, err := r.cfg.Issue(ec.PeerNodeID, msg.Payload)
	if err != nil {
		r.cfg.Log.WithError(err).Warn("certificate issuance failed")
		return
	}
	if cert == nil {
		if err := sendStatusReport(r.cfg.Engine, ec, StatusReport{
				ProfileID: weavecert.ProfileSecurity,
				StatusCode: NoNewOperationalCertRequiredStatus,
			}); err != nil {
			r.cfg.Log.WithError(err).Warn("failed to send no-new-cert status report")
		}
		return
	}

	w := tlv.NewGrowableWriter()
	if err := EncodeGetCertificateResponse(w, cert, relatedCerts); err != nil {
		r.cfg.Log.WithError(err).Warn("failed to encode get-certificate response")
		return
	}
	if err := w.Finalize(); err != nil {
		r.cfg.Log.WithError(err).Warn("failed to encode get-certificate response")
		return
	}
	if err := r.cfg.Engine.SendMessage(ec, exchange.Message{ProfileID: ProfileCertProv, MessageType: MsgGetCertificateResponse, Payload: w.Bytes()}); err != nil {
		r.cfg.Log.WithError(err).Warn("failed to send get-certificate response")
	}
}
