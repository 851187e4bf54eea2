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

	"github.com/weaveio/weavecore/lib/exchange"
	"github.com/weaveio/weavecore/lib/tlv"
)

// AnnounceOn sends an unsolicited ImageAnnounce over an
// already-resolved exchange context.
func AnnounceOn(eng exchange.Engine, ec *exchange.ExchangeContext) error {
	w := tlv.NewGrowableWriter()
	if err := EncodeImageAnnounce(w, ImageAnnounce{}); err != nil {
		return trace.Wrap(err)
	}
	if err := w.Finalize(); err != nil {
		return trace.Wrap(err)
	}
	return eng.SendMessage(ec, exchange.Message{ProfileID: ProfileSWU, MessageType: MsgImageAnnounce, Payload: w.Bytes()})
}

// AnnounceListener receives unsolicited ImageAnnounce notifications and
// is expected to respond by issuing its own ImageQuery via a Client.
type AnnounceListener struct {
	OnAnnounce func(peer exchange.NodeID)
}

// RegisterWith installs the listener's unsolicited-message route on
// eng.
func (l *AnnounceListener) RegisterWith(eng exchange.Engine) {
	eng.RegisterUnsolicitedHandler(ProfileSWU, MsgImageAnnounce, l.onAnnounce)
}

func (l *AnnounceListener) onAnnounce(ec *exchange.ExchangeContext, msg exchange.Message) {
	if msg.ProfileID != ProfileSWU || msg.MessageType != MsgImageAnnounce {
		return
	}
	if l.OnAnnounce != nil {
		l.OnAnnounce(ec.PeerNodeID)
	}
}
