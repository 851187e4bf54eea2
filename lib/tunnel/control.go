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

package tunnel

import (
	"github.com/gravitational/trace"

	"github.com/weaveio/weavecore/lib/exchange"
	"github.com/weaveio/weavecore/lib/tlv"
)

// ProfileTunneling is the 32-bit profile namespace for tunnel control
// messages.
const ProfileTunneling uint32 = 0x00000006

// Tunnel control message types.
const (
	MsgTunnelOpen uint8 = 1
	MsgTunnelOpenAck uint8 = 2
	MsgTunnelClose uint8 = 3
	MsgTunnelCloseAck uint8 = 4
	MsgTunnelLiveness uint8 = 5
	MsgTunnelLivenessAck uint8 = 6
)

// Context tags for the TunnelOpen payload.
const (
	ctTunnelType uint8 = 1
	ctTunnelRoutePrio uint8 = 2
)

// RoutePriority is advertised in TunnelOpen so the agent on the far
// side knows which of the primary/backup tunnels to prefer for
// upstream traffic on failover.
type RoutePriority uint8

const (
	RoutePriorityLow RoutePriority = iota
	RoutePriorityHigh
)

// TunnelOpenPayload is the body of a TunnelOpen control message.
type TunnelOpenPayload struct {
	Classification Classification
	RoutePriority RoutePriority
}

// EncodeTunnelOpen serializes a TunnelOpen payload as a TLV structure.
func EncodeTunnelOpen(w *tlv.Writer, p TunnelOpenPayload) error {
	if err := w.StartContainer(tlv.AnonymousTag(), tlv.KindStructure); err != nil {
		return err
	}
	if err := w.PutUInt(tlv.ContextTag(ctTunnelType), uint64(p.Classification)); err != nil {
		return err
	}
	if err := w.PutUInt(tlv.ContextTag(ctTunnelRoutePrio), uint64(p.RoutePriority)); err != nil {
		return err
	}
	return w.EndContainer()
}

// DecodeTunnelOpen parses a TunnelOpen payload the reader currently
// sits on.
func DecodeTunnelOpen(r *tlv.Reader) (TunnelOpenPayload, error) {
	var p TunnelOpenPayload
	if _, ok := r.ContainerKind(); !ok {
		return p, trace.Wrap(tlv.ErrWrongType, "tunnel open payload is not a structure")
	}
	if err := r.EnterContainer(); err != nil {
		return p, err
	}
	for {
		ok, err := r.Next()
		if err != nil {
			return p, err
		}
		if !ok {
			break
		}
		switch r.CurrentTag() {
			case tlv.ContextTag(ctTunnelType):
			v, err := r.GetUInt()
			if err != nil {
				return p, err
			}
			p.Classification = Classification(v)
			case tlv.ContextTag(ctTunnelRoutePrio):
			v, err := r.GetUInt()
			if err != nil {
				return p, err
			}
			p.RoutePriority = RoutePriority(v)
		}
	}
	return p, r.ExitContainer()
}

// sendEmptyStructure is used for messages with no payload (Close,
// Liveness, and the Ack variants).
func sendEmptyStructure(ec *exchange.ExchangeContext, eng exchange.Engine, profileID uint32, msgType uint8) error {
	w := tlv.NewGrowableWriter()
	if err := w.StartContainer(tlv.AnonymousTag(), tlv.KindStructure); err != nil {
		return err
	}
	if err := w.EndContainer(); err != nil {
		return err
	}
	if err := w.Finalize(); err != nil {
		return err
	}
	return eng.SendMessage(ec, exchange.Message{ProfileID: profileID, MessageType: msgType, Payload: w.Bytes(), RequestAck: true})
}

// SendTunnelOpen sends a TunnelOpen control message on ec, marking the
// connection-established → tunnel-open transition.
func SendTunnelOpen(eng exchange.Engine, ec *exchange.ExchangeContext, p TunnelOpenPayload) error {
	w := tlv.NewGrowableWriter()
	if err := EncodeTunnelOpen(w, p); err != nil {
		return trace.Wrap(err)
	}
	if err := w.Finalize(); err != nil {
		return trace.Wrap(err)
	}
	return eng.SendMessage(ec, exchange.Message{ProfileID: ProfileTunneling, MessageType: MsgTunnelOpen, Payload: w.Bytes(), RequestAck: true})
}

// SendTunnelClose sends a graceful TunnelClose control message,
// marking the tunnel-open → tunnel-closing transition.
func SendTunnelClose(eng exchange.Engine, ec *exchange.ExchangeContext) error {
	return sendEmptyStructure(ec, eng, ProfileTunneling, MsgTunnelClose)
}

// SendTunnelLiveness sends a liveness probe, resetting the peer's
// liveness timer.
func SendTunnelLiveness(eng exchange.Engine, ec *exchange.ExchangeContext) error {
	return sendEmptyStructure(ec, eng, ProfileTunneling, MsgTunnelLiveness)
}

// SendAck replies to any tunnel control message with its Ack variant.
func SendAck(eng exchange.Engine, ec *exchange.ExchangeContext, requestMsgType uint8) error {
	ackType, ok := ackFor(requestMsgType)
	if !ok {
		return trace.BadParameter("no ack message type for tunnel control message %d", requestMsgType)
	}
	return sendEmptyStructure(ec, eng, ProfileTunneling, ackType)
}

func ackFor(msgType uint8) (uint8, bool) {
	switch msgType {
		case MsgTunnelOpen:
		return MsgTunnelOpenAck, true
		case MsgTunnelClose:
		return MsgTunnelCloseAck, true
		case MsgTunnelLiveness:
		return MsgTunnelLivenessAck, true
		default:
		return 0, false
	}
}
