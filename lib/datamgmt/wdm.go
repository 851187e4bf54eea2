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
	"github.com/gravitational/trace"

	"github.com/weaveio/weavecore/lib/exchange"
	"github.com/weaveio/weavecore/lib/tlv"
)

// ProfileWDM is the data-management profile namespace.
const ProfileWDM uint32 = 0x0000000B

// WDM message types.
const (
	MsgSubscribeRequest uint8 = 1
	MsgSubscribeResponse uint8 = 2
	MsgSubscribeCancelRequest uint8 = 3
	MsgSubscribeCancelAck uint8 = 4
)

const (
	ctSubPathList uint8 = 1
	ctSubMinInterval uint8 = 2
	ctSubMaxInterval uint8 = 3
	ctSubID uint8 = 1
)

// SubscribeRequest is the body of a SubscribeRequest message: the set
// of trait addresses the client wants notifications for, plus the
// interval bounds it is willing to accept.
type SubscribeRequest struct {
	Paths []Address
	MinInterval uint32
	MaxInterval uint32
}

// EncodeSubscribeRequest serializes req as a TLV structure.
func EncodeSubscribeRequest(w *tlv.Writer, req SubscribeRequest) error {
	if err := w.StartContainer(tlv.AnonymousTag(), tlv.KindStructure); err != nil {
		return err
	}
	if err := w.StartContainer(tlv.ContextTag(ctSubPathList), tlv.KindArray); err != nil {
		return err
	}
	for _, p := range req.Paths {
		if err := EncodeAddress(w, p); err != nil {
			return err
		}
	}
	if err := w.EndContainer(); err != nil {
		return err
	}
	if err := w.PutUInt(tlv.ContextTag(ctSubMinInterval), uint64(req.MinInterval)); err != nil {
		return err
	}
	if err := w.PutUInt(tlv.ContextTag(ctSubMaxInterval), uint64(req.MaxInterval)); err != nil {
		return err
	}
	return w.EndContainer()
}

// DecodeSubscribeRequest parses a SubscribeRequest payload.
func DecodeSubscribeRequest(r *tlv.Reader) (SubscribeRequest, error) {
	var req SubscribeRequest
	if _, ok := r.ContainerKind(); !ok {
		return req, trace.Wrap(tlv.ErrWrongType, "subscribe request is not a structure")
	}
	if err := r.EnterContainer(); err != nil {
		return req, err
	}
	for {
		ok, err := r.Next()
		if err != nil {
			return req, err
		}
		if !ok {
			break
		}
		switch r.CurrentTag() {
			case tlv.ContextTag(ctSubPathList):
			if err := r.EnterContainer(); err != nil {
				return req, err
			}
			for {
				more, err := r.Next()
				if err != nil {
					return req, err
				}
				if !more {
					break
				}
				addr, err := DecodeAddress(r)
				if err != nil {
					return req, err
				}
				req.Paths = append(req.Paths, addr)
			}
			if err := r.ExitContainer(); err != nil {
				return req, err
			}
			case tlv.ContextTag(ctSubMinInterval):
			v, err := r.GetUInt()
			if err != nil {
				return req, err
			}
			req.MinInterval = uint32(v)
			case tlv.ContextTag(ctSubMaxInterval):
			v, err := r.GetUInt()
			if err != nil {
				return req, err
			}
			req.MaxInterval = uint32(v)
		}
	}
	return req, r.ExitContainer()
}

// SubscribeResponse is the body of a SubscribeResponse message.
type SubscribeResponse struct {
	SubscriptionID uint64
}

// EncodeSubscribeResponse serializes resp as a TLV structure.
func EncodeSubscribeResponse(w *tlv.Writer, resp SubscribeResponse) error {
	if err := w.StartContainer(tlv.AnonymousTag(), tlv.KindStructure); err != nil {
		return err
	}
	if err := w.PutUInt(tlv.ContextTag(ctSubID), resp.SubscriptionID); err != nil {
		return err
	}
	return w.EndContainer()
}

// DecodeSubscribeResponse parses a SubscribeResponse payload.
func DecodeSubscribeResponse(r *tlv.Reader) (SubscribeResponse, error) {
	var resp SubscribeResponse
	if _, ok := r.ContainerKind(); !ok {
		return resp, trace.Wrap(tlv.ErrWrongType, "subscribe response is not a structure")
	}
	if err := r.EnterContainer(); err != nil {
		return resp, err
	}
	for {
		ok, err := r.Next()
		if err != nil {
			return resp, err
		}
		if !ok {
			break
		}
		if r.CurrentTag() == tlv.ContextTag(ctSubID) {
			v, err := r.GetUInt()
			if err != nil {
				return resp, err
			}
			resp.SubscriptionID = v
		}
	}
	return resp, r.ExitContainer()
}

func sendEmptyStructure(eng exchange.Engine, ec *exchange.ExchangeContext, msgType uint8) error {
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
	return eng.SendMessage(ec, exchange.Message{ProfileID: ProfileWDM, MessageType: msgType, Payload: w.Bytes(), RequestAck: true})
}
