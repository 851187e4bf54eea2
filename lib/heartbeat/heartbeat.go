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

// Package heartbeat implements the fabric liveness-announcement
// message: a lightweight, single-byte "I'm alive, here is my
// subscription state" ping sent directly between fabric peers over the
// exchange engine. It is distinct from the tunnel's own liveness probe
// (lib/tunnel), which only runs between a device and its active tunnel
// server.
package heartbeat

import "github.com/weaveio/weavecore/lib/exchange"

// ProfileHeartbeat is the heartbeat profile namespace.
const ProfileHeartbeat uint32 = 0x0000000C

// MsgHeartbeat is the sole message type in the heartbeat profile: a
// single payload byte carrying the sender's subscription state.
const MsgHeartbeat uint8 = 1

func encode(subscriptionState uint8) exchange.Message {
	return exchange.Message{ProfileID: ProfileHeartbeat, MessageType: MsgHeartbeat, Payload: []byte{subscriptionState}}
}

func decode(msg exchange.Message) (uint8, bool) {
	if msg.ProfileID != ProfileHeartbeat || msg.MessageType != MsgHeartbeat || len(msg.Payload) != 1 {
		return 0, false
	}
	return msg.Payload[0], true
}
