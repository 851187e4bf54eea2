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

package heartbeat

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/weaveio/weavecore/lib/exchange"
)

func TestSenderAnnouncesSubscriptionStateToReceiver(t *testing.T) {
	client := exchange.NewInProcessEngine(exchange.InProcessEngineConfig{LocalNodeID: 1})
	server := exchange.NewInProcessEngine(exchange.InProcessEngineConfig{LocalNodeID: 2})
	client.Connect(server)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)
	go server.Run(ctx)

	received := make(chan uint8, 4)
	receiver := NewReceiver(ReceiverConfig{
			Engine: server,
			OnHeartbeat: func(peer exchange.NodeID, state uint8) { received <- state },
		})
	receiver.RegisterWith(server)

	sender, err := NewSender(SenderConfig{
			Engine: client,
			PeerNodeID: 2,
			Interval: 20 * time.Millisecond,
			ResolveBinding: func(b *exchange.Binding) { b.Resolve(exchange.BindingReady, nil) },
			SubscriptionState: func() uint8 { return 1 },
		})
	require.NoError(t, err)

	senderCtx, stopSender := context.WithCancel(ctx)
	defer stopSender()
	go sender.Run(senderCtx)

	select {
		case state := <-received:
		require.Equal(t, uint8(1), state)
		case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for heartbeat")
	}

	_, ok := receiver.LastSeen(1)
	require.True(t, ok)
}

func TestReceiverCheckExpiredFiresOncePerSilence(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var expired []exchange.NodeID
	receiver := NewReceiver(ReceiverConfig{
			Expiry: time.Minute,
			Clock: clock,
			OnExpired: func(peer exchange.NodeID) { expired = append(expired, peer) },
		})

	receiver.onHeartbeat(&exchange.ExchangeContext{PeerNodeID: 5}, encode(0))
	clock.Advance(2 * time.Minute)

	receiver.CheckExpired()
	receiver.CheckExpired()

	require.Equal(t, []exchange.NodeID{5}, expired)
}
