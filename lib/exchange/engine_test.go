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

package exchange

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func startPair(t *testing.T) (client, server *InProcessEngine, stop func()) {
	t.Helper()
	client = NewInProcessEngine(InProcessEngineConfig{LocalNodeID: 1})
	server = NewInProcessEngine(InProcessEngineConfig{LocalNodeID: 2})
	client.Connect(server)

	ctx, cancel := context.WithCancel(context.Background())
	go client.Run(ctx)
	go server.Run(ctx)
	return client, server, cancel
}

// TestRequestResponseRoundTrip exercises the exchange-context
// correlation an unsolicited request/response pair depends on.
func TestRequestResponseRoundTrip(t *testing.T) {
	client, server, stop := startPair(t)
	defer stop()

	received := make(chan Message, 1)
	server.RegisterUnsolicitedHandler(7, 1, func(ec *ExchangeContext, msg Message) {
			require.Equal(t, NodeID(1), ec.PeerNodeID)
			err := server.SendMessage(ec, Message{ProfileID: 7, MessageType: 2, Payload: []byte("pong")})
			require.NoError(t, err)
		})

	binding := NewBinding(2, SecurityNone, TransportTCP, 5*time.Second)
	require.NoError(t, binding.Prepare())
	binding.Resolve(BindingReady, nil)

	ec, err := client.NewContext(binding, 5*time.Second)
	require.NoError(t, err)
	ec.OnMessageReceived = func(_ *ExchangeContext, msg Message) {
		received <- msg
	}

	require.NoError(t, client.SendMessage(ec, Message{ProfileID: 7, MessageType: 1, Payload: []byte("ping")}))

	select {
		case msg := <-received:
		require.Equal(t, []byte("pong"), msg.Payload)
		case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for response")
	}
}

// TestSendOnUnreachablePeerReportsSendError exercises the send-error
// callback path when no peer is registered for the binding's node id.
func TestSendOnUnreachablePeerReportsSendError(t *testing.T) {
	client := NewInProcessEngine(InProcessEngineConfig{LocalNodeID: 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	binding := NewBinding(99, SecurityNone, TransportTCP, time.Second)
	require.NoError(t, binding.Prepare())
	binding.Resolve(BindingReady, nil)

	ec, err := client.NewContext(binding, time.Second)
	require.NoError(t, err)

	sendErr := make(chan error, 1)
	ec.OnSendError = func(_ *ExchangeContext, err error) { sendErr <- err }

	err = client.SendMessage(ec, Message{ProfileID: 1, MessageType: 1})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrNoPeerRegistered)
}

// TestCloseContextStopsDelivery exercises CloseContext: once closed,
// the context can no longer send, and SendMessage on it fails with
// ErrExchangeClosed.
func TestCloseContextStopsDelivery(t *testing.T) {
	client, server, stop := startPair(t)
	defer stop()

	binding := NewBinding(2, SecurityNone, TransportTCP, time.Second)
	require.NoError(t, binding.Prepare())
	binding.Resolve(BindingReady, nil)

	ec, err := client.NewContext(binding, time.Second)
	require.NoError(t, err)
	client.CloseContext(ec)

	err = client.SendMessage(ec, Message{ProfileID: 1, MessageType: 1})
	require.ErrorIs(t, err, ErrExchangeClosed)
	_ = server
}
