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
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/weaveio/weavecore/lib/exchange"
)

func startEnginePair(t *testing.T) (client, server *exchange.InProcessEngine, stop func()) {
	t.Helper()
	client = exchange.NewInProcessEngine(exchange.InProcessEngineConfig{LocalNodeID: 1})
	server = exchange.NewInProcessEngine(exchange.InProcessEngineConfig{LocalNodeID: 2})
	client.Connect(server)

	ctx, cancel := context.WithCancel(context.Background())
	go client.Run(ctx)
	go server.Run(ctx)
	return client, server, cancel
}

func TestSubscriptionClientEstablishesAgainstHandler(t *testing.T) {
	client, server, stop := startEnginePair(t)
	defer stop()

	handler := NewSubscriptionHandler(HandlerConfig{Engine: server})
	handler.RegisterWith(server)

	established := make(chan uint64, 1)
	sc, err := NewSubscriptionClient(SubscriptionClientConfig{
			Engine: client,
			PeerNodeID: 2,
			ResolveBinding: func(b *exchange.Binding) { b.Resolve(exchange.BindingReady, nil) },
			PrepareRequest: func() (SubscribeRequest, error) {
				return SubscribeRequest{Paths: []Address{{ResourceID: 1, ProfileID: 2}}, MaxInterval: 60}, nil
			},
			OnEstablished: func(id uint64) { established <- id },
		})
	require.NoError(t, err)

	require.NoError(t, sc.InitiateSubscription())

	select {
		case id := <-established:
		require.Equal(t, uint64(1), id)
		case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for subscription to establish")
	}
	require.Equal(t, ClientEstablished, sc.State())

	subID, ok := handler.ActiveSubscriptionID(1)
	require.True(t, ok)
	require.Equal(t, uint64(1), subID)
}

func TestSubscriptionHandlerRejectsDuplicateFromSamePeer(t *testing.T) {
	client, server, stop := startEnginePair(t)
	defer stop()

	handler := NewSubscriptionHandler(HandlerConfig{Engine: server})
	handler.RegisterWith(server)

	newClient := func() *SubscriptionClient {
		sc, err := NewSubscriptionClient(SubscriptionClientConfig{
				Engine: client,
				PeerNodeID: 2,
				ResolveBinding: func(b *exchange.Binding) { b.Resolve(exchange.BindingReady, nil) },
				PrepareRequest: func() (SubscribeRequest, error) { return SubscribeRequest{}, nil },
			})
		require.NoError(t, err)
		return sc
	}

	first := newClient()
	established := make(chan struct{}, 1)
	first.cfg.OnEstablished = func(uint64) { established <- struct{}{} }
	require.NoError(t, first.InitiateSubscription())
	select {
		case <-established:
		case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first subscription")
	}

	second := newClient()
	require.NoError(t, second.InitiateSubscription())
	// The handler silently drops the duplicate; give the event loop a
	// moment to process it and assert no second subscription replaced
	// the first.
	time.Sleep(50 * time.Millisecond)
	_, ok := handler.ActiveSubscriptionID(1)
	require.True(t, ok)
	require.Equal(t, ClientSubscribing, second.State())
}
