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
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/weaveio/weavecore/lib/exchange"
	"github.com/weaveio/weavecore/lib/tlv"
)

func sampleQuery() ImageQuery {
	return ImageQuery{
		Product: ProductSpec{VendorID: 0x235A, ProductID: 1, ProductRevision: 1},
		Version: "1.0d1",
		IntegrityTypes: []uint8{IntegrityTypeSHA256},
		UpdateSchemes: []uint8{UpdateSchemeBDX},
	}
}

func TestImageQueryRoundTrip(t *testing.T) {
	q := sampleQuery()
	q.Package = "feature-pack"
	q.Locale = "en-US"
	q.TargetNodeID = 42
	q.MetaData = []byte{1, 2, 3}

	w := tlv.NewGrowableWriter()
	require.NoError(t, EncodeImageQuery(w, q))
	require.NoError(t, w.Finalize())

	r := tlv.NewReader(w.Bytes())
	_, err := r.Next()
	require.NoError(t, err)
	got, err := DecodeImageQuery(r)
	require.NoError(t, err)
	require.Equal(t, q, got)
}

func TestImageQueryResponseRoundTrip(t *testing.T) {
	resp := ImageQueryResponse{
		Version: "2.0",
		IntegrityType: IntegrityTypeSHA256,
		UpdateScheme: UpdateSchemeBDX,
		URI: "weave-update.img",
		IntegritySpec: []byte{0xAB, 0xCD},
	}
	w := tlv.NewGrowableWriter()
	require.NoError(t, EncodeImageQueryResponse(w, resp))
	require.NoError(t, w.Finalize())

	r := tlv.NewReader(w.Bytes())
	_, err := r.Next()
	require.NoError(t, err)
	got, err := DecodeImageQueryResponse(r)
	require.NoError(t, err)
	require.Equal(t, resp, got)
}

func TestStatusReportNoUpdateAvailable(t *testing.T) {
	sr := StatusReport{ProfileID: ProfileSWU, StatusCode: StatusNoUpdateAvailable}
	require.True(t, sr.IsNoUpdateAvailable())

	buf := encodeStatusReport(sr)
	got, ok := decodeStatusReport(buf)
	require.True(t, ok)
	require.Equal(t, sr, got)
	require.True(t, got.IsNoUpdateAvailable())
}

func connectedEngines() (*exchange.InProcessEngine, *exchange.InProcessEngine) {
	client := exchange.NewInProcessEngine(exchange.InProcessEngineConfig{LocalNodeID: 1})
	server := exchange.NewInProcessEngine(exchange.InProcessEngineConfig{LocalNodeID: 2})
	client.Connect(server)
	return client, server
}

func TestClientReceivesUpdateAvailableResponse(t *testing.T) {
	client, server := connectedEngines()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)
	go server.Run(ctx)

	want := ImageQueryResponse{Version: "2.0", IntegrityType: IntegrityTypeSHA256, UpdateScheme: UpdateSchemeBDX, URI: "update.img"}
	responder, err := NewResponder(ResponderConfig{
			Engine: server,
			Resolve: func(peer exchange.NodeID, q ImageQuery) (*ImageQueryResponse, error) {
				return &want, nil
			},
		})
	require.NoError(t, err)
	responder.RegisterWith(server)

	results := make(chan ImageQueryResponse, 1)
	c, err := NewClient(ClientConfig{
			Engine: client,
			PeerNodeID: 2,
			ResolveBinding: func(b *exchange.Binding) { b.Resolve(exchange.BindingReady, nil) },
			OnUpdateAvailable: func(resp ImageQueryResponse) {
				results <- resp
			},
		})
	require.NoError(t, err)
	require.NoError(t, c.Query(sampleQuery()))

	select {
		case got := <-results:
		require.Equal(t, want, got)
		case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for image query response")
	}
}

func TestClientReceivesNoUpdateAvailableAsTerminalSuccess(t *testing.T) {
	client, server := connectedEngines()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)
	go server.Run(ctx)

	responder, err := NewResponder(ResponderConfig{
			Engine: server,
			Resolve: func(peer exchange.NodeID, q ImageQuery) (*ImageQueryResponse, error) {
				return nil, nil
			},
		})
	require.NoError(t, err)
	responder.RegisterWith(server)

	noUpdate := make(chan struct{}, 1)
	failed := make(chan error, 1)
	c, err := NewClient(ClientConfig{
			Engine: client,
			PeerNodeID: 2,
			ResolveBinding: func(b *exchange.Binding) { b.Resolve(exchange.BindingReady, nil) },
			OnNoUpdateAvailable: func() { noUpdate <- struct{}{} },
			OnQueryError: func(err error) { failed <- err },
		})
	require.NoError(t, err)
	require.NoError(t, c.Query(sampleQuery()))

	select {
		case <-noUpdate:
		case err := <-failed:
		t.Fatalf("expected terminal success, got error: %v", err)
		case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for no-update status report")
	}
}

func TestAnnounceListenerFiresOnUnsolicitedAnnounce(t *testing.T) {
	client, server := connectedEngines()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)
	go server.Run(ctx)

	notified := make(chan exchange.NodeID, 1)
	listener := &AnnounceListener{OnAnnounce: func(peer exchange.NodeID) { notified <- peer }}
	listener.RegisterWith(server)

	b := exchange.NewBinding(2, exchange.SecurityCASE, exchange.TransportTCP, time.Second)
	require.NoError(t, b.Prepare())
	b.Resolve(exchange.BindingReady, nil)
	ec, err := client.NewContext(b, time.Second)
	require.NoError(t, err)
	require.NoError(t, AnnounceOn(client, ec))

	select {
		case peer := <-notified:
		require.Equal(t, exchange.NodeID(1), peer)
		case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for announce")
	}
}
