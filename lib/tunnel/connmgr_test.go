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
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/weaveio/weavecore/lib/exchange"
	"github.com/weaveio/weavecore/lib/retryutils"
)

type fakeConn struct {
	mu sync.Mutex
	keepalive KeepaliveParams
	closed bool
}

func (c *fakeConn) SetKeepalive(p KeepaliveParams) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keepalive = p
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

type fakeDialer struct {
	mu sync.Mutex
	fail bool
	conns []*fakeConn
}

func (d *fakeDialer) Dial() (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail {
		return nil, errors.New("dial failed")
	}
	c := &fakeConn{}
	d.conns = append(d.conns, c)
	return c, nil
}

// newServerPeer wires an in-process exchange engine that auto-acks
// every tunnel control message it receives, standing in for the
// service-side peer.
func newServerPeer(t *testing.T, localID exchange.NodeID) (*exchange.InProcessEngine, func()) {
	t.Helper()
	server := exchange.NewInProcessEngine(exchange.InProcessEngineConfig{LocalNodeID: localID})
	server.RegisterUnsolicitedHandler(ProfileTunneling, MsgTunnelOpen, func(ec *exchange.ExchangeContext, msg exchange.Message) {
			require.NoError(t, SendAck(server, ec, MsgTunnelOpen))
			ec.OnMessageReceived = func(ec *exchange.ExchangeContext, msg exchange.Message) {
				switch msg.MessageType {
					case MsgTunnelClose:
					_ = SendAck(server, ec, MsgTunnelClose)
					case MsgTunnelLiveness:
					_ = SendAck(server, ec, MsgTunnelLiveness)
				}
			}
		})
	ctx, cancel := context.WithCancel(context.Background())
	go server.Run(ctx)
	return server, cancel
}

func TestConnMgrConnectsAndOpensTunnel(t *testing.T) {
	client := exchange.NewInProcessEngine(exchange.InProcessEngineConfig{LocalNodeID: 1})
	server, stopServer := newServerPeer(t, 2)
	defer stopServer()
	client.Connect(server)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	dialer := &fakeDialer{}
	states := make(chan State, 8)

	mgr, err := NewConnMgr(Config{
			Classification: ClassificationPrimary,
			Dialer: dialer,
			Engine: client,
			PeerNodeID: 2,
			ResolveBinding: func(b *exchange.Binding) { b.Resolve(exchange.BindingReady, nil) },
			OnStateChange: func(s State) { states <- s },
		})
	require.NoError(t, err)

	require.NoError(t, mgr.TryConnectingNow())

	wantOrder := []State{StateConnecting, StateConnectionEstablished, StateTunnelOpen}
	for _, want := range wantOrder {
		select {
			case got := <-states:
			require.Equal(t, want, got)
			case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for state %s", want)
		}
	}
	require.Equal(t, StateTunnelOpen, mgr.State())
}

func TestConnMgrGracefulClose(t *testing.T) {
	client := exchange.NewInProcessEngine(exchange.InProcessEngineConfig{LocalNodeID: 1})
	server, stopServer := newServerPeer(t, 2)
	defer stopServer()
	client.Connect(server)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	dialer := &fakeDialer{}
	states := make(chan State, 8)
	mgr, err := NewConnMgr(Config{
			Dialer: dialer,
			Engine: client,
			PeerNodeID: 2,
			ResolveBinding: func(b *exchange.Binding) { b.Resolve(exchange.BindingReady, nil) },
			OnStateChange: func(s State) { states <- s },
		})
	require.NoError(t, err)
	require.NoError(t, mgr.TryConnectingNow())

	// drain until tunnel-open
	for {
		select {
			case s := <-states:
			if s == StateTunnelOpen {
				goto opened
			}
			case <-time.After(2 * time.Second):
			t.Fatal("timed out reaching tunnel-open")
		}
	}
	opened:
	require.NoError(t, mgr.ServiceTunnelClose())

	for {
		select {
			case s := <-states:
			if s == StateNotConnected {
				return
			}
			case <-time.After(2 * time.Second):
			t.Fatal("timed out closing tunnel")
		}
	}
}

func TestConnMgrReconnectsOnDialFailure(t *testing.T) {
	client := exchange.NewInProcessEngine(exchange.InProcessEngineConfig{LocalNodeID: 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	dialer := &fakeDialer{fail: true}
	thresholdHit := make(chan struct{}, 1)

	mgr, err := NewConnMgr(Config{
			Dialer: dialer,
			Engine: client,
			PeerNodeID: 2,
			ReconnectThreshold: 1,
			FibonacciConfig: retryutils.FibonacciConfig{BaseStep: time.Millisecond},
			ResolveBinding: func(b *exchange.Binding) {},
			OnReconnectThreshold: func() {
				select {
					case thresholdHit <- struct{}{}:
					default:
				}
			},
		})
	require.NoError(t, err)
	require.Error(t, mgr.TryConnectingNow())

	select {
		case <-thresholdHit:
		case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reconnect threshold callback")
	}
	mgr.Close()
}
