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
	"sync"
	"time"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/weaveio/weavecore/lib/exchange"
	"github.com/weaveio/weavecore/lib/retryutils"
)

// Dialer opens the underlying transport connection to the service
// peer. A real implementation dials TCP or an SSH-multiplexed
// transport via golang.org/x/crypto/ssh; tests supply a fake.
type Dialer interface {
	Dial() (Conn, error)
}

// Conn is the minimal surface TunnelConnMgr needs from a connected
// transport: a way to program keepalive/user-timeout, and a way to
// close it on error or graceful shutdown.
type Conn interface {
	SetKeepalive(KeepaliveParams) error
	Close() error
}

// ReconnectPolicy computes the next reconnect delay from the current
// consecutive-failure count and the reconnect parameters, using
// fibonacci backoff with a floor. The default is backed by
// retryutils.Fibonacci; callers MAY override it entirely.
type ReconnectPolicy func(param ReconnectParam, fib *retryutils.Fibonacci) time.Duration

// DefaultReconnectPolicy mirrors WeaveTunnelConnectionMgr's
// DefaultReconnectPolicyCallback: fib(min(k,10)) * base, floored at
// max(30%, param.MinDelayToConnect).
func DefaultReconnectPolicy(param ReconnectParam, fib *retryutils.Fibonacci) time.Duration {
	d := fib.Duration()
	if param.MinDelayToConnect > d {
		return param.MinDelayToConnect
	}
	return d
}

// Config configures a ConnMgr.
type Config struct {
	Classification Classification
	Dialer Dialer
	Engine exchange.Engine
	PeerNodeID exchange.NodeID

	// ResolveBinding performs whatever security handshake a binding
	// needs and calls b.Resolve once it completes. Tests that don't
	// care about binding security can pass a func that resolves
	// immediately: func(b *exchange.Binding) { b.Resolve(exchange.BindingReady, nil) }.
	ResolveBinding func(b *exchange.Binding)

	Keepalive KeepaliveParams
	LivenessInterval time.Duration // 0 disables liveness probing
	ReconnectThreshold int // consecutive failures before OnReconnectThreshold fires; default 3
	ReconnectPolicy ReconnectPolicy
	FibonacciConfig retryutils.FibonacciConfig

	Clock clockwork.Clock
	Log logrus.FieldLogger

	// OnStateChange is invoked (on the manager's own goroutine) on
	// every state transition.
	OnStateChange func(State)
	// OnReconnectThreshold is invoked once ReconnectThreshold
	// consecutive failures have occurred; the tunnel keeps retrying
	// regardless
	OnReconnectThreshold func()
}

func (c *Config) checkAndSetDefaults() error {
	if c.Dialer == nil {
		return trace.BadParameter("tunnel: Dialer is required")
	}
	if c.Engine == nil {
		return trace.BadParameter("tunnel: Engine is required")
	}
	if c.Keepalive == (KeepaliveParams{}) {
		if c.Classification == ClassificationBackup {
			c.Keepalive = DefaultBackupKeepalive()
		} else {
			c.Keepalive = DefaultPrimaryKeepalive()
		}
	}
	if c.ReconnectThreshold <= 0 {
		c.ReconnectThreshold = 3
	}
	if c.ReconnectPolicy == nil {
		c.ReconnectPolicy = DefaultReconnectPolicy
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Log == nil {
		c.Log = logrus.WithField(trace.Component, "tunnel")
	}
	if c.FibonacciConfig.BaseStep <= 0 {
		c.FibonacciConfig.BaseStep = time.Second
	}
	c.FibonacciConfig.Clock = c.Clock
	return nil
}

// ConnMgr is the TunnelConnMgr: it maintains a logical tunnel to a
// service peer, performing connection, recovery, liveness, and
// failover. One instance runs the primary tunnel, a second
// independent instance runs the backup
type ConnMgr struct {
	cfg Config
	fib *retryutils.Fibonacci

	mu sync.Mutex
	state State
	conn Conn
	failedAttemptsInRow int
	livenessTimer clockwork.Timer
	ec *exchange.ExchangeContext

	closed chan struct{}
}

// NewConnMgr returns a ConnMgr ready to drive a single tunnel
// instance.
func NewConnMgr(cfg Config) (*ConnMgr, error) {
	if err := cfg.checkAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	fib, err := retryutils.NewFibonacci(cfg.FibonacciConfig)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return &ConnMgr{cfg: cfg, fib: fib, state: StateNotConnected, closed: make(chan struct{})}, nil
}

// State returns the manager's current connection state.
func (m *ConnMgr) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *ConnMgr) setState(s State) {
	m.mu.Lock()
	m.state = s
	cb := m.cfg.OnStateChange
	m.mu.Unlock()
	m.cfg.Log.WithField("state", s.String()).Debug("tunnel state transition")
	if cb != nil {
		cb(s)
	}
}

// TryConnectingNow attempts a connection immediately
// not-connected → connecting transition.
func (m *ConnMgr) TryConnectingNow() error {
	m.mu.Lock()
	if m.state != StateNotConnected {
		m.mu.Unlock()
		return trace.BadParameter("tunnel: cannot connect from state %s", m.state)
	}
	m.mu.Unlock()

	m.setState(StateConnecting)
	conn, err := m.cfg.Dialer.Dial()
	if err != nil {
		m.handleConnectFailure(err)
		return trace.Wrap(err)
	}
	if err := conn.SetKeepalive(m.cfg.Keepalive); err != nil {
		_ = conn.Close()
		m.handleConnectFailure(err)
		return trace.Wrap(err)
	}

	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()
	m.setState(StateConnectionEstablished)

	ec, err := m.newExchangeContext()
	if err != nil {
		m.handleConnectFailure(err)
		return trace.Wrap(err)
	}
	m.mu.Lock()
	m.ec = ec
	m.mu.Unlock()
	ec.OnMessageReceived = m.onControlMessage

	if err := SendTunnelOpen(m.cfg.Engine, ec, TunnelOpenPayload{Classification: m.cfg.Classification}); err != nil {
		m.handleConnectFailure(err)
		return trace.Wrap(err)
	}

	m.fib.Reset()
	m.mu.Lock()
	m.failedAttemptsInRow = 0
	m.mu.Unlock()
	return nil
}

// newExchangeContext prepares a fresh binding to the peer, calls
// cfg.ResolveBinding synchronously and opens a context on it. It does
// not wait: if the binding is not ready when ResolveBinding returns,
// NewContext fails with ErrBindingNotReady.
func (m *ConnMgr) newExchangeContext() (*exchange.ExchangeContext, error) {
	b := exchange.NewBinding(m.cfg.PeerNodeID, exchange.SecurityCASE, exchange.TransportTCP, 30*time.Second)
	if err := b.Prepare(); err != nil {
		return nil, err
	}
	if m.cfg.ResolveBinding != nil {
		m.cfg.ResolveBinding(b)
	}
	return m.cfg.Engine.NewContext(b, 30*time.Second)
}

func (m *ConnMgr) onControlMessage(ec *exchange.ExchangeContext, msg exchange.Message) {
	if msg.ProfileID != ProfileTunneling {
		return
	}
	switch msg.MessageType {
		case MsgTunnelOpenAck:
		m.setState(StateTunnelOpen)
		if m.cfg.LivenessInterval > 0 {
			m.startLivenessTimer()
		}
		case MsgTunnelCloseAck:
		m.teardown(nil)
		case MsgTunnelLivenessAck:
		m.resetLivenessTimer()
		case MsgTunnelOpen:
		_ = SendAck(m.cfg.Engine, ec, MsgTunnelOpen)
		case MsgTunnelClose:
		_ = SendAck(m.cfg.Engine, ec, MsgTunnelClose)
		m.teardown(nil)
		case MsgTunnelLiveness:
		_ = SendAck(m.cfg.Engine, ec, MsgTunnelLiveness)
	}
}

func (m *ConnMgr) startLivenessTimer() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.livenessTimer = m.cfg.Clock.NewTimer(m.cfg.LivenessInterval)
	go m.waitLiveness(m.livenessTimer)
}

func (m *ConnMgr) resetLivenessTimer() {
	m.mu.Lock()
	t := m.livenessTimer
	m.mu.Unlock()
	if t != nil {
		t.Reset(m.cfg.LivenessInterval)
	}
}

func (m *ConnMgr) waitLiveness(t clockwork.Timer) {
	select {
		case <-t.Chan():
		case <-m.closed:
		return
	}
	m.mu.Lock()
	ec := m.ec
	state := m.state
	m.mu.Unlock()
	if state != StateTunnelOpen || ec == nil {
		return
	}
	if err := SendTunnelLiveness(m.cfg.Engine, ec); err != nil {
		m.reconnectWithError(err)
		return
	}
	m.startLivenessTimer()
}

// ServiceTunnelClose gracefully closes the tunnel
// tunnel-open → tunnel-closing transition.
func (m *ConnMgr) ServiceTunnelClose() error {
	m.mu.Lock()
	ec := m.ec
	state := m.state
	m.mu.Unlock()
	if state != StateTunnelOpen {
		m.teardown(nil)
		return nil
	}
	m.setState(StateTunnelClosing)
	if err := SendTunnelClose(m.cfg.Engine, ec); err != nil {
		m.teardown(nil)
		return trace.Wrap(err)
	}
	return nil
}

func (m *ConnMgr) teardown(err error) {
	m.mu.Lock()
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	if m.ec != nil {
		m.cfg.Engine.CloseContext(m.ec)
		m.ec = nil
	}
	if m.livenessTimer != nil {
		m.livenessTimer.Stop()
		m.livenessTimer = nil
	}
	m.mu.Unlock()
	m.setState(StateNotConnected)
}

func (m *ConnMgr) handleConnectFailure(err error) {
	m.teardown(err)
	m.reconnectWithError(err)
}

// reconnectWithError implements AttemptReconnect/DecideOnReconnect: it
// increments the consecutive-failure counter, notifies the
// application once ReconnectThreshold is reached (continuing to retry
// regardless), and schedules the next attempt after the policy's
// delay.
func (m *ConnMgr) reconnectWithError(err error) {
	m.fib.Inc()
	m.mu.Lock()
	m.failedAttemptsInRow++
	attempts := m.failedAttemptsInRow
	m.mu.Unlock()

	if attempts == m.cfg.ReconnectThreshold && m.cfg.OnReconnectThreshold != nil {
		m.cfg.OnReconnectThreshold()
	}

	delay := m.cfg.ReconnectPolicy(ReconnectParam{LastConnectError: err}, m.fib)
	m.cfg.Log.WithFields(logrus.Fields{"attempts": attempts, "delay": delay, "error": err}).Warn("tunnel reconnect scheduled")
	timer := m.cfg.Clock.NewTimer(delay)
	go func() {
		select {
			case <-timer.Chan():
			_ = m.TryConnectingNow()
			case <-m.closed:
		}
	}()
}

// Close stops the manager; any scheduled reconnect is abandoned.
func (m *ConnMgr) Close() {
	select {
		case <-m.closed:
		default:
		close(m.closed)
	}
	m.teardown(nil)
}
