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
	"sync"
	"time"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// UnsolicitedHandler responds to an inbound message that does not
// correlate with any ExchangeContext the receiving engine already
// owns — e.g. an incoming Subscribe, CertProv request, or BDX
// SendInit. It may reply using the ExchangeContext handed to it.
type UnsolicitedHandler func(ec *ExchangeContext, msg Message)

// Engine is the message-binding and exchange-context abstraction
// every other protocol layer is built on: binding readiness,
// request/response correlation via ExchangeContext, reliable-messaging
// ACK handling, and send-error callbacks. It is an interface because
// a real deployment needs a network-backed implementation; InProcessEngine
// below is the minimal implementation the other components are tested
// against.
type Engine interface {
	LocalNodeID() NodeID

	// NewContext allocates an ExchangeContext for an outbound request
	// to binding's peer.
	NewContext(b *Binding, responseTimeout time.Duration) (*ExchangeContext, error)

	// SendMessage sends msg on ctx. If msg.RequestAck is set the
	// message is sent reliably (WRM); OnSendError fires if the send
	// ultimately fails.
	SendMessage(ctx *ExchangeContext, msg Message) error

	// CloseContext releases ctx; no further messages will be
	// delivered to it.
	CloseContext(ctx *ExchangeContext)

	// RegisterUnsolicitedHandler installs the handler invoked for
	// inbound messages of (profileID, msgType) that don't correlate
	// with an existing ExchangeContext.
	RegisterUnsolicitedHandler(profileID uint32, msgType uint8, handler UnsolicitedHandler)

	// PostEvent enqueues fn to run on the engine's single event-loop
	// goroutine. Safe to call from any goroutine (the foreign-thread
	// entry point calls postEventFromISR); if the queue is
	// full the event is dropped and a counter is incremented rather
	// than blocking the caller.
	PostEvent(fn func())

	// Run drives the event loop until ctx is canceled.
	Run(ctx context.Context) error
}

type contextKey struct {
	peer NodeID
	exchangeID ExchangeID
}

type unsolicitedKey struct {
	profileID uint32
	msgType uint8
}

// InProcessEngine is a same-process Engine implementation used to test
// every other component against a real (if local) message-binding
// layer, without a UDP/WRM or TCP transport. Its single-threaded
// event-loop shape mirrors RemoteClusterTunnelManager's
// mutex-protected state plus single background run goroutine.
// It does not enforce response timeouts: the responseTimeout passed to
// NewContext is not used, and OnResponseTimeout is never invoked.
type InProcessEngine struct {
	localNodeID NodeID
	log logrus.FieldLogger
	clock clockwork.Clock

	mu sync.Mutex
	peers map[NodeID]*InProcessEngine
	contexts map[contextKey]*ExchangeContext
	unsolicited map[unsolicitedKey]UnsolicitedHandler
	nextExchangeID uint16
	droppedEvents uint64

	events chan func()
}

// InProcessEngineConfig configures an InProcessEngine.
type InProcessEngineConfig struct {
	LocalNodeID NodeID
	Log logrus.FieldLogger
	Clock clockwork.Clock
	QueueDepth int
}

func (c *InProcessEngineConfig) checkAndSetDefaults() {
	if c.Log == nil {
		c.Log = logrus.WithField(trace.Component, "exchange")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = 256
	}
}

// NewInProcessEngine returns a ready-to-run InProcessEngine.
func NewInProcessEngine(cfg InProcessEngineConfig) *InProcessEngine {
	cfg.checkAndSetDefaults()
	return &InProcessEngine{
		localNodeID: cfg.LocalNodeID,
		log: cfg.Log,
		clock: cfg.Clock,
		peers: make(map[NodeID]*InProcessEngine),
		contexts: make(map[contextKey]*ExchangeContext),
		unsolicited: make(map[unsolicitedKey]UnsolicitedHandler),
		events: make(chan func(), cfg.QueueDepth),
	}
}

// LocalNodeID implements Engine.
func (e *InProcessEngine) LocalNodeID() NodeID { return e.localNodeID }

// Connect registers peer as reachable from e and vice versa, so
// SendMessage on either engine's exchanges routes to the other.
func (e *InProcessEngine) Connect(peer *InProcessEngine) {
	e.mu.Lock()
	e.peers[peer.localNodeID] = peer
	e.mu.Unlock()
	peer.mu.Lock()
	peer.peers[e.localNodeID] = e
	peer.mu.Unlock()
}

// PostEvent implements Engine.
func (e *InProcessEngine) PostEvent(fn func()) {
	select {
		case e.events <- fn:
		default:
		e.mu.Lock()
		e.droppedEvents++
		e.mu.Unlock()
		e.log.WithField("dropped_total", e.droppedEvents).Warn("exchange event queue full, dropping event")
	}
}

// DroppedEvents reports how many PostEvent calls were dropped due to a
// full queue, for metrics/test assertions.
func (e *InProcessEngine) DroppedEvents() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.droppedEvents
}

// Run implements Engine.
func (e *InProcessEngine) Run(ctx context.Context) error {
	for {
		select {
			case <-ctx.Done():
			return nil
			case fn := <-e.events:
			fn()
		}
	}
}

// NewContext implements Engine.
func (e *InProcessEngine) NewContext(b *Binding, responseTimeout time.Duration) (*ExchangeContext, error) {
	if !b.Ready() {
		return nil, trace.Wrap(ErrBindingNotReady)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextExchangeID++
	ec := &ExchangeContext{
		LocalNodeID: e.localNodeID,
		PeerNodeID: b.PeerNodeID,
		ExchangeID: ExchangeID(e.nextExchangeID),
		CorrelationID: newCorrelationID(),
		binding: b,
	}
	e.contexts[contextKey{peer: ec.PeerNodeID, exchangeID: ec.ExchangeID}] = ec
	return ec, nil
}

// newInboundContext registers an ExchangeContext for a request that
// arrived from peer under exchangeID, so a handler can reply on it.
func (e *InProcessEngine) newInboundContext(peer NodeID, exchangeID ExchangeID, sessionKeyID SessionKeyID) *ExchangeContext {
	ec := &ExchangeContext{
		LocalNodeID: e.localNodeID,
		PeerNodeID: peer,
		ExchangeID: exchangeID,
		SessionKeyID: sessionKeyID,
		CorrelationID: newCorrelationID(),
	}
	e.mu.Lock()
	e.contexts[contextKey{peer: peer, exchangeID: exchangeID}] = ec
	e.mu.Unlock()
	return ec
}

// SendMessage implements Engine.
func (e *InProcessEngine) SendMessage(ctx *ExchangeContext, msg Message) error {
	if ctx.closed {
		return trace.Wrap(ErrExchangeClosed)
	}
	e.mu.Lock()
	peer, ok := e.peers[ctx.PeerNodeID]
	e.mu.Unlock()
	if !ok {
		err := trace.Wrap(ErrNoPeerRegistered)
		if ctx.OnSendError != nil {
			ctx.OnSendError(ctx, err)
		}
		return err
	}
	fromNode, exchangeID, sessionKeyID := e.localNodeID, ctx.ExchangeID, ctx.SessionKeyID
	peer.PostEvent(func() {
			peer.deliver(fromNode, exchangeID, sessionKeyID, msg)
		})
	return nil
}

// deliver routes an inbound message either to the matching existing
// ExchangeContext or, if none exists, to a registered unsolicited
// handler. Must run on e's event-loop goroutine.
func (e *InProcessEngine) deliver(from NodeID, exchangeID ExchangeID, sessionKeyID SessionKeyID, msg Message) {
	key := contextKey{peer: from, exchangeID: exchangeID}
	e.mu.Lock()
	ec, ok := e.contexts[key]
	e.mu.Unlock()
	if ok {
		if ec.OnMessageReceived != nil {
			ec.OnMessageReceived(ec, msg)
		}
		return
	}
	e.mu.Lock()
	handler, ok := e.unsolicited[unsolicitedKey{profileID: msg.ProfileID, msgType: msg.MessageType}]
	e.mu.Unlock()
	if !ok {
		e.log.WithFields(logrus.Fields{
				"peer": from,
				"profile": msg.ProfileID,
				"type": msg.MessageType,
			}).Warn("no unsolicited handler for inbound message")
		return
	}
	ec = e.newInboundContext(from, exchangeID, sessionKeyID)
	handler(ec, msg)
}

// CloseContext implements Engine.
func (e *InProcessEngine) CloseContext(ctx *ExchangeContext) {
	ctx.closed = true
	e.mu.Lock()
	delete(e.contexts, contextKey{peer: ctx.PeerNodeID, exchangeID: ctx.ExchangeID})
	e.mu.Unlock()
}

// RegisterUnsolicitedHandler implements Engine.
func (e *InProcessEngine) RegisterUnsolicitedHandler(profileID uint32, msgType uint8, handler UnsolicitedHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.unsolicited[unsolicitedKey{profileID: profileID, msgType: msgType}] = handler
}

var _ Engine = (*InProcessEngine)(nil)
