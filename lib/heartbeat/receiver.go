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
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/gravitational/trace"

	"github.com/weaveio/weavecore/lib/exchange"
)

// ReceiverConfig configures a Receiver.
type ReceiverConfig struct {
	Engine exchange.Engine

	// Expiry is how long a peer's liveness is considered current after
	// its last heartbeat; zero disables expiry tracking.
	Expiry time.Duration

	// OnHeartbeat is raised for every heartbeat received, carrying the
	// peer and the subscription-state byte it announced.
	OnHeartbeat func(peer exchange.NodeID, subscriptionState uint8)
	// OnExpired is raised when CheckExpired notices a peer has gone
	// silent past Expiry.
	OnExpired func(peer exchange.NodeID)

	Clock clockwork.Clock
	Log logrus.FieldLogger
}

func (c *ReceiverConfig) checkAndSetDefaults() {
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Log == nil {
		c.Log = logrus.WithField(trace.Component, "heartbeat")
	}
}

// Receiver tracks liveness announcements from any number of fabric
// peers.
type Receiver struct {
	cfg ReceiverConfig

	mu sync.Mutex
	lastSeen map[exchange.NodeID]time.Time
}

// NewReceiver returns a Receiver tracking no peers yet. Call
// RegisterWith to start accepting heartbeats on eng.
func NewReceiver(cfg ReceiverConfig) *Receiver {
	cfg.checkAndSetDefaults()
	return &Receiver{cfg: cfg, lastSeen: make(map[exchange.NodeID]time.Time)}
}

// RegisterWith installs the receiver's unsolicited-message route on
// eng.
func (r *Receiver) RegisterWith(eng exchange.Engine) {
	eng.RegisterUnsolicitedHandler(ProfileHeartbeat, MsgHeartbeat, r.onHeartbeat)
}

func (r *Receiver) onHeartbeat(ec *exchange.ExchangeContext, msg exchange.Message) {
	// A Sender reuses one exchange, so later heartbeats arrive on this
	// context rather than through the unsolicited route.
	ec.OnMessageReceived = r.onHeartbeat
	state, ok := decode(msg)
	if !ok {
		r.cfg.Log.WithField("peer", ec.PeerNodeID).Warn("malformed heartbeat")
		return
	}
	r.mu.Lock()
	r.lastSeen[ec.PeerNodeID] = r.cfg.Clock.Now()
	r.mu.Unlock()
	if r.cfg.OnHeartbeat != nil {
		r.cfg.OnHeartbeat(ec.PeerNodeID, state)
	}
}

// LastSeen returns when peer last sent a heartbeat, if ever.
func (r *Receiver) LastSeen(peer exchange.NodeID) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.lastSeen[peer]
	return t, ok
}

// CheckExpired scans all tracked peers and raises OnExpired for any
// whose last heartbeat is older than Expiry, forgetting them
// afterward so a single silence only raises the event once.
func (r *Receiver) CheckExpired() {
	if r.cfg.Expiry <= 0 {
		return
	}
	now := r.cfg.Clock.Now()
	var expired []exchange.NodeID
	r.mu.Lock()
	for peer, seen := range r.lastSeen {
		if now.Sub(seen) > r.cfg.Expiry {
			expired = append(expired, peer)
			delete(r.lastSeen, peer)
		}
	}
	r.mu.Unlock()
	if r.cfg.OnExpired == nil {
		return
	}
	for _, peer := range expired {
		r.cfg.OnExpired(peer)
	}
}
