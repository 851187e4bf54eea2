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
	"sync"
	"time"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/weaveio/weavecore/lib/exchange"
	"github.com/weaveio/weavecore/lib/retryutils"
)

// SenderConfig configures a Sender.
type SenderConfig struct {
	Engine exchange.Engine
	PeerNodeID exchange.NodeID

	// ResolveBinding performs the security handshake a binding needs,
	// mirroring tunnel.Config and datamgmt.SubscriptionClientConfig's
	// field of the same name.
	ResolveBinding func(b *exchange.Binding)

	// Interval is the nominal period between heartbeats; each actual
	// send is scheduled after SeventhJitter(Interval) to avoid a fleet
	// of devices announcing in lockstep.
	Interval time.Duration

	// SubscriptionState supplies the single byte of state carried in
	// each heartbeat (normally kFlag_ServiceSubscriptionEstablished and
	// friends packed by the caller).
	SubscriptionState func() uint8

	OnSendError func(err error)

	Clock clockwork.Clock
	Log logrus.FieldLogger
}

func (c *SenderConfig) checkAndSetDefaults() error {
	if c.Engine == nil {
		return trace.BadParameter("heartbeat: Engine is required")
	}
	if c.Interval <= 0 {
		c.Interval = time.Minute
	}
	if c.SubscriptionState == nil {
		c.SubscriptionState = func() uint8 { return 0 }
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Log == nil {
		c.Log = logrus.WithField(trace.Component, "heartbeat")
	}
	return nil
}

// Sender periodically announces liveness to a single peer.
type Sender struct {
	cfg SenderConfig

	mu sync.Mutex
	ec *exchange.ExchangeContext
}

// NewSender returns a Sender that has not yet started announcing.
func NewSender(cfg SenderConfig) (*Sender, error) {
	if err := cfg.checkAndSetDefaults(); err != nil {
		return nil, trace.Wrap(err)
	}
	return &Sender{cfg: cfg}, nil
}

// Run sends heartbeats on a SeventhJitter(Interval) period until ctx is
// canceled. The first heartbeat fires after a HalfJitter(Interval)
// delay, matching heartbeatv2's "don't all announce at once on boot"
// shape.
func (s *Sender) Run(ctx context.Context) error {
	b := exchange.NewBinding(s.cfg.PeerNodeID, exchange.SecurityCASE, exchange.TransportTCP, s.cfg.Interval)
	if err := b.Prepare(); err != nil {
		return trace.Wrap(err)
	}
	if s.cfg.ResolveBinding != nil {
		s.cfg.ResolveBinding(b)
	}
	ec, err := s.cfg.Engine.NewContext(b, s.cfg.Interval)
	if err != nil {
		return trace.Wrap(err)
	}
	s.mu.Lock()
	s.ec = ec
	s.mu.Unlock()
	defer s.cfg.Engine.CloseContext(ec)

	timer := s.cfg.Clock.NewTimer(retryutils.HalfJitter(s.cfg.Interval))
	defer timer.Stop()
	for {
		select {
			case <-ctx.Done():
			return nil
			case <-timer.Chan():
			if err := s.send(ec); err != nil && s.cfg.OnSendError != nil {
				s.cfg.OnSendError(err)
			}
			timer.Reset(retryutils.SeventhJitter(s.cfg.Interval))
		}
	}
}

func (s *Sender) send(ec *exchange.ExchangeContext) error {
	return s.cfg.Engine.SendMessage(ec, encode(s.cfg.SubscriptionState()))
}
