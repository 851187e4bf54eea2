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
	"sync"
	"time"

	"github.com/gravitational/trace"
)

// BindingEvent is delivered to a Binding's lifecycle callback as its
// readiness state changes.
type BindingEvent struct {
	State BindingState
	Err error
}

// Binding is a configured intent to talk to a specific peer with a
// specific security mode and transport. Created by a
// client, released when the client is done; lifecycle events are
// delivered via OnStateChange.
type Binding struct {
	PeerNodeID NodeID
	Security SecurityMode
	Transport TransportType
	ResponseTimeout time.Duration

	// OnStateChange, if set, is invoked (from the owning engine's event
	// loop) whenever State transitions.
	OnStateChange func(BindingEvent)

	mu sync.Mutex
	state BindingState
}

// NewBinding returns an unprepared Binding for peer.
func NewBinding(peer NodeID, security SecurityMode, transport TransportType, responseTimeout time.Duration) *Binding {
	return &Binding{
		PeerNodeID: peer,
		Security: security,
		Transport: transport,
		ResponseTimeout: responseTimeout,
	}
}

// State returns the binding's current readiness state.
func (b *Binding) State() BindingState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Binding) setState(s BindingState, err error) {
	b.mu.Lock()
	b.state = s
	cb := b.OnStateChange
	b.mu.Unlock()
	if cb != nil {
		cb(BindingEvent{State: s, Err: err})
	}
}

// Prepare transitions the binding from unprepared to preparing. Resolve
// moves it on to ready or failed; InProcessEngine never resolves a
// binding itself, and its NewContext fails with ErrBindingNotReady until
// Resolve(BindingReady, nil) has been called.
func (b *Binding) Prepare() error {
	b.mu.Lock()
	if b.state == BindingReleased {
		b.mu.Unlock()
		return trace.Wrap(ErrBindingReleased)
	}
	b.state = BindingPreparing
	b.mu.Unlock()
	b.setState(BindingPreparing, nil)
	return nil
}

// Resolve is the transport/security layer's completion callback: once
// the handshake underlying Prepare finishes, it calls Resolve(Ready,
// nil) or Resolve(Failed, err) to move the binding out of Preparing.
func (b *Binding) Resolve(state BindingState, err error) {
	b.setState(state, err)
}

// Release marks the binding released; it can no longer be used to send.
func (b *Binding) Release() {
	b.setState(BindingReleased, nil)
}

// Ready reports whether the binding is currently usable for sending.
func (b *Binding) Ready() bool { return b.State() == BindingReady }
