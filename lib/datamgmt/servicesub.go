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

import "sync"

// ServiceSubscriptionMgr couples an outbound subscription to the
// service with the inbound "counter-subscription" the service opens
// back. Both halves must be up for the device to
// consider itself service-subscribed; losing either clears the flag
// and notifies the application.
type ServiceSubscriptionMgr struct {
	mu sync.Mutex
	outboundUp bool
	inboundUp bool
	// established tracks whether both outboundUp and inboundUp were
	// true the last time either changed.
	established bool

	// OnConnectivityChange fires whenever established transitions,
	// carrying the new value.
	OnConnectivityChange func(established bool)
}

// NewServiceSubscriptionMgr returns a manager with both halves down.
func NewServiceSubscriptionMgr() *ServiceSubscriptionMgr {
	return &ServiceSubscriptionMgr{}
}

// SetOutboundEstablished records whether the device's outbound
// subscription to the service is currently up.
func (m *ServiceSubscriptionMgr) SetOutboundEstablished(up bool) {
	m.mu.Lock()
	m.outboundUp = up
	m.mu.Unlock()
	m.reevaluate()
}

// SetInboundEstablished records whether the service's counter-
// subscription into the device is currently up.
func (m *ServiceSubscriptionMgr) SetInboundEstablished(up bool) {
	m.mu.Lock()
	m.inboundUp = up
	m.mu.Unlock()
	m.reevaluate()
}

// Established reports whether the device currently considers itself
// service-subscribed.
func (m *ServiceSubscriptionMgr) Established() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.established
}

func (m *ServiceSubscriptionMgr) reevaluate() {
	m.mu.Lock()
	want := m.outboundUp && m.inboundUp
	changed := want != m.established
	m.established = want
	cb := m.OnConnectivityChange
	m.mu.Unlock()
	if changed && cb != nil {
		cb(want)
	}
}

// DrivingPredicateInputs are the three independent conditions whose
// conjunction decides whether a service subscription should be active.
type DrivingPredicateInputs struct {
	ModeEnabled bool
	WiFiProvisioned bool
	AccountPaired bool
	ServiceConnected bool
}

func (in DrivingPredicateInputs) desired() bool {
	return in.ModeEnabled && in.WiFiProvisioned && in.AccountPaired
}

// DrivingPredicateEngine re-evaluates DrivingPredicateInputs whenever
// any component changes and, if the desired state differs from the
// current one and service connectivity is up, invokes Activate or
// Deactivate.
type DrivingPredicateEngine struct {
	mu sync.Mutex
	inputs DrivingPredicateInputs
	current bool // whether a subscription is currently considered active

	// Activate/Deactivate are invoked (synchronously, on the calling
	// goroutine) when the desired state changes and connectivity allows
	// acting on it.
	Activate func()
	Deactivate func()
}

// NewDrivingPredicateEngine returns an engine with every input false.
func NewDrivingPredicateEngine() *DrivingPredicateEngine {
	return &DrivingPredicateEngine{}
}

// SetModeEnabled updates the "mode == enabled" input and re-evaluates.
func (e *DrivingPredicateEngine) SetModeEnabled(v bool) {
	e.update(func(in *DrivingPredicateInputs) { in.ModeEnabled = v })
}

// SetWiFiProvisioned updates the Wi-Fi-provisioned input and
// re-evaluates.
func (e *DrivingPredicateEngine) SetWiFiProvisioned(v bool) {
	e.update(func(in *DrivingPredicateInputs) { in.WiFiProvisioned = v })
}

// SetAccountPaired updates the account-paired input and re-evaluates.
func (e *DrivingPredicateEngine) SetAccountPaired(v bool) {
	e.update(func(in *DrivingPredicateInputs) { in.AccountPaired = v })
}

// SetServiceConnected updates whether service connectivity is
// currently up; a desired-state change that arrived while connectivity
// was down is acted on as soon as it comes back.
func (e *DrivingPredicateEngine) SetServiceConnected(v bool) {
	e.update(func(in *DrivingPredicateInputs) { in.ServiceConnected = v })
}

func (e *DrivingPredicateEngine) update(mutate func(*DrivingPredicateInputs)) {
	e.mu.Lock()
	mutate(&e.inputs)
	desired := e.inputs.desired()
	connected := e.inputs.ServiceConnected
	cur := e.current
	var action func()
	if desired != cur && connected {
		e.current = desired
		if desired {
			action = e.Activate
		} else {
			action = e.Deactivate
		}
	}
	e.mu.Unlock()
	if action != nil {
		action()
	}
}

// Active reports whether the engine currently considers a service
// subscription active.
func (e *DrivingPredicateEngine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}
