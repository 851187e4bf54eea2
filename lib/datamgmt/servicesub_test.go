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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestServiceSubscriptionMgrRequiresBothHalves(t *testing.T) {
	var events []bool
	mgr := NewServiceSubscriptionMgr()
	mgr.OnConnectivityChange = func(up bool) { events = append(events, up) }

	mgr.SetOutboundEstablished(true)
	require.False(t, mgr.Established())
	require.Empty(t, events)

	mgr.SetInboundEstablished(true)
	require.True(t, mgr.Established())
	require.Equal(t, []bool{true}, events)

	mgr.SetOutboundEstablished(false)
	require.False(t, mgr.Established())
	require.Equal(t, []bool{true, false}, events)
}

func TestDrivingPredicateEngineActivatesOnlyWhenConnected(t *testing.T) {
	var active, inactive int
	e := NewDrivingPredicateEngine()
	e.Activate = func() { active++ }
	e.Deactivate = func() { inactive++ }

	e.SetModeEnabled(true)
	e.SetWiFiProvisioned(true)
	e.SetAccountPaired(true)
	require.Equal(t, 0, active, "desired state is true but service connectivity is still down")
	require.False(t, e.Active())

	e.SetServiceConnected(true)
	require.Equal(t, 1, active)
	require.True(t, e.Active())

	e.SetModeEnabled(false)
	require.Equal(t, 1, inactive)
	require.False(t, e.Active())
}
