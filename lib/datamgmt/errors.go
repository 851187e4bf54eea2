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

import "github.com/gravitational/trace"

var (
	// ErrCatalogFull is returned by Add when no free slot remains.
	ErrCatalogFull = trace.LimitExceeded("datamgmt: trait catalog is full")
	// ErrBufferTooSmall is returned by PrepareSubscriptionPathList when
	// the supplied buffer cannot hold every occupied slot.
	ErrBufferTooSmall = trace.LimitExceeded("datamgmt: path list buffer too small")
	// ErrHandleStale is returned by Locate/HandleToAddress when a
	// handle's generation no longer matches its slot's.
	ErrHandleStale = trace.NotFound("datamgmt: handle refers to a reused or freed slot")
	// ErrNoSuchInstance is returned when an address or key names no
	// occupied slot.
	ErrNoSuchInstance = trace.NotFound("datamgmt: no trait instance matches address")

	// ErrSubscriptionNotReady is returned when an operation requires an
	// established subscription that isn't yet (or no longer) up.
	ErrSubscriptionNotReady = trace.ConnectionProblem(nil, "datamgmt: subscription is not established")
	// ErrAlreadySubscribed describes a duplicate inbound Subscribe from a
	// peer that already has an active subscription. SubscriptionHandler
	// logs and drops such a duplicate; it does not return this error.
	ErrAlreadySubscribed = trace.AlreadyExists("datamgmt: peer already has an active subscription")
)
