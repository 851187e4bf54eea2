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

import "github.com/gravitational/trace"

var (
	ErrBindingNotReady = trace.ConnectionProblem(nil, "binding-not-ready")
	ErrBindingReleased = trace.BadParameter("binding-released")
	ErrNoExchangeCapacity = trace.LimitExceeded("no-exchange-capacity")
	ErrExchangeClosed = trace.BadParameter("exchange-closed")
	ErrNoPeerRegistered = trace.NotFound("no-peer-registered")
	ErrResponseTimeout = trace.ConnectionProblem(nil, "response-timeout")
	ErrUnsolicitedNoRoute = trace.NotFound("no-unsolicited-message-handler")
)
