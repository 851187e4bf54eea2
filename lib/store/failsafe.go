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

package store

import "github.com/gravitational/trace"

// IsArmed reports whether the fail-safe-armed flag is set: a
// multi-step reconfiguration started but never reached its matching
// Disarm.
func (c ConfigNamespace) IsArmed() (bool, error) {
	v, err := c.getU32(keyFailSafeArmed)
	if trace.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// Arm sets the fail-safe-armed flag. Call before starting a multi-step
// reconfiguration.
func (c ConfigNamespace) Arm() error {
	return c.putU32(keyFailSafeArmed, 1)
}

// Disarm clears the fail-safe-armed flag. Call on successful
// completion of the reconfiguration Arm guarded.
func (c ConfigNamespace) Disarm() error {
	return c.putU32(keyFailSafeArmed, 0)
}

// CheckFailSafeOnBoot runs the fail-safe boot check: if the armed flag
// is set, a prior reconfiguration never completed and reset is invoked
// to perform a factory reset before continuing boot.
func CheckFailSafeOnBoot(s Store, reset func() error) error {
	c := Config(s)
	armed, err := c.IsArmed()
	if err != nil {
		return trace.Wrap(err)
	}
	if !armed {
		return nil
	}
	return trace.Wrap(reset())
}
