/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package system

// State enumerates the System behaviour's discover/fetch/steady cycle
// (§4.8), mirroring registration.State's one-step-per-call shape.
type State int32

const (
	StateDiscovering State = iota
	StateFetching
	StateSteady
)

func (s State) String() string {
	switch s {
	case StateDiscovering:
		return "discovering"
	case StateFetching:
		return "fetching"
	case StateSteady:
		return "steady"
	default:
		return "unknown"
	}
}
