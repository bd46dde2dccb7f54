/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package registration

// State is the Node registration behaviour's current phase (§4.3).
type State int32

const (
	// StateDiscovering is browsing for Registration API candidates.
	StateDiscovering State = iota
	// StateRegistering is POSTing the Node and its descendants to the
	// current candidate.
	StateRegistering
	// StateHealthy is heartbeating against a registration that succeeded.
	StateHealthy
	// StatePeerToPeer is advertising this Node directly because no
	// Registry could be found after MaxDiscoveryAttempts (§4.3).
	StatePeerToPeer
)

func (s State) String() string {
	switch s {
	case StateDiscovering:
		return "discovering"
	case StateRegistering:
		return "registering"
	case StateHealthy:
		return "healthy"
	case StatePeerToPeer:
		return "peer_to_peer"
	default:
		return "unknown"
	}
}
