/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package model

import "fmt"

// NewEmpty returns a zero-valued concrete Resource for t, for callers
// outside this package that need to unmarshal a tagged wire document
// (an HTTP handler decoding a Registration API POST body, or a fake
// transport in a test) into the right concrete type before handing it
// to Store.Insert/Modify.
func NewEmpty(t Type) (Resource, error) { return newByType(t) }

// newByType returns a zero-valued concrete Resource for t, into which
// stored JSON is unmarshalled. Conversion between this internal tagged
// representation and open JSON happens at the HTTP boundary, not here
// (§9: "Tagged variants... preferred over open maps for internal
// indexing -- convert at the HTTP boundary").
func newByType(t Type) (Resource, error) {
	switch t {
	case TypeNode:
		return &Node{}, nil
	case TypeDevice:
		return &Device{}, nil
	case TypeSource:
		return &Source{}, nil
	case TypeFlow:
		return &Flow{}, nil
	case TypeSender:
		return &Sender{}, nil
	case TypeReceiver:
		return &Receiver{}, nil
	case TypeSubscription:
		return &Subscription{}, nil
	default:
		return nil, fmt.Errorf("model: unrecognised resource type %q", t)
	}
}

// ParentID returns the immediate parent id of r, per the relations in
// §3.2, or "" for Node/Subscription which have no parent.
func ParentID(r Resource) string {
	env := r.Envelope()
	switch env.Type {
	case TypeDevice:
		return env.NodeID
	case TypeSource:
		return env.DeviceID
	case TypeFlow:
		return env.SourceID
	case TypeSender:
		return env.FlowID
	case TypeReceiver:
		return env.DeviceID
	default:
		return ""
	}
}

// NodeOwnerID returns the id of the Node that ultimately owns r,
// walking the parent chain is not needed since every descendant already
// stamps NodeID directly (§3.2 relations); Node and Subscription return
// their own id / "" respectively.
func NodeOwnerID(r Resource) string {
	env := r.Envelope()
	if env.Type == TypeNode {
		return env.ID
	}
	return env.NodeID
}
