/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package model

import "github.com/nmos-community/nmos-core/cmn"

// ValidateEnvelope enforces the envelope invariants §4.1 delegates to
// the store itself (schema validation of type-specific fields is the
// embedder's job via the §6.4 schema_validator callback): id is a
// UUID, type is recognised, and parent references match the relation
// table in §3.2.
func ValidateEnvelope(r Resource) error {
	env := r.Envelope()
	if !IsValidID(env.ID) {
		return cmn.Newf(cmn.KindValidation, "model: %s id %q is not a valid UUID", env.Type, env.ID)
	}
	if _, err := newByType(env.Type); err != nil {
		return cmn.Wrap(cmn.KindValidation, err, "model: unrecognised type")
	}
	switch env.Type {
	case TypeDevice:
		if env.NodeID == "" {
			return cmn.New(cmn.KindValidation, "model: device missing node_id")
		}
	case TypeSource:
		if env.DeviceID == "" {
			return cmn.New(cmn.KindValidation, "model: source missing device_id")
		}
	case TypeFlow:
		if env.SourceID == "" || env.DeviceID == "" {
			return cmn.New(cmn.KindValidation, "model: flow missing source_id/device_id")
		}
	case TypeSender:
		if env.FlowID == "" || env.DeviceID == "" {
			return cmn.New(cmn.KindValidation, "model: sender missing flow_id/device_id")
		}
	case TypeReceiver:
		if env.DeviceID == "" {
			return cmn.New(cmn.KindValidation, "model: receiver missing device_id")
		}
	}
	return nil
}

// ValidateFlowFormat enforces §3.2's "Flow ... Format must match its
// Source": the caller supplies the parent Source so this package never
// needs to reach back into a Store to check it.
func ValidateFlowFormat(flow *Flow, source *Source) error {
	if flow.Format != source.Format {
		return cmn.Newf(cmn.KindValidation, "model: flow format %s does not match source format %s", flow.Format, source.Format)
	}
	return nil
}

// ValidateDeviceRefs enforces §3.2's "Device ... senders/receivers lists
// must reference existing Senders/Receivers owned by this Device".
func ValidateDeviceRefs(device *Device, store *Store) error {
	for _, id := range device.Senders {
		r, ok := store.Find(id)
		if !ok || r.Envelope().Type != TypeSender || r.Envelope().DeviceID != device.ID {
			return cmn.Newf(cmn.KindValidation, "model: device %s references sender %s not owned by it", device.ID, id)
		}
	}
	for _, id := range device.Receivers {
		r, ok := store.Find(id)
		if !ok || r.Envelope().Type != TypeReceiver || r.Envelope().DeviceID != device.ID {
			return cmn.Newf(cmn.KindValidation, "model: device %s references receiver %s not owned by it", device.ID, id)
		}
	}
	return nil
}
