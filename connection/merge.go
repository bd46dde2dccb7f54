// Package connection implements the IS-05 Connection Management state
// machine (§4.7): PATCH-body deep-merge into staged transport
// parameters, a single prioritised activation timer queue and the
// activation firing sequence itself.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package connection

import "github.com/nmos-community/nmos-core/model"

// mergeValue applies §4.7's deep-merge rule to one value: a null patch
// clears the key, an object recurses key-by-key, anything else
// (scalars, arrays, and the literal string "auto") replaces wholesale.
func mergeValue(cur, patch interface{}) interface{} {
	curMap, curIsMap := cur.(map[string]interface{})
	patchMap, patchIsMap := patch.(map[string]interface{})
	if curIsMap && patchIsMap {
		return mergeMap(curMap, patchMap)
	}
	return patch
}

func mergeMap(cur, patch map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(cur)+len(patch))
	for k, v := range cur {
		out[k] = v
	}
	for k, v := range patch {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = mergeValue(out[k], v)
	}
	return out
}

// MergeTransportParams deep-merges a PATCH's per-leg transport
// parameter documents into the current staged params. A patch leg
// merges into the current leg at the same index; a patch array longer
// than the current one appends its extra legs (§4.7: "objects recurse,
// arrays replace" -- legs are positional, not content-addressed).
func MergeTransportParams(cur, patch model.TransportParams) model.TransportParams {
	out := make(model.TransportParams, len(cur))
	copy(out, cur)
	for i, leg := range patch {
		if i < len(out) {
			out[i] = mergeMap(out[i], leg)
		} else {
			out = append(out, leg)
		}
	}
	return out
}
