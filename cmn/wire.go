/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package cmn

import jsoniter "github.com/json-iterator/go"

// JSON is the shared codec for every resource envelope, grain and wire
// message. Configured compatible with encoding/json so struct tags
// behave exactly as documented, while keeping jsoniter's throughput on
// the registration/heartbeat/grain hot paths.
var JSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Marshal encodes v using the shared codec.
func Marshal(v interface{}) ([]byte, error) { return JSON.Marshal(v) }

// Unmarshal decodes data into v using the shared codec.
func Unmarshal(data []byte, v interface{}) error { return JSON.Unmarshal(data, v) }

// RawMessage is jsoniter's drop-in for json.RawMessage, used to hold
// type-specific resource fields and transport parameters without a
// round-trip through a concrete struct.
type RawMessage = jsoniter.RawMessage
