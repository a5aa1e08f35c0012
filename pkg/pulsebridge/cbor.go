// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pulsebridge

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ParseCBORMessage parses a CBOR message: [msg_type, payload_map].
// The payload map is nil for messages without a payload.
func ParseCBORMessage(data []byte) (msgType uint8, payload map[int]interface{}, err error) {
	if len(data) == 0 {
		return 0, nil, fmt.Errorf("empty CBOR payload")
	}

	var msg []interface{}
	if err := cbor.Unmarshal(data, &msg); err != nil {
		return 0, nil, fmt.Errorf("failed to decode CBOR: %w", err)
	}
	if len(msg) != 2 {
		return 0, nil, fmt.Errorf("expected 2-element array, got %d elements", len(msg))
	}

	t, ok := msg[0].(uint64)
	if !ok {
		return 0, nil, fmt.Errorf("expected uint for message type, got %T", msg[0])
	}
	if t > 255 {
		return 0, nil, fmt.Errorf("message type out of range: %d", t)
	}
	msgType = uint8(t)

	if msg[1] == nil {
		return msgType, nil, nil
	}

	m, ok := msg[1].(map[interface{}]interface{})
	if !ok {
		return 0, nil, fmt.Errorf("expected map or nil for payload, got %T", msg[1])
	}
	payload = make(map[int]interface{}, len(m))
	for key, val := range m {
		switch k := key.(type) {
		case uint64:
			payload[int(k)] = val
		case int64:
			payload[int(k)] = val
		default:
			return 0, nil, fmt.Errorf("expected integer map key, got %T", key)
		}
	}
	return msgType, payload, nil
}

// GetMapUint extracts a non-negative integer from a payload map
func GetMapUint(m map[int]interface{}, key int) (uint64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	return asUint(v)
}

// GetMapString extracts a text string from a payload map
func GetMapString(m map[int]interface{}, key int) (string, bool) {
	v, ok := m[key].(string)
	return v, ok
}

// GetMapDurations extracts a list of µs durations from a payload map.
// Every element must fit in 32 bits.
func GetMapDurations(m map[int]interface{}, key int) ([]uint32, error) {
	v, ok := m[key]
	if !ok {
		return nil, fmt.Errorf("missing key %d", key)
	}
	var list []interface{}
	switch l := v.(type) {
	case []interface{}:
		list = l
	case []uint64:
		// Built locally, not yet through CBOR
		list = make([]interface{}, len(l))
		for i, e := range l {
			list[i] = e
		}
	default:
		return nil, fmt.Errorf("key %d: expected array, got %T", key, v)
	}

	out := make([]uint32, 0, len(list))
	for i, e := range list {
		u, ok := asUint(e)
		if !ok || u > 0xFFFFFFFF {
			return nil, fmt.Errorf("key %d: element %d is not a duration: %v", key, i, e)
		}
		out = append(out, uint32(u))
	}
	return out, nil
}

func asUint(v interface{}) (uint64, bool) {
	switch val := v.(type) {
	case uint64:
		return val, true
	case int64:
		if val >= 0 {
			return uint64(val), true
		}
	}
	return 0, false
}
