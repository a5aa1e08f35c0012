// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package pulsebridge

import (
	"errors"
	"fmt"
)

var (
	ErrCRCMismatch      = errors.New("CRC mismatch")
	ErrTimeout          = errors.New("bridge did not reply in time")
	ErrConnectionClosed = errors.New("bridge connection closed")
	ErrUnsupported      = errors.New("not supported by the pulse bridge")
	ErrUnexpectedReply  = errors.New("unexpected reply")
)

// BridgeError is an ERROR message reported by the bridge
type BridgeError struct {
	Code    ErrorCode
	Message string
}

func (e *BridgeError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("bridge error %s", formatErrorCode(e.Code))
	}
	return fmt.Sprintf("bridge error %s: %s", formatErrorCode(e.Code), e.Message)
}
