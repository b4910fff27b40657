// Copyright 2026 The OpenRover Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package dynamixel

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"syscall"

	"github.com/openrover/go-dynamixel/internal/frame"
)

// Error categories for retry decisions at the call site. The bus never
// retries a directed exchange on its own; classification is offered so
// the caller can.
var (
	// Transport errors - potentially retryable after the port recovers
	ErrTransportTimeout = errors.New("transport timeout")
	ErrTransportWrite   = errors.New("transport write failed")
	ErrTransportRead    = errors.New("transport read failed")
	ErrTransportClosed  = errors.New("transport is closed")

	// Framing faults - the exchange was corrupted, the session stays usable
	ErrBadMarker  = frame.ErrBadMarker
	ErrIDMismatch = frame.ErrIDMismatch
	ErrChecksum   = frame.ErrChecksum
	ErrBadLength  = frame.ErrBadLength

	// Configuration errors - caller bugs, never retryable
	ErrInvalidID       = frame.ErrInvalidID
	ErrPayloadTooLong  = frame.ErrParamsTooLong
	ErrUnknownRegister = errors.New("unknown register")
	ErrRegisterAccess  = errors.New("register access mode violation")
	ErrArityMismatch   = errors.New("slice lengths do not match")
	ErrUnknownModel    = errors.New("unknown servo model")
	ErrOutOfRange      = errors.New("value out of range")
	ErrUnknownServo    = errors.New("servo not in registry")

	// Bus faults
	ErrNoDevicesFound          = errors.New("no servos found on bus")
	ErrReassignFailed          = errors.New("id reassignment not confirmed")
	ErrInconsistentAngleLimits = errors.New("angle limits half zeroed")
)

// ErrorFlags is the error bitfield from a status packet. Bits 0-6 are
// defined by the device, bit 7 is reserved.
type ErrorFlags byte

const (
	// FlagInputVoltage - supply voltage outside the configured window
	FlagInputVoltage ErrorFlags = 1 << 0
	// FlagAngleLimit - goal position outside the angle limit registers
	FlagAngleLimit ErrorFlags = 1 << 1
	// FlagOverheating - internal temperature above the limit register
	FlagOverheating ErrorFlags = 1 << 2
	// FlagRange - instruction parameter outside its register range
	FlagRange ErrorFlags = 1 << 3
	// FlagChecksum - the device rejected our instruction checksum
	FlagChecksum ErrorFlags = 1 << 4
	// FlagOverload - load above the torque limit, torque has been cut
	FlagOverload ErrorFlags = 1 << 5
	// FlagInstruction - undefined opcode or misused register access
	FlagInstruction ErrorFlags = 1 << 6
)

var flagNames = []struct {
	name string
	flag ErrorFlags
}{
	{"input-voltage", FlagInputVoltage},
	{"angle-limit", FlagAngleLimit},
	{"overheating", FlagOverheating},
	{"range", FlagRange},
	{"checksum", FlagChecksum},
	{"overload", FlagOverload},
	{"instruction", FlagInstruction},
}

// Has reports whether all bits of f2 are set in f.
func (f ErrorFlags) Has(f2 ErrorFlags) bool {
	return f&f2 == f2
}

func (f ErrorFlags) String() string {
	if f == 0 {
		return "none"
	}
	var parts []string
	for _, fn := range flagNames {
		if f.Has(fn.flag) {
			parts = append(parts, fn.name)
		}
	}
	if rest := f &^ 0x7F; rest != 0 {
		parts = append(parts, fmt.Sprintf("reserved(%#02x)", byte(rest)))
	}
	return strings.Join(parts, "|")
}

// Recoverable reports whether every set flag describes a condition the
// caller can fix and retry, such as a rejected out-of-range value or a
// corrupted instruction. Overheating, overload and voltage faults cut
// servo torque and stay latched until the cause is addressed, so they
// are never recoverable by a blind retry.
func (f ErrorFlags) Recoverable() bool {
	return f != 0 && f&(FlagOverheating|FlagOverload|FlagInputVoltage) == 0
}

// DeviceError reports non-zero error flags in a status packet. A write
// that returns a DeviceError must be treated as not applied, even
// though some firmwares apply part of it; the wire protocol cannot
// distinguish the two.
type DeviceError struct {
	ID    byte
	Flags ErrorFlags
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("servo %d reported error flags: %s", e.ID, e.Flags)
}

// ErrorType represents the category of error for retry logic
type ErrorType int

const (
	// ErrorTypeTransient indicates a potentially retryable error
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent indicates a non-retryable error
	ErrorTypePermanent
	// ErrorTypeTimeout indicates a timeout error (special handling)
	ErrorTypeTimeout
)

// TransportError wraps byte-level port errors with operation context.
type TransportError struct {
	Err       error     // Underlying error
	Op        string    // Operation that failed
	Port      string    // Port or device identifier
	Type      ErrorType // Error category
	Retryable bool      // Whether the error is retryable
}

func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a transport error with consistent formatting
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       err,
		Type:      errType,
		Retryable: errType == ErrorTypeTransient || errType == ErrorTypeTimeout,
	}
}

// NewTimeoutError creates a timeout error for transport operations
func NewTimeoutError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportTimeout, ErrorTypeTimeout)
}

// FramingError wraps a codec fault with the id and port it occurred
// on. The session remains usable after one; the single exchange may be
// retried by the caller.
type FramingError struct {
	Err  error
	Port string
	ID   byte
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("status from servo %d on %s: %v", e.ID, e.Port, e.Err)
}

func (e *FramingError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is potentially retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	var fe *FramingError
	if errors.As(err, &fe) {
		// A garbled reply is transient; a bad id on our side is not.
		return !errors.Is(fe.Err, ErrInvalidID)
	}

	var de *DeviceError
	if errors.As(err, &de) {
		return de.Flags.Recoverable()
	}

	switch {
	case errors.Is(err, ErrTransportTimeout),
		errors.Is(err, ErrTransportRead),
		errors.Is(err, ErrTransportWrite),
		errors.Is(err, ErrChecksum),
		errors.Is(err, ErrBadMarker):
		return true
	default:
		return false
	}
}

// IsFatal returns true if the error indicates the port is gone and the
// session should be reopened rather than retried.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Type == ErrorTypePermanent
	}

	if isDeviceGoneError(err) {
		return true
	}

	switch {
	case errors.Is(err, ErrTransportClosed),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe):
		return true
	default:
		return false
	}
}

// isTimeoutError checks for the net.Error-style Timeout method, so
// transports outside this package can signal a timeout without
// wrapping the ErrTransportTimeout sentinel.
func isTimeoutError(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// isDeviceGoneError checks for OS-level errors indicating the serial
// adapter was unplugged mid-operation.
func isDeviceGoneError(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EIO, syscall.ENXIO, syscall.ENODEV:
			return true
		}
	}
	return false
}
