// Copyright 2026 The OpenRover Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package dynamixel

import (
	"io"
	"time"
)

// Transport is the byte stream the bus talks over. Implementations
// wrap a half-duplex serial line; the bus assumes exclusive ownership
// and never issues concurrent calls.
type Transport interface {
	// Write sends the full slice or fails.
	Write(p []byte) error

	// ReadFull blocks until p is filled or the read timeout expires.
	ReadFull(p []byte) error

	// FlushInput discards unread inbound bytes.
	FlushInput() error

	// FlushOutput blocks until queued outbound bytes are on the wire.
	FlushOutput() error

	// SetReadTimeout bounds every subsequent ReadFull.
	SetReadTimeout(timeout time.Duration) error

	// Port returns the device identifier for error context.
	Port() string

	// Close releases the underlying handle.
	Close() error
}

// MockTransport is an in-memory Transport for tests. Writes are
// recorded and handed to an optional responder whose reply bytes are
// queued for subsequent reads.
type MockTransport struct {
	// Respond maps one written instruction packet to the reply bytes
	// to queue. A nil return queues nothing, which reads as a timeout.
	Respond func(wire []byte) []byte

	// WriteErr, when set, fails the next Write.
	WriteErr error

	Written [][]byte

	readBuf []byte
	timeout time.Duration
	closed  bool
}

// NewMockTransport creates a mock with no scripted responses.
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

func (m *MockTransport) Write(p []byte) error {
	if m.closed {
		return ErrTransportClosed
	}
	if m.WriteErr != nil {
		err := m.WriteErr
		m.WriteErr = nil
		return err
	}
	buf := make([]byte, len(p))
	copy(buf, p)
	m.Written = append(m.Written, buf)
	if m.Respond != nil {
		if reply := m.Respond(buf); reply != nil {
			m.readBuf = append(m.readBuf, reply...)
		}
	}
	return nil
}

func (m *MockTransport) ReadFull(p []byte) error {
	if m.closed {
		return ErrTransportClosed
	}
	if len(m.readBuf) < len(p) {
		// Nothing more is coming on a mock, so an underfilled read
		// is the timeout case.
		m.readBuf = nil
		return ErrTransportTimeout
	}
	copy(p, m.readBuf[:len(p)])
	m.readBuf = m.readBuf[len(p):]
	return nil
}

// QueueRead appends raw bytes for subsequent ReadFull calls, bypassing
// the responder. Useful for injecting corrupt or stray frames.
func (m *MockTransport) QueueRead(p []byte) {
	m.readBuf = append(m.readBuf, p...)
}

func (m *MockTransport) FlushInput() error {
	m.readBuf = nil
	return nil
}

func (m *MockTransport) FlushOutput() error { return nil }

func (m *MockTransport) SetReadTimeout(timeout time.Duration) error {
	m.timeout = timeout
	return nil
}

// ReadTimeout returns the last timeout set, for asserting the scan
// shorten/restore behavior.
func (m *MockTransport) ReadTimeout() time.Duration { return m.timeout }

func (m *MockTransport) Port() string { return "mock" }

func (m *MockTransport) Close() error {
	m.closed = true
	return nil
}

var _ Transport = (*MockTransport)(nil)
var _ io.Closer = (*MockTransport)(nil)
