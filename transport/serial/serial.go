// Copyright 2026 The OpenRover Project Contributors.
// SPDX-License-Identifier: Apache-2.0

// Package serial implements the dynamixel.Transport interface on a
// serial port via go.bug.st/serial. Dynamixel buses run 8N1 with a
// single shared data line behind the adapter's direction control.
package serial

import (
	"fmt"
	"time"

	dynamixel "github.com/openrover/go-dynamixel"
	"go.bug.st/serial"
)

// DefaultBaudRate matches the factory default of most Dynamixel
// servos shipped for protocol 1.0.
const DefaultBaudRate = 1000000

// Transport is a serial port adapter for the bus.
type Transport struct {
	port     serial.Port
	portName string
	timeout  time.Duration
}

// Open opens portName at the given baud rate. A baud of 0 selects
// DefaultBaudRate. The caller owns the port until Close.
func Open(portName string, baud int) (*Transport, error) {
	if baud == 0 {
		baud = DefaultBaudRate
	}
	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, dynamixel.NewTransportError("open", portName, err, dynamixel.ErrorTypePermanent)
	}
	t := &Transport{port: port, portName: portName}
	if err := t.SetReadTimeout(time.Second); err != nil {
		_ = port.Close()
		return nil, err
	}
	return t, nil
}

// Write sends the full slice to the port.
func (t *Transport) Write(p []byte) error {
	for len(p) > 0 {
		n, err := t.port.Write(p)
		if err != nil {
			return dynamixel.NewTransportError("write", t.portName, err, dynamixel.ErrorTypeTransient)
		}
		p = p[n:]
	}
	return nil
}

// ReadFull blocks until p is filled or the read timeout elapses with
// no further bytes arriving.
func (t *Transport) ReadFull(p []byte) error {
	off := 0
	for off < len(p) {
		n, err := t.port.Read(p[off:])
		if err != nil {
			return dynamixel.NewTransportError("read", t.portName, err, dynamixel.ErrorTypeTransient)
		}
		if n == 0 {
			// go.bug.st/serial signals a timeout as a zero-length
			// read with no error.
			return dynamixel.NewTimeoutError(
				fmt.Sprintf("read %d/%d bytes", off, len(p)), t.portName)
		}
		off += n
	}
	return nil
}

// FlushInput discards bytes already received but not read. Stray
// bytes from an interrupted exchange would otherwise be parsed as the
// start of the next status packet.
func (t *Transport) FlushInput() error {
	if err := t.port.ResetInputBuffer(); err != nil {
		return dynamixel.NewTransportError("flush input", t.portName, err, dynamixel.ErrorTypeTransient)
	}
	return nil
}

// FlushOutput blocks until queued outbound bytes are on the wire, so
// the reply window starts only after the instruction has left.
func (t *Transport) FlushOutput() error {
	if err := t.port.Drain(); err != nil {
		return dynamixel.NewTransportError("flush output", t.portName, err, dynamixel.ErrorTypeTransient)
	}
	return nil
}

// SetReadTimeout bounds every subsequent ReadFull.
func (t *Transport) SetReadTimeout(timeout time.Duration) error {
	if err := t.port.SetReadTimeout(timeout); err != nil {
		return dynamixel.NewTransportError("set timeout", t.portName, err, dynamixel.ErrorTypePermanent)
	}
	t.timeout = timeout
	return nil
}

// Port returns the port name for error context.
func (t *Transport) Port() string {
	return t.portName
}

// Close releases the port.
func (t *Transport) Close() error {
	if err := t.port.Close(); err != nil {
		return dynamixel.NewTransportError("close", t.portName, err, dynamixel.ErrorTypePermanent)
	}
	return nil
}

var _ dynamixel.Transport = (*Transport)(nil)
