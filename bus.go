// Copyright 2026 The OpenRover Project Contributors.
// SPDX-License-Identifier: Apache-2.0

// Package dynamixel drives Dynamixel protocol 1.0 servos over a
// shared half-duplex serial bus: one controller, framed instruction
// packets out, framed status packets back.
package dynamixel

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/openrover/go-dynamixel/internal/frame"
	"github.com/openrover/go-dynamixel/internal/syncutil"
)

// Wire protocol limits re-exported for callers.
const (
	// MaxID is the highest addressable servo id.
	MaxID = frame.MaxID
	// BroadcastID addresses every servo; no servo replies to it.
	BroadcastID = frame.BroadcastID
)

const (
	defaultTimeout     = 1 * time.Second
	defaultScanTimeout = 50 * time.Millisecond
)

// CalibrationSource supplies per-id profile overrides at discovery
// time. A nil return means factory defaults for that id. Consulted
// once per servo; the bus never re-queries it.
type CalibrationSource func(id byte) *Override

// Servo is one registry entry: a confirmed bus id and its calibration.
type Servo struct {
	Profile *Profile
	Model   string
	ID      byte
}

// Bus owns a Transport and serializes every instruction/response
// exchange over it. The bus is half duplex, so all public methods take
// one internal mutex; concurrent callers queue rather than corrupt
// frame parsing.
type Bus struct {
	transport   Transport
	calibrate   CalibrationSource
	servos      map[byte]*Servo
	timeout     time.Duration
	scanTimeout time.Duration
	mu          syncutil.Mutex
}

// Option configures a Bus during New.
type Option func(*Bus)

// WithTimeout sets the directed-exchange read timeout.
func WithTimeout(d time.Duration) Option {
	return func(b *Bus) { b.timeout = d }
}

// WithScanTimeout sets the shortened per-probe timeout used during
// Scan.
func WithScanTimeout(d time.Duration) Option {
	return func(b *Bus) { b.scanTimeout = d }
}

// WithCalibrationSource installs the override lookup used when Scan
// or AddServo builds a profile.
func WithCalibrationSource(src CalibrationSource) Option {
	return func(b *Bus) { b.calibrate = src }
}

// New wraps a transport in a bus session. No bytes are exchanged; run
// Scan or AddServo to populate the registry.
func New(t Transport, opts ...Option) (*Bus, error) {
	if t == nil {
		return nil, errors.New("nil transport")
	}
	b := &Bus{
		transport:   t,
		servos:      make(map[byte]*Servo),
		timeout:     defaultTimeout,
		scanTimeout: defaultScanTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	if err := t.SetReadTimeout(b.timeout); err != nil {
		return nil, NewTransportError("set timeout", t.Port(), err, ErrorTypePermanent)
	}
	return b, nil
}

// Close releases the transport. The bus is unusable afterwards.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.transport.Close()
}

// Servo returns the registry entry for id.
func (b *Bus) Servo(id byte) (*Servo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.servo(id)
}

func (b *Bus) servo(id byte) (*Servo, error) {
	s, ok := b.servos[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownServo, id)
	}
	return s, nil
}

// IDs returns the registered servo ids in ascending order.
func (b *Bus) IDs() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return sortedIDs(b.servos)
}

// AddServo registers id with an explicitly chosen family, bypassing
// discovery. Useful when the model register cannot be trusted or the
// transport is write-only.
func (b *Bus) AddServo(id byte, family Family) error {
	if id > MaxID {
		return fmt.Errorf("%w: %d", ErrInvalidID, id)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	var ov *Override
	if b.calibrate != nil {
		ov = b.calibrate(id)
	}
	p, err := NewProfile(family, ov)
	if err != nil {
		return err
	}
	b.servos[id] = &Servo{ID: id, Profile: p}
	return nil
}

// exchange performs one directed instruction/response cycle. The
// caller must hold b.mu. A broadcast instruction returns a nil status:
// the protocol solicits no reply for it.
func (b *Bus) exchange(id, opcode byte, params []byte) (*frame.Status, error) {
	port := b.transport.Port()

	if err := b.transport.FlushInput(); err != nil {
		return nil, NewTransportError("flush input", port, err, ErrorTypeTransient)
	}
	wire, err := frame.EncodeInstruction(id, opcode, params)
	if err != nil {
		return nil, err
	}
	Debugf("tx %s", hexBytes(wire))
	if err := b.transport.Write(wire); err != nil {
		if IsFatal(err) {
			return nil, NewTransportError("write", port, err, ErrorTypePermanent)
		}
		return nil, NewTransportError("write", port, err, ErrorTypeTransient)
	}
	if err := b.transport.FlushOutput(); err != nil {
		return nil, NewTransportError("flush output", port, err, ErrorTypeTransient)
	}

	if id == BroadcastID {
		return nil, nil
	}

	st, err := frame.ReadStatus(b.transport, id)
	if err != nil {
		switch {
		case errors.Is(err, frame.ErrBadMarker),
			errors.Is(err, frame.ErrIDMismatch),
			errors.Is(err, frame.ErrChecksum),
			errors.Is(err, frame.ErrBadLength):
			return nil, &FramingError{ID: id, Port: port, Err: err}
		case errors.Is(err, ErrTransportTimeout), isTimeoutError(err):
			return nil, NewTimeoutError("read status", port)
		default:
			if IsFatal(err) {
				return nil, NewTransportError("read status", port, err, ErrorTypePermanent)
			}
			return nil, NewTransportError("read status", port, err, ErrorTypeTransient)
		}
	}
	Debugf("rx id=%d flags=%s params=%s", st.ID, ErrorFlags(st.Flags), hexBytes(st.Params))

	if st.Flags != 0 {
		return nil, &DeviceError{ID: id, Flags: ErrorFlags(st.Flags)}
	}
	return st, nil
}

// Ping checks that a servo answers at id.
func (b *Bus) Ping(id byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ping(id)
}

func (b *Bus) ping(id byte) error {
	if id == BroadcastID {
		return fmt.Errorf("%w: broadcast solicits no reply", ErrInvalidID)
	}
	_, err := b.exchange(id, frame.OpPing, nil)
	return err
}

// Reset restores a servo's entire control table to factory defaults,
// including its id and baud rate. No confirmation or guarding is
// built in; callers that want an "are you sure" belong above this
// layer.
func (b *Bus) Reset(id byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := b.exchange(id, frame.OpReset, nil)
	return err
}

// readBytes reads n raw bytes starting at a control table address.
// Reads must be directed: the broadcast address solicits no status
// packet to carry the data back. Caller holds b.mu.
func (b *Bus) readBytes(id, addr byte, n int) ([]byte, error) {
	if id == BroadcastID {
		return nil, fmt.Errorf("%w: broadcast solicits no reply", ErrInvalidID)
	}
	st, err := b.exchange(id, frame.OpReadData, []byte{addr, byte(n)})
	if err != nil {
		return nil, err
	}
	if len(st.Params) != n {
		return nil, &FramingError{
			ID:   id,
			Port: b.transport.Port(),
			Err:  fmt.Errorf("%w: %d payload bytes, want %d", frame.ErrBadLength, len(st.Params), n),
		}
	}
	return st.Params, nil
}

// writeBytes writes raw bytes starting at a control table address.
// Caller holds b.mu.
func (b *Bus) writeBytes(id, addr byte, data []byte) error {
	_, err := b.exchange(id, frame.OpWriteData, append([]byte{addr}, data...))
	return err
}

// ReadRegister reads one named register and returns its raw value.
func (b *Bus) ReadRegister(id byte, reg Register) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.readRegister(id, reg)
}

func (b *Bus) readRegister(id byte, reg Register) (int, error) {
	info, err := checkAccess(reg, AccessRead)
	if err != nil {
		return 0, err
	}
	data, err := b.readBytes(id, info.Addr, info.Size)
	if err != nil {
		return 0, err
	}
	if info.Size == 1 {
		return int(data[0]), nil
	}
	return int(bytesToWord(data[0], data[1])), nil
}

// WriteRegister writes one named register. A DeviceError means the
// write must be assumed not applied.
func (b *Bus) WriteRegister(id byte, reg Register, value int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writeRegister(id, reg, value)
}

func (b *Bus) writeRegister(id byte, reg Register, value int) error {
	info, err := checkAccess(reg, AccessWrite)
	if err != nil {
		return err
	}
	max := 0xFF
	if info.Size == 2 {
		max = 0xFFFF
	}
	if value < 0 || value > max {
		return fmt.Errorf("%w: %d for %s", ErrOutOfRange, value, info.Name)
	}
	data := []byte{byte(value)}
	if info.Size == 2 {
		lo, hi := wordToBytes(uint16(value))
		data = []byte{lo, hi}
	}
	return b.writeBytes(id, info.Addr, data)
}

// SyncWrite batches one write per servo into a single broadcast
// frame. Every row must be width bytes and every id must be a real
// address. width counts the bytes written per servo starting at the
// register's address.
//
// No reply is solicited by protocol design, so success means only
// that the frame left the port; whether each servo applied its row
// cannot be verified on this path. Use directed writes when that
// guarantee matters.
func (b *Bus) SyncWrite(start Register, width int, rows map[byte][]byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.syncWrite(start, width, rows)
}

func (b *Bus) syncWrite(start Register, width int, rows map[byte][]byte) error {
	info, err := checkAccess(start, AccessWrite)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("%w: no rows", ErrArityMismatch)
	}

	params := make([]byte, 0, 2+len(rows)*(1+width))
	params = append(params, info.Addr, byte(width))
	for _, id := range sortedIDs(rows) {
		if id > MaxID {
			return fmt.Errorf("%w: %d", ErrInvalidID, id)
		}
		row := rows[id]
		if len(row) != width {
			return fmt.Errorf("%w: row for id %d is %d bytes, want %d",
				ErrArityMismatch, id, len(row), width)
		}
		params = append(params, id)
		params = append(params, row...)
	}

	_, err = b.exchange(BroadcastID, frame.OpSyncWrite, params)
	return err
}

func sortedIDs[V any](m map[byte]V) []byte {
	ids := make([]byte, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
