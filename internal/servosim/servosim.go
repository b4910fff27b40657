// Copyright 2026 The OpenRover Project Contributors.
// SPDX-License-Identifier: Apache-2.0

// Package servosim implements an in-memory Dynamixel bus for tests:
// a transport whose far end is a set of simulated servos with real
// control tables, frame parsing and fault injection.
package servosim

import (
	"errors"
	"time"
)

// Wire constants duplicated from the codec so the simulator stands
// alone on the far side of the transport boundary.
const (
	marker      = 0xFF
	broadcastID = 254

	opPing      = 0x01
	opReadData  = 0x02
	opWriteData = 0x03
	opReset     = 0x06
	opSyncWrite = 0x83

	regID         = 0x03
	regPresentPos = 0x24
	regMoving     = 0x2E
	tableSize     = 0x4A + 1
)

// timeoutError reports itself as a timeout via the net.Error-style
// Timeout method, which is how the session classifier recognizes it;
// this package cannot return the session's own sentinel without an
// import cycle through the root tests.
type timeoutError struct{}

func (timeoutError) Error() string { return "servosim: read timeout" }
func (timeoutError) Timeout() bool { return true }

// ErrTimeout is returned by ReadFull when no simulated servo produced
// enough reply bytes.
var ErrTimeout error = timeoutError{}

// Servo is one simulated device. Its control table is exposed so
// tests can seed and inspect registers directly.
type Servo struct {
	Registers [tableSize]byte

	// Fault injection knobs.
	Silent          bool // never reply, as if unplugged
	CorruptChecksum bool // flip a bit in every reply checksum
	IgnoreIDWrites  bool // drop writes to the id register silently
	ErrorFlags      byte // error byte carried in every reply

	defaults [tableSize]byte
}

// New creates a servo with id and model seeded into its control
// table along with factory-like defaults.
func New(id byte, model uint16) *Servo {
	s := &Servo{}
	s.Registers[0x00] = byte(model)
	s.Registers[0x01] = byte(model >> 8)
	s.Registers[0x02] = 36 // firmware
	s.Registers[regID] = id
	s.Registers[0x04] = 1    // baud code, 1 Mbps
	s.Registers[0x05] = 250  // return delay, 500us
	s.Registers[0x0B] = 70   // temperature limit
	s.Registers[0x0C] = 60   // voltage low, 6.0V
	s.Registers[0x0D] = 160  // voltage high, 16.0V
	s.Registers[0x0E] = 0xFF // max torque 1023
	s.Registers[0x0F] = 0x03
	s.Registers[0x10] = 2 // status return level: reply to everything
	s.Registers[0x1C] = 32
	s.Registers[0x1D] = 32
	s.Registers[0x22] = 0xFF // torque limit 1023
	s.Registers[0x23] = 0x03
	s.Registers[0x2A] = 120 // present voltage, 12.0V
	s.Registers[0x2B] = 35  // present temperature

	// Angle limits and rest position per encoder resolution.
	switch model {
	case 24, 28, 64: // RX family, 10-bit encoder
		s.SetWord(0x08, 0x3FF)
		s.SetWord(regPresentPos, 0x200)
	default: // MX and friends, 12-bit encoder
		s.SetWord(0x08, 0xFFF)
		s.SetWord(regPresentPos, 0x7FF)
	}

	s.defaults = s.Registers
	return s
}

// SetWord stores a 16-bit register little-endian.
func (s *Servo) SetWord(addr byte, v uint16) {
	s.Registers[addr] = byte(v)
	s.Registers[addr+1] = byte(v >> 8)
}

// Word reads a 16-bit register little-endian.
func (s *Servo) Word(addr byte) uint16 {
	return uint16(s.Registers[addr]) | uint16(s.Registers[addr+1])<<8
}

// ID returns the servo's current bus id.
func (s *Servo) ID() byte { return s.Registers[regID] }

// Bus wires simulated servos to the transport interface the real bus
// session consumes.
type Bus struct {
	servos  []*Servo
	readBuf []byte
	timeout time.Duration
	closed  bool
}

// NewBus creates a bus with the given servos attached.
func NewBus(servos ...*Servo) *Bus {
	return &Bus{servos: servos}
}

// Attach adds a servo to the bus.
func (b *Bus) Attach(s *Servo) { b.servos = append(b.servos, s) }

// Find returns the attached servo currently answering at id, or nil.
func (b *Bus) Find(id byte) *Servo {
	for _, s := range b.servos {
		if s.ID() == id {
			return s
		}
	}
	return nil
}

// Write parses one instruction frame and executes it against the
// attached servos, queueing any reply for ReadFull.
func (b *Bus) Write(p []byte) error {
	if b.closed {
		return errors.New("servosim: bus closed")
	}
	if len(p) < 6 || p[0] != marker || p[1] != marker {
		return nil // garbage on the wire, every servo ignores it
	}
	id := p[2]
	length := int(p[3])
	if len(p) != 4+length {
		return nil
	}
	opcode := p[4]
	params := p[5 : 4+length-1]
	sum := byte(0)
	for _, c := range p[2 : len(p)-1] {
		sum += c
	}
	badChecksum := ^sum != p[len(p)-1]

	if id == broadcastID {
		// Broadcast solicits no reply even on a bad checksum.
		if badChecksum {
			return nil
		}
		b.execBroadcast(opcode, params)
		return nil
	}

	s := b.Find(id)
	if s == nil || s.Silent {
		return nil
	}
	if badChecksum {
		b.reply(s, s.ErrorFlags|0x10, nil)
		return nil
	}
	flags, payload := b.exec(s, opcode, params)
	b.reply(s, flags, payload)
	return nil
}

func (b *Bus) execBroadcast(opcode byte, params []byte) {
	switch opcode {
	case opWriteData:
		for _, s := range b.servos {
			b.exec(s, opWriteData, params)
		}
	case opSyncWrite:
		if len(params) < 2 {
			return
		}
		addr, width := params[0], int(params[1])
		rows := params[2:]
		for len(rows) >= 1+width {
			if s := b.Find(rows[0]); s != nil {
				row := append([]byte{addr}, rows[1:1+width]...)
				b.exec(s, opWriteData, row)
			}
			rows = rows[1+width:]
		}
	case opReset:
		for _, s := range b.servos {
			b.exec(s, opReset, nil)
		}
	}
}

// exec applies one instruction to a servo and returns the reply error
// flags and payload.
func (b *Bus) exec(s *Servo, opcode byte, params []byte) (byte, []byte) {
	switch opcode {
	case opPing:
		return s.ErrorFlags, nil

	case opReadData:
		if len(params) != 2 {
			return s.ErrorFlags | 0x40, nil
		}
		addr, n := int(params[0]), int(params[1])
		if addr+n > tableSize {
			return s.ErrorFlags | 0x08, nil
		}
		out := make([]byte, n)
		copy(out, s.Registers[addr:addr+n])
		return s.ErrorFlags, out

	case opWriteData:
		if len(params) < 2 {
			return s.ErrorFlags | 0x40, nil
		}
		addr := int(params[0])
		data := params[1:]
		if addr+len(data) > tableSize {
			return s.ErrorFlags | 0x08, nil
		}
		for i, v := range data {
			reg := addr + i
			if reg == regID && s.IgnoreIDWrites {
				continue
			}
			s.Registers[reg] = v
		}
		// A new goal position teleports the simulated horn.
		if addr <= 0x1E && addr+len(data) >= 0x20 {
			s.SetWord(regPresentPos, s.Word(0x1E))
			s.Registers[regMoving] = 0
		}
		return s.ErrorFlags, nil

	case opReset:
		s.Registers = s.defaults
		return s.ErrorFlags, nil

	default:
		return s.ErrorFlags | 0x40, nil
	}
}

func (b *Bus) reply(s *Servo, flags byte, payload []byte) {
	length := byte(len(payload) + 2)
	pkt := []byte{marker, marker, s.ID(), length, flags}
	pkt = append(pkt, payload...)
	sum := byte(0)
	for _, c := range pkt[2:] {
		sum += c
	}
	cksum := ^sum
	if s.CorruptChecksum {
		cksum ^= 0x01
	}
	b.readBuf = append(b.readBuf, append(pkt, cksum)...)
}

// ReadFull fills p from queued reply bytes or fails with ErrTimeout.
func (b *Bus) ReadFull(p []byte) error {
	if b.closed {
		return errors.New("servosim: bus closed")
	}
	if len(b.readBuf) < len(p) {
		b.readBuf = nil
		return ErrTimeout
	}
	copy(p, b.readBuf[:len(p)])
	b.readBuf = b.readBuf[len(p):]
	return nil
}

// FlushInput drops queued reply bytes.
func (b *Bus) FlushInput() error {
	b.readBuf = nil
	return nil
}

// FlushOutput is a no-op; simulated writes land instantly.
func (b *Bus) FlushOutput() error { return nil }

// SetReadTimeout records the timeout for assertions.
func (b *Bus) SetReadTimeout(d time.Duration) error {
	b.timeout = d
	return nil
}

// ReadTimeout returns the last timeout set.
func (b *Bus) ReadTimeout() time.Duration { return b.timeout }

// Port identifies the simulator in error messages.
func (b *Bus) Port() string { return "servosim" }

// Close marks the bus unusable.
func (b *Bus) Close() error {
	b.closed = true
	return nil
}
