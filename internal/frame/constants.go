// Copyright 2026 The OpenRover Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package frame

// Start marker bytes preceding every instruction and status packet.
const (
	Marker1 = 0xFF
	Marker2 = 0xFF
)

// Instruction opcodes (Dynamixel protocol 1.0).
const (
	OpPing      = 0x01
	OpReadData  = 0x02
	OpWriteData = 0x03
	OpReset     = 0x06
	OpSyncWrite = 0x83
)

// Bus addressing limits.
const (
	// MaxID is the highest address a real device may occupy.
	MaxID = 253
	// BroadcastID addresses every device on the bus; none reply to it.
	BroadcastID = 254
)

// MaxParams is the largest parameter block an instruction packet can
// carry: the length byte holds len(params)+2 and must fit in 8 bits.
const MaxParams = 253
