// Copyright 2026 The OpenRover Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package frame

import "fmt"

// EncodeInstruction builds the wire bytes for one instruction packet:
//
//	FF FF <id> <len> <opcode> <params...> <checksum>
//
// The length byte covers the opcode, the parameters and the checksum.
// The function is pure and cannot fail for a valid id and parameter
// block.
func EncodeInstruction(id, opcode byte, params []byte) ([]byte, error) {
	if id > BroadcastID {
		return nil, fmt.Errorf("%w: %d", ErrInvalidID, id)
	}
	if len(params) > MaxParams {
		return nil, fmt.Errorf("%w: %d bytes", ErrParamsTooLong, len(params))
	}

	length := byte(len(params) + 2)
	pkt := make([]byte, 0, 6+len(params))
	pkt = append(pkt, Marker1, Marker2, id, length, opcode)
	pkt = append(pkt, params...)
	pkt = append(pkt, Checksum(pkt[2:]))
	return pkt, nil
}
