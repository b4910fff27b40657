// Copyright 2026 The OpenRover Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package frame

import (
	"errors"
	"fmt"
)

// Codec faults. Short reads from the byte source are not translated:
// a transport timeout propagates unchanged so the caller can tell an
// absent device from a corrupted reply.
var (
	ErrInvalidID     = errors.New("device id out of range")
	ErrParamsTooLong = errors.New("parameter block too long")
	ErrBadMarker     = errors.New("bad start marker")
	ErrIDMismatch    = errors.New("status packet from unexpected id")
	ErrChecksum      = errors.New("status checksum mismatch")
	ErrBadLength     = errors.New("status length byte out of range")
)

// ByteReader is the slice of the transport the decoder needs: a
// blocking read that either fills p or fails (typically on timeout).
type ByteReader interface {
	ReadFull(p []byte) error
}

// Status is one decoded status packet. Flags carries the raw device
// error byte; interpretation of the individual bits belongs to the
// caller.
type Status struct {
	Params []byte
	ID     byte
	Flags  byte
}

// ReadStatus reads and validates a single status packet from r:
//
//	FF FF <id> <len> <error> <params...> <checksum>
//
// id must match the address the instruction was sent to. The packet is
// read incrementally so a garbled stream fails at the first bad byte
// instead of consuming an arbitrary amount of input.
func ReadStatus(r ByteReader, id byte) (*Status, error) {
	var marker [2]byte
	if err := r.ReadFull(marker[:]); err != nil {
		return nil, err
	}
	if marker[0] != Marker1 || marker[1] != Marker2 {
		return nil, fmt.Errorf("%w: % X", ErrBadMarker, marker[:])
	}

	var header [2]byte // id, length
	if err := r.ReadFull(header[:]); err != nil {
		return nil, err
	}
	if header[0] != id {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrIDMismatch, header[0], id)
	}
	length := header[1]
	if length < 2 {
		return nil, fmt.Errorf("%w: %d", ErrBadLength, length)
	}

	// error byte + params + checksum
	rest := make([]byte, int(length))
	if err := r.ReadFull(rest); err != nil {
		return nil, err
	}

	body := rest[: len(rest)-1 : len(rest)-1]
	sum := header[0] + header[1]
	for _, b := range body {
		sum += b
	}
	if got, want := rest[len(rest)-1], ^sum; got != want {
		return nil, fmt.Errorf("%w: got %#02x, want %#02x", ErrChecksum, got, want)
	}

	return &Status{
		ID:     header[0],
		Flags:  body[0],
		Params: body[1:],
	}, nil
}
