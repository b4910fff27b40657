// Copyright 2026 The OpenRover Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package dynamixel

import "fmt"

// Scan probes the candidate ids and registers every servo that
// answers correctly. With no candidates the whole id space is swept.
// An id that stays silent, garbles its reply or reports a different
// identity is skipped, not an error; Scan fails only when the
// confirmed set ends up empty.
//
// The read timeout is shortened for the duration of the sweep so an
// absent id costs a scan timeout, not a full exchange timeout, and is
// restored on every exit path.
func (b *Bus) Scan(candidates ...byte) ([]byte, error) {
	if len(candidates) == 0 {
		candidates = make([]byte, MaxID+1)
		for i := range candidates {
			candidates[i] = byte(i)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.transport.SetReadTimeout(b.scanTimeout); err != nil {
		return nil, NewTransportError("set timeout", b.transport.Port(), err, ErrorTypePermanent)
	}
	defer func() {
		_ = b.transport.SetReadTimeout(b.timeout)
	}()

	var found []byte
	for _, id := range candidates {
		if id > MaxID {
			continue
		}
		s, err := b.probe(id)
		if err != nil {
			Debugf("scan: id %d absent: %v", id, err)
			continue
		}
		b.servos[id] = s
		found = append(found, id)
	}

	if len(found) == 0 {
		return nil, ErrNoDevicesFound
	}
	return found, nil
}

// probe confirms a live servo at id and builds its registry entry.
// The ping is retried once: absence is expected during a sweep, but a
// single corrupted reply should not hide a present servo. Caller
// holds b.mu.
func (b *Bus) probe(id byte) (*Servo, error) {
	if err := b.ping(id); err != nil {
		if err = b.ping(id); err != nil {
			return nil, err
		}
	}

	// A ping answered by the wrong device passes the id check in the
	// codec only if the frame was forged, so cross-check the identity
	// register as well.
	ident, err := b.readRegister(id, RegID)
	if err != nil {
		return nil, err
	}
	if byte(ident) != id {
		return nil, fmt.Errorf("%w: register holds %d", ErrIDMismatch, ident)
	}

	model, err := b.readRegister(id, RegModelNumber)
	if err != nil {
		return nil, err
	}
	family, name, err := FamilyForModel(uint16(model))
	if err != nil {
		return nil, err
	}

	var ov *Override
	if b.calibrate != nil {
		ov = b.calibrate(id)
	}
	p, err := NewProfile(family, ov)
	if err != nil {
		return nil, err
	}
	return &Servo{ID: id, Profile: p, Model: name}, nil
}

// ReassignID moves a servo from oldID to newID, on the wire and in
// the registry. Two phases: write the identity register at oldID,
// then re-probe newID and only then move the registry entry. On a
// failed re-probe the registry keeps the old entry untouched and
// ErrReassignFailed is returned; the servo's true id is then unknown
// and a fresh Scan is the way back.
func (b *Bus) ReassignID(oldID, newID byte) error {
	if newID > MaxID {
		return fmt.Errorf("%w: %d", ErrInvalidID, newID)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.writeRegister(oldID, RegID, int(newID)); err != nil {
		return err
	}

	s, err := b.probe(newID)
	if err != nil {
		return fmt.Errorf("%w: servo %d -> %d: %v", ErrReassignFailed, oldID, newID, err)
	}

	if prev, ok := b.servos[oldID]; ok {
		// Keep the existing calibration; only the id changed.
		s.Profile = prev.Profile
		if prev.Model != "" {
			s.Model = prev.Model
		}
		delete(b.servos, oldID)
	}
	b.servos[newID] = s
	return nil
}
