// Copyright 2026 The OpenRover Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package dynamixel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrover/go-dynamixel/internal/servosim"
)

func newSimBus(t *testing.T, servos ...*servosim.Servo) (*Bus, *servosim.Bus) {
	t.Helper()
	sim := servosim.NewBus(servos...)
	bus, err := New(sim)
	require.NoError(t, err)
	return bus, sim
}

func TestScanFindsOnlyLiveIDs(t *testing.T) {
	t.Parallel()
	bus, _ := newSimBus(t, servosim.New(6, 29))

	found, err := bus.Scan(5, 6, 7)
	require.NoError(t, err)
	assert.Equal(t, []byte{6}, found)
	assert.Equal(t, []byte{6}, bus.IDs())

	s, err := bus.Servo(6)
	require.NoError(t, err)
	assert.Equal(t, "MX-28", s.Model)
	assert.Equal(t, FamilyMX, s.Profile.Family)
}

func TestScanEmptyBus(t *testing.T) {
	t.Parallel()
	bus, _ := newSimBus(t)

	_, err := bus.Scan(1, 2, 3)
	assert.ErrorIs(t, err, ErrNoDevicesFound)
}

func TestScanSkipsCorruptReplies(t *testing.T) {
	t.Parallel()
	liar := servosim.New(5, 29)
	liar.CorruptChecksum = true
	bus, _ := newSimBus(t, liar, servosim.New(6, 64))

	found, err := bus.Scan(5, 6)
	require.NoError(t, err)
	assert.Equal(t, []byte{6}, found)

	s, err := bus.Servo(6)
	require.NoError(t, err)
	assert.Equal(t, FamilyRX, s.Profile.Family)
}

func TestScanSkipsUnknownModels(t *testing.T) {
	t.Parallel()
	bus, _ := newSimBus(t, servosim.New(3, 9999))

	_, err := bus.Scan(3)
	assert.ErrorIs(t, err, ErrNoDevicesFound)
}

func TestAbsentIDClassifiedAsTimeout(t *testing.T) {
	t.Parallel()
	bus, _ := newSimBus(t)

	// A silent address surfaces as the timeout category, not a generic
	// transient fault, so callers can tell absence from corruption.
	err := bus.Ping(9)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransportTimeout)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, ErrorTypeTimeout, te.Type)
	assert.True(t, IsRetryable(err))
}

func TestScanRestoresTimeout(t *testing.T) {
	t.Parallel()
	bus, sim := newSimBus(t, servosim.New(1, 29))
	require.NoError(t, bus.transport.SetReadTimeout(time.Second))

	_, err := bus.Scan(1, 2)
	require.NoError(t, err)
	assert.Equal(t, time.Second, sim.ReadTimeout())

	// Restored on the failure path too.
	_, err = bus.Scan(200)
	require.Error(t, err)
	assert.Equal(t, time.Second, sim.ReadTimeout())
}

func TestScanAppliesCalibration(t *testing.T) {
	t.Parallel()
	sim := servosim.NewBus(servosim.New(2, 28))
	bus, err := New(sim, WithCalibrationSource(func(id byte) *Override {
		return &Override{FlipDirection: ptr(true), MaxVelocity: ptr(3.0)}
	}))
	require.NoError(t, err)

	_, err = bus.Scan(2)
	require.NoError(t, err)

	s, err := bus.Servo(2)
	require.NoError(t, err)
	assert.True(t, s.Profile.FlipDirection)
	assert.InDelta(t, 3.0, s.Profile.MaxVelocity, 1e-9)
}

func TestReassignID(t *testing.T) {
	t.Parallel()
	bus, sim := newSimBus(t, servosim.New(6, 29))

	_, err := bus.Scan(6)
	require.NoError(t, err)
	before, err := bus.Servo(6)
	require.NoError(t, err)

	require.NoError(t, bus.ReassignID(6, 9))

	assert.Equal(t, []byte{9}, bus.IDs())
	after, err := bus.Servo(9)
	require.NoError(t, err)
	assert.Same(t, before.Profile, after.Profile, "calibration must follow the servo")

	_, err = bus.Servo(6)
	assert.ErrorIs(t, err, ErrUnknownServo)
	assert.Equal(t, byte(9), sim.Find(9).ID())
}

func TestReassignIDFailureKeepsRegistry(t *testing.T) {
	t.Parallel()
	stuck := servosim.New(6, 29)
	stuck.IgnoreIDWrites = true
	bus, _ := newSimBus(t, stuck)

	_, err := bus.Scan(6)
	require.NoError(t, err)

	err = bus.ReassignID(6, 9)
	require.ErrorIs(t, err, ErrReassignFailed)

	// Two-phase: the failed re-probe leaves the old entry untouched
	// and creates no entry for the new id.
	assert.Equal(t, []byte{6}, bus.IDs())
	_, err = bus.Servo(9)
	assert.ErrorIs(t, err, ErrUnknownServo)
}

func TestReassignIDValidation(t *testing.T) {
	t.Parallel()
	bus, _ := newSimBus(t)
	err := bus.ReassignID(1, 254)
	assert.ErrorIs(t, err, ErrInvalidID)
}
