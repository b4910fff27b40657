// Copyright 2026 The OpenRover Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package dynamixel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrover/go-dynamixel/internal/servosim"
)

func scannedSimBus(t *testing.T, servos ...*servosim.Servo) (*Bus, *servosim.Bus) {
	t.Helper()
	bus, sim := newSimBus(t, servos...)
	_, err := bus.Scan()
	require.NoError(t, err)
	return bus, sim
}

func TestMoveTo(t *testing.T) {
	t.Parallel()
	bus, sim := scannedSimBus(t, servosim.New(5, 29))

	adj, err := bus.MoveTo(5, 1.0, AtVelocity(2.0))
	require.NoError(t, err)
	assert.False(t, adj.Clamped())

	s := sim.Find(5)
	p, _ := NewProfile(FamilyMX, nil)
	assert.Equal(t, p.AngleToTicks(1.0), s.Word(0x1E))
	assert.Equal(t, VelocityToWord(2.0), s.Word(0x20))
}

func TestMoveToClampsAngle(t *testing.T) {
	t.Parallel()
	bus, sim := scannedSimBus(t, servosim.New(5, 28))

	// 10% past the RX limit: the write carries the clamped maximum
	// and the caller can observe the adjustment.
	p, _ := NewProfile(FamilyRX, nil)
	adj, err := bus.MoveTo(5, p.MaxAngle*1.1)
	require.NoError(t, err)
	assert.True(t, adj.Angle)
	assert.False(t, adj.Velocity)

	assert.Equal(t, p.AngleToTicks(p.MaxAngle), sim.Find(5).Word(0x1E))
}

func TestMoveToClampsVelocity(t *testing.T) {
	t.Parallel()
	sim := servosim.NewBus(servosim.New(5, 29))
	bus, err := New(sim, WithCalibrationSource(func(byte) *Override {
		return &Override{MaxVelocity: ptr(1.0)}
	}))
	require.NoError(t, err)
	_, err = bus.Scan(5)
	require.NoError(t, err)

	adj, err := bus.MoveTo(5, 0, AtVelocity(5.0))
	require.NoError(t, err)
	assert.True(t, adj.Velocity)
	assert.Equal(t, VelocityToWord(1.0), sim.Find(5).Word(0x20))
}

func TestMoveToDefaultVelocityIsCeiling(t *testing.T) {
	t.Parallel()
	bus, sim := scannedSimBus(t, servosim.New(5, 29))

	_, err := bus.MoveTo(5, 0.5)
	require.NoError(t, err)
	assert.Equal(t, VelocityToWord(MaxAngularVelocity), sim.Find(5).Word(0x20))
}

func TestMoveToUnknownServo(t *testing.T) {
	t.Parallel()
	bus, _ := newSimBus(t)
	_, err := bus.MoveTo(5, 1.0)
	assert.ErrorIs(t, err, ErrUnknownServo)
}

func TestMoveToUntilStopped(t *testing.T) {
	t.Parallel()
	bus, _ := scannedSimBus(t, servosim.New(5, 29))

	// The simulator clears the moving flag as soon as the goal is
	// written, so the poll loop sees a stopped servo immediately.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := bus.MoveTo(5, 1.0, UntilStopped(ctx), WithPollInterval(time.Millisecond))
	require.NoError(t, err)
}

func TestWaitUntilStoppedHonorsContext(t *testing.T) {
	t.Parallel()
	stuck := servosim.New(5, 29)
	bus, _ := scannedSimBus(t, stuck)
	stuck.Registers[0x2E] = 1 // moving forever

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := bus.WaitUntilStopped(ctx, 5, time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMoveMany(t *testing.T) {
	t.Parallel()
	bus, sim := scannedSimBus(t, servosim.New(1, 29), servosim.New(2, 29))

	adjs, err := bus.MoveMany([]byte{1, 2}, []float64{0.5, -0.5}, nil)
	require.NoError(t, err)
	require.Len(t, adjs, 2)
	assert.False(t, adjs[0].Clamped())

	p, _ := NewProfile(FamilyMX, nil)
	assert.Equal(t, p.AngleToTicks(0.5), sim.Find(1).Word(0x1E))
	assert.Equal(t, p.AngleToTicks(-0.5), sim.Find(2).Word(0x1E))
}

func TestMoveManyReportsPerServoClamping(t *testing.T) {
	t.Parallel()
	bus, _ := scannedSimBus(t, servosim.New(1, 29), servosim.New(2, 29))

	adjs, err := bus.MoveMany([]byte{1, 2}, []float64{100, 0}, []float64{1, 100})
	require.NoError(t, err)
	assert.True(t, adjs[0].Angle)
	assert.False(t, adjs[0].Velocity)
	assert.False(t, adjs[1].Angle)
	assert.True(t, adjs[1].Velocity)
}

func TestMoveManyArity(t *testing.T) {
	t.Parallel()
	bus, _ := scannedSimBus(t, servosim.New(1, 29))

	_, err := bus.MoveMany([]byte{1}, []float64{1, 2}, nil)
	assert.ErrorIs(t, err, ErrArityMismatch)

	_, err = bus.MoveMany([]byte{1}, []float64{1}, []float64{1, 2})
	assert.ErrorIs(t, err, ErrArityMismatch)

	_, err = bus.MoveMany([]byte{1, 1}, []float64{1, 2}, nil)
	assert.ErrorIs(t, err, ErrArityMismatch)
}

func TestContinuousRotation(t *testing.T) {
	t.Parallel()
	bus, sim := scannedSimBus(t, servosim.New(5, 29))
	s := sim.Find(5)

	// Establish bounded limits from the profile first.
	require.NoError(t, bus.DisableContinuous(5))
	continuous, err := bus.IsContinuous(5)
	require.NoError(t, err)
	assert.False(t, continuous)

	require.NoError(t, bus.EnableContinuous(5))
	assert.Zero(t, s.Word(0x06))
	assert.Zero(t, s.Word(0x08))

	continuous, err = bus.IsContinuous(5)
	require.NoError(t, err)
	assert.True(t, continuous)

	require.NoError(t, bus.DisableContinuous(5))
	continuous, err = bus.IsContinuous(5)
	require.NoError(t, err)
	assert.False(t, continuous)
	assert.NotZero(t, s.Word(0x08))
}

func TestIsContinuousInconsistentLimits(t *testing.T) {
	t.Parallel()
	bus, sim := scannedSimBus(t, servosim.New(5, 29))

	sim.Find(5).SetWord(0x06, 0x100)
	sim.Find(5).SetWord(0x08, 0)

	_, err := bus.IsContinuous(5)
	assert.ErrorIs(t, err, ErrInconsistentAngleLimits)
}

func TestSpin(t *testing.T) {
	t.Parallel()
	bus, sim := scannedSimBus(t, servosim.New(5, 29))
	require.NoError(t, bus.EnableContinuous(5))

	adj, err := bus.Spin(5, -2.0)
	require.NoError(t, err)
	assert.False(t, adj.Velocity)

	word := sim.Find(5).Word(0x20)
	assert.NotZero(t, word&(1<<10), "negative speed sets the direction bit")
	assert.InDelta(t, -2.0, WordToVelocity(word), 0.01)

	adj, err = bus.Spin(5, 99)
	require.NoError(t, err)
	assert.True(t, adj.Velocity)
}
