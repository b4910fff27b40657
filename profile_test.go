// Copyright 2026 The OpenRover Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package dynamixel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func ptr[T any](v T) *T { return &v }

func TestNewProfileDefaults(t *testing.T) {
	t.Parallel()

	mx, err := NewProfile(FamilyMX, nil)
	require.NoError(t, err)
	assert.Equal(t, 0x7FF, mx.HomeTicks)
	assert.Equal(t, 0xFFF, mx.MaxTicks)
	assert.InDelta(t, math.Pi, mx.MaxAngle, 1e-9)
	assert.InDelta(t, -math.Pi, mx.MinAngle, 1e-9)
	assert.Zero(t, mx.MaxVelocity)

	rx, err := NewProfile(FamilyRX, nil)
	require.NoError(t, err)
	assert.Equal(t, 0x200, rx.HomeTicks)
	assert.Equal(t, 0x3FF, rx.MaxTicks)
	assert.InDelta(t, 150*math.Pi/180, rx.MaxAngle, 1e-9)

	_, err = NewProfile(Family(99), nil)
	assert.ErrorIs(t, err, ErrUnknownModel)
}

func TestNewProfileOverrides(t *testing.T) {
	t.Parallel()

	p, err := NewProfile(FamilyMX, &Override{
		MaxAngle:      ptr(1.0),
		MinAngle:      ptr(-0.5),
		MaxVelocity:   ptr(2.0),
		FlipDirection: ptr(true),
	})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, p.MaxAngle, 1e-9)
	assert.InDelta(t, -0.5, p.MinAngle, 1e-9)
	assert.InDelta(t, 2.0, p.MaxVelocity, 1e-9)
	assert.True(t, p.FlipDirection)
}

func TestNewProfileClampsToGeometry(t *testing.T) {
	t.Parallel()

	// Bounds wider than the encoder span shrink to what the encoder
	// can actually report.
	p, err := NewProfile(FamilyRX, &Override{
		MinAngle: ptr(-10.0),
		MaxAngle: ptr(10.0),
	})
	require.NoError(t, err)
	span := 300 * math.Pi / 180 / 1024
	assert.InDelta(t, float64(-0x200)*span, p.MinAngle, 1e-9)
	assert.InDelta(t, float64(0x3FF-0x200)*span, p.MaxAngle, 1e-9)

	_, err = NewProfile(FamilyMX, &Override{MinAngle: ptr(2.0), MaxAngle: ptr(1.0)})
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = NewProfile(FamilyMX, &Override{MaxTicks: ptr(0)})
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestNewProfileNormalizesVelocityCeiling(t *testing.T) {
	t.Parallel()

	for _, v := range []float64{-1, MaxAngularVelocity + 1} {
		p, err := NewProfile(FamilyMX, &Override{MaxVelocity: ptr(v)})
		require.NoError(t, err)
		assert.Zero(t, p.MaxVelocity, "ceiling %v should normalize to 0", v)
		assert.InDelta(t, MaxAngularVelocity, p.VelocityCeiling(), 1e-9)
	}
}

func TestAngleTicksRoundTrip(t *testing.T) {
	t.Parallel()

	for _, family := range []Family{FamilyMX, FamilyRX} {
		family := family
		t.Run(family.String(), func(t *testing.T) {
			t.Parallel()
			p, err := NewProfile(family, nil)
			require.NoError(t, err)

			rapid.Check(t, func(t *rapid.T) {
				angle := rapid.Float64Range(p.MinAngle, p.MaxAngle).Draw(t, "angle")
				back := p.TicksToAngle(p.AngleToTicks(angle))
				if math.Abs(back-angle) > p.RadiansPerTick {
					t.Errorf("round trip %v -> %v, off by more than one tick", angle, back)
				}
			})
		})
	}
}

func TestAngleToTicksFlip(t *testing.T) {
	t.Parallel()
	p, err := NewProfile(FamilyMX, &Override{FlipDirection: ptr(true)})
	require.NoError(t, err)

	plain, err := NewProfile(FamilyMX, nil)
	require.NoError(t, err)

	// A flipped profile moves the opposite way from home for the
	// same commanded angle.
	assert.Equal(t, int(plain.AngleToTicks(1.0))-plain.HomeTicks,
		-(int(p.AngleToTicks(1.0)) - p.HomeTicks))
	assert.InDelta(t, 1.0, p.TicksToAngle(p.AngleToTicks(1.0)), p.RadiansPerTick)
}

func TestAngleToTicksClampsToEncoder(t *testing.T) {
	t.Parallel()
	p, err := NewProfile(FamilyRX, nil)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x3FF), p.AngleToTicks(100))
	assert.Equal(t, uint16(0), p.AngleToTicks(-100))
}

func TestClipAngle(t *testing.T) {
	t.Parallel()
	p, err := NewProfile(FamilyMX, &Override{MinAngle: ptr(-1.0), MaxAngle: ptr(1.0)})
	require.NoError(t, err)

	got, clamped := p.ClipAngle(0.5)
	assert.InDelta(t, 0.5, got, 1e-9)
	assert.False(t, clamped)

	got, clamped = p.ClipAngle(1.1)
	assert.InDelta(t, 1.0, got, 1e-9)
	assert.True(t, clamped)

	got, clamped = p.ClipAngle(-4)
	assert.InDelta(t, -1.0, got, 1e-9)
	assert.True(t, clamped)
}

func TestClipAngleIdempotent(t *testing.T) {
	t.Parallel()
	p, err := NewProfile(FamilyMX, nil)
	require.NoError(t, err)

	rapid.Check(t, func(t *rapid.T) {
		angle := rapid.Float64Range(-100, 100).Draw(t, "angle")
		once, _ := p.ClipAngle(angle)
		twice, clamped := p.ClipAngle(once)
		if twice != once {
			t.Errorf("clip not idempotent: %v -> %v -> %v", angle, once, twice)
		}
		if clamped {
			t.Errorf("second clip of %v reported an adjustment", angle)
		}
	})
}

func TestClipVelocity(t *testing.T) {
	t.Parallel()
	p, err := NewProfile(FamilyMX, &Override{MaxVelocity: ptr(2.0)})
	require.NoError(t, err)

	got, clamped := p.ClipVelocity(1.5)
	assert.InDelta(t, 1.5, got, 1e-9)
	assert.False(t, clamped)

	got, clamped = p.ClipVelocity(3)
	assert.InDelta(t, 2.0, got, 1e-9)
	assert.True(t, clamped)

	got, clamped = p.ClipVelocity(-3)
	assert.InDelta(t, -2.0, got, 1e-9)
	assert.True(t, clamped)

	// Zero means "maximum speed" and is never an adjustment.
	got, clamped = p.ClipVelocity(0)
	assert.Zero(t, got)
	assert.False(t, clamped)
}

func TestFamilyForModel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		code   uint16
		family Family
	}{
		{"MX-28", 29, FamilyMX},
		{"MX-64", 310, FamilyMX},
		{"MX-106", 320, FamilyMX},
		{"EX-106+", 107, FamilyMX},
		{"AX-12", 12, FamilyMX},
		{"RX-24F", 24, FamilyRX},
		{"RX-28", 28, FamilyRX},
		{"RX-64", 64, FamilyRX},
	}
	for _, tt := range tests {
		family, name, err := FamilyForModel(tt.code)
		require.NoError(t, err)
		assert.Equal(t, tt.family, family)
		assert.Equal(t, tt.name, name)
	}

	_, _, err := FamilyForModel(9999)
	assert.ErrorIs(t, err, ErrUnknownModel)
}
