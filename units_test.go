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

func TestVelocityWordRoundTrip(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		v    float64
		want uint16
	}{
		{"zero keeps its max-speed meaning", 0, 0},
		{"one rad/s ccw", 1.0, 83},
		{"one rad/s cw", -1.0, 83 | 1<<10},
		{"ceiling", MaxAngularVelocity, 1023},
		{"beyond ceiling saturates", 20, 1023},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, VelocityToWord(tt.v))
		})
	}
}

func TestWordToVelocity(t *testing.T) {
	t.Parallel()
	assert.Zero(t, WordToVelocity(0))
	assert.InDelta(t, 1.0, WordToVelocity(83), 0.01)
	assert.InDelta(t, -1.0, WordToVelocity(83|1<<10), 0.01)
	assert.InDelta(t, MaxAngularVelocity, WordToVelocity(1023), 1e-9)
}

func TestVelocityWordProperty(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		v := rapid.Float64Range(-MaxAngularVelocity, MaxAngularVelocity).Draw(t, "v")
		got := WordToVelocity(VelocityToWord(v))
		// Quantization is one register unit of rpm.
		step := rpmPerVelocityUnit * 2 * math.Pi / 60
		if math.Abs(got-v) > step/2+1e-9 {
			t.Errorf("round trip %v -> %v, off by more than half a unit", v, got)
		}
	})
}

func TestTorqueConversions(t *testing.T) {
	t.Parallel()
	assert.Equal(t, uint16(0), TorquePercentToWord(0))
	assert.Equal(t, uint16(1023), TorquePercentToWord(100))
	assert.Equal(t, uint16(1023), TorquePercentToWord(150))
	assert.Equal(t, uint16(512), TorquePercentToWord(50.05))
	assert.InDelta(t, 100, WordToTorquePercent(1023), 0.01)
	assert.InDelta(t, 50, WordToTorquePercent(512), 0.1)
}

func TestWordToLoad(t *testing.T) {
	t.Parallel()
	// Bit 10 set means clockwise; with an unflipped profile that is
	// the negative direction.
	assert.InDelta(t, 50.0, WordToLoad(512, false), 0.1)
	assert.InDelta(t, -50.0, WordToLoad(512|1<<10, false), 0.1)
	assert.InDelta(t, -50.0, WordToLoad(512, true), 0.1)
	assert.InDelta(t, 50.0, WordToLoad(512|1<<10, true), 0.1)
	assert.Zero(t, WordToLoad(0, false))
}

func TestVoltageAndCurrent(t *testing.T) {
	t.Parallel()
	assert.InDelta(t, 12.0, ByteToVolts(120), 1e-9)
	assert.Equal(t, byte(126), VoltsToByte(12.6))
	assert.Zero(t, WordToAmps(2048))
	assert.InDelta(t, 4.5, WordToAmps(3048), 1e-9)
	assert.InDelta(t, -4.5, WordToAmps(1048), 1e-9)
}

func TestAccelConversions(t *testing.T) {
	t.Parallel()
	assert.Equal(t, byte(0), AccelToByte(0))
	assert.Equal(t, byte(1), AccelToByte(8.583))
	assert.Equal(t, byte(254), AccelToByte(1e6))
	assert.Equal(t, byte(0), AccelToByte(-5))
	assert.InDelta(t, 8.583*2, ByteToAccel(2), 1e-9)
}

func TestGains(t *testing.T) {
	t.Parallel()
	kd, ki, kp := GainsFromRaw(0, 0, 32)
	assert.Zero(t, kd)
	assert.Zero(t, ki)
	assert.InDelta(t, 4.0, kp, 1e-9)

	d, i, p, err := GainsToRaw(kd, ki, kp)
	require.NoError(t, err)
	assert.Equal(t, byte(0), d)
	assert.Equal(t, byte(0), i)
	assert.Equal(t, byte(32), p)

	// Register bytes saturate at 254.
	_, _, p, err = GainsToRaw(0, 0, 1e6)
	require.NoError(t, err)
	assert.Equal(t, byte(254), p)

	_, _, _, err = GainsToRaw(-0.1, 0, 0)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestComplianceTable(t *testing.T) {
	t.Parallel()
	wantSlopes := map[int]byte{1: 2, 2: 4, 3: 8, 4: 16, 5: 32, 6: 64, 7: 128}
	for step, want := range wantSlopes {
		got, err := StepToSlope(step)
		require.NoError(t, err)
		assert.Equal(t, want, got, "step %d", step)

		// Round trip through the quantizer lands on the same step.
		back, err := SlopeToStep(got)
		require.NoError(t, err)
		assert.Equal(t, step, back, "slope %d", got)
	}

	for _, step := range []int{0, 8, -1} {
		_, err := StepToSlope(step)
		assert.ErrorIs(t, err, ErrOutOfRange, "step %d", step)
	}
	_, err := SlopeToStep(254)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestSlopeToStepMonotonic(t *testing.T) {
	t.Parallel()
	prev := 0
	for slope := 0; slope <= 253; slope++ {
		step, err := SlopeToStep(byte(slope))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, step, prev, "slope %d", slope)
		assert.LessOrEqual(t, step, 7)
		prev = step
	}
}

func TestBaudCodes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		code byte
		rate int
	}{
		{1, 1000000},
		{3, 500000},
		{34, 57142},
		{250, 2250000},
		{251, 2500000},
		{252, 3000000},
	}
	for _, tt := range tests {
		rate, err := BaudCodeToRate(tt.code)
		require.NoError(t, err)
		assert.Equal(t, tt.rate, rate, "code %d", tt.code)

		code, err := RateToBaudCode(tt.rate)
		require.NoError(t, err)
		assert.Equal(t, tt.code, code, "rate %d", tt.rate)
	}

	_, err := BaudCodeToRate(253)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = RateToBaudCode(0)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = RateToBaudCode(5000000)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestReturnDelay(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 500, ReturnDelayToMicros(250))
	assert.Equal(t, byte(250), MicrosToReturnDelay(500))
	assert.Equal(t, byte(250), MicrosToReturnDelay(9999))
	assert.Equal(t, byte(0), MicrosToReturnDelay(-3))
	assert.Equal(t, byte(125), MicrosToReturnDelay(251))
}
