// Copyright 2026 The OpenRover Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package dynamixel

import (
	"fmt"
	"math"
)

// Fixed scalings shared by both servo families. Values come from the
// Robotis control table documentation.
const (
	// rpmPerVelocityUnit is the moving-speed register step size.
	rpmPerVelocityUnit = 0.11443

	// MaxAngularVelocity is the absolute device ceiling in rad/s,
	// the 10-bit magnitude at full scale.
	MaxAngularVelocity = 1023 * rpmPerVelocityUnit * (2 * math.Pi) / 60

	// velocityDirectionBit marks clockwise rotation in speed words.
	velocityDirectionBit = 1 << 10

	// torqueUnitsPerPercent scales torque registers (0-1023 = 0-100%).
	torqueUnitsPerPercent = 10.23

	// voltsPerUnit scales the voltage registers.
	voltsPerUnit = 0.1

	// ampsPerCurrentUnit scales the current register around its 2048
	// zero offset.
	ampsPerCurrentUnit = 0.0045
	currentZeroOffset  = 2048

	// accelPerUnit is rad/s^2 per goal-acceleration register unit.
	accelPerUnit = 8.583
)

// VelocityToWord encodes a signed angular velocity in rad/s as a
// moving-speed word: a 10-bit magnitude plus a direction bit for
// negative (clockwise) rotation. Zero stays zero, which the device
// interprets as "run at the maximum available speed" in joint mode.
func VelocityToWord(v float64) uint16 {
	word := uint16(0)
	if v < 0 {
		v = -v
		word = velocityDirectionBit
	}
	rpm := v * 60 / (2 * math.Pi)
	units := math.Round(rpm / rpmPerVelocityUnit)
	if units > 1023 {
		units = 1023
	}
	return word | uint16(units)
}

// WordToVelocity decodes a moving-speed word into signed rad/s. The
// zero word round-trips to zero, preserving its special meaning.
func WordToVelocity(w uint16) float64 {
	rpm := float64(w&0x3FF) * rpmPerVelocityUnit
	v := rpm * (2 * math.Pi) / 60
	if w&velocityDirectionBit != 0 {
		v = -v
	}
	return v
}

// TorquePercentToWord converts a torque percentage (0-100) to register
// units, clamped to the register's native width.
func TorquePercentToWord(pct float64) uint16 {
	units := math.Round(pct * torqueUnitsPerPercent)
	if units < 0 {
		units = 0
	}
	if units > 1023 {
		units = 1023
	}
	return uint16(units)
}

// WordToTorquePercent converts torque register units to a percentage.
func WordToTorquePercent(w uint16) float64 {
	return float64(w&0x3FF) / torqueUnitsPerPercent
}

// WordToLoad decodes the present-load register into a signed
// percentage of maximum torque. The sign follows the rotation
// direction after applying the profile's direction flip.
func WordToLoad(w uint16, flipped bool) float64 {
	load := float64(w&0x3FF) / 10.24
	ccw := w&velocityDirectionBit == 0
	if ccw != flipped {
		return load
	}
	return -load
}

// ByteToVolts converts the voltage registers to volts.
func ByteToVolts(b byte) float64 {
	return float64(b) * voltsPerUnit
}

// VoltsToByte converts volts to voltage register units.
func VoltsToByte(v float64) byte {
	return byte(math.Round(v / voltsPerUnit))
}

// WordToAmps decodes the current register, which is offset-binary
// around 2048, into signed amps.
func WordToAmps(w uint16) float64 {
	return ampsPerCurrentUnit * (float64(w) - currentZeroOffset)
}

// AccelToByte converts rad/s^2 to goal-acceleration units, clamped to
// the register range. Zero means "no acceleration control".
func AccelToByte(a float64) byte {
	units := math.Round(a / accelPerUnit)
	if units < 0 {
		units = 0
	}
	if units > 254 {
		units = 254
	}
	return byte(units)
}

// ByteToAccel converts goal-acceleration units to rad/s^2.
func ByteToAccel(b byte) float64 {
	return float64(b) * accelPerUnit
}

// PID gain scalings for the MX family position loop.

// GainsFromRaw converts the D/I/P gain registers to controller
// coefficients.
func GainsFromRaw(d, i, p byte) (kd, ki, kp float64) {
	kd = float64(d) * 4 / 1000
	ki = float64(i) * 1000 / 2048
	kp = float64(p) / 8
	return kd, ki, kp
}

// GainsToRaw converts controller coefficients back to register bytes.
// Each register saturates at 254. Negative coefficients have no
// register representation and fail with ErrOutOfRange.
func GainsToRaw(kd, ki, kp float64) (d, i, p byte, err error) {
	if kd < 0 || ki < 0 || kp < 0 {
		return 0, 0, 0, fmt.Errorf("%w: negative gain", ErrOutOfRange)
	}
	return gainByte(kd * 1000 / 4), gainByte(ki * 2048 / 1000), gainByte(kp * 8), nil
}

func gainByte(v float64) byte {
	u := math.Round(v)
	if u > 254 {
		u = 254
	}
	return byte(u)
}

// complianceSlopes maps stiffness step 1 (stiffest) through 7 (most
// compliant) to the raw slope byte the RX family stores.
var complianceSlopes = [...]byte{1: 2, 2: 4, 3: 8, 4: 16, 5: 32, 6: 64, 7: 128}

// StepToSlope converts a stiffness step (1-7) to the raw compliance
// slope byte.
func StepToSlope(step int) (byte, error) {
	if step < 1 || step > 7 {
		return 0, fmt.Errorf("%w: compliance step %d", ErrOutOfRange, step)
	}
	return complianceSlopes[step], nil
}

// SlopeToStep quantizes a raw compliance slope byte to its stiffness
// step. The device stores the written value verbatim, so reads must
// accept any byte up to the largest encodable slope; each value maps
// to the step whose slope band contains it.
func SlopeToStep(slope byte) (int, error) {
	if slope > 253 {
		return 0, fmt.Errorf("%w: compliance slope %d", ErrOutOfRange, slope)
	}
	step := 1
	for slope >= 4 {
		slope >>= 1
		step++
	}
	return step, nil
}

// BaudCodeToRate converts a baud-rate register code to bits per
// second. Codes up to 249 divide the 2 Mbps base clock; codes 250-252
// select fixed high-speed rates.
func BaudCodeToRate(code byte) (int, error) {
	switch {
	case code < 250:
		return 2000000 / (int(code) + 1), nil
	case code == 250:
		return 2250000, nil
	case code == 251:
		return 2500000, nil
	case code == 252:
		return 3000000, nil
	default:
		return 0, fmt.Errorf("%w: baud code %d", ErrOutOfRange, code)
	}
}

// RateToBaudCode converts bits per second to the nearest register
// code, preferring the fixed high-speed codes when they match exactly.
func RateToBaudCode(rate int) (byte, error) {
	switch rate {
	case 2250000:
		return 250, nil
	case 2500000:
		return 251, nil
	case 3000000:
		return 252, nil
	}
	if rate <= 0 {
		return 0, fmt.Errorf("%w: baud rate %d", ErrOutOfRange, rate)
	}
	code := int(math.Round(2000000/float64(rate))) - 1
	if code < 0 || code > 249 {
		return 0, fmt.Errorf("%w: baud rate %d", ErrOutOfRange, rate)
	}
	return byte(code), nil
}

// ReturnDelayToMicros converts the return-delay register to
// microseconds.
func ReturnDelayToMicros(b byte) int {
	return 2 * int(b)
}

// MicrosToReturnDelay converts microseconds to the return-delay
// register, clamped to the representable 0-500 range. Odd values
// round down to the 2 microsecond grid.
func MicrosToReturnDelay(us int) byte {
	if us < 0 {
		us = 0
	}
	if us > 500 {
		us = 500
	}
	return byte(us / 2)
}
