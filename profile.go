// Copyright 2026 The OpenRover Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package dynamixel

import (
	"fmt"
	"math"
)

// Family selects a servo hardware family with its encoder geometry
// and tuning register layout.
type Family int

const (
	// FamilyMX - 12-bit continuous encoder, symmetric angle range,
	// PID gain registers. EX and AX models are close enough to run
	// with these defaults.
	FamilyMX Family = iota
	// FamilyRX - 10-bit encoder covering a 300 degree arc,
	// compliance margin/slope registers.
	FamilyRX
)

func (f Family) String() string {
	switch f {
	case FamilyMX:
		return "MX"
	case FamilyRX:
		return "RX"
	default:
		return fmt.Sprintf("family(%d)", int(f))
	}
}

// familyDefaults is the per-family calibration template. Adding a
// family means adding a row here.
var familyDefaults = map[Family]Profile{
	FamilyMX: {
		Family:         FamilyMX,
		HomeTicks:      0x7FF,
		MaxTicks:       0xFFF,
		RadiansPerTick: 2 * math.Pi / 0xFFF,
		MaxAngle:       math.Pi,
		MinAngle:       -math.Pi,
	},
	FamilyRX: {
		Family:         FamilyRX,
		HomeTicks:      0x200,
		MaxTicks:       0x3FF,
		RadiansPerTick: 300 * math.Pi / 180 / 1024,
		MaxAngle:       150 * math.Pi / 180,
		MinAngle:       -150 * math.Pi / 180,
	},
}

// FamilyForModel maps a model-number register value to its family and
// marketing name. Unlisted model codes fail with ErrUnknownModel.
func FamilyForModel(code uint16) (Family, string, error) {
	names := map[uint16]struct {
		name   string
		family Family
	}{
		29:  {"MX-28", FamilyMX},
		310: {"MX-64", FamilyMX},
		320: {"MX-106", FamilyMX},
		107: {"EX-106+", FamilyMX},
		12:  {"AX-12", FamilyMX},
		18:  {"AX-18", FamilyMX},
		300: {"AX-12W", FamilyMX},
		24:  {"RX-24F", FamilyRX},
		28:  {"RX-28", FamilyRX},
		64:  {"RX-64", FamilyRX},
	}
	m, ok := names[code]
	if !ok {
		return 0, "", fmt.Errorf("%w: code %d", ErrUnknownModel, code)
	}
	return m.family, m.name, nil
}

// Profile carries the per-servo calibration used for every unit
// conversion: encoder geometry, direction sense and the velocity
// ceiling. A MaxVelocity of zero means the absolute device ceiling.
type Profile struct {
	RadiansPerTick float64
	MaxAngle       float64
	MinAngle       float64
	MaxVelocity    float64
	HomeTicks      int
	MaxTicks       int
	Family         Family
	FlipDirection  bool
}

// Override replaces individual Profile fields at construction. Nil
// fields keep the family default.
type Override struct {
	HomeTicks      *int
	MaxTicks       *int
	RadiansPerTick *float64
	MaxAngle       *float64
	MinAngle       *float64
	MaxVelocity    *float64
	FlipDirection  *bool
}

// NewProfile builds a calibration profile from the family template and
// an optional override record. Angle bounds are clamped to what the
// encoder geometry can represent, and a velocity ceiling outside
// [0, MaxAngularVelocity] is normalized to 0 (absolute ceiling).
func NewProfile(family Family, ov *Override) (*Profile, error) {
	tmpl, ok := familyDefaults[family]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownModel, int(family))
	}
	p := tmpl

	if ov != nil {
		if ov.HomeTicks != nil {
			p.HomeTicks = *ov.HomeTicks
		}
		if ov.MaxTicks != nil {
			p.MaxTicks = *ov.MaxTicks
		}
		if ov.RadiansPerTick != nil {
			p.RadiansPerTick = *ov.RadiansPerTick
		}
		if ov.MaxAngle != nil {
			p.MaxAngle = *ov.MaxAngle
		}
		if ov.MinAngle != nil {
			p.MinAngle = *ov.MinAngle
		}
		if ov.MaxVelocity != nil {
			p.MaxVelocity = *ov.MaxVelocity
		}
		if ov.FlipDirection != nil {
			p.FlipDirection = *ov.FlipDirection
		}
	}

	if p.MaxTicks <= 0 || p.RadiansPerTick <= 0 {
		return nil, fmt.Errorf("%w: non-positive encoder geometry", ErrOutOfRange)
	}

	// The encoder cannot report outside [0, MaxTicks], so angle
	// bounds beyond that span are unreachable.
	low := float64(0-p.HomeTicks) * p.RadiansPerTick
	high := float64(p.MaxTicks-p.HomeTicks) * p.RadiansPerTick
	if p.FlipDirection {
		low, high = -high, -low
	}
	p.MinAngle = math.Max(p.MinAngle, low)
	p.MaxAngle = math.Min(p.MaxAngle, high)
	if p.MinAngle >= p.MaxAngle {
		return nil, fmt.Errorf("%w: empty angle range after clamping", ErrOutOfRange)
	}

	if p.MaxVelocity < 0 || p.MaxVelocity > MaxAngularVelocity {
		p.MaxVelocity = 0
	}
	return &p, nil
}

// AngleToTicks converts an angle in radians to an encoder target,
// applying the direction flip and home offset. The result is clamped
// to the encoder range; use ClipAngle first to observe clamping.
func (p *Profile) AngleToTicks(angle float64) uint16 {
	if p.FlipDirection {
		angle = -angle
	}
	ticks := int(math.Round(angle/p.RadiansPerTick)) + p.HomeTicks
	if ticks < 0 {
		ticks = 0
	}
	if ticks > p.MaxTicks {
		ticks = p.MaxTicks
	}
	return uint16(ticks)
}

// TicksToAngle converts an encoder reading back to radians.
func (p *Profile) TicksToAngle(ticks uint16) float64 {
	angle := float64(int(ticks)-p.HomeTicks) * p.RadiansPerTick
	if p.FlipDirection {
		angle = -angle
	}
	return angle
}

// ClipAngle clamps angle into the profile's limits and reports
// whether a clamp occurred. Idempotent.
func (p *Profile) ClipAngle(angle float64) (float64, bool) {
	switch {
	case angle < p.MinAngle:
		return p.MinAngle, true
	case angle > p.MaxAngle:
		return p.MaxAngle, true
	default:
		return angle, false
	}
}

// VelocityCeiling returns the effective speed limit in rad/s.
func (p *Profile) VelocityCeiling() float64 {
	if p.MaxVelocity == 0 {
		return MaxAngularVelocity
	}
	return p.MaxVelocity
}

// ClipVelocity clamps the magnitude of v to the profile's ceiling,
// preserving sign, and reports whether a clamp occurred. Zero passes
// through untouched so its "maximum speed" meaning survives.
func (p *Profile) ClipVelocity(v float64) (float64, bool) {
	ceil := p.VelocityCeiling()
	switch {
	case v > ceil:
		return ceil, true
	case v < -ceil:
		return -ceil, true
	default:
		return v, false
	}
}
