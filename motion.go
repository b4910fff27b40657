// Copyright 2026 The OpenRover Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package dynamixel

import (
	"context"
	"fmt"
	"time"
)

// Adjusted reports which parts of a motion command were clamped to
// the servo's calibrated limits before being sent.
type Adjusted struct {
	Angle    bool
	Velocity bool
}

// Clamped reports whether any part of the command was adjusted.
func (a Adjusted) Clamped() bool { return a.Angle || a.Velocity }

type moveOptions struct {
	ctx      context.Context
	velocity float64
	poll     time.Duration
	hasVel   bool
	wait     bool
}

// MoveOption configures a MoveTo call.
type MoveOption func(*moveOptions)

// AtVelocity caps the move at v rad/s instead of the profile ceiling.
func AtVelocity(v float64) MoveOption {
	return func(o *moveOptions) {
		o.velocity = v
		o.hasVel = true
	}
}

// UntilStopped blocks the call after the write until the servo's
// moving flag clears. The loop polls forever on a stalled servo
// unless ctx carries a deadline or cancellation.
func UntilStopped(ctx context.Context) MoveOption {
	return func(o *moveOptions) {
		o.wait = true
		o.ctx = ctx
	}
}

// WithPollInterval sets the moving-flag poll period for UntilStopped.
func WithPollInterval(d time.Duration) MoveOption {
	return func(o *moveOptions) { o.poll = d }
}

// MoveTo commands servo id to the given angle in radians. Without
// AtVelocity the servo runs at its profile's velocity ceiling. Angle
// and velocity are clamped to the calibrated limits; the returned
// Adjusted says whether either was. Goal position and moving speed
// are written in one directed frame, so the servo starts moving with
// both in effect.
func (b *Bus) MoveTo(id byte, angle float64, opts ...MoveOption) (Adjusted, error) {
	var o moveOptions
	for _, opt := range opts {
		opt(&o)
	}

	b.mu.Lock()
	adj, err := b.move(id, angle, &o)
	b.mu.Unlock()
	if err != nil || !o.wait {
		return adj, err
	}

	return adj, b.WaitUntilStopped(o.ctx, id, o.poll)
}

// move converts and writes one position/velocity command. Caller
// holds b.mu.
func (b *Bus) move(id byte, angle float64, o *moveOptions) (Adjusted, error) {
	s, err := b.servo(id)
	if err != nil {
		return Adjusted{}, err
	}

	angle, angleClamped := s.Profile.ClipAngle(angle)
	vel := s.Profile.VelocityCeiling()
	if o.hasVel {
		vel = o.velocity
	}
	vel, velClamped := s.Profile.ClipVelocity(vel)
	adj := Adjusted{Angle: angleClamped, Velocity: velClamped}

	row := goalRow(s.Profile.AngleToTicks(angle), jointSpeedWord(vel))
	info, err := RegGoalPosition.Info()
	if err != nil {
		return adj, err
	}
	return adj, b.writeBytes(id, info.Addr, row)
}

// MoveMany commands several servos in one broadcast sync-write so
// they start moving together. velocities may be nil (every servo runs
// at its ceiling); otherwise all three slices must be the same
// length. Per-servo clamping is reported in the returned slice,
// aligned with ids.
//
// The broadcast carries the same weak guarantee as SyncWrite: no
// servo replies, so acceptance is unverified.
func (b *Bus) MoveMany(ids []byte, angles []float64, velocities []float64) ([]Adjusted, error) {
	if len(ids) != len(angles) {
		return nil, fmt.Errorf("%w: %d ids, %d angles", ErrArityMismatch, len(ids), len(angles))
	}
	if velocities != nil && len(velocities) != len(ids) {
		return nil, fmt.Errorf("%w: %d ids, %d velocities", ErrArityMismatch, len(ids), len(velocities))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	adjs := make([]Adjusted, len(ids))
	rows := make(map[byte][]byte, len(ids))
	for i, id := range ids {
		s, err := b.servo(id)
		if err != nil {
			return nil, err
		}
		angle, angleClamped := s.Profile.ClipAngle(angles[i])
		vel := s.Profile.VelocityCeiling()
		if velocities != nil {
			vel = velocities[i]
		}
		vel, velClamped := s.Profile.ClipVelocity(vel)
		adjs[i] = Adjusted{Angle: angleClamped, Velocity: velClamped}
		rows[id] = goalRow(s.Profile.AngleToTicks(angle), jointSpeedWord(vel))
	}
	if len(rows) != len(ids) {
		return nil, fmt.Errorf("%w: duplicate ids", ErrArityMismatch)
	}

	return adjs, b.syncWrite(RegGoalPosition, 4, rows)
}

// goalRow packs position and speed words for the contiguous
// goal-position/moving-speed register pair.
func goalRow(ticks, speed uint16) []byte {
	posLo, posHi := wordToBytes(ticks)
	velLo, velHi := wordToBytes(speed)
	return []byte{posLo, posHi, velLo, velHi}
}

// jointSpeedWord encodes a joint-mode speed, where direction is
// decided by the goal position and only the magnitude matters.
func jointSpeedWord(v float64) uint16 {
	if v < 0 {
		v = -v
	}
	return VelocityToWord(v)
}

// WaitUntilStopped polls the moving flag until it clears or ctx is
// done. poll <= 0 selects a 50ms period. There is no default timeout:
// a disconnected servo keeps the loop alive until ctx says stop.
func (b *Bus) WaitUntilStopped(ctx context.Context, id byte, poll time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if poll <= 0 {
		poll = 50 * time.Millisecond
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		moving, err := b.ReadRegister(id, RegMoving)
		if err != nil {
			return err
		}
		if moving == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// EnableContinuous puts servo id in continuous-rotation mode by
// zeroing both angle limit registers in one directed write. Position
// targets are meaningless afterwards; use Spin.
func (b *Bus) EnableContinuous(id byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	info, err := RegCWAngleLimit.Info()
	if err != nil {
		return err
	}
	return b.writeBytes(id, info.Addr, []byte{0, 0, 0, 0})
}

// DisableContinuous restores the angle limits from the servo's
// calibrated profile, returning it to bounded positioning.
func (b *Bus) DisableContinuous(id byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, err := b.servo(id)
	if err != nil {
		return err
	}

	cw := s.Profile.AngleToTicks(s.Profile.MinAngle)
	ccw := s.Profile.AngleToTicks(s.Profile.MaxAngle)
	if cw > ccw {
		cw, ccw = ccw, cw
	}
	// A zero clockwise limit with a non-zero counter-clockwise one
	// would read back as a half-continuous state, so bounded mode
	// keeps the lower limit off the encoder's first tick.
	if cw == 0 {
		cw = 1
	}
	cwLo, cwHi := wordToBytes(cw)
	ccwLo, ccwHi := wordToBytes(ccw)

	info, err := RegCWAngleLimit.Info()
	if err != nil {
		return err
	}
	return b.writeBytes(id, info.Addr, []byte{cwLo, cwHi, ccwLo, ccwHi})
}

// IsContinuous reads both angle limits and reports whether the servo
// is in continuous-rotation mode. The limits are either both zero or
// both non-zero under correct use of this API; a half-zeroed pair is
// reported as ErrInconsistentAngleLimits.
func (b *Bus) IsContinuous(id byte) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	info, err := RegCWAngleLimit.Info()
	if err != nil {
		return false, err
	}
	data, err := b.readBytes(id, info.Addr, 4)
	if err != nil {
		return false, err
	}
	cw := bytesToWord(data[0], data[1])
	ccw := bytesToWord(data[2], data[3])
	switch {
	case cw == 0 && ccw == 0:
		return true, nil
	case cw != 0 && ccw != 0:
		return false, nil
	default:
		return false, fmt.Errorf("servo %d: %w: cw=%d ccw=%d", id, ErrInconsistentAngleLimits, cw, ccw)
	}
}

// Spin commands a continuous-rotation servo to turn at v rad/s,
// clamped to the profile ceiling. Sign selects direction. Zero stops
// the servo: in wheel mode the zero word means no torque toward
// motion, not maximum speed.
func (b *Bus) Spin(id byte, v float64) (Adjusted, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, err := b.servo(id)
	if err != nil {
		return Adjusted{}, err
	}
	v, clamped := s.Profile.ClipVelocity(v)
	if s.Profile.FlipDirection {
		v = -v
	}
	return Adjusted{Velocity: clamped}, b.writeRegister(id, RegMovingSpeed, int(VelocityToWord(v)))
}
