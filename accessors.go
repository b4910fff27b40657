// Copyright 2026 The OpenRover Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package dynamixel

import (
	"fmt"
	"math"
)

// Register-level accessors. Each is one directed exchange; nothing is
// cached, so staleness is bounded by the bus round trip.

// ModelNumber reads the servo's model code.
func (b *Bus) ModelNumber(id byte) (uint16, error) {
	v, err := b.ReadRegister(id, RegModelNumber)
	return uint16(v), err
}

// FirmwareVersion reads the firmware revision byte.
func (b *Bus) FirmwareVersion(id byte) (int, error) {
	return b.ReadRegister(id, RegFirmwareVersion)
}

// PresentAngle reads the current position in radians, calibrated
// through the servo's profile.
func (b *Bus) PresentAngle(id byte) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, err := b.servo(id)
	if err != nil {
		return 0, err
	}
	v, err := b.readRegister(id, RegPresentPosition)
	if err != nil {
		return 0, err
	}
	return s.Profile.TicksToAngle(uint16(v)), nil
}

// PresentVelocity reads the current rotation speed in signed rad/s.
func (b *Bus) PresentVelocity(id byte) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, err := b.servo(id)
	if err != nil {
		return 0, err
	}
	v, err := b.readRegister(id, RegPresentSpeed)
	if err != nil {
		return 0, err
	}
	vel := WordToVelocity(uint16(v))
	if s.Profile.FlipDirection {
		vel = -vel
	}
	return vel, nil
}

// PresentAngleVelocity reads the position and speed registers in
// one exchange. The two words are adjacent in the control table, so
// a single read returns a consistent snapshot of both.
func (b *Bus) PresentAngleVelocity(id byte) (angle, velocity float64, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, err := b.servo(id)
	if err != nil {
		return 0, 0, err
	}
	info, err := RegPresentPosition.Info()
	if err != nil {
		return 0, 0, err
	}
	raw, err := b.readBytes(id, info.Addr, 4)
	if err != nil {
		return 0, 0, err
	}
	angle = s.Profile.TicksToAngle(bytesToWord(raw[0], raw[1]))
	velocity = WordToVelocity(bytesToWord(raw[2], raw[3]))
	if s.Profile.FlipDirection {
		velocity = -velocity
	}
	return angle, velocity, nil
}

// PresentLoad reads the current load as a signed percentage of
// maximum torque, positive in the profile's positive direction.
func (b *Bus) PresentLoad(id byte) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, err := b.servo(id)
	if err != nil {
		return 0, err
	}
	v, err := b.readRegister(id, RegPresentLoad)
	if err != nil {
		return 0, err
	}
	return WordToLoad(uint16(v), s.Profile.FlipDirection), nil
}

// PresentVoltage reads the supply voltage in volts.
func (b *Bus) PresentVoltage(id byte) (float64, error) {
	v, err := b.ReadRegister(id, RegPresentVoltage)
	return ByteToVolts(byte(v)), err
}

// PresentTemperature reads the internal temperature in degrees
// Celsius.
func (b *Bus) PresentTemperature(id byte) (int, error) {
	return b.ReadRegister(id, RegPresentTemperature)
}

// PresentCurrent reads the motor current in signed amps. MX family
// only.
func (b *Bus) PresentCurrent(id byte) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.requireFamily(id, FamilyMX); err != nil {
		return 0, err
	}
	v, err := b.readRegister(id, RegCurrent)
	if err != nil {
		return 0, err
	}
	return WordToAmps(uint16(v)), nil
}

// IsMoving reports whether the servo is travelling to a goal.
func (b *Bus) IsMoving(id byte) (bool, error) {
	v, err := b.ReadRegister(id, RegMoving)
	return v != 0, err
}

// SetTorqueEnable powers the servo's torque output on or off.
func (b *Bus) SetTorqueEnable(id byte, on bool) error {
	return b.WriteRegister(id, RegTorqueEnable, boolByte(on))
}

// TorqueEnabled reads the torque output state.
func (b *Bus) TorqueEnabled(id byte) (bool, error) {
	v, err := b.ReadRegister(id, RegTorqueEnable)
	return v != 0, err
}

// SetTorqueLimit caps the runtime torque output at a percentage of
// maximum.
func (b *Bus) SetTorqueLimit(id byte, pct float64) error {
	return b.WriteRegister(id, RegTorqueLimit, int(TorquePercentToWord(pct)))
}

// TorqueLimit reads the runtime torque cap as a percentage.
func (b *Bus) TorqueLimit(id byte) (float64, error) {
	v, err := b.ReadRegister(id, RegTorqueLimit)
	return WordToTorquePercent(uint16(v)), err
}

// SetMaxTorque writes the EEPROM torque ceiling as a percentage. It
// becomes the torque-limit default at power-up.
func (b *Bus) SetMaxTorque(id byte, pct float64) error {
	return b.WriteRegister(id, RegMaxTorque, int(TorquePercentToWord(pct)))
}

// MaxTorque reads the EEPROM torque ceiling as a percentage.
func (b *Bus) MaxTorque(id byte) (float64, error) {
	v, err := b.ReadRegister(id, RegMaxTorque)
	return WordToTorquePercent(uint16(v)), err
}

// SetTorqueControlEnable switches an MX servo between position control
// and direct torque control.
func (b *Bus) SetTorqueControlEnable(id byte, on bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.requireFamily(id, FamilyMX); err != nil {
		return err
	}
	return b.writeRegister(id, RegTorqueControlEnable, boolByte(on))
}

// SetGoalTorque commands a torque target as a signed percentage of
// maximum, for MX servos in torque control mode. Sign selects
// direction through the same magnitude-plus-direction-bit encoding as
// the speed registers.
func (b *Bus) SetGoalTorque(id byte, pct float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.requireFamily(id, FamilyMX); err != nil {
		return err
	}
	word := TorquePercentToWord(math.Abs(pct))
	if pct < 0 {
		word |= velocityDirectionBit
	}
	return b.writeRegister(id, RegGoalTorque, int(word))
}

// SetLED switches the status LED.
func (b *Bus) SetLED(id byte, on bool) error {
	return b.WriteRegister(id, RegLED, boolByte(on))
}

// LED reads the status LED state.
func (b *Bus) LED(id byte) (bool, error) {
	v, err := b.ReadRegister(id, RegLED)
	return v != 0, err
}

// SetAngleLimits writes both angle limit registers from angles in
// radians, in one directed write so the pair can never be observed
// half applied. Angles are clamped to the profile first.
func (b *Bus) SetAngleLimits(id byte, minAngle, maxAngle float64) error {
	if minAngle >= maxAngle {
		return fmt.Errorf("%w: min %.3f >= max %.3f", ErrOutOfRange, minAngle, maxAngle)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	s, err := b.servo(id)
	if err != nil {
		return err
	}
	minAngle, _ = s.Profile.ClipAngle(minAngle)
	maxAngle, _ = s.Profile.ClipAngle(maxAngle)
	cw := s.Profile.AngleToTicks(minAngle)
	ccw := s.Profile.AngleToTicks(maxAngle)
	if cw > ccw {
		cw, ccw = ccw, cw
	}
	// Zero is reserved for continuous-rotation mode.
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

// AngleLimits reads both angle limit registers as radians.
func (b *Bus) AngleLimits(id byte) (minAngle, maxAngle float64, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, err := b.servo(id)
	if err != nil {
		return 0, 0, err
	}
	info, err := RegCWAngleLimit.Info()
	if err != nil {
		return 0, 0, err
	}
	data, err := b.readBytes(id, info.Addr, 4)
	if err != nil {
		return 0, 0, err
	}
	a := s.Profile.TicksToAngle(bytesToWord(data[0], data[1]))
	c := s.Profile.TicksToAngle(bytesToWord(data[2], data[3]))
	return math.Min(a, c), math.Max(a, c), nil
}

// SetReturnDelay sets the gap in microseconds between a servo
// receiving an instruction and answering it. Clamped to the register
// range and rounded down to its 2us grid.
func (b *Bus) SetReturnDelay(id byte, us int) error {
	return b.WriteRegister(id, RegReturnDelay, int(MicrosToReturnDelay(us)))
}

// ReturnDelay reads the reply delay in microseconds.
func (b *Bus) ReturnDelay(id byte) (int, error) {
	v, err := b.ReadRegister(id, RegReturnDelay)
	return ReturnDelayToMicros(byte(v)), err
}

// SetTemperatureLimit sets the overheat alarm threshold in degrees
// Celsius.
func (b *Bus) SetTemperatureLimit(id byte, deg int) error {
	return b.WriteRegister(id, RegTemperatureLimit, deg)
}

// TemperatureLimit reads the overheat alarm threshold.
func (b *Bus) TemperatureLimit(id byte) (int, error) {
	return b.ReadRegister(id, RegTemperatureLimit)
}

// SetVoltageLimits sets the supply voltage alarm window in volts.
func (b *Bus) SetVoltageLimits(id byte, low, high float64) error {
	if low >= high {
		return fmt.Errorf("%w: low %.1fV >= high %.1fV", ErrOutOfRange, low, high)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	info, err := RegVoltageLowLimit.Info()
	if err != nil {
		return err
	}
	return b.writeBytes(id, info.Addr, []byte{VoltsToByte(low), VoltsToByte(high)})
}

// VoltageLimits reads the supply voltage alarm window in volts.
func (b *Bus) VoltageLimits(id byte) (low, high float64, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	info, err := RegVoltageLowLimit.Info()
	if err != nil {
		return 0, 0, err
	}
	data, err := b.readBytes(id, info.Addr, 2)
	if err != nil {
		return 0, 0, err
	}
	return ByteToVolts(data[0]), ByteToVolts(data[1]), nil
}

// SetStatusReturnLevel sets which instructions a servo answers:
// 0 none, 1 reads only, 2 everything. Levels below 2 break the
// directed-write confirmation this package relies on; use with care.
func (b *Bus) SetStatusReturnLevel(id byte, level int) error {
	if level < 0 || level > 2 {
		return fmt.Errorf("%w: status return level %d", ErrOutOfRange, level)
	}
	return b.WriteRegister(id, RegStatusReturnLevel, level)
}

// StatusReturnLevel reads the reply verbosity level.
func (b *Bus) StatusReturnLevel(id byte) (int, error) {
	return b.ReadRegister(id, RegStatusReturnLevel)
}

// SetBaudRate writes the baud-rate register from bits per second. The
// servo switches immediately; the transport must be reconfigured to
// match before any further exchange.
func (b *Bus) SetBaudRate(id byte, bps int) error {
	code, err := RateToBaudCode(bps)
	if err != nil {
		return err
	}
	return b.WriteRegister(id, RegBaudRate, int(code))
}

// BaudRate reads the configured baud rate in bits per second.
func (b *Bus) BaudRate(id byte) (int, error) {
	v, err := b.ReadRegister(id, RegBaudRate)
	if err != nil {
		return 0, err
	}
	return BaudCodeToRate(byte(v))
}

// SetGains writes the MX position loop coefficients in one directed
// write across the contiguous D/I/P registers.
func (b *Bus) SetGains(id byte, kd, ki, kp float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.requireFamily(id, FamilyMX); err != nil {
		return err
	}
	d, i, p, err := GainsToRaw(kd, ki, kp)
	if err != nil {
		return err
	}
	info, err := RegGainD.Info()
	if err != nil {
		return err
	}
	return b.writeBytes(id, info.Addr, []byte{d, i, p})
}

// Gains reads the MX position loop coefficients.
func (b *Bus) Gains(id byte) (kd, ki, kp float64, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.requireFamily(id, FamilyMX); err != nil {
		return 0, 0, 0, err
	}
	info, err := RegGainD.Info()
	if err != nil {
		return 0, 0, 0, err
	}
	data, err := b.readBytes(id, info.Addr, 3)
	if err != nil {
		return 0, 0, 0, err
	}
	kd, ki, kp = GainsFromRaw(data[0], data[1], data[2])
	return kd, ki, kp, nil
}

// SetComplianceSlope sets both direction slopes of an RX servo from a
// stiffness step (1 stiffest through 7 most compliant).
func (b *Bus) SetComplianceSlope(id byte, step int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.requireFamily(id, FamilyRX); err != nil {
		return err
	}
	slope, err := StepToSlope(step)
	if err != nil {
		return err
	}
	info, err := RegComplianceSlopeCW.Info()
	if err != nil {
		return err
	}
	return b.writeBytes(id, info.Addr, []byte{slope, slope})
}

// ComplianceSlope reads the servo's stiffness step. Both direction
// registers are read; a mismatch reports the clockwise one, matching
// what SetComplianceSlope writes.
func (b *Bus) ComplianceSlope(id byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.requireFamily(id, FamilyRX); err != nil {
		return 0, err
	}
	v, err := b.readRegister(id, RegComplianceSlopeCW)
	if err != nil {
		return 0, err
	}
	return SlopeToStep(byte(v))
}

// SetComplianceMargin sets both direction margins, the dead band in
// ticks around the goal position inside which no torque is applied.
func (b *Bus) SetComplianceMargin(id byte, ticks int) error {
	if ticks < 0 || ticks > 0xFF {
		return fmt.Errorf("%w: compliance margin %d", ErrOutOfRange, ticks)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.requireFamily(id, FamilyRX); err != nil {
		return err
	}
	info, err := RegComplianceMarginCW.Info()
	if err != nil {
		return err
	}
	return b.writeBytes(id, info.Addr, []byte{byte(ticks), byte(ticks)})
}

// LockEEPROM write-protects the EEPROM registers until the next power
// cycle. The device offers no unlock instruction.
func (b *Bus) LockEEPROM(id byte) error {
	return b.WriteRegister(id, RegLock, 1)
}

// EEPROMLocked reads the EEPROM write-protect flag.
func (b *Bus) EEPROMLocked(id byte) (bool, error) {
	v, err := b.ReadRegister(id, RegLock)
	return v != 0, err
}

// SetPunch sets the minimum drive current applied inside the
// compliance dead band.
func (b *Bus) SetPunch(id byte, v int) error {
	return b.WriteRegister(id, RegPunch, v)
}

// Punch reads the minimum drive current setting.
func (b *Bus) Punch(id byte) (int, error) {
	return b.ReadRegister(id, RegPunch)
}

// SetGoalAcceleration sets the acceleration ramp in rad/s^2 for MX
// servos. Zero disables the ramp.
func (b *Bus) SetGoalAcceleration(id byte, a float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.requireFamily(id, FamilyMX); err != nil {
		return err
	}
	return b.writeRegister(id, RegGoalAcceleration, int(AccelToByte(a)))
}

// requireFamily checks that id is registered and belongs to family.
// Caller holds b.mu.
func (b *Bus) requireFamily(id byte, family Family) error {
	s, err := b.servo(id)
	if err != nil {
		return err
	}
	if s.Profile.Family != family {
		return fmt.Errorf("%w: %s register on %s servo %d",
			ErrRegisterAccess, family, s.Profile.Family, id)
	}
	return nil
}

func boolByte(on bool) int {
	if on {
		return 1
	}
	return 0
}
