// Copyright 2026 The OpenRover Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package dynamixel

import "fmt"

// Register names a fixed-width location in the servo control table.
type Register int

// Control table registers. EEPROM registers persist across power
// cycles; RAM registers reset to defaults. The compliance registers
// (RX family) and the PID gain registers (MX family) share addresses
// 0x1A-0x1D; the profile's family decides which set is meaningful.
const (
	RegModelNumber Register = iota
	RegFirmwareVersion
	RegID
	RegBaudRate
	RegReturnDelay
	RegCWAngleLimit
	RegCCWAngleLimit
	RegTemperatureLimit
	RegVoltageLowLimit
	RegVoltageHighLimit
	RegMaxTorque
	RegStatusReturnLevel
	RegTorqueEnable
	RegLED
	RegComplianceMarginCW
	RegComplianceMarginCCW
	RegComplianceSlopeCW
	RegComplianceSlopeCCW
	RegGainD
	RegGainI
	RegGainP
	RegGoalPosition
	RegMovingSpeed
	RegTorqueLimit
	RegPresentPosition
	RegPresentSpeed
	RegPresentLoad
	RegPresentVoltage
	RegPresentTemperature
	RegMoving
	RegLock
	RegPunch
	RegCurrent
	RegTorqueControlEnable
	RegGoalTorque
	RegGoalAcceleration
)

// Access is a register's permitted access mode.
type Access int

const (
	// AccessRead - register can only be read
	AccessRead Access = 1 << iota
	// AccessWrite - register can only be written
	AccessWrite
	// AccessReadWrite - register supports both
	AccessReadWrite = AccessRead | AccessWrite
)

// RegisterInfo describes one control table entry.
type RegisterInfo struct {
	Name   string
	Addr   byte
	Size   int
	Access Access
}

var registerTable = map[Register]RegisterInfo{
	RegModelNumber:         {"model-number", 0x00, 2, AccessRead},
	RegFirmwareVersion:     {"firmware-version", 0x02, 1, AccessRead},
	RegID:                  {"id", 0x03, 1, AccessReadWrite},
	RegBaudRate:            {"baud-rate", 0x04, 1, AccessReadWrite},
	RegReturnDelay:         {"return-delay", 0x05, 1, AccessReadWrite},
	RegCWAngleLimit:        {"cw-angle-limit", 0x06, 2, AccessReadWrite},
	RegCCWAngleLimit:       {"ccw-angle-limit", 0x08, 2, AccessReadWrite},
	RegTemperatureLimit:    {"temperature-limit", 0x0B, 1, AccessReadWrite},
	RegVoltageLowLimit:     {"voltage-low-limit", 0x0C, 1, AccessReadWrite},
	RegVoltageHighLimit:    {"voltage-high-limit", 0x0D, 1, AccessReadWrite},
	RegMaxTorque:           {"max-torque", 0x0E, 2, AccessReadWrite},
	RegStatusReturnLevel:   {"status-return-level", 0x10, 1, AccessReadWrite},
	RegTorqueEnable:        {"torque-enable", 0x18, 1, AccessReadWrite},
	RegLED:                 {"led", 0x19, 1, AccessReadWrite},
	RegComplianceMarginCW:  {"compliance-margin-cw", 0x1A, 1, AccessReadWrite},
	RegComplianceMarginCCW: {"compliance-margin-ccw", 0x1B, 1, AccessReadWrite},
	RegComplianceSlopeCW:   {"compliance-slope-cw", 0x1C, 1, AccessReadWrite},
	RegComplianceSlopeCCW:  {"compliance-slope-ccw", 0x1D, 1, AccessReadWrite},
	RegGainD:               {"d-gain", 0x1A, 1, AccessReadWrite},
	RegGainI:               {"i-gain", 0x1B, 1, AccessReadWrite},
	RegGainP:               {"p-gain", 0x1C, 1, AccessReadWrite},
	RegGoalPosition:        {"goal-position", 0x1E, 2, AccessReadWrite},
	RegMovingSpeed:         {"moving-speed", 0x20, 2, AccessReadWrite},
	RegTorqueLimit:         {"torque-limit", 0x22, 2, AccessReadWrite},
	RegPresentPosition:     {"present-position", 0x24, 2, AccessRead},
	RegPresentSpeed:        {"present-speed", 0x26, 2, AccessRead},
	RegPresentLoad:         {"present-load", 0x28, 2, AccessRead},
	RegPresentVoltage:      {"present-voltage", 0x2A, 1, AccessRead},
	RegPresentTemperature:  {"present-temperature", 0x2B, 1, AccessRead},
	RegMoving:              {"moving", 0x2E, 1, AccessRead},
	RegLock:                {"lock", 0x2F, 1, AccessReadWrite},
	RegPunch:               {"punch", 0x30, 2, AccessReadWrite},
	RegCurrent:             {"current", 0x44, 2, AccessRead},
	RegTorqueControlEnable: {"torque-control-enable", 0x46, 1, AccessReadWrite},
	RegGoalTorque:          {"goal-torque", 0x47, 2, AccessReadWrite},
	RegGoalAcceleration:    {"goal-acceleration", 0x49, 1, AccessReadWrite},
}

// Info returns the control table entry for r.
func (r Register) Info() (RegisterInfo, error) {
	info, ok := registerTable[r]
	if !ok {
		return RegisterInfo{}, fmt.Errorf("%w: %d", ErrUnknownRegister, int(r))
	}
	return info, nil
}

func (r Register) String() string {
	if info, ok := registerTable[r]; ok {
		return info.Name
	}
	return fmt.Sprintf("register(%d)", int(r))
}

// checkAccess validates that r exists and permits mode.
func checkAccess(r Register, mode Access) (RegisterInfo, error) {
	info, err := r.Info()
	if err != nil {
		return RegisterInfo{}, err
	}
	if info.Access&mode != mode {
		return RegisterInfo{}, fmt.Errorf("%w: %s", ErrRegisterAccess, info.Name)
	}
	return info, nil
}

// wordToBytes splits a 16-bit register value little-endian.
func wordToBytes(v uint16) (lo, hi byte) {
	return byte(v), byte(v >> 8)
}

// bytesToWord joins a little-endian 16-bit register value.
func bytesToWord(lo, hi byte) uint16 {
	return uint16(lo) | uint16(hi)<<8
}
