// Copyright 2026 The OpenRover Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package serial

import (
	"strings"

	dynamixel "github.com/openrover/go-dynamixel"
	"go.bug.st/serial/enumerator"
)

// usbIDs of serial adapters commonly wired to a Dynamixel bus. The
// U2D2 and USB2Dynamixel are FTDI based; CP210x boards are popular on
// homemade interfaces.
var usbIDs = map[string][]string{
	"0403": {"6001", "6010", "6014", "6015"}, // FTDI
	"10C4": {"EA60", "EA70"},                 // Silicon Labs CP210x
}

// DetectPorts lists serial ports that look like Dynamixel bus
// adapters, known USB ids first, then any other USB serial port.
// Finding a port does not prove a live bus; run Scan to confirm.
func DetectPorts() ([]string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, dynamixel.NewTransportError("enumerate ports", "", err, dynamixel.ErrorTypePermanent)
	}

	var known, other []string
	for _, p := range ports {
		if !p.IsUSB {
			continue
		}
		if matchesKnownAdapter(p.VID, p.PID) {
			known = append(known, p.Name)
		} else {
			other = append(other, p.Name)
		}
	}
	return append(known, other...), nil
}

func matchesKnownAdapter(vid, pid string) bool {
	pids, ok := usbIDs[strings.ToUpper(vid)]
	if !ok {
		return false
	}
	for _, p := range pids {
		if strings.EqualFold(p, pid) {
			return true
		}
	}
	return false
}
