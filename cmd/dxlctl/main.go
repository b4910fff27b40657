// Copyright 2026 The OpenRover Project Contributors.
// SPDX-License-Identifier: Apache-2.0

// dxlctl is a command line tool for poking Dynamixel protocol 1.0
// servos on a serial bus: discovery, motion commands, register access
// and id management.
package main

import (
	"fmt"
	"os"
	"time"

	dynamixel "github.com/openrover/go-dynamixel"
	"github.com/openrover/go-dynamixel/transport/serial"
	"github.com/spf13/cobra"
)

var (
	portName string
	baudRate int
	timeout  time.Duration
	debug    bool
)

var rootCmd = &cobra.Command{
	Use:   "dxlctl",
	Short: "Dynamixel servo bus tool",
	Long: `dxlctl - control Dynamixel protocol 1.0 servos over a serial bus.

Without --port the first plausible USB serial adapter is used.

Examples:
  dxlctl scan
  dxlctl move 5 1.57 --velocity 2.0 --wait
  dxlctl set-id 5 9`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", serial.DefaultBaudRate, "baud rate")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", time.Second, "exchange timeout")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log wire traffic")
}

// openBus opens the configured (or first detected) port and scans the
// given candidate ids, or the whole bus when none are given.
func openBus(candidates ...byte) (*dynamixel.Bus, error) {
	if debug {
		dynamixel.SetDebugEnabled(true)
	}
	name := portName
	if name == "" {
		ports, err := serial.DetectPorts()
		if err != nil {
			return nil, err
		}
		if len(ports) == 0 {
			return nil, fmt.Errorf("no serial adapters found, use --port")
		}
		name = ports[0]
		fmt.Fprintf(os.Stderr, "using port %s\n", name)
	}

	t, err := serial.Open(name, baudRate)
	if err != nil {
		return nil, err
	}
	bus, err := dynamixel.New(t, dynamixel.WithTimeout(timeout))
	if err != nil {
		_ = t.Close()
		return nil, err
	}
	if _, err := bus.Scan(candidates...); err != nil {
		_ = bus.Close()
		return nil, err
	}
	return bus, nil
}

func parseID(arg string) (byte, error) {
	var id int
	if _, err := fmt.Sscanf(arg, "%d", &id); err != nil {
		return 0, fmt.Errorf("bad id %q: %w", arg, err)
	}
	if id < 0 || id > dynamixel.MaxID {
		return 0, fmt.Errorf("id %d outside [0, %d]", id, dynamixel.MaxID)
	}
	return byte(id), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
