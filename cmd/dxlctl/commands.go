// Copyright 2026 The OpenRover Project Contributors.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	dynamixel "github.com/openrover/go-dynamixel"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan [id...]",
	Short: "Find servos on the bus",
	RunE: func(_ *cobra.Command, args []string) error {
		candidates := make([]byte, 0, len(args))
		for _, arg := range args {
			id, err := parseID(arg)
			if err != nil {
				return err
			}
			candidates = append(candidates, id)
		}

		bus, err := openBus(candidates...)
		if err != nil {
			return err
		}
		defer func() { _ = bus.Close() }()

		for _, id := range bus.IDs() {
			s, err := bus.Servo(id)
			if err != nil {
				return err
			}
			fw, err := bus.FirmwareVersion(id)
			if err != nil {
				return err
			}
			fmt.Printf("id %3d  %-8s %s family  firmware %d\n",
				id, s.Model, s.Profile.Family, fw)
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <id>",
	Short: "Read a servo's runtime state",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		bus, err := openBus(id)
		if err != nil {
			return err
		}
		defer func() { _ = bus.Close() }()

		angle, err := bus.PresentAngle(id)
		if err != nil {
			return err
		}
		vel, err := bus.PresentVelocity(id)
		if err != nil {
			return err
		}
		load, err := bus.PresentLoad(id)
		if err != nil {
			return err
		}
		volts, err := bus.PresentVoltage(id)
		if err != nil {
			return err
		}
		temp, err := bus.PresentTemperature(id)
		if err != nil {
			return err
		}
		moving, err := bus.IsMoving(id)
		if err != nil {
			return err
		}

		fmt.Printf("angle    %+.3f rad\n", angle)
		fmt.Printf("velocity %+.3f rad/s\n", vel)
		fmt.Printf("load     %+.1f %%\n", load)
		fmt.Printf("voltage  %.1f V\n", volts)
		fmt.Printf("temp     %d C\n", temp)
		fmt.Printf("moving   %v\n", moving)
		return nil
	},
}

var (
	moveVelocity float64
	moveWait     bool
)

var moveCmd = &cobra.Command{
	Use:   "move <id> <radians>",
	Short: "Command a servo to an angle",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		angle, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("bad angle %q: %w", args[1], err)
		}

		bus, err := openBus(id)
		if err != nil {
			return err
		}
		defer func() { _ = bus.Close() }()

		var opts []dynamixel.MoveOption
		if cmd.Flags().Changed("velocity") {
			opts = append(opts, dynamixel.AtVelocity(moveVelocity))
		}
		if moveWait {
			opts = append(opts, dynamixel.UntilStopped(context.Background()))
		}

		adj, err := bus.MoveTo(id, angle, opts...)
		if err != nil {
			return err
		}
		if adj.Angle {
			fmt.Fprintln(os.Stderr, "angle clamped to servo limits")
		}
		if adj.Velocity {
			fmt.Fprintln(os.Stderr, "velocity clamped to servo ceiling")
		}
		return nil
	},
}

var setIDCmd = &cobra.Command{
	Use:   "set-id <old> <new>",
	Short: "Reassign a servo's bus id",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		oldID, err := parseID(args[0])
		if err != nil {
			return err
		}
		newID, err := parseID(args[1])
		if err != nil {
			return err
		}

		bus, err := openBus(oldID)
		if err != nil {
			return err
		}
		defer func() { _ = bus.Close() }()

		if err := bus.ReassignID(oldID, newID); err != nil {
			return err
		}
		fmt.Printf("servo %d is now id %d\n", oldID, newID)
		return nil
	},
}

var wheelSpeed float64

var wheelCmd = &cobra.Command{
	Use:   "wheel <id> (on|off|speed)",
	Short: "Manage continuous-rotation mode",
	Long: `Manage continuous-rotation (wheel) mode.

  wheel 5 on           zero the angle limits, enabling free rotation
  wheel 5 off          restore the calibrated angle limits
  wheel 5 speed -1.5   spin at -1.5 rad/s (requires wheel mode)`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		bus, err := openBus(id)
		if err != nil {
			return err
		}
		defer func() { _ = bus.Close() }()

		switch args[1] {
		case "on":
			return bus.EnableContinuous(id)
		case "off":
			return bus.DisableContinuous(id)
		case "speed":
			if len(args) != 3 {
				return fmt.Errorf("speed requires a rad/s value")
			}
			v, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("bad speed %q: %w", args[2], err)
			}
			continuous, err := bus.IsContinuous(id)
			if err != nil {
				return err
			}
			if !continuous {
				return fmt.Errorf("servo %d is not in wheel mode, run: %s wheel %d on",
					id, cmd.Root().Name(), id)
			}
			adj, err := bus.Spin(id, v)
			if err != nil {
				return err
			}
			if adj.Velocity {
				fmt.Fprintln(os.Stderr, "speed clamped to servo ceiling")
			}
			return nil
		default:
			return fmt.Errorf("unknown wheel action %q", args[1])
		}
	},
}

var resetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset <id>",
	Short: "Restore a servo's factory defaults",
	Long: `Restore a servo to factory defaults.

This rewrites the whole control table, including the servo's id (back
to 1) and baud rate, so the bus will need a re-scan at the factory
settings afterwards.`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		if !resetYes {
			fmt.Printf("reset servo %d to factory defaults? [y/N] ", id)
			line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
			if answer := strings.ToLower(strings.TrimSpace(line)); answer != "y" && answer != "yes" {
				fmt.Println("aborted")
				return nil
			}
		}

		bus, err := openBus(id)
		if err != nil {
			return err
		}
		defer func() { _ = bus.Close() }()
		return bus.Reset(id)
	},
}

func init() {
	moveCmd.Flags().Float64Var(&moveVelocity, "velocity", 0, "speed in rad/s (default: servo ceiling)")
	moveCmd.Flags().BoolVar(&moveWait, "wait", false, "block until the servo stops moving")
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "skip the confirmation prompt")

	rootCmd.AddCommand(scanCmd, statusCmd, moveCmd, setIDCmd, wheelCmd, resetCmd)
}
