package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/victorjacobs/go-infinity/infinity"
)

var setHeatCmd = &cobra.Command{
	Use:   "set-heat <temp>",
	Short: "Set the heat setpoint (55-85°F)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSet(args[0], "Heat")
	},
}

var setCoolCmd = &cobra.Command{
	Use:   "set-cool <temp>",
	Short: "Set the cool setpoint (60-90°F)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSet(args[0], "Cool")
	},
}

func init() {
	rootCmd.AddCommand(setHeatCmd)
	rootCmd.AddCommand(setCoolCmd)
}

func runSet(arg string, label string) error {
	target, err := strconv.Atoi(arg)
	if err != nil {
		return fmt.Errorf("temperature must be a number, got %q", arg)
	}

	var offset int
	if label == "Heat" {
		if target < infinity.HeatSetpointMin || target > infinity.HeatSetpointMax {
			return fmt.Errorf("heat setpoint must be %d-%d°F", infinity.HeatSetpointMin, infinity.HeatSetpointMax)
		}
		offset = infinity.HeatSetpointByte
	} else {
		if target < infinity.CoolSetpointMin || target > infinity.CoolSetpointMax {
			return fmt.Errorf("cool setpoint must be %d-%d°F", infinity.CoolSetpointMin, infinity.CoolSetpointMax)
		}
		offset = infinity.CoolSetpointByte
	}

	dev, bus, err := openDevice()
	if err != nil {
		return err
	}
	defer bus.Close()

	profile, err := dev.ReadComfortProfile()
	if err != nil {
		return fmt.Errorf("could not read current setpoints: %w", err)
	}
	current := int(profile[offset])
	if current == target {
		fmt.Printf("%s already at %d°F\n", label, target)
		return nil
	}

	fmt.Printf("%s: %d°F -> %d°F, this takes about half a minute\n", label, current, target)

	verified, err := dev.SetSetpoint(target, offset)
	if err != nil {
		return fmt.Errorf("setpoint write failed: %w", err)
	}
	if !verified {
		fmt.Println("Could not confirm the new setpoint, the thermostat may need more time")
		return nil
	}

	fmt.Printf("Done, %s setpoint confirmed at %d°F\n", label, target)
	return nil
}
