package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Read current temperatures, setpoints and energy usage",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	dev, bus, err := openDevice()
	if err != nil {
		return err
	}
	defer bus.Close()

	status, err := dev.GetStatus()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	printReading := func(label string, v *int) {
		if v != nil {
			fmt.Printf("%-10s %d°F\n", label, *v)
		} else {
			fmt.Printf("%-10s --\n", label)
		}
	}
	printReading("Indoor:", status.IndoorTemp)
	printReading("Outdoor:", status.OutdoorTemp)
	printReading("Heat set:", status.HeatSetpoint)
	printReading("Cool set:", status.CoolSetpoint)

	daily, _ := dev.GetDailyEnergy()
	yearly, _ := dev.GetYearlyEnergy()
	printDaily(daily)
	printYearly(yearly)

	return nil
}
