package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/victorjacobs/go-infinity/infinity"
)

var energyCmd = &cobra.Command{
	Use:   "energy",
	Short: "Read daily and yearly energy usage",
	RunE:  runEnergy,
}

func init() {
	rootCmd.AddCommand(energyCmd)
}

func runEnergy(cmd *cobra.Command, args []string) error {
	dev, bus, err := openDevice()
	if err != nil {
		return err
	}
	defer bus.Close()

	daily, dailyErr := dev.GetDailyEnergy()
	yearly, yearlyErr := dev.GetYearlyEnergy()
	if dailyErr != nil && yearlyErr != nil {
		return dailyErr
	}
	if len(daily) == 0 && yearly == nil {
		fmt.Println("No energy data available")
		return nil
	}

	printDaily(daily)
	printYearly(yearly)

	return nil
}

func printDaily(days []infinity.EnergyDay) {
	if len(days) == 0 {
		return
	}

	labels := []string{"Yesterday", "2 days ago"}
	fmt.Printf("\n%12s  %8s  %8s  %6s  %5s  %6s\n", "Energy", "HP heat", "Cooling", "Elec", "Fan", "Total")
	fmt.Println(strings.Repeat("-", 52))
	for i, day := range days {
		if i >= len(labels) {
			break
		}
		fmt.Printf("%12s  %7d  %8d  %6d  %5d  %5d kWh\n",
			labels[i], day.HPHeat, day.Cooling, day.ElecHeat, day.Fan, day.Total())
	}
}

func printYearly(yearly *infinity.YearlyEnergy) {
	if yearly == nil {
		return
	}

	year := time.Now().Year()
	current := yearly.Current
	previous := yearly.Previous
	currentTotal := current.HPHeat + current.ElecHeat + current.Cooling
	previousTotal := previous.HPHeat + previous.ElecHeat + previous.Cooling + previous.Fan

	fmt.Printf("\n%12s  %8s  %8s  %6s  %5s  %6s\n", "Yearly", "HP heat", "Cooling", "Elec", "Fan", "Total")
	fmt.Println(strings.Repeat("-", 52))
	fmt.Printf("%12s  %7d  %8d  %6d  %5s  %5d kWh\n",
		fmt.Sprintf("%d YTD", year), current.HPHeat, current.Cooling, current.ElecHeat, "--", currentTotal)
	fmt.Printf("%12s  %7d  %8d  %6d  %5d  %5d kWh\n",
		fmt.Sprintf("%d", year-1), previous.HPHeat, previous.Cooling, previous.ElecHeat, previous.Fan, previousTotal)
}
