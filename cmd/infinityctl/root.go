package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/victorjacobs/go-infinity/config"
	"github.com/victorjacobs/go-infinity/infinity"
	"github.com/victorjacobs/go-infinity/logging"
)

var (
	portName string
	baudRate int
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "infinityctl",
	Short: "Carrier Infinity Touch thermostat control over the ABCD bus",
	Long: `Infinityctl talks to a Carrier Infinity Touch system over its RS-485
service bus through a USB serial adapter, posing as a SAM (System
Access Module).

Without --port the first USB serial adapter found is used; run
"infinityctl ports" to see what is connected.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device (auto-detected when omitted)")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", infinity.DefaultBaudRate, "Baud rate")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log bus activity")
}

// openDevice dials the bus for one command invocation. The caller closes
// the returned bus.
func openDevice() (*infinity.Device, *infinity.Bus, error) {
	name := portName
	if name == "" {
		var err error
		if name, err = infinity.FindPort(); err != nil {
			return nil, nil, err
		}
		fmt.Printf("Using %v\n\n", name)
	}

	bus, err := infinity.OpenBus(name, baudRate)
	if err != nil {
		return nil, nil, err
	}

	level := "warn"
	if verbose {
		level = "debug"
	}
	logger := logging.New(config.Logging{Level: level, Format: "console"}).Sugar()

	return infinity.NewDevice(bus, logger), bus, nil
}
