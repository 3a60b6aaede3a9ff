package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/victorjacobs/go-infinity/infinity"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports, USB adapters first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := infinity.ListPorts()
		if err != nil {
			return err
		}
		if len(ports) == 0 {
			fmt.Println("No serial ports found")
			return nil
		}

		for _, port := range ports {
			fmt.Println(port)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(portsCmd)
}
