package commands

import (
	"fmt"

	"github.com/soypat/gpix/compute"
	"github.com/spf13/cobra"
)

var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Show the compute device and its limits",
	Args:  cobra.NoArgs,
	RunE:  runDevice,
}

func init() {
	rootCmd.AddCommand(deviceCmd)
}

func runDevice(cmd *cobra.Command, args []string) error {
	dev, err := compute.Acquire()
	if err != nil {
		return err
	}
	defer dev.Release()
	l := dev.Limits()
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Adapter: %s\n", dev.Name())
	fmt.Fprintf(w, "   Max buffer size:              %d\n", l.MaxBufferSize)
	fmt.Fprintf(w, "   Max storage binding size:     %d\n", l.MaxStorageBufferBindingSize)
	fmt.Fprintf(w, "   Max workgroups per dimension: %d\n", l.MaxComputeWorkgroupsPerDimension)
	fmt.Fprintf(w, "   Max invocations per group:    %d\n", l.MaxComputeInvocationsPerWorkgroup)
	fmt.Fprintf(w, "   Max texture dimension:        %d\n", l.MaxTextureDimension2D)
	return nil
}
