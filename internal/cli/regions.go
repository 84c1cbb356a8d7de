// internal/cli/regions.go
package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tamzrod/nvstore/internal/layout"
	"github.com/tamzrod/nvstore/internal/record"
	"github.com/tamzrod/nvstore/internal/simdev"
)

// NewRegionsCommand creates the regions command.
func NewRegionsCommand(rootOpts *RootOptions) *cobra.Command {
	var framSize uint32

	cmd := &cobra.Command{
		Use:   "regions",
		Short: "Print the fixed Flash and FRAM address map",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := layout.Validate(framSize); err != nil {
				return fmt.Errorf("layout: %w", err)
			}
			rootOpts.logger().Debug("layout valid", "fram_size", framSize)
			return writeRegions(cmd.OutOrStdout())
		},
	}

	cmd.Flags().Uint32Var(&framSize, "fram-size", simdev.DefaultFRAMSize, "on-board FRAM size in bytes")

	return cmd
}

func writeRegions(w io.Writer) error {
	fmt.Fprintf(w, "%-16s %5s %5s %7s %5s\n", "REGION", "START", "END", "SECTORS", "SLOTS")
	for _, r := range layout.FlashRegions {
		fmt.Fprintf(w, "%-16s %5s %5s %7d %5d\n",
			r.Name,
			fmt.Sprintf("%03X", r.Start),
			fmt.Sprintf("%03X", r.End),
			r.Sectors(),
			r.Slots,
		)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-16s %-6s %7s %5s %9s\n", "RECORD", "DEVICE", "ADDR", "WORDS", "SECONDARY")

	records := append([]layout.Record(nil), layout.FRAMRecords...)
	records = append(records, layout.AFECalFlash, layout.ADCHCalFlash, layout.ADCLCalFlash, layout.InjCalFlash)

	for _, r := range records {
		secondary := "-"
		if r.Redundant {
			secondary = fmt.Sprintf("0x%05X", r.Addr+record.SecondaryOffset)
		}
		_, err := fmt.Fprintf(w, "%-16s %-6s %7s %5d %9s\n",
			r.Name,
			r.Device,
			fmt.Sprintf("0x%05X", r.Addr),
			r.Words,
			secondary,
		)
		if err != nil {
			return err
		}
	}
	return nil
}
