// internal/cli/validate.go
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config.yaml>",
		Short: "Check a config file and print its normalized settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(args[0])
			if err != nil {
				return err
			}
			rootOpts.logger().Debug("config valid", "path", args[0])

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "config ok: %s\n", args[0])
			fmt.Fprintf(w, "driver:   %s\n", cfg.Devices.Driver)
			fmt.Fprintf(w, "tick:     %dus\n", cfg.Engine.TickUs)

			ports := []struct {
				name string
				addr int
				port string
			}{
				{"flash", cfg.Devices.Flash.AddrBytes, cfg.Devices.Flash.Port},
				{"fram", cfg.Devices.FRAM.AddrBytes, cfg.Devices.FRAM.Port},
				{"extcap-fram", cfg.Devices.ExtCapFRAM.AddrBytes, cfg.Devices.ExtCapFRAM.Port},
			}
			for _, p := range ports {
				port := p.port
				if port == "" {
					port = "-"
				}
				fmt.Fprintf(w, "%-12s port=%s addr_bytes=%d\n", p.name+":", port, p.addr)
			}

			if s := cfg.Status; s != nil {
				fmt.Fprintf(w, "status:   %s unit=%d base=%d name=%q\n", s.Endpoint, s.UnitID, s.BaseSlot, s.DeviceName)
			} else {
				fmt.Fprintln(w, "status:   disabled")
			}
			if a := cfg.Archive; a != nil {
				fmt.Fprintf(w, "archive:  %s\n", a.Database)
			} else {
				fmt.Fprintln(w, "archive:  disabled")
			}
			return nil
		},
	}
}
