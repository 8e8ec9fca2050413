package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func (a *app) sysinfoCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "sysinfo",
		Short: "Print host CPU information used for reports",
		Args:  noPositionalArgs,
		RunE: func(*cobra.Command, []string) error {
			host := a.host()

			if asJSON {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")

				err := enc.Encode(host)
				if err != nil {
					return fmt.Errorf("encode json: %w", err)
				}

				return nil
			}

			fmt.Fprintf(a.stdout, "Host:      %s\n", host.Hostname)
			fmt.Fprintf(a.stdout, "Platform:  %s/%s\n", host.GOOS, host.GOARCH)
			fmt.Fprintf(a.stdout, "CPU:       %s\n", host.CPUModel)
			fmt.Fprintf(a.stdout, "CPUs:      %d (%d available)\n", host.NumCPU, host.Available)
			fmt.Fprintf(a.stdout, "Features:  %s\n", strings.Join(host.Features, " "))

			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")

	return cmd
}
