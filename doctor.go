package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mrsingh-rishi/meeting-report/config"
)

func newDoctorCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and backend credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configFile)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return runDoctor(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}
}
