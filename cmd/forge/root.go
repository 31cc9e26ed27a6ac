package main

import (
	"github.com/spf13/cobra"
)

func rootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Generate programming exercises with a sandboxed code generator",
		Long: `forge builds context packets, runs generation stages through the codex CLI,
and accepts only output that parses, validates against its contract, and
passes policy. Rejections are appended to the audit log.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags.register(cmd)

	cmd.AddCommand(
		stageCmd(flags),
		setupCmd(flags),
		planCmd(flags),
		coachCmd(flags),
		reviewCmd(flags),
		validateCmd(flags),
		schemasCmd(flags),
		auditCmd(flags),
		doctorCmd(flags),
	)

	return cmd
}
