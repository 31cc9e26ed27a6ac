package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	forge "github.com/zero-day-ai/exercise-forge"
	"github.com/zero-day-ai/exercise-forge/gate"
	"github.com/zero-day-ai/exercise-forge/stage"
)

// runFlags are shared by every command that calls the generator.
type runFlags struct {
	packetPath string
	workDir    string
}

func (r *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&r.packetPath, "packet", "p", "", "context packet JSON file, or - for stdin")
	cmd.Flags().StringVarP(&r.workDir, "workdir", "w", ".", "sandbox working directory for the generator")
}

func stageCmd(flags *globalFlags) *cobra.Command {
	rf := &runFlags{}
	cmd := &cobra.Command{
		Use:   "stage <name>",
		Short: "Run one generation stage and print its verdict",
		Long: `Run one generation stage against a context packet. An accepted payload is
printed as JSON. A rejection prints the machine error shape and exits 2.`,
		Args: cobra.ExactArgs(1),
		RunE: withApp(flags, func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			in, err := readPacket(cmd, rf.packetPath)
			if err != nil {
				return err
			}
			p, err := a.pipeline(rf.workDir)
			if err != nil {
				return err
			}

			res, err := p.RunStage(ctx, stage.Name(args[0]), in)
			if err != nil {
				return err
			}
			payload, rerr := gate.Accept(res, args[0])
			if rerr != nil {
				if werr := writeJSON(cmd.OutOrStdout(), gate.ToMachineError(res)); werr != nil {
					return werr
				}
				return rerr
			}
			return writeJSON(cmd.OutOrStdout(), payload)
		}),
	}
	rf.register(cmd)
	return cmd
}

func setupCmd(flags *globalFlags) *cobra.Command {
	rf := &runFlags{}
	var (
		req    forge.ExerciseRequest
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Scaffold an exercise and expand its starter, tests, and lesson",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			in, err := readPacket(cmd, rf.packetPath)
			if err != nil {
				return err
			}
			p, err := a.pipeline(rf.workDir)
			if err != nil {
				return err
			}

			req.Base = in
			ex, err := p.SetupExercise(ctx, req)
			if err != nil {
				return err
			}
			if outDir != "" {
				written, err := emitExercise(outDir, ex)
				if err != nil {
					return err
				}
				a.logger.Info("exercise written", "dir", outDir, "files", written)
			}
			return writeJSON(cmd.OutOrStdout(), ex)
		}),
	}
	rf.register(cmd)
	cmd.Flags().IntVar(&req.StarterCap, "starter-cap", 0, "starter loop iteration cap (default: from depth)")
	cmd.Flags().IntVar(&req.TestCap, "test-cap", 0, "test loop iteration cap (default: from depth)")
	cmd.Flags().IntVar(&req.LessonCap, "lesson-cap", 0, "lesson loop iteration cap (default: from depth)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "write starter, test, and lesson files into this directory")
	return cmd
}

func planCmd(flags *globalFlags) *cobra.Command {
	rf := &runFlags{}
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Plan a lesson and author an exercise pack from it",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			in, err := readPacket(cmd, rf.packetPath)
			if err != nil {
				return err
			}
			p, err := a.pipeline(rf.workDir)
			if err != nil {
				return err
			}
			plan, err := p.PlanExercise(ctx, in)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), plan)
		}),
	}
	rf.register(cmd)
	return cmd
}

func coachCmd(flags *globalFlags) *cobra.Command {
	rf := &runFlags{}
	cmd := &cobra.Command{
		Use:   "coach",
		Short: "Produce a hint pack for a learner's latest attempt",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			in, err := readPacket(cmd, rf.packetPath)
			if err != nil {
				return err
			}
			p, err := a.pipeline(rf.workDir)
			if err != nil {
				return err
			}
			hints, err := p.Coach(ctx, in)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), hints)
		}),
	}
	rf.register(cmd)
	return cmd
}

func reviewCmd(flags *globalFlags) *cobra.Command {
	rf := &runFlags{}
	var strict bool
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Review a learner submission",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			in, err := readPacket(cmd, rf.packetPath)
			if err != nil {
				return err
			}
			p, err := a.pipeline(rf.workDir)
			if err != nil {
				return err
			}
			report, err := p.Review(ctx, in)
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if strict && !report.Passed() {
				return fmt.Errorf("review did not pass: score %g", report.Score)
			}
			return nil
		}),
	}
	rf.register(cmd)
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when the review does not pass")
	return cmd
}
