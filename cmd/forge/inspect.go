package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/exercise-forge/audit"
	"github.com/zero-day-ai/exercise-forge/gate"
	"github.com/zero-day-ai/exercise-forge/generator"
	"github.com/zero-day-ai/exercise-forge/health"
	"github.com/zero-day-ai/exercise-forge/packet"
	"github.com/zero-day-ai/exercise-forge/policy"
	"github.com/zero-day-ai/exercise-forge/schema"
	"github.com/zero-day-ai/exercise-forge/stage"
)

func loadRegistry(dir string) (*schema.Registry, error) {
	registry, err := schema.BuiltinRegistry()
	if err != nil {
		return nil, err
	}
	if dir != "" {
		if err := registry.LoadDir(dir); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func validateCmd(flags *globalFlags) *cobra.Command {
	var packetPath, schemasDir string
	cmd := &cobra.Command{
		Use:   "validate <schema> <file>",
		Short: "Check generator output against a contract and its policy rules",
		Long: `Extract the JSON object from generator output (fenced or bare), validate it
against the named contract, and evaluate the contract's policy rules. Rules
that inspect the learner's attempts need --packet.`,
		Args: cobra.ExactArgs(2),
		RunE: withApp(flags, func(_ context.Context, a *app, cmd *cobra.Command, args []string) error {
			schemaName := args[0]
			registry, err := loadRegistry(schemasDir)
			if err != nil {
				return err
			}
			raw, err := readInput(cmd, args[1])
			if err != nil {
				return err
			}
			var pk packet.Packet
			if packetPath != "" {
				in, err := readPacket(cmd, packetPath)
				if err != nil {
					return err
				}
				pk = packet.Build(in)
			}

			res, err := checkPayload(schema.NewValidator(registry), policy.NewEngine(), schemaName, string(raw), pk)
			if err != nil {
				return err
			}
			if _, rerr := gate.Accept(res, "validate"); rerr != nil {
				if werr := writeJSON(cmd.OutOrStdout(), gate.ToMachineError(res)); werr != nil {
					return werr
				}
				return rerr
			}
			a.logger.Debug("payload accepted", "schema", schemaName)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "ok: %s\n", schemaName)
			return err
		}),
	}
	cmd.Flags().StringVarP(&packetPath, "packet", "p", "", "context packet for policy rules that read it")
	cmd.Flags().StringVar(&schemasDir, "schemas-dir", "", "directory of extra contract files")
	return cmd
}

// checkPayload judges raw output the way a stage run does.
func checkPayload(v *schema.Validator, engine *policy.Engine, schemaName, raw string, pk packet.Packet) (stage.Result, error) {
	res, err := stage.Judge(v, engine, schemaName, raw, pk)
	if err != nil {
		return stage.Result{}, err
	}
	res.Stage = "validate"
	res.SchemaName = schemaName
	return res, nil
}

func schemasCmd(flags *globalFlags) *cobra.Command {
	var schemasDir string
	cmd := &cobra.Command{
		Use:   "schemas [name]",
		Short: "List output contracts, or print one",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(flags, func(_ context.Context, _ *app, cmd *cobra.Command, args []string) error {
			registry, err := loadRegistry(schemasDir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				data, err := registry.MarshalIndented(args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, string(data))
				return err
			}

			engine := policy.NewEngine()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SCHEMA\tRULES")
			for _, name := range registry.Names() {
				fmt.Fprintf(tw, "%s\t%d\n", name, len(engine.RuleIDs(name)))
			}
			return tw.Flush()
		}),
	}
	cmd.Flags().StringVar(&schemasDir, "schemas-dir", "", "directory of extra contract files")
	return cmd
}

func auditCmd(flags *globalFlags) *cobra.Command {
	var (
		tail      int
		stageArg  string
		asJSON    bool
		fromRedis bool
		follow    bool
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recorded stage rejections",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			if (fromRedis || follow) && a.mirror == nil {
				return errors.New("audit.redis is not configured")
			}

			var (
				entries []audit.Entry
				err     error
			)
			if fromRedis {
				n := int64(tail)
				if n <= 0 {
					n = math.MaxInt64
				}
				entries, err = a.mirror.Recent(ctx, n)
				// Recent is newest first; print oldest first like the file.
				slices.Reverse(entries)
			} else {
				entries, err = audit.ReadFile(a.auditPath())
			}
			if err != nil {
				return err
			}

			entries = filterEntries(entries, stage.Name(stageArg), tail)
			out := cmd.OutOrStdout()
			if err := printEntries(out, entries, asJSON); err != nil {
				return err
			}
			if !follow {
				return nil
			}

			ch, err := a.mirror.Subscribe(ctx)
			if err != nil {
				return err
			}
			for e := range ch {
				if stageArg != "" && e.Stage != stage.Name(stageArg) {
					continue
				}
				if err := printEntries(out, []audit.Entry{e}, asJSON); err != nil {
					return err
				}
			}
			return nil
		}),
	}
	cmd.Flags().IntVarP(&tail, "tail", "n", 20, "show at most this many recent entries (0 for all)")
	cmd.Flags().StringVar(&stageArg, "stage", "", "only show rejections of this stage")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print entries as JSON lines")
	cmd.Flags().BoolVar(&fromRedis, "redis", false, "read recent entries from the Redis mirror")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "stream new entries from the Redis mirror until interrupted")
	return cmd
}

// filterEntries keeps entries for name (all when empty) and then the last
// tail of them (all when tail is not positive).
func filterEntries(entries []audit.Entry, name stage.Name, tail int) []audit.Entry {
	var out []audit.Entry
	for _, e := range entries {
		if name == "" || e.Stage == name {
			out = append(out, e)
		}
	}
	if tail > 0 && len(out) > tail {
		out = out[len(out)-tail:]
	}
	return out
}

func printEntries(w io.Writer, entries []audit.Entry, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		for _, e := range entries {
			if err := enc.Encode(e); err != nil {
				return err
			}
		}
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\tattempt=%d\t%s\n",
			e.Timestamp.Format(time.RFC3339), e.Stage, e.Reason, e.PacketID, e.RetryAttempt, entryDetail(e))
	}
	return tw.Flush()
}

func entryDetail(e audit.Entry) string {
	switch {
	case len(e.Violations) > 0:
		return e.Violations[0].Rule + ": " + e.Violations[0].Reason
	case len(e.Errors) > 0:
		return e.Errors[0]
	default:
		return e.Details
	}
}

func doctorCmd(flags *globalFlags) *cobra.Command {
	var (
		minVersion string
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the generator binary, state root, audit log, and Redis mirror",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			exe := generator.NewCodex(a.cfg.Generator.CodexOptions()).Executable()

			var generatorStatus health.Status
			if minVersion != "" {
				generatorStatus = health.GeneratorVersionCheck(ctx, exe, minVersion)
			} else {
				generatorStatus = health.GeneratorCheck(exe)
			}

			var pinger health.Pinger
			if a.mirror != nil {
				pinger = a.mirror
			}

			checks := []health.Status{
				generatorStatus,
				health.StateRootCheck(a.stateRoot()),
				health.AuditLogCheck(a.auditPath()),
				health.RedisCheck(ctx, pinger),
			}
			overall := health.Combine(checks...)

			out := cmd.OutOrStdout()
			if asJSON {
				if err := writeJSON(out, map[string]any{"status": overall, "checks": checks}); err != nil {
					return err
				}
			} else {
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				for _, c := range checks {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Name, c.Status, c.Message)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(out, "overall: %s\n", overall.Status)
			}

			if overall.IsUnhealthy() {
				return fmt.Errorf("doctor: %s", overall.Message)
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&minVersion, "min-version", "", "minimum generator version, e.g. 0.30.0")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}
