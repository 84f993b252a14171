package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-rulewalk/internal/audit"
	"github.com/nerrad567/gray-logic-rulewalk/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-rulewalk/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-rulewalk/internal/rules"
	"github.com/nerrad567/gray-logic-rulewalk/internal/walker"
)

// cli carries the persistent flags shared by every subcommand.
type cli struct {
	configPath string
	userID     string
	jsonOutput bool
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "rulewalk",
		Short: "Cycle and trigger automation rules by tag",
		Long: `rulewalk walks every automation rule carrying a tag. For each rule, in
order, it reads the rule status, disables the rule, waits, re-enables it and
triggers it with the given inputs. The first failure stops the walk.

Examples:
  # Walk rules tagged "a", triggering each with name=EXAMPLE
  rulewalk walk --tag a --input name=EXAMPLE

  # Inspect what a walk would touch
  rulewalk list --tag a

  # Show the audit trail of one rule
  rulewalk history --rule night-mode`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "Config file (default $RULEWALK_CONFIG or "+defaultConfigPath+")")
	root.PersistentFlags().StringVar(&c.userID, "user", os.Getenv("USER"), "User recorded in the audit trail")
	root.PersistentFlags().BoolVar(&c.jsonOutput, "json", false, "Print results as JSON")

	root.AddCommand(
		c.newWalkCmd(),
		c.newListCmd(),
		c.newStatusCmd(),
		c.newEnableCmd("enable", true),
		c.newEnableCmd("disable", false),
		c.newRunCmd(),
		c.newHistoryCmd(),
		c.newRunsCmd(),
		c.newRulesCmd(),
		c.newWatchCmd(),
		c.newHealthCmd(),
	)
	return root
}

// withApp loads configuration, wires the application and runs fn.
func (c *cli) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	cfg, path, err := loadConfig(c.configPath)
	if err != nil {
		return err
	}

	log := logging.New(cfg.Logging, version)
	if path != "" {
		log.Debug("configuration loaded", "path", path)
	} else {
		log.Debug("no configuration file, using defaults")
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func (c *cli) printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) newWalkCmd() *cobra.Command {
	var (
		tag                string
		inputs             []string
		delay              time.Duration
		considerConditions bool
		restoreOnAbort     bool
	)

	cmd := &cobra.Command{
		Use:   "walk",
		Short: "Disable, re-enable and trigger every rule carrying a tag",
		Long: `For each rule tagged --tag, in registry order: read its status, disable it,
wait --delay, enable it, then trigger it with the inputs. Registry calls are
never retried and a failure stops the walk. Rules already processed keep their
new state; with --restore-on-abort a rule left disabled is re-enabled.

Flags not given fall back to the walk: section of the config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				wc := a.cfg.Walk
				if !cmd.Flags().Changed("tag") {
					tag = wc.Tag
				}
				if !cmd.Flags().Changed("delay") {
					delay = wc.Delay
				}
				if !cmd.Flags().Changed("consider-conditions") {
					considerConditions = wc.ConsiderConditions
				}
				if !cmd.Flags().Changed("restore-on-abort") {
					restoreOnAbort = wc.RestoreOnAbort
				}
				if tag == "" {
					return errors.New("a tag is required (--tag or walk.tag)")
				}
				in, err := parseInputs(wc.Inputs, inputs)
				if err != nil {
					return err
				}

				w := a.newWalker(walker.Options{
					Delay:              delay,
					ConsiderConditions: considerConditions,
					RestoreOnAbort:     restoreOnAbort,
				}, c.userID)

				report, walkErr := w.Walk(ctx, tag, in)
				if a.metrics != nil {
					a.metrics.WriteWalkSummary(report.Tag, report.Matched, report.Succeeded(),
						walkErr == nil, report.Duration(), report.CompletedAt)
				}

				if err := c.printReport(cmd.OutOrStdout(), report); err != nil {
					return err
				}
				return walkErr
			})
		},
	}

	cmd.Flags().StringVarP(&tag, "tag", "t", "", "Tag selecting the rules to walk")
	cmd.Flags().StringArrayVarP(&inputs, "input", "i", nil, "Trigger input as key=value (repeatable)")
	cmd.Flags().DurationVar(&delay, "delay", walker.DefaultDelay, "Pause between disable and enable")
	cmd.Flags().BoolVar(&considerConditions, "consider-conditions", false, "Ask the registry to evaluate rule conditions on trigger")
	cmd.Flags().BoolVar(&restoreOnAbort, "restore-on-abort", false, "Re-enable a rule left disabled by a failed step")
	return cmd
}

type reportJSON struct {
	WalkID     string        `json:"walk_id"`
	Tag        string        `json:"tag"`
	Matched    int           `json:"matched"`
	Succeeded  int           `json:"succeeded"`
	DurationMS int64         `json:"duration_ms"`
	Rules      []outcomeJSON `json:"rules"`
}

type outcomeJSON struct {
	UID       string   `json:"uid"`
	Name      string   `json:"name,omitempty"`
	Status    string   `json:"status,omitempty"`
	Completed []string `json:"completed"`
	Error     string   `json:"error,omitempty"`
	Restored  bool     `json:"restored,omitempty"`
}

func (c *cli) printReport(w io.Writer, r *walker.Report) error {
	if c.jsonOutput {
		out := reportJSON{
			WalkID:     r.WalkID,
			Tag:        r.Tag,
			Matched:    r.Matched,
			Succeeded:  r.Succeeded(),
			DurationMS: r.Duration().Milliseconds(),
			Rules:      make([]outcomeJSON, 0, len(r.Rules)),
		}
		for _, o := range r.Rules {
			oj := outcomeJSON{UID: o.UID, Name: o.Name, Completed: make([]string, 0, len(o.Completed)), Restored: o.Restored}
			if o.Status.Status != "" {
				oj.Status = o.Status.String()
			}
			for _, s := range o.Completed {
				oj.Completed = append(oj.Completed, string(s))
			}
			if o.Err != nil {
				oj.Error = o.Err.Error()
			}
			out.Rules = append(out.Rules, oj)
		}
		return c.printJSON(w, out)
	}

	fmt.Fprintf(w, "walk %s  tag=%s  matched=%d  succeeded=%d  took=%s\n",
		r.WalkID, r.Tag, r.Matched, r.Succeeded(), r.Duration().Round(time.Millisecond))
	if len(r.Rules) == 0 {
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RULE\tSTATUS\tRESULT")
	for _, o := range r.Rules {
		result := "ok"
		if o.Err != nil {
			result = "failed: " + o.Err.Error()
			if o.Restored {
				result += " (re-enabled)"
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", o.UID, o.Status, result)
	}
	return tw.Flush()
}

func (c *cli) newListCmd() *cobra.Command {
	var tag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rules carrying a tag",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				if !cmd.Flags().Changed("tag") {
					tag = a.cfg.Walk.Tag
				}
				reg, err := a.registry(ctx)
				if err != nil {
					return err
				}
				list, err := reg.GetByTag(ctx, tag)
				if err != nil {
					return err
				}
				return c.printRules(cmd.OutOrStdout(), list)
			})
		},
	}
	cmd.Flags().StringVarP(&tag, "tag", "t", "", "Tag to list (default walk.tag)")
	return cmd
}

func (c *cli) printRules(w io.Writer, list []rules.Rule) error {
	if c.jsonOutput {
		if list == nil {
			list = []rules.Rule{}
		}
		return c.printJSON(w, list)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "UID\tSTATUS\tTAGS\tNAME")
	for _, r := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.UID, r.Status, strings.Join(r.Tags, ","), r.Name)
	}
	return tw.Flush()
}

func (c *cli) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status UID",
		Short: "Show a rule's status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				reg, err := a.registry(ctx)
				if err != nil {
					return err
				}
				info, err := reg.GetStatusInfo(ctx, args[0])
				if err != nil {
					return err
				}
				if c.jsonOutput {
					return c.printJSON(cmd.OutOrStdout(), info)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", args[0], info)
				return nil
			})
		},
	}
}

func (c *cli) newEnableCmd(name string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   name + " UID",
		Short: strings.ToUpper(name[:1]) + name[1:] + " a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				reg, err := a.registry(ctx)
				if err != nil {
					return err
				}
				if err := reg.SetEnabled(ctx, args[0], enabled); err != nil {
					return err
				}
				a.recordAction(ctx, name, args[0], c.userID, nil)
				fmt.Fprintf(cmd.OutOrStdout(), "%s %sd\n", args[0], name)
				return nil
			})
		},
	}
}

func (c *cli) newRunCmd() *cobra.Command {
	var (
		inputs             []string
		considerConditions bool
	)

	cmd := &cobra.Command{
		Use:   "run UID",
		Short: "Trigger a single rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				in, err := parseInputs(nil, inputs)
				if err != nil {
					return err
				}
				reg, err := a.registry(ctx)
				if err != nil {
					return err
				}
				if err := reg.RunNow(ctx, args[0], considerConditions, in); err != nil {
					return err
				}
				a.recordAction(ctx, string(walker.StepRunNow), args[0], c.userID, map[string]any{
					"consider_conditions": considerConditions,
					"inputs":              in,
				})
				fmt.Fprintf(cmd.OutOrStdout(), "%s triggered\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringArrayVarP(&inputs, "input", "i", nil, "Trigger input as key=value (repeatable)")
	cmd.Flags().BoolVar(&considerConditions, "consider-conditions", false, "Ask the registry to evaluate rule conditions")
	return cmd
}

func (c *cli) newHistoryCmd() *cobra.Command {
	var filter audit.Filter

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the audit trail of walks and rule commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				if filter.EntityID != "" {
					filter.EntityType = audit.EntityTypeRule
				}
				res, err := a.audit.List(ctx, filter)
				if err != nil {
					return err
				}
				if c.jsonOutput {
					return c.printJSON(cmd.OutOrStdout(), res)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "TIME\tRULE\tACTION\tOUTCOME\tWALK")
				for _, e := range res.Entries {
					outcome, _ := e.Details["outcome"].(string) //nolint:errcheck // absent for single-rule commands
					if outcome == "" {
						outcome = "ok"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
						e.CreatedAt.Local().Format(time.DateTime), e.EntityID, e.Action, outcome, e.WalkID())
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d of %d entries\n", len(res.Entries), res.Total)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&filter.EntityID, "rule", "", "Only entries for this rule UID")
	cmd.Flags().StringVar(&filter.WalkID, "walk", "", "Only entries of this walk")
	cmd.Flags().StringVar(&filter.Action, "action", "", "Only this step or command (e.g. disable, run_now)")
	cmd.Flags().IntVar(&filter.Limit, "limit", 50, "Maximum entries to show (max 200)")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "Entries to skip")
	return cmd
}

func (c *cli) newRunsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs UID",
		Short: "Show recorded triggers of a local rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				if a.local == nil {
					return errLocalOnly
				}
				runs, err := a.local.Runs(ctx, args[0], limit)
				if err != nil {
					return err
				}
				if c.jsonOutput {
					return c.printJSON(cmd.OutOrStdout(), runs)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "TIME\tRUN\tSKIPPED\tINPUTS")
				for _, r := range runs {
					in, err := json.Marshal(r.Inputs)
					if err != nil {
						in = []byte("?")
					}
					fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", r.TriggeredAt.Local().Format(time.DateTime), r.ID, r.Skipped, in)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum runs to show (max 100)")
	return cmd
}

func (c *cli) newRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage rules in the local registry",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "import FILE",
		Short: "Create or update local rules from a YAML file",
		Long: `Reads a YAML file of the form

  rules:
    - uid: night-mode
      name: Night mode
      tags: [a, evening]
      enabled: true
      conditions:
        - input: name
          equals: EXAMPLE

and upserts every rule into the local registry. Unknown UIDs are created,
known UIDs replaced.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				if a.local == nil {
					return errLocalOnly
				}
				list, err := rules.LoadFile(args[0])
				if err != nil {
					return err
				}
				// Resolving through the locator loads the registry cache.
				if _, err := a.registry(ctx); err != nil {
					return err
				}
				res, err := a.local.Import(ctx, list)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d rules (%d created, %d updated)\n",
					res.Created+res.Updated, res.Created, res.Updated)
				return nil
			})
		},
	})
	return cmd
}

func (c *cli) newWatchCmd() *cobra.Command {
	var walkID string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow walk step events on the MQTT bus",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				if a.bus == nil {
					return fmt.Errorf("watch needs the MQTT bus: %w", mqtt.ErrNotConnected)
				}

				topic := mqtt.Topics{}.AllWalkEvents()
				if walkID != "" {
					topic = mqtt.Topics{}.WalkEvents(walkID)
				}

				out := newEventPrinter(cmd.OutOrStdout(), c.jsonOutput)
				if err := a.bus.Subscribe(topic, 0, out.handle); err != nil {
					return err
				}
				a.log.Info("watching walk events", "topic", topic)

				<-ctx.Done()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&walkID, "walk", "", "Only events of this walk")
	return cmd
}

func (c *cli) newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the database, the rule registry and optional services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				results := a.healthCheck(ctx)

				if c.jsonOutput {
					if err := c.printJSON(cmd.OutOrStdout(), results); err != nil {
						return err
					}
				} else {
					tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
					fmt.Fprintln(tw, "COMPONENT\tSTATE\tDETAIL")
					for _, r := range results {
						fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Component, r.State, r.Detail)
					}
					if err := tw.Flush(); err != nil {
						return err
					}
				}

				for _, r := range results {
					if r.State == healthDown {
						return fmt.Errorf("%s unhealthy: %s", r.Component, r.Detail)
					}
				}
				return nil
			})
		},
	}
}
