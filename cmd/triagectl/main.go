package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/api/dto"
	"github.com/spec-kit/ticket-triage/internal/app"
	"github.com/spec-kit/ticket-triage/internal/config"
	"github.com/spec-kit/ticket-triage/internal/observability"
	"github.com/spec-kit/ticket-triage/internal/seed"
	"github.com/spec-kit/ticket-triage/internal/service"
)

// Opener builds the application the commands run against.
type Opener func(ctx context.Context, verbose bool) (*app.App, error)

// DefaultOpener loads configuration from the environment.
func DefaultOpener(ctx context.Context, verbose bool) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := zap.NewNop()
	if verbose {
		if logger, err = observability.NewLogger(cfg.Logger, cfg.App); err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
	}
	return app.New(ctx, cfg, logger, app.Options{})
}

func main() {
	if err := newRootCmd(DefaultOpener).Execute(); err != nil {
		os.Exit(1)
	}
}

type cli struct {
	open    Opener
	verbose bool
}

func newRootCmd(open Opener) *cobra.Command {
	c := &cli{open: open}
	root := &cobra.Command{
		Use:           "triagectl",
		Short:         "triagectl - operate the ticket triage service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Log to stdout")
	root.AddCommand(c.seedCmd(), c.triageCmd(), c.auditCmd(), c.configCmd())
	return root
}

// withApp opens the application for one command and closes it afterwards.
func (c *cli) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := c.open(ctx, c.verbose)
	if err != nil {
		return err
	}
	defer a.Close(context.Background()) //nolint:errcheck
	return fn(ctx, a)
}

func (c *cli) seedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create demo users, articles and tickets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fixtures, err := loadFixtures(file)
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				sum, err := a.Seed(ctx, fixtures)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if sum.Skipped {
					fmt.Fprintln(out, "already seeded, nothing to do")
					return nil
				}
				fmt.Fprintf(out, "seeded %d users, %d articles, %d tickets\n", sum.Users, sum.Articles, len(sum.Tickets))
				for _, id := range sum.Tickets {
					fmt.Fprintf(out, "ticket %s\n", id)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML fixtures (defaults to the built-in set)")
	return cmd
}

func (c *cli) triageCmd() *cobra.Command {
	var traceID string
	cmd := &cobra.Command{
		Use:   "triage <ticket-id>",
		Short: "Run triage for one ticket and print the suggestion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				result, err := a.Orchestrator.Triage(ctx, args[0], traceID)
				if err != nil {
					return err
				}
				suggestion, ok, err := a.Orchestrator.LatestSuggestion(ctx, args[0])
				if err != nil {
					return err
				}
				payload := map[string]any{"trace_id": result.TraceID, "suggestion_id": result.SuggestionID}
				if ok {
					payload["suggestion"] = dto.NewSuggestion(suggestion)
				}
				return printJSON(cmd.OutOrStdout(), payload)
			})
		},
	}
	cmd.Flags().StringVar(&traceID, "trace-id", "", "Trace id to record the run under")
	return cmd
}

func (c *cli) auditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit <ticket-id>",
		Short: "Print the audit trail of a ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				trail, err := a.Tickets.ListAudit(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), dto.NewAuditEvents(trail))
			})
		},
	}
}

func (c *cli) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read or change the runtime triage config",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print the runtime config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				cfg, err := a.RuntimeConfig.Get(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), dto.NewConfig(cfg))
			})
		},
	})

	var (
		autoClose bool
		threshold float64
		slaHours  int
	)
	set := &cobra.Command{
		Use:   "set",
		Short: "Change runtime config fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var update service.ConfigUpdate
			flags := cmd.Flags()
			if flags.Changed("auto-close") {
				update.AutoCloseEnabled = &autoClose
			}
			if flags.Changed("threshold") {
				update.ConfidenceThreshold = &threshold
			}
			if flags.Changed("sla-hours") {
				update.SLAHours = &slaHours
			}
			if update == (service.ConfigUpdate{}) {
				return fmt.Errorf("nothing to set: pass --auto-close, --threshold or --sla-hours")
			}
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				cfg, err := a.RuntimeConfig.Update(ctx, update)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), dto.NewConfig(cfg))
			})
		},
	}
	set.Flags().BoolVar(&autoClose, "auto-close", true, "Enable auto-close")
	set.Flags().Float64Var(&threshold, "threshold", 0, "Confidence threshold in [0,1]")
	set.Flags().IntVar(&slaHours, "sla-hours", 0, "Hours before a waiting ticket breaches SLA")
	cmd.AddCommand(set)
	return cmd
}

func loadFixtures(path string) (*seed.Fixtures, error) {
	if path == "" {
		return seed.Default()
	}
	return seed.Load(path)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
