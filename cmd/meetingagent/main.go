// Meeting Agent - turns meeting emails into calendar events.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantumlife/meetingagent/internal/agent"
	"github.com/quantumlife/meetingagent/internal/api"
	"github.com/quantumlife/meetingagent/internal/auth"
	"github.com/quantumlife/meetingagent/internal/config"
	"github.com/quantumlife/meetingagent/internal/core"
	"github.com/quantumlife/meetingagent/internal/ledger"
	"github.com/quantumlife/meetingagent/internal/report"
	"github.com/quantumlife/meetingagent/internal/scheduler"
)

var (
	configPath string

	version = "0.1.0"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "meetingagent",
		Short: "Create calendar events from meeting emails",
		Long: `Meeting Agent polls a Gmail mailbox, asks an LLM to extract meeting
details from matching emails, and creates Google Calendar events.

Every email is handled at most once: outcomes are kept in a local
SQLite ledger that survives restarts.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "path to configuration file")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(authCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// signalContext is cancelled on SIGINT/SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one processing cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ag, err := a.buildAgent(ctx)
			if err != nil {
				return err
			}

			stats := ag.Run(ctx)
			printRunStats(cmd, stats)
			return nil
		},
	}
}

func printRunStats(cmd *cobra.Command, stats core.RunStatistics) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "\n=== Agent Run Complete ===")
	fmt.Fprintf(out, "Emails checked: %d\n", stats.Fetched)
	fmt.Fprintf(out, "Emails filtered: %d\n", stats.Filtered)
	fmt.Fprintf(out, "Meetings created: %d\n", stats.Committed)
	fmt.Fprintf(out, "Errors: %d\n", stats.Errors)
}

func scheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run immediately, then on the configured interval",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			var feed *api.RunFeed
			var observers []agent.RunObserver
			if a.cfg.API.Listen != "" {
				feed = api.NewRunFeed(a.logger)
				observers = append(observers, feed)
			}

			ag, err := a.buildAgent(ctx, observers...)
			if err != nil {
				return err
			}
			cycle := agent.NewSerialized(ag)

			if feed != nil {
				// Manual triggers share the scheduler's single-cycle slot
				server := api.New(api.Config{
					Addr:    a.cfg.API.Listen,
					Ledger:  a.ledger,
					Runs:    a.runs,
					Trigger: cycle,
					Feed:    feed,
					Logger:  a.logger,
					Context: ctx,
				})
				go func() {
					if err := server.Start(); err != nil {
						a.logger.Error("API server failed: %v", err)
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					server.Stop(shutdownCtx)
				}()
			}

			sched := scheduler.NewScheduler(scheduler.Config{Logger: a.logger})
			err = sched.Register(scheduler.IntervalTask("cycle", "Process mailbox", a.cfg.ScheduleInterval(),
				func(ctx context.Context) error {
					_, err := cycle.TryRun(ctx)
					if errors.Is(err, core.ErrRunInProgress) {
						a.logger.Info("Previous cycle still running, skipping tick")
						return nil
					}
					return err
				}))
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Starting scheduler (runs every %d minutes)...\n", a.cfg.Agent.ScheduleIntervalMinutes)
			fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to stop")

			if err := sched.Start(); err != nil {
				return err
			}

			<-ctx.Done()
			a.logger.Info("Shutting down")
			sched.Stop()
			cycle.Wait()
			return nil
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Display processing statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.ledger.Stats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "\n=== Processing Statistics ===")
			fmt.Fprintf(out, "Total emails processed: %d\n", stats.TotalProcessed)
			fmt.Fprintf(out, "Meetings created: %d\n", stats.MeetingsCreated)
			return nil
		},
	}
}

func reportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate a markdown report of processed emails",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if _, err := os.Stat(cfg.Storage.DatabasePath); err != nil {
				return fmt.Errorf("database not found: %s", cfg.Storage.DatabasePath)
			}

			a, err := openAppWithConfig(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.ledger.List(cmd.Context(), ledger.QueryOptions{})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No processed emails found in database.")
				return nil
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create report: %w", err)
			}
			defer f.Close()

			if err := report.Render(f, entries, time.Now()); err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}

			sum := report.Summarize(entries)
			fmt.Fprintf(out, "✓ Report generated: %s\n", output)
			fmt.Fprintln(out, "\nSummary:")
			fmt.Fprintf(out, "  Total processed: %d\n", sum.Total)
			fmt.Fprintf(out, "  Meetings created: %d\n", sum.Committed)
			fmt.Fprintf(out, "  Failed to create: %d\n", sum.Failed())
			return nil
		},
	}

	cmd.Flags().StringVar(&output, "output", "EMAIL_REPORT.md", "output file path for the report")
	return cmd
}

func authCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize Gmail and Calendar access",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			oauthCfg, err := auth.LoadConfig(cfg.Google.CredentialsFile)
			if err != nil {
				return err
			}

			flow := auth.NewFlow(oauthCfg, auth.NewFileTokenStore(cfg.Google.TokenFile), cmd.OutOrStdout())
			if _, err := flow.Authorize(ctx, timeout); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Authorized. Token saved to %s\n", cfg.Google.TokenFile)
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "how long to wait for the browser callback")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "meetingagent %s\n", version)
		},
	}
}
