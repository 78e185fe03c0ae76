package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"kiln/internal/jobs"
	"kiln/internal/store"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect analysis and training jobs",
	}
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsWatchCommand(ctx))
	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs from the service",
		RunE: func(cmd *cobra.Command, args []string) error {
			apiClient, err := ctx.newClient()
			if err != nil {
				return err
			}
			listing, err := apiClient.FetchJobs(cmd.Context())
			if err != nil {
				return fmt.Errorf("list jobs: %w", err)
			}
			out := cmd.OutOrStdout()
			writeJobList(out, plain || !stdoutIsTerminal(out), listing, time.Now())
			return nil
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "Force plain tab-separated output")
	return cmd
}

func newJobsWatchCommand(cmdCtx *commandContext) *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the job list live until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			jobStore, err := cmdCtx.newStore()
			if err != nil {
				return err
			}
			defer jobStore.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runWatch(ctx, cmdCtx, jobStore, cmd, plain)
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "Force plain tab-separated output")
	return cmd
}

func runWatch(ctx context.Context, cmdCtx *commandContext, jobStore *store.Store, cmd *cobra.Command, plain bool) error {
	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	plain = plain || !stdoutIsTerminal(out)

	updates := make(chan []jobs.Job, 1)
	unsubscribe := jobStore.Subscribe(func(merged []jobs.Job) {
		// Keep only the latest snapshot; rendering lag must not block
		// the store's publish path.
		select {
		case <-updates:
		default:
		}
		updates <- merged
	})
	defer unsubscribe()

	if err := jobStore.Refresh(ctx); err != nil {
		return fmt.Errorf("initial refresh: %w", err)
	}
	writeJobList(out, plain, jobStore.Jobs(), time.Now())
	jobStore.StartAggressivePolling()

	alerted := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case merged := <-updates:
			writeJobList(out, plain, merged, time.Now())
		case <-time.After(time.Second):
			failures := jobStore.ConsecutiveFailures()
			threshold := cfg.Polling.FailureAlertThreshold
			if threshold > 0 && failures >= threshold && !alerted {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %d consecutive poll failures (%v)\n", failures, jobStore.LastError())
				alerted = true
			}
			if failures == 0 {
				alerted = false
			}
		}
	}
}
