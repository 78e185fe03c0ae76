package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"kiln/internal/store"
)

func newSubmitCommand(cmdCtx *commandContext) *cobra.Command {
	var (
		name      string
		intent    string
		sourceRef string
		model     string
		watch     bool
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a dataset analysis job",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			if model == "" {
				model = cfg.Generation.Model
			}

			jobStore, err := cmdCtx.newStore()
			if err != nil {
				return err
			}
			defer jobStore.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			handle, err := jobStore.SubmitJob(ctx, store.SubmitParams{
				Name:      name,
				Intent:    intent,
				SourceRef: sourceRef,
				Model:     model,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Submitted %q (tracking as %d until the server confirms)\n", name, handle.Job().ID)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-handle.Done():
			}
			if err := handle.Err(); err != nil {
				return fmt.Errorf("submission rejected: %w", err)
			}
			result := handle.Result()
			fmt.Fprintf(out, "Accepted as job %d (status %s)\n", result.ID, result.Status)

			if !watch {
				return nil
			}
			return runWatch(ctx, cmdCtx, jobStore, cmd, false)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name for the job")
	cmd.Flags().StringVar(&intent, "intent", "", "What the analysis should find out")
	cmd.Flags().StringVar(&sourceRef, "source", "", "Identifier of the uploaded dataset")
	cmd.Flags().StringVar(&model, "model", "", "Model to use (defaults to generation.model)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Stay on the live job view after submitting")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("source")

	return cmd
}
