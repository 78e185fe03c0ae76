package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"kiln/internal/api"
	"kiln/internal/stream"
)

func newGenerateCommand(cmdCtx *commandContext) *cobra.Command {
	var prompt string

	cmd := &cobra.Command{
		Use:   "generate <job-id>",
		Short: "Stream generated output from a trained job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q", args[0])
			}

			apiClient, err := cmdCtx.newClient()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			err = apiClient.Generate(ctx, jobID, api.GenerateRequest{Prompt: prompt}, func(frame stream.Frame) {
				switch frame.Kind {
				case stream.FrameToken:
					fmt.Fprint(out, frame.Token)
				case stream.FrameDone:
					fmt.Fprintln(out)
					if frame.Provider != "" {
						fmt.Fprintf(cmd.ErrOrStderr(), "generation complete (provider: %s)\n", frame.Provider)
					}
				case stream.FrameError:
					fmt.Fprintln(out)
					fmt.Fprintf(cmd.ErrOrStderr(), "server reported an error: %s\n", frame.Message)
				}
			})
			if err == nil {
				return nil
			}

			fmt.Fprintln(out)
			var protoErr *stream.ProtocolError
			var truncErr *stream.TruncatedError
			switch {
			case errors.As(err, &protoErr):
				if protoErr.Partial != "" {
					fmt.Fprintf(cmd.ErrOrStderr(), "partial output before the stream broke:\n%s\n", protoErr.Partial)
				}
				return fmt.Errorf("stream corrupted: %w", err)
			case errors.As(err, &truncErr):
				if truncErr.Partial != "" {
					fmt.Fprintf(cmd.ErrOrStderr(), "partial output before the stream ended:\n%s\n", truncErr.Partial)
				}
				return fmt.Errorf("stream ended early: %w", err)
			case errors.Is(err, context.Canceled):
				return nil
			default:
				return err
			}
		},
	}

	cmd.Flags().StringVar(&prompt, "prompt", "", "Prompt to send to the trained model")
	_ = cmd.MarkFlagRequired("prompt")

	return cmd
}
