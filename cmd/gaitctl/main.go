// Package main is a command line client for the gait tracking server.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type globalOptions struct {
	server   string
	grpcAddr string
	session  string
	timeout  time.Duration
}

func (o *globalOptions) client() (trackerClient, error) {
	if o.grpcAddr != "" {
		return newGRPCClient(o.grpcAddr, o.session)
	}
	return newHTTPClient(o.server, o.session, o.timeout), nil
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "gaitctl",
		Short:         "Send movement features to a click-gait server and inspect sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.server, "server", "http://localhost:10000", "server base URL")
	root.PersistentFlags().StringVar(&opts.grpcAddr, "grpc", "", "use gRPC at this address instead of HTTP")
	root.PersistentFlags().StringVar(&opts.session, "session", envOr("GAIT_SESSION_ID", "gaitctl"), "session id")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "per-request timeout")

	root.AddCommand(newPredictCmd(opts))
	root.AddCommand(newSummaryCmd(opts))
	root.AddCommand(newResetCmd(opts))
	root.AddCommand(newReplayCmd(opts))
	return root
}

func newPredictCmd(opts *globalOptions) *cobra.Command {
	var timestamp string

	cmd := &cobra.Command{
		Use:   "predict <feature>...",
		Short: "Classify one feature vector and record it in the session",
		Long:  "Features are given as separate arguments or as one comma separated list.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			features, err := parseFeatures(strings.Join(args, ","))
			if err != nil {
				return err
			}
			var at *time.Time
			if timestamp != "" {
				t, err := time.Parse(time.RFC3339Nano, timestamp)
				if err != nil {
					return fmt.Errorf("--timestamp: %w", err)
				}
				at = &t
			}

			c, err := opts.client()
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
			defer cancel()
			out, err := c.Predict(ctx, features, at)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&timestamp, "timestamp", "", "event time (RFC 3339); server clock when empty")
	return cmd
}

func newSummaryCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print the session totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
			defer cancel()
			out, err := c.Summary(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func newResetCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Reset the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
			defer cancel()
			msg, err := c.Reset(ctx)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}

func newReplayCmd(opts *globalOptions) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "replay <file.csv>",
		Short: "Replay a recorded walk: each row is timestamp,feature,feature,...",
		Long: "Rows are posted in file order with their timestamps. A header row is skipped. " +
			"Recorded timestamps lie in the past, so the replay runs in a new random session " +
			"unless --session is given explicitly.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			rows, err := readReplay(f)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("session") {
				opts.session = uuid.NewString()
			}
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "session %s\n", opts.session)

			c, err := opts.client()
			if err != nil {
				return err
			}
			defer c.Close()

			summary, err := replay(cmd.Context(), c, rows, opts.timeout, func(i int, out *eventOutcome) {
				if quiet {
					return
				}
				line := fmt.Sprintf("%s  %-16s  unknown=%d", rows[i].At.Format(time.RFC3339), out.MovementType, out.UnknownCount)
				if out.Warning != nil {
					line += "  ! " + *out.Warning
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), line)
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), summary)
		},
	}
	cmd.Flags().BoolVar(&quiet, "quiet", false, "print only the final summary")
	return cmd
}

func parseFeatures(s string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("feature %q: %w", part, err)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no features given")
	}
	return out, nil
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
