package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pawcare-labs/pawcare/internal/health"
	"github.com/spf13/cobra"
)

// ProbeResult is the JSON output of probe.
type ProbeResult struct {
	Addr    string `json:"addr"`
	Service string `json:"service"`
	Status  string `json:"status"`
}

// NewProbeCommand creates the probe command.
func NewProbeCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		service string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "probe <addr>",
		Short: "Query a server's gRPC health endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			status, err := health.Probe(ctx, args[0], service)
			if err != nil {
				return err
			}
			res := ProbeResult{Addr: args[0], Service: service, Status: status.String()}
			f := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			return f.Emit(res, func(w io.Writer) {
				fmt.Fprintln(w, res.Status)
			})
		},
	}

	cmd.Flags().StringVar(&service, "service", health.ServiceName, `service name ("" for overall status)`)
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "probe timeout")

	return cmd
}
