// Package cli implements the triagectl developer command line.
package cli

import (
	"fmt"
	"slices"

	"github.com/pawcare-labs/pawcare/internal/triage"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// NewGenerator builds the backend used by chat. Tests replace it.
	NewGenerator func() (triage.Generator, error)
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for triagectl.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{NewGenerator: gatewayFromEnv})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "triagectl",
		Short: "triagectl - PawCare triage tooling",
		Long:  "Inspect the pet-health triage pipeline: classify messages, extract care tips and chat from the terminal.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewClassifyCommand(opts))
	cmd.AddCommand(NewTipsCommand(opts))
	cmd.AddCommand(NewChatCommand(opts))
	cmd.AddCommand(NewProbeCommand(opts))

	return cmd
}
