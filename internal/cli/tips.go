package cli

import (
	"fmt"
	"io"

	"github.com/pawcare-labs/pawcare/internal/domain"
	"github.com/pawcare-labs/pawcare/internal/triage"
	"github.com/spf13/cobra"
)

const maxTipsInput = 1 << 20

// NewTipsCommand creates the tips command.
func NewTipsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tips",
		Short: "Extract care tips from generated text on stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), maxTipsInput))
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			f := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			f.VerboseLog("read %d bytes", len(data))
			return runTips(f, string(data))
		},
	}
}

func runTips(f *OutputFormatter, text string) error {
	tips := triage.ExtractTips(text)
	if tips == nil {
		tips = []domain.CareTip{}
	}
	return f.Emit(tips, func(w io.Writer) {
		if len(tips) == 0 {
			fmt.Fprintln(w, "no tips found")
			return
		}
		for i, tip := range tips {
			fmt.Fprintf(w, "%d. %s\n", i+1, tip.Text)
		}
	})
}
