package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/pawcare-labs/pawcare/internal/triage"
	"github.com/spf13/cobra"
)

// ClassifyResult is the JSON output of classify.
type ClassifyResult struct {
	Text        string `json:"text"`
	Topic       string `json:"topic"`
	MatchedTerm string `json:"matched_term,omitempty"`
	Emergency   bool   `json:"emergency"`
}

// NewClassifyCommand creates the classify command.
func NewClassifyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <text>...",
		Short: "Classify a message as on- or off-topic",
		Long: `Run the keyword classifier on a message and report whether it is
on-topic and whether it matches the emergency vocabulary.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			return runClassify(f, triage.DefaultClassifier(), strings.Join(args, " "))
		},
	}
}

func runClassify(f *OutputFormatter, c *triage.Classifier, text string) error {
	term, _ := c.MatchedTerm(text)
	res := ClassifyResult{
		Text:        text,
		Topic:       c.Classify(text).String(),
		MatchedTerm: term,
		Emergency:   c.IsEmergency(text),
	}
	return f.Emit(res, func(w io.Writer) {
		fmt.Fprintf(w, "topic: %s\n", res.Topic)
		if res.MatchedTerm != "" {
			fmt.Fprintf(w, "matched: %q\n", res.MatchedTerm)
		}
		fmt.Fprintf(w, "emergency: %t\n", res.Emergency)
	})
}
