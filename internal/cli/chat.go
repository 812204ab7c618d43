package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/pawcare-labs/pawcare/internal/agent"
	"github.com/pawcare-labs/pawcare/internal/config"
	"github.com/pawcare-labs/pawcare/internal/store"
	"github.com/pawcare-labs/pawcare/internal/triage"
	"github.com/spf13/cobra"
)

const (
	chatUserID  = "cli"
	chatHelpMsg = `commands: /quick (list quick replies), /qr <id>, /reset, /state, /events, /quit`
)

// ChatOptions holds flags for the chat command.
type ChatOptions struct {
	SessionID    string
	HistoryLimit int
}

// NewChatCommand creates the chat command.
func NewChatCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ChatOptions{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Run an interactive triage session on stdin/stdout",
		Long: `Run the same triage pipeline as the server against the configured
generation backend. Each input line is one user message. Lines starting with
a slash are commands; type /help to list them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gen, err := rootOpts.NewGenerator()
			if err != nil {
				return err
			}
			f := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			return runChat(cmd.Context(), f, gen, opts, cmd.InOrStdin())
		},
	}

	cmd.Flags().StringVar(&opts.SessionID, "session", "default", "session id recorded on audit events")
	cmd.Flags().IntVar(&opts.HistoryLimit, "history", 20, "max prior turns sent to the backend (0 = unlimited)")

	return cmd
}

func runChat(ctx context.Context, f *OutputFormatter, gen triage.Generator, opts *ChatOptions, in io.Reader) error {
	if ctx == nil {
		ctx = context.Background()
	}

	level := slog.LevelWarn
	if f.Verbose {
		level = slog.LevelDebug
	}
	repo := store.NewMemory()
	svc := agent.NewService(gen, repo, agent.ServiceOptions{
		HistoryLimit: opts.HistoryLimit,
		Logger:       slog.New(slog.NewTextHandler(f.ErrWriter, &slog.HandlerOptions{Level: level})),
	})
	sess := svc.Session(chatUserID, opts.SessionID)

	if f.Format == "text" {
		fmt.Fprintln(f.Writer, "PawCare triage chat. "+chatHelpMsg)
	}

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := runChatCommand(ctx, f, sess, repo, opts, line)
			if err != nil {
				return err
			}
			if quit {
				return nil
			}
			continue
		}

		reply, err := sess.Send(ctx, line)
		if err != nil {
			return fmt.Errorf("send: %w", err)
		}
		if err := emitTurn(f, agent.NewTurnResponse(reply)); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}

func runChatCommand(ctx context.Context, f *OutputFormatter, sess *triage.Session, repo store.Repository, opts *ChatOptions, line string) (bool, error) {
	name, arg, _ := strings.Cut(line, " ")
	switch name {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		fmt.Fprintln(f.ErrWriter, chatHelpMsg)
	case "/quick":
		replies := triage.QuickReplies()
		return false, f.Emit(replies, func(w io.Writer) {
			for _, q := range replies {
				fmt.Fprintf(w, "  %-12s %s\n", q.ID, q.Text)
			}
		})
	case "/qr":
		reply, err := sess.QuickReply(ctx, strings.TrimSpace(arg))
		if errors.Is(err, triage.ErrUnknownQuickReply) {
			fmt.Fprintf(f.ErrWriter, "unknown quick reply %q, try /quick\n", arg)
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("quick reply: %w", err)
		}
		return false, emitTurn(f, agent.NewTurnResponse(reply))
	case "/reset":
		msg := sess.Reset(ctx)
		res := agent.ResetResponse{Message: msg, State: sess.State()}
		return false, f.Emit(res, func(w io.Writer) {
			fmt.Fprintf(w, "assistant> %s\n", msg.Text)
		})
	case "/state":
		snap := sess.Snapshot()
		return false, f.Emit(snap.State, func(w io.Writer) {
			fmt.Fprintf(w, "phase: %s (warnings: %d)\n", snap.Phase, snap.State.WarningCount)
		})
	case "/events":
		events, err := repo.ListTriageEvents(ctx, chatUserID, opts.SessionID, 50)
		if err != nil {
			return false, fmt.Errorf("list events: %w", err)
		}
		return false, f.Emit(events, func(w io.Writer) {
			for i := len(events) - 1; i >= 0; i-- {
				ev := events[i]
				fmt.Fprintf(w, "  %s %s -> %s %s\n", ev.Kind, ev.FromPhase, ev.ToPhase, ev.Detail)
			}
		})
	default:
		fmt.Fprintf(f.ErrWriter, "unknown command %s\n%s\n", name, chatHelpMsg)
	}
	return false, nil
}

func emitTurn(f *OutputFormatter, turn agent.TurnResponse) error {
	return f.Emit(turn, func(w io.Writer) {
		prefix := "assistant> "
		if turn.Reply.IsWarning {
			prefix = "warning> "
		}
		fmt.Fprintln(w, prefix+turn.Reply.Text)
		if len(turn.Tips) > 0 {
			fmt.Fprintln(w, "care tips:")
			for _, tip := range turn.Tips {
				fmt.Fprintf(w, "  - %s\n", tip.Text)
			}
		}
		if turn.Phase != triage.PhaseActive {
			fmt.Fprintf(w, "[%s]\n", turn.Phase)
		}
	})
}

// gatewayFromEnv builds the generation client from the server's environment.
func gatewayFromEnv() (triage.Generator, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if !cfg.Generation.Enabled() {
		return nil, errors.New("GENERATION_API_KEY is not set")
	}
	client, err := agent.NewGatewayClient(agent.GatewayConfig{
		URL:         cfg.Generation.URL,
		APIKey:      cfg.Generation.APIKey,
		Model:       cfg.Generation.Model,
		MaxTokens:   cfg.Generation.MaxTokens,
		Temperature: cfg.Generation.Temperature,
		Timeout:     cfg.Generation.Timeout,
	}, nil)
	if err != nil {
		return nil, err
	}
	return client, nil
}
