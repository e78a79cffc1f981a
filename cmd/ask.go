package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/teamcheckmate/chaekcheck/internal/app"
	"github.com/teamcheckmate/chaekcheck/internal/chat"
	"github.com/teamcheckmate/chaekcheck/internal/config"
)

var askSessionID string

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a regulation question from the terminal",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAsk(cmd.Context(), strings.Join(args, " "))
	},
}

func init() {
	askCmd.Flags().StringVar(&askSessionID, "session", config.DefaultSessionID,
		"session ID for conversation history")
	rootCmd.AddCommand(askCmd)
}

var sourceBoxStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("240")).
	Padding(0, 1)

var sourceTitleStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("39")).
	Bold(true)

func runAsk(parent context.Context, question string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	a, err := app.Setup(parent, cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Warn("shutdown error", "error", closeErr)
		}
	}()

	answer, err := a.Agent.Ask(parent, askSessionID, question)
	if err != nil {
		return fmt.Errorf("answering question: %w", err)
	}

	fmt.Println(renderAnswer(answer))
	return nil
}

// renderAnswer formats the answer as terminal markdown with a source box.
// Falls back to plain text when the renderer cannot be constructed.
func renderAnswer(answer *chat.Answer) string {
	var b strings.Builder

	width := 100
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 20 {
		width = w
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-4),
	)
	if err == nil {
		if out, renderErr := renderer.Render(answer.Text); renderErr == nil {
			b.WriteString(out)
		} else {
			b.WriteString(answer.Text)
			b.WriteString("\n")
		}
	} else {
		b.WriteString(answer.Text)
		b.WriteString("\n")
	}

	if len(answer.Citations) > 0 {
		var src strings.Builder
		src.WriteString(sourceTitleStyle.Render("참고 규정"))
		for _, c := range answer.Citations {
			fmt.Fprintf(&src, "\n• %s (%d페이지)", c.File, c.Page)
		}
		b.WriteString(sourceBoxStyle.Render(src.String()))
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "⏱ %.2fs\n", answer.Elapsed.Seconds())
	return b.String()
}
