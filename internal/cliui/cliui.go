// Package cliui provides the terminal rendering helpers of the chat client.
package cliui

import (
	"fmt"
	"strings"

	"github.com/MegaGrindStone/stream-chat-ui/internal/thinking"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

var (
	SuccessMark = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	FailMark    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")
	DimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	KeyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Bold(true)
	NameStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))

	UserPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	AssistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("assistant> ")
)

var thinkingStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("243")).
	Italic(true).
	BorderStyle(lipgloss.NormalBorder()).
	BorderLeft(true).
	BorderForeground(lipgloss.Color("238")).
	PaddingLeft(1)

// Mark returns a ✓ for nil errors or ✗ for non-nil errors.
func Mark(err error) string {
	if err != nil {
		return FailMark
	}
	return SuccessMark
}

// RenderMarkdown renders markdown content for terminal display using glamour.
func RenderMarkdown(content string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content, err
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content, err
	}

	return rendered, nil
}

// RenderMessage renders a finished assistant message: thinking blocks as a dimmed, bordered aside and
// the rest as markdown. When markdown rendering fails the raw text is used.
func RenderMessage(content string, width int) string {
	var sb strings.Builder
	for _, seg := range thinking.Split(content) {
		switch seg.Kind {
		case thinking.KindThinking:
			if seg.Text == "" {
				continue
			}
			sb.WriteString(KeyStyle.Render("Thinking"))
			sb.WriteString("\n")
			sb.WriteString(thinkingStyle.Width(width).Render(seg.Text))
			sb.WriteString("\n")
		default:
			if strings.TrimSpace(seg.Text) == "" {
				continue
			}
			out, _ := RenderMarkdown(seg.Text, width)
			sb.WriteString(out)
		}
	}
	return sb.String()
}

// Header prints the one-line summary shown when a chat starts.
func Header(server, model string, useThinking bool) string {
	mode := "normal"
	if useThinking {
		mode = "step-by-step"
	}
	return fmt.Sprintf("  %s %s  %s %s  %s %s",
		KeyStyle.Render("Server:"), NameStyle.Render(server),
		KeyStyle.Render("Model:"), NameStyle.Render(model),
		KeyStyle.Render("Mode:"), NameStyle.Render(mode),
	)
}
