// Command streamchat is a terminal client for the chat relay.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/MegaGrindStone/stream-chat-ui/internal/auth"
	"github.com/MegaGrindStone/stream-chat-ui/internal/chatclient"
	"github.com/MegaGrindStone/stream-chat-ui/internal/cliui"
	"github.com/MegaGrindStone/stream-chat-ui/internal/logger"
	"github.com/MegaGrindStone/stream-chat-ui/internal/models"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const chatLongDesc = `Start an interactive chat session against a streamchat server.

Replies stream in as they are generated. When a reply is complete it is
re-rendered as markdown, with any thinking block shown as a dimmed aside.

Commands inside the session:
  /think         toggle step-by-step thinking mode
  /model <name>  switch model (/model alone lists them)
  /exit          quit (Ctrl+D works too)

Examples:
  streamchat --server http://localhost:8080 --model deepseek-r1 --thinking
  STREAMCHAT_SESSION=<cookie value> streamchat --server https://chat.example.com`

type chatCommander struct {
	cfg    chatConfig
	in     io.Reader
	out    io.Writer
	logger *slog.Logger
}

func newChatCmd() *cobra.Command {
	var configDir string
	var v *viper.Viper
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:          "streamchat",
		Short:        "Interactive streaming chat in the terminal",
		Long:         chatLongDesc,
		SilenceUsage: true,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			v, err = initViper(configDir)
			if err != nil {
				return err
			}
			for _, name := range []string{"server", "model", "thinking", "session", "width", "render", "debug"} {
				if err := v.BindPFlag(name, cmd.Flags().Lookup(name)); err != nil {
					return fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
			cmder.cfg, err = loadChatConfig(v)
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			cmder.logger = logger.New(
				logger.WithPretty(true),
				logger.WithDebug(cmder.cfg.Debug),
				logger.WithWriter(cmd.ErrOrStderr()),
			)
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&configDir, "config-dir", "", "Directory holding client.yaml")
	cmd.Flags().StringP("server", "s", "http://localhost:8080", "Base URL of the streamchat server")
	cmd.Flags().StringP("model", "m", "", "Model short name (server default when empty)")
	cmd.Flags().BoolP("thinking", "t", false, "Ask for step-by-step thinking")
	cmd.Flags().String("session", "", "Value of the server's session cookie, when sign-in is enabled")
	cmd.Flags().Int("width", 80, "Word wrap width of rendered replies")
	cmd.Flags().Bool("render", true, "Re-render finished replies as markdown")
	cmd.Flags().Bool("debug", false, "Enable debug logging")

	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newChatCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func (c *chatCommander) run(ctx context.Context) error {
	var opts []chatclient.Option
	opts = append(opts, chatclient.WithLogger(c.logger))
	if c.cfg.Session != "" {
		opts = append(opts, chatclient.WithCookies(&http.Cookie{Name: auth.SessionCookie, Value: c.cfg.Session}))
	}
	session := chatclient.NewSession(c.cfg.Server, opts...)

	model := c.cfg.Model
	useThinking := c.cfg.Thinking

	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, cliui.Header(c.cfg.Server, displayModel(model), useThinking))
	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))

	scanner := bufio.NewScanner(c.in)
	for {
		fmt.Fprint(c.out, cliui.UserPrompt)
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		switch {
		case input == "":
			continue
		case input == "/exit":
			fmt.Fprintln(c.out)
			return nil
		case input == "/think":
			useThinking = !useThinking
			fmt.Fprintln(c.out, cliui.Header(c.cfg.Server, displayModel(model), useThinking))
			continue
		case input == "/model":
			c.listModels(ctx, session, model)
			continue
		case strings.HasPrefix(input, "/model "):
			model = strings.TrimSpace(strings.TrimPrefix(input, "/model "))
			fmt.Fprintln(c.out, cliui.Header(c.cfg.Server, displayModel(model), useThinking))
			continue
		}

		if err := c.turn(ctx, session, chatclient.Turn{
			Message:     input,
			Model:       model,
			UseThinking: useThinking,
		}); err != nil && errors.Is(err, context.Canceled) {
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	fmt.Fprintln(c.out)
	return nil
}

// turn streams one reply to the terminal and, once complete, prints its rendered form.
func (c *chatCommander) turn(ctx context.Context, session *chatclient.Session, turn chatclient.Turn) error {
	fmt.Fprint(c.out, cliui.AssistantPrompt)

	printed := 0
	err := session.Submit(ctx, turn, func(m models.Message) {
		if m.StreamingState != models.StreamingStateStreaming {
			return
		}
		fmt.Fprint(c.out, m.Content[printed:])
		printed = len(m.Content)
	})
	fmt.Fprintln(c.out)

	if err != nil {
		msgs := session.Messages()
		fmt.Fprintf(c.out, "  %s %s\n\n", cliui.FailMark, msgs[len(msgs)-1].Content)
		return err
	}

	if c.cfg.Render {
		msgs := session.Messages()
		fmt.Fprintln(c.out, cliui.RenderMessage(msgs[len(msgs)-1].Content, c.cfg.Width))
	}
	fmt.Fprintln(c.out)
	return nil
}

func (c *chatCommander) listModels(ctx context.Context, session *chatclient.Session, current string) {
	ms, def, err := session.Models(ctx)
	if err != nil {
		fmt.Fprintf(c.out, "  %s %v\n", cliui.FailMark, err)
		return
	}
	if current == "" {
		current = def
	}
	for _, m := range ms {
		mark := " "
		if m.Value == current {
			mark = cliui.SuccessMark
		}
		fmt.Fprintf(c.out, "  %s %s %s\n", mark, cliui.NameStyle.Render(m.Value), cliui.DimStyle.Render(m.Label))
	}
}

func displayModel(model string) string {
	if model == "" {
		return "server default"
	}
	return model
}
