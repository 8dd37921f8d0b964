package cmds

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/go-go-golems/grillo/pkg/assistant"
	"github.com/go-go-golems/grillo/pkg/helpers"
	"github.com/go-go-golems/grillo/pkg/ui"
	"github.com/spf13/cobra"
)

const chatHelp = `Type a question and press enter.
  /new      start a new conversation
  /session  print the current session id
  /quit     leave`

func NewChatCommand() *cobra.Command {
	var (
		sessionID   string
		assistantID string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Hold a conversation with the assistant in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			r, err := ui.NewRenderer(cmd.OutOrStdout())
			if err != nil {
				return err
			}

			c := &chat{
				orchestrator: a.orchestrator,
				renderer:     r,
				out:          cmd.OutOrStdout(),
				sessionID:    sessionID,
				assistantID:  assistantID,
			}
			return c.run(cmd.Context(), cmd.InOrStdin())
		},
	}

	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Session to continue")
	cmd.Flags().StringVar(&assistantID, "assistant", "", "Assistant to talk to instead of the default one")

	return cmd
}

type asker interface {
	Ask(ctx context.Context, req assistant.AskRequest) (*assistant.Answer, error)
}

type chat struct {
	orchestrator asker
	renderer     *ui.Renderer
	out          io.Writer
	sessionID    string
	assistantID  string
}

// run reads questions line by line until EOF, /quit or ctx is done. Failed
// asks are reported and the conversation goes on. An interrupt only cancels
// the question in flight.
func (c *chat) run(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(c.out, chatHelp)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		fmt.Fprint(c.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(c.out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/new":
			c.sessionID = ""
			_ = c.renderer.Notice("started a new conversation")
			continue
		case "/session":
			_ = c.renderer.Notice("session: %s", c.sessionID)
			continue
		}

		if err := c.ask(ctx, line); err != nil {
			return err
		}
	}
}

func (c *chat) ask(ctx context.Context, question string) error {
	ctx, cancel := signalContext(ctx)
	defer cancel()
	ctx = helpers.ContextWithCorrelationID(ctx, helpers.NewCorrelationID())

	answer, err := c.orchestrator.Ask(ctx, assistant.AskRequest{
		SessionID:   c.sessionID,
		Question:    question,
		AssistantID: c.assistantID,
	})
	if answer != nil && answer.SessionID != "" {
		c.sessionID = answer.SessionID
	}
	if err != nil {
		if assistant.KindOf(err) == assistant.KindConfiguration {
			return err
		}
		return c.renderer.RenderError(err)
	}
	return c.renderer.RenderReply(answer.ReplyFragments)
}
