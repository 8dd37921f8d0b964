package cmds

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-go-golems/grillo/pkg/assistant"
	"github.com/go-go-golems/grillo/pkg/helpers"
	"github.com/go-go-golems/grillo/pkg/ui"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func NewAskCommand() *cobra.Command {
	var (
		sessionID   string
		assistantID string
		attachments []string
		uploads     []string
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "ask [question...]",
		Short: "Ask a single question and print the reply",
		Long: "Ask a single question and print the reply. The session id is printed to stderr;\n" +
			"pass it back with --session to continue the conversation.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			ctx = helpers.ContextWithCorrelationID(ctx, helpers.NewCorrelationID())

			for _, path := range uploads {
				data, err := os.ReadFile(path)
				if err != nil {
					return errors.Wrapf(assistant.ErrInvalidRequest, "could not read %s: %v", path, err)
				}
				f, err := a.client.UploadFile(ctx, filepath.Base(path), data)
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "uploaded %s as %s\n", path, f.ID)
				attachments = append(attachments, f.ID)
			}

			answer, err := a.orchestrator.Ask(ctx, assistant.AskRequest{
				SessionID:     sessionID,
				Question:      strings.Join(args, " "),
				AssistantID:   assistantID,
				AttachmentIDs: attachments,
			})
			if answer != nil && answer.SessionID != "" && !asJSON {
				fmt.Fprintf(os.Stderr, "session: %s\n", answer.SessionID)
			}
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]interface{}{
					"sessionId":      answer.SessionID,
					"runId":          answer.RunID,
					"replyFragments": answer.ReplyFragments,
					"noReply":        answer.NoReply(),
				})
			}

			r, err := ui.NewRenderer(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return r.RenderReply(answer.ReplyFragments)
		},
	}

	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Session to continue (default: start a new one)")
	cmd.Flags().StringVar(&assistantID, "assistant", "", "Assistant to ask instead of the default one")
	cmd.Flags().StringSliceVar(&attachments, "attach", nil, "Ids of uploaded files to search")
	cmd.Flags().StringSliceVar(&uploads, "upload", nil, "Files to upload and attach")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the answer as JSON")

	return cmd
}
