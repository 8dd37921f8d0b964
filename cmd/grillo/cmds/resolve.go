package cmds

import (
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/go-go-golems/grillo/pkg/assistant"
	"github.com/go-go-golems/grillo/pkg/conversation"
	"github.com/go-go-golems/grillo/pkg/ui"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func NewResolveCommand() *cobra.Command {
	var (
		file     string
		question string
		strict   bool
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Find the reply to a question in a saved transcript",
		Long: "Find the reply to a question in a saved transcript. The transcript may be a list of\n" +
			"messages, an object with a messages or data list, or a list of events ending in one of those.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(question) == "" {
				return errors.Wrap(assistant.ErrInvalidRequest, "--question is required")
			}

			var in io.Reader = cmd.InOrStdin()
			if file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return errors.Wrapf(assistant.ErrInvalidRequest, "could not open transcript: %v", err)
				}
				defer f.Close()
				in = f
			}
			data, err := io.ReadAll(in)
			if err != nil {
				return err
			}
			turns, err := conversation.ParseTranscript(data)
			if err != nil {
				return errors.Wrap(assistant.ErrInvalidRequest, err.Error())
			}

			res := conversation.Resolve(turns, question, conversation.WithStrictAnchor(strict))

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]interface{}{
					"replyFragments": res.Fragments,
					"anchorIndex":    res.AnchorIndex,
					"anchorMatched":  res.AnchorMatched,
					"replyIndex":     res.ReplyIndex,
					"fallback":       res.Fallback,
					"turns":          len(turns),
				})
			}

			r, err := ui.NewRenderer(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return r.RenderReply(res.Fragments)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "Transcript JSON file (- for stdin)")
	cmd.Flags().StringVarP(&question, "question", "q", "", "The question whose reply to find")
	cmd.Flags().BoolVar(&strict, "strict", false, "Require the question to appear in the transcript")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the resolution as JSON")

	return cmd
}
