package cmds

import (
	"fmt"
	"io"
	"os"

	"github.com/go-go-golems/grillo/pkg/assistant"
	"github.com/go-go-golems/grillo/pkg/assistant/openai"
	"github.com/go-go-golems/grillo/pkg/settings"
	"github.com/go-go-golems/grillo/pkg/unittest"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func addUnitTestFlags(cmd *cobra.Command) {
	defaults := settings.NewUnitTestSettings()
	cmd.Flags().String(settings.KeyUnitTestModel, defaults.Model, "Chat model used to write unit tests")
	cmd.Flags().Float32(settings.KeyUnitTestTemp, defaults.Temperature, "Sampling temperature for unit tests")
	cmd.Flags().Int(settings.KeyUnitTestTokens, defaults.MaxTokens, "Maximum tokens of generated unit tests")
}

func NewUnitTestCommand() *cobra.Command {
	var (
		input  string
		output string
	)

	cmd := &cobra.Command{
		Use:     "unit-test",
		Short:   "Generate JUnit 5 and Mockito tests for a Java source file",
		Args:    cobra.NoArgs,
		PreRunE: bindLocalFlags,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(true)
			if err != nil {
				return err
			}
			client, err := openai.MakeClient(s.Client)
			if err != nil {
				return err
			}

			source, err := os.ReadFile(input)
			if err != nil {
				return errors.Wrapf(assistant.ErrInvalidRequest, "could not read %s: %v", input, err)
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			tests, err := unittest.NewGenerator(client, s.UnitTest).Generate(ctx, string(source))
			if err != nil {
				return err
			}

			if output == "-" {
				_, err = io.WriteString(cmd.OutOrStdout(), tests)
				return err
			}
			if err := os.WriteFile(output, []byte(tests), 0o644); err != nil {
				return errors.Wrapf(err, "could not write %s", output)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Java source file")
	cmd.Flags().StringVarP(&output, "output", "o", unittest.DefaultFileName, "Where to write the tests (- for stdout)")
	_ = cmd.MarkFlagRequired("input")
	addUnitTestFlags(cmd)

	return cmd
}
