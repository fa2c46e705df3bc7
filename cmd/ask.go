package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/issueradar/issueradar/config"
	"github.com/issueradar/issueradar/internal/model"
	"github.com/issueradar/issueradar/internal/output"
)

// NewCmdAsk creates the ask command.
func NewCmdAsk(opts *Options) *cobra.Command {
	var file, message string

	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Send chat messages to the configured model",
		Long: `Send a conversation to the configured model and print its answer.

The conversation is a JSON array of {"role": "system|assistant|user", "content": "..."}
read from stdin or --file. Use --message for a single user message.`,
		Example: `  echo '[{"role":"user","content":"Say hi"}]' | issueradar ask
  issueradar ask -m "What is a good first issue?"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAsk(cmd, file, message, opts)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the messages from a file instead of stdin")
	cmd.Flags().StringVarP(&message, "message", "m", "", "Send a single user message")
	cmd.MarkFlagsMutuallyExclusive("file", "message")

	return cmd
}

func runAsk(cmd *cobra.Command, file, message string, opts *Options) error {
	messages, err := readMessages(cmd, file, message)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	completer, release, err := newCompleter(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer release()

	completion, err := completer.Complete(cmd.Context(), messages)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	format, err := output.ParseFormat(opts.Format)
	if err != nil {
		return err
	}
	if format == output.FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(completion)
	}
	content, ok := completion.FirstContent()
	if !ok {
		return errors.New("the model returned no answer")
	}
	fmt.Fprintln(w, strings.TrimSpace(content))
	return nil
}

// readMessages decodes the conversation from --message, --file or stdin.
func readMessages(cmd *cobra.Command, file, message string) ([]model.ChatMessage, error) {
	if message != "" {
		return []model.ChatMessage{{Role: model.RoleUser, Content: message}}, nil
	}

	var data string
	var err error
	if file != "" && file != "-" {
		var raw []byte
		raw, err = os.ReadFile(file)
		data = string(raw)
	} else {
		data, err = readAll(cmd.InOrStdin())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}

	var messages []model.ChatMessage
	if err := json.Unmarshal([]byte(data), &messages); err != nil {
		return nil, fmt.Errorf("messages must be a JSON array of {role, content}: %w", err)
	}
	return messages, nil
}

func readAll(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
