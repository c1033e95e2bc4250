package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"chatwidget-cli/cmd/utils"
	"chatwidget-cli/internal/chat"

	"github.com/spf13/cobra"
)

var (
	runInputFile string
	dryRun       bool
)

var errEmptyMessage = errors.New("message is empty")

// chatCmd represents the `cw chat` command
var chatCmd = &cobra.Command{
	Use:   "chat [\"input\"]",
	Short: "Send one message and print the reply",
	Long: `Send one message to the chat endpoint and print the reply. Failed
requests are retried with exponential backoff before giving up.

Examples:
  # Inline input
  cw chat "What can you do?"

  # Input file
  cw chat -f ./prompt.txt

  # Show the request instead of sending it
  cw chat --dry-run "hello"

  # No input opens the interactive chat window
  cw chat`,

	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) > 1 {
			return fmt.Errorf("expected at most one input argument, got %d (quote your message)", len(args))
		}
		if runInputFile != "" && len(args) == 1 {
			return fmt.Errorf("specify either --file or an inline input, not both")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		input, err := resolveChatInput(args)
		if err != nil {
			return err
		}

		// Start an interactive chat session if no input is provided
		if runInputFile == "" && len(args) == 0 {
			return runChatSessionTUI()
		}
		if strings.TrimSpace(input) == "" {
			return errEmptyMessage
		}

		sessionCtx, err := resolveSessionContext()
		if err != nil {
			return err
		}

		if dryRun {
			curl, err := buildChatCurl(input, sessionCtx)
			if err != nil {
				return fmt.Errorf("error generating curl command: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), curl)
			return nil
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runOneShot(ctx, sessionCtx, input, cmd.OutOrStdout())
	},
}

func init() {
	chatCmd.Flags().StringVarP(&runInputFile, "file", "f", "", "path to file containing input text")
	chatCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the equivalent curl command instead of executing the request")

	rootCmd.AddCommand(chatCmd)
}

func resolveChatInput(args []string) (string, error) {
	if runInputFile != "" {
		data, err := os.ReadFile(runInputFile)
		if err != nil {
			return "", fmt.Errorf("error reading file '%s': %w", runInputFile, err)
		}
		return string(data), nil
	}
	if len(args) == 1 {
		return args[0], nil
	}
	return "", nil
}

// runOneShot pushes input through a widget exactly as the TUI would and
// prints the bot message that settles the pipeline.
func runOneShot(ctx context.Context, sessionCtx *ChatSessionContext, input string, out io.Writer) error {
	pipeline, err := newChatPipeline(sessionCtx, utils.Logger())
	if err != nil {
		return err
	}

	var result chat.Result
	widget := chat.NewWidget(ctx, chat.NewTranscript(), pipeline,
		chat.WithSettledHook(func(r chat.Result) { result = r }))
	defer widget.Close()

	widget.SetDraft(input)
	id, ok := widget.Submit()
	if !ok {
		if err := ctx.Err(); err != nil {
			return err
		}
		return errEmptyMessage
	}
	utils.LogDebug(fmt.Sprintf("one-shot pipeline %s started", id))
	widget.Wait()

	switch result.Outcome {
	case chat.OutcomeReplied:
		fmt.Fprintln(out, result.Reply)
		return nil
	case chat.OutcomeFailed:
		if last, ok := widget.Transcript().LastFrom(chat.SenderBot); ok {
			fmt.Fprintln(out, last.Text)
		}
		return fmt.Errorf("no reply after %d attempts: %w", result.Attempts, result.Err)
	default:
		return fmt.Errorf("cancelled: %w", result.Err)
	}
}
