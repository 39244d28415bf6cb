package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"signalbot/internal/models"
)

func addLLMCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newPromptCmd(app))
	rootCmd.AddCommand(newChatCmd(app))
}

func newPromptCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "prompt <text>",
		Short: "Send a prompt to the language model",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			resp, err := app.Client().Prompt(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("prompt: %w", err)
			}

			if output.IsJSON() {
				return output.JSON(map[string]string{"response": resp})
			}
			output.Println(resp)
			return nil
		},
	}
}

func newChatCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Send a conversation to the language model",
		Long: `Send an ordered conversation to the language model.

Each --message is role:content where role is system, user or assistant:

  signalbot chat -m "system:You are terse." -m "user:Summarize BTC today"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			raw, _ := cmd.Flags().GetStringArray("message")
			messages, err := parseMessages(raw)
			if err != nil {
				return err
			}

			resp, err := app.Client().Chat(cmd.Context(), messages)
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}

			if output.IsJSON() {
				return output.JSON(map[string]string{"response": resp})
			}
			output.Println(resp)
			return nil
		},
	}
	cmd.Flags().StringArrayP("message", "m", nil, "message as role:content (repeatable)")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func parseMessages(raw []string) ([]models.ChatMessage, error) {
	messages := make([]models.ChatMessage, 0, len(raw))
	for _, m := range raw {
		role, content, ok := strings.Cut(m, ":")
		if !ok {
			return nil, fmt.Errorf("invalid message %q: expected role:content", m)
		}
		r := models.ChatRole(strings.ToLower(strings.TrimSpace(role)))
		if !r.Valid() {
			return nil, fmt.Errorf("invalid role %q: must be system, user or assistant", role)
		}
		messages = append(messages, models.ChatMessage{Role: r, Content: content})
	}
	return messages, nil
}
