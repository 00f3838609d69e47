package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/llmcouncil/councilgo/pkg/client"
	"github.com/llmcouncil/councilgo/pkg/models"
)

const (
	tabMinWidth = 0
	tabWidth    = 4
	tabPadding  = 2
)

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"conv"},
	Short:   "Manage council conversations",
}

var conversationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your conversations, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := currentUserID()
		if err != nil {
			return err
		}

		summaries, err := api.ListConversations(cmd.Context(), userID)
		if err != nil {
			return fmt.Errorf("list conversations: %w", err)
		}
		if len(summaries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), `No conversations yet. Start one with: councilctl ask "..."`)
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), tabMinWidth, tabWidth, tabPadding, ' ', 0)
		fmt.Fprintln(w, "ID\tCREATED\tMESSAGES\tTITLE")
		for _, s := range summaries {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
				s.ID, s.CreatedAt.Local().Format("2006-01-02 15:04"), s.MessageCount, s.Title)
		}
		return w.Flush()
	},
}

var conversationsNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Open a new empty conversation",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := currentUserID()
		if err != nil {
			return err
		}

		conv, err := api.CreateConversation(cmd.Context(), userID)
		if err != nil {
			return fmt.Errorf("create conversation: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), conv.ID)
		return nil
	},
}

var conversationsShowCmd = &cobra.Command{
	Use:   "show <conversation-id>",
	Short: "Print a conversation's messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conv, err := api.GetConversation(cmd.Context(), args[0])
		if err != nil {
			return conversationError(args[0], err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s  (%s)\n", conv.Title, conv.CreatedAt.Local().Format("2006-01-02 15:04"))
		for _, msg := range conv.Messages {
			fmt.Fprintln(out)
			switch msg.Role {
			case models.RoleUser:
				fmt.Fprintf(out, "You: %s\n", msg.Content)
				for _, att := range msg.Attachments {
					fmt.Fprintf(out, "  [attached %s, %s, %d bytes]\n", att.Name, att.MimeType, att.Size)
				}
			case models.RoleAssistant:
				if showStages {
					printStages(out, msg.Stage1, msg.Stage2, nil)
				}
				if msg.Stage3 != nil {
					fmt.Fprintf(out, "Council: %s\n", msg.Stage3.Response)
				}
			}
		}
		return nil
	},
}

var conversationsRmCmd = &cobra.Command{
	Use:   "rm <conversation-id>",
	Short: "Delete a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := api.DeleteConversation(cmd.Context(), args[0]); err != nil {
			return conversationError(args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	},
}

var showStages bool

func init() {
	rootCmd.AddCommand(conversationsCmd)
	conversationsCmd.AddCommand(conversationsListCmd)
	conversationsCmd.AddCommand(conversationsNewCmd)
	conversationsCmd.AddCommand(conversationsShowCmd)
	conversationsCmd.AddCommand(conversationsRmCmd)

	conversationsShowCmd.Flags().BoolVar(&showStages, "stages", false, "Include per-model stage results")
}

// conversationError turns a 404 into a message naming the id; other errors
// pass through wrapped.
func conversationError(id string, err error) error {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.NotFound() {
		return fmt.Errorf("conversation %s not found", id)
	}
	return fmt.Errorf("conversation %s: %w", id, err)
}
