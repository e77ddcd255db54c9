package cli

import (
	"fmt"

	"github.com/HendryAvila/crosstalk/internal/hub"
	"github.com/spf13/cobra"
)

var logLimit int

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show recent messages across the hub",
	Long: "Shows the latest messages exchanged through the hub, newest first.\n" +
		"Read-only: viewing the log does not mark anything as read.",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer store.Close()

		msgs, err := store.RecentMessages(cmd.Context(), logLimit)
		if err != nil {
			return fmt.Errorf("loading messages: %w", err)
		}
		if len(msgs) == 0 {
			fmt.Println(dimStyle.Render("no messages yet"))
			return nil
		}

		fmt.Println(titleStyle.Render(fmt.Sprintf("Recent messages (%d)", len(msgs))))
		for _, m := range msgs {
			from := m.FromName
			if from == "" {
				from = m.FromSession
			}
			target := "→ " + m.ToSession
			if m.Broadcast {
				target = "→ everyone"
			}
			status := ""
			if !m.Read {
				status = accentStyle.Render(" [unread]")
			}
			fmt.Printf("%s %s %s %s%s\n",
				labelStyle.Render(m.Timestamp),
				valueStyle.Render(from),
				dimStyle.Render(target),
				labelStyle.Render("("+m.MessageType+")"),
				status)
			fmt.Printf("   %s\n", valueStyle.Render(hub.Truncate(m.Content, 120)))
		}

		stats, err := store.QueueStatus(cmd.Context())
		if err != nil {
			return fmt.Errorf("loading queue stats: %w", err)
		}
		fmt.Println(dimStyle.Render(fmt.Sprintf("queue: %d pending, %d delivered, %d failed",
			stats.Pending, stats.Delivered, stats.Failed)))
		return nil
	},
}

func init() {
	logCmd.Flags().IntVarP(&logLimit, "limit", "n", 30, "Maximum messages to show")
	RootCmd.AddCommand(logCmd)
}
