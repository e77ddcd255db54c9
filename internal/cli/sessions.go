package cli

import (
	"fmt"

	"github.com/HendryAvila/crosstalk/internal/platform"
	"github.com/spf13/cobra"
)

var sessionsPlatform string

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List active sessions in the hub",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer store.Close()

		sessions, err := store.ActiveSessions(cmd.Context(), sessionsPlatform)
		if err != nil {
			return fmt.Errorf("listing sessions: %w", err)
		}

		if len(sessions) == 0 {
			fmt.Println(dimStyle.Render("no active sessions"))
			return nil
		}

		fmt.Println(titleStyle.Render(fmt.Sprintf("Active sessions (%d)", len(sessions))))
		for _, s := range sessions {
			info := platform.Lookup(s.Platform)
			name := s.DisplayName
			if name == "" {
				name = s.SessionID
			}
			fmt.Printf("%s %s %s\n",
				info.Icon,
				accentStyle.Render(name),
				labelStyle.Render("("+s.SessionID+")"))
			fmt.Printf("   %s %s   %s %s\n",
				labelStyle.Render("platform:"), valueStyle.Render(info.Name),
				labelStyle.Render("last active:"), valueStyle.Render(s.LastActive))
		}
		return nil
	},
}

func init() {
	sessionsCmd.Flags().StringVarP(&sessionsPlatform, "platform", "p", "", "only show sessions on this platform")
	RootCmd.AddCommand(sessionsCmd)
}
