package cli

import (
	"errors"
	"fmt"

	"github.com/HendryAvila/crosstalk/internal/hub"
	"github.com/spf13/cobra"
)

var contextCmd = &cobra.Command{
	Use:   "context [key]",
	Short: "Inspect the shared context store",
	Long: "Without arguments, lists all shared context entries. With a key,\n" +
		"prints that entry's full content. Read-only: access counts are not\n" +
		"bumped, unlike reads done by sessions.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer store.Close()

		if len(args) == 1 {
			return showContextEntry(cmd, store, args[0])
		}

		entries, err := store.ListContext(cmd.Context(), hub.ListContextParams{Limit: 200})
		if err != nil {
			return fmt.Errorf("listing context: %w", err)
		}
		if len(entries) == 0 {
			fmt.Println(dimStyle.Render("no shared context entries"))
			return nil
		}

		fmt.Println(titleStyle.Render(fmt.Sprintf("Shared context (%d entries)", len(entries))))
		for _, e := range entries {
			fmt.Printf("%s\n", accentStyle.Render(e.Key))
			fmt.Printf("   %s\n", valueStyle.Render(e.Content))
			by := ""
			if e.CreatedBy != "" {
				by = " by " + e.CreatedBy
			}
			fmt.Printf("   %s\n", dimStyle.Render(fmt.Sprintf("updated %s%s, read %d time(s)", e.UpdatedAt, by, e.AccessCount)))
		}
		return nil
	},
}

func showContextEntry(cmd *cobra.Command, store *hub.Store, key string) error {
	entry, err := store.PeekContext(cmd.Context(), key)
	if errors.Is(err, hub.ErrContextNotFound) {
		fmt.Println(dimStyle.Render("no entry for key " + key))
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading context: %w", err)
	}

	fmt.Println(titleStyle.Render(entry.Key))
	fmt.Println(valueStyle.Render(entry.Content))
	by := ""
	if entry.CreatedBy != "" {
		by = " by " + entry.CreatedBy
	}
	fmt.Println(dimStyle.Render(fmt.Sprintf("created %s%s, updated %s, read %d time(s)",
		entry.CreatedAt, by, entry.UpdatedAt, entry.AccessCount)))
	return nil
}

func init() {
	RootCmd.AddCommand(contextCmd)
}
