package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jholhewres/chatclaw/pkg/chatclaw/database"
)

// newApprovalsCmd creates the `chatclaw approvals` command for viewing
// the command approval audit trail.
func newApprovalsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approvals",
		Short: "Show recent command approval decisions",
		Long: `Show the most recent approve/deny decisions for dangerous commands,
newest first.

Examples:
  chatclaw approvals
  chatclaw approvals --limit 50`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := database.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer store.Close()

			limit, _ := cmd.Flags().GetInt("limit")
			entries, err := store.RecentApprovals(limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No approval decisions recorded.")
				return nil
			}
			for _, e := range entries {
				fmt.Printf("%s  %-8s %s  %q (%s)\n",
					e.DecidedAt.Format("2006-01-02 15:04:05"),
					e.Decision, e.ChatID, e.Command, e.Reason)
			}
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "number of entries to show")
	return cmd
}
