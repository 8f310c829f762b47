package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jholhewres/chatclaw/pkg/chatclaw/database"
	"github.com/jholhewres/chatclaw/pkg/chatclaw/scheduler"
)

// newScheduleCmd creates the `chatclaw schedule` command for managing
// reminders from the terminal.
func newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage reminders",
		Long: `Manage the assistant's reminders. Reminders deliver a message to a
chat at the scheduled time; they never run commands.

Examples:
  chatclaw schedule list
  chatclaw schedule add "0 9 * * 1-5" "Daily standup in 15 minutes" --channel telegram --chat-id 12345
  chatclaw schedule add "2026-09-01 09:00" "Renew the certificate" --type at --channel telegram --chat-id 12345
  chatclaw schedule remove <id>`,
	}

	cmd.AddCommand(
		newScheduleListCmd(),
		newScheduleAddCmd(),
		newScheduleRemoveCmd(),
	)

	return cmd
}

// openScheduler loads the persisted reminders without starting the
// cron runner; the CLI only edits them.
func openScheduler(cmd *cobra.Command) (*scheduler.Scheduler, *database.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	store, err := database.Open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}

	sched := scheduler.New(store.Reminders(), nil, newLogger(cmd))
	if err := sched.Load(); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("loading reminders: %w", err)
	}
	return sched, store, nil
}

func newScheduleListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all reminders",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sched, store, err := openScheduler(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			reminders := sched.List()
			if len(reminders) == 0 {
				fmt.Println("No reminders.")
				return nil
			}
			for _, r := range reminders {
				fmt.Printf("%s  [%s] %-20s %s → %s:%s (runs: %d)\n",
					r.ID, r.Type, r.Schedule, r.Message, r.Channel, r.ChatID, r.RunCount)
			}
			return nil
		},
	}
}

func newScheduleAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <schedule> <message>",
		Short: "Add a reminder",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			channel, _ := cmd.Flags().GetString("channel")
			chatID, _ := cmd.Flags().GetString("chat-id")
			rtype, _ := cmd.Flags().GetString("type")
			if chatID == "" {
				return fmt.Errorf("--chat-id is required")
			}

			sched, store, err := openScheduler(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			r := &scheduler.Reminder{
				Schedule: args[0],
				Message:  args[1],
				Type:     rtype,
				Channel:  channel,
				ChatID:   chatID,
			}
			if err := sched.Add(r); err != nil {
				return err
			}
			fmt.Printf("Reminder %s added: %q → %q\n", r.ID, r.Schedule, r.Message)
			return nil
		},
	}

	cmd.Flags().String("channel", "telegram", "delivery channel")
	cmd.Flags().String("chat-id", "", "target chat id")
	cmd.Flags().String("type", "cron", `schedule type: "cron", "every", or "at"`)
	return cmd
}

func newScheduleRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a reminder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sched, store, err := openScheduler(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := sched.Remove(args[0]); err != nil {
				return err
			}
			fmt.Printf("Reminder %s removed.\n", args[0])
			return nil
		},
	}
}
