// Package agent – tools_schedule.go registers the reminder tools.
// Reminders only deliver messages; they never execute commands, so the
// scheduler runs outside the approval pipeline.
package agent

import (
	"context"
	"fmt"

	"github.com/jholhewres/chatclaw/pkg/chatclaw/scheduler"
)

func (a *Assistant) registerScheduleTools() {
	if a.scheduler == nil {
		return
	}

	a.tools.Register(MakeToolDefinition("schedule_reminder",
		"Schedule a reminder message for this chat. Use type 'cron' with a cron expression for recurring reminders, 'every' with a duration like 30m, or 'at' with a time like 15:04 or 5m for one-shot reminders.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"schedule": map[string]any{"type": "string", "description": "Cron expression, duration, or time"},
				"type":     map[string]any{"type": "string", "enum": []string{"cron", "every", "at"}},
				"message":  map[string]any{"type": "string", "description": "The reminder text to deliver"},
			},
			"required": []string{"schedule", "message"},
		}), a.toolScheduleReminder)

	a.tools.Register(MakeToolDefinition("list_reminders",
		"List the reminders scheduled for this chat.", nil), a.toolListReminders)

	a.tools.Register(MakeToolDefinition("cancel_reminder",
		"Cancel a scheduled reminder by id.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"id": map[string]any{"type": "string"},
			},
			"required": []string{"id"},
		}), a.toolCancelReminder)
}

func (a *Assistant) toolScheduleReminder(ctx context.Context, args map[string]any) (any, error) {
	inv := InvocationFromContext(ctx)

	r := &scheduler.Reminder{
		Schedule: getString(args, "schedule"),
		Type:     getString(args, "type"),
		Message:  getString(args, "message"),
		Channel:  channelFromSession(inv.SessionID),
		ChatID:   inv.ChatID,
	}
	if err := a.scheduler.Add(r); err != nil {
		return nil, fmt.Errorf("scheduling reminder: %w", err)
	}

	return map[string]any{
		"success":  true,
		"id":       r.ID,
		"schedule": r.Schedule,
		"type":     r.Type,
	}, nil
}

func (a *Assistant) toolListReminders(ctx context.Context, args map[string]any) (any, error) {
	inv := InvocationFromContext(ctx)

	reminders := a.scheduler.ListForChat(inv.ChatID)
	if len(reminders) == 0 {
		return map[string]any{"success": true, "reminders": []any{}, "note": "no reminders scheduled"}, nil
	}

	var list []map[string]any
	for _, r := range reminders {
		list = append(list, map[string]any{
			"id":       r.ID,
			"schedule": r.Schedule,
			"type":     r.Type,
			"message":  r.Message,
			"runs":     r.RunCount,
		})
	}
	return map[string]any{"success": true, "reminders": list}, nil
}

func (a *Assistant) toolCancelReminder(ctx context.Context, args map[string]any) (any, error) {
	inv := InvocationFromContext(ctx)

	id := getString(args, "id")
	if id == "" {
		return nil, fmt.Errorf("id is required")
	}

	// A chat may only cancel its own reminders.
	owned := false
	for _, r := range a.scheduler.ListForChat(inv.ChatID) {
		if r.ID == id {
			owned = true
			break
		}
	}
	if !owned {
		return nil, fmt.Errorf("reminder %q not found for this chat", id)
	}

	if err := a.scheduler.Remove(id); err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "cancelled": id}, nil
}
