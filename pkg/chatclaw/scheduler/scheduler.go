// Package scheduler implements reminder scheduling for chatclaw.
// Uses robfig/cron for cron expression parsing and execution, with
// SQLite-backed persistence so reminders survive restarts.
//
// Reminders only deliver a message to a chat at the scheduled time.
// They never run shell commands: anything a reminder could do in the
// workspace would happen without the user present to approve it.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Reminder is a scheduled message delivery.
type Reminder struct {
	// ID is the unique reminder identifier.
	ID string `json:"id"`

	// Schedule is the cron expression, @shorthand, or one-shot time.
	Schedule string `json:"schedule"`

	// Type is the schedule type: "cron" (recurring), "at" (one-shot),
	// "every" (interval).
	Type string `json:"type"`

	// Message is the text delivered when the reminder fires.
	Message string `json:"message"`

	// Channel is the delivery channel (e.g. "telegram").
	Channel string `json:"channel"`

	// ChatID is the target chat.
	ChatID string `json:"chat_id"`

	// Enabled indicates if the reminder is active.
	Enabled bool `json:"enabled"`

	CreatedAt time.Time  `json:"created_at"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	RunCount  int        `json:"run_count"`
}

// DeliverFunc sends a reminder message to its chat.
type DeliverFunc func(channel, chatID, message string) error

// Storage defines the persistence interface for reminders.
type Storage interface {
	Save(r *Reminder) error
	Delete(id string) error
	LoadAll() ([]*Reminder, error)
}

// Scheduler manages reminders using cron expressions.
type Scheduler struct {
	reminders map[string]*Reminder
	cron      *cron.Cron
	cronIDs   map[string]cron.EntryID
	storage   Storage
	deliver   DeliverFunc
	logger    *slog.Logger
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
}

// New creates a scheduler with the given storage and delivery function.
func New(storage Storage, deliver DeliverFunc, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		reminders: make(map[string]*Reminder),
		cronIDs:   make(map[string]cron.EntryID),
		storage:   storage,
		deliver:   deliver,
		logger:    logger.With("component", "scheduler"),
	}
}

// Add registers a reminder. A missing id is generated; a missing type
// defaults to "cron".
func (s *Scheduler) Add(r *Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.Schedule == "" {
		return fmt.Errorf("reminder schedule is required")
	}
	if r.Message == "" {
		return fmt.Errorf("reminder message is required")
	}
	if r.ID == "" {
		r.ID = uuid.New().String()[:8]
	}
	if _, exists := s.reminders[r.ID]; exists {
		return fmt.Errorf("reminder %q already exists", r.ID)
	}
	if r.Type == "" {
		r.Type = "cron"
	}
	r.CreatedAt = time.Now()
	r.Enabled = true

	if s.cron != nil {
		if err := s.scheduleLocked(r); err != nil {
			return fmt.Errorf("invalid schedule %q: %w", r.Schedule, err)
		}
	}

	s.reminders[r.ID] = r

	if s.storage != nil {
		if err := s.storage.Save(r); err != nil {
			s.logger.Error("failed to persist reminder", "id", r.ID, "error", err)
		}
	}

	s.logger.Info("reminder added",
		"id", r.ID,
		"schedule", r.Schedule,
		"type", r.Type,
		"chat", r.ChatID,
	)
	return nil
}

// Remove deletes a reminder by id.
func (s *Scheduler) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reminders[id]; !exists {
		return fmt.Errorf("reminder %q not found", id)
	}
	if entryID, ok := s.cronIDs[id]; ok {
		s.cron.Remove(entryID)
		delete(s.cronIDs, id)
	}
	delete(s.reminders, id)

	if s.storage != nil {
		if err := s.storage.Delete(id); err != nil {
			s.logger.Error("failed to remove reminder from storage", "id", id, "error", err)
		}
	}

	s.logger.Info("reminder removed", "id", id)
	return nil
}

// ListForChat returns the reminders targeting a chat.
func (s *Scheduler) ListForChat(chatID string) []*Reminder {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Reminder
	for _, r := range s.reminders {
		if r.ChatID == chatID {
			result = append(result, r)
		}
	}
	return result
}

// List returns all reminders.
func (s *Scheduler) List() []*Reminder {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Reminder, 0, len(s.reminders))
	for _, r := range s.reminders {
		result = append(result, r)
	}
	return result
}

// Load reads persisted reminders into memory without scheduling them.
// The CLI uses it to edit reminders while the daemon is not running.
func (s *Scheduler) Load() error {
	if s.storage == nil {
		return nil
	}
	reminders, err := s.storage.LoadAll()
	if err != nil {
		return err
	}
	s.mu.Lock()
	for _, r := range reminders {
		s.reminders[r.ID] = r
	}
	s.mu.Unlock()
	s.logger.Debug("reminders loaded from storage", "count", len(reminders))
	return nil
}

// Start initializes the cron runner and loads persisted reminders.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.cron = cron.New(cron.WithParser(cron.NewParser(
		cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)))

	if err := s.Load(); err != nil {
		s.logger.Error("failed to load reminders", "error", err)
	}

	s.mu.Lock()
	for _, r := range s.reminders {
		if r.Enabled {
			if err := s.scheduleLocked(r); err != nil {
				s.logger.Warn("skipping reminder with invalid schedule",
					"id", r.ID, "schedule", r.Schedule, "error", err)
			}
		}
	}
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("scheduler started", "entries", len(s.cron.Entries()))
	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		select {
		case <-ctx.Done():
		case <-time.After(5 * time.Second):
			s.logger.Warn("scheduler stop timed out")
		}
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.logger.Info("scheduler stopped")
}

// ---------- Internal ----------

// scheduleLocked registers a reminder with the cron runner. Callers
// hold mu.
func (s *Scheduler) scheduleLocked(r *Reminder) error {
	if r.Type == "at" {
		// One-shot reminders use a plain timer instead of cron.
		go s.runOneShot(r)
		return nil
	}

	schedule := r.Schedule
	if r.Type == "every" && schedule[0] != '@' {
		schedule = "@every " + schedule
	}

	entryID, err := s.cron.AddFunc(schedule, func() {
		s.fire(r)
	})
	if err != nil {
		return err
	}
	s.cronIDs[r.ID] = entryID
	return nil
}

// runOneShot waits until the target time, fires once, and removes the
// reminder.
func (s *Scheduler) runOneShot(r *Reminder) {
	target, err := ParseOneShotTime(r.Schedule)
	if err != nil {
		s.logger.Warn("invalid one-shot time", "id", r.ID, "time", r.Schedule, "error", err)
		return
	}

	delay := time.Until(target)
	if delay <= 0 {
		s.logger.Warn("one-shot time is in the past, firing immediately", "id", r.ID)
		s.fire(r)
		s.Remove(r.ID)
		return
	}

	s.logger.Info("one-shot reminder scheduled",
		"id", r.ID,
		"fires_at", target.Format(time.RFC3339),
	)

	select {
	case <-time.After(delay):
		s.mu.RLock()
		_, stillExists := s.reminders[r.ID]
		s.mu.RUnlock()
		if !stillExists {
			return
		}
		s.fire(r)
		s.Remove(r.ID)
	case <-s.ctx.Done():
	}
}

// fire delivers one reminder message.
func (s *Scheduler) fire(r *Reminder) {
	s.mu.Lock()
	now := time.Now()
	r.LastRunAt = &now
	r.RunCount++
	s.mu.Unlock()

	var err error
	if s.deliver != nil {
		err = s.deliver(r.Channel, r.ChatID, "⏰ "+r.Message)
	}

	s.mu.Lock()
	if err != nil {
		r.LastError = err.Error()
	} else {
		r.LastError = ""
	}
	_, stillExists := s.reminders[r.ID]
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("reminder delivery failed", "id", r.ID, "error", err)
	} else {
		s.logger.Info("reminder delivered", "id", r.ID, "chat", r.ChatID)
	}

	if s.storage != nil && stillExists {
		s.storage.Save(r)
	}
}

// ParseOneShotTime parses the time formats accepted for one-shot
// reminders: relative duration ("5m", "1h30m"), RFC3339,
// "2006-01-02 15:04", and "15:04" (today or tomorrow).
func ParseOneShotTime(timeStr string) (time.Time, error) {
	now := time.Now()

	if d, err := time.ParseDuration(timeStr); err == nil && d > 0 {
		return now.Add(d), nil
	}
	if t, err := time.Parse(time.RFC3339, timeStr); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02 15:04", timeStr); err == nil {
		return t, nil
	}
	if t, err := time.Parse("15:04", timeStr); err == nil {
		target := time.Date(now.Year(), now.Month(), now.Day(),
			t.Hour(), t.Minute(), 0, 0, now.Location())
		if target.Before(now) {
			target = target.Add(24 * time.Hour)
		}
		return target, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized time format: %s", timeStr)
}
