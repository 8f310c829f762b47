// Package agent implements the conversational assistant: the LLM
// tool-calling loop wired to the workspace policy, the command
// classifier, the approval store, the executor, and the output
// sanitizer. One Assistant serves every channel.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jholhewres/chatclaw/pkg/chatclaw/approval"
	"github.com/jholhewres/chatclaw/pkg/chatclaw/database"
	"github.com/jholhewres/chatclaw/pkg/chatclaw/executor"
	"github.com/jholhewres/chatclaw/pkg/chatclaw/guard"
	"github.com/jholhewres/chatclaw/pkg/chatclaw/sanitize"
	"github.com/jholhewres/chatclaw/pkg/chatclaw/scheduler"
	"github.com/jholhewres/chatclaw/pkg/chatclaw/workspace"
)

// maxIterations bounds the tool-calling loop per user message.
const maxIterations = 20

// Notifier pushes out-of-band messages to a chat. Channels implement
// it; channels with interactive buttons can render approval prompts
// with approve/deny controls instead of plain text.
type Notifier interface {
	Notify(ctx context.Context, chatID, text string) error

	// NotifyApproval delivers an approval prompt for a pending command.
	NotifyApproval(ctx context.Context, chatID string, pc *approval.PendingCommand) error
}

// Assistant runs the agent loop for incoming messages.
type Assistant struct {
	ws         *workspace.Policy
	classifier *guard.Classifier
	approvals  *approval.Manager
	exec       *executor.Executor
	sanitizer  *sanitize.Sanitizer
	tracker    *guard.BlockedTracker
	scheduler  *scheduler.Scheduler
	tools      *ToolExecutor
	llm        *LLMClient
	sessions   *SessionStore
	store      *database.Store
	notifier   Notifier
	httpClient *http.Client
	logger     *slog.Logger

	systemPrompt string
}

// Options collects the dependencies for NewAssistant.
type Options struct {
	Workspace    *workspace.Policy
	LLM          *LLMClient
	Executor     executor.Config
	Sanitizer    sanitize.Config
	Scheduler    *scheduler.Scheduler
	Store        *database.Store
	SessionTTL   time.Duration
	SystemPrompt string

	// BlockedThreshold is the consecutive-block limit before a turn is
	// stopped. Zero uses the default.
	BlockedThreshold int
}

// NewAssistant wires the policy engine together and registers the tool
// surface.
func NewAssistant(opts Options, logger *slog.Logger) *Assistant {
	if logger == nil {
		logger = slog.Default()
	}

	a := &Assistant{
		ws:           opts.Workspace,
		classifier:   guard.NewClassifier(opts.Workspace, logger),
		approvals:    approval.NewManager(logger),
		exec:         executor.New(opts.Executor, logger),
		sanitizer:    sanitize.New(opts.Sanitizer, logger),
		tracker:      guard.NewBlockedTracker(opts.BlockedThreshold, logger),
		scheduler:    opts.Scheduler,
		tools:        NewToolExecutor(logger),
		llm:          opts.LLM,
		sessions:     NewSessionStore(opts.Store, opts.SessionTTL, logger),
		store:        opts.Store,
		httpClient:   &http.Client{Timeout: fetchTimeout},
		logger:       logger.With("component", "assistant"),
		systemPrompt: opts.SystemPrompt,
	}
	if a.systemPrompt == "" {
		a.systemPrompt = defaultSystemPrompt
	}

	a.registerFileTools()
	a.registerShellTool()
	a.registerScheduleTools()
	a.registerWebTool()
	return a
}

// SetNotifier installs the out-of-band message sink. Must be called
// before messages are handled when approvals should reach the chat.
func (a *Assistant) SetNotifier(n Notifier) {
	a.notifier = n
}

// Approvals exposes the approval manager for channel commands.
func (a *Assistant) Approvals() *approval.Manager {
	return a.approvals
}

// HandleMessage runs the agent loop for one incoming message and
// returns the assistant's reply text.
func (a *Assistant) HandleMessage(ctx context.Context, channel, chatID string, chatType guard.ChatType, text string) (string, error) {
	session := a.sessions.Get(channel, chatID)

	// A fresh user message resets the blocked streak: the model gets a
	// clean slate each turn.
	a.tracker.Reset(session.ID)

	root, err := a.ws.RootFor(chatID)
	if err != nil {
		return "", fmt.Errorf("preparing workspace: %w", err)
	}

	inv := Invocation{
		SessionID:     session.ID,
		ChatID:        chatID,
		ChatType:      chatType,
		WorkspaceRoot: root,
		WorkingDir:    root,
	}
	ctx = ContextWithInvocation(ctx, inv)

	session.Append(Message{Role: "user", Content: text})

	reply, err := a.runLoop(ctx, session)
	a.sessions.Persist(session)
	return reply, err
}

// runLoop drives the LLM until it answers with plain text, the
// iteration cap is hit, or the blocked streak stops the turn.
func (a *Assistant) runLoop(ctx context.Context, session *Session) (string, error) {
	for i := 0; i < maxIterations; i++ {
		messages := append([]Message{{Role: "system", Content: a.systemPrompt}}, session.Snapshot()...)

		msg, err := a.llm.Chat(ctx, messages, a.tools.Tools())
		if err != nil {
			return "", fmt.Errorf("LLM request failed: %w", err)
		}

		session.Append(*msg)

		if len(msg.ToolCalls) == 0 {
			return msg.Content, nil
		}

		results := a.tools.Execute(ctx, msg.ToolCalls)
		for _, res := range results {
			session.Append(Message{
				Role:       "tool",
				ToolCallID: res.ToolCallID,
				Name:       res.Name,
				Content:    res.Content,
			})
		}

		if stopped, notice := a.trackBlocked(session.ID, results); stopped {
			session.Append(Message{Role: "assistant", Content: notice})
			return notice, nil
		}
	}
	return "", fmt.Errorf("agent loop exceeded %d iterations", maxIterations)
}

// trackBlocked updates the blocked streak from one batch of tool
// results. Any successful tool call resets the streak; hitting the
// threshold hard-stops the turn.
func (a *Assistant) trackBlocked(sessionID string, results []ToolResult) (stopped bool, notice string) {
	for _, res := range results {
		if res.Blocked {
			count, limitReached := a.tracker.RecordBlocked(sessionID)
			if limitReached {
				a.logger.Warn("turn stopped after repeated blocked operations",
					"session", sessionID, "count", count)
				return true, "I attempted several operations that were blocked by the workspace policy, so I am stopping here. Let me know how you would like to proceed."
			}
		} else if res.Error == nil {
			a.tracker.Reset(sessionID)
		}
	}
	return false, ""
}

// ResolveApproval applies an approve/deny decision from a channel and
// records it in the audit trail. sessionID must be the session the
// decision came from; a decision from another chat is refused.
func (a *Assistant) ResolveApproval(id, sessionID string, approve bool, reason string) error {
	pc, err := a.approvals.Resolve(id, sessionID, approve, reason)
	if err != nil {
		return err
	}

	if a.store != nil {
		decision := "denied"
		if approve {
			decision = "approved"
		}
		if err := a.store.RecordApproval(database.AuditEntry{
			RequestID: pc.ID,
			SessionID: pc.SessionID,
			ChatID:    pc.ChatID,
			Command:   pc.Command,
			Decision:  decision,
			Reason:    reason,
		}); err != nil {
			a.logger.Error("approval audit write failed", "id", pc.ID, "error", err)
		}
	}
	return nil
}

// LatestApprovalID returns the most recent pending approval for a
// chat's session, so "/approve" without an id works.
func (a *Assistant) LatestApprovalID(channel, chatID string) string {
	return a.approvals.LatestForSession(SessionID(channel, chatID))
}

const defaultSystemPrompt = `You are chatclaw, a helpful assistant with access to a private workspace directory.

You can read, write, and search files, run shell commands, schedule reminders, and fetch web pages. All of your file and command operations are confined to the user's workspace; operations outside it are rejected. Some commands require the user's explicit approval before they run, and a few are never allowed.

When an operation is blocked, explain what you were trying to do and ask the user how to proceed instead of retrying the same operation.`
