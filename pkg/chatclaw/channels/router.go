// Package channels – router.go fans incoming messages from every
// connected channel into the assistant and routes replies back. The
// router also owns the chat-level commands (/approve, /deny) that
// resolve pending approvals.
package channels

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jholhewres/chatclaw/pkg/chatclaw/agent"
	"github.com/jholhewres/chatclaw/pkg/chatclaw/approval"
)

// Router connects channels to the assistant.
type Router struct {
	assistant *agent.Assistant
	access    *AccessList
	channels  map[string]Channel
	logger    *slog.Logger
	mu        sync.RWMutex
	wg        sync.WaitGroup
}

// NewRouter creates a router for the given assistant.
func NewRouter(assistant *agent.Assistant, access *AccessList, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		assistant: assistant,
		access:    access,
		channels:  make(map[string]Channel),
		logger:    logger.With("component", "router"),
	}
	assistant.SetNotifier(r)
	return r
}

// AddChannel registers a channel with the router.
func (r *Router) AddChannel(ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[ch.Name()] = ch
}

// Start connects every channel and begins dispatching messages.
// Blocks until the context is cancelled.
func (r *Router) Start(ctx context.Context) error {
	r.mu.RLock()
	chs := make([]Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		chs = append(chs, ch)
	}
	r.mu.RUnlock()

	if len(chs) == 0 {
		return fmt.Errorf("no channels configured")
	}

	for _, ch := range chs {
		if err := ch.Connect(ctx); err != nil {
			return fmt.Errorf("connecting %s: %w", ch.Name(), err)
		}
		r.logger.Info("channel connected", "channel", ch.Name())

		r.wg.Add(1)
		go func(ch Channel) {
			defer r.wg.Done()
			r.pump(ctx, ch)
		}(ch)
	}

	<-ctx.Done()

	for _, ch := range chs {
		if err := ch.Disconnect(); err != nil {
			r.logger.Warn("channel disconnect failed", "channel", ch.Name(), "error", err)
		}
	}
	r.wg.Wait()
	return nil
}

// Notify implements agent.Notifier: out-of-band messages (approval
// prompts, reminders) are sent on the chat's own channel.
func (r *Router) Notify(ctx context.Context, chatID, text string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ch := range r.channels {
		if ch.IsConnected() {
			if err := ch.Send(ctx, chatID, text); err == nil {
				return nil
			}
		}
	}
	return ErrSendFailed
}

// NotifyApproval implements agent.Notifier: channels with buttons get
// an interactive prompt, everything else gets the plain-text version
// with /approve and /deny instructions.
func (r *Router) NotifyApproval(ctx context.Context, chatID string, pc *approval.PendingCommand) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ch := range r.channels {
		if !ch.IsConnected() {
			continue
		}
		if prompter, ok := ch.(ApprovalPrompter); ok {
			if err := prompter.SendApprovalPrompt(ctx, chatID, pc.PromptText(),
				"approve:"+pc.ID, "deny:"+pc.ID); err == nil {
				return nil
			}
			continue
		}
		if err := ch.Send(ctx, chatID, pc.PromptText()); err == nil {
			return nil
		}
	}
	return ErrSendFailed
}

// Deliver sends a message on a named channel. The scheduler uses this
// for reminder delivery.
func (r *Router) Deliver(channel, chatID, text string) error {
	r.mu.RLock()
	ch, ok := r.channels[channel]
	r.mu.RUnlock()
	if !ok || !ch.IsConnected() {
		return fmt.Errorf("%w: %s", ErrChannelDisconnected, channel)
	}
	return ch.Send(context.Background(), chatID, text)
}

// pump drains one channel's incoming messages.
func (r *Router) pump(ctx context.Context, ch Channel) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch.Receive():
			if !ok {
				return
			}
			// Each message is handled in its own goroutine so a long
			// agent run on one chat does not stall the others.
			r.wg.Add(1)
			go func(msg *IncomingMessage) {
				defer r.wg.Done()
				r.handle(ctx, ch, msg)
			}(msg)
		}
	}
}

func (r *Router) handle(ctx context.Context, ch Channel, msg *IncomingMessage) {
	if !r.access.Allowed(msg.Channel, msg.From) {
		r.logger.Warn("message from unauthorized user dropped",
			"channel", msg.Channel, "from", msg.From)
		return
	}

	text := strings.TrimSpace(msg.Content)
	if text == "" {
		return
	}

	if strings.HasPrefix(text, "/") {
		if reply, handled := r.handleCommand(msg, text); handled {
			if reply != "" {
				r.send(ctx, ch, msg.ChatID, reply)
			}
			return
		}
	}

	reply, err := r.assistant.HandleMessage(ctx, msg.Channel, msg.ChatID, msg.ChatType, text)
	if err != nil {
		r.logger.Error("message handling failed",
			"channel", msg.Channel, "chat", msg.ChatID, "error", err)
		r.send(ctx, ch, msg.ChatID, "Something went wrong handling that message, please try again.")
		return
	}
	if reply != "" {
		r.send(ctx, ch, msg.ChatID, reply)
	}
}

// handleCommand processes chat-level slash commands. Returns handled
// false for anything unrecognized so normal text starting with "/"
// still reaches the assistant.
func (r *Router) handleCommand(msg *IncomingMessage, text string) (reply string, handled bool) {
	fields := strings.Fields(text)
	cmd := strings.ToLower(fields[0])

	switch cmd {
	case "/approve", "/deny":
		id := ""
		if len(fields) > 1 {
			id = fields[1]
		}
		if id == "" {
			id = r.assistant.LatestApprovalID(msg.Channel, msg.ChatID)
		}
		if id == "" {
			return "No pending command to decide on.", true
		}

		approve := cmd == "/approve"
		err := r.assistant.ResolveApproval(id, agent.SessionID(msg.Channel, msg.ChatID),
			approve, "decided by "+msg.From)
		switch {
		case errors.Is(err, approval.ErrNotFound):
			return "That request was already decided or has expired.", true
		case errors.Is(err, approval.ErrNotAuthorized):
			return "That request belongs to another chat.", true
		case err != nil:
			return "Could not resolve the request: " + err.Error(), true
		case approve:
			return "✅ Approved, running the command.", true
		default:
			return "❌ Denied.", true
		}

	case "/pending":
		list := r.assistant.Approvals().ListForSession(agent.SessionID(msg.Channel, msg.ChatID))
		if len(list) == 0 {
			return "No pending commands.", true
		}
		var b strings.Builder
		b.WriteString("Pending commands:\n")
		for _, pc := range list {
			fmt.Fprintf(&b, "• %s — %s\n", pc.ID, pc.Command)
		}
		return b.String(), true
	}

	return "", false
}

func (r *Router) send(ctx context.Context, ch Channel, chatID, text string) {
	if err := ch.Send(ctx, chatID, text); err != nil {
		r.logger.Error("send failed", "channel", ch.Name(), "chat", chatID, "error", err)
	}
}
