// Package channels defines the interface and types for chatclaw
// communication channels. Each channel (Telegram, Discord, CLI)
// implements Channel to receive and send messages in a unified way.
package channels

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jholhewres/chatclaw/pkg/chatclaw/guard"
)

// Channel is implemented by every messaging transport.
type Channel interface {
	// Name returns the channel identifier (e.g. "telegram").
	Name() string

	// Connect establishes the connection to the messaging platform.
	Connect(ctx context.Context) error

	// Disconnect gracefully closes the connection.
	Disconnect() error

	// Send delivers a text message to a chat.
	Send(ctx context.Context, chatID, text string) error

	// Receive returns a Go channel emitting incoming messages.
	Receive() <-chan *IncomingMessage

	// IsConnected reports whether the channel is connected.
	IsConnected() bool
}

// IncomingMessage is a message received from any channel.
type IncomingMessage struct {
	// ID is the message identifier in the source channel.
	ID string

	// Channel identifies the source channel.
	Channel string

	// From is the sender identifier on the platform.
	From string

	// FromName is the sender display name, if available.
	FromName string

	// ChatID is the group or DM identifier.
	ChatID string

	// ChatType distinguishes private chats from group-like ones. The
	// classifier escalates dangerous commands to blocked in the latter.
	ChatType guard.ChatType

	// Content is the message text.
	Content string

	// Timestamp is when the message was sent.
	Timestamp time.Time
}

// ApprovalPrompter is implemented by channels that can render approval
// prompts with interactive approve/deny buttons. The callback data
// strings come back as "/approve <id>" and "/deny <id>" messages.
type ApprovalPrompter interface {
	SendApprovalPrompt(ctx context.Context, chatID, text, approveData, denyData string) error
}

// Errors shared by channel implementations.
var (
	ErrChannelDisconnected = fmt.Errorf("channel is not connected")
	ErrSendFailed          = fmt.Errorf("failed to send message")
)

// AccessList restricts which users the assistant responds to.
// Entries are "channel:userID"; an empty list allows everyone.
type AccessList struct {
	allowed map[string]bool
}

// NewAccessList builds an access list from config entries.
func NewAccessList(entries []string) *AccessList {
	if len(entries) == 0 {
		return &AccessList{}
	}
	allowed := make(map[string]bool, len(entries))
	for _, e := range entries {
		allowed[strings.TrimSpace(e)] = true
	}
	return &AccessList{allowed: allowed}
}

// Allowed reports whether a user may talk to the assistant.
func (a *AccessList) Allowed(channel, userID string) bool {
	if a == nil || a.allowed == nil {
		return true
	}
	return a.allowed[channel+":"+userID]
}
