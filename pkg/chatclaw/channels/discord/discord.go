// Package discord implements the Discord channel for chatclaw using
// discordgo.
//
// Features:
//   - Text send/receive for guild channels and DMs
//   - Approval prompts as button components, routed back as /approve
//     and /deny messages
//   - Guild and channel allowlists
//   - Automatic reconnection via discordgo's gateway
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jholhewres/chatclaw/pkg/chatclaw/channels"
	"github.com/jholhewres/chatclaw/pkg/chatclaw/guard"
)

// Config holds Discord channel configuration.
type Config struct {
	// Token is the Discord bot token.
	Token string `yaml:"token"`

	// AllowedGuilds restricts which guild (server) IDs the bot responds
	// in. Empty means respond in all guilds.
	AllowedGuilds []string `yaml:"allowed_guilds"`

	// AllowedChannels restricts which channel IDs the bot responds in.
	// Empty means respond in all channels.
	AllowedChannels []string `yaml:"allowed_channels"`
}

// Discord implements channels.Channel and channels.ApprovalPrompter.
type Discord struct {
	cfg     Config
	logger  *slog.Logger
	session *discordgo.Session

	// messages forwards incoming messages to the router.
	messages chan *channels.IncomingMessage

	connected atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Discord channel instance.
func New(cfg Config, logger *slog.Logger) *Discord {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discord{
		cfg:      cfg,
		logger:   logger.With("component", "discord"),
		messages: make(chan *channels.IncomingMessage, 256),
	}
}

// ---------- Channel interface ----------

// Name returns "discord".
func (d *Discord) Name() string { return "discord" }

// Connect opens the Discord gateway WebSocket connection.
func (d *Discord) Connect(ctx context.Context) error {
	if d.cfg.Token == "" {
		return fmt.Errorf("discord: bot token is required")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	session, err := discordgo.New("Bot " + d.cfg.Token)
	if err != nil {
		return fmt.Errorf("discord: creating session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	session.AddHandler(d.onMessageCreate)
	session.AddHandler(d.onInteractionCreate)

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord: opening gateway: %w", err)
	}

	d.session = session
	d.connected.Store(true)

	user := session.State.User
	d.logger.Info("discord: connected", "bot", user.Username, "id", user.ID)
	return nil
}

// Disconnect closes the Discord gateway connection.
func (d *Discord) Disconnect() error {
	if d.cancel != nil {
		d.cancel()
	}
	if d.session != nil {
		d.session.Close()
	}
	d.connected.Store(false)
	d.logger.Info("discord: disconnected")
	return nil
}

// Send delivers a text message, splitting at Discord's 2000 character
// limit.
func (d *Discord) Send(ctx context.Context, to, text string) error {
	if d.session == nil {
		return channels.ErrChannelDisconnected
	}
	for _, chunk := range splitMessage(text, 2000) {
		if _, err := d.session.ChannelMessageSend(to, chunk); err != nil {
			return err
		}
	}
	return nil
}

// Receive returns the incoming messages channel.
func (d *Discord) Receive() <-chan *channels.IncomingMessage {
	return d.messages
}

// IsConnected reports whether the bot is connected.
func (d *Discord) IsConnected() bool { return d.connected.Load() }

// ---------- ApprovalPrompter ----------

// SendApprovalPrompt sends the approval text with approve/deny button
// components.
func (d *Discord) SendApprovalPrompt(ctx context.Context, to, text, approveData, denyData string) error {
	if d.session == nil {
		return channels.ErrChannelDisconnected
	}
	_, err := d.session.ChannelMessageSendComplex(to, &discordgo.MessageSend{
		Content: text,
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label:    "Approve",
						Style:    discordgo.SuccessButton,
						CustomID: approveData,
					},
					discordgo.Button{
						Label:    "Deny",
						Style:    discordgo.DangerButton,
						CustomID: denyData,
					},
				},
			},
		},
	})
	return err
}

// ---------- Event handlers ----------

// onMessageCreate handles incoming Discord messages.
func (d *Discord) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author.ID == s.State.User.ID || m.Author.Bot {
		return
	}
	if !d.guildAllowed(m.GuildID) || !d.channelAllowed(m.ChannelID) {
		return
	}

	chatType := guard.ChatPrivate
	if m.GuildID != "" {
		chatType = guard.ChatGroup
	}

	incoming := &channels.IncomingMessage{
		ID:        m.ID,
		Channel:   "discord",
		From:      m.Author.ID,
		FromName:  m.Author.Username,
		ChatID:    m.ChannelID,
		ChatType:  chatType,
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}

	select {
	case d.messages <- incoming:
	default:
		d.logger.Warn("discord: message buffer full, dropping message", "msg_id", incoming.ID)
	}
}

// onInteractionCreate handles approval button clicks. The custom id is
// "approve:<id>" or "deny:<id>"; it is rewritten into the slash-command
// form the router understands.
func (d *Discord) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent {
		return
	}
	customID := i.MessageComponentData().CustomID

	var content string
	switch {
	case strings.HasPrefix(customID, "approve:"):
		content = "/approve " + strings.TrimPrefix(customID, "approve:")
	case strings.HasPrefix(customID, "deny:"):
		content = "/deny " + strings.TrimPrefix(customID, "deny:")
	default:
		return
	}

	userID, username := interactionUser(i)
	if userID == "" {
		return
	}

	// Acknowledge within Discord's 3s limit and strip the buttons so
	// the prompt cannot be pressed twice from the UI.
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}); err != nil {
		d.logger.Warn("discord: failed to ack interaction", "custom_id", customID, "error", err)
		return
	}
	empty := []discordgo.MessageComponent{}
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Components: &empty,
	}); err != nil {
		d.logger.Debug("discord: failed to clear buttons", "error", err)
	}

	chatType := guard.ChatPrivate
	if i.GuildID != "" {
		chatType = guard.ChatGroup
	}

	incoming := &channels.IncomingMessage{
		ID:        "interaction-" + i.ID,
		Channel:   "discord",
		From:      userID,
		FromName:  username,
		ChatID:    i.ChannelID,
		ChatType:  chatType,
		Content:   content,
		Timestamp: time.Now(),
	}

	select {
	case d.messages <- incoming:
	default:
		d.logger.Warn("discord: message buffer full, dropping interaction", "id", i.ID)
	}
}

// ---------- Helpers ----------

func (d *Discord) guildAllowed(guildID string) bool {
	if len(d.cfg.AllowedGuilds) == 0 || guildID == "" {
		return true
	}
	for _, id := range d.cfg.AllowedGuilds {
		if id == guildID {
			return true
		}
	}
	return false
}

func (d *Discord) channelAllowed(channelID string) bool {
	if len(d.cfg.AllowedChannels) == 0 {
		return true
	}
	for _, id := range d.cfg.AllowedChannels {
		if id == channelID {
			return true
		}
	}
	return false
}

func interactionUser(i *discordgo.InteractionCreate) (id, name string) {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID, i.Member.User.Username
	}
	if i.User != nil {
		return i.User.ID, i.User.Username
	}
	return "", ""
}

// splitMessage splits text into chunks, preferring newline boundaries.
func splitMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}
	var chunks []string
	for len(text) > 0 {
		if len(text) <= maxLen {
			chunks = append(chunks, text)
			break
		}
		cutAt := maxLen
		if idx := strings.LastIndex(text[:maxLen], "\n"); idx > maxLen/2 {
			cutAt = idx + 1
		}
		chunks = append(chunks, text[:cutAt])
		text = text[cutAt:]
	}
	return chunks
}

// Compile-time interface verification.
var (
	_ channels.Channel          = (*Discord)(nil)
	_ channels.ApprovalPrompter = (*Discord)(nil)
)
