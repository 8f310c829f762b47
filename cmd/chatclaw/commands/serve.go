package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jholhewres/chatclaw/pkg/chatclaw/agent"
	"github.com/jholhewres/chatclaw/pkg/chatclaw/channels"
	"github.com/jholhewres/chatclaw/pkg/chatclaw/channels/discord"
	"github.com/jholhewres/chatclaw/pkg/chatclaw/channels/telegram"
	"github.com/jholhewres/chatclaw/pkg/chatclaw/config"
	"github.com/jholhewres/chatclaw/pkg/chatclaw/database"
	"github.com/jholhewres/chatclaw/pkg/chatclaw/scheduler"
	"github.com/jholhewres/chatclaw/pkg/chatclaw/workspace"
)

// newServeCmd creates the `chatclaw serve` command that starts the daemon.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the daemon with messaging channels",
		Long: `Start chatclaw as a daemon, connecting to the enabled channels
(Telegram, Discord) and processing messages.

Examples:
  chatclaw serve
  chatclaw serve --config ./config.yaml`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd)

	// Resolve secrets through vault → keyring → env → config.
	config.ResolveSecrets(&cfg, logger)
	if cfg.API.APIKey == "" {
		return fmt.Errorf("no API key configured, run 'chatclaw setup' first")
	}

	store, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer store.Close()

	ws := workspace.NewPolicy(cfg.Workspace.Root, logger)
	llm := agent.NewLLMClient(cfg.API.BaseURL, cfg.API.APIKey, cfg.API.Model, cfg.API.MaxTokens, logger)

	// The scheduler delivers through the router, which does not exist
	// yet; the closure resolves the variable at fire time.
	var router *channels.Router
	sched := scheduler.New(store.Reminders(), func(channel, chatID, message string) error {
		return router.Deliver(channel, chatID, message)
	}, logger)

	assistant := agent.NewAssistant(agent.Options{
		Workspace:        ws,
		LLM:              llm,
		Executor:         cfg.Executor,
		Sanitizer:        cfg.Sanitizer,
		Scheduler:        sched,
		Store:            store,
		SessionTTL:       cfg.Workspace.SessionTTL,
		SystemPrompt:     cfg.Agent.SystemPrompt,
		BlockedThreshold: cfg.Agent.BlockedThreshold,
	}, logger)

	router = channels.NewRouter(assistant, channels.NewAccessList(cfg.Access.AllowedUsers), logger)

	if cfg.Telegram.Enabled && cfg.Telegram.Token != "" {
		tgCfg := telegram.DefaultConfig()
		tgCfg.Token = cfg.Telegram.Token
		router.AddChannel(telegram.New(tgCfg, logger))
		logger.Info("Telegram channel registered")
	}
	if cfg.Discord.Enabled && cfg.Discord.Token != "" {
		router.AddChannel(discord.New(discord.Config{Token: cfg.Discord.Token}, logger))
		logger.Info("Discord channel registered")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()

	logger.Info("chatclaw running. Press Ctrl+C to stop.",
		"model", cfg.API.Model,
		"workspace", cfg.Workspace.Root,
	)

	if err := router.Start(ctx); err != nil && ctx.Err() == nil {
		return err
	}

	logger.Info("shutdown complete")
	return nil
}
