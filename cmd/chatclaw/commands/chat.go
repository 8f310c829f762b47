package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jholhewres/chatclaw/pkg/chatclaw/agent"
	"github.com/jholhewres/chatclaw/pkg/chatclaw/approval"
	"github.com/jholhewres/chatclaw/pkg/chatclaw/config"
	"github.com/jholhewres/chatclaw/pkg/chatclaw/database"
	"github.com/jholhewres/chatclaw/pkg/chatclaw/guard"
	"github.com/jholhewres/chatclaw/pkg/chatclaw/workspace"
)

// newChatCmd creates the `chatclaw chat` command for local conversations.
func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat [message]",
		Short: "Talk to the assistant from the terminal",
		Long: `Start a conversation with the assistant without any messaging
channel. Pass a message for a single exchange, or no arguments for an
interactive session.

Examples:
  chatclaw chat "list the files in my workspace"
  chatclaw chat`,
		Args: cobra.MaximumNArgs(1),
		RunE: runChat,
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd)

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

	assistant := agent.NewAssistant(agent.Options{
		Workspace:        ws,
		LLM:              llm,
		Executor:         cfg.Executor,
		Sanitizer:        cfg.Sanitizer,
		Store:            store,
		SessionTTL:       cfg.Workspace.SessionTTL,
		SystemPrompt:     cfg.Agent.SystemPrompt,
		BlockedThreshold: cfg.Agent.BlockedThreshold,
	}, logger)

	// Approval prompts are answered inline on the terminal.
	assistant.SetNotifier(&terminalNotifier{assistant: assistant, in: bufio.NewReader(os.Stdin)})

	ctx := cmd.Context()

	if len(args) > 0 {
		return chatOnce(ctx, assistant, args[0])
	}
	return chatLoop(ctx, assistant)
}

func chatOnce(ctx context.Context, assistant *agent.Assistant, text string) error {
	reply, err := assistant.HandleMessage(ctx, "cli", "local", guard.ChatPrivate, text)
	if err != nil {
		return err
	}
	fmt.Println(reply)
	return nil
}

func chatLoop(ctx context.Context, assistant *agent.Assistant) error {
	fmt.Println("chatclaw interactive chat. Type 'exit' to quit.")
	in := bufio.NewReader(os.Stdin)

	for {
		fmt.Print("> ")
		line, err := in.ReadString('\n')
		if err != nil {
			fmt.Println()
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		reply, err := assistant.HandleMessage(ctx, "cli", "local", guard.ChatPrivate, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Println(reply)
	}
}

// terminalNotifier implements agent.Notifier for local chat. Approval
// prompts are decided synchronously on stdin before the agent resumes.
type terminalNotifier struct {
	assistant *agent.Assistant
	in        *bufio.Reader
}

func (t *terminalNotifier) Notify(_ context.Context, _, text string) error {
	fmt.Println(text)
	return nil
}

func (t *terminalNotifier) NotifyApproval(_ context.Context, _ string, pc *approval.PendingCommand) error {
	fmt.Println(pc.PromptText())
	fmt.Print("Approve? [y/N] ")

	line, err := t.in.ReadString('\n')
	if err != nil {
		line = ""
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	approve := answer == "y" || answer == "yes"

	return t.assistant.ResolveApproval(pc.ID, pc.SessionID, approve, "decided on the terminal")
}
