package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jholhewres/chatclaw/pkg/chatclaw/config"
)

// newSetupCmd creates the `chatclaw setup` command for interactive configuration.
func newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Interactive setup wizard",
		Long: `Starts an interactive wizard to create your initial config.yaml.
Asks for the LLM endpoint, model, workspace root, and channel tokens.
Secrets are stored in an encrypted vault (AES-256-GCM) or the OS
keyring, never in plaintext.

Examples:
  chatclaw setup`,
		RunE: runSetup,
	}
}

// storageMethod tracks where a secret was stored during setup.
type storageMethod int

const (
	storageNone    storageMethod = iota
	storageVault                 // encrypted vault (.chatclaw.vault)
	storageKeyring               // OS keyring
)

func runSetup(_ *cobra.Command, _ []string) error {
	reader := bufio.NewReader(os.Stdin)
	cfg := config.Default()
	keyStorage := storageNone

	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════════╗")
	fmt.Println("║           chatclaw — Setup Wizard            ║")
	fmt.Println("╚══════════════════════════════════════════════╝")
	fmt.Println()

	// ── Step 1: API endpoint ──
	fmt.Printf("1. API base URL (OpenAI-compatible) [%s]: ", cfg.API.BaseURL)
	if url := readLine(reader); url != "" {
		cfg.API.BaseURL = url
	}

	// ── Step 2: Model ──
	fmt.Printf("2. Model [%s]: ", cfg.API.Model)
	if model := readLine(reader); model != "" {
		cfg.API.Model = model
	}

	// ── Step 3: API key ──
	fmt.Println()
	fmt.Println("   Your API key will be encrypted with AES-256-GCM in a")
	fmt.Println("   password-protected vault, or in the OS keyring.")
	fmt.Println()

	apiKey, err := config.ReadPassword("3. API key (hidden input): ")
	if err != nil {
		fmt.Print("3. API key (or press Enter to skip): ")
		apiKey = readLine(reader)
	}

	var vault *config.Vault
	if apiKey != "" {
		keyStorage, vault = setupVault(apiKey)
		if keyStorage == storageNone {
			fmt.Println("   [!] Could not store the API key securely.")
			fmt.Println("   You can set it later with: chatclaw config vault-init && chatclaw config vault-set")
		}
	} else {
		fmt.Println("   Skipped. Set it later with: chatclaw config set-key or chatclaw config vault-set")
	}

	// config.yaml never contains the real key.
	cfg.API.APIKey = "${CHATCLAW_API_KEY}"

	// ── Step 4: Workspace root ──
	fmt.Println()
	fmt.Println("   Every chat gets its own directory under the workspace root.")
	fmt.Println("   The assistant cannot touch anything outside it.")
	fmt.Println()
	fmt.Printf("4. Workspace root [%s]: ", cfg.Workspace.Root)
	if root := readLine(reader); root != "" {
		cfg.Workspace.Root = root
	}

	// ── Step 5: Telegram ──
	fmt.Println()
	fmt.Print("5. Enable Telegram? (y/n) [n]: ")
	if strings.ToLower(readLine(reader)) == "y" {
		cfg.Telegram.Enabled = true
		token, err := config.ReadPassword("   Telegram bot token (hidden input): ")
		if err != nil {
			fmt.Print("   Telegram bot token: ")
			token = readLine(reader)
		}
		if token != "" {
			storeSecret(vault, "TELEGRAM_BOT_TOKEN", config.KeyTelegramToken, token)
		}
		cfg.Telegram.Token = "${TELEGRAM_BOT_TOKEN}"
	}

	// ── Step 6: Discord ──
	fmt.Print("6. Enable Discord? (y/n) [n]: ")
	if strings.ToLower(readLine(reader)) == "y" {
		cfg.Discord.Enabled = true
		token, err := config.ReadPassword("   Discord bot token (hidden input): ")
		if err != nil {
			fmt.Print("   Discord bot token: ")
			token = readLine(reader)
		}
		if token != "" {
			storeSecret(vault, "DISCORD_BOT_TOKEN", config.KeyDiscordToken, token)
		}
		cfg.Discord.Token = "${DISCORD_BOT_TOKEN}"
	}

	if vault != nil {
		vault.Lock()
	}

	// ── Summary ──
	fmt.Println()
	fmt.Println("─────────────────────────────────────────────")
	fmt.Println("  Configuration summary:")
	fmt.Println("─────────────────────────────────────────────")
	fmt.Printf("  API URL:    %s\n", cfg.API.BaseURL)
	fmt.Printf("  Model:      %s\n", cfg.API.Model)
	switch keyStorage {
	case storageVault:
		fmt.Println("  API key:    **** (encrypted vault)")
	case storageKeyring:
		fmt.Println("  API key:    **** (OS keyring)")
	default:
		fmt.Println("  API key:    (not set — configure later)")
	}
	fmt.Printf("  Workspace:  %s\n", cfg.Workspace.Root)
	fmt.Printf("  Telegram:   %v\n", cfg.Telegram.Enabled)
	fmt.Printf("  Discord:    %v\n", cfg.Discord.Enabled)
	fmt.Println("─────────────────────────────────────────────")
	fmt.Println()

	// ── Confirm and save ──
	target := "config.yaml"
	fmt.Printf("Save to %s? (y/n) [y]: ", target)
	if strings.ToLower(readLine(reader)) == "n" {
		fmt.Println("Setup cancelled.")
		return nil
	}

	if _, err := os.Stat(target); err == nil {
		fmt.Printf("File %s already exists. Overwrite? (y/n) [n]: ", target)
		if strings.ToLower(readLine(reader)) != "y" {
			fmt.Println("Setup cancelled. Existing file kept.")
			return nil
		}
	}

	if err := config.Save(cfg, target); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Println()
	fmt.Println("config.yaml created successfully!")
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Run: chatclaw serve")
	if keyStorage == storageVault {
		fmt.Println("  2. Enter your vault password when prompted")
	}
	fmt.Println()

	return nil
}

// setupVault creates the encrypted vault and stores the API key in it.
// Returns the storage method used and the still-unlocked vault, so the
// rest of the wizard can add channel tokens.
func setupVault(apiKey string) (storageMethod, *config.Vault) {
	fmt.Println()
	fmt.Println("   Creating encrypted vault...")
	fmt.Println("   Choose a master password (minimum 8 characters).")
	fmt.Println("   This password is NEVER stored — only you know it.")
	fmt.Println()

	password, err := config.ReadPassword("   Master password: ")
	if err != nil {
		fmt.Printf("   [!] Failed to read password: %v\n", err)
		return tryKeyringFallback(apiKey), nil
	}
	if len(password) < 8 {
		fmt.Println("   [!] Password too short (minimum 8 characters).")
		return tryKeyringFallback(apiKey), nil
	}

	confirm, err := config.ReadPassword("   Confirm password: ")
	if err != nil || password != confirm {
		fmt.Println("   [!] Passwords don't match.")
		return tryKeyringFallback(apiKey), nil
	}

	vault := config.NewVault(config.VaultFile)

	// Remove existing vault if present (fresh setup).
	if vault.Exists() {
		_ = os.Remove(config.VaultFile)
		vault = config.NewVault(config.VaultFile)
	}

	if err := vault.Create(password); err != nil {
		fmt.Printf("   [!] Vault creation failed: %v\n", err)
		return tryKeyringFallback(apiKey), nil
	}

	if err := vault.Set("CHATCLAW_API_KEY", apiKey); err != nil {
		fmt.Printf("   [!] Failed to store key in vault: %v\n", err)
		vault.Lock()
		return tryKeyringFallback(apiKey), nil
	}

	fmt.Println()
	fmt.Println("   API key encrypted and stored in vault.")
	return storageVault, vault
}

// storeSecret puts a secret in the unlocked vault when one exists,
// falling back to the OS keyring.
func storeSecret(vault *config.Vault, vaultKey, keyringKey, value string) {
	if vault != nil && vault.IsUnlocked() {
		if err := vault.Set(vaultKey, value); err == nil {
			fmt.Println("   Token stored in vault.")
			return
		}
	}
	if err := config.StoreKeyring(keyringKey, value); err == nil {
		fmt.Println("   Token stored in OS keyring.")
		return
	}
	fmt.Println("   [!] Could not store the token securely, set the env var instead.")
}

// tryKeyringFallback attempts to store the API key in the OS keyring
// as a fallback when vault creation fails.
func tryKeyringFallback(apiKey string) storageMethod {
	if config.KeyringAvailable() {
		fmt.Println("   Trying OS keyring as fallback...")
		if err := config.StoreKeyring(config.KeyAPIKey, apiKey); err == nil {
			fmt.Println("   API key stored in OS keyring.")
			return storageKeyring
		}
	}
	return storageNone
}

// readLine reads a single line from the reader, trimming whitespace.
func readLine(reader *bufio.Reader) string {
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}
