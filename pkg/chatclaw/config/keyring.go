// Package config – keyring.go resolves secrets through the priority
// chain: encrypted vault, OS keyring, environment variable, config
// value. The plaintext config entry is the last resort.
package config

import (
	"log/slog"
	"os"

	"github.com/zalando/go-keyring"
	"golang.org/x/term"
)

const (
	// keyringService is the service name used in the OS keyring.
	keyringService = "chatclaw"

	// Keyring key names.
	KeyAPIKey        = "api_key"
	KeyTelegramToken = "telegram_token"
	KeyDiscordToken  = "discord_token"
)

// StoreKeyring saves a secret to the OS keyring.
func StoreKeyring(key, value string) error {
	return keyring.Set(keyringService, key, value)
}

// GetKeyring retrieves a secret from the OS keyring, empty if absent.
func GetKeyring(key string) string {
	val, err := keyring.Get(keyringService, key)
	if err != nil {
		return ""
	}
	return val
}

// DeleteKeyring removes a secret from the OS keyring.
func DeleteKeyring(key string) error {
	return keyring.Delete(keyringService, key)
}

// KeyringAvailable checks if the OS keyring is accessible.
func KeyringAvailable() bool {
	testKey := "__chatclaw_test__"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return false
	}
	_ = keyring.Delete(keyringService, testKey)
	return true
}

// ResolveSecrets fills the secret config fields through the priority
// chain and returns the unlocked vault, or nil when none is in use.
//
// A vault that exists but cannot be unlocked (wrong password, or
// non-interactive with no CHATCLAW_VAULT_PASSWORD) is skipped with a
// warning and the chain continues.
func ResolveSecrets(cfg *Config, logger *slog.Logger) *Vault {
	if logger == nil {
		logger = slog.Default()
	}

	vault := openVault(logger)

	resolve := func(target *string, vaultKey, keyringKey, envVar string) {
		if vault != nil {
			if val, err := vault.Get(vaultKey); err == nil && val != "" {
				*target = val
				return
			}
		}
		if val := GetKeyring(keyringKey); val != "" {
			*target = val
			return
		}
		if val := os.Getenv(envVar); val != "" {
			*target = val
			return
		}
		// Keep the config value unless it is an unresolved ${VAR}.
		if IsEnvReference(*target) {
			*target = ""
		}
	}

	resolve(&cfg.API.APIKey, "CHATCLAW_API_KEY", KeyAPIKey, "CHATCLAW_API_KEY")
	if cfg.API.APIKey == "" {
		// Provider-standard name as a final fallback.
		cfg.API.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	resolve(&cfg.Telegram.Token, "TELEGRAM_BOT_TOKEN", KeyTelegramToken, "TELEGRAM_BOT_TOKEN")
	resolve(&cfg.Discord.Token, "DISCORD_BOT_TOKEN", KeyDiscordToken, "DISCORD_BOT_TOKEN")

	if cfg.API.APIKey == "" {
		logger.Warn("no API key found. Set one with: chatclaw config set-key or chatclaw config vault-set")
	}
	return vault
}

// openVault unlocks the vault if one exists, trying the
// CHATCLAW_VAULT_PASSWORD env var first and then the terminal.
func openVault(logger *slog.Logger) *Vault {
	vault := NewVault(VaultFile)
	if !vault.Exists() {
		return nil
	}

	if envPass := os.Getenv("CHATCLAW_VAULT_PASSWORD"); envPass != "" {
		if err := vault.Unlock(envPass); err != nil {
			logger.Warn("failed to unlock vault with CHATCLAW_VAULT_PASSWORD", "error", err)
		} else {
			logger.Info("vault unlocked via CHATCLAW_VAULT_PASSWORD")
		}
	}

	if !vault.IsUnlocked() {
		if term.IsTerminal(int(os.Stdin.Fd())) {
			password, err := ReadPassword("Vault password: ")
			if err != nil {
				logger.Warn("failed to read vault password", "error", err)
			} else if err := vault.Unlock(password); err != nil {
				logger.Warn("failed to unlock vault", "error", err)
			}
		} else {
			logger.Info("vault exists but cannot be unlocked non-interactively, using keyring/env/config")
		}
	}

	if !vault.IsUnlocked() {
		return nil
	}
	return vault
}
