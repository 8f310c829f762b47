package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jholhewres/chatclaw/pkg/chatclaw/config"
)

// newConfigCmd creates the `chatclaw config` command for managing
// configuration and secrets.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration and secrets",
		Long: `Manage the chatclaw configuration and stored secrets.

Examples:
  chatclaw config show
  chatclaw config set-key
  chatclaw config vault-init
  chatclaw config vault-set TELEGRAM_BOT_TOKEN
  chatclaw config vault-list`,
	}

	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigSetKeyCmd(),
		newConfigVaultInitCmd(),
		newConfigVaultSetCmd(),
		newConfigVaultListCmd(),
		newConfigVaultPasswdCmd(),
	)

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			// Secrets stay masked: show never resolves the chain.
			if cfg.API.APIKey != "" {
				cfg.API.APIKey = "****"
			}
			if cfg.Telegram.Token != "" {
				cfg.Telegram.Token = "****"
			}
			if cfg.Discord.Token != "" {
				cfg.Discord.Token = "****"
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(data))
			return nil
		},
	}
}

func newConfigSetKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-key",
		Short: "Store the API key in the OS keyring",
		RunE: func(_ *cobra.Command, _ []string) error {
			if !config.KeyringAvailable() {
				return fmt.Errorf("OS keyring is not available, use 'chatclaw config vault-set' instead")
			}
			key, err := config.ReadPassword("API key (hidden input): ")
			if err != nil {
				return fmt.Errorf("reading key: %w", err)
			}
			if key == "" {
				return fmt.Errorf("no key entered")
			}
			if err := config.StoreKeyring(config.KeyAPIKey, key); err != nil {
				return fmt.Errorf("storing key: %w", err)
			}
			fmt.Println("API key stored in the OS keyring.")
			return nil
		},
	}
}

func newConfigVaultInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vault-init",
		Short: "Create the encrypted vault",
		RunE: func(_ *cobra.Command, _ []string) error {
			vault := config.NewVault(config.VaultFile)
			if vault.Exists() {
				return fmt.Errorf("vault already exists at %s", vault.Path())
			}

			password, err := config.ReadPassword("Master password (min 8 chars): ")
			if err != nil {
				return fmt.Errorf("reading password: %w", err)
			}
			if len(password) < 8 {
				return fmt.Errorf("password too short, minimum 8 characters")
			}
			confirm, err := config.ReadPassword("Confirm password: ")
			if err != nil {
				return fmt.Errorf("reading password: %w", err)
			}
			if password != confirm {
				return fmt.Errorf("passwords do not match")
			}

			if err := vault.Create(password); err != nil {
				return fmt.Errorf("creating vault: %w", err)
			}
			vault.Lock()
			fmt.Printf("Vault created at %s\n", vault.Path())
			return nil
		},
	}
}

func newConfigVaultSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vault-set [name]",
		Short: "Store a secret in the vault",
		Long: `Store a secret in the encrypted vault. The default name is
CHATCLAW_API_KEY; pass a name to store other secrets such as
TELEGRAM_BOT_TOKEN or DISCORD_BOT_TOKEN.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			name := "CHATCLAW_API_KEY"
			if len(args) > 0 {
				name = args[0]
			}

			vault, err := unlockVault()
			if err != nil {
				return err
			}
			defer vault.Lock()

			value, err := config.ReadPassword(fmt.Sprintf("Value for %s (hidden input): ", name))
			if err != nil {
				return fmt.Errorf("reading value: %w", err)
			}
			if value == "" {
				return fmt.Errorf("no value entered")
			}

			if err := vault.Set(name, value); err != nil {
				return fmt.Errorf("storing secret: %w", err)
			}
			fmt.Printf("Secret %s stored in the vault.\n", name)
			return nil
		},
	}
}

func newConfigVaultListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vault-list",
		Short: "List secret names stored in the vault",
		RunE: func(_ *cobra.Command, _ []string) error {
			vault, err := unlockVault()
			if err != nil {
				return err
			}
			defer vault.Lock()

			names := vault.List()
			if len(names) == 0 {
				fmt.Println("The vault is empty.")
				return nil
			}
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		},
	}
}

func newConfigVaultPasswdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vault-passwd",
		Short: "Change the vault master password",
		RunE: func(_ *cobra.Command, _ []string) error {
			vault, err := unlockVault()
			if err != nil {
				return err
			}
			defer vault.Lock()

			newPassword, err := config.ReadPassword("New master password (min 8 chars): ")
			if err != nil {
				return fmt.Errorf("reading password: %w", err)
			}
			if len(newPassword) < 8 {
				return fmt.Errorf("password too short, minimum 8 characters")
			}
			confirm, err := config.ReadPassword("Confirm new password: ")
			if err != nil {
				return fmt.Errorf("reading password: %w", err)
			}
			if newPassword != confirm {
				return fmt.Errorf("passwords do not match")
			}

			if err := vault.ChangePassword(newPassword); err != nil {
				return fmt.Errorf("changing password: %w", err)
			}
			fmt.Println("Vault password changed.")
			return nil
		},
	}
}

// unlockVault opens the vault, prompting for the master password.
func unlockVault() (*config.Vault, error) {
	vault := config.NewVault(config.VaultFile)
	if !vault.Exists() {
		return nil, fmt.Errorf("no vault found, run 'chatclaw config vault-init' first")
	}
	password, err := config.ReadPassword("Vault password: ")
	if err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	if err := vault.Unlock(password); err != nil {
		return nil, fmt.Errorf("unlocking vault: %w", err)
	}
	return vault, nil
}
