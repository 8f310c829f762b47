package config

import (
	"path/filepath"
	"testing"
)

func TestVaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".test.vault")

	v := NewVault(path)
	if v.Exists() {
		t.Fatal("vault must not exist before Create")
	}
	if err := v.Create("correct horse battery"); err != nil {
		t.Fatal(err)
	}
	if err := v.Set("CHATCLAW_API_KEY", "sk-test-value"); err != nil {
		t.Fatal(err)
	}
	v.Lock()

	if _, err := v.Get("CHATCLAW_API_KEY"); err == nil {
		t.Fatal("a locked vault must not serve secrets")
	}

	t.Run("wrong password", func(t *testing.T) {
		v2 := NewVault(path)
		if err := v2.Unlock("not the password"); err == nil {
			t.Fatal("wrong password must fail")
		}
	})

	t.Run("unlock and read", func(t *testing.T) {
		v2 := NewVault(path)
		if err := v2.Unlock("correct horse battery"); err != nil {
			t.Fatal(err)
		}
		defer v2.Lock()

		got, err := v2.Get("CHATCLAW_API_KEY")
		if err != nil {
			t.Fatal(err)
		}
		if got != "sk-test-value" {
			t.Errorf("secret mismatch: %q", got)
		}
	})
}

func TestVaultChangePassword(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".test.vault")

	v := NewVault(path)
	if err := v.Create("first password"); err != nil {
		t.Fatal(err)
	}
	if err := v.Set("TELEGRAM_BOT_TOKEN", "tok"); err != nil {
		t.Fatal(err)
	}
	if err := v.ChangePassword("second password"); err != nil {
		t.Fatal(err)
	}
	v.Lock()

	fresh := NewVault(path)
	if err := fresh.Unlock("first password"); err == nil {
		t.Fatal("old password must stop working")
	}
	if err := fresh.Unlock("second password"); err != nil {
		t.Fatal(err)
	}
	defer fresh.Lock()

	got, err := fresh.Get("TELEGRAM_BOT_TOKEN")
	if err != nil || got != "tok" {
		t.Fatalf("secret lost across password change: %q %v", got, err)
	}
}

func TestVaultDeleteAndList(t *testing.T) {
	v := NewVault(filepath.Join(t.TempDir(), ".test.vault"))
	if err := v.Create("a decent password"); err != nil {
		t.Fatal(err)
	}
	defer v.Lock()

	_ = v.Set("A", "1")
	_ = v.Set("B", "2")

	names := v.List()
	if len(names) != 2 {
		t.Fatalf("List() = %v", names)
	}

	if err := v.Delete("A"); err != nil {
		t.Fatal(err)
	}
	if got, err := v.Get("A"); err != nil || got != "" {
		t.Errorf("deleted secret must be gone, got %q %v", got, err)
	}
	if got, err := v.Get("B"); err != nil || got != "2" {
		t.Errorf("remaining secret must survive: %q %v", got, err)
	}
}
