package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadDefaults(t *testing.T) {
	p := writeYAML(t, "server:\n  addr: \"\"\n")
	c, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if c.Server.Addr != ":8080" {
		t.Fatalf("addr default: %q", c.Server.Addr)
	}
	if c.Storage.Driver != "memory" {
		t.Fatalf("storage driver default: %q", c.Storage.Driver)
	}
	if c.Discord.APIBase != "https://discord.com/api/v10" {
		t.Fatalf("api base default: %q", c.Discord.APIBase)
	}
	if len(c.Discord.Scopes) != 2 || c.Discord.Scopes[1] != "guilds.join" {
		t.Fatalf("scopes default: %v", c.Discord.Scopes)
	}
	if c.ReconcileDelay() != time.Second {
		t.Fatalf("reconcile delay default: %v", c.ReconcileDelay())
	}
	if c.BatchTimeout() != 0 {
		t.Fatalf("batch timeout default: %v", c.BatchTimeout())
	}
}

func TestLoadPostgresRequiresDSN(t *testing.T) {
	p := writeYAML(t, "storage:\n  driver: postgres\n")
	if _, err := Load(p); err == nil {
		t.Fatal("expected error for postgres without dsn")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "bot-abc")
	t.Setenv("STORAGE_DRIVER", "memory")
	p := writeYAML(t, "discord:\n  bot_token: from-yaml\n")
	c, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if c.Discord.BotToken != "bot-abc" {
		t.Fatalf("env should override yaml, got %q", c.Discord.BotToken)
	}
}

func TestUnknownDriver(t *testing.T) {
	p := writeYAML(t, "storage:\n  driver: oracle\n")
	if _, err := Load(p); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
