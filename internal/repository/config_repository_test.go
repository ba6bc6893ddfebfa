package repository

import (
	"testing"

	"github.com/spec-kit/guild-warden/internal/domain"
)

func TestLoadMissingConfigReturnsDefaults(t *testing.T) {
	repo := NewConfigRepository(t.TempDir())

	cfg, err := repo.Load("guild-1")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.Tickets.StaffRoles) == 0 {
		t.Fatalf("expected default staff roles")
	}
	if !cfg.Autoroles.Enabled {
		t.Fatalf("expected autoroles enabled by default")
	}
}

func TestSaveAndReloadConfig(t *testing.T) {
	repo := NewConfigRepository(t.TempDir())

	cfg := domain.DefaultGuildConfig()
	cfg.Tickets.StaffRoles = []string{"Keeper"}
	cfg.Captcha.Enabled = true

	if err := repo.Save("guild-1", cfg); err != nil {
		t.Fatalf("save config: %v", err)
	}

	loaded, err := repo.Load("guild-1")
	if err != nil {
		t.Fatalf("reload config: %v", err)
	}
	if len(loaded.Tickets.StaffRoles) != 1 || loaded.Tickets.StaffRoles[0] != "Keeper" {
		t.Fatalf("staff roles not persisted: %v", loaded.Tickets.StaffRoles)
	}
	if !loaded.Captcha.Enabled {
		t.Fatalf("captcha flag not persisted")
	}

	// Other guilds stay on defaults.
	other, err := repo.Load("guild-2")
	if err != nil {
		t.Fatalf("load other guild: %v", err)
	}
	if other.Captcha.Enabled {
		t.Fatalf("expected guild-2 on defaults")
	}
}

func TestResetRestoresDefaults(t *testing.T) {
	repo := NewConfigRepository(t.TempDir())

	cfg := domain.DefaultGuildConfig()
	cfg.Autoroles.Enabled = false
	if err := repo.Save("guild-1", cfg); err != nil {
		t.Fatalf("save config: %v", err)
	}

	reset, err := repo.Reset("guild-1")
	if err != nil {
		t.Fatalf("reset config: %v", err)
	}
	if !reset.Autoroles.Enabled {
		t.Fatalf("expected reset to restore defaults")
	}

	loaded, err := repo.Load("guild-1")
	if err != nil {
		t.Fatalf("reload config: %v", err)
	}
	if !loaded.Autoroles.Enabled {
		t.Fatalf("expected reset to be persisted")
	}
}
