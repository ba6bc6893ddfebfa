package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spec-kit/guild-warden/internal/domain"
)

// ConfigRepository stores one JSON config document per guild. Missing
// files load as the defaults, matching how a guild behaves before it is
// ever configured. Saves are atomic (write-then-rename).
type ConfigRepository struct {
	dir string
	mu  sync.Mutex
}

// NewConfigRepository builds a store rooted at dir.
func NewConfigRepository(dir string) *ConfigRepository {
	return &ConfigRepository{dir: dir}
}

func (r *ConfigRepository) path(guildID string) string {
	return filepath.Join(r.dir, fmt.Sprintf("config_%s.json", guildID))
}

// Load returns the guild's config, or the defaults when none is saved.
func (r *ConfigRepository) Load(guildID string) (domain.GuildConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path(guildID))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.DefaultGuildConfig(), nil
		}
		return domain.GuildConfig{}, fmt.Errorf("read config for guild %s: %w", guildID, err)
	}

	var cfg domain.GuildConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return domain.GuildConfig{}, fmt.Errorf("decode config for guild %s: %w", guildID, err)
	}
	return cfg, nil
}

// Save persists the guild's config.
func (r *ConfigRepository) Save(guildID string, cfg domain.GuildConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config for guild %s: %w", guildID, err)
	}

	tmp := r.path(guildID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write config for guild %s: %w", guildID, err)
	}
	if err := os.Rename(tmp, r.path(guildID)); err != nil {
		return fmt.Errorf("commit config for guild %s: %w", guildID, err)
	}
	return nil
}

// Reset restores a guild to the defaults and persists them.
func (r *ConfigRepository) Reset(guildID string) (domain.GuildConfig, error) {
	cfg := domain.DefaultGuildConfig()
	if err := r.Save(guildID, cfg); err != nil {
		return domain.GuildConfig{}, err
	}
	return cfg, nil
}
