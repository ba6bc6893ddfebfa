package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spec-kit/guild-warden/internal/domain"
	apperrors "github.com/spec-kit/guild-warden/pkg/util"
)

// BackupRepository stores guild snapshots as JSON files keyed by
// backup ID.
type BackupRepository struct {
	dir string
}

// NewBackupRepository builds a store rooted at dir.
func NewBackupRepository(dir string) *BackupRepository {
	return &BackupRepository{dir: dir}
}

// Save persists a snapshot under its ID.
func (r *BackupRepository) Save(backup domain.Backup) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}
	data, err := json.MarshalIndent(backup, "", "  ")
	if err != nil {
		return fmt.Errorf("encode backup %s: %w", backup.ID, err)
	}
	path := filepath.Join(r.dir, backup.ID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write backup %s: %w", backup.ID, err)
	}
	return nil
}

// Get loads a snapshot by ID.
func (r *BackupRepository) Get(backupID string) (*domain.Backup, error) {
	data, err := os.ReadFile(filepath.Join(r.dir, backupID+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewNotFound("backup", map[string]any{"backup_id": backupID})
		}
		return nil, fmt.Errorf("read backup %s: %w", backupID, err)
	}
	var backup domain.Backup
	if err := json.Unmarshal(data, &backup); err != nil {
		return nil, fmt.Errorf("decode backup %s: %w", backupID, err)
	}
	return &backup, nil
}

// List returns stored backup summaries, newest first. Unreadable files
// are skipped.
func (r *BackupRepository) List() ([]domain.BackupSummary, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list backups: %w", err)
	}

	var summaries []domain.BackupSummary
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		backup, err := r.Get(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		summaries = append(summaries, domain.BackupSummary{
			ID:         backup.ID,
			GuildName:  backup.Guild.Name,
			CreatedAt:  backup.CreatedAt,
			Roles:      len(backup.Roles),
			Channels:   len(backup.Channels),
			Categories: len(backup.Categories),
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries, nil
}
