package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/guild-warden/internal/auth"
	"github.com/spec-kit/guild-warden/internal/domain"
	"github.com/spec-kit/guild-warden/internal/events"
	"github.com/spec-kit/guild-warden/internal/gateway"
	"github.com/spec-kit/guild-warden/internal/repository"
	"github.com/spec-kit/guild-warden/pkg/clock"
	apperrors "github.com/spec-kit/guild-warden/pkg/util"
)

func TestBackupCreateSnapshotsGuild(t *testing.T) {
	adapter := gateway.NewMemoryAdapter()
	adapter.AddGuild(testGuild)
	adapter.AddTextChannel(testGuild, "general")
	adapter.AddTextChannel(testGuild, "off-topic")
	if _, _, err := adapter.FindOrCreateRole(context.Background(), testGuild, "Staff", gateway.RoleAttrs{}); err != nil {
		t.Fatalf("seed role: %v", err)
	}

	logger := zap.NewNop()
	repo := repository.NewBackupRepository(t.TempDir())
	svc := NewBackupService(adapter, auth.NewGate(), repo, events.NewInMemoryDispatcher(logger), clock.Fake(time.Unix(1000, 0)), logger)
	admin := domain.Member{UserID: "root", DisplayName: "root", Administrator: true}

	summary, err := svc.Create(context.Background(), testGuildContext(), admin, "Test Guild")
	if err != nil {
		t.Fatalf("create backup: %v", err)
	}
	if summary.Roles != 1 || summary.Channels != 2 {
		t.Fatalf("summary = %+v", summary)
	}
	if !strings.HasPrefix(summary.ID, "backup_"+testGuild+"_") {
		t.Fatalf("backup id = %q", summary.ID)
	}

	stored, err := svc.Get(testGuildContext(), admin, summary.ID)
	if err != nil {
		t.Fatalf("get backup: %v", err)
	}
	if stored.Guild.Name != "Test Guild" || len(stored.Channels) != 2 {
		t.Fatalf("stored = %+v", stored)
	}

	listed, err := svc.List(testGuildContext(), admin)
	if err != nil {
		t.Fatalf("list backups: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("listed = %d backups, want 1", len(listed))
	}
}

func TestBackupRequiresAdministrator(t *testing.T) {
	adapter := gateway.NewMemoryAdapter()
	adapter.AddGuild(testGuild)
	logger := zap.NewNop()
	repo := repository.NewBackupRepository(t.TempDir())
	svc := NewBackupService(adapter, auth.NewGate(), repo, events.NewInMemoryDispatcher(logger), clock.Fake(time.Unix(1000, 0)), logger)

	// Staff without the administrator permission cannot take backups.
	if _, err := svc.Create(context.Background(), testGuildContext(), staffMember("mod"), "Test Guild"); apperrors.CodeOf(err) != apperrors.CodeNotAuthorized {
		t.Fatalf("staff backup error = %v, want NOT_AUTHORIZED", err)
	}
}
