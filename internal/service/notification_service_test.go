package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/guild-warden/internal/auth"
	"github.com/spec-kit/guild-warden/internal/events"
	"github.com/spec-kit/guild-warden/internal/gateway"
	"github.com/spec-kit/guild-warden/internal/repository"
	"github.com/spec-kit/guild-warden/internal/scheduler"
	"github.com/spec-kit/guild-warden/pkg/clock"
)

func TestTicketCreateSendsWelcome(t *testing.T) {
	adapter := gateway.NewMemoryAdapter()
	adapter.AddGuild(testGuild)
	logger := zap.NewNop()
	clk := clock.Fake(time.Unix(1000, 0))
	bus := events.NewInMemoryDispatcher(logger)
	configs := repository.NewConfigRepository(t.TempDir())
	NewNotificationService(bus, adapter, configs, logger).RegisterHandlers()

	svc := NewTicketService(TicketDependencies{
		Gateway:    adapter,
		Gate:       auth.NewGate(),
		Dispatcher: bus,
		Tasks:      scheduler.NewTable(clk),
		Clock:      clk,
		Logger:     logger,
	})

	ticket, _, err := svc.Create(context.Background(), testGuildContext(), plainMember("alice"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	messages := adapter.Messages(ticket.ChannelID)
	if len(messages) != 1 {
		t.Fatalf("channel messages = %d, want 1", len(messages))
	}
	if !strings.Contains(messages[0], "<@alice>") {
		t.Fatalf("welcome does not address the owner: %q", messages[0])
	}
}

func TestMuteLifecycleNotifications(t *testing.T) {
	f := newModerationFixture(t)
	configs := repository.NewConfigRepository(t.TempDir())
	NewNotificationService(f.bus, f.adapter, configs, zap.NewNop()).RegisterHandlers()

	ctx := context.Background()
	mod, target := moderator("mod"), lowMember("troll")
	f.seed(mod, target)

	if _, err := f.svc.Mute(ctx, testGuildContext(), mod, target, "30m", "spam"); err != nil {
		t.Fatalf("mute: %v", err)
	}
	dms := f.adapter.Notifications("troll")
	if len(dms) != 1 || !strings.Contains(dms[0], "30 minutes") {
		t.Fatalf("mute DM = %v", dms)
	}

	f.clk.Advance(30 * time.Minute)
	dms = f.adapter.Notifications("troll")
	if len(dms) != 2 || !strings.Contains(dms[1], "expired") {
		t.Fatalf("expiry DM = %v", dms)
	}
}
