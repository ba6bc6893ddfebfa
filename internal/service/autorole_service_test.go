package service

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/guild-warden/internal/domain"
	"github.com/spec-kit/guild-warden/internal/gateway"
	"github.com/spec-kit/guild-warden/internal/repository"
)

func TestAutoroleJoinGrantsConfiguredRoles(t *testing.T) {
	adapter := gateway.NewMemoryAdapter()
	adapter.AddGuild(testGuild)
	adapter.AddMember(testGuild, plainMember("newbie"))
	configs := repository.NewConfigRepository(t.TempDir())
	svc := NewAutoroleService(adapter, configs, zap.NewNop())

	granted, err := svc.HandleJoin(context.Background(), testGuild, plainMember("newbie"))
	if err != nil {
		t.Fatalf("handle join: %v", err)
	}
	// The default configuration grants "Member", creating the role on
	// first use.
	if len(granted) != 1 || granted[0] != "Member" {
		t.Fatalf("granted = %v, want [Member]", granted)
	}

	roles, err := adapter.GuildRoles(context.Background(), testGuild)
	if err != nil {
		t.Fatalf("guild roles: %v", err)
	}
	var memberRole domain.Role
	for _, role := range roles {
		if role.Name == "Member" {
			memberRole = role
		}
	}
	if memberRole.ID == "" {
		t.Fatalf("Member role was not created")
	}
	if !adapter.MemberHasRole(testGuild, "newbie", memberRole.ID) {
		t.Fatalf("joiner does not hold the Member role")
	}
}

func TestAutoroleJoinDisabled(t *testing.T) {
	adapter := gateway.NewMemoryAdapter()
	adapter.AddGuild(testGuild)
	adapter.AddMember(testGuild, plainMember("newbie"))
	configs := repository.NewConfigRepository(t.TempDir())

	cfg := domain.DefaultGuildConfig()
	cfg.Autoroles.Enabled = false
	if err := configs.Save(testGuild, cfg); err != nil {
		t.Fatalf("save config: %v", err)
	}

	svc := NewAutoroleService(adapter, configs, zap.NewNop())
	granted, err := svc.HandleJoin(context.Background(), testGuild, plainMember("newbie"))
	if err != nil {
		t.Fatalf("handle join: %v", err)
	}
	if granted != nil {
		t.Fatalf("granted = %v, want none while disabled", granted)
	}
}

func TestAutoroleJoinUsesBotRoleSet(t *testing.T) {
	adapter := gateway.NewMemoryAdapter()
	adapter.AddGuild(testGuild)
	bot := domain.Member{UserID: "helper", DisplayName: "helper", Bot: true}
	adapter.AddMember(testGuild, bot)
	configs := repository.NewConfigRepository(t.TempDir())

	cfg := domain.DefaultGuildConfig()
	cfg.Autoroles.HumanRoles = []string{"Member"}
	cfg.Autoroles.BotRoles = []string{"Bot Squad"}
	if err := configs.Save(testGuild, cfg); err != nil {
		t.Fatalf("save config: %v", err)
	}

	svc := NewAutoroleService(adapter, configs, zap.NewNop())
	granted, err := svc.HandleJoin(context.Background(), testGuild, bot)
	if err != nil {
		t.Fatalf("handle join: %v", err)
	}
	if len(granted) != 1 || granted[0] != "Bot Squad" {
		t.Fatalf("granted = %v, want [Bot Squad]", granted)
	}
}
