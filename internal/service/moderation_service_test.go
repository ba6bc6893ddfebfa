package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/guild-warden/internal/auth"
	"github.com/spec-kit/guild-warden/internal/domain"
	"github.com/spec-kit/guild-warden/internal/events"
	"github.com/spec-kit/guild-warden/internal/gateway"
	"github.com/spec-kit/guild-warden/internal/repository"
	"github.com/spec-kit/guild-warden/internal/scheduler"
	"github.com/spec-kit/guild-warden/pkg/clock"
	apperrors "github.com/spec-kit/guild-warden/pkg/util"
)

type moderationFixture struct {
	svc     *ModerationService
	adapter *gateway.MemoryAdapter
	clk     *clock.FakeClock
	bus     events.Dispatcher
}

func newModerationFixture(t *testing.T) *moderationFixture {
	t.Helper()
	adapter := gateway.NewMemoryAdapter()
	adapter.AddGuild(testGuild)
	logger := zap.NewNop()
	clk := clock.Fake(time.Unix(1000, 0))
	bus := events.NewInMemoryDispatcher(logger)
	svc := NewModerationService(ModerationDependencies{
		Gateway:         adapter,
		Gate:            auth.NewGate(),
		Dispatcher:      bus,
		Tasks:           scheduler.NewTable(clk),
		Clock:           clk,
		Logger:          logger,
		RoleName:        "Muted",
		RoleColor:       0x808080,
		DefaultDuration: "1h",
	})
	return &moderationFixture{svc: svc, adapter: adapter, clk: clk, bus: bus}
}

func moderator(userID string) domain.Member {
	return domain.Member{
		UserID:      userID,
		DisplayName: userID,
		Roles:       []domain.Role{{ID: "role-staff", Name: "Staff", Position: 10}},
	}
}

func lowMember(userID string) domain.Member {
	return domain.Member{
		UserID:      userID,
		DisplayName: userID,
		Roles:       []domain.Role{{ID: "role-member", Name: "Member", Position: 1}},
	}
}

func (f *moderationFixture) seed(members ...domain.Member) {
	for _, m := range members {
		f.adapter.AddMember(testGuild, m)
	}
}

func TestMuteReleasesAtDeadline(t *testing.T) {
	f := newModerationFixture(t)
	ctx := context.Background()
	mod, target := moderator("mod"), lowMember("troll")
	f.seed(mod, target)

	record, err := f.svc.Mute(ctx, testGuildContext(), mod, target, "30m", "spamming")
	if err != nil {
		t.Fatalf("mute: %v", err)
	}
	if record.ExpiresAt.Sub(record.StartAt) != 30*time.Minute {
		t.Fatalf("scheduled window = %s, want 30m", record.ExpiresAt.Sub(record.StartAt))
	}
	if !f.adapter.MemberHasRole(testGuild, "troll", record.RoleID) {
		t.Fatalf("target does not hold the suppression role")
	}

	f.clk.Advance(29 * time.Minute)
	if !f.adapter.MemberHasRole(testGuild, "troll", record.RoleID) {
		t.Fatalf("mute released before its deadline")
	}

	f.clk.Advance(time.Minute)
	if f.adapter.MemberHasRole(testGuild, "troll", record.RoleID) {
		t.Fatalf("mute not released at deadline")
	}
	if _, ok := f.svc.FindActive(testGuild, "troll"); ok {
		t.Fatalf("expired mute still listed as active")
	}
}

func TestMuteDefaultDuration(t *testing.T) {
	f := newModerationFixture(t)
	mod, target := moderator("mod"), lowMember("troll")
	f.seed(mod, target)

	record, err := f.svc.Mute(context.Background(), testGuildContext(), mod, target, "", "")
	if err != nil {
		t.Fatalf("mute: %v", err)
	}
	if got := record.ExpiresAt.Sub(record.StartAt); got != time.Hour {
		t.Fatalf("default window = %s, want 1h", got)
	}
}

func TestUnmuteThenTimerIsNoOp(t *testing.T) {
	f := newModerationFixture(t)
	ctx := context.Background()
	mod, target := moderator("mod"), lowMember("troll")
	f.seed(mod, target)

	var expired int
	f.bus.Subscribe(events.EventMuteExpired, func(ctx context.Context, e events.Event) error {
		expired++
		return nil
	})
	var released int
	f.bus.Subscribe(events.EventMuteReleased, func(ctx context.Context, e events.Event) error {
		released++
		return nil
	})

	record, err := f.svc.Mute(ctx, testGuildContext(), mod, target, "30m", "")
	if err != nil {
		t.Fatalf("mute: %v", err)
	}
	if _, err := f.svc.Unmute(ctx, testGuildContext(), mod, "troll"); err != nil {
		t.Fatalf("unmute: %v", err)
	}
	if f.adapter.MemberHasRole(testGuild, "troll", record.RoleID) {
		t.Fatalf("unmute did not remove the suppression role")
	}

	// The original deadline passes without a second release.
	f.clk.Advance(time.Hour)
	if released != 1 {
		t.Fatalf("release events = %d, want 1", released)
	}
	if expired != 0 {
		t.Fatalf("expiry events = %d, want 0 after manual unmute", expired)
	}
}

func TestUnmuteWithoutActiveMute(t *testing.T) {
	f := newModerationFixture(t)
	f.seed(moderator("mod"))
	if _, err := f.svc.Unmute(context.Background(), testGuildContext(), moderator("mod"), "ghost"); apperrors.CodeOf(err) != apperrors.CodeNotFound {
		t.Fatalf("unmute of unmuted member error = %v, want NOT_FOUND", err)
	}
}

func TestMuteRankChecks(t *testing.T) {
	f := newModerationFixture(t)
	ctx := context.Background()
	mod := moderator("mod")

	peer := domain.Member{
		UserID:      "peer",
		DisplayName: "peer",
		Roles:       []domain.Role{{ID: "role-peer", Name: "Senior", Position: 10}},
	}
	above := domain.Member{
		UserID:      "boss",
		DisplayName: "boss",
		Roles:       []domain.Role{{ID: "role-boss", Name: "Lead", Position: 20}},
	}
	admin := domain.Member{UserID: "root", DisplayName: "root", Administrator: true}
	f.seed(mod, peer, above, admin)

	for _, target := range []domain.Member{peer, above, admin} {
		// Rank is checked before the duration spec, so even a
		// malformed spec reports the rank problem.
		if _, err := f.svc.Mute(ctx, testGuildContext(), mod, target, "bogus", ""); apperrors.CodeOf(err) != apperrors.CodeRankTooHigh {
			t.Fatalf("mute of %s error = %v, want RANK_TOO_HIGH", target.UserID, err)
		}
	}

	// The ordinal comparison applies to administrator actors too; a
	// roleless administrator outranks nobody.
	adminActor := domain.Member{UserID: "root2", DisplayName: "root2", Administrator: true}
	f.seed(adminActor)
	if _, err := f.svc.Mute(ctx, testGuildContext(), adminActor, above, "10m", ""); apperrors.CodeOf(err) != apperrors.CodeRankTooHigh {
		t.Fatalf("roleless admin muting role-20 target error = %v, want RANK_TOO_HIGH", err)
	}

	owner := domain.Member{
		UserID:        "owner",
		DisplayName:   "owner",
		Administrator: true,
		Roles:         []domain.Role{{ID: "role-owner", Name: "Owner", Position: 30}},
	}
	f.seed(owner)
	if _, err := f.svc.Mute(ctx, testGuildContext(), owner, above, "10m", ""); err != nil {
		t.Fatalf("top-role admin muting role-20 target: %v", err)
	}
	if _, err := f.svc.Mute(ctx, testGuildContext(), owner, admin, "10m", ""); apperrors.CodeOf(err) != apperrors.CodeRankTooHigh {
		t.Fatalf("muting an administrator error = %v, want RANK_TOO_HIGH", err)
	}
}

func TestMuteRequiresStaff(t *testing.T) {
	f := newModerationFixture(t)
	target := lowMember("troll")
	f.seed(target)
	if _, err := f.svc.Mute(context.Background(), testGuildContext(), lowMember("rando"), target, "10m", ""); apperrors.CodeOf(err) != apperrors.CodeNotAuthorized {
		t.Fatalf("mute by non-staff error = %v, want NOT_AUTHORIZED", err)
	}
}

func TestMuteInvalidDuration(t *testing.T) {
	f := newModerationFixture(t)
	mod, target := moderator("mod"), lowMember("troll")
	f.seed(mod, target)

	if _, err := f.svc.Mute(context.Background(), testGuildContext(), mod, target, "5x", ""); apperrors.CodeOf(err) != apperrors.CodeInvalidDuration {
		t.Fatalf("mute with bad duration error = %v, want INVALID_DURATION", err)
	}
	// The failed attempt must not leave a reservation behind.
	if _, err := f.svc.Mute(context.Background(), testGuildContext(), mod, target, "10m", ""); err != nil {
		t.Fatalf("mute after failed attempt: %v", err)
	}
}

func TestMuteDuplicate(t *testing.T) {
	f := newModerationFixture(t)
	ctx := context.Background()
	mod, target := moderator("mod"), lowMember("troll")
	f.seed(mod, target)

	if _, err := f.svc.Mute(ctx, testGuildContext(), mod, target, "30m", ""); err != nil {
		t.Fatalf("first mute: %v", err)
	}
	if _, err := f.svc.Mute(ctx, testGuildContext(), mod, target, "10m", ""); apperrors.CodeOf(err) != apperrors.CodeDuplicate {
		t.Fatalf("second mute error = %v, want DUPLICATE", err)
	}
}

func TestConcurrentMutesShareOneRole(t *testing.T) {
	f := newModerationFixture(t)
	ctx := context.Background()
	mod := moderator("mod")
	a, b := lowMember("troll-a"), lowMember("troll-b")
	f.seed(mod, a, b)

	var wg sync.WaitGroup
	results := make([]domain.MuteRecord, 2)
	errs := make([]error, 2)
	for i, target := range []domain.Member{a, b} {
		wg.Add(1)
		go func(i int, target domain.Member) {
			defer wg.Done()
			results[i], errs[i] = f.svc.Mute(ctx, testGuildContext(), mod, target, "1h", "")
		}(i, target)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("mute %d: %v", i, err)
		}
	}
	if results[0].RoleID != results[1].RoleID {
		t.Fatalf("concurrent mutes produced two roles: %s and %s", results[0].RoleID, results[1].RoleID)
	}
	if !f.adapter.MemberHasRole(testGuild, "troll-a", results[0].RoleID) ||
		!f.adapter.MemberHasRole(testGuild, "troll-b", results[1].RoleID) {
		t.Fatalf("not all targets hold the suppression role")
	}

	roles, err := f.adapter.GuildRoles(ctx, testGuild)
	if err != nil {
		t.Fatalf("guild roles: %v", err)
	}
	muted := 0
	for _, role := range roles {
		if role.Name == "Muted" {
			muted++
		}
	}
	if muted != 1 {
		t.Fatalf("suppression roles in guild = %d, want 1", muted)
	}
}

// grantGateAdapter blocks inside AddMemberRole until released, so a
// test can interleave other calls mid-grant.
type grantGateAdapter struct {
	*gateway.MemoryAdapter
	entered chan struct{}
	resume  chan struct{}
}

func (a *grantGateAdapter) AddMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	a.entered <- struct{}{}
	<-a.resume
	return a.MemoryAdapter.AddMemberRole(ctx, guildID, userID, roleID)
}

func TestUnmuteDuringMuteGrantDoesNotStrandRole(t *testing.T) {
	mem := gateway.NewMemoryAdapter()
	mem.AddGuild(testGuild)
	adapter := &grantGateAdapter{
		MemoryAdapter: mem,
		entered:       make(chan struct{}),
		resume:        make(chan struct{}),
	}
	logger := zap.NewNop()
	clk := clock.Fake(time.Unix(1000, 0))
	svc := NewModerationService(ModerationDependencies{
		Gateway:    adapter,
		Gate:       auth.NewGate(),
		Dispatcher: events.NewInMemoryDispatcher(logger),
		Tasks:      scheduler.NewTable(clk),
		Clock:      clk,
		Logger:     logger,
	})
	ctx := context.Background()
	mod, target := moderator("mod"), lowMember("troll")
	mem.AddMember(testGuild, mod)
	mem.AddMember(testGuild, target)

	var muteErr error
	done := make(chan struct{})
	go func() {
		_, muteErr = svc.Mute(ctx, testGuildContext(), mod, target, "30m", "")
		close(done)
	}()

	<-adapter.entered
	// The grant has not landed yet, so there is no mute to release.
	if _, err := svc.Unmute(ctx, testGuildContext(), mod, "troll"); apperrors.CodeOf(err) != apperrors.CodeNotFound {
		t.Fatalf("unmute during role grant error = %v, want NOT_FOUND", err)
	}
	close(adapter.resume)
	<-done
	if muteErr != nil {
		t.Fatalf("mute: %v", muteErr)
	}

	record, ok := svc.FindActive(testGuild, "troll")
	if !ok {
		t.Fatalf("mute not active after interleaved unmute")
	}
	if !mem.MemberHasRole(testGuild, "troll", record.RoleID) {
		t.Fatalf("target does not hold the suppression role")
	}

	clk.Advance(30 * time.Minute)
	if mem.MemberHasRole(testGuild, "troll", record.RoleID) {
		t.Fatalf("suppression role not removed at the deadline")
	}
	if _, ok := svc.FindActive(testGuild, "troll"); ok {
		t.Fatalf("record still active after the deadline")
	}
}

// removeFailAdapter fails RemoveMemberRole on demand.
type removeFailAdapter struct {
	*gateway.MemoryAdapter
	fail bool
}

func (a *removeFailAdapter) RemoveMemberRole(ctx context.Context, guildID, userID, roleID string) error {
	if a.fail {
		return errors.New("rate limited")
	}
	return a.MemoryAdapter.RemoveMemberRole(ctx, guildID, userID, roleID)
}

func TestUnmuteRemovalFailureKeepsMarker(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	mem := gateway.NewMemoryAdapter()
	mem.AddGuild(testGuild)
	adapter := &removeFailAdapter{MemoryAdapter: mem}
	logger := zap.NewNop()
	clk := clock.Fake(time.Unix(1000, 0))
	svc := NewModerationService(ModerationDependencies{
		Gateway:    adapter,
		Gate:       auth.NewGate(),
		Dispatcher: events.NewInMemoryDispatcher(logger),
		Tasks:      scheduler.NewTable(clk),
		Clock:      clk,
		Logger:     logger,
		Markers:    repository.NewMuteMarkerRepository(client),
	})
	ctx := context.Background()
	mod, target := moderator("mod"), lowMember("troll")
	mem.AddMember(testGuild, mod)
	mem.AddMember(testGuild, target)

	record, err := svc.Mute(ctx, testGuildContext(), mod, target, "30m", "")
	if err != nil {
		t.Fatalf("mute: %v", err)
	}

	adapter.fail = true
	if _, err := svc.Unmute(ctx, testGuildContext(), mod, "troll"); apperrors.CodeOf(err) != apperrors.CodeAdapterFailed {
		t.Fatalf("unmute with failing removal error = %v, want ADAPTER_FAILED", err)
	}

	// The marker survives the failed removal so the stranded role is
	// visible to the reconciliation sweep.
	markers, err := repository.NewMuteMarkerRepository(client).List(ctx)
	if err != nil {
		t.Fatalf("list markers: %v", err)
	}
	if len(markers) != 1 || markers[0].TargetID != "troll" || markers[0].RoleID != record.RoleID {
		t.Fatalf("expected the mute marker to survive, got %+v", markers)
	}
}

func TestMuteAppliesSuppressionOverwrites(t *testing.T) {
	f := newModerationFixture(t)
	ctx := context.Background()
	mod, target := moderator("mod"), lowMember("troll")
	f.seed(mod, target)
	general := f.adapter.AddTextChannel(testGuild, "general")
	offtopic := f.adapter.AddTextChannel(testGuild, "off-topic")

	record, err := f.svc.Mute(ctx, testGuildContext(), mod, target, "10m", "")
	if err != nil {
		t.Fatalf("mute: %v", err)
	}
	for _, ch := range []domain.Channel{general, offtopic} {
		rules, ok := f.adapter.Overwrite(ch.ID, record.RoleID)
		if !ok {
			t.Fatalf("channel %s has no overwrite for the suppression role", ch.Name)
		}
		if rules.SendMessages == nil || *rules.SendMessages {
			t.Fatalf("channel %s does not deny sends", ch.Name)
		}
	}
}
