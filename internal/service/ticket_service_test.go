package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/guild-warden/internal/auth"
	"github.com/spec-kit/guild-warden/internal/domain"
	"github.com/spec-kit/guild-warden/internal/events"
	"github.com/spec-kit/guild-warden/internal/gateway"
	"github.com/spec-kit/guild-warden/internal/scheduler"
	"github.com/spec-kit/guild-warden/pkg/clock"
	apperrors "github.com/spec-kit/guild-warden/pkg/util"
)

const testGuild = "guild-1"

func testGuildContext() domain.GuildContext {
	return domain.GuildContext{
		GuildID: testGuild,
		Authority: domain.StaffAuthority{
			StaffRoles:     []string{"Staff"},
			AdminGrantsAll: true,
		},
	}
}

func staffMember(userID string) domain.Member {
	return domain.Member{
		UserID:      userID,
		DisplayName: userID,
		Roles:       []domain.Role{{ID: "role-staff", Name: "Staff", Position: 5}},
	}
}

func plainMember(userID string) domain.Member {
	return domain.Member{UserID: userID, DisplayName: userID}
}

type ticketFixture struct {
	svc     *TicketService
	adapter *gateway.MemoryAdapter
	clk     *clock.FakeClock
	bus     events.Dispatcher
}

func newTicketFixture(t *testing.T) *ticketFixture {
	t.Helper()
	adapter := gateway.NewMemoryAdapter()
	adapter.AddGuild(testGuild)
	logger := zap.NewNop()
	clk := clock.Fake(time.Unix(1000, 0))
	bus := events.NewInMemoryDispatcher(logger)
	svc := NewTicketService(TicketDependencies{
		Gateway:    adapter,
		Gate:       auth.NewGate(),
		Dispatcher: bus,
		Tasks:      scheduler.NewTable(clk),
		Clock:      clk,
		Logger:     logger,
		CloseGrace: 10 * time.Second,
	})
	return &ticketFixture{svc: svc, adapter: adapter, clk: clk, bus: bus}
}

func TestTicketCreateDeduplicatesPerOwner(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	owner := plainMember("alice")

	first, created, err := f.svc.Create(ctx, testGuildContext(), owner)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	if !created {
		t.Fatalf("first create reported existing ticket")
	}
	if first.ChannelID == "" {
		t.Fatalf("first create produced no channel")
	}

	second, created, err := f.svc.Create(ctx, testGuildContext(), owner)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if created {
		t.Fatalf("second create provisioned a duplicate ticket")
	}
	if second.ChannelID != first.ChannelID {
		t.Fatalf("second create returned channel %s, want %s", second.ChannelID, first.ChannelID)
	}
	if got := len(f.svc.ActiveTickets()); got != 1 {
		t.Fatalf("active tickets = %d, want 1", got)
	}
}

func TestTicketCreateKeysOnOwnerID(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()

	// Two owners sharing a display name get independent tickets.
	a := domain.Member{UserID: "u1", DisplayName: "Same Name"}
	b := domain.Member{UserID: "u2", DisplayName: "Same Name"}

	ta, _, err := f.svc.Create(ctx, testGuildContext(), a)
	if err != nil {
		t.Fatalf("create for u1: %v", err)
	}
	tb, _, err := f.svc.Create(ctx, testGuildContext(), b)
	if err != nil {
		t.Fatalf("create for u2: %v", err)
	}
	if ta.ChannelID == tb.ChannelID {
		t.Fatalf("owners with the same display name shared a channel")
	}
}

func TestTicketClaimDeniedForOwnerOnly(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	owner := plainMember("alice")

	ticket, _, err := f.svc.Create(ctx, testGuildContext(), owner)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.svc.Claim(ctx, testGuildContext(), owner, ticket.ChannelID); apperrors.CodeOf(err) != apperrors.CodeSelfClaimDenied {
		t.Fatalf("owner claim error = %v, want SELF_CLAIM_DENIED", err)
	}

	// Anyone who is not the owner may claim, staff or not.
	claimed, err := f.svc.Claim(ctx, testGuildContext(), plainMember("bob"), ticket.ChannelID)
	if err != nil {
		t.Fatalf("claim by bob: %v", err)
	}
	if claimed.State != domain.TicketStateClaimed || claimed.ClaimedBy != "bob" {
		t.Fatalf("claim result = %+v", claimed)
	}

	// A later claim reassigns rather than being rejected.
	reclaimed, err := f.svc.Claim(ctx, testGuildContext(), staffMember("carol"), ticket.ChannelID)
	if err != nil {
		t.Fatalf("claim by carol: %v", err)
	}
	if reclaimed.ClaimedBy != "carol" {
		t.Fatalf("reclaim assigned to %s, want carol", reclaimed.ClaimedBy)
	}
}

func TestTicketClaimUnknownChannel(t *testing.T) {
	f := newTicketFixture(t)
	if _, err := f.svc.Claim(context.Background(), testGuildContext(), plainMember("bob"), "no-such-channel"); apperrors.CodeOf(err) != apperrors.CodeNotFound {
		t.Fatalf("claim on unknown channel error = %v, want NOT_FOUND", err)
	}
}

func TestTicketCloseRequiresStaff(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()

	ticket, _, err := f.svc.Create(ctx, testGuildContext(), plainMember("alice"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.svc.Close(ctx, testGuildContext(), plainMember("alice"), ticket.ChannelID); apperrors.CodeOf(err) != apperrors.CodeNotAuthorized {
		t.Fatalf("close by non-staff error = %v, want NOT_AUTHORIZED", err)
	}
	if !f.adapter.HasChannel(ticket.ChannelID) {
		t.Fatalf("denied close still deleted the channel")
	}

	closed, err := f.svc.Close(ctx, testGuildContext(), staffMember("mod"), ticket.ChannelID)
	if err != nil {
		t.Fatalf("close by staff: %v", err)
	}
	if closed.State != domain.TicketStateClosed || closed.ClosedAt == nil {
		t.Fatalf("close result = %+v", closed)
	}
}

func TestTicketCloseAdminWithoutStaffRole(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()

	ticket, _, err := f.svc.Create(ctx, testGuildContext(), plainMember("alice"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	admin := domain.Member{UserID: "root", DisplayName: "root", Administrator: true}
	if _, err := f.svc.Close(ctx, testGuildContext(), admin, ticket.ChannelID); err != nil {
		t.Fatalf("close by administrator: %v", err)
	}
}

func TestTicketCloseDeletesChannelAfterGrace(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()

	ticket, _, err := f.svc.Create(ctx, testGuildContext(), plainMember("alice"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.Close(ctx, testGuildContext(), staffMember("mod"), ticket.ChannelID); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Channel survives the grace window.
	f.clk.Advance(9 * time.Second)
	if !f.adapter.HasChannel(ticket.ChannelID) {
		t.Fatalf("channel deleted before grace expired")
	}

	f.clk.Advance(time.Second)
	if f.adapter.HasChannel(ticket.ChannelID) {
		t.Fatalf("channel not deleted after grace expired")
	}

	// The owner's slot is free again once the channel is gone.
	fresh, created, err := f.svc.Create(ctx, testGuildContext(), plainMember("alice"))
	if err != nil {
		t.Fatalf("create after deletion: %v", err)
	}
	if !created {
		t.Fatalf("create after deletion returned the closed ticket")
	}
	if fresh.ChannelID == ticket.ChannelID {
		t.Fatalf("fresh ticket reused the deleted channel")
	}
}

func TestTicketDoubleCloseDeletesOnce(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()
	mod := staffMember("mod")

	ticket, _, err := f.svc.Create(ctx, testGuildContext(), plainMember("alice"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.Close(ctx, testGuildContext(), mod, ticket.ChannelID); err != nil {
		t.Fatalf("first close: %v", err)
	}

	f.clk.Advance(5 * time.Second)

	// Second close is a no-op and must not reschedule deletion.
	again, err := f.svc.Close(ctx, testGuildContext(), mod, ticket.ChannelID)
	if err != nil {
		t.Fatalf("second close: %v", err)
	}
	if again.State != domain.TicketStateClosed {
		t.Fatalf("second close state = %s", again.State)
	}

	f.clk.Advance(5 * time.Second)
	if f.adapter.HasChannel(ticket.ChannelID) {
		t.Fatalf("channel survived the original deadline")
	}

	f.clk.Advance(time.Minute)
	if f.adapter.HasChannel(ticket.ChannelID) {
		t.Fatalf("channel came back")
	}
}

func TestTicketCreatePublishesEvent(t *testing.T) {
	f := newTicketFixture(t)
	ctx := context.Background()

	var got []events.Event
	f.bus.Subscribe(events.EventTicketCreated, func(ctx context.Context, e events.Event) error {
		got = append(got, e)
		return nil
	})

	ticket, _, err := f.svc.Create(ctx, testGuildContext(), plainMember("alice"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("events published = %d, want 1", len(got))
	}
	payload, ok := got[0].Payload.(events.TicketCreatedPayload)
	if !ok {
		t.Fatalf("payload type %T", got[0].Payload)
	}
	if payload.ChannelID != ticket.ChannelID || payload.OwnerID != "alice" {
		t.Fatalf("payload = %+v", payload)
	}
}
