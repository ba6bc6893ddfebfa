package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newMarkerRepo(t *testing.T) (*MuteMarkerRepository, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewMuteMarkerRepository(client), srv
}

func TestMarkerSetListClear(t *testing.T) {
	repo, _ := newMarkerRepo(t)
	ctx := context.Background()

	if err := repo.Set(ctx, "g1", "u1", "role-1", 30*time.Minute); err != nil {
		t.Fatalf("set marker: %v", err)
	}
	if err := repo.Set(ctx, "g1", "u2", "role-1", time.Hour); err != nil {
		t.Fatalf("set marker: %v", err)
	}

	markers, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list markers: %v", err)
	}
	if len(markers) != 2 {
		t.Fatalf("expected 2 markers, got %d", len(markers))
	}
	for _, marker := range markers {
		if marker.GuildID != "g1" || marker.RoleID != "role-1" {
			t.Fatalf("unexpected marker %+v", marker)
		}
		if marker.ExpiresIn <= 0 {
			t.Fatalf("expected positive TTL, got %v", marker.ExpiresIn)
		}
	}

	if err := repo.Clear(ctx, "g1", "u1"); err != nil {
		t.Fatalf("clear marker: %v", err)
	}
	markers, err = repo.List(ctx)
	if err != nil {
		t.Fatalf("list after clear: %v", err)
	}
	if len(markers) != 1 || markers[0].TargetID != "u2" {
		t.Fatalf("expected only u2's marker, got %+v", markers)
	}
}

func TestMarkerExpiresWithMute(t *testing.T) {
	repo, srv := newMarkerRepo(t)
	ctx := context.Background()

	if err := repo.Set(ctx, "g1", "u1", "role-1", 30*time.Minute); err != nil {
		t.Fatalf("set marker: %v", err)
	}

	srv.FastForward(31 * time.Minute)

	markers, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list markers: %v", err)
	}
	if len(markers) != 0 {
		t.Fatalf("expected marker expired, got %+v", markers)
	}
}
