package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// MuteMarker is an advisory record of an applied suppression role.
type MuteMarker struct {
	GuildID  string
	TargetID string
	RoleID   string
	// ExpiresIn is the remaining TTL when listed.
	ExpiresIn time.Duration
}

// MuteMarkerRepository keeps best-effort markers of applied mutes in
// Redis, with a TTL matching the mute duration. The markers are never
// consulted on the command path; they exist so an operator returning
// after a process restart can see which suppression roles may still be
// applied with no pending release task.
type MuteMarkerRepository struct {
	client *redis.Client
}

// NewMuteMarkerRepository wraps a Redis client.
func NewMuteMarkerRepository(client *redis.Client) *MuteMarkerRepository {
	return &MuteMarkerRepository{client: client}
}

func markerKey(guildID, targetID string) string {
	return fmt.Sprintf("warden:mute:%s:%s", guildID, targetID)
}

// Set stores a marker expiring with the mute.
func (r *MuteMarkerRepository) Set(ctx context.Context, guildID, targetID, roleID string, duration time.Duration) error {
	return r.client.Set(ctx, markerKey(guildID, targetID), roleID, duration).Err()
}

// Clear removes the marker after a release or expiry.
func (r *MuteMarkerRepository) Clear(ctx context.Context, guildID, targetID string) error {
	return r.client.Del(ctx, markerKey(guildID, targetID)).Err()
}

// List scans all live markers.
func (r *MuteMarkerRepository) List(ctx context.Context) ([]MuteMarker, error) {
	var markers []MuteMarker
	iter := r.client.Scan(ctx, 0, "warden:mute:*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		parts := strings.SplitN(key, ":", 4)
		if len(parts) != 4 {
			continue
		}
		roleID, err := r.client.Get(ctx, key).Result()
		if err != nil {
			continue
		}
		ttl, err := r.client.TTL(ctx, key).Result()
		if err != nil {
			ttl = 0
		}
		markers = append(markers, MuteMarker{
			GuildID:   parts[2],
			TargetID:  parts[3],
			RoleID:    roleID,
			ExpiresIn: ttl,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return markers, nil
}
