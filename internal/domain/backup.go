package domain

import "time"

// BackupGuildInfo captures top-level guild attributes in a snapshot.
type BackupGuildInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	OwnerID     string `json:"owner_id"`
	Description string `json:"description,omitempty"`
}

// Backup is a point-in-time export of a guild's object graph.
type Backup struct {
	ID         string          `json:"backup_id"`
	Guild      BackupGuildInfo `json:"guild"`
	Roles      []Role          `json:"roles"`
	Channels   []Channel       `json:"channels"`
	Categories []Channel       `json:"categories"`
	CreatedAt  time.Time       `json:"created_at"`
}

// BackupSummary is the listing view of a stored backup.
type BackupSummary struct {
	ID         string    `json:"backup_id"`
	GuildName  string    `json:"guild_name"`
	CreatedAt  time.Time `json:"created_at"`
	Roles      int       `json:"roles"`
	Channels   int       `json:"channels"`
	Categories int       `json:"categories"`
}
