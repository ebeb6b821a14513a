package domain

import "time"

// Post is one corpus item fetched from a community source before it
// is formatted into a knowledge-base digest.
type Post struct {
	ID          int64
	Subreddit   string
	ExternalID  string // source-assigned id, e.g. reddit fullname
	Title       string
	Author      string
	URL         string
	Permalink   string
	SelfText    string
	Score       int
	NumComments int
	PostedAt    time.Time
	CreatedAt   time.Time
}

// SyncState tracks per-subreddit ingestion progress.
type SyncState struct {
	ID           int64     `db:"id"`
	Subreddit    string    `db:"subreddit"`
	LastSyncedAt time.Time `db:"last_synced_at"`
	TotalSynced  int64     `db:"total_synced"`
}

// SyncStats holds statistics about one corpus ingestion run.
type SyncStats struct {
	Subreddits []string
	Fetched    int
	New        int
	Skipped    int
	Errors     int
	Documents  []string // public URLs of uploaded digests
	Duration   time.Duration
}
