package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/collabgrow/collabgrow/internal/model"
	"github.com/collabgrow/collabgrow/internal/repository"
)

func (db *DB) RecordActivity(ctx context.Context, a *model.Activity) error {
	a.ID = xid.New().String()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO activity (id, type, message, actor_uid, actor_name, post_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, string(a.Type), a.Message, a.ActorUID, a.ActorName, a.PostID, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: recording activity: %w", err)
	}
	return nil
}

// ListActivity returns feed entries, newest first.
func (db *DB) ListActivity(ctx context.Context, opts repository.ListOptions) ([]model.Activity, error) {
	opts = opts.Clamp()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, type, message, actor_uid, actor_name, post_id, created_at
		 FROM activity
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ? OFFSET ?`,
		opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing activity: %w", err)
	}
	defer rows.Close()

	entries := make([]model.Activity, 0, opts.Limit)
	for rows.Next() {
		var (
			a    model.Activity
			kind string
		)
		if err := rows.Scan(&a.ID, &kind, &a.Message, &a.ActorUID, &a.ActorName, &a.PostID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning activity row: %w", err)
		}
		a.Type = model.ActivityType(kind)
		entries = append(entries, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating activity: %w", err)
	}
	return entries, nil
}
