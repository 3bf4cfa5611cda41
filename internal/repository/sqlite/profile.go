package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/collabgrow/collabgrow/internal/apperror"
	"github.com/collabgrow/collabgrow/internal/model"
)

// CreateProfile inserts p. ID is assigned when empty; timestamps always are.
// A second profile linked to the same uid is a conflict.
func (db *DB) CreateProfile(ctx context.Context, p *model.Profile) error {
	if p.ID == "" {
		p.ID = xid.New().String()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("sqlite: encoding profile: %w", err)
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO profile (id, uid, email, doc, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.UID, p.Email, string(doc), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("a profile is already linked to this account")
		}
		return fmt.Errorf("sqlite: creating profile: %w", err)
	}
	return nil
}

// ReplaceProfile overwrites the stored document for p.ID, keeping CreatedAt.
func (db *DB) ReplaceProfile(ctx context.Context, p *model.Profile) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		var createdAt time.Time
		err := tx.QueryRowContext(ctx,
			`SELECT created_at FROM profile WHERE id = ?`, p.ID,
		).Scan(&createdAt)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperror.NotFound("profile", p.ID)
			}
			return fmt.Errorf("sqlite: loading profile %s: %w", p.ID, err)
		}

		p.CreatedAt = createdAt
		p.UpdatedAt = time.Now().UTC()

		doc, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("sqlite: encoding profile: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE profile SET uid = ?, email = ?, doc = ?, updated_at = ? WHERE id = ?`,
			p.UID, p.Email, string(doc), p.UpdatedAt, p.ID,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return apperror.Conflict("a profile is already linked to this account")
			}
			return fmt.Errorf("sqlite: replacing profile %s: %w", p.ID, err)
		}
		return nil
	})
}

func (db *DB) GetProfileByUID(ctx context.Context, uid string) (*model.Profile, error) {
	if uid == "" {
		return nil, apperror.NotFound("profile", uid)
	}
	p, err := db.scanProfile(db.conn.QueryRowContext(ctx,
		`SELECT id, uid, email, doc, created_at, updated_at FROM profile WHERE uid = ?`, uid,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("profile", uid)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting profile by uid: %w", err)
	}
	return p, nil
}

// GetProfileByEmail returns the most recently updated profile for email.
func (db *DB) GetProfileByEmail(ctx context.Context, email string) (*model.Profile, error) {
	p, err := db.scanProfile(db.conn.QueryRowContext(ctx,
		`SELECT id, uid, email, doc, created_at, updated_at FROM profile
		 WHERE email = ?
		 ORDER BY updated_at DESC, rowid DESC
		 LIMIT 1`, email,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("profile", email)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting profile by email: %w", err)
	}
	return p, nil
}

// scanProfile decodes the document and lets the indexed columns win over
// whatever the document says for the same fields.
func (db *DB) scanProfile(row *sql.Row) (*model.Profile, error) {
	var (
		p   model.Profile
		doc string
		id  string
		uid string
		em  string
		c   time.Time
		u   time.Time
	)
	if err := row.Scan(&id, &uid, &em, &doc, &c, &u); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return nil, fmt.Errorf("decoding profile %s: %w", id, err)
	}
	p.ID, p.UID, p.Email, p.CreatedAt, p.UpdatedAt = id, uid, em, c, u
	return &p, nil
}
