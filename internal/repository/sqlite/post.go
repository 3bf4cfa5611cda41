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
	"github.com/collabgrow/collabgrow/internal/repository"
)

const postColumns = `id, title, description, category, skills, deadline, budget, timeline,
	status, image, max_collaborators, collaborators, likes, comments,
	author_uid, author_name, author_email, created_at, updated_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*model.Post, error) {
	var (
		p      model.Post
		skills string
	)
	err := row.Scan(
		&p.ID, &p.Title, &p.Description, &p.Category, &skills, &p.Deadline,
		&p.Budget, &p.Timeline, &p.Status, &p.Image, &p.MaxCollaborators,
		&p.Collaborators, &p.Likes, &p.Comments,
		&p.AuthorUID, &p.AuthorName, &p.AuthorEmail, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(skills), &p.Skills); err != nil {
		return nil, fmt.Errorf("decoding skills of post %s: %w", p.ID, err)
	}
	return &p, nil
}

func encodeSkills(skills []string) (string, error) {
	if skills == nil {
		skills = []string{}
	}
	b, err := json.Marshal(skills)
	if err != nil {
		return "", fmt.Errorf("sqlite: encoding skills: %w", err)
	}
	return string(b), nil
}

// CreatePost inserts p with fresh ID and timestamps. Counters are stored as
// given; the service resets them before calling.
func (db *DB) CreatePost(ctx context.Context, p *model.Post) error {
	p.ID = xid.New().String()
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	skills, err := encodeSkills(p.Skills)
	if err != nil {
		return err
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO posts (`+postColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Title, p.Description, p.Category, skills, p.Deadline,
		p.Budget, p.Timeline, p.Status, p.Image, p.MaxCollaborators,
		p.Collaborators, p.Likes, p.Comments,
		p.AuthorUID, p.AuthorName, p.AuthorEmail, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating post: %w", err)
	}
	return nil
}

func (db *DB) GetPost(ctx context.Context, id string) (*model.Post, error) {
	return getPost(ctx, db.conn, id)
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getPost(ctx context.Context, q querier, id string) (*model.Post, error) {
	p, err := scanPost(q.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("post", id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting post %s: %w", id, err)
	}
	return p, nil
}

// ListPosts returns every post, newest first.
func (db *DB) ListPosts(ctx context.Context) ([]model.Post, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+postColumns+` FROM posts ORDER BY created_at DESC, rowid DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing posts: %w", err)
	}
	defer rows.Close()

	posts := make([]model.Post, 0)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning post row: %w", err)
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating posts: %w", err)
	}
	return posts, nil
}

// UpdatePost overwrites the editable fields. Counters, author and
// created_at are never touched here.
//
// The max_collaborators guard in the WHERE clause closes the window between
// the service's check and this write: a collaborator joining in between
// makes the update match zero rows instead of breaking the cap.
func (db *DB) UpdatePost(ctx context.Context, p *model.Post) error {
	p.UpdatedAt = time.Now().UTC()

	skills, err := encodeSkills(p.Skills)
	if err != nil {
		return err
	}

	return db.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE posts
			 SET title = ?, description = ?, category = ?, skills = ?, deadline = ?,
			     budget = ?, timeline = ?, status = ?, image = ?, max_collaborators = ?,
			     updated_at = ?
			 WHERE id = ? AND collaborators <= ?`,
			p.Title, p.Description, p.Category, skills, p.Deadline,
			p.Budget, p.Timeline, p.Status, p.Image, p.MaxCollaborators,
			p.UpdatedAt, p.ID, p.MaxCollaborators,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating post %s: %w", p.ID, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: checking rows affected: %w", err)
		}
		if n > 0 {
			return nil
		}

		if _, err := getPost(ctx, tx, p.ID); err != nil {
			return err
		}
		return apperror.ValidationFailed("maxCollaborators",
			"maxCollaborators cannot be lower than the current number of collaborators")
	})
}

// IncrementLikes records a like by uid and bumps the counter once per uid.
func (db *DB) IncrementLikes(ctx context.Context, postID, uid string) (*model.Post, bool, error) {
	return db.react(ctx, postID, uid, model.ReactionLike,
		`UPDATE posts SET likes = likes + 1 WHERE id = ?`)
}

// IncrementCollaborators claims a collaborator slot for uid. The UPDATE only
// matches while a slot is open, so concurrent callers can never push the
// counter past max_collaborators.
func (db *DB) IncrementCollaborators(ctx context.Context, postID, uid string) (*model.Post, bool, error) {
	return db.react(ctx, postID, uid, model.ReactionCollaborate,
		`UPDATE posts SET collaborators = collaborators + 1
		 WHERE id = ? AND collaborators < max_collaborators`)
}

// react inserts the (post, uid, kind) reaction and, only if it is new, runs
// the counter update. An update that matches no rows is reported as a full
// project and rolls the reaction back.
func (db *DB) react(ctx context.Context, postID, uid string, kind model.ReactionKind, update string) (*model.Post, bool, error) {
	var (
		post    *model.Post
		applied bool
	)
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getPost(ctx, tx, postID); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO reactions (post_id, uid, kind, created_at) VALUES (?, ?, ?, ?)`,
			postID, uid, string(kind), time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("sqlite: recording %s reaction: %w", kind, err)
		}
		inserted, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: checking rows affected: %w", err)
		}

		if inserted > 0 {
			result, err = tx.ExecContext(ctx, update, postID)
			if err != nil {
				return fmt.Errorf("sqlite: incrementing %s counter: %w", kind, err)
			}
			n, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("sqlite: checking rows affected: %w", err)
			}
			if n == 0 {
				return apperror.Conflict("this project has no open collaborator slots")
			}
			applied = true
		}

		post, err = getPost(ctx, tx, postID)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return post, applied, nil
}

// AddComment stores c and bumps the post's comment counter in one transaction.
func (db *DB) AddComment(ctx context.Context, c *model.Comment) (*model.Post, error) {
	c.ID = xid.New().String()
	c.CreatedAt = time.Now().UTC()

	var post *model.Post
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE posts SET comments = comments + 1 WHERE id = ?`, c.PostID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: incrementing comment counter: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: checking rows affected: %w", err)
		}
		if n == 0 {
			return apperror.NotFound("post", c.PostID)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO comments (id, post_id, author_uid, author_name, text, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			c.ID, c.PostID, c.AuthorUID, c.AuthorName, c.Text, c.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("sqlite: creating comment: %w", err)
		}

		post, err = getPost(ctx, tx, c.PostID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

// ListComments returns a post's comments, oldest first.
func (db *DB) ListComments(ctx context.Context, postID string, opts repository.ListOptions) ([]model.Comment, error) {
	opts = opts.Clamp()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, post_id, author_uid, author_name, text, created_at
		 FROM comments
		 WHERE post_id = ?
		 ORDER BY created_at ASC, rowid ASC
		 LIMIT ? OFFSET ?`,
		postID, opts.Limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing comments: %w", err)
	}
	defer rows.Close()

	comments := make([]model.Comment, 0, opts.Limit)
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.AuthorUID, &c.AuthorName, &c.Text, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning comment row: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating comments: %w", err)
	}
	return comments, nil
}
