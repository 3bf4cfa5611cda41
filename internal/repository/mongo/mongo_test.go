package mongo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/xid"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"github.com/stretchr/testify/require"

	"github.com/collabgrow/collabgrow/internal/apperror"
	"github.com/collabgrow/collabgrow/internal/model"
	"github.com/collabgrow/collabgrow/internal/repository"
)

// newTestStore connects to MONGO_TEST_URI using a throwaway database that
// is dropped when the test ends. Without the variable the test is skipped.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	name := "collabgrow_test_" + xid.New().String()
	s, err := Open(ctx, uri, name, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.client.Database(name).Drop(ctx)
		_ = s.Close(ctx)
	})
	return s
}

func createTestPost(t *testing.T, s *Store, maxCollaborators int) *model.Post {
	t.Helper()
	p := &model.Post{
		Title:            "CollabGrow",
		Description:      "A long enough description for a collaborative project post.",
		Category:         "Web App",
		Skills:           []string{"Go"},
		Deadline:         "2026-12-31",
		Status:           model.DefaultPostStatus,
		MaxCollaborators: maxCollaborators,
		AuthorUID:        "author-1",
	}
	require.NoError(t, s.CreatePost(context.Background(), p))
	return p
}

func TestOpen_BadURI(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := Open(ctx, "not-a-mongo-uri", "x", slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}

func TestProfiles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := &model.Profile{UID: "uid-1", Name: "Ada", Email: "ada@x.dev", Skills: []string{"Go"}}
	require.NoError(t, s.CreateProfile(ctx, p))

	err := s.CreateProfile(ctx, &model.Profile{UID: "uid-1", Email: "other@x.dev"})
	assert.True(t, errors.Is(err, apperror.ErrConflict), "got %v", err)

	// Two anonymous profiles do not collide on the partial uid index.
	require.NoError(t, s.CreateProfile(ctx, &model.Profile{Email: "anon1@x.dev"}))
	require.NoError(t, s.CreateProfile(ctx, &model.Profile{Email: "anon2@x.dev"}))

	replacement := &model.Profile{ID: p.ID, UID: "uid-1", Name: "Ada L.", Email: "ada@x.dev"}
	require.NoError(t, s.ReplaceProfile(ctx, replacement))

	got, err := s.GetProfileByUID(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", got.Name)
	assert.Empty(t, got.Skills)
	assert.WithinDuration(t, p.CreatedAt, got.CreatedAt, time.Millisecond)

	got, err = s.GetProfileByEmail(ctx, "ada@x.dev")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = s.GetProfileByEmail(ctx, "nobody@x.dev")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestPosts_ReactorsLiveOnThePost(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := createTestPost(t, s, 1)

	_, applied, err := s.IncrementCollaborators(ctx, p.ID, "u1")
	require.NoError(t, err)
	require.True(t, applied)

	// Repeating on a now full post is still a no-op, not a conflict.
	got, applied, err := s.IncrementCollaborators(ctx, p.ID, "u1")
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, 1, got.Collaborators)

	_, _, err = s.IncrementLikes(ctx, p.ID, "u2")
	require.NoError(t, err)

	var raw bson.M
	require.NoError(t, s.posts.FindOne(ctx, bson.M{"_id": p.ID}).Decode(&raw))
	assert.Equal(t, bson.A{"u1"}, raw[collaboratorUIDsField])
	assert.Equal(t, bson.A{"u2"}, raw[likedByField])
	assert.EqualValues(t, 1, raw["likes"])

	listed, err := s.ListPosts(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, 1, listed[0].Likes)
}

func TestPosts_CountersAndCap(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := createTestPost(t, s, 3)

	got, applied, err := s.IncrementLikes(ctx, p.ID, "u1")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 1, got.Likes)

	_, applied, err = s.IncrementLikes(ctx, p.ID, "u1")
	require.NoError(t, err)
	assert.False(t, applied)

	const callers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := s.IncrementCollaborators(ctx, p.ID, fmt.Sprintf("u%d", i))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if errors.Is(err, apperror.ErrConflict) {
				conflicts++
			} else {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 3, ok)
	assert.Equal(t, callers-3, conflicts)

	final, err := s.GetPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, final.Collaborators)

	edit := *final
	edit.MaxCollaborators = 2
	err = s.UpdatePost(ctx, &edit)
	assert.True(t, errors.Is(err, apperror.ErrValidation), "got %v", err)
}

func TestCommentsAndActivity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := createTestPost(t, s, 5)

	post, err := s.AddComment(ctx, &model.Comment{PostID: p.ID, AuthorUID: "u1", Text: "first"})
	require.NoError(t, err)
	assert.Equal(t, 1, post.Comments)

	_, err = s.AddComment(ctx, &model.Comment{PostID: "missing", AuthorUID: "u1", Text: "x"})
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	comments, err := s.ListComments(ctx, p.ID, repository.ListOptions{})
	require.NoError(t, err)
	require.Len(t, comments, 1)

	require.NoError(t, s.RecordActivity(ctx, &model.Activity{Type: model.ActivityComment, Message: "one"}))
	require.NoError(t, s.RecordActivity(ctx, &model.Activity{Type: model.ActivityLike, Message: "two"}))

	entries, err := s.ListActivity(ctx, repository.ListOptions{Limit: 1})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "two", entries[0].Message)
}
