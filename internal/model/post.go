package model

import "time"

// Post is a persisted announcement of a collaborative project seeking contributors.
//
// COUNTERS ARE SERVER-OWNED:
// Likes, Comments and Collaborators are only ever changed by atomic storage
// operations (see repository.PostRepository). Values sent by clients on
// create or update are discarded.
//
// AUTHOR FIELDS:
// AuthorName and AuthorEmail are a denormalized copy taken when the post is
// created, not a reference. AuthorUID is the owner check for updates.
type Post struct {
	ID               string    `json:"_id"              bson:"_id"`
	Title            string    `json:"title"            bson:"title"            validate:"required,max=200"`
	Description      string    `json:"description"      bson:"description"      validate:"min=50,max=5000"`
	Category         string    `json:"category"         bson:"category"         validate:"required,category"`
	Skills           []string  `json:"skills"           bson:"skills"           validate:"min=1,max=20,dive,required,max=50"`
	Deadline         string    `json:"deadline"         bson:"deadline"         validate:"required,datetime=2006-01-02"`
	Budget           string    `json:"budget,omitempty" bson:"budget,omitempty"`
	Timeline         string    `json:"timeline,omitempty" bson:"timeline,omitempty"`
	Status           string    `json:"status"           bson:"status"`
	Image            string    `json:"image,omitempty"  bson:"image,omitempty"  validate:"omitempty,url"`
	MaxCollaborators int       `json:"maxCollaborators" bson:"maxCollaborators" validate:"min=1,max=100"`
	Collaborators    int       `json:"collaborators"    bson:"collaborators"`
	Likes            int       `json:"likes"            bson:"likes"`
	Comments         int       `json:"comments"         bson:"comments"`
	AuthorUID        string    `json:"authorUid"        bson:"authorUid"`
	AuthorName       string    `json:"authorName"       bson:"authorName"`
	AuthorEmail      string    `json:"authorEmail"      bson:"authorEmail"`
	CreatedAt        time.Time `json:"createdAt"        bson:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"        bson:"updatedAt"`
}

// Post defaults applied on create.
const (
	DefaultMaxCollaborators = 5
	DefaultPostStatus       = "Active"
)

// Categories is the fixed set of project categories offered to authors.
var Categories = []string{
	"Web App",
	"Mobile App",
	"Desktop App",
	"API",
	"Library",
	"Plugin",
	"Extension",
	"Game",
	"Blockchain",
	"AI/ML",
	"Data Science",
	"DevOps",
	"Design",
	"Marketing",
	"Content",
	"Other",
}

// IsCategory reports whether c is one of Categories.
func IsCategory(c string) bool {
	for _, known := range Categories {
		if known == c {
			return true
		}
	}
	return false
}

// IsFull reports whether the post has no open collaborator slots.
func (p *Post) IsFull() bool {
	return p.Collaborators >= p.MaxCollaborators
}

// ReactionKind identifies a per-identity, deduplicated counter mutation.
type ReactionKind string

const (
	ReactionLike        ReactionKind = "like"
	ReactionCollaborate ReactionKind = "collaborate"
)

// Comment is a persisted comment on a post.
type Comment struct {
	ID         string    `json:"_id"        bson:"_id"`
	PostID     string    `json:"postId"     bson:"postId"`
	AuthorUID  string    `json:"authorUid"  bson:"authorUid"`
	AuthorName string    `json:"authorName" bson:"authorName"`
	Text       string    `json:"text"       bson:"text"       validate:"required,max=2000"`
	CreatedAt  time.Time `json:"createdAt"  bson:"createdAt"`
}
