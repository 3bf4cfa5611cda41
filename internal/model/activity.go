package model

import "time"

// ActivityType classifies an entry in the activity feed.
type ActivityType string

const (
	ActivityLike          ActivityType = "like"
	ActivityComment       ActivityType = "comment"
	ActivityCollaboration ActivityType = "collaboration"
	ActivityPost          ActivityType = "post"
)

// Activity is one entry in the recent-activity feed shown on the dashboard.
type Activity struct {
	ID        string       `json:"_id"               bson:"_id"`
	Type      ActivityType `json:"type"              bson:"type"`
	Message   string       `json:"message"           bson:"message"`
	ActorUID  string       `json:"actorUid,omitempty" bson:"actorUid,omitempty"`
	ActorName string       `json:"actorName"         bson:"actorName"`
	PostID    string       `json:"postId,omitempty"  bson:"postId,omitempty"`
	CreatedAt time.Time    `json:"createdAt"         bson:"createdAt"`
}

// JoinRequest is the transient payload a prospective collaborator sends to a
// project author. It is relayed by email and never stored as an entity.
type JoinRequest struct {
	ProjectTitle string `json:"projectTitle" validate:"required,max=200"`
	AuthorEmail  string `json:"authorEmail"  validate:"required,email"`
	JoinerName   string `json:"joinerName"   validate:"required,max=200"`
	JoinerEmail  string `json:"joinerEmail"  validate:"required,email"`
}
