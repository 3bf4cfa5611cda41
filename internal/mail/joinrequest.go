package mail

import (
	"fmt"

	"github.com/collabgrow/collabgrow/internal/model"
)

// JoinRequestMessage builds the notification sent to a project's author.
// Replies go straight to the person asking to join.
func JoinRequestMessage(req model.JoinRequest) Message {
	return Message{
		To:      req.AuthorEmail,
		ReplyTo: req.JoinerEmail,
		Subject: fmt.Sprintf("New request to join %q", req.ProjectTitle),
		Body: fmt.Sprintf(`Hi,

%s (%s) would like to join your project "%s" on CollabGrow.

Reply to this email to get in touch with them directly.

The CollabGrow team
`, req.JoinerName, req.JoinerEmail, req.ProjectTitle),
	}
}
