// Package guardian answers who may do what to comments and votes.
package guardian

import (
	"github.com/emilythestrangee/post-voting/backend/internal/config"
	"github.com/emilythestrangee/post-voting/backend/internal/models"
)

// FlagOptions describes the extra actions a flag asks for.
type FlagOptions struct {
	TakeAction     bool
	QueueForReview bool
	// NotifyUser flags send a message to the author; IsWarning marks that
	// message as an official warning.
	NotifyUser bool
	IsWarning  bool
}

// Guardian evaluates permissions for one acting user. A nil user is anonymous.
type Guardian struct {
	user     *models.User
	settings config.Voting
}

func New(user *models.User, settings config.Voting) *Guardian {
	return &Guardian{user: user, settings: settings}
}

func (g *Guardian) Authenticated() bool {
	return g.user != nil
}

func (g *Guardian) staff() bool {
	return g.user != nil && g.user.Staff()
}

// CanEditComment allows the author and staff.
func (g *Guardian) CanEditComment(comment *models.Comment) bool {
	if g.user == nil || comment == nil {
		return false
	}
	return comment.AuthorID == g.user.ID || g.staff()
}

func (g *Guardian) CanDeleteComment(comment *models.Comment) bool {
	return g.CanEditComment(comment)
}

func (g *Guardian) CanModerate() bool {
	return g.staff()
}

// CanFlagComments is the site-wide flagging permission. Silenced users never
// flag, staff always may, and everyone else needs MinTrustToFlag.
func (g *Guardian) CanFlagComments() bool {
	if g.user == nil || g.user.Silenced {
		return false
	}
	if g.user.Staff() {
		return true
	}
	return g.user.TrustLevel >= g.settings.MinTrustToFlag
}

// CanFlagComment checks one comment. author is the comment's author and may
// be nil when the account is gone.
func (g *Guardian) CanFlagComment(comment *models.Comment, author *models.User) bool {
	if g.user == nil || comment == nil || comment.Trashed() || author == nil {
		return false
	}
	if author.Staff() && !g.settings.AllowFlaggingStaff {
		return false
	}
	if comment.AuthorID == g.user.ID {
		return false
	}
	return g.CanFlagComments()
}

// CanFlagCommentAs restricts the moderation side effects of a flag to staff.
func (g *Guardian) CanFlagCommentAs(opts FlagOptions) bool {
	if !g.staff() && (opts.TakeAction || opts.QueueForReview) {
		return false
	}
	if opts.NotifyUser && opts.IsWarning && !g.staff() {
		return false
	}
	return true
}

// CanPurgeVotes allows admins, and users removing their own votes when their
// account is deleted.
func (g *Guardian) CanPurgeVotes(targetUserID int) bool {
	if g.user == nil {
		return false
	}
	return g.user.Admin || g.user.ID == targetUserID
}
