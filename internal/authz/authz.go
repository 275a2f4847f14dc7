// Package authz holds the ownership and visibility rules of the blog.
// Every function is pure: the caller id is "" for anonymous callers.
package authz

import (
	"blog/internal/apperr"
	"blog/internal/models"
)

func CanModifyPost(callerID string, p *models.Post) bool {
	return callerID != "" && p != nil && p.AuthorID == callerID
}

func CanModifyComment(callerID string, c *models.Comment) bool {
	return callerID != "" && c != nil && c.AuthorID == callerID
}

// CanReadPost allows published posts to everyone and drafts to their author.
func CanReadPost(callerID string, p *models.Post) bool {
	if p == nil {
		return false
	}
	return p.Published || (callerID != "" && p.AuthorID == callerID)
}

func CanSeeEmail(callerID string, u *models.User) bool {
	return callerID != "" && u != nil && u.ID == callerID
}

// CanModifyUser is self-service only.
func CanModifyUser(callerID, targetID string) bool {
	return callerID != "" && callerID == targetID
}

// RequirePostOwner returns a Forbidden error unless the caller authored p.
// verb names the attempted operation in the message, e.g. "update".
func RequirePostOwner(callerID string, p *models.Post, verb string) error {
	if !CanModifyPost(callerID, p) {
		return apperr.Forbiddenf("unable to %s post", verb)
	}
	return nil
}

func RequireCommentOwner(callerID string, c *models.Comment, verb string) error {
	if !CanModifyComment(callerID, c) {
		return apperr.Forbiddenf("unable to %s comment", verb)
	}
	return nil
}

func RequireReadablePost(callerID string, p *models.Post) error {
	if !CanReadPost(callerID, p) {
		return apperr.Forbiddenf("post not found")
	}
	return nil
}
