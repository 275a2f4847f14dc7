package service

import (
	"context"
	"strings"

	"blog/internal/apperr"
	"blog/internal/authz"
	"blog/internal/models"
	"blog/internal/store"
)

type CreateCommentInput struct {
	Text   string
	PostID string
}

type UpdateCommentInput struct {
	Text *string
}

func validateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return apperr.Validationf("text must not be empty")
	}
	return nil
}

func (s *Service) Comments(ctx context.Context, p store.Page) ([]*models.Comment, error) {
	return s.store.Comments(ctx, store.CommentFilter{}, p)
}

// publishedPost loads id and hides drafts behind NotFound.
func (s *Service) publishedPost(ctx context.Context, id string) (*models.Post, error) {
	p, err := s.store.Post(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Published {
		return nil, apperr.NotFoundf("post not found")
	}
	return p, nil
}

func (s *Service) CreateComment(ctx context.Context, in CreateCommentInput) (_ *models.Comment, err error) {
	defer func() { s.observe("createComment", err) }()

	caller, err := s.requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateText(in.Text); err != nil {
		return nil, err
	}
	if _, err := s.publishedPost(ctx, in.PostID); err != nil {
		return nil, err
	}
	c, err := s.store.CreateComment(ctx, &models.Comment{
		AuthorID: caller,
		PostID:   in.PostID,
		Text:     in.Text,
	})
	if err != nil {
		return nil, err
	}
	s.publishComment(models.Created, c)
	return c, nil
}

// UpdateComment notifies only when the text actually changes.
func (s *Service) UpdateComment(ctx context.Context, id string, in UpdateCommentInput) (_ *models.Comment, err error) {
	defer func() { s.observe("updateComment", err) }()

	caller, err := s.requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	original, err := s.store.Comment(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.RequireCommentOwner(caller, original, "update"); err != nil {
		return nil, err
	}
	if in.Text == nil {
		return original, nil
	}
	if err := validateText(*in.Text); err != nil {
		return nil, err
	}
	updated, err := s.store.UpdateComment(ctx, id, store.CommentPatch{Text: in.Text})
	if err != nil {
		return nil, err
	}
	if updated.Text != original.Text {
		s.publishComment(models.Updated, updated)
	}
	return updated, nil
}

func (s *Service) DeleteComment(ctx context.Context, id string) (_ *models.Comment, err error) {
	defer func() { s.observe("deleteComment", err) }()

	caller, err := s.requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	c, err := s.store.Comment(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.RequireCommentOwner(caller, c, "delete"); err != nil {
		return nil, err
	}
	deleted, err := s.store.DeleteComment(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publishComment(models.Deleted, deleted)
	return deleted, nil
}
