package service

import (
	"context"
	"strings"

	"blog/internal/apperr"
	"blog/internal/authz"
	"blog/internal/models"
	"blog/internal/store"
)

type CreatePostInput struct {
	Title     string
	Body      string
	Published bool
}

type UpdatePostInput struct {
	Title     *string
	Body      *string
	Published *bool
}

func validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return apperr.Validationf("title must not be empty")
	}
	return nil
}

// Posts lists published posts whose title or body contains query.
func (s *Service) Posts(ctx context.Context, query string, p store.Page) ([]*models.Post, error) {
	published := true
	return s.store.Posts(ctx, store.PostFilter{Query: query, Published: &published}, p)
}

// MyPosts lists the caller's posts, drafts included.
func (s *Service) MyPosts(ctx context.Context, query string, p store.Page) ([]*models.Post, error) {
	caller, err := s.requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	return s.store.Posts(ctx, store.PostFilter{Query: query, AuthorID: caller}, p)
}

// Post returns a post the caller may read. A draft of someone else fails
// with Forbidden, which callers outside see as not found.
func (s *Service) Post(ctx context.Context, id string) (*models.Post, error) {
	caller, err := s.Caller(ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.store.Post(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.RequireReadablePost(caller, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ReadablePost is Post with unreadable and missing posts reported as nil.
func (s *Service) ReadablePost(ctx context.Context, id string) (*models.Post, error) {
	p, err := s.Post(ctx, id)
	if apperr.IsKind(err, apperr.NotFound) || apperr.IsKind(err, apperr.Forbidden) {
		return nil, nil
	}
	return p, err
}

func (s *Service) CreatePost(ctx context.Context, in CreatePostInput) (_ *models.Post, err error) {
	defer func() { s.observe("createPost", err) }()

	caller, err := s.requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateTitle(in.Title); err != nil {
		return nil, err
	}
	p, err := s.store.CreatePost(ctx, &models.Post{
		AuthorID:  caller,
		Title:     in.Title,
		Body:      in.Body,
		Published: in.Published,
	})
	if err != nil {
		return nil, err
	}
	if p.Published {
		s.publishPost(models.Created, p)
	}
	return p, nil
}

// UpdatePost applies in to a post owned by the caller. The notification
// depends on how published moved:
//
//	false -> true   CREATED with the updated post
//	true  -> false  DELETED with the post as it was before
//	true  -> true   UPDATED with the updated post, if title or body was given
//	false -> false  nothing
func (s *Service) UpdatePost(ctx context.Context, id string, in UpdatePostInput) (_ *models.Post, err error) {
	defer func() { s.observe("updatePost", err) }()

	caller, err := s.requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	original, err := s.store.Post(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.RequirePostOwner(caller, original, "update"); err != nil {
		return nil, err
	}
	if in.Title != nil {
		if err := validateTitle(*in.Title); err != nil {
			return nil, err
		}
	}
	patch := store.PostPatch{Title: in.Title, Body: in.Body, Published: in.Published}
	if patch.Empty() {
		return original, nil
	}
	updated, err := s.store.UpdatePost(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	switch {
	case !original.Published && updated.Published:
		s.publishPost(models.Created, updated)
	case original.Published && !updated.Published:
		s.publishPost(models.Deleted, original)
	case original.Published && (in.Title != nil || in.Body != nil):
		s.publishPost(models.Updated, updated)
	}
	return updated, nil
}

func (s *Service) DeletePost(ctx context.Context, id string) (_ *models.Post, err error) {
	defer func() { s.observe("deletePost", err) }()

	caller, err := s.requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.store.Post(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.RequirePostOwner(caller, p, "delete"); err != nil {
		return nil, err
	}
	deleted, err := s.store.DeletePost(ctx, id)
	if err != nil {
		return nil, err
	}
	if deleted.Published {
		s.publishPost(models.Deleted, deleted)
	}
	return deleted, nil
}

func (s *Service) PostComments(ctx context.Context, postID string, p store.Page) ([]*models.Comment, error) {
	return s.store.Comments(ctx, store.CommentFilter{PostID: postID}, p)
}

func (s *Service) CountPostComments(ctx context.Context, postID string) (int, error) {
	return s.store.CountComments(ctx, store.CommentFilter{PostID: postID})
}
