package service

import (
	"context"
	"strings"

	"blog/internal/apperr"
	"blog/internal/auth"
	"blog/internal/authz"
	"blog/internal/models"
	"blog/internal/store"
)

type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Age      *int
}

type LoginInput struct {
	Email    string
	Password string
}

type UpdateUserInput struct {
	Name     *string
	Email    *string
	Password *string
	Age      *int
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return apperr.Validationf("name must not be empty")
	}
	return nil
}

func validateEmail(email string) error {
	if strings.TrimSpace(email) == "" || !strings.Contains(email, "@") {
		return apperr.Validationf("invalid email")
	}
	return nil
}

func validateAge(age *int) error {
	if age != nil && *age < 0 {
		return apperr.Validationf("age must not be negative")
	}
	return nil
}

// Users lists users whose name contains query.
func (s *Service) Users(ctx context.Context, query string, p store.Page) ([]*models.User, error) {
	return s.store.Users(ctx, store.UserFilter{Query: query}, p)
}

func (s *Service) User(ctx context.Context, id string) (*models.User, error) {
	return s.store.User(ctx, id)
}

// Me returns the authenticated caller.
func (s *Service) Me(ctx context.Context) (*models.User, error) {
	id, err := s.requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	return s.store.User(ctx, id)
}

// Email returns u's address when the caller owns u and nil otherwise.
func (s *Service) Email(ctx context.Context, u *models.User) (*string, error) {
	caller, err := s.Caller(ctx)
	if err != nil {
		return nil, err
	}
	if !authz.CanSeeEmail(caller, u) {
		return nil, nil
	}
	email := u.Email
	return &email, nil
}

func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (_ *AuthPayload, err error) {
	defer func() { s.observe("createUser", err) }()

	if err := validateName(in.Name); err != nil {
		return nil, err
	}
	if err := validateEmail(in.Email); err != nil {
		return nil, err
	}
	if err := validateAge(in.Age); err != nil {
		return nil, err
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	u, err := s.store.CreateUser(ctx, &models.User{
		Name:         in.Name,
		Email:        in.Email,
		Age:          in.Age,
		PasswordHash: hash,
	})
	if err != nil {
		return nil, err
	}
	return s.issue(u)
}

func (s *Service) Login(ctx context.Context, in LoginInput) (_ *AuthPayload, err error) {
	defer func() { s.observe("login", err) }()

	u, err := s.store.UserByEmail(ctx, in.Email)
	if err != nil {
		if apperr.IsKind(err, apperr.NotFound) {
			return nil, apperr.ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.CheckPassword(in.Password, u.PasswordHash) {
		return nil, apperr.ErrInvalidCredentials
	}
	return s.issue(u)
}

func (s *Service) issue(u *models.User) (*AuthPayload, error) {
	token, err := s.tokens.Create(u.ID)
	if err != nil {
		return nil, err
	}
	return &AuthPayload{User: u, Token: token}, nil
}

// UpdateUser changes the caller's own record.
func (s *Service) UpdateUser(ctx context.Context, in UpdateUserInput) (_ *models.User, err error) {
	defer func() { s.observe("updateUser", err) }()

	caller, err := s.requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	patch := store.UserPatch{Name: in.Name, Email: in.Email, Age: in.Age}
	if in.Name != nil {
		if err := validateName(*in.Name); err != nil {
			return nil, err
		}
	}
	if in.Email != nil {
		if err := validateEmail(*in.Email); err != nil {
			return nil, err
		}
	}
	if err := validateAge(in.Age); err != nil {
		return nil, err
	}
	if in.Password != nil {
		if err := auth.ValidatePassword(*in.Password); err != nil {
			return nil, err
		}
		hash, err := auth.HashPassword(*in.Password, s.bcryptCost)
		if err != nil {
			return nil, err
		}
		patch.PasswordHash = &hash
	}
	return s.store.UpdateUser(ctx, caller, patch)
}

// DeleteUser removes the caller together with their posts and comments.
// The cascade publishes no events.
func (s *Service) DeleteUser(ctx context.Context) (_ *models.User, err error) {
	defer func() { s.observe("deleteUser", err) }()

	caller, err := s.requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	if !authz.CanModifyUser(caller, caller) {
		return nil, apperr.Forbiddenf("unable to delete user")
	}
	return s.store.DeleteUser(ctx, caller)
}

// UserPosts lists the posts of author the caller may read: all of them for
// the author, the published ones for everyone else.
func (s *Service) UserPosts(ctx context.Context, authorID string, p store.Page) ([]*models.Post, error) {
	f, err := s.authorPostFilter(ctx, authorID)
	if err != nil {
		return nil, err
	}
	return s.store.Posts(ctx, f, p)
}

func (s *Service) CountUserPosts(ctx context.Context, authorID string) (int, error) {
	f, err := s.authorPostFilter(ctx, authorID)
	if err != nil {
		return 0, err
	}
	return s.store.CountPosts(ctx, f)
}

func (s *Service) authorPostFilter(ctx context.Context, authorID string) (store.PostFilter, error) {
	caller, err := s.Caller(ctx)
	if err != nil {
		return store.PostFilter{}, err
	}
	f := store.PostFilter{AuthorID: authorID}
	if !authz.CanModifyUser(caller, authorID) {
		published := true
		f.Published = &published
	}
	return f, nil
}

func (s *Service) UserComments(ctx context.Context, authorID string, p store.Page) ([]*models.Comment, error) {
	return s.store.Comments(ctx, store.CommentFilter{AuthorID: authorID}, p)
}
