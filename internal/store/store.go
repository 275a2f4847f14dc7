// Package store is the persistence facade used by every resolver.
//
// Two implementations share the contract: Memory keeps everything in
// process, SQL runs on database/sql against sqlite or postgres. Lookups of
// unknown ids fail with apperr.NotFound, a duplicate email with
// apperr.ErrEmailTaken. Results come back in insertion order unless the page
// names an ordering field.
package store

import (
	"context"

	"blog/internal/apperr"
	"blog/internal/models"
)

type Store interface {
	Users(ctx context.Context, f UserFilter, p Page) ([]*models.User, error)
	User(ctx context.Context, id string) (*models.User, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) (*models.User, error)
	UpdateUser(ctx context.Context, id string, patch UserPatch) (*models.User, error)
	// DeleteUser removes the user with their posts, their comments and every
	// comment on their posts as one unit.
	DeleteUser(ctx context.Context, id string) (*models.User, error)

	Posts(ctx context.Context, f PostFilter, p Page) ([]*models.Post, error)
	CountPosts(ctx context.Context, f PostFilter) (int, error)
	Post(ctx context.Context, id string) (*models.Post, error)
	CreatePost(ctx context.Context, p *models.Post) (*models.Post, error)
	UpdatePost(ctx context.Context, id string, patch PostPatch) (*models.Post, error)
	// DeletePost removes the post and its comments.
	DeletePost(ctx context.Context, id string) (*models.Post, error)

	Comments(ctx context.Context, f CommentFilter, p Page) ([]*models.Comment, error)
	CountComments(ctx context.Context, f CommentFilter) (int, error)
	Comment(ctx context.Context, id string) (*models.Comment, error)
	CreateComment(ctx context.Context, c *models.Comment) (*models.Comment, error)
	UpdateComment(ctx context.Context, id string, patch CommentPatch) (*models.Comment, error)
	DeleteComment(ctx context.Context, id string) (*models.Comment, error)

	Close() error
}

type UserFilter struct {
	// Query matches a case-insensitive substring of the name.
	Query string
}

type PostFilter struct {
	// Query matches a case-insensitive substring of the title or the body.
	Query     string
	AuthorID  string
	Published *bool
}

type CommentFilter struct {
	AuthorID string
	PostID   string
}

type UserPatch struct {
	Name         *string
	Email        *string
	Age          *int
	PasswordHash *string
}

type PostPatch struct {
	Title     *string
	Body      *string
	Published *bool
}

func (p PostPatch) Empty() bool {
	return p.Title == nil && p.Body == nil && p.Published == nil
}

type CommentPatch struct {
	Text *string
}

// OrderBy sorts by a named field. Equal keys keep insertion order.
type OrderBy struct {
	Field string
	Desc  bool
}

// Page selects a window of a result list. After is applied first, then
// Skip, then First.
type Page struct {
	First   *int
	Skip    int
	After   string
	OrderBy *OrderBy
}

func (p Page) Validate() error {
	if p.First != nil && *p.First < 0 {
		return apperr.Validationf("first must not be negative")
	}
	if p.Skip < 0 {
		return apperr.Validationf("skip must not be negative")
	}
	return nil
}

// Orderable fields per entity kind, keyed by their schema name.
var (
	userOrderFields    = map[string]string{"createdAt": "created_at", "updatedAt": "updated_at", "name": "name", "age": "age"}
	postOrderFields    = map[string]string{"createdAt": "created_at", "updatedAt": "updated_at", "title": "title", "body": "body", "published": "published"}
	commentOrderFields = map[string]string{"createdAt": "created_at", "updatedAt": "updated_at", "text": "text"}
)

func orderColumn(fields map[string]string, o *OrderBy) (string, error) {
	if o == nil {
		return "", nil
	}
	col, ok := fields[o.Field]
	if !ok {
		return "", apperr.Validationf("cannot order by %q", o.Field)
	}
	return col, nil
}

// paginate applies the cursor, offset and limit of p to an ordered list.
// An unknown cursor yields an empty page.
func paginate[T any](items []T, id func(T) string, p Page) []T {
	if p.After != "" {
		start := -1
		for i, it := range items {
			if id(it) == p.After {
				start = i + 1
				break
			}
		}
		if start < 0 {
			return nil
		}
		items = items[start:]
	}
	if p.Skip > 0 {
		if p.Skip >= len(items) {
			return nil
		}
		items = items[p.Skip:]
	}
	if p.First != nil && *p.First < len(items) {
		items = items[:*p.First]
	}
	return items
}
