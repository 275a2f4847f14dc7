package graph

import (
	"context"

	graphql "github.com/graph-gophers/graphql-go"

	"blog/internal/models"
	"blog/internal/service"
)

type userResolver struct {
	svc *service.Service
	u   *models.User
}

func (r *userResolver) ID() graphql.ID { return graphql.ID(r.u.ID) }
func (r *userResolver) Name() string   { return r.u.Name }

func (r *userResolver) Email(ctx context.Context) (*string, error) {
	email, err := r.svc.Email(ctx, r.u)
	if err != nil {
		return nil, fail(err)
	}
	return email, nil
}

func (r *userResolver) Age() *int32 {
	if r.u.Age == nil {
		return nil
	}
	age := int32(*r.u.Age)
	return &age
}

func (r *userResolver) Posts(ctx context.Context, args pageArgs) ([]*postResolver, error) {
	p, err := args.page()
	if err != nil {
		return nil, fail(err)
	}
	posts, err := r.svc.UserPosts(ctx, r.u.ID, p)
	if err != nil {
		return nil, fail(err)
	}
	return wrapPosts(r.svc, posts), nil
}

func (r *userResolver) PostCount(ctx context.Context) (int32, error) {
	n, err := r.svc.CountUserPosts(ctx, r.u.ID)
	if err != nil {
		return 0, fail(err)
	}
	return int32(n), nil
}

func (r *userResolver) Comments(ctx context.Context, args pageArgs) ([]*commentResolver, error) {
	p, err := args.page()
	if err != nil {
		return nil, fail(err)
	}
	comments, err := r.svc.UserComments(ctx, r.u.ID, p)
	if err != nil {
		return nil, fail(err)
	}
	return wrapComments(r.svc, comments), nil
}

func (r *userResolver) CreatedAt() graphql.Time { return graphql.Time{Time: r.u.CreatedAt} }
func (r *userResolver) UpdatedAt() graphql.Time { return graphql.Time{Time: r.u.UpdatedAt} }

type postResolver struct {
	svc *service.Service
	p   *models.Post
}

func wrapPosts(svc *service.Service, posts []*models.Post) []*postResolver {
	out := make([]*postResolver, len(posts))
	for i, p := range posts {
		out[i] = &postResolver{svc: svc, p: p}
	}
	return out
}

func (r *postResolver) ID() graphql.ID  { return graphql.ID(r.p.ID) }
func (r *postResolver) Title() string   { return r.p.Title }
func (r *postResolver) Body() string    { return r.p.Body }
func (r *postResolver) Published() bool { return r.p.Published }

func (r *postResolver) Author(ctx context.Context) (*userResolver, error) {
	u, err := r.svc.User(ctx, r.p.AuthorID)
	if err != nil {
		return nil, fail(err)
	}
	return &userResolver{svc: r.svc, u: u}, nil
}

func (r *postResolver) Comments(ctx context.Context, args pageArgs) ([]*commentResolver, error) {
	p, err := args.page()
	if err != nil {
		return nil, fail(err)
	}
	comments, err := r.svc.PostComments(ctx, r.p.ID, p)
	if err != nil {
		return nil, fail(err)
	}
	return wrapComments(r.svc, comments), nil
}

func (r *postResolver) CommentCount(ctx context.Context) (int32, error) {
	n, err := r.svc.CountPostComments(ctx, r.p.ID)
	if err != nil {
		return 0, fail(err)
	}
	return int32(n), nil
}

func (r *postResolver) CreatedAt() graphql.Time { return graphql.Time{Time: r.p.CreatedAt} }
func (r *postResolver) UpdatedAt() graphql.Time { return graphql.Time{Time: r.p.UpdatedAt} }

type commentResolver struct {
	svc *service.Service
	c   *models.Comment
}

func wrapComments(svc *service.Service, comments []*models.Comment) []*commentResolver {
	out := make([]*commentResolver, len(comments))
	for i, c := range comments {
		out[i] = &commentResolver{svc: svc, c: c}
	}
	return out
}

func (r *commentResolver) ID() graphql.ID { return graphql.ID(r.c.ID) }
func (r *commentResolver) Text() string   { return r.c.Text }

func (r *commentResolver) Author(ctx context.Context) (*userResolver, error) {
	u, err := r.svc.User(ctx, r.c.AuthorID)
	if err != nil {
		return nil, fail(err)
	}
	return &userResolver{svc: r.svc, u: u}, nil
}

func (r *commentResolver) Post(ctx context.Context) (*postResolver, error) {
	p, err := r.svc.ReadablePost(ctx, r.c.PostID)
	if err != nil {
		return nil, fail(err)
	}
	if p == nil {
		return nil, nil
	}
	return &postResolver{svc: r.svc, p: p}, nil
}

func (r *commentResolver) CreatedAt() graphql.Time { return graphql.Time{Time: r.c.CreatedAt} }
func (r *commentResolver) UpdatedAt() graphql.Time { return graphql.Time{Time: r.c.UpdatedAt} }

type authPayloadResolver struct {
	svc *service.Service
	out *service.AuthPayload
}

func (r *authPayloadResolver) Token() string { return r.out.Token }

func (r *authPayloadResolver) User() *userResolver {
	return &userResolver{svc: r.svc, u: r.out.User}
}

type postPayloadResolver struct {
	svc      *service.Service
	mutation models.MutationType
	p        *models.Post
}

func (r *postPayloadResolver) Mutation() string { return string(r.mutation) }

func (r *postPayloadResolver) Data() *postResolver {
	return &postResolver{svc: r.svc, p: r.p}
}

type commentPayloadResolver struct {
	svc      *service.Service
	mutation models.MutationType
	c        *models.Comment
}

func (r *commentPayloadResolver) Mutation() string { return string(r.mutation) }

func (r *commentPayloadResolver) Data() *commentResolver {
	return &commentResolver{svc: r.svc, c: r.c}
}
