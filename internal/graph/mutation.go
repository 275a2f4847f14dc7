package graph

import (
	"context"

	graphql "github.com/graph-gophers/graphql-go"

	"blog/internal/service"
)

type MutationResolver struct {
	svc *service.Service
}

func optionalInt(v *int32) *int {
	if v == nil {
		return nil
	}
	n := int(*v)
	return &n
}

type createUserArgs struct {
	Data struct {
		Name     string
		Email    string
		Password string
		Age      *int32
	}
}

func (r *MutationResolver) CreateUser(ctx context.Context, args createUserArgs) (*authPayloadResolver, error) {
	out, err := r.svc.CreateUser(ctx, service.CreateUserInput{
		Name:     args.Data.Name,
		Email:    args.Data.Email,
		Password: args.Data.Password,
		Age:      optionalInt(args.Data.Age),
	})
	if err != nil {
		return nil, fail(err)
	}
	return &authPayloadResolver{svc: r.svc, out: out}, nil
}

type loginArgs struct {
	Data struct {
		Email    string
		Password string
	}
}

func (r *MutationResolver) Login(ctx context.Context, args loginArgs) (*authPayloadResolver, error) {
	out, err := r.svc.Login(ctx, service.LoginInput{Email: args.Data.Email, Password: args.Data.Password})
	if err != nil {
		return nil, fail(err)
	}
	return &authPayloadResolver{svc: r.svc, out: out}, nil
}

type updateUserArgs struct {
	Data struct {
		Name     *string
		Email    *string
		Password *string
		Age      *int32
	}
}

func (r *MutationResolver) UpdateUser(ctx context.Context, args updateUserArgs) (*userResolver, error) {
	u, err := r.svc.UpdateUser(ctx, service.UpdateUserInput{
		Name:     args.Data.Name,
		Email:    args.Data.Email,
		Password: args.Data.Password,
		Age:      optionalInt(args.Data.Age),
	})
	if err != nil {
		return nil, fail(err)
	}
	return &userResolver{svc: r.svc, u: u}, nil
}

func (r *MutationResolver) DeleteUser(ctx context.Context) (*userResolver, error) {
	u, err := r.svc.DeleteUser(ctx)
	if err != nil {
		return nil, fail(err)
	}
	return &userResolver{svc: r.svc, u: u}, nil
}

type createPostArgs struct {
	Data struct {
		Title     string
		Body      string
		Published bool
	}
}

func (r *MutationResolver) CreatePost(ctx context.Context, args createPostArgs) (*postResolver, error) {
	p, err := r.svc.CreatePost(ctx, service.CreatePostInput{
		Title:     args.Data.Title,
		Body:      args.Data.Body,
		Published: args.Data.Published,
	})
	if err != nil {
		return nil, fail(err)
	}
	return &postResolver{svc: r.svc, p: p}, nil
}

type updatePostArgs struct {
	ID   graphql.ID
	Data struct {
		Title     *string
		Body      *string
		Published *bool
	}
}

func (r *MutationResolver) UpdatePost(ctx context.Context, args updatePostArgs) (*postResolver, error) {
	p, err := r.svc.UpdatePost(ctx, string(args.ID), service.UpdatePostInput{
		Title:     args.Data.Title,
		Body:      args.Data.Body,
		Published: args.Data.Published,
	})
	if err != nil {
		return nil, fail(err)
	}
	return &postResolver{svc: r.svc, p: p}, nil
}

func (r *MutationResolver) DeletePost(ctx context.Context, args struct{ ID graphql.ID }) (*postResolver, error) {
	p, err := r.svc.DeletePost(ctx, string(args.ID))
	if err != nil {
		return nil, fail(err)
	}
	return &postResolver{svc: r.svc, p: p}, nil
}

type createCommentArgs struct {
	Data struct {
		Text string
		Post graphql.ID
	}
}

func (r *MutationResolver) CreateComment(ctx context.Context, args createCommentArgs) (*commentResolver, error) {
	c, err := r.svc.CreateComment(ctx, service.CreateCommentInput{
		Text:   args.Data.Text,
		PostID: string(args.Data.Post),
	})
	if err != nil {
		return nil, fail(err)
	}
	return &commentResolver{svc: r.svc, c: c}, nil
}

type updateCommentArgs struct {
	ID   graphql.ID
	Data struct {
		Text *string
	}
}

func (r *MutationResolver) UpdateComment(ctx context.Context, args updateCommentArgs) (*commentResolver, error) {
	c, err := r.svc.UpdateComment(ctx, string(args.ID), service.UpdateCommentInput{Text: args.Data.Text})
	if err != nil {
		return nil, fail(err)
	}
	return &commentResolver{svc: r.svc, c: c}, nil
}

func (r *MutationResolver) DeleteComment(ctx context.Context, args struct{ ID graphql.ID }) (*commentResolver, error) {
	c, err := r.svc.DeleteComment(ctx, string(args.ID))
	if err != nil {
		return nil, fail(err)
	}
	return &commentResolver{svc: r.svc, c: c}, nil
}
