package graph

import (
	"context"

	graphql "github.com/graph-gophers/graphql-go"

	"blog/internal/service"
)

type QueryResolver struct {
	svc *service.Service
}

func (r *QueryResolver) Users(ctx context.Context, args searchArgs) ([]*userResolver, error) {
	p, err := args.page()
	if err != nil {
		return nil, fail(err)
	}
	users, err := r.svc.Users(ctx, args.query(), p)
	if err != nil {
		return nil, fail(err)
	}
	out := make([]*userResolver, len(users))
	for i, u := range users {
		out[i] = &userResolver{svc: r.svc, u: u}
	}
	return out, nil
}

func (r *QueryResolver) Posts(ctx context.Context, args searchArgs) ([]*postResolver, error) {
	p, err := args.page()
	if err != nil {
		return nil, fail(err)
	}
	posts, err := r.svc.Posts(ctx, args.query(), p)
	if err != nil {
		return nil, fail(err)
	}
	return wrapPosts(r.svc, posts), nil
}

func (r *QueryResolver) MyPosts(ctx context.Context, args searchArgs) ([]*postResolver, error) {
	p, err := args.page()
	if err != nil {
		return nil, fail(err)
	}
	posts, err := r.svc.MyPosts(ctx, args.query(), p)
	if err != nil {
		return nil, fail(err)
	}
	return wrapPosts(r.svc, posts), nil
}

func (r *QueryResolver) Post(ctx context.Context, args struct{ ID graphql.ID }) (*postResolver, error) {
	p, err := r.svc.Post(ctx, string(args.ID))
	if err != nil {
		return nil, fail(err)
	}
	return &postResolver{svc: r.svc, p: p}, nil
}

func (r *QueryResolver) Comments(ctx context.Context, args pageArgs) ([]*commentResolver, error) {
	p, err := args.page()
	if err != nil {
		return nil, fail(err)
	}
	comments, err := r.svc.Comments(ctx, p)
	if err != nil {
		return nil, fail(err)
	}
	return wrapComments(r.svc, comments), nil
}

func (r *QueryResolver) Me(ctx context.Context) (*userResolver, error) {
	u, err := r.svc.Me(ctx)
	if err != nil {
		return nil, fail(err)
	}
	return &userResolver{svc: r.svc, u: u}, nil
}
