package graph

import (
	"context"

	graphql "github.com/graph-gophers/graphql-go"

	"blog/internal/pubsub"
	"blog/internal/service"
)

type SubscriptionResolver struct {
	svc *service.Service
}

func (r *SubscriptionResolver) Post(ctx context.Context) (<-chan *postPayloadResolver, error) {
	sub, err := r.svc.SubscribePosts(ctx)
	if err != nil {
		return nil, subscriptionError(err)
	}
	return r.posts(ctx, sub), nil
}

func (r *SubscriptionResolver) MyPost(ctx context.Context) (<-chan *postPayloadResolver, error) {
	sub, err := r.svc.SubscribeMyPosts(ctx)
	if err != nil {
		return nil, subscriptionError(err)
	}
	return r.posts(ctx, sub), nil
}

func (r *SubscriptionResolver) Comment(ctx context.Context, args struct{ PostID graphql.ID }) (<-chan *commentPayloadResolver, error) {
	sub, err := r.svc.SubscribeComments(ctx, string(args.PostID))
	if err != nil {
		return nil, subscriptionError(err)
	}
	out := make(chan *commentPayloadResolver)
	go func() {
		defer close(out)
		defer sub.Close()
		for ev := range sub.Events() {
			select {
			case out <- &commentPayloadResolver{svc: r.svc, mutation: ev.Mutation, c: ev.Comment}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (r *SubscriptionResolver) posts(ctx context.Context, sub *pubsub.Subscription) <-chan *postPayloadResolver {
	out := make(chan *postPayloadResolver)
	go func() {
		defer close(out)
		defer sub.Close()
		for ev := range sub.Events() {
			select {
			case out <- &postPayloadResolver{svc: r.svc, mutation: ev.Mutation, p: ev.Post}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
