package service

import (
	"context"

	"blog/internal/pubsub"
)

// SubscribePosts streams every notification about published posts until ctx
// is done.
func (s *Service) SubscribePosts(ctx context.Context) (*pubsub.Subscription, error) {
	if _, err := s.Caller(ctx); err != nil {
		return nil, err
	}
	return s.bus.Subscribe(ctx, pubsub.PostTopic, nil), nil
}

// SubscribeMyPosts streams the post notifications about the caller's posts.
func (s *Service) SubscribeMyPosts(ctx context.Context) (*pubsub.Subscription, error) {
	caller, err := s.requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	return s.bus.Subscribe(ctx, pubsub.PostTopic, func(ev pubsub.Event) bool {
		return ev.Post != nil && ev.Post.AuthorID == caller
	}), nil
}

// SubscribeComments streams the comment notifications of one post. The post
// must exist and be published when the subscription starts.
func (s *Service) SubscribeComments(ctx context.Context, postID string) (*pubsub.Subscription, error) {
	if _, err := s.Caller(ctx); err != nil {
		return nil, err
	}
	if _, err := s.publishedPost(ctx, postID); err != nil {
		return nil, err
	}
	return s.bus.Subscribe(ctx, pubsub.CommentTopic(postID), nil), nil
}
