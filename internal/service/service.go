// Package service implements the read and write operations of the blog API.
//
// Every operation resolves the caller from the context, checks the
// ownership and visibility rules, touches the store and, for mutations,
// publishes change notifications once the write has succeeded. Errors are
// apperr values; the GraphQL layer turns them into their public form.
package service

import (
	"context"

	"go.uber.org/zap"

	"blog/internal/auth"
	"blog/internal/metrics"
	"blog/internal/models"
	"blog/internal/pubsub"
	"blog/internal/store"
)

type Service struct {
	store      store.Store
	tokens     *auth.Manager
	bus        *pubsub.Bus
	log        *zap.Logger
	metrics    *metrics.Metrics
	bcryptCost int
}

type Options struct {
	BcryptCost int
	Log        *zap.Logger
	Metrics    *metrics.Metrics
}

func New(st store.Store, tokens *auth.Manager, bus *pubsub.Bus, opts Options) *Service {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = 10
	}
	return &Service{
		store:      st,
		tokens:     tokens,
		bus:        bus,
		log:        opts.Log,
		metrics:    opts.Metrics,
		bcryptCost: opts.BcryptCost,
	}
}

// AuthPayload is returned by createUser and login.
type AuthPayload struct {
	User  *models.User
	Token string
}

// Caller returns the id of the authenticated caller or "" for anonymous
// requests. A credential that does not verify is an error.
func (s *Service) Caller(ctx context.Context) (string, error) {
	return s.tokens.UserID(ctx, false)
}

func (s *Service) requireCaller(ctx context.Context) (string, error) {
	return s.tokens.UserID(ctx, true)
}

func (s *Service) observe(op string, err error) {
	s.metrics.ObserveMutation(op, err)
	if err != nil {
		s.log.Debug("mutation failed", zap.String("operation", op), zap.Error(err))
	}
}

func (s *Service) publishPost(mutation models.MutationType, p *models.Post) {
	n := s.bus.Publish(pubsub.PostTopic, pubsub.Event{Mutation: mutation, Post: p.Clone()})
	s.log.Debug("post event published",
		zap.String("post", p.ID),
		zap.String("mutation", string(mutation)),
		zap.Int("delivered", n))
}

func (s *Service) publishComment(mutation models.MutationType, c *models.Comment) {
	topic := pubsub.CommentTopic(c.PostID)
	n := s.bus.Publish(topic, pubsub.Event{Mutation: mutation, Comment: c.Clone()})
	s.log.Debug("comment event published",
		zap.String("topic", topic),
		zap.String("mutation", string(mutation)),
		zap.Int("delivered", n))
}
