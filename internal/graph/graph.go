// Package graph binds the GraphQL schema to the service layer.
package graph

import (
	"context"
	_ "embed"
	"strings"

	graphql "github.com/graph-gophers/graphql-go"
	gqlerrors "github.com/graph-gophers/graphql-go/errors"
	"go.uber.org/zap"

	"blog/internal/apperr"
	"blog/internal/service"
	"blog/internal/store"
)

//go:embed schema.graphql
var schemaSDL string

const maxDepth = 12

// Resolver is the schema root. Queries, mutations and subscriptions get
// separate resolvers because post is both a query and a subscription.
type Resolver struct {
	svc *service.Service
}

func (r *Resolver) Query() *QueryResolver { return &QueryResolver{svc: r.svc} }

func (r *Resolver) Mutation() *MutationResolver { return &MutationResolver{svc: r.svc} }

func (r *Resolver) Subscription() *SubscriptionResolver { return &SubscriptionResolver{svc: r.svc} }

// NewSchema parses the embedded SDL against svc.
func NewSchema(svc *service.Service, log *zap.Logger) (*graphql.Schema, error) {
	if log == nil {
		log = zap.NewNop()
	}
	return graphql.ParseSchema(schemaSDL, &Resolver{svc: svc},
		graphql.UseStringDescriptions(),
		graphql.MaxDepth(maxDepth),
		graphql.Logger(panicLogger{log}),
	)
}

type panicLogger struct {
	log *zap.Logger
}

func (l panicLogger) LogPanic(ctx context.Context, value interface{}) {
	l.log.Error("panic while resolving", zap.Any("value", value), zap.Stack("stack"))
}

// fail converts a service error into what the API shows.
func fail(err error) error {
	return apperr.Public(err)
}

// subscriptionError is fail for subscription roots, which only carry
// extensions when handed a ready QueryError.
func subscriptionError(err error) error {
	pub := apperr.Public(err)
	qe := &gqlerrors.QueryError{Message: pub.Error(), Err: pub, ResolverError: pub}
	if e, ok := pub.(interface{ Extensions() map[string]interface{} }); ok {
		qe.Extensions = e.Extensions()
	}
	return qe
}

type pageArgs struct {
	First   *int32
	Skip    *int32
	After   *graphql.ID
	OrderBy *string
}

type searchArgs struct {
	Query   *string
	First   *int32
	Skip    *int32
	After   *graphql.ID
	OrderBy *string
}

func (a searchArgs) query() string {
	if a.Query == nil {
		return ""
	}
	return *a.Query
}

func (a searchArgs) page() (store.Page, error) {
	return pageArgs{First: a.First, Skip: a.Skip, After: a.After, OrderBy: a.OrderBy}.page()
}

func (a pageArgs) page() (store.Page, error) {
	var p store.Page
	if a.First != nil {
		n := int(*a.First)
		p.First = &n
	}
	if a.Skip != nil {
		p.Skip = int(*a.Skip)
	}
	if a.After != nil {
		p.After = string(*a.After)
	}
	if a.OrderBy != nil {
		o, err := parseOrderBy(*a.OrderBy)
		if err != nil {
			return p, err
		}
		p.OrderBy = o
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

// parseOrderBy reads the field_ASC / field_DESC enum values.
func parseOrderBy(v string) (*store.OrderBy, error) {
	i := strings.LastIndexByte(v, '_')
	if i <= 0 {
		return nil, apperr.Validationf("invalid order %q", v)
	}
	switch v[i+1:] {
	case "ASC":
		return &store.OrderBy{Field: v[:i]}, nil
	case "DESC":
		return &store.OrderBy{Field: v[:i], Desc: true}, nil
	}
	return nil, apperr.Validationf("invalid order %q", v)
}
