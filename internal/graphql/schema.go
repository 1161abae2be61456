package graphql

import (
	"context"
	"errors"
	"time"

	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/clients"
	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/domain"
	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/service"
	gql "github.com/graphql-go/graphql"
)

type ReviewAPI interface {
	Reviews(ctx context.Context, bookID string, includeDeleted bool) ([]domain.Review, error)
	Review(ctx context.Context, id string, includeDeleted bool) (*domain.Review, error)
	CreateReview(ctx context.Context, actor, bookID string, rating int, comment string) (*domain.Review, error)
	UpdateReview(ctx context.Context, actor, id string, patch domain.ReviewPatch) (*domain.Review, error)
	DeleteReview(ctx context.Context, actor, id string) (*domain.Review, error)
}

// Resolver wires the schema to the review service and the sibling lookups.
type Resolver struct {
	reviews ReviewAPI
	users   clients.UserLookup
	books   clients.BookLookup
}

func NewResolver(reviews ReviewAPI, users clients.UserLookup, books clients.BookLookup) *Resolver {
	return &Resolver{reviews: reviews, users: users, books: books}
}

// reviewView is what the Review type resolves against.
type reviewView struct {
	ID         string  `json:"id"`
	UserID     string  `json:"userId"`
	BookID     string  `json:"bookId"`
	Rating     int     `json:"rating"`
	Comment    string  `json:"comment"`
	CreatedAt  string  `json:"createdAt"`
	ModifiedAt string  `json:"modifiedAt"`
	DeletedAt  *string `json:"deletedAt"`
	CreatedBy  *string `json:"createdBy"`
	ModifiedBy *string `json:"modifiedBy"`
	DeletedBy  *string `json:"deletedBy"`
}

func toView(rv *domain.Review) reviewView {
	v := reviewView{
		ID:         rv.ID,
		UserID:     rv.UserID,
		BookID:     rv.BookID,
		Rating:     rv.Rating,
		Comment:    rv.Comment,
		CreatedAt:  formatTime(rv.CreatedAt),
		ModifiedAt: formatTime(rv.ModifiedAt),
		CreatedBy:  rv.CreatedBy,
		ModifiedBy: rv.ModifiedBy,
		DeletedBy:  rv.DeletedBy,
	}
	if rv.DeletedAt != nil {
		s := formatTime(*rv.DeletedAt)
		v.DeletedAt = &s
	}
	return v
}

func formatTime(t time.Time) string {
	return t.UTC().Format(domain.EventTimeLayout)
}

// Error codes surfaced in the "extensions" of a GraphQL error.
const (
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeForbidden       = "FORBIDDEN"
	CodeNotFound        = "NOT_FOUND"
	CodeBadInput        = "BAD_USER_INPUT"
	CodeInternal        = "INTERNAL"
)

type resolverError struct {
	code string
	msg  string
	err  error
}

func (e *resolverError) Error() string {
	if e.msg != "" {
		return e.msg
	}
	return e.err.Error()
}

func (e *resolverError) Unwrap() error { return e.err }

func (e *resolverError) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": e.code}
}

const internalErrorMessage = "internal server error"

func classify(err error) error {
	code := CodeInternal
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		code = CodeUnauthenticated
	case errors.Is(err, service.ErrForbidden):
		code = CodeForbidden
	case errors.Is(err, service.ErrReviewNotFound):
		code = CodeNotFound
	case errors.Is(err, service.ErrInvalidRating):
		code = CodeBadInput
	case errors.Is(err, service.ErrPersistence):
		return &resolverError{code: code, msg: service.ErrPersistence.Error(), err: err}
	default:
		// 내부 오류는 원인을 노출하지 않음
		return &resolverError{code: code, msg: internalErrorMessage, err: err}
	}
	return &resolverError{code: code, err: err}
}

func optionalString(get func(reviewView) *string) gql.FieldResolveFn {
	return func(p gql.ResolveParams) (interface{}, error) {
		v, ok := p.Source.(reviewView)
		if !ok {
			return nil, nil
		}
		if s := get(v); s != nil {
			return *s, nil
		}
		return nil, nil
	}
}

// Schema builds the executable schema.
func (r *Resolver) Schema() (gql.Schema, error) {
	userType := gql.NewObject(gql.ObjectConfig{
		Name: "User",
		Fields: gql.Fields{
			"id":       &gql.Field{Type: gql.NewNonNull(gql.String)},
			"username": &gql.Field{Type: gql.NewNonNull(gql.String)},
			"email":    &gql.Field{Type: gql.NewNonNull(gql.String)},
		},
	})

	bookType := gql.NewObject(gql.ObjectConfig{
		Name: "Book",
		Fields: gql.Fields{
			"id":     &gql.Field{Type: gql.NewNonNull(gql.String)},
			"title":  &gql.Field{Type: gql.NewNonNull(gql.String)},
			"author": &gql.Field{Type: gql.NewNonNull(gql.String)},
		},
	})

	reviewType := gql.NewObject(gql.ObjectConfig{
		Name: "Review",
		Fields: gql.Fields{
			"id":         &gql.Field{Type: gql.NewNonNull(gql.String)},
			"userId":     &gql.Field{Type: gql.NewNonNull(gql.String)},
			"bookId":     &gql.Field{Type: gql.NewNonNull(gql.String)},
			"rating":     &gql.Field{Type: gql.NewNonNull(gql.Int)},
			"comment":    &gql.Field{Type: gql.NewNonNull(gql.String)},
			"createdAt":  &gql.Field{Type: gql.NewNonNull(gql.String)},
			"modifiedAt": &gql.Field{Type: gql.NewNonNull(gql.String)},
			"deletedAt": &gql.Field{
				Type:    gql.String,
				Resolve: optionalString(func(v reviewView) *string { return v.DeletedAt }),
			},
			"createdBy": &gql.Field{
				Type:    gql.String,
				Resolve: optionalString(func(v reviewView) *string { return v.CreatedBy }),
			},
			"modifiedBy": &gql.Field{
				Type:    gql.String,
				Resolve: optionalString(func(v reviewView) *string { return v.ModifiedBy }),
			},
			"deletedBy": &gql.Field{
				Type:    gql.String,
				Resolve: optionalString(func(v reviewView) *string { return v.DeletedBy }),
			},
			"user": &gql.Field{
				Type:    userType,
				Resolve: r.resolveUser,
			},
			"book": &gql.Field{
				Type:    bookType,
				Resolve: r.resolveBook,
			},
		},
	})

	includeDeleted := &gql.ArgumentConfig{Type: gql.Boolean, DefaultValue: false}

	query := gql.NewObject(gql.ObjectConfig{
		Name: "Query",
		Fields: gql.Fields{
			"reviews": &gql.Field{
				Type: gql.NewNonNull(gql.NewList(gql.NewNonNull(reviewType))),
				Args: gql.FieldConfigArgument{
					"bookId":         &gql.ArgumentConfig{Type: gql.NewNonNull(gql.String)},
					"includeDeleted": includeDeleted,
				},
				Resolve: r.listReviews,
			},
			"review": &gql.Field{
				Type: reviewType,
				Args: gql.FieldConfigArgument{
					"id":             &gql.ArgumentConfig{Type: gql.NewNonNull(gql.String)},
					"includeDeleted": includeDeleted,
				},
				Resolve: r.getReview,
			},
		},
	})

	mutation := gql.NewObject(gql.ObjectConfig{
		Name: "Mutation",
		Fields: gql.Fields{
			"createReview": &gql.Field{
				Type: gql.NewNonNull(reviewType),
				Args: gql.FieldConfigArgument{
					"bookId":  &gql.ArgumentConfig{Type: gql.NewNonNull(gql.String)},
					"rating":  &gql.ArgumentConfig{Type: gql.NewNonNull(gql.Int)},
					"comment": &gql.ArgumentConfig{Type: gql.NewNonNull(gql.String)},
				},
				Resolve: r.createReview,
			},
			"updateReview": &gql.Field{
				Type: gql.NewNonNull(reviewType),
				Args: gql.FieldConfigArgument{
					"id":      &gql.ArgumentConfig{Type: gql.NewNonNull(gql.String)},
					"rating":  &gql.ArgumentConfig{Type: gql.Int},
					"comment": &gql.ArgumentConfig{Type: gql.String},
				},
				Resolve: r.updateReview,
			},
			"deleteReview": &gql.Field{
				Type: gql.NewNonNull(reviewType),
				Args: gql.FieldConfigArgument{
					"id": &gql.ArgumentConfig{Type: gql.NewNonNull(gql.String)},
				},
				Resolve: r.deleteReview,
			},
		},
	})

	return gql.NewSchema(gql.SchemaConfig{Query: query, Mutation: mutation})
}

func (r *Resolver) listReviews(p gql.ResolveParams) (interface{}, error) {
	bookID, _ := p.Args["bookId"].(string)
	incl, _ := p.Args["includeDeleted"].(bool)

	reviews, err := r.reviews.Reviews(p.Context, bookID, incl)
	if err != nil {
		return nil, classify(err)
	}
	out := make([]reviewView, 0, len(reviews))
	for i := range reviews {
		out = append(out, toView(&reviews[i]))
	}
	return out, nil
}

func (r *Resolver) getReview(p gql.ResolveParams) (interface{}, error) {
	id, _ := p.Args["id"].(string)
	incl, _ := p.Args["includeDeleted"].(bool)

	rv, err := r.reviews.Review(p.Context, id, incl)
	if err != nil {
		if errors.Is(err, service.ErrReviewNotFound) {
			return nil, nil
		}
		return nil, classify(err)
	}
	return toView(rv), nil
}

func (r *Resolver) createReview(p gql.ResolveParams) (interface{}, error) {
	bookID, _ := p.Args["bookId"].(string)
	rating, _ := p.Args["rating"].(int)
	comment, _ := p.Args["comment"].(string)

	rv, err := r.reviews.CreateReview(p.Context, ViewerFrom(p.Context).UserID, bookID, rating, comment)
	if err != nil {
		return nil, classify(err)
	}
	return toView(rv), nil
}

func (r *Resolver) updateReview(p gql.ResolveParams) (interface{}, error) {
	id, _ := p.Args["id"].(string)

	var patch domain.ReviewPatch
	if v, ok := p.Args["rating"].(int); ok {
		patch.Rating = &v
	}
	if v, ok := p.Args["comment"].(string); ok {
		patch.Comment = &v
	}

	rv, err := r.reviews.UpdateReview(p.Context, ViewerFrom(p.Context).UserID, id, patch)
	if err != nil {
		return nil, classify(err)
	}
	return toView(rv), nil
}

func (r *Resolver) deleteReview(p gql.ResolveParams) (interface{}, error) {
	id, _ := p.Args["id"].(string)

	rv, err := r.reviews.DeleteReview(p.Context, ViewerFrom(p.Context).UserID, id)
	if err != nil {
		return nil, classify(err)
	}
	return toView(rv), nil
}

func (r *Resolver) resolveUser(p gql.ResolveParams) (interface{}, error) {
	v, ok := p.Source.(reviewView)
	if !ok {
		return nil, nil
	}
	u, err := r.users.GetUser(p.Context, v.UserID, ViewerFrom(p.Context).Token)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *Resolver) resolveBook(p gql.ResolveParams) (interface{}, error) {
	v, ok := p.Source.(reviewView)
	if !ok {
		return nil, nil
	}
	b, err := r.books.GetBook(p.Context, v.BookID, ViewerFrom(p.Context).Token)
	if err != nil {
		return nil, err
	}
	return b, nil
}
