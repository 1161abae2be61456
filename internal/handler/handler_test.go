package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/domain"
	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/events"
	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/service"
	"github.com/cloud-wave-best-zizon/bookstore-platform/pkg/auth"
	"github.com/cloud-wave-best-zizon/bookstore-platform/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var issuer = auth.NewIssuer("handler-secret", time.Hour)

func bearer(t *testing.T, userID string) string {
	t.Helper()
	tok, err := issuer.Issue(userID)
	require.NoError(t, err)
	return "Bearer " + tok
}

func do(r http.Handler, method, path, authz string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"]
}

// --- orders

type fakeOrderAPI struct {
	result    *service.PlacementResult
	err       error
	gotInput  service.PlaceOrderInput
	actionErr error
}

func (f *fakeOrderAPI) CreateOrder(_ context.Context, in service.PlaceOrderInput) (*service.PlacementResult, error) {
	f.gotInput = in
	return f.result, f.err
}

func (f *fakeOrderAPI) GetOrder(_ context.Context, id, actor string) (*domain.Order, error) {
	if f.actionErr != nil {
		return nil, f.actionErr
	}
	return &domain.Order{ID: id, UserID: actor}, nil
}

func (f *fakeOrderAPI) ListOrders(context.Context, string) ([]domain.Order, error) {
	return []domain.Order{}, nil
}

func (f *fakeOrderAPI) UpdateOrder(_ context.Context, id, actor string, _ domain.UpdateOrderRequest) (*domain.Order, error) {
	if f.actionErr != nil {
		return nil, f.actionErr
	}
	return &domain.Order{ID: id, UserID: actor}, nil
}

func (f *fakeOrderAPI) DeleteOrder(context.Context, string, string) error {
	return f.actionErr
}

func orderRouter(api OrderAPI) *gin.Engine {
	r := gin.New()
	NewOrderHandler(api, zap.NewNop()).Routes(r, middleware.JWTAuth(issuer))
	return r
}

func TestCreateOrder_ReturnsEnrichedEvent(t *testing.T) {
	ev := domain.EnrichedOrderEvent{
		ID: "o1", UserID: "u1", BookID: "b1", Quantity: 2,
		CreatedAt: "2026-10-17T09:15:30.123Z",
		User:      domain.UserSnapshot{Username: "alice", Email: "a@x.com"},
		Book:      domain.BookSnapshot{Title: "Dune", Author: "Herbert"},
	}
	api := &fakeOrderAPI{result: &service.PlacementResult{Event: ev, Stage: domain.StagePublished}}
	authz := bearer(t, "u1")

	w := do(orderRouter(api), http.MethodPost, "/orders", authz, gin.H{"bookId": "b1", "quantity": 2})

	require.Equal(t, http.StatusCreated, w.Code)
	var got domain.EnrichedOrderEvent
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, ev, got)

	assert.Equal(t, "u1", api.gotInput.UserID)
	assert.Equal(t, "b1", api.gotInput.BookID)
	assert.Equal(t, authz[len("Bearer "):], api.gotInput.Token)
}

func TestCreateOrder_DegradedStillCreated(t *testing.T) {
	ev := domain.EnrichedOrderEvent{ID: "o1", UserID: "u1", BookID: "b1", Quantity: 1}
	api := &fakeOrderAPI{result: &service.PlacementResult{
		Event:      ev,
		Stage:      domain.StageEnriched,
		PublishErr: &service.PublishError{OrderID: "o1", Err: errors.New("broker down")},
	}}

	w := do(orderRouter(api), http.MethodPost, "/orders", bearer(t, "u1"), gin.H{"bookId": "b1", "quantity": 1})

	require.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"id":"o1","userId":"u1","bookId":"b1","quantity":1,"createdAt":"",
		"user":{"username":"","email":""},"book":{"title":"","author":""}}`, w.Body.String())
}

func TestCreateOrder_Errors(t *testing.T) {
	tests := []struct {
		name   string
		authz  bool
		body   any
		svcErr error
		want   int
	}{
		{"no token", false, gin.H{"bookId": "b1", "quantity": 1}, nil, http.StatusUnauthorized},
		{"missing book id", true, gin.H{"quantity": 1}, nil, http.StatusBadRequest},
		{"zero quantity", true, gin.H{"bookId": "b1", "quantity": 0}, nil, http.StatusBadRequest},
		{"quantity beyond column range", true, gin.H{"bookId": "b1", "quantity": int64(1) << 31}, nil, http.StatusBadRequest},
		{"persistence", true, gin.H{"bookId": "b1", "quantity": 1}, service.ErrPersistence, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeOrderAPI{err: tt.svcErr}
			authz := ""
			if tt.authz {
				authz = bearer(t, "u1")
			}
			w := do(orderRouter(api), http.MethodPost, "/orders", authz, tt.body)
			assert.Equal(t, tt.want, w.Code)
			assert.NotEmpty(t, errorBody(t, w))
		})
	}
}

func TestOrderOwnerRoutes(t *testing.T) {
	q := 3
	tests := []struct {
		name   string
		method string
		body   any
		err    error
		want   int
	}{
		{"get ok", http.MethodGet, nil, nil, http.StatusOK},
		{"get not found", http.MethodGet, nil, service.ErrOrderNotFound, http.StatusNotFound},
		{"update forbidden", http.MethodPut, domain.UpdateOrderRequest{Quantity: &q}, service.ErrForbidden, http.StatusForbidden},
		{"update ok", http.MethodPut, domain.UpdateOrderRequest{Quantity: &q}, nil, http.StatusOK},
		{"delete forbidden", http.MethodDelete, nil, service.ErrForbidden, http.StatusForbidden},
		{"delete ok", http.MethodDelete, nil, nil, http.StatusNoContent},
		{"delete store failure", http.MethodDelete, nil, errors.New("db gone"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(orderRouter(&fakeOrderAPI{actionErr: tt.err}), tt.method, "/orders/o1", bearer(t, "u1"), tt.body)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

// --- auth

type fakeAuthAPI struct {
	registerErr error
	loginErr    error
	user        *domain.User
}

func (f *fakeAuthAPI) Register(_ context.Context, req domain.RegisterRequest) (*domain.UserProfile, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return &domain.UserProfile{ID: "u1", Username: req.Username, Email: req.Email}, nil
}

func (f *fakeAuthAPI) Login(context.Context, string, string) (string, error) {
	if f.loginErr != nil {
		return "", f.loginErr
	}
	return "signed", nil
}

func (f *fakeAuthAPI) GetUser(_ context.Context, id string) (*domain.User, error) {
	if f.user == nil || f.user.ID != id {
		return nil, service.ErrUserNotFound
	}
	return f.user, nil
}

func authRouter(api AuthAPI) *gin.Engine {
	r := gin.New()
	NewAuthHandler(api, zap.NewNop()).Routes(r, middleware.JWTAuth(issuer))
	return r
}

func TestRegister(t *testing.T) {
	w := do(authRouter(&fakeAuthAPI{}), http.MethodPost, "/auth/register", "",
		gin.H{"email": "a@x.com", "password": "s3cret!", "username": "alice"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"id":"u1","username":"alice","email":"a@x.com"}`, w.Body.String())

	w = do(authRouter(&fakeAuthAPI{registerErr: service.ErrEmailExists}), http.MethodPost, "/auth/register", "",
		gin.H{"email": "a@x.com", "password": "s3cret!", "username": "alice"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Email already exists", errorBody(t, w))

	w = do(authRouter(&fakeAuthAPI{}), http.MethodPost, "/auth/register", "", gin.H{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin(t *testing.T) {
	creds := gin.H{"email": "a@x.com", "password": "s3cret!"}

	w := do(authRouter(&fakeAuthAPI{}), http.MethodPost, "/auth/login", "", creds)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"token":"signed"}`, w.Body.String())

	w = do(authRouter(&fakeAuthAPI{loginErr: service.ErrInvalidCredentials}), http.MethodPost, "/auth/login", "", creds)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(authRouter(&fakeAuthAPI{loginErr: service.ErrTooManyAttempts}), http.MethodPost, "/auth/login", "", creds)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestUserLookupRoutes(t *testing.T) {
	api := &fakeAuthAPI{user: &domain.User{ID: "u1", Email: "a@x.com", Username: "alice", PasswordHash: "hash"}}
	r := authRouter(api)

	w := do(r, http.MethodGet, "/auth/users/u1", bearer(t, "u9"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"u1","username":"alice","email":"a@x.com"}`, w.Body.String())

	w = do(r, http.MethodGet, "/auth/users/u2", bearer(t, "u9"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodGet, "/auth/users/u1", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodGet, "/auth/me", bearer(t, "u1"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "hash")
	assert.Contains(t, w.Body.String(), `"createdAt"`)
}

// --- books

type fakeBookAPI struct {
	lastQuery domain.BookQuery
	err       error
}

func (f *fakeBookAPI) CreateBook(_ context.Context, req domain.CreateBookRequest, actor string) (*domain.Book, error) {
	return &domain.Book{ID: "b1", Title: req.Title, Author: req.Author, CreatedBy: &actor}, f.err
}

func (f *fakeBookAPI) GetBook(_ context.Context, id, _ string) (*domain.BookDetail, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.BookDetail{Book: domain.Book{ID: id, Title: "Dune", Author: "Herbert"}}, nil
}

func (f *fakeBookAPI) ListBooks(_ context.Context, q domain.BookQuery) (*domain.BookPage, error) {
	f.lastQuery = q
	return &domain.BookPage{Data: []domain.Book{}, Meta: domain.PageMeta{Page: 1, Limit: 10}}, nil
}

func (f *fakeBookAPI) UpdateBook(_ context.Context, id string, _ domain.UpdateBookRequest, _ string) (*domain.Book, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Book{ID: id}, nil
}

func (f *fakeBookAPI) DeleteBook(context.Context, string, string) error { return f.err }

func bookRouter(api BookAPI) *gin.Engine {
	r := gin.New()
	NewBookHandler(api, zap.NewNop()).Routes(r, middleware.JWTAuth(issuer))
	return r
}

func TestListBooks_PublicWithQuery(t *testing.T) {
	api := &fakeBookAPI{}
	w := do(bookRouter(api), http.MethodGet, "/books?page=2&limit=abc&search=dune", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.BookQuery{Page: 2, Limit: 0, Search: "dune"}, api.lastQuery)
	assert.Contains(t, w.Body.String(), `"totalPages"`)
}

func TestBookRoutes(t *testing.T) {
	r := bookRouter(&fakeBookAPI{})
	w := do(r, http.MethodGet, "/books/b1", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodGet, "/books/b1", bearer(t, "u1"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"title":"Dune"`)

	w = do(r, http.MethodPost, "/books", bearer(t, "u1"), gin.H{"title": "Dune"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/books", bearer(t, "u1"), gin.H{"title": "Dune", "author": "Herbert"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"createdBy":"u1"`)

	r = bookRouter(&fakeBookAPI{err: service.ErrBookNotFound})
	for _, m := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		w = do(r, m, "/books/missing", bearer(t, "u1"), gin.H{})
		assert.Equal(t, http.StatusNotFound, w.Code, m)
	}
}

// --- health

type stubWorker struct{ h events.WorkerHealth }

func (s stubWorker) Health() events.WorkerHealth { return s.h }

func TestHealth(t *testing.T) {
	r := gin.New()
	r.GET("/health", Health())
	w := do(r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	r = gin.New()
	r.GET("/health", Health(stubWorker{events.WorkerHealth{Name: "notifier", Running: true}}))
	w = do(r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"notifier"`)

	r = gin.New()
	r.GET("/health", Health(stubWorker{events.WorkerHealth{Name: "notifier", Restarts: 2}}))
	w = do(r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"degraded"`)
}
