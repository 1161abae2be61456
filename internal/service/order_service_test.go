package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/clients"
	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/domain"
	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var storedAt = time.Date(2026, 10, 17, 9, 15, 30, 123_000_000, time.UTC)

type fakeOrderStore struct {
	mu        sync.Mutex
	orders    map[string]*domain.Order
	createErr error
	updates   int
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{orders: map[string]*domain.Order{}}
}

func (f *fakeOrderStore) Create(_ context.Context, o *domain.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	o.CreatedAt, o.ModifiedAt = storedAt, storedAt
	cp := *o
	f.orders[o.ID] = &cp
	return nil
}

func (f *fakeOrderStore) GetByID(_ context.Context, id string) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok || o.DeletedAt != nil {
		return nil, repository.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrderStore) ListByUser(_ context.Context, userID string) ([]domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.Order{}
	for _, o := range f.orders {
		if o.UserID == userID && o.DeletedAt == nil {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrderStore) Update(_ context.Context, id string, req domain.UpdateOrderRequest, actor string) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok || o.DeletedAt != nil {
		return nil, repository.ErrOrderNotFound
	}
	if req.Quantity != nil {
		o.Quantity = *req.Quantity
	}
	if req.BookID != nil {
		o.BookID = *req.BookID
	}
	o.ModifiedBy = &actor
	f.updates++
	cp := *o
	return &cp, nil
}

func (f *fakeOrderStore) SoftDelete(_ context.Context, id, actor string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok || o.DeletedAt != nil {
		return repository.ErrOrderNotFound
	}
	now := time.Now()
	o.DeletedAt, o.DeletedBy = &now, &actor
	return nil
}

type fakeUsers struct {
	profile *domain.UserProfile
	err     error
}

func (f fakeUsers) GetUser(context.Context, string, string) (*domain.UserProfile, error) {
	return f.profile, f.err
}

type fakeBooks struct {
	book *clients.BookInfo
	err  error
}

func (f fakeBooks) GetBook(context.Context, string, string) (*clients.BookInfo, error) {
	return f.book, f.err
}

type recordingPublisher struct {
	mu    sync.Mutex
	keys  []string
	sent  [][]byte
	err   error
	ctxOK []bool
}

func (p *recordingPublisher) Publish(ctx context.Context, key string, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ctxOK = append(p.ctxOK, ctx.Err() == nil)
	if p.err != nil {
		return p.err
	}
	p.keys = append(p.keys, key)
	p.sent = append(p.sent, value)
	return nil
}

var (
	alice = &domain.UserProfile{ID: "u1", Username: "alice", Email: "a@x.com"}
	dune  = &clients.BookInfo{ID: "b1", Title: "Dune", Author: "Herbert"}
)

func newOrderService(store OrderStore, users clients.UserLookup, books clients.BookLookup, pub EventPublisher) *OrderService {
	enricher := clients.NewEnricher(users, books, zap.NewNop())
	return NewOrderService(store, enricher, pub, zap.NewNop())
}

func placeU1B1(t *testing.T, svc *OrderService) *PlacementResult {
	t.Helper()
	res, err := svc.CreateOrder(context.Background(), PlaceOrderInput{UserID: "u1", BookID: "b1", Quantity: 2, Token: "tok"})
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func TestCreateOrder_EnrichedAndPublished(t *testing.T) {
	store := newFakeOrderStore()
	pub := &recordingPublisher{}
	svc := newOrderService(store, fakeUsers{profile: alice}, fakeBooks{book: dune}, pub)

	res := placeU1B1(t, svc)

	assert.Equal(t, domain.StagePublished, res.Stage)
	assert.NoError(t, res.PublishErr)
	assert.False(t, res.Enrichment.Degraded())

	ev := res.Event
	assert.Equal(t, "u1", ev.UserID)
	assert.Equal(t, "b1", ev.BookID)
	assert.Equal(t, 2, ev.Quantity)
	assert.Equal(t, domain.UserSnapshot{Username: "alice", Email: "a@x.com"}, ev.User)
	assert.Equal(t, domain.BookSnapshot{Title: "Dune", Author: "Herbert"}, ev.Book)
	assert.Equal(t, "2026-10-17T09:15:30.123Z", ev.CreatedAt)

	// 발행 키는 주문 ID
	require.Len(t, pub.keys, 1)
	assert.Equal(t, ev.ID, pub.keys[0])

	var wire domain.EnrichedOrderEvent
	require.NoError(t, json.Unmarshal(pub.sent[0], &wire))
	assert.Equal(t, ev, wire)

	stored, err := store.GetByID(context.Background(), ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "u1", *stored.CreatedBy)
}

func TestCreateOrder_UserLookupFails(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newOrderService(newFakeOrderStore(),
		fakeUsers{err: &clients.LookupError{Resource: "user", ID: "u1", StatusCode: 500}},
		fakeBooks{book: dune}, pub)

	res := placeU1B1(t, svc)

	assert.Equal(t, domain.UserSnapshot{}, res.Event.User)
	assert.Equal(t, domain.BookSnapshot{Title: "Dune", Author: "Herbert"}, res.Event.Book)
	assert.Error(t, res.Enrichment.UserErr)
	assert.NoError(t, res.Enrichment.BookErr)
	assert.Equal(t, domain.StagePublished, res.Stage)
	assert.Len(t, pub.sent, 1)
}

func TestCreateOrder_BookLookupFails(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newOrderService(newFakeOrderStore(),
		fakeUsers{profile: alice},
		fakeBooks{err: &clients.LookupError{Resource: "book", ID: "b1", StatusCode: 404}}, pub)

	res := placeU1B1(t, svc)

	assert.Equal(t, domain.UserSnapshot{Username: "alice", Email: "a@x.com"}, res.Event.User)
	assert.Equal(t, domain.BookSnapshot{}, res.Event.Book)
	var le *clients.LookupError
	require.ErrorAs(t, res.Enrichment.BookErr, &le)
	assert.True(t, le.NotFound())
	assert.Len(t, pub.sent, 1)
}

func TestCreateOrder_BothLookupsFailStillPersists(t *testing.T) {
	store := newFakeOrderStore()
	pub := &recordingPublisher{}
	svc := newOrderService(store,
		fakeUsers{err: errors.New("connection refused")},
		fakeBooks{err: errors.New("connection refused")}, pub)

	res := placeU1B1(t, svc)

	assert.Equal(t, domain.UserSnapshot{}, res.Event.User)
	assert.Equal(t, domain.BookSnapshot{}, res.Event.Book)
	assert.True(t, res.Enrichment.Degraded())

	_, err := store.GetByID(context.Background(), res.Event.ID)
	assert.NoError(t, err)
	assert.Len(t, pub.sent, 1)
}

func TestCreateOrder_PublishFailureDoesNotFailRequest(t *testing.T) {
	store := newFakeOrderStore()
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := newOrderService(store, fakeUsers{profile: alice}, fakeBooks{book: dune}, pub)

	res := placeU1B1(t, svc)

	assert.Equal(t, domain.StageEnriched, res.Stage)
	var pe *PublishError
	require.ErrorAs(t, res.PublishErr, &pe)
	assert.Equal(t, res.Event.ID, pe.OrderID)
	assert.Contains(t, pe.Error(), "broker down")

	// 주문은 롤백되지 않음
	_, err := store.GetByID(context.Background(), res.Event.ID)
	assert.NoError(t, err)
}

func TestCreateOrder_PersistenceFailure(t *testing.T) {
	store := newFakeOrderStore()
	store.createErr = errors.New("connection reset")
	pub := &recordingPublisher{}
	svc := newOrderService(store, fakeUsers{profile: alice}, fakeBooks{book: dune}, pub)

	res, err := svc.CreateOrder(context.Background(), PlaceOrderInput{UserID: "u1", BookID: "b1", Quantity: 1})

	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Empty(t, pub.sent)
}

func TestCreateOrder_RejectsQuantityOutOfRange(t *testing.T) {
	store := newFakeOrderStore()
	svc := newOrderService(store, fakeUsers{profile: alice}, fakeBooks{book: dune}, &recordingPublisher{})

	for _, q := range []int{0, -3, domain.MaxQuantity + 1} {
		_, err := svc.CreateOrder(context.Background(), PlaceOrderInput{UserID: "u1", BookID: "b1", Quantity: q})
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	}
	assert.Empty(t, store.orders)
}

func TestCreateOrder_CancelledRequestStillPublishes(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newOrderService(newFakeOrderStore(), fakeUsers{profile: alice}, fakeBooks{book: dune}, pub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := svc.CreateOrder(ctx, PlaceOrderInput{UserID: "u1", BookID: "b1", Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, domain.StagePublished, res.Stage)
	require.Len(t, pub.ctxOK, 1)
	assert.True(t, pub.ctxOK[0])
}

func TestOrderOwnership(t *testing.T) {
	store := newFakeOrderStore()
	pub := &recordingPublisher{}
	svc := newOrderService(store, fakeUsers{profile: alice}, fakeBooks{book: dune}, pub)
	res := placeU1B1(t, svc)
	id := res.Event.ID
	ctx := context.Background()

	t.Run("non-owner cannot see", func(t *testing.T) {
		_, err := svc.GetOrder(ctx, id, "u2")
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})

	t.Run("non-owner cannot update or delete", func(t *testing.T) {
		q := 5
		_, err := svc.UpdateOrder(ctx, id, "u2", domain.UpdateOrderRequest{Quantity: &q})
		assert.ErrorIs(t, err, ErrForbidden)
		assert.ErrorIs(t, svc.DeleteOrder(ctx, id, "u2"), ErrForbidden)
		assert.Zero(t, store.updates)
	})

	t.Run("owner updates without republishing", func(t *testing.T) {
		q := 5
		o, err := svc.UpdateOrder(ctx, id, "u1", domain.UpdateOrderRequest{Quantity: &q})
		require.NoError(t, err)
		assert.Equal(t, 5, o.Quantity)
		assert.Equal(t, "u1", *o.ModifiedBy)
		assert.Len(t, pub.sent, 1)
	})

	t.Run("owner rejects invalid quantity", func(t *testing.T) {
		q := 0
		_, err := svc.UpdateOrder(ctx, id, "u1", domain.UpdateOrderRequest{Quantity: &q})
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	})

	t.Run("owner deletes once", func(t *testing.T) {
		require.NoError(t, svc.DeleteOrder(ctx, id, "u1"))
		assert.ErrorIs(t, svc.DeleteOrder(ctx, id, "u1"), ErrOrderNotFound)
		_, err := svc.GetOrder(ctx, id, "u1")
		assert.ErrorIs(t, err, ErrOrderNotFound)

		list, err := svc.ListOrders(ctx, "u1")
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}
