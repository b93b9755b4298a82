//go:build integration

package mongodb

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
)

var testStore *Store

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor: wait.ForListeningPort("27017/tcp").
				WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("start mongo: %v", err)
	}
	defer func() { _ = ctr.Terminate(context.Background()) }()

	host, err := ctr.Host(ctx)
	if err != nil {
		log.Fatalf("host: %v", err)
	}
	port, err := ctr.MappedPort(ctx, "27017/tcp")
	if err != nil {
		log.Fatalf("mapped port: %v", err)
	}

	testStore, err = Connect(ctx, fmt.Sprintf("mongodb://%s:%s", host, port.Port()), "storefront_test")
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer func() { _ = testStore.Close(context.Background()) }()

	if err := testStore.Ping(ctx); err != nil {
		log.Fatalf("ping: %v", err)
	}
	if err := testStore.EnsureIndexes(ctx); err != nil {
		log.Fatalf("indexes: %v", err)
	}

	return m.Run()
}

func TestProductRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewProductRepository(testStore)
	now := time.Now().UTC().Truncate(time.Millisecond)

	p := &product.Product{
		ID:         "mongo-prod-1",
		Name:       "Galaxy S24",
		OfferPrice: decimal.RequireFromString("79999.00"),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, repo.Create(ctx, p))

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, p.OfferPrice.Equal(got.OfferPrice))

	p.Description = "updated"
	require.NoError(t, repo.Update(ctx, p))
	got, err = repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "updated", got.Description)

	names, err := repo.Names(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, "Galaxy S24")

	require.NoError(t, repo.Delete(ctx, p.ID))
	require.ErrorIs(t, repo.Delete(ctx, p.ID), product.ErrNotFound)
	_, err = repo.GetByID(ctx, p.ID)
	require.ErrorIs(t, err, product.ErrNotFound)
}

func TestCartService_MergeOnAdd(t *testing.T) {
	ctx := context.Background()
	svc := cart.NewService(NewCartRepository(testStore), NewProductRepository(testStore))

	req := cart.AddItemRequest{
		UserID:     "mongo-cart-user",
		ProductID:  "p1",
		Name:       "Phone",
		OfferPrice: decimal.NewFromInt(10),
	}
	_, err := svc.AddItem(ctx, req)
	require.NoError(t, err)
	c, err := svc.AddItem(ctx, req)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 2, c.Items[0].Quantity)

	view, err := svc.Fetch(ctx, "mongo-cart-user")
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 2, view.Items[0].Quantity)
	assert.Nil(t, view.Items[0].Product)

	require.NoError(t, svc.Clear(ctx, "mongo-cart-user"))
	require.NoError(t, svc.Clear(ctx, "mongo-cart-user"))
}

func TestOrderRepository_Checkout(t *testing.T) {
	ctx := context.Background()
	carts := NewCartRepository(testStore)
	orders := NewOrderRepository(testStore)
	svc, err := order.NewService(orders, orders, order.Options{})
	require.NoError(t, err)

	c := cart.New("mongo-order-user", time.Now().UTC())
	c.Add("p1", "A", decimal.NewFromInt(10))
	c.Add("p1", "A", decimal.NewFromInt(10))
	c.Add("p2", "B", decimal.NewFromInt(5))
	require.NoError(t, carts.Save(ctx, c))

	first, err := svc.PlaceOrder(ctx, order.PlaceOrderRequest{UserID: "mongo-order-user"})
	require.NoError(t, err)
	assert.Equal(t, "25.00", first.Total.StringFixed(2))

	_, err = carts.Get(ctx, "mongo-order-user")
	require.ErrorIs(t, err, cart.ErrCartNotFound)

	_, err = svc.PlaceOrder(ctx, order.PlaceOrderRequest{UserID: "mongo-order-user"})
	require.ErrorIs(t, err, order.ErrEmptyCart)

	three := decimal.NewFromInt(3)
	second, err := svc.PlaceClientOrder(ctx, order.ClientOrderRequest{
		UserID: "mongo-order-user",
		Items:  []order.Item{{ProductID: "p3", Name: "C", OfferPrice: decimal.NewFromInt(3), Quantity: 1}},
		Total:  &three,
	})
	require.NoError(t, err)

	history, err := svc.History(ctx, "mongo-order-user")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.ID, history[0].ID)
	assert.Equal(t, first.ID, history[1].ID)

	shipped, err := svc.AdvanceStatus(ctx, first.ID, order.StatusShipped)
	require.NoError(t, err)
	assert.Equal(t, order.StatusShipped, shipped.Status)
}

func TestOrderRepository_SameTimestampHistory(t *testing.T) {
	ctx := context.Background()
	orders := NewOrderRepository(testStore)
	at := time.Now().UTC().Truncate(time.Millisecond)

	var ids []string
	for range 20 {
		o := &order.Order{
			ID:            order.NewID(),
			UserID:        "mongo-tie-user",
			Items:         []order.Item{{ProductID: "p1", Quantity: 1, OfferPrice: decimal.NewFromInt(1)}},
			Total:         decimal.NewFromInt(1),
			PaymentMethod: order.DefaultPaymentMethod,
			Status:        order.StatusPending,
			Source:        order.SourceClient,
			CreatedAt:     at,
		}
		require.NoError(t, orders.Create(ctx, o))
		ids = append([]string{o.ID}, ids...)
	}

	history, err := orders.ListByUser(ctx, "mongo-tie-user")
	require.NoError(t, err)
	require.Len(t, history, len(ids))
	for i := range history {
		assert.Equal(t, ids[i], history[i].ID)
	}
}
