package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/linemk/proshop/internal/domain/models"
	"github.com/linemk/proshop/internal/service"
	"github.com/linemk/proshop/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type productFixture struct {
	svc           service.ProductService
	mock          sqlmock.Sqlmock
	products      *fakeProductRepo
	notifications *fakeNotificationRepo
	runner        *fakeSubmitter
}

func newProductFixture(t *testing.T, product *models.Product) *productFixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	users := newFakeUserRepo()
	users.add(
		&models.User{ID: 1, Email: "admin@shop.local", Role: models.RoleAdmin},
		&models.User{ID: 2, Email: "a@example.com", Role: models.RoleUser},
		&models.User{ID: 3, Email: "b@example.com", Role: models.RoleUser},
	)
	products := newFakeProductRepo(product)
	notifications := newFakeNotificationRepo()
	runner := &fakeSubmitter{}
	logger := newTestLogger()
	dispatcher := service.NewOfferDispatcher(logger, users, notifications, newTestMetrics())

	return &productFixture{
		svc:           service.NewProductService(logger, db, products, dispatcher, runner),
		mock:          mock,
		products:      products,
		notifications: notifications,
		runner:        runner,
	}
}

func TestProductService_UpdateProduct_BigOfferSchedulesFanout(t *testing.T) {
	f := newProductFixture(t, &models.Product{ID: 10, Name: "Camera", Price: decimal.NewFromInt(500)})
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	updated, err := f.svc.UpdateProduct(context.Background(), 10, service.ProductUpdate{Discount: ptr(25)})
	require.NoError(t, err)
	assert.Equal(t, 25.0, updated.Discount)
	assert.NoError(t, f.mock.ExpectationsWereMet())

	// ответ уже получен, а рассылка еще только в очереди
	require.Equal(t, []string{"offer_fanout"}, f.runner.names)
	assert.Empty(t, f.notifications.forUser(2))

	for _, err := range f.runner.runAll(context.Background()) {
		assert.NoError(t, err)
	}
	assert.Len(t, f.notifications.forUser(2), 1)
	assert.Len(t, f.notifications.forUser(3), 1)
	assert.Empty(t, f.notifications.forUser(1))
	assert.Equal(t, "Camera is now 25% OFF! Grab it before it's gone.", f.notifications.forUser(2)[0].Message)
}

func TestProductService_UpdateProduct_NoFanoutWithoutCrossing(t *testing.T) {
	tests := []struct {
		name     string
		previous float64
		update   service.ProductUpdate
	}{
		{"same discount", 25, service.ProductUpdate{Discount: ptr(25)}},
		{"decreasing discount", 25, service.ProductUpdate{Discount: ptr(20)}},
		{"small discount", 0, service.ProductUpdate{Discount: ptr(10)}},
		{"discount not touched", 30, service.ProductUpdate{Name: strPtr("Renamed")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newProductFixture(t, &models.Product{ID: 1, Name: "Lamp", Price: decimal.NewFromInt(20), Discount: tt.previous})
			f.mock.ExpectBegin()
			f.mock.ExpectCommit()

			_, err := f.svc.UpdateProduct(context.Background(), 1, tt.update)
			require.NoError(t, err)
			assert.Empty(t, f.runner.names)
			assert.NoError(t, f.mock.ExpectationsWereMet())
		})
	}
}

func TestProductService_UpdateProduct_FanoutFailureDoesNotAffectUpdate(t *testing.T) {
	f := newProductFixture(t, &models.Product{ID: 10, Name: "Camera", Price: decimal.NewFromInt(500)})
	f.notifications.createErr = errors.New("db down")
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	_, err := f.svc.UpdateProduct(context.Background(), 10, service.ProductUpdate{Discount: ptr(40)})
	require.NoError(t, err)

	errs := f.runner.runAll(context.Background())
	require.Len(t, errs, 1)
	assert.Error(t, errs[0])

	stored, _ := f.products.GetProductByID(context.Background(), 10)
	assert.Equal(t, 40.0, stored.Discount, "product update stays committed")
}

func TestProductService_UpdateProduct_QueueFull(t *testing.T) {
	f := newProductFixture(t, &models.Product{ID: 10, Name: "Camera", Price: decimal.NewFromInt(500)})
	f.runner.reject = true
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	_, err := f.svc.UpdateProduct(context.Background(), 10, service.ProductUpdate{Discount: ptr(40)})
	assert.NoError(t, err, "a dropped fan-out is not the caller's error")
}

func TestProductService_UpdateProduct_Validation(t *testing.T) {
	negative := decimal.NewFromInt(-1)
	tests := []struct {
		name   string
		update service.ProductUpdate
		want   error
	}{
		{"discount above 100", service.ProductUpdate{Discount: ptr(101)}, service.ErrInvalidDiscount},
		{"negative discount", service.ProductUpdate{Discount: ptr(-5)}, service.ErrInvalidDiscount},
		{"negative price", service.ProductUpdate{Price: &negative}, service.ErrInvalidPrice},
		{"blank name", service.ProductUpdate{Name: strPtr("  ")}, service.ErrInvalidName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newProductFixture(t, &models.Product{ID: 1, Name: "Lamp", Price: decimal.NewFromInt(20)})

			_, err := f.svc.UpdateProduct(context.Background(), 1, tt.update)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, f.products.updated)
			assert.NoError(t, f.mock.ExpectationsWereMet(), "no transaction is opened for invalid input")
		})
	}
}

func TestProductService_UpdateProduct_NotFound(t *testing.T) {
	f := newProductFixture(t, &models.Product{ID: 1, Name: "Lamp", Price: decimal.NewFromInt(20)})
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.UpdateProduct(context.Background(), 99, service.ProductUpdate{Discount: ptr(50)})
	assert.ErrorIs(t, err, storage.ErrProductNotFound)
	assert.Empty(t, f.runner.names)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func strPtr(s string) *string { return &s }
