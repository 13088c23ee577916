package service_test

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/linemk/proshop/internal/domain/models"
	"github.com/linemk/proshop/internal/lib/background"
	"github.com/linemk/proshop/internal/lib/metrics"
	"github.com/linemk/proshop/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

type fakeUserRepo struct {
	users   map[string]*models.User // ключ — email
	listErr error
}

var _ storage.UserStorage = (*fakeUserRepo)(nil)

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*models.User)}
}

func (f *fakeUserRepo) add(users ...*models.User) {
	for _, u := range users {
		f.users[u.Email] = u
	}
}

func (f *fakeUserRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, ok := f.users[email]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = int64(len(f.users) + 1)
	f.users[user.Email] = user
	return user, nil
}

func (f *fakeUserRepo) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

func (f *fakeUserRepo) ListUsersByRole(ctx context.Context, role string) ([]*models.User, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var result []*models.User
	for _, u := range f.users {
		if u.Role == role {
			result = append(result, u)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// fakeNotificationRepo хранит уведомления в памяти и повторяет семантику владельца из хранилища
type fakeNotificationRepo struct {
	mu        sync.Mutex
	items     []*models.Notification
	nextID    int64
	createErr error
	batches   int
}

var _ storage.NotificationStorage = (*fakeNotificationRepo)(nil)

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{}
}

func (f *fakeNotificationRepo) CreateNotifications(ctx context.Context, notifications []models.Notification) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return 0, f.createErr
	}
	if len(notifications) == 0 {
		return 0, nil
	}
	f.batches++
	for _, n := range notifications {
		f.nextID++
		n.ID = f.nextID
		f.items = append(f.items, &n)
	}
	return int64(len(notifications)), nil
}

func (f *fakeNotificationRepo) ListByUser(ctx context.Context, userID int64, limit int) ([]*models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []*models.Notification
	for i := len(f.items) - 1; i >= 0 && len(result) < limit; i-- {
		if f.items[i].UserID == userID {
			result = append(result, f.items[i])
		}
	}
	return result, nil
}

func (f *fakeNotificationRepo) MarkRead(ctx context.Context, id, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.items {
		if n.ID == id && n.UserID == userID {
			n.Read = true
			return nil
		}
	}
	return storage.ErrNotificationNotFound
}

func (f *fakeNotificationRepo) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, item := range f.items {
		if item.UserID == userID && !item.Read {
			item.Read = true
			n++
		}
	}
	return n, nil
}

func (f *fakeNotificationRepo) DeleteAllByUser(ctx context.Context, userID int64) (int64, error) {
	return f.deleteWhere(func(n *models.Notification) bool { return n.UserID == userID }), nil
}

func (f *fakeNotificationRepo) Delete(ctx context.Context, id, userID int64) error {
	if f.deleteWhere(func(n *models.Notification) bool { return n.ID == id && n.UserID == userID }) == 0 {
		return storage.ErrNotificationNotFound
	}
	return nil
}

func (f *fakeNotificationRepo) DeleteMany(ctx context.Context, ids []int64, userID int64) (int64, error) {
	return f.deleteWhere(func(n *models.Notification) bool {
		return n.UserID == userID && slices.Contains(ids, n.ID)
	}), nil
}

func (f *fakeNotificationRepo) deleteWhere(match func(*models.Notification) bool) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.items[:0]
	var deleted int64
	for _, n := range f.items {
		if match(n) {
			deleted++
			continue
		}
		kept = append(kept, n)
	}
	f.items = kept
	return deleted
}

func (f *fakeNotificationRepo) forUser(userID int64) []*models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []*models.Notification
	for _, n := range f.items {
		if n.UserID == userID {
			result = append(result, n)
		}
	}
	return result
}

type fakeProductRepo struct {
	products map[int64]*models.Product
	listErr  error
	updated  []*models.Product
}

var _ storage.ProductStorage = (*fakeProductRepo)(nil)

func newFakeProductRepo(products ...*models.Product) *fakeProductRepo {
	f := &fakeProductRepo{products: make(map[int64]*models.Product)}
	for _, p := range products {
		f.products[p.ID] = p
	}
	return f
}

func (f *fakeProductRepo) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, storage.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProductRepo) GetProductByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Product, error) {
	return f.GetProductByID(ctx, id)
}

func (f *fakeProductRepo) LockProductByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Product, error) {
	return f.GetProductByID(ctx, id)
}

func (f *fakeProductRepo) UpdateProductTx(ctx context.Context, tx *sql.Tx, product *models.Product) error {
	cp := *product
	f.products[product.ID] = &cp
	f.updated = append(f.updated, &cp)
	return nil
}

func (f *fakeProductRepo) ListProducts(ctx context.Context, limit int) ([]*models.Product, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	result := make([]*models.Product, 0, len(f.products))
	for _, p := range f.products {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

type fakeOrderRepo struct {
	orders    []*models.Order // по возрастанию created_at
	createErr error
	ledgerErr error
}

var _ storage.OrderStorage = (*fakeOrderRepo)(nil)

func newFakeOrderRepo(orders ...*models.Order) *fakeOrderRepo {
	return &fakeOrderRepo{orders: orders}
}

func (f *fakeOrderRepo) CreateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.orders = append(f.orders, order)
	return nil
}

func (f *fakeOrderRepo) GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	for _, o := range f.orders {
		if o.ID == id {
			cp := *o
			return &cp, nil
		}
	}
	return nil, storage.ErrOrderNotFound
}

func (f *fakeOrderRepo) GetOrdersByUserID(ctx context.Context, userID int64) ([]*models.Order, error) {
	var result []*models.Order
	for i := len(f.orders) - 1; i >= 0; i-- {
		if f.orders[i].UserID == userID {
			result = append(result, f.orders[i])
		}
	}
	return result, nil
}

func (f *fakeOrderRepo) ListLedger(ctx context.Context) ([]*models.Order, error) {
	if f.ledgerErr != nil {
		return nil, f.ledgerErr
	}
	return f.orders, nil
}

func (f *fakeOrderRepo) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status string, delivered bool) error {
	for _, o := range f.orders {
		if o.ID == id {
			o.Status = status
			if delivered {
				o.IsDelivered = true
			}
			return nil
		}
	}
	return storage.ErrOrderNotFound
}

func (f *fakeOrderRepo) MarkOrderPaid(ctx context.Context, id uuid.UUID) error {
	for _, o := range f.orders {
		if o.ID == id {
			o.IsPaid = true
			return nil
		}
	}
	return storage.ErrOrderNotFound
}

// fakeSubmitter запоминает задачи, тест сам решает, когда их выполнить
type fakeSubmitter struct {
	names  []string
	tasks  []background.Task
	reject bool
}

var _ background.Submitter = (*fakeSubmitter)(nil)

func (f *fakeSubmitter) Submit(name string, task background.Task) bool {
	if f.reject {
		return false
	}
	f.names = append(f.names, name)
	f.tasks = append(f.tasks, task)
	return true
}

func (f *fakeSubmitter) runAll(ctx context.Context) []error {
	var errs []error
	for _, task := range f.tasks {
		errs = append(errs, task(ctx))
	}
	return errs
}
