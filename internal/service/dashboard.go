package service

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/linemk/proshop/internal/domain/models"
	"github.com/linemk/proshop/internal/storage"
	"github.com/shopspring/decimal"
)

const (
	dayLayout      = "2006-01-02"
	unknownCountry = "Unknown"
)

// коэффициенты оценочных метрик. Источника данных для них нет,
// это детерминированные преобразования измеренных величин.
var (
	dealsRatio       = decimal.RequireFromString("0.6")
	leadsPerCustomer = decimal.NewFromInt(3)
	bookedMultiplier = decimal.RequireFromString("1.15")
	hundred          = decimal.NewFromInt(100)
)

// Dashboard - сводка по журналу заказов для администратора
type Dashboard struct {
	TotalSales  decimal.Decimal `json:"totalSales"`
	TotalOrders int             `json:"totalOrders"`

	// оценочные метрики, не измеренные значения
	Deals          int64           `json:"deals"`
	NewLeads       int             `json:"newLeads"`
	BookedRevenue  decimal.Decimal `json:"bookedRevenue"`
	ConversionRate decimal.Decimal `json:"conversionRate"`

	SalesOverTime []DailySales `json:"salesOverTime"`
	// SessionsByCountry - число заказов по стране доставки, а не реальные сессии
	SessionsByCountry    []CountrySessions    `json:"sessionsByCountry"`
	TopProducts          []TopProduct         `json:"topProducts"`
	CustomerSegmentation CustomerSegmentation `json:"customerSegmentation"`
	RecentOrders         []*models.Order      `json:"recentOrders"`
}

type DailySales struct {
	Date       string          `json:"date"`
	TotalSales decimal.Decimal `json:"totalSales"`
	Orders     int             `json:"orders"`
}

type CountrySessions struct {
	Country  string `json:"country"`
	Sessions int    `json:"sessions"`
}

type TopProduct struct {
	ProductID  int64           `json:"productId"`
	Name       string          `json:"name"`
	SalesCount int             `json:"salesCount"`
	Revenue    decimal.Decimal `json:"revenue"`
	// Synthetic - значения подставлены из каталога, продаж по товару не было
	Synthetic bool `json:"synthetic"`
}

type CustomerSegmentation struct {
	NewCustomersPercent       decimal.Decimal `json:"newCustomersPercent"`
	ReturningCustomersPercent decimal.Decimal `json:"returningCustomersPercent"`
	NewCustomers              int             `json:"newCustomers"`
	ReturningCustomers        int             `json:"returningCustomers"`
	TotalUniqueCustomers      int             `json:"totalUniqueCustomers"`
}

type DashboardService interface {
	ComputeDashboard(ctx context.Context) (*Dashboard, error)
}

// DashboardOptions - размеры окон и выборок дашборда
type DashboardOptions struct {
	WindowDays   int
	TopProducts  int
	RecentOrders int
}

type salesAggregator struct {
	log       *slog.Logger
	orderRepo storage.OrderStorage
	sampler   *CatalogSampler
	opts      DashboardOptions
	now       func() time.Time
}

func NewSalesAggregator(log *slog.Logger, orderRepo storage.OrderStorage, sampler *CatalogSampler, opts DashboardOptions) DashboardService {
	if opts.WindowDays <= 0 {
		opts.WindowDays = 30
	}
	if opts.TopProducts <= 0 {
		opts.TopProducts = 6
	}
	if opts.RecentOrders < 0 {
		opts.RecentOrders = 0
	}
	return &salesAggregator{
		log:       log,
		orderRepo: orderRepo,
		sampler:   sampler,
		opts:      opts,
		now:       time.Now,
	}
}

// ComputeDashboard читает журнал заказов целиком и считает сводку.
// Пустой журнал не ошибка: все суммы нулевые, топ товаров берется из каталога.
func (a *salesAggregator) ComputeDashboard(ctx context.Context) (*Dashboard, error) {
	const op = "service.SalesAggregator.ComputeDashboard"
	logger := a.log.With(slog.String("op", op))

	ledger, err := a.orderRepo.ListLedger(ctx)
	if err != nil {
		logger.Error("failed to read order ledger", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to read order ledger: %w", op, err)
	}

	d := &Dashboard{
		TotalSales:           decimal.Zero,
		TotalOrders:          len(ledger),
		SalesOverTime:        salesOverTime(ledger, a.now(), a.opts.WindowDays),
		SessionsByCountry:    sessionsByCountry(ledger),
		TopProducts:          topProducts(ledger, a.opts.TopProducts),
		CustomerSegmentation: segmentCustomers(ledger),
		RecentOrders:         recentOrders(ledger, a.opts.RecentOrders),
	}
	for _, o := range ledger {
		if o.IsPaid {
			d.TotalSales = d.TotalSales.Add(o.TotalPrice)
		}
	}

	if len(d.TopProducts) == 0 {
		d.TopProducts = a.sampler.Sample(ctx, a.opts.TopProducts)
		logger.Debug("top products taken from catalog sample", slog.Int("count", len(d.TopProducts)))
	}

	d.Deals = decimal.NewFromInt(int64(d.TotalOrders)).Mul(dealsRatio).Round(0).IntPart()
	d.NewLeads = d.CustomerSegmentation.TotalUniqueCustomers * int(leadsPerCustomer.IntPart())
	d.BookedRevenue = d.TotalSales.Mul(bookedMultiplier).Round(2)
	d.ConversionRate = percent(d.Deals, int64(d.NewLeads))

	return d, nil
}

// percent возвращает part/total*100 с округлением до десятых, 0 при пустом total
func percent(part, total int64) decimal.Decimal {
	if total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(part).Mul(hundred).Div(decimal.NewFromInt(total)).Round(1)
}

// salesOverTime строит плотный ряд по UTC-дням окна, старые дни первыми.
// Учитываются только оплаченные заказы.
func salesOverTime(ledger []*models.Order, now time.Time, windowDays int) []DailySales {
	today := now.UTC().Truncate(24 * time.Hour)
	start := today.AddDate(0, 0, -(windowDays - 1))

	series := make([]DailySales, windowDays)
	index := make(map[string]int, windowDays)
	for i := range series {
		day := start.AddDate(0, 0, i).Format(dayLayout)
		series[i] = DailySales{Date: day, TotalSales: decimal.Zero}
		index[day] = i
	}

	for _, o := range ledger {
		if !o.IsPaid {
			continue
		}
		i, ok := index[o.CreatedAt.UTC().Format(dayLayout)]
		if !ok {
			continue
		}
		series[i].TotalSales = series[i].TotalSales.Add(o.TotalPrice)
		series[i].Orders++
	}
	return series
}

func sessionsByCountry(ledger []*models.Order) []CountrySessions {
	counts := make(map[string]int)
	for _, o := range ledger {
		country := o.ShippingAddress.Country
		if country == "" {
			country = unknownCountry
		}
		counts[country]++
	}

	result := make([]CountrySessions, 0, len(counts))
	for country, n := range counts {
		result = append(result, CountrySessions{Country: country, Sessions: n})
	}
	slices.SortFunc(result, func(a, b CountrySessions) int {
		return cmp.Or(cmp.Compare(b.Sessions, a.Sessions), cmp.Compare(a.Country, b.Country))
	})
	return result
}

// topProducts группирует позиции всех заказов по товару.
// Выручка считается по снимку цены в позиции, а не по текущему каталогу.
func topProducts(ledger []*models.Order, limit int) []TopProduct {
	groups := make(map[int64]*TopProduct)
	for _, o := range ledger {
		for _, item := range o.Items {
			g, ok := groups[item.ProductID]
			if !ok {
				g = &TopProduct{ProductID: item.ProductID, Name: item.Name, Revenue: decimal.Zero}
				groups[item.ProductID] = g
			}
			g.SalesCount += item.Quantity
			g.Revenue = g.Revenue.Add(item.Subtotal())
		}
	}

	result := make([]TopProduct, 0, len(groups))
	for _, g := range groups {
		result = append(result, *g)
	}
	slices.SortFunc(result, func(a, b TopProduct) int {
		return cmp.Or(
			cmp.Compare(b.SalesCount, a.SalesCount),
			b.Revenue.Cmp(a.Revenue),
			cmp.Compare(a.ProductID, b.ProductID),
		)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result
}

// segmentCustomers: ровно один заказ - новый покупатель, больше одного - вернувшийся
func segmentCustomers(ledger []*models.Order) CustomerSegmentation {
	perUser := make(map[int64]int)
	for _, o := range ledger {
		perUser[o.UserID]++
	}

	seg := CustomerSegmentation{TotalUniqueCustomers: len(perUser)}
	for _, n := range perUser {
		if n > 1 {
			seg.ReturningCustomers++
		} else {
			seg.NewCustomers++
		}
	}
	total := int64(seg.TotalUniqueCustomers)
	seg.NewCustomersPercent = percent(int64(seg.NewCustomers), total)
	seg.ReturningCustomersPercent = percent(int64(seg.ReturningCustomers), total)
	return seg
}

// recentOrders возвращает последние n заказов, новые первыми.
// Журнал упорядочен по created_at по возрастанию.
func recentOrders(ledger []*models.Order, n int) []*models.Order {
	if n > len(ledger) {
		n = len(ledger)
	}
	result := make([]*models.Order, 0, n)
	for i := len(ledger) - 1; i >= 0 && len(result) < n; i-- {
		result = append(result, ledger[i])
	}
	return result
}
