package service

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/backoffice/internal/analytics/domain"
	"github.com/smallbiznis/backoffice/internal/clock"
	productdomain "github.com/smallbiznis/backoffice/internal/product/domain"
	userdomain "github.com/smallbiznis/backoffice/internal/user/domain"
	"github.com/smallbiznis/backoffice/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	recentLimit   = 5
	topLimit      = 5
	lowStockLimit = 10
	dayFormat     = "2006-01-02"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	Products    productdomain.Service
	ProductRepo productdomain.Repository
	Users       userdomain.Repository
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	products    productdomain.Service
	productRepo productdomain.Repository
	users       userdomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("analytics.service"),
		clock:       p.Clock,
		products:    p.Products,
		productRepo: p.ProductRepo,
		users:       p.Users,
	}
}

func (s *Service) Stats(ctx context.Context) (*domain.Stats, error) {
	now := s.clock.Now().UTC()
	monthStart := truncateToMonth(now)
	lastMonthStart := monthStart.AddDate(0, -1, 0)
	tomorrow := truncateToDay(now).AddDate(0, 0, 1)

	totalUsers, err := s.users.Count(ctx, true)
	if err != nil {
		return nil, err
	}
	totalProducts, err := db.ReadWithRetry(ctx, func(ctx context.Context) (int64, error) {
		return s.productRepo.Count(ctx, s.db, true)
	})
	if err != nil {
		return nil, err
	}
	totalOrders, err := s.countOrders(ctx, nil, nil)
	if err != nil {
		return nil, err
	}
	ordersThisMonth, err := s.countOrders(ctx, &monthStart, &tomorrow)
	if err != nil {
		return nil, err
	}
	ordersLastMonth, err := s.countOrders(ctx, &lastMonthStart, &monthStart)
	if err != nil {
		return nil, err
	}
	_, revenueThisMonth, err := s.revenue(ctx, monthStart, tomorrow)
	if err != nil {
		return nil, err
	}
	_, revenueLastMonth, err := s.revenue(ctx, lastMonthStart, monthStart)
	if err != nil {
		return nil, err
	}

	lowStock, err := s.products.ListLowStock(ctx, lowStockLimit)
	if err != nil {
		return nil, err
	}
	recent, err := s.recentOrders(ctx, recentLimit)
	if err != nil {
		return nil, err
	}
	statuses, err := s.statusCounts(ctx)
	if err != nil {
		return nil, err
	}
	top, err := s.topProducts(ctx, topLimit)
	if err != nil {
		return nil, err
	}

	return &domain.Stats{
		TotalUsers:       totalUsers,
		TotalProducts:    totalProducts,
		TotalOrders:      totalOrders,
		OrdersThisMonth:  ordersThisMonth,
		RevenueThisMonth: revenueThisMonth,
		OrderGrowth:      growthRate(decimal.NewFromInt(ordersThisMonth), decimal.NewFromInt(ordersLastMonth)),
		RevenueGrowth:    growthRate(revenueThisMonth, revenueLastMonth),
		LowStockProducts: lowStock,
		RecentOrders:     recent,
		OrderStatus:      statuses,
		TopProducts:      top,
	}, nil
}

func (s *Service) Analytics(ctx context.Context, period string) (*domain.Report, error) {
	now := s.clock.Now().UTC()
	p, from, err := resolvePeriod(period, now)
	if err != nil {
		return nil, err
	}
	to := truncateToDay(now).AddDate(0, 0, 1)

	totalOrders, err := s.countOrders(ctx, &from, &to)
	if err != nil {
		return nil, err
	}
	revenueOrders, totalRevenue, err := s.revenue(ctx, from, to)
	if err != nil {
		return nil, err
	}
	customers, err := s.users.Count(ctx, true)
	if err != nil {
		return nil, err
	}
	points, err := s.orderPoints(ctx, from, to)
	if err != nil {
		return nil, err
	}
	categories, err := s.categoryRevenue(ctx, from, to)
	if err != nil {
		return nil, err
	}
	recent, err := s.recentOrders(ctx, recentLimit)
	if err != nil {
		return nil, err
	}

	avg := decimal.Zero
	if revenueOrders > 0 {
		avg = totalRevenue.Div(decimal.NewFromInt(revenueOrders)).Round(2)
	}

	return &domain.Report{
		Period: p,
		From:   from,
		To:     to,
		Overview: domain.Overview{
			TotalRevenue:   totalRevenue,
			TotalOrders:    totalOrders,
			TotalCustomers: customers,
			AvgOrderValue:  avg,
		},
		SalesData:    dailySeries(points, from, to),
		CategoryData: categories,
		RecentOrders: recent,
	}, nil
}

func resolvePeriod(raw string, now time.Time) (domain.Period, time.Time, error) {
	p := domain.Period(strings.ToLower(strings.TrimSpace(raw)))
	today := truncateToDay(now)
	switch p {
	case "", domain.PeriodMonth:
		return domain.PeriodMonth, truncateToMonth(now), nil
	case domain.Period7Days:
		return p, today.AddDate(0, 0, -6), nil
	case domain.Period30Days:
		return p, today.AddDate(0, 0, -29), nil
	case domain.Period90Days:
		return p, today.AddDate(0, 0, -89), nil
	case domain.Period365Days:
		return p, today.AddDate(0, 0, -364), nil
	default:
		return "", time.Time{}, domain.ErrInvalidPeriod
	}
}

// dailySeries buckets order totals by UTC day, emitting every day in
// [from, to) so charts have no gaps.
func dailySeries(points []orderPointRow, from, to time.Time) []domain.SalesPoint {
	index := make(map[string]int)
	series := make([]domain.SalesPoint, 0)
	for day := from; day.Before(to); day = day.AddDate(0, 0, 1) {
		key := day.Format(dayFormat)
		index[key] = len(series)
		series = append(series, domain.SalesPoint{Date: key, Revenue: decimal.Zero})
	}
	for _, p := range points {
		i, ok := index[p.CreatedAt.UTC().Format(dayFormat)]
		if !ok {
			continue
		}
		series[i].Revenue = series[i].Revenue.Add(p.Total)
		series[i].Orders++
	}
	for i := range series {
		series[i].Revenue = series[i].Revenue.Round(2)
	}
	return series
}

// growthRate is the percentage change from previous to current, or 0 when
// there is no previous value to compare against.
func growthRate(current, previous decimal.Decimal) float64 {
	if previous.IsZero() {
		return 0
	}
	rate, _ := current.Sub(previous).Div(previous).Mul(decimal.NewFromInt(100)).Float64()
	return math.Round(rate*100) / 100
}

func truncateToDay(value time.Time) time.Time {
	return time.Date(value.Year(), value.Month(), value.Day(), 0, 0, 0, 0, time.UTC)
}

func truncateToMonth(value time.Time) time.Time {
	return time.Date(value.Year(), value.Month(), 1, 0, 0, 0, 0, time.UTC)
}
