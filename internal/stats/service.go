package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/sales"
	"github.com/angelmondragon/storefront-backend/internal/users"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Dashboard is the owner landing page summary.
type Dashboard struct {
	Products product.InventorySummary `json:"products"`
	Users    UserSummary              `json:"users"`
	Sales    sales.Stats              `json:"sales"`
	Recent   Recent                   `json:"recent"`
}

// UserSummary is the subset of user counters shown on the dashboard.
type UserSummary struct {
	Total     int64 `json:"total"`
	Active    int64 `json:"active"`
	Customers int64 `json:"customers"`
}

// Recent compares completed sales over rolling windows.
type Recent struct {
	Last30Days Window `json:"last_30_days"`
	ThisMonth  Window `json:"this_month"`
	Today      Window `json:"today"`
}

// Window is the count and revenue of completed sales in a period.
type Window struct {
	Sales   int64           `json:"sales"`
	Revenue decimal.Decimal `json:"revenue"`
}

type inventoryReader interface {
	Inventory(ctx context.Context) (*product.InventorySummary, error)
}

type userStatsReader interface {
	Stats(ctx context.Context) (*users.Stats, error)
}

type salesStatsReader interface {
	Stats(ctx context.Context, rng sales.Range) (*sales.Stats, error)
}

// Service assembles the dashboard from the resource services.
type Service struct {
	products inventoryReader
	users    userStatsReader
	sales    salesStatsReader
	logg     *logger.Logger
	now      func() time.Time
}

// NewService wires the dashboard service.
func NewService(products inventoryReader, users userStatsReader, sales salesStatsReader, logg *logger.Logger) (*Service, error) {
	if products == nil || users == nil || sales == nil {
		return nil, fmt.Errorf("products, users and sales services required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{products: products, users: users, sales: sales, logg: logg, now: time.Now}, nil
}

// Dashboard never fails: a block whose source errors is logged and left at
// its zero value so the page still renders.
func (s *Service) Dashboard(ctx context.Context) *Dashboard {
	out := &Dashboard{
		Products: product.InventorySummary{TotalValue: decimal.Zero},
		Sales:    *sales.EmptyStats(),
		Recent: Recent{
			Last30Days: zeroWindow(),
			ThisMonth:  zeroWindow(),
			Today:      zeroWindow(),
		},
	}

	if inventory, err := s.products.Inventory(ctx); err != nil {
		s.degraded(ctx, "products", err)
	} else {
		out.Products = *inventory
	}

	if userStats, err := s.users.Stats(ctx); err != nil {
		s.degraded(ctx, "users", err)
	} else {
		out.Users = UserSummary{Total: userStats.Total, Active: userStats.Active, Customers: userStats.Customers}
	}

	if all, err := s.sales.Stats(ctx, sales.Range{}); err != nil {
		s.degraded(ctx, "sales", err)
	} else {
		out.Sales = *all
	}

	now := s.now()
	thirtyDaysAgo := now.AddDate(0, 0, -29)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	out.Recent.Last30Days = s.window(ctx, "last_30_days", thirtyDaysAgo, now)
	out.Recent.ThisMonth = s.window(ctx, "this_month", monthStart, now)
	out.Recent.Today = s.window(ctx, "today", now, now)
	return out
}

func (s *Service) window(ctx context.Context, name string, start, end time.Time) Window {
	stats, err := s.sales.Stats(ctx, sales.Range{Start: &start, End: &end})
	if err != nil {
		s.degraded(ctx, "recent."+name, err)
		return zeroWindow()
	}
	return Window{Sales: stats.TotalSales, Revenue: stats.TotalRevenue}
}

func (s *Service) degraded(ctx context.Context, block string, err error) {
	ctx = s.logg.WithFields(ctx, map[string]any{"block": block, "error": err.Error()})
	s.logg.Warn(ctx, "dashboard block unavailable, using zero values")
}

func zeroWindow() Window {
	return Window{Revenue: decimal.Zero}
}
