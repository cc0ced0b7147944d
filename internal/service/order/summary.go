package order

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Additional-Code/menudesk/internal/entity"
	"github.com/Additional-Code/menudesk/pkg/errorbank"
)

// Range selects the window of a sales summary.
type Range string

const (
	RangeToday  Range = "today"
	RangeWeek   Range = "week"
	RangeMonth  Range = "month"
	RangeCustom Range = "custom"
)

const topDishLimit = 5

// DishSales aggregates one dish across orders.
type DishSales struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
}

// Summary is the sales report over completed orders in [From, To).
type Summary struct {
	Range     Range           `json:"range"`
	From      time.Time       `json:"from"`
	To        time.Time       `json:"to"`
	Orders    int             `json:"orders"`
	Revenue   decimal.Decimal `json:"revenue"`
	Average   decimal.Decimal `json:"average"`
	TopDishes []DishSales     `json:"top_dishes"`
}

// Window resolves r to a half-open interval in loc. day is only read for
// RangeCustom.
func Window(r Range, day, now time.Time, loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	tomorrow := midnight.AddDate(0, 0, 1)

	switch r {
	case RangeToday, "":
		return midnight, tomorrow, nil
	case RangeWeek:
		return midnight.AddDate(0, 0, -6), tomorrow, nil
	case RangeMonth:
		return midnight.AddDate(0, 0, -29), tomorrow, nil
	case RangeCustom:
		if day.IsZero() {
			return time.Time{}, time.Time{}, errorbank.BadRequest("date is required for a custom summary")
		}
		d := day.In(loc)
		start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 0, 1), nil
	default:
		return time.Time{}, time.Time{}, errorbank.BadRequest("unknown summary range", errorbank.WithDetail("range", string(r)))
	}
}

// Summarize aggregates the completed orders created in [from, to).
func Summarize(orders []entity.Order, from, to time.Time) Summary {
	summary := Summary{From: from, To: to, Revenue: decimal.Zero, Average: decimal.Zero, TopDishes: []DishSales{}}
	dishes := make(map[string]*DishSales)

	for _, o := range orders {
		if o.Status != entity.StatusCompleted || o.CreatedAt.Before(from) || !o.CreatedAt.Before(to) {
			continue
		}
		summary.Orders++
		summary.Revenue = summary.Revenue.Add(o.Total)
		for _, item := range o.Items {
			d, ok := dishes[item.Dish.Name]
			if !ok {
				d = &DishSales{Name: item.Dish.Name, Revenue: decimal.Zero}
				dishes[item.Dish.Name] = d
			}
			d.Quantity += item.Quantity
			d.Revenue = d.Revenue.Add(item.Subtotal())
		}
	}

	if summary.Orders > 0 {
		summary.Average = summary.Revenue.Div(decimal.NewFromInt(int64(summary.Orders))).Round(2)
	}
	for _, d := range dishes {
		summary.TopDishes = append(summary.TopDishes, *d)
	}
	sort.Slice(summary.TopDishes, func(i, j int) bool {
		a, b := summary.TopDishes[i], summary.TopDishes[j]
		if a.Quantity != b.Quantity {
			return a.Quantity > b.Quantity
		}
		return a.Name < b.Name
	})
	if len(summary.TopDishes) > topDishLimit {
		summary.TopDishes = summary.TopDishes[:topDishLimit]
	}
	return summary
}

// Summary lists the tenant's orders and summarises them over r.
func (s *Service) Summary(ctx context.Context, tenantID string, r Range, day time.Time) (*Summary, Source, error) {
	from, to, err := Window(r, day, s.now(), s.location)
	if err != nil {
		return nil, "", err
	}
	orders, source, err := s.List(ctx, tenantID)
	if err != nil {
		return nil, "", err
	}
	summary := Summarize(orders, from, to)
	if r == "" {
		r = RangeToday
	}
	summary.Range = r
	return &summary, source, nil
}
