package seeder

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Additional-Code/menudesk/internal/entity"
	orderrepo "github.com/Additional-Code/menudesk/internal/repository/order"
	"github.com/Additional-Code/menudesk/pkg/tablefield"
)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	repo   *orderrepo.Repository
	logger *zap.Logger
	now    func() time.Time
}

// New constructs a Seeder writing through the order repository.
func New(repo *orderrepo.Repository, logger *zap.Logger) *Seeder {
	return &Seeder{repo: repo, logger: logger, now: time.Now}
}

func line(id, name string, price int64, qty int) entity.OrderItem {
	return entity.OrderItem{Dish: entity.DishSnapshot{ID: id, Name: name, Price: decimal.NewFromInt(price)}, Quantity: qty}
}

// Orders inserts demo orders for tenantID unless it already has some. It
// returns how many were inserted.
func (s *Seeder) Orders(ctx context.Context, tenantID string) (int, error) {
	existing, err := s.repo.ListByTenant(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		if s.logger != nil {
			s.logger.Info("tenant already has orders; skipping seed", zap.String("tenant_id", tenantID), zap.Int("count", len(existing)))
		}
		return 0, nil
	}

	now := s.now().UTC()
	samples := []struct {
		customer string
		location tablefield.Location
		items    []entity.OrderItem
		status   entity.OrderStatus
		age      time.Duration
	}{
		{"Amina", tablefield.DineIn{Table: "4", Code: "3391"}, []entity.OrderItem{line("1", "Chorba frik", 350, 2), line("2", "Bourek", 120, 4)}, entity.StatusCompleted, 3 * time.Hour},
		{"Rachid", tablefield.Delivery{Phone: "0550 11 22 33", Address: "12 Rue Larbi Ben M'hidi, Oran"}, []entity.OrderItem{line("3", "Couscous royal", 1200, 1)}, entity.StatusPreparing, 40 * time.Minute},
		{"Meriem", tablefield.DineIn{Table: "9", Code: "5520"}, []entity.OrderItem{line("4", "Garantita", 150, 3), line("5", "Thé à la menthe", 100, 3)}, entity.StatusPending, 5 * time.Minute},
	}

	for _, sample := range samples {
		order := &entity.Order{
			TenantID:     tenantID,
			CustomerName: sample.customer,
			TableNumber:  tablefield.Encode(sample.location),
			Items:        sample.items,
			Total:        entity.ItemsTotal(sample.items),
			Status:       sample.status,
			CreatedAt:    now.Add(-sample.age),
		}
		if err := s.repo.Create(ctx, order); err != nil {
			return 0, err
		}
	}

	if s.logger != nil {
		s.logger.Info("seeded orders", zap.String("tenant_id", tenantID), zap.Int("count", len(samples)))
	}
	return len(samples), nil
}
