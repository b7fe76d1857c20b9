package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/phenrril/kambashop/internal/domain"
)

type OrderRepo struct{ db *gorm.DB }

func NewOrderRepo(db *gorm.DB) *OrderRepo { return &OrderRepo{db: db} }

func (r *OrderRepo) FindByIntentID(ctx context.Context, intentID string) (*domain.Order, error) {
	id := strings.TrimSpace(intentID)
	if id == "" {
		return nil, errors.New("intent vacío")
	}
	var o domain.Order
	if err := r.db.WithContext(ctx).First(&o, "intent_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

// Save hace upsert por intent_id: dos verificaciones concurrentes del mismo pago
// terminan en una sola fila, el primer número de orden y event id quedan, y los
// flags de conversión/notificación nunca vuelven a false.
func (r *OrderRepo) Save(ctx context.Context, o *domain.Order) error {
	return r.upsert(r.db.WithContext(ctx), o).Error
}

func (r *OrderRepo) upsert(db *gorm.DB, o *domain.Order) *gorm.DB {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	set := clause.AssignmentColumns([]string{
		"status", "amount_minor", "currency", "email", "name", "phone", "address",
		"customer_id", "updated_at",
	})
	set = append(set, clause.Assignments(map[string]interface{}{
		"conversion_sent": gorm.Expr("orders.conversion_sent OR excluded.conversion_sent"),
		"notified":        gorm.Expr("orders.notified OR excluded.notified"),
	})...)
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "intent_id"}},
		DoUpdates: set,
	}).Create(o)
}

func (r *OrderRepo) ListCommitted(ctx context.Context) ([]domain.Order, error) {
	var list []domain.Order
	err := r.db.WithContext(ctx).
		Where("status IN ?", []string{string(domain.PaymentSucceeded), string(domain.PaymentProcessing)}).
		Order("created_at desc").Find(&list).Error
	return list, err
}
