package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/phenrril/kambashop/internal/domain"
)

// Deduper marca una clave como vista; devuelve true si ya lo estaba.
type Deduper interface {
	Seen(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// OrderLedgerUC es el lado servidor de la verificación: consulta el estado real al
// proveedor, registra la orden y envía la conversión server-side con el mismo event id
// que usa el beacon del navegador.
type OrderLedgerUC struct {
	Gateway     domain.PaymentGateway
	Orders      domain.OrderRepo
	Customers   domain.CustomerRepo
	Conversions domain.ConversionSender
	Dedup       Deduper
	Notifier    domain.Notifier

	sfg singleflight.Group
}

var ErrMissingIntent = errors.New("falta el intento de pago")

// Verify es idempotente por intento: repetirlo devuelve el mismo estado y no vuelve a
// emitir la conversión.
func (uc *OrderLedgerUC) Verify(ctx context.Context, req domain.VerifyRequest) (domain.VerifyResult, error) {
	intentID := strings.TrimSpace(req.IntentID)
	if intentID == "" {
		return domain.VerifyResult{}, ErrMissingIntent
	}
	v, err, _ := uc.sfg.Do(intentID, func() (interface{}, error) {
		return uc.verify(ctx, intentID, req)
	})
	if err != nil {
		return domain.VerifyResult{}, err
	}
	return v.(domain.VerifyResult), nil
}

func (uc *OrderLedgerUC) verify(ctx context.Context, intentID string, req domain.VerifyRequest) (domain.VerifyResult, error) {
	pi, err := uc.Gateway.RetrieveIntent(ctx, intentID)
	if err != nil {
		return domain.VerifyResult{}, err
	}

	o, err := uc.Orders.FindByIntentID(ctx, intentID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.VerifyResult{}, err
	}
	if o == nil {
		o = &domain.Order{ID: uuid.New(), IntentID: intentID, CreatedAt: time.Now()}
	}
	// el primer número de orden / event id registrado se conserva
	if o.OrderNumber == "" {
		o.OrderNumber = strings.TrimSpace(req.OrderNumber)
	}
	if o.EventID == "" {
		o.EventID = strings.TrimSpace(req.EventID)
	}
	o.Status = pi.Status
	o.AmountMinor = pi.AmountMinor
	o.Currency = strings.ToUpper(pi.Currency)
	fillCustomer(o, req.Customer)
	uc.linkCustomer(ctx, o)

	if pi.Status.Commits() && !o.ConversionSent && o.EventID != "" && uc.Conversions != nil {
		seen := false
		if uc.Dedup != nil {
			var derr error
			seen, derr = uc.Dedup.Seen(ctx, "conv:"+intentID)
			if derr != nil {
				zlog.Warn().Err(derr).Str("intent", intentID).Msg("idempotencia no disponible, uso el flag de la orden")
			}
		}
		if !seen {
			if err := uc.Conversions.SendPurchase(ctx, o); err != nil {
				zlog.Error().Err(err).Str("intent", intentID).Str("event_id", o.EventID).Msg("conversión server-side")
				if uc.Dedup != nil {
					if rerr := uc.Dedup.Release(ctx, "conv:"+intentID); rerr != nil {
						zlog.Warn().Err(rerr).Str("intent", intentID).Msg("liberar idempotencia")
					}
				}
			} else {
				o.ConversionSent = true
			}
		}
		// seen: otro proceso la está enviando; el flag lo marca quien la envía
	}

	notify := pi.Status.Commits() && !o.Notified
	if notify {
		o.Notified = true
	}
	if err := uc.Orders.Save(ctx, o); err != nil {
		return domain.VerifyResult{}, err
	}
	// otra instancia pudo registrar el intento antes: los identificadores guardados mandan
	if stored, err := uc.Orders.FindByIntentID(ctx, intentID); err == nil && stored.OrderNumber != "" {
		o.OrderNumber, o.EventID = stored.OrderNumber, stored.EventID
	}
	if notify && uc.Notifier != nil {
		order := *o
		go func() {
			if err := uc.Notifier.NotifyOrder(context.Background(), &order); err != nil {
				zlog.Warn().Err(err).Str("order", order.OrderNumber).Msg("notificar orden")
			}
		}()
	}
	return domain.VerifyResult{Status: pi.Status, AmountMinor: pi.AmountMinor, OrderNumber: o.OrderNumber, EventID: o.EventID}, nil
}

func fillCustomer(o *domain.Order, c domain.CustomerIdentity) {
	if o.Email == "" {
		o.Email = strings.ToLower(strings.TrimSpace(c.Email))
	}
	if o.Name == "" {
		o.Name = strings.TrimSpace(c.Name)
	}
	if o.Phone == "" {
		o.Phone = strings.TrimSpace(c.Phone)
	}
	if o.Address == "" {
		o.Address = strings.TrimSpace(c.Address)
	}
}

// linkCustomer es best-effort: si falla la orden se guarda igual.
func (uc *OrderLedgerUC) linkCustomer(ctx context.Context, o *domain.Order) {
	if uc.Customers == nil || o.Email == "" || o.CustomerID != nil {
		return
	}
	c, err := uc.Customers.FindByEmail(ctx, o.Email)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		zlog.Warn().Err(err).Msg("buscar cliente")
		return
	}
	if c == nil {
		c = &domain.Customer{ID: uuid.New(), Email: o.Email, Name: o.Name, Phone: o.Phone, Address: o.Address}
		if err := uc.Customers.Save(ctx, c); err != nil {
			zlog.Warn().Err(err).Msg("guardar cliente")
			return
		}
	}
	id := c.ID
	o.CustomerID = &id
}

// ListCommitted lista las órdenes con fondos comprometidos (para exportar).
func (uc *OrderLedgerUC) ListCommitted(ctx context.Context) ([]domain.Order, error) {
	return uc.Orders.ListCommitted(ctx)
}
