package notify

import (
	"context"
	"fmt"
	"strings"

	zlog "github.com/rs/zerolog/log"
	"gopkg.in/gomail.v2"

	"github.com/phenrril/kambashop/internal/domain"
	"github.com/phenrril/kambashop/internal/usecase"
)

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer avisa por email de cada orden con fondos comprometidos.
type Mailer struct {
	from string
	to   string
	d    dialer
}

// NewMailer devuelve nil si SMTP no está configurado; NotifyOrder sobre nil no hace nada.
func NewMailer(host string, port int, user, pass, to string) *Mailer {
	if host == "" || user == "" || pass == "" || to == "" {
		return nil
	}
	if port == 0 {
		port = 587
	}
	return &Mailer{from: user, to: to, d: gomail.NewDialer(host, port, user, pass)}
}

func (m *Mailer) NotifyOrder(ctx context.Context, o *domain.Order) error {
	if m == nil {
		zlog.Warn().Msg("SMTP no configurado, se omite envío de email")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", m.to)
	msg.SetHeader("Subject", orderSubject(o))
	msg.SetBody("text/plain", orderSummary(o))
	if err := m.d.DialAndSend(msg); err != nil {
		zlog.Error().Err(err).Str("order", o.OrderNumber).Msg("email send")
		return err
	}
	return nil
}

func orderSubject(o *domain.Order) string {
	status := "PAGO APROBADO"
	if o.Status == domain.PaymentProcessing {
		status = "PAGO EN PROCESO"
	}
	return fmt.Sprintf("Nueva orden %s #%s", status, o.OrderNumber)
}

func orderSummary(o *domain.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Orden: %s\n", o.OrderNumber)
	fmt.Fprintf(&b, "Estado: %s\n", o.Status)
	fmt.Fprintf(&b, "Intento: %s\n", o.IntentID)
	fmt.Fprintf(&b, "Nombre: %s\nEmail: %s\nTel: %s\n", o.Name, o.Email, o.Phone)
	if o.Address != "" {
		fmt.Fprintf(&b, "Envío a: %s\n", o.Address)
	}
	fmt.Fprintf(&b, "Total: %s\n", usecase.FormatMoney(o.Amount(), o.Currency))
	return b.String()
}
