package analytics

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/phenrril/kambashop/internal/domain"
)

const DefaultConversionsEndpoint = "https://graph.facebook.com/v19.0"

// Conversions envía el evento de compra server-side, deduplicado contra el beacon
// del navegador por event_id.
type Conversions struct {
	endpoint string
	pixelID  string
	token    string
	hc       *http.Client
	now      func() time.Time
}

func NewConversions(endpoint, pixelID, token string) *Conversions {
	if endpoint == "" {
		endpoint = DefaultConversionsEndpoint
	}
	return &Conversions{
		endpoint: strings.TrimRight(endpoint, "/"),
		pixelID:  pixelID,
		token:    token,
		hc:       &http.Client{Timeout: 10 * time.Second, Transport: otelhttp.NewTransport(http.DefaultTransport)},
		now:      time.Now,
	}
}

var ErrConversionsDisabled = errors.New("conversions api sin configurar")

type userData struct {
	Em []string `json:"em,omitempty"`
	Ph []string `json:"ph,omitempty"`
}

type customData struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
	OrderID  string `json:"order_id,omitempty"`
}

type serverEvent struct {
	EventName    string     `json:"event_name"`
	EventTime    int64      `json:"event_time"`
	EventID      string     `json:"event_id"`
	ActionSource string     `json:"action_source"`
	UserData     userData   `json:"user_data"`
	CustomData   customData `json:"custom_data"`
}

func hashed(v string) []string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return nil
	}
	sum := sha256.Sum256([]byte(v))
	return []string{hex.EncodeToString(sum[:])}
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (c *Conversions) SendPurchase(ctx context.Context, o *domain.Order) error {
	if c == nil || c.pixelID == "" || c.token == "" {
		return ErrConversionsDisabled
	}
	if o == nil || o.EventID == "" {
		return errors.New("orden sin event id")
	}
	ev := serverEvent{
		EventName:    "Purchase",
		EventTime:    c.now().Unix(),
		EventID:      o.EventID,
		ActionSource: "website",
		UserData:     userData{Em: hashed(o.Email), Ph: hashed(digitsOnly(o.Phone))},
		CustomData:   customData{Value: o.Amount().StringFixed(2), Currency: o.Currency, OrderID: o.OrderNumber},
	}
	body, err := json.Marshal(map[string]any{"data": []serverEvent{ev}})
	if err != nil {
		return err
	}
	u := fmt.Sprintf("%s/%s/events?access_token=%s", c.endpoint, url.PathEscape(c.pixelID), url.QueryEscape(c.token))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("conversions status %d: %s", res.StatusCode, strings.TrimSpace(string(b)))
	}
	return nil
}
