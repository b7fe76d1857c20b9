package verifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/phenrril/kambashop/internal/domain"
	"github.com/phenrril/kambashop/pkg/circuitbreaker"
)

// Client consulta el endpoint de verificación de órdenes por HTTP.
type Client struct {
	endpoint string
	hc       *http.Client
	cb       *gobreaker.CircuitBreaker[domain.VerifyResult]
}

func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	hc := &http.Client{Timeout: timeout, Transport: otelhttp.NewTransport(http.DefaultTransport)}
	return newClient(endpoint, hc)
}

func newClient(endpoint string, hc *http.Client) *Client {
	return &Client{
		endpoint: endpoint,
		hc:       hc,
		cb:       circuitbreaker.New[domain.VerifyResult]("order-verifier", circuitbreaker.DefaultOptions()),
	}
}

func (c *Client) Verify(ctx context.Context, req domain.VerifyRequest) (domain.VerifyResult, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return domain.VerifyResult{}, err
	}
	q := u.Query()
	q.Set("intent", req.IntentID)
	q.Set("order_id", req.OrderNumber)
	q.Set("event_id", req.EventID)
	setIf(q, "email", req.Customer.Email)
	setIf(q, "name", req.Customer.Name)
	setIf(q, "phone", req.Customer.Phone)
	setIf(q, "address", req.Customer.Address)
	u.RawQuery = q.Encode()

	res, err := c.cb.Execute(func() (domain.VerifyResult, error) {
		var out domain.VerifyResult
		hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return out, err
		}
		hreq.Header.Set("Accept", "application/json")
		resp, err := c.hc.Do(hreq)
		if err != nil {
			return out, err
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		if resp.StatusCode != http.StatusOK {
			return out, fmt.Errorf("verify status %d", resp.StatusCode)
		}
		if err := json.Unmarshal(b, &out); err != nil {
			return out, fmt.Errorf("verify: respuesta inválida: %w", err)
		}
		if out.Status == "" {
			return out, errors.New("verify: respuesta sin status")
		}
		return out, nil
	})
	if err != nil {
		return domain.VerifyResult{}, fmt.Errorf("%w: %v", domain.ErrVerifierUnavailable, err)
	}
	return res, nil
}

func setIf(q url.Values, k, v string) {
	if v != "" {
		q.Set(k, v)
	}
}
