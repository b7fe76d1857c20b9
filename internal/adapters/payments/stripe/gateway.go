package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"

	"github.com/phenrril/kambashop/internal/domain"
	"github.com/phenrril/kambashop/pkg/circuitbreaker"
)

// Gateway habla con la API REST de payment intents (form-encoded, bearer token).
type Gateway struct {
	baseURL    string
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker[[]byte]
}

func NewGateway(secretKey, baseURL string, timeout time.Duration) *Gateway {
	base := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: secretKey, TokenType: "Bearer"}))
	hc.Timeout = timeout
	return newGateway(hc, baseURL)
}

func newGateway(hc *http.Client, baseURL string) *Gateway {
	o := circuitbreaker.DefaultOptions()
	o.IsSuccessful = func(err error) bool {
		var pe *domain.PaymentError
		return err == nil || errors.As(err, &pe)
	}
	return &Gateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: hc,
		cb:         circuitbreaker.New[[]byte]("payments", o),
	}
}

type apiError struct {
	Error struct {
		Type        string `json:"type"`
		Code        string `json:"code"`
		DeclineCode string `json:"decline_code"`
		Message     string `json:"message"`
	} `json:"error"`
}

type intentResp struct {
	ID               string `json:"id"`
	ClientSecret     string `json:"client_secret"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
	LastPaymentError *struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
	NextAction *struct {
		Type          string `json:"type"`
		RedirectToURL *struct {
			URL string `json:"url"`
		} `json:"redirect_to_url"`
	} `json:"next_action"`
}

func (g *Gateway) do(ctx context.Context, method, path string, form url.Values) ([]byte, error) {
	body, err := g.cb.Execute(func() ([]byte, error) {
		var rd io.Reader
		if form != nil {
			rd = strings.NewReader(form.Encode())
		}
		req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, rd)
		if err != nil {
			return nil, err
		}
		if form != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
		res, err := g.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("error de conexión con el proveedor de pagos: %w", err)
		}
		defer res.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
		if res.StatusCode >= 300 {
			var ae apiError
			if jerr := json.Unmarshal(b, &ae); jerr == nil && ae.Error.Message != "" {
				// errores de tarjeta: los resuelve el comprador, no el sistema
				if res.StatusCode == http.StatusPaymentRequired || ae.Error.Type == "card_error" {
					code := ae.Error.DeclineCode
					if code == "" {
						code = ae.Error.Code
					}
					return nil, &domain.PaymentError{Code: code, Message: ae.Error.Message}
				}
				if res.StatusCode == 401 || res.StatusCode == 403 {
					return nil, fmt.Errorf("credenciales de pagos inválidas (status %d): %s", res.StatusCode, ae.Error.Message)
				}
				return nil, fmt.Errorf("error del proveedor de pagos (status %d): %s", res.StatusCode, ae.Error.Message)
			}
			return nil, fmt.Errorf("payments status %d: %s", res.StatusCode, strings.TrimSpace(string(b)))
		}
		return b, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	return body, err
}

func (g *Gateway) CreateIntent(ctx context.Context, amountMinor int64, currency string) (*domain.PaymentIntentRef, error) {
	if amountMinor <= 0 {
		return nil, errors.New("monto inválido")
	}
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amountMinor, 10))
	form.Set("currency", strings.ToLower(currency))
	form.Set("automatic_payment_methods[enabled]", "true")
	b, err := g.do(ctx, http.MethodPost, "/v1/payment_intents", form)
	if err != nil {
		return nil, err
	}
	var pi intentResp
	if err := json.Unmarshal(b, &pi); err != nil {
		return nil, err
	}
	if pi.ID == "" || pi.ClientSecret == "" {
		return nil, errors.New("respuesta de pagos incompleta")
	}
	return &domain.PaymentIntentRef{ID: pi.ID, ClientSecret: pi.ClientSecret, AmountMinor: pi.Amount, Currency: strings.ToUpper(pi.Currency)}, nil
}

// IntentIDFromSecret: el client secret tiene la forma <intent>_secret_<x>.
func IntentIDFromSecret(secret string) (string, bool) {
	i := strings.Index(secret, "_secret_")
	if i <= 0 {
		return "", false
	}
	return secret[:i], true
}

func (g *Gateway) ConfirmIntent(ctx context.Context, clientSecret string, billing domain.BillingDetails, shipping domain.ShippingDetails, returnURL string) (string, error) {
	id, ok := IntentIDFromSecret(clientSecret)
	if !ok {
		return "", errors.New("client secret inválido")
	}
	form := url.Values{}
	form.Set("client_secret", clientSecret)
	form.Set("return_url", returnURL)
	if billing.Email != "" {
		form.Set("receipt_email", billing.Email)
	}
	form.Set("payment_method_data[billing_details][name]", billing.FullName())
	form.Set("payment_method_data[billing_details][email]", billing.Email)
	if billing.Phone != "" {
		form.Set("payment_method_data[billing_details][phone]", billing.Phone)
	}
	form.Set("shipping[name]", billing.FullName())
	if billing.Phone != "" {
		form.Set("shipping[phone]", billing.Phone)
	}
	form.Set("shipping[address][line1]", shipping.Address)
	form.Set("shipping[address][city]", shipping.City)
	form.Set("shipping[address][postal_code]", shipping.PostalCode)
	if shipping.Country != "" {
		form.Set("shipping[address][country]", shipping.Country)
	}

	b, err := g.do(ctx, http.MethodPost, "/v1/payment_intents/"+url.PathEscape(id)+"/confirm", form)
	if err != nil {
		return "", err
	}
	var pi intentResp
	if err := json.Unmarshal(b, &pi); err != nil {
		return "", err
	}
	if pi.NextAction != nil && pi.NextAction.RedirectToURL != nil && pi.NextAction.RedirectToURL.URL != "" {
		return pi.NextAction.RedirectToURL.URL, nil
	}
	if pi.Status == string(domain.PaymentRequiresPaymentMethod) && pi.LastPaymentError != nil {
		return "", &domain.PaymentError{Message: pi.LastPaymentError.Message}
	}
	// sin acción pendiente el proveedor ya resolvió: volvemos directo a la confirmación
	return withIntentParams(returnURL, pi.ID, clientSecret, pi.Status), nil
}

func withIntentParams(returnURL, id, secret, status string) string {
	u, err := url.Parse(returnURL)
	if err != nil {
		return returnURL
	}
	q := u.Query()
	q.Set("payment_intent", id)
	q.Set("payment_intent_client_secret", secret)
	if status != "" {
		q.Set("redirect_status", status)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (g *Gateway) RetrieveIntent(ctx context.Context, intentID string) (*domain.PaymentIntent, error) {
	if strings.TrimSpace(intentID) == "" {
		return nil, errors.New("intent vacío")
	}
	b, err := g.do(ctx, http.MethodGet, "/v1/payment_intents/"+url.PathEscape(intentID), nil)
	if err != nil {
		return nil, err
	}
	var pi intentResp
	if err := json.Unmarshal(b, &pi); err != nil {
		return nil, err
	}
	out := &domain.PaymentIntent{ID: pi.ID, Status: domain.PaymentStatus(pi.Status), AmountMinor: pi.Amount, Currency: strings.ToUpper(pi.Currency)}
	if pi.LastPaymentError != nil {
		out.LastError = pi.LastPaymentError.Message
	}
	return out, nil
}
