package analytics

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/phenrril/kambashop/internal/domain"
)

const DefaultPixelEndpoint = "https://www.facebook.com/tr"

// Pixel emite el beacon de conversión como un GET al endpoint del pixel.
// Track no bloquea: el envío corre en segundo plano y los errores sólo se loguean.
type Pixel struct {
	id       string
	endpoint string
	hc       *http.Client
	timeout  time.Duration
	wg       sync.WaitGroup
}

func NewPixel(id, endpoint string) *Pixel {
	if endpoint == "" {
		endpoint = DefaultPixelEndpoint
	}
	return &Pixel{
		id:       id,
		endpoint: endpoint,
		hc:       &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		timeout:  5 * time.Second,
	}
}

func (p *Pixel) Track(ctx context.Context, event string, props domain.PurchaseProps, opts domain.TrackOptions) {
	if p == nil || p.id == "" {
		zlog.Debug().Str("event", event).Str("event_id", opts.EventID).Msg("pixel sin configurar, beacon omitido")
		return
	}
	u, err := url.Parse(p.endpoint)
	if err != nil {
		zlog.Warn().Err(err).Msg("pixel endpoint inválido")
		return
	}
	q := u.Query()
	q.Set("id", p.id)
	q.Set("ev", event)
	if opts.EventID != "" {
		q.Set("eid", opts.EventID)
	}
	q.Set("cd[value]", props.Value.StringFixed(2))
	q.Set("cd[currency]", props.Currency)
	if props.OrderID != "" {
		q.Set("cd[order_id]", props.OrderID)
	}
	q.Set("noscript", "1")
	u.RawQuery = q.Encode()

	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer cancel()
		req, err := http.NewRequestWithContext(bg, http.MethodGet, u.String(), nil)
		if err != nil {
			return
		}
		res, err := p.hc.Do(req)
		if err != nil {
			zlog.Warn().Err(err).Str("event", event).Msg("pixel beacon")
			return
		}
		res.Body.Close()
		if res.StatusCode >= 300 {
			zlog.Warn().Int("status", res.StatusCode).Str("event", event).Msg("pixel beacon")
		}
	}()
}

// Wait espera a que terminen los beacons en vuelo (apagado ordenado y tests).
func (p *Pixel) Wait() {
	p.wg.Wait()
}
