package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phenrril/kambashop/internal/domain"
)

func TestPixelTrackSendsBeacon(t *testing.T) {
	got := make(chan url.Values, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got <- r.URL.Query()
	}))
	defer srv.Close()

	p := NewPixel("123", srv.URL+"/tr")
	ctx, cancel := context.WithCancel(context.Background())
	p.Track(ctx, "Purchase", domain.PurchaseProps{Value: decimal.RequireFromString("139.9"), Currency: "EUR", OrderID: "KMB-2026-000001"}, domain.TrackOptions{EventID: "purchase_KMB-2026-000001_1"})
	// cancelar el request no corta el beacon
	cancel()
	p.Wait()

	q := <-got
	assert.Equal(t, "123", q.Get("id"))
	assert.Equal(t, "Purchase", q.Get("ev"))
	assert.Equal(t, "purchase_KMB-2026-000001_1", q.Get("eid"))
	assert.Equal(t, "139.90", q.Get("cd[value]"))
	assert.Equal(t, "EUR", q.Get("cd[currency]"))
	assert.Equal(t, "KMB-2026-000001", q.Get("cd[order_id]"))
}

func TestPixelUnconfiguredIsNoop(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	p := NewPixel("", srv.URL)
	p.Track(context.Background(), "Purchase", domain.PurchaseProps{}, domain.TrackOptions{})
	p.Wait()
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestConversionsSendPurchase(t *testing.T) {
	var body struct {
		Data []serverEvent `json:"data"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/px1/events", r.URL.Path)
		assert.Equal(t, "tok", r.URL.Query().Get("access_token"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"events_received":1}`))
	}))
	defer srv.Close()

	c := NewConversions(srv.URL, "px1", "tok")
	c.now = func() time.Time { return time.Unix(1700000000, 0) }
	err := c.SendPurchase(context.Background(), &domain.Order{
		EventID: "purchase_KMB-2026-000001_1", OrderNumber: "KMB-2026-000001",
		AmountMinor: 13990, Currency: "EUR", Email: " Ana@Example.com ",
	})
	require.NoError(t, err)
	require.Len(t, body.Data, 1)
	ev := body.Data[0]
	assert.Equal(t, "Purchase", ev.EventName)
	assert.Equal(t, "purchase_KMB-2026-000001_1", ev.EventID)
	assert.Equal(t, int64(1700000000), ev.EventTime)
	assert.Equal(t, "139.90", ev.CustomData.Value)
	assert.Equal(t, hashed("ana@example.com"), ev.UserData.Em)
	assert.Empty(t, ev.UserData.Ph)
}

func TestConversionsErrors(t *testing.T) {
	c := NewConversions("", "", "")
	assert.ErrorIs(t, c.SendPurchase(context.Background(), &domain.Order{EventID: "x"}), ErrConversionsDisabled)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()
	c = NewConversions(srv.URL, "px1", "tok")
	assert.Error(t, c.SendPurchase(context.Background(), &domain.Order{}))
	assert.Error(t, c.SendPurchase(context.Background(), &domain.Order{EventID: "e"}))
}
