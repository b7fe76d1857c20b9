package httpserver

import (
	"net/http"
	"strings"

	"github.com/phenrril/kambashop/internal/adapters/storage"
	"github.com/phenrril/kambashop/internal/domain"
	"github.com/phenrril/kambashop/internal/usecase"
)

type checkoutView struct {
	State        domain.CheckoutState `json:"state"`
	IntentID     string               `json:"intentId,omitempty"`
	ClientSecret string               `json:"clientSecret,omitempty"`
	AmountMinor  int64                `json:"amountMinorUnits,omitempty"`
	Currency     string               `json:"currency,omitempty"`
	Error        string               `json:"error,omitempty"`
	Cart         cartView             `json:"cart"`
}

func (s *Server) checkoutFor(w http.ResponseWriter, r *http.Request) (domain.KeyValueStore, *usecase.CartStore, *usecase.CheckoutUC) {
	kv, c := s.cartFor(w, r)
	return kv, c, usecase.NewCheckoutUC(kv, c, s.Gateway, s.ReturnURL)
}

func (s *Server) viewCheckout(sess domain.CheckoutSession, c *usecase.CartStore) checkoutView {
	v := checkoutView{State: sess.State, Error: sess.LastError, Cart: s.viewCart(c)}
	if sess.Intent != nil {
		v.IntentID = sess.Intent.ID
		v.ClientSecret = sess.Intent.ClientSecret
		v.AmountMinor = sess.Intent.AmountMinor
		v.Currency = sess.Intent.Currency
	}
	return v
}

func (s *Server) apiCheckoutSession(w http.ResponseWriter, r *http.Request) {
	_, c, uc := s.checkoutFor(w, r)
	writeJSON(w, http.StatusOK, s.viewCheckout(uc.Session(r.Context()), c))
}

func (s *Server) apiCheckoutIntent(w http.ResponseWriter, r *http.Request) {
	_, c, uc := s.checkoutFor(w, r)
	sess, err := uc.Begin(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.viewCheckout(sess, c))
}

type confirmReq struct {
	Billing  domain.BillingDetails  `json:"billing"`
	Shipping domain.ShippingDetails `json:"shipping"`
}

func (s *Server) apiCheckoutConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmReq
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "json inválido")
		return
	}
	_, _, uc := s.checkoutFor(w, r)
	redirect, err := uc.Submit(r.Context(), req.Billing, req.Shipping)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"redirect": redirect})
}

// apiCheckoutConfirmation es la carga de la página de confirmación a la vuelta del
// proveedor. El intento sale del query string, no de la sesión.
func (s *Server) apiCheckoutConfirmation(w http.ResponseWriter, r *http.Request) {
	intentID := strings.TrimSpace(r.URL.Query().Get("payment_intent"))
	if intentID == "" {
		badRequest(w, "payment_intent requerido")
		return
	}
	kv, c, uc := s.checkoutFor(w, r)
	var customer domain.CustomerIdentity
	if sess := uc.Session(r.Context()); sess.Customer != nil {
		customer = *sess.Customer
	}
	res := s.Verification.NewConfirmation(kv, c, uc, storage.SessionID(w, r), intentID, customer).Resolve(r.Context())

	if res.Redirect != "" && wantsHTML(r) {
		http.Redirect(w, r, res.Redirect, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func wantsHTML(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html") && !strings.Contains(accept, "application/json")
}
