package httpserver

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/phenrril/kambashop/internal/domain"
	"github.com/phenrril/kambashop/internal/usecase"
)

// SessionStores entrega el KeyValueStore del navegador que hizo el request.
// Puede escribir cookies, así que se llama antes de empezar la respuesta.
type SessionStores interface {
	For(w http.ResponseWriter, r *http.Request) domain.KeyValueStore
}

type Deps struct {
	Sessions     SessionStores
	Pricing      usecase.Pricing
	Products     *usecase.ProductUC
	Gateway      domain.PaymentGateway
	Verification *usecase.VerificationUC
	Ledger       *usecase.OrderLedgerUC
	Exporter     domain.OrderExporter
	// ReturnURL es la página de confirmación a la que vuelve el proveedor de pagos.
	ReturnURL   string
	AdminToken  string
	CORSOrigins []string
}

type Server struct {
	Deps
	router chi.Router
}

func New(d Deps) http.Handler {
	s := &Server{Deps: d, router: chi.NewRouter()}
	s.routes()
	return Chain(s.router,
		NoStore,
		Recovery,
		Logging,
		RequestID,
		func(h http.Handler) http.Handler { return otelhttp.NewHandler(h, "kambashop") },
	)
}

func (s *Server) routes() {
	r := s.router
	if len(s.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", s.apiProducts)
		r.Get("/products/{ref}", s.apiProduct)

		r.Get("/cart", s.apiCart)
		r.Delete("/cart", s.apiCartClear)
		r.Post("/cart/lines", s.apiCartAdd)
		r.Patch("/cart/lines/{id}", s.apiCartUpdate)
		r.Delete("/cart/lines/{id}", s.apiCartRemove)

		r.Get("/favorites", s.apiFavorites)
		r.Post("/favorites", s.apiFavoritesAdd)
		r.Get("/favorites/{productID}", s.apiFavoriteCheck)
		r.Delete("/favorites/{productID}", s.apiFavoritesRemove)

		r.Get("/checkout", s.apiCheckoutSession)
		r.Post("/checkout/intent", s.apiCheckoutIntent)
		r.Post("/checkout/confirm", s.apiCheckoutConfirm)
		r.Get("/checkout/confirmation", s.apiCheckoutConfirmation)

		r.Get("/orders/verify", s.apiOrdersVerify)
	})

	r.Get("/admin/orders/export.xlsx", s.handleAdminExport)
}

type apiError struct {
	Error   string             `json:"error"`
	Message string             `json:"message,omitempty"`
	Code    string             `json:"code,omitempty"`
	Fields  domain.FieldErrors `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	return dec.Decode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, apiError{Error: "bad_request", Message: msg})
}

// respondError traduce errores de dominio a HTTP. Validación y rechazos de pago no se
// loguean como errores del sistema.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *domain.ValidationError
	var pe *domain.PaymentError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, apiError{Error: "validation", Fields: ve.Fields})
	case errors.As(err, &pe):
		writeJSON(w, http.StatusPaymentRequired, apiError{Error: "payment_error", Message: pe.Message, Code: pe.Code})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, apiError{Error: "not_found"})
	case errors.Is(err, domain.ErrInvalidQuantity):
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid_quantity", Message: err.Error()})
	case errors.Is(err, domain.ErrStorageFull):
		writeJSON(w, http.StatusConflict, apiError{Error: "storage_full", Message: "No hay lugar para guardar más productos en esta sesión."})
	case errors.Is(err, domain.ErrEmptyCart):
		writeJSON(w, http.StatusConflict, apiError{Error: "empty_cart", Message: err.Error()})
	case errors.Is(err, domain.ErrNoActiveIntent), errors.Is(err, domain.ErrIllegalTransition):
		writeJSON(w, http.StatusConflict, apiError{Error: "checkout_state", Message: err.Error()})
	case errors.Is(err, domain.ErrGatewayUnavailable), errors.Is(err, domain.ErrVerifierUnavailable):
		log.Warn().Err(err).Str("path", r.URL.Path).Msg("colaborador no disponible")
		writeJSON(w, http.StatusServiceUnavailable, apiError{Error: "unavailable", Message: "Servicio no disponible, probá de nuevo."})
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Str("req_id", requestID(r.Context())).Msg("request")
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "internal"})
	}
}

func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	tok := ""
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		tok = strings.TrimSpace(auth[7:])
	}
	if tok == "" {
		tok = r.URL.Query().Get("token")
	}
	if s.AdminToken != "" && tok != "" && subtle.ConstantTimeCompare([]byte(tok), []byte(s.AdminToken)) == 1 {
		return true
	}
	http.Error(w, "unauthorized", http.StatusUnauthorized)
	return false
}
