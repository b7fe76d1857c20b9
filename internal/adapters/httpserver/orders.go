package httpserver

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/phenrril/kambashop/internal/domain"
	"github.com/phenrril/kambashop/internal/usecase"
)

// apiOrdersVerify es el colaborador de verificación del lado servidor.
func (s *Server) apiOrdersVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := s.Ledger.Verify(r.Context(), domain.VerifyRequest{
		IntentID:    q.Get("intent"),
		OrderNumber: q.Get("order_id"),
		EventID:     q.Get("event_id"),
		Customer: domain.CustomerIdentity{
			Email:   q.Get("email"),
			Name:    q.Get("name"),
			Phone:   q.Get("phone"),
			Address: q.Get("address"),
		},
	})
	if err != nil {
		if errors.Is(err, usecase.ErrMissingIntent) {
			badRequest(w, err.Error())
			return
		}
		log.Error().Err(err).Str("intent", q.Get("intent")).Msg("verify order")
		writeJSON(w, http.StatusBadGateway, apiError{Error: "verify_failed"})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAdminExport(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	orders, err := s.Ledger.ListCommitted(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := s.Exporter.WriteOrders(&buf, orders); err != nil {
		respondError(w, r, err)
		return
	}
	name := fmt.Sprintf("ordenes-%s.xlsx", time.Now().Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	_, _ = w.Write(buf.Bytes())
}
