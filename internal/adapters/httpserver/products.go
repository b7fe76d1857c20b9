package httpserver

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/phenrril/kambashop/internal/domain"
)

func (s *Server) apiProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("page_size"))
	list, total, err := s.Products.List(r.Context(), domain.ProductFilter{
		Category: q.Get("category"),
		Query:    q.Get("q"),
		Page:     page,
		PageSize: size,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	if list == nil {
		list = []domain.Product{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": list, "total": total})
}

func (s *Server) apiProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.Products.Get(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
