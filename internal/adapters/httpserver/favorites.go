package httpserver

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/phenrril/kambashop/internal/domain"
	"github.com/phenrril/kambashop/internal/usecase"
)

func (s *Server) favoritesFor(w http.ResponseWriter, r *http.Request) *usecase.FavoritesStore {
	return usecase.NewFavoritesStore(r.Context(), s.Sessions.For(w, r))
}

func favoritesList(f *usecase.FavoritesStore) map[string]any {
	entries := f.Snapshot()
	if entries == nil {
		entries = []domain.FavoriteEntry{}
	}
	return map[string]any{"favorites": entries, "count": len(entries)}
}

func (s *Server) apiFavorites(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, favoritesList(s.favoritesFor(w, r)))
}

type addFavoriteReq struct {
	Product string `json:"product"`
	Color   string `json:"color"`
	Size    string `json:"size"`
}

func (s *Server) apiFavoritesAdd(w http.ResponseWriter, r *http.Request) {
	var req addFavoriteReq
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "json inválido")
		return
	}
	if req.Product == "" {
		badRequest(w, "product requerido")
		return
	}
	p, err := s.Products.Get(r.Context(), req.Product)
	if err != nil {
		respondError(w, r, err)
		return
	}
	f := s.favoritesFor(w, r)
	if err := f.Add(r.Context(), p, req.Color, req.Size); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, favoritesList(f))
}

// favoriteProductID acepta uuid o slug, igual que el alta. Si el producto ya no
// existe en el catálogo se usa la referencia tal cual para poder borrarlo.
func (s *Server) favoriteProductID(r *http.Request) string {
	ref := strings.TrimSpace(chi.URLParam(r, "productID"))
	if ref == "" {
		return ""
	}
	if p, err := s.Products.Get(r.Context(), ref); err == nil {
		return p.ID.String()
	}
	return ref
}

func (s *Server) apiFavoriteCheck(w http.ResponseWriter, r *http.Request) {
	f := s.favoritesFor(w, r)
	pid := s.favoriteProductID(r)
	color := strings.TrimSpace(r.URL.Query().Get("color"))
	writeJSON(w, http.StatusOK, map[string]any{"productId": pid, "color": color, "favorite": f.IsFavorite(pid, color)})
}

func (s *Server) apiFavoritesRemove(w http.ResponseWriter, r *http.Request) {
	f := s.favoritesFor(w, r)
	f.Remove(r.Context(), s.favoriteProductID(r), r.URL.Query().Get("color"))
	writeJSON(w, http.StatusOK, favoritesList(f))
}
