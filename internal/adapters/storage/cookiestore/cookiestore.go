package cookiestore

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"sync"

	zlog "github.com/rs/zerolog/log"

	"github.com/phenrril/kambashop/internal/domain"
)

// maxCookieValue deja margen para nombre y atributos dentro de los 4KB por cookie.
const maxCookieValue = 3800

var ErrTooLarge = fmt.Errorf("valor demasiado grande para cookie: %w", domain.ErrStorageFull)

// Store persiste cada clave en una cookie firmada (HMAC-SHA256). Vive lo que dura
// un request: lo escrito queda visible para lecturas posteriores del mismo request.
type Store struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	r       *http.Request
	secret  []byte
	maxAge  int
	written map[string][]byte
}

func New(w http.ResponseWriter, r *http.Request, secret []byte, maxAge int) *Store {
	return &Store{w: w, r: r, secret: secret, maxAge: maxAge, written: map[string][]byte{}}
}

func cookieName(key string) string {
	var b strings.Builder
	b.WriteString("ks_")
	for _, c := range key {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			b.WriteRune(c)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func (s *Store) sign(payload []byte) []byte {
	h := hmac.New(sha256.New, s.secret)
	h.Write(payload)
	return h.Sum(nil)
}

func (s *Store) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.written[key]; ok {
		return v, nil
	}
	c, err := s.r.Cookie(cookieName(key))
	if err != nil {
		return nil, nil
	}
	parts := strings.SplitN(c.Value, ".", 2)
	if len(parts) != 2 {
		return nil, nil
	}
	sig, _ := base64.RawURLEncoding.DecodeString(parts[0])
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, nil
	}
	if !hmac.Equal(sig, s.sign(payload)) {
		zlog.Warn().Str("cookie", c.Name).Msg("firma de cookie inválida, se ignora")
		return nil, nil
	}
	return payload, nil
}

func (s *Store) Save(_ context.Context, key string, value []byte) error {
	val := base64.RawURLEncoding.EncodeToString(s.sign(value)) + "." + base64.RawURLEncoding.EncodeToString(value)
	if len(val) > maxCookieValue {
		return ErrTooLarge
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	s.written[key] = v
	http.SetCookie(s.w, &http.Cookie{Name: cookieName(key), Value: val, Path: "/", MaxAge: s.maxAge, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	return nil
}

// Provider arma un Store por request.
type Provider struct {
	Secret []byte
	MaxAge int
}

func (p Provider) For(w http.ResponseWriter, r *http.Request) domain.KeyValueStore {
	maxAge := p.MaxAge
	if maxAge == 0 {
		maxAge = 60 * 60 * 24 * 7
	}
	return New(w, r, p.Secret, maxAge)
}
