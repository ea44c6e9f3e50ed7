// Package cookie stores session state client-side in an encrypted cookie.
//
// The store only works inside requests wrapped by Middleware, which binds the
// request and response writer to the context handed to Get, Put and Delete.
package cookie

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/DTPriya20/click-gait/internal/store"
	"github.com/DTPriya20/click-gait/pkg/models"
)

// DefaultName is the cookie carrying the sealed state.
const DefaultName = "gait_state"

// MaxCookieSize is the largest encoded cookie value Put will emit.
const MaxCookieSize = 4000

// keyContext separates cookie keys from any other use of the same secret.
const keyContext = "click-gait 2026-10 session cookie v1"

const nonceSize = 24

var (
	// ErrNoRequest is returned when the context was not prepared by Middleware.
	ErrNoRequest = errors.New("cookie store used outside Middleware")

	// ErrTooLarge is returned when the sealed state exceeds MaxCookieSize.
	ErrTooLarge = errors.New("sealed session state exceeds cookie size limit")
)

// Config holds cookie settings.
type Config struct {
	Secret string        // key material, required
	Name   string        // cookie name (default: DefaultName)
	TTL    time.Duration // sealed states older than this are ignored; 0 disables
	Secure bool          // set the Secure attribute
}

// Store seals states with XSalsa20-Poly1305 under a key derived from the
// configured secret.
type Store struct {
	key    [32]byte
	name   string
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

type payload struct {
	Key      string               `cbor:"k"`
	IssuedAt time.Time            `cbor:"t"`
	State    *models.SessionState `cbor:"s"`
}

type jar struct {
	r       *http.Request
	w       http.ResponseWriter
	pending map[string]*models.SessionState
}

type jarKey struct{}

// NewStore derives the sealing key from cfg.Secret.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Secret == "" {
		return nil, errors.New("cookie store: secret is required")
	}
	s := &Store{
		name:   cfg.Name,
		ttl:    cfg.TTL,
		secure: cfg.Secure,
		now:    time.Now,
	}
	if s.name == "" {
		s.name = DefaultName
	}
	blake3.DeriveKey(keyContext, []byte(cfg.Secret), s.key[:])
	return s, nil
}

// Middleware makes the request's cookies available to the store.
func (s *Store) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		j := &jar{r: r, w: w, pending: make(map[string]*models.SessionState)}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), jarKey{}, j)))
	})
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, key string) (*models.SessionState, error) {
	j, ok := ctx.Value(jarKey{}).(*jar)
	if !ok {
		return nil, ErrNoRequest
	}
	if state, ok := j.pending[key]; ok {
		return state.Clone(), nil
	}

	c, err := j.r.Cookie(s.name)
	if err != nil {
		return nil, nil
	}
	p, err := s.open(c.Value)
	if err != nil || p.Key != key || p.State == nil {
		// Tampered, foreign or stale cookies start a new session.
		return nil, nil
	}
	if s.ttl > 0 && s.now().Sub(p.IssuedAt) > s.ttl {
		return nil, nil
	}
	if p.State.Durations == nil {
		p.State.Durations = make(map[string]float64)
	}
	return p.State, nil
}

// Put implements store.Store.
func (s *Store) Put(ctx context.Context, key string, state *models.SessionState) error {
	j, ok := ctx.Value(jarKey{}).(*jar)
	if !ok {
		return ErrNoRequest
	}
	value, err := s.seal(payload{Key: key, IssuedAt: s.now(), State: state})
	if err != nil {
		return err
	}
	if len(value) > MaxCookieSize {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, len(value))
	}

	c := &http.Cookie{
		Name:     s.name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if s.ttl > 0 {
		c.MaxAge = int(s.ttl / time.Second)
	}
	s.replaceCookie(j.w, c)
	j.pending[key] = state.Clone()
	return nil
}

// Delete implements store.Store.
func (s *Store) Delete(ctx context.Context, key string) error {
	j, ok := ctx.Value(jarKey{}).(*jar)
	if !ok {
		return ErrNoRequest
	}
	s.replaceCookie(j.w, &http.Cookie{Name: s.name, Value: "", Path: "/", MaxAge: -1})
	j.pending[key] = nil
	return nil
}

// Close implements store.Store. There is nothing to release.
func (s *Store) Close() error { return nil }

func (s *Store) seal(p payload) (string, error) {
	plain, err := store.MarshalCBOR(p)
	if err != nil {
		return "", fmt.Errorf("encode cookie payload: %w", err)
	}
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], plain, &nonce, &s.key)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (s *Store) open(value string) (*payload, error) {
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, err
	}
	if len(raw) < nonceSize+secretbox.Overhead {
		return nil, errors.New("cookie too short")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, errors.New("cookie authentication failed")
	}
	var p payload
	if err := store.UnmarshalCBOR(plain, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// replaceCookie sets c, dropping any earlier Set-Cookie for the same name in
// this response.
func (s *Store) replaceCookie(w http.ResponseWriter, c *http.Cookie) {
	h := w.Header()
	prefix := c.Name + "="
	var kept []string
	for _, v := range h.Values("Set-Cookie") {
		if !strings.HasPrefix(v, prefix) {
			kept = append(kept, v)
		}
	}
	h.Del("Set-Cookie")
	for _, v := range kept {
		h.Add("Set-Cookie", v)
	}
	http.SetCookie(w, c)
}
