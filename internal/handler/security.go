package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-orders/internal/domain/auth"
	"github.com/xenking/kart-orders/internal/wire"
)

// APIKeyHeader carries operator console API keys.
const APIKeyHeader = "api_key"

var errUnauthorized = errors.New("unauthorized")

// SecurityHandler resolves the actor of a request. Operators authenticate
// with an HMAC-SHA256 hashed API key, customers with a signed session token.
type SecurityHandler struct {
	apikeys       auth.Repository
	pepper        []byte
	sessionSecret []byte
}

// NewSecurityHandler creates a SecurityHandler with the given API key
// repository, HMAC pepper and session signing secret.
func NewSecurityHandler(apikeys auth.Repository, pepper, sessionSecret []byte) *SecurityHandler {
	return &SecurityHandler{
		apikeys:       apikeys,
		pepper:        pepper,
		sessionSecret: sessionSecret,
	}
}

// Middleware attaches the authenticated actor to the request context.
// Requests without credentials pass through anonymously; invalid
// credentials are rejected with 401.
func (s *SecurityHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok, err := s.authenticate(r)
		switch {
		case errors.Is(err, errUnauthorized):
			writeAPIError(w, &wire.Error{Code: http.StatusUnauthorized, Message: "invalid credentials"})
			return
		case err != nil:
			zctx.From(r.Context()).Error("Authenticate request", zap.Error(err))
			writeAPIError(w, &wire.Error{Code: http.StatusInternalServerError, Message: "internal server error"})
			return
		case !ok:
			next.ServeHTTP(w, r)
			return
		}
		ctx := zctx.With(auth.WithActor(r.Context(), actor),
			zap.String("actor_id", actor.ID),
			zap.String("actor_role", string(actor.Role)),
		)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *SecurityHandler) authenticate(r *http.Request) (auth.Actor, bool, error) {
	if key := r.Header.Get(APIKeyHeader); key != "" {
		a, err := s.handleAPIKey(r, key)
		return a, err == nil, err
	}
	if h := r.Header.Get("Authorization"); h != "" {
		token, found := strings.CutPrefix(h, "Bearer ")
		if !found || token == "" {
			return auth.Actor{}, false, errUnauthorized
		}
		a, err := auth.ParseToken(s.sessionSecret, token)
		if err != nil {
			return auth.Actor{}, false, errUnauthorized
		}
		return a, true, nil
	}
	return auth.Actor{}, false, nil
}

// handleAPIKey computes the HMAC-SHA256 of the provided key, looks it up and
// compares the stored hash in constant time.
func (s *SecurityHandler) handleAPIKey(r *http.Request, key string) (auth.Actor, error) {
	mac := hmac.New(sha256.New, s.pepper)
	mac.Write([]byte(key))
	hash := mac.Sum(nil)

	info, err := s.apikeys.FindByHash(r.Context(), hex.EncodeToString(hash))
	if errors.Is(err, auth.ErrKeyNotFound) {
		return auth.Actor{}, errUnauthorized
	}
	if err != nil {
		return auth.Actor{}, errors.Wrap(err, "find api key")
	}

	stored, err := hex.DecodeString(info.KeyHash)
	if err != nil || subtle.ConstantTimeCompare(hash, stored) != 1 {
		return auth.Actor{}, errUnauthorized
	}
	return auth.Actor{ID: "apikey:" + info.ID, Role: auth.RoleOperator}, nil
}

// RequireActor rejects anonymous requests with 401.
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.ActorFrom(r.Context()); !ok {
			writeAPIError(w, &wire.Error{Code: http.StatusUnauthorized, Message: "authentication required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
