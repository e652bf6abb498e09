package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"captive-portal/internal/infra/logging"
	"captive-portal/internal/usecase"
)

var errMissingToken = errors.New("missing token")

// Claims are issued by the external auth service. Only sub and is_admin are read.
type Claims struct {
	IsAdmin bool `json:"is_admin"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 bearer tokens.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

func (a *Authenticator) Requester(r *http.Request) (usecase.Requester, error) {
	hdr := r.Header.Get("Authorization")
	if !strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
		return usecase.Requester{}, errMissingToken
	}
	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(strings.TrimSpace(hdr[7:]), claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tkn.Valid {
		return usecase.Requester{}, errors.New("invalid token")
	}
	sub, _ := claims.GetSubject()
	return usecase.Requester{ID: sub, Privileged: claims.IsAdmin}, nil
}

type requesterKey struct{}

// RequireAuth rejects requests without a valid bearer token. Privilege is
// checked by the use cases.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := a.Requester(r)
		if err != nil {
			writeCode(w, CodeUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), requesterKey{}, req)
		ctx = logging.WithRequester(ctx, req.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requesterFrom(ctx context.Context) usecase.Requester {
	req, _ := ctx.Value(requesterKey{}).(usecase.Requester)
	return req
}
