package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fastprodman/pvpescrow/internal/escrow"
	"github.com/golang-jwt/jwt/v5"
)

type callerKey struct{}

var errNoCaller = errors.New("missing caller identity")

// Authenticator verifies HS256 bearer tokens and places the `sub` claim in
// the request context as the caller identity.
type Authenticator struct {
	secret []byte
	issuer string
	leeway time.Duration
}

func NewAuthenticator(secret, issuer string, leeway time.Duration) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer, leeway: leeway}
}

// Middleware rejects requests without a valid token with 401.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		caller, err := a.Verify(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey{}, caller)))
	})
}

// Verify checks the signature and standard claims of a token and returns
// its subject.
func (a *Authenticator) Verify(raw string) (escrow.Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(a.leeway),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	token, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}

	sub, err := token.Claims.GetSubject()
	if err != nil {
		return "", fmt.Errorf("subject: %w", err)
	}

	caller, err := escrow.ParseIdentity(sub)
	if err != nil {
		return "", fmt.Errorf("subject: %w", err)
	}

	return caller, nil
}

// IssueToken signs a token for subject. Used by operators and tests; the
// service itself only verifies.
func IssueToken(secret, issuer string, subject escrow.Identity, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := jwt.RegisteredClaims{
		Subject:   subject.String(),
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

func callerFrom(ctx context.Context) (escrow.Identity, error) {
	caller, ok := ctx.Value(callerKey{}).(escrow.Identity)
	if !ok || caller.IsZero() {
		return "", errNoCaller
	}

	return caller, nil
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)

	return token, token != ""
}
