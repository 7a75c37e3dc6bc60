package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

// PrivilegeClaim is the token claim holding the privilege of the caller.
const PrivilegeClaim = "privilege"

type privilegeKey struct{}

// TokenAuthorizer grants privileges to requests carrying a bearer token signed
// with the admin secret (HS256). It implements node.Authorizer: the privilege
// found by Middleware travels in the request context.
type TokenAuthorizer struct {
	secret []byte
	leeway time.Duration
	logger *logrus.Entry
}

// NewTokenAuthorizer creates a TokenAuthorizer. An empty secret denies every
// request.
func NewTokenAuthorizer(secret string, logger *logrus.Entry) *TokenAuthorizer {
	return &TokenAuthorizer{
		secret: []byte(strings.TrimSpace(secret)),
		leeway: 2 * time.Minute,
		logger: logger,
	}
}

// Issue returns a token granting privilege for ttl. A zero ttl never expires.
func (a *TokenAuthorizer) Issue(privilege string, ttl time.Duration) (string, error) {
	if len(a.secret) == 0 {
		return "", errors.New("admin secret not configured")
	}

	claims := jwt.MapClaims{
		PrivilegeClaim: privilege,
		"iat":          time.Now().Unix(),
	}
	if ttl > 0 {
		claims["exp"] = time.Now().Add(ttl).Unix()
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Middleware puts the privilege of a valid bearer token in the request
// context. Requests without a valid token go through unprivileged.
func (a *TokenAuthorizer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearer(r.Header.Get("Authorization"))
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		privilege, err := a.parse(token)
		if err != nil {
			a.logger.WithError(err).WithField("remote", r.RemoteAddr).Debug("Rejected admin token")
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), privilegeKey{}, privilege)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Authorize implements node.Authorizer.
func (a *TokenAuthorizer) Authorize(ctx context.Context, privilege string) bool {
	got, ok := ctx.Value(privilegeKey{}).(string)
	return ok && got == privilege
}

func (a *TokenAuthorizer) parse(tokenString string) (string, error) {
	if len(a.secret) == 0 {
		return "", errors.New("admin secret not configured")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwt.WithLeeway(a.leeway))
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("unexpected claims")
	}

	privilege, ok := claims[PrivilegeClaim].(string)
	if !ok || privilege == "" {
		return "", errors.New("missing privilege claim")
	}

	return privilege, nil
}

func extractBearer(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
