package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

const (
	ContextKeyToken = "admin_token"
	issuer          = "ordersync"
)

type AdminClaims struct {
	jwt.RegisteredClaims
}

// AdminAuth guards the admin API with HS256 bearer tokens signed by secret.
// An empty secret disables the admin API.
func AdminAuth(secret string) echo.MiddlewareFunc {
	if secret == "" {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "admin api disabled")
			}
		}
	}

	return echojwt.WithConfig(echojwt.Config{
		SigningKey:    []byte(secret),
		SigningMethod: jwt.SigningMethodHS256.Alg(),
		ContextKey:    ContextKeyToken,
		TokenLookup:   "header:Authorization:Bearer ",
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(AdminClaims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing admin token")
		},
	})
}

// IssueToken signs an admin token for subject valid for ttl.
func IssueToken(secret, subject string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("admin jwt secret is not configured")
	}

	now := time.Now()
	claims := &AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Subject returns the subject of the verified admin token, if any.
func Subject(c echo.Context) string {
	token, ok := c.Get(ContextKeyToken).(*jwt.Token)
	if !ok {
		return ""
	}
	sub, _ := token.Claims.GetSubject()
	return sub
}
