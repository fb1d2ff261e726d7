package middleware

import (
	"errors"
	"fmt"
	"marketplace-handoff/internal/apperr"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const (
	UserIDKey          = "user_id"
	VendorProfileIDKey = "vendor_profile_id"

	// VendorProfileHeader selects which of the caller's vendor profiles
	// acts when the token does not name one.
	VendorProfileHeader = "X-Vendor-Profile-Id"
)

// Claims carried by bearer tokens. The subject is the user id.
type Claims struct {
	VendorProfileID string `json:"vendor_profile_id,omitempty"`
	jwt.RegisteredClaims
}

// Auth validates an HS256 bearer token and stores the caller's user id
// (and vendor profile id when present) on the echo context.
func Auth(secret string) echo.MiddlewareFunc {
	key := []byte(secret)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return apperr.ErrUnauthenticated
			}

			claims, err := parseToken(raw, key)
			if err != nil {
				return apperr.ErrUnauthenticated.Wrap(err)
			}

			c.Set(UserIDKey, claims.Subject)
			vendorID := claims.VendorProfileID
			if vendorID == "" {
				vendorID = c.Request().Header.Get(VendorProfileHeader)
			}
			if vendorID != "" {
				c.Set(VendorProfileIDKey, vendorID)
			}
			return next(c)
		}
	}
}

// SignToken issues a token for userID. Used by tooling and tests.
func SignToken(secret, userID, vendorProfileID string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		VendorProfileID: vendorProfileID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString([]byte(secret))
}

func parseToken(raw string, key []byte) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(30*time.Second))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
