package middleware

import (
	"bytes"
	"log/slog"
	"marketplace-handoff/internal/apperr"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func runAuth(t *testing.T, header map[string]string) (echo.Context, error) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	c := e.NewContext(req, httptest.NewRecorder())

	err := Auth(testSecret)(func(c echo.Context) error { return nil })(c)
	return c, err
}

func TestAuthAcceptsValidToken(t *testing.T) {
	token, err := SignToken(testSecret, "user-1", "vendor-1", time.Hour)
	require.NoError(t, err)

	c, err := runAuth(t, map[string]string{echo.HeaderAuthorization: "Bearer " + token})
	require.NoError(t, err)
	assert.Equal(t, "user-1", c.Get(UserIDKey))
	assert.Equal(t, "vendor-1", c.Get(VendorProfileIDKey))
}

func TestAuthVendorHeaderFallback(t *testing.T) {
	token, err := SignToken(testSecret, "user-1", "", time.Hour)
	require.NoError(t, err)

	c, err := runAuth(t, map[string]string{
		echo.HeaderAuthorization: "Bearer " + token,
		VendorProfileHeader:      "vendor-9",
	})
	require.NoError(t, err)
	assert.Equal(t, "vendor-9", c.Get(VendorProfileIDKey))
}

func TestAuthRejects(t *testing.T) {
	t.Parallel()

	expired, err := SignToken(testSecret, "user-1", "", -time.Hour)
	require.NoError(t, err)
	foreign, err := SignToken("other-secret", "user-1", "", time.Hour)
	require.NoError(t, err)
	noSubject, err := SignToken(testSecret, "", "", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc"},
		{"empty token", "Bearer "},
		{"garbage", "Bearer not-a-jwt"},
		{"expired", "Bearer " + expired},
		{"wrong key", "Bearer " + foreign},
		{"no subject", "Bearer " + noSubject},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := map[string]string{}
			if tt.header != "" {
				h[echo.HeaderAuthorization] = tt.header
			}
			c, err := runAuth(t, h)
			require.ErrorIs(t, err, apperr.ErrUnauthenticated)
			assert.Nil(t, c.Get(UserIDKey))
		})
	}
}

func TestRequestLoggerWritesLine(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	e := echo.New()
	e.Use(RequestLogger(logger))
	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, buf.String(), `"uri":"/ping"`)
	assert.Contains(t, buf.String(), `"status":200`)
}
