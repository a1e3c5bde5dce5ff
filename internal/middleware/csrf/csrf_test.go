package csrf

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

func newServer(skipPaths ...string) *echo.Echo {
	cfg := DefaultConfig()
	cfg.SkipPaths = skipPaths

	e := echo.New()
	e.Use(Middleware(cfg))
	ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	e.GET("/api/v1/cart", ok)
	e.POST("/api/v1/cart", ok)
	e.POST("/api/v1/login", ok)
	return e
}

func csrfCookie(t *testing.T, res *http.Response) *http.Cookie {
	t.Helper()
	for _, ck := range res.Cookies() {
		if ck.Name == "XSRF-TOKEN" {
			return ck
		}
	}
	t.Fatal("XSRF-TOKEN cookie not set")
	return nil
}

func TestGetIssuesToken(t *testing.T) {
	e := newServer()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	ck := csrfCookie(t, rec.Result())
	require.NotEmpty(t, ck.Value)
	require.Equal(t, ck.Value, rec.Header().Get("X-CSRF-Token"))
}

func TestPostWithoutTokenRejected(t *testing.T) {
	e := newServer()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart", nil)
	req.Host = "shop.test"
	req.Header.Set("Origin", "http://shop.test")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPostWithTokenAccepted(t *testing.T) {
	e := newServer()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	ck := csrfCookie(t, rec.Result())

	req = httptest.NewRequest(http.MethodPost, "/api/v1/cart", nil)
	req.Host = "shop.test"
	req.Header.Set("Origin", "http://shop.test")
	req.AddCookie(&http.Cookie{Name: "XSRF-TOKEN", Value: ck.Value})
	req.Header.Set("X-CSRF-Token", ck.Value)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestPostWithMismatchedTokenRejected(t *testing.T) {
	e := newServer()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	ck := csrfCookie(t, rec.Result())

	req = httptest.NewRequest(http.MethodPost, "/api/v1/cart", nil)
	req.Host = "shop.test"
	req.Header.Set("Origin", "http://shop.test")
	req.AddCookie(&http.Cookie{Name: "XSRF-TOKEN", Value: ck.Value})
	req.Header.Set("X-CSRF-Token", "not-the-token")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCrossOriginPostRejected(t *testing.T) {
	e := newServer()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	ck := csrfCookie(t, rec.Result())

	// Token present but the request comes from another site.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/cart", nil)
	req.Host = "shop.test"
	req.Header.Set("Origin", "http://evil.test")
	req.AddCookie(&http.Cookie{Name: "XSRF-TOKEN", Value: ck.Value})
	req.Header.Set("X-CSRF-Token", ck.Value)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSkipPaths(t *testing.T) {
	e := newServer("/api/v1/login")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/login", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}
