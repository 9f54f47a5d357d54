package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testKey = []byte("test-signing-key")

func signToken(t *testing.T, claims *Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	raw, err := token.SignedString(testKey)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

func invoke(t *testing.T, mw echo.MiddlewareFunc, req *http.Request) (error, echo.Context) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	handler := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	return mw(handler)(c), c
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	raw := signToken(t, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Name:  "Dr. Smith",
		Roles: []string{"dentist"},
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+raw)

	err, c := invoke(t, JWTMiddleware(JWTConfig{SigningKey: testKey}), req)
	if err != nil {
		t.Fatalf("middleware: %v", err)
	}
	ctx := c.Request().Context()
	if UserIDFromContext(ctx) != "user-1" {
		t.Errorf("expected user-1, got %q", UserIDFromContext(ctx))
	}
	if UserNameFromContext(ctx) != "Dr. Smith" {
		t.Errorf("expected Dr. Smith, got %q", UserNameFromContext(ctx))
	}
	roles := RolesFromContext(ctx)
	if len(roles) != 1 || roles[0] != "dentist" {
		t.Errorf("expected [dentist], got %v", roles)
	}
}

func TestJWTMiddleware_Rejections(t *testing.T) {
	expired := signToken(t, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not a bearer token", "Basic abc"},
		{"garbage token", "Bearer not-a-jwt"},
		{"expired token", "Bearer " + expired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			err, _ := invoke(t, JWTMiddleware(JWTConfig{SigningKey: testKey}), req)
			httpErr, ok := err.(*echo.HTTPError)
			if !ok || httpErr.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %v", err)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name      string
		userRoles []string
		required  []string
		allowed   bool
	}{
		{"exact role", []string{"assistant"}, []string{"assistant"}, true},
		{"admin bypasses", []string{"admin"}, []string{"dentist"}, true},
		{"missing role", []string{"assistant"}, []string{"dentist"}, false},
		{"no roles", nil, []string{"dentist"}, false},
		{"one of several", []string{"assistant"}, []string{"dentist", "assistant"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			if tt.userRoles != nil {
				ctx := context.WithValue(c.Request().Context(), UserRolesKey, tt.userRoles)
				c.SetRequest(c.Request().WithContext(ctx))
			}

			handler := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
			err := RequireRole(tt.required...)(handler)(c)
			if tt.allowed && err != nil {
				t.Errorf("expected access, got %v", err)
			}
			if !tt.allowed && err == nil {
				t.Error("expected forbidden")
			}
		})
	}
}

func TestAPIKeyMiddleware(t *testing.T) {
	mw := APIKeyMiddleware([]string{"key-a", "key-b"})

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(APIKeyHeader, "key-b")
	if err, _ := invoke(t, mw, req); err != nil {
		t.Errorf("expected valid key to pass, got %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(APIKeyHeader, "wrong")
	if err, _ := invoke(t, mw, req); err == nil {
		t.Error("expected invalid key to be rejected")
	}

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	if err, _ := invoke(t, mw, req); err == nil {
		t.Error("expected missing key to be rejected")
	}
}
