package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func createTestToken(t *testing.T, claims Claims, key []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return tokenStr
}

func validClaims() Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "analyst-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Roles: []string{"analyst"},
	}
}

func runJWT(t *testing.T, cfg JWTConfig, authHeader string, handler echo.HandlerFunc) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sheet", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return rec, JWTMiddleware(cfg)(handler)(c)
}

func expectStatus(t *testing.T, err error, code int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with status %d", code)
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
}

func okHandler(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	_, err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "", okHandler)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "Token abc123"},
		{"missing token", "Bearer"},
		{"empty value", "Bearer "},
		{"basic auth", "Basic dXNlcjpwYXNz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, tt.header, okHandler)
			expectStatus(t, err, http.StatusUnauthorized)
		})
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	tokenStr := createTestToken(t, validClaims(), testSigningKey)

	var gotUser string
	var gotRoles []string
	handler := func(c echo.Context) error {
		gotUser = UserIDFromContext(c.Request().Context())
		gotRoles = RolesFromContext(c.Request().Context())
		return c.String(http.StatusOK, "ok")
	}

	rec, err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "Bearer "+tokenStr, handler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if gotUser != "analyst-1" {
		t.Errorf("expected user analyst-1, got %q", gotUser)
	}
	if len(gotRoles) != 1 || gotRoles[0] != "analyst" {
		t.Errorf("expected roles [analyst], got %v", gotRoles)
	}
}

func TestJWTMiddleware_WrongKey(t *testing.T) {
	tokenStr := createTestToken(t, validClaims(), []byte("another-key"))
	_, err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "Bearer "+tokenStr, okHandler)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_Expired(t *testing.T) {
	claims := validClaims()
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	tokenStr := createTestToken(t, claims, testSigningKey)
	_, err := runJWT(t, JWTConfig{SigningKey: testSigningKey}, "Bearer "+tokenStr, okHandler)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_IssuerAndAudience(t *testing.T) {
	cfg := JWTConfig{SigningKey: testSigningKey, Issuer: "baard", Audience: "sheet-api"}

	good, err := IssueToken(cfg, "analyst-1", []string{"analyst"}, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if _, err := runJWT(t, cfg, "Bearer "+good, okHandler); err != nil {
		t.Errorf("expected token with matching issuer/audience to pass, got %v", err)
	}

	bad := createTestToken(t, validClaims(), testSigningKey)
	_, err = runJWT(t, cfg, "Bearer "+bad, okHandler)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_RejectsNoneAlgorithm(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims())
	tokenStr, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	_, err = runJWT(t, JWTConfig{SigningKey: testSigningKey}, "Bearer "+tokenStr, okHandler)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_Skipper(t *testing.T) {
	cfg := JWTConfig{SigningKey: testSigningKey, Skipper: func(echo.Context) bool { return true }}
	if _, err := runJWT(t, cfg, "", okHandler); err != nil {
		t.Errorf("expected skipped request to pass, got %v", err)
	}
}

func TestDevAuthMiddleware_DefaultsToAdmin(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		if got := UserIDFromContext(c.Request().Context()); got != "dev-user" {
			t.Errorf("expected dev-user, got %q", got)
		}
		roles := RolesFromContext(c.Request().Context())
		if len(roles) != 1 || roles[0] != "admin" {
			t.Errorf("expected [admin], got %v", roles)
		}
		return c.String(http.StatusOK, "ok")
	}

	if err := DevAuthMiddleware()(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
