package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	pkgauth "github.com/assetdeck/assetdeck-backend/pkg/auth"
	"github.com/assetdeck/assetdeck-backend/pkg/config"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "assetdeck", ExpirationMinutes: 10}
}

func TestAuthSeedsUserContext(t *testing.T) {
	cfg := testJWTConfig()
	userID := uuid.New()
	token, err := pkgauth.MintAccessToken(cfg, time.Now(), pkgauth.AccessTokenPayload{
		UserID: userID,
		Email:  "dev@example.com",
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	var gotUser, gotEmail string
	handler := Auth(cfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
		gotEmail = EmailFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if gotUser != userID.String() {
		t.Fatalf("expected user id %s got %s", userID, gotUser)
	}
	if gotEmail != "dev@example.com" {
		t.Fatalf("expected email in context, got %q", gotEmail)
	}
}

func TestAuthMissingHeaderIs401(t *testing.T) {
	handler := Auth(testJWTConfig(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without credentials")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestAuthBadSignatureIs401(t *testing.T) {
	other := config.JWTConfig{Secret: "other", Issuer: "assetdeck", ExpirationMinutes: 10}
	token, err := pkgauth.MintAccessToken(other, time.Now(), pkgauth.AccessTokenPayload{UserID: uuid.New()})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	handler := Auth(testJWTConfig(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run with a forged token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}
