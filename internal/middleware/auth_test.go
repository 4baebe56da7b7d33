package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func newTestAuth() *CookieAuth {
	return NewCookieAuth("test-secret-do-not-use-in-prod")
}

func TestAccessTokenRoundTrip(t *testing.T) {
	auth := newTestAuth()
	userID := uuid.New()

	tokenStr, err := auth.GenerateAccessToken(userID, "alice")
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	claims, err := auth.ParseToken(tokenStr, TokenTypeAccess)
	if err != nil {
		t.Fatalf("ParseToken failed: %v", err)
	}
	if got, _ := claims["user_id"].(string); got != userID.String() {
		t.Errorf("Expected user_id %s, got %s", userID, got)
	}
	if got, _ := claims["username"].(string); got != "alice" {
		t.Errorf("Expected username alice, got %s", got)
	}
}

func TestRefreshTokenCarriesJTI(t *testing.T) {
	auth := newTestAuth()

	tokenStr, err := auth.GenerateRefreshToken(uuid.New())
	if err != nil {
		t.Fatalf("GenerateRefreshToken failed: %v", err)
	}

	claims, err := auth.ParseToken(tokenStr, TokenTypeRefresh)
	if err != nil {
		t.Fatalf("ParseToken failed: %v", err)
	}
	jti, _ := claims["jti"].(string)
	if _, err := uuid.Parse(jti); err != nil {
		t.Errorf("Expected a uuid jti, got %q", jti)
	}
}

func TestParseTokenRejectsWrongType(t *testing.T) {
	auth := newTestAuth()

	access, _ := auth.GenerateAccessToken(uuid.New(), "alice")
	if _, err := auth.ParseToken(access, TokenTypeRefresh); err == nil {
		t.Error("Access token must not pass as a refresh token")
	}

	refresh, _ := auth.GenerateRefreshToken(uuid.New())
	if _, err := auth.ParseToken(refresh, TokenTypeAccess); err == nil {
		t.Error("Refresh token must not pass as an access token")
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	tokenStr, _ := newTestAuth().GenerateAccessToken(uuid.New(), "alice")

	other := NewCookieAuth("a-different-secret")
	if _, err := other.ParseToken(tokenStr, TokenTypeAccess); err == nil {
		t.Error("Token signed with another secret must be rejected")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	auth := newTestAuth()
	claims := jwt.MapClaims{
		"user_id":    uuid.NewString(),
		"token_type": TokenTypeAccess,
		"exp":        time.Now().Add(-time.Minute).Unix(),
		"iat":        time.Now().Add(-time.Hour).Unix(),
	}
	tokenStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(auth.Secret)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	if _, err := auth.ParseToken(tokenStr, TokenTypeAccess); err == nil {
		t.Error("Expired token must be rejected")
	}
}

// identityProbe records what Authenticate put in the request context.
func identityProbe(got *uuid.UUID) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = GetUserID(r.Context())
	})
}

func TestAuthenticate(t *testing.T) {
	auth := newTestAuth()
	userID := uuid.New()
	validToken, err := auth.GenerateAccessToken(userID, "alice")
	if err != nil {
		t.Fatalf("GenerateAccessToken failed: %v", err)
	}

	tests := []struct {
		name       string
		header     string
		cookie     string
		wantUserID uuid.UUID
	}{
		{
			name:       "valid bearer header",
			header:     "Bearer " + validToken,
			wantUserID: userID,
		},
		{
			name:       "valid cookie",
			cookie:     validToken,
			wantUserID: userID,
		},
		{
			name:       "no credentials",
			wantUserID: uuid.Nil,
		},
		{
			name:       "garbage cookie",
			cookie:     "not-a-jwt",
			wantUserID: uuid.Nil,
		},
		{
			name:       "invalid header does not fall back to valid cookie",
			header:     "Bearer not-a-jwt",
			cookie:     validToken,
			wantUserID: uuid.Nil,
		},
		{
			name:       "malformed header scheme",
			header:     "Token " + validToken,
			wantUserID: uuid.Nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/quizzes", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "access_token", Value: tt.cookie})
			}

			var got uuid.UUID
			rec := httptest.NewRecorder()
			auth.Authenticate(identityProbe(&got)).ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("Authenticate must never reject; got status %d", rec.Code)
			}
			if got != tt.wantUserID {
				t.Errorf("Expected user id %s, got %s", tt.wantUserID, got)
			}
		})
	}
}

func TestRequireAuth(t *testing.T) {
	reached := false
	handler := RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/createQuiz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for anonymous request, got %d", rec.Code)
	}
	if reached {
		t.Error("Handler must not run for anonymous requests")
	}

	auth := newTestAuth()
	userID := uuid.New()
	token, _ := auth.GenerateAccessToken(userID, "alice")

	req = httptest.NewRequest(http.MethodPost, "/api/createQuiz", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: token})
	rec = httptest.NewRecorder()
	auth.Authenticate(RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 for authenticated request, got %d", rec.Code)
	}
	if !reached {
		t.Error("Handler must run for authenticated requests")
	}
}
