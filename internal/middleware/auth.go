package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const UserIDKey contextKey = "user_id"

const (
	AccessTokenTTL  = 15 * time.Minute
	RefreshTokenTTL = 7 * 24 * time.Hour

	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

type CookieAuth struct {
	Secret []byte
}

func NewCookieAuth(secret string) *CookieAuth {
	return &CookieAuth{Secret: []byte(secret)}
}

// GenerateAccessToken creates a short-lived JWT identifying the user.
func (a *CookieAuth) GenerateAccessToken(userID uuid.UUID, username string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id":    userID.String(),
		"username":   username,
		"token_type": TokenTypeAccess,
		"exp":        now.Add(AccessTokenTTL).Unix(),
		"iat":        now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.Secret)
}

// GenerateRefreshToken creates a long-lived JWT carrying a jti so that
// individual refresh tokens can be blacklisted on logout.
func (a *CookieAuth) GenerateRefreshToken(userID uuid.UUID) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id":    userID.String(),
		"token_type": TokenTypeRefresh,
		"jti":        uuid.NewString(),
		"exp":        now.Add(RefreshTokenTTL).Unix(),
		"iat":        now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.Secret)
}

// ParseToken verifies signature and expiry and checks the token_type
// claim matches wantType.
func (a *CookieAuth) ParseToken(tokenStr, wantType string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.Secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if tokenType, _ := claims["token_type"].(string); tokenType != wantType {
		return nil, jwt.ErrTokenInvalidClaims
	}

	return claims, nil
}

// Authenticate resolves a principal or anonymous; it never rejects the
// request itself. An Authorization header takes precedence: if present
// and invalid, the request stays anonymous without falling back to the
// cookie. Otherwise the access_token cookie is checked; absent or
// invalid means anonymous.
func (a *CookieAuth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var rawToken string

		authHeader := r.Header.Get("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && parts[0] == "Bearer" {
				rawToken = parts[1]
			}
		} else if cookie, err := r.Cookie("access_token"); err == nil {
			rawToken = cookie.Value
		}

		if rawToken == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := a.ParseToken(rawToken, TokenTypeAccess)
		if err != nil {
			// expired or invalid credential → anonymous
			next.ServeHTTP(w, r)
			return
		}

		userIDStr, _ := claims["user_id"].(string)
		userID, err := uuid.Parse(userIDStr)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth rejects requests that Authenticate left anonymous.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUserID(r.Context()) == uuid.Nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetUserID extracts the authenticated user id from the request
// context; uuid.Nil means anonymous.
func GetUserID(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(UserIDKey).(uuid.UUID)
	return id
}

func writeError(w http.ResponseWriter, status int, code, message string, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":       code,
			"message":    message,
			"request_id": requestID,
		},
	})
}
