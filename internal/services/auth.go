package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"quizly-backend/internal/middleware"
	"quizly-backend/internal/models"
	"quizly-backend/internal/repository"
)

const invalidCredentialsMessage = "Invalid username/email or password."

type AuthService struct {
	userRepo *repository.UserRepo
	redis    *redis.Client
	jwt      *middleware.CookieAuth
}

func NewAuthService(userRepo *repository.UserRepo, redisClient *redis.Client, jwt *middleware.CookieAuth) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		redis:    redisClient,
		jwt:      jwt,
	}
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	fieldErrors := make(map[string]string)

	if req.Username == "" {
		fieldErrors["username"] = "Username is required"
	}
	if !emailRegex.MatchString(req.Email) {
		fieldErrors["email"] = "Invalid email format"
	}
	if req.Password == "" {
		fieldErrors["password"] = "Password is required"
	}
	if req.Password != req.ConfirmedPassword {
		fieldErrors["confirmed_password"] = "Passwords do not match."
	}

	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	// Check uniqueness
	if _, err := s.userRepo.GetByEmail(ctx, req.Email); err == nil {
		return nil, &ValidationError{Fields: map[string]string{"email": "Email already exists."}}
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if _, err := s.userRepo.GetByUsername(ctx, req.Username); err == nil {
		return nil, &ValidationError{Fields: map[string]string{"username": "Username already exists."}}
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	// Hash password (bcrypt cost 12)
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), 12)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// Login resolves a user by email or username and checks the password.
// The failure message is identical for unknown identity and wrong
// password so callers cannot enumerate accounts.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.User, string, string, error) {
	if req.Password == "" || (req.Username == "" && req.Email == "") {
		return nil, "", "", &ValidationError{Message: "Email/username and password are required."}
	}

	var (
		user *models.User
		err  error
	)
	if req.Email != "" {
		user, err = s.userRepo.GetByEmail(ctx, req.Email)
	} else {
		user, err = s.userRepo.GetByUsername(ctx, req.Username)
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", "", &UnauthorizedError{Message: invalidCredentialsMessage}
		}
		return nil, "", "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, "", "", &UnauthorizedError{Message: invalidCredentialsMessage}
	}

	// Best-effort; a failed timestamp update must not block the login.
	if err := s.userRepo.UpdateLastLogin(ctx, user.ID); err != nil {
		log.Printf("failed to update last login for user %s: %v", user.ID, err)
	}

	access, err := s.jwt.GenerateAccessToken(user.ID, user.Username)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to generate access token: %w", err)
	}
	refresh, err := s.jwt.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return user, access, refresh, nil
}

// Refresh validates the refresh token (signature, expiry, type) and its
// blacklist status as one authorization decision, then mints a fresh
// access token. The refresh token itself is not rotated.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.jwt.ParseToken(refreshToken, middleware.TokenTypeRefresh)
	if err != nil {
		return "", &UnauthorizedError{Message: "Invalid or expired refresh token."}
	}

	jti, _ := claims["jti"].(string)
	if jti == "" {
		return "", &UnauthorizedError{Message: "Invalid or expired refresh token."}
	}
	blacklisted, err := s.redis.Exists(ctx, blacklistKey(jti)).Result()
	if err != nil {
		return "", fmt.Errorf("failed to check token blacklist: %w", err)
	}
	if blacklisted > 0 {
		return "", &UnauthorizedError{Message: "Invalid or expired refresh token."}
	}

	userIDStr, _ := claims["user_id"].(string)
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return "", &UnauthorizedError{Message: "Invalid or expired refresh token."}
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", &UnauthorizedError{Message: "Invalid or expired refresh token."}
		}
		return "", err
	}

	access, err := s.jwt.GenerateAccessToken(user.ID, user.Username)
	if err != nil {
		return "", fmt.Errorf("failed to generate access token: %w", err)
	}
	return access, nil
}

// Logout blacklists the refresh token so it can never mint another
// access token. Best-effort: malformed or expired tokens are ignored
// and logout still reports success.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) {
	if refreshToken == "" {
		return
	}

	claims, err := s.jwt.ParseToken(refreshToken, middleware.TokenTypeRefresh)
	if err != nil {
		return
	}

	jti, _ := claims["jti"].(string)
	if jti == "" {
		return
	}

	ttl := blacklistTTL(claims, time.Now())
	if ttl <= 0 {
		return
	}
	s.redis.Set(ctx, blacklistKey(jti), "1", ttl)
}

func blacklistKey(jti string) string {
	return "blacklist:" + jti
}

// blacklistTTL keeps a blacklist entry alive exactly as long as the
// token it revokes.
func blacklistTTL(claims map[string]interface{}, now time.Time) time.Duration {
	exp, ok := claims["exp"].(float64)
	if !ok {
		return 0
	}
	return time.Unix(int64(exp), 0).Sub(now)
}

// Custom errors

type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "Validation error"
}

type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

type UnauthorizedError struct{ Message string }

func (e *UnauthorizedError) Error() string { return e.Message }

type ForbiddenError struct{ Message string }

func (e *ForbiddenError) Error() string { return e.Message }

// DependencyError reports a failed external call (download,
// transcription, generation). Treated as a caller-facing bad-input
// failure, not a 5xx.
type DependencyError struct{ Message string }

func (e *DependencyError) Error() string { return e.Message }

// TimeoutError reports a pipeline stage that exceeded its deadline,
// kept distinct from other dependency failures.
type TimeoutError struct{ Message string }

func (e *TimeoutError) Error() string { return e.Message }
