package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yungbote/retroboard-backend/internal/data/store"
	"github.com/yungbote/retroboard-backend/internal/domain"
	"github.com/yungbote/retroboard-backend/internal/platform/ctxutil"
	"github.com/yungbote/retroboard-backend/internal/platform/logger"
)

type JWTClaims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

type AuthService interface {
	IssueToken(user *domain.User) (string, time.Time, error)
	// Authenticate verifies token and returns ctx carrying the caller's
	// ctxutil.RequestData.
	Authenticate(ctx context.Context, token string) (context.Context, error)
	AccessTTL() time.Duration
}

type authService struct {
	log          *logger.Logger
	users        store.UserStore
	jwtSecretKey []byte
	accessTTL    time.Duration
	now          func() time.Time
}

func NewAuthService(log *logger.Logger, users store.UserStore, jwtSecretKey string, accessTTL time.Duration) AuthService {
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}
	return &authService{
		log:          log.With("service", "AuthService"),
		users:        users,
		jwtSecretKey: []byte(jwtSecretKey),
		accessTTL:    accessTTL,
		now:          time.Now,
	}
}

func (as *authService) IssueToken(user *domain.User) (string, time.Time, error) {
	now := as.now()
	expiresAt := now.Add(as.accessTTL)
	claims := JWTClaims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(as.jwtSecretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, expiresAt, nil
}

func (as *authService) Authenticate(ctx context.Context, tokenString string) (context.Context, error) {
	const op = "auth.authenticate"
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return ctx, domain.NewError(domain.CodeUnauthorized, op, "missing token", nil)
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return as.jwtSecretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(as.now))
	if err != nil {
		return ctx, domain.NewError(domain.CodeUnauthorized, op, "invalid or expired token", err)
	}
	claims, ok := parsed.Claims.(*JWTClaims)
	if !ok || !parsed.Valid {
		return ctx, domain.NewError(domain.CodeUnauthorized, op, "invalid or expired token", nil)
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctx, domain.NewError(domain.CodeUnauthorized, op, "invalid subject", err)
	}
	user, err := as.users.GetUser(ctx, userID)
	if domain.IsNotFound(err) {
		return ctx, domain.NewError(domain.CodeUnauthorized, op, "unknown user", err)
	}
	if err != nil {
		as.log.Warn("User lookup failed during authentication", "user_id", userID, "error", err)
		return ctx, domain.Wrap(domain.CodePersistence, op, err)
	}
	return ctxutil.WithRequestData(ctx, &ctxutil.RequestData{
		UserID:   user.ID,
		Username: user.Username,
		Token:    tokenString,
	}), nil
}

func (as *authService) AccessTTL() time.Duration { return as.accessTTL }
