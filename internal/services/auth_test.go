package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yungbote/certification-backend/internal/platform/ctxutil"
	"github.com/yungbote/certification-backend/internal/platform/logger"
)

func TestAuthServiceRoundTrip(t *testing.T) {
	auth := NewAuthService(logger.NewNop(), "test-secret", "certs", time.Minute)
	userID := uuid.New()
	token, err := auth.IssueAccessToken(userID)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	ctx, err := auth.SetContextFromToken(context.Background(), token)
	if err != nil {
		t.Fatalf("SetContextFromToken: %v", err)
	}
	if got := ctxutil.UserID(ctx); got != userID {
		t.Fatalf("user id: want=%s got=%s", userID, got)
	}
}

func TestAuthServiceRejectsBadTokens(t *testing.T) {
	auth := NewAuthService(logger.NewNop(), "test-secret", "certs", time.Minute)
	other := NewAuthService(logger.NewNop(), "other-secret", "certs", time.Minute)
	foreign, _ := other.IssueAccessToken(uuid.New())

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, JWTClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		Issuer:    "certs",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}})
	expiredStr, _ := expired.SignedString([]byte("test-secret"))

	noExpiry := jwt.NewWithClaims(jwt.SigningMethodHS256, JWTClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject: uuid.NewString(),
		Issuer:  "certs",
	}})
	noExpiryStr, _ := noExpiry.SignedString([]byte("test-secret"))

	badSubject := jwt.NewWithClaims(jwt.SigningMethodHS256, JWTClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "alice",
		Issuer:    "certs",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}})
	badSubjectStr, _ := badSubject.SignedString([]byte("test-secret"))

	for name, token := range map[string]string{
		"empty":       "",
		"garbage":     "not-a-jwt",
		"wrong key":   foreign,
		"expired":     expiredStr,
		"no expiry":   noExpiryStr,
		"bad subject": badSubjectStr,
	} {
		if _, err := auth.SetContextFromToken(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: want ErrInvalidToken got=%v", name, err)
		}
	}
}
