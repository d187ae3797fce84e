package security

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/velmark/eventa-coins/internal/domain/models"
)

// NewToken генерирует JWT-токен для указанного аккаунта с заданным временем жизни.
// В claims кладется роль, чтобы middleware могла отличать администраторов.
func NewToken(ctx context.Context, account *models.Account, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":   fmt.Sprintf("%d", account.ID),
		"email": account.Email,
		"role":  account.Role,
		"exp":   time.Now().Add(ttl).Unix(),
		"iat":   time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	secretStr := os.Getenv("JWT_SECRET")
	if secretStr == "" {
		return "", errors.New("JWT_SECRET environment variable is not set")
	}
	secret := []byte(secretStr)
	return token.SignedString(secret)
}
