// Package auth issues and validates operator JWTs and gates the server's
// mutating endpoints with a Casbin RBAC enforcer.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/brooklin-io/taskassign/pkg/config"
)

// Claims identifies the operator and the roles their token carries.
type Claims struct {
	jwt.RegisteredClaims
	Subject string   `json:"sub"`
	Roles   []string `json:"roles"`
}

// Manager issues and validates HS256 operator tokens. Unlike an end-user
// auth system there is no refresh flow: operator tokens are short-lived and
// reissued by whatever process provisions cluster operators.
type Manager struct {
	secretKey []byte
	issuer    string
	expiry    time.Duration
}

func NewManager(cfg config.JWTConfig) (*Manager, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("jwt secret key must not be empty")
	}
	expiryHours := cfg.ExpiryHours
	if expiryHours <= 0 {
		expiryHours = 8
	}
	return &Manager{
		secretKey: []byte(cfg.SecretKey),
		issuer:    cfg.Issuer,
		expiry:    time.Duration(expiryHours) * time.Hour,
	}, nil
}

func (m *Manager) Issue(subject string, roles []string) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.expiry)),
			ID:        uuid.New().String(),
		},
		Subject: subject,
		Roles:   roles,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secretKey)
}

func (m *Manager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secretKey, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
