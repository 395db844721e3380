package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/fotoyou/internal/auth/domain"
	"github.com/smallbiznis/fotoyou/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const defaultLeeway = 30 * time.Second

// Claims mirrors what the identity service signs. userId arrives as a number
// from older issuers and as a string from newer ones.
type Claims struct {
	UserID UserID `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// UserID accepts both JSON strings and numbers.
type UserID string

func (u *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*u = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*u = UserID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*u = UserID(n.String())
	return nil
}

type Params struct {
	fx.In

	Cfg config.Config
	Log *zap.Logger
}

type Verifier struct {
	secret []byte
	leeway time.Duration
	log    *zap.Logger
}

func NewVerifier(p Params) (domain.Verifier, error) {
	secret := strings.TrimSpace(p.Cfg.AuthJWTSecret)
	if secret == "" {
		return nil, domain.ErrNotConfigured
	}
	return &Verifier{
		secret: []byte(secret),
		leeway: defaultLeeway,
		log:    p.Log.Named("auth.verifier"),
	}, nil
}

func (v *Verifier) Verify(ctx context.Context, token string) (*domain.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.ErrMissingToken
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
	)
	if err != nil || !parsed.Valid {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		v.log.Debug("bearer token rejected", zap.Error(err))
		return nil, domain.ErrInvalidToken
	}

	userID := strings.TrimSpace(string(claims.UserID))
	if userID == "" {
		userID = strings.TrimSpace(claims.Subject)
	}
	if userID == "" {
		return nil, domain.ErrInvalidToken
	}

	return &domain.Identity{
		UserID: userID,
		Name:   strings.TrimSpace(claims.Name),
		Email:  strings.TrimSpace(claims.Email),
		Role:   strings.TrimSpace(claims.Role),
	}, nil
}

// Sign issues an HS256 token for identity. The identity service owns real
// issuance; this exists for local tooling and tests.
func Sign(secret string, identity domain.Identity, expiresAt time.Time) (string, error) {
	claims := Claims{
		UserID: UserID(identity.UserID),
		Name:   identity.Name,
		Email:  identity.Email,
		Role:   identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
