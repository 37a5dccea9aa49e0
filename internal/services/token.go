package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/studyshare/backend/internal/config"
	"github.com/studyshare/backend/internal/models"
	"gorm.io/gorm"
)

var (
	ErrTokenExpired      = errors.New("token expired")
	ErrTokenInvalid      = errors.New("token invalid")
	ErrPrincipalNotFound = errors.New("principal not found")
	ErrRefreshMismatch   = errors.New("refresh token does not match stored slot")
)

// AccessClaims is the self-contained identity an access token carries.
// Verification needs only the access secret, never a store lookup.
type AccessClaims struct {
	UserID   uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	FullName string    `json:"fullName"`
	jwt.RegisteredClaims
}

type RefreshClaims struct {
	UserID uuid.UUID `json:"id"`
	jwt.RegisteredClaims
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// TokenService owns both signing contracts and the single-slot refresh
// rule: issuing a refresh token overwrites the user's slot, so at most
// one refresh token is ever valid per user.
type TokenService struct {
	db  *gorm.DB
	cfg config.JWTConfig
}

func NewTokenService(db *gorm.DB, cfg config.JWTConfig) *TokenService {
	return &TokenService{db: db, cfg: cfg}
}

func (s *TokenService) IssueAccessToken(user *models.User) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		FullName: user.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.cfg.AccessExpiryMinutes) * time.Minute)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   user.ID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.AccessSecret))
}

// IssueRefreshToken signs a days-scale token and persists it into the
// user's refresh slot, which is what makes renewal revocable.
func (s *TokenService) IssueRefreshToken(ctx context.Context, user *models.User) (string, error) {
	now := time.Now()
	claims := RefreshClaims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.cfg.RefreshExpiryDays) * 24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   user.ID.String(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.RefreshSecret))
	if err != nil {
		return "", err
	}

	err = s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("refresh_token", signed).Error
	if err != nil {
		return "", err
	}

	return signed, nil
}

// IssuePair mints a fresh access/refresh pair, overwriting the slot.
func (s *TokenService) IssuePair(ctx context.Context, user *models.User) (*TokenPair, error) {
	accessToken, err := s.IssueAccessToken(user)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.IssueRefreshToken(ctx, user)
	if err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (s *TokenService) VerifyAccess(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := s.parse(tokenString, claims, s.cfg.AccessSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

// Rotate verifies a refresh token, requires it to equal the user's stored
// slot, and mints a fresh pair. The equality check is the revocation
// mechanism: logout clears the slot, so any outstanding refresh token
// fails here even before it expires.
func (s *TokenService) Rotate(ctx context.Context, refreshToken string) (*TokenPair, *models.User, error) {
	claims := &RefreshClaims{}
	if err := s.parse(refreshToken, claims, s.cfg.RefreshSecret); err != nil {
		return nil, nil, err
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", claims.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrPrincipalNotFound
		}
		return nil, nil, err
	}

	if user.RefreshToken == nil || *user.RefreshToken != refreshToken {
		return nil, nil, ErrRefreshMismatch
	}

	pair, err := s.IssuePair(ctx, &user)
	if err != nil {
		return nil, nil, err
	}

	return pair, &user, nil
}

// Revoke clears the refresh slot, invalidating every previously issued
// refresh token for the user.
func (s *TokenService) Revoke(ctx context.Context, userID uuid.UUID) error {
	return s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("refresh_token", nil).Error
}

func (s *TokenService) parse(tokenString string, claims jwt.Claims, secret string) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrTokenInvalid
	}
	if !token.Valid {
		return ErrTokenInvalid
	}
	return nil
}
