package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrTokenBlacklisted     = errors.New("token has been revoked")
	ErrInvalidSigningMethod = errors.New("invalid signing method")
	ErrInvalidToken         = errors.New("invalid token")
	ErrWrongTokenKind       = errors.New("wrong token kind")
)

// Token kinds carried in the "kind" claim.
const (
	KindAccess  = "access"
	KindRefresh = "refresh"
)

type Claims struct {
	UserID    string `json:"uid"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	SessionID string `json:"sid"`
	Kind      string `json:"kind"`
	jwt.RegisteredClaims
}

// TokenPair is what a successful login hands back to the caller.
type TokenPair struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

type JWTManager struct {
	secretKey     []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	blacklist     *TokenBlacklist
	now           func() time.Time
}

func NewJWTManager(secretKey string, accessExpiry, refreshExpiry time.Duration) *JWTManager {
	return &JWTManager{
		secretKey:     []byte(secretKey),
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
		blacklist:     NewTokenBlacklist(),
		now:           time.Now,
	}
}

// GenerateTokens issues an access and a refresh token bound to sessionID.
func (m *JWTManager) GenerateTokens(userID, email, role, sessionID string) (*TokenPair, error) {
	now := m.now()

	accessToken, err := m.generateToken(userID, email, role, sessionID, KindAccess, now, m.accessExpiry)
	if err != nil {
		return nil, err
	}

	refreshToken, err := m.generateToken(userID, email, role, sessionID, KindRefresh, now, m.refreshExpiry)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    now.Add(m.accessExpiry),
	}, nil
}

func (m *JWTManager) generateToken(userID, email, role, sessionID, kind string, now time.Time, expiry time.Duration) (string, error) {
	claims := Claims{
		UserID:    userID,
		Email:     email,
		Role:      role,
		SessionID: sessionID,
		Kind:      kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	return token.SignedString(m.secretKey)
}

func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	if m.blacklist.IsBlacklisted(tokenString) {
		return nil, ErrTokenBlacklisted
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSigningMethod
		}
		return m.secretKey, nil
	}, jwt.WithTimeFunc(m.now))

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}

// ValidateKind validates the token and checks its kind claim.
func (m *JWTManager) ValidateKind(tokenString, kind string) (*Claims, error) {
	claims, err := m.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Kind != kind {
		return nil, ErrWrongTokenKind
	}
	return claims, nil
}

func (m *JWTManager) BlacklistToken(tokenString string, claims *Claims) error {
	expiry := claims.ExpiresAt.Time.Sub(m.now())
	return m.blacklist.Add(tokenString, expiry)
}

// RefreshTokens revokes the refresh token and issues a new pair for the
// same session.
func (m *JWTManager) RefreshTokens(refreshToken string) (*TokenPair, *Claims, error) {
	claims, err := m.ValidateKind(refreshToken, KindRefresh)
	if err != nil {
		return nil, nil, err
	}

	if err := m.BlacklistToken(refreshToken, claims); err != nil {
		return nil, nil, err
	}

	pair, err := m.GenerateTokens(claims.UserID, claims.Email, claims.Role, claims.SessionID)
	if err != nil {
		return nil, nil, err
	}
	return pair, claims, nil
}
