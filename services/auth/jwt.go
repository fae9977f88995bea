package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"megatrade-web/models"
)

const (
	DefaultTokenDuration = 12 * time.Hour
	sessionTokenType     = "session"
)

var (
	ErrTokenExpired    = errors.New("token expired")
	ErrInvalidToken    = errors.New("invalid token")
	ErrMissingIdentity = errors.New("user id or admin id is required")
)

type JWTService struct {
	secretKey []byte
	issuer    string
	duration  time.Duration
	now       func() time.Time
}

type Claims struct {
	UserID    string      `json:"user_id,omitempty"`
	AdminID   string      `json:"admin_id,omitempty"`
	Role      models.Role `json:"role"`
	TokenType string      `json:"token_type"`
	jwt.RegisteredClaims
}

func NewJWTService(secretKey, issuer string, duration time.Duration) *JWTService {
	if duration <= 0 {
		duration = DefaultTokenDuration
	}
	return &JWTService{
		secretKey: []byte(secretKey),
		issuer:    issuer,
		duration:  duration,
		now:       time.Now,
	}
}

// IdentityFor builds the identity for a token request. An admin id takes
// precedence over a user id.
func IdentityFor(req models.SessionTokenRequest) (models.Identity, error) {
	adminID := strings.TrimSpace(req.AdminID)
	userID := strings.TrimSpace(req.UserID)
	switch {
	case adminID != "":
		return models.Identity{AdminID: adminID, UserID: userID, Role: models.RoleAdmin}, nil
	case userID != "":
		return models.Identity{UserID: userID, Role: models.RoleUser}, nil
	}
	return models.Identity{}, ErrMissingIdentity
}

// GenerateToken signs a session token for identity.
func (j *JWTService) GenerateToken(identity models.Identity) (*models.SessionTokenResponse, error) {
	if identity.UserID == "" && identity.AdminID == "" {
		return nil, ErrMissingIdentity
	}

	now := j.now()
	expiresAt := now.Add(j.duration)
	subject := identity.UserID
	if identity.Role == models.RoleAdmin {
		subject = identity.AdminID
	}

	claims := Claims{
		UserID:    identity.UserID,
		AdminID:   identity.AdminID,
		Role:      identity.Role,
		TokenType: sessionTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secretKey)
	if err != nil {
		return nil, fmt.Errorf("error signing session token: %w", err)
	}

	return &models.SessionTokenResponse{
		Token:     signed,
		ExpiresAt: expiresAt,
		Identity:  identity,
	}, nil
}

// ValidateToken checks the signature, expiry and issuer of a session token and
// returns the identity it carries.
func (j *JWTService) ValidateToken(tokenString string) (*models.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secretKey, nil
	}, jwt.WithIssuer(j.issuer), jwt.WithTimeFunc(j.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.TokenType != sessionTokenType {
		return nil, ErrInvalidToken
	}

	identity := &models.Identity{
		UserID:  claims.UserID,
		AdminID: claims.AdminID,
		Role:    claims.Role,
	}
	if !identity.IsUser() && !identity.IsAdmin() {
		return nil, ErrInvalidToken
	}
	return identity, nil
}
