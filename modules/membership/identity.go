package membership

import (
	"errors"
	"strconv"
	"strings"
	"time"

	domain "github.com/example/groupchat-realtime/domain/groupchat"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("token is required")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// IdentityConfig holds the token signing settings.
type IdentityConfig struct {
	Secret   string
	Issuer   string
	TokenTTL time.Duration
}

// Claims are the JWT claims carried by a connection token.
type Claims struct {
	UserID   domain.UserID `json:"user_id"`
	Username string        `json:"username"`
	jwt.RegisteredClaims
}

// TokenIssuer signs connection tokens.
type TokenIssuer struct {
	config IdentityConfig
	now    func() time.Time
}

// NewTokenIssuer creates an issuer. A zero TokenTTL defaults to 24h.
func NewTokenIssuer(config IdentityConfig) *TokenIssuer {
	if config.TokenTTL <= 0 {
		config.TokenTTL = 24 * time.Hour
	}
	return &TokenIssuer{config: config, now: time.Now}
}

// Issue returns a signed HS256 token for the identity.
func (i *TokenIssuer) Issue(identity domain.Identity) (string, error) {
	now := i.now()
	claims := Claims{
		UserID:   identity.UserID,
		Username: identity.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.config.Issuer,
			Subject:   strconv.FormatInt(int64(identity.UserID), 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.config.TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(i.config.Secret))
}

// IdentityResolver turns a connection token into an Identity.
type IdentityResolver struct {
	config IdentityConfig
}

// NewIdentityResolver creates a resolver.
func NewIdentityResolver(config IdentityConfig) *IdentityResolver {
	return &IdentityResolver{config: config}
}

// Resolve validates the token and returns the identity it names.
func (r *IdentityResolver) Resolve(tokenString string) (domain.Identity, error) {
	if tokenString == "" {
		return domain.Identity{}, ErrMissingToken
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if r.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(r.config.Issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return []byte(r.config.Secret), nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Identity{}, ErrExpiredToken
		}
		return domain.Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID <= 0 || claims.Username == "" {
		return domain.Identity{}, ErrInvalidToken
	}
	return domain.Identity{UserID: claims.UserID, Username: claims.Username}, nil
}

// TokenFromRequest picks the token from the query value or a Bearer
// Authorization header. The query value wins because browsers cannot set
// headers on a WebSocket handshake.
func TokenFromRequest(queryToken, authHeader string) string {
	if queryToken != "" {
		return queryToken
	}
	if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
