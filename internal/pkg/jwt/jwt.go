package jwt

import (
	"fmt"
	"time"

	"github.com/clubtrack/attendance-backend-go/internal/domain/auth"
	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const (
	acceptableSkew = 30 * time.Second
	sseTokenTTL    = 5 * time.Minute
)

type Service interface {
	GenerateAccessToken(identity auth.Identity) (token string, expiresAt int64, err error)
	GenerateSSEToken(identity auth.Identity) (token string, expiresIn int, err error)
	ValidateSSEToken(tokenString string) (auth.Identity, error)
	JWTAuth() *jwtauth.JWTAuth
}

type JWTService struct {
	accessTokenExpirationTime time.Duration
	tokenAuth                 *jwtauth.JWTAuth
	now                       func() time.Time
}

func (j *JWTService) JWTAuth() *jwtauth.JWTAuth {
	return j.tokenAuth
}

func NewJWTService(secretKey string, accessTokenExpirationTime time.Duration) *JWTService {
	return &JWTService{
		accessTokenExpirationTime: accessTokenExpirationTime,
		tokenAuth:                 jwtauth.New("HS256", []byte(secretKey), nil, jwt.WithAcceptableSkew(acceptableSkew)),
		now:                       time.Now,
	}
}

// GenerateAccessToken issues the bearer token the tracking API authenticates with.
// Tokens are issued by the club membership service; this is used by tools and tests.
func (j *JWTService) GenerateAccessToken(identity auth.Identity) (token string, expiresAt int64, err error) {
	expiresAt = j.now().Add(j.accessTokenExpirationTime).Unix()

	claims := identityClaims(identity)
	claims["type"] = "access"
	claims["exp"] = expiresAt

	_, tokenString, err := j.tokenAuth.Encode(claims)
	return tokenString, expiresAt, err
}

// GenerateSSEToken generates a short-lived token for SSE connections
func (j *JWTService) GenerateSSEToken(identity auth.Identity) (token string, expiresIn int, err error) {
	expiresIn = int(sseTokenTTL.Seconds())

	claims := identityClaims(identity)
	claims["type"] = "sse"
	claims["exp"] = j.now().Add(sseTokenTTL).Unix()

	_, tokenString, err := j.tokenAuth.Encode(claims)
	if err != nil {
		return "", 0, err
	}

	return tokenString, expiresIn, nil
}

// ValidateSSEToken validates an SSE token and returns the identity it was issued for
func (j *JWTService) ValidateSSEToken(tokenString string) (auth.Identity, error) {
	token, err := j.tokenAuth.Decode(tokenString)
	if err != nil {
		return auth.Identity{}, fmt.Errorf("%w: %v", auth.ErrInvalidToken, err)
	}
	if err := jwt.Validate(token, jwt.WithClock(jwt.ClockFunc(j.now)), jwt.WithAcceptableSkew(acceptableSkew)); err != nil {
		return auth.Identity{}, fmt.Errorf("%w: %v", auth.ErrInvalidToken, err)
	}

	tokenType, ok := token.Get("type")
	if !ok || tokenType != "sse" {
		return auth.Identity{}, auth.ErrInvalidToken
	}

	identity := IdentityFromClaims(token.PrivateClaims())
	if identity.MemberID == "" {
		return auth.Identity{}, auth.ErrInvalidToken
	}
	return identity, nil
}

// IdentityFromClaims reads the member identity out of token claims
func IdentityFromClaims(claims map[string]interface{}) auth.Identity {
	return auth.Identity{
		UserID:   stringClaim(claims, "user_id"),
		MemberID: stringClaim(claims, "member_id"),
		ClubID:   stringClaim(claims, "club_id"),
		Role:     auth.Role(stringClaim(claims, "role")),
	}
}

func identityClaims(identity auth.Identity) map[string]interface{} {
	return map[string]interface{}{
		"user_id":   identity.UserID,
		"member_id": identity.MemberID,
		"club_id":   identity.ClubID,
		"role":      string(identity.Role),
	}
}

func stringClaim(claims map[string]interface{}, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}
