package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"campusnotify/internal/model"
)

var (
	ErrTokenMissing = errors.New("missing authentication token")
	ErrTokenExpired = errors.New("access token has expired")
	ErrTokenInvalid = errors.New("invalid authentication token")
)

// Identity is the authenticated principal behind a request or connection.
type Identity struct {
	UserID int64
	Role   model.Role
}

// Validator checks HMAC-signed access tokens issued by the platform's auth service.
type Validator struct {
	secret []byte
}

func NewValidator(secret string) *Validator {
	return &Validator{secret: []byte(secret)}
}

// Validate parses tokenString and extracts the user_id and role claims.
func (v *Validator) Validate(tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, ErrTokenMissing
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	userIDFloat, ok := claims["user_id"].(float64)
	if !ok || userIDFloat <= 0 {
		return nil, ErrTokenInvalid
	}

	roleStr, _ := claims["role"].(string)
	role := model.Role(strings.ToUpper(roleStr))
	if !role.Valid() {
		return nil, ErrTokenInvalid
	}

	return &Identity{UserID: int64(userIDFloat), Role: role}, nil
}

// Issue signs an access token for userID. The platform's auth service is the
// real issuer; this exists for tooling and tests.
func (v *Validator) Issue(userID int64, role model.Role, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    string(role),
		"exp":     time.Now().Add(ttl).Unix(),
		"iat":     time.Now().Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// TokenFromRequest extracts a bearer token from the Authorization header,
// then the access_token cookie, then the "token" query parameter (the
// handshake payload of browser WebSocket clients, which cannot set headers).
func TokenFromRequest(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if cookie, err := r.Cookie("access_token"); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return r.URL.Query().Get("token")
}
