package api

import (
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Call tokens are short-lived HS256 JWTs handed to a portal right before it
// opens a websocket to the relay. The websocket endpoints cannot use the
// Authorization header from browsers, so the token travels as a query param.
const callTokenTTL = 15 * time.Minute

// CallClaims is what a parsed call token carries.
type CallClaims struct {
	UserID string
	Role   string
	RoomID string
}

// NewCallToken signs a call token for the given user, role and room.
func NewCallToken(userID, role, roomID string) (string, error) {
	jwtSecret := []byte(os.Getenv("JWT_SECRET"))
	if len(jwtSecret) == 0 {
		return "", fmt.Errorf("JWT_SECRET is not set")
	}

	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"room": roomID,
		"typ":  "call",
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(callTokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// ParseCallToken validates a call token and extracts its claims.
func ParseCallToken(tokenString string) (*CallClaims, error) {
	jwtSecret := []byte(os.Getenv("JWT_SECRET"))
	if len(jwtSecret) == 0 {
		return nil, fmt.Errorf("JWT_SECRET is not set")
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token, %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid call token")
	}
	if typ, _ := claims["typ"].(string); typ != "call" {
		return nil, fmt.Errorf("not a call token")
	}

	sub, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	room, _ := claims["room"].(string)
	if sub == "" || role == "" {
		return nil, fmt.Errorf("call token missing subject or role")
	}

	return &CallClaims{UserID: sub, Role: role, RoomID: room}, nil
}
