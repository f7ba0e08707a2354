package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ScopeGameAccess marks tokens that open a password protected game.
// Session tokens carry no scope.
const ScopeGameAccess = "game_access"

// refreshBytes of entropy back every refresh token (96 hex chars).
const refreshBytes = 48

// ErrTokenScope is returned when a valid token was issued for another
// game, another viewer or another purpose.
var ErrTokenScope = errors.New("token not valid for this game")

// AccessToken is a signed JWT and the moment it stops being accepted.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// RefreshToken is handed to the client once.  Only HashRefreshRaw(Raw)
// is persisted.
type RefreshToken struct {
	Raw string
	Exp time.Time
}

// GameAccessClaims binds a grant to one game and one viewer.
type GameAccessClaims struct {
	Scope  string `json:"scope"`
	GameID string `json:"gid"`
	jwt.RegisteredClaims
}

func registered(subject uint64, now, exp time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(subject, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
}

func sign(secret []byte, claims jwt.Claims, exp time.Time) (AccessToken, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// NewAccessToken signs a session token for userID valid for ttlMin minutes.
func NewAccessToken(secret string, userID uint64, ttlMin int) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(time.Duration(ttlMin) * time.Minute)
	return sign([]byte(secret), registered(userID, now, exp), exp)
}

// NewGameAccessToken issues a grant that lets viewerID past the password
// gate of gameID until now+ttl.
func NewGameAccessToken(secret []byte, gameID string, viewerID uint64, ttl time.Duration, now time.Time) (AccessToken, error) {
	exp := now.Add(ttl)
	return sign(secret, GameAccessClaims{
		Scope:            ScopeGameAccess,
		GameID:           gameID,
		RegisteredClaims: registered(viewerID, now, exp),
	}, exp)
}

// VerifyGameAccessToken checks signature, scope and expiry of a grant.
// Expiry is judged at now, the same clock the grant was issued on.
func VerifyGameAccessToken(secret []byte, raw, gameID string, viewerID uint64, now time.Time) error {
	var claims GameAccessClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }))
	if err != nil {
		return err
	}
	if claims.Scope != ScopeGameAccess || claims.GameID != gameID ||
		claims.Subject != strconv.FormatUint(viewerID, 10) {
		return ErrTokenScope
	}
	return nil
}

// NewRefreshToken draws a random refresh token living ttlDays.
func NewRefreshToken(ttlDays int) (RefreshToken, error) {
	buf := make([]byte, refreshBytes)
	if _, err := rand.Read(buf); err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{
		Raw: hex.EncodeToString(buf),
		Exp: time.Now().UTC().AddDate(0, 0, ttlDays),
	}, nil
}

// HashRefreshRaw is the hex SHA-256 of a raw refresh token, the form
// stored in refresh_tokens.token_hash.
func HashRefreshRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
