package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const sessionIssuer = "dentflow"

var (
	ErrSessionInvalid = errors.New("invalid session token")
	ErrSessionRevoked = errors.New("session has been revoked")
)

// Session is created at login and destroyed at logout. Components that need
// to know who is acting receive it explicitly.
type Session struct {
	ID        string    `json:"-"`
	Token     string    `json:"token"`
	User      User      `json:"user"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// CanSchedule is false for a nil session.
func (s *Session) CanSchedule() bool {
	return s != nil && s.User.Role.CanSchedule()
}

func (s *Session) CanEditPatients() bool {
	return s != nil && s.User.Role.CanEditPatients()
}

// Claims is the payload of a session token.
type Claims struct {
	jwt.RegisteredClaims
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Issuer signs and verifies HS256 session tokens.
type Issuer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewIssuer returns an Issuer. An empty key is replaced by a random one, so
// sessions do not survive a restart.
func NewIssuer(key []byte, ttl time.Duration) (*Issuer, error) {
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate signing key: %w", err)
		}
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive")
	}
	return &Issuer{key: key, ttl: ttl, now: time.Now}, nil
}

// Issue starts a session for u.
func (i *Issuer) Issue(u User) (*Session, error) {
	now := i.now()
	expires := now.Add(i.ttl).Truncate(time.Second)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.ID,
			Issuer:    sessionIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Name:  u.Name,
		Email: u.Email,
		Role:  u.Role,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}

	return &Session{
		ID:        claims.ID,
		Token:     token,
		User:      u,
		ExpiresAt: expires,
	}, nil
}

// Parse verifies a session token and rebuilds its Session.
func (i *Issuer) Parse(token string) (*Session, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return i.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrSessionInvalid, err)
	}
	if claims.ID == "" || claims.Subject == "" || !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: incomplete claims", ErrSessionInvalid)
	}

	return &Session{
		ID:    claims.ID,
		Token: token,
		User: User{
			ID:    claims.Subject,
			Name:  claims.Name,
			Email: claims.Email,
			Role:  claims.Role,
		},
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
