package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/wfunc/memoryserver/models"
)

var (
	ErrAdminDisabled      = errors.New("admin access is not configured")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

type adminClaims struct {
	Admin bool `json:"admin"`
	jwt.RegisteredClaims
}

// Authenticator issues and checks administrator tokens.
type Authenticator struct {
	secret       []byte
	passwordHash []byte
	ttl          time.Duration
	now          func() time.Time
}

func NewAuthenticator(secret, passwordHash string, ttl time.Duration) *Authenticator {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Authenticator{
		secret:       []byte(secret),
		passwordHash: []byte(passwordHash),
		ttl:          ttl,
		now:          time.Now,
	}
}

// HashPassword returns the bcrypt hash to put in server.admin_password_hash.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(b), err
}

func (a *Authenticator) Enabled() bool {
	return len(a.secret) > 0 && len(a.passwordHash) > 0
}

// Login checks the administrator password and signs a token for username.
func (a *Authenticator) Login(username, password string) (string, time.Time, error) {
	if !a.Enabled() {
		return "", time.Time{}, ErrAdminDisabled
	}
	if username == "" || bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)) != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}
	now := a.now()
	exp := now.Add(a.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, adminClaims{
		Admin: true,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	ss, err := token.SignedString(a.secret)
	return ss, exp, err
}

// Verify returns the administrator name carried by token.
func (a *Authenticator) Verify(tokenStr string) (string, error) {
	if !a.Enabled() {
		return "", ErrAdminDisabled
	}
	claims := &adminClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil || !token.Valid || !claims.Admin || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

type contextKey string

var adminCtxKey = contextKey("admin")

func bearer(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(h), "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// requireAdmin rejects requests without a valid administrator token.
func (s *GameServer) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name, err := s.auth.Verify(bearer(r))
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		admin := models.Player{ID: "admin:" + name, Username: name, IsAdmin: true}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), adminCtxKey, admin)))
	})
}

func currentAdmin(r *http.Request) models.Player {
	p, _ := r.Context().Value(adminCtxKey).(models.Player)
	return p
}
