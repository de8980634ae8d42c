// Package auth provides authentication and authorization for the web server.
// It handles password hashing, JWT token generation/validation, and
// checking credentials against the configured accounts.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/unklstewy/skytrail/pkg/config"
)

// User roles for role-based access control (RBAC)
const (
	RoleAdmin  = "admin"  // Store management (remove aircraft)
	RoleViewer = "viewer" // Read-only access
)

const issuer = "skytrail"

var (
	// ErrInvalidCredentials is returned when authentication fails
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is returned when token validation fails
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrUnauthorized is returned when user lacks required permissions
	ErrUnauthorized = errors.New("unauthorized access")
	// ErrNoSecret is returned when no signing secret is configured
	ErrNoSecret = errors.New("jwt secret not configured")
)

// Claims represents the JWT claims for a user session
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Service provides authentication operations
type Service struct {
	secret []byte
	ttl    time.Duration
	users  map[string]config.UserConfig

	// now is the clock used for token timestamps
	now func() time.Time
}

// NewService creates an authentication service for the configured accounts.
func NewService(cfg config.AuthConfig) (*Service, error) {
	if cfg.JWTSecret == "" {
		return nil, ErrNoSecret
	}

	users := make(map[string]config.UserConfig, len(cfg.Users))
	for _, u := range cfg.Users {
		if u.Role == "" {
			u.Role = RoleViewer
		}
		users[u.Username] = u
	}

	return &Service{
		secret: []byte(cfg.JWTSecret),
		ttl:    cfg.TokenTTL(),
		users:  users,
		now:    time.Now,
	}, nil
}

// HashPassword hashes a plaintext password using bcrypt. The result goes in
// the password_hash field of a configured user.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Login checks a username and password and issues a token.
// Unknown users and wrong passwords both return ErrInvalidCredentials.
func (s *Service) Login(username, password string) (string, *Claims, error) {
	u, ok := s.users[username]
	if !ok {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}
	return s.GenerateToken(u.Username, u.Role)
}

// GenerateToken generates a signed JWT for a user
func (s *Service) GenerateToken(username, role string) (string, *Claims, error) {
	now := s.now()
	claims := &Claims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", nil, err
	}
	return tokenString, claims, nil
}

// ValidateToken validates a JWT token and returns the claims
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// HasRole checks if a user has a specific role or higher
// Role hierarchy: Admin > Viewer
func HasRole(userRole, requiredRole string) bool {
	roleLevel := map[string]int{
		RoleAdmin:  1,
		RoleViewer: 0,
	}

	userLevel, ok1 := roleLevel[userRole]
	requiredLevel, ok2 := roleLevel[requiredRole]
	if !ok1 || !ok2 {
		return false
	}
	return userLevel >= requiredLevel
}
