package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/foliohq/folio/internal/model"
	"github.com/foliohq/folio/internal/store"
)

var (
	// ErrInvalidCredentials covers both unknown-email and wrong-password
	// login failures. The two cases are never distinguished to the client.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrInvalidToken covers every token verification failure: expired,
	// malformed, wrong signature. Callers must not distinguish sub-cases.
	ErrInvalidToken = errors.New("invalid token")

	// ErrWrongPassword is returned by ChangePassword when the current
	// password does not match the stored hash.
	ErrWrongPassword = errors.New("current password is incorrect")

	// ErrSamePassword is returned by ChangePassword when the new password
	// equals the current one.
	ErrSamePassword = errors.New("new password must differ from the current password")
)

// dummyHash is a bcrypt digest of an unguessable throwaway value. A compare
// against it runs on the unknown-email login path so response timing does
// not reveal whether the email exists.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Principal is the authenticated identity attached to a request.
type Principal struct {
	AdminID int64
	Email   string
}

// AuthService verifies admin credentials and issues stateless JWT session
// tokens. Tokens carry no server-side state: there is no revocation list,
// and a leaked token stays valid until its natural expiry.
type AuthService struct {
	store  store.AdminStore
	secret []byte
	ttl    time.Duration
	logger *slog.Logger
}

// NewAuthService builds an AuthService. An empty signing secret is a fatal
// configuration error, not a runtime condition.
func NewAuthService(st store.AdminStore, secret string, ttl time.Duration, logger *slog.Logger) (*AuthService, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is not configured")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthService{
		store:  st,
		secret: []byte(secret),
		ttl:    ttl,
		logger: logger,
	}, nil
}

// TokenTTL returns the configured session token lifetime.
func (s *AuthService) TokenTTL() time.Duration {
	return s.ttl
}

type sessionClaims struct {
	AdminID int64  `json:"admin_id"`
	Email   string `json:"email"`
	jwt.RegisteredClaims
}

// IssueToken creates a signed session token for the given admin.
func (s *AuthService) IssueToken(adminID int64, email string) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		AdminID: adminID,
		Email:   email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			Issuer:    "folio",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// issueTokenWithTTL is used by expiry tests to mint already-expired tokens.
func (s *AuthService) issueTokenWithTTL(adminID int64, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		AdminID: adminID,
		Email:   email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    "folio",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// VerifyToken validates a session token and returns the embedded identity.
// Every failure mode maps to ErrInvalidToken.
func (s *AuthService) VerifyToken(tokenStr string) (*Principal, error) {
	claims := &sessionClaims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	return &Principal{
		AdminID: claims.AdminID,
		Email:   claims.Email,
	}, nil
}

// Login verifies the email/password pair and returns a session token with
// the matching admin record. Unknown email and wrong password produce the
// identical ErrInvalidCredentials; the unknown-email path still performs a
// bcrypt compare so timing stays comparable.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *model.Admin, error) {
	admin, err := s.store.GetAdminByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("look up admin: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.IssueToken(admin.ID, admin.Email)
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}

	if err := s.store.UpdateAdminLastLogin(ctx, admin.ID); err != nil {
		s.logger.Warn("failed to record last login", "admin_id", admin.ID, "error", err)
	}

	return token, admin, nil
}

// ChangePassword verifies the current password and persists a new bcrypt
// hash. The new password must differ from the current one; length rules are
// enforced at the HTTP boundary.
func (s *AuthService) ChangePassword(ctx context.Context, adminID int64, currentPassword, newPassword string) error {
	admin, err := s.store.GetAdminByID(ctx, adminID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(currentPassword)); err != nil {
		return ErrWrongPassword
	}
	if newPassword == currentPassword {
		return ErrSamePassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return s.store.UpdateAdminPassword(ctx, adminID, string(hash))
}

// HashPassword produces a bcrypt digest for offline admin creation.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
