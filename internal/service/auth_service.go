package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AuthService registers users and issues bearer tokens
type AuthService struct {
	users     UserStore
	jwtSecret []byte
	jwtExpiry time.Duration
	logger    *zap.Logger
}

func NewAuthService(users UserStore, jwtSecret string, jwtExpiry time.Duration) *AuthService {
	return &AuthService{
		users:     users,
		jwtSecret: []byte(jwtSecret),
		jwtExpiry: jwtExpiry,
		logger:    util.GetLogger(),
	}
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required,min=3"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type claims struct {
	Admin bool `json:"admin"`
	jwt.RegisteredClaims
}

// Register creates a customer account
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*models.User, error) {
	if msg := passwordIssue(req.Password); msg != "" {
		return nil, ValidationError(map[string]string{"password": msg})
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, InternalError(fmt.Errorf("hash password: %w", err))
	}

	user := &models.User{
		ID:           uuid.New(),
		Name:         req.Name,
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: string(hashed),
	}
	err = s.users.CreateUser(ctx, user)
	if errors.Is(err, store.ErrDuplicate) {
		return nil, ValidationError(map[string]string{"email": "email already registered"})
	}
	if err != nil {
		return nil, InternalError(fmt.Errorf("create user: %w", err))
	}

	s.logger.Info("User registered", zap.String("user_id", user.ID.String()))
	return user, nil
}

// Login checks credentials and returns a signed token
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, store.ErrNotFound) {
		return nil, Errorf(KindUnauthenticated, "invalid credentials")
	}
	if err != nil {
		return nil, InternalError(fmt.Errorf("load user: %w", err))
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, Errorf(KindUnauthenticated, "invalid credentials")
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return nil, InternalError(fmt.Errorf("generate token: %w", err))
	}
	return &AuthResponse{Token: token, User: user}, nil
}

// IssueToken signs an HS256 token carrying the user id and admin flag
func (s *AuthService) IssueToken(user *models.User) (string, error) {
	now := time.Now()
	c := claims{
		Admin: user.Admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtExpiry)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.jwtSecret)
}

// ParseToken validates a bearer token and returns its principal
func (s *AuthService) ParseToken(raw string) (*Principal, error) {
	var c claims
	token, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, Errorf(KindUnauthenticated, "invalid token")
	}

	userID, err := uuid.Parse(c.Subject)
	if err != nil {
		return nil, Errorf(KindUnauthenticated, "invalid token subject")
	}
	return &Principal{UserID: userID, Admin: c.Admin}, nil
}

// Me returns the caller's own account.
func (s *AuthService) Me(ctx context.Context, p *Principal) (*models.User, error) {
	if err := Authorize(p, Authenticated()); err != nil {
		return nil, err
	}
	user, err := s.users.GetUserByID(ctx, p.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, Errorf(KindUnauthenticated, "account no longer exists")
	}
	if err != nil {
		return nil, InternalError(fmt.Errorf("load user: %w", err))
	}
	return user, nil
}

// ListUsers returns every account. Admin only.
func (s *AuthService) ListUsers(ctx context.Context, p *Principal) ([]models.User, error) {
	if err := Authorize(p, AdminRole()); err != nil {
		return nil, err
	}
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, InternalError(fmt.Errorf("list users: %w", err))
	}
	return users, nil
}

// passwordIssue returns why a password is too weak, or "".
func passwordIssue(pw string) string {
	var upper, lower, digit, special bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	switch {
	case len(pw) < 8:
		return "must be at least 8 characters"
	case !upper:
		return "must contain an upper-case letter"
	case !lower:
		return "must contain a lower-case letter"
	case !digit:
		return "must contain a digit"
	case !special:
		return "must contain a special character"
	}
	return ""
}
