package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercadito-app/mercadito-backend/internal/vendors"
	pkgauth "github.com/mercadito-app/mercadito-backend/pkg/auth"
	"github.com/mercadito-app/mercadito-backend/pkg/auth/session"
	"github.com/mercadito-app/mercadito-backend/pkg/config"
	"github.com/mercadito-app/mercadito-backend/pkg/db/models"
	"github.com/mercadito-app/mercadito-backend/pkg/enums"
	pkgerrors "github.com/mercadito-app/mercadito-backend/pkg/errors"
	"github.com/mercadito-app/mercadito-backend/pkg/security"
)

const minPasswordLength = 8

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type sessionManager interface {
	Generate(ctx context.Context, accessID string) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

type vendorOnboarder interface {
	Create(ctx context.Context, tx *gorm.DB, input vendors.CreateVendorInput) (*models.Vendor, error)
}

// RegisterInput covers customer sign-up.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

// RegisterVendorInput covers vendor sign-up: the account and its business
// profile are created together.
type RegisterVendorInput struct {
	RegisterInput
	BusinessName string
	Contact      string
	Categories   []string
}

// Credentials is an email/password pair.
type Credentials struct {
	Email    string
	Password string
}

// AuthResult is the signed-in state handed back after register and login.
type AuthResult struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
}

// RefreshResult is the rotated token pair.
type RefreshResult struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Service exposes registration and the token lifecycle.
type Service interface {
	RegisterCustomer(ctx context.Context, input RegisterInput) (*AuthResult, error)
	RegisterVendor(ctx context.Context, input RegisterVendorInput) (*AuthResult, error)
	Login(ctx context.Context, creds Credentials) (*AuthResult, error)
	Refresh(ctx context.Context, rawAccessToken, refreshToken string) (*RefreshResult, error)
	Logout(ctx context.Context, accessID string) error
}

type service struct {
	repo        Repository
	tx          txRunner
	sessions    sessionManager
	vendors     vendorOnboarder
	jwtConfig   config.JWTConfig
	passwordCfg config.PasswordConfig
}

// NewService builds an auth service with the required dependencies.
func NewService(
	repo Repository,
	tx txRunner,
	sessions sessionManager,
	onboarder vendorOnboarder,
	jwtConfig config.JWTConfig,
	passwordCfg config.PasswordConfig,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session manager required")
	}
	if onboarder == nil {
		return nil, fmt.Errorf("vendor onboarder required")
	}
	return &service{
		repo:        repo,
		tx:          tx,
		sessions:    sessions,
		vendors:     onboarder,
		jwtConfig:   jwtConfig,
		passwordCfg: passwordCfg,
	}, nil
}

func (s *service) RegisterCustomer(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	user, err := s.prepareUser(ctx, input, enums.RoleCustomer)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := s.repo.WithTx(tx).Create(ctx, user)
		return err
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating user")
	}
	return s.issueTokens(ctx, user)
}

// RegisterVendor creates the account, the vendor profile, and the link
// between them in one transaction.
func (s *service) RegisterVendor(ctx context.Context, input RegisterVendorInput) (*AuthResult, error) {
	user, err := s.prepareUser(ctx, input.RegisterInput, enums.RoleVendor)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.Create(ctx, user); err != nil {
			return err
		}
		vendor, err := s.vendors.Create(ctx, tx, vendors.CreateVendorInput{
			OwnerID:      user.ID,
			BusinessName: input.BusinessName,
			Contact:      input.Contact,
			Categories:   input.Categories,
		})
		if err != nil {
			return err
		}
		user.VendorID = &vendor.ID
		return repo.LinkVendor(ctx, user.ID, vendor.ID)
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "registering vendor")
	}
	return s.issueTokens(ctx, user)
}

func (s *service) Login(ctx context.Context, creds Credentials) (*AuthResult, error) {
	email := normalizeEmail(creds.Email)
	if email == "" || creds.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and password are required")
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalidCredentials()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading user")
	}
	if !user.IsActive {
		return nil, invalidCredentials()
	}

	match, err := security.VerifyPassword(creds.Password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verifying password")
	}
	if !match {
		return nil, invalidCredentials()
	}

	return s.issueTokens(ctx, user)
}

// Refresh rotates the session behind an access token. The old token may be
// expired; its signature and issuer still have to check out.
func (s *service) Refresh(ctx context.Context, rawAccessToken, refreshToken string) (*RefreshResult, error) {
	claims, err := pkgauth.ParseExpiredAccessToken(s.jwtConfig, rawAccessToken)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid access token")
	}

	user, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "account no longer exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading user")
	}
	if !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "account disabled")
	}

	newAccessID, newRefreshToken, err := s.sessions.Rotate(ctx, claims.ID, refreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotating session")
	}

	accessToken, err := pkgauth.MintAccessToken(s.jwtConfig, time.Now(), pkgauth.AccessTokenPayload{
		UserID:   user.ID,
		Role:     user.Role,
		VendorID: user.VendorID,
		JTI:      newAccessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "minting access token")
	}

	return &RefreshResult{
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
	}, nil
}

func (s *service) Logout(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "access id is required")
	}
	if err := s.sessions.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoking session")
	}
	return nil
}

func (s *service) prepareUser(ctx context.Context, input RegisterInput, role enums.Role) (*models.User, error) {
	email := normalizeEmail(input.Email)
	name := strings.TrimSpace(input.Name)
	if email == "" || !strings.Contains(email, "@") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a valid email is required")
	}
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if len(input.Password) < minPasswordLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	taken, err := s.repo.EmailTaken(ctx, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking email")
	}
	if taken {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
	}

	hash, err := security.HashPassword(input.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hashing password")
	}

	return &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         role,
		IsActive:     true,
	}, nil
}

func (s *service) issueTokens(ctx context.Context, user *models.User) (*AuthResult, error) {
	accessID := session.NewAccessID()
	accessToken, err := pkgauth.MintAccessToken(s.jwtConfig, time.Now(), pkgauth.AccessTokenPayload{
		UserID:   user.ID,
		Role:     user.Role,
		VendorID: user.VendorID,
		JTI:      accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "minting access token")
	}

	refreshToken, err := s.sessions.Generate(ctx, accessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating session")
	}

	return &AuthResult{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func invalidCredentials() error {
	return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
