package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/sharedlists-backend/internal/users"
	pkgAuth "github.com/angelmondragon/sharedlists-backend/pkg/auth"
	"github.com/angelmondragon/sharedlists-backend/pkg/auth/session"
	"github.com/angelmondragon/sharedlists-backend/pkg/config"
	"github.com/angelmondragon/sharedlists-backend/pkg/db"
	"github.com/angelmondragon/sharedlists-backend/pkg/db/models"
	"github.com/angelmondragon/sharedlists-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/sharedlists-backend/pkg/errors"
	"github.com/angelmondragon/sharedlists-backend/pkg/logger"
	"github.com/angelmondragon/sharedlists-backend/pkg/security"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const msgWrongCurrentPassword = "Current password is incorrect"

// Service defines the behavior needed by the auth controller.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	Refresh(ctx context.Context, accessToken, refreshToken string) (*AuthResponse, error)
	Logout(ctx context.Context, accessID string) error
	Profile(ctx context.Context, userID uuid.UUID) (*users.UserDTO, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, req UpdateProfileRequest) (*users.UserDTO, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, req ChangePasswordRequest) error
}

type userRepository interface {
	Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdateProfile(ctx context.Context, id uuid.UUID, update users.ProfileUpdate) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
}

type sessionManager interface {
	Generate(ctx context.Context, accessID string, userID uuid.UUID) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (*session.Rotation, error)
	Revoke(ctx context.Context, accessID string) error
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	UserRepo       userRepository
	SessionManager sessionManager
	JWTConfig      config.JWTConfig
	PasswordConfig config.PasswordConfig
	Logger         *logger.Logger
	StorageTimeout time.Duration
}

type service struct {
	users       userRepository
	session     sessionManager
	jwtCfg      config.JWTConfig
	hasher      *security.Hasher
	logg        *logger.Logger
	timeout     time.Duration
	now         func() time.Time
}

// NewService constructs the auth service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.UserRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if params.SessionManager == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &service{
		users:       params.UserRepo,
		session:     params.SessionManager,
		jwtCfg:      params.JWTConfig,
		hasher:      security.NewHasher(params.PasswordConfig),
		logg:        params.Logger,
		timeout:     params.StorageTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	email := normalizeEmail(req.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Email is required")
	}
	lang, err := enums.ParseLanguage(req.PreferredLanguage)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Preferred language must be en, el or de")
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var user *models.User
	err = s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.users.Create(ctx, users.CreateUserDTO{
			Email:             email,
			PasswordHash:      passwordHash,
			DisplayName:       trimmedOrNil(req.DisplayName),
			PreferredLanguage: lang,
		})
		return err
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, pkgerrors.MsgEmailExists)
		}
		return nil, pkgerrors.WrapStorage(err, "create user")
	}

	s.logg.Info(s.logg.WithUserID(ctx, user.ID), "auth.register")
	return s.issue(ctx, user)
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	user, err := s.authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, user)
}

// Refresh rotates the session named by the bearer's jti. The bearer may be expired.
func (s *service) Refresh(ctx context.Context, accessToken, refreshToken string) (*AuthResponse, error) {
	claims, err := pkgAuth.ParseAccessTokenAllowExpired(s.jwtCfg, accessToken)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, pkgerrors.MsgInvalidToken)
	}

	rotation, err := s.session.Rotate(ctx, claims.ID, refreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, pkgerrors.MsgInvalidToken)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate session")
	}
	if rotation.UserID != claims.UserID {
		_ = s.session.Revoke(ctx, rotation.AccessID)
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, pkgerrors.MsgInvalidToken)
	}

	var user *models.User
	err = s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.users.FindByID(ctx, rotation.UserID)
		return err
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, pkgerrors.MsgInvalidToken)
		}
		return nil, pkgerrors.WrapStorage(err, "load user")
	}

	accessToken, err = s.mint(user, rotation.AccessID)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: rotation.RefreshToken,
		User:         users.FromModel(user),
	}, nil
}

func (s *service) Logout(ctx context.Context, accessID string) error {
	if err := s.session.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	return nil
}

func (s *service) Profile(ctx context.Context, userID uuid.UUID) (*users.UserDTO, error) {
	var user *models.User
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.users.FindByID(ctx, userID)
		return err
	})
	if err != nil {
		return nil, userError(err, "load profile")
	}
	return users.FromModel(user), nil
}

func (s *service) UpdateProfile(ctx context.Context, userID uuid.UUID, req UpdateProfileRequest) (*users.UserDTO, error) {
	update := users.ProfileUpdate{}
	if req.DisplayName != nil {
		update.DisplayName = trimmedOrNil(req.DisplayName)
		if update.DisplayName == nil {
			empty := ""
			update.DisplayName = &empty
		}
	}
	if req.PreferredLanguage != nil {
		lang, err := enums.ParseLanguage(*req.PreferredLanguage)
		if err != nil || *req.PreferredLanguage == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "Preferred language must be en, el or de")
		}
		update.PreferredLanguage = &lang
	}

	var user *models.User
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.users.UpdateProfile(ctx, userID, update)
		return err
	})
	if err != nil {
		return nil, userError(err, "update profile")
	}
	return users.FromModel(user), nil
}

func (s *service) ChangePassword(ctx context.Context, userID uuid.UUID, req ChangePasswordRequest) error {
	var user *models.User
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.users.FindByID(ctx, userID)
		return err
	})
	if err != nil {
		return userError(err, "load user")
	}

	valid, err := s.hasher.Verify(req.CurrentPassword, user.PasswordHash)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, msgWrongCurrentPassword)
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	if err := s.withTimeout(ctx, func(ctx context.Context) error {
		return s.users.UpdatePasswordHash(ctx, userID, hash)
	}); err != nil {
		return pkgerrors.WrapStorage(err, "update password")
	}

	s.logg.Info(s.logg.WithUserID(ctx, userID), "auth.password.changed")
	return nil
}

func (s *service) authenticate(ctx context.Context, email, password string) (*models.User, error) {
	input := normalizeEmail(email)
	if input == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, pkgerrors.MsgInvalidCredentials)
	}

	var user *models.User
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.users.FindByEmail(ctx, input)
		return err
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, pkgerrors.MsgInvalidCredentials)
		}
		return nil, pkgerrors.WrapStorage(err, "lookup user")
	}

	valid, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, pkgerrors.MsgInvalidCredentials)
	}
	if s.hasher.NeedsRehash(user.PasswordHash) {
		s.upgradeHash(ctx, user.ID, password)
	}
	return user, nil
}

// upgradeHash re-encodes a password hashed under older argon2 settings. Login proceeds either way.
func (s *service) upgradeHash(ctx context.Context, userID uuid.UUID, password string) {
	ctx = s.logg.WithUserID(ctx, userID)
	hash, err := s.hasher.Hash(password)
	if err == nil {
		err = s.withTimeout(ctx, func(ctx context.Context) error {
			return s.users.UpdatePasswordHash(ctx, userID, hash)
		})
	}
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "auth.password.rehash_failed")
		return
	}
	s.logg.Info(ctx, "auth.password.rehashed")
}

// issue records the login and mints a fresh access/refresh pair.
func (s *service) issue(ctx context.Context, user *models.User) (*AuthResponse, error) {
	now := s.now()
	if err := s.withTimeout(ctx, func(ctx context.Context) error {
		return s.users.UpdateLastLogin(ctx, user.ID, now)
	}); err != nil {
		return nil, pkgerrors.WrapStorage(err, "update last login")
	}
	user.LastLoginAt = &now

	accessID := session.NewAccessID()
	accessToken, err := s.mint(user, accessID)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.session.Generate(ctx, accessID, user.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store refresh token")
	}

	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         users.FromModel(user),
	}, nil
}

func (s *service) mint(user *models.User, accessID string) (string, error) {
	token, err := pkgAuth.MintAccessToken(s.jwtCfg, s.now(), pkgAuth.AccessTokenPayload{
		UserID: user.ID,
		Email:  user.Email,
		JTI:    accessID,
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return token, nil
}

func (s *service) withTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := db.WithTimeout(ctx, s.timeout)
	defer cancel()
	return fn(ctx)
}

func userError(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, pkgerrors.MsgUserNotFound)
	}
	return pkgerrors.WrapStorage(err, msg)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
