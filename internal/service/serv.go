package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/linemk/proshop/internal/domain/models"
	security "github.com/linemk/proshop/internal/jwt-new"
	"github.com/linemk/proshop/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	log      *slog.Logger
	userRepo storage.UserStorage
	tokenTTL time.Duration
}

func NewAuthService(log *slog.Logger, userRepo storage.UserStorage, tokenTTL time.Duration) *AuthService {
	return &AuthService{
		log:      log,
		userRepo: userRepo,
		tokenTTL: tokenTTL,
	}
}

type AuthServiceInterface interface {
	Login(ctx context.Context, email, password, name string) (string, error)
}

// Login осуществляет аутентификацию пользователя.
// Если пользователь не найден, он регистрируется с ролью "user" (пароль хэшируется через bcrypt).
// Если найден - введённый пароль сравнивается с сохранённым хэшем.
// После успешной проверки выдается JWT-токен с ролью пользователя.
func (a *AuthService) Login(ctx context.Context, email, password, name string) (string, error) {
	const op = "auth.Login"
	logger := a.log.With(
		slog.String("op", op),
		slog.String("email", email),
	)
	logger.Info("checking user")

	user, err := a.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, storage.ErrUserNotFound) {
			logger.Error("failed to get user", slog.Any("error", err))
			return "", fmt.Errorf("%s: failed to get user: %w", op, err)
		}

		logger.Info("user not found, creating new user")
		user, err = a.createUser(ctx, email, password, name, models.RoleUser)
		if err != nil {
			logger.Error("failed to create user", slog.Any("error", err))
			return "", fmt.Errorf("%s: %w", op, err)
		}
	} else if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(password)); err != nil {
		logger.Warn("invalid password")
		return "", fmt.Errorf("%s: invalid credentials: %w", op, err)
	}

	token, err := security.NewToken(ctx, user, a.tokenTTL)
	if err != nil {
		logger.Error("failed to generate token", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to generate token: %w", op, err)
	}

	logger.Info("user logged in successfully", slog.Int64("userID", user.ID), slog.String("role", user.Role))
	return token, nil
}

// EnsureAdmin идемпотентно создает учетную запись администратора при старте.
// Существующая запись не меняется, даже если у нее другая роль или пароль.
func (a *AuthService) EnsureAdmin(ctx context.Context, email, name, password string) error {
	const op = "auth.EnsureAdmin"
	logger := a.log.With(slog.String("op", op), slog.String("email", email))

	if email == "" || password == "" {
		logger.Info("admin bootstrap skipped: email or password not configured")
		return nil
	}

	user, err := a.userRepo.GetUserByEmail(ctx, email)
	if err == nil {
		if !user.IsAdmin() {
			logger.Warn("bootstrap account exists without admin role", slog.Int64("userID", user.ID))
		}
		return nil
	}
	if !errors.Is(err, storage.ErrUserNotFound) {
		return fmt.Errorf("%s: failed to get user: %w", op, err)
	}

	admin, err := a.createUser(ctx, email, password, name, models.RoleAdmin)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	logger.Info("admin account created", slog.Int64("userID", admin.ID))
	return nil
}

func (a *AuthService) createUser(ctx context.Context, email, password, name, role string) (*models.User, error) {
	passHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	user, err := a.userRepo.CreateUser(ctx, &models.User{
		Name:     name,
		Email:    email,
		PassHash: passHash,
		Role:     role,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}
