package service

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/rewards-platform/internal/model"
	"github.com/mmeshcher/rewards-platform/internal/repository"
)

const (
	minPasswordLen = 6
	usersListLimit = 300
)

var (
	errShortPassword  = errors.New("password must be at least 6 characters")
	errLoginRequired  = errors.New("email or phone is required")
	errNegativePoints = errors.New("points must be non-negative")
	errInvalidStatus  = errors.New("status must be active or inactive")
)

// RegisterInput содержит данные для регистрации пользователя.
type RegisterInput struct {
	FullName string
	Email    string
	Phone    string
	Password string
}

// Register создаёт пользователя и открывает ему первое задание каталога.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	password := strings.TrimSpace(in.Password)
	if len(password) < minPasswordLen {
		return nil, invalid(errShortPassword)
	}

	u := model.User{
		FullName:  strings.TrimSpace(in.FullName),
		Email:     strings.TrimSpace(in.Email),
		Phone:     strings.TrimSpace(in.Phone),
		Status:    model.UserStatusActive,
		CreatedAt: s.now(),
	}
	if u.Email == "" && u.Phone == "" {
		return nil, invalid(errLoginRequired)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.passwordCost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}
	u.PasswordHash = hash

	err = s.repo.InTx(ctx, func(tx repository.Store) error {
		id, err := tx.CreateUser(ctx, &u)
		if err != nil {
			if errors.Is(err, repository.ErrUserExists) {
				return ErrUserExists
			}
			return errors.Wrap(err, "create user")
		}
		u.ID = id
		return resetProgress(ctx, tx, id, u.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Authenticate проверяет учётные данные. Email сравнивается без учёта регистра, телефон точно.
func (s *Service) Authenticate(ctx context.Context, login, password string) (*model.User, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	u, err := s.repo.GetUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, "find user")
	}

	if u.Status != model.UserStatusActive {
		return nil, ErrUserInactive
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	if err := s.repo.TouchLogin(ctx, u.ID, now); err != nil {
		return nil, errors.Wrap(err, "record login")
	}
	u.LastLoginAt = &now
	return u, nil
}

// EnsureAdmin создаёт администратора, если в системе его ещё нет.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) error {
	exists, err := s.repo.HasAdmin(ctx)
	if err != nil {
		return errors.Wrap(err, "check admin")
	}
	if exists {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.passwordCost)
	if err != nil {
		return errors.Wrap(err, "hash password")
	}

	admin := model.User{
		FullName:     "Admin",
		Email:        email,
		PasswordHash: hash,
		IsAdmin:      true,
		Status:       model.UserStatusActive,
		CreatedAt:    s.now(),
	}
	id, err := s.repo.CreateUser(ctx, &admin)
	if err != nil {
		return errors.Wrap(err, "create admin")
	}

	s.logger.Info("bootstrap administrator created", zap.Int64("userID", id), zap.String("email", email))
	return nil
}

// ActiveUser возвращает пользователя, если его учётная запись активна.
func (s *Service) ActiveUser(ctx context.Context, userID int64) (*model.User, error) {
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, "get user")
	}
	if u.Status != model.UserStatusActive {
		return nil, ErrUserInactive
	}
	return u, nil
}

// ListUsers возвращает последних зарегистрированных пользователей без администраторов.
func (s *Service) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.repo.ListUsers(ctx, usersListLimit)
}

// SetUserPoints устанавливает баланс пользователя напрямую.
func (s *Service) SetUserPoints(ctx context.Context, userID, points int64) error {
	if points < 0 {
		return invalid(errNegativePoints)
	}
	return s.updateRegularUser(ctx, userID, func(tx repository.Store) error {
		return tx.SetPoints(ctx, userID, points)
	})
}

// SetUserPassword задаёт пользователю новый пароль.
func (s *Service) SetUserPassword(ctx context.Context, userID int64, password string) error {
	password = strings.TrimSpace(password)
	if len(password) < minPasswordLen {
		return invalid(errShortPassword)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.passwordCost)
	if err != nil {
		return errors.Wrap(err, "hash password")
	}

	return s.updateRegularUser(ctx, userID, func(tx repository.Store) error {
		return tx.SetPasswordHash(ctx, userID, hash)
	})
}

// SetUserStatus блокирует или разблокирует учётную запись.
func (s *Service) SetUserStatus(ctx context.Context, userID int64, status string) error {
	st := model.UserStatus(status)
	if st != model.UserStatusActive && st != model.UserStatusInactive {
		return invalid(errInvalidStatus)
	}
	return s.updateRegularUser(ctx, userID, func(tx repository.Store) error {
		return tx.SetUserStatus(ctx, userID, st)
	})
}

// updateRegularUser выполняет изменение над пользователем, не являющимся администратором.
func (s *Service) updateRegularUser(ctx context.Context, userID int64, fn func(tx repository.Store) error) error {
	return s.repo.InTx(ctx, func(tx repository.Store) error {
		u, err := lockUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if u.IsAdmin {
			return errors.Wrapf(ErrNotFound, "user %d", userID)
		}
		if err := fn(tx); err != nil {
			return errors.Wrap(err, "update user")
		}
		return nil
	})
}
