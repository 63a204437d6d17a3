// Package service реализует бизнес-логику платформы вознаграждений: каталог заданий,
// прохождение заданий по порядку, таймер запусков и кошелёк с ручным подтверждением заявок.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/rewards-platform/internal/notify"
	"github.com/mmeshcher/rewards-platform/internal/repository"
)

// Notifier доставляет менеджеру сведения о новой заявке кошелька.
type Notifier interface {
	Notify(ctx context.Context, req notify.WalletRequest) (int, time.Duration, error)
}

// Service содержит бизнес-логику платформы вознаграждений.
type Service struct {
	repo         repository.Repository
	notifier     Notifier
	logger       *zap.Logger
	now          func() time.Time
	newToken     func() string
	newID        func() string
	passwordCost int
}

// Option настраивает Service.
type Option func(*Service)

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithTokenGenerator подменяет генератор токенов запусков.
func WithTokenGenerator(gen func() string) Option {
	return func(s *Service) { s.newToken = gen }
}

// WithLogger задаёт логгер фоновых операций.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithPasswordCost задаёт стоимость bcrypt.
func WithPasswordCost(cost int) Option {
	return func(s *Service) { s.passwordCost = cost }
}

// NewService создаёт новый сервис с указанным репозиторием и клиентом уведомлений менеджера.
// notifier может быть nil: тогда уведомления отключены.
func NewService(repo repository.Repository, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		notifier: notifier,
		logger:   zap.NewNop(),
		now: func() time.Time {
			return time.Now().UTC().Truncate(time.Microsecond)
		},
		newToken:     uuid.NewString,
		newID:        func() string { return uuid.Must(uuid.NewV7()).String() },
		passwordCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}
