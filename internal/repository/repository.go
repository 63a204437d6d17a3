// Package repository содержит хранилище платформы вознаграждений: контракт построчных операций,
// реализацию в PostgreSQL и реализацию в памяти процесса.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/mmeshcher/rewards-platform/internal/model"
)

// ErrUserExists возвращается при попытке создать пользователя с уже занятым email или телефоном.
var (
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrTaskNotFound возвращается, если задание не найдено в каталоге.
	ErrTaskNotFound = errors.New("task not found")
	// ErrOrderIndexTaken возвращается, если позиция в каталоге уже занята другим заданием.
	ErrOrderIndexTaken = errors.New("order index already taken")
	// ErrRunNotFound возвращается, если подходящий запуск задания не найден.
	ErrRunNotFound = errors.New("task run not found")
	// ErrRunExists возвращается, если у пользователя уже есть выполняющийся запуск.
	ErrRunExists = errors.New("running task run already exists")
	// ErrWalletTxNotFound возвращается, если заявка кошелька не найдена.
	ErrWalletTxNotFound = errors.New("wallet transaction not found")
)

// Store описывает построчные операции над сущностями платформы.
// Реализация доступна как вне транзакции, так и внутри InTx.
type Store interface {
	CreateUser(ctx context.Context, u *model.User) (int64, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)
	// LockUser читает пользователя и удерживает эксклюзивную блокировку его строки до конца транзакции.
	LockUser(ctx context.Context, id int64) (*model.User, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	ListUsers(ctx context.Context, limit int) ([]model.User, error)
	ListUserIDs(ctx context.Context) ([]int64, error)
	HasAdmin(ctx context.Context) (bool, error)
	AddPoints(ctx context.Context, userID, delta int64) (int64, error)
	SetPoints(ctx context.Context, userID, points int64) error
	SetPasswordHash(ctx context.Context, userID int64, hash []byte) error
	SetUserStatus(ctx context.Context, userID int64, status model.UserStatus) error
	TouchLogin(ctx context.Context, userID int64, at time.Time) error

	AllTasks(ctx context.Context) ([]model.Task, error)
	// ActiveTasks возвращает активные задания по возрастанию OrderIndex.
	ActiveTasks(ctx context.Context) ([]model.Task, error)
	GetTask(ctx context.Context, id int64) (*model.Task, error)
	CreateTask(ctx context.Context, t *model.Task) (int64, error)
	UpdateTask(ctx context.Context, t *model.Task) error
	MaxOrderIndex(ctx context.Context) (int, error)
	// LockCatalog блокирует вставку заданий до конца транзакции. Вызывается только внутри InTx.
	LockCatalog(ctx context.Context) error

	UserProgress(ctx context.Context, userID int64) ([]model.UserTaskProgress, error)
	InsertProgress(ctx context.Context, p *model.UserTaskProgress) error
	UpdateProgress(ctx context.Context, p *model.UserTaskProgress) error

	RunningRun(ctx context.Context, userID int64) (*model.TaskRun, error)
	RunningRunByToken(ctx context.Context, userID int64, token string) (*model.TaskRun, error)
	InsertRun(ctx context.Context, r *model.TaskRun) error
	UpdateRun(ctx context.Context, r *model.TaskRun) error
	ExpireRunningRuns(ctx context.Context, userID int64, at time.Time) (int64, error)

	GetSettings(ctx context.Context) (*model.Settings, error)
	UpdateSettings(ctx context.Context, s *model.Settings) error

	InsertWalletTx(ctx context.Context, t *model.WalletTransaction) error
	// LockWalletTx читает заявку и удерживает блокировку её строки до конца транзакции.
	LockWalletTx(ctx context.Context, id string) (*model.WalletTransaction, error)
	UpdateWalletTx(ctx context.Context, t *model.WalletTransaction) error
	WalletTxByUser(ctx context.Context, userID int64, limit int) ([]model.WalletTransaction, error)
	PendingWalletTx(ctx context.Context, limit int) ([]model.PendingRequest, error)
	UnnotifiedWalletTx(ctx context.Context, limit int) ([]model.PendingRequest, error)
	MarkWalletTxNotified(ctx context.Context, id string, at time.Time) error
}

// Repository дополняет Store атомарным выполнением набора операций.
// Если fn возвращает ошибку, ни одно изменение, сделанное внутри fn, не сохраняется.
type Repository interface {
	Store
	InTx(ctx context.Context, fn func(tx Store) error) error
	Close() error
}
