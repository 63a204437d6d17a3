// Package model содержит доменные сущности платформы вознаграждений.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserStatus описывает состояние учётной записи.
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
)

// User представляет зарегистрированного пользователя платформы.
type User struct {
	ID            int64
	FullName      string
	Email         string
	Phone         string
	PasswordHash  []byte
	PointsBalance int64
	IsAdmin       bool
	Status        UserStatus
	CreatedAt     time.Time
	LastLoginAt   *time.Time
}

// Task описывает элемент каталога заданий.
type Task struct {
	ID           int64
	Title        string
	OrderIndex   int
	RewardPoints int64
	WaitSeconds  int64
	IsActive     bool
	CreatedAt    time.Time
}

// ProgressStatus описывает состояние задания для конкретного пользователя.
type ProgressStatus string

const (
	ProgressLocked    ProgressStatus = "locked"
	ProgressAvailable ProgressStatus = "available"
	ProgressCompleted ProgressStatus = "completed"
)

// UserTaskProgress хранит прогресс пользователя по одному заданию.
type UserTaskProgress struct {
	UserID       int64
	TaskID       int64
	Status       ProgressStatus
	StartedAt    *time.Time
	CompletedAt  *time.Time
	EarnedPoints int64
}

// TaskProgress объединяет задание каталога и состояние его прохождения пользователем.
type TaskProgress struct {
	Task   Task
	Status ProgressStatus
}

// RunStatus описывает состояние запуска задания.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunExpired   RunStatus = "expired"
)

// TaskRun описывает одну попытку выполнения доступного задания.
type TaskRun struct {
	ID               string
	UserID           int64
	TaskID           int64
	RunToken         string
	StartedAt        time.Time
	ExpectedFinishMS int64
	FinishedAt       *time.Time
	Status           RunStatus
}

// WalletTxType описывает направление операции кошелька.
type WalletTxType string

const (
	WalletDeposit  WalletTxType = "deposit"
	WalletWithdraw WalletTxType = "withdraw"
)

// WalletTxStatus описывает статус операции кошелька.
type WalletTxStatus string

const (
	WalletPending  WalletTxStatus = "pending"
	WalletApproved WalletTxStatus = "approved"
	WalletRejected WalletTxStatus = "rejected"
)

// WalletTransaction описывает заявку на пополнение или вывод.
// PointsDelta фиксируется при создании и больше не пересчитывается.
type WalletTransaction struct {
	ID              string
	UserID          int64
	Type            WalletTxType
	AmountUSD       decimal.Decimal
	RateUSDToPoints int64
	PointsDelta     int64
	Status          WalletTxStatus
	CreatedAt       time.Time
	ProcessedAt     *time.Time
	NotifiedAt      *time.Time
}

// PendingRequest дополняет заявку контактными данными владельца для администратора.
type PendingRequest struct {
	WalletTransaction
	FullName string
	Email    string
	Phone    string
}

// ManagerContact содержит контакты менеджера, обрабатывающего заявки.
type ManagerContact struct {
	Title    string `json:"title"`
	WhatsApp string `json:"whatsapp"`
	Telegram string `json:"telegram"`
}

// Settings содержит общие параметры платформы.
type Settings struct {
	AppName        string          `json:"app_name"`
	USDToPoints    int64           `json:"usd_to_points"`
	MinDepositUSD  decimal.Decimal `json:"min_deposit_usd"`
	MinWithdrawUSD decimal.Decimal `json:"min_withdraw_usd"`
	ManagerContact ManagerContact  `json:"manager_contact"`
}

// DefaultSettings возвращает параметры, с которыми платформа стартует впервые.
func DefaultSettings() Settings {
	return Settings{
		AppName:        "MRP Logistic",
		USDToPoints:    10,
		MinDepositUSD:  decimal.NewFromInt(5),
		MinWithdrawUSD: decimal.NewFromInt(10),
		ManagerContact: ManagerContact{
			Title:    "Contact the manager to complete the operation",
			WhatsApp: "+212600000000",
			Telegram: "@MRP_Manager",
		},
	}
}

// Summary содержит сводку по пользователю для главной страницы.
type Summary struct {
	User       User
	Settings   Settings
	TasksTotal int
	TasksDone  int
}
