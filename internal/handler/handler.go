// Package handler содержит HTTP-обработчики API платформы вознаграждений.
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/rewards-platform/internal/middleware"
	"github.com/mmeshcher/rewards-platform/internal/model"
	"github.com/mmeshcher/rewards-platform/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Register(ctx context.Context, in service.RegisterInput) (*model.User, error)
	Authenticate(ctx context.Context, login, password string) (*model.User, error)
	Summary(ctx context.Context, userID int64) (*model.Summary, error)

	ListProgress(ctx context.Context, userID int64) ([]model.TaskProgress, error)
	StartTask(ctx context.Context, userID int64) (*service.RunTicket, error)
	FinishTask(ctx context.Context, userID int64, token string) (int64, error)

	RequestWalletTx(ctx context.Context, userID int64, txType, amountUSD string) (*service.WalletReceipt, error)
	WalletHistory(ctx context.Context, userID int64) ([]model.WalletTransaction, error)
	PendingRequests(ctx context.Context) ([]model.PendingRequest, error)
	ApproveWalletTx(ctx context.Context, txID string) error
	RejectWalletTx(ctx context.Context, txID string) error

	ListUsers(ctx context.Context) ([]model.User, error)
	SetUserPoints(ctx context.Context, userID, points int64) error
	SetUserPassword(ctx context.Context, userID int64, password string) error
	SetUserStatus(ctx context.Context, userID int64, status string) error
	ResetProgress(ctx context.Context, userID int64) error

	Settings(ctx context.Context) (*model.Settings, error)
	UpdateSettings(ctx context.Context, upd service.SettingsUpdate) (*model.Settings, error)

	ListTasks(ctx context.Context) ([]model.Task, error)
	CreateTask(ctx context.Context, in service.TaskInput) (*model.Task, error)
	UpdateTask(ctx context.Context, id int64, upd service.TaskUpdate) (*model.Task, error)
}

// Handler реализует HTTP-обработчики API платформы вознаграждений.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

type okResponse struct {
	OK bool `json:"ok"`
}

var okBody = okResponse{OK: true}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

type registerRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type registerResponse struct {
	OK bool  `json:"ok"`
	ID int64 `json:"id"`
}

// Register обрабатывает регистрацию нового пользователя и сразу авторизует его.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := h.service.Register(r.Context(), service.RegisterInput{
		FullName: req.FullName,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.authMiddleware.SetAuthCookie(w, u.ID, u.IsAdmin); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, registerResponse{OK: true, ID: u.ID})
}

// loginRequest принимает идентификатор под любым из имён полей, которые отправляют клиенты.
type loginRequest struct {
	EmailOrPhone string `json:"emailOrPhone"`
	Identifier   string `json:"identifier"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Password     string `json:"password"`
}

func (l loginRequest) login() string {
	for _, v := range []string{l.EmailOrPhone, l.Identifier, l.Email, l.Phone} {
		if v != "" {
			return v
		}
	}
	return ""
}

type loginResponse struct {
	OK      bool `json:"ok"`
	IsAdmin bool `json:"is_admin"`
}

// Login выполняет аутентификацию пользователя и устанавливает cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.login() == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "email or phone and password are required")
		return
	}

	u, err := h.service.Authenticate(r.Context(), req.login(), req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.authMiddleware.SetAuthCookie(w, u.ID, u.IsAdmin); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{OK: true, IsAdmin: u.IsAdmin})
}

// Logout удаляет cookie авторизации.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	middleware.ClearAuthCookie(w)
	writeJSON(w, http.StatusOK, okBody)
}

type meResponse struct {
	OK       bool           `json:"ok"`
	App      appInfo        `json:"app"`
	User     meUser         `json:"user"`
	Settings model.Settings `json:"settings"`
	Tasks    tasksCounter   `json:"tasks"`
}

type appInfo struct {
	Name string `json:"name"`
}

type meUser struct {
	ID            int64  `json:"id"`
	FullName      string `json:"full_name"`
	PointsBalance int64  `json:"points_balance"`
	IsAdmin       bool   `json:"is_admin"`
}

type tasksCounter struct {
	Total int `json:"total"`
	Done  int `json:"done"`
}

// Me возвращает сводку по текущему пользователю.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, authed := middleware.GetUserIDFromContext(r.Context())
	if !authed {
		writeMessage(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		return
	}

	sum, err := h.service.Summary(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		OK:  true,
		App: appInfo{Name: sum.Settings.AppName},
		User: meUser{
			ID:            sum.User.ID,
			FullName:      sum.User.FullName,
			PointsBalance: sum.User.PointsBalance,
			IsAdmin:       sum.User.IsAdmin,
		},
		Settings: sum.Settings,
		Tasks:    tasksCounter{Total: sum.TasksTotal, Done: sum.TasksDone},
	})
}
