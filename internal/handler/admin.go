package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/rewards-platform/internal/model"
	"github.com/mmeshcher/rewards-platform/internal/service"
)

// PendingRequests возвращает очередь заявок, ожидающих решения, с контактами владельцев.
func (h *Handler) PendingRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.service.PendingRequests(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := walletListResponse{OK: true, Rows: make([]walletTxResponse, 0, len(reqs))}
	for _, pr := range reqs {
		row := newWalletTxResponse(pr.WalletTransaction)
		row.FullName = pr.FullName
		row.Email = pr.Email
		row.Phone = pr.Phone
		resp.Rows = append(resp.Rows, row)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ApproveRequest одобряет заявку и применяет её к балансу.
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.service.ApproveWalletTx)
}

// RejectRequest отклоняет заявку без изменения баланса.
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.service.RejectWalletTx)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, id string) error) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeMessage(w, http.StatusBadRequest, "request id is required")
		return
	}

	if err := apply(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okBody)
}

type userResponse struct {
	ID            int64   `json:"id"`
	FullName      string  `json:"full_name"`
	Email         string  `json:"email"`
	Phone         string  `json:"phone"`
	PointsBalance int64   `json:"points_balance"`
	Status        string  `json:"status"`
	CreatedAt     string  `json:"created_at"`
	LastLoginAt   *string `json:"last_login_at"`
}

type usersListResponse struct {
	OK   bool           `json:"ok"`
	Rows []userResponse `json:"rows"`
}

// ListUsers возвращает обычных пользователей, новые первыми.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := usersListResponse{OK: true, Rows: make([]userResponse, 0, len(users))}
	for _, u := range users {
		resp.Rows = append(resp.Rows, userResponse{
			ID:            u.ID,
			FullName:      u.FullName,
			Email:         u.Email,
			Phone:         u.Phone,
			PointsBalance: u.PointsBalance,
			Status:        string(u.Status),
			CreatedAt:     u.CreatedAt.Format(time.RFC3339),
			LastLoginAt:   formatTime(u.LastLoginAt),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type pointsRequest struct {
	Points flexString `json:"points"`
}

// SetUserPoints устанавливает баланс пользователя. Дробная часть отбрасывается.
func (h *Handler) SetUserPoints(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r)
	if !ok {
		writeMessage(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req pointsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	points, err := decimal.NewFromString(strings.TrimSpace(string(req.Points)))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "points must be a number")
		return
	}

	if err := h.service.SetUserPoints(r.Context(), userID, points.Floor().IntPart()); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okBody)
}

type passwordRequest struct {
	NewPassword string `json:"new_password"`
}

// SetUserPassword задаёт пользователю новый пароль.
func (h *Handler) SetUserPassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r)
	if !ok {
		writeMessage(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req passwordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.SetUserPassword(r.Context(), userID, req.NewPassword); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okBody)
}

// ResetUserTasks сбрасывает прогресс пользователя к началу каталога.
func (h *Handler) ResetUserTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r)
	if !ok {
		writeMessage(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if err := h.service.ResetProgress(r.Context(), userID); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okBody)
}

type statusRequest struct {
	Status string `json:"status"`
}

// SetUserStatus активирует или блокирует пользователя.
func (h *Handler) SetUserStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r)
	if !ok {
		writeMessage(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.SetUserStatus(r.Context(), userID, req.Status); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okBody)
}

type settingsResponse struct {
	OK       bool           `json:"ok"`
	Settings model.Settings `json:"settings"`
}

// GetSettings возвращает текущие параметры платформы.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Settings(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settingsResponse{OK: true, Settings: *st})
}

type settingsRequest struct {
	USDToPoints    flexString `json:"usd_to_points"`
	MinDepositUSD  flexString `json:"min_deposit_usd"`
	MinWithdrawUSD flexString `json:"min_withdraw_usd"`
	WhatsApp       string     `json:"whatsapp"`
	Telegram       string     `json:"telegram"`
}

// UpdateSettings сохраняет курс, минимальные суммы и контакты менеджера.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	st, err := h.service.UpdateSettings(r.Context(), service.SettingsUpdate{
		USDToPoints:    string(req.USDToPoints),
		MinDepositUSD:  string(req.MinDepositUSD),
		MinWithdrawUSD: string(req.MinWithdrawUSD),
		WhatsApp:       req.WhatsApp,
		Telegram:       req.Telegram,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settingsResponse{OK: true, Settings: *st})
}

// AdminTasks возвращает весь каталог заданий, включая неактивные.
func (h *Handler) AdminTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.service.ListTasks(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := tasksListResponse{OK: true, Rows: make([]taskResponse, 0, len(tasks))}
	for _, t := range tasks {
		resp.Rows = append(resp.Rows, newTaskResponse(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

type createTaskRequest struct {
	Title        string `json:"title"`
	RewardPoints int64  `json:"reward_points"`
	WaitSeconds  int64  `json:"wait_seconds"`
	OrderIndex   *int   `json:"order_index"`
	IsActive     *bool  `json:"is_active"`
}

type taskResultResponse struct {
	OK   bool         `json:"ok"`
	Task taskResponse `json:"task"`
}

// CreateTask добавляет задание в каталог.
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	in := service.TaskInput{
		Title:        req.Title,
		RewardPoints: req.RewardPoints,
		WaitSeconds:  req.WaitSeconds,
		IsActive:     req.IsActive,
	}
	if req.OrderIndex != nil {
		in.OrderIndex = *req.OrderIndex
	}

	t, err := h.service.CreateTask(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, taskResultResponse{OK: true, Task: newTaskResponse(*t)})
}

type updateTaskRequest struct {
	Title        *string `json:"title"`
	RewardPoints *int64  `json:"reward_points"`
	WaitSeconds  *int64  `json:"wait_seconds"`
	OrderIndex   *int    `json:"order_index"`
	IsActive     *bool   `json:"is_active"`
}

// UpdateTask изменяет переданные поля задания.
func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := pathID(r)
	if !ok {
		writeMessage(w, http.StatusBadRequest, "invalid task id")
		return
	}

	var req updateTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	t, err := h.service.UpdateTask(r.Context(), taskID, service.TaskUpdate{
		Title:        req.Title,
		RewardPoints: req.RewardPoints,
		WaitSeconds:  req.WaitSeconds,
		OrderIndex:   req.OrderIndex,
		IsActive:     req.IsActive,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, taskResultResponse{OK: true, Task: newTaskResponse(*t)})
}
