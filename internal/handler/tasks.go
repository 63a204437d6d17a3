package handler

import (
	"net/http"

	"github.com/mmeshcher/rewards-platform/internal/middleware"
	"github.com/mmeshcher/rewards-platform/internal/model"
)

// currentUser возвращает идентификатор пользователя из контекста или отвечает 401.
func currentUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
	}
	return userID, ok
}

type taskResponse struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	OrderIndex   int    `json:"order_index"`
	RewardPoints int64  `json:"reward_points"`
	WaitSeconds  int64  `json:"wait_seconds"`
	IsActive     bool   `json:"is_active"`
	Status       string `json:"status,omitempty"`
}

func newTaskResponse(t model.Task) taskResponse {
	return taskResponse{
		ID:           t.ID,
		Title:        t.Title,
		OrderIndex:   t.OrderIndex,
		RewardPoints: t.RewardPoints,
		WaitSeconds:  t.WaitSeconds,
		IsActive:     t.IsActive,
	}
}

type tasksListResponse struct {
	OK   bool           `json:"ok"`
	Rows []taskResponse `json:"rows"`
}

// ListTasks возвращает задания текущего пользователя по порядку вместе со статусами.
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	rows, err := h.service.ListProgress(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := tasksListResponse{OK: true, Rows: make([]taskResponse, 0, len(rows))}
	for _, row := range rows {
		tr := newTaskResponse(row.Task)
		tr.Status = string(row.Status)
		resp.Rows = append(resp.Rows, tr)
	}
	writeJSON(w, http.StatusOK, resp)
}

type startResponse struct {
	OK               bool   `json:"ok"`
	TaskID           int64  `json:"task_id"`
	RunToken         string `json:"run_token"`
	WaitSeconds      int64  `json:"wait_seconds"`
	ExpectedFinishMS int64  `json:"expected_finish_ms"`
}

// StartTask запускает доступное задание текущего пользователя.
func (h *Handler) StartTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	ticket, err := h.service.StartTask(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, startResponse{
		OK:               true,
		TaskID:           ticket.TaskID,
		RunToken:         ticket.Token,
		WaitSeconds:      ticket.WaitSeconds,
		ExpectedFinishMS: ticket.ExpectedFinish.UnixMilli(),
	})
}

type finishRequest struct {
	RunToken string `json:"run_token"`
}

type finishResponse struct {
	OK     bool  `json:"ok"`
	Earned int64 `json:"earned"`
}

// FinishTask завершает запуск задания по токену.
func (h *Handler) FinishTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req finishRequest
	if err := decodeJSON(r, &req); err != nil || req.RunToken == "" {
		writeMessage(w, http.StatusBadRequest, "run_token is required")
		return
	}

	earned, err := h.service.FinishTask(r.Context(), userID, req.RunToken)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, finishResponse{OK: true, Earned: earned})
}
