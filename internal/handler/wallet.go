package handler

import (
	"net/http"
	"time"

	"github.com/mmeshcher/rewards-platform/internal/model"
	"github.com/mmeshcher/rewards-platform/internal/validation"
)

type walletRequest struct {
	Type      string     `json:"type"`
	AmountUSD flexString `json:"amount_usd"`
}

type walletRequestResponse struct {
	OK          bool                 `json:"ok"`
	TxID        string               `json:"tx_id"`
	PointsDelta int64                `json:"points_delta"`
	Manager     model.ManagerContact `json:"manager"`
}

// RequestWalletTx создаёт заявку на пополнение или вывод.
func (h *Handler) RequestWalletTx(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req walletRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	receipt, err := h.service.RequestWalletTx(r.Context(), userID, req.Type, string(req.AmountUSD))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, walletRequestResponse{
		OK:          true,
		TxID:        receipt.Tx.ID,
		PointsDelta: receipt.Tx.PointsDelta,
		Manager:     receipt.Manager,
	})
}

type walletTxResponse struct {
	ID              string  `json:"id"`
	UserID          int64   `json:"user_id"`
	Type            string  `json:"type"`
	AmountUSD       string  `json:"amount_usd"`
	RateUSDToPoints int64   `json:"rate_usd_to_points"`
	PointsDelta     int64   `json:"points_delta"`
	Status          string  `json:"status"`
	CreatedAt       string  `json:"created_at"`
	ProcessedAt     *string `json:"processed_at"`
	FullName        string  `json:"full_name,omitempty"`
	Email           string  `json:"email,omitempty"`
	Phone           string  `json:"phone,omitempty"`
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func newWalletTxResponse(t model.WalletTransaction) walletTxResponse {
	return walletTxResponse{
		ID:              t.ID,
		UserID:          t.UserID,
		Type:            string(t.Type),
		AmountUSD:       validation.FormatUSD(t.AmountUSD),
		RateUSDToPoints: t.RateUSDToPoints,
		PointsDelta:     t.PointsDelta,
		Status:          string(t.Status),
		CreatedAt:       t.CreatedAt.Format(time.RFC3339),
		ProcessedAt:     formatTime(t.ProcessedAt),
	}
}

type walletListResponse struct {
	OK   bool               `json:"ok"`
	Rows []walletTxResponse `json:"rows"`
}

// WalletHistory возвращает последние заявки текущего пользователя.
func (h *Handler) WalletHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	txs, err := h.service.WalletHistory(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := walletListResponse{OK: true, Rows: make([]walletTxResponse, 0, len(txs))}
	for _, t := range txs {
		resp.Rows = append(resp.Rows, newWalletTxResponse(t))
	}
	writeJSON(w, http.StatusOK, resp)
}
