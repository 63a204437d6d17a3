package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/rewards-platform/internal/middleware"
	"github.com/mmeshcher/rewards-platform/internal/model"
	"github.com/mmeshcher/rewards-platform/internal/service"
)

type stubService struct {
	user    *model.User
	userErr error

	summary *model.Summary

	progress []model.TaskProgress

	ticket    *service.RunTicket
	startErr  error
	earned    int64
	finishErr error
	gotToken  string

	receipt    *service.WalletReceipt
	requestErr error
	gotType    string
	gotAmount  string
	history    []model.WalletTransaction
	pending    []model.PendingRequest
	decideErr  error
	gotTxID    string

	users     []model.User
	gotPoints int64
	adminErr  error

	settings    *model.Settings
	gotSettings service.SettingsUpdate

	tasks     []model.Task
	gotInput  service.TaskInput
	gotUpdate service.TaskUpdate
}

func (s *stubService) Register(ctx context.Context, in service.RegisterInput) (*model.User, error) {
	return s.user, s.userErr
}

func (s *stubService) Authenticate(ctx context.Context, login, password string) (*model.User, error) {
	return s.user, s.userErr
}

func (s *stubService) Summary(ctx context.Context, userID int64) (*model.Summary, error) {
	return s.summary, nil
}

func (s *stubService) ListProgress(ctx context.Context, userID int64) ([]model.TaskProgress, error) {
	return s.progress, nil
}

func (s *stubService) StartTask(ctx context.Context, userID int64) (*service.RunTicket, error) {
	return s.ticket, s.startErr
}

func (s *stubService) FinishTask(ctx context.Context, userID int64, token string) (int64, error) {
	s.gotToken = token
	return s.earned, s.finishErr
}

func (s *stubService) RequestWalletTx(ctx context.Context, userID int64, txType, amountUSD string) (*service.WalletReceipt, error) {
	s.gotType, s.gotAmount = txType, amountUSD
	return s.receipt, s.requestErr
}

func (s *stubService) WalletHistory(ctx context.Context, userID int64) ([]model.WalletTransaction, error) {
	return s.history, nil
}

func (s *stubService) PendingRequests(ctx context.Context) ([]model.PendingRequest, error) {
	return s.pending, nil
}

func (s *stubService) ApproveWalletTx(ctx context.Context, txID string) error {
	s.gotTxID = txID
	return s.decideErr
}

func (s *stubService) RejectWalletTx(ctx context.Context, txID string) error {
	s.gotTxID = txID
	return s.decideErr
}

func (s *stubService) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.users, nil
}

func (s *stubService) SetUserPoints(ctx context.Context, userID, points int64) error {
	s.gotPoints = points
	return s.adminErr
}

func (s *stubService) SetUserPassword(ctx context.Context, userID int64, password string) error {
	return s.adminErr
}

func (s *stubService) SetUserStatus(ctx context.Context, userID int64, status string) error {
	return s.adminErr
}

func (s *stubService) ResetProgress(ctx context.Context, userID int64) error {
	return s.adminErr
}

func (s *stubService) Settings(ctx context.Context) (*model.Settings, error) {
	return s.settings, nil
}

func (s *stubService) UpdateSettings(ctx context.Context, upd service.SettingsUpdate) (*model.Settings, error) {
	s.gotSettings = upd
	return s.settings, s.adminErr
}

func (s *stubService) ListTasks(ctx context.Context) ([]model.Task, error) {
	return s.tasks, nil
}

func (s *stubService) CreateTask(ctx context.Context, in service.TaskInput) (*model.Task, error) {
	s.gotInput = in
	return &model.Task{ID: 9, Title: in.Title, OrderIndex: in.OrderIndex, IsActive: true}, s.adminErr
}

func (s *stubService) UpdateTask(ctx context.Context, id int64, upd service.TaskUpdate) (*model.Task, error) {
	s.gotUpdate = upd
	return &model.Task{ID: id}, s.adminErr
}

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	auth := middleware.NewAuthMiddleware("test-secret", nil)
	return NewHandler(svc, zap.NewNop(), auth)
}

func authCookie(t *testing.T, h *Handler, userID int64, isAdmin bool) *http.Cookie {
	t.Helper()

	rec := httptest.NewRecorder()
	require.NoError(t, h.authMiddleware.SetAuthCookie(rec, userID, isAdmin))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func do(t *testing.T, h *Handler, method, path, body string, cookie *http.Cookie) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	if cookie != nil {
		req.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func TestRegister_SetsCookie(t *testing.T) {
	h := newTestHandler(t, &stubService{user: &model.User{ID: 42}})

	rec, out := do(t, h, http.MethodPost, "/api/register",
		`{"full_name":"Ann","email":"ann@x.io","password":"secret1"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["ok"])
	assert.EqualValues(t, 42, out["id"])
	require.Len(t, rec.Result().Cookies(), 1)
	assert.Equal(t, "auth_token", rec.Result().Cookies()[0].Name)
}

func TestRegister_Conflict(t *testing.T) {
	h := newTestHandler(t, &stubService{userErr: service.ErrUserExists})

	rec, out := do(t, h, http.MethodPost, "/api/register", `{"email":"ann@x.io","password":"secret1"}`, nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, false, out["ok"])
	assert.Equal(t, service.ErrUserExists.Error(), out["message"])
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		svc        *stubService
		wantStatus int
	}{
		{
			name:       "email or phone field",
			body:       `{"emailOrPhone":"+100","password":"secret1"}`,
			svc:        &stubService{user: &model.User{ID: 1, IsAdmin: true}},
			wantStatus: http.StatusOK,
		},
		{
			name:       "identifier field",
			body:       `{"identifier":"ann@x.io","password":"secret1"}`,
			svc:        &stubService{user: &model.User{ID: 1}},
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing login",
			body:       `{"password":"secret1"}`,
			svc:        &stubService{},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "wrong password",
			body:       `{"email":"ann@x.io","password":"nope"}`,
			svc:        &stubService{userErr: service.ErrInvalidCredentials},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "inactive account",
			body:       `{"email":"ann@x.io","password":"secret1"}`,
			svc:        &stubService{userErr: service.ErrUserInactive},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "broken body",
			body:       `{`,
			svc:        &stubService{},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, tt.svc)
			rec, _ := do(t, h, http.MethodPost, "/api/login", tt.body, nil)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestLogin_ReturnsAdminFlag(t *testing.T) {
	h := newTestHandler(t, &stubService{user: &model.User{ID: 1, IsAdmin: true}})

	_, out := do(t, h, http.MethodPost, "/api/login", `{"email":"admin@x.io","password":"secret1"}`, nil)
	assert.Equal(t, true, out["is_admin"])
}

func TestLogout_ClearsCookie(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	rec, out := do(t, h, http.MethodPost, "/api/logout", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["ok"])
	require.Len(t, rec.Result().Cookies(), 1)
	assert.Negative(t, rec.Result().Cookies()[0].MaxAge)
}

func TestProtectedRoutes_RequireCookie(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	for _, path := range []string{"/api/me", "/api/tasks", "/api/wallet/my"} {
		rec, _ := do(t, h, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestMe(t *testing.T) {
	svc := &stubService{summary: &model.Summary{
		User:       model.User{ID: 3, FullName: "Ann", PointsBalance: 150},
		Settings:   model.DefaultSettings(),
		TasksTotal: 4,
		TasksDone:  1,
	}}
	h := newTestHandler(t, svc)

	rec, out := do(t, h, http.MethodGet, "/api/me", "", authCookie(t, h, 3, false))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MRP Logistic", out["app"].(map[string]any)["name"])
	user := out["user"].(map[string]any)
	assert.EqualValues(t, 150, user["points_balance"])
	assert.Equal(t, false, user["is_admin"])
	tasks := out["tasks"].(map[string]any)
	assert.EqualValues(t, 4, tasks["total"])
	assert.EqualValues(t, 1, tasks["done"])
}

func TestListTasks_Statuses(t *testing.T) {
	svc := &stubService{progress: []model.TaskProgress{
		{Task: model.Task{ID: 1, Title: "A", OrderIndex: 1, RewardPoints: 10}, Status: model.ProgressCompleted},
		{Task: model.Task{ID: 2, Title: "B", OrderIndex: 2, RewardPoints: 20}, Status: model.ProgressAvailable},
		{Task: model.Task{ID: 3, Title: "C", OrderIndex: 3, RewardPoints: 30}, Status: model.ProgressLocked},
	}}
	h := newTestHandler(t, svc)

	rec, out := do(t, h, http.MethodGet, "/api/tasks", "", authCookie(t, h, 3, false))

	require.Equal(t, http.StatusOK, rec.Code)
	rows := out["rows"].([]any)
	require.Len(t, rows, 3)
	var statuses []string
	for _, row := range rows {
		statuses = append(statuses, row.(map[string]any)["status"].(string))
	}
	assert.Equal(t, []string{"completed", "available", "locked"}, statuses)
}

func TestStartTask(t *testing.T) {
	finish := time.UnixMilli(1_700_000_005_000).UTC()
	svc := &stubService{ticket: &service.RunTicket{Token: "tok", TaskID: 7, WaitSeconds: 5, ExpectedFinish: finish}}
	h := newTestHandler(t, svc)

	rec, out := do(t, h, http.MethodPost, "/api/tasks/start", "", authCookie(t, h, 3, false))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tok", out["run_token"])
	assert.EqualValues(t, 7, out["task_id"])
	assert.EqualValues(t, 5, out["wait_seconds"])
	assert.EqualValues(t, 1_700_000_005_000, out["expected_finish_ms"])
}

func TestStartTask_Errors(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{service.ErrRunInProgress, http.StatusConflict},
		{service.ErrNoTaskReady, http.StatusConflict},
		{errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		h := newTestHandler(t, &stubService{startErr: tt.err})
		rec, out := do(t, h, http.MethodPost, "/api/tasks/start", "", authCookie(t, h, 3, false))
		assert.Equal(t, tt.want, rec.Code, tt.err.Error())
		assert.Equal(t, false, out["ok"])
	}
}

func TestStartTask_HidesInternalError(t *testing.T) {
	h := newTestHandler(t, &stubService{startErr: errors.New("pq: connection refused")})

	_, out := do(t, h, http.MethodPost, "/api/tasks/start", "", authCookie(t, h, 3, false))
	assert.Equal(t, http.StatusText(http.StatusInternalServerError), out["message"])
}

func TestFinishTask(t *testing.T) {
	svc := &stubService{earned: 25}
	h := newTestHandler(t, svc)
	cookie := authCookie(t, h, 3, false)

	rec, out := do(t, h, http.MethodPost, "/api/tasks/finish", `{"run_token":"tok"}`, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 25, out["earned"])
	assert.Equal(t, "tok", svc.gotToken)

	rec, _ = do(t, h, http.MethodPost, "/api/tasks/finish", `{}`, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc.finishErr = service.ErrTooEarly
	rec, _ = do(t, h, http.MethodPost, "/api/tasks/finish", `{"run_token":"tok"}`, cookie)
	assert.Equal(t, http.StatusConflict, rec.Code)

	svc.finishErr = service.ErrInvalidRun
	rec, _ = do(t, h, http.MethodPost, "/api/tasks/finish", `{"run_token":"tok"}`, cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestWalletTx(t *testing.T) {
	svc := &stubService{receipt: &service.WalletReceipt{
		Tx:      model.WalletTransaction{ID: "tx-1", PointsDelta: -100},
		Manager: model.DefaultSettings().ManagerContact,
	}}
	h := newTestHandler(t, svc)
	cookie := authCookie(t, h, 3, false)

	rec, out := do(t, h, http.MethodPost, "/api/wallet/request", `{"type":"withdraw","amount_usd":10}`, cookie)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tx-1", out["tx_id"])
	assert.EqualValues(t, -100, out["points_delta"])
	assert.Equal(t, "@MRP_Manager", out["manager"].(map[string]any)["telegram"])
	assert.Equal(t, "withdraw", svc.gotType)
	assert.Equal(t, "10", svc.gotAmount)

	_, _ = do(t, h, http.MethodPost, "/api/wallet/request", `{"type":"deposit","amount_usd":"7,5"}`, cookie)
	assert.Equal(t, "7,5", svc.gotAmount)

	svc.requestErr = service.ErrInsufficientBalance
	rec, _ = do(t, h, http.MethodPost, "/api/wallet/request", `{"type":"withdraw","amount_usd":"50"}`, cookie)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)

	svc.requestErr = service.ErrBelowMinimum
	rec, _ = do(t, h, http.MethodPost, "/api/wallet/request", `{"type":"deposit","amount_usd":"1"}`, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWalletHistory(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	svc := &stubService{history: []model.WalletTransaction{{
		ID:              "tx-1",
		Type:            model.WalletDeposit,
		AmountUSD:       decimal.RequireFromString("7.5"),
		RateUSDToPoints: 10,
		PointsDelta:     75,
		Status:          model.WalletPending,
		CreatedAt:       created,
	}}}
	h := newTestHandler(t, svc)

	rec, out := do(t, h, http.MethodGet, "/api/wallet/my", "", authCookie(t, h, 3, false))

	require.Equal(t, http.StatusOK, rec.Code)
	rows := out["rows"].([]any)
	require.Len(t, rows, 1)
	row := rows[0].(map[string]any)
	assert.Equal(t, "7.50", row["amount_usd"])
	assert.Equal(t, "pending", row["status"])
	assert.Equal(t, "2026-01-02T03:04:05Z", row["created_at"])
	assert.Nil(t, row["processed_at"])
}

func TestAdminRoutes_ForbiddenForUsers(t *testing.T) {
	h := newTestHandler(t, &stubService{})
	cookie := authCookie(t, h, 3, false)

	for _, path := range []string{"/api/admin/requests", "/api/admin/users", "/api/admin/settings", "/api/admin/tasks"} {
		rec, _ := do(t, h, http.MethodGet, path, "", cookie)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
	}
}

func TestAdminPendingRequests(t *testing.T) {
	svc := &stubService{pending: []model.PendingRequest{{
		WalletTransaction: model.WalletTransaction{ID: "tx-1", AmountUSD: decimal.NewFromInt(5), Status: model.WalletPending},
		FullName:          "Ann",
		Phone:             "+100",
	}}}
	h := newTestHandler(t, svc)

	rec, out := do(t, h, http.MethodGet, "/api/admin/requests", "", authCookie(t, h, 1, true))

	require.Equal(t, http.StatusOK, rec.Code)
	row := out["rows"].([]any)[0].(map[string]any)
	assert.Equal(t, "Ann", row["full_name"])
	assert.Equal(t, "+100", row["phone"])
	assert.Equal(t, "5.00", row["amount_usd"])
}

func TestAdminDecide(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc)
	cookie := authCookie(t, h, 1, true)

	rec, _ := do(t, h, http.MethodPost, "/api/admin/requests/tx-1/approve", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tx-1", svc.gotTxID)

	svc.decideErr = service.ErrNotPending
	rec, _ = do(t, h, http.MethodPost, "/api/admin/requests/tx-1/reject", "", cookie)
	assert.Equal(t, http.StatusConflict, rec.Code)

	svc.decideErr = service.ErrNotFound
	rec, _ = do(t, h, http.MethodPost, "/api/admin/requests/tx-2/approve", "", cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminSetPoints_FloorsValue(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc)
	cookie := authCookie(t, h, 1, true)

	rec, _ := do(t, h, http.MethodPost, "/api/admin/users/5/points", `{"points":"120.9"}`, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 120, svc.gotPoints)

	rec, _ = do(t, h, http.MethodPost, "/api/admin/users/5/points", `{"points":"abc"}`, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/api/admin/users/x/points", `{"points":1}`, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminUserActions(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc)
	cookie := authCookie(t, h, 1, true)

	rec, _ := do(t, h, http.MethodPost, "/api/admin/users/5/password", `{"new_password":"secret2"}`, cookie)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/api/admin/users/5/reset-tasks", "", cookie)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, h, http.MethodPost, "/api/admin/users/5/status", `{"status":"inactive"}`, cookie)
	assert.Equal(t, http.StatusOK, rec.Code)

	svc.adminErr = service.ErrNotFound
	rec, _ = do(t, h, http.MethodPost, "/api/admin/users/99/reset-tasks", "", cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminSettings(t *testing.T) {
	st := model.DefaultSettings()
	svc := &stubService{settings: &st}
	h := newTestHandler(t, svc)
	cookie := authCookie(t, h, 1, true)

	rec, out := do(t, h, http.MethodGet, "/api/admin/settings", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 10, out["settings"].(map[string]any)["usd_to_points"])

	rec, _ = do(t, h, http.MethodPost, "/api/admin/settings",
		`{"usd_to_points":12,"min_deposit_usd":"5.5","min_withdraw_usd":20,"telegram":"@new"}`, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.SettingsUpdate{
		USDToPoints:    "12",
		MinDepositUSD:  "5.5",
		MinWithdrawUSD: "20",
		Telegram:       "@new",
	}, svc.gotSettings)
}

func TestAdminTasks(t *testing.T) {
	svc := &stubService{tasks: []model.Task{{ID: 1, Title: "A", OrderIndex: 1, IsActive: false}}}
	h := newTestHandler(t, svc)
	cookie := authCookie(t, h, 1, true)

	rec, out := do(t, h, http.MethodGet, "/api/admin/tasks", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	row := out["rows"].([]any)[0].(map[string]any)
	assert.Equal(t, false, row["is_active"])
	assert.NotContains(t, row, "status")

	rec, out = do(t, h, http.MethodPost, "/api/admin/tasks/create",
		`{"title":"New","reward_points":5,"wait_seconds":3,"order_index":4}`, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "New", out["task"].(map[string]any)["title"])
	assert.Equal(t, 4, svc.gotInput.OrderIndex)
	assert.Nil(t, svc.gotInput.IsActive)

	rec, _ = do(t, h, http.MethodPost, "/api/admin/tasks/1/update", `{"is_active":true}`, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.gotUpdate.IsActive)
	assert.True(t, *svc.gotUpdate.IsActive)
	assert.Nil(t, svc.gotUpdate.Title)
}

func TestUnknownRoute(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	rec, out := do(t, h, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, out["ok"])
}
