package repository

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mmeshcher/rewards-platform/internal/model"
)

type progressKey struct {
	userID int64
	taskID int64
}

type memState struct {
	nextUserID int64
	nextTaskID int64
	users      map[int64]model.User
	tasks      map[int64]model.Task
	progress   map[progressKey]model.UserTaskProgress
	runs       map[string]model.TaskRun
	walletTxs  map[string]model.WalletTransaction
	// walletOrder хранит идентификаторы заявок в порядке создания.
	walletOrder []string
	settings    model.Settings
}

func (st *memState) clone() *memState {
	return &memState{
		nextUserID:  st.nextUserID,
		nextTaskID:  st.nextTaskID,
		users:       maps.Clone(st.users),
		tasks:       maps.Clone(st.tasks),
		progress:    maps.Clone(st.progress),
		runs:        maps.Clone(st.runs),
		walletTxs:   maps.Clone(st.walletTxs),
		walletOrder: slices.Clone(st.walletOrder),
		settings:    st.settings,
	}
}

// MemoryRepository хранит данные в памяти процесса.
// Все транзакции сериализуются одним мьютексом; изменения InTx публикуются только при успехе.
type MemoryRepository struct {
	mu sync.Mutex
	st *memState
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository создаёт пустое хранилище с параметрами платформы по умолчанию.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		st: &memState{
			users:     map[int64]model.User{},
			tasks:     map[int64]model.Task{},
			progress:  map[progressKey]model.UserTaskProgress{},
			runs:      map[string]model.TaskRun{},
			walletTxs: map[string]model.WalletTransaction{},
			settings:  model.DefaultSettings(),
		},
	}
}

// InTx выполняет fn над копией состояния и подменяет состояние копией, если fn завершилась без ошибки.
func (r *MemoryRepository) InTx(ctx context.Context, fn func(tx Store) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	draft := r.st.clone()
	if err := fn(&memTx{st: draft}); err != nil {
		return err
	}
	r.st = draft
	return nil
}

// Close ничего не делает: хранилищу в памяти нечего освобождать.
func (r *MemoryRepository) Close() error { return nil }

func (r *MemoryRepository) do(fn func(tx *memTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(&memTx{st: r.st})
}

// memTx реализует Store поверх состояния без собственной синхронизации.
type memTx struct {
	st *memState
}

func (t *memTx) CreateUser(_ context.Context, u *model.User) (int64, error) {
	for _, existing := range t.st.users {
		if u.Email != "" && strings.EqualFold(existing.Email, u.Email) {
			return 0, ErrUserExists
		}
		if u.Phone != "" && existing.Phone == u.Phone {
			return 0, ErrUserExists
		}
	}
	t.st.nextUserID++
	created := *u
	created.ID = t.st.nextUserID
	t.st.users[created.ID] = created
	return created.ID, nil
}

func (t *memTx) GetUser(_ context.Context, id int64) (*model.User, error) {
	u, ok := t.st.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (t *memTx) LockUser(ctx context.Context, id int64) (*model.User, error) {
	return t.GetUser(ctx, id)
}

func (t *memTx) GetUserByLogin(_ context.Context, login string) (*model.User, error) {
	var found *model.User
	for _, u := range t.st.users {
		if (u.Email != "" && strings.EqualFold(u.Email, login)) || (u.Phone != "" && u.Phone == login) {
			if found == nil || u.ID < found.ID {
				u := u
				found = &u
			}
		}
	}
	if found == nil {
		return nil, ErrUserNotFound
	}
	return found, nil
}

func (t *memTx) ListUsers(_ context.Context, limit int) ([]model.User, error) {
	var res []model.User
	for _, u := range t.st.users {
		if !u.IsAdmin {
			res = append(res, u)
		}
	}
	slices.SortFunc(res, func(a, b model.User) int { return compareInt64(b.ID, a.ID) })
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (t *memTx) ListUserIDs(_ context.Context) ([]int64, error) {
	var ids []int64
	for _, u := range t.st.users {
		if !u.IsAdmin {
			ids = append(ids, u.ID)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (t *memTx) HasAdmin(_ context.Context) (bool, error) {
	for _, u := range t.st.users {
		if u.IsAdmin {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) updateUser(id int64, fn func(u *model.User)) error {
	u, ok := t.st.users[id]
	if !ok {
		return ErrUserNotFound
	}
	fn(&u)
	t.st.users[id] = u
	return nil
}

func (t *memTx) AddPoints(_ context.Context, userID, delta int64) (int64, error) {
	var balance int64
	err := t.updateUser(userID, func(u *model.User) {
		u.PointsBalance += delta
		balance = u.PointsBalance
	})
	return balance, err
}

func (t *memTx) SetPoints(_ context.Context, userID, points int64) error {
	return t.updateUser(userID, func(u *model.User) { u.PointsBalance = points })
}

func (t *memTx) SetPasswordHash(_ context.Context, userID int64, hash []byte) error {
	return t.updateUser(userID, func(u *model.User) { u.PasswordHash = hash })
}

func (t *memTx) SetUserStatus(_ context.Context, userID int64, status model.UserStatus) error {
	return t.updateUser(userID, func(u *model.User) { u.Status = status })
}

func (t *memTx) TouchLogin(_ context.Context, userID int64, at time.Time) error {
	return t.updateUser(userID, func(u *model.User) { u.LastLoginAt = &at })
}

func (t *memTx) sortedTasks(activeOnly bool) []model.Task {
	var res []model.Task
	for _, task := range t.st.tasks {
		if activeOnly && !task.IsActive {
			continue
		}
		res = append(res, task)
	}
	slices.SortFunc(res, func(a, b model.Task) int { return a.OrderIndex - b.OrderIndex })
	return res
}

func (t *memTx) AllTasks(_ context.Context) ([]model.Task, error) {
	return t.sortedTasks(false), nil
}

func (t *memTx) ActiveTasks(_ context.Context) ([]model.Task, error) {
	return t.sortedTasks(true), nil
}

func (t *memTx) GetTask(_ context.Context, id int64) (*model.Task, error) {
	task, ok := t.st.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return &task, nil
}

func (t *memTx) orderIndexTaken(orderIndex int, exceptID int64) bool {
	for _, task := range t.st.tasks {
		if task.OrderIndex == orderIndex && task.ID != exceptID {
			return true
		}
	}
	return false
}

func (t *memTx) CreateTask(_ context.Context, task *model.Task) (int64, error) {
	if t.orderIndexTaken(task.OrderIndex, 0) {
		return 0, ErrOrderIndexTaken
	}
	t.st.nextTaskID++
	created := *task
	created.ID = t.st.nextTaskID
	t.st.tasks[created.ID] = created
	return created.ID, nil
}

func (t *memTx) UpdateTask(_ context.Context, task *model.Task) error {
	existing, ok := t.st.tasks[task.ID]
	if !ok {
		return ErrTaskNotFound
	}
	if t.orderIndexTaken(task.OrderIndex, task.ID) {
		return ErrOrderIndexTaken
	}
	updated := *task
	updated.CreatedAt = existing.CreatedAt
	t.st.tasks[task.ID] = updated
	return nil
}

func (t *memTx) MaxOrderIndex(_ context.Context) (int, error) {
	maxOrder := 0
	for _, task := range t.st.tasks {
		maxOrder = max(maxOrder, task.OrderIndex)
	}
	return maxOrder, nil
}

// LockCatalog ничего не делает: транзакции хранилища в памяти уже выполняются под общим мьютексом.
func (t *memTx) LockCatalog(_ context.Context) error { return nil }

func (t *memTx) UserProgress(_ context.Context, userID int64) ([]model.UserTaskProgress, error) {
	var res []model.UserTaskProgress
	for k, p := range t.st.progress {
		if k.userID == userID {
			res = append(res, p)
		}
	}
	slices.SortFunc(res, func(a, b model.UserTaskProgress) int { return compareInt64(a.TaskID, b.TaskID) })
	return res, nil
}

func (t *memTx) InsertProgress(_ context.Context, p *model.UserTaskProgress) error {
	k := progressKey{userID: p.UserID, taskID: p.TaskID}
	if _, ok := t.st.progress[k]; ok {
		return nil
	}
	t.st.progress[k] = *p
	return nil
}

func (t *memTx) UpdateProgress(_ context.Context, p *model.UserTaskProgress) error {
	k := progressKey{userID: p.UserID, taskID: p.TaskID}
	if _, ok := t.st.progress[k]; !ok {
		return nil
	}
	t.st.progress[k] = *p
	return nil
}

func (t *memTx) findRun(match func(r model.TaskRun) bool) (*model.TaskRun, error) {
	for _, r := range t.st.runs {
		if match(r) {
			return &r, nil
		}
	}
	return nil, ErrRunNotFound
}

func (t *memTx) RunningRun(_ context.Context, userID int64) (*model.TaskRun, error) {
	return t.findRun(func(r model.TaskRun) bool {
		return r.UserID == userID && r.Status == model.RunRunning
	})
}

func (t *memTx) RunningRunByToken(_ context.Context, userID int64, token string) (*model.TaskRun, error) {
	return t.findRun(func(r model.TaskRun) bool {
		return r.RunToken == token && r.UserID == userID && r.Status == model.RunRunning
	})
}

func (t *memTx) InsertRun(ctx context.Context, r *model.TaskRun) error {
	if r.Status == model.RunRunning {
		if _, err := t.RunningRun(ctx, r.UserID); err == nil {
			return ErrRunExists
		}
	}
	t.st.runs[r.ID] = *r
	return nil
}

func (t *memTx) UpdateRun(_ context.Context, r *model.TaskRun) error {
	existing, ok := t.st.runs[r.ID]
	if !ok {
		return ErrRunNotFound
	}
	existing.Status = r.Status
	existing.FinishedAt = r.FinishedAt
	t.st.runs[r.ID] = existing
	return nil
}

func (t *memTx) ExpireRunningRuns(_ context.Context, userID int64, at time.Time) (int64, error) {
	var n int64
	for id, r := range t.st.runs {
		if r.UserID == userID && r.Status == model.RunRunning {
			r.Status = model.RunExpired
			r.FinishedAt = &at
			t.st.runs[id] = r
			n++
		}
	}
	return n, nil
}

func (t *memTx) GetSettings(_ context.Context) (*model.Settings, error) {
	st := t.st.settings
	return &st, nil
}

func (t *memTx) UpdateSettings(_ context.Context, s *model.Settings) error {
	t.st.settings = *s
	return nil
}

func (t *memTx) InsertWalletTx(_ context.Context, w *model.WalletTransaction) error {
	t.st.walletTxs[w.ID] = *w
	t.st.walletOrder = append(t.st.walletOrder, w.ID)
	return nil
}

func (t *memTx) LockWalletTx(_ context.Context, id string) (*model.WalletTransaction, error) {
	w, ok := t.st.walletTxs[id]
	if !ok {
		return nil, ErrWalletTxNotFound
	}
	return &w, nil
}

func (t *memTx) UpdateWalletTx(_ context.Context, w *model.WalletTransaction) error {
	existing, ok := t.st.walletTxs[w.ID]
	if !ok {
		return ErrWalletTxNotFound
	}
	existing.Status = w.Status
	existing.ProcessedAt = w.ProcessedAt
	t.st.walletTxs[w.ID] = existing
	return nil
}

// newestFirst обходит заявки от последней созданной к первой.
func (t *memTx) newestFirst(fn func(w model.WalletTransaction) bool) {
	for i := len(t.st.walletOrder) - 1; i >= 0; i-- {
		if !fn(t.st.walletTxs[t.st.walletOrder[i]]) {
			return
		}
	}
}

func (t *memTx) WalletTxByUser(_ context.Context, userID int64, limit int) ([]model.WalletTransaction, error) {
	var res []model.WalletTransaction
	t.newestFirst(func(w model.WalletTransaction) bool {
		if w.UserID == userID {
			res = append(res, w)
		}
		return len(res) < limit
	})
	return res, nil
}

func (t *memTx) pendingRequest(w model.WalletTransaction) model.PendingRequest {
	u := t.st.users[w.UserID]
	return model.PendingRequest{WalletTransaction: w, FullName: u.FullName, Email: u.Email, Phone: u.Phone}
}

func (t *memTx) PendingWalletTx(_ context.Context, limit int) ([]model.PendingRequest, error) {
	var res []model.PendingRequest
	t.newestFirst(func(w model.WalletTransaction) bool {
		if w.Status == model.WalletPending {
			res = append(res, t.pendingRequest(w))
		}
		return len(res) < limit
	})
	return res, nil
}

func (t *memTx) UnnotifiedWalletTx(_ context.Context, limit int) ([]model.PendingRequest, error) {
	var res []model.PendingRequest
	for _, id := range t.st.walletOrder {
		if len(res) >= limit {
			break
		}
		w := t.st.walletTxs[id]
		if w.Status == model.WalletPending && w.NotifiedAt == nil {
			res = append(res, t.pendingRequest(w))
		}
	}
	return res, nil
}

func (t *memTx) MarkWalletTxNotified(_ context.Context, id string, at time.Time) error {
	w, ok := t.st.walletTxs[id]
	if !ok {
		return ErrWalletTxNotFound
	}
	w.NotifiedAt = &at
	t.st.walletTxs[id] = w
	return nil
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
