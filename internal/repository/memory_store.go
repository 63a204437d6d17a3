package repository

import (
	"context"
	"time"

	"github.com/mmeshcher/rewards-platform/internal/model"
)

// locked выполняет одиночную операцию над текущим состоянием под мьютексом хранилища.
func locked[T any](r *MemoryRepository, fn func(tx *memTx) (T, error)) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(&memTx{st: r.st})
}

func (r *MemoryRepository) CreateUser(ctx context.Context, u *model.User) (int64, error) {
	return locked(r, func(tx *memTx) (int64, error) { return tx.CreateUser(ctx, u) })
}

func (r *MemoryRepository) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return locked(r, func(tx *memTx) (*model.User, error) { return tx.GetUser(ctx, id) })
}

func (r *MemoryRepository) LockUser(ctx context.Context, id int64) (*model.User, error) {
	return locked(r, func(tx *memTx) (*model.User, error) { return tx.LockUser(ctx, id) })
}

func (r *MemoryRepository) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	return locked(r, func(tx *memTx) (*model.User, error) { return tx.GetUserByLogin(ctx, login) })
}

func (r *MemoryRepository) ListUsers(ctx context.Context, limit int) ([]model.User, error) {
	return locked(r, func(tx *memTx) ([]model.User, error) { return tx.ListUsers(ctx, limit) })
}

func (r *MemoryRepository) ListUserIDs(ctx context.Context) ([]int64, error) {
	return locked(r, func(tx *memTx) ([]int64, error) { return tx.ListUserIDs(ctx) })
}

func (r *MemoryRepository) HasAdmin(ctx context.Context) (bool, error) {
	return locked(r, func(tx *memTx) (bool, error) { return tx.HasAdmin(ctx) })
}

func (r *MemoryRepository) AddPoints(ctx context.Context, userID, delta int64) (int64, error) {
	return locked(r, func(tx *memTx) (int64, error) { return tx.AddPoints(ctx, userID, delta) })
}

func (r *MemoryRepository) SetPoints(ctx context.Context, userID, points int64) error {
	return r.do(func(tx *memTx) error { return tx.SetPoints(ctx, userID, points) })
}

func (r *MemoryRepository) SetPasswordHash(ctx context.Context, userID int64, hash []byte) error {
	return r.do(func(tx *memTx) error { return tx.SetPasswordHash(ctx, userID, hash) })
}

func (r *MemoryRepository) SetUserStatus(ctx context.Context, userID int64, status model.UserStatus) error {
	return r.do(func(tx *memTx) error { return tx.SetUserStatus(ctx, userID, status) })
}

func (r *MemoryRepository) TouchLogin(ctx context.Context, userID int64, at time.Time) error {
	return r.do(func(tx *memTx) error { return tx.TouchLogin(ctx, userID, at) })
}

func (r *MemoryRepository) AllTasks(ctx context.Context) ([]model.Task, error) {
	return locked(r, func(tx *memTx) ([]model.Task, error) { return tx.AllTasks(ctx) })
}

func (r *MemoryRepository) ActiveTasks(ctx context.Context) ([]model.Task, error) {
	return locked(r, func(tx *memTx) ([]model.Task, error) { return tx.ActiveTasks(ctx) })
}

func (r *MemoryRepository) GetTask(ctx context.Context, id int64) (*model.Task, error) {
	return locked(r, func(tx *memTx) (*model.Task, error) { return tx.GetTask(ctx, id) })
}

func (r *MemoryRepository) CreateTask(ctx context.Context, t *model.Task) (int64, error) {
	return locked(r, func(tx *memTx) (int64, error) { return tx.CreateTask(ctx, t) })
}

func (r *MemoryRepository) UpdateTask(ctx context.Context, t *model.Task) error {
	return r.do(func(tx *memTx) error { return tx.UpdateTask(ctx, t) })
}

func (r *MemoryRepository) MaxOrderIndex(ctx context.Context) (int, error) {
	return locked(r, func(tx *memTx) (int, error) { return tx.MaxOrderIndex(ctx) })
}

func (r *MemoryRepository) LockCatalog(ctx context.Context) error {
	return r.do(func(tx *memTx) error { return tx.LockCatalog(ctx) })
}

func (r *MemoryRepository) UserProgress(ctx context.Context, userID int64) ([]model.UserTaskProgress, error) {
	return locked(r, func(tx *memTx) ([]model.UserTaskProgress, error) { return tx.UserProgress(ctx, userID) })
}

func (r *MemoryRepository) InsertProgress(ctx context.Context, p *model.UserTaskProgress) error {
	return r.do(func(tx *memTx) error { return tx.InsertProgress(ctx, p) })
}

func (r *MemoryRepository) UpdateProgress(ctx context.Context, p *model.UserTaskProgress) error {
	return r.do(func(tx *memTx) error { return tx.UpdateProgress(ctx, p) })
}

func (r *MemoryRepository) RunningRun(ctx context.Context, userID int64) (*model.TaskRun, error) {
	return locked(r, func(tx *memTx) (*model.TaskRun, error) { return tx.RunningRun(ctx, userID) })
}

func (r *MemoryRepository) RunningRunByToken(ctx context.Context, userID int64, token string) (*model.TaskRun, error) {
	return locked(r, func(tx *memTx) (*model.TaskRun, error) { return tx.RunningRunByToken(ctx, userID, token) })
}

func (r *MemoryRepository) InsertRun(ctx context.Context, run *model.TaskRun) error {
	return r.do(func(tx *memTx) error { return tx.InsertRun(ctx, run) })
}

func (r *MemoryRepository) UpdateRun(ctx context.Context, run *model.TaskRun) error {
	return r.do(func(tx *memTx) error { return tx.UpdateRun(ctx, run) })
}

func (r *MemoryRepository) ExpireRunningRuns(ctx context.Context, userID int64, at time.Time) (int64, error) {
	return locked(r, func(tx *memTx) (int64, error) { return tx.ExpireRunningRuns(ctx, userID, at) })
}

func (r *MemoryRepository) GetSettings(ctx context.Context) (*model.Settings, error) {
	return locked(r, func(tx *memTx) (*model.Settings, error) { return tx.GetSettings(ctx) })
}

func (r *MemoryRepository) UpdateSettings(ctx context.Context, s *model.Settings) error {
	return r.do(func(tx *memTx) error { return tx.UpdateSettings(ctx, s) })
}

func (r *MemoryRepository) InsertWalletTx(ctx context.Context, w *model.WalletTransaction) error {
	return r.do(func(tx *memTx) error { return tx.InsertWalletTx(ctx, w) })
}

func (r *MemoryRepository) LockWalletTx(ctx context.Context, id string) (*model.WalletTransaction, error) {
	return locked(r, func(tx *memTx) (*model.WalletTransaction, error) { return tx.LockWalletTx(ctx, id) })
}

func (r *MemoryRepository) UpdateWalletTx(ctx context.Context, w *model.WalletTransaction) error {
	return r.do(func(tx *memTx) error { return tx.UpdateWalletTx(ctx, w) })
}

func (r *MemoryRepository) WalletTxByUser(ctx context.Context, userID int64, limit int) ([]model.WalletTransaction, error) {
	return locked(r, func(tx *memTx) ([]model.WalletTransaction, error) { return tx.WalletTxByUser(ctx, userID, limit) })
}

func (r *MemoryRepository) PendingWalletTx(ctx context.Context, limit int) ([]model.PendingRequest, error) {
	return locked(r, func(tx *memTx) ([]model.PendingRequest, error) { return tx.PendingWalletTx(ctx, limit) })
}

func (r *MemoryRepository) UnnotifiedWalletTx(ctx context.Context, limit int) ([]model.PendingRequest, error) {
	return locked(r, func(tx *memTx) ([]model.PendingRequest, error) { return tx.UnnotifiedWalletTx(ctx, limit) })
}

func (r *MemoryRepository) MarkWalletTxNotified(ctx context.Context, id string, at time.Time) error {
	return r.do(func(tx *memTx) error { return tx.MarkWalletTxNotified(ctx, id, at) })
}
