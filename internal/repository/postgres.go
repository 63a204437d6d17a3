package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/rewards-platform/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// querier покрывает общие методы *pgxpool.Pool и pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	*pgStore
	pool *pgxpool.Pool
}

type pgStore struct {
	q querier
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pgStore: &pgStore{q: pool}, pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// InTx выполняет fn в одной транзакции. Транзакция повторяется целиком при конфликте сериализации,
// взаимоблокировке или обрыве соединения.
func (r *PostgresRepository) InTx(ctx context.Context, fn func(tx Store) error) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := fn(&pgStore{q: tx}); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if !isRetryable(err) || i == len(delays) {
			break
		}

		timer := time.NewTimer(delays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}
	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

func isUniqueViolation(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return pgErr, true
	}
	return nil, false
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

const userColumns = `id, COALESCE(full_name, ''), COALESCE(email, ''), COALESCE(phone, ''), password_hash,
	points_balance, is_admin, status, created_at, last_login_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		u      model.User
		status string
	)
	err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.Phone, &u.PasswordHash,
		&u.PointsBalance, &u.IsAdmin, &status, &u.CreatedAt, &u.LastLoginAt)
	if err != nil {
		return nil, err
	}
	u.Status = model.UserStatus(status)
	return &u, nil
}

// CreateUser создаёт нового пользователя.
func (s *pgStore) CreateUser(ctx context.Context, u *model.User) (int64, error) {
	var id int64
	err := s.q.QueryRow(ctx,
		`INSERT INTO users (full_name, email, phone, password_hash, points_balance, is_admin, status, created_at)
		 VALUES (NULLIF($1, ''), NULLIF($2, ''), NULLIF($3, ''), $4, $5, $6, $7, $8)
		 RETURNING id`,
		u.FullName, u.Email, u.Phone, u.PasswordHash, u.PointsBalance, u.IsAdmin, string(u.Status), u.CreatedAt,
	).Scan(&id)
	if err != nil {
		if _, ok := isUniqueViolation(err); ok {
			return 0, ErrUserExists
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

func (s *pgStore) getUser(ctx context.Context, query string, args ...any) (*model.User, error) {
	u, err := scanUser(s.q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetUser возвращает пользователя по идентификатору.
func (s *pgStore) GetUser(ctx context.Context, id int64) (*model.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// LockUser возвращает пользователя, блокируя его строку для сериализации изменений.
func (s *pgStore) LockUser(ctx context.Context, id int64) (*model.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id)
}

// GetUserByLogin ищет пользователя по email без учёта регистра или по телефону.
func (s *pgStore) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	return s.getUser(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE lower(email) = lower($1) OR phone = $1
		 ORDER BY id LIMIT 1`,
		login,
	)
}

// ListUsers возвращает последних зарегистрированных пользователей без администраторов.
func (s *pgStore) ListUsers(ctx context.Context, limit int) ([]model.User, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE NOT is_admin ORDER BY id DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	defer rows.Close()

	var res []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		res = append(res, *u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ListUserIDs возвращает идентификаторы всех пользователей, кроме администраторов.
func (s *pgStore) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.q.Query(ctx, `SELECT id FROM users WHERE NOT is_admin ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select user ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("collect user ids: %w", err)
	}
	return ids, nil
}

// HasAdmin сообщает, заведён ли хотя бы один администратор.
func (s *pgStore) HasAdmin(ctx context.Context) (bool, error) {
	var exists bool
	if err := s.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE is_admin)`).Scan(&exists); err != nil {
		return false, fmt.Errorf("check admin: %w", err)
	}
	return exists, nil
}

// AddPoints изменяет баланс пользователя на delta и возвращает новый баланс.
func (s *pgStore) AddPoints(ctx context.Context, userID, delta int64) (int64, error) {
	var balance int64
	err := s.q.QueryRow(ctx,
		`UPDATE users SET points_balance = points_balance + $2 WHERE id = $1 RETURNING points_balance`,
		userID, delta,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("add points: %w", err)
	}
	return balance, nil
}

func (s *pgStore) execUser(ctx context.Context, op, query string, args ...any) error {
	tag, err := s.q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetPoints устанавливает баланс пользователя.
func (s *pgStore) SetPoints(ctx context.Context, userID, points int64) error {
	return s.execUser(ctx, "set points", `UPDATE users SET points_balance = $2 WHERE id = $1`, userID, points)
}

// SetPasswordHash заменяет хеш пароля пользователя.
func (s *pgStore) SetPasswordHash(ctx context.Context, userID int64, hash []byte) error {
	return s.execUser(ctx, "set password", `UPDATE users SET password_hash = $2 WHERE id = $1`, userID, hash)
}

// SetUserStatus меняет статус учётной записи.
func (s *pgStore) SetUserStatus(ctx context.Context, userID int64, status model.UserStatus) error {
	return s.execUser(ctx, "set status", `UPDATE users SET status = $2 WHERE id = $1`, userID, string(status))
}

// TouchLogin фиксирует время последнего входа.
func (s *pgStore) TouchLogin(ctx context.Context, userID int64, at time.Time) error {
	return s.execUser(ctx, "touch login", `UPDATE users SET last_login_at = $2 WHERE id = $1`, userID, at)
}

const taskColumns = `id, title, order_index, reward_points, wait_seconds, is_active, created_at`

func (s *pgStore) queryTasks(ctx context.Context, query string, args ...any) ([]model.Task, error) {
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select tasks: %w", err)
	}
	defer rows.Close()

	var res []model.Task
	for rows.Next() {
		var t model.Task
		if err := rows.Scan(&t.ID, &t.Title, &t.OrderIndex, &t.RewardPoints, &t.WaitSeconds, &t.IsActive, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		res = append(res, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// AllTasks возвращает весь каталог по возрастанию позиции.
func (s *pgStore) AllTasks(ctx context.Context) ([]model.Task, error) {
	return s.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY order_index`)
}

// ActiveTasks возвращает активные задания по возрастанию позиции.
func (s *pgStore) ActiveTasks(ctx context.Context) ([]model.Task, error) {
	return s.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks WHERE is_active ORDER BY order_index`)
}

// GetTask возвращает задание по идентификатору.
func (s *pgStore) GetTask(ctx context.Context, id int64) (*model.Task, error) {
	var t model.Task
	err := s.q.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id).
		Scan(&t.ID, &t.Title, &t.OrderIndex, &t.RewardPoints, &t.WaitSeconds, &t.IsActive, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return &t, nil
}

// CreateTask добавляет задание в каталог.
func (s *pgStore) CreateTask(ctx context.Context, t *model.Task) (int64, error) {
	var id int64
	err := s.q.QueryRow(ctx,
		`INSERT INTO tasks (title, order_index, reward_points, wait_seconds, is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		t.Title, t.OrderIndex, t.RewardPoints, t.WaitSeconds, t.IsActive, t.CreatedAt,
	).Scan(&id)
	if err != nil {
		if _, ok := isUniqueViolation(err); ok {
			return 0, ErrOrderIndexTaken
		}
		return 0, fmt.Errorf("create task: %w", err)
	}
	return id, nil
}

// UpdateTask сохраняет изменённые поля задания.
func (s *pgStore) UpdateTask(ctx context.Context, t *model.Task) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE tasks SET title = $2, order_index = $3, reward_points = $4, wait_seconds = $5, is_active = $6
		 WHERE id = $1`,
		t.ID, t.Title, t.OrderIndex, t.RewardPoints, t.WaitSeconds, t.IsActive,
	)
	if err != nil {
		if _, ok := isUniqueViolation(err); ok {
			return ErrOrderIndexTaken
		}
		return fmt.Errorf("update task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// MaxOrderIndex возвращает наибольшую занятую позицию каталога или 0 для пустого каталога.
func (s *pgStore) MaxOrderIndex(ctx context.Context) (int, error) {
	var maxOrder int
	if err := s.q.QueryRow(ctx, `SELECT COALESCE(MAX(order_index), 0) FROM tasks`).Scan(&maxOrder); err != nil {
		return 0, fmt.Errorf("max order index: %w", err)
	}
	return maxOrder, nil
}

// LockCatalog берёт блокировку таблицы заданий, несовместимую с параллельной вставкой,
// чтобы MaxOrderIndex и последующая вставка выполнялись атомарно.
func (s *pgStore) LockCatalog(ctx context.Context) error {
	if _, err := s.q.Exec(ctx, `LOCK TABLE tasks IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return fmt.Errorf("lock tasks: %w", err)
	}
	return nil
}

// UserProgress возвращает все строки прогресса пользователя.
func (s *pgStore) UserProgress(ctx context.Context, userID int64) ([]model.UserTaskProgress, error) {
	rows, err := s.q.Query(ctx,
		`SELECT user_id, task_id, status, started_at, completed_at, earned_points
		 FROM user_tasks WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select progress: %w", err)
	}
	defer rows.Close()

	var res []model.UserTaskProgress
	for rows.Next() {
		var (
			p      model.UserTaskProgress
			status string
		)
		if err := rows.Scan(&p.UserID, &p.TaskID, &status, &p.StartedAt, &p.CompletedAt, &p.EarnedPoints); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		p.Status = model.ProgressStatus(status)
		res = append(res, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// InsertProgress создаёт строку прогресса; существующая строка не изменяется.
func (s *pgStore) InsertProgress(ctx context.Context, p *model.UserTaskProgress) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO user_tasks (user_id, task_id, status, started_at, completed_at, earned_points)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id, task_id) DO NOTHING`,
		p.UserID, p.TaskID, string(p.Status), p.StartedAt, p.CompletedAt, p.EarnedPoints,
	)
	if err != nil {
		return fmt.Errorf("insert progress: %w", err)
	}
	return nil
}

// UpdateProgress сохраняет строку прогресса.
func (s *pgStore) UpdateProgress(ctx context.Context, p *model.UserTaskProgress) error {
	_, err := s.q.Exec(ctx,
		`UPDATE user_tasks SET status = $3, started_at = $4, completed_at = $5, earned_points = $6
		 WHERE user_id = $1 AND task_id = $2`,
		p.UserID, p.TaskID, string(p.Status), p.StartedAt, p.CompletedAt, p.EarnedPoints,
	)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

const runColumns = `id, user_id, task_id, run_token, started_at, expected_finish_ms, finished_at, status`

func (s *pgStore) getRun(ctx context.Context, query string, args ...any) (*model.TaskRun, error) {
	var (
		r      model.TaskRun
		status string
	)
	err := s.q.QueryRow(ctx, query, args...).
		Scan(&r.ID, &r.UserID, &r.TaskID, &r.RunToken, &r.StartedAt, &r.ExpectedFinishMS, &r.FinishedAt, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	r.Status = model.RunStatus(status)
	return &r, nil
}

// RunningRun возвращает выполняющийся запуск пользователя.
func (s *pgStore) RunningRun(ctx context.Context, userID int64) (*model.TaskRun, error) {
	return s.getRun(ctx,
		`SELECT `+runColumns+` FROM task_runs WHERE user_id = $1 AND status = $2 FOR UPDATE`,
		userID, string(model.RunRunning),
	)
}

// RunningRunByToken возвращает выполняющийся запуск пользователя с указанным токеном.
func (s *pgStore) RunningRunByToken(ctx context.Context, userID int64, token string) (*model.TaskRun, error) {
	return s.getRun(ctx,
		`SELECT `+runColumns+` FROM task_runs WHERE run_token = $1 AND user_id = $2 AND status = $3 FOR UPDATE`,
		token, userID, string(model.RunRunning),
	)
}

// InsertRun сохраняет новый запуск задания.
func (s *pgStore) InsertRun(ctx context.Context, r *model.TaskRun) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO task_runs (id, user_id, task_id, run_token, started_at, expected_finish_ms, finished_at, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ID, r.UserID, r.TaskID, r.RunToken, r.StartedAt, r.ExpectedFinishMS, r.FinishedAt, string(r.Status),
	)
	if err != nil {
		if pgErr, ok := isUniqueViolation(err); ok && pgErr.ConstraintName == "task_runs_one_running" {
			return ErrRunExists
		}
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// UpdateRun сохраняет статус и время завершения запуска.
func (s *pgStore) UpdateRun(ctx context.Context, r *model.TaskRun) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE task_runs SET status = $2, finished_at = $3 WHERE id = $1`,
		r.ID, string(r.Status), r.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRunNotFound
	}
	return nil
}

// ExpireRunningRuns переводит все выполняющиеся запуски пользователя в expired.
func (s *pgStore) ExpireRunningRuns(ctx context.Context, userID int64, at time.Time) (int64, error) {
	tag, err := s.q.Exec(ctx,
		`UPDATE task_runs SET status = $3, finished_at = $4 WHERE user_id = $1 AND status = $2`,
		userID, string(model.RunRunning), string(model.RunExpired), at,
	)
	if err != nil {
		return 0, fmt.Errorf("expire runs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// GetSettings возвращает параметры платформы.
func (s *pgStore) GetSettings(ctx context.Context) (*model.Settings, error) {
	var (
		st                     model.Settings
		minDeposit, minWithdraw string
	)
	err := s.q.QueryRow(ctx,
		`SELECT app_name, usd_to_points, min_deposit_usd::text, min_withdraw_usd::text,
		        manager_title, manager_whatsapp, manager_telegram
		 FROM settings WHERE id = 1`,
	).Scan(&st.AppName, &st.USDToPoints, &minDeposit, &minWithdraw,
		&st.ManagerContact.Title, &st.ManagerContact.WhatsApp, &st.ManagerContact.Telegram)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}

	if st.MinDepositUSD, err = decimal.NewFromString(minDeposit); err != nil {
		return nil, fmt.Errorf("parse min deposit: %w", err)
	}
	if st.MinWithdrawUSD, err = decimal.NewFromString(minWithdraw); err != nil {
		return nil, fmt.Errorf("parse min withdraw: %w", err)
	}

	return &st, nil
}

// UpdateSettings сохраняет параметры платформы.
func (s *pgStore) UpdateSettings(ctx context.Context, st *model.Settings) error {
	_, err := s.q.Exec(ctx,
		`UPDATE settings SET app_name = $1, usd_to_points = $2, min_deposit_usd = $3::numeric,
		        min_withdraw_usd = $4::numeric, manager_title = $5, manager_whatsapp = $6, manager_telegram = $7
		 WHERE id = 1`,
		st.AppName, st.USDToPoints, st.MinDepositUSD.String(), st.MinWithdrawUSD.String(),
		st.ManagerContact.Title, st.ManagerContact.WhatsApp, st.ManagerContact.Telegram,
	)
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	return nil
}

const walletColumns = `w.id, w.user_id, w.type, w.amount_usd::text, w.rate_usd_to_points, w.points_delta,
	w.status, w.created_at, w.processed_at, w.notified_at`

func scanWalletTx(row pgx.Row, extra ...any) (*model.WalletTransaction, error) {
	var (
		t              model.WalletTransaction
		txType, status string
		amount         string
	)
	dest := append([]any{&t.ID, &t.UserID, &txType, &amount, &t.RateUSDToPoints, &t.PointsDelta,
		&status, &t.CreatedAt, &t.ProcessedAt, &t.NotifiedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	t.AmountUSD = d
	t.Type = model.WalletTxType(txType)
	t.Status = model.WalletTxStatus(status)
	return &t, nil
}

// InsertWalletTx сохраняет новую заявку кошелька.
func (s *pgStore) InsertWalletTx(ctx context.Context, t *model.WalletTransaction) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO wallet_transactions (id, user_id, type, amount_usd, rate_usd_to_points, points_delta, status, created_at)
		 VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8)`,
		t.ID, t.UserID, string(t.Type), t.AmountUSD.String(), t.RateUSDToPoints, t.PointsDelta, string(t.Status), t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert wallet tx: %w", err)
	}
	return nil
}

// LockWalletTx возвращает заявку, блокируя её строку.
func (s *pgStore) LockWalletTx(ctx context.Context, id string) (*model.WalletTransaction, error) {
	t, err := scanWalletTx(s.q.QueryRow(ctx,
		`SELECT `+walletColumns+` FROM wallet_transactions w WHERE w.id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWalletTxNotFound
		}
		return nil, fmt.Errorf("get wallet tx: %w", err)
	}
	return t, nil
}

// UpdateWalletTx сохраняет статус и время обработки заявки.
func (s *pgStore) UpdateWalletTx(ctx context.Context, t *model.WalletTransaction) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE wallet_transactions SET status = $2, processed_at = $3 WHERE id = $1`,
		t.ID, string(t.Status), t.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("update wallet tx: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrWalletTxNotFound
	}
	return nil
}

// WalletTxByUser возвращает последние заявки пользователя, новые первыми.
func (s *pgStore) WalletTxByUser(ctx context.Context, userID int64, limit int) ([]model.WalletTransaction, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+walletColumns+` FROM wallet_transactions w
		 WHERE w.user_id = $1
		 ORDER BY w.created_at DESC, w.id DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select wallet txs: %w", err)
	}
	defer rows.Close()

	var res []model.WalletTransaction
	for rows.Next() {
		t, err := scanWalletTx(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wallet tx: %w", err)
		}
		res = append(res, *t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

func (s *pgStore) queryPending(ctx context.Context, query string, args ...any) ([]model.PendingRequest, error) {
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select pending: %w", err)
	}
	defer rows.Close()

	var res []model.PendingRequest
	for rows.Next() {
		var p model.PendingRequest
		t, err := scanWalletTx(rows, &p.FullName, &p.Email, &p.Phone)
		if err != nil {
			return nil, fmt.Errorf("scan pending: %w", err)
		}
		p.WalletTransaction = *t
		res = append(res, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// PendingWalletTx возвращает заявки, ожидающие решения администратора, новые первыми.
func (s *pgStore) PendingWalletTx(ctx context.Context, limit int) ([]model.PendingRequest, error) {
	return s.queryPending(ctx,
		`SELECT `+walletColumns+`, COALESCE(u.full_name, ''), COALESCE(u.email, ''), COALESCE(u.phone, '')
		 FROM wallet_transactions w JOIN users u ON u.id = w.user_id
		 WHERE w.status = $1
		 ORDER BY w.created_at DESC
		 LIMIT $2`,
		string(model.WalletPending), limit,
	)
}

// UnnotifiedWalletTx возвращает ожидающие заявки, о которых менеджер ещё не уведомлён, старые первыми.
func (s *pgStore) UnnotifiedWalletTx(ctx context.Context, limit int) ([]model.PendingRequest, error) {
	return s.queryPending(ctx,
		`SELECT `+walletColumns+`, COALESCE(u.full_name, ''), COALESCE(u.email, ''), COALESCE(u.phone, '')
		 FROM wallet_transactions w JOIN users u ON u.id = w.user_id
		 WHERE w.status = $1 AND w.notified_at IS NULL
		 ORDER BY w.created_at
		 LIMIT $2`,
		string(model.WalletPending), limit,
	)
}

// MarkWalletTxNotified отмечает, что менеджер уведомлён о заявке.
func (s *pgStore) MarkWalletTxNotified(ctx context.Context, id string, at time.Time) error {
	_, err := s.q.Exec(ctx, `UPDATE wallet_transactions SET notified_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	return nil
}
