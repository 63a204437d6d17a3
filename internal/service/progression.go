package service

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/mmeshcher/rewards-platform/internal/model"
	"github.com/mmeshcher/rewards-platform/internal/repository"
)

// progressRow связывает активное задание со строкой прогресса пользователя.
type progressRow struct {
	task model.Task
	p    *model.UserTaskProgress
}

// materialize создаёт недостающие строки прогресса для активных заданий и возвращает
// строки по возрастанию OrderIndex. Существующие строки не изменяются.
func materialize(ctx context.Context, tx repository.Store, userID int64) ([]progressRow, error) {
	tasks, err := tx.ActiveTasks(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load active tasks")
	}

	existing, err := tx.UserProgress(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "load progress")
	}

	byTask := make(map[int64]model.UserTaskProgress, len(existing))
	for _, p := range existing {
		byTask[p.TaskID] = p
	}

	rows := make([]progressRow, 0, len(tasks))
	for i, t := range tasks {
		p, ok := byTask[t.ID]
		if !ok {
			p = model.UserTaskProgress{
				UserID: userID,
				TaskID: t.ID,
				Status: initialStatus(i),
			}
			if err := tx.InsertProgress(ctx, &p); err != nil {
				return nil, errors.Wrap(err, "insert progress")
			}
		}
		rows = append(rows, progressRow{task: t, p: &p})
	}

	return rows, nil
}

// initialStatus открывает только задание с наименьшим OrderIndex среди активных.
func initialStatus(position int) model.ProgressStatus {
	if position == 0 {
		return model.ProgressAvailable
	}
	return model.ProgressLocked
}

// reconcile восстанавливает инварианты прогресса: доступна ровно первая незавершённая строка,
// остальные незавершённые закрыты. Завершённые строки не меняются.
func reconcile(ctx context.Context, tx repository.Store, userID int64) ([]progressRow, error) {
	rows, err := materialize(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	seenOpen := false
	for _, r := range rows {
		if r.p.Status == model.ProgressCompleted {
			continue
		}

		want := model.ProgressLocked
		if !seenOpen {
			want = model.ProgressAvailable
			seenOpen = true
		}

		if r.p.Status != want {
			r.p.Status = want
			if err := tx.UpdateProgress(ctx, r.p); err != nil {
				return nil, errors.Wrap(err, "update progress")
			}
		}
	}

	return rows, nil
}

// complete засчитывает доступное задание, открывает следующее активное задание и начисляет награду.
func complete(ctx context.Context, tx repository.Store, userID int64, rows []progressRow, taskID int64, now time.Time) (int64, error) {
	idx := -1
	for i, r := range rows {
		if r.task.ID == taskID {
			idx = i
			break
		}
	}

	if idx < 0 {
		t, err := tx.GetTask(ctx, taskID)
		if err != nil {
			if errors.Is(err, repository.ErrTaskNotFound) {
				return 0, errors.Wrapf(ErrNotFound, "task %d", taskID)
			}
			return 0, errors.Wrap(err, "get task")
		}
		if !t.IsActive {
			return 0, ErrNotEligible
		}
		return 0, errors.Wrapf(ErrNotFound, "progress for task %d", taskID)
	}

	row := rows[idx]
	if row.p.Status != model.ProgressAvailable {
		return 0, ErrNotEligible
	}

	row.p.Status = model.ProgressCompleted
	row.p.CompletedAt = &now
	row.p.EarnedPoints = row.task.RewardPoints
	if err := tx.UpdateProgress(ctx, row.p); err != nil {
		return 0, errors.Wrap(err, "update progress")
	}

	if idx+1 < len(rows) {
		next := rows[idx+1]
		if next.p.Status == model.ProgressLocked {
			next.p.Status = model.ProgressAvailable
			if err := tx.UpdateProgress(ctx, next.p); err != nil {
				return 0, errors.Wrap(err, "unlock next task")
			}
		}
	}

	if _, err := tx.AddPoints(ctx, userID, row.task.RewardPoints); err != nil {
		return 0, errors.Wrap(err, "credit reward")
	}

	return row.task.RewardPoints, nil
}

// resetProgress возвращает все строки активных заданий в начальное состояние
// и переводит выполняющиеся запуски пользователя в expired.
func resetProgress(ctx context.Context, tx repository.Store, userID int64, now time.Time) error {
	rows, err := materialize(ctx, tx, userID)
	if err != nil {
		return err
	}

	for i, r := range rows {
		r.p.Status = initialStatus(i)
		r.p.StartedAt = nil
		r.p.CompletedAt = nil
		r.p.EarnedPoints = 0
		if err := tx.UpdateProgress(ctx, r.p); err != nil {
			return errors.Wrap(err, "reset progress")
		}
	}

	if _, err := tx.ExpireRunningRuns(ctx, userID, now); err != nil {
		return errors.Wrap(err, "expire runs")
	}

	return nil
}

func lockUser(ctx context.Context, tx repository.Store, userID int64) (*model.User, error) {
	u, err := tx.LockUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, errors.Wrapf(ErrNotFound, "user %d", userID)
		}
		return nil, errors.Wrap(err, "lock user")
	}
	return u, nil
}

// ListProgress возвращает активные задания по порядку вместе со статусом их прохождения пользователем.
func (s *Service) ListProgress(ctx context.Context, userID int64) ([]model.TaskProgress, error) {
	var res []model.TaskProgress
	err := s.repo.InTx(ctx, func(tx repository.Store) error {
		if _, err := lockUser(ctx, tx, userID); err != nil {
			return err
		}

		rows, err := reconcile(ctx, tx, userID)
		if err != nil {
			return err
		}

		res = make([]model.TaskProgress, 0, len(rows))
		for _, r := range rows {
			res = append(res, model.TaskProgress{Task: r.task, Status: r.p.Status})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ResetProgress начинает прохождение заданий пользователя заново.
func (s *Service) ResetProgress(ctx context.Context, userID int64) error {
	return s.repo.InTx(ctx, func(tx repository.Store) error {
		u, err := lockUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if u.IsAdmin {
			return errors.Wrapf(ErrNotFound, "user %d", userID)
		}
		return resetProgress(ctx, tx, userID, s.now())
	})
}

// Summary возвращает сводку по пользователю: баланс, параметры платформы и число выполненных заданий.
func (s *Service) Summary(ctx context.Context, userID int64) (*model.Summary, error) {
	var res model.Summary
	err := s.repo.InTx(ctx, func(tx repository.Store) error {
		u, err := lockUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		res.User = *u

		settings, err := tx.GetSettings(ctx)
		if err != nil {
			return errors.Wrap(err, "get settings")
		}
		res.Settings = *settings

		if u.IsAdmin {
			tasks, err := tx.ActiveTasks(ctx)
			if err != nil {
				return errors.Wrap(err, "load active tasks")
			}
			res.TasksTotal = len(tasks)
			return nil
		}

		rows, err := reconcile(ctx, tx, userID)
		if err != nil {
			return err
		}
		res.TasksTotal = len(rows)
		for _, r := range rows {
			if r.p.Status == model.ProgressCompleted {
				res.TasksDone++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}
