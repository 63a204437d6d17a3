package service

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/mmeshcher/rewards-platform/internal/model"
	"github.com/mmeshcher/rewards-platform/internal/repository"
)

// RunTicket возвращается пользователю при запуске задания. Token нужен для завершения именно этого запуска.
type RunTicket struct {
	Token          string
	TaskID         int64
	WaitSeconds    int64
	ExpectedFinish time.Time
}

// StartTask запускает доступное задание пользователя. Выполняющийся запуск другого задания,
// которое после изменения каталога больше не доступно, переводится в expired.
func (s *Service) StartTask(ctx context.Context, userID int64) (*RunTicket, error) {
	var ticket *RunTicket
	err := s.repo.InTx(ctx, func(tx repository.Store) error {
		if _, err := lockUser(ctx, tx, userID); err != nil {
			return err
		}

		rows, err := reconcile(ctx, tx, userID)
		if err != nil {
			return err
		}

		var pick *progressRow
		for i := range rows {
			if rows[i].p.Status == model.ProgressAvailable {
				pick = &rows[i]
				break
			}
		}
		if pick == nil {
			return ErrNoTaskReady
		}

		now := s.now()
		running, err := tx.RunningRun(ctx, userID)
		switch {
		case err == nil:
			if running.TaskID == pick.task.ID {
				return ErrRunInProgress
			}
			// Задание запуска перестало быть доступным после правки каталога.
			running.Status = model.RunExpired
			running.FinishedAt = &now
			if err := tx.UpdateRun(ctx, running); err != nil {
				return errors.Wrap(err, "expire stale run")
			}
		case !errors.Is(err, repository.ErrRunNotFound):
			return errors.Wrap(err, "check running run")
		}

		run := &model.TaskRun{
			ID:               s.newID(),
			UserID:           userID,
			TaskID:           pick.task.ID,
			RunToken:         s.newToken(),
			StartedAt:        now,
			ExpectedFinishMS: now.UnixMilli() + pick.task.WaitSeconds*1000,
			Status:           model.RunRunning,
		}
		if err := tx.InsertRun(ctx, run); err != nil {
			if errors.Is(err, repository.ErrRunExists) {
				return ErrRunInProgress
			}
			return errors.Wrap(err, "insert run")
		}

		pick.p.StartedAt = &now
		if err := tx.UpdateProgress(ctx, pick.p); err != nil {
			return errors.Wrap(err, "update progress")
		}

		ticket = &RunTicket{
			Token:          run.RunToken,
			TaskID:         run.TaskID,
			WaitSeconds:    pick.task.WaitSeconds,
			ExpectedFinish: time.UnixMilli(run.ExpectedFinishMS).UTC(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// FinishTask завершает запуск по его токену, засчитывает задание и начисляет награду.
// Время ожидания проверяется на сервере; заявленное клиентом время не учитывается.
func (s *Service) FinishTask(ctx context.Context, userID int64, token string) (int64, error) {
	var earned int64
	err := s.repo.InTx(ctx, func(tx repository.Store) error {
		if _, err := lockUser(ctx, tx, userID); err != nil {
			return err
		}

		run, err := tx.RunningRunByToken(ctx, userID, token)
		if err != nil {
			if errors.Is(err, repository.ErrRunNotFound) {
				return ErrInvalidRun
			}
			return errors.Wrap(err, "find run")
		}

		now := s.now()
		if now.UnixMilli() < run.ExpectedFinishMS {
			return ErrTooEarly
		}

		rows, err := reconcile(ctx, tx, userID)
		if err != nil {
			return err
		}

		ready := false
		for _, r := range rows {
			if r.task.ID == run.TaskID {
				ready = r.p.Status == model.ProgressAvailable
				break
			}
		}
		if !ready {
			return ErrTaskNotReady
		}

		earned, err = complete(ctx, tx, userID, rows, run.TaskID, now)
		if err != nil {
			return err
		}

		run.Status = model.RunCompleted
		run.FinishedAt = &now
		if err := tx.UpdateRun(ctx, run); err != nil {
			return errors.Wrap(err, "update run")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return earned, nil
}
