package service

import (
	"context"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/mmeshcher/rewards-platform/internal/model"
	"github.com/mmeshcher/rewards-platform/internal/repository"
	"github.com/mmeshcher/rewards-platform/internal/validation"
)

// TaskInput описывает новое задание каталога. Нулевой OrderIndex ставит задание в конец каталога.
type TaskInput struct {
	Title        string
	RewardPoints int64
	WaitSeconds  int64
	OrderIndex   int
	IsActive     *bool
}

// TaskUpdate описывает изменение задания. Поля со значением nil не меняются.
type TaskUpdate struct {
	Title        *string
	RewardPoints *int64
	WaitSeconds  *int64
	OrderIndex   *int
	IsActive     *bool
}

// ListTasks возвращает весь каталог, включая неактивные задания, по возрастанию OrderIndex.
func (s *Service) ListTasks(ctx context.Context) ([]model.Task, error) {
	return s.repo.AllTasks(ctx)
}

// CreateTask добавляет задание в каталог и синхронизирует прогресс пользователей.
func (s *Service) CreateTask(ctx context.Context, in TaskInput) (*model.Task, error) {
	title, err := validation.TaskFields(in.Title, in.RewardPoints, in.WaitSeconds)
	if err != nil {
		return nil, invalid(err)
	}
	if in.OrderIndex != 0 {
		if err := validation.OrderIndex(in.OrderIndex); err != nil {
			return nil, invalid(err)
		}
	}

	task := model.Task{
		Title:        title,
		OrderIndex:   in.OrderIndex,
		RewardPoints: in.RewardPoints,
		WaitSeconds:  in.WaitSeconds,
		IsActive:     true,
		CreatedAt:    s.now(),
	}
	if in.IsActive != nil {
		task.IsActive = *in.IsActive
	}

	err = s.repo.InTx(ctx, func(tx repository.Store) error {
		task.ID = 0
		task.OrderIndex = in.OrderIndex
		if task.OrderIndex == 0 {
			if err := tx.LockCatalog(ctx); err != nil {
				return errors.Wrap(err, "lock catalog")
			}
			maxOrder, err := tx.MaxOrderIndex(ctx)
			if err != nil {
				return errors.Wrap(err, "max order index")
			}
			task.OrderIndex = maxOrder + 1
		}

		id, err := tx.CreateTask(ctx, &task)
		if err != nil {
			if errors.Is(err, repository.ErrOrderIndexTaken) {
				return invalid(err)
			}
			return errors.Wrap(err, "create task")
		}
		task.ID = id
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.syncAllUsers(ctx)
	return &task, nil
}

// UpdateTask изменяет задание каталога и синхронизирует прогресс пользователей.
// Задания не удаляются: чтобы убрать задание из цепочки, его деактивируют.
func (s *Service) UpdateTask(ctx context.Context, id int64, upd TaskUpdate) (*model.Task, error) {
	var task *model.Task
	err := s.repo.InTx(ctx, func(tx repository.Store) error {
		t, err := tx.GetTask(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrTaskNotFound) {
				return errors.Wrapf(ErrNotFound, "task %d", id)
			}
			return errors.Wrap(err, "get task")
		}

		if upd.Title != nil {
			t.Title = *upd.Title
		}
		if upd.RewardPoints != nil {
			t.RewardPoints = *upd.RewardPoints
		}
		if upd.WaitSeconds != nil {
			t.WaitSeconds = *upd.WaitSeconds
		}
		if upd.IsActive != nil {
			t.IsActive = *upd.IsActive
		}
		if upd.OrderIndex != nil {
			if err := validation.OrderIndex(*upd.OrderIndex); err != nil {
				return invalid(err)
			}
			t.OrderIndex = *upd.OrderIndex
		}

		t.Title, err = validation.TaskFields(t.Title, t.RewardPoints, t.WaitSeconds)
		if err != nil {
			return invalid(err)
		}

		if err := tx.UpdateTask(ctx, t); err != nil {
			if errors.Is(err, repository.ErrOrderIndexTaken) {
				return invalid(err)
			}
			return errors.Wrap(err, "update task")
		}
		task = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.syncAllUsers(ctx)
	return task, nil
}

// syncAllUsers приводит прогресс всех пользователей в соответствие с каталогом.
// Каждый пользователь обрабатывается в отдельной транзакции, ошибки только логируются.
func (s *Service) syncAllUsers(ctx context.Context) {
	ids, err := s.repo.ListUserIDs(ctx)
	if err != nil {
		s.logger.Error("failed to list users for progress sync", zap.Error(err))
		return
	}

	for _, id := range ids {
		err := s.repo.InTx(ctx, func(tx repository.Store) error {
			if _, err := lockUser(ctx, tx, id); err != nil {
				return err
			}
			_, err := reconcile(ctx, tx, id)
			return err
		})
		if err != nil {
			s.logger.Error("failed to sync user progress", zap.Int64("userID", id), zap.Error(err))
		}
	}
}
