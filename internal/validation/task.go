package validation

import (
	"errors"
	"strings"
)

var (
	// ErrTitleRequired возвращается для пустого названия задания.
	ErrTitleRequired = errors.New("title is required")
	// ErrInvalidReward возвращается для отрицательной награды.
	ErrInvalidReward = errors.New("reward_points must be non-negative")
	// ErrInvalidWait возвращается, если время ожидания меньше секунды.
	ErrInvalidWait = errors.New("wait_seconds must be at least 1")
	// ErrInvalidOrder возвращается для неположительной позиции в каталоге.
	ErrInvalidOrder = errors.New("order_index must be positive")
)

// TaskFields проверяет поля задания каталога и возвращает нормализованное название.
func TaskFields(title string, rewardPoints, waitSeconds int64) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", ErrTitleRequired
	}
	if rewardPoints < 0 {
		return "", ErrInvalidReward
	}
	if waitSeconds < 1 {
		return "", ErrInvalidWait
	}
	return title, nil
}

// OrderIndex проверяет позицию задания в каталоге.
func OrderIndex(orderIndex int) error {
	if orderIndex <= 0 {
		return ErrInvalidOrder
	}
	return nil
}
