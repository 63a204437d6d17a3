package service

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/rewards-platform/internal/notify"
	"github.com/mmeshcher/rewards-platform/internal/validation"
)

const notifyBatchSize = 100

// StartNotifications запускает фоновую отправку менеджеру новых заявок кошелька.
// Без настроенного клиента ничего не делает.
func (s *Service) StartNotifications(ctx context.Context) {
	if s.notifier == nil {
		return
	}

	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.processNotificationBatch(ctx)
			}
		}
	}()
}

func (s *Service) processNotificationBatch(ctx context.Context) {
	pending, err := s.repo.UnnotifiedWalletTx(ctx, notifyBatchSize)
	if err != nil {
		s.logger.Error("failed to load wallet requests for notification", zap.Error(err))
		return
	}

	for _, p := range pending {
		statusCode, retryAfter, err := s.notifier.Notify(ctx, notify.WalletRequest{
			ID:        p.ID,
			Type:      string(p.Type),
			AmountUSD: validation.FormatUSD(p.AmountUSD),
			Points:    p.PointsDelta,
			UserID:    p.UserID,
			FullName:  p.FullName,
			Email:     p.Email,
			Phone:     p.Phone,
			CreatedAt: p.CreatedAt,
		})
		if err != nil {
			s.logger.Warn("failed to notify manager", zap.String("txID", p.ID), zap.Error(err))
			continue
		}

		if statusCode == http.StatusTooManyRequests {
			if retryAfter > 0 {
				timer := time.NewTimer(retryAfter)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
			}
			return
		}

		if err := s.repo.MarkWalletTxNotified(ctx, p.ID, s.now()); err != nil {
			s.logger.Error("failed to mark wallet request notified", zap.String("txID", p.ID), zap.Error(err))
		}
	}
}
