package service

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/mmeshcher/rewards-platform/internal/model"
	"github.com/mmeshcher/rewards-platform/internal/repository"
	"github.com/mmeshcher/rewards-platform/internal/validation"
)

const (
	walletHistoryLimit   = 30
	pendingRequestsLimit = 200
)

// WalletReceipt содержит созданную заявку и контакты менеджера, который её обработает.
type WalletReceipt struct {
	Tx      model.WalletTransaction
	Manager model.ManagerContact
}

// RequestWalletTx создаёт заявку на пополнение или вывод. Баланс не меняется до подтверждения.
// Для вывода баланс проверяется на момент создания заявки, баллы не резервируются.
func (s *Service) RequestWalletTx(ctx context.Context, userID int64, txType, amountUSD string) (*WalletReceipt, error) {
	typ := model.WalletTxType(txType)
	if typ != model.WalletDeposit && typ != model.WalletWithdraw {
		return nil, ErrInvalidType
	}

	amount, err := validation.ParseUSD(amountUSD)
	if err != nil {
		return nil, ErrInvalidAmount
	}

	var receipt *WalletReceipt
	err = s.repo.InTx(ctx, func(tx repository.Store) error {
		u, err := lockUser(ctx, tx, userID)
		if err != nil {
			return err
		}

		settings, err := tx.GetSettings(ctx)
		if err != nil {
			return errors.Wrap(err, "get settings")
		}

		minimum := settings.MinDepositUSD
		if typ == model.WalletWithdraw {
			minimum = settings.MinWithdrawUSD
		}
		if amount.LessThan(minimum) {
			return errors.Wrapf(ErrBelowMinimum, "minimum %s is %s USD", typ, minimum.String())
		}

		points := validation.PointsFor(amount, settings.USDToPoints)
		if typ == model.WalletWithdraw && points > u.PointsBalance {
			return ErrInsufficientBalance
		}

		delta := points
		if typ == model.WalletWithdraw {
			delta = -points
		}

		wt := model.WalletTransaction{
			ID:              s.newID(),
			UserID:          userID,
			Type:            typ,
			AmountUSD:       amount,
			RateUSDToPoints: settings.USDToPoints,
			PointsDelta:     delta,
			Status:          model.WalletPending,
			CreatedAt:       s.now(),
		}
		if err := tx.InsertWalletTx(ctx, &wt); err != nil {
			return errors.Wrap(err, "insert wallet tx")
		}

		receipt = &WalletReceipt{Tx: wt, Manager: settings.ManagerContact}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// ApproveWalletTx подтверждает заявку и применяет зафиксированное изменение баланса.
// Баланс может стать отрицательным, если с момента заявки на вывод он уменьшился.
func (s *Service) ApproveWalletTx(ctx context.Context, txID string) error {
	return s.processWalletTx(ctx, txID, model.WalletApproved)
}

// RejectWalletTx отклоняет заявку без изменения баланса.
func (s *Service) RejectWalletTx(ctx context.Context, txID string) error {
	return s.processWalletTx(ctx, txID, model.WalletRejected)
}

func (s *Service) processWalletTx(ctx context.Context, txID string, decision model.WalletTxStatus) error {
	return s.repo.InTx(ctx, func(tx repository.Store) error {
		wt, err := tx.LockWalletTx(ctx, txID)
		if err != nil {
			if errors.Is(err, repository.ErrWalletTxNotFound) {
				return errors.Wrapf(ErrNotFound, "wallet transaction %s", txID)
			}
			return errors.Wrap(err, "lock wallet tx")
		}

		if wt.Status != model.WalletPending {
			return ErrNotPending
		}

		if decision == model.WalletApproved {
			if _, err := lockUser(ctx, tx, wt.UserID); err != nil {
				return err
			}
			if _, err := tx.AddPoints(ctx, wt.UserID, wt.PointsDelta); err != nil {
				return errors.Wrap(err, "apply points delta")
			}
		}

		now := s.now()
		wt.Status = decision
		wt.ProcessedAt = &now
		if err := tx.UpdateWalletTx(ctx, wt); err != nil {
			return errors.Wrap(err, "update wallet tx")
		}
		return nil
	})
}

// WalletHistory возвращает последние заявки пользователя, новые первыми.
func (s *Service) WalletHistory(ctx context.Context, userID int64) ([]model.WalletTransaction, error) {
	return s.repo.WalletTxByUser(ctx, userID, walletHistoryLimit)
}

// PendingRequests возвращает заявки, ожидающие решения администратора.
func (s *Service) PendingRequests(ctx context.Context) ([]model.PendingRequest, error) {
	return s.repo.PendingWalletTx(ctx, pendingRequestsLimit)
}
