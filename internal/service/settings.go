package service

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/rewards-platform/internal/model"
	"github.com/mmeshcher/rewards-platform/internal/repository"
	"github.com/mmeshcher/rewards-platform/internal/validation"
)

var (
	errInvalidRate       = errors.New("usd_to_points must be at least 1")
	errInvalidMinDeposit = errors.New("min_deposit_usd must be a positive number")
	errInvalidMinWithdr  = errors.New("min_withdraw_usd must be a positive number")
)

// SettingsUpdate содержит новые параметры платформы. Пустые контакты менеджера не меняются.
type SettingsUpdate struct {
	USDToPoints    string
	MinDepositUSD  string
	MinWithdrawUSD string
	WhatsApp       string
	Telegram       string
}

// Settings возвращает текущие параметры платформы.
func (s *Service) Settings(ctx context.Context) (*model.Settings, error) {
	return s.repo.GetSettings(ctx)
}

// UpdateSettings изменяет параметры платформы. Курс округляется вниз до целого.
// Уже созданные заявки сохраняют курс на момент создания.
func (s *Service) UpdateSettings(ctx context.Context, upd SettingsUpdate) (*model.Settings, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(upd.USDToPoints))
	if err != nil {
		return nil, invalid(errInvalidRate)
	}
	rate = rate.Floor()
	if rate.LessThan(decimal.NewFromInt(1)) {
		return nil, invalid(errInvalidRate)
	}

	minDeposit, err := validation.ParseUSD(upd.MinDepositUSD)
	if err != nil {
		return nil, invalid(errInvalidMinDeposit)
	}
	minWithdraw, err := validation.ParseUSD(upd.MinWithdrawUSD)
	if err != nil {
		return nil, invalid(errInvalidMinWithdr)
	}

	var res *model.Settings
	err = s.repo.InTx(ctx, func(tx repository.Store) error {
		cur, err := tx.GetSettings(ctx)
		if err != nil {
			return errors.Wrap(err, "get settings")
		}

		cur.USDToPoints = rate.IntPart()
		cur.MinDepositUSD = minDeposit
		cur.MinWithdrawUSD = minWithdraw
		if v := strings.TrimSpace(upd.WhatsApp); v != "" {
			cur.ManagerContact.WhatsApp = v
		}
		if v := strings.TrimSpace(upd.Telegram); v != "" {
			cur.ManagerContact.Telegram = v
		}

		if err := tx.UpdateSettings(ctx, cur); err != nil {
			return errors.Wrap(err, "update settings")
		}
		res = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
