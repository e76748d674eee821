package core

import (
	"context"

	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// FlashLoan pushes assets to the caller, runs the callback, and pulls the
// same amount back. No fee is levied at this layer; fee policy, if any,
// belongs to the asset itself.
func (e *Engine) FlashLoan(ctx context.Context, caller uuid.UUID, assetId string, amount decimal.Decimal, data []byte, cb FlashLoanCallback) error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.unlock()

	if amount.IsNegative() {
		return NegativeAmount
	}
	if amount.IsZero() {
		return ZeroAmount
	}

	if err := e.transfer.Transfer(ctx, assetId, caller, amount); err != nil {
		return errors.Wrap(err, "push flash loan")
	}
	if cb != nil {
		if err := cb.OnFlashLoan(ctx, amount, data); err != nil {
			return err
		}
	}
	if err := e.transfer.TransferFrom(ctx, assetId, caller, e.vault, amount); err != nil {
		e.log.Error().Err(err).
			Str("caller", caller.String()).
			Str("assetId", assetId).
			Str("amount", amount.String()).
			Msg("flash loan pull-back failed")
		return UnrepaidFlashLoan
	}

	return e.CreateEvent(ctx, NewEvent(e.clk, uuid.Nil, caller, ATFlashLoan, EventDetail{
		Assets: amount,
	}))
}
