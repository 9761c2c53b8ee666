package common

import (
	"github.com/holiman/uint256"

	mkterrors "nftmarket/core/errors"
	"nftmarket/core/types"
)

// RequireSingleFund checks only the number of attached coins.
func RequireSingleFund(funds types.Coins) error {
	switch len(funds) {
	case 0:
		return mkterrors.ErrNoFundsPresent
	case 1:
		return nil
	default:
		return mkterrors.ErrMultipleFunds
	}
}

// SinglePayment validates that funds carries exactly one coin matching the
// price denom with at least the price amount. It returns the attached coin
// and the excess to refund.
func SinglePayment(funds types.Coins, price types.Coin) (types.Coin, *uint256.Int, error) {
	if err := RequireSingleFund(funds); err != nil {
		return types.Coin{}, nil, err
	}
	fund := funds[0].Clone()
	if fund.Denom != price.Denom {
		return types.Coin{}, nil, mkterrors.ErrWrongFund
	}
	required := price.AmountOrZero()
	if fund.Amount.Lt(required) {
		return types.Coin{}, nil, mkterrors.InsufficientFunds(fund.Amount, required)
	}
	refund := new(uint256.Int).Sub(fund.Amount, required)
	return fund, refund, nil
}

// PaymentMessages builds the seller payment and, when the refund is
// positive, the refund to the buyer.
func PaymentMessages(payee string, price types.Coin, buyer string, refund *uint256.Int) []types.BankSend {
	msgs := []types.BankSend{{ToAddress: payee, Amount: price.Clone()}}
	if refund != nil && !refund.IsZero() {
		msgs = append(msgs, types.BankSend{
			ToAddress: buyer,
			Amount:    types.Coin{Denom: price.Denom, Amount: new(uint256.Int).Set(refund)},
		})
	}
	return msgs
}
