package trail

import (
	"math"
	"math/big"
)

// buyEligible enforces the purchase-path gate: the series must not be in the
// non-mintable set and the current time must fall inside the validity
// window. Supply exhaustion and the per-series mintable flag are enforced by
// the shared mint path.
func (e *Engine) buyEligible(series *Series) error {
	blocked, err := e.state.NonMintableContains(series.ID)
	if err != nil {
		return err
	}
	if blocked {
		return ErrMintingDisabled
	}
	now := uint64(e.now())
	startsAt := series.Metadata.StartsAt
	if startsAt == 0 {
		startsAt = series.IssuedAt
	}
	expiresAt := series.Metadata.ExpiresAt
	if expiresAt == 0 {
		expiresAt = math.MaxUint64
	}
	if now < startsAt || now >= expiresAt {
		return ErrOutsideWindow
	}
	return nil
}

// Buy settles a purchase of one copy: the attached payment must equal the
// resolved price exactly, the copy is issued to the receiver, and the
// payment splits between the series creator and the platform treasury.
// Overpayment is rejected rather than refunded so funds are never silently
// absorbed. The buyer is not charged separately for storage on this path.
func (e *Engine) Buy(caller, seriesID, receiver string, attached *big.Int) (_ string, err error) {
	if e == nil || e.state == nil {
		return "", errNilState
	}
	caller, err = sanitizeAccount(caller)
	if err != nil {
		return "", err
	}
	receiver, err = sanitizeAccount(receiver)
	if err != nil {
		return "", err
	}
	params, err := e.params()
	if err != nil {
		return "", err
	}
	series, ok, err := e.state.SeriesGet(seriesID)
	if err != nil {
		return "", err
	}
	if !ok || series == nil {
		return "", ErrSeriesNotFound
	}
	if err = e.buyEligible(series); err != nil {
		return "", err
	}
	price, fee := PriceAndFee(series)
	payment := cloneOrZero(attached)
	if payment.Cmp(price) < 0 {
		return "", ErrInsufficientPayment
	}
	if payment.Cmp(price) > 0 {
		return "", ErrExcessPayment
	}

	snap := e.state.Snapshot()
	defer func() {
		if err != nil {
			e.state.RevertToSnapshot(snap)
		}
	}()

	copyID, err := e.mintCopy(seriesID, receiver)
	if err != nil {
		return "", err
	}
	creatorShare := new(big.Int).Sub(price, fee)
	if creatorShare.Sign() > 0 {
		if err = e.credit(series.Creator, creatorShare); err != nil {
			return "", err
		}
	}
	if err = e.credit(params.Treasury, fee); err != nil {
		return "", err
	}
	return copyID, nil
}
