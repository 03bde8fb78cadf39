package trail

import (
	"fmt"
	"math/big"
	"strings"
)

// SubAdminSettingKey is the well-known settings key holding the delegated
// sub-admin account id.
const SubAdminSettingKey = "sub_admin_address"

func (e *Engine) requireOwner(caller string) error {
	params, err := e.params()
	if err != nil {
		return err
	}
	if caller != params.Owner {
		return ErrNotContractOwner
	}
	return nil
}

// SetFeePercent updates the global fee percentage applied to newly created
// series. Already-created series keep their frozen fee.
func (e *Engine) SetFeePercent(caller string, percent uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	params, err := e.params()
	if err != nil {
		return err
	}
	params.FeePercent = percent
	if err := e.state.ParamsPut(params); err != nil {
		return err
	}
	e.emit(ParamsUpdatedEvent("feePercent", fmt.Sprintf("%d", percent)))
	return nil
}

// SetMinimumFee updates the global minimum-fee floor for newly created
// series.
func (e *Engine) SetMinimumFee(caller string, minimum *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if minimum == nil || minimum.Sign() < 0 {
		return fmt.Errorf("%w: minimum fee must be non-negative", ErrInvalidArgument)
	}
	params, err := e.params()
	if err != nil {
		return err
	}
	params.MinimumFee = new(big.Int).Set(minimum)
	if err := e.state.ParamsPut(params); err != nil {
		return err
	}
	e.emit(ParamsUpdatedEvent("minimumFee", minimum.String()))
	return nil
}

// SetTreasury updates the platform treasury address receiving sale fees.
func (e *Engine) SetTreasury(caller, treasury string) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	treasury, err := sanitizeAccount(treasury)
	if err != nil {
		return err
	}
	params, err := e.params()
	if err != nil {
		return err
	}
	params.Treasury = treasury
	if err := e.state.ParamsPut(params); err != nil {
		return err
	}
	e.emit(ParamsUpdatedEvent("treasury", treasury))
	return nil
}

// PutSetting stores an arbitrary key/value setting. Owner-gated; the
// sub-admin address lives here under SubAdminSettingKey.
func (e *Engine) PutSetting(caller, key, value string) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%w: setting key required", ErrInvalidArgument)
	}
	return e.state.SettingPut(key, value)
}

// Setting reads a stored setting value.
func (e *Engine) Setting(key string) (string, bool, error) {
	if e == nil || e.state == nil {
		return "", false, errNilState
	}
	return e.state.SettingGet(key)
}

// SubAdmin returns the configured sub-admin account, if any.
func (e *Engine) SubAdmin() (string, bool, error) {
	return e.Setting(SubAdminSettingKey)
}

// IsSubAdmin reports whether the caller matches the configured sub-admin.
func (e *Engine) IsSubAdmin(caller string) (bool, error) {
	subAdmin, ok, err := e.SubAdmin()
	if err != nil || !ok {
		return false, err
	}
	return subAdmin != "" && subAdmin == caller, nil
}

// SetSeriesMintable flips buyer-initiated minting for one series by adding
// it to or removing it from the non-mintable set. The series creator and the
// sub-admin are authorized. Returns whether the set membership changed.
func (e *Engine) SetSeriesMintable(caller, seriesID string, mintable bool) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	series, ok, err := e.state.SeriesGet(seriesID)
	if err != nil {
		return false, err
	}
	if !ok || series == nil {
		return false, ErrSeriesNotFound
	}
	if series.Creator != caller {
		isSubAdmin, err := e.IsSubAdmin(caller)
		if err != nil {
			return false, err
		}
		if !isSubAdmin {
			return false, ErrNotToggler
		}
	}
	return e.setMintable(caller, seriesID, mintable)
}

func (e *Engine) setMintable(caller, seriesID string, mintable bool) (bool, error) {
	var changed bool
	var err error
	if mintable {
		changed, err = e.state.NonMintableRemove(seriesID)
	} else {
		changed, err = e.state.NonMintableAdd(seriesID)
	}
	if err != nil {
		return false, err
	}
	if changed {
		e.emit(MintableToggledEvent(seriesID, caller, mintable))
	}
	return changed, nil
}

// SetAllMintable applies the same eligibility toggle to every series in the
// catalog. Sub-admin only. The walk is O(total series) per call; callers
// must expect the cost to grow with the catalog.
func (e *Engine) SetAllMintable(caller string, mintable bool) (err error) {
	if e == nil || e.state == nil {
		return errNilState
	}
	isSubAdmin, err := e.IsSubAdmin(caller)
	if err != nil {
		return err
	}
	if !isSubAdmin {
		return ErrNotSubAdmin
	}
	snap := e.state.Snapshot()
	defer func() {
		if err != nil {
			e.state.RevertToSnapshot(snap)
		}
	}()
	ids, err := e.state.SeriesIDs()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, err = e.setMintable(caller, id, mintable); err != nil {
			return err
		}
	}
	return nil
}
