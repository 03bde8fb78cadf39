package trail

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"trailchain/core/events"
	"trailchain/core/types"
)

// DefaultBytePrice is the cost charged per byte of persistent storage growth,
// in base denomination units.
var DefaultBytePrice = new(big.Int).Exp(big.NewInt(10), big.NewInt(19), nil)

// dustThreshold is the largest refund the ledger keeps instead of paying
// out; a transfer of one unit is not worth its own bookkeeping.
var dustThreshold = big.NewInt(1)

type engineState interface {
	ParamsGet() (*Params, bool, error)
	ParamsPut(*Params) error

	SeriesGet(id string) (*Series, bool, error)
	SeriesPut(*Series) error
	SeriesRegister(id string) error
	SeriesIDs() ([]string, error)

	CopyGet(id string) (*Copy, bool, error)
	CopyPut(*Copy) error
	CopySeriesGet(copyID string) (string, bool, error)
	CopySeriesPut(copyID, seriesID string) error

	OwnerIndexAdd(owner, copyID string) error
	OwnerIndexRemove(owner, copyID string) error
	OwnerIndexList(owner string) ([]string, error)
	CreatorIndexAdd(creator, seriesID string) error
	CreatorIndexList(creator string) ([]string, error)

	NonMintableAdd(id string) (bool, error)
	NonMintableRemove(id string) (bool, error)
	NonMintableContains(id string) (bool, error)

	SettingGet(key string) (string, bool, error)
	SettingPut(key, value string) error

	GetAccount(id string) (*types.Account, error)
	PutAccount(id string, acc *types.Account) error

	StorageUsage() uint64
	Snapshot() int
	RevertToSnapshot(rev int)
}

// TransferReceiver is the extension seam for cross-contract transfer
// notification. The resolution contract is intentionally undefined; nothing
// in the engine invokes a registered receiver yet.
type TransferReceiver interface {
	OnTransfer(sender, previousOwner, copyID, msg string) error
}

// ApprovalRegistry is the extension seam for delegated transfer approval.
// The engine performs owner-only authorization and never consults it.
type ApprovalRegistry interface {
	IsApproved(copyID, account string, approvalID uint64) bool
}

// Engine wires the trail ledger business logic with persistence and event
// emission. Every public mutating operation is a single all-or-nothing state
// transition: the engine snapshots the state on entry and reverts on any
// error, so a failed call never leaves partial writes behind. Callers are
// expected to serialize invocations; the engine holds no locks of its own.
type Engine struct {
	state     engineState
	emitter   events.Emitter
	nowFn     func() int64
	bytePrice *big.Int

	transferReceiver TransferReceiver
	approvals        ApprovalRegistry
}

// NewEngine constructs a trail engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter:   events.NoopEmitter{},
		nowFn:     func() int64 { return time.Now().UnixMilli() },
		bytePrice: new(big.Int).Set(DefaultBytePrice),
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the millisecond time source. Primarily intended for
// tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().UnixMilli() }
		return
	}
	e.nowFn = now
}

// SetBytePrice overrides the per-byte storage cost.
func (e *Engine) SetBytePrice(price *big.Int) {
	if price == nil || price.Sign() < 0 {
		e.bytePrice = new(big.Int).Set(DefaultBytePrice)
		return
	}
	e.bytePrice = new(big.Int).Set(price)
}

// RegisterTransferReceiver installs the cross-contract notification seam.
func (e *Engine) RegisterTransferReceiver(r TransferReceiver) { e.transferReceiver = r }

// RegisterApprovalRegistry installs the delegated-approval seam.
func (e *Engine) RegisterApprovalRegistry(r ApprovalRegistry) { e.approvals = r }

func (e *Engine) emit(evt *types.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(WrapEvent(evt))
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().UnixMilli()
	}
	return e.nowFn()
}

func (e *Engine) params() (*Params, error) {
	params, ok, err := e.state.ParamsGet()
	if err != nil {
		return nil, err
	}
	if !ok || params == nil {
		return nil, errParamsNotSet
	}
	return params, nil
}

func cloneOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func sanitizeAccount(id string) (string, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return "", ErrEmptyAccount
	}
	return trimmed, nil
}

// credit adds amount to an account balance, creating the account on first
// touch.
func (e *Engine) credit(account string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	acc, err := e.state.GetAccount(account)
	if err != nil {
		return err
	}
	acc = acc.Clone()
	acc.Balance = new(big.Int).Add(acc.Balance, amount)
	return e.state.PutAccount(account, acc)
}

// reconcileStorage charges the caller for net storage growth since
// usageBefore and refunds any attached payment above the required cost plus
// extraSpent. A negative delta reconciles to zero required cost. Refunds at
// or below the dust threshold are retained.
func (e *Engine) reconcileStorage(caller string, usageBefore uint64, extraSpent, attached *big.Int) error {
	usageAfter := e.state.StorageUsage()
	var used uint64
	if usageAfter > usageBefore {
		used = usageAfter - usageBefore
	}
	required := new(big.Int).Mul(new(big.Int).SetUint64(used), e.bytePrice)
	available := new(big.Int).Sub(cloneOrZero(attached), cloneOrZero(extraSpent))
	if available.Cmp(required) < 0 {
		return fmt.Errorf("%w: %s units required to cover storage", ErrInsufficientPayment, required)
	}
	refund := available.Sub(available, required)
	if refund.Cmp(dustThreshold) > 0 {
		return e.credit(caller, refund)
	}
	return nil
}

// CreateSeries registers a new trail series. The caller becomes the creator
// unless the contract owner names another account. The platform fee for the
// series is computed from the current global parameters and frozen into the
// record. The caller is charged for the marginal storage consumed and any
// excess attached payment is refunded.
func (e *Engine) CreateSeries(caller string, input CreateSeriesInput, attached *big.Int) (_ *SeriesView, err error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	caller, err = sanitizeAccount(caller)
	if err != nil {
		return nil, err
	}
	params, err := e.params()
	if err != nil {
		return nil, err
	}
	creator := caller
	if trimmed := strings.TrimSpace(input.Creator); trimmed != "" && trimmed != caller {
		if caller != params.Owner {
			return nil, ErrNotContractOwner
		}
		creator = trimmed
	}
	if input.Metadata.TicketsAmount == 0 {
		return nil, ErrNoTickets
	}
	if len(input.Metadata.Resources) == 0 {
		return nil, ErrNoResources
	}
	price := big.NewInt(0)
	if input.Price != nil {
		if input.Price.Sign() < 0 {
			return nil, fmt.Errorf("%w: negative price", ErrInvalidArgument)
		}
		if input.Price.Cmp(MaxPrice) >= 0 {
			return nil, ErrPriceTooHigh
		}
		price.Set(input.Price)
	}
	now := uint64(e.now())
	startsAt := input.Metadata.StartsAt
	if startsAt == 0 {
		startsAt = now
	}
	expiresAt := input.Metadata.ExpiresAt
	if expiresAt == 0 {
		expiresAt = math.MaxUint64
	}
	if expiresAt <= startsAt {
		return nil, ErrInvalidWindow
	}

	snap := e.state.Snapshot()
	defer func() {
		if err != nil {
			e.state.RevertToSnapshot(snap)
		}
	}()
	usageBefore := e.state.StorageUsage()

	ids, err := e.state.SeriesIDs()
	if err != nil {
		return nil, err
	}
	seriesID := strconv.FormatUint(uint64(len(ids))+1, 10)
	if err := ValidateIDComponent(seriesID); err != nil {
		return nil, err
	}
	if _, exists, err := e.state.SeriesGet(seriesID); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrDuplicateSeries
	}

	series := &Series{
		ID:         seriesID,
		Creator:    creator,
		IssuedAt:   now,
		Metadata:   input.Metadata,
		Supply:     SeriesSupply{Total: input.Metadata.TicketsAmount, Circulating: 0},
		Price:      price,
		Fee:        CalculateFee(price, params.FeePercent, params.MinimumFee),
		RoyaltyBps: input.RoyaltyBps,
		IsMintable: true,
	}
	if len(input.Metadata.Resources) > 0 {
		series.Metadata.Resources = append([]Resource(nil), input.Metadata.Resources...)
	}
	if err := e.state.SeriesPut(series); err != nil {
		return nil, err
	}
	if err := e.state.SeriesRegister(seriesID); err != nil {
		return nil, err
	}
	if err := e.state.CreatorIndexAdd(creator, seriesID); err != nil {
		return nil, err
	}
	if err := e.reconcileStorage(caller, usageBefore, big.NewInt(0), attached); err != nil {
		return nil, err
	}
	e.emit(SeriesCreatedEvent(seriesID, creator, series.Price.String(), series.Fee.String(), series.Supply.Total))
	return &SeriesView{TokenID: seriesID, OwnerID: creator, Series: series.Clone()}, nil
}

// mintCopy is the single authoritative issuance path shared by the
// creator-mint and purchase flows. It allocates the next sequence number,
// closes the series on the final copy, persists the copy record and indexes,
// and emits the mint notification.
func (e *Engine) mintCopy(seriesID, receiver string) (string, error) {
	series, ok, err := e.state.SeriesGet(seriesID)
	if err != nil {
		return "", err
	}
	if !ok || series == nil {
		return "", ErrSeriesNotFound
	}
	if !series.IsMintable {
		return "", ErrMintingDisabled
	}
	if series.Supply.Circulating >= series.Supply.Total {
		// Unreachable while the supply invariant holds; IsMintable flips
		// false on the closing mint.
		return "", ErrSupplyExhausted
	}
	series.Supply.Circulating++
	if series.Supply.Circulating >= series.Supply.Total {
		series.IsMintable = false
	}
	if err := e.state.SeriesPut(series); err != nil {
		return "", err
	}

	copyID := FormatCopyID(seriesID, series.Supply.Circulating)
	if _, exists, err := e.state.CopyGet(copyID); err != nil {
		return "", err
	} else if exists {
		return "", ErrDuplicateCopy
	}
	if _, exists, err := e.state.CopySeriesGet(copyID); err != nil {
		return "", err
	} else if exists {
		return "", ErrDuplicateCopy
	}
	cp := &Copy{
		ID:       copyID,
		Owner:    receiver,
		SeriesID: seriesID,
		Snapshot: CopySnapshot{
			Title:    series.Metadata.Title,
			Media:    series.Metadata.Media,
			IssuedAt: uint64(e.now()),
		},
	}
	if err := e.state.CopyPut(cp); err != nil {
		return "", err
	}
	if err := e.state.CopySeriesPut(copyID, seriesID); err != nil {
		return "", err
	}
	if err := e.state.OwnerIndexAdd(receiver, copyID); err != nil {
		return "", err
	}
	e.emit(CopyMintedEvent(copyID, seriesID, receiver, series.Price.String()))
	return copyID, nil
}

// CreatorMint issues a copy directly to a receiver, bypassing payment and
// fee entirely. Only the series creator may call it; sub-admins cannot. The
// caller still covers the marginal storage cost.
func (e *Engine) CreatorMint(caller, seriesID, receiver string, attached *big.Int) (_ string, err error) {
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
	series, ok, err := e.state.SeriesGet(seriesID)
	if err != nil {
		return "", err
	}
	if !ok || series == nil {
		return "", ErrSeriesNotFound
	}
	if series.Creator != caller {
		return "", ErrNotCreator
	}

	snap := e.state.Snapshot()
	defer func() {
		if err != nil {
			e.state.RevertToSnapshot(snap)
		}
	}()
	usageBefore := e.state.StorageUsage()

	copyID, err := e.mintCopy(seriesID, receiver)
	if err != nil {
		return "", err
	}
	if err = e.reconcileStorage(caller, usageBefore, big.NewInt(0), attached); err != nil {
		return "", err
	}
	return copyID, nil
}

// Transfer moves a copy between two owners. Authorization is owner-only;
// the delegated-approval seam exists but is not consulted. It returns the
// copy record before and after the move.
func (e *Engine) Transfer(caller, receiver, copyID, memo string, attached *big.Int) (_ *Copy, _ *Copy, err error) {
	if e == nil || e.state == nil {
		return nil, nil, errNilState
	}
	caller, err = sanitizeAccount(caller)
	if err != nil {
		return nil, nil, err
	}
	receiver, err = sanitizeAccount(receiver)
	if err != nil {
		return nil, nil, err
	}
	cp, ok, err := e.state.CopyGet(copyID)
	if err != nil {
		return nil, nil, err
	}
	if !ok || cp == nil {
		return nil, nil, ErrCopyNotFound
	}
	if cp.Owner != caller {
		return nil, nil, ErrNotOwner
	}
	if caller == receiver {
		return nil, nil, ErrSelfTransfer
	}

	snap := e.state.Snapshot()
	defer func() {
		if err != nil {
			e.state.RevertToSnapshot(snap)
		}
	}()
	usageBefore := e.state.StorageUsage()

	previous := cp.Clone()
	if err = e.state.OwnerIndexRemove(caller, copyID); err != nil {
		return nil, nil, err
	}
	cp.Owner = receiver
	if err = e.state.CopyPut(cp); err != nil {
		return nil, nil, err
	}
	if err = e.state.OwnerIndexAdd(receiver, copyID); err != nil {
		return nil, nil, err
	}
	if err = e.reconcileStorage(caller, usageBefore, big.NewInt(0), attached); err != nil {
		return nil, nil, err
	}
	e.emit(CopyTransferredEvent(copyID, caller, receiver, memo))
	return previous, cp.Clone(), nil
}

// --- read-only views ---

// SeriesExists reports whether a series id is present in the catalog.
func (e *Engine) SeriesExists(seriesID string) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	_, ok, err := e.state.SeriesGet(seriesID)
	return ok, err
}

// GetSeries fetches a series by id, failing when it is absent.
func (e *Engine) GetSeries(seriesID string) (*Series, error) {
	series, ok, err := e.GetSeriesOptional(seriesID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSeriesNotFound
	}
	return series, nil
}

// GetSeriesOptional is the non-failing series lookup variant.
func (e *Engine) GetSeriesOptional(seriesID string) (*Series, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	series, ok, err := e.state.SeriesGet(seriesID)
	if err != nil || !ok {
		return nil, false, err
	}
	return series.Clone(), true, nil
}

// GetCopy returns the composed view for a copy id, or ok=false when the copy
// does not exist.
func (e *Engine) GetCopy(copyID string) (*CopyView, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	cp, ok, err := e.state.CopyGet(copyID)
	if err != nil || !ok {
		return nil, false, err
	}
	seriesID, ok, err := e.state.CopySeriesGet(copyID)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		seriesID = cp.SeriesID
	}
	series, ok, err := e.state.SeriesGet(seriesID)
	if err != nil {
		return nil, false, err
	}
	if !ok || series == nil {
		return nil, false, ErrSeriesNotFound
	}
	return &CopyView{
		TokenID:  cp.ID,
		OwnerID:  cp.Owner,
		Series:   series.Clone(),
		Snapshot: cp.Snapshot,
	}, true, nil
}

// IsOwner reports whether the account holds at least one copy of the series.
func (e *Engine) IsOwner(seriesID, account string) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	copyIDs, err := e.state.OwnerIndexList(account)
	if err != nil {
		return false, err
	}
	for _, id := range copyIDs {
		owned, _, err := ParseCopyID(id)
		if err != nil {
			continue
		}
		if owned == seriesID {
			return true, nil
		}
	}
	return false, nil
}

// IsCreator reports whether the account created the series.
func (e *Engine) IsCreator(seriesID, account string) (bool, error) {
	series, ok, err := e.GetSeriesOptional(seriesID)
	if err != nil || !ok {
		return false, err
	}
	return series.Creator == account, nil
}

// AllSeriesByOwner resolves every distinct series the account owns a copy
// of, in first-acquired order.
func (e *Engine) AllSeriesByOwner(account string) ([]*Series, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	copyIDs, err := e.state.OwnerIndexList(account)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(copyIDs))
	out := make([]*Series, 0, len(copyIDs))
	for _, id := range copyIDs {
		seriesID, _, err := ParseCopyID(id)
		if err != nil {
			continue
		}
		if _, dup := seen[seriesID]; dup {
			continue
		}
		seen[seriesID] = struct{}{}
		series, ok, err := e.state.SeriesGet(seriesID)
		if err != nil {
			return nil, err
		}
		if ok && series != nil {
			out = append(out, series.Clone())
		}
	}
	return out, nil
}

// AllSeriesByCreator resolves every series the account created.
func (e *Engine) AllSeriesByCreator(account string) ([]*Series, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	seriesIDs, err := e.state.CreatorIndexList(account)
	if err != nil {
		return nil, err
	}
	out := make([]*Series, 0, len(seriesIDs))
	for _, id := range seriesIDs {
		series, ok, err := e.state.SeriesGet(id)
		if err != nil {
			return nil, err
		}
		if ok && series != nil {
			out = append(out, series.Clone())
		}
	}
	return out, nil
}

// CopiesByOwner lists the copy ids currently held by the account.
func (e *Engine) CopiesByOwner(account string) ([]string, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.OwnerIndexList(account)
}

// Params returns a copy of the current global ledger parameters.
func (e *Engine) Params() (*Params, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	params, err := e.params()
	if err != nil {
		return nil, err
	}
	return params.Clone(), nil
}
