package state

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"trailchain/native/trail"
)

type storedResource struct {
	Title       string
	Description string
	Media       string
	Extra       string
	Reference   string
}

type storedSeriesMetadata struct {
	Title         string
	Description   string
	TicketsAmount uint64
	Media         string
	Data          string
	Resources     []storedResource
	StartsAt      uint64
	ExpiresAt     uint64
	Reference     string
}

type storedSeries struct {
	ID          string
	Creator     string
	IssuedAt    uint64
	Metadata    storedSeriesMetadata
	Total       uint64
	Circulating uint64
	Price       *big.Int
	Fee         *big.Int
	RoyaltyBps  uint64
	IsMintable  bool
}

func newStoredSeries(s *trail.Series) *storedSeries {
	resources := make([]storedResource, len(s.Metadata.Resources))
	for i, r := range s.Metadata.Resources {
		resources[i] = storedResource(r)
	}
	price := big.NewInt(0)
	if s.Price != nil {
		price.Set(s.Price)
	}
	fee := big.NewInt(0)
	if s.Fee != nil {
		fee.Set(s.Fee)
	}
	return &storedSeries{
		ID:       s.ID,
		Creator:  s.Creator,
		IssuedAt: s.IssuedAt,
		Metadata: storedSeriesMetadata{
			Title:         s.Metadata.Title,
			Description:   s.Metadata.Description,
			TicketsAmount: s.Metadata.TicketsAmount,
			Media:         s.Metadata.Media,
			Data:          s.Metadata.Data,
			Resources:     resources,
			StartsAt:      s.Metadata.StartsAt,
			ExpiresAt:     s.Metadata.ExpiresAt,
			Reference:     s.Metadata.Reference,
		},
		Total:       s.Supply.Total,
		Circulating: s.Supply.Circulating,
		Price:       price,
		Fee:         fee,
		RoyaltyBps:  s.RoyaltyBps,
		IsMintable:  s.IsMintable,
	}
}

func (s *storedSeries) toSeries() *trail.Series {
	resources := make([]trail.Resource, len(s.Metadata.Resources))
	for i, r := range s.Metadata.Resources {
		resources[i] = trail.Resource(r)
	}
	price := big.NewInt(0)
	if s.Price != nil {
		price.Set(s.Price)
	}
	fee := big.NewInt(0)
	if s.Fee != nil {
		fee.Set(s.Fee)
	}
	return &trail.Series{
		ID:       s.ID,
		Creator:  s.Creator,
		IssuedAt: s.IssuedAt,
		Metadata: trail.SeriesMetadata{
			Title:         s.Metadata.Title,
			Description:   s.Metadata.Description,
			TicketsAmount: s.Metadata.TicketsAmount,
			Media:         s.Metadata.Media,
			Data:          s.Metadata.Data,
			Resources:     resources,
			StartsAt:      s.Metadata.StartsAt,
			ExpiresAt:     s.Metadata.ExpiresAt,
			Reference:     s.Metadata.Reference,
		},
		Supply:     trail.SeriesSupply{Total: s.Total, Circulating: s.Circulating},
		Price:      price,
		Fee:        fee,
		RoyaltyBps: s.RoyaltyBps,
		IsMintable: s.IsMintable,
	}
}

type storedCopy struct {
	ID            string
	Owner         string
	SeriesID      string
	SnapshotTitle string
	SnapshotMedia string
	IssuedAt      uint64
}

// --- params ---

type storedParams struct {
	Owner      string
	Treasury   string
	FeePercent uint64
	MinimumFee *big.Int
}

// ParamsGet loads the global ledger parameters.
func (m *Manager) ParamsGet() (*trail.Params, bool, error) {
	data, ok, err := m.kvGet(trailParamsKey)
	if err != nil || !ok {
		return nil, false, err
	}
	stored := new(storedParams)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false, err
	}
	minimum := big.NewInt(0)
	if stored.MinimumFee != nil {
		minimum.Set(stored.MinimumFee)
	}
	return &trail.Params{
		Owner:      stored.Owner,
		Treasury:   stored.Treasury,
		FeePercent: stored.FeePercent,
		MinimumFee: minimum,
	}, true, nil
}

// ParamsPut persists the global ledger parameters.
func (m *Manager) ParamsPut(p *trail.Params) error {
	if p == nil {
		return fmt.Errorf("state: nil trail params")
	}
	minimum := big.NewInt(0)
	if p.MinimumFee != nil {
		minimum.Set(p.MinimumFee)
	}
	encoded, err := rlp.EncodeToBytes(&storedParams{
		Owner:      p.Owner,
		Treasury:   p.Treasury,
		FeePercent: p.FeePercent,
		MinimumFee: minimum,
	})
	if err != nil {
		return err
	}
	return m.kvPut(trailParamsKey, encoded)
}

// EnsureParams seeds the genesis parameters when none are persisted yet.
func (m *Manager) EnsureParams(p *trail.Params) error {
	_, ok, err := m.ParamsGet()
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	return m.ParamsPut(p)
}

// --- series catalog ---

// SeriesGet loads a series record by id.
func (m *Manager) SeriesGet(id string) (*trail.Series, bool, error) {
	data, ok, err := m.kvGet(seriesKey(id))
	if err != nil || !ok {
		return nil, false, err
	}
	stored := new(storedSeries)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false, err
	}
	return stored.toSeries(), true, nil
}

// SeriesPut persists a series record.
func (m *Manager) SeriesPut(s *trail.Series) error {
	if s == nil {
		return fmt.Errorf("state: nil series")
	}
	encoded, err := rlp.EncodeToBytes(newStoredSeries(s))
	if err != nil {
		return err
	}
	return m.kvPut(seriesKey(s.ID), encoded)
}

// SeriesRegister appends a series id to the catalog list. The list length
// drives sequential id assignment, so ids are registered exactly once.
func (m *Manager) SeriesRegister(id string) error {
	ids, err := m.SeriesIDs()
	if err != nil {
		return err
	}
	for _, existing := range ids {
		if existing == id {
			return fmt.Errorf("state: series %s already registered", id)
		}
	}
	ids = append(ids, id)
	encoded, err := rlp.EncodeToBytes(ids)
	if err != nil {
		return err
	}
	return m.kvPut(seriesCatalogKey, encoded)
}

// SeriesIDs returns every registered series id in creation order.
func (m *Manager) SeriesIDs() ([]string, error) {
	data, ok, err := m.kvGet(seriesCatalogKey)
	if err != nil || !ok {
		return nil, err
	}
	var ids []string
	if err := rlp.DecodeBytes(data, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// --- copy table ---

// CopyGet loads a copy record.
func (m *Manager) CopyGet(id string) (*trail.Copy, bool, error) {
	data, ok, err := m.kvGet(copyKey(id))
	if err != nil || !ok {
		return nil, false, err
	}
	stored := new(storedCopy)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false, err
	}
	return &trail.Copy{
		ID:       stored.ID,
		Owner:    stored.Owner,
		SeriesID: stored.SeriesID,
		Snapshot: trail.CopySnapshot{
			Title:    stored.SnapshotTitle,
			Media:    stored.SnapshotMedia,
			IssuedAt: stored.IssuedAt,
		},
	}, true, nil
}

// CopyPut persists a copy record.
func (m *Manager) CopyPut(c *trail.Copy) error {
	if c == nil {
		return fmt.Errorf("state: nil copy")
	}
	encoded, err := rlp.EncodeToBytes(&storedCopy{
		ID:            c.ID,
		Owner:         c.Owner,
		SeriesID:      c.SeriesID,
		SnapshotTitle: c.Snapshot.Title,
		SnapshotMedia: c.Snapshot.Media,
		IssuedAt:      c.Snapshot.IssuedAt,
	})
	if err != nil {
		return err
	}
	return m.kvPut(copyKey(c.ID), encoded)
}

// CopySeriesGet resolves the series id for a copy without loading the full
// record.
func (m *Manager) CopySeriesGet(copyID string) (string, bool, error) {
	data, ok, err := m.kvGet(copySeriesKey(copyID))
	if err != nil || !ok {
		return "", false, err
	}
	return string(data), true, nil
}

// CopySeriesPut records the copy-to-series lookup entry.
func (m *Manager) CopySeriesPut(copyID, seriesID string) error {
	return m.kvPut(copySeriesKey(copyID), []byte(seriesID))
}

// --- indexes ---

func (m *Manager) indexList(key []byte) ([]string, error) {
	data, ok, err := m.kvGet(key)
	if err != nil || !ok {
		return nil, err
	}
	var ids []string
	if err := rlp.DecodeBytes(data, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (m *Manager) indexAdd(key []byte, id string) error {
	ids, err := m.indexList(key)
	if err != nil {
		return err
	}
	for _, existing := range ids {
		if existing == id {
			return nil
		}
	}
	ids = append(ids, id)
	encoded, err := rlp.EncodeToBytes(ids)
	if err != nil {
		return err
	}
	return m.kvPut(key, encoded)
}

// OwnerIndexAdd records a copy under its owner's set.
func (m *Manager) OwnerIndexAdd(owner, copyID string) error {
	return m.indexAdd(ownerIndexKey(owner), copyID)
}

// OwnerIndexRemove drops a copy from its owner's set, deleting the owner key
// entirely when the set empties.
func (m *Manager) OwnerIndexRemove(owner, copyID string) error {
	key := ownerIndexKey(owner)
	ids, err := m.indexList(key)
	if err != nil {
		return err
	}
	filtered := ids[:0]
	for _, existing := range ids {
		if existing != copyID {
			filtered = append(filtered, existing)
		}
	}
	if len(filtered) == len(ids) {
		return fmt.Errorf("state: copy %s not indexed under %s", copyID, owner)
	}
	if len(filtered) == 0 {
		return m.kvDelete(key)
	}
	encoded, err := rlp.EncodeToBytes(filtered)
	if err != nil {
		return err
	}
	return m.kvPut(key, encoded)
}

// OwnerIndexList returns the copy ids held by an owner in acquisition order.
func (m *Manager) OwnerIndexList(owner string) ([]string, error) {
	return m.indexList(ownerIndexKey(owner))
}

// CreatorIndexAdd records a series under its creator. Append-only.
func (m *Manager) CreatorIndexAdd(creator, seriesID string) error {
	return m.indexAdd(creatorIndexKey(creator), seriesID)
}

// CreatorIndexList returns the series ids created by an account.
func (m *Manager) CreatorIndexList(creator string) ([]string, error) {
	return m.indexList(creatorIndexKey(creator))
}

// --- non-mintable set ---

// NonMintableAdd blocks a series from buyer-initiated minting. Returns
// whether the membership changed.
func (m *Manager) NonMintableAdd(id string) (bool, error) {
	key := nonMintableKey(id)
	_, ok, err := m.kvGet(key)
	if err != nil {
		return false, err
	}
	if ok {
		return false, nil
	}
	if err := m.kvPut(key, []byte{1}); err != nil {
		return false, err
	}
	return true, nil
}

// NonMintableRemove unblocks a series. Returns whether the membership
// changed.
func (m *Manager) NonMintableRemove(id string) (bool, error) {
	key := nonMintableKey(id)
	_, ok, err := m.kvGet(key)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if err := m.kvDelete(key); err != nil {
		return false, err
	}
	return true, nil
}

// NonMintableContains reports set membership.
func (m *Manager) NonMintableContains(id string) (bool, error) {
	_, ok, err := m.kvGet(nonMintableKey(id))
	return ok, err
}

// --- settings ---

// SettingGet reads an arbitrary settings entry.
func (m *Manager) SettingGet(key string) (string, bool, error) {
	data, ok, err := m.kvGet(settingKey(key))
	if err != nil || !ok {
		return "", false, err
	}
	return string(data), true, nil
}

// SettingPut stores an arbitrary settings entry.
func (m *Manager) SettingPut(key, value string) error {
	return m.kvPut(settingKey(key), []byte(value))
}
