package trail

import (
	"errors"
	"math/big"
	"testing"

	"trailchain/core/events"
	"trailchain/core/types"
)

type mockState struct {
	params       *Params
	series       map[string]*Series
	catalog      []string
	copies       map[string]*Copy
	copySeries   map[string]string
	ownerIndex   map[string][]string
	creatorIndex map[string][]string
	nonMintable  map[string]struct{}
	settings     map[string]string
	accounts     map[string]*types.Account

	usageScript []uint64
	snapshots   []*mockState
}

func newMockState() *mockState {
	return &mockState{
		series:       make(map[string]*Series),
		copies:       make(map[string]*Copy),
		copySeries:   make(map[string]string),
		ownerIndex:   make(map[string][]string),
		creatorIndex: make(map[string][]string),
		nonMintable:  make(map[string]struct{}),
		settings:     make(map[string]string),
		accounts:     make(map[string]*types.Account),
	}
}

func cloneStrings(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for k, v := range in {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func (m *mockState) clone() *mockState {
	clone := newMockState()
	clone.params = m.params.Clone()
	for k, v := range m.series {
		clone.series[k] = v.Clone()
	}
	clone.catalog = append([]string(nil), m.catalog...)
	for k, v := range m.copies {
		clone.copies[k] = v.Clone()
	}
	for k, v := range m.copySeries {
		clone.copySeries[k] = v
	}
	clone.ownerIndex = cloneStrings(m.ownerIndex)
	clone.creatorIndex = cloneStrings(m.creatorIndex)
	for k := range m.nonMintable {
		clone.nonMintable[k] = struct{}{}
	}
	for k, v := range m.settings {
		clone.settings[k] = v
	}
	for k, v := range m.accounts {
		clone.accounts[k] = v.Clone()
	}
	return clone
}

func (m *mockState) restore(from *mockState) {
	m.params = from.params
	m.series = from.series
	m.catalog = from.catalog
	m.copies = from.copies
	m.copySeries = from.copySeries
	m.ownerIndex = from.ownerIndex
	m.creatorIndex = from.creatorIndex
	m.nonMintable = from.nonMintable
	m.settings = from.settings
	m.accounts = from.accounts
}

func (m *mockState) ParamsGet() (*Params, bool, error) {
	if m.params == nil {
		return nil, false, nil
	}
	return m.params.Clone(), true, nil
}

func (m *mockState) ParamsPut(p *Params) error {
	m.params = p.Clone()
	return nil
}

func (m *mockState) SeriesGet(id string) (*Series, bool, error) {
	s, ok := m.series[id]
	if !ok {
		return nil, false, nil
	}
	return s.Clone(), true, nil
}

func (m *mockState) SeriesPut(s *Series) error {
	m.series[s.ID] = s.Clone()
	return nil
}

func (m *mockState) SeriesRegister(id string) error {
	m.catalog = append(m.catalog, id)
	return nil
}

func (m *mockState) SeriesIDs() ([]string, error) {
	return append([]string(nil), m.catalog...), nil
}

func (m *mockState) CopyGet(id string) (*Copy, bool, error) {
	c, ok := m.copies[id]
	if !ok {
		return nil, false, nil
	}
	return c.Clone(), true, nil
}

func (m *mockState) CopyPut(c *Copy) error {
	m.copies[c.ID] = c.Clone()
	return nil
}

func (m *mockState) CopySeriesGet(copyID string) (string, bool, error) {
	id, ok := m.copySeries[copyID]
	return id, ok, nil
}

func (m *mockState) CopySeriesPut(copyID, seriesID string) error {
	m.copySeries[copyID] = seriesID
	return nil
}

func (m *mockState) OwnerIndexAdd(owner, copyID string) error {
	for _, existing := range m.ownerIndex[owner] {
		if existing == copyID {
			return nil
		}
	}
	m.ownerIndex[owner] = append(m.ownerIndex[owner], copyID)
	return nil
}

func (m *mockState) OwnerIndexRemove(owner, copyID string) error {
	ids := m.ownerIndex[owner]
	filtered := make([]string, 0, len(ids))
	for _, existing := range ids {
		if existing != copyID {
			filtered = append(filtered, existing)
		}
	}
	if len(filtered) == len(ids) {
		return errors.New("mock: copy not indexed")
	}
	if len(filtered) == 0 {
		delete(m.ownerIndex, owner)
		return nil
	}
	m.ownerIndex[owner] = filtered
	return nil
}

func (m *mockState) OwnerIndexList(owner string) ([]string, error) {
	return append([]string(nil), m.ownerIndex[owner]...), nil
}

func (m *mockState) CreatorIndexAdd(creator, seriesID string) error {
	m.creatorIndex[creator] = append(m.creatorIndex[creator], seriesID)
	return nil
}

func (m *mockState) CreatorIndexList(creator string) ([]string, error) {
	return append([]string(nil), m.creatorIndex[creator]...), nil
}

func (m *mockState) NonMintableAdd(id string) (bool, error) {
	if _, ok := m.nonMintable[id]; ok {
		return false, nil
	}
	m.nonMintable[id] = struct{}{}
	return true, nil
}

func (m *mockState) NonMintableRemove(id string) (bool, error) {
	if _, ok := m.nonMintable[id]; !ok {
		return false, nil
	}
	delete(m.nonMintable, id)
	return true, nil
}

func (m *mockState) NonMintableContains(id string) (bool, error) {
	_, ok := m.nonMintable[id]
	return ok, nil
}

func (m *mockState) SettingGet(key string) (string, bool, error) {
	v, ok := m.settings[key]
	return v, ok, nil
}

func (m *mockState) SettingPut(key, value string) error {
	m.settings[key] = value
	return nil
}

func (m *mockState) GetAccount(id string) (*types.Account, error) {
	acc, ok := m.accounts[id]
	if !ok {
		return &types.Account{Balance: big.NewInt(0)}, nil
	}
	return acc.Clone(), nil
}

func (m *mockState) PutAccount(id string, acc *types.Account) error {
	m.accounts[id] = acc.Clone()
	return nil
}

func (m *mockState) StorageUsage() uint64 {
	if len(m.usageScript) > 0 {
		next := m.usageScript[0]
		m.usageScript = m.usageScript[1:]
		return next
	}
	return 0
}

func (m *mockState) Snapshot() int {
	m.snapshots = append(m.snapshots, m.clone())
	return len(m.snapshots) - 1
}

func (m *mockState) RevertToSnapshot(rev int) {
	if rev < 0 || rev >= len(m.snapshots) {
		return
	}
	m.restore(m.snapshots[rev])
	m.snapshots = m.snapshots[:rev]
}

func (m *mockState) balance(id string) *big.Int {
	acc, ok := m.accounts[id]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(acc.Balance)
}

const (
	testOwner    = "root.test"
	testTreasury = "treasury.test"
	testCreator  = "alice.test"
	testBuyer    = "bob.test"
	testHolder   = "carol.test"
	testSubAdmin = "subadmin.test"
)

func newTestEngine(t *testing.T) (*Engine, *mockState) {
	t.Helper()
	state := newMockState()
	state.params = &Params{
		Owner:      testOwner,
		Treasury:   testTreasury,
		FeePercent: 5,
		MinimumFee: big.NewInt(100),
	}
	engine := NewEngine()
	engine.SetState(state)
	engine.SetNowFunc(func() int64 { return 1_650_000_000_000 })
	engine.SetBytePrice(big.NewInt(0))
	return engine, state
}

func testMetadata(tickets uint64) SeriesMetadata {
	return SeriesMetadata{
		Title:         "Grand Canyon Hike",
		Description:   "A walk along the rim",
		TicketsAmount: tickets,
		Media:         "ipfs://trail-media",
		Resources:     []Resource{{Media: "ipfs://resource-1"}},
	}
}

func mustCreateSeries(t *testing.T, engine *Engine, creator string, tickets uint64, price int64) *SeriesView {
	t.Helper()
	view, err := engine.CreateSeries(creator, CreateSeriesInput{
		Metadata: testMetadata(tickets),
		Price:    big.NewInt(price),
	}, big.NewInt(0))
	if err != nil {
		t.Fatalf("create series: %v", err)
	}
	return view
}

func TestCreateSeriesAssignsSequentialIDs(t *testing.T) {
	engine, _ := newTestEngine(t)
	first := mustCreateSeries(t, engine, testCreator, 10, 1000)
	second := mustCreateSeries(t, engine, testCreator, 5, 0)
	if first.TokenID != "1" || second.TokenID != "2" {
		t.Fatalf("expected ids 1 and 2, got %s and %s", first.TokenID, second.TokenID)
	}
	if first.Series.Supply.Circulating != 0 || !first.Series.IsMintable {
		t.Fatalf("fresh series should be mintable with zero circulation")
	}
	// fee = max(1000*5/100, 100) = 100, frozen at creation
	if first.Series.Fee.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected frozen fee 100, got %s", first.Series.Fee)
	}
	created, err := engine.AllSeriesByCreator(testCreator)
	if err != nil {
		t.Fatalf("all by creator: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected 2 series in creator index, got %d", len(created))
	}
}

func TestCreateSeriesFeeNotRetroactive(t *testing.T) {
	engine, _ := newTestEngine(t)
	first := mustCreateSeries(t, engine, testCreator, 1, 10_000)
	if err := engine.SetFeePercent(testOwner, 50); err != nil {
		t.Fatalf("set fee percent: %v", err)
	}
	second := mustCreateSeries(t, engine, testCreator, 1, 10_000)
	if first.Series.Fee.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("expected first fee 500, got %s", first.Series.Fee)
	}
	if second.Series.Fee.Cmp(big.NewInt(5000)) != 0 {
		t.Fatalf("expected second fee 5000, got %s", second.Series.Fee)
	}
	got, err := engine.GetSeries(first.TokenID)
	if err != nil {
		t.Fatalf("get series: %v", err)
	}
	if got.Fee.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("existing series fee changed retroactively to %s", got.Fee)
	}
}

func TestCreateSeriesValidation(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.CreateSeries(testCreator, CreateSeriesInput{Metadata: testMetadata(0)}, nil)
	if !errors.Is(err, ErrNoTickets) {
		t.Fatalf("expected ErrNoTickets, got %v", err)
	}

	meta := testMetadata(5)
	meta.Resources = nil
	_, err = engine.CreateSeries(testCreator, CreateSeriesInput{Metadata: meta}, nil)
	if !errors.Is(err, ErrNoResources) {
		t.Fatalf("expected ErrNoResources, got %v", err)
	}

	_, err = engine.CreateSeries(testCreator, CreateSeriesInput{
		Metadata: testMetadata(5),
		Price:    new(big.Int).Set(MaxPrice),
	}, nil)
	if !errors.Is(err, ErrPriceTooHigh) {
		t.Fatalf("expected ErrPriceTooHigh, got %v", err)
	}

	meta = testMetadata(5)
	meta.StartsAt = 2_000
	meta.ExpiresAt = 1_000
	_, err = engine.CreateSeries(testCreator, CreateSeriesInput{Metadata: meta}, nil)
	if !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}

	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("validation failures must classify as ErrInvalidArgument")
	}
}

func TestCreateSeriesCreatorOverride(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.CreateSeries(testBuyer, CreateSeriesInput{
		Creator:  testCreator,
		Metadata: testMetadata(5),
	}, nil)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-owner override, got %v", err)
	}

	view, err := engine.CreateSeries(testOwner, CreateSeriesInput{
		Creator:  testCreator,
		Metadata: testMetadata(5),
	}, nil)
	if err != nil {
		t.Fatalf("owner override: %v", err)
	}
	if view.Series.Creator != testCreator {
		t.Fatalf("expected creator %s, got %s", testCreator, view.Series.Creator)
	}
}

func TestCreatorMintSequentialCopyIDs(t *testing.T) {
	engine, state := newTestEngine(t)
	view := mustCreateSeries(t, engine, testCreator, 3, 0)

	for k := uint64(1); k <= 3; k++ {
		copyID, err := engine.CreatorMint(testCreator, view.TokenID, testHolder, nil)
		if err != nil {
			t.Fatalf("mint %d: %v", k, err)
		}
		want := FormatCopyID(view.TokenID, k)
		if copyID != want {
			t.Fatalf("expected %s, got %s", want, copyID)
		}
	}

	series, err := engine.GetSeries(view.TokenID)
	if err != nil {
		t.Fatalf("get series: %v", err)
	}
	if series.IsMintable {
		t.Fatalf("series should auto-close on the final mint")
	}
	if series.Supply.Circulating != 3 {
		t.Fatalf("expected circulating 3, got %d", series.Supply.Circulating)
	}

	_, err = engine.CreatorMint(testCreator, view.TokenID, testHolder, nil)
	if !errors.Is(err, ErrNotMintable) {
		t.Fatalf("expected ErrNotMintable after closure, got %v", err)
	}
	if len(state.ownerIndex[testHolder]) != 3 {
		t.Fatalf("expected 3 copies indexed, got %d", len(state.ownerIndex[testHolder]))
	}
}

func TestCreatorMintAuthorization(t *testing.T) {
	engine, _ := newTestEngine(t)
	view := mustCreateSeries(t, engine, testCreator, 3, 0)
	if err := engine.PutSetting(testOwner, SubAdminSettingKey, testSubAdmin); err != nil {
		t.Fatalf("configure sub-admin: %v", err)
	}

	for _, caller := range []string{testBuyer, testSubAdmin, testOwner} {
		_, err := engine.CreatorMint(caller, view.TokenID, testHolder, nil)
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("caller %s: expected ErrUnauthorized, got %v", caller, err)
		}
	}
}

func TestMintMissingSeries(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.CreatorMint(testCreator, "404", testHolder, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	_, err = engine.Buy(testBuyer, "404", testHolder, big.NewInt(100))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBuyExactPaymentSplitsRevenue(t *testing.T) {
	engine, state := newTestEngine(t)
	view := mustCreateSeries(t, engine, testCreator, 10, 1000) // fee floor 100

	_, err := engine.Buy(testBuyer, view.TokenID, testBuyer, big.NewInt(999))
	if !errors.Is(err, ErrInsufficientPayment) {
		t.Fatalf("expected ErrInsufficientPayment, got %v", err)
	}
	_, err = engine.Buy(testBuyer, view.TokenID, testBuyer, big.NewInt(1001))
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for overpayment, got %v", err)
	}
	if state.balance(testCreator).Sign() != 0 || state.balance(testTreasury).Sign() != 0 {
		t.Fatalf("failed purchases must not move funds")
	}

	copyID, err := engine.Buy(testBuyer, view.TokenID, testBuyer, big.NewInt(1000))
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if copyID != "1:1" {
		t.Fatalf("expected copy id 1:1, got %s", copyID)
	}
	if state.balance(testCreator).Cmp(big.NewInt(900)) != 0 {
		t.Fatalf("expected creator share 900, got %s", state.balance(testCreator))
	}
	if state.balance(testTreasury).Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected treasury fee 100, got %s", state.balance(testTreasury))
	}
}

func TestBuyFeeFloorGoesToTreasury(t *testing.T) {
	engine, state := newTestEngine(t)
	view := mustCreateSeries(t, engine, testCreator, 10, 0) // price 0 -> effective price = fee 100

	_, err := engine.Buy(testBuyer, view.TokenID, testBuyer, big.NewInt(99))
	if !errors.Is(err, ErrInsufficientPayment) {
		t.Fatalf("expected ErrInsufficientPayment, got %v", err)
	}

	if _, err := engine.Buy(testBuyer, view.TokenID, testBuyer, big.NewInt(100)); err != nil {
		t.Fatalf("buy at fee floor: %v", err)
	}
	if state.balance(testCreator).Sign() != 0 {
		t.Fatalf("creator must receive nothing below the fee floor, got %s", state.balance(testCreator))
	}
	if state.balance(testTreasury).Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected full fee 100 in treasury, got %s", state.balance(testTreasury))
	}
}

func TestBuyRespectsNonMintableGate(t *testing.T) {
	engine, _ := newTestEngine(t)
	view := mustCreateSeries(t, engine, testCreator, 10, 1000)

	if _, err := engine.SetSeriesMintable(testCreator, view.TokenID, false); err != nil {
		t.Fatalf("toggle off: %v", err)
	}
	_, err := engine.Buy(testBuyer, view.TokenID, testBuyer, big.NewInt(1000))
	if !errors.Is(err, ErrNotMintable) {
		t.Fatalf("expected ErrNotMintable, got %v", err)
	}

	series, err := engine.GetSeries(view.TokenID)
	if err != nil {
		t.Fatalf("get series: %v", err)
	}
	if !series.IsMintable || series.Supply.Circulating != 0 {
		t.Fatalf("gate must not touch the series record itself")
	}

	if _, err := engine.SetSeriesMintable(testCreator, view.TokenID, true); err != nil {
		t.Fatalf("toggle on: %v", err)
	}
	if _, err := engine.Buy(testBuyer, view.TokenID, testBuyer, big.NewInt(1000)); err != nil {
		t.Fatalf("buy after restore: %v", err)
	}
}

func TestBuyOutsideValidityWindow(t *testing.T) {
	engine, _ := newTestEngine(t)
	meta := testMetadata(10)
	meta.StartsAt = 2_000_000_000_000
	meta.ExpiresAt = 3_000_000_000_000
	view, err := engine.CreateSeries(testCreator, CreateSeriesInput{Metadata: meta, Price: big.NewInt(1000)}, nil)
	if err != nil {
		t.Fatalf("create series: %v", err)
	}

	_, err = engine.Buy(testBuyer, view.TokenID, testBuyer, big.NewInt(1000))
	if !errors.Is(err, ErrNotMintable) {
		t.Fatalf("expected ErrNotMintable before window opens, got %v", err)
	}

	// The creator-direct path ignores the sale window.
	if _, err := engine.CreatorMint(testCreator, view.TokenID, testHolder, nil); err != nil {
		t.Fatalf("creator mint inside closed window: %v", err)
	}

	engine.SetNowFunc(func() int64 { return 2_500_000_000_000 })
	if _, err := engine.Buy(testBuyer, view.TokenID, testBuyer, big.NewInt(1000)); err != nil {
		t.Fatalf("buy inside window: %v", err)
	}

	engine.SetNowFunc(func() int64 { return 3_000_000_000_000 })
	_, err = engine.Buy(testBuyer, view.TokenID, testBuyer, big.NewInt(1000))
	if !errors.Is(err, ErrNotMintable) {
		t.Fatalf("expected ErrNotMintable at expiry, got %v", err)
	}
}

func TestTransferMovesOwnership(t *testing.T) {
	engine, state := newTestEngine(t)
	view := mustCreateSeries(t, engine, testCreator, 10, 0)
	copyID, err := engine.CreatorMint(testCreator, view.TokenID, testBuyer, nil)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	previous, current, err := engine.Transfer(testBuyer, testHolder, copyID, "gift", nil)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if previous.Owner != testBuyer || current.Owner != testHolder {
		t.Fatalf("expected owner change %s -> %s, got %s -> %s", testBuyer, testHolder, previous.Owner, current.Owner)
	}
	if _, ok := state.ownerIndex[testBuyer]; ok {
		t.Fatalf("sender's emptied index key must be removed")
	}
	if len(state.ownerIndex[testHolder]) != 1 || state.ownerIndex[testHolder][0] != copyID {
		t.Fatalf("receiver index not updated: %v", state.ownerIndex[testHolder])
	}
	owns, err := engine.IsOwner(view.TokenID, testHolder)
	if err != nil || !owns {
		t.Fatalf("receiver should own a copy of the series (owns=%v err=%v)", owns, err)
	}
}

func TestTransferAuthorization(t *testing.T) {
	engine, state := newTestEngine(t)
	view := mustCreateSeries(t, engine, testCreator, 10, 0)
	copyID, err := engine.CreatorMint(testCreator, view.TokenID, testBuyer, nil)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	before := cloneStrings(state.ownerIndex)

	_, _, err = engine.Transfer(testHolder, testCreator, copyID, "", nil)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	after := state.ownerIndex
	if len(after) != len(before) {
		t.Fatalf("failed transfer mutated the owner index")
	}
	for owner, ids := range before {
		got := after[owner]
		if len(got) != len(ids) {
			t.Fatalf("failed transfer mutated index for %s", owner)
		}
		for i := range ids {
			if got[i] != ids[i] {
				t.Fatalf("failed transfer mutated index for %s", owner)
			}
		}
	}

	_, _, err = engine.Transfer(testBuyer, testBuyer, copyID, "", nil)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for self-transfer, got %v", err)
	}

	_, _, err = engine.Transfer(testBuyer, testHolder, "404:1", "", nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestIndexConsistencyAcrossMintAndTransfer(t *testing.T) {
	engine, state := newTestEngine(t)
	view := mustCreateSeries(t, engine, testCreator, 4, 0)

	ids := make([]string, 0, 4)
	for i := 0; i < 4; i++ {
		copyID, err := engine.CreatorMint(testCreator, view.TokenID, testBuyer, nil)
		if err != nil {
			t.Fatalf("mint: %v", err)
		}
		ids = append(ids, copyID)
	}
	if _, _, err := engine.Transfer(testBuyer, testHolder, ids[1], "", nil); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if _, _, err := engine.Transfer(testBuyer, testHolder, ids[3], "", nil); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	seen := make(map[string]string)
	for owner, owned := range state.ownerIndex {
		for _, id := range owned {
			if prior, dup := seen[id]; dup {
				t.Fatalf("copy %s indexed under both %s and %s", id, prior, owner)
			}
			seen[id] = owner
			cp, ok, err := engine.state.CopyGet(id)
			if err != nil || !ok {
				t.Fatalf("copy %s missing from table", id)
			}
			if cp.Owner != owner {
				t.Fatalf("copy %s record owner %s disagrees with index owner %s", id, cp.Owner, owner)
			}
		}
	}
	if len(seen) != 4 {
		t.Fatalf("expected 4 indexed copies, got %d", len(seen))
	}
}

func TestStorageReconciliation(t *testing.T) {
	cases := []struct {
		name     string
		attached int64
		refund   int64
		wantErr  error
	}{
		{name: "exact payment no refund", attached: 10, refund: 0},
		{name: "two units over refunds excess", attached: 12, refund: 2},
		{name: "one unit over is dust", attached: 11, refund: 0},
		{name: "underpayment fails", attached: 9, wantErr: ErrInsufficientPayment},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine, state := newTestEngine(t)
			engine.SetBytePrice(big.NewInt(1))
			state.usageScript = []uint64{0, 10} // ten bytes of growth
			_, err := engine.CreateSeries(testCreator, CreateSeriesInput{
				Metadata: testMetadata(5),
			}, big.NewInt(tc.attached))
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				if len(state.series) != 0 || len(state.catalog) != 0 {
					t.Fatalf("failed call left partial state behind")
				}
				return
			}
			if err != nil {
				t.Fatalf("create series: %v", err)
			}
			if state.balance(testCreator).Cmp(big.NewInt(tc.refund)) != 0 {
				t.Fatalf("expected refund %d, got %s", tc.refund, state.balance(testCreator))
			}
		})
	}
}

func TestAdminGates(t *testing.T) {
	engine, _ := newTestEngine(t)

	if err := engine.SetFeePercent(testCreator, 10); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := engine.SetTreasury(testCreator, "other.test"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := engine.SetMinimumFee(testCreator, big.NewInt(5)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := engine.PutSetting(testCreator, "k", "v"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	if err := engine.SetFeePercent(testOwner, 10); err != nil {
		t.Fatalf("owner set fee percent: %v", err)
	}
	if err := engine.SetMinimumFee(testOwner, big.NewInt(7)); err != nil {
		t.Fatalf("owner set minimum fee: %v", err)
	}
	if err := engine.SetTreasury(testOwner, "vault.test"); err != nil {
		t.Fatalf("owner set treasury: %v", err)
	}
	params, err := engine.Params()
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	if params.FeePercent != 10 || params.MinimumFee.Cmp(big.NewInt(7)) != 0 || params.Treasury != "vault.test" {
		t.Fatalf("params not updated: %+v", params)
	}
}

func TestMintEligibilityToggleAuthorization(t *testing.T) {
	engine, _ := newTestEngine(t)
	view := mustCreateSeries(t, engine, testCreator, 10, 0)
	if err := engine.PutSetting(testOwner, SubAdminSettingKey, testSubAdmin); err != nil {
		t.Fatalf("configure sub-admin: %v", err)
	}

	if _, err := engine.SetSeriesMintable(testBuyer, view.TokenID, false); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for third party, got %v", err)
	}
	if _, err := engine.SetSeriesMintable(testCreator, view.TokenID, false); err != nil {
		t.Fatalf("creator toggle: %v", err)
	}
	changed, err := engine.SetSeriesMintable(testSubAdmin, view.TokenID, false)
	if err != nil {
		t.Fatalf("sub-admin toggle: %v", err)
	}
	if changed {
		t.Fatalf("re-disabling must report no membership change")
	}
	if _, err := engine.SetSeriesMintable(testSubAdmin, "404", false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetAllMintable(t *testing.T) {
	engine, state := newTestEngine(t)
	mustCreateSeries(t, engine, testCreator, 10, 0)
	mustCreateSeries(t, engine, testCreator, 10, 0)
	if err := engine.PutSetting(testOwner, SubAdminSettingKey, testSubAdmin); err != nil {
		t.Fatalf("configure sub-admin: %v", err)
	}

	if err := engine.SetAllMintable(testCreator, false); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for creator on bulk toggle, got %v", err)
	}
	if err := engine.SetAllMintable(testSubAdmin, false); err != nil {
		t.Fatalf("bulk disable: %v", err)
	}
	if len(state.nonMintable) != 2 {
		t.Fatalf("expected both series blocked, got %d", len(state.nonMintable))
	}
	if err := engine.SetAllMintable(testSubAdmin, true); err != nil {
		t.Fatalf("bulk enable: %v", err)
	}
	if len(state.nonMintable) != 0 {
		t.Fatalf("expected no series blocked, got %d", len(state.nonMintable))
	}
}

func TestGetCopyComposedView(t *testing.T) {
	engine, _ := newTestEngine(t)
	view := mustCreateSeries(t, engine, testCreator, 10, 0)
	copyID, err := engine.CreatorMint(testCreator, view.TokenID, testBuyer, nil)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	composed, ok, err := engine.GetCopy(copyID)
	if err != nil || !ok {
		t.Fatalf("get copy: ok=%v err=%v", ok, err)
	}
	if composed.TokenID != copyID || composed.OwnerID != testBuyer {
		t.Fatalf("unexpected composed view: %+v", composed)
	}
	if composed.Series.ID != view.TokenID {
		t.Fatalf("composed view resolved wrong series %s", composed.Series.ID)
	}
	if composed.Snapshot.Title != "Grand Canyon Hike" {
		t.Fatalf("mint snapshot missing: %+v", composed.Snapshot)
	}

	if _, ok, err := engine.GetCopy("404:1"); err != nil || ok {
		t.Fatalf("missing copy must return ok=false without error, got ok=%v err=%v", ok, err)
	}
}

func TestMintEmitsNotification(t *testing.T) {
	engine, _ := newTestEngine(t)
	recorder := &events.Recorder{}
	engine.SetEmitter(recorder)
	view := mustCreateSeries(t, engine, testCreator, 10, 1000)
	copyID, err := engine.Buy(testBuyer, view.TokenID, testHolder, big.NewInt(1000))
	if err != nil {
		t.Fatalf("buy: %v", err)
	}

	var minted *types.Event
	for _, evt := range recorder.Events {
		if evt.EventType() == EventTypeCopyMinted {
			minted = events.Raw(evt)
		}
	}
	if minted == nil {
		t.Fatalf("expected a %s event", EventTypeCopyMinted)
	}
	if minted.Attributes["copyId"] != copyID || minted.Attributes["receiver"] != testHolder {
		t.Fatalf("unexpected mint attributes: %v", minted.Attributes)
	}
	if minted.Attributes["price"] != "1000" {
		t.Fatalf("mint notification must carry the series price, got %v", minted.Attributes["price"])
	}
}
