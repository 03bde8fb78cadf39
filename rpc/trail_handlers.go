package rpc

import (
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"trailchain/native/trail"
)

type createSeriesParams struct {
	Caller     string               `json:"caller"`
	Creator    string               `json:"creator,omitempty"`
	Metadata   trail.SeriesMetadata `json:"metadata"`
	Price      string               `json:"price,omitempty"`
	RoyaltyBps uint64               `json:"royaltyBps,omitempty"`
	Attached   string               `json:"attached,omitempty"`
}

type mintParams struct {
	Caller   string `json:"caller"`
	SeriesID string `json:"seriesId"`
	Receiver string `json:"receiver"`
	Attached string `json:"attached,omitempty"`
}

type buyParams struct {
	Caller   string `json:"caller"`
	SeriesID string `json:"seriesId"`
	Receiver string `json:"receiver,omitempty"`
	Attached string `json:"attached"`
}

type transferParams struct {
	Caller   string `json:"caller"`
	Receiver string `json:"receiver"`
	CopyID   string `json:"copyId"`
	Memo     string `json:"memo,omitempty"`
	Attached string `json:"attached,omitempty"`
}

type setMintableParams struct {
	Caller   string `json:"caller"`
	SeriesID string `json:"seriesId"`
	Mintable bool   `json:"mintable"`
}

type setAllMintableParams struct {
	Caller   string `json:"caller"`
	Mintable bool   `json:"mintable"`
}

type setFeePercentParams struct {
	Caller  string `json:"caller"`
	Percent uint64 `json:"percent"`
}

type setMinimumFeeParams struct {
	Caller  string `json:"caller"`
	Minimum string `json:"minimum"`
}

type setTreasuryParams struct {
	Caller   string `json:"caller"`
	Treasury string `json:"treasury"`
}

type settingParams struct {
	Caller string `json:"caller,omitempty"`
	Key    string `json:"key"`
	Value  string `json:"value,omitempty"`
}

type seriesIDParams struct {
	SeriesID string `json:"seriesId"`
}

type copyIDParams struct {
	CopyID string `json:"copyId"`
}

type accountParams struct {
	Account string `json:"account"`
}

type membershipParams struct {
	SeriesID string `json:"seriesId"`
	Account  string `json:"account"`
}

type seriesResult struct {
	ID          string               `json:"id"`
	Creator     string               `json:"creator"`
	IssuedAt    uint64               `json:"issuedAt"`
	Metadata    trail.SeriesMetadata `json:"metadata"`
	Total       uint64               `json:"total"`
	Circulating uint64               `json:"circulating"`
	Price       string               `json:"price"`
	Fee         string               `json:"fee"`
	RoyaltyBps  uint64               `json:"royaltyBps"`
	IsMintable  bool                 `json:"isMintable"`
}

type seriesViewResult struct {
	TokenID string       `json:"tokenId"`
	OwnerID string       `json:"ownerId"`
	Series  seriesResult `json:"series"`
}

type copyViewResult struct {
	TokenID  string             `json:"tokenId"`
	OwnerID  string             `json:"ownerId"`
	Series   seriesResult       `json:"series"`
	Snapshot trail.CopySnapshot `json:"snapshot"`
}

type transferResult struct {
	CopyID        string `json:"copyId"`
	PreviousOwner string `json:"previousOwner"`
	Owner         string `json:"owner"`
}

type paramsResult struct {
	Owner      string `json:"owner"`
	Treasury   string `json:"treasury"`
	FeePercent uint64 `json:"feePercent"`
	MinimumFee string `json:"minimumFee"`
}

type balanceResult struct {
	Account string `json:"account"`
	Balance string `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatSeries(series *trail.Series) seriesResult {
	if series == nil {
		return seriesResult{Price: "0", Fee: "0"}
	}
	return seriesResult{
		ID:          series.ID,
		Creator:     series.Creator,
		IssuedAt:    series.IssuedAt,
		Metadata:    series.Metadata,
		Total:       series.Supply.Total,
		Circulating: series.Supply.Circulating,
		Price:       bigString(series.Price),
		Fee:         bigString(series.Fee),
		RoyaltyBps:  series.RoyaltyBps,
		IsMintable:  series.IsMintable,
	}
}

func formatSeriesList(series []*trail.Series) []seriesResult {
	out := make([]seriesResult, 0, len(series))
	for _, s := range series {
		out = append(out, formatSeries(s))
	}
	return out
}

// parseAmount converts an optional base-10 amount string. Empty means zero.
func parseAmount(field, value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("%s must be a non-negative base-10 integer", field)
	}
	return amount, nil
}

func parseAmountParam(w http.ResponseWriter, req *RPCRequest, field, value string) (*big.Int, bool) {
	amount, err := parseAmount(field, value)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return nil, false
	}
	return amount, true
}

// commit runs a mutating engine call under the server mutex and collapses the
// state journal once the call has settled. The engine reverts its own writes
// on failure, so collapsing is safe on both outcomes.
func (s *Server) commit(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := fn()
	if s.manager != nil {
		s.manager.CollapseJournal()
	}
	return err
}

func (s *Server) handleCreateSeries(w http.ResponseWriter, req *RPCRequest) {
	var params createSeriesParams
	if !decodeParams(w, req, &params) {
		return
	}
	price, ok := parseAmountParam(w, req, "price", params.Price)
	if !ok {
		return
	}
	attached, ok := parseAmountParam(w, req, "attached", params.Attached)
	if !ok {
		return
	}
	var view *trail.SeriesView
	err := s.commit(func() error {
		var callErr error
		view, callErr = s.engine.CreateSeries(params.Caller, trail.CreateSeriesInput{
			Creator:    params.Creator,
			Metadata:   params.Metadata,
			Price:      price,
			RoyaltyBps: params.RoyaltyBps,
		}, attached)
		return callErr
	})
	if err != nil {
		writeEngineError(w, req.ID, req.Method, err, s.metrics)
		return
	}
	s.metrics.ObserveSeriesCreated()
	s.logger.Info("series created", "seriesId", view.TokenID, "creator", view.OwnerID)
	writeResult(w, req.ID, seriesViewResult{
		TokenID: view.TokenID,
		OwnerID: view.OwnerID,
		Series:  formatSeries(view.Series),
	})
}

func (s *Server) handleMint(w http.ResponseWriter, req *RPCRequest) {
	var params mintParams
	if !decodeParams(w, req, &params) {
		return
	}
	attached, ok := parseAmountParam(w, req, "attached", params.Attached)
	if !ok {
		return
	}
	var copyID string
	err := s.commit(func() error {
		var callErr error
		copyID, callErr = s.engine.CreatorMint(params.Caller, params.SeriesID, params.Receiver, attached)
		return callErr
	})
	if err != nil {
		writeEngineError(w, req.ID, req.Method, err, s.metrics)
		return
	}
	s.metrics.ObserveCopyMinted("creator")
	s.logger.Info("copy minted", "copyId", copyID, "receiver", params.Receiver)
	writeResult(w, req.ID, map[string]string{"copyId": copyID})
}

func (s *Server) handleBuy(w http.ResponseWriter, req *RPCRequest) {
	var params buyParams
	if !decodeParams(w, req, &params) {
		return
	}
	attached, ok := parseAmountParam(w, req, "attached", params.Attached)
	if !ok {
		return
	}
	receiver := params.Receiver
	if strings.TrimSpace(receiver) == "" {
		receiver = params.Caller
	}
	var copyID string
	err := s.commit(func() error {
		var callErr error
		copyID, callErr = s.engine.Buy(params.Caller, params.SeriesID, receiver, attached)
		return callErr
	})
	if err != nil {
		writeEngineError(w, req.ID, req.Method, err, s.metrics)
		return
	}
	s.metrics.ObserveCopyMinted("buy")
	s.logger.Info("copy purchased", "copyId", copyID, "buyer", params.Caller, "receiver", receiver)
	writeResult(w, req.ID, map[string]string{"copyId": copyID})
}

func (s *Server) handleTransfer(w http.ResponseWriter, req *RPCRequest) {
	var params transferParams
	if !decodeParams(w, req, &params) {
		return
	}
	attached, ok := parseAmountParam(w, req, "attached", params.Attached)
	if !ok {
		return
	}
	var previous, current *trail.Copy
	err := s.commit(func() error {
		var callErr error
		previous, current, callErr = s.engine.Transfer(params.Caller, params.Receiver, params.CopyID, params.Memo, attached)
		return callErr
	})
	if err != nil {
		writeEngineError(w, req.ID, req.Method, err, s.metrics)
		return
	}
	s.metrics.ObserveTransfer()
	s.logger.Info("copy transferred", "copyId", current.ID, "from", previous.Owner, "to", current.Owner)
	writeResult(w, req.ID, transferResult{
		CopyID:        current.ID,
		PreviousOwner: previous.Owner,
		Owner:         current.Owner,
	})
}

func (s *Server) handleSetMintable(w http.ResponseWriter, req *RPCRequest) {
	var params setMintableParams
	if !decodeParams(w, req, &params) {
		return
	}
	var changed bool
	err := s.commit(func() error {
		var callErr error
		changed, callErr = s.engine.SetSeriesMintable(params.Caller, params.SeriesID, params.Mintable)
		return callErr
	})
	if err != nil {
		writeEngineError(w, req.ID, req.Method, err, s.metrics)
		return
	}
	writeResult(w, req.ID, map[string]bool{"changed": changed})
}

func (s *Server) handleSetAllMintable(w http.ResponseWriter, req *RPCRequest) {
	var params setAllMintableParams
	if !decodeParams(w, req, &params) {
		return
	}
	err := s.commit(func() error {
		return s.engine.SetAllMintable(params.Caller, params.Mintable)
	})
	if err != nil {
		writeEngineError(w, req.ID, req.Method, err, s.metrics)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleSetFeePercent(w http.ResponseWriter, req *RPCRequest) {
	var params setFeePercentParams
	if !decodeParams(w, req, &params) {
		return
	}
	err := s.commit(func() error {
		return s.engine.SetFeePercent(params.Caller, params.Percent)
	})
	if err != nil {
		writeEngineError(w, req.ID, req.Method, err, s.metrics)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleSetMinimumFee(w http.ResponseWriter, req *RPCRequest) {
	var params setMinimumFeeParams
	if !decodeParams(w, req, &params) {
		return
	}
	minimum, ok := parseAmountParam(w, req, "minimum", params.Minimum)
	if !ok {
		return
	}
	err := s.commit(func() error {
		return s.engine.SetMinimumFee(params.Caller, minimum)
	})
	if err != nil {
		writeEngineError(w, req.ID, req.Method, err, s.metrics)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleSetTreasury(w http.ResponseWriter, req *RPCRequest) {
	var params setTreasuryParams
	if !decodeParams(w, req, &params) {
		return
	}
	err := s.commit(func() error {
		return s.engine.SetTreasury(params.Caller, params.Treasury)
	})
	if err != nil {
		writeEngineError(w, req.ID, req.Method, err, s.metrics)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handlePutSetting(w http.ResponseWriter, req *RPCRequest) {
	var params settingParams
	if !decodeParams(w, req, &params) {
		return
	}
	err := s.commit(func() error {
		return s.engine.PutSetting(params.Caller, params.Key, params.Value)
	})
	if err != nil {
		writeEngineError(w, req.ID, req.Method, err, s.metrics)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleGetSetting(w http.ResponseWriter, req *RPCRequest) {
	var params settingParams
	if !decodeParams(w, req, &params) {
		return
	}
	value, ok, err := s.engine.Setting(params.Key)
	if err != nil {
		writeEngineError(w, req.ID, req.Method, err, s.metrics)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{"key": params.Key, "value": value, "exists": ok})
}

func (s *Server) handleGetSeries(w http.ResponseWriter, req *RPCRequest) {
	var params seriesIDParams
	if !decodeParams(w, req, &params) {
		return
	}
	series, err := s.engine.GetSeries(params.SeriesID)
	if err != nil {
		writeEngineError(w, req.ID, req.Method, err, s.metrics)
		return
	}
	writeResult(w, req.ID, formatSeries(series))
}

func (s *Server) handleGetCopy(w http.ResponseWriter, req *RPCRequest) {
	var params copyIDParams
	if !decodeParams(w, req, &params) {
		return
	}
	view, ok, err := s.engine.GetCopy(params.CopyID)
	if err != nil {
		writeEngineError(w, req.ID, req.Method, err, s.metrics)
		return
	}
	if !ok {
		writeEngineError(w, req.ID, req.Method, trail.ErrCopyNotFound, s.metrics)
		return
	}
	writeResult(w, req.ID, copyViewResult{
		TokenID:  view.TokenID,
		OwnerID:  view.OwnerID,
		Series:   formatSeries(view.Series),
		Snapshot: view.Snapshot,
	})
}

func (s *Server) handleSeriesIDs(w http.ResponseWriter, req *RPCRequest) {
	ids, err := s.manager.SeriesIDs()
	if err != nil {
		writeEngineError(w, req.ID, req.Method, err, s.metrics)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeResult(w, req.ID, ids)
}

func (s *Server) handleSeriesByCreator(w http.ResponseWriter, req *RPCRequest) {
	var params accountParams
	if !decodeParams(w, req, &params) {
		return
	}
	series, err := s.engine.AllSeriesByCreator(params.Account)
	if err != nil {
		writeEngineError(w, req.ID, req.Method, err, s.metrics)
		return
	}
	writeResult(w, req.ID, formatSeriesList(series))
}

func (s *Server) handleSeriesByOwner(w http.ResponseWriter, req *RPCRequest) {
	var params accountParams
	if !decodeParams(w, req, &params) {
		return
	}
	series, err := s.engine.AllSeriesByOwner(params.Account)
	if err != nil {
		writeEngineError(w, req.ID, req.Method, err, s.metrics)
		return
	}
	writeResult(w, req.ID, formatSeriesList(series))
}

func (s *Server) handleCopiesByOwner(w http.ResponseWriter, req *RPCRequest) {
	var params accountParams
	if !decodeParams(w, req, &params) {
		return
	}
	ids, err := s.engine.CopiesByOwner(params.Account)
	if err != nil {
		writeEngineError(w, req.ID, req.Method, err, s.metrics)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeResult(w, req.ID, ids)
}

func (s *Server) handleIsOwner(w http.ResponseWriter, req *RPCRequest) {
	var params membershipParams
	if !decodeParams(w, req, &params) {
		return
	}
	owns, err := s.engine.IsOwner(params.SeriesID, params.Account)
	if err != nil {
		writeEngineError(w, req.ID, req.Method, err, s.metrics)
		return
	}
	writeResult(w, req.ID, map[string]bool{"isOwner": owns})
}

func (s *Server) handleIsCreator(w http.ResponseWriter, req *RPCRequest) {
	var params membershipParams
	if !decodeParams(w, req, &params) {
		return
	}
	created, err := s.engine.IsCreator(params.SeriesID, params.Account)
	if err != nil {
		writeEngineError(w, req.ID, req.Method, err, s.metrics)
		return
	}
	writeResult(w, req.ID, map[string]bool{"isCreator": created})
}

func (s *Server) handleParams(w http.ResponseWriter, req *RPCRequest) {
	params, err := s.engine.Params()
	if err != nil {
		writeEngineError(w, req.ID, req.Method, err, s.metrics)
		return
	}
	writeResult(w, req.ID, paramsResult{
		Owner:      params.Owner,
		Treasury:   params.Treasury,
		FeePercent: params.FeePercent,
		MinimumFee: bigString(params.MinimumFee),
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, req *RPCRequest) {
	var params accountParams
	if !decodeParams(w, req, &params) {
		return
	}
	acc, err := s.manager.GetAccount(params.Account)
	if err != nil {
		writeEngineError(w, req.ID, req.Method, err, s.metrics)
		return
	}
	writeResult(w, req.ID, balanceResult{
		Account: params.Account,
		Balance: bigString(acc.Balance),
		Nonce:   acc.Nonce,
	})
}
