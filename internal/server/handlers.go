package server

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"StreetBook/internal/command"
	"StreetBook/internal/curve"
	"StreetBook/internal/engine"
	"StreetBook/internal/fixed"
	"StreetBook/internal/market"
	"StreetBook/internal/query"
)

// writeJSON marshals v and writes it with the given status. Marshal failure
// falls back to a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeEngineError maps engine sentinels onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusConflict
	switch {
	case errors.Is(err, engine.ErrMarketNotFound):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrPaused):
		status = http.StatusServiceUnavailable
	case errors.Is(err, engine.ErrInvalidAmount),
		errors.Is(err, engine.ErrInvalidMarket),
		errors.Is(err, engine.ErrInvalidParams),
		errors.Is(err, engine.ErrBondMismatch):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrCreatorPriority):
		status = http.StatusForbidden
	}
	writeError(w, status, err.Error())
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return false
	}
	return true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func parseSide(s string) (curve.Side, bool) {
	switch s {
	case "yes":
		return curve.SideYes, true
	case "no":
		return curve.SideNo, true
	}
	return 0, false
}

// parseAmount parses a required decimal-string amount.
func parseAmount(w http.ResponseWriter, field, s string) (*big.Int, bool) {
	v, ok := fixed.FromString(s)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid "+field)
		return nil, false
	}
	return v, true
}

// parseOptionalAmount parses an optional slippage floor; empty means none.
func parseOptionalAmount(w http.ResponseWriter, field, s string) (*big.Int, bool) {
	if s == "" {
		return nil, true
	}
	return parseAmount(w, field, s)
}

// recordResponse is the common envelope for applied commands.
type recordResponse struct {
	Sequence  uint64          `json:"sequence"`
	CommandID uuid.UUID       `json:"command_id"`
	Result    json.RawMessage `json:"result,omitempty"`
}

func writeRecord(w http.ResponseWriter, status int, rec *engine.Record) {
	writeJSON(w, status, recordResponse{
		Sequence:  rec.Sequence,
		CommandID: rec.CommandID,
		Result:    rec.Result,
	})
}

// Handlers serves the v1 API on top of the engine service and the
// historical query service.
type Handlers struct {
	svc     *Service
	history *query.Service
}

func NewHandlers(svc *Service, history *query.Service) *Handlers {
	return &Handlers{svc: svc, history: history}
}

// --- Write endpoints ---

type createMarketRequest struct {
	Question  string    `json:"question"`
	Evidence  string    `json:"evidence"`
	Rules     string    `json:"rules"`
	Creator   uuid.UUID `json:"creator"`
	ExpiresAt time.Time `json:"expires_at"`
	Heat      string    `json:"heat"`
}

// CreateMarket handles POST /v1/markets.
func (h *Handlers) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if !decodeBody(w, r, &req) {
		return
	}
	heat, err := market.ParseHeatLevel(req.Heat)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cmd := &command.CreateMarket{
		Base:        command.NewBase(h.svc.Now()),
		NewMarketID: uuid.New(),
		Question:    req.Question,
		Evidence:    req.Evidence,
		Rules:       req.Rules,
		Creator:     req.Creator,
		ExpiresAt:   req.ExpiresAt,
		Heat:        heat,
	}
	rec, err := h.svc.Submit(cmd)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"market_id": cmd.NewMarketID,
		"sequence":  rec.Sequence,
	})
}

type tradeRequest struct {
	Account      uuid.UUID `json:"account"`
	Side         string    `json:"side"`
	AmountIn     string    `json:"amount_in,omitempty"`
	Shares       string    `json:"shares,omitempty"`
	MinSharesOut string    `json:"min_shares_out,omitempty"`
	MinAmountOut string    `json:"min_amount_out,omitempty"`
}

// Buy handles POST /v1/markets/{id}/buy.
func (h *Handlers) Buy(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req tradeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	side, ok := parseSide(req.Side)
	if !ok {
		writeError(w, http.StatusBadRequest, "side must be yes or no")
		return
	}
	amountIn, ok := parseAmount(w, "amount_in", req.AmountIn)
	if !ok {
		return
	}
	minShares, ok := parseOptionalAmount(w, "min_shares_out", req.MinSharesOut)
	if !ok {
		return
	}

	rec, err := h.svc.Submit(&command.Buy{
		Base:         command.NewBase(h.svc.Now()),
		Market:       id,
		Account:      req.Account,
		Side:         side,
		AmountIn:     amountIn,
		MinSharesOut: minShares,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeRecord(w, http.StatusOK, rec)
}

// Sell handles POST /v1/markets/{id}/sell.
func (h *Handlers) Sell(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req tradeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	side, ok := parseSide(req.Side)
	if !ok {
		writeError(w, http.StatusBadRequest, "side must be yes or no")
		return
	}
	shares, ok := parseAmount(w, "shares", req.Shares)
	if !ok {
		return
	}
	minOut, ok := parseOptionalAmount(w, "min_amount_out", req.MinAmountOut)
	if !ok {
		return
	}

	rec, err := h.svc.Submit(&command.Sell{
		Base:         command.NewBase(h.svc.Now()),
		Market:       id,
		Account:      req.Account,
		Side:         side,
		Shares:       shares,
		MinAmountOut: minOut,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeRecord(w, http.StatusOK, rec)
}

type proposeRequest struct {
	Account uuid.UUID `json:"account"`
	Outcome string    `json:"outcome"`
	Bond    string    `json:"bond"`
}

// Propose handles POST /v1/markets/{id}/propose.
func (h *Handlers) Propose(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req proposeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	outcome, ok := parseSide(req.Outcome)
	if !ok {
		writeError(w, http.StatusBadRequest, "outcome must be yes or no")
		return
	}
	bond, ok := parseAmount(w, "bond", req.Bond)
	if !ok {
		return
	}

	rec, err := h.svc.Submit(&command.Propose{
		Base:       command.NewBase(h.svc.Now()),
		Market:     id,
		Account:    req.Account,
		Outcome:    outcome,
		BondAmount: bond,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeRecord(w, http.StatusOK, rec)
}

type disputeRequest struct {
	Account uuid.UUID `json:"account"`
	Bond    string    `json:"bond"`
}

// Dispute handles POST /v1/markets/{id}/dispute.
func (h *Handlers) Dispute(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req disputeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	bond, ok := parseAmount(w, "bond", req.Bond)
	if !ok {
		return
	}

	rec, err := h.svc.Submit(&command.Dispute{
		Base:       command.NewBase(h.svc.Now()),
		Market:     id,
		Account:    req.Account,
		BondAmount: bond,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeRecord(w, http.StatusOK, rec)
}

type voteRequest struct {
	Account uuid.UUID `json:"account"`
	Outcome string    `json:"outcome"`
}

// Vote handles POST /v1/markets/{id}/vote.
func (h *Handlers) Vote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req voteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	outcome, ok := parseSide(req.Outcome)
	if !ok {
		writeError(w, http.StatusBadRequest, "outcome must be yes or no")
		return
	}

	rec, err := h.svc.Submit(&command.Vote{
		Base:    command.NewBase(h.svc.Now()),
		Market:  id,
		Account: req.Account,
		Outcome: outcome,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeRecord(w, http.StatusOK, rec)
}

type accountRequest struct {
	Account uuid.UUID `json:"account"`
}

// Finalize handles POST /v1/markets/{id}/finalize.
func (h *Handlers) Finalize(w http.ResponseWriter, r *http.Request) {
	h.marketAccountCommand(w, r, func(id, account uuid.UUID) command.Command {
		return &command.Finalize{Base: command.NewBase(h.svc.Now()), Market: id, Account: account}
	})
}

// Claim handles POST /v1/markets/{id}/claim.
func (h *Handlers) Claim(w http.ResponseWriter, r *http.Request) {
	h.marketAccountCommand(w, r, func(id, account uuid.UUID) command.Command {
		return &command.Claim{Base: command.NewBase(h.svc.Now()), Market: id, Account: account}
	})
}

// Refund handles POST /v1/markets/{id}/refund.
func (h *Handlers) Refund(w http.ResponseWriter, r *http.Request) {
	h.marketAccountCommand(w, r, func(id, account uuid.UUID) command.Command {
		return &command.EmergencyRefund{Base: command.NewBase(h.svc.Now()), Market: id, Account: account}
	})
}

func (h *Handlers) marketAccountCommand(w http.ResponseWriter, r *http.Request, build func(id, account uuid.UUID) command.Command) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req accountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rec, err := h.svc.Submit(build(id, req.Account))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeRecord(w, http.StatusOK, rec)
}

// Withdraw handles POST /v1/withdrawals.
func (h *Handlers) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rec, err := h.svc.Submit(&command.Withdraw{
		Base:    command.NewBase(h.svc.Now()),
		Account: req.Account,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeRecord(w, http.StatusOK, rec)
}

// --- Read endpoints ---

// GetMarket handles GET /v1/markets/{id}.
func (h *Handlers) GetMarket(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	v, err := h.svc.MarketView(id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// GetQuote handles GET /v1/markets/{id}/quote?side=yes&amount_in=...
// or ?side=yes&shares=... for a sell preview.
func (h *Handlers) GetQuote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	q := r.URL.Query()
	side, ok := parseSide(q.Get("side"))
	if !ok {
		writeError(w, http.StatusBadRequest, "side must be yes or no")
		return
	}

	var (
		v   *QuoteView
		err error
	)
	switch {
	case q.Get("amount_in") != "":
		amount, ok := parseAmount(w, "amount_in", q.Get("amount_in"))
		if !ok {
			return
		}
		v, err = h.svc.QuoteBuy(id, side, amount)
	case q.Get("shares") != "":
		shares, ok := parseAmount(w, "shares", q.Get("shares"))
		if !ok {
			return
		}
		v, err = h.svc.QuoteSell(id, side, shares)
	default:
		writeError(w, http.StatusBadRequest, "amount_in or shares required")
		return
	}
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// GetPosition handles GET /v1/markets/{id}/positions/{account}.
func (h *Handlers) GetPosition(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	account, ok := pathUUID(w, r, "account")
	if !ok {
		return
	}
	v, err := h.svc.PositionView(id, account)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// GetBalance handles GET /v1/accounts/{account}/balance.
func (h *Handlers) GetBalance(w http.ResponseWriter, r *http.Request) {
	account, ok := pathUUID(w, r, "account")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.svc.BalanceView(account))
}

// GetParams handles GET /v1/params.
func (h *Handlers) GetParams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Params())
}

// ListOps handles GET /v1/ops?market=...&kind=...&before=...&limit=...
func (h *Handlers) ListOps(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history store not configured")
		return
	}
	q := r.URL.Query()
	var f query.OpsFilter

	if v := q.Get("market"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid market")
			return
		}
		f.MarketID = &id
	}
	f.Kind = q.Get("kind")
	if v := q.Get("before"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid before cursor")
			return
		}
		f.BeforeSequence = &n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		f.Limit = n
	}

	entries, err := h.history.ListOperations(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list operations")
		return
	}
	latest, err := h.history.LatestSequence(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read log head")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"operations":      entries,
		"latest_sequence": latest,
	})
}

// ListPayouts handles GET /v1/accounts/{account}/payouts.
func (h *Handlers) ListPayouts(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history store not configured")
		return
	}
	account, ok := pathUUID(w, r, "account")
	if !ok {
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	payouts, err := h.history.ListPayouts(r.Context(), account.String(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list payouts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"payouts": payouts})
}

// --- Admin endpoints ---

// UpdateParams handles PUT /v1/admin/params.
func (h *Handlers) UpdateParams(w http.ResponseWriter, r *http.Request) {
	var params market.ProtocolParams
	if !decodeBody(w, r, &params) {
		return
	}
	rec, err := h.svc.Submit(&command.ParamUpdate{
		Base:   command.NewBase(h.svc.Now()),
		Params: params,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeRecord(w, http.StatusOK, rec)
}

type pauseRequest struct {
	Paused bool `json:"paused"`
}

// SetPaused handles PUT /v1/admin/pause.
func (h *Handlers) SetPaused(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rec, err := h.svc.Submit(&command.SetPaused{
		Base:   command.NewBase(h.svc.Now()),
		Paused: req.Paused,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeRecord(w, http.StatusOK, rec)
}
