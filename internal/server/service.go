// Package server exposes the HTTP/JSON API. All engine access goes through
// Service, which serializes commands and reads behind one mutex: the engine
// itself is single-threaded by construction.
package server

import (
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"StreetBook/internal/command"
	"StreetBook/internal/curve"
	"StreetBook/internal/engine"
	"StreetBook/internal/fixed"
	"StreetBook/internal/market"
	"StreetBook/internal/observability"
)

type Service struct {
	mu      sync.Mutex
	eng     *engine.Engine
	metrics *observability.Metrics
	log     zerolog.Logger

	// now is the ingress clock. Commands are stamped here, never inside
	// the engine.
	now func() time.Time

	lastPublishDrops uint64
}

func NewService(eng *engine.Engine, metrics *observability.Metrics, log zerolog.Logger) *Service {
	return &Service{
		eng:     eng,
		metrics: metrics,
		log:     log,
		now:     time.Now,
	}
}

// Now returns the ingress timestamp for a freshly built command.
func (s *Service) Now() time.Time { return s.now() }

// Submit applies one command under the serialization lock.
func (s *Service) Submit(cmd command.Command) (*engine.Record, error) {
	start := time.Now()

	s.mu.Lock()
	rec, err := s.eng.Apply(cmd)
	seq := s.eng.Sequence()
	s.mu.Unlock()

	typ := string(cmd.Type())
	if s.metrics != nil {
		s.metrics.CommandDuration.WithLabelValues(typ).Observe(time.Since(start).Seconds())
		if err != nil {
			s.metrics.CommandsRejected.WithLabelValues(typ, rejectReason(err)).Inc()
			if errors.Is(err, engine.ErrDuplicateCommand) {
				s.metrics.IdempotencyDuplicates.WithLabelValues(typ).Inc()
			}
		} else {
			s.metrics.CommandsApplied.WithLabelValues(typ).Inc()
			s.metrics.EngineSequence.Set(float64(seq))
		}
	}
	if err != nil {
		s.log.Debug().Err(err).Str("command", typ).Msg("command rejected")
	}
	return rec, err
}

// Params returns the current protocol parameters.
func (s *Service) Params() market.ProtocolParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eng.Params()
}

// Sequence returns the next sequence the engine will assign.
func (s *Service) Sequence() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eng.Sequence()
}

// Snapshot captures serializable engine state under the lock.
func (s *Service) Snapshot() *engine.SnapshotState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eng.CreateSnapshotState()
}

// SampleGauges refreshes the slow-moving engine gauges. Runs on a
// background ticker, never on the request path.
func (s *Service) SampleGauges() {
	if s.metrics == nil {
		return
	}

	s.mu.Lock()
	open := 0
	for _, m := range s.eng.Store().All() {
		if !m.Resolved {
			open++
		}
	}
	pool := s.eng.Store().TotalPool()
	outstanding := s.eng.Ledger().OutstandingTotal()
	fees := s.eng.Ledger().OutstandingCreatorFeeTotal()
	dedupSize := s.eng.DedupSize()
	drops := s.eng.PublishDrops()
	s.mu.Unlock()

	s.metrics.MarketsOpen.Set(float64(open))
	s.metrics.TotalPoolBalance.Set(bigGauge(pool))
	s.metrics.LedgerOutstanding.Set(bigGauge(outstanding))
	s.metrics.LedgerCreatorFees.Set(bigGauge(fees))
	s.metrics.DedupLRUSize.Set(float64(dedupSize))
	if drops > s.lastPublishDrops {
		s.metrics.PublishDrops.Add(float64(drops - s.lastPublishDrops))
		s.lastPublishDrops = drops
	}
}

// bigGauge lossily converts a scaled amount for a gauge. Exact values live
// in the operation log, gauges only need magnitude.
func bigGauge(x *big.Int) float64 {
	f, _ := new(big.Float).SetInt(x).Float64()
	return f
}

// MarketView is the read model served for a single market. Big quantities
// are decimal strings.
type MarketView struct {
	ID        uuid.UUID        `json:"id"`
	Question  string           `json:"question"`
	Evidence  string           `json:"evidence,omitempty"`
	Rules     string           `json:"rules,omitempty"`
	Creator   uuid.UUID        `json:"creator"`
	CreatedAt time.Time        `json:"created_at"`
	ExpiresAt time.Time        `json:"expires_at"`
	Heat      market.HeatLevel `json:"heat"`

	Phase     string `json:"phase"`
	YesPrice  string `json:"yes_price"`
	NoPrice   string `json:"no_price"`
	YesSupply string `json:"yes_supply"`
	NoSupply  string `json:"no_supply"`
	Pool      string `json:"pool_balance"`

	RequiredBond   string `json:"required_bond"`
	RefundEligible bool   `json:"refund_eligible"`

	Resolved bool   `json:"resolved"`
	Outcome  string `json:"outcome,omitempty"`

	Proposer        *uuid.UUID `json:"proposer,omitempty"`
	ProposedOutcome string     `json:"proposed_outcome,omitempty"`
	ProposedAt      *time.Time `json:"proposed_at,omitempty"`
	Disputer        *uuid.UUID `json:"disputer,omitempty"`
	DisputedAt      *time.Time `json:"disputed_at,omitempty"`
	YesVotes        string     `json:"yes_votes"`
	NoVotes         string     `json:"no_votes"`
}

// MarketView builds the read model at the current instant.
func (s *Service) MarketView(id uuid.UUID) (*MarketView, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.eng.Store().Get(id)
	if !ok {
		return nil, engine.ErrMarketNotFound
	}
	params := s.eng.Params()

	v := &MarketView{
		ID:        m.ID,
		Question:  m.Question,
		Evidence:  m.Evidence,
		Rules:     m.Rules,
		Creator:   m.Creator,
		CreatedAt: m.CreatedAt,
		ExpiresAt: m.ExpiresAt,
		Heat:      m.Heat,

		Phase:     m.PhaseAt(now).String(),
		YesPrice:  curve.Price(curve.SideYes, m.YesSupply, m.NoSupply, m.VirtualLiquidity).String(),
		NoPrice:   curve.Price(curve.SideNo, m.YesSupply, m.NoSupply, m.VirtualLiquidity).String(),
		YesSupply: fixed.String(m.YesSupply),
		NoSupply:  fixed.String(m.NoSupply),
		Pool:      fixed.String(m.PoolBalance),

		RequiredBond:   m.RequiredBond(params).String(),
		RefundEligible: s.eng.RefundEligible(m, now),

		Resolved: m.Resolved,
		YesVotes: fixed.String(m.YesVotes),
		NoVotes:  fixed.String(m.NoVotes),
	}
	if m.Resolved {
		v.Outcome = m.Outcome.String()
	}
	if m.Proposer != uuid.Nil {
		p, at := m.Proposer, m.ProposedAt
		v.Proposer = &p
		v.ProposedOutcome = m.ProposedOutcome.String()
		v.ProposedAt = &at
	}
	if m.Disputer != uuid.Nil {
		d, at := m.Disputer, m.DisputedAt
		v.Disputer = &d
		v.DisputedAt = &at
	}
	return v, nil
}

// QuoteView is a trade preview: what a buy or sell of the given size would
// return right now, fees included.
type QuoteView struct {
	Side        string `json:"side"`
	Shares      string `json:"shares,omitempty"`
	AmountOut   string `json:"amount_out,omitempty"`
	ProtocolFee string `json:"protocol_fee"`
	CreatorFee  string `json:"creator_fee"`
}

// QuoteBuy previews a buy without mutating state.
func (s *Service) QuoteBuy(id uuid.UUID, side curve.Side, amountIn *big.Int) (*QuoteView, error) {
	if !fixed.IsPositive(amountIn) {
		return nil, engine.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.eng.Store().Get(id)
	if !ok {
		return nil, engine.ErrMarketNotFound
	}
	params := s.eng.Params()

	protocolFee := fixed.Bps(amountIn, params.TradeFeeBps)
	creatorFee := fixed.Bps(amountIn, params.CreatorFeeBps)
	net := fixed.Sub(amountIn, protocolFee)
	net.Sub(net, creatorFee)
	shares := curve.SharesOut(net, side, m.YesSupply, m.NoSupply, m.VirtualLiquidity)

	return &QuoteView{
		Side:        side.String(),
		Shares:      shares.String(),
		ProtocolFee: protocolFee.String(),
		CreatorFee:  creatorFee.String(),
	}, nil
}

// QuoteSell previews a sell without mutating state.
func (s *Service) QuoteSell(id uuid.UUID, side curve.Side, shares *big.Int) (*QuoteView, error) {
	if !fixed.IsPositive(shares) {
		return nil, engine.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.eng.Store().Get(id)
	if !ok {
		return nil, engine.ErrMarketNotFound
	}
	params := s.eng.Params()

	gross, err := curve.SellReturn(shares, side, m.YesSupply, m.NoSupply, m.VirtualLiquidity)
	if err != nil {
		return nil, engine.ErrInsufficientShares
	}
	protocolFee := fixed.Bps(gross, params.TradeFeeBps)
	creatorFee := fixed.Bps(gross, params.CreatorFeeBps)
	net := fixed.Sub(gross, protocolFee)
	net.Sub(net, creatorFee)

	return &QuoteView{
		Side:        side.String(),
		AmountOut:   net.String(),
		ProtocolFee: protocolFee.String(),
		CreatorFee:  creatorFee.String(),
	}, nil
}

// PositionView is an account's holdings in one market.
type PositionView struct {
	Market     uuid.UUID `json:"market"`
	Account    uuid.UUID `json:"account"`
	YesShares  string    `json:"yes_shares"`
	NoShares   string    `json:"no_shares"`
	Claimed    bool      `json:"claimed"`
	Refunded   bool      `json:"refunded"`
	HasVoted   bool      `json:"has_voted"`
	VoteWeight string    `json:"vote_weight,omitempty"`
}

// PositionView returns the account's position, zeroed if none exists.
func (s *Service) PositionView(id, account uuid.UUID) (*PositionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.eng.Store().Get(id)
	if !ok {
		return nil, engine.ErrMarketNotFound
	}

	v := &PositionView{
		Market:    id,
		Account:   account,
		YesShares: "0",
		NoShares:  "0",
	}
	pos, ok := m.LookupPosition(account)
	if !ok {
		return v, nil
	}
	v.YesShares = fixed.String(pos.YesShares)
	v.NoShares = fixed.String(pos.NoShares)
	v.Claimed = pos.Claimed
	v.Refunded = pos.Refunded
	v.HasVoted = pos.HasVoted
	if pos.HasVoted {
		v.VoteWeight = fixed.String(pos.VoteWeight)
	}
	return v, nil
}

// BalanceView is an account's withdrawable funds.
type BalanceView struct {
	Account     uuid.UUID `json:"account"`
	Balance     string    `json:"balance"`
	CreatorFees string    `json:"creator_fees"`
	Total       string    `json:"total"`
}

// BalanceView returns the account's ledger balance and accrued creator fees.
func (s *Service) BalanceView(account uuid.UUID) *BalanceView {
	s.mu.Lock()
	defer s.mu.Unlock()

	balance := s.eng.Ledger().Balance(account)
	fees := s.eng.Ledger().CreatorFees(account)
	return &BalanceView{
		Account:     account,
		Balance:     balance.String(),
		CreatorFees: fees.String(),
		Total:       fixed.Add(balance, fees).String(),
	}
}

// rejectReason maps an engine error to a low-cardinality metric label.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, engine.ErrDuplicateCommand):
		return "duplicate"
	case errors.Is(err, engine.ErrMarketNotFound):
		return "not_found"
	case errors.Is(err, engine.ErrPaused):
		return "paused"
	case errors.Is(err, engine.ErrWrongPhase):
		return "wrong_phase"
	case errors.Is(err, engine.ErrWindowClosed), errors.Is(err, engine.ErrWindowNotElapsed):
		return "window"
	case errors.Is(err, engine.ErrSlippage):
		return "slippage"
	case errors.Is(err, engine.ErrBondMismatch):
		return "bond"
	case errors.Is(err, engine.ErrInvalidAmount), errors.Is(err, engine.ErrInvalidMarket),
		errors.Is(err, engine.ErrInvalidParams):
		return "validation"
	default:
		return "other"
	}
}
