// Package engine is the deterministic single-threaded core. It applies
// typed commands to the in-memory market state, emits one sequence-numbered
// operation record per applied command (plus derived notifications), and
// supports snapshot/replay recovery. The engine never calls time.Now();
// every command carries the timestamp assigned at the ingress edge.
package engine

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"StreetBook/internal/command"
	"StreetBook/internal/market"
	"StreetBook/internal/payout"
)

// Derived record kinds: notifications the engine emits on its own, with
// their own sequence numbers, alongside the originating command's record.
const (
	KindMarketResolved    = "market_resolved"
	KindResolutionAborted = "resolution_aborted"
	KindDisputeTied       = "dispute_tied"
)

// Record is one entry of the operation log. Payload holds the encoded
// command (empty for derived records); Result holds an operation-specific
// summary.
type Record struct {
	Sequence  uint64          `json:"sequence"`
	CommandID uuid.UUID       `json:"command_id"`
	Kind      string          `json:"kind"`
	Market    uuid.UUID       `json:"market,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
}

// derived is a notification produced while handling a command.
type derived struct {
	kind   string
	market uuid.UUID
	result any
}

// Engine is the single-writer command processor.
type Engine struct {
	store    *market.Store
	ledger   *payout.Ledger
	dist     *payout.Distributor
	bank     payout.Bank
	params   market.ProtocolParams
	treasury uuid.UUID

	sequence uint64
	dedup    *IdempotencyChecker

	persistChan chan<- Record
	publishChan chan<- Record

	replaying    bool
	publishDrops uint64
}

func New(
	startSequence uint64,
	params market.ProtocolParams,
	treasury uuid.UUID,
	bank payout.Bank,
	persistChan, publishChan chan<- Record,
	dbChecker DBIdempotencyChecker,
) *Engine {
	ledger := payout.NewLedger()
	e := &Engine{
		store:  market.NewStore(),
		ledger: ledger,
		params:      params,
		treasury:    treasury,
		sequence:    startSequence,
		dedup:       NewIdempotencyChecker(1_000_000, dbChecker),
		persistChan: persistChan,
		publishChan: publishChan,
	}
	// During replay outbound payments are suppressed: the instructions
	// already went out on the original run. The gate covers both the
	// engine's own payments and the distributor's treasury pushes.
	e.bank = &replayGate{engine: e, inner: bank}
	e.dist = payout.NewDistributor(ledger, e.bank, treasury)
	return e
}

type replayGate struct {
	engine *Engine
	inner  payout.Bank
}

func (g *replayGate) Pay(account uuid.UUID, amount *big.Int) error {
	if g.engine.replaying {
		return nil
	}
	return g.inner.Pay(account, amount)
}

// Apply runs the full processing pipeline for one command: dedup check,
// dispatch, record emission, mark processed. A rejected command leaves
// state completely unchanged.
func (e *Engine) Apply(cmd command.Command) (*Record, error) {
	// Replayed commands come straight from the operation log, where the
	// DB dedup tier would report every one of them as already processed.
	// Uniqueness during replay is guaranteed by the sequence continuity
	// check in Replay instead.
	if !e.replaying && e.dedup.IsDuplicate(cmd.CommandID()) {
		return nil, ErrDuplicateCommand
	}

	result, events, err := e.dispatch(cmd)
	if err != nil {
		return nil, err
	}

	rec, err := e.buildCommandRecord(cmd, result)
	if err != nil {
		panic(fmt.Sprintf("FATAL: cannot encode applied command %s: %v", cmd.Type(), err))
	}
	e.emit(*rec)

	for _, d := range events {
		drec := e.buildDerivedRecord(cmd, d)
		e.emit(drec)
	}

	e.dedup.MarkProcessed(cmd.CommandID())
	return rec, nil
}

func (e *Engine) dispatch(cmd command.Command) (any, []derived, error) {
	switch c := cmd.(type) {
	case *command.CreateMarket:
		r, err := e.applyCreateMarket(c)
		return r, nil, err
	case *command.Buy:
		r, err := e.applyBuy(c)
		return r, nil, err
	case *command.Sell:
		r, err := e.applySell(c)
		return r, nil, err
	case *command.Propose:
		r, err := e.applyPropose(c)
		return r, nil, err
	case *command.Dispute:
		r, err := e.applyDispute(c)
		return r, nil, err
	case *command.Vote:
		r, err := e.applyVote(c)
		return r, nil, err
	case *command.Finalize:
		return e.applyFinalize(c)
	case *command.Claim:
		r, err := e.applyClaim(c)
		return r, nil, err
	case *command.EmergencyRefund:
		r, err := e.applyEmergencyRefund(c)
		return r, nil, err
	case *command.Withdraw:
		r, err := e.applyWithdraw(c)
		return r, nil, err
	case *command.ParamUpdate:
		return nil, nil, e.applyParamUpdate(c)
	case *command.SetPaused:
		e.params.Paused = c.Paused
		return nil, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown command type %T", cmd)
	}
}

func (e *Engine) buildCommandRecord(cmd command.Command, result any) (*Record, error) {
	payload, err := command.Encode(cmd)
	if err != nil {
		return nil, err
	}
	rec := &Record{
		Sequence:  e.sequence,
		CommandID: cmd.CommandID(),
		Kind:      string(cmd.Type()),
		Market:    cmd.MarketID(),
		Timestamp: cmd.OccurredAt(),
		Payload:   payload,
	}
	if result != nil {
		rec.Result, err = json.Marshal(result)
		if err != nil {
			return nil, err
		}
	}
	e.sequence++
	return rec, nil
}

func (e *Engine) buildDerivedRecord(cmd command.Command, d derived) Record {
	rec := Record{
		Sequence:  e.sequence,
		CommandID: cmd.CommandID(),
		Kind:      d.kind,
		Market:    d.market,
		Timestamp: cmd.OccurredAt(),
	}
	if d.result != nil {
		result, err := json.Marshal(d.result)
		if err != nil {
			panic(fmt.Sprintf("FATAL: cannot encode derived %s record: %v", d.kind, err))
		}
		rec.Result = result
	}
	e.sequence++
	return rec
}

// emit sends the record downstream. The persist channel blocks so no
// record is ever lost; the publish channel drops on full, subscribers can
// rebuild from the log.
func (e *Engine) emit(rec Record) {
	if e.replaying {
		return
	}
	if e.persistChan != nil {
		e.persistChan <- rec
	}
	if e.publishChan != nil {
		select {
		case e.publishChan <- rec:
		default:
			e.publishDrops++
		}
	}
}

// Replay re-applies one operation log record during recovery. Derived
// records are skipped: their effects regenerate when the originating
// command replays, and the sequence counter already advanced past them.
func (e *Engine) Replay(rec Record) error {
	if !isCommandKind(rec.Kind) {
		if rec.Sequence >= e.sequence {
			return fmt.Errorf("derived record %d (%s) was not regenerated by its command", rec.Sequence, rec.Kind)
		}
		return nil
	}
	if rec.Sequence != e.sequence {
		return fmt.Errorf("replay sequence gap: log has %d, engine at %d", rec.Sequence, e.sequence)
	}
	cmd, err := command.Decode(command.Type(rec.Kind), rec.Payload)
	if err != nil {
		return fmt.Errorf("replay record %d: %w", rec.Sequence, err)
	}

	e.replaying = true
	_, err = e.Apply(cmd)
	e.replaying = false
	if err != nil {
		return fmt.Errorf("replay record %d (%s): %w", rec.Sequence, rec.Kind, err)
	}
	return nil
}

func isCommandKind(kind string) bool {
	switch kind {
	case KindMarketResolved, KindResolutionAborted, KindDisputeTied:
		return false
	}
	return true
}

func (e *Engine) getMarket(id uuid.UUID) (*market.Market, error) {
	m, ok := e.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMarketNotFound, id)
	}
	return m, nil
}

func (e *Engine) applyParamUpdate(c *command.ParamUpdate) error {
	if err := c.Params.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	// pause state is controlled only by SetPaused
	paused := e.params.Paused
	e.params = c.Params
	e.params.Paused = paused
	return nil
}

// checkMarketInvariants runs after every settlement mutation. A violated
// invariant here means money was created or destroyed; continuing would
// corrupt the log, so this is fatal.
func (e *Engine) checkMarketInvariants(m *market.Market) {
	if m.PoolBalance.Sign() < 0 {
		panic(fmt.Sprintf("FATAL: pool balance negative for market %s: %s", m.ID, m.PoolBalance))
	}
	if m.YesSupply.Sign() < 0 || m.NoSupply.Sign() < 0 {
		panic(fmt.Sprintf("FATAL: negative supply for market %s: yes=%s no=%s", m.ID, m.YesSupply, m.NoSupply))
	}
}

// --- Accessors for the service layer ---

// Sequence returns the next sequence number to assign.
func (e *Engine) Sequence() uint64 { return e.sequence }

// Params returns the current protocol parameters.
func (e *Engine) Params() market.ProtocolParams { return e.params }

// Store exposes read access for query handlers. The service layer must
// hold its serialization lock while reading.
func (e *Engine) Store() *market.Store { return e.store }

// Ledger exposes read access to the withdrawal ledger.
func (e *Engine) Ledger() *payout.Ledger { return e.ledger }

// PublishDrops reports how many records were dropped on the publish
// channel since start.
func (e *Engine) PublishDrops() uint64 { return e.publishDrops }

// DedupSize returns the dedup LRU occupancy.
func (e *Engine) DedupSize() int { return e.dedup.Size() }

// --- Snapshot / restore ---

// SnapshotState is the serializable engine state. Ledger totals are
// recomputed on restore.
type SnapshotState struct {
	Sequence    uint64                       `json:"sequence"`
	Params      market.ProtocolParams        `json:"params"`
	Markets     map[uuid.UUID]*market.Market `json:"markets"`
	Balances    map[uuid.UUID]*big.Int       `json:"balances"`
	CreatorFees map[uuid.UUID]*big.Int       `json:"creator_fees"`
	Processed   []uuid.UUID                  `json:"processed"`
}

// CreateSnapshotState captures current in-memory state for persistence.
// The returned state is a deep copy: the caller may serialize it after
// releasing the engine lock while commands keep applying.
func (e *Engine) CreateSnapshotState() *SnapshotState {
	balances, creatorFees := e.ledger.Snapshot()
	return &SnapshotState{
		Sequence:    e.sequence,
		Params:      e.params,
		Markets:     e.store.Snapshot(),
		Balances:    balances,
		CreatorFees: creatorFees,
		Processed:   e.dedup.Keys(),
	}
}

// RestoreFromSnapshot loads engine state before log replay.
func (e *Engine) RestoreFromSnapshot(snap *SnapshotState) {
	e.sequence = snap.Sequence
	e.params = snap.Params
	e.store.Restore(snap.Markets)
	e.ledger.RestoreSnapshot(snap.Balances, snap.CreatorFees)
	e.dedup.Warm(snap.Processed)
}
