package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"batchauction/domain/auction"
	"batchauction/domain/registry"
	"batchauction/infra/ledger"
	"batchauction/infra/log"
	"batchauction/infra/sequence"
	entrywal "batchauction/infra/wal/entry"
	exitwal "batchauction/infra/wal/exit"
)

// Journal is the command log the house is rebuilt from.
type Journal interface {
	Append(r *entrywal.Record) error
	TruncateBefore(seq uint64) error
}

// Outbox stores events until the broadcaster delivers them.
type Outbox interface {
	PutNew(recs ...exitwal.ExitRecord) error
	LastSeq() (uint64, error)
	TruncateAckedUpTo(seq uint64) error
}

var (
	_ Journal = (*entrywal.WAL)(nil)
	_ Outbox  = (*exitwal.ExitWAL)(nil)
)

type Config struct {
	// Owner is the only identity allowed to change the fee schedule.
	Owner        string
	Fees         auction.FeeSchedule
	MaxScanSteps int
}

type Option func(*House)

func WithClock(c Clock) Option {
	return func(h *House) { h.clock = c }
}

func WithLogger(l log.Logger) Option {
	return func(h *House) { h.logger = l }
}

func WithMetrics(m *Metrics) Option {
	return func(h *House) { h.metrics = m }
}

type slot struct {
	mu sync.Mutex
	a  *auction.Auction
}

/*
House is the ONLY write entry point into the system.

Lock order: gate, then initMu, then an auction slot, then regMu, then
commitMu.
Commands hold gate shared; snapshots hold it exclusively so that the
journal sequence and the copied state agree.
*/
type House struct {
	cfg      Config
	ledger   auction.Ledger
	journal  Journal
	outbox   Outbox
	registry *registry.Registry
	clock    Clock
	logger   log.Logger
	metrics  *Metrics

	gate   sync.RWMutex
	initMu sync.Mutex
	// regMu is held from offering a fresh handle until it is bound or
	// dropped.
	regMu sync.Mutex

	mu       sync.RWMutex
	auctions map[uint64]*slot
	fees     auction.FeeSchedule

	commitMu   sync.Mutex
	unsent     []exitwal.ExitRecord
	auctionIDs *sequence.Sequencer
	seq        *sequence.Sequencer
	events     *sequence.Sequencer
}

// New wires the house. journal and outbox may be nil, in which case
// commands are neither journaled nor announced.
func New(cfg Config, l auction.Ledger, journal Journal, outbox Outbox, opts ...Option) (*House, error) {
	if err := cfg.Fees.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxScanSteps <= 0 {
		cfg.MaxScanSteps = auction.DefaultMaxScanSteps
	}

	h := &House{
		cfg:        cfg,
		ledger:     l,
		journal:    journal,
		outbox:     outbox,
		registry:   registry.New(),
		clock:      SystemClock{},
		logger:     log.NewNopLogger(),
		metrics:    NopMetrics(),
		auctions:   make(map[uint64]*slot),
		fees:       cfg.Fees,
		auctionIDs: sequence.New(0),
		seq:        sequence.New(0),
		events:     sequence.New(0),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("module", "house")

	if outbox != nil {
		last, err := outbox.LastSeq()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrOutbox, err)
		}
		h.events.Reset(last)
	}
	return h, nil
}

// Registry exposes the user handle table.
func (h *House) Registry() *registry.Registry {
	return h.registry
}

func (h *House) Fees() auction.FeeSchedule {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.fees
}

// ------------------------------------------------
// AUCTION LOOKUP
// ------------------------------------------------

func (h *House) slot(id uint64) (*slot, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s, ok := h.auctions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownAuction, id)
	}
	return s, nil
}

// withAuction runs fn with the auction locked.
func (h *House) withAuction(id uint64, fn func(a *auction.Auction) error) error {
	s, err := h.slot(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.a)
}

// add hosts an auction whose creation is already journaled.
func (h *House) add(a *auction.Auction) {
	a.SetMaxScanSteps(h.cfg.MaxScanSteps)
	h.mu.Lock()
	h.auctions[a.ID] = &slot{a: a}
	h.mu.Unlock()
}

// participant resolves caller to its handle. A caller seen for the first
// time is offered the next free handle without binding it: fresh is true
// and the caller must bind it once its command committed, then call
// release. Until release no other command can hand out that handle.
func (h *House) participant(caller string) (p auction.Participant, fresh bool, release func(), err error) {
	if caller == "" {
		return auction.Participant{}, false, nil, auction.ErrInvalidArguments
	}
	if id, ok := h.registry.Lookup(caller); ok {
		return auction.Participant{ID: id, Identity: caller}, false, func() {}, nil
	}

	h.regMu.Lock()
	if id, ok := h.registry.Lookup(caller); ok {
		h.regMu.Unlock()
		return auction.Participant{ID: id, Identity: caller}, false, func() {}, nil
	}
	return auction.Participant{ID: h.registry.NextID(), Identity: caller}, true, h.regMu.Unlock, nil
}

// bind makes a fresh handle permanent after the command that introduced it
// committed, and returns the event announcing it.
func (h *House) bind(p auction.Participant) event {
	h.registry.Restore(p.ID, p.Identity)
	h.metrics.Users.Set(float64(h.registry.Len()))
	return event{typ: EventNewUser, payload: NewUser{UserID: p.ID, Identity: p.Identity}}
}

// ------------------------------------------------
// COMMIT
// ------------------------------------------------

// record appends cmd to the journal. The sequence only moves on success.
func (h *House) record(typ entrywal.RecordType, now time.Time, cmd *entrywal.Command) error {
	if h.journal == nil {
		return nil
	}
	h.commitMu.Lock()
	defer h.commitMu.Unlock()

	rec := entrywal.NewRecord(typ, h.seq.Current()+1, now, cmd.Marshal())
	if err := h.journal.Append(rec); err != nil {
		h.metrics.PersistFailures.With("target", "journal").Add(1)
		h.logger.Error("journal append failed", "type", typ, "seq", rec.Seq, "err", err)
		return fmt.Errorf("%w: %v", ErrJournal, err)
	}
	h.seq.Next()
	return nil
}

// journaled is the ledger handed to the domain for one command. The domain
// calls it once, after every check passed and before it mutates anything,
// so the command is journaled at exactly that point. A journal failure
// reverses the transfers and fails the call, which leaves the auction
// untouched.
type journaled struct {
	h   *House
	typ entrywal.RecordType
	now time.Time
	cmd *entrywal.Command
}

func (h *House) journaled(typ entrywal.RecordType, now time.Time, cmd *entrywal.Command) *journaled {
	return &journaled{h: h, typ: typ, now: now, cmd: cmd}
}

func (j *journaled) Execute(ctx context.Context, transfers ...auction.Transfer) error {
	if err := j.h.ledger.Execute(ctx, transfers...); err != nil {
		return err
	}
	if err := j.h.record(j.typ, j.now, j.cmd); err != nil {
		j.h.reverse(ctx, transfers)
		return err
	}
	return nil
}

// reverse undoes transfers that were applied for a command that could not
// be journaled.
func (h *House) reverse(ctx context.Context, transfers []auction.Transfer) {
	if len(transfers) == 0 {
		return
	}
	undo := make([]auction.Transfer, 0, len(transfers))
	for i := len(transfers) - 1; i >= 0; i-- {
		t := transfers[i]
		if t.Kind == auction.Deposit {
			t.Kind = auction.Withdraw
		} else {
			t.Kind = auction.Deposit
		}
		undo = append(undo, t)
	}
	if err := h.ledger.Execute(context.WithoutCancel(ctx), undo...); err != nil {
		h.metrics.PersistFailures.With("target", "ledger").Add(1)
		h.logger.Error("transfer reversal failed", "transfers", len(undo), "err", err)
	}
}

// announce queues the events of a committed command for the broadcaster.
// The command already took effect, so an outbox failure is not returned:
// the events stay in memory and go out ahead of the next batch.
func (h *House) announce(events ...event) {
	if h.outbox == nil {
		return
	}
	h.commitMu.Lock()
	defer h.commitMu.Unlock()

	for _, e := range events {
		payload, err := json.Marshal(e.payload)
		if err != nil {
			h.logger.Error("event encoding failed", "type", e.typ, "err", err)
			continue
		}
		h.unsent = append(h.unsent, exitwal.ExitRecord{
			Seq:       h.events.Next(),
			ID:        uuid.New(),
			Type:      e.typ,
			AuctionID: e.auctionID,
			Payload:   payload,
		})
	}
	if len(h.unsent) == 0 {
		return
	}

	if err := h.outbox.PutNew(h.unsent...); err != nil {
		h.metrics.PersistFailures.With("target", "outbox").Add(1)
		h.logger.Error("outbox write failed", "events", len(h.unsent), "err", err)
		return
	}
	h.unsent = nil
}

// Unsent is the number of events waiting for a failed outbox to recover.
func (h *House) Unsent() int {
	h.commitMu.Lock()
	defer h.commitMu.Unlock()
	return len(h.unsent)
}

func (h *House) observe(command string, start time.Time, err *error) {
	status := "ok"
	if *err != nil {
		status = "error"
		h.logger.Debug("command rejected", "command", command, "err", *err)
	}
	h.metrics.Commands.With("command", command, "status", status).Add(1)
	h.metrics.CommandDuration.With("command", command).Observe(time.Since(start).Seconds())
}

// replayLedger stands in for custody while replaying: transfers already
// happened the first time round.
var replayLedger auction.Ledger = ledger.Discard{}
