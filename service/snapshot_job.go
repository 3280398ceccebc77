package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"batchauction/domain/auction"
	"batchauction/snapshot"
)

var ErrNotEmpty = errors.New("service: restore into a house that already holds state")

// Snapshot copies the whole house. Commands are held off while it runs,
// so the copy matches the journal exactly up to Seq.
func (h *House) Snapshot() *snapshot.Snapshot {
	h.gate.Lock()
	defer h.gate.Unlock()

	fees := h.Fees()
	s := &snapshot.Snapshot{
		Seq:           h.seq.Current(),
		Created:       h.clock.Now(),
		LastAuctionID: h.auctionIDs.Current(),
		Fees:          snapshot.FeeEntry{Numerator: fees.Numerator, Receiver: fees.Receiver},
	}

	for id, identity := range h.registry.Entries() {
		s.Users = append(s.Users, snapshot.UserEntry{ID: id, Identity: identity})
	}
	sort.Slice(s.Users, func(i, j int) bool { return s.Users[i].ID < s.Users[j].ID })

	for _, id := range h.AuctionIDs() {
		sl, err := h.slot(id)
		if err != nil {
			continue
		}
		sl.mu.Lock()
		s.Auctions = append(s.Auctions, snapshot.NewAuctionEntry(sl.a.State()))
		sl.mu.Unlock()
	}
	return s
}

// Restore loads a snapshot into an empty house.
func (h *House) Restore(s *snapshot.Snapshot) error {
	h.gate.Lock()
	defer h.gate.Unlock()

	h.mu.RLock()
	empty := len(h.auctions) == 0
	h.mu.RUnlock()
	if !empty || h.registry.Len() > 0 {
		return ErrNotEmpty
	}

	for _, u := range s.Users {
		h.registry.Restore(u.ID, u.Identity)
	}
	for _, e := range s.Auctions {
		st, err := e.State()
		if err != nil {
			return err
		}
		a, err := auction.FromState(st)
		if err != nil {
			return fmt.Errorf("snapshot: auction %d: %w", e.ID, err)
		}
		h.add(a)
	}

	// a missing snapshot keeps the configured schedule
	if !s.Created.IsZero() {
		h.mu.Lock()
		h.fees = auction.FeeSchedule{Numerator: s.Fees.Numerator, Receiver: s.Fees.Receiver}
		h.mu.Unlock()
	}
	h.auctionIDs.Reset(s.LastAuctionID)
	h.seq.Reset(s.Seq)
	return nil
}

// Recover loads the latest snapshot from snapDir and replays the journal
// in walDir on top of it.
func (h *House) Recover(ctx context.Context, snapDir, walDir string) (uint64, error) {
	s, err := snapshot.Load(snapDir)
	if err != nil {
		return 0, err
	}
	if err := h.Restore(s); err != nil {
		return 0, err
	}
	return h.Replay(ctx, walDir, s.Seq)
}

// WriteSnapshot persists the house, then drops journal segments and
// delivered events the snapshot makes redundant.
func (h *House) WriteSnapshot(w *snapshot.Writer) (uint64, error) {
	h.announce() // retry events the outbox refused earlier

	s := h.Snapshot()
	if err := w.Write(s); err != nil {
		return 0, err
	}

	// Truncate ENTRY WAL after snapshot
	if h.journal != nil {
		if err := h.journal.TruncateBefore(s.Seq); err != nil {
			return s.Seq, err
		}
	}
	// GC EXIT WAL (acked only)
	if h.outbox != nil {
		if err := h.outbox.TruncateAckedUpTo(h.events.Current()); err != nil {
			return s.Seq, err
		}
	}
	return s.Seq, nil
}

func (h *House) StartSnapshotJob(ctx context.Context, w *snapshot.Writer, interval time.Duration) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				seq, err := h.WriteSnapshot(w)
				if err != nil {
					h.logger.Error("snapshot failed", "seq", seq, "err", err)
					continue
				}
				h.logger.Debug("snapshot written", "seq", seq, "dir", w.Dir)
			}
		}
	}()
}
