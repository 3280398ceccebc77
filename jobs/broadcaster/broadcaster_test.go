package broadcaster

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/require"

	"batchauction/infra/log"
	exitwal "batchauction/infra/wal/exit"
)

func setup(t *testing.T, cfg Config) (*exitwal.ExitWAL, *mocks.SyncProducer, *Broadcaster) {
	t.Helper()
	w, err := exitwal.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	producer := mocks.NewSyncProducer(t, sarama.NewConfig())
	pub := NewSaramaPublisherWithProducer(producer, "auctions")
	return w, producer, New(w, pub, cfg, log.NewNopLogger())
}

func states(t *testing.T, w *exitwal.ExitWAL, seqs ...uint64) []exitwal.ExitState {
	t.Helper()
	out := make([]exitwal.ExitState, 0, len(seqs))
	for _, s := range seqs {
		r, err := w.Get(s)
		require.NoError(t, err)
		out = append(out, r.State)
	}
	return out
}

func TestReplayOncePublishesInOrder(t *testing.T) {
	w, producer, b := setup(t, Config{})
	require.NoError(t, w.PutNew(
		exitwal.ExitRecord{Seq: 1, Type: "AuctionInitiated", AuctionID: 1, Payload: []byte(`{}`)},
		exitwal.ExitRecord{Seq: 2, Type: "NewSellOrder", AuctionID: 1, Payload: []byte(`{}`)},
	))

	var keys []string
	check := func(m *sarama.ProducerMessage) error {
		k, _ := m.Key.Encode()
		keys = append(keys, string(k))
		return nil
	}
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(check)
	producer.ExpectSendMessageAndSucceed()

	sent, err := b.ReplayOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, sent)
	require.Equal(t, []string{"1"}, keys)
	require.Equal(t, []exitwal.ExitState{exitwal.StateAcked, exitwal.StateAcked}, states(t, w, 1, 2))

	// nothing left to send
	sent, err = b.ReplayOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, sent)
	require.NoError(t, b.Close())
}

func TestReplayOnceStopsAtFirstFailure(t *testing.T) {
	w, producer, b := setup(t, Config{})
	require.NoError(t, w.PutNew(exitwal.ExitRecord{Seq: 1}, exitwal.ExitRecord{Seq: 2}))

	producer.ExpectSendMessageAndFail(errors.New("broker unavailable"))
	sent, err := b.ReplayOnce(context.Background())
	require.ErrorIs(t, err, errDeliveryFailed)
	require.Zero(t, sent)
	require.Equal(t, []exitwal.ExitState{exitwal.StateFailed, exitwal.StateNew}, states(t, w, 1, 2))

	producer.ExpectSendMessageAndSucceed()
	producer.ExpectSendMessageAndSucceed()
	sent, err = b.ReplayOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, sent)
	require.NoError(t, b.Close())
}

func TestReplayOnceParksExhaustedRecords(t *testing.T) {
	w, producer, b := setup(t, Config{MaxRetries: 1})
	require.NoError(t, w.PutNew(exitwal.ExitRecord{Seq: 1}, exitwal.ExitRecord{Seq: 2}))

	producer.ExpectSendMessageAndFail(errors.New("poison"))
	_, err := b.ReplayOnce(context.Background())
	require.Error(t, err)

	producer.ExpectSendMessageAndSucceed()
	sent, err := b.ReplayOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, sent)
	require.Equal(t, []exitwal.ExitState{exitwal.StateFailed, exitwal.StateAcked}, states(t, w, 1, 2))
	require.NoError(t, b.Close())
}

func TestRunStopsOnCancel(t *testing.T) {
	_, _, b := setup(t, Config{Interval: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	require.NoError(t, b.Close())
}
