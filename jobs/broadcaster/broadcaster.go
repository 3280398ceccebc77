package broadcaster

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/IBM/sarama"

	"batchauction/infra/log"
	exitwal "batchauction/infra/wal/exit"
)

// Publisher delivers one event to the message bus.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte, headers map[string]string) error
	Close() error
}

// Outbox is the part of the exit WAL the broadcaster drives.
type Outbox interface {
	ScanPending(fn func(exitwal.ExitRecord) error) error
	MarkSent(seq uint64) error
	MarkAcked(seq uint64) error
	MarkFailed(seq uint64) error
}

var _ Outbox = (*exitwal.ExitWAL)(nil)

// ------------------------------------------------
// SARAMA PUBLISHER
// ------------------------------------------------

type SaramaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewSaramaPublisher(brokers []string, topic string) (*SaramaPublisher, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return NewSaramaPublisherWithProducer(producer, topic), nil
}

func NewSaramaPublisherWithProducer(p sarama.SyncProducer, topic string) *SaramaPublisher {
	return &SaramaPublisher{producer: p, topic: topic}
}

func (p *SaramaPublisher) Publish(_ context.Context, key, value []byte, headers map[string]string) error {
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.ByteEncoder(key),
		Value: sarama.ByteEncoder(value),
	}
	for k, v := range headers {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}
	_, _, err := p.producer.SendMessage(msg)
	return err
}

func (p *SaramaPublisher) Close() error {
	return p.producer.Close()
}

// ------------------------------------------------
// BROADCASTER
// ------------------------------------------------

type Config struct {
	Interval time.Duration
	// MaxRetries parks a record as FAILED once reached. Zero retries
	// forever.
	MaxRetries uint32
}

// Broadcaster drains the outbox into a Publisher, oldest event first.
type Broadcaster struct {
	outbox Outbox
	pub    Publisher
	cfg    Config
	logger log.Logger
}

func New(outbox Outbox, pub Publisher, cfg Config, logger log.Logger) *Broadcaster {
	if cfg.Interval <= 0 {
		cfg.Interval = 250 * time.Millisecond
	}
	return &Broadcaster{
		outbox: outbox,
		pub:    pub,
		cfg:    cfg,
		logger: logger.With("module", "broadcaster"),
	}
}

// ------------------------------------------------
// START LOOP
// ------------------------------------------------

// Run publishes until ctx is cancelled.
func (b *Broadcaster) Run(ctx context.Context) {
	b.logger.Info("started", "interval", b.cfg.Interval.String())

	ticker := time.NewTicker(b.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("stopped")
			return
		case <-ticker.C:
			if _, err := b.ReplayOnce(ctx); err != nil && !errors.Is(err, errDeliveryFailed) {
				b.logger.Error("outbox scan failed", "err", err)
			}
		}
	}
}

// ------------------------------------------------
// REPLAY LOGIC
// ------------------------------------------------

var errDeliveryFailed = errors.New("broadcaster: delivery failed")

// ReplayOnce makes one pass over pending records. It stops at the first
// failed delivery so later events never overtake earlier ones.
func (b *Broadcaster) ReplayOnce(ctx context.Context) (int, error) {
	sent := 0
	err := b.outbox.ScanPending(func(rec exitwal.ExitRecord) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if b.cfg.MaxRetries > 0 && rec.State == exitwal.StateFailed && rec.Retries >= b.cfg.MaxRetries {
			return nil
		}

		if err := b.outbox.MarkSent(rec.Seq); err != nil {
			return err
		}

		headers := map[string]string{
			"event_id": rec.ID.String(),
			"type":     rec.Type,
			"seq":      strconv.FormatUint(rec.Seq, 10),
		}
		key := []byte(strconv.FormatUint(rec.AuctionID, 10))
		if err := b.pub.Publish(ctx, key, rec.Payload, headers); err != nil {
			b.logger.Error("publish failed", "seq", rec.Seq, "type", rec.Type, "retries", rec.Retries+1, "err", err)
			if mErr := b.outbox.MarkFailed(rec.Seq); mErr != nil {
				return mErr
			}
			return errDeliveryFailed
		}

		sent++
		b.logger.Debug("published", "seq", rec.Seq, "type", rec.Type, "auction", rec.AuctionID)
		return b.outbox.MarkAcked(rec.Seq)
	})
	return sent, err
}

// ------------------------------------------------
// SHUTDOWN
// ------------------------------------------------

func (b *Broadcaster) Close() error {
	return b.pub.Close()
}
