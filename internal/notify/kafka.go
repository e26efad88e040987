package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaNotifier publishes notices to a Kafka topic, keyed by account ID so
// per-account ordering is preserved. Produce is asynchronous; a failed
// delivery is logged and dropped rather than surfaced to the caller.
type KafkaNotifier struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewKafkaNotifier connects to the given brokers. The caller owns the
// returned notifier and must Close it on shutdown to flush buffered records.
func NewKafkaNotifier(brokers []string, topic string, logger *slog.Logger) (*KafkaNotifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, err
	}
	return &KafkaNotifier{client: client, topic: topic, logger: logger}, nil
}

func (k *KafkaNotifier) Notify(ctx context.Context, n Notice) {
	payload, err := json.Marshal(n)
	if err != nil {
		k.logger.Error("marshal notice", "error", err)
		return
	}
	record := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(n.AccountID.String()),
		Value: payload,
	}
	k.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			k.logger.Error("publish notice",
				"account_id", n.AccountID.String(),
				"kind", string(n.Kind),
				"error", err,
			)
		}
	})
}

// Close flushes pending records and releases the client.
func (k *KafkaNotifier) Close(ctx context.Context) error {
	if err := k.client.Flush(ctx); err != nil {
		return err
	}
	k.client.Close()
	return nil
}
