package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/polygon-dashboard/internal/config"
	"github.com/couchcryptid/polygon-dashboard/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces polygon color snapshots to a Kafka topic.
// It implements dashboard.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured snapshot topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishSnapshots writes all snapshots in a single WriteMessages call. Keys
// are polygon ids, so one polygon's snapshots stay ordered on one partition.
func (w *Writer) PublishSnapshots(ctx context.Context, snaps []domain.ColorSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(snaps))
	for i := range snaps {
		msg, err := serializeToMessage(snaps[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d snapshots: %w", len(msgs), err)
	}
	w.logger.Debug("snapshots published", "topic", w.writer.Topic, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a ColorSnapshot into a Kafka message.
func serializeToMessage(snap domain.ColorSnapshot) (kafkago.Message, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize color snapshot: %w", err)
	}
	headers := []kafkago.Header{
		{Key: "data_source", Value: []byte(snap.DataSourceID)},
		{Key: "published_at", Value: []byte(snap.PublishedAt.Format(time.RFC3339))},
	}
	if snap.Deleted {
		headers = append(headers, kafkago.Header{Key: "deleted", Value: []byte("true")})
	}
	return kafkago.Message{
		Key:     []byte(snap.PolygonID),
		Value:   data,
		Headers: headers,
	}, nil
}
