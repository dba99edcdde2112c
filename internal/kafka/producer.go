package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-timeline/internal/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes event change notifications to a single topic.
type Producer struct {
	Writer messageWriter
	Topic  string
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &Producer{Writer: writer, Topic: topic}
}

// Publish sends note keyed by event id so changes to one event stay ordered.
func (p *Producer) Publish(ctx context.Context, note models.ChangeNotification) error {
	value, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("marshal %s notification: %w", note.Action, err)
	}

	key := note.Action
	if note.EventID != 0 {
		key = strconv.FormatInt(note.EventID, 10)
	}

	err = p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "action", Value: []byte(note.Action)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s notification to %s: %w", note.Action, p.Topic, err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
