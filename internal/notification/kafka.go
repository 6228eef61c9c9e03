package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/AstraSyncAI/astrasync-api/internal/registry/models"
)

// kafkaMessage is the wire shape consumed by the mailer.
type kafkaMessage struct {
	JobID     string            `json:"jobId"`
	AgentID   string            `json:"agentId"`
	Recipient string            `json:"recipient"`
	Subject   string            `json:"subject"`
	Template  string            `json:"template"`
	Payload   map[string]string `json:"payload"`
	QueuedAt  time.Time         `json:"queuedAt"`
}

// KafkaPublisher produces notification jobs to a Kafka topic, keyed by
// agent id so one agent's messages stay ordered within a partition.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
}

// NewKafkaPublisher connects to the brokers and ensures the topic exists.
func NewKafkaPublisher(ctx context.Context, brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	if err := ensureTopic(ctx, client, topic); err != nil {
		client.Close()
		return nil, err
	}

	return &KafkaPublisher{client: client, topic: topic}, nil
}

// Publish produces one job synchronously so the relay only marks rows the
// broker has acknowledged.
func (p *KafkaPublisher) Publish(ctx context.Context, job *models.NotificationJob) error {
	value, err := json.Marshal(kafkaMessage{
		JobID:     job.ID.String(),
		AgentID:   job.AgentPublicID.String(),
		Recipient: job.Recipient,
		Subject:   job.Subject,
		Template:  job.Template,
		Payload:   job.Payload,
		QueuedAt:  job.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(job.AgentPublicID.String()),
		Value: value,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce notification: %w", err)
	}
	return nil
}

// Close flushes outstanding records and releases the client.
func (p *KafkaPublisher) Close() {
	p.client.Close()
}

func ensureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	admin := kadm.NewClient(client)
	resp, err := admin.CreateTopic(ctx, 1, 1, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, resp.Err)
	}
	return nil
}

var _ Publisher = (*KafkaPublisher)(nil)
