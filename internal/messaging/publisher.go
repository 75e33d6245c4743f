package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/sony/gobreaker"

	"github.com/banking/merchant-risk-service/internal/domain"
	"github.com/banking/merchant-risk-service/internal/pkg/logger"
)

// Publisher emits alert and audit events to Kafka. Sends run behind a
// circuit breaker so a broker outage degrades to dropped events instead of
// blocking the assessment path; both streams are best-effort by contract.
type Publisher struct {
	producer sarama.SyncProducer
	breaker  *gobreaker.CircuitBreaker

	alertsTopic string
	auditTopic  string

	log *logger.Logger
}

// Config holds Kafka publisher settings.
type Config struct {
	Brokers     []string
	AlertsTopic string
	AuditTopic  string
}

// NewPublisher connects a synchronous producer to the given brokers.
func NewPublisher(cfg Config, log *logger.Logger) (*Publisher, error) {
	sc := sarama.NewConfig()
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 3
	sc.Producer.Return.Successes = true
	sc.Producer.Timeout = 5 * time.Second

	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("connecting kafka producer: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "kafka-publisher",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("kafka circuit breaker state changed",
				logger.StringField("breaker", name),
				logger.StringField("from", from.String()),
				logger.StringField("to", to.String()),
			)
		},
	})

	return &Publisher{
		producer:    producer,
		breaker:     breaker,
		alertsTopic: cfg.AlertsTopic,
		auditTopic:  cfg.AuditTopic,
		log:         log.Named("kafka_publisher"),
	}, nil
}

// PublishAlert emits an alert event keyed by merchant ID so all alerts for
// one merchant land on the same partition.
func (p *Publisher) PublishAlert(ctx context.Context, alert *domain.Alert) error {
	return p.publish(ctx, p.alertsTopic, alert.MerchantID, alert)
}

// PublishAudit emits an audit entry keyed by target ID.
func (p *Publisher) PublishAudit(ctx context.Context, entry *domain.AuditEntry) error {
	return p.publish(ctx, p.auditTopic, entry.TargetID, entry)
}

func (p *Publisher) publish(ctx context.Context, topic, key string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", topic, err)
	}

	_, err = p.breaker.Execute(func() (any, error) {
		partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
			Topic: topic,
			Key:   sarama.StringEncoder(key),
			Value: sarama.ByteEncoder(value),
		})
		if err != nil {
			return nil, err
		}
		p.log.Debug("event published",
			logger.StringField("topic", topic),
			logger.Int64Field("offset", offset),
			logger.IntField("partition", int(partition)),
		)
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

// Close shuts down the underlying producer.
func (p *Publisher) Close() error {
	return p.producer.Close()
}
