package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"logscrub/internal/config"
	"logscrub/internal/constants"
	"logscrub/internal/logger"
	"logscrub/pkg/logging"
	"logscrub/pkg/metrics"
	"logscrub/pkg/models"
	"logscrub/pkg/tracing"
)

type KafkaProducer struct {
	writer *kafka.Writer
	logger logger.Logger
}

func NewKafkaProducer(cfg config.KafkaConfig, log logger.Logger) *KafkaProducer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: constants.KafkaBatchTimeout,
		WriteTimeout: constants.KafkaWriteTimeout,
		Async:        false,
	}
	return &KafkaProducer{writer: w, logger: log}
}

// Publish serializes env and writes it keyed by tenant, so deliveries
// for one tenant stay ordered within a partition.
func (p *KafkaProducer) Publish(ctx context.Context, topic string, env models.Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	headers := tracing.InjectTraceContext(ctx, []kafka.Header{})

	start := time.Now()
	err = p.writer.WriteMessages(ctx,
		kafka.Message{
			Topic:   topic,
			Key:     []byte(env.TenantID),
			Value:   body,
			Headers: headers,
			Time:    time.Now(),
		},
	)
	p.observeWrite(ctx, topic, start, err)

	if err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}

	return nil
}

func (p *KafkaProducer) PublishRaw(ctx context.Context, topic string, key string, value []byte, headers map[string]string) error {
	kafkaHeaders := make([]kafka.Header, 0, len(headers))
	for k, v := range headers {
		kafkaHeaders = append(kafkaHeaders, kafka.Header{Key: k, Value: []byte(v)})
	}
	kafkaHeaders = tracing.InjectTraceContext(ctx, kafkaHeaders)

	start := time.Now()
	err := p.writer.WriteMessages(ctx,
		kafka.Message{
			Topic:   topic,
			Key:     []byte(key),
			Value:   value,
			Headers: kafkaHeaders,
			Time:    time.Now(),
		},
	)
	p.observeWrite(ctx, topic, start, err)

	if err != nil {
		return fmt.Errorf("failed to write kafka message: %w", err)
	}

	return nil
}

func (p *KafkaProducer) observeWrite(ctx context.Context, topic string, start time.Time, err error) {
	service := logging.GetServiceName(ctx)
	if service == "" {
		service = "unknown"
	}
	metrics.KafkaWriteDuration.WithLabelValues(service, topic).Observe(float64(time.Since(start).Milliseconds()))
	if err == nil {
		metrics.KafkaMessagesWrittenTotal.WithLabelValues(service, topic).Inc()
	}
}

func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}

type KafkaConsumer struct {
	cfg         config.KafkaConfig
	wg          sync.WaitGroup
	reader      *kafka.Reader
	logger      logger.Logger
	dlqProducer Producer
	serviceName string
}

func NewKafkaConsumer(cfg config.KafkaConfig, log logger.Logger) *KafkaConsumer {
	consumer := &KafkaConsumer{
		cfg:         cfg,
		logger:      log,
		serviceName: "unknown",
	}

	if cfg.DLQTopic != "" {
		consumer.dlqProducer = NewKafkaProducer(cfg, log)
	}

	return consumer
}

func (c *KafkaConsumer) SetServiceName(name string) {
	c.serviceName = name
}

func (c *KafkaConsumer) newReader(topic string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  c.cfg.Brokers,
		GroupID:  c.cfg.GroupID,
		Topic:    topic,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
}

// Consume fetches envelopes from topic and runs handler under the
// redelivery contract. A delivery is committed only once it was either
// acknowledged by the handler or durably routed to the dead-letter
// topic; a failed dead-letter write leaves the offset uncommitted so
// the message surfaces again.
func (c *KafkaConsumer) Consume(ctx context.Context, topic string, handler HandlerFunc) error {
	c.logger.Infow("Creating Kafka reader",
		"topic", topic,
		"brokers", c.cfg.Brokers,
		"group_id", c.cfg.GroupID,
		"service_name", c.serviceName,
	)

	c.reader = c.newReader(topic)
	policy := retryPolicy(c.cfg.Retry)
	ackDeadline := c.cfg.AckDeadline
	if ackDeadline <= 0 {
		ackDeadline = constants.DefaultAckDeadline
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		consumeCtx := logging.WithServiceName(ctx, c.serviceName)
		c.logger.InfowCtx(consumeCtx, "Started consuming",
			"topic", topic,
		)

		for {
			m, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					c.logger.InfowCtx(consumeCtx, "Stopped consuming",
						"topic", topic,
						"reason", "context canceled",
					)
					return
				}
				c.logger.ErrorwCtx(consumeCtx, "Error fetching kafka message",
					"error", err,
					"topic", topic,
				)
				time.Sleep(time.Second)
				continue
			}
			metrics.KafkaMessagesReadTotal.WithLabelValues(c.serviceName, topic).Inc()

			var env models.Envelope
			if err := json.Unmarshal(m.Value, &env); err != nil {
				c.logger.ErrorwCtx(consumeCtx, "Failed to unmarshal envelope, routing to DLQ",
					"error", err,
					"topic", topic,
				)
				c.deadLetterAndCommit(consumeCtx, m, topic, constants.DLQReasonMalformedPayload, err.Error(), 0)
				continue
			}

			msgCtx, span := tracing.StartSpanFromKafkaMessage(ctx, "kafka.consume", m.Headers)
			msgCtx = logging.WithTenantID(msgCtx, env.TenantID)
			msgCtx = logging.WithLogID(msgCtx, env.LogID)
			msgCtx = logging.WithServiceName(msgCtx, c.serviceName)

			failure := deliver(msgCtx, env, handler, policy, ackDeadline, func(attempt int, err error, nextDelay time.Duration) {
				metrics.RetryAttemptsTotal.WithLabelValues(c.serviceName, topic).Inc()
				c.logger.WarnwCtx(msgCtx, "Retrying delivery",
					"attempt", attempt,
					"max_attempts", policy.MaxAttempts,
					"next_delay", nextDelay,
					"error", err,
					"topic", topic,
				)
			})
			span.End()

			if failure == nil {
				if err := c.reader.CommitMessages(ctx, m); err != nil {
					c.logger.ErrorwCtx(msgCtx, "Failed to commit message",
						"error", err,
						"topic", topic,
					)
				}
				continue
			}

			c.logger.ErrorwCtx(msgCtx, "Delivery failed, routing to DLQ",
				"error", failure.err,
				"reason", failure.reason,
				"attempts", failure.attempts,
				"topic", topic,
			)
			c.deadLetterAndCommit(msgCtx, m, topic, failure.reason, failure.err.Error(), failure.attempts)
		}
	}()

	<-ctx.Done()
	return ctx.Err()
}

// ConsumeRaw delivers undecoded messages to handler. It is meant for
// topics whose payloads have no guaranteed shape, such as the
// dead-letter topic. Offsets are committed only after the handler
// succeeds.
func (c *KafkaConsumer) ConsumeRaw(ctx context.Context, topic string, handler RawHandlerFunc) error {
	c.logger.Infow("Creating Kafka reader",
		"topic", topic,
		"brokers", c.cfg.Brokers,
		"group_id", c.cfg.GroupID,
		"service_name", c.serviceName,
	)

	c.reader = c.newReader(topic)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		consumeCtx := logging.WithServiceName(ctx, c.serviceName)
		c.logger.InfowCtx(consumeCtx, "Started consuming",
			"topic", topic,
		)

		for {
			m, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					c.logger.InfowCtx(consumeCtx, "Stopped consuming",
						"topic", topic,
						"reason", "context canceled",
					)
					return
				}
				c.logger.ErrorwCtx(consumeCtx, "Error fetching kafka message",
					"error", err,
					"topic", topic,
				)
				time.Sleep(time.Second)
				continue
			}
			metrics.KafkaMessagesReadTotal.WithLabelValues(c.serviceName, topic).Inc()

			d := Delivery{
				Topic:   m.Topic,
				Key:     string(m.Key),
				Value:   m.Value,
				Headers: make(map[string]string, len(m.Headers)),
				Time:    m.Time,
			}
			for _, h := range m.Headers {
				d.Headers[h.Key] = string(h.Value)
			}

			if err := handler(consumeCtx, d); err != nil {
				c.logger.ErrorwCtx(consumeCtx, "Raw handler failed, leaving message uncommitted",
					"error", err,
					"topic", topic,
				)
				time.Sleep(time.Second)
				continue
			}

			if err := c.reader.CommitMessages(ctx, m); err != nil {
				c.logger.ErrorwCtx(consumeCtx, "Failed to commit message",
					"error", err,
					"topic", topic,
				)
			}
		}
	}()

	<-ctx.Done()
	return ctx.Err()
}

// deadLetterAndCommit forwards the original message bytes to the DLQ
// topic with failure context in the headers, then commits the source
// offset. The offset stays uncommitted when the DLQ write fails so
// nothing is dropped silently.
func (c *KafkaConsumer) deadLetterAndCommit(ctx context.Context, m kafka.Message, sourceTopic, reason, cause string, attempts int) {
	if c.dlqProducer == nil || c.cfg.DLQTopic == "" {
		c.logger.WarnwCtx(ctx, "No DLQ configured, committing message to avoid blocking",
			"topic", sourceTopic,
			"reason", reason,
		)
		_ = c.reader.CommitMessages(ctx, m)
		return
	}

	headers := map[string]string{
		constants.HeaderDLQReason:       reason,
		constants.HeaderDLQSourceTopic:  sourceTopic,
		constants.HeaderDLQAttempts:     strconv.Itoa(attempts),
		constants.HeaderDLQDeadLettered: time.Now().UTC().Format(time.RFC3339),
	}
	if cause != "" {
		headers[constants.HeaderDLQError] = cause
	}

	if err := c.dlqProducer.PublishRaw(ctx, c.cfg.DLQTopic, string(m.Key), m.Value, headers); err != nil {
		c.logger.ErrorwCtx(ctx, "Failed to publish to DLQ, leaving message uncommitted",
			"error", err,
			"topic", sourceTopic,
			"dlq_topic", c.cfg.DLQTopic,
		)
		return
	}

	metrics.DLQMessagesTotal.WithLabelValues(c.serviceName, sourceTopic, reason).Inc()
	c.logger.InfowCtx(ctx, "Message sent to DLQ",
		"source_topic", sourceTopic,
		"dlq_topic", c.cfg.DLQTopic,
		"reason", reason,
	)

	if err := c.reader.CommitMessages(ctx, m); err != nil {
		c.logger.ErrorwCtx(ctx, "Failed to commit message after DLQ routing",
			"error", err,
			"topic", sourceTopic,
		)
	}
}

func (c *KafkaConsumer) Close() error {
	var err error
	if c.reader != nil {
		err = c.reader.Close()
	}
	if c.dlqProducer != nil {
		if closeErr := c.dlqProducer.Close(); closeErr != nil {
			if err == nil {
				err = closeErr
			}
		}
	}
	c.wg.Wait()
	return err
}
