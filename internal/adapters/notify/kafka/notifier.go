// Package kafka publica los eventos del orquestador en un topic de Kafka.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"reconx/internal/core/ports"
	"reconx/internal/platform/logx"
	"reconx/internal/platform/telemetry"
)

// Ensure Notifier implements ports.Notifier at compile time.
var _ ports.Notifier = (*Notifier)(nil)

// ErrClosed se retorna al notificar tras Close.
var ErrClosed = errors.New("kafka notifier closed")

const eventTypeHeader = "event_type"

// Config configura la conexión al broker.
type Config struct {
	Brokers  []string
	Topic    string
	ClientID string

	// RetryFor tiempo máximo reintentando la conexión inicial
	RetryFor time.Duration
}

// NewSaramaConfig retorna la configuración de productor usada por el notifier.
func NewSaramaConfig(clientID string) *sarama.Config {
	config := sarama.NewConfig()
	if clientID != "" {
		config.ClientID = clientID
	}

	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Return.Successes = true
	config.Producer.Partitioner = sarama.NewHashPartitioner
	config.Producer.Retry.Max = 3

	config.Version = sarama.V3_6_0_0
	return config
}

// Notifier envía cada evento como un mensaje JSON con clave = target, de modo que
// los eventos de un mismo objetivo caen en la misma partición y conservan su orden.
type Notifier struct {
	producer sarama.SyncProducer
	topic    string
	tracer   trace.Tracer
	logger   logx.Logger

	mu     sync.RWMutex
	closed bool
}

// New crea un notifier sobre un productor ya construido.
func New(producer sarama.SyncProducer, topic string, tracer trace.Tracer, logger logx.Logger) *Notifier {
	if tracer == nil {
		tracer = telemetry.NoopTracer()
	}
	if logger == nil {
		logger = logx.NewNop()
	}
	return &Notifier{
		producer: producer,
		topic:    topic,
		tracer:   tracer,
		logger:   logger.With("component", "kafka-notifier", "topic", topic),
	}
}

// Connect crea el productor con backoff exponencial; el broker puede tardar en aceptar
// conexiones durante el arranque.
func Connect(ctx context.Context, cfg Config, tracer trace.Tracer, logger logx.Logger) (*Notifier, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka: no topic configured")
	}
	if logger == nil {
		logger = logx.NewNop()
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = time.Second
	expBackoff.MaxElapsedTime = cfg.RetryFor
	if expBackoff.MaxElapsedTime <= 0 {
		expBackoff.MaxElapsedTime = 30 * time.Second
	}

	saramaCfg := NewSaramaConfig(cfg.ClientID)

	var producer sarama.SyncProducer
	operation := func() error {
		p, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
		if err != nil {
			logger.Warn("kafka not ready", "brokers", cfg.Brokers, "error", err.Error())
			return fmt.Errorf("creating producer: %w", err)
		}
		producer = p
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(expBackoff, ctx)); err != nil {
		return nil, fmt.Errorf("failed to connect to kafka after retries: %w", err)
	}

	return New(producer, cfg.Topic, tracer, logger), nil
}

// Notify publica el evento y espera la confirmación del broker.
func (n *Notifier) Notify(ctx context.Context, event ports.Event) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return ErrClosed
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	attrs := []attribute.KeyValue{
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination.name", n.topic),
		attribute.String("event.type", string(event.Type)),
	}

	return telemetry.ExecuteAndTrace(ctx, n.tracer, "kafka.produce", attrs, func(ctx context.Context) error {
		msg := &sarama.ProducerMessage{
			Topic: n.topic,
			Key:   sarama.StringEncoder(event.Target),
			Value: sarama.ByteEncoder(value),
			Headers: []sarama.RecordHeader{
				{Key: []byte(eventTypeHeader), Value: []byte(event.Type)},
			},
		}
		injectTraceContext(ctx, msg)

		partition, offset, err := n.producer.SendMessage(msg)
		if err != nil {
			return fmt.Errorf("sending %s event: %w", event.Type, err)
		}

		n.logger.Debug("event published",
			"type", string(event.Type),
			"target", event.Target,
			"partition", partition,
			"offset", offset,
		)
		return nil
	})
}

// Close cierra el productor. Es idempotente.
func (n *Notifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	return n.producer.Close()
}

// headerCarrier adapta las cabeceras del mensaje a propagation.TextMapCarrier.
type headerCarrier struct {
	headers []sarama.RecordHeader
}

func (c *headerCarrier) Get(key string) string {
	for _, h := range c.headers {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *headerCarrier) Set(key, value string) {
	c.headers = append(c.headers, sarama.RecordHeader{Key: []byte(key), Value: []byte(value)})
}

func (c *headerCarrier) Keys() []string {
	out := make([]string, len(c.headers))
	for i, h := range c.headers {
		out[i] = string(h.Key)
	}
	return out
}

func injectTraceContext(ctx context.Context, msg *sarama.ProducerMessage) {
	carrier := &headerCarrier{headers: msg.Headers}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	msg.Headers = carrier.headers
}
