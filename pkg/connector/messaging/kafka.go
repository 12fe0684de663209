package messaging

import (
	"context"
	"crypto/tls"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/fincore/gateway/pkg/config"
	"github.com/fincore/gateway/pkg/connector/base"
	"github.com/fincore/gateway/pkg/errors"
	"github.com/fincore/gateway/pkg/models"
	"github.com/fincore/gateway/pkg/oplog"
)

const (
	defaultPollTimeout    = 5 * time.Second
	defaultKafkaMaxPoll   = 500
	kafkaProducerTimeout  = 10 * time.Second
	defaultKafkaTestTopic = "__consumer_offsets"
	defaultKafkaClientID  = "fincore-gateway"
)

// kafkaSession is the set of Kafka calls the connector makes.
type kafkaSession interface {
	Publish(msg *sarama.ProducerMessage) (int32, int64, error)
	Poll(ctx context.Context, topic string, max int, timeout time.Duration) ([]*sarama.ConsumerMessage, error)
	Partitions(topic string) ([]int32, error)
	Close() error
}

type kafkaDialer func(brokers []string, group string, cfg *sarama.Config) (kafkaSession, error)

// KafkaConnector consumes and produces Kafka messages. Sync resumes from the
// consumer group's committed offsets and commits what it consumed.
type KafkaConnector struct {
	*Broker
	kafka *kafkaTransport
}

// NewKafkaConnector creates a Kafka connector.
func NewKafkaConnector(name string, cfg config.Values, rec *oplog.Recorder) *KafkaConnector {
	t := &kafkaTransport{cfg: cfg, dial: dialSarama}
	b := newBroker(base.Options{
		Name:        name,
		DefaultName: "KafkaConnector",
		Type:        "kafka",
		Display:     "Kafka cluster",
		Required:    append(append([]string(nil), commonRequired...), "consumer_group"),
		Config:      cfg,
		Recorder:    rec,
	}, "topic", t)
	t.logger = b.Logger()
	return &KafkaConnector{Broker: b, kafka: t}
}

type kafkaTransport struct {
	cfg     config.Values
	dial    kafkaDialer
	session kafkaSession
	logger  *zap.Logger
}

func (t *kafkaTransport) brokers() []string {
	if list := t.cfg.Strings("brokers"); len(list) > 0 {
		return list
	}
	return []string{address(t.cfg)}
}

func (t *kafkaTransport) saramaConfig() (*sarama.Config, error) {
	sc := sarama.NewConfig()
	sc.ClientID = t.cfg.String("client_id", defaultKafkaClientID)

	if v := t.cfg.String("kafka_version", ""); v != "" {
		version, err := sarama.ParseKafkaVersion(v)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid kafka_version")
		}
		sc.Version = version
	}

	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Timeout = kafkaProducerTimeout
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true

	sc.Consumer.Return.Errors = true
	switch strings.ToLower(t.cfg.String("auto_offset_reset", "latest")) {
	case "earliest":
		sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	case "latest":
		sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	default:
		return nil, errors.New(errors.ErrorTypeConfig, "auto_offset_reset must be earliest or latest")
	}
	sc.Consumer.Offsets.AutoCommit.Enable = false

	if t.cfg.Bool("tls", false) {
		sc.Net.TLS.Enable = true
		sc.Net.TLS.Config = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if user := t.cfg.String("sasl_username", ""); user != "" {
		sc.Net.SASL.Enable = true
		sc.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		sc.Net.SASL.User = user
		sc.Net.SASL.Password = t.cfg.String("sasl_password", "")
	}
	return sc, nil
}

func (t *kafkaTransport) open(context.Context) error {
	sc, err := t.saramaConfig()
	if err != nil {
		return err
	}
	brokers := t.brokers()
	session, err := t.dial(brokers, t.cfg.String("consumer_group", ""), sc)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "Failed to connect to Kafka")
	}
	t.session = session
	t.logger.Info("connected to Kafka", zap.Strings("brokers", brokers))
	return nil
}

func (t *kafkaTransport) close(context.Context) error {
	if t.session == nil {
		return nil
	}
	err := t.session.Close()
	t.session = nil
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "Failed to disconnect from Kafka")
	}
	return nil
}

func (t *kafkaTransport) probe(context.Context) (string, error) {
	topic := t.cfg.String("test_topic", defaultKafkaTestTopic)
	partitions, err := t.session.Partitions(topic)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeConnection, "Kafka connection test failed")
	}
	return fmt.Sprintf("Kafka connection test successful (%s has %d partitions)", topic, len(partitions)), nil
}

func (t *kafkaTransport) poll(ctx context.Context, dataType string, filters config.Values) (string, []models.Message, error) {
	topic := filters.String("topic", dataType)
	timeout := filters.Duration("timeout", defaultPollTimeout)
	max := filters.Int("max_messages", defaultKafkaMaxPoll)

	consumed, err := t.session.Poll(ctx, topic, max, timeout)
	if err != nil {
		return topic, nil, errors.Wrap(err, errors.ErrorTypeConnection, "Failed to consume messages")
	}

	msgs := make([]models.Message, 0, len(consumed))
	for _, m := range consumed {
		msgs = append(msgs, models.Message{
			Topic:     m.Topic,
			Partition: m.Partition,
			Offset:    m.Offset,
			Key:       string(m.Key),
			Value:     decodeValue(m.Value),
			Timestamp: m.Timestamp,
		})
	}
	return topic, msgs, nil
}

func (t *kafkaTransport) publish(_ context.Context, payload models.Record, dataType string) (base.Receipt, error) {
	topic := payload.String("topic")
	if topic == "" {
		topic = dataType
	}
	body, err := messageBody(payload)
	if err != nil {
		return base.Receipt{}, err
	}

	msg := &sarama.ProducerMessage{Topic: topic, Value: sarama.ByteEncoder(body)}
	if key := payload.String("key"); key != "" {
		msg.Key = sarama.StringEncoder(key)
	}

	partition, offset, err := t.session.Publish(msg)
	if err != nil {
		return base.Receipt{}, errors.Wrap(err, errors.ErrorTypeConnection, "Failed to send message")
	}
	return base.Receipt{
		Message: "Message sent to topic " + topic,
		Details: map[string]any{"topic": topic, "partition": partition, "offset": offset},
	}, nil
}

// saramaSession holds one client with a sync producer, a consumer and the
// group's offset manager built on it.
type saramaSession struct {
	client   sarama.Client
	producer sarama.SyncProducer
	consumer sarama.Consumer
	offsets  sarama.OffsetManager
}

func dialSarama(brokers []string, group string, cfg *sarama.Config) (kafkaSession, error) {
	client, err := sarama.NewClient(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka client: %w", err)
	}
	s := &saramaSession{client: client}

	if s.producer, err = sarama.NewSyncProducerFromClient(client); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to create sync producer: %w", err)
	}
	if s.consumer, err = sarama.NewConsumerFromClient(client); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}
	if s.offsets, err = sarama.NewOffsetManagerFromClient(group, client); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to create offset manager: %w", err)
	}
	return s, nil
}

func (s *saramaSession) Publish(msg *sarama.ProducerMessage) (int32, int64, error) {
	return s.producer.SendMessage(msg)
}

func (s *saramaSession) Partitions(topic string) ([]int32, error) {
	return s.client.Partitions(topic)
}

// Poll reads each partition from the group's next offset up to the high water
// mark seen at the start of the call, then commits the marked offsets.
func (s *saramaSession) Poll(ctx context.Context, topic string, max int, timeout time.Duration) ([]*sarama.ConsumerMessage, error) {
	partitions, err := s.client.Partitions(topic)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		out     []*sarama.ConsumerMessage
		managed []sarama.PartitionOffsetManager
	)
	defer func() {
		for _, pom := range managed {
			pom.AsyncClose()
		}
	}()

	for _, p := range partitions {
		if len(out) >= max || ctx.Err() != nil {
			break
		}
		pom, err := s.offsets.ManagePartition(topic, p)
		if err != nil {
			return out, err
		}
		managed = append(managed, pom)

		msgs, err := s.pollPartition(ctx, pom, topic, p, max-len(out))
		out = append(out, msgs...)
		if err != nil {
			s.offsets.Commit()
			return out, err
		}
	}

	// marked offsets must be flushed before the partition managers close
	s.offsets.Commit()
	return out, nil
}

func (s *saramaSession) pollPartition(ctx context.Context, pom sarama.PartitionOffsetManager, topic string, partition int32, max int) ([]*sarama.ConsumerMessage, error) {
	next, _ := pom.NextOffset()
	newest, err := s.client.GetOffset(topic, partition, sarama.OffsetNewest)
	if err != nil {
		return nil, err
	}
	if next == sarama.OffsetOldest {
		if next, err = s.client.GetOffset(topic, partition, sarama.OffsetOldest); err != nil {
			return nil, err
		}
	}
	if next == sarama.OffsetNewest || next >= newest {
		return nil, nil
	}

	pc, err := s.consumer.ConsumePartition(topic, partition, next)
	if err != nil {
		return nil, err
	}
	defer pc.AsyncClose()

	var out []*sarama.ConsumerMessage
	for len(out) < max {
		select {
		case m, ok := <-pc.Messages():
			if !ok {
				return out, nil
			}
			out = append(out, m)
			pom.MarkOffset(m.Offset+1, "")
			if m.Offset+1 >= newest {
				return out, nil
			}
		case cerr, ok := <-pc.Errors():
			if ok && cerr != nil {
				return out, cerr
			}
		case <-ctx.Done():
			return out, nil
		}
	}
	return out, nil
}

func (s *saramaSession) Close() error {
	var errs []error
	if s.offsets != nil {
		errs = append(errs, s.offsets.Close())
	}
	if s.consumer != nil {
		errs = append(errs, s.consumer.Close())
	}
	if s.producer != nil {
		errs = append(errs, s.producer.Close())
	}
	if s.client != nil && !s.client.Closed() {
		errs = append(errs, s.client.Close())
	}
	return stderrors.Join(errs...)
}
