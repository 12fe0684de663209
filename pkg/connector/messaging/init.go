package messaging

import (
	"github.com/fincore/gateway/pkg/config"
	"github.com/fincore/gateway/pkg/connector/core"
	"github.com/fincore/gateway/pkg/connector/registry"
	"github.com/fincore/gateway/pkg/oplog"
)

func init() {
	registry.MustRegister("kafka", func(cfg *config.ConnectorConfig, rec *oplog.Recorder) (core.Connector, error) {
		return NewKafkaConnector(cfg.Name, cfg.Data, rec), nil
	})
	registry.MustRegister("rabbitmq", func(cfg *config.ConnectorConfig, rec *oplog.Recorder) (core.Connector, error) {
		return NewRabbitMQConnector(cfg.Name, cfg.Data, rec), nil
	})
	registry.MustRegister("activemq", func(cfg *config.ConnectorConfig, rec *oplog.Recorder) (core.Connector, error) {
		return NewActiveMQConnector(cfg.Name, cfg.Data, rec), nil
	})

	capabilities := []string{"connect", "test_connection", "sync_data", "send_data", "message_handlers"}
	_ = registry.RegisterConnectorInfo(&registry.ConnectorInfo{
		Type:           "kafka",
		Description:    "Apache Kafka producer and consumer group",
		Version:        "1.0.0",
		RequiredFields: []string{"host", "port", "messaging_type", "consumer_group"},
		Capabilities:   capabilities,
	})
	_ = registry.RegisterConnectorInfo(&registry.ConnectorInfo{
		Type:           "rabbitmq",
		Description:    "RabbitMQ queues over AMQP 0-9-1 with publisher confirms",
		Version:        "1.0.0",
		RequiredFields: []string{"host", "port", "messaging_type", "username", "password"},
		Capabilities:   capabilities,
	})
	_ = registry.RegisterConnectorInfo(&registry.ConnectorInfo{
		Type:           "activemq",
		Description:    "ActiveMQ queues and topics over STOMP",
		Version:        "1.0.0",
		RequiredFields: []string{"host", "port", "messaging_type"},
		Capabilities:   capabilities,
	})
}
