// Package connector is the root of the connector framework.
//
// # Architecture Overview
//
//   - core: the Connector interface and the Result, SyncResult and Status
//     values every operation returns.
//
//   - base: Connector, the shared lifecycle. A type-specific Driver supplies
//     open, close, probe, pull and push; base adds config validation,
//     auto-connect, operation logging, metrics and panic recovery.
//
//   - registry: factories keyed by connector type, plus catalog metadata.
//     Connector packages register themselves in init.
//
//   - messaging: Kafka (sarama), RabbitMQ (amqp091) and ActiveMQ (STOMP)
//     drivers sharing one JSON message envelope.
//
//   - transport: CRM, PM, banking and ERP drivers over the shared HTTP
//     client, with offline sandbox fixtures.
//
//   - custom: connectors backed by a plugin from pkg/plugin.
//
// # Example Usage
//
//	rec := oplog.NewRecorder(store.Logs())
//	conn, err := registry.Create(cfg, rec)
//	if err != nil {
//		return err
//	}
//	defer conn.Disconnect(ctx)
//
//	res := conn.SyncData(ctx, "transactions", map[string]any{"account_number": "CHK-001"})
//	if !res.OK() {
//		return res.Err
//	}
//
// Operations never panic and never return Go errors directly: failures are
// reported in the result with StatusError, a message and the typed error in
// Err.
package connector
